package cache

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// call is one in-progress compute shared by every caller waiting on the same key.
type call struct {
	done    chan struct{}
	val     []byte
	err     error
	waiters int
	cancel  context.CancelFunc
}

// flightGroup collapses concurrent computes per key. The compute runs detached from any
// caller's context and is cancelled only once every waiter has gone; a fully abandoned
// flight is forgotten so the next caller starts a fresh one.
type flightGroup struct {
	mu    sync.Mutex
	calls map[string]*call
}

func newFlightGroup() *flightGroup {
	return &flightGroup{calls: make(map[string]*call)}
}

// do runs fn once per key at a time. shared reports whether this caller joined an existing flight.
func (g *flightGroup) do(ctx context.Context, key string, timeout time.Duration, fn func(context.Context) ([]byte, error)) (val []byte, shared bool, err error) {
	g.mu.Lock()
	c, shared := g.calls[key]
	if !shared {
		base := context.WithoutCancel(ctx)
		var fctx context.Context
		var cancel context.CancelFunc
		if timeout > 0 {
			fctx, cancel = context.WithTimeout(base, timeout)
		} else {
			fctx, cancel = context.WithCancel(base)
		}
		c = &call{done: make(chan struct{}), cancel: cancel}
		g.calls[key] = c
		go g.run(fctx, key, c, fn)
	}
	c.waiters++
	g.mu.Unlock()

	select {
	case <-c.done:
		return c.val, shared, c.err
	case <-ctx.Done():
		g.mu.Lock()
		c.waiters--
		if c.waiters == 0 {
			c.cancel()
			if g.calls[key] == c {
				delete(g.calls, key)
			}
		}
		g.mu.Unlock()
		return nil, shared, ctx.Err()
	}
}

func (g *flightGroup) run(ctx context.Context, key string, c *call, fn func(context.Context) ([]byte, error)) {
	defer func() {
		if r := recover(); r != nil {
			c.val, c.err = nil, fmt.Errorf("cache compute panicked: %v", r)
		}
		c.cancel()
		g.mu.Lock()
		if g.calls[key] == c {
			delete(g.calls, key)
		}
		g.mu.Unlock()
		close(c.done)
	}()
	c.val, c.err = fn(ctx)
}

// inFlight returns the number of keys with a running compute.
func (g *flightGroup) inFlight() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}
