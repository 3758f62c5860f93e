package cache

import (
	"container/list"
	"context"
	"hash/fnv"
	"sync"
	"time"
)

type memoryItem struct {
	key      string
	value    []byte
	expireAt time.Time
}

type shard struct {
	mu    sync.Mutex
	items map[string]*list.Element
	order *list.List // front = most recently used
	max   int
}

// MemoryCache is a sharded LRU byte cache. Keys hash (FNV-1a) to a shard, so traffic on
// one key only contends with keys in the same shard.
type MemoryCache struct {
	shards []*shard
	now    func() time.Time
}

// NewMemoryCache creates an in-memory cache.
func NewMemoryCache(opts ...MemoryOption) *MemoryCache {
	cfg := &MemoryConfig{
		MaxEntries: 10000,
		Shards:     16,
	}

	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.Shards <= 0 {
		cfg.Shards = 16
	}
	perShard := cfg.MaxEntries / cfg.Shards
	if perShard < 1 {
		perShard = 1
	}

	mc := &MemoryCache{shards: make([]*shard, cfg.Shards), now: time.Now}
	for i := range mc.shards {
		mc.shards[i] = &shard{items: make(map[string]*list.Element), order: list.New(), max: perShard}
	}
	return mc
}

func (mc *MemoryCache) Name() string { return "memory" }

func (mc *MemoryCache) shardFor(key string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return mc.shards[h.Sum32()%uint32(len(mc.shards))]
}

// GetBytes returns a copy of the stored value.
func (mc *MemoryCache) GetBytes(_ context.Context, key string) ([]byte, bool, error) {
	s := mc.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	el, ok := s.items[key]
	if !ok {
		return nil, false, nil
	}
	item := el.Value.(*memoryItem)
	if !item.expireAt.IsZero() && !mc.now().Before(item.expireAt) {
		s.order.Remove(el)
		delete(s.items, key)
		return nil, false, nil
	}
	s.order.MoveToFront(el)
	out := make([]byte, len(item.value))
	copy(out, item.value)
	return out, true, nil
}

// SetBytes stores a copy of value. A non-positive ttl never expires.
func (mc *MemoryCache) SetBytes(_ context.Context, key string, value []byte, ttl time.Duration) error {
	stored := make([]byte, len(value))
	copy(stored, value)
	var expireAt time.Time
	if ttl > 0 {
		expireAt = mc.now().Add(ttl)
	}

	s := mc.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	if el, ok := s.items[key]; ok {
		item := el.Value.(*memoryItem)
		item.value = stored
		item.expireAt = expireAt
		s.order.MoveToFront(el)
		return nil
	}
	for s.order.Len() >= s.max {
		oldest := s.order.Back()
		s.order.Remove(oldest)
		delete(s.items, oldest.Value.(*memoryItem).key)
	}
	s.items[key] = s.order.PushFront(&memoryItem{key: key, value: stored, expireAt: expireAt})
	return nil
}

// Len returns the number of stored entries, expired ones included.
func (mc *MemoryCache) Len() int {
	n := 0
	for _, s := range mc.shards {
		s.mu.Lock()
		n += s.order.Len()
		s.mu.Unlock()
	}
	return n
}

var _ Tier = (*MemoryCache)(nil)
