package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"FinSignal/internal/domain/errs"
)

// barsDriver is a minimal database/sql driver serving canned daily bars.
type barsDriver struct {
	mu    sync.Mutex
	rows  [][]driver.Value
	err   error
	query string
	args  []driver.NamedValue
}

func (d *barsDriver) Open(string) (driver.Conn, error) { return &barsConn{d: d}, nil }

type barsConn struct{ d *barsDriver }

func (c *barsConn) Prepare(string) (driver.Stmt, error) { return nil, errors.New("not supported") }
func (c *barsConn) Close() error { return nil }
func (c *barsConn) Begin() (driver.Tx, error) { return nil, errors.New("not supported") }

func (c *barsConn) QueryContext(_ context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	c.d.mu.Lock()
	defer c.d.mu.Unlock()
	c.d.query, c.d.args = query, args
	if c.d.err != nil {
		return nil, c.d.err
	}
	return &barsRows{rows: c.d.rows}, nil
}

type barsRows struct {
	rows [][]driver.Value
	i    int
}

func (r *barsRows) Columns() []string {
	return []string{"day", "open", "high", "low", "close", "volume"}
}
func (r *barsRows) Close() error { return nil }

func (r *barsRows) Next(dest []driver.Value) error {
	if r.i >= len(r.rows) {
		return io.EOF
	}
	copy(dest, r.rows[r.i])
	r.i++
	return nil
}

func openBarsDB(t *testing.T, d *barsDriver) *sql.DB {
	t.Helper()
	name := "bars-" + strings.ReplaceAll(t.Name(), "/", "-")
	sql.Register(name, d)
	db, err := sql.Open(name, "")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestCHBarStoreGetBars(t *testing.T) {
	day := func(d int) time.Time { return time.Date(2024, 2, d, 0, 0, 0, 0, time.UTC) }
	d := &barsDriver{rows: [][]driver.Value{
		{day(1), 10.0, 11.0, 9.0, 10.5, 1000.0},
		{day(2), 10.5, 12.0, 10.0, 11.5, 1200.0},
	}}
	s := newCHBarStore(openBarsDB(t, d), "", 60, nil)
	s.now = func() time.Time { return time.Date(2024, 3, 1, 15, 0, 0, 0, time.UTC) }

	bars, err := s.GetBars(context.Background(), "AAPL", 7)
	if err != nil {
		t.Fatalf("GetBars: %v", err)
	}
	if len(bars) != 2 || bars[1].Close != 11.5 || !bars[0].Timestamp.Equal(day(1)) {
		t.Fatalf("unexpected bars %+v", bars)
	}
	if !strings.Contains(d.query, "finsignal.daily_bars") {
		t.Fatalf("query did not use default table: %s", d.query)
	}
	if len(d.args) != 2 || d.args[0].Value != "AAPL" {
		t.Fatalf("bad args %+v", d.args)
	}
	from, ok := d.args[1].Value.(time.Time)
	if !ok || !from.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("window start = %v", d.args[1].Value)
	}
}

func TestCHBarStoreQueryErrorIsProviderUnavailable(t *testing.T) {
	d := &barsDriver{err: errors.New("connection refused")}
	s := newCHBarStore(openBarsDB(t, d), "t", 60, nil)
	_, err := s.GetBars(context.Background(), "AAPL", 7)
	if !errors.Is(err, errs.ErrProviderUnavailable) {
		t.Fatalf("err = %v", err)
	}
}
