package pool

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/querysafe/mysql-mcp/internal/dberr"
)

func sqliteOpen(cfg Config) (*sql.DB, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(cfg.MaxSize)
	return db, nil
}

func testConfig() Config {
	return Config{
		MaxSize:        4,
		MinSize:        1,
		Enabled:        true,
		AcquireTimeout: 2 * time.Second,
	}
}

func TestPoolForReuse(t *testing.T) {
	t.Parallel()
	m := NewManager(testConfig(), WithOpenFunc(sqliteOpen))
	defer m.CloseAll(context.Background())
	ctx := context.Background()

	first, err := m.PoolFor(ctx, "ctx-a")
	if err != nil {
		t.Fatal(err)
	}
	again, err := m.PoolFor(ctx, "ctx-a")
	if err != nil {
		t.Fatal(err)
	}
	if first != again {
		t.Error("expected the same pool for the same context")
	}

	other, err := m.PoolFor(ctx, "ctx-b")
	if err != nil {
		t.Fatal(err)
	}
	if other == first {
		t.Error("expected distinct pools for distinct contexts")
	}
	if m.Count() != 2 {
		t.Errorf("Count = %d, want 2", m.Count())
	}
}

func TestPoolForRecreatesClosed(t *testing.T) {
	t.Parallel()
	m := NewManager(testConfig(), WithOpenFunc(sqliteOpen))
	defer m.CloseAll(context.Background())
	ctx := context.Background()

	first, err := m.PoolFor(ctx, "ctx-a")
	if err != nil {
		t.Fatal(err)
	}
	if err := first.Close(); err != nil {
		t.Fatal(err)
	}
	if err := first.Close(); err != nil {
		t.Errorf("second Close = %v, want nil", err)
	}

	second, err := m.PoolFor(ctx, "ctx-a")
	if err != nil {
		t.Fatal(err)
	}
	if second == first {
		t.Error("expected a fresh pool after close")
	}
	if second.Closed() {
		t.Error("expected the fresh pool to be open")
	}
}

func TestPoolForOpenError(t *testing.T) {
	t.Parallel()
	m := NewManager(testConfig(), WithOpenFunc(func(Config) (*sql.DB, error) {
		return nil, errors.New("dial tcp 127.0.0.1:3306: connection refused")
	}))

	_, err := m.PoolFor(context.Background(), "ctx-a")
	if err == nil {
		t.Fatal("expected error")
	}
	if code := dberr.GetCode(err); code != dberr.CodeServerUnreachable {
		t.Errorf("code = %s, want %s", code, dberr.CodeServerUnreachable)
	}
}

func TestWithConn(t *testing.T) {
	t.Parallel()
	m := NewManager(testConfig(), WithOpenFunc(sqliteOpen))
	defer m.CloseAll(context.Background())

	var got int
	err := m.WithConn(context.Background(), "ctx-a", func(ctx context.Context, conn *sql.Conn) error {
		return conn.QueryRowContext(ctx, "SELECT 41 + 1").Scan(&got)
	})
	if err != nil {
		t.Fatal(err)
	}
	if got != 42 {
		t.Errorf("got %d, want 42", got)
	}

	wantErr := errors.New("boom")
	if err := m.WithConn(context.Background(), "ctx-a", func(context.Context, *sql.Conn) error {
		return wantErr
	}); !errors.Is(err, wantErr) {
		t.Errorf("WithConn error = %v, want %v", err, wantErr)
	}
}

func TestSweep(t *testing.T) {
	t.Parallel()
	live := map[string]bool{"ctx-a": true, "ctx-b": true}
	m := NewManager(testConfig(),
		WithOpenFunc(sqliteOpen),
		WithLiveness(func(id string) bool { return live[id] }))
	defer m.CloseAll(context.Background())
	ctx := context.Background()

	poolA, err := m.PoolFor(ctx, "ctx-a")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.PoolFor(ctx, "ctx-b"); err != nil {
		t.Fatal(err)
	}

	m.Sweep()
	if m.Count() != 2 {
		t.Errorf("Count after no-op sweep = %d, want 2", m.Count())
	}

	live["ctx-a"] = false
	m.Sweep()
	if m.Count() != 1 {
		t.Errorf("Count after sweep = %d, want 1", m.Count())
	}
	if !poolA.Closed() {
		t.Error("expected swept pool to be closed")
	}
}

func TestPoolForSweepsOpportunistically(t *testing.T) {
	t.Parallel()
	live := map[string]bool{"ctx-a": true, "ctx-b": true}
	cfg := testConfig()
	cfg.SweepInterval = time.Nanosecond
	m := NewManager(cfg,
		WithOpenFunc(sqliteOpen),
		WithLiveness(func(id string) bool { return live[id] }))
	defer m.CloseAll(context.Background())
	ctx := context.Background()

	if _, err := m.PoolFor(ctx, "ctx-a"); err != nil {
		t.Fatal(err)
	}
	live["ctx-a"] = false
	time.Sleep(time.Millisecond)

	if _, err := m.PoolFor(ctx, "ctx-b"); err != nil {
		t.Fatal(err)
	}
	if m.Count() != 1 {
		t.Errorf("Count = %d, want 1 after opportunistic sweep", m.Count())
	}
}

func TestCloseAll(t *testing.T) {
	t.Parallel()
	var sizes []int
	m := NewManager(testConfig(),
		WithOpenFunc(sqliteOpen),
		WithPoolGauge(func(n int) { sizes = append(sizes, n) }))
	ctx := context.Background()

	poolA, err := m.PoolFor(ctx, "ctx-a")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.PoolFor(ctx, "ctx-b"); err != nil {
		t.Fatal(err)
	}

	m.CloseAll(ctx)
	if !poolA.Closed() {
		t.Error("expected pool closed after CloseAll")
	}
	if m.Count() != 0 {
		t.Errorf("Count = %d, want 0", m.Count())
	}
	if len(sizes) == 0 || sizes[len(sizes)-1] != 0 {
		t.Errorf("gauge sizes = %v, want final 0", sizes)
	}

	if _, err := m.PoolFor(ctx, "ctx-c"); dberr.GetCode(err) != dberr.CodeConnectionFailed {
		t.Errorf("PoolFor after shutdown = %v, want %s", err, dberr.CodeConnectionFailed)
	}

	m.CloseAll(ctx)
}

func TestNewManagerPanics(t *testing.T) {
	t.Parallel()
	defer func() {
		if recover() == nil {
			t.Error("expected panic for non-positive MaxSize")
		}
	}()
	NewManager(Config{})
}
