// Package pool manages one database connection pool per execution
// context. Pools are created lazily, swept when their owning context
// disappears, and closed together on shutdown. The registry is the only
// shared state and a single mutex guards it, so creation, sweeping, and
// shutdown can never race on the same context.
package pool

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog"

	"github.com/querysafe/mysql-mcp/internal/dberr"
)

// DefaultSweepInterval is how often orphaned pools are collected.
const DefaultSweepInterval = 300 * time.Second

// Config carries the connection settings shared by every pool.
type Config struct {
	Host           string
	Port           int
	User           string
	Password       string
	Database       string
	ConnectTimeout time.Duration
	MinSize        int
	MaxSize        int
	Recycle        time.Duration
	AcquireTimeout time.Duration
	Enabled        bool
	SweepInterval  time.Duration
}

// Pool is one context's connection pool. It moves from active to closed
// exactly once; Close is idempotent.
type Pool struct {
	contextID string
	db        *sql.DB
	created   time.Time
	closed    atomic.Bool
}

// DB exposes the underlying pool for statement execution.
func (p *Pool) DB() *sql.DB {
	return p.db
}

// ContextID returns the execution context that owns this pool.
func (p *Pool) ContextID() string {
	return p.contextID
}

// Closed reports whether the pool has been closed.
func (p *Pool) Closed() bool {
	return p.closed.Load()
}

// Close closes the pool. Safe to call more than once.
func (p *Pool) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	return p.db.Close()
}

// OpenFunc opens the database handle for one pool. Tests substitute this
// to run against an in-memory database.
type OpenFunc func(cfg Config) (*sql.DB, error)

// Open is the production OpenFunc: a MySQL handle sized and recycled per
// cfg. With pooling disabled, idle connections are not kept, so every
// statement gets a fresh connection.
func Open(cfg Config) (*sql.DB, error) {
	mc := mysql.NewConfig()
	mc.Net = "tcp"
	mc.Addr = fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	mc.User = cfg.User
	mc.Passwd = cfg.Password
	mc.DBName = cfg.Database
	mc.Timeout = cfg.ConnectTimeout
	mc.ParseTime = false

	db, err := sql.Open("mysql", mc.FormatDSN())
	if err != nil {
		return nil, err
	}
	if cfg.Enabled {
		db.SetMaxOpenConns(cfg.MaxSize)
		db.SetMaxIdleConns(cfg.MinSize)
		db.SetConnMaxLifetime(cfg.Recycle)
	} else {
		db.SetMaxOpenConns(cfg.MaxSize)
		db.SetMaxIdleConns(0)
	}
	return db, nil
}

// LivenessFunc reports whether the execution context owning a pool still
// exists. The server wires this to its session registry.
type LivenessFunc func(contextID string) bool

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the manager's logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// WithOpenFunc replaces how pools open their database handle.
func WithOpenFunc(open OpenFunc) Option {
	return func(m *Manager) { m.open = open }
}

// WithLiveness sets the context liveness check used by the sweep. Without
// one, the sweep never collects anything.
func WithLiveness(alive LivenessFunc) Option {
	return func(m *Manager) { m.alive = alive }
}

// WithPoolGauge registers a callback invoked with the registry size after
// every mutation.
func WithPoolGauge(gauge func(n int)) Option {
	return func(m *Manager) { m.gauge = gauge }
}

// Manager owns the registry of per-context pools.
type Manager struct {
	cfg    Config
	logger zerolog.Logger
	open   OpenFunc
	alive  LivenessFunc
	gauge  func(int)

	mu        sync.Mutex
	pools     map[string]*Pool
	lastSweep time.Time
	shutdown  bool
}

// NewManager creates a Manager. Panics on a non-positive max pool size.
func NewManager(cfg Config, opts ...Option) *Manager {
	if cfg.MaxSize <= 0 {
		panic("pool: MaxSize must be positive")
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = DefaultSweepInterval
	}
	m := &Manager{
		cfg:       cfg,
		logger:    zerolog.Nop(),
		open:      Open,
		pools:     make(map[string]*Pool),
		lastSweep: time.Now(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// PoolFor returns the pool owned by contextID, creating it if absent or
// closed. Creation pings the server so auth, host, and database failures
// surface immediately as classified errors. An elapsed sweep interval
// triggers a sweep first.
func (m *Manager) PoolFor(ctx context.Context, contextID string) (*Pool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.shutdown {
		return nil, dberr.New(dberr.CodeConnectionFailed, "connection pools are shut down")
	}
	if time.Since(m.lastSweep) >= m.cfg.SweepInterval {
		m.sweepLocked()
	}
	if p, ok := m.pools[contextID]; ok && !p.Closed() {
		return p, nil
	}

	db, err := m.open(m.cfg)
	if err != nil {
		return nil, dberr.ClassifyConnection(err)
	}

	pingCtx := ctx
	if m.cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		pingCtx, cancel = context.WithTimeout(ctx, m.cfg.ConnectTimeout)
		defer cancel()
	}
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, dberr.ClassifyConnection(err)
	}

	p := &Pool{contextID: contextID, db: db, created: time.Now()}
	m.pools[contextID] = p
	m.reportSize()
	m.logger.Debug().
		Str("context_id", contextID).
		Int("pools", len(m.pools)).
		Msg("Connection pool created")
	return p, nil
}

// WithConn runs fn with a connection from contextID's pool. The
// connection is always returned to the pool, on error paths included.
// Acquisition is bounded by the configured acquire timeout.
func (m *Manager) WithConn(ctx context.Context, contextID string, fn func(ctx context.Context, conn *sql.Conn) error) error {
	p, err := m.PoolFor(ctx, contextID)
	if err != nil {
		return err
	}

	acquireCtx := ctx
	if m.cfg.AcquireTimeout > 0 {
		var cancel context.CancelFunc
		acquireCtx, cancel = context.WithTimeout(ctx, m.cfg.AcquireTimeout)
		defer cancel()
	}
	conn, err := p.DB().Conn(acquireCtx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return dberr.Wrap(err, dberr.CodeResourceTimeout,
				fmt.Sprintf("timed out acquiring a connection after %s", m.cfg.AcquireTimeout))
		}
		return dberr.ClassifyConnection(err)
	}
	defer conn.Close()

	return fn(ctx, conn)
}

// Sweep closes and removes every pool whose owning context is gone.
func (m *Manager) Sweep() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweepLocked()
}

func (m *Manager) sweepLocked() {
	m.lastSweep = time.Now()
	if m.alive == nil {
		return
	}
	for id, p := range m.pools {
		if m.alive(id) {
			continue
		}
		if err := p.Close(); err != nil {
			m.logger.Warn().Err(err).Str("context_id", id).Msg("Error closing orphaned pool")
		} else {
			m.logger.Info().Str("context_id", id).Msg("Closed orphaned connection pool")
		}
		delete(m.pools, id)
	}
	m.reportSize()
}

// Count returns the number of registered pools.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pools)
}

// CloseAll closes every pool and empties the registry. It waits for the
// closes to finish, bounded by ctx; a close still running at the deadline
// is logged and abandoned rather than blocking shutdown. After CloseAll,
// PoolFor fails. Idempotent.
func (m *Manager) CloseAll(ctx context.Context) {
	m.mu.Lock()
	snapshot := m.pools
	m.pools = make(map[string]*Pool)
	m.shutdown = true
	m.reportSize()
	m.mu.Unlock()

	var wg sync.WaitGroup
	for id, p := range snapshot {
		wg.Add(1)
		go func(id string, p *Pool) {
			defer wg.Done()
			if err := p.Close(); err != nil {
				m.logger.Warn().Err(err).Str("context_id", id).Msg("Error closing pool")
			}
		}(id, p)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		m.logger.Debug().Int("count", len(snapshot)).Msg("All connection pools closed")
	case <-ctx.Done():
		m.logger.Warn().Int("count", len(snapshot)).Msg("Timed out waiting for pools to close")
	}
}

func (m *Manager) reportSize() {
	if m.gauge != nil {
		m.gauge(len(m.pools))
	}
}
