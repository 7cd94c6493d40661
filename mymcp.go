package mymcp

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/querysafe/mysql-mcp/internal/intercept"
	"github.com/querysafe/mysql-mcp/internal/metrics"
	"github.com/querysafe/mysql-mcp/internal/pool"
	"github.com/querysafe/mysql-mcp/internal/risk"
	"github.com/querysafe/mysql-mcp/internal/sanitize"
	"github.com/querysafe/mysql-mcp/internal/timeout"
)

// MysqlMcp is the core engine behind every tool: it admits statements
// against the security policy, executes them on per-context connection
// pools, and shapes results for the caller. All exported methods are safe
// for concurrent use from multiple goroutines.
type MysqlMcp struct {
	config      Config
	policy      risk.Policy
	pools       *pool.Manager
	interceptor *intercept.Interceptor
	sanitizer   *sanitize.Sanitizer
	timeouts    *timeout.Manager
	metrics     *metrics.Metrics
	logger      zerolog.Logger

	// defaultContext owns the pool used when a caller supplies no
	// context of its own (stdio transport, library use, tests).
	defaultContext string
}

// Option is a functional option for New().
type Option func(*options)

type options struct {
	poolOpts []pool.Option
	metrics  *metrics.Metrics
}

// WithPoolOptions forwards options to the pool manager. The server uses
// this to wire session liveness; tests use it to substitute the opener.
func WithPoolOptions(opts ...pool.Option) Option {
	return func(o *options) { o.poolOpts = append(o.poolOpts, opts...) }
}

// WithMetrics substitutes the metrics instance. Without it the engine
// creates its own.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// New creates a new MysqlMcp instance. Panics on invalid config. Returns
// an error only for runtime failures.
func New(config Config, logger zerolog.Logger, opts ...Option) (*MysqlMcp, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	config.applyDefaults()

	// --- Config validation (panics on invalid config) ---

	if config.Pool.MaxSize < 0 || config.Pool.MinSize < 0 {
		panic("mymcp: pool sizes must not be negative")
	}
	if config.Pool.MinSize > config.Pool.MaxSize {
		panic("mymcp: pool.min_size must not exceed pool.max_size")
	}
	if config.Security.MaxStatementLength < 0 {
		panic("mymcp: security.max_statement_length must not be negative")
	}
	if config.Query.DefaultTimeoutSeconds <= 0 {
		panic("mymcp: query.default_timeout_seconds must be > 0")
	}
	for _, rule := range config.Query.TimeoutRules {
		if rule.TimeoutSeconds <= 0 {
			panic(fmt.Sprintf("mymcp: timeout_rule for operation %q has timeout_seconds <= 0", rule.Operation))
		}
	}

	// --- Build the security policy ---

	env := risk.ParseEnvironment(config.Security.EnvironmentType)
	levels, err := risk.AllowedLevelsFrom(config.Security.AllowedRiskLevels, env)
	if err != nil {
		panic(fmt.Sprintf("mymcp: security.allowed_risk_levels: %v", err))
	}
	patterns, err := risk.CompilePatterns(config.Security.BlockedPatterns)
	if err != nil {
		panic(fmt.Sprintf("mymcp: security.blocked_patterns: %v", err))
	}
	policy := risk.Policy{
		Environment:        env,
		AllowedLevels:      levels,
		MaxStatementLength: config.Security.MaxStatementLength,
		BlockedPatterns:    patterns,
		EnableQueryCheck:   config.Security.EnableQueryCheck,
		AllowSensitiveInfo: config.Security.AllowSensitiveInfo,
		SensitiveFields:    config.Security.SensitiveFields,
	}

	// --- Initialize internal components ---

	var sanitizer *sanitize.Sanitizer
	if !config.Security.AllowSensitiveInfo {
		fields := config.Security.SensitiveFields
		if len(fields) == 0 {
			fields = sanitize.DefaultFieldPatterns
		}
		sanitizer, err = sanitize.New(fields)
		if err != nil {
			panic(fmt.Sprintf("mymcp: security.sensitive_fields: %v", err))
		}
	}

	timeoutRules := make([]timeout.Rule, len(config.Query.TimeoutRules))
	for i, r := range config.Query.TimeoutRules {
		timeoutRules[i] = timeout.Rule{
			Operation: r.Operation,
			Timeout:   time.Duration(r.TimeoutSeconds) * time.Second,
		}
	}
	tmgr := timeout.NewManager(timeout.Config{
		DefaultTimeout: time.Duration(config.Query.DefaultTimeoutSeconds) * time.Second,
		Rules:          timeoutRules,
	})

	m := o.metrics
	if m == nil {
		m = metrics.New()
	}

	poolOpts := append([]pool.Option{
		pool.WithLogger(logger),
		pool.WithPoolGauge(m.SetActivePools),
	}, o.poolOpts...)
	pools := pool.NewManager(pool.Config{
		Host:           config.Connection.Host,
		Port:           config.Connection.Port,
		User:           config.Connection.User,
		Password:       config.Connection.Password,
		Database:       config.Connection.Database,
		ConnectTimeout: config.Connection.connectTimeout(),
		MinSize:        config.Pool.MinSize,
		MaxSize:        config.Pool.MaxSize,
		Recycle:        time.Duration(config.Pool.RecycleSeconds) * time.Second,
		AcquireTimeout: time.Duration(config.Pool.AcquireTimeoutSeconds) * time.Second,
		Enabled:        config.Pool.Enabled,
		SweepInterval:  time.Duration(config.Pool.SweepIntervalSeconds) * time.Second,
	}, poolOpts...)

	return &MysqlMcp{
		config:         config,
		policy:         policy,
		pools:          pools,
		interceptor:    intercept.New(risk.NewAnalyzer(policy), logger),
		sanitizer:      sanitizer,
		timeouts:       tmgr,
		metrics:        m,
		logger:         logger,
		defaultContext: "default-" + uuid.NewString(),
	}, nil
}

// Pools exposes the pool manager so the server can run the periodic
// sweep and shut pools down.
func (p *MysqlMcp) Pools() *pool.Manager {
	return p.pools
}

// Metrics exposes the metrics instance for the scrape endpoint.
func (p *MysqlMcp) Metrics() *metrics.Metrics {
	return p.metrics
}

// Environment reports the configured deployment environment.
func (p *MysqlMcp) Environment() risk.Environment {
	return p.policy.Environment
}

// Ping verifies connectivity for contextID's pool, creating it if needed.
func (p *MysqlMcp) Ping(ctx context.Context, contextID string) error {
	return p.pools.WithConn(ctx, p.contextID(contextID), func(ctx context.Context, conn *sql.Conn) error {
		return conn.PingContext(ctx)
	})
}

// Close closes every connection pool, bounded by ctx.
func (p *MysqlMcp) Close(ctx context.Context) {
	p.pools.CloseAll(ctx)
}

func (p *MysqlMcp) contextID(requested string) string {
	if requested == "" {
		return p.defaultContext
	}
	return requested
}
