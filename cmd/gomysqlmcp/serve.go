package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	mymcp "github.com/querysafe/mysql-mcp"
	"github.com/querysafe/mysql-mcp/internal/metrics"
	"github.com/querysafe/mysql-mcp/internal/pool"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"
)

func runServe(cmd *cobra.Command, args []string) error {
	serverConfig, err := loadServerConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if serverConfig.Server.Port <= 0 {
		panic("gomysqlmcp: server port must be > 0")
	}

	// Prompt for the password if it was not provided via environment.
	if serverConfig.Connection.Password == "" {
		serverConfig.Connection.Password = promptPassword(
			fmt.Sprintf("Password for %s@%s: ", serverConfig.Connection.User, serverConfig.Connection.Host))
	}

	logger := setupLogger(serverConfig.Logging)

	m := metrics.New()
	sessions := newSessionRegistry(m)

	eng, err := mymcp.New(serverConfig.Config, logger,
		mymcp.WithMetrics(m),
		mymcp.WithPoolOptions(pool.WithLiveness(sessions.Alive)),
	)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info().Msg("testing database connection")
	if err := eng.Ping(ctx, ""); err != nil {
		logger.Error().Err(err).Msg("database connection test failed")
		return fmt.Errorf("database connection test failed: %w", err)
	}
	logger.Info().Msg("database connection test successful")

	hooks := &server.Hooks{}
	hooks.AddAfterInitialize(func(ctx context.Context, id any, req *mcp.InitializeRequest, result *mcp.InitializeResult) {
		logger.Info().
			Str("client_name", req.Params.ClientInfo.Name).
			Str("client_version", req.Params.ClientInfo.Version).
			Msg("AI agent connected (MCP initialize)")
	})
	hooks.AddOnRegisterSession(func(ctx context.Context, session server.ClientSession) {
		sessions.Add(session.SessionID())
		logger.Debug().Str("session_id", session.SessionID()).Msg("session registered")
	})
	hooks.AddOnUnregisterSession(func(ctx context.Context, session server.ClientSession) {
		sessions.Remove(session.SessionID())
		logger.Debug().Str("session_id", session.SessionID()).Msg("session unregistered")
		// Reclaim the pool bound to this session promptly.
		eng.Pools().Sweep()
	})

	mcpServer := server.NewMCPServer("gomysqlmcp", version,
		server.WithToolCapabilities(true),
		server.WithHooks(hooks),
	)

	mymcp.RegisterMCPTools(mcpServer, eng)

	addr := fmt.Sprintf("%s:%d", serverConfig.Server.Host, serverConfig.Server.Port)
	mux := http.NewServeMux()

	// Health check endpoint (process liveness only, not DB connectivity)
	if serverConfig.Server.HealthCheckEnabled {
		if serverConfig.Server.HealthCheckPath == "" {
			panic("gomysqlmcp: health check path must be set when the health check is enabled")
		}
		mux.HandleFunc(serverConfig.Server.HealthCheckPath, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"status":"ok"}`))
		})
	}

	if serverConfig.Server.MetricsEnabled {
		if serverConfig.Server.MetricsPath == "" {
			panic("gomysqlmcp: metrics path must be set when metrics are enabled")
		}
		mux.Handle(serverConfig.Server.MetricsPath, m.Handler())
	}

	httpSrv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	// Sessions are stateful: the session ID ties each agent to its own
	// connection pool, so the stateless mode is not used here.
	streamableServer := server.NewStreamableHTTPServer(mcpServer,
		server.WithEndpointPath("/mcp"),
		server.WithStreamableHTTPServer(httpSrv),
	)

	// Manually register the MCP handler — Start() does NOT register
	// when a custom *http.Server is provided via WithStreamableHTTPServer.
	mux.Handle("/mcp", streamableServer)

	// Background sweep for pools whose owning session is gone.
	sweepInterval := time.Duration(serverConfig.Pool.SweepIntervalSeconds) * time.Second
	if sweepInterval <= 0 {
		sweepInterval = pool.DefaultSweepInterval
	}
	go func() {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				eng.Pools().Sweep()
			}
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		errCh <- streamableServer.Start(addr)
	}()
	logger.Info().Str("addr", addr).Msg("starting gomysqlmcp server")

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := streamableServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("HTTP server shutdown error")
	}
	eng.Close(shutdownCtx)
	logger.Info().Msg("server stopped")
	return nil
}

// mcpSessionIDPrefix matches the session IDs minted by mcp-go's default
// stateful session manager (InsecureStatefulSessionIdManager). If an
// mcp-go upgrade changes the ID format this prefix must follow.
const mcpSessionIDPrefix = "mcp-session-"

// sessionRegistry tracks which MCP session IDs are currently connected.
// The pool manager consults it to decide which pools are still owned.
type sessionRegistry struct {
	mu      sync.Mutex
	alive   map[string]bool
	metrics *metrics.Metrics
}

func newSessionRegistry(m *metrics.Metrics) *sessionRegistry {
	return &sessionRegistry{alive: make(map[string]bool), metrics: m}
}

func (r *sessionRegistry) Add(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.alive[id] {
		r.alive[id] = true
		r.metrics.SessionOpened()
	}
}

func (r *sessionRegistry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.alive[id] {
		delete(r.alive, id)
		r.metrics.SessionClosed()
	}
}

// Alive reports whether the given context ID belongs to a connected
// session. Context IDs that were never registered as sessions (the
// engine default, or caller-chosen IDs) are left alone.
func (r *sessionRegistry) Alive(contextID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, tracked := r.alive[contextID]; tracked {
		return true
	}
	return !strings.HasPrefix(contextID, mcpSessionIDPrefix)
}

func loadServerConfig() (*mymcp.ServerConfig, error) {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("MYSQL_HOST", "localhost")
	v.SetDefault("MYSQL_PORT", 3306)
	v.SetDefault("MYSQL_USER", "root")
	v.SetDefault("DB_CONNECTION_TIMEOUT", 10)
	v.SetDefault("DB_POOL_MIN_SIZE", 1)
	v.SetDefault("DB_POOL_MAX_SIZE", 10)
	v.SetDefault("DB_POOL_RECYCLE", 3600)
	v.SetDefault("DB_POOL_ACQUIRE_TIMEOUT", 10)
	v.SetDefault("DB_POOL_ENABLED", true)
	v.SetDefault("DB_POOL_SWEEP_INTERVAL", 300)
	v.SetDefault("ENV_TYPE", "development")
	v.SetDefault("MAX_SQL_LENGTH", 1000)
	v.SetDefault("ENABLE_QUERY_CHECK", true)
	v.SetDefault("QUERY_TIMEOUT", 30)
	v.SetDefault("QUERY_BATCH_SIZE", 1000)
	v.SetDefault("HOST", "127.0.0.1")
	v.SetDefault("PORT", 3000)
	v.SetDefault("HEALTH_CHECK_ENABLED", true)
	v.SetDefault("HEALTH_CHECK_PATH", "/health")
	v.SetDefault("METRICS_ENABLED", true)
	v.SetDefault("METRICS_PATH", "/metrics")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "text")
	v.SetDefault("LOG_OUTPUT", "stderr")

	config := &mymcp.ServerConfig{
		Config: mymcp.Config{
			Connection: mymcp.ConnectionConfig{
				Host:           v.GetString("MYSQL_HOST"),
				Port:           v.GetInt("MYSQL_PORT"),
				User:           v.GetString("MYSQL_USER"),
				Password:       v.GetString("MYSQL_PASSWORD"),
				Database:       v.GetString("MYSQL_DATABASE"),
				ConnectTimeout: v.GetInt("DB_CONNECTION_TIMEOUT"),
			},
			Pool: mymcp.PoolConfig{
				MinSize:               v.GetInt("DB_POOL_MIN_SIZE"),
				MaxSize:               v.GetInt("DB_POOL_MAX_SIZE"),
				RecycleSeconds:        v.GetInt("DB_POOL_RECYCLE"),
				AcquireTimeoutSeconds: v.GetInt("DB_POOL_ACQUIRE_TIMEOUT"),
				Enabled:               v.GetBool("DB_POOL_ENABLED"),
				SweepIntervalSeconds:  v.GetInt("DB_POOL_SWEEP_INTERVAL"),
			},
			Security: mymcp.SecurityConfig{
				EnvironmentType:    v.GetString("ENV_TYPE"),
				AllowedRiskLevels:  v.GetString("ALLOWED_RISK_LEVELS"),
				MaxStatementLength: v.GetInt("MAX_SQL_LENGTH"),
				BlockedPatterns:    lookupCSV("BLOCKED_PATTERNS"),
				EnableQueryCheck:   v.GetBool("ENABLE_QUERY_CHECK"),
				AllowSensitiveInfo: v.GetBool("ALLOW_SENSITIVE_INFO"),
				SensitiveFields:    splitCSV(v.GetString("SENSITIVE_INFO_FIELDS")),
			},
			Query: mymcp.QueryConfig{
				DefaultTimeoutSeconds: v.GetInt("QUERY_TIMEOUT"),
				DefaultBatchSize:      v.GetInt("QUERY_BATCH_SIZE"),
			},
		},
		Server: mymcp.ServerSettings{
			Host:               v.GetString("HOST"),
			Port:               v.GetInt("PORT"),
			HealthCheckEnabled: v.GetBool("HEALTH_CHECK_ENABLED"),
			HealthCheckPath:    v.GetString("HEALTH_CHECK_PATH"),
			MetricsEnabled:     v.GetBool("METRICS_ENABLED"),
			MetricsPath:        v.GetString("METRICS_PATH"),
		},
		Logging: mymcp.LoggingConfig{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
			Output: v.GetString("LOG_OUTPUT"),
		},
	}

	if config.Connection.Database == "" {
		return nil, fmt.Errorf("MYSQL_DATABASE must be set")
	}

	return config, nil
}

func splitCSV(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// lookupCSV distinguishes an unset variable from one set to the empty
// string. Unset returns nil so the library default applies; set but
// empty returns a non-nil empty slice, which keeps the list empty.
func lookupCSV(key string) []string {
	val, set := os.LookupEnv(key)
	if !set {
		return nil
	}
	out := splitCSV(val)
	if out == nil {
		out = []string{}
	}
	return out
}

func setupLogger(config mymcp.LoggingConfig) zerolog.Logger {
	level := zerolog.InfoLevel
	switch strings.ToLower(config.Level) {
	case "debug":
		level = zerolog.DebugLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}

	var output io.Writer = os.Stderr
	if config.Output == "stdout" {
		output = os.Stdout
	} else if config.Output != "" && config.Output != "stderr" {
		f, err := os.OpenFile(config.Output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err == nil {
			output = f
		}
	}

	if config.Format == "text" {
		output = zerolog.ConsoleWriter{Out: output}
	}

	return zerolog.New(output).Level(level).With().Timestamp().Logger()
}

func promptPassword(prompt string) string {
	fmt.Fprint(os.Stderr, prompt)
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr) // newline after password input
	if err != nil {
		return ""
	}
	return string(password)
}
