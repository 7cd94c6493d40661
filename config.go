package mymcp

import "time"

// Config is the base configuration used by library mode via New().
type Config struct {
	Connection ConnectionConfig `json:"connection"`
	Pool       PoolConfig       `json:"pool"`
	Security   SecurityConfig   `json:"security"`
	Query      QueryConfig      `json:"query"`
}

// ServerConfig embeds Config and adds server-only fields for CLI mode.
type ServerConfig struct {
	Config
	Server  ServerSettings `json:"server"`
	Logging LoggingConfig  `json:"logging"`
}

// ConnectionConfig holds database connection parameters.
type ConnectionConfig struct {
	Host           string `json:"host"`
	Port           int    `json:"port"`
	User           string `json:"user"`
	Password       string `json:"-"`
	Database       string `json:"database"`
	ConnectTimeout int    `json:"connect_timeout_seconds"`
}

// PoolConfig holds connection pool settings. One pool is kept per
// execution context; these settings apply to each.
type PoolConfig struct {
	MinSize               int  `json:"min_size"`
	MaxSize               int  `json:"max_size"`
	RecycleSeconds        int  `json:"recycle_seconds"`
	AcquireTimeoutSeconds int  `json:"acquire_timeout_seconds"`
	Enabled               bool `json:"enabled"`
	SweepIntervalSeconds  int  `json:"sweep_interval_seconds"`
}

// SecurityConfig holds the admission policy settings.
type SecurityConfig struct {
	// EnvironmentType is "development" or "production".
	EnvironmentType string `json:"environment_type"`

	// AllowedRiskLevels is a comma-separated list of level names. Empty
	// means unconfigured: development defaults to LOW,MEDIUM and
	// production locks down to LOW.
	AllowedRiskLevels string `json:"allowed_risk_levels"`

	MaxStatementLength int      `json:"max_statement_length"`
	BlockedPatterns    []string `json:"blocked_patterns"`
	EnableQueryCheck   bool     `json:"enable_query_check"`

	// AllowSensitiveInfo skips sensitive-field masking in results.
	AllowSensitiveInfo bool     `json:"allow_sensitive_info"`
	SensitiveFields    []string `json:"sensitive_fields"`
}

// QueryConfig holds query execution settings.
type QueryConfig struct {
	DefaultTimeoutSeconds int           `json:"default_timeout_seconds"`
	TimeoutRules          []TimeoutRule `json:"timeout_rules"`
	DefaultBatchSize      int           `json:"default_batch_size"`
}

// TimeoutRule assigns a timeout to one operation keyword.
type TimeoutRule struct {
	Operation      string `json:"operation"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// ServerSettings holds HTTP server settings for CLI mode.
type ServerSettings struct {
	Host               string `json:"host"`
	Port               int    `json:"port"`
	HealthCheckEnabled bool   `json:"health_check_enabled"`
	HealthCheckPath    string `json:"health_check_path"`
	MetricsEnabled     bool   `json:"metrics_enabled"`
	MetricsPath        string `json:"metrics_path"`
}

// LoggingConfig holds logging settings for CLI mode.
type LoggingConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // json, text
	Output string `json:"output"` // stdout, or file path
}

// DefaultBlockedPatterns are the statement patterns blocked out of the
// box. Operators extend the list through configuration.
var DefaultBlockedPatterns = []string{
	`DROP\s+DATABASE`,
	`DROP\s+SCHEMA`,
	`INTO\s+OUTFILE`,
	`INTO\s+DUMPFILE`,
	`LOAD_FILE\s*\(`,
	`GRANT\s+`,
	`REVOKE\s+`,
	`SET\s+GLOBAL`,
	`SHUTDOWN`,
}

// applyDefaults fills zero values with the defaults the original
// deployment surface documents.
func (c *Config) applyDefaults() {
	if c.Connection.Host == "" {
		c.Connection.Host = "localhost"
	}
	if c.Connection.Port == 0 {
		c.Connection.Port = 3306
	}
	if c.Connection.ConnectTimeout == 0 {
		c.Connection.ConnectTimeout = 10
	}
	if c.Pool.MinSize == 0 {
		c.Pool.MinSize = 1
	}
	if c.Pool.MaxSize == 0 {
		c.Pool.MaxSize = 10
	}
	if c.Pool.RecycleSeconds == 0 {
		c.Pool.RecycleSeconds = 3600
	}
	if c.Pool.AcquireTimeoutSeconds == 0 {
		c.Pool.AcquireTimeoutSeconds = 10
	}
	if c.Pool.SweepIntervalSeconds == 0 {
		c.Pool.SweepIntervalSeconds = 300
	}
	if c.Security.EnvironmentType == "" {
		c.Security.EnvironmentType = "development"
	}
	if c.Security.MaxStatementLength == 0 {
		c.Security.MaxStatementLength = 1000
	}
	// A non-nil empty slice disables the default pattern set.
	if c.Security.BlockedPatterns == nil {
		c.Security.BlockedPatterns = DefaultBlockedPatterns
	}
	if c.Query.DefaultTimeoutSeconds == 0 {
		c.Query.DefaultTimeoutSeconds = 30
	}
	if c.Query.DefaultBatchSize == 0 {
		c.Query.DefaultBatchSize = 1000
	}
}

func (c *ConnectionConfig) connectTimeout() time.Duration {
	return time.Duration(c.ConnectTimeout) * time.Second
}
