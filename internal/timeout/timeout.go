// Package timeout resolves per-statement execution deadlines from the
// statement's operation keyword. Long-running DDL can be given more room
// than interactive reads without touching the engine.
package timeout

import (
	"strings"
	"time"
)

// Rule assigns a timeout to one operation keyword.
type Rule struct {
	Operation string
	Timeout   time.Duration
}

// Config is the timeout manager's own config type.
type Config struct {
	DefaultTimeout time.Duration
	Rules          []Rule
}

// Manager resolves statement timeouts by operation.
type Manager struct {
	byOperation    map[string]time.Duration
	defaultTimeout time.Duration
}

// NewManager creates a new Manager. Later rules for the same operation
// override earlier ones.
func NewManager(config Config) *Manager {
	byOp := make(map[string]time.Duration, len(config.Rules))
	for _, r := range config.Rules {
		byOp[strings.ToUpper(strings.TrimSpace(r.Operation))] = r.Timeout
	}
	return &Manager{byOperation: byOp, defaultTimeout: config.DefaultTimeout}
}

// For returns the timeout for the given operation keyword. Falls back to
// the default when no rule matches; a zero default means no deadline.
func (m *Manager) For(operation string) time.Duration {
	if d, ok := m.byOperation[strings.ToUpper(operation)]; ok {
		return d
	}
	return m.defaultTimeout
}
