package mymcp_test

import (
	"context"
	"strings"
	"testing"

	mymcp "github.com/querysafe/mysql-mcp"
	"github.com/querysafe/mysql-mcp/internal/dberr"
)

// expectPanic calls f and asserts that it panics with a message containing substr.
func expectPanic(t *testing.T, substr string, f func()) {
	t.Helper()
	defer func() {
		r := recover()
		if r == nil {
			t.Fatalf("expected panic containing %q, but no panic occurred", substr)
		}
		msg := ""
		switch v := r.(type) {
		case string:
			msg = v
		case error:
			msg = v.Error()
		default:
			t.Fatalf("expected panic string/error containing %q, got %T: %v", substr, r, r)
		}
		if !strings.Contains(msg, substr) {
			t.Fatalf("expected panic containing %q, got %q", substr, msg)
		}
	}()
	f()
}

func TestNewPanicsOnMinSizeAboveMaxSize(t *testing.T) {
	t.Parallel()
	config := defaultConfig()
	config.Pool.MinSize = 5
	config.Pool.MaxSize = 2

	expectPanic(t, "min_size", func() {
		mymcp.New(config, testLogger())
	})
}

func TestNewPanicsOnInvalidAllowedRiskLevels(t *testing.T) {
	t.Parallel()
	config := defaultConfig()
	config.Security.AllowedRiskLevels = "LOW,BOGUS"

	expectPanic(t, "allowed_risk_levels", func() {
		mymcp.New(config, testLogger())
	})
}

func TestNewPanicsOnInvalidBlockedPattern(t *testing.T) {
	t.Parallel()
	config := defaultConfig()
	config.Security.BlockedPatterns = []string{"[invalid(regex"}

	expectPanic(t, "blocked_patterns", func() {
		mymcp.New(config, testLogger())
	})
}

func TestNewPanicsOnInvalidSensitiveField(t *testing.T) {
	t.Parallel()
	config := defaultConfig()
	config.Security.SensitiveFields = []string{"[invalid(regex"}

	expectPanic(t, "sensitive_fields", func() {
		mymcp.New(config, testLogger())
	})
}

func TestNewPanicsOnNegativeDefaultTimeout(t *testing.T) {
	t.Parallel()
	config := defaultConfig()
	config.Query.DefaultTimeoutSeconds = -5

	expectPanic(t, "default_timeout_seconds", func() {
		mymcp.New(config, testLogger())
	})
}

func TestNewPanicsOnInvalidTimeoutRule(t *testing.T) {
	t.Parallel()
	config := defaultConfig()
	config.Query.TimeoutRules = []mymcp.TimeoutRule{{Operation: "SELECT", TimeoutSeconds: -1}}

	expectPanic(t, "timeout_rule", func() {
		mymcp.New(config, testLogger())
	})
}

func TestEmptyBlockedPatternsDisablesDefaults(t *testing.T) {
	t.Parallel()
	config := defaultConfig()
	config.Security.BlockedPatterns = []string{}
	p := newTestInstance(t, config)

	// LOAD_FILE matches a default blocked pattern. An explicitly empty
	// list must stay empty rather than falling back to the defaults, so
	// the statement reaches execution instead of being denied.
	output := p.Query(context.Background(), mymcp.QueryInput{SQL: "SELECT LOAD_FILE('/tmp/x')"})
	if output.ErrorType == dberr.CodeSecurityDenied {
		t.Fatalf("expected no security denial, got: %s", output.Error)
	}
}

func TestNewAcceptsMinimalConfig(t *testing.T) {
	t.Parallel()
	p, err := mymcp.New(mymcp.Config{}, testLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Environment() != "development" {
		t.Errorf("expected development environment by default, got %s", p.Environment())
	}
}

func TestNewProductionEnvironment(t *testing.T) {
	t.Parallel()
	config := defaultConfig()
	config.Security.EnvironmentType = "production"
	config.Security.AllowedRiskLevels = ""

	p, err := mymcp.New(config, testLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Environment() != "production" {
		t.Errorf("expected production environment, got %s", p.Environment())
	}
}
