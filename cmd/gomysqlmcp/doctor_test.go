package main

import (
	"bytes"
	"strings"
	"testing"
)

// Note: Tests using t.Setenv() cannot use t.Parallel() in Go.

func TestDoctorValidateConfigValid(t *testing.T) {
	t.Setenv("MYSQL_DATABASE", "appdb")

	var buf bytes.Buffer
	config, ok := doctorValidateConfig(&buf, false)
	if !ok {
		t.Fatalf("expected all checks to pass:\n%s", buf.String())
	}
	if config == nil {
		t.Fatal("expected config to be returned")
	}
	output := buf.String()

	if strings.Contains(output, "✗") {
		t.Fatalf("expected no failure marks in output:\n%s", output)
	}
	if !strings.Contains(output, "✓") {
		t.Fatalf("expected pass marks (✓) in output:\n%s", output)
	}
	for _, label := range []string{
		"Environment configuration loads",
		"MYSQL_DATABASE is set (appdb)",
		"PORT is > 0 (3000)",
		"ALLOWED_RISK_LEVELS parses",
		"BLOCKED_PATTERNS compile",
		"SENSITIVE_INFO_FIELDS compile",
	} {
		if !strings.Contains(output, label) {
			t.Errorf("expected %q check in output:\n%s", label, output)
		}
	}
}

func TestDoctorMissingDatabase(t *testing.T) {
	t.Setenv("MYSQL_DATABASE", "")

	var buf bytes.Buffer
	if err := doctor(&buf, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	output := buf.String()

	if !strings.Contains(output, "✗") {
		t.Fatalf("expected failure mark (✗) for missing database:\n%s", output)
	}
	if !strings.Contains(output, "Environment configuration loads") {
		t.Fatalf("expected 'Environment configuration loads' check in output:\n%s", output)
	}
	if !strings.Contains(output, "Fix the issues above") {
		t.Fatalf("expected 'Fix the issues above' message in output:\n%s", output)
	}

	// Should not contain agent snippets when configuration fails to load
	if strings.Contains(output, "Agent Connection Snippets") {
		t.Fatalf("expected no agent snippets when configuration is invalid:\n%s", output)
	}
}

func TestDoctorInvalidBlockedPattern(t *testing.T) {
	t.Setenv("MYSQL_DATABASE", "appdb")
	t.Setenv("BLOCKED_PATTERNS", "[invalid(regex")

	var buf bytes.Buffer
	_, ok := doctorValidateConfig(&buf, false)
	if ok {
		t.Fatalf("expected validation to fail:\n%s", buf.String())
	}
	output := buf.String()

	if !strings.Contains(output, "✗") {
		t.Fatalf("expected failure mark (✗) for invalid pattern:\n%s", output)
	}
	if !strings.Contains(output, "BLOCKED_PATTERNS compile") {
		t.Fatalf("expected 'BLOCKED_PATTERNS compile' check in output:\n%s", output)
	}
}

func TestDoctorInvalidRiskLevels(t *testing.T) {
	t.Setenv("MYSQL_DATABASE", "appdb")
	t.Setenv("ALLOWED_RISK_LEVELS", "LOW,BOGUS")

	var buf bytes.Buffer
	_, ok := doctorValidateConfig(&buf, false)
	if ok {
		t.Fatalf("expected validation to fail:\n%s", buf.String())
	}
	output := buf.String()

	if !strings.Contains(output, "ALLOWED_RISK_LEVELS parses") {
		t.Fatalf("expected 'ALLOWED_RISK_LEVELS parses' check in output:\n%s", output)
	}
}

func TestDoctorAgentSnippets(t *testing.T) {
	t.Setenv("MYSQL_DATABASE", "appdb")

	config, err := loadServerConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var buf bytes.Buffer
	printAgentSnippets(&buf, false, config)
	output := buf.String()

	if !strings.Contains(output, "Claude Code") {
		t.Fatalf("expected Claude Code snippet in output:\n%s", output)
	}
	if !strings.Contains(output, "claude mcp add --transport http mysql") {
		t.Fatalf("expected 'claude mcp add --transport http mysql' command in output:\n%s", output)
	}
	// Server name in snippets should be "mysql" for AI agent discoverability
	if !strings.Contains(output, `"mysql"`) {
		t.Fatalf("expected server name 'mysql' in agent snippets:\n%s", output)
	}
	if !strings.Contains(output, "Gemini CLI") {
		t.Fatalf("expected Gemini CLI snippet in output:\n%s", output)
	}
	if !strings.Contains(output, "Cursor") {
		t.Fatalf("expected Cursor snippet in output:\n%s", output)
	}
	if !strings.Contains(output, "Windsurf") {
		t.Fatalf("expected Windsurf snippet in output:\n%s", output)
	}
	if !strings.Contains(output, "Copilot CLI") {
		t.Fatalf("expected Copilot CLI snippet in output:\n%s", output)
	}
}

func TestDoctorPortInSnippets(t *testing.T) {
	t.Setenv("MYSQL_DATABASE", "appdb")
	t.Setenv("PORT", "9999")

	config, err := loadServerConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var buf bytes.Buffer
	printAgentSnippets(&buf, false, config)
	output := buf.String()

	// All agent snippets should use port 9999
	expectedURL := "http://localhost:9999/mcp"
	count := strings.Count(output, expectedURL)
	// 6 occurrences: Claude Code command (1) + Claude Code .mcp.json (1) +
	// Copilot CLI (1) + Gemini CLI (1) + Cursor (1) + Windsurf (1)
	if count != 6 {
		t.Fatalf("expected %s to appear 6 times in agent snippets, found %d times:\n%s", expectedURL, count, output)
	}
}

func TestDoctorPolicySummaryProductionLockdown(t *testing.T) {
	t.Setenv("MYSQL_DATABASE", "appdb")
	t.Setenv("ENV_TYPE", "production")
	t.Setenv("ALLOWED_RISK_LEVELS", "")

	config, err := loadServerConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var buf bytes.Buffer
	printPolicySummary(&buf, false, config)
	output := buf.String()

	if !strings.Contains(output, "Environment:         production") {
		t.Fatalf("expected production environment in summary:\n%s", output)
	}
	if !strings.Contains(output, "Allowed risk levels: LOW") {
		t.Fatalf("expected lockdown level set in summary:\n%s", output)
	}
	if !strings.Contains(output, "production lockdown") {
		t.Fatalf("expected production lockdown note in summary:\n%s", output)
	}
}
