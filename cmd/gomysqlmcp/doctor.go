package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	mymcp "github.com/querysafe/mysql-mcp"
	"github.com/querysafe/mysql-mcp/internal/risk"
	"github.com/querysafe/mysql-mcp/internal/sanitize"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func runDoctor(cmd *cobra.Command, args []string) error {
	useColor := isTTY(os.Stderr.Fd())
	return doctor(os.Stderr, useColor)
}

func doctor(w io.Writer, useColor bool) error {
	printBanner(w, useColor)
	fmt.Fprintf(w, "gomysqlmcp %s\n\n", version)

	config, ok := doctorValidateConfig(w, useColor)
	if !ok {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Fix the issues above and run 'gomysqlmcp doctor' again.")
		return nil
	}

	doctorCheckConnectivity(w, useColor, config)

	fmt.Fprintln(w)
	printPolicySummary(w, useColor, config)

	fmt.Fprintln(w)
	printAgentSnippets(w, useColor, config)
	return nil
}

// doctorValidateConfig loads the environment configuration and validates it,
// printing check results. Returns the config and true if all checks passed.
func doctorValidateConfig(w io.Writer, useColor bool) (*mymcp.ServerConfig, bool) {
	allPassed := true

	config, err := loadServerConfig()
	if err != nil {
		printCheck(w, useColor, false, fmt.Sprintf("Environment configuration loads: %v", err))
		return nil, false
	}
	printCheck(w, useColor, true, "Environment configuration loads")

	if config.Connection.Database == "" {
		printCheck(w, useColor, false, "MYSQL_DATABASE is set")
		allPassed = false
	} else {
		printCheck(w, useColor, true, fmt.Sprintf("MYSQL_DATABASE is set (%s)", config.Connection.Database))
	}

	if config.Server.Port <= 0 {
		printCheck(w, useColor, false, "PORT is > 0")
		allPassed = false
	} else {
		printCheck(w, useColor, true, fmt.Sprintf("PORT is > 0 (%d)", config.Server.Port))
	}

	if config.Server.HealthCheckEnabled && config.Server.HealthCheckPath == "" {
		printCheck(w, useColor, false, "HEALTH_CHECK_PATH is set (required when HEALTH_CHECK_ENABLED)")
		allPassed = false
	}

	env := risk.ParseEnvironment(config.Security.EnvironmentType)
	if _, err := risk.AllowedLevelsFrom(config.Security.AllowedRiskLevels, env); err != nil {
		printCheck(w, useColor, false, fmt.Sprintf("ALLOWED_RISK_LEVELS parses: %v", err))
		allPassed = false
	} else {
		printCheck(w, useColor, true, "ALLOWED_RISK_LEVELS parses")
	}

	if _, err := risk.CompilePatterns(config.Security.BlockedPatterns); err != nil {
		printCheck(w, useColor, false, fmt.Sprintf("BLOCKED_PATTERNS compile: %v", err))
		allPassed = false
	} else {
		printCheck(w, useColor, true, "BLOCKED_PATTERNS compile")
	}

	if _, err := sanitize.New(config.Security.SensitiveFields); err != nil {
		printCheck(w, useColor, false, fmt.Sprintf("SENSITIVE_INFO_FIELDS compile: %v", err))
		allPassed = false
	} else {
		printCheck(w, useColor, true, "SENSITIVE_INFO_FIELDS compile")
	}

	return config, allPassed
}

// doctorCheckConnectivity opens a short-lived engine and pings the database.
func doctorCheckConnectivity(w io.Writer, useColor bool, config *mymcp.ServerConfig) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	eng, err := mymcp.New(config.Config, zerolog.Nop())
	if err != nil {
		printCheck(w, useColor, false, fmt.Sprintf("Engine configuration accepted: %v", err))
		return
	}
	defer eng.Close(ctx)

	target := fmt.Sprintf("%s@%s:%d/%s",
		config.Connection.User, config.Connection.Host, config.Connection.Port, config.Connection.Database)
	if err := eng.Ping(ctx, ""); err != nil {
		printCheck(w, useColor, false, fmt.Sprintf("Database reachable (%s): %v", target, err))
		return
	}
	printCheck(w, useColor, true, fmt.Sprintf("Database reachable (%s)", target))
}

// printPolicySummary prints the effective security policy.
func printPolicySummary(w io.Writer, useColor bool, config *mymcp.ServerConfig) {
	heading := func(title string) {
		if useColor {
			fmt.Fprintf(w, "\033[1;36m%s\033[0m\n", title)
		} else {
			fmt.Fprintln(w, title)
		}
	}

	heading("Effective Security Policy")
	fmt.Fprintln(w)

	env := risk.ParseEnvironment(config.Security.EnvironmentType)
	fmt.Fprintf(w, "  Environment:         %s\n", env)

	levels, err := risk.AllowedLevelsFrom(config.Security.AllowedRiskLevels, env)
	if err == nil {
		names := make([]string, 0, len(levels))
		for level := range levels {
			names = append(names, level.String())
		}
		sort.Strings(names)
		fmt.Fprintf(w, "  Allowed risk levels: %s\n", strings.Join(names, ", "))
		if config.Security.AllowedRiskLevels == "" && env == risk.Production {
			fmt.Fprintf(w, "                       (ALLOWED_RISK_LEVELS unset: production lockdown)\n")
		}
	}

	fmt.Fprintf(w, "  Max statement size:  %d\n", config.Security.MaxStatementLength)
	fmt.Fprintf(w, "  WHERE clause check:  %t\n", config.Security.EnableQueryCheck)
	fmt.Fprintf(w, "  Mask sensitive info: %t\n", !config.Security.AllowSensitiveInfo)
}

// printCheck prints a colored ✓ or ✗ check line.
func printCheck(w io.Writer, useColor bool, pass bool, msg string) {
	if pass {
		if useColor {
			fmt.Fprintf(w, "  \033[32m✓\033[0m %s\n", msg)
		} else {
			fmt.Fprintf(w, "  ✓ %s\n", msg)
		}
	} else {
		if useColor {
			fmt.Fprintf(w, "  \033[31m✗\033[0m %s\n", msg)
		} else {
			fmt.Fprintf(w, "  ✗ %s\n", msg)
		}
	}
}

// printAgentSnippets prints MCP connection config snippets for various AI agents.
func printAgentSnippets(w io.Writer, useColor bool, config *mymcp.ServerConfig) {
	port := config.Server.Port
	url := fmt.Sprintf("http://localhost:%d/mcp", port)

	heading := func(title string) {
		if useColor {
			fmt.Fprintf(w, "\033[1;36m%s\033[0m\n", title)
		} else {
			fmt.Fprintln(w, title)
		}
	}

	subheading := func(title string) {
		if useColor {
			fmt.Fprintf(w, "  \033[1m%s\033[0m\n", title)
		} else {
			fmt.Fprintf(w, "  %s\n", title)
		}
	}

	heading("Agent Connection Snippets")
	fmt.Fprintln(w)

	// Claude Code
	subheading("Claude Code")
	fmt.Fprintf(w, "  Run this command to add the server:\n\n")
	fmt.Fprintf(w, "    claude mcp add --transport http mysql %s\n\n", url)
	fmt.Fprintf(w, "  Or add to .mcp.json (project scope):\n\n")
	fmt.Fprintf(w, `  {
    "mcpServers": {
      "mysql": {
        "type": "http",
        "url": "%s"
      }
    }
  }
`, url)
	fmt.Fprintln(w)

	// Copilot CLI
	subheading("Copilot CLI (~/.copilot/mcp-config.json)")
	fmt.Fprintf(w, `  {
    "mcpServers": {
      "mysql": {
        "type": "http",
        "url": "%s"
      }
    }
  }
`, url)
	fmt.Fprintln(w)

	// Gemini CLI
	subheading("Gemini CLI (~/.gemini/settings.json)")
	fmt.Fprintf(w, `  {
    "mcpServers": {
      "mysql": {
        "httpUrl": "%s"
      }
    }
  }
`, url)
	fmt.Fprintln(w)

	// Cursor
	subheading("Cursor (.cursor/mcp.json)")
	fmt.Fprintf(w, `  {
    "mcpServers": {
      "mysql": {
        "url": "%s"
      }
    }
  }
`, url)
	fmt.Fprintln(w)

	// Windsurf
	subheading("Windsurf (~/.codeium/windsurf/mcp_config.json)")
	fmt.Fprintf(w, `  {
    "mcpServers": {
      "mysql": {
        "serverUrl": "%s"
      }
    }
  }
`, url)
}
