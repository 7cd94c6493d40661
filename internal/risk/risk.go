// Package risk scores classified SQL statements against a security policy.
// The analyzer is pure: it holds an immutable Policy and derives an
// Assessment from the statement text alone, so concurrent use needs no
// synchronization.
package risk

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/querysafe/mysql-mcp/internal/sqlparse"
)

// Level is a totally ordered risk level.
type Level int

const (
	Low Level = iota
	Medium
	High
	Critical
)

var levelNames = map[Level]string{
	Low:      "LOW",
	Medium:   "MEDIUM",
	High:     "HIGH",
	Critical: "CRITICAL",
}

func (l Level) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return fmt.Sprintf("Level(%d)", int(l))
}

// ParseLevel parses a level name, case-insensitively.
func ParseLevel(s string) (Level, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "LOW":
		return Low, nil
	case "MEDIUM":
		return Medium, nil
	case "HIGH":
		return High, nil
	case "CRITICAL":
		return Critical, nil
	}
	return Low, fmt.Errorf("unknown risk level %q", s)
}

// Environment is the deployment environment the policy protects.
type Environment string

const (
	Development Environment = "development"
	Production  Environment = "production"
)

// ParseEnvironment parses an environment name. Anything that is not
// production is development.
func ParseEnvironment(s string) Environment {
	if strings.EqualFold(strings.TrimSpace(s), string(Production)) {
		return Production
	}
	return Development
}

// Policy is the process-wide security policy. It is loaded once at startup
// and read-only afterwards.
type Policy struct {
	Environment        Environment
	AllowedLevels      map[Level]bool
	MaxStatementLength int
	BlockedPatterns    []*regexp.Regexp
	EnableQueryCheck   bool
	AllowSensitiveInfo bool
	SensitiveFields    []string
}

// AllowedLevelsFrom parses a comma-separated list of risk level names into
// the policy's allowed set. An empty or all-whitespace list counts as
// unconfigured: development falls back to LOW and MEDIUM, production locks
// down to LOW alone.
func AllowedLevelsFrom(csv string, env Environment) (map[Level]bool, error) {
	names := splitNonEmpty(csv)
	if len(names) == 0 {
		if env == Production {
			return map[Level]bool{Low: true}, nil
		}
		return map[Level]bool{Low: true, Medium: true}, nil
	}
	levels := make(map[Level]bool, len(names))
	for _, name := range names {
		level, err := ParseLevel(name)
		if err != nil {
			return nil, err
		}
		levels[level] = true
	}
	return levels, nil
}

// CompilePatterns compiles a list of blocked-pattern expressions with
// case-insensitive matching.
func CompilePatterns(patterns []string) ([]*regexp.Regexp, error) {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return nil, fmt.Errorf("blocked pattern %q: %w", p, err)
		}
		compiled = append(compiled, re)
	}
	return compiled, nil
}

// Impact is a coarse row-impact estimate used for observability, never for
// enforcement.
type Impact struct {
	Operation  string
	Rows       int64
	Unbounded  bool
	NeedsWhere bool
	HasWhere   bool
}

// Assessment is the analyzer's verdict on one statement.
type Assessment struct {
	Statement sqlparse.Statement
	Level     Level
	Dangerous bool
	Allowed   bool
	Impact    Impact
}

// Analyzer scores statements against one fixed policy.
type Analyzer struct {
	policy Policy
}

// NewAnalyzer returns an analyzer bound to policy.
func NewAnalyzer(policy Policy) *Analyzer {
	return &Analyzer{policy: policy}
}

// Policy returns the policy the analyzer was built with.
func (a *Analyzer) Policy() Policy {
	return a.policy
}

// Analyze classifies sql and scores it. The decision list is ordered and
// first match wins, so a blocked-pattern hit on an otherwise harmless
// SELECT still scores CRITICAL.
func (a *Analyzer) Analyze(sql string) Assessment {
	stmt := sqlparse.Classify(sql)
	prod := a.policy.Environment == Production

	dangerous := a.matchesBlocked(stmt.Normalized) || (stmt.MultiStatement && prod)

	var level Level
	invalid := !stmt.Valid
	switch {
	case invalid:
		level = High
		dangerous = true
	case dangerous:
		level = Critical
	case prod && stmt.Operation != "SELECT" && stmt.Category != sqlparse.CategoryMetadata:
		level = Critical
	case prod && stmt.MultiStatement:
		level = High
	case stmt.MultiStatement:
		if stmt.Category == sqlparse.CategoryDDL ||
			(stmt.Category == sqlparse.CategoryDML && stmt.Operation != "SELECT") {
			level = High
		} else {
			level = Medium
		}
	case stmt.Category == sqlparse.CategoryMetadata:
		level = Low
	case stmt.Category == sqlparse.CategoryDDL:
		if stmt.Operation == "DROP" || stmt.Operation == "TRUNCATE" {
			level = Critical
		} else {
			level = High
		}
	case stmt.Operation == "SELECT":
		if prod && !stmt.HasLimit {
			level = Medium
		} else {
			level = Low
		}
	case stmt.Operation == "INSERT":
		level = Medium
	case stmt.Operation == "UPDATE":
		if stmt.HasWhere {
			level = Medium
		} else {
			level = High
		}
	case stmt.Operation == "DELETE":
		if stmt.HasWhere {
			level = Medium
		} else {
			level = Critical
		}
	default:
		level = High
	}

	allowed := a.policy.AllowedLevels[level] && !invalid

	return Assessment{
		Statement: stmt,
		Level:     level,
		Dangerous: dangerous,
		Allowed:   allowed,
		Impact:    a.estimateImpact(stmt),
	}
}

func (a *Analyzer) matchesBlocked(normalized string) bool {
	upper := strings.ToUpper(normalized)
	for _, re := range a.policy.BlockedPatterns {
		if re.MatchString(upper) {
			return true
		}
	}
	return false
}

// estimateImpact guesses how many rows an operation touches. Bounded
// guesses use fixed constants; production mutations and WHERE-less
// UPDATE/DELETE are tagged unbounded instead of given a fake number.
func (a *Analyzer) estimateImpact(stmt sqlparse.Statement) Impact {
	impact := Impact{
		Operation:  stmt.Operation,
		NeedsWhere: stmt.Operation == "UPDATE" || stmt.Operation == "DELETE",
		HasWhere:   stmt.HasWhere,
	}
	switch {
	case stmt.Operation == "SELECT":
		impact.Rows = 100
	case stmt.Category == sqlparse.CategoryMetadata:
		impact.Rows = 100
	case a.policy.Environment == Production:
		impact.Unbounded = true
	case stmt.Operation == "INSERT":
		impact.Rows = 1
	case impact.NeedsWhere && stmt.HasWhere:
		impact.Rows = 1000
	default:
		impact.Unbounded = true
	}
	return impact
}

func splitNonEmpty(csv string) []string {
	var out []string
	for _, part := range strings.Split(csv, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
