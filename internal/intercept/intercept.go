// Package intercept is the sole authorization gate in front of statement
// execution. Nothing reaches the database without passing Admit first.
package intercept

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/querysafe/mysql-mcp/internal/dberr"
	"github.com/querysafe/mysql-mcp/internal/risk"
	"github.com/querysafe/mysql-mcp/internal/sqlparse"
)

// Interceptor admits or denies statements against one fixed policy.
type Interceptor struct {
	analyzer *risk.Analyzer
	logger   zerolog.Logger
}

// New returns an interceptor that scores statements with analyzer and logs
// admission decisions to logger.
func New(analyzer *risk.Analyzer, logger zerolog.Logger) *Interceptor {
	return &Interceptor{analyzer: analyzer, logger: logger}
}

// Admit decides whether sql may execute. A nil return authorizes
// execution; any non-nil return is a *dberr.Error with code
// SECURITY_DENIED whose message names the violated rule. Checks run in
// order and stop at the first failure.
func (ic *Interceptor) Admit(sql string) (risk.Assessment, error) {
	trimmed := strings.TrimSpace(sql)
	if trimmed == "" {
		return risk.Assessment{}, dberr.New(dberr.CodeSecurityDenied, "empty SQL statement")
	}

	policy := ic.analyzer.Policy()
	if max := policy.MaxStatementLength; max > 0 && len(sql) > max {
		return risk.Assessment{}, dberr.Newf(dberr.CodeSecurityDenied,
			"SQL statement length %d exceeds maximum %d", len(sql), max)
	}

	assessment := ic.analyzer.Analyze(sql)
	stmt := assessment.Statement

	if !stmt.Valid {
		return assessment, dberr.New(dberr.CodeSecurityDenied,
			"statement could not be classified")
	}
	if !sqlparse.Supported(stmt.Operation) {
		return assessment, dberr.Newf(dberr.CodeSecurityDenied,
			"unsupported operation %s", stmt.Operation)
	}
	if assessment.Dangerous {
		return assessment, dberr.Newf(dberr.CodeSecurityDenied,
			"dangerous operation blocked: %s", stmt.Operation)
	}
	if !assessment.Allowed {
		return assessment, dberr.Newf(dberr.CodeSecurityDenied,
			"operation %s has risk level %s, allowed levels: %s",
			stmt.Operation, assessment.Level, formatLevels(policy.AllowedLevels))
	}
	if policy.EnableQueryCheck && assessment.Impact.NeedsWhere && !stmt.HasWhere {
		return assessment, dberr.Newf(dberr.CodeSecurityDenied,
			"%s without WHERE clause is not permitted", stmt.Operation)
	}

	ic.logger.Info().
		Str("operation", stmt.Operation).
		Str("risk_level", assessment.Level.String()).
		Strs("tables", stmt.Tables).
		Msg("Statement admitted")
	return assessment, nil
}

func formatLevels(levels map[risk.Level]bool) string {
	names := make([]string, 0, len(levels))
	for level, ok := range levels {
		if ok {
			names = append(names, level.String())
		}
	}
	sort.Slice(names, func(i, j int) bool {
		li, _ := risk.ParseLevel(names[i])
		lj, _ := risk.ParseLevel(names[j])
		return li < lj
	})
	if len(names) == 0 {
		return "(none)"
	}
	return fmt.Sprintf("[%s]", strings.Join(names, ", "))
}
