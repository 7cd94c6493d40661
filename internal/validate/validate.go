// Package validate checks tool inputs before they are interpolated into
// metadata statements. Identifiers are restricted hard enough that quoting
// is never needed.
package validate

import (
	"regexp"

	"github.com/querysafe/mysql-mcp/internal/dberr"
)

var (
	identifierRe  = regexp.MustCompile(`^[A-Za-z0-9_]+$`)
	likePatternRe = regexp.MustCompile(`^[A-Za-z0-9_%]+$`)
)

// Identifier checks a table, column, or database name. label names the
// field in the error message.
func Identifier(name, label string) error {
	if name == "" {
		return dberr.Newf(dberr.CodeValidation, "%s must not be empty", label)
	}
	if !identifierRe.MatchString(name) {
		return dberr.Newf(dberr.CodeValidation,
			"%s %q may only contain letters, digits, and underscores", label, name)
	}
	return nil
}

// LikePattern checks a SHOW ... LIKE pattern, which may additionally
// contain the % wildcard.
func LikePattern(pattern, label string) error {
	if pattern == "" {
		return nil
	}
	if !likePatternRe.MatchString(pattern) {
		return dberr.Newf(dberr.CodeValidation,
			"%s %q may only contain letters, digits, underscores, and %%", label, pattern)
	}
	return nil
}

// IntRange checks that value lies in [min, max].
func IntRange(value, min, max int, label string) error {
	if value < min || value > max {
		return dberr.Newf(dberr.CodeValidation,
			"%s must be between %d and %d, got %d", label, min, max, value)
	}
	return nil
}
