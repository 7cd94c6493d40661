// Package sanitize masks sensitive values in result rows before they leave
// the server. Matching is by column name, so a password survives only when
// the operator explicitly allows sensitive output.
package sanitize

import (
	"fmt"
	"regexp"
)

// Mask replaces every matched value.
const Mask = "***"

// DefaultFieldPatterns cover the common credential column names.
var DefaultFieldPatterns = []string{
	"password", "passwd", "secret", "token", "api_key", "private_key", "credential",
}

// Sanitizer masks row values whose column name matches a configured
// pattern.
type Sanitizer struct {
	fields []*regexp.Regexp
}

// New creates a Sanitizer from field-name patterns, matched
// case-insensitively as substrings. Returns an error on invalid patterns.
func New(fieldPatterns []string) (*Sanitizer, error) {
	compiled := make([]*regexp.Regexp, len(fieldPatterns))
	for i, p := range fieldPatterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return nil, fmt.Errorf("sanitize: invalid field pattern %q: %v", p, err)
		}
		compiled[i] = re
	}
	return &Sanitizer{fields: compiled}, nil
}

// HasRules returns true if the sanitizer has any patterns configured.
func (s *Sanitizer) HasRules() bool {
	return len(s.fields) > 0
}

// MaskRows replaces the value of every sensitive column in place and
// returns rows for chaining. Nil values stay nil so callers can still tell
// absent from masked.
func (s *Sanitizer) MaskRows(rows []map[string]interface{}) []map[string]interface{} {
	if !s.HasRules() {
		return rows
	}
	for _, row := range rows {
		for k, v := range row {
			if v == nil {
				continue
			}
			if s.sensitive(k) {
				row[k] = Mask
			}
		}
	}
	return rows
}

func (s *Sanitizer) sensitive(column string) bool {
	for _, re := range s.fields {
		if re.MatchString(column) {
			return true
		}
	}
	return false
}
