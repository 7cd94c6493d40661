package validate

import (
	"testing"

	"github.com/querysafe/mysql-mcp/internal/dberr"
)

func TestIdentifier(t *testing.T) {
	t.Parallel()
	for _, name := range []string{"users", "user_accounts", "Table1", "_hidden"} {
		if err := Identifier(name, "table name"); err != nil {
			t.Errorf("Identifier(%q) = %v, want nil", name, err)
		}
	}
	for _, name := range []string{"", "users; DROP TABLE x", "a.b", "na-me", "`users`"} {
		err := Identifier(name, "table name")
		if err == nil {
			t.Errorf("Identifier(%q) = nil, want error", name)
			continue
		}
		if code := dberr.GetCode(err); code != dberr.CodeValidation {
			t.Errorf("Identifier(%q) code = %s, want %s", name, code, dberr.CodeValidation)
		}
	}
}

func TestLikePattern(t *testing.T) {
	t.Parallel()
	for _, p := range []string{"", "user%", "%_log", "exact_name"} {
		if err := LikePattern(p, "pattern"); err != nil {
			t.Errorf("LikePattern(%q) = %v, want nil", p, err)
		}
	}
	for _, p := range []string{"user'; --", "a b", `x\y`} {
		if err := LikePattern(p, "pattern"); err == nil {
			t.Errorf("LikePattern(%q) = nil, want error", p)
		}
	}
}

func TestIntRange(t *testing.T) {
	t.Parallel()
	if err := IntRange(50, 1, 100, "page size"); err != nil {
		t.Errorf("IntRange(50) = %v, want nil", err)
	}
	if err := IntRange(0, 1, 100, "page size"); err == nil {
		t.Error("IntRange(0) = nil, want error")
	}
	if err := IntRange(101, 1, 100, "page size"); err == nil {
		t.Error("IntRange(101) = nil, want error")
	}
}
