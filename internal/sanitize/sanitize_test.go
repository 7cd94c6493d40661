package sanitize

import (
	"testing"
)

func TestMaskRows(t *testing.T) {
	t.Parallel()
	s, err := New(DefaultFieldPatterns)
	if err != nil {
		t.Fatal(err)
	}
	rows := []map[string]interface{}{
		{"id": 1, "name": "alice", "password": "hunter2", "api_key": "abc"},
		{"id": 2, "name": "bob", "password": nil, "user_token": "xyz"},
	}
	got := s.MaskRows(rows)

	if got[0]["password"] != Mask || got[0]["api_key"] != Mask {
		t.Errorf("row 0 = %v, want password and api_key masked", got[0])
	}
	if got[0]["id"] != 1 || got[0]["name"] != "alice" {
		t.Errorf("row 0 = %v, want id and name untouched", got[0])
	}
	if got[1]["password"] != nil {
		t.Errorf("nil password = %v, want nil preserved", got[1]["password"])
	}
	// Substring match: user_token contains "token".
	if got[1]["user_token"] != Mask {
		t.Errorf("user_token = %v, want masked", got[1]["user_token"])
	}
}

func TestMaskRowsCaseInsensitive(t *testing.T) {
	t.Parallel()
	s, err := New([]string{"password"})
	if err != nil {
		t.Fatal(err)
	}
	rows := []map[string]interface{}{{"USER_PASSWORD": "x"}}
	if got := s.MaskRows(rows); got[0]["USER_PASSWORD"] != Mask {
		t.Errorf("USER_PASSWORD = %v, want masked", got[0]["USER_PASSWORD"])
	}
}

func TestMaskRowsNoRules(t *testing.T) {
	t.Parallel()
	s, err := New(nil)
	if err != nil {
		t.Fatal(err)
	}
	if s.HasRules() {
		t.Error("expected no rules")
	}
	rows := []map[string]interface{}{{"password": "kept"}}
	if got := s.MaskRows(rows); got[0]["password"] != "kept" {
		t.Errorf("password = %v, want untouched without rules", got[0]["password"])
	}
}

func TestNewInvalidPattern(t *testing.T) {
	t.Parallel()
	if _, err := New([]string{"("}); err == nil {
		t.Error("expected error for invalid pattern")
	}
}
