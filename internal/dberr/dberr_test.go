package dberr

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
)

func TestErrorWrapping(t *testing.T) {
	t.Parallel()
	cause := errors.New("underlying")
	err := Wrap(cause, CodeQueryFailed, "query execution failed")

	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to see the cause")
	}
	if GetCode(err) != CodeQueryFailed {
		t.Errorf("GetCode = %s, want %s", GetCode(err), CodeQueryFailed)
	}
	if GetMessage(err) != "query execution failed" {
		t.Errorf("GetMessage = %q", GetMessage(err))
	}

	wrapped := fmt.Errorf("handler: %w", err)
	if GetCode(wrapped) != CodeQueryFailed {
		t.Errorf("GetCode through fmt wrap = %s, want %s", GetCode(wrapped), CodeQueryFailed)
	}
}

func TestGetCodeUncoded(t *testing.T) {
	t.Parallel()
	if got := GetCode(errors.New("plain")); got != CodeQueryFailed {
		t.Errorf("GetCode(plain) = %s, want %s", got, CodeQueryFailed)
	}
	if got := GetCode(nil); got != "" {
		t.Errorf("GetCode(nil) = %q, want empty", got)
	}
}

func TestClassifyConnection(t *testing.T) {
	t.Parallel()
	cases := []struct {
		err  error
		want string
	}{
		{&mysql.MySQLError{Number: 1045, Message: "Access denied for user"}, CodeAuthFailed},
		{&mysql.MySQLError{Number: 1044, Message: "Access denied for user to database"}, CodeAuthFailed},
		{&mysql.MySQLError{Number: 1049, Message: "Unknown database 'nope'"}, CodeDatabaseNotFound},
		{&mysql.MySQLError{Number: 1251, Message: "Client does not support authentication protocol"}, CodeAuthPlugin},
		{errors.New("dial tcp 127.0.0.1:3306: connection refused"), CodeServerUnreachable},
		{errors.New("Error 2003: Can't connect to MySQL server"), CodeServerUnreachable},
		{errors.New("something else entirely"), CodeConnectionFailed},
	}
	for _, tc := range cases {
		if got := ClassifyConnection(tc.err); got.Code != tc.want {
			t.Errorf("ClassifyConnection(%v) = %s, want %s", tc.err, got.Code, tc.want)
		}
	}
	if ClassifyConnection(nil) != nil {
		t.Error("ClassifyConnection(nil) should be nil")
	}
}

func TestClassifyConnectionKeepsCoded(t *testing.T) {
	t.Parallel()
	orig := New(CodeResourceTimeout, "timed out")
	if got := ClassifyConnection(fmt.Errorf("wrap: %w", orig)); got.Code != CodeResourceTimeout {
		t.Errorf("code = %s, want existing %s preserved", got.Code, CodeResourceTimeout)
	}
}

func TestClassifyQuery(t *testing.T) {
	t.Parallel()
	if got := ClassifyQuery(context.DeadlineExceeded); got.Code != CodeResourceTimeout {
		t.Errorf("deadline = %s, want %s", got.Code, CodeResourceTimeout)
	}

	serverErr := &mysql.MySQLError{Number: 1146, Message: "Table 'db.nope' doesn't exist"}
	got := ClassifyQuery(serverErr)
	if got.Code != CodeQueryFailed {
		t.Errorf("server error code = %s, want %s", got.Code, CodeQueryFailed)
	}
	if got.Message != serverErr.Message {
		t.Errorf("message = %q, want server message preserved", got.Message)
	}

	// Connection-level numbers are re-classified even mid-query.
	if got := ClassifyQuery(&mysql.MySQLError{Number: 1045}); got.Code != CodeAuthFailed {
		t.Errorf("auth mid-query = %s, want %s", got.Code, CodeAuthFailed)
	}
}
