// Package dberr provides the coded error taxonomy every failure crosses
// the tool boundary as. Callers receive a stable code plus a message with
// enough guidance to correct the request; raw driver errors never escape.
package dberr

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// Error codes surfaced to callers in the error_type field.
const (
	CodeValidation        = "VALIDATION_ERROR"
	CodeSecurityDenied    = "SECURITY_DENIED"
	CodeAuthFailed        = "AUTH_FAILED"
	CodeDatabaseNotFound  = "DATABASE_NOT_FOUND"
	CodeServerUnreachable = "SERVER_UNREACHABLE"
	CodeAuthPlugin        = "AUTH_PLUGIN_UNSUPPORTED"
	CodeConnectionFailed  = "CONNECTION_FAILED"
	CodeQueryFailed       = "QUERY_FAILED"
	CodeResourceTimeout   = "RESOURCE_TIMEOUT"
)

// Error is a coded error. Code identifies the failure kind for callers,
// Message is human-readable, Cause keeps the underlying error for logs.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Cause   error  `json:"-"`
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is compares errors by code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New creates an Error with the given code and message.
func New(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates an Error with a formatted message.
func Newf(code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps err with a code and message. Returns nil for a nil err.
func Wrap(err error, code, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, Cause: err}
}

// GetCode extracts the code from err, or CodeQueryFailed when err carries
// no taxonomy code.
func GetCode(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeQueryFailed
}

// GetMessage extracts the caller-facing message from err.
func GetMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// MySQL server error numbers that map onto the connection taxonomy.
const (
	erDBAccessDenied    = 1044
	erAccessDenied      = 1045
	erBadDB             = 1049
	erNotSupportedAuth  = 1251
	erPluginCannotLoad  = 2059
	erAccessDeniedNoPwd = 1698
)

// ClassifyConnection maps a driver-level connection failure into the
// taxonomy. Auth, unknown-database, and auth-plugin failures are detected
// from the MySQL error number; network failures from the transport error.
// Anything else becomes a generic CONNECTION_FAILED.
func ClassifyConnection(err error) *Error {
	if err == nil {
		return nil
	}
	var coded *Error
	if errors.As(err, &coded) {
		return coded
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case erAccessDenied, erDBAccessDenied, erAccessDeniedNoPwd:
			return Wrap(err, CodeAuthFailed, "access denied, check the configured user and password")
		case erBadDB:
			return Wrap(err, CodeDatabaseNotFound, "the configured database does not exist")
		case erNotSupportedAuth, erPluginCannotLoad:
			return Wrap(err, CodeAuthPlugin, "authentication plugin not supported, switch the user to mysql_native_password")
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, mysql.ErrInvalidConn) {
		return Wrap(err, CodeServerUnreachable, "cannot reach the MySQL server, check that it is running")
	}

	// Older server builds report some of these only as message text.
	msg := err.Error()
	switch {
	case strings.Contains(msg, "Access denied"):
		return Wrap(err, CodeAuthFailed, "access denied, check the configured user and password")
	case strings.Contains(msg, "Unknown database"):
		return Wrap(err, CodeDatabaseNotFound, "the configured database does not exist")
	case strings.Contains(msg, "connection refused") || strings.Contains(msg, "Can't connect"):
		return Wrap(err, CodeServerUnreachable, "cannot reach the MySQL server, check that it is running")
	case strings.Contains(msg, "Authentication plugin"):
		return Wrap(err, CodeAuthPlugin, "authentication plugin not supported, switch the user to mysql_native_password")
	}

	return Wrap(err, CodeConnectionFailed, "database connection failed")
}

// ClassifyQuery maps a failure during statement execution. Timeouts become
// RESOURCE_TIMEOUT; connection-level failures are re-classified; the rest
// are QUERY_FAILED with the server message preserved for the caller.
func ClassifyQuery(err error) *Error {
	if err == nil {
		return nil
	}
	var coded *Error
	if errors.As(err, &coded) {
		return coded
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Wrap(err, CodeResourceTimeout, "operation exceeded its timeout")
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case erAccessDenied, erDBAccessDenied, erBadDB, erNotSupportedAuth, erPluginCannotLoad:
			return ClassifyConnection(err)
		}
		return Wrap(err, CodeQueryFailed, myErr.Message)
	}
	return Wrap(err, CodeQueryFailed, "query execution failed")
}
