package sandbox

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies a session failure.
type Kind int

const (
	KindRuntimeDatabase Kind = iota
	KindWrongNumberOfStatements
	KindResourceLimitExceeded
	KindTimeLimitExceeded
	KindCompilation
	KindPoolExhausted
	KindAdminConnection
)

func (k Kind) String() string {
	switch k {
	case KindWrongNumberOfStatements:
		return "wrong_number_of_statements"
	case KindResourceLimitExceeded:
		return "resource_limit_exceeded"
	case KindTimeLimitExceeded:
		return "time_limit_exceeded"
	case KindCompilation:
		return "compilation_error"
	case KindPoolExhausted:
		return "pool_exhausted"
	case KindAdminConnection:
		return "admin_connection_error"
	default:
		return "runtime_database_error"
	}
}

// ORA-03156: OCI call timed out.
const callTimeoutCode = 3156

// Error is the single failure type returned by session operations.
type Error struct {
	Kind      Kind
	State     State
	Message   string
	Statement string

	// Diagnostics holds the USER_ERRORS rows of a failed compilation.
	Diagnostics *ShapedTable

	Err error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	return fmt.Sprintf("%s at %s: %s", e.Kind, e.State, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// AsError extracts a *Error from err.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

func newError(kind Kind, statement string, err error) *Error {
	e := &Error{Kind: kind, Statement: statement, Err: err}
	if err != nil {
		e.Message = err.Error()
	}
	return e
}

// withStatement tags a database error with the statement that raised it.
func withStatement(err error, statement string) error {
	if err == nil {
		return nil
	}
	if e, ok := AsError(err); ok {
		if e.Statement == "" {
			e.Statement = statement
		}
		return e
	}
	return newError(KindRuntimeDatabase, statement, err)
}

func resourceLimit(statement, format string, args ...interface{}) *Error {
	return &Error{
		Kind:      KindResourceLimitExceeded,
		Statement: statement,
		Message:   fmt.Sprintf(format, args...),
	}
}

func wrongNumberOfStatements(statement string, err error) *Error {
	return newError(KindWrongNumberOfStatements, statement, err)
}

// classify turns any failure raised while in state into a *Error. A timeout
// raised by the submitted code is always a time limit verdict.
func classify(state State, err error) *Error {
	e, ok := AsError(err)
	if !ok {
		e = newError(KindRuntimeDatabase, "", err)
	}
	e.State = state

	switch {
	case (state == ExecuteUserCode || state == CompileCheck) && isTimeout(err):
		e.Kind = KindTimeLimitExceeded
	case state == GetAdminConnection && e.Kind == KindRuntimeDatabase:
		e.Kind = KindAdminConnection
	}
	return e
}

type oracleCoder interface {
	Code() int
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var oe oracleCoder
	if errors.As(err, &oe) {
		return oe.Code() == callTimeoutCode
	}
	return false
}
