// Package errs defines the structured error taxonomy shared by the
// providers, the stores and the sync orchestrator.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies an error for retry and reporting decisions.
type Kind string

const (
	KindInvalidInput      Kind = "INVALID_INPUT"
	KindNotFound          Kind = "NOT_FOUND"
	KindTransient         Kind = "TRANSIENT"
	KindProviderInvalid   Kind = "PROVIDER_INVALID"
	KindIntegrityConflict Kind = "INTEGRITY_CONFLICT"
	KindInternalAssert    Kind = "INTERNAL_ASSERT"
)

// Error carries the kind, the symbol it concerns when known, and the
// underlying cause.
type Error struct {
	Kind      Kind
	Symbol    string
	Msg       string
	Retryable bool
	Err       error
}

func (e *Error) Error() string {
	s := string(e.Kind)
	if e.Symbol != "" {
		s += " " + e.Symbol
	}
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf extracts the kind of err, or KindInternalAssert for unknown errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternalAssert
}

// IsRetryable reports whether the error may succeed on retry.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}

func Invalid(symbol, format string, args ...any) *Error {
	return &Error{Kind: KindInvalidInput, Symbol: symbol, Msg: fmt.Sprintf(format, args...)}
}

func NotFound(symbol string, err error) *Error {
	return &Error{Kind: KindNotFound, Symbol: symbol, Err: err}
}

func Transient(symbol string, err error) *Error {
	return &Error{Kind: KindTransient, Symbol: symbol, Retryable: true, Err: err}
}

func ProviderInvalid(symbol string, err error) *Error {
	return &Error{Kind: KindProviderInvalid, Symbol: symbol, Err: err}
}

func Conflict(symbol string, err error) *Error {
	return &Error{Kind: KindIntegrityConflict, Symbol: symbol, Retryable: true, Err: err}
}

func Assert(format string, args ...any) *Error {
	return &Error{Kind: KindInternalAssert, Msg: fmt.Sprintf(format, args...)}
}
