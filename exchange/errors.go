// exchange/errors.go
package exchange

import (
	"errors"
	"fmt"
)

// Error represents a structured error with code and optional cause.
type Error struct {
	Code    string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is matching by code. A code also matches every
// ancestor in the refinement chain, so a rate-limit error satisfies
// errors.Is(err, ErrExchangeDown) and errors.Is(err, ErrExchange).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	for code := e.Code; code != ""; code = parentCode[code] {
		if code == t.Code {
			return true
		}
	}
	return false
}

// WrapError creates a new error with the same code but with a cause.
func WrapError(base *Error, cause error) *Error {
	return &Error{
		Code:    base.Code,
		Message: base.Message,
		Cause:   cause,
	}
}

// parentCode records the refinement chain of the error taxonomy.
var parentCode = map[string]string{
	"EXCHANGE_DOWN":         "EXCHANGE",
	"EXCHANGE_RATE_LIMITED": "EXCHANGE_DOWN",
	"PAIR_NOT_FOUND":        "EXCHANGE",
	"PROXY_MISSING_PAIR":    "PAIR_NOT_FOUND",
	"ADAPTER_NOT_FOUND":     "PAIR_NOT_FOUND",
	"ADAPTER_CONFLICT":      "EXCHANGE",
	"ADAPTER_INVALID":       "EXCHANGE",
	"CONFIG_INVALID":        "EXCHANGE",
	"CONFIG_MISSING":        "EXCHANGE",
}

// Predefined errors
var (
	// Resolution errors
	ErrExchange         = &Error{Code: "EXCHANGE", Message: "exchange error"}
	ErrExchangeDown     = &Error{Code: "EXCHANGE_DOWN", Message: "exchange unreachable or returned invalid data"}
	ErrRateLimited      = &Error{Code: "EXCHANGE_RATE_LIMITED", Message: "exchange throttled the request"}
	ErrPairNotFound     = &Error{Code: "PAIR_NOT_FOUND", Message: "pair not supported"}
	ErrProxyMissingPair = &Error{Code: "PROXY_MISSING_PAIR", Message: "no proxy route for pair"}

	// Registry errors
	ErrAdapterNotFound = &Error{Code: "ADAPTER_NOT_FOUND", Message: "adapter not registered"}
	ErrAdapterConflict = &Error{Code: "ADAPTER_CONFLICT", Message: "adapter already registered"}
	ErrAdapterInvalid  = &Error{Code: "ADAPTER_INVALID", Message: "adapter rejected"}

	// Config errors
	ErrConfigInvalid = &Error{Code: "CONFIG_INVALID", Message: "configuration invalid"}
	ErrConfigMissing = &Error{Code: "CONFIG_MISSING", Message: "required configuration missing"}
)

// severityOrder ranks errors for aggregation, most specific last.
var severityOrder = []*Error{ErrPairNotFound, ErrExchangeDown, ErrRateLimited, ErrProxyMissingPair}

// severity ranks an error for failure aggregation. Higher values identify
// the failure cause more precisely.
func severity(err error) int {
	rank := 0
	for i, kind := range severityOrder {
		if errors.Is(err, kind) {
			rank = i + 1
		}
	}
	return rank
}

// kindOf maps an error to its taxonomy sentinel, ErrExchange when unknown.
func kindOf(err error) *Error {
	kind := ErrExchange
	for _, k := range severityOrder {
		if errors.Is(err, k) {
			kind = k
		}
	}
	return kind
}
