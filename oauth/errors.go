package oauth

import (
	"fmt"
	"net/http"
)

// Kind classifies an authorization-flow failure.
type Kind int

const (
	// KindMissingConfiguration: required client id/secret absent at
	// request time. Fatal for the route.
	KindMissingConfiguration Kind = iota

	// KindProviderError: the identity provider redirected back with an
	// error query parameter. No token exchange was attempted.
	KindProviderError

	// KindInvalidState: the callback state parameter was absent,
	// mismatched, or already consumed. Rejected before any token
	// exchange network call.
	KindInvalidState

	// KindTokenExchange: the token endpoint responded with an OAuth
	// error object (RFC 6749 §5.2) or could not be reached.
	KindTokenExchange

	// KindUserFetch: the user-info endpoint was unreachable or returned
	// nothing usable.
	KindUserFetch
)

func (k Kind) String() string {
	switch k {
	case KindMissingConfiguration:
		return "missing_configuration"
	case KindProviderError:
		return "provider_error"
	case KindInvalidState:
		return "invalid_state"
	case KindTokenExchange:
		return "token_exchange_error"
	case KindUserFetch:
		return "user_fetch_failure"
	default:
		return "unknown"
	}
}

// Status returns the default HTTP status for the kind.
func (k Kind) Status() int {
	switch k {
	case KindProviderError, KindInvalidState, KindTokenExchange:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// Error is a typed authorization-flow failure.
type Error struct {
	Kind     Kind
	Provider string
	Message  string
	Err      error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("oauth %s: %s: %s", e.Provider, e.Kind, e.Message)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Status returns the default HTTP status for the error.
func (e *Error) Status() int {
	return e.Kind.Status()
}
