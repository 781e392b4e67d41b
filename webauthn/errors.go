package webauthn

import (
	"fmt"
	"net/http"
)

// Kind classifies a ceremony failure.
type Kind int

const (
	// KindValidation: the request body was malformed or missing required
	// fields. No ceremony state was consumed.
	KindValidation Kind = iota

	// KindVerification: the authenticator response did not verify
	// against the pending challenge, or no such challenge exists.
	KindVerification

	// KindExpiredAttempt: a challenge for the attempt existed but its
	// time window has passed. Distinct from KindVerification so clients
	// can prompt a retry instead of treating it as a bad credential.
	KindExpiredAttempt

	// KindMissingConfiguration: the relying party could not be
	// constructed for this request.
	KindMissingConfiguration
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation_error"
	case KindVerification:
		return "verification_failed"
	case KindExpiredAttempt:
		return "attempt_expired"
	case KindMissingConfiguration:
		return "missing_configuration"
	default:
		return "unknown"
	}
}

// Status returns the default HTTP status for the kind.
func (k Kind) Status() int {
	if k == KindMissingConfiguration {
		return http.StatusInternalServerError
	}
	return http.StatusBadRequest
}

// Error is a typed ceremony failure.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("webauthn: %s: %s", e.Kind, e.Message)
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
