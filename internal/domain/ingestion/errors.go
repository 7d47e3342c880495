package ingestion

import (
	"errors"
	"fmt"
)

// ErrorKind classifies an ingestion failure
type ErrorKind string

const (
	KindAuth            ErrorKind = "AUTH_ERROR"
	KindConfigInactive  ErrorKind = "CONFIG_INACTIVE"
	KindPayloadSyntax   ErrorKind = "PAYLOAD_SYNTAX_ERROR"
	KindIdentityMissing ErrorKind = "IDENTITY_MISSING"
	KindDownstreamWrite ErrorKind = "DOWNSTREAM_WRITE_ERROR"
	KindUnexpected      ErrorKind = "UNEXPECTED_ERROR"
)

// Error is a classified ingestion failure. Message is safe to return to the
// sender; the wrapped cause is for logs only.
type Error struct {
	Kind    ErrorKind
	Message string
	// ReceivedFields lists top-level payload keys for diagnostics
	ReceivedFields []string
	cause          error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause
func (e *Error) Unwrap() error {
	return e.cause
}

// Is matches errors of the same kind
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return t.Kind == e.Kind
	}
	return false
}

// NewError creates a classified error
func NewError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// WrapError creates a classified error around cause
func WrapError(kind ErrorKind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

// KindOf returns the kind of err, or KindUnexpected for unclassified errors
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnexpected
}

// Sentinels for errors.Is checks
var (
	ErrAuth            = NewError(KindAuth, "invalid or missing integration token")
	ErrConfigInactive  = NewError(KindConfigInactive, "integration is inactive")
	ErrPayloadSyntax   = NewError(KindPayloadSyntax, "payload could not be parsed")
	ErrIdentityMissing = NewError(KindIdentityMissing, "payload has no name, phone or email")
	ErrDownstreamWrite = NewError(KindDownstreamWrite, "failed to persist lead")
	ErrUnexpected      = NewError(KindUnexpected, "unexpected error")
)
