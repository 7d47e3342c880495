package dto

import "net/http"

// Error code constants organized by category
// Format: ERR_<CATEGORY>_<DESCRIPTION>

// General error codes
const (
	// ErrCodeUnknown is used when the error type is unknown
	ErrCodeUnknown = "ERR_UNKNOWN"
	// ErrCodeInternal is used for internal server errors
	ErrCodeInternal = "ERR_INTERNAL"
)

// Authentication error codes
const (
	// ErrCodeUnauthorized is used when the integration token is missing or unknown
	ErrCodeUnauthorized = "ERR_UNAUTHORIZED"
	// ErrCodeIntegrationInactive is used when the token matches an inactive integration
	ErrCodeIntegrationInactive = "ERR_INTEGRATION_INACTIVE"
)

// Payload error codes
const (
	// ErrCodeInvalidPayload is used when the body cannot be parsed
	ErrCodeInvalidPayload = "ERR_INVALID_PAYLOAD"
	// ErrCodeMissingIdentity is used when no name, phone or email was resolved
	ErrCodeMissingIdentity = "ERR_MISSING_IDENTITY"
	// ErrCodeRequestTooLarge is used when the body exceeds the configured limit
	ErrCodeRequestTooLarge = "ERR_REQUEST_TOO_LARGE"
)

// Storage error codes
const (
	// ErrCodeWriteFailed is used when a lead could not be read or written
	ErrCodeWriteFailed = "ERR_WRITE_FAILED"
	// ErrCodeUnavailable is used when a dependency such as the database is down
	ErrCodeUnavailable = "ERR_UNAVAILABLE"
)

// Routing error codes
const (
	// ErrCodeNotFound is used for unknown routes
	ErrCodeNotFound = "ERR_NOT_FOUND"
	// ErrCodeMethodNotAllowed is used when the route exists under another method
	ErrCodeMethodNotAllowed = "ERR_METHOD_NOT_ALLOWED"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	// General errors
	ErrCodeUnknown:  http.StatusInternalServerError,
	ErrCodeInternal: http.StatusInternalServerError,

	// Auth errors. An inactive integration is reported like a bad token.
	ErrCodeUnauthorized:        http.StatusUnauthorized,
	ErrCodeIntegrationInactive: http.StatusUnauthorized,

	// Payload errors -> 400 Bad Request
	ErrCodeInvalidPayload:  http.StatusBadRequest,
	ErrCodeMissingIdentity: http.StatusBadRequest,
	ErrCodeRequestTooLarge: http.StatusRequestEntityTooLarge,

	// Storage errors
	ErrCodeWriteFailed: http.StatusInternalServerError,
	ErrCodeUnavailable: http.StatusServiceUnavailable,

	// Routing errors
	ErrCodeNotFound:         http.StatusNotFound,
	ErrCodeMethodNotAllowed: http.StatusMethodNotAllowed,
}

// GetHTTPStatus returns the HTTP status code for an error code
// Returns 500 Internal Server Error if the error code is not found
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}
