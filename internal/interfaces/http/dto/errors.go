package dto

import "net/http"

// API error codes. Format: ERR_<CATEGORY>[_<DESCRIPTION>]

// General error codes
const (
	// ErrCodeUnknown is used when the error type is unknown
	ErrCodeUnknown = "ERR_UNKNOWN"
	// ErrCodeInternal is used for internal server errors
	ErrCodeInternal = "ERR_INTERNAL"
)

// Request error codes
const (
	// ErrCodeValidation is used when request binding rejected one or more fields
	ErrCodeValidation = "ERR_VALIDATION"
	// ErrCodeBadRequest is used for malformed requests
	ErrCodeBadRequest = "ERR_BAD_REQUEST"
	// ErrCodeInvalidInput is used for well-formed requests carrying unusable values
	ErrCodeInvalidInput = "ERR_INVALID_INPUT"
	// ErrCodePayloadTooLarge is used when a request body exceeds the route limit
	ErrCodePayloadTooLarge = "ERR_PAYLOAD_TOO_LARGE"
	// ErrCodeRateLimited is used when a caller exceeded its request budget
	ErrCodeRateLimited = "ERR_RATE_LIMITED"
)

// Resource error codes
const (
	// ErrCodeNotFound is used when a connector, source, channel or run does not exist
	ErrCodeNotFound = "ERR_NOT_FOUND"
	// ErrCodeAlreadyExists is used when a record was already imported
	ErrCodeAlreadyExists = "ERR_ALREADY_EXISTS"
	// ErrCodeConflict is used when a sync or import is already running for the source
	ErrCodeConflict = "ERR_CONFLICT"
	// ErrCodeInvalidState is used when the connector or source state forbids the action
	ErrCodeInvalidState = "ERR_INVALID_STATE"
	// ErrCodeUnauthorized is used when an export token or password is wrong
	ErrCodeUnauthorized = "ERR_UNAUTHORIZED"
)

// Remote service error codes, raised while talking to banks and suppliers
const (
	// ErrCodeConfig is used when a connector or source is misconfigured
	ErrCodeConfig = "ERR_CONFIG"
	// ErrCodeUpstreamAuth is used when a remote API rejected the stored credentials
	ErrCodeUpstreamAuth = "ERR_UPSTREAM_AUTH"
	// ErrCodeUpstreamUnavailable is used when a remote API could not be reached
	ErrCodeUpstreamUnavailable = "ERR_UPSTREAM_UNAVAILABLE"
	// ErrCodeUpstreamRateLimited is used when a remote API kept answering 429
	ErrCodeUpstreamRateLimited = "ERR_UPSTREAM_RATE_LIMITED"
	// ErrCodeUpstreamRejected is used for any other remote 4xx answer
	ErrCodeUpstreamRejected = "ERR_UPSTREAM_REJECTED"
	// ErrCodeDataError is used when a remote payload could not be parsed
	ErrCodeDataError = "ERR_DATA"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeUnknown:  http.StatusInternalServerError,
	ErrCodeInternal: http.StatusInternalServerError,

	ErrCodeValidation:      http.StatusBadRequest,
	ErrCodeBadRequest:      http.StatusBadRequest,
	ErrCodeInvalidInput:    http.StatusBadRequest,
	ErrCodePayloadTooLarge: http.StatusRequestEntityTooLarge,
	ErrCodeRateLimited:     http.StatusTooManyRequests,

	ErrCodeNotFound:      http.StatusNotFound,
	ErrCodeAlreadyExists: http.StatusConflict,
	ErrCodeConflict:      http.StatusConflict,
	ErrCodeInvalidState:  http.StatusUnprocessableEntity,
	ErrCodeUnauthorized:  http.StatusUnauthorized,

	// A misconfigured connector is the caller's to fix; remote failures are gateway errors
	ErrCodeConfig:              http.StatusUnprocessableEntity,
	ErrCodeUpstreamAuth:        http.StatusBadGateway,
	ErrCodeUpstreamUnavailable: http.StatusServiceUnavailable,
	ErrCodeUpstreamRateLimited: http.StatusServiceUnavailable,
	ErrCodeUpstreamRejected:    http.StatusBadGateway,
	ErrCodeDataError:           http.StatusBadGateway,
}

// GetHTTPStatus returns the HTTP status code for an error code.
// Unknown codes answer 500.
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DomainErrorCodes maps shared.DomainError codes to API codes
var DomainErrorCodes = map[string]string{
	"NOT_FOUND":         ErrCodeNotFound,
	"ALREADY_EXISTS":    ErrCodeAlreadyExists,
	"INVALID_INPUT":     ErrCodeInvalidInput,
	"INVALID_STATE":     ErrCodeInvalidState,
	"VALIDATION_ERROR":  ErrCodeValidation,
	"BAD_REQUEST":       ErrCodeBadRequest,
	"INTERNAL_ERROR":    ErrCodeInternal,
	"CONFIG_ERROR":      ErrCodeConfig,
	"NETWORK_ERROR":     ErrCodeUpstreamUnavailable,
	"AUTH_ERROR":        ErrCodeUpstreamAuth,
	"RATE_LIMIT_ERROR":  ErrCodeUpstreamRateLimited,
	"DATA_ERROR":        ErrCodeDataError,
	"DUPLICATE_IGNORED": ErrCodeAlreadyExists,
	"REMOTE_ERROR":      ErrCodeUpstreamRejected,
}

// NormalizeErrorCode converts a domain error code to the API format.
// API codes and unknown codes are returned as-is.
func NormalizeErrorCode(code string) string {
	if apiCode, ok := DomainErrorCodes[code]; ok {
		return apiCode
	}
	return code
}
