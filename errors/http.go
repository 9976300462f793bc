package errors

import "net/http"

// Wire codes for the HTTP error response shape {error, code, details}.
const (
	CodeValidation      = "VALIDATION_ERROR"
	CodeNotFound        = "NOT_FOUND"
	CodeConflict        = "CONFLICT"
	CodeInvalidState    = "INVALID_STATE"
	CodeSecurity        = "SECURITY_VIOLATION"
	CodeNetworkFailure  = "NETWORK_FAILURE"
	CodeTimeout         = "TIMEOUT"
	CodeProviderFailure = "PROVIDER_FAILURE"
	CodeStorageFailure  = "STORAGE_FAILURE"
	CodeSeparation      = "SEPARATION_ERROR"
	CodeDownloader      = "DOWNLOAD_ERROR"
	CodeCancelled       = "CANCELLED"
	CodeInternal        = "INTERNAL_ERROR"
)

// Code returns the UPPER_SNAKE wire code for an error's domain kind.
func Code(err error) string {
	switch {
	case Is(err, ErrValidation):
		return CodeValidation
	case Is(err, ErrNotFound):
		return CodeNotFound
	case Is(err, ErrConflict):
		return CodeConflict
	case Is(err, ErrInvalidState):
		return CodeInvalidState
	case Is(err, ErrAccessDenied):
		return CodeSecurity
	case Is(err, ErrTimeout):
		return CodeTimeout
	case Is(err, ErrNetworkFailure):
		return CodeNetworkFailure
	case Is(err, ErrProviderFailure):
		return CodeProviderFailure
	case Is(err, ErrStorageFailure):
		return CodeStorageFailure
	case Is(err, ErrSeparation):
		return CodeSeparation
	case Is(err, ErrDownloader):
		return CodeDownloader
	case Is(err, ErrCancelled):
		return CodeCancelled
	default:
		return CodeInternal
	}
}

// HTTPStatus maps an error's domain kind to an HTTP status code.
// Path-traversal rejections deliberately surface as 400 rather than 403
// so probes cannot distinguish a blocked path from a malformed one.
func HTTPStatus(err error) int {
	switch {
	case Is(err, ErrValidation), Is(err, ErrInvalidState), Is(err, ErrAccessDenied):
		return http.StatusBadRequest
	case Is(err, ErrNotFound):
		return http.StatusNotFound
	case Is(err, ErrConflict):
		return http.StatusConflict
	case Is(err, ErrNetworkFailure), Is(err, ErrTimeout), Is(err, ErrProviderFailure):
		return http.StatusBadGateway
	case Is(err, ErrCancelled):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
