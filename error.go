package gotham

import (
	"errors"
	"fmt"
	"net/http"
)

// Errors
var (
	ErrBadRequest              = NewHTTPError(http.StatusBadRequest)
	ErrUnauthorized            = NewHTTPError(http.StatusUnauthorized)
	ErrForbidden               = NewHTTPError(http.StatusForbidden)
	ErrNotFound                = NewHTTPError(http.StatusNotFound)
	ErrMethodNotAllowed        = NewHTTPError(http.StatusMethodNotAllowed)
	ErrNotAcceptable           = NewHTTPError(http.StatusNotAcceptable)
	ErrUnsupportedMediaType    = NewHTTPError(http.StatusUnsupportedMediaType)
	ErrTooManyRequests         = NewHTTPError(http.StatusTooManyRequests)
	ErrInternalServerError     = NewHTTPError(http.StatusInternalServerError)
	ErrServiceUnavailable      = NewHTTPError(http.StatusServiceUnavailable)
	ErrNextCalledMultipleTimes = errors.New("gotham: next() called multiple times")
	ErrRendererNotRegistered   = errors.New("gotham: renderer not registered")
)

// Build errors, reported by NewRouter before any request is served.
var (
	ErrInvalidSegment     = errors.New("gotham: invalid path segment")
	ErrGlobNotLast        = errors.New("gotham: glob segment must be the last segment")
	ErrDelegationConflict = errors.New("gotham: delegated path cannot share its node")
	ErrTreeFinalized      = errors.New("gotham: routing tree already finalized")
	ErrInvalidMethod      = errors.New("gotham: invalid request method")
	ErrMissingHandler     = errors.New("gotham: route has no handler")
)

// HTTPError represents an error that occurred while handling a request.
type HTTPError struct {
	Code     int   `json:"-"`
	Message  any   `json:"message"`
	Internal error `json:"-"` // Stores the error returned by an external dependency
}

// NewHTTPError creates a new HTTPError instance.
func NewHTTPError(code int, message ...any) *HTTPError {
	he := &HTTPError{code, http.StatusText(code), nil}
	if len(message) > 0 {
		he.Message = message[0]
	}
	return he
}

// NewHTTPErrorWithInternal creates a new HTTPError instance with an internal error set.
func NewHTTPErrorWithInternal(code int, internalError error, message ...any) *HTTPError {
	he := NewHTTPError(code, message...)
	he.Internal = internalError
	return he
}

// Error makes it compatible with `error` interface.
func (he *HTTPError) Error() string {
	if he.Internal == nil {
		return fmt.Sprintf("code=%d, message=%v", he.Code, he.Message)
	}
	return fmt.Sprintf("code=%d, message=%v, internal=%v", he.Code, he.Message, he.Internal)
}

// WithInternal returns clone of HTTPError with err set to HTTPError.Internal field
func (he *HTTPError) WithInternal(err error) *HTTPError {
	return &HTTPError{
		Code:     he.Code,
		Message:  he.Message,
		Internal: err,
	}
}

// Is 按状态码比较，使 errors.Is(err, ErrNotFound) 对任意 404 错误成立。
func (he *HTTPError) Is(target error) bool {
	t, ok := target.(*HTTPError)
	return ok && t.Code == he.Code
}

// Unwrap satisfies the Go 1.13 error wrapper interface.
func (he *HTTPError) Unwrap() error {
	return he.Internal
}

// StatusCode 返回错误对应的状态码，非 HTTPError 或 RouteNonMatch 时为 500。
func StatusCode(err error) int {
	var he *HTTPError
	if errors.As(err, &he) {
		return he.Code
	}
	var nm RouteNonMatch
	if errors.As(err, &nm) {
		return nm.Status()
	}
	return http.StatusInternalServerError
}
