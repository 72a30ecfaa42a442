package gotham

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPError(t *testing.T) {
	he := NewHTTPError(http.StatusNotFound)
	assert.Equal(t, http.StatusText(http.StatusNotFound), he.Message)
	assert.Equal(t, "code=404, message=Not Found", he.Error())

	inner := errors.New("disk full")
	wrapped := NewHTTPError(http.StatusInsufficientStorage, "no space").WithInternal(inner)
	assert.Equal(t, "code=507, message=no space, internal=disk full", wrapped.Error())
	assert.ErrorIs(t, wrapped, inner)

	// 按状态码比较
	assert.ErrorIs(t, NewHTTPError(http.StatusNotFound, "user 7"), ErrNotFound)
	assert.NotErrorIs(t, ErrNotFound, ErrForbidden)
}

func TestStatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"http error", ErrForbidden, http.StatusForbidden},
		{"wrapped http error", fmt.Errorf("limiter: %w", ErrTooManyRequests), http.StatusTooManyRequests},
		{"non-match", NewRouteNonMatch(http.StatusNotAcceptable), http.StatusNotAcceptable},
		{"non-match converted", NewRouteNonMatch(http.StatusMethodNotAllowed).WithAllowList("GET").HTTPError(), http.StatusMethodNotAllowed},
		{"build error", ErrGlobNotLast, http.StatusInternalServerError},
		{"plain", errors.New("plain"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusCode(tt.err))
		})
	}
}

func TestRouteNonMatch_HTTPErrorKeepsAllowList(t *testing.T) {
	nm := NewRouteNonMatch(http.StatusMethodNotAllowed).WithAllowList("POST", "GET")
	he := nm.HTTPError()
	assert.ErrorIs(t, he, ErrMethodNotAllowed)
	assert.Equal(t, []string{"GET", "POST"}, AsRouteNonMatch(he).Allow())

	// 自定义匹配器返回的其它错误视为 500
	assert.Equal(t, http.StatusInternalServerError, AsRouteNonMatch(errors.New("matcher failed")).Status())
}
