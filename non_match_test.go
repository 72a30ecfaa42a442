package gotham

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMethodSet(t *testing.T) {
	s := NewMethodSet("POST", "GET", "PROPFIND", "GET", "MKCOL")
	assert.Equal(t, 4, s.Len())
	assert.True(t, s.Has("GET"))
	assert.True(t, s.Has("PROPFIND"))
	assert.False(t, s.Has("PUT"))
	assert.Equal(t, []string{"GET", "MKCOL", "POST", "PROPFIND"}, s.Methods())

	assert.Equal(t, []string{"DELETE", "GET", "HEAD", "OPTIONS", "PATCH", "POST", "PUT"}, DefaultMethodSet().Methods())

	u := s.Union(NewMethodSet("PUT", "MKCOL"))
	assert.Equal(t, []string{"GET", "MKCOL", "POST", "PROPFIND", "PUT"}, u.Methods())
	i := s.Intersection(NewMethodSet("GET", "PROPFIND", "TRACE"))
	assert.Equal(t, []string{"GET", "PROPFIND"}, i.Methods())
	assert.True(t, i.Equal(NewMethodSet("PROPFIND", "GET")))
}

func TestRouteNonMatch_Precedence(t *testing.T) {
	order := []int{
		http.StatusNotFound,
		http.StatusMethodNotAllowed,
		http.StatusNotAcceptable,
		http.StatusUnsupportedMediaType,
		http.StatusInternalServerError,
	}
	for i := range order {
		for j := range order {
			a, b := NewRouteNonMatch(order[i]), NewRouteNonMatch(order[j])
			want := order[max(i, j)]
			if got := a.Union(b).Status(); got != want {
				t.Fatalf("union(%d, %d) = %d, want %d", order[i], order[j], got, want)
			}
			if got := a.Intersection(b).Status(); got != want {
				t.Fatalf("intersection(%d, %d) = %d, want %d", order[i], order[j], got, want)
			}
		}
	}
}

func TestRouteNonMatch_SameRankIsCommutative(t *testing.T) {
	a := NewRouteNonMatch(http.StatusUnsupportedMediaType)
	b := NewRouteNonMatch(http.StatusRequestEntityTooLarge)
	assert.Equal(t, a.Union(b).Status(), b.Union(a).Status())
	assert.Equal(t, http.StatusRequestEntityTooLarge, a.Union(b).Status())
}

func TestRouteNonMatch_AllowAlgebra(t *testing.T) {
	get := NewRouteNonMatch(http.StatusMethodNotAllowed).WithAllowList("GET")
	post := NewRouteNonMatch(http.StatusMethodNotAllowed).WithAllowList("POST")
	notFound := NewRouteNonMatch(http.StatusNotFound)

	u := get.Union(post)
	assert.Equal(t, http.StatusMethodNotAllowed, u.Status())
	assert.Equal(t, []string{"GET", "POST"}, u.Allow())

	// a 404 carries the full default set, so an intersection keeps the 405 list
	x := get.Intersection(notFound)
	assert.Equal(t, http.StatusMethodNotAllowed, x.Status())
	assert.Equal(t, []string{"GET"}, x.Allow())

	// commutative and associative
	a, b, c := get, post, NewRouteNonMatch(http.StatusNotAcceptable).WithAllowList("PUT")
	assert.True(t, a.Union(b).Equal(b.Union(a)))
	assert.True(t, a.Union(b).Union(c).Equal(a.Union(b.Union(c))))
	assert.True(t, a.Intersection(b).Equal(b.Intersection(a)))
	assert.True(t, a.Intersection(b).Intersection(c).Equal(a.Intersection(b.Intersection(c))))
}

func TestRouteNonMatch_ErrorConversions(t *testing.T) {
	nm := NewRouteNonMatch(http.StatusMethodNotAllowed).WithAllowList("POST", "GET")
	assert.Contains(t, nm.Error(), "allow: GET, POST")

	he := nm.HTTPError()
	assert.Equal(t, http.StatusMethodNotAllowed, he.Code)
	assert.Equal(t, http.StatusMethodNotAllowed, StatusCode(he))

	var back RouteNonMatch
	assert.True(t, errors.As(he, &back))
	assert.True(t, back.Equal(nm))

	assert.Equal(t, http.StatusInternalServerError, AsRouteNonMatch(errors.New("custom")).Status())
	assert.Equal(t, http.StatusNotAcceptable, AsRouteNonMatch(NewRouteNonMatch(http.StatusNotAcceptable)).Status())
}
