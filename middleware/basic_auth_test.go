package middleware

import (
	"encoding/base64"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"go-slim.dev/gotham"
	"go-slim.dev/gotham/nego"
)

func basicHeader(user, password string) map[string]string {
	token := base64.StdEncoding.EncodeToString([]byte(user + ":" + password))
	return map[string]string{nego.HeaderAuthorization: "Basic " + token}
}

func TestBasicAuth_Bcrypt(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)

	mw := BasicAuthWithConfig(BasicAuthConfig{
		Validator: BcryptAccounts(map[string]string{"joe": string(hash)}),
		Realm:     "admin",
	})
	r := newRouter(t, []gotham.MiddlewareFunc{mw}, func(b *gotham.Builder) {
		b.GET("/admin").To(ok)
	})

	rw := performReq(t, r, http.MethodGet, "http://host/admin", basicHeader("joe", "s3cret"))
	assert.Equal(t, http.StatusOK, rw.Code)

	rw = performReq(t, r, http.MethodGet, "http://host/admin", basicHeader("joe", "wrong"))
	assert.Equal(t, http.StatusUnauthorized, rw.Code)
	assert.Equal(t, `basic realm="admin"`, rw.Header().Get(nego.HeaderWWWAuthenticate))

	rw = performReq(t, r, http.MethodGet, "http://host/admin", basicHeader("ann", "s3cret"))
	assert.Equal(t, http.StatusUnauthorized, rw.Code)

	rw = performReq(t, r, http.MethodGet, "http://host/admin", nil)
	assert.Equal(t, http.StatusUnauthorized, rw.Code)
}

func TestParseBasicAuth(t *testing.T) {
	token := base64.StdEncoding.EncodeToString([]byte("a:b:c"))
	user, password, ok := parseBasicAuth("BASIC " + token)
	require.True(t, ok)
	assert.Equal(t, "a", user)
	assert.Equal(t, "b:c", password)

	for _, bad := range []string{"", "Basic", "Bearer abc", "Basic !!!", "Basic " + base64.StdEncoding.EncodeToString([]byte("nocolon"))} {
		_, _, ok := parseBasicAuth(bad)
		assert.False(t, ok, bad)
	}
}
