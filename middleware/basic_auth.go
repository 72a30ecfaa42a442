package middleware

import (
	"encoding/base64"
	"net/http"
	"strconv"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"go-slim.dev/gotham"
	"go-slim.dev/gotham/nego"
)

// BasicAuthValidator defines a function to validate BasicAuth credentials.
type BasicAuthValidator func(c gotham.Context, user, password string) (bool, error)

// BasicAuthConfig defines the config for BasicAuth middleware.
type BasicAuthConfig struct {
	Skipper Skipper
	// Validator is a function to validate BasicAuth credentials.
	// Required.
	Validator BasicAuthValidator
	// Realm is a string to define realm attribute of BasicAuth.
	// Default value "Restricted".
	Realm string
}

const basicScheme = "basic"

// DefaultBasicAuthRealm 默认的认证域
const DefaultBasicAuthRealm = "Restricted"

// BasicAuth returns an BasicAuth middleware.
//
// For valid credentials it calls the next handler.
// For missing or invalid credentials, it sends "401 - Unauthorized" response.
func BasicAuth(fn BasicAuthValidator) gotham.MiddlewareFunc {
	return BasicAuthWithConfig(BasicAuthConfig{Validator: fn})
}

// BasicAuthWithConfig returns an BasicAuth middleware with config.
func BasicAuthWithConfig(config BasicAuthConfig) gotham.MiddlewareFunc {
	if config.Validator == nil {
		panic("gotham: basic-auth middleware requires a validator function")
	}
	if config.Skipper == nil {
		config.Skipper = DefaultSkipper
	}
	if config.Realm == "" {
		config.Realm = DefaultBasicAuthRealm
	}
	challenge := basicScheme + " realm=" + strconv.Quote(config.Realm)

	return func(c gotham.Context, next gotham.HandlerFunc) error {
		if config.Skipper(c) {
			return next(c)
		}
		user, password, ok := parseBasicAuth(c.Header(nego.HeaderAuthorization))
		if ok {
			valid, err := config.Validator(c, user, password)
			if err != nil {
				return err
			}
			if valid {
				return next(c)
			}
			c.Logger().Debug("basic auth rejected", "user", user)
		}
		c.SetHeader(nego.HeaderWWWAuthenticate, challenge)
		return gotham.ErrUnauthorized
	}
}

func parseBasicAuth(auth string) (user, password string, ok bool) {
	n := len(basicScheme)
	if len(auth) <= n+1 || !strings.EqualFold(auth[:n], basicScheme) || auth[n] != ' ' {
		return "", "", false
	}
	b, err := base64.StdEncoding.DecodeString(strings.TrimSpace(auth[n+1:]))
	if err != nil {
		return "", "", false
	}
	return strings.Cut(string(b), ":")
}

// BcryptAccounts 使用 bcrypt 哈希校验密码的 BasicAuthValidator，
// accounts 为用户名到 bcrypt 哈希的映射。
func BcryptAccounts(accounts map[string]string) BasicAuthValidator {
	hashes := make(map[string][]byte, len(accounts))
	for user, hash := range accounts {
		hashes[user] = []byte(hash)
	}
	return func(_ gotham.Context, user, password string) (bool, error) {
		hash, ok := hashes[user]
		if !ok {
			return false, nil
		}
		err := bcrypt.CompareHashAndPassword(hash, []byte(password))
		switch err {
		case nil:
			return true, nil
		case bcrypt.ErrMismatchedHashAndPassword:
			return false, nil
		default:
			return false, gotham.NewHTTPErrorWithInternal(http.StatusInternalServerError, err)
		}
	}
}
