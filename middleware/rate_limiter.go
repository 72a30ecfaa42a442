package middleware

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"go-slim.dev/gotham"
	"go-slim.dev/gotham/nego"
)

// RateLimiterStore is the interface to be implemented by custom stores.
type RateLimiterStore interface {
	// Allow 返回 identifier 本次请求是否被允许
	Allow(identifier string) (bool, error)
}

// RateLimiterConfig defines the configuration for the rate limiter
type RateLimiterConfig struct {
	Skipper    Skipper
	BeforeFunc BeforeFunc
	// IdentifierExtractor uses gotham.Context to extract the identifier for a visitor
	IdentifierExtractor func(c gotham.Context) (string, error)
	// Store defines a store for the rate limiter
	Store RateLimiterStore
	// ErrorHandler provides a handler to be called when IdentifierExtractor returns an error
	ErrorHandler func(c gotham.Context, err error) error
	// DenyHandler provides a handler to be called when RateLimiter denies access
	DenyHandler func(c gotham.Context, identifier string, err error) error
}

var (
	// ErrRateLimitExceeded denotes an error raised when rate limit is exceeded
	ErrRateLimitExceeded = gotham.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
	// ErrExtractorError denotes an error raised when extractor function is unsuccessful
	ErrExtractorError = gotham.NewHTTPError(http.StatusForbidden, "error while extracting identifier")
)

// DefaultRateLimiterConfig defines default values for RateLimiterConfig
var DefaultRateLimiterConfig = RateLimiterConfig{
	Skipper: DefaultSkipper,
	IdentifierExtractor: func(c gotham.Context) (string, error) {
		return RealIP(c.Request()), nil
	},
	ErrorHandler: func(c gotham.Context, err error) error {
		return ErrExtractorError.WithInternal(err)
	},
	DenyHandler: func(c gotham.Context, identifier string, err error) error {
		c.SetHeader(nego.HeaderRetryAfter, "1")
		return ErrRateLimitExceeded.WithInternal(err)
	},
}

// RateLimiter returns a rate limiting middleware
//
//	limiterStore := middleware.NewRateLimiterMemoryStore(20)
//	pipeline.Use(middleware.RateLimiter(limiterStore))
func RateLimiter(store RateLimiterStore) gotham.MiddlewareFunc {
	config := DefaultRateLimiterConfig
	config.Store = store
	return RateLimiterWithConfig(config)
}

// RateLimiterWithConfig returns a rate limiting middleware with config.
func RateLimiterWithConfig(config RateLimiterConfig) gotham.MiddlewareFunc {
	if config.Skipper == nil {
		config.Skipper = DefaultRateLimiterConfig.Skipper
	}
	if config.IdentifierExtractor == nil {
		config.IdentifierExtractor = DefaultRateLimiterConfig.IdentifierExtractor
	}
	if config.ErrorHandler == nil {
		config.ErrorHandler = DefaultRateLimiterConfig.ErrorHandler
	}
	if config.DenyHandler == nil {
		config.DenyHandler = DefaultRateLimiterConfig.DenyHandler
	}
	if config.Store == nil {
		panic("gotham: rate limiter store is required")
	}

	return func(c gotham.Context, next gotham.HandlerFunc) error {
		if config.Skipper(c) {
			return next(c)
		}
		if config.BeforeFunc != nil {
			config.BeforeFunc(c)
		}

		identifier, err := config.IdentifierExtractor(c)
		if err != nil {
			return config.ErrorHandler(c, err)
		}

		if allow, err := config.Store.Allow(identifier); !allow {
			c.Logger().Debug("rate limit exceeded", "identifier", identifier)
			return config.DenyHandler(c, identifier, err)
		}
		return next(c)
	}
}

// RateLimiterMemoryStore is the built-in store implementation for RateLimiter
type RateLimiterMemoryStore struct {
	visitors map[string]*Visitor
	mutex    sync.Mutex
	rate     rate.Limit
	burst    int

	expiresIn   time.Duration
	lastCleanup time.Time

	timeNow func() time.Time
}

// Visitor signifies a unique user's limiter details
type Visitor struct {
	*rate.Limiter
	lastSeen time.Time
}

// RateLimiterMemoryStoreConfig represents configuration for RateLimiterMemoryStore
type RateLimiterMemoryStoreConfig struct {
	Rate      rate.Limit    // Rate of requests allowed to pass as req/s
	Burst     int           // Burst is maximum number of requests to pass at the same moment
	ExpiresIn time.Duration // ExpiresIn is the duration after that a rate limiter is cleaned up
}

// DefaultRateLimiterMemoryStoreConfig provides default configuration values for RateLimiterMemoryStore
var DefaultRateLimiterMemoryStoreConfig = RateLimiterMemoryStoreConfig{
	ExpiresIn: 3 * time.Minute,
}

// NewRateLimiterMemoryStore returns an instance of RateLimiterMemoryStore with
// the provided rate (as req/s). Burst defaults to the rate rounded down.
func NewRateLimiterMemoryStore(r rate.Limit) *RateLimiterMemoryStore {
	return NewRateLimiterMemoryStoreWithConfig(RateLimiterMemoryStoreConfig{Rate: r})
}

// NewRateLimiterMemoryStoreWithConfig returns an instance of RateLimiterMemoryStore
// with the provided configuration.
func NewRateLimiterMemoryStoreWithConfig(config RateLimiterMemoryStoreConfig) *RateLimiterMemoryStore {
	store := &RateLimiterMemoryStore{
		rate:      config.Rate,
		burst:     config.Burst,
		expiresIn: config.ExpiresIn,
		visitors:  make(map[string]*Visitor),
		timeNow:   time.Now,
	}
	if store.expiresIn <= 0 {
		store.expiresIn = DefaultRateLimiterMemoryStoreConfig.ExpiresIn
	}
	if store.burst <= 0 {
		store.burst = max(int(config.Rate), 1)
	}
	store.lastCleanup = store.timeNow()
	return store
}

// Allow implements RateLimiterStore.Allow
func (store *RateLimiterMemoryStore) Allow(identifier string) (bool, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	now := store.timeNow()
	if now.Sub(store.lastCleanup) > store.expiresIn {
		store.cleanupStaleVisitors()
	}

	v, exists := store.visitors[identifier]
	if !exists {
		v = &Visitor{Limiter: rate.NewLimiter(store.rate, store.burst)}
		store.visitors[identifier] = v
	}
	v.lastSeen = now
	return v.AllowN(now, 1), nil
}

// cleanupStaleVisitors 删除超过 expiresIn 没有访问的访客，调用方需要持有锁
func (store *RateLimiterMemoryStore) cleanupStaleVisitors() {
	now := store.timeNow()
	for id, visitor := range store.visitors {
		if now.Sub(visitor.lastSeen) > store.expiresIn {
			delete(store.visitors, id)
		}
	}
	store.lastCleanup = now
}

// RealIP 返回客户端地址，依次检查 X-Forwarded-For、X-Real-Ip 和 RemoteAddr
func RealIP(r *http.Request) string {
	if xff := r.Header.Get(nego.HeaderXForwardedFor); xff != "" {
		ip, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(ip)
	}
	if ip := r.Header.Get(nego.HeaderXRealIP); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
