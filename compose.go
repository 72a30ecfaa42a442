package gotham

import (
	"net/http"
	"slices"
)

// HandlerFunc defines a function to serve HTTP requests.
type HandlerFunc func(c Context) error

// MiddlewareFunc defines a function to process middleware.
type MiddlewareFunc func(c Context, next HandlerFunc) error

// Explicitly 一个承上启下的中间件
func Explicitly(c Context, next HandlerFunc) error {
	return next(c)
}

// Compose 将多个中间件合并为一个洋葱：请求自外向内经过每个中间件，
// 响应按相反的顺序返回。每个中间件最多调用一次 next，
// 否则返回 ErrNextCalledMultipleTimes。
func Compose(middleware ...MiddlewareFunc) MiddlewareFunc {
	switch len(middleware) {
	case 0:
		return nil
	case 1:
		return middleware[0]
	}
	mws := slices.Clone(middleware)
	return func(c Context, next HandlerFunc) error {
		r := &onion{layers: mws, handler: next, index: -1}
		return r.enter(c, 0)
	}
}

// onion 记录一次请求在中间件链中的位置
type onion struct {
	layers  []MiddlewareFunc
	handler HandlerFunc
	index   int
}

func (o *onion) enter(c Context, i int) error {
	if i <= o.index {
		return ErrNextCalledMultipleTimes
	}
	o.index = i
	if i == len(o.layers) {
		return o.handler(c)
	}
	return o.layers[i](c, func(c Context) error {
		return o.enter(c, i+1)
	})
}

// Tap 用中间件包装处理函数
func Tap(h HandlerFunc, mw ...MiddlewareFunc) HandlerFunc {
	if len(mw) == 0 {
		return h
	}
	return func(c Context) error {
		return Compose(mw...)(c, h)
	}
}

// WrapHandler wraps `http.Handler` into `gotham.HandlerFunc`.
func WrapHandler(h http.Handler) HandlerFunc {
	return func(c Context) error {
		h.ServeHTTP(c.Response(), c.Request())
		return nil
	}
}

// WrapMiddleware wraps `func(http.Handler) http.Handler` into `gotham.MiddlewareFunc`
func WrapMiddleware(m func(http.Handler) http.Handler) MiddlewareFunc {
	return func(c Context, next HandlerFunc) (err error) {
		m(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c.SetRequest(r)
			err = next(c)
		})).ServeHTTP(c.Response(), c.Request())
		return
	}
}
