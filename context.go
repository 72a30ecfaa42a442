package gotham

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"reflect"
	"sync"
	"time"

	"go-slim.dev/gotham/nego"
)

// Context 请求上下文，在一次请求的路由和分发过程中传递，持有请求、
// 缓冲的响应、路径和查询参数、请求标识以及中间件注入的状态。
// 每个 Context 只被处理该请求的 goroutine 使用。
type Context interface {
	// Context 实现 context.Context 接口
	context.Context
	// Request 返回当前请求的 `*http.Request` 结构体实例
	Request() *http.Request
	// SetRequest 为上下文设置新的 `*http.Request` 结构体实例
	SetRequest(r *http.Request)
	// Response 返回缓冲的响应写入器
	Response() ResponseWriter
	// Logger 返回带有 request_id 属性的日志记录器
	Logger() *Logger
	// RequestID 返回请求标识
	RequestID() string
	// Router 返回正在处理请求的路由器
	Router() *Router
	// RouteInfo 返回匹配到的路由，路由匹配之前为 nil
	RouteInfo() RouteInfo
	// PathSegments 返回尚未被上级路由器消费的路径段
	PathSegments() []string
	// PathParam 返回路径参数的第一个值
	PathParam(name string) string
	// PathParams 返回路径参数
	PathParams() SegmentMapping
	// QueryParam 返回查询参数的第一个值
	QueryParam(name string) string
	// QueryParams 返回查询参数
	QueryParams() SegmentMapping
	// Header 返回请求报头
	Header(key string) string
	// SetHeader 设置响应报头
	SetHeader(key string, values ...string)
	// AllowsMethods 在 405 时返回允许的请求方法
	AllowsMethods() []string
	// Get retrieves data from the context.
	Get(key string) any
	// Set saves data in the context.
	Set(key string, val any)
	// Written returns whether the context response has been written to
	Written() bool
	// String sends a string response with status code.
	String(code int, s string) error
	// JSON sends a JSON response with status code.
	JSON(code int, i any) error
	// XML sends an XML response with status code.
	XML(code int, i any) error
	// Blob sends a blob response with a status code and content type.
	Blob(code int, contentType string, b []byte) error
	// HTML sends an HTTP response with status code.
	HTML(code int, html string) error
	// Render renders a template with data and sends a text/html response with status
	// code. Renderer must be registered using `RouterConfig.Renderer`.
	Render(code int, name string, data any) error
	// Accepts 返回 types 中客户端最愿意接受的类型，types 可以是扩展名或媒体类型。
	// 请求没有 Accept 报头时返回第一项，都不接受时返回空字符串。
	Accepts(types ...string) string
	// NoContent sends a response with nobody and a status code.
	NoContent(code ...int) error
	// Error invokes the registered HTTP error handler.
	Error(err error)
	// state 返回类型化状态存储，见 Put 和 Borrow
	state() map[any]any
}

// contextKey is a value for use with context.WithValue. It's used as
// a pointer so it fits in an interface{} without allocation.
type contextKey struct {
	name string
}

func (k *contextKey) String() string {
	return "gotham context value " + k.name
}

var (
	RouterContextKey    = &contextKey{"router"}
	ContextKey          = &contextKey{"context"}
	RequestIDContextKey = &contextKey{"request-id"}
)

// FromContext 从 context.Context 中取出 gotham 请求上下文
func FromContext(ctx context.Context) (Context, bool) {
	c, ok := ctx.Value(ContextKey).(Context)
	return c, ok
}

var _ Context = (*contextImpl)(nil)

type contextImpl struct {
	request       *http.Request
	response      *responseWriter
	router        *Router
	logger        *Logger
	requestID     string
	route         RouteInfo
	segments      []string
	offset        int
	pathParams    SegmentMapping
	query         SegmentMapping
	allowsMethods []string
	store         map[string]any
	typed         map[any]any
	mu            sync.RWMutex
}

func newContext(router *Router) *contextImpl {
	return &contextImpl{
		router:   router,
		response: &responseWriter{},
	}
}

func (x *contextImpl) Deadline() (deadline time.Time, ok bool) {
	return x.request.Context().Deadline()
}

func (x *contextImpl) Done() <-chan struct{} {
	return x.request.Context().Done()
}

func (x *contextImpl) Err() error {
	return x.request.Context().Err()
}

func (x *contextImpl) Value(key any) any {
	if k, ok := key.(*contextKey); ok {
		switch k {
		case RouterContextKey:
			return x.router
		case ContextKey:
			return x
		case RequestIDContextKey:
			return x.requestID
		}
	}
	if ks, ok := key.(string); ok {
		x.mu.RLock()
		value, has := x.store[ks]
		x.mu.RUnlock()
		if has {
			return value
		}
	}
	return x.request.Context().Value(key)
}

// reset 为新的请求重置上下文
func (x *contextImpl) reset(w http.ResponseWriter, r *http.Request, requestID string) {
	x.requestID = requestID
	x.request = x.wrap(r)
	x.response.reset(r.Method, w)
	x.logger = nil
	x.route = nil
	x.segments = SplitPath(r.URL.EscapedPath())
	x.offset = 0
	x.pathParams = nil
	x.query = nil
	x.allowsMethods = nil
	x.store = nil
	x.typed = nil
}

// release 清除对请求数据的引用，以便放回对象池
func (x *contextImpl) release() {
	x.request = nil
	x.response.reset("", nil)
	x.logger = nil
	x.route = nil
	x.segments = nil
	x.pathParams = nil
	x.query = nil
	x.store = nil
	x.typed = nil
}

func (x *contextImpl) wrap(r *http.Request) *http.Request {
	ctx := context.WithValue(r.Context(), ContextKey, x)
	return r.WithContext(ctx)
}

func (x *contextImpl) Request() *http.Request {
	return x.request
}

func (x *contextImpl) SetRequest(r *http.Request) {
	x.request = x.wrap(r)
}

func (x *contextImpl) Response() ResponseWriter {
	return x.response
}

func (x *contextImpl) Logger() *Logger {
	if x.logger == nil {
		x.logger = x.router.logger.With("request_id", x.requestID)
	}
	return x.logger
}

func (x *contextImpl) RequestID() string {
	return x.requestID
}

func (x *contextImpl) Router() *Router {
	return x.router
}

func (x *contextImpl) RouteInfo() RouteInfo {
	return x.route
}

func (x *contextImpl) PathSegments() []string {
	return x.segments[x.offset:]
}

func (x *contextImpl) PathParam(name string) string {
	return x.pathParams.First(name)
}

func (x *contextImpl) PathParams() SegmentMapping {
	if x.pathParams == nil {
		x.pathParams = make(SegmentMapping)
	}
	return x.pathParams
}

func (x *contextImpl) QueryParam(name string) string {
	return x.QueryParams().First(name)
}

func (x *contextImpl) QueryParams() SegmentMapping {
	if x.query == nil {
		x.query = ParseQuery(x.request.URL.RawQuery)
	}
	return x.query
}

func (x *contextImpl) Header(key string) string {
	return x.request.Header.Get(key)
}

func (x *contextImpl) SetHeader(key string, values ...string) {
	header := x.response.Header()
	for i, value := range values {
		if i == 0 {
			header.Set(key, value)
		} else {
			header.Add(key, value)
		}
	}
}

func (x *contextImpl) AllowsMethods() []string {
	return x.allowsMethods[:]
}

func (x *contextImpl) Get(key string) any {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.store[key]
}

func (x *contextImpl) Set(key string, val any) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.store == nil {
		x.store = make(map[string]any)
	}
	x.store[key] = val
}

func (x *contextImpl) state() map[any]any {
	if x.typed == nil {
		x.typed = make(map[any]any)
	}
	return x.typed
}

func (x *contextImpl) Written() bool {
	return x.response.Written()
}

func (x *contextImpl) writeContentType(value string) {
	if value != "" {
		header := x.response.Header()
		if header.Get(nego.HeaderContentType) == "" {
			header.Set(nego.HeaderContentType, value)
		}
	}
}

func (x *contextImpl) String(code int, s string) error {
	return x.Blob(code, nego.MIMETextPlainCharsetUTF8, []byte(s))
}

func (x *contextImpl) JSON(code int, i any) error {
	x.writeContentType(nego.MIMEApplicationJSONCharsetUTF8)
	x.response.WriteHeader(code)
	return x.router.jsonSerializer.Serialize(x.response, i, x.router.indent)
}

func (x *contextImpl) XML(code int, i any) error {
	x.writeContentType(nego.MIMEApplicationXMLCharsetUTF8)
	x.response.WriteHeader(code)
	if _, err := x.response.Write([]byte(xml.Header)); err != nil {
		return err
	}
	return x.router.xmlSerializer.Serialize(x.response, i, x.router.indent)
}

func (x *contextImpl) Blob(code int, contentType string, b []byte) error {
	x.writeContentType(contentType)
	x.response.WriteHeader(code)
	_, err := x.response.Write(b)
	return err
}

func (x *contextImpl) HTML(code int, html string) error {
	return x.Blob(code, nego.MIMETextHTMLCharsetUTF8, []byte(html))
}

func (x *contextImpl) Render(code int, name string, data any) error {
	if x.router.renderer == nil {
		return ErrRendererNotRegistered
	}
	buf := new(bytes.Buffer)
	if err := x.router.renderer.Render(x, buf, name, data); err != nil {
		return err
	}
	return x.Blob(code, nego.MIMETextHTMLCharsetUTF8, buf.Bytes())
}

func (x *contextImpl) Accepts(types ...string) string {
	return x.router.negotiator.Type(x.request, types...)
}

func (x *contextImpl) NoContent(code ...int) error {
	for _, status := range code {
		x.response.WriteHeader(status)
		return nil
	}
	x.response.WriteHeader(http.StatusNoContent)
	return nil
}

func (x *contextImpl) Error(err error) {
	x.router.handleError(x, err)
}

type stateKey[T any] struct{}

// Put 以类型 T 为键在请求上下文中保存值，同一类型只保存一个值。
func Put[T any](c Context, v T) {
	c.state()[stateKey[T]{}] = v
}

// Borrow 取出 Put 保存的值
func Borrow[T any](c Context) (T, bool) {
	v, ok := c.state()[stateKey[T]{}].(T)
	return v, ok
}

// MustBorrow 与 Borrow 相同，值不存在时 panic。
func MustBorrow[T any](c Context) T {
	v, ok := Borrow[T](c)
	if !ok {
		panic(fmt.Errorf("gotham: state value %s is missing", reflect.TypeFor[T]()))
	}
	return v
}

// Take 取出并删除 Put 保存的值
func Take[T any](c Context) (T, bool) {
	v, ok := Borrow[T](c)
	if ok {
		delete(c.state(), stateKey[T]{})
	}
	return v, ok
}
