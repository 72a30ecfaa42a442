package gotham

import (
	"encoding/xml"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"
	"sync"

	"go-slim.dev/gotham/nego"
	"go-slim.dev/gotham/serde"
)

// ErrorHandler is a centralized error handler.
type ErrorHandler interface {
	// HandleError 处理错误
	HandleError(c Context, err error)
}

// ErrorHandlerFunc defines a function to centralize errors.
type ErrorHandlerFunc func(c Context, err error)

// HandleError 实现 ErrorHandler 接口
func (h ErrorHandlerFunc) HandleError(c Context, err error) {
	h(c, err)
}

// RouterConfig 路由器配置，零值可用。
type RouterConfig struct {
	// Pipelines 路由可以引用的管道集合
	Pipelines *PipelineSet
	// Chain 默认作用于所有路由的管道链
	Chain PipelineChain
	// Finalizer 响应终结器
	Finalizer *ResponseFinalizer
	// Logger 日志记录器，默认输出到 stderr
	Logger *Logger
	// ErrorHandler 错误处理器，默认为 DefaultErrorHandler
	ErrorHandler ErrorHandler
	// RequestIDHeader 携带请求标识的报头，默认为 X-Request-Id
	RequestIDHeader string
	// RequestIDGenerator 请求没有携带标识时用来生成标识，默认为 UUIDv4
	RequestIDGenerator RequestIDGenerator
	// JSONSerializer 和 XMLSerializer 用于 Context.JSON 和 Context.XML
	JSONSerializer serde.Serializer
	XMLSerializer  serde.Serializer
	// Serializers 用于 Bind 解码请求体，默认为 serde.Default()
	Serializers *serde.Registry
	// PrettyIndent json/xml 格式化缩进
	PrettyIndent string
	// Renderer 模板渲染器，用于 Context.Render
	Renderer Renderer
	// Negotiator 内容协商工具，默认缓存 10 个 Accept 报头
	Negotiator *nego.Negotiator
}

// Router 实现 http.Handler。构建完成后只读，可以被并发使用。
type Router struct {
	tree            *Tree
	routes          []Route
	finalizer       *ResponseFinalizer
	pipelines       *PipelineSet
	logger          *Logger
	errorHandler    ErrorHandler
	requestIDHeader string
	newRequestID    RequestIDGenerator
	jsonSerializer  serde.Serializer
	xmlSerializer   serde.Serializer
	serializers     *serde.Registry
	indent          string
	renderer        Renderer
	negotiator      *nego.Negotiator
	contextPool     sync.Pool
}

func newRouter(config RouterConfig) *Router {
	r := &Router{
		tree:            NewTree(),
		finalizer:       config.Finalizer,
		pipelines:       config.Pipelines,
		logger:          config.Logger,
		errorHandler:    config.ErrorHandler,
		requestIDHeader: config.RequestIDHeader,
		newRequestID:    config.RequestIDGenerator,
		jsonSerializer:  config.JSONSerializer,
		xmlSerializer:   config.XMLSerializer,
		serializers:     config.Serializers,
		indent:          config.PrettyIndent,
		renderer:        config.Renderer,
		negotiator:      config.Negotiator,
	}
	if r.pipelines == nil {
		r.pipelines = NewPipelineSet()
	}
	if r.logger == nil {
		r.logger = NewLogger(nil)
	}
	if r.errorHandler == nil {
		r.errorHandler = ErrorHandlerFunc(DefaultErrorHandler)
	}
	if r.requestIDHeader == "" {
		r.requestIDHeader = nego.HeaderXRequestID
	}
	if r.newRequestID == nil {
		r.newRequestID = UUIDGenerator
	}
	if r.jsonSerializer == nil {
		r.jsonSerializer = serde.JSONSerializer{}
	}
	if r.xmlSerializer == nil {
		r.xmlSerializer = serde.XMLSerializer{}
	}
	if r.serializers == nil {
		r.serializers = serde.Default()
	}
	if r.negotiator == nil {
		r.negotiator = nego.NewNegotiator(10, nil)
	}
	r.contextPool.New = func() any {
		return newContext(r)
	}
	return r
}

// Logger 返回路由器的日志记录器
func (r *Router) Logger() *Logger {
	return r.logger
}

// Routes 返回注册的路由
func (r *Router) Routes() []RouteInfo {
	infos := make([]RouteInfo, len(r.routes))
	for i, route := range r.routes {
		infos[i] = route
	}
	return infos
}

// Reverse generates a URL from route name and provided parameters.
func (r *Router) Reverse(name string, params ...any) string {
	for _, route := range r.routes {
		if route.Name() == name {
			return route.Reverse(params...)
		}
	}
	return ""
}

// ServeHTTP implements `http.Handler` interface, which serves HTTP requests.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	c := r.contextPool.Get().(*contextImpl)
	c.reset(w, req, r.requestID(req))

	r.handle(c)

	if !c.response.Committed() {
		c.response.Header().Set(r.requestIDHeader, c.requestID)
	}
	r.finalizer.Finalize(c)
	if err := c.response.Commit(); err != nil {
		c.Logger().Debug("failed to write response", "error", err)
	}

	c.release()
	r.contextPool.Put(c)
}

// requestID 优先使用请求报头中的标识，否则生成新的标识。
func (r *Router) requestID(req *http.Request) string {
	if id := req.Header.Get(r.requestIDHeader); id != "" {
		return id
	}
	return r.newRequestID()
}

// handle 执行路由：遍历路由树、选择路由、提取参数并分发。
// 所有结果都在这里转换成具体的响应，不会向上传播错误或 panic。
func (r *Router) handle(c *contextImpl) {
	defer r.trap(c)

	node, processed, mapping, ok := r.tree.Traverse(c.PathSegments())
	if !ok {
		c.Logger().Debug("route not found", "method", c.request.Method, "path", c.request.URL.Path)
		r.handleError(c, ErrNotFound)
		return
	}

	route, err := node.SelectRoute(c.request)
	if err != nil {
		nm := AsRouteNonMatch(err)
		c.Logger().Debug("no route matched", "method", c.request.Method, "path", c.request.URL.Path, "status", nm.Status())
		if nm.Status() == http.StatusMethodNotAllowed {
			c.allowsMethods = nm.Allow()
		}
		r.handleError(c, nm.HTTPError())
		return
	}
	c.route = route

	if route.Delegation() == DelegationExternal {
		c.offset += processed
		c.Logger().Debug("delegating request", "route", route.Pattern(), "offset", c.offset)
	} else {
		c.pathParams = mapping
		if err = route.PathExtractor().Extract(c, mapping); err != nil {
			c.Logger().Warn("path extraction failed", "route", route.Pattern(), "error", err)
			route.PathExtractor().ExtendResponseOnError(c, err)
			return
		}
		if err = route.QueryExtractor().Extract(c, c.QueryParams()); err != nil {
			c.Logger().Warn("query extraction failed", "route", route.Pattern(), "error", err)
			route.QueryExtractor().ExtendResponseOnError(c, err)
			return
		}
	}

	if err = route.Dispatch(c); err != nil {
		r.handleError(c, err)
	}
}

// trap 捕获分发过程中的 panic，丢弃未提交的响应并返回 500。
// http.ErrAbortHandler 会被重新抛出。
func (r *Router) trap(c *contextImpl) {
	rec := recover()
	if rec == nil {
		return
	}
	if rec == http.ErrAbortHandler {
		panic(rec)
	}
	err, ok := rec.(error)
	if !ok {
		err = fmt.Errorf("%v", rec)
	}
	c.Logger().Error("panic recovered", "error", err, "stack", string(debug.Stack()))
	if c.response.Committed() {
		return
	}
	c.response.Reset()
	r.handleError(c, NewHTTPErrorWithInternal(http.StatusInternalServerError, err))
}

// delegateTo 返回把剩余路径交给 sub 处理的处理函数，
// sub 的响应终结器先于当前路由器的终结器执行。
func (r *Router) delegateTo(sub *Router) HandlerFunc {
	return func(c Context) error {
		x, ok := c.(*contextImpl)
		if !ok {
			return errors.New("gotham: unsupported context implementation")
		}
		parent := x.router
		x.router = sub
		defer func() { x.router = parent }()
		sub.handle(x)
		sub.finalizer.Finalize(x)
		return nil
	}
}

func (r *Router) handleError(c Context, err error) {
	if err == nil {
		return
	}
	r.errorHandler.HandleError(c, err)
}

// DefaultErrorHandler 默认错误处理函数。
// 请求带有 Accept 报头时按 text、json、xml 的顺序协商响应格式。
func DefaultErrorHandler(c Context, err error) {
	if c.Written() {
		c.Logger().Debug("response already written, error dropped", "error", err)
		return
	}
	code := StatusCode(err)
	if code >= http.StatusInternalServerError {
		c.Logger().Error("request failed", "status", code, "error", err)
	}
	if code == http.StatusMethodNotAllowed {
		c.SetHeader(nego.HeaderAllow, strings.Join(allowedMethods(c, err), ", "))
	}

	var message string
	switch code {
	case http.StatusNotFound:
		message = "404 page not found"
	default:
		message = http.StatusText(code)
		var he *HTTPError
		if code != http.StatusMethodNotAllowed && errors.As(err, &he) {
			if s, ok := he.Message.(string); ok && s != "" {
				message = s
			}
		}
	}

	if c.Header(nego.HeaderAccept) != "" {
		switch c.Accepts("text", "json", "xml") {
		case "json":
			err = c.JSON(code, errorBody{Message: message})
		case "xml":
			err = c.XML(code, errorBody{Message: message})
		default:
			err = nil
			http.Error(c.Response(), message, code)
		}
		if err != nil {
			c.Logger().Debug("failed to write error response", "error", err)
		}
		return
	}
	http.Error(c.Response(), message, code)
}

// allowedMethods 依次取错误中的 RouteNonMatch、路由器记录的方法和完整的标准集合
func allowedMethods(c Context, err error) []string {
	var nm RouteNonMatch
	if errors.As(err, &nm) && nm.AllowSet().Len() > 0 {
		return nm.Allow()
	}
	if methods := c.AllowsMethods(); len(methods) > 0 {
		return methods
	}
	return DefaultMethodSet().Methods()
}

type errorBody struct {
	XMLName xml.Name `json:"-" xml:"error"`
	Message string   `json:"message" xml:"message"`
}

// NotFoundHandler 总是返回 404，可以作为兜底路由的处理函数。
func NotFoundHandler(_ Context) error {
	return ErrNotFound
}

// MethodNotAllowedHandler 总是返回 405，Allow 报头为完整的标准方法集合。
func MethodNotAllowedHandler(_ Context) error {
	return ErrMethodNotAllowed
}
