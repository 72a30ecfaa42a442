package gotham

import (
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"

	"golang.org/x/net/http/httpguts"
)

// NewRouter 创建路由器，fn 中声明路由。
// 构建过程中的全部错误（非法模板、正则编译失败、委托冲突、非法请求方法、
// 缺少处理函数）会被合并返回，此时不应启动服务。
func NewRouter(config RouterConfig, fn func(b *Builder)) (*Router, error) {
	r := newRouter(config)
	b := &Builder{router: r, chain: config.Chain, errs: new([]error)}
	if fn != nil {
		fn(b)
	}
	if err := errors.Join(*b.errs...); err != nil {
		return nil, err
	}
	r.tree.Finalize()
	r.pipelines.Freeze()
	return r, nil
}

// BuildSimpleRouter 使用默认配置创建路由器
func BuildSimpleRouter(fn func(b *Builder)) (*Router, error) {
	return NewRouter(RouterConfig{}, fn)
}

// MustNewRouter 与 NewRouter 相同，构建失败时 panic
func MustNewRouter(config RouterConfig, fn func(b *Builder)) *Router {
	r, err := NewRouter(config, fn)
	if err != nil {
		panic(err)
	}
	return r
}

// Builder 声明路由，Scope 和 WithPipelineChain 派生的子构建器共享同一个路由器。
type Builder struct {
	router *Router
	prefix []Segment
	chain  PipelineChain
	errs   *[]error
}

func (b *Builder) fail(err error) {
	*b.errs = append(*b.errs, err)
}

func (b *Builder) derive(prefix []Segment, chain PipelineChain) *Builder {
	return &Builder{router: b.router, prefix: prefix, chain: chain, errs: b.errs}
}

// segments 解析 path 并拼接到当前前缀之后
func (b *Builder) segments(path string) ([]Segment, error) {
	segs, err := ParseTemplate(path)
	if err != nil {
		return nil, err
	}
	full := append(slices.Clip(b.prefix), segs...)
	for i, seg := range full {
		if seg.Type == SegmentGlob && i != len(full)-1 {
			return nil, fmt.Errorf("%w: %q", ErrGlobNotLast, templateOf(full))
		}
	}
	return full, nil
}

func (b *Builder) add(route Route, segments []Segment) {
	if err := b.router.tree.Add(segments, route); err != nil {
		b.fail(err)
		return
	}
	b.router.routes = append(b.router.routes, route)
	b.router.logger.Debug("route added", "route", route.String())
}

// AddPipeline 把管道加入路由器的管道集合，返回的句柄用于组成 PipelineChain
func (b *Builder) AddPipeline(p *Pipeline) PipelineHandle {
	return b.router.pipelines.Add(p)
}

// Request 为 path 上的 methods 声明路由
func (b *Builder) Request(methods []string, path string) *SingleRouteBuilder {
	segments, err := b.segments(path)
	return b.single(segments, methods, nil, err)
}

func (b *Builder) GET(path string) *SingleRouteBuilder {
	return b.Request([]string{http.MethodGet}, path)
}

// GetOrHead 同时匹配 GET 和 HEAD 请求
func (b *Builder) GetOrHead(path string) *SingleRouteBuilder {
	return b.Request([]string{http.MethodGet, http.MethodHead}, path)
}

func (b *Builder) HEAD(path string) *SingleRouteBuilder {
	return b.Request([]string{http.MethodHead}, path)
}

func (b *Builder) POST(path string) *SingleRouteBuilder {
	return b.Request([]string{http.MethodPost}, path)
}

func (b *Builder) PUT(path string) *SingleRouteBuilder {
	return b.Request([]string{http.MethodPut}, path)
}

func (b *Builder) PATCH(path string) *SingleRouteBuilder {
	return b.Request([]string{http.MethodPatch}, path)
}

func (b *Builder) DELETE(path string) *SingleRouteBuilder {
	return b.Request([]string{http.MethodDelete}, path)
}

func (b *Builder) OPTIONS(path string) *SingleRouteBuilder {
	return b.Request([]string{http.MethodOptions}, path)
}

// Scope 在 path 前缀下声明路由
func (b *Builder) Scope(path string, fn func(b *Builder)) {
	segments, err := b.segments(path)
	if err != nil {
		b.fail(err)
		return
	}
	fn(b.derive(segments, b.chain))
}

// WithPipelineChain 在 fn 中声明的路由使用 chain 替换当前的管道链
func (b *Builder) WithPipelineChain(chain PipelineChain, fn func(b *Builder)) {
	fn(b.derive(b.prefix, chain))
}

// Delegate 把 path 下的请求交给另一个路由器，当前管道链先执行
func (b *Builder) Delegate(path string) *DelegateRouteBuilder {
	segments, err := b.segments(path)
	return &DelegateRouteBuilder{b: b, segments: segments, chain: b.chain, err: err}
}

// DelegateWithoutPipelines 与 Delegate 相同，但不执行当前管道链
func (b *Builder) DelegateWithoutPipelines(path string) *DelegateRouteBuilder {
	segments, err := b.segments(path)
	return &DelegateRouteBuilder{b: b, segments: segments, err: err}
}

// Associate 在同一个路径上声明多个路由
func (b *Builder) Associate(path string, fn func(a *AssociatedBuilder)) {
	segments, err := b.segments(path)
	if err != nil {
		b.fail(err)
		return
	}
	fn(&AssociatedBuilder{b: b, segments: segments})
}

func (b *Builder) single(segments []Segment, methods []string, extra RouteMatcher, err error) *SingleRouteBuilder {
	if err == nil {
		err = validateMethods(methods)
	}
	var matcher RouteMatcher = NewMethodOnlyRouteMatcher(methods...)
	if extra != nil {
		matcher = And(matcher, extra)
	}
	return &SingleRouteBuilder{
		b:        b,
		segments: segments,
		methods:  methods,
		matcher:  matcher,
		err:      err,
	}
}

func validateMethods(methods []string) error {
	if len(methods) == 0 {
		return fmt.Errorf("%w: no method given", ErrInvalidMethod)
	}
	for _, m := range methods {
		if m == "" || strings.IndexFunc(m, func(r rune) bool { return !httpguts.IsTokenRune(r) }) >= 0 {
			return fmt.Errorf("%w: %q", ErrInvalidMethod, m)
		}
	}
	return nil
}

// SingleRouteBuilder 声明单个路由，调用 To 或 ToNewHandler 后路由才会被添加。
type SingleRouteBuilder struct {
	b              *Builder
	segments       []Segment
	methods        []string
	matcher        RouteMatcher
	pathExtractor  Extractor
	queryExtractor Extractor
	name           string
	err            error
}

// AddRouteMatcher 追加匹配器，与已有的匹配器组合成 And
func (s *SingleRouteBuilder) AddRouteMatcher(m RouteMatcher) *SingleRouteBuilder {
	s.matcher = And(s.matcher, m)
	return s
}

func (s *SingleRouteBuilder) WithPathExtractor(e Extractor) *SingleRouteBuilder {
	s.pathExtractor = e
	return s
}

func (s *SingleRouteBuilder) WithQueryExtractor(e Extractor) *SingleRouteBuilder {
	s.queryExtractor = e
	return s
}

// Name 设置路由名称，用于 Router.Reverse
func (s *SingleRouteBuilder) Name(name string) *SingleRouteBuilder {
	s.name = name
	return s
}

// To 使用处理函数完成路由声明
func (s *SingleRouteBuilder) To(h HandlerFunc) {
	if h == nil {
		s.ToNewHandler(nil)
		return
	}
	s.ToNewHandler(h)
}

// ToNewHandler 使用处理函数工厂完成路由声明，工厂在每个请求上调用一次
func (s *SingleRouteBuilder) ToNewHandler(nh NewHandler) {
	if s.err != nil {
		s.b.fail(s.err)
		return
	}
	if nh == nil {
		s.b.fail(fmt.Errorf("%w: %s %s", ErrMissingHandler, strings.Join(s.methods, ","), templateOf(s.segments)))
		return
	}
	route := NewRoute(RouteOptions{
		Name:           s.name,
		Segments:       s.segments,
		Methods:        s.methods,
		Matcher:        s.matcher,
		PathExtractor:  s.pathExtractor,
		QueryExtractor: s.queryExtractor,
		Delegation:     DelegationInternal,
		Dispatcher:     NewDispatcher(nh, s.b.chain, s.b.router.pipelines),
	})
	s.b.add(route, s.segments)
}

// DelegateRouteBuilder 声明外部委托
type DelegateRouteBuilder struct {
	b        *Builder
	segments []Segment
	chain    PipelineChain
	err      error
}

// ToRouter 把剩余路径交给 sub 处理
func (d *DelegateRouteBuilder) ToRouter(sub *Router) {
	if d.err != nil {
		d.b.fail(d.err)
		return
	}
	if sub == nil {
		d.b.fail(fmt.Errorf("%w: delegate %s", ErrMissingHandler, templateOf(d.segments)))
		return
	}
	route := NewRoute(RouteOptions{
		Segments:   d.segments,
		Delegation: DelegationExternal,
		Dispatcher: NewDispatcher(d.b.router.delegateTo(sub), d.chain, d.b.router.pipelines),
	})
	d.b.add(route, d.segments)
}

// AssociatedBuilder 在同一个路径上声明多个路由，这些路由挂载在同一个节点上。
type AssociatedBuilder struct {
	b        *Builder
	segments []Segment
	matcher  RouteMatcher
}

// AddRouteMatcher 为之后声明的路由追加匹配器
func (a *AssociatedBuilder) AddRouteMatcher(m RouteMatcher) *AssociatedBuilder {
	if a.matcher == nil {
		a.matcher = m
	} else {
		a.matcher = And(a.matcher, m)
	}
	return a
}

func (a *AssociatedBuilder) Request(methods ...string) *SingleRouteBuilder {
	return a.b.single(a.segments, methods, a.matcher, nil)
}

func (a *AssociatedBuilder) Get() *SingleRouteBuilder {
	return a.Request(http.MethodGet)
}

func (a *AssociatedBuilder) GetOrHead() *SingleRouteBuilder {
	return a.Request(http.MethodGet, http.MethodHead)
}

func (a *AssociatedBuilder) Head() *SingleRouteBuilder {
	return a.Request(http.MethodHead)
}

func (a *AssociatedBuilder) Post() *SingleRouteBuilder {
	return a.Request(http.MethodPost)
}

func (a *AssociatedBuilder) Put() *SingleRouteBuilder {
	return a.Request(http.MethodPut)
}

func (a *AssociatedBuilder) Patch() *SingleRouteBuilder {
	return a.Request(http.MethodPatch)
}

func (a *AssociatedBuilder) Delete() *SingleRouteBuilder {
	return a.Request(http.MethodDelete)
}

func (a *AssociatedBuilder) Options() *SingleRouteBuilder {
	return a.Request(http.MethodOptions)
}
