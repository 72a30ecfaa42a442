package gotham

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// Delegation 描述路由如何处理剩余的请求路径
type Delegation uint8

const (
	// DelegationInternal 路由自己处理请求，必须消费完全部路径段
	DelegationInternal Delegation = iota
	// DelegationExternal 路由把剩余路径交给另一个路由器
	DelegationExternal
)

// RouteInfo 路由描述接口
type RouteInfo interface {
	// Name 返回路由名称
	Name() string
	// Methods 返回支持的请求方法列表，外部委托时为空
	Methods() []string
	// Pattern 路由路径表达式
	Pattern() string
	// Params 返回路由参数名列表
	Params() []string
	// Reverse 依次使用 params 替换路由表达式中的参数，返回请求路径。
	// 通配参数可以传入字符串切片。
	Reverse(params ...any) string
	// String 返回字符串形式
	String() string
}

// Route 挂载在路由树节点上的路由
type Route interface {
	RouteMatcher
	RouteInfo
	// Delegation 返回委托方式
	Delegation() Delegation
	// PathExtractor 返回路径参数提取器
	PathExtractor() Extractor
	// QueryExtractor 返回查询参数提取器
	QueryExtractor() Extractor
	// Dispatch 执行管道链和处理函数
	Dispatch(c Context) error
}

// RouteOptions 创建路由所需的组件，除 Dispatcher 外都可以为空。
type RouteOptions struct {
	Name           string
	Segments       []Segment
	Methods        []string
	Matcher        RouteMatcher
	PathExtractor  Extractor
	QueryExtractor Extractor
	Delegation     Delegation
	Dispatcher     *Dispatcher
}

var _ Route = (*routeImpl)(nil)

type routeImpl struct {
	name           string
	segments       []Segment
	pattern        string
	methods        []string
	params         []string
	matcher        RouteMatcher
	pathExtractor  Extractor
	queryExtractor Extractor
	delegation     Delegation
	dispatcher     *Dispatcher
}

// NewRoute 创建路由
func NewRoute(opts RouteOptions) Route {
	r := &routeImpl{
		name:           opts.Name,
		segments:       opts.Segments,
		pattern:        templateOf(opts.Segments),
		methods:        opts.Methods,
		matcher:        opts.Matcher,
		pathExtractor:  opts.PathExtractor,
		queryExtractor: opts.QueryExtractor,
		delegation:     opts.Delegation,
		dispatcher:     opts.Dispatcher,
	}
	if r.matcher == nil {
		r.matcher = AnyRouteMatcher{}
	}
	if r.pathExtractor == nil {
		r.pathExtractor = NoopExtractor()
	}
	if r.queryExtractor == nil {
		r.queryExtractor = NoopExtractor()
	}
	for _, seg := range opts.Segments {
		if seg.Type != SegmentStatic {
			r.params = append(r.params, seg.Name)
		}
	}
	return r
}

func templateOf(segments []Segment) string {
	if len(segments) == 0 {
		return "/"
	}
	var b strings.Builder
	for _, seg := range segments {
		b.WriteByte('/')
		b.WriteString(seg.String())
	}
	return b.String()
}

func (r *routeImpl) IsMatch(req *http.Request) error { return r.matcher.IsMatch(req) }
func (r *routeImpl) Name() string                    { return r.name }
func (r *routeImpl) Methods() []string               { return r.methods[:] }
func (r *routeImpl) Pattern() string                 { return r.pattern }
func (r *routeImpl) Params() []string                { return r.params[:] }
func (r *routeImpl) Delegation() Delegation          { return r.delegation }
func (r *routeImpl) PathExtractor() Extractor        { return r.pathExtractor }
func (r *routeImpl) QueryExtractor() Extractor       { return r.queryExtractor }
func (r *routeImpl) Dispatch(c Context) error        { return r.dispatcher.Dispatch(c) }

func (r *routeImpl) Reverse(params ...any) string {
	var b strings.Builder
	n := 0
	for _, seg := range r.segments {
		b.WriteByte('/')
		if seg.Type == SegmentStatic {
			b.WriteString(seg.Name)
			continue
		}
		if n >= len(params) {
			b.WriteString(seg.String())
			continue
		}
		switch v := params[n].(type) {
		case []string:
			for i, part := range v {
				if i > 0 {
					b.WriteByte('/')
				}
				b.WriteString(url.PathEscape(part))
			}
		default:
			b.WriteString(url.PathEscape(fmt.Sprint(v)))
		}
		n++
	}
	if b.Len() == 0 {
		return "/"
	}
	return b.String()
}

func (r *routeImpl) String() string {
	methods := strings.Join(r.methods, ",")
	if r.delegation == DelegationExternal {
		methods = "*"
	}
	if r.name != "" {
		return fmt.Sprintf("%s %s (%s)", methods, r.pattern, r.name)
	}
	return methods + " " + r.pattern
}
