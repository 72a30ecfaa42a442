package gotham

import (
	"net/http"
	"strings"

	"go-slim.dev/gotham/nego"
)

// RouteMatcher 决定候选路由是否适用于请求。匹配器只读取请求方法和报头，
// 不能修改请求，重复调用必须得到相同结果。匹配时返回 nil，否则返回
// RouteNonMatch（或包装了它的错误）。
type RouteMatcher interface {
	IsMatch(r *http.Request) error
}

// RouteMatcherFunc 函数形式的 RouteMatcher
type RouteMatcherFunc func(r *http.Request) error

// IsMatch 实现 RouteMatcher 接口
func (f RouteMatcherFunc) IsMatch(r *http.Request) error {
	return f(r)
}

// MethodOnlyRouteMatcher 仅当请求方法在允许列表中时匹配，否则返回 405。
type MethodOnlyRouteMatcher struct {
	methods MethodSet
}

// NewMethodOnlyRouteMatcher 创建请求方法匹配器
func NewMethodOnlyRouteMatcher(methods ...string) *MethodOnlyRouteMatcher {
	return &MethodOnlyRouteMatcher{methods: NewMethodSet(methods...)}
}

// Methods 返回允许的请求方法
func (m *MethodOnlyRouteMatcher) Methods() []string {
	return m.methods.Methods()
}

func (m *MethodOnlyRouteMatcher) IsMatch(r *http.Request) error {
	if m.methods.Has(r.Method) {
		return nil
	}
	return RouteNonMatch{status: http.StatusMethodNotAllowed, allow: m.methods}
}

// AcceptHeaderRouteMatcher 检查 Accept 报头。没有 Accept 报头时总是匹配；
// 否则报头中至少一个媒体范围（忽略参数和权重）必须命中支持的类型、
// 其 `type/*` 形式或 `*/*`，否则返回 406。
type AcceptHeaderRouteMatcher struct {
	supported []string
	lookup    map[string]struct{}
}

// NewAcceptHeaderRouteMatcher 创建 Accept 报头匹配器
func NewAcceptHeaderRouteMatcher(supported ...string) *AcceptHeaderRouteMatcher {
	m := &AcceptHeaderRouteMatcher{
		lookup: map[string]struct{}{"*/*": {}},
	}
	for _, s := range supported {
		essence := nego.Essence(s)
		m.supported = append(m.supported, essence)
		m.lookup[essence] = struct{}{}
		if i := strings.IndexByte(essence, '/'); i > 0 {
			m.lookup[essence[:i]+"/*"] = struct{}{}
		}
	}
	return m
}

func (m *AcceptHeaderRouteMatcher) IsMatch(r *http.Request) error {
	values := r.Header.Values(nego.HeaderAccept)
	if len(values) == 0 {
		return nil
	}
	for _, value := range values {
		for _, item := range strings.Split(value, ",") {
			mr, err := nego.ParseMediaRange(item)
			if err != nil {
				continue
			}
			if _, ok := m.lookup[mr.String()]; ok {
				return nil
			}
		}
	}
	return NewRouteNonMatch(http.StatusNotAcceptable)
}

// ContentTypeHeaderRouteMatcher 检查 Content-Type 报头的本质部分是否受支持，
// 不支持或缺失时返回 415。
type ContentTypeHeaderRouteMatcher struct {
	supported   []string
	allowNoType bool
}

// NewContentTypeHeaderRouteMatcher 创建 Content-Type 报头匹配器
func NewContentTypeHeaderRouteMatcher(supported ...string) *ContentTypeHeaderRouteMatcher {
	m := &ContentTypeHeaderRouteMatcher{}
	for _, s := range supported {
		m.supported = append(m.supported, nego.Essence(s))
	}
	return m
}

// AllowNoType 允许请求不携带 Content-Type 报头
func (m *ContentTypeHeaderRouteMatcher) AllowNoType() *ContentTypeHeaderRouteMatcher {
	m.allowNoType = true
	return m
}

func (m *ContentTypeHeaderRouteMatcher) IsMatch(r *http.Request) error {
	ct := r.Header.Get(nego.HeaderContentType)
	if ct == "" {
		if m.allowNoType {
			return nil
		}
		return NewRouteNonMatch(http.StatusUnsupportedMediaType)
	}
	essence := nego.Essence(ct)
	for _, s := range m.supported {
		if s == essence {
			return nil
		}
	}
	return NewRouteNonMatch(http.StatusUnsupportedMediaType)
}

// AndRouteMatcher 两个匹配器都匹配时才匹配，都失败时取两者的交集。
type AndRouteMatcher struct {
	t, u RouteMatcher
}

// And 组合两个匹配器
func And(t, u RouteMatcher) *AndRouteMatcher {
	return &AndRouteMatcher{t: t, u: u}
}

func (m *AndRouteMatcher) IsMatch(r *http.Request) error {
	e1 := m.t.IsMatch(r)
	e2 := m.u.IsMatch(r)
	switch {
	case e1 == nil:
		return e2
	case e2 == nil:
		return e1
	}
	return AsRouteNonMatch(e1).Intersection(AsRouteNonMatch(e2))
}

// AnyRouteMatcher 总是匹配，用于全量委托。
type AnyRouteMatcher struct{}

func (AnyRouteMatcher) IsMatch(*http.Request) error {
	return nil
}

// AccessControlRequestMethodMatcher 用于 CORS 预检请求，
// 仅当 Access-Control-Request-Method 报头（转为大写后）等于给定方法时匹配，
// 否则返回 404。
type AccessControlRequestMethodMatcher struct {
	method string
}

// NewAccessControlRequestMethodMatcher 创建预检请求方法匹配器
func NewAccessControlRequestMethodMatcher(method string) *AccessControlRequestMethodMatcher {
	return &AccessControlRequestMethodMatcher{method: strings.ToUpper(method)}
}

func (m *AccessControlRequestMethodMatcher) IsMatch(r *http.Request) error {
	value := r.Header.Get(nego.HeaderAccessControlRequestMethod)
	if value != "" && strings.ToUpper(strings.TrimSpace(value)) == m.method {
		return nil
	}
	return NewRouteNonMatch(http.StatusNotFound)
}

// HostRouteMatcher 按请求的主机名匹配，支持实域名和 `*.example.com` 形式的泛域名，
// 不匹配时返回 404。
type HostRouteMatcher struct {
	hosts map[string]struct{}
}

// NewHostRouteMatcher 创建主机名匹配器
func NewHostRouteMatcher(hosts ...string) *HostRouteMatcher {
	m := &HostRouteMatcher{hosts: make(map[string]struct{}, len(hosts))}
	for _, h := range hosts {
		m.hosts[strings.ToLower(h)] = struct{}{}
	}
	return m
}

func (m *HostRouteMatcher) IsMatch(r *http.Request) error {
	host := strings.ToLower(RequestHost(r))
	if i := strings.LastIndexByte(host, ':'); i > 0 && !strings.HasSuffix(host, "]") {
		host = host[:i]
	}
	if _, ok := m.hosts[host]; ok {
		return nil
	}
	// 只支持 *.example.com 这种单层泛域名
	i := strings.IndexByte(host, '.')
	j := strings.LastIndexByte(host, '.')
	if i > 0 && i != j {
		if _, ok := m.hosts["*"+host[i:]]; ok {
			return nil
		}
	}
	return NewRouteNonMatch(http.StatusNotFound)
}

// RequestHost 返回客户端最初访问的主机名，依次检查
// X-Forwarded-Host、Forwarded 报头的 host 字段和 Request.Host。
func RequestHost(r *http.Request) string {
	// 经过反向代理时，X-Forwarded-Host 保存了客户端最初访问的主机名。
	if host := r.Header.Get(nego.HeaderXForwardedHost); host != "" {
		return host
	}
	// RFC 7239 定义的 Forwarded 报头
	if forwarded := r.Header.Get(nego.HeaderForwarded); forwarded != "" {
		for _, pair := range strings.Split(forwarded, ";") {
			if token, value, ok := strings.Cut(pair, "="); ok {
				if strings.EqualFold(strings.TrimSpace(token), "host") {
					return strings.TrimSpace(strings.Trim(value, `"`))
				}
			}
		}
	}
	return r.Host
}
