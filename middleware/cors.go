package middleware

import (
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"go-slim.dev/gotham"
	"go-slim.dev/gotham/nego"
)

// CORSConfig defines the config for CORS middleware.
type CORSConfig struct {
	Skipper Skipper

	// AllowOrigins 允许的来源，支持 `*`、`?` 通配和 `*.example.com` 子域名。
	// 默认为 []string{"*"}。
	AllowOrigins []string

	// AllowOriginFunc 自定义来源校验，设置后忽略 AllowOrigins，
	// 返回的错误交给 ErrorHandler。
	AllowOriginFunc func(origin string) (bool, error)

	// AllowMethods 预检响应中允许的方法，默认为 GET、HEAD、PUT、PATCH、POST 和 DELETE。
	AllowMethods []string

	// AllowHeaders 预检响应中允许的请求报头，为空时原样返回
	// Access-Control-Request-Headers。
	AllowHeaders []string

	// AllowCredentials indicates whether or not the response to the request
	// can be exposed when the credential flag is true.
	AllowCredentials bool

	// ExposeHeaders 允许客户端读取的响应报头
	ExposeHeaders []string

	// MaxAge 预检结果的缓存秒数，0 表示不发送 Access-Control-Max-Age。
	MaxAge int
}

// DefaultCORSConfig is the default CORS middleware config.
var DefaultCORSConfig = CORSConfig{
	Skipper:      DefaultSkipper,
	AllowOrigins: []string{"*"},
	AllowMethods: []string{
		http.MethodGet,
		http.MethodHead,
		http.MethodPut,
		http.MethodPatch,
		http.MethodPost,
		http.MethodDelete,
	},
}

// CORS 返回允许任意来源的 CORS 中间件。
// 预检请求需要声明 OPTIONS 路由，见 Preflight。
func CORS() gotham.MiddlewareFunc {
	return CORSWithConfig(DefaultCORSConfig)
}

func CORSWithConfig(config CORSConfig) gotham.MiddlewareFunc {
	return config.ToMiddleware()
}

func (config CORSConfig) ToMiddleware() gotham.MiddlewareFunc {
	p := newCORSPolicy(config)
	skipper := config.Skipper
	if skipper == nil {
		skipper = DefaultSkipper
	}

	return func(c gotham.Context, next gotham.HandlerFunc) error {
		if skipper(c) {
			return next(c)
		}

		req := c.Request()
		header := c.Response().Header()
		header.Add(nego.HeaderVary, nego.HeaderOrigin)
		preflight := req.Method == http.MethodOptions

		allowOrigin, err := p.allowOrigin(req.Header.Get(nego.HeaderOrigin))
		if err != nil {
			return err
		}
		if allowOrigin == "" {
			// 没有来源或来源不被允许，不发送任何 CORS 报头
			if preflight {
				return c.NoContent(http.StatusNoContent)
			}
			return next(c)
		}

		header.Set(nego.HeaderAccessControlAllowOrigin, allowOrigin)
		if p.credentials {
			header.Set(nego.HeaderAccessControlAllowCredentials, "true")
		}
		if !preflight {
			if p.exposeHeaders != "" {
				header.Set(nego.HeaderAccessControlExposeHeaders, p.exposeHeaders)
			}
			return next(c)
		}

		p.preflight(req, header)
		return c.NoContent(http.StatusNoContent)
	}
}

// corsPolicy 预先计算好的 CORS 规则
type corsPolicy struct {
	origins       []string
	patterns      []*regexp.Regexp
	originFunc    func(string) (bool, error)
	credentials   bool
	allowMethods  string
	allowHeaders  string
	exposeHeaders string
	maxAge        string
}

func newCORSPolicy(config CORSConfig) *corsPolicy {
	if len(config.AllowOrigins) == 0 {
		config.AllowOrigins = DefaultCORSConfig.AllowOrigins
	}
	if len(config.AllowMethods) == 0 {
		config.AllowMethods = DefaultCORSConfig.AllowMethods
	}
	p := &corsPolicy{
		origins:       config.AllowOrigins,
		originFunc:    config.AllowOriginFunc,
		credentials:   config.AllowCredentials,
		allowMethods:  strings.Join(config.AllowMethods, ","),
		allowHeaders:  strings.Join(config.AllowHeaders, ","),
		exposeHeaders: strings.Join(config.ExposeHeaders, ","),
	}
	if config.MaxAge > 0 {
		p.maxAge = strconv.Itoa(config.MaxAge)
	}
	for _, origin := range config.AllowOrigins {
		if !strings.ContainsAny(origin, "*?") || origin == "*" {
			continue
		}
		pattern := regexp.QuoteMeta(origin)
		pattern = strings.ReplaceAll(pattern, `\*`, ".*")
		pattern = strings.ReplaceAll(pattern, `\?`, ".")
		p.patterns = append(p.patterns, regexp.MustCompile("^"+pattern+"$"))
	}
	return p
}

// allowOrigin 返回 Access-Control-Allow-Origin 的值，为空表示不允许
func (p *corsPolicy) allowOrigin(origin string) (string, error) {
	if origin == "" {
		return "", nil
	}
	if p.originFunc != nil {
		allowed, err := p.originFunc(origin)
		if err != nil || !allowed {
			return "", err
		}
		return origin, nil
	}

	for _, o := range p.origins {
		switch {
		case o == "*" && p.credentials:
			// 携带凭据时不能使用通配符，回显来源
			return origin, nil
		case o == "*" || o == origin:
			return o, nil
		case matchSubdomain(origin, o):
			return origin, nil
		}
	}

	i := strings.Index(origin, "://")
	// 过长的域名不做正则匹配
	if i == -1 || len(origin)-i-3 > 253 {
		return "", nil
	}
	for _, re := range p.patterns {
		if re.MatchString(origin) {
			return origin, nil
		}
	}
	return "", nil
}

func (p *corsPolicy) preflight(req *http.Request, header http.Header) {
	header.Add(nego.HeaderVary, nego.HeaderAccessControlRequestMethod)
	header.Add(nego.HeaderVary, nego.HeaderAccessControlRequestHeaders)
	header.Set(nego.HeaderAccessControlAllowMethods, p.allowMethods)
	if p.allowHeaders != "" {
		header.Set(nego.HeaderAccessControlAllowHeaders, p.allowHeaders)
	} else if h := req.Header.Get(nego.HeaderAccessControlRequestHeaders); h != "" {
		header.Set(nego.HeaderAccessControlAllowHeaders, h)
	}
	if p.maxAge != "" {
		header.Set(nego.HeaderAccessControlMaxAge, p.maxAge)
	}
}

// Preflight 在 path 上为 methods 声明 CORS 预检路由：
// OPTIONS 请求的 Access-Control-Request-Method 必须是 methods 之一，
// 响应由 pipeline 中的 CORS 中间件生成。
func Preflight(b *gotham.Builder, path string, methods ...string) {
	b.Associate(path, func(a *gotham.AssociatedBuilder) {
		var m gotham.RouteMatcher
		for _, method := range methods {
			mm := gotham.NewAccessControlRequestMethodMatcher(method)
			if m == nil {
				m = mm
			} else {
				m = anyOf(m, mm)
			}
		}
		if m != nil {
			a.AddRouteMatcher(m)
		}
		a.Options().To(func(c gotham.Context) error {
			return c.NoContent(http.StatusNoContent)
		})
	})
}

// anyOf 任意一个匹配器通过即通过，都失败时返回优先级更高的非匹配
func anyOf(t, u gotham.RouteMatcher) gotham.RouteMatcher {
	return gotham.RouteMatcherFunc(func(r *http.Request) error {
		err := t.IsMatch(r)
		if err == nil {
			return nil
		}
		uerr := u.IsMatch(r)
		if uerr == nil {
			return nil
		}
		return gotham.AsRouteNonMatch(err).Union(gotham.AsRouteNonMatch(uerr))
	})
}
