package middleware

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/mattn/go-isatty"

	"go-slim.dev/gotham"
	"go-slim.dev/gotham/nego"
)

var (
	// logEntryCtxKey is the context.Context key to store the request log entry.
	logEntryCtxKey = &contextKey{"LogEntry"}

	// logPayloadCtxKey is the context.Context key to store the request log payload.
	logPayloadCtxKey = &contextKey{"LogPayload"}
)

// LoggerConfig defines the config for Logger middleware.
type LoggerConfig struct {
	Skipper Skipper
	// NewEntry is called by the Logger middleware handler to log each request.
	// 默认在终端输出彩色的单行日志，否则通过路由器的 slog 日志记录器输出。
	NewEntry func(gotham.Context) LogEntry
}

// DefaultLoggerConfig is the default Logger middleware config.
var DefaultLoggerConfig = LoggerConfig{
	Skipper: DefaultSkipper,
	NewEntry: func(c gotham.Context) LogEntry {
		if w := c.Logger().Output(); isTerminal(w) {
			return NewConsoleEntry(w, DefaultTimeLayout)
		}
		return SlogEntry{}
	},
}

// DefaultTimeLayout 控制台日志的时间格式
const DefaultTimeLayout = "2006/01/02 15:04:05.000"

// Logger is a middleware that logs the end of each request, along with the
// matched route, the response status, the body size and how long it took to
// return.
//
// Logger should be the first stage of the outermost pipeline, so that it sees
// the errors returned by every other stage. Requests that match no route are
// answered by the router before any pipeline runs and are not logged here.
//
//	pipelines := gotham.NewPipelineSet()
//	h := pipelines.Add(gotham.NewPipeline().Use(middleware.Logger(), middleware.Recovery()))
//	r, err := gotham.NewRouter(gotham.RouterConfig{
//		Pipelines: pipelines,
//		Chain:     gotham.PipelineChain{h},
//	}, func(b *gotham.Builder) {
//		b.GET("/").To(handler)
//	})
func Logger() gotham.MiddlewareFunc {
	return LoggerWithConfig(DefaultLoggerConfig)
}

// LoggerWithConfig returns a Logger middleware with config.
// See: `Logger()`.
func LoggerWithConfig(config LoggerConfig) gotham.MiddlewareFunc {
	return config.ToMiddleware()
}

func (l LoggerConfig) ToMiddleware() gotham.MiddlewareFunc {
	if l.Skipper == nil {
		l.Skipper = DefaultSkipper
	}
	if l.NewEntry == nil {
		l.NewEntry = DefaultLoggerConfig.NewEntry
	}

	return func(c gotham.Context, next gotham.HandlerFunc) error {
		if l.Skipper(c) {
			return next(c)
		}
		ProvideLogEntry(c, l.NewEntry(c))

		LogBegin(c)
		err := next(c)
		// 错误响应由 ErrorHandler 在之后写入，这里按错误推断状态码
		LogEnd(c, err)
		return err
	}
}

// LogEntry records the final log when a request completes.
type LogEntry interface {
	// Begin 和 End 返回的键值对合并到 LogPayload.Extra
	Begin(c gotham.Context) map[string]any
	End(c gotham.Context, err error) map[string]any
	Print(c gotham.Context, p LogPayload)
	Panic(c gotham.Context, v any, stack []byte)
}

// ProvideLogEntry sets the in-context LogEntry for a request context.
func ProvideLogEntry(c gotham.Context, entry LogEntry) {
	valueIntoContext(c, logEntryCtxKey, entry)
}

// GetLogEntry returns the in-context LogEntry for a request context.
func GetLogEntry(c gotham.Context) LogEntry {
	entry, _ := c.Value(logEntryCtxKey).(LogEntry)
	return entry
}

// LogPayload 一次请求的访问日志数据
type LogPayload struct {
	StartTime  time.Time
	RequestID  string
	Proto      string
	Method     string
	RequestURI string
	RawQuery   string
	RemoteAddr string
	// Route 匹配到的路由表达式，RouteName 为路由名称
	Route      string
	RouteName  string
	Extra      map[string]any
	Error      error
	StatusCode int
	Written    int
	Elapsed    time.Duration
}

func getLogPayload(c gotham.Context) (*LogPayload, bool) {
	p, ok := c.Value(logPayloadCtxKey).(*LogPayload)
	return p, ok
}

// LogBegin 记录请求开始，同一请求重复调用无效
func LogBegin(c gotham.Context) {
	if _, ok := getLogPayload(c); ok {
		return
	}
	req := c.Request()
	p := &LogPayload{
		StartTime:  time.Now(),
		RequestID:  c.RequestID(),
		Proto:      req.Proto,
		Method:     req.Method,
		RequestURI: fmt.Sprintf("%s://%s%s", scheme(req), gotham.RequestHost(req), req.URL.Path),
		RawQuery:   req.URL.RawQuery,
		RemoteAddr: req.RemoteAddr,
	}
	if info := c.RouteInfo(); info != nil {
		p.Route = info.Pattern()
		p.RouteName = info.Name()
	}
	if entry := GetLogEntry(c); entry != nil {
		p.Extra = entry.Begin(c)
	}
	valueIntoContext(c, logPayloadCtxKey, p)
}

// LogEnd 记录请求结束并输出日志，没有调用 LogBegin 时什么也不做
func LogEnd(c gotham.Context, err error) {
	p, ok := getLogPayload(c)
	if !ok {
		return
	}

	res := c.Response()
	p.Error = err
	p.StatusCode = res.Status()
	if err != nil && !res.Written() {
		p.StatusCode = gotham.StatusCode(err)
	} else if p.StatusCode == 0 {
		p.StatusCode = http.StatusOK
	}
	p.Written = res.Size()
	p.Elapsed = time.Since(p.StartTime)

	entry := GetLogEntry(c)
	if entry == nil {
		entry = DefaultLoggerConfig.NewEntry(c)
	}
	if extra := entry.End(c, err); len(extra) > 0 {
		if p.Extra == nil {
			p.Extra = make(map[string]any, len(extra))
		}
		for key, val := range extra {
			p.Extra[key] = val
		}
	}
	entry.Print(c, *p)
}

// SlogEntry 通过请求上下文的日志记录器输出结构化的访问日志，
// 5xx 为 Error 级别，4xx 为 Warn 级别，其余为 Info 级别。
type SlogEntry struct{}

func (SlogEntry) Begin(gotham.Context) map[string]any      { return nil }
func (SlogEntry) End(gotham.Context, error) map[string]any { return nil }
func (SlogEntry) Panic(c gotham.Context, v any, stack []byte) {
	c.Logger().Error("panic", "value", v, "stack", string(stack))
}

func (SlogEntry) Print(c gotham.Context, p LogPayload) {
	level := slog.LevelInfo
	switch {
	case p.StatusCode >= 500:
		level = slog.LevelError
	case p.StatusCode >= 400:
		level = slog.LevelWarn
	}
	attrs := []slog.Attr{
		slog.String("method", p.Method),
		slog.String("uri", p.RequestURI),
		slog.Int("status", p.StatusCode),
		slog.Int("size", p.Written),
		slog.Duration("elapsed", p.Elapsed),
		slog.String("remote_addr", p.RemoteAddr),
	}
	if p.Route != "" {
		attrs = append(attrs, slog.String("route", p.Route))
	}
	if p.RouteName != "" {
		attrs = append(attrs, slog.String("route_name", p.RouteName))
	}
	if p.RawQuery != "" {
		attrs = append(attrs, slog.String("query", p.RawQuery))
	}
	if p.Error != nil {
		attrs = append(attrs, slog.Any("error", p.Error))
	}
	if len(p.Extra) > 0 {
		extra := make([]any, 0, len(p.Extra))
		for k, v := range p.Extra {
			extra = append(extra, slog.Any(k, v))
		}
		attrs = append(attrs, slog.Group("extra", extra...))
	}
	c.Logger().LogAttrs(c, level, "request completed", attrs...)
}

var _ LogEntry = (*ConsoleEntry)(nil)

// ConsoleEntry 输出适合在终端阅读的单行访问日志
type ConsoleEntry struct {
	// Colorable 是否输出颜色
	Colorable bool
	// TimeLayout 时间格式，为空时不输出时间
	TimeLayout string
	w          io.Writer
}

// NewConsoleEntry 创建控制台访问日志，w 是终端时输出颜色
func NewConsoleEntry(w io.Writer, layout string) *ConsoleEntry {
	return &ConsoleEntry{Colorable: isTerminal(w), TimeLayout: layout, w: w}
}

func isTerminal(w io.Writer) bool {
	switch v := w.(type) {
	case interface{ Colorable() bool }:
		return v.Colorable()
	case *os.File:
		return isatty.IsTerminal(v.Fd()) || isatty.IsCygwinTerminal(v.Fd())
	}
	return false
}

func (e *ConsoleEntry) Begin(gotham.Context) map[string]any      { return nil }
func (e *ConsoleEntry) End(gotham.Context, error) map[string]any { return nil }

func (e *ConsoleEntry) Panic(_ gotham.Context, v any, stack []byte) {
	printPrettyStack(v, stack, e.Colorable)
}

func (e *ConsoleEntry) Print(_ gotham.Context, p LogPayload) {
	buf := getBuffer()
	defer freeBuffer(buf)

	useColor := e.Colorable

	if e.TimeLayout != "" {
		cP(buf, useColor, nCyan, "%s ", p.StartTime.Format(e.TimeLayout))
	}
	if p.RequestID != "" {
		cP(buf, useColor, nYellow, "[%s] ", p.RequestID)
	}
	cP(buf, useColor, nCyan, "\"")
	cP(buf, useColor, bMagenta, "%s ", p.Method)
	cP(buf, useColor, nCyan, "%s %s\" ", p.RequestURI, p.Proto)
	if p.Route != "" {
		cP(buf, useColor, dim, "(%s) ", p.Route)
	}
	*buf = append(*buf, "from "...)
	*buf = append(*buf, p.RemoteAddr...)
	*buf = append(*buf, ' ', '-', ' ')

	switch status := p.StatusCode; {
	case status < 200:
		cP(buf, useColor, bBlue, "%03d", status)
	case status < 300:
		cP(buf, useColor, bGreen, "%03d", status)
	case status < 400:
		cP(buf, useColor, bCyan, "%03d", status)
	case status < 500:
		cP(buf, useColor, bYellow, "%03d", status)
	default:
		cP(buf, useColor, bRed, "%03d", status)
	}

	cP(buf, useColor, bBlue, " %dB", p.Written)

	*buf = append(*buf, " in "...)
	switch elapsed := p.Elapsed; {
	case elapsed < 500*time.Millisecond:
		cP(buf, useColor, nGreen, "%s", elapsed)
	case elapsed < 5*time.Second:
		cP(buf, useColor, nYellow, "%s", elapsed)
	default:
		cP(buf, useColor, nRed, "%s", elapsed)
	}

	if p.Error != nil {
		printCategory(buf, useColor, "Spot a mistake:", bytes.Split([]byte(p.Error.Error()), []byte{'\n'}))
	}
	if extra := formatExtra(p.Extra); len(extra) > 0 {
		printCategory(buf, useColor, "Additional data:", bytes.Split(extra, []byte{'\n'}))
	}

	*buf = append(*buf, '\n')
	_, _ = e.w.Write(*buf)
}

func printCategory(buf *[]byte, useColor bool, title string, lines [][]byte) {
	if len(lines) == 0 {
		return
	}
	*buf = append(*buf, '\n', '\n')
	cP(buf, useColor, dim, "%s\n", title)
	for _, line := range lines {
		*buf = append(*buf, '\n', ' ', ' ')
		cP(buf, useColor, nBlue, "%s", line)
	}
}

func scheme(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	if proto := r.Header.Get(nego.HeaderXForwardedProto); proto != "" {
		return proto
	}
	return "http"
}

// formatExtra 短的数据输出为一行，超过 80 个字符时格式化为多行
func formatExtra(p map[string]any) []byte {
	if len(p) == 0 {
		return nil
	}
	line, err := json.Marshal(p)
	if err != nil {
		return fmt.Appendf(nil, "%#v", p)
	}
	if len(line) <= 80 {
		return line
	}
	pretty, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return line
	}
	return pretty
}
