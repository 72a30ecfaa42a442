package middleware

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/fatih/color"

	"go-slim.dev/gotham"
)

// BeforeFunc defines a function which is executed just before the middleware.
type BeforeFunc func(c gotham.Context)

// Skipper 返回 true 时跳过中间件
type Skipper func(c gotham.Context) bool

// DefaultSkipper 不跳过任何请求
func DefaultSkipper(gotham.Context) bool {
	return false
}

// contextKey is a value for use with context.WithValue. It's used as
// a pointer so it fits in an interface{} without allocation.
type contextKey struct {
	name string
}

func (k *contextKey) String() string {
	return "gotham/middleware context value " + k.name
}

func valueIntoContext(c gotham.Context, ctxKey, value any) {
	ctx := c.Request().Context()
	ctx = context.WithValue(ctx, ctxKey, value)
	c.SetRequest(c.Request().WithContext(ctx))
}

func forceColor(attrs ...color.Attribute) *color.Color {
	c := color.New(attrs...)
	c.EnableColor()
	return c
}

// 终端颜色，n 开头为普通颜色，b 开头为加粗的亮色
var (
	nRed     = forceColor(color.FgRed)
	nGreen   = forceColor(color.FgGreen)
	nYellow  = forceColor(color.FgYellow)
	nBlue    = forceColor(color.FgBlue)
	nCyan    = forceColor(color.FgCyan)
	bRed     = forceColor(color.FgHiRed, color.Bold)
	bGreen   = forceColor(color.FgHiGreen, color.Bold)
	bYellow  = forceColor(color.FgHiYellow, color.Bold)
	bBlue    = forceColor(color.FgHiBlue, color.Bold)
	bMagenta = forceColor(color.FgHiMagenta, color.Bold)
	bCyan    = forceColor(color.FgHiCyan, color.Bold)
	bWhite   = forceColor(color.FgHiWhite, color.Bold)
	dim      = forceColor(color.Faint)
)

// cW 向 w 写入格式化文本，useColor 为 false 时不带颜色
func cW(w io.Writer, useColor bool, c *color.Color, s string, args ...any) {
	if useColor {
		c.Fprintf(w, s, args...)
		return
	}
	fmt.Fprintf(w, s, args...)
}

// cP 与 cW 相同，但追加到 buf
func cP(buf *[]byte, useColor bool, c *color.Color, s string, args ...any) {
	if useColor {
		*buf = append(*buf, c.Sprintf(s, args...)...)
		return
	}
	*buf = fmt.Appendf(*buf, s, args...)
}

var bufferPool = sync.Pool{
	New: func() any {
		b := make([]byte, 0, 256)
		return &b
	},
}

func getBuffer() *[]byte {
	return bufferPool.Get().(*[]byte)
}

func freeBuffer(b *[]byte) {
	*b = (*b)[:0]
	bufferPool.Put(b)
}

func matchScheme(domain, pattern string) bool {
	didx := strings.Index(domain, ":")
	pidx := strings.Index(pattern, ":")
	return didx != -1 && pidx != -1 && domain[:didx] == pattern[:pidx]
}

// matchSubdomain compares authority with wildcard
func matchSubdomain(domain, pattern string) bool {
	if !matchScheme(domain, pattern) {
		return false
	}
	didx := strings.Index(domain, "://")
	pidx := strings.Index(pattern, "://")
	if didx == -1 || pidx == -1 {
		return false
	}
	domAuth := domain[didx+3:]
	// to avoid long loop by invalid long domain
	if len(domAuth) > 253 {
		return false
	}
	patAuth := pattern[pidx+3:]

	domComp := strings.Split(domAuth, ".")
	patComp := strings.Split(patAuth, ".")
	for i, j := 0, len(domComp)-1; i < j; i, j = i+1, j-1 {
		domComp[i], domComp[j] = domComp[j], domComp[i]
	}
	for i, j := 0, len(patComp)-1; i < j; i, j = i+1, j-1 {
		patComp[i], patComp[j] = patComp[j], patComp[i]
	}

	for i, v := range domComp {
		if len(patComp) <= i {
			return false
		}
		p := patComp[i]
		if p == "*" {
			return true
		}
		if p != v {
			return false
		}
	}
	return false
}
