package middleware

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"os"
	"runtime"
	"runtime/debug"
	"strings"

	"go-slim.dev/gotham"
)

// RecoveryConfig defines the config for Recovery middleware.
type RecoveryConfig struct {
	Skipper Skipper
	// StackSize 堆栈缓冲区的初始大小，默认 4KB，不够时自动扩大
	StackSize int
	// DisableStackAll 只记录当前 goroutine 的堆栈
	DisableStackAll bool
	// DisablePrintStack 不输出堆栈
	DisablePrintStack bool
	// DisableColor 输出不带颜色的堆栈
	DisableColor bool
}

// DefaultRecoveryConfig is the default Recovery middleware config.
var DefaultRecoveryConfig = RecoveryConfig{
	Skipper:   DefaultSkipper,
	StackSize: 4 << 10, // 4 KB
}

// Recovery returns a middleware which recovers from panics in the stages
// after it and turns them into a 500 error for the centralized ErrorHandler.
// The router recovers panics as well; Recovery lets the outer stages see
// the failure as an ordinary error and prints a readable stack.
func Recovery() gotham.MiddlewareFunc {
	return RecoveryWithConfig(DefaultRecoveryConfig)
}

// RecoveryWithConfig returns Recovery middleware with config.
func RecoveryWithConfig(config RecoveryConfig) gotham.MiddlewareFunc {
	return config.ToMiddleware()
}

func (config RecoveryConfig) ToMiddleware() gotham.MiddlewareFunc {
	if config.Skipper == nil {
		config.Skipper = DefaultSkipper
	}
	if config.StackSize <= 0 {
		config.StackSize = DefaultRecoveryConfig.StackSize
	}

	return func(c gotham.Context, next gotham.HandlerFunc) (err error) {
		if config.Skipper(c) {
			return next(c)
		}
		defer func() {
			rvr := recover()
			if rvr == nil {
				return
			}
			if rvr == http.ErrAbortHandler {
				// 客户端连接已中止，交给 net/http 处理
				panic(rvr)
			}
			perr, ok := rvr.(error)
			if !ok {
				perr = fmt.Errorf("%v", rvr)
			}
			c.Logger().Error("panic recovered", "error", perr, "route", routePattern(c))

			if !config.DisablePrintStack {
				stack := captureStack(config.StackSize, !config.DisableStackAll)
				if entry := GetLogEntry(c); entry != nil {
					entry.Panic(c, rvr, stack)
				} else {
					printPrettyStack(rvr, stack, !config.DisableColor)
				}
			}

			// 协议升级的连接可能已被接管
			if c.Header("Connection") != "Upgrade" && !c.Response().Committed() {
				c.Response().Reset()
			}
			err = gotham.NewHTTPErrorWithInternal(http.StatusInternalServerError, perr)
		}()
		return next(c)
	}
}

func routePattern(c gotham.Context) string {
	if info := c.RouteInfo(); info != nil {
		return info.Pattern()
	}
	return ""
}

// captureStack 读取堆栈，缓冲区不够时翻倍
func captureStack(size int, all bool) []byte {
	stack := make([]byte, size)
	for {
		n := runtime.Stack(stack, all)
		if n < len(stack) {
			return stack[:n]
		}
		stack = make([]byte, 2*len(stack))
	}
}

// for ability to test the PrintPrettyStack function
var recovererErrorWriter io.Writer = os.Stderr

// PrintPrettyStack 以易读的格式打印 panic 的堆栈，debugStack 为空时使用当前堆栈
func PrintPrettyStack(rvr any, debugStack []byte) {
	printPrettyStack(rvr, debugStack, true)
}

func printPrettyStack(rvr any, debugStack []byte, useColor bool) {
	if len(debugStack) == 0 {
		debugStack = debug.Stack()
	}
	_, _ = recovererErrorWriter.Write(formatStack(rvr, debugStack, useColor))
}

// formatStack 只保留当前 goroutine 中最内层 panic 之后的帧，由内到外输出，
// 第一帧（panic 发生的位置）高亮显示。
func formatStack(rvr any, debugStack []byte, useColor bool) []byte {
	buf := &bytes.Buffer{}
	cW(buf, false, bRed, "\n")
	cW(buf, useColor, bCyan, " panic: ")
	cW(buf, useColor, bBlue, "%v", rvr)
	cW(buf, false, bWhite, "\n \n")

	if i := bytes.Index(debugStack, []byte("\n\n")); i > 0 {
		debugStack = debugStack[:i]
	}
	frames := panicFrames(strings.Split(string(debugStack), "\n"))
	for i, f := range frames {
		writeFrame(buf, f, useColor, i == 0)
	}
	return buf.Bytes()
}

type stackFrame struct {
	fn     string
	source string
}

// panicFrames 从后往前收集到最内层的 `panic(` 为止，返回由内到外的帧
func panicFrames(lines []string) []stackFrame {
	var frames []stackFrame
	var pending string
	for i := len(lines) - 1; i > 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "panic(") {
			break
		}
		if strings.Contains(line, ".go:") {
			pending = line
			continue
		}
		if strings.HasSuffix(line, ")") {
			frames = append(frames, stackFrame{fn: line, source: pending})
		}
		pending = ""
	}
	for i, j := 0, len(frames)-1; i < j; i, j = i+1, j-1 {
		frames[i], frames[j] = frames[j], frames[i]
	}
	return frames
}

func writeFrame(buf *bytes.Buffer, f stackFrame, useColor, top bool) {
	pkg, method := splitFunc(f.fn)
	if top {
		cW(buf, useColor, bRed, " -> ")
		cW(buf, useColor, bMagenta, "%s", pkg)
		cW(buf, useColor, bRed, "%s\n", method)
	} else {
		cW(buf, false, bWhite, "    ")
		cW(buf, useColor, nYellow, "%s", pkg)
		cW(buf, useColor, bGreen, "%s\n", method)
	}
	if f.source == "" {
		return
	}

	source := f.source
	if i := strings.Index(source, " +0x"); i > 0 {
		source = source[:i]
	}
	dir, file := "", source
	if i := strings.LastIndexByte(source, '/'); i >= 0 {
		dir, file = source[:i+1], source[i+1:]
	}
	lineno := ""
	if i := strings.LastIndex(file, ".go:"); i >= 0 {
		file, lineno = file[:i+3], file[i+3:]
	}
	if top {
		cW(buf, useColor, bRed, " ->   ")
		cW(buf, useColor, bWhite, "%s", dir)
		cW(buf, useColor, bRed, "%s", file)
		cW(buf, useColor, bMagenta, "%s\n\n", lineno)
		return
	}
	cW(buf, false, bWhite, "      ")
	cW(buf, useColor, bWhite, "%s", dir)
	cW(buf, useColor, bCyan, "%s", file)
	cW(buf, useColor, bGreen, "%s\n", lineno)
}

// splitFunc 把 `go-slim.dev/gotham.(*Router).handle(...)` 拆成包名和方法
func splitFunc(fn string) (pkg, method string) {
	if i := strings.LastIndexByte(fn, '('); i > 0 && strings.HasSuffix(fn, ")") {
		fn = fn[:i]
	}
	start := strings.LastIndexByte(fn, '/') + 1
	if i := strings.IndexByte(fn[start:], '.'); i > 0 {
		return fn[:start+i], fn[start+i:]
	}
	return fn, ""
}
