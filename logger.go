package gotham

import (
	"context"
	"io"
	"log/slog"
	"os"

	charmlog "github.com/charmbracelet/log"
)

// Logger 基于 slog 的日志记录器，同一个 Logger 派生出的实例共享输出和日志级别。
type Logger struct {
	*slog.Logger
	output *outputVar
	level  *slog.LevelVar
}

type LoggerOptions struct {
	Output io.Writer

	// AddSource causes the handler to compute the source code position
	// of the log statement and add a SourceKey attribute to the output.
	AddSource bool

	// Level reports the minimum record level that will be logged.
	// If Level is nil, the handler assumes LevelInfo.
	Level slog.Leveler

	// ReplaceAttr is called to rewrite each non-group attribute before it is logged.
	ReplaceAttr func(groups []string, a slog.Attr) slog.Attr

	// NewHandler 自定义 slog.Handler，默认使用 slog.TextHandler。
	// 可选 TextHandler、JSONHandler 和 ConsoleHandler。
	NewHandler func(w io.Writer, opts *slog.HandlerOptions) slog.Handler
}

type outputVar struct {
	io.Writer
}

func (o *outputVar) Write(p []byte) (int, error) {
	return o.Writer.Write(p)
}

// TextHandler 输出 key=value 格式的日志
func TextHandler(w io.Writer, opts *slog.HandlerOptions) slog.Handler {
	return slog.NewTextHandler(w, opts)
}

// JSONHandler 输出 JSON 格式的日志
func JSONHandler(w io.Writer, opts *slog.HandlerOptions) slog.Handler {
	return slog.NewJSONHandler(w, opts)
}

// ConsoleHandler 输出适合在终端阅读的彩色日志，级别由 opts.Level 控制。
func ConsoleHandler(w io.Writer, opts *slog.HandlerOptions) slog.Handler {
	h := charmlog.NewWithOptions(w, charmlog.Options{
		Level:           charmlog.DebugLevel,
		ReportTimestamp: true,
		ReportCaller:    opts.AddSource,
		TimeFormat:      "2006-01-02 15:04:05.000",
	})
	return &levelHandler{Handler: h, level: opts.Level}
}

// levelHandler 在内部 handler 之前按 level 过滤日志
type levelHandler struct {
	slog.Handler
	level slog.Leveler
}

func (h *levelHandler) Enabled(ctx context.Context, l slog.Level) bool {
	if h.level != nil && l < h.level.Level() {
		return false
	}
	return h.Handler.Enabled(ctx, l)
}

func (h *levelHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &levelHandler{Handler: h.Handler.WithAttrs(attrs), level: h.level}
}

func (h *levelHandler) WithGroup(name string) slog.Handler {
	return &levelHandler{Handler: h.Handler.WithGroup(name), level: h.level}
}

func NewLogger(opts *LoggerOptions) *Logger {
	if opts == nil {
		opts = &LoggerOptions{}
	}
	if opts.Output == nil {
		opts.Output = os.Stderr
	}
	if opts.Level == nil {
		opts.Level = slog.LevelInfo
	}
	if opts.NewHandler == nil {
		opts.NewHandler = TextHandler
	}
	level := &slog.LevelVar{}
	output := &outputVar{opts.Output}
	level.Set(opts.Level.Level())
	return &Logger{
		Logger: slog.New(opts.NewHandler(output, &slog.HandlerOptions{
			AddSource:   opts.AddSource,
			Level:       level,
			ReplaceAttr: opts.ReplaceAttr,
		})),
		output: output,
		level:  level,
	}
}

// DiscardLogger 返回丢弃所有输出的日志记录器
func DiscardLogger() *Logger {
	return NewLogger(&LoggerOptions{Output: io.Discard, Level: slog.LevelError + 4})
}

func (l *Logger) Output() io.Writer {
	return l.output.Writer
}

func (l *Logger) SetLevel(level slog.Level) (oldLevel slog.Level) {
	oldLevel = l.level.Level()
	l.level.Set(level)
	return
}

func (l *Logger) Level() slog.Leveler {
	return l.level
}

func (l *Logger) With(args ...any) *Logger {
	return &Logger{
		Logger: l.Logger.With(args...),
		output: l.output,
		level:  l.level,
	}
}

func (l *Logger) WithGroup(name string) *Logger {
	return &Logger{
		Logger: l.Logger.WithGroup(name),
		output: l.output,
		level:  l.level,
	}
}
