package middleware

import (
	"bufio"
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-slim.dev/gotham"
	"go-slim.dev/gotham/nego"
)

func accessLogs(t *testing.T, out *bytes.Buffer) []map[string]any {
	t.Helper()
	var records []map[string]any
	sc := bufio.NewScanner(out)
	for sc.Scan() {
		var rec map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &rec))
		if rec["msg"] == "request completed" {
			records = append(records, rec)
		}
	}
	return records
}

func TestLogger_SlogEntry(t *testing.T) {
	var out bytes.Buffer
	pipelines := gotham.NewPipelineSet()
	h := pipelines.Add(gotham.NewPipeline().Use(Logger()))
	r, err := gotham.NewRouter(gotham.RouterConfig{
		Pipelines: pipelines,
		Chain:     gotham.PipelineChain{h},
		Logger: gotham.NewLogger(&gotham.LoggerOptions{
			Output:     &out,
			Level:      slog.LevelInfo,
			NewHandler: gotham.JSONHandler,
		}),
	}, func(b *gotham.Builder) {
		b.GET("/items/:id").Name("item").To(ok)
		b.GET("/err").To(func(c gotham.Context) error {
			return &gotham.HTTPError{Code: http.StatusTeapot, Message: "teapot"}
		})
		b.GET("/boom").To(func(c gotham.Context) error {
			return gotham.ErrInternalServerError
		})
	})
	require.NoError(t, err)

	rw := performReq(t, r, http.MethodGet, "http://example.com/items/7?x=1", map[string]string{
		nego.HeaderXRequestID: "req-1",
	})
	assert.Equal(t, http.StatusOK, rw.Code)
	logs := accessLogs(t, &out)
	require.Len(t, logs, 1)
	assert.Equal(t, "INFO", logs[0]["level"])
	assert.Equal(t, "GET", logs[0]["method"])
	assert.Equal(t, "http://example.com/items/7", logs[0]["uri"])
	assert.Equal(t, "/items/:id", logs[0]["route"])
	assert.Equal(t, "item", logs[0]["route_name"])
	assert.Equal(t, "x=1", logs[0]["query"])
	assert.EqualValues(t, 200, logs[0]["status"])
	assert.EqualValues(t, 2, logs[0]["size"])
	assert.NotContains(t, logs[0], "error")

	out.Reset()
	rw = performReq(t, r, http.MethodGet, "http://example.com/err", nil)
	assert.Equal(t, http.StatusTeapot, rw.Code)
	logs = accessLogs(t, &out)
	require.Len(t, logs, 1)
	assert.Equal(t, "WARN", logs[0]["level"])
	assert.EqualValues(t, 418, logs[0]["status"])
	assert.Contains(t, logs[0]["error"], "teapot")

	out.Reset()
	performReq(t, r, http.MethodGet, "http://example.com/boom", nil)
	logs = accessLogs(t, &out)
	require.Len(t, logs, 1)
	assert.Equal(t, "ERROR", logs[0]["level"])
	assert.EqualValues(t, 500, logs[0]["status"])
}

func TestLogger_NonMatchNotLogged(t *testing.T) {
	var out bytes.Buffer
	pipelines := gotham.NewPipelineSet()
	h := pipelines.Add(gotham.NewPipeline().Use(Logger()))
	r := gotham.MustNewRouter(gotham.RouterConfig{
		Pipelines: pipelines,
		Chain:     gotham.PipelineChain{h},
		Logger:    gotham.NewLogger(&gotham.LoggerOptions{Output: &out, NewHandler: gotham.JSONHandler}),
	}, func(b *gotham.Builder) {
		b.GET("/").To(ok)
	})

	rw := performReq(t, r, http.MethodGet, "http://example.com/missing", nil)
	assert.Equal(t, http.StatusNotFound, rw.Code)
	assert.Empty(t, accessLogs(t, &out))
}

func TestLogger_ConsoleEntry(t *testing.T) {
	var out bytes.Buffer
	mw := LoggerWithConfig(LoggerConfig{
		NewEntry: func(gotham.Context) LogEntry {
			return NewConsoleEntry(&out, "")
		},
	})
	r := newRouter(t, []gotham.MiddlewareFunc{mw}, func(b *gotham.Builder) {
		b.GET("/items/:id").To(ok)
		b.GET("/err").To(func(c gotham.Context) error {
			return &gotham.HTTPError{Code: http.StatusTeapot, Message: "teapot"}
		})
	})

	performReq(t, r, http.MethodGet, "http://example.com/items/7", map[string]string{
		nego.HeaderXRequestID: "req-1",
	})
	line := out.String()
	assert.True(t, strings.HasPrefix(line, "[req-1] "), line)
	assert.Contains(t, line, `"GET http://example.com/items/7 HTTP/1.1"`)
	assert.Contains(t, line, "(/items/:id)")
	assert.Contains(t, line, " - 200 2B in ")
	assert.NotContains(t, line, "\x1b[", "no colors for a non-terminal output")

	out.Reset()
	performReq(t, r, http.MethodGet, "http://example.com/err", nil)
	assert.Contains(t, out.String(), " - 418 ")
	assert.Contains(t, out.String(), "Spot a mistake:")
	assert.Contains(t, out.String(), "teapot")
}

type recordingEntry struct {
	SlogEntry
	payloads []LogPayload
}

func (e *recordingEntry) Begin(gotham.Context) map[string]any {
	return map[string]any{"begin": 1}
}

func (e *recordingEntry) End(_ gotham.Context, err error) map[string]any {
	return map[string]any{"failed": err != nil}
}

func (e *recordingEntry) Print(_ gotham.Context, p LogPayload) {
	e.payloads = append(e.payloads, p)
}

func TestLogger_CustomEntry(t *testing.T) {
	entry := &recordingEntry{}
	mw := LoggerWithConfig(LoggerConfig{NewEntry: func(gotham.Context) LogEntry { return entry }})
	r := newRouter(t, []gotham.MiddlewareFunc{mw}, func(b *gotham.Builder) {
		b.POST("/items/:id").To(func(c gotham.Context) error {
			return c.NoContent(http.StatusCreated)
		})
	})
	performReq(t, r, http.MethodPost, "http://example.com/items/7?x=1", nil)
	require.Len(t, entry.payloads, 1)
	p := entry.payloads[0]
	assert.Equal(t, http.MethodPost, p.Method)
	assert.Equal(t, http.StatusCreated, p.StatusCode)
	assert.Equal(t, "x=1", p.RawQuery)
	assert.Equal(t, "/items/:id", p.Route)
	assert.NotEmpty(t, p.RequestID)
	assert.Equal(t, map[string]any{"begin": 1, "failed": false}, p.Extra)
}

func TestLogger_Skipper(t *testing.T) {
	entry := &recordingEntry{}
	mw := LoggerWithConfig(LoggerConfig{
		Skipper:  func(c gotham.Context) bool { return c.Request().URL.Path == "/health" },
		NewEntry: func(gotham.Context) LogEntry { return entry },
	})
	r := newRouter(t, []gotham.MiddlewareFunc{mw}, func(b *gotham.Builder) {
		b.GET("/health").To(ok)
		b.GET("/").To(ok)
	})
	performReq(t, r, http.MethodGet, "/health", nil)
	performReq(t, r, http.MethodGet, "/", nil)
	require.Len(t, entry.payloads, 1)
	assert.Equal(t, "http://example.com/", entry.payloads[0].RequestURI)
}

func TestFormatExtra(t *testing.T) {
	assert.Nil(t, formatExtra(nil))
	assert.Equal(t, `{"a":1}`, string(formatExtra(map[string]any{"a": 1})))
	long := formatExtra(map[string]any{"key": strings.Repeat("x", 100)})
	assert.Contains(t, string(long), "\n  \"key\"")
}
