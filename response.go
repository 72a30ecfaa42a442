package gotham

import (
	"bufio"
	"bytes"
	"errors"
	"net"
	"net/http"
)

var (
	ErrHijackNotSupported = errors.New("gotham: response does not implement http.Hijacker")
	ErrPushNotSupported   = errors.New("gotham: response does not implement http.Pusher")
)

// ResponseWriter 缓冲的响应写入器。状态码和响应体在提交（Commit 或 Flush）之前
// 只保存在内存中，使响应终结器能够在发送前修改响应。
type ResponseWriter interface {
	http.ResponseWriter
	http.Flusher
	http.Hijacker
	http.Pusher
	// Status 返回响应状态码，尚未写入时为 0
	Status() int
	// Size 返回响应体大小，HEAD 请求时总是 0
	Size() int
	// Written 判断是否已经写入状态码或响应体
	Written() bool
	// Committed 判断响应是否已经发送给客户端
	Committed() bool
	// Body 返回尚未提交的响应体
	Body() []byte
	// SetBody 替换尚未提交的响应体
	SetBody(b []byte)
	// Reset 丢弃尚未提交的状态码、报头和响应体
	Reset()
	// Commit 把缓冲的响应发送给客户端，重复调用无效
	Commit() error
	// Unwrap 返回原始的 http.ResponseWriter
	Unwrap() http.ResponseWriter
}

type responseWriter struct {
	method string
	http.ResponseWriter
	status    int
	size      int
	committed bool
	body      bytes.Buffer
}

// NewResponseWriter 创建缓冲的响应写入器
func NewResponseWriter(method string, w http.ResponseWriter) ResponseWriter {
	return &responseWriter{method: method, ResponseWriter: w}
}

func (w *responseWriter) reset(method string, rw http.ResponseWriter) {
	w.method = method
	w.ResponseWriter = rw
	w.status = 0
	w.size = 0
	w.committed = false
	w.body.Reset()
}

func (w *responseWriter) Status() int {
	return w.status
}

func (w *responseWriter) Size() int {
	return w.size
}

func (w *responseWriter) Written() bool {
	return w.status != 0
}

func (w *responseWriter) Committed() bool {
	return w.committed
}

// WriteHeader 记录状态码，写入后再次调用无效。
func (w *responseWriter) WriteHeader(code int) {
	if w.Written() {
		return
	}
	w.status = code
	if w.committed {
		w.ResponseWriter.WriteHeader(code)
	}
}

func (w *responseWriter) Write(b []byte) (int, error) {
	if !w.Written() {
		w.WriteHeader(http.StatusOK)
	}
	if w.method == http.MethodHead {
		return len(b), nil
	}
	if w.committed {
		n, err := w.ResponseWriter.Write(b)
		w.size += n
		return n, err
	}
	n, err := w.body.Write(b)
	w.size += n
	return n, err
}

func (w *responseWriter) Body() []byte {
	return w.body.Bytes()
}

func (w *responseWriter) SetBody(b []byte) {
	if w.committed {
		return
	}
	w.body.Reset()
	w.size = 0
	if w.method != http.MethodHead {
		w.body.Write(b)
		w.size = len(b)
	}
}

func (w *responseWriter) Reset() {
	if w.committed {
		return
	}
	header := w.ResponseWriter.Header()
	for k := range header {
		delete(header, k)
	}
	w.status = 0
	w.size = 0
	w.body.Reset()
}

func (w *responseWriter) Commit() error {
	if w.committed {
		return nil
	}
	w.committed = true
	if w.status == 0 {
		w.status = http.StatusOK
	}
	w.ResponseWriter.WriteHeader(w.status)
	if w.body.Len() == 0 {
		return nil
	}
	_, err := w.ResponseWriter.Write(w.body.Bytes())
	w.body.Reset()
	return err
}

// Flush 提交缓冲的响应并刷新底层连接，之后的写入将直接发送。
func (w *responseWriter) Flush() {
	if err := w.Commit(); err != nil {
		return
	}
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, ErrHijackNotSupported
	}
	conn, rw, err := h.Hijack()
	if err == nil {
		w.committed = true
		if w.status == 0 {
			w.status = http.StatusSwitchingProtocols
		}
	}
	return conn, rw, err
}

func (w *responseWriter) Push(target string, opts *http.PushOptions) error {
	if p, ok := w.ResponseWriter.(http.Pusher); ok {
		return p.Push(target, opts)
	}
	return ErrPushNotSupported
}

func (w *responseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
