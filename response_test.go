package gotham

import (
	"bufio"
	"bytes"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
)

type rwWithAll struct { // implements http.ResponseWriter + Hijacker + Flusher + Pusher
	http.ResponseWriter
	flushed bool
}

func (r *rwWithAll) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	return nil, nil, nil
}
func (r *rwWithAll) Flush()                                           { r.flushed = true }
func (r *rwWithAll) Push(target string, opts *http.PushOptions) error { return nil }

type rwBasic struct{ http.ResponseWriter }

func TestResponseWriter_StatusSizeWrite(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := NewResponseWriter("GET", rec)
	if rw.Written() {
		t.Fatalf("should not be written yet")
	}
	if rw.Status() != 0 || rw.Size() != 0 {
		t.Fatalf("initial status/size wrong: %d/%d", rw.Status(), rw.Size())
	}

	// Write without explicit header sets 200 and counts bytes
	n, err := rw.Write([]byte("hello"))
	if err != nil || n != 5 {
		t.Fatalf("write returned %d, %v", n, err)
	}
	if !rw.Written() || rw.Status() != http.StatusOK || rw.Size() != 5 {
		t.Fatalf("after write status/size wrong: %d/%d", rw.Status(), rw.Size())
	}

	// WriteHeader does nothing once written
	rw.WriteHeader(http.StatusAccepted)
	if rw.Status() != http.StatusOK {
		t.Fatalf("status changed after WriteHeader post-write: %d", rw.Status())
	}
}

func TestResponseWriter_BufferedUntilCommit(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := NewResponseWriter("GET", rec)
	rw.WriteHeader(http.StatusCreated)
	rw.Write([]byte("draft"))
	if rec.Body.Len() != 0 || rec.Code != http.StatusOK || rec.Flushed {
		t.Fatalf("nothing should reach the client before commit")
	}
	if string(rw.Body()) != "draft" {
		t.Fatalf("unexpected buffered body %q", rw.Body())
	}

	rw.SetBody([]byte("final"))
	if rw.Size() != 5 {
		t.Fatalf("size should follow SetBody, got %d", rw.Size())
	}
	if err := rw.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if !rw.Committed() || rec.Code != http.StatusCreated || rec.Body.String() != "final" {
		t.Fatalf("after commit got %d %q", rec.Code, rec.Body.String())
	}

	// 提交之后直接写入底层连接
	rw.Write([]byte("+more"))
	rw.SetBody([]byte("ignored"))
	rw.Reset()
	if err := rw.Commit(); err != nil {
		t.Fatalf("second commit: %v", err)
	}
	if rec.Body.String() != "final+more" {
		t.Fatalf("unexpected body %q", rec.Body.String())
	}
}

func TestResponseWriter_Reset(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := NewResponseWriter("GET", rec)
	rw.Header().Set("X-Staged", "1")
	rw.WriteHeader(http.StatusTeapot)
	rw.Write([]byte("tea"))
	rw.Reset()
	if rw.Written() || rw.Size() != 0 || len(rw.Body()) != 0 || rw.Header().Get("X-Staged") != "" {
		t.Fatalf("reset should discard status, body and headers")
	}
	if err := rw.Commit(); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusOK || rec.Body.Len() != 0 {
		t.Fatalf("empty commit should send 200 with no body, got %d %q", rec.Code, rec.Body.String())
	}
}

func TestResponseWriter_HEADDoesNotCountBody(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := NewResponseWriter("HEAD", rec)
	rw.WriteHeader(http.StatusNoContent)
	rw.Write(bytes.Repeat([]byte{'a'}, 10))
	if rw.Size() != 0 {
		t.Fatalf("HEAD should not accumulate body size, got %d", rw.Size())
	}
	rw.SetBody([]byte("abc"))
	if rw.Size() != 0 || len(rw.Body()) != 0 {
		t.Fatalf("HEAD should not keep a body")
	}
}

func TestResponseWriter_HijackAndPushAndFlush(t *testing.T) {
	// Hijack not supported
	rec := httptest.NewRecorder()
	rw := &responseWriter{method: "GET", ResponseWriter: &rwBasic{rec}}
	if _, _, err := rw.Hijack(); err != ErrHijackNotSupported {
		t.Fatalf("expected hijack error when not supported, got %v", err)
	}
	if err := rw.Push("/x", nil); err != ErrPushNotSupported {
		t.Fatalf("expected push error when not supported, got %v", err)
	}

	// Supported
	rec2 := httptest.NewRecorder()
	full := &rwWithAll{ResponseWriter: rec2}
	rw2 := &responseWriter{method: "GET", ResponseWriter: full}
	rw2.Write([]byte("chunk"))
	rw2.Flush()
	if !full.flushed || !rw2.Committed() || rec2.Body.String() != "chunk" {
		t.Fatalf("flush should commit and flush the connection")
	}
	if err := rw2.Push("/x", nil); err != nil {
		t.Fatalf("unexpected push err: %v", err)
	}

	rw3 := &responseWriter{method: "GET", ResponseWriter: &rwWithAll{ResponseWriter: httptest.NewRecorder()}}
	if _, _, err := rw3.Hijack(); err != nil {
		t.Fatalf("unexpected hijack err: %v", err)
	}
	if !rw3.Committed() || rw3.Status() != http.StatusSwitchingProtocols {
		t.Fatalf("hijacked response should be committed")
	}
}
