package gotham

import (
	"errors"
	"html/template"
	"io"
	"net/http"
	"strings"
	"testing"

	"go-slim.dev/gotham/nego"
)

type fakeTmpl struct {
	lastName  string
	lastData  any
	shouldErr bool
}

func (f *fakeTmpl) ExecuteTemplate(wr io.Writer, name string, data any) error {
	f.lastName = name
	f.lastData = data
	if f.shouldErr {
		return errors.New("tmpl err")
	}
	_, _ = wr.Write([]byte("ok"))
	return nil
}

func TestTemplateRenderer_Render_Success(t *testing.T) {
	ft := &fakeTmpl{}
	r := &TemplateRenderer{Template: ft}
	var b strings.Builder
	if err := r.Render(nil, &b, "hello", 123); err != nil {
		t.Fatalf("Render error: %v", err)
	}
	if ft.lastName != "hello" || ft.lastData.(int) != 123 {
		t.Fatalf("template called with wrong params: %v %v", ft.lastName, ft.lastData)
	}
	if b.String() != "ok" {
		t.Fatalf("unexpected render output: %q", b.String())
	}
}

func TestTemplateRenderer_Render_Error(t *testing.T) {
	ft := &fakeTmpl{shouldErr: true}
	r := &TemplateRenderer{Template: ft}
	var b strings.Builder
	if err := r.Render(nil, &b, "bad", nil); err == nil {
		t.Fatalf("expected error from ExecuteTemplate")
	}
}

func templates() *TemplateRenderer {
	tmpl := template.Must(template.New("hello").Parse(`Hello, {{.}}!`))
	template.Must(tmpl.New("error").Parse(`<h1>{{.Status}} {{.Message}}</h1><p>{{.RequestID}}</p>`))
	return &TemplateRenderer{Template: tmpl}
}

func TestContext_Render(t *testing.T) {
	r := testRouter(t, RouterConfig{Renderer: templates()}, func(b *Builder) {
		b.GET("/hello/:name").To(func(c Context) error {
			return c.Render(http.StatusOK, "hello", c.PathParam("name"))
		})
		b.GET("/missing").To(func(c Context) error {
			return c.Render(http.StatusOK, "nope", nil)
		})
	})

	w := serve(r, http.MethodGet, "/hello/%3Cgopher%3E")
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	if body := w.Body.String(); body != "Hello, &lt;gopher&gt;!" {
		t.Fatalf("body=%q", body)
	}
	if ct := w.Header().Get(nego.HeaderContentType); ct != nego.MIMETextHTMLCharsetUTF8 {
		t.Fatalf("content-type=%q", ct)
	}

	if w = serve(r, http.MethodGet, "/missing"); w.Code != http.StatusInternalServerError {
		t.Fatalf("unknown template: status=%d", w.Code)
	}
}

func TestContext_RenderWithoutRenderer(t *testing.T) {
	var renderErr error
	r := testRouter(t, RouterConfig{}, func(b *Builder) {
		b.GET("/").To(func(c Context) error {
			renderErr = c.Render(http.StatusOK, "hello", nil)
			return c.HTML(http.StatusOK, "<p>fallback</p>")
		})
	})
	w := serve(r, http.MethodGet, "/")
	if !errors.Is(renderErr, ErrRendererNotRegistered) {
		t.Fatalf("err=%v", renderErr)
	}
	if w.Body.String() != "<p>fallback</p>" {
		t.Fatalf("body=%q", w.Body.String())
	}
}

func TestRenderErrorPage(t *testing.T) {
	finalizer := NewResponseFinalizerBuilder().
		Add(http.StatusNotFound, RenderErrorPage("error")).
		Build()
	r := testRouter(t, RouterConfig{Renderer: templates(), Finalizer: finalizer}, func(b *Builder) {
		b.GET("/").To(func(c Context) error { return c.String(http.StatusOK, "home") })
	})

	w := serve(r, http.MethodGet, "/nowhere", nego.HeaderXRequestID, "req-1")
	if w.Code != http.StatusNotFound {
		t.Fatalf("status=%d", w.Code)
	}
	if body := w.Body.String(); body != "<h1>404 Not Found</h1><p>req-1</p>" {
		t.Fatalf("body=%q", body)
	}
	if ct := w.Header().Get(nego.HeaderContentType); ct != nego.MIMETextHTMLCharsetUTF8 {
		t.Fatalf("content-type=%q", ct)
	}

	if w = serve(r, http.MethodGet, "/"); w.Body.String() != "home" {
		t.Fatalf("body=%q", w.Body.String())
	}
}

func TestRenderErrorPage_KeepsBodyWhenTemplateFails(t *testing.T) {
	finalizer := NewResponseFinalizerBuilder().
		Add(http.StatusNotFound, RenderErrorPage("absent")).
		Build()
	r := testRouter(t, RouterConfig{Renderer: templates(), Finalizer: finalizer}, nil)

	w := serve(r, http.MethodGet, "/nowhere")
	if w.Code != http.StatusNotFound || w.Body.String() != "404 page not found\n" {
		t.Fatalf("status=%d body=%q", w.Code, w.Body.String())
	}
}
