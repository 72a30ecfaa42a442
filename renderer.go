package gotham

import (
	"bytes"
	"io"
	"net/http"

	"go-slim.dev/gotham/nego"
)

// Renderer is the interface that wraps the Render function.
type Renderer interface {
	Render(c Context, w io.Writer, name string, data any) error
}

// TemplateRenderer is helper to ease creating renderers for `html/template` and `text/template` packages.
// Example usage:
//
//	config.Renderer = &gotham.TemplateRenderer{
//		Template: template.Must(template.ParseGlob("templates/*.html")),
//	}
type TemplateRenderer struct {
	Template interface {
		ExecuteTemplate(wr io.Writer, name string, data any) error
	}
}

// Render renders the template with given data.
func (t *TemplateRenderer) Render(_ Context, w io.Writer, name string, data any) error {
	return t.Template.ExecuteTemplate(w, name, data)
}

// RenderErrorPage 返回用模板替换错误响应体的扩展器，注册到 ResponseFinalizerBuilder。
// 模板数据为 ErrorPage，渲染失败时保留原来的响应体。
func RenderErrorPage(name string) ResponseExtenderFunc {
	return func(c Context) {
		renderer := c.Router().renderer
		if renderer == nil {
			c.Logger().Warn("error page skipped", "template", name, "error", ErrRendererNotRegistered)
			return
		}
		res := c.Response()
		page := ErrorPage{
			Status:    res.Status(),
			Message:   http.StatusText(res.Status()),
			RequestID: c.RequestID(),
		}
		buf := new(bytes.Buffer)
		if err := renderer.Render(c, buf, name, page); err != nil {
			c.Logger().Warn("failed to render error page", "template", name, "error", err)
			return
		}
		res.Header().Set(nego.HeaderContentType, nego.MIMETextHTMLCharsetUTF8)
		res.SetBody(buf.Bytes())
	}
}

// ErrorPage 错误页面模板的数据
type ErrorPage struct {
	Status    int
	Message   string
	RequestID string
}
