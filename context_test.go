package gotham

import (
	"context"
	"encoding/xml"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-slim.dev/gotham/nego"
)

type dbHandle struct{ dsn string }

func TestTypedState(t *testing.T) {
	var borrowed, taken, afterTake bool
	r := testRouter(t, RouterConfig{}, func(b *Builder) {
		p := b.AddPipeline(NewPipeline(MiddlewareFunc(func(c Context, next HandlerFunc) error {
			Put(c, &dbHandle{dsn: "mem"})
			Put(c, 42)
			return next(c)
		})))
		b.WithPipelineChain(PipelineChain{p}, func(b *Builder) {
			b.GET("/").To(func(c Context) error {
				db, ok := Borrow[*dbHandle](c)
				borrowed = ok && db.dsn == "mem" && MustBorrow[int](c) == 42
				_, taken = Take[*dbHandle](c)
				_, afterTake = Borrow[*dbHandle](c)
				_, missing := Borrow[string](c)
				assert.False(t, missing)
				assert.Panics(t, func() { MustBorrow[float64](c) })
				return nil
			})
		})
	})
	serve(r, http.MethodGet, "/")
	assert.True(t, borrowed)
	assert.True(t, taken)
	assert.False(t, afterTake)
}

func TestContext_ValuesAndParams(t *testing.T) {
	r := testRouter(t, RouterConfig{}, func(b *Builder) {
		b.GET("/items/:id").To(func(c Context) error {
			c.Set("user", "ada")
			assert.Equal(t, "ada", c.Get("user"))
			assert.Equal(t, "ada", c.Value("user"))
			assert.Equal(t, c.RequestID(), c.Value(RequestIDContextKey))
			assert.Same(t, c.Router(), c.Value(RouterContextKey))

			from, ok := FromContext(c.Request().Context())
			require.True(t, ok)
			assert.Equal(t, c.RequestID(), from.RequestID())

			ctx, cancel := context.WithCancel(c)
			cancel()
			assert.ErrorIs(t, ctx.Err(), context.Canceled)

			assert.Equal(t, "5", c.PathParam("id"))
			assert.Equal(t, []string{"items", "5"}, c.PathSegments())
			assert.Equal(t, "b", c.QueryParam("a"))
			assert.Equal(t, []string{"b", "c"}, c.QueryParams().Get("a"))
			assert.Equal(t, "yes", c.Header("X-Test"))
			c.SetHeader("X-Multi", "1", "2")
			return c.XML(http.StatusOK, struct {
				XMLName xml.Name `xml:"item"`
				ID      string   `xml:"id"`
			}{ID: c.PathParam("id")})
		})
	})
	rec := serve(r, http.MethodGet, "/items/5?a=b&a=c", "X-Test", "yes")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"1", "2"}, rec.Header().Values("X-Multi"))
	assert.Equal(t, nego.MIMEApplicationXMLCharsetUTF8, rec.Header().Get(nego.HeaderContentType))
	assert.Equal(t, xml.Header+"<item><id>5</id></item>", rec.Body.String())
}

func TestContext_PrettyJSON(t *testing.T) {
	r := testRouter(t, RouterConfig{PrettyIndent: "  "}, func(b *Builder) {
		b.GET("/").To(func(c Context) error {
			return c.JSON(http.StatusOK, map[string]int{"a": 1})
		})
		b.GET("/blob").To(func(c Context) error {
			return c.Blob(http.StatusOK, "image/png", []byte{0x89})
		})
	})
	rec := serve(r, http.MethodGet, "/")
	assert.Equal(t, "{\n  \"a\": 1\n}\n", rec.Body.String())

	rec = serve(r, http.MethodGet, "/blob")
	assert.Equal(t, "image/png", rec.Header().Get(nego.HeaderContentType))
	assert.Equal(t, []byte{0x89}, rec.Body.Bytes())
}

func TestContext_ErrorUsesRouterHandler(t *testing.T) {
	r := testRouter(t, RouterConfig{}, func(b *Builder) {
		b.GET("/").To(func(c Context) error {
			c.Error(ErrForbidden)
			return nil
		})
	})
	rec := serve(r, http.MethodGet, "/")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Forbidden\n", rec.Body.String())
}
