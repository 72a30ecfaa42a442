package bench

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-chi/chi/v5"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/labstack/echo/v4"
	"go-slim.dev/gotham"
)

// reply 路由的响应方式
type reply int

const (
	replyText reply = iota
	replyJSON
	replyEmpty
	replyParam
	replyTyped
)

type route struct {
	method string
	path   string
	reply  reply
}

// scenario 一组路由加上 n 层只调用 next 的中间件
type scenario struct {
	routes     []route
	middleware int
}

// framework 按 scenario 构建 http.Handler
type framework struct {
	name  string
	build func(s scenario) http.Handler
}

var frameworks = []framework{
	{"Gotham", buildGotham},
	{"Gin", buildGin},
	{"Echo", buildEcho},
	{"Fiber", buildFiber},
	{"Chi", buildChi},
}

var payload = struct {
	Message string `json:"message"`
}{Message: "pong"}

type userPath struct {
	ID string `path:"id"`
}

func buildGotham(s scenario) http.Handler {
	config := gotham.RouterConfig{Logger: gotham.DiscardLogger()}
	if s.middleware > 0 {
		p := gotham.NewPipeline()
		for i := 0; i < s.middleware; i++ {
			p.Use(func(c gotham.Context, next gotham.HandlerFunc) error { return next(c) })
		}
		config.Pipelines = gotham.NewPipelineSet()
		config.Chain = gotham.PipelineChain{config.Pipelines.Add(p)}
	}
	r := gotham.MustNewRouter(config, func(b *gotham.Builder) {
		for _, rt := range s.routes {
			rb := b.Request([]string{rt.method}, rt.path)
			switch rt.reply {
			case replyText:
				rb.To(func(c gotham.Context) error { return c.String(http.StatusOK, "pong") })
			case replyJSON:
				rb.To(func(c gotham.Context) error { return c.JSON(http.StatusOK, payload) })
			case replyEmpty:
				rb.To(func(c gotham.Context) error { return c.NoContent(http.StatusOK) })
			case replyParam:
				rb.To(func(c gotham.Context) error { return c.String(http.StatusOK, c.PathParam("id")) })
			case replyTyped:
				rb.WithPathExtractor(gotham.NewPathExtractor[userPath]()).To(func(c gotham.Context) error {
					p, _ := gotham.PathOf[userPath](c)
					return c.String(http.StatusOK, p.ID)
				})
			}
		}
	})
	return r
}

func buildGin(s scenario) http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	for i := 0; i < s.middleware; i++ {
		r.Use(func(c *gin.Context) { c.Next() })
	}
	for _, rt := range s.routes {
		var h gin.HandlerFunc
		switch rt.reply {
		case replyText:
			h = func(c *gin.Context) { c.String(http.StatusOK, "pong") }
		case replyJSON:
			h = func(c *gin.Context) { c.JSON(http.StatusOK, payload) }
		case replyEmpty:
			h = func(c *gin.Context) { c.Status(http.StatusOK) }
		default:
			h = func(c *gin.Context) { c.String(http.StatusOK, c.Param("id")) }
		}
		r.Handle(rt.method, rt.path, h)
	}
	return r
}

func buildEcho(s scenario) http.Handler {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	for i := 0; i < s.middleware; i++ {
		e.Use(func(next echo.HandlerFunc) echo.HandlerFunc { return next })
	}
	for _, rt := range s.routes {
		var h echo.HandlerFunc
		switch rt.reply {
		case replyText:
			h = func(c echo.Context) error { return c.String(http.StatusOK, "pong") }
		case replyJSON:
			h = func(c echo.Context) error { return c.JSON(http.StatusOK, payload) }
		case replyEmpty:
			h = func(c echo.Context) error { return c.NoContent(http.StatusOK) }
		default:
			h = func(c echo.Context) error { return c.String(http.StatusOK, c.Param("id")) }
		}
		e.Add(rt.method, rt.path, h)
	}
	return e
}

func buildFiber(s scenario) http.Handler {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	for i := 0; i < s.middleware; i++ {
		app.Use(func(c *fiber.Ctx) error { return c.Next() })
	}
	for _, rt := range s.routes {
		var h fiber.Handler
		switch rt.reply {
		case replyText:
			h = func(c *fiber.Ctx) error { return c.SendString("pong") }
		case replyJSON:
			h = func(c *fiber.Ctx) error {
				c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
				b, _ := json.Marshal(payload)
				return c.Send(b)
			}
		case replyEmpty:
			h = func(c *fiber.Ctx) error { return c.SendStatus(http.StatusOK) }
		default:
			h = func(c *fiber.Ctx) error { return c.SendString(c.Params("id")) }
		}
		app.Add(rt.method, rt.path, h)
	}
	// fiber 基于 fasthttp，通过 adaptor 转换成 http.Handler
	return adaptor.FiberApp(app)
}

func buildChi(s scenario) http.Handler {
	r := chi.NewRouter()
	for i := 0; i < s.middleware; i++ {
		r.Use(func(next http.Handler) http.Handler { return next })
	}
	for _, rt := range s.routes {
		var h http.HandlerFunc
		switch rt.reply {
		case replyText:
			h = func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("pong")) }
		case replyJSON:
			h = func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_ = json.NewEncoder(w).Encode(payload)
			}
		case replyEmpty:
			h = func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }
		default:
			h = func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte(chi.URLParam(r, "id"))) }
		}
		// chi 的参数写作 {id}
		r.Method(rt.method, chiPath(rt.path), h)
	}
	return r
}

func chiPath(p string) string {
	out := []byte{}
	for i := 0; i < len(p); i++ {
		if p[i] != ':' {
			out = append(out, p[i])
			continue
		}
		j := i + 1
		for j < len(p) && p[j] != '/' {
			j++
		}
		out = append(out, '{')
		out = append(out, p[i+1:j]...)
		out = append(out, '}')
		i = j - 1
	}
	return string(out)
}
