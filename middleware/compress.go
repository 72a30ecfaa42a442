package middleware

import (
	"bytes"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"

	"go-slim.dev/gotham"
	"go-slim.dev/gotham/nego"
)

// CompressConfig defines the config for Compress middleware.
type CompressConfig struct {
	Skipper Skipper
	// GzipLevel gzip 压缩级别，为 0 时使用 gzip.DefaultCompression
	GzipLevel int
	// BrotliLevel brotli 压缩级别，为 0 时使用 4
	BrotliLevel int
	// MinLength 响应体短于该长度时不压缩
	MinLength int
	// Encodings 服务端支持的编码，客户端权重相同时靠前的优先
	Encodings []string
	// ExcludedTypes 不压缩的媒体类型前缀
	ExcludedTypes []string
}

// DefaultCompressConfig is the default Compress middleware config.
var DefaultCompressConfig = CompressConfig{
	Skipper:     DefaultSkipper,
	GzipLevel:   gzip.DefaultCompression,
	BrotliLevel: 4,
	MinLength:   1024,
	Encodings:   []string{"br", "gzip"},
	ExcludedTypes: []string{
		"image/", "video/", "audio/",
		"application/zip", "application/gzip", "application/x-brotli",
		"font/woff",
	},
}

type encoder interface {
	io.WriteCloser
	Reset(w io.Writer)
}

// Compress returns a middleware which compresses the staged response body
// with the encoding negotiated from Accept-Encoding.
func Compress() gotham.MiddlewareFunc {
	return CompressWithConfig(DefaultCompressConfig)
}

// CompressWithConfig returns a Compress middleware with config.
func CompressWithConfig(config CompressConfig) gotham.MiddlewareFunc {
	return config.ToMiddleware()
}

func (config CompressConfig) ToMiddleware() gotham.MiddlewareFunc {
	if config.Skipper == nil {
		config.Skipper = DefaultSkipper
	}
	if config.GzipLevel == 0 {
		config.GzipLevel = gzip.DefaultCompression
	}
	if config.BrotliLevel == 0 {
		config.BrotliLevel = DefaultCompressConfig.BrotliLevel
	}
	if len(config.Encodings) == 0 {
		config.Encodings = DefaultCompressConfig.Encodings
	}
	if config.ExcludedTypes == nil {
		config.ExcludedTypes = DefaultCompressConfig.ExcludedTypes
	}

	pools := map[string]*sync.Pool{
		"gzip": {New: func() any {
			w, _ := gzip.NewWriterLevel(io.Discard, config.GzipLevel)
			return w
		}},
		"br": {New: func() any {
			return brotli.NewWriterLevel(io.Discard, config.BrotliLevel)
		}},
	}
	var offers []string
	for _, e := range config.Encodings {
		if _, ok := pools[e]; ok {
			offers = append(offers, e)
		}
	}

	return func(c gotham.Context, next gotham.HandlerFunc) error {
		if config.Skipper(c) {
			return next(c)
		}
		// 错误响应由 ErrorHandler 在之后写入，不压缩
		if err := next(c); err != nil {
			return err
		}

		res := c.Response()
		if res.Committed() || c.Request().Method == http.MethodHead {
			return nil
		}
		header := res.Header()
		if !hasToken(header.Values(nego.HeaderVary), nego.HeaderAcceptEncoding) {
			header.Add(nego.HeaderVary, nego.HeaderAcceptEncoding)
		}
		if !compressible(res, config) {
			return nil
		}
		encoding := nego.AcceptsEncodings(c.Request(), offers...)
		if encoding == "" {
			return nil
		}

		pool := pools[encoding]
		w := pool.Get().(encoder)
		defer pool.Put(w)
		var buf bytes.Buffer
		w.Reset(&buf)
		if _, err := w.Write(res.Body()); err != nil {
			return err
		}
		if err := w.Close(); err != nil {
			return err
		}
		if buf.Len() >= res.Size() {
			return nil
		}

		c.Logger().Debug("response compressed", "encoding", encoding, "from", res.Size(), "to", buf.Len())
		header.Set(nego.HeaderContentEncoding, encoding)
		header.Del(nego.HeaderContentLength)
		if etag := header.Get(nego.HeaderETag); etag != "" && !strings.HasPrefix(etag, "W/") {
			header.Set(nego.HeaderETag, "W/"+etag)
		}
		res.SetBody(buf.Bytes())
		return nil
	}
}

func compressible(res gotham.ResponseWriter, config CompressConfig) bool {
	switch res.Status() {
	case http.StatusNoContent, http.StatusPartialContent, http.StatusNotModified:
		return false
	}
	if res.Size() == 0 || res.Size() < config.MinLength {
		return false
	}
	header := res.Header()
	if header.Get(nego.HeaderContentEncoding) != "" {
		return false
	}
	ct := nego.Essence(header.Get(nego.HeaderContentType))
	for _, prefix := range config.ExcludedTypes {
		if strings.HasPrefix(ct, prefix) {
			return false
		}
	}
	return true
}

func hasToken(values []string, token string) bool {
	for _, v := range values {
		for _, t := range strings.Split(v, ",") {
			if strings.EqualFold(strings.TrimSpace(t), token) {
				return true
			}
		}
	}
	return false
}
