package gotham

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"go-slim.dev/gotham/nego"
)

// FileOptions 静态文件的响应选项
type FileOptions struct {
	// Path 文件或目录在 FS 中的路径，FS 为空时是本地文件系统路径
	Path string
	// FS 文件系统，为空时使用本地文件系统
	FS fs.FS
	// CacheControl Cache-Control 报头，默认为 public
	CacheControl string
	// Gzip 客户端接受 gzip 时优先发送预先压缩的 `<name>.gz` 文件
	Gzip bool
	// Brotli 客户端接受 br 时优先发送预先压缩的 `<name>.br` 文件
	Brotli bool
}

func (o FileOptions) resolve() (fs.FS, string) {
	if o.FS != nil {
		return o.FS, path.Clean(strings.TrimPrefix(o.Path, "/"))
	}
	return os.DirFS(filepath.Dir(o.Path)), filepath.Base(o.Path)
}

// FileHandler 返回发送单个文件的处理函数
func FileHandler(opts FileOptions) HandlerFunc {
	fsys, name := opts.resolve()
	return func(c Context) error {
		return serveFile(c, fsys, name, opts)
	}
}

// DirHandler 返回发送目录中文件的处理函数，文件路径取自路由的通配参数。
// `..` 只能回退到目录本身，目录请求发送其中的 index.html。
func DirHandler(opts FileOptions) HandlerFunc {
	if opts.FS == nil {
		opts.FS = os.DirFS(opts.Path)
		opts.Path = "."
	}
	fsys, root := opts.resolve()
	return func(c Context) error {
		var parts []string
		if info := c.RouteInfo(); info != nil {
			if params := info.Params(); len(params) > 0 {
				parts = c.PathParams().Get(params[len(params)-1])
			}
		}
		name, ok := normalizePath(parts)
		if !ok {
			return ErrNotFound
		}
		return serveFile(c, fsys, path.Join(root, name), opts)
	}
}

// normalizePath 把路径段拼接成文件系统内的相对路径，忽略 `.`，`..` 回退一级
func normalizePath(parts []string) (string, bool) {
	cleaned := make([]string, 0, len(parts))
	for _, p := range parts {
		switch {
		case p == "" || p == ".":
		case p == "..":
			if len(cleaned) > 0 {
				cleaned = cleaned[:len(cleaned)-1]
			}
		case strings.ContainsAny(p, `/\`):
			return "", false
		default:
			cleaned = append(cleaned, p)
		}
	}
	if len(cleaned) == 0 {
		return ".", true
	}
	return path.Join(cleaned...), true
}

var precompressed = []struct {
	encoding string
	ext      string
	enabled  func(FileOptions) bool
}{
	{"br", ".br", func(o FileOptions) bool { return o.Brotli }},
	{"gzip", ".gz", func(o FileOptions) bool { return o.Gzip }},
}

func serveFile(c Context, fsys fs.FS, name string, opts FileOptions) error {
	fi, err := fs.Stat(fsys, name)
	if err != nil {
		return fileError(err)
	}
	if fi.IsDir() {
		name = path.Join(name, "index.html")
		if fi, err = fs.Stat(fsys, name); err != nil {
			return fileError(err)
		}
	}

	ctype := mime.TypeByExtension(path.Ext(name))
	if ctype == "" {
		ctype = nego.MIMEApplicationOctetStream
	}

	// 按客户端的偏好依次查找预先压缩的文件
	sendName, encoding := name, ""
	if opts.Gzip || opts.Brotli {
		c.Response().Header().Add(nego.HeaderVary, nego.HeaderAcceptEncoding)
		for _, e := range nego.ParseAcceptEncoding(c.Request().Header.Values(nego.HeaderAcceptEncoding)...) {
			if found := findPrecompressed(fsys, name, e.Encoding, opts); found != "" {
				sendName, encoding = found, e.Encoding
				break
			}
		}
	}

	f, err := fsys.Open(sendName)
	if err != nil {
		return fileError(err)
	}
	defer f.Close()
	if sendName != name {
		if fi, err = f.Stat(); err != nil {
			return fileError(err)
		}
	}
	rs, ok := f.(io.ReadSeeker)
	if !ok {
		return errors.New("gotham: file does not implement io.ReadSeeker")
	}

	cacheControl := opts.CacheControl
	if cacheControl == "" {
		cacheControl = "public"
	}
	header := c.Response().Header()
	header.Set(nego.HeaderContentType, ctype)
	header.Set(nego.HeaderCacheControl, cacheControl)
	header.Set(nego.HeaderETag, entityTag(fi))
	if encoding != "" {
		header.Set(nego.HeaderContentEncoding, encoding)
	}
	c.Logger().Debug("serving file", "name", sendName, "encoding", encoding)
	http.ServeContent(c.Response(), c.Request(), fi.Name(), fi.ModTime(), rs)
	return nil
}

func findPrecompressed(fsys fs.FS, name, encoding string, opts FileOptions) string {
	for _, p := range precompressed {
		if p.encoding != encoding || !p.enabled(opts) {
			continue
		}
		if fi, err := fs.Stat(fsys, name+p.ext); err == nil && !fi.IsDir() {
			return name + p.ext
		}
	}
	return ""
}

func entityTag(fi fs.FileInfo) string {
	mod := fi.ModTime()
	return fmt.Sprintf(`W/"%x-%x.%x"`, fi.Size(), mod.Unix(), mod.Nanosecond())
}

func fileError(err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist), errors.Is(err, fs.ErrInvalid):
		return ErrNotFound
	case errors.Is(err, fs.ErrPermission):
		return ErrForbidden
	}
	return NewHTTPErrorWithInternal(http.StatusInternalServerError, err)
}

// Static 在 path 下发送目录中的文件，同时匹配 GET 和 HEAD 请求
func (b *Builder) Static(path string, opts FileOptions) {
	b.GetOrHead(strings.TrimSuffix(path, "/") + "/*filepath").To(DirHandler(opts))
}

// File 在 path 上发送单个文件，同时匹配 GET 和 HEAD 请求
func (b *Builder) File(path string, opts FileOptions) {
	b.GetOrHead(path).To(FileHandler(opts))
}
