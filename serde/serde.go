package serde

import (
	"io"
	"mime"
	"strings"
	"sync"
)

// Serializer 序列化 json、xml、yaml 或 toml
type Serializer interface {
	// MediaType 返回序列化结果的媒体类型，不含参数
	MediaType() string
	// Serialize 序列化数据
	Serialize(w io.Writer, v any, indent string) error
	// Deserialize 反序列化
	Deserialize(r io.Reader, v any) error
}

// Registry 按媒体类型查找序列化器，可以被并发使用。
type Registry struct {
	mu          sync.RWMutex
	serializers map[string]Serializer
	aliases     map[string]string
}

// NewRegistry 创建注册表并注册 s
func NewRegistry(s ...Serializer) *Registry {
	r := &Registry{
		serializers: make(map[string]Serializer),
		aliases:     make(map[string]string),
	}
	for _, v := range s {
		r.Register(v)
	}
	return r
}

// Default 返回包含 JSON、XML、YAML 和 TOML 的注册表
func Default() *Registry {
	r := NewRegistry(JSONSerializer{}, XMLSerializer{}, YAMLSerializer{}, TOMLSerializer{})
	r.Alias("text/xml", MIMEApplicationXML)
	r.Alias("application/x-yaml", MIMEApplicationYAML)
	r.Alias("text/yaml", MIMEApplicationYAML)
	return r
}

// Register 注册序列化器，相同媒体类型的序列化器会被替换
func (r *Registry) Register(s Serializer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.serializers[s.MediaType()] = s
}

// Alias 让 alias 使用 target 的序列化器
func (r *Registry) Alias(alias, target string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.aliases[strings.ToLower(alias)] = target
}

// Lookup 根据 Content-Type 报头查找序列化器，忽略参数和大小写，
// 也识别 application/vnd.api+json 这样的结构化后缀。
func (r *Registry) Lookup(contentType string) (Serializer, bool) {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if target, ok := r.aliases[mt]; ok {
		mt = target
	}
	if s, ok := r.serializers[mt]; ok {
		return s, true
	}
	if i := strings.LastIndexByte(mt, '+'); i > 0 {
		if s, ok := r.serializers["application/"+mt[i+1:]]; ok {
			return s, true
		}
	}
	return nil, false
}

// MediaTypes 返回已注册的媒体类型
func (r *Registry) MediaTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.serializers))
	for t := range r.serializers {
		types = append(types, t)
	}
	return types
}
