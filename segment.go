package gotham

import (
	"cmp"
	"fmt"
	"regexp"
	"strings"
)

// SegmentType 路径段的类型，声明顺序即匹配优先级。
type SegmentType uint8

const (
	// SegmentStatic 静态段，如 `/products`
	SegmentStatic SegmentType = iota
	// SegmentConstrained 带正则约束的动态段，如 `/:id:[0-9]+`
	SegmentConstrained
	// SegmentDynamic 动态段，如 `/:name`
	SegmentDynamic
	// SegmentGlob 通配段，匹配剩余的一个或多个段，如 `/*rest`
	SegmentGlob
)

func (t SegmentType) String() string {
	switch t {
	case SegmentStatic:
		return "static"
	case SegmentConstrained:
		return "constrained"
	case SegmentDynamic:
		return "dynamic"
	case SegmentGlob:
		return "glob"
	}
	return fmt.Sprintf("SegmentType(%d)", uint8(t))
}

const (
	paramLabel  = ':'
	globLabel   = '*'
	escapeLabel = '\\'
)

// Segment 路由模板中的一段
type Segment struct {
	Type SegmentType
	// Name 静态段为字面文本，其余为参数名
	Name string
	// Regex 仅在 SegmentConstrained 时非空，已锚定为 `^...$`
	Regex *regexp.Regexp
	// source 未锚定的正则源文本
	source string
}

// ParseSegment 解析单个模板段：
//
//	:name        动态段
//	:name:regex  约束段
//	*  或 *name  通配段
//	\text        转义的静态段
//	text         静态段
func ParseSegment(raw string) (Segment, error) {
	switch {
	case raw == "":
		return Segment{}, fmt.Errorf("%w: empty segment", ErrInvalidSegment)
	case raw[0] == escapeLabel:
		return Segment{Type: SegmentStatic, Name: raw[1:]}, nil
	case raw[0] == globLabel:
		name := raw[1:]
		if name == "" {
			name = string(globLabel)
		}
		return Segment{Type: SegmentGlob, Name: name}, nil
	case raw[0] == paramLabel:
		name, source, constrained := strings.Cut(raw[1:], string(paramLabel))
		if name == "" {
			return Segment{}, fmt.Errorf("%w: %q has no parameter name", ErrInvalidSegment, raw)
		}
		if !constrained {
			return Segment{Type: SegmentDynamic, Name: name}, nil
		}
		re, err := regexp.Compile("^" + source + "$")
		if err != nil {
			return Segment{}, fmt.Errorf("%w: %q: %w", ErrInvalidSegment, raw, err)
		}
		return Segment{Type: SegmentConstrained, Name: name, Regex: re, source: source}, nil
	}
	return Segment{Type: SegmentStatic, Name: raw}, nil
}

// ParseTemplate 解析路由模板，例如 `/user/:id:[0-9]+/*rest`。
// 通配段只能出现在最后。
func ParseTemplate(template string) ([]Segment, error) {
	template = strings.TrimPrefix(template, "/")
	if template == "" {
		return nil, nil
	}
	raws := strings.Split(template, "/")
	segments := make([]Segment, 0, len(raws))
	for i, raw := range raws {
		if raw == "" {
			continue
		}
		seg, err := ParseSegment(raw)
		if err != nil {
			return nil, err
		}
		if seg.Type == SegmentGlob && i != len(raws)-1 {
			return nil, fmt.Errorf("%w: %q", ErrGlobNotLast, template)
		}
		segments = append(segments, seg)
	}
	return segments, nil
}

// Source 返回约束段的正则源文本
func (s Segment) Source() string {
	return s.source
}

// Compare 按类型、正则源文本、名称的顺序比较两个段。
func (s Segment) Compare(o Segment) int {
	if c := cmp.Compare(s.Type, o.Type); c != 0 {
		return c
	}
	if c := cmp.Compare(s.source, o.source); c != 0 {
		return c
	}
	return cmp.Compare(s.Name, o.Name)
}

// Equal 判断两个段在路由树中是否可以共用一个节点
func (s Segment) Equal(o Segment) bool {
	return s.Compare(o) == 0
}

// Match 判断请求路径段 value 能否被该段接受
func (s Segment) Match(value string) bool {
	switch s.Type {
	case SegmentStatic:
		return s.Name == value
	case SegmentConstrained:
		return s.Regex.MatchString(value)
	}
	return true
}

// String 返回模板形式
func (s Segment) String() string {
	switch s.Type {
	case SegmentConstrained:
		return string(paramLabel) + s.Name + string(paramLabel) + s.source
	case SegmentDynamic:
		return string(paramLabel) + s.Name
	case SegmentGlob:
		if s.Name == string(globLabel) {
			return s.Name
		}
		return string(globLabel) + s.Name
	}
	if s.Name != "" && (s.Name[0] == paramLabel || s.Name[0] == globLabel || s.Name[0] == escapeLabel) {
		return string(escapeLabel) + s.Name
	}
	return s.Name
}

// SegmentMapping 参数名到值的映射，通配段会有多个值。
type SegmentMapping map[string][]string

// Add 追加值
func (m SegmentMapping) Add(name string, values ...string) {
	m[name] = append(m[name], values...)
}

// Get 返回参数的所有值
func (m SegmentMapping) Get(name string) []string {
	return m[name]
}

// First 返回第一个值，不存在时返回空字符串
func (m SegmentMapping) First(name string) string {
	if vs := m[name]; len(vs) > 0 {
		return vs[0]
	}
	return ""
}

// Clone 深拷贝
func (m SegmentMapping) Clone() SegmentMapping {
	c := make(SegmentMapping, len(m))
	for k, vs := range m {
		c[k] = append([]string(nil), vs...)
	}
	return c
}
