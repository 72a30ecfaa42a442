package nego

import (
	"errors"
	"sort"
	"strconv"
	"strings"
)

var (
	ErrInvalidMediaRange = errors.New("nego: invalid media range")
	ErrNoAcceptableType  = errors.New("nego: no acceptable type")
)

// MediaRange 是 Accept 报头中的一项，例如 `text/html;level=1;q=0.8`。
type MediaRange struct {
	Type    string
	Subtype string
	Q       float64
	Params  map[string]string
	index   int
}

// String 返回 `type/subtype` 形式，不包含参数。
func (m MediaRange) String() string {
	return m.Type + "/" + m.Subtype
}

// Matches 判断媒体类型 `typ/sub` 是否落在该范围内。
func (m MediaRange) Matches(typ, sub string) bool {
	if m.Type != "*" && !strings.EqualFold(m.Type, typ) {
		return false
	}
	return m.Subtype == "*" || strings.EqualFold(m.Subtype, sub)
}

func (m MediaRange) specificity() int {
	s := 0
	if m.Type != "*" {
		s++
	}
	if m.Subtype != "*" {
		s++
	}
	if len(m.Params) > 0 {
		s++
	}
	return s
}

// parseMediaRange 解析单个媒体范围，返回参数（不含 q）和 [type, subtype]。
func parseMediaRange(s string) (map[string]string, []string, error) {
	parts := strings.Split(s, ";")
	mt := strings.TrimSpace(parts[0])
	types := strings.Split(mt, "/")
	if len(types) == 1 && types[0] == "*" {
		types = append(types, "*")
	}
	if len(types) != 2 {
		return nil, nil, ErrInvalidMediaRange
	}
	types[0] = strings.ToLower(strings.TrimSpace(types[0]))
	types[1] = strings.ToLower(strings.TrimSpace(types[1]))
	if types[0] == "" {
		types[0] = "*"
	}
	if types[1] == "" {
		types[1] = "*"
	}
	params := make(map[string]string, len(parts)-1)
	for _, p := range parts[1:] {
		kv := strings.SplitN(p, "=", 2)
		k := strings.ToLower(strings.TrimSpace(kv[0]))
		if k == "" {
			continue
		}
		v := ""
		if len(kv) == 2 {
			v = strings.Trim(strings.TrimSpace(kv[1]), `"`)
		}
		params[k] = v
	}
	return params, types, nil
}

// ParseMediaRange parses one media range.
func ParseMediaRange(s string) (MediaRange, error) {
	params, types, err := parseMediaRange(s)
	if err != nil {
		return MediaRange{}, err
	}
	m := MediaRange{Type: types[0], Subtype: types[1], Q: 1, Params: params}
	if q, ok := params["q"]; ok {
		delete(params, "q")
		if f, err := strconv.ParseFloat(q, 64); err == nil && f >= 0 && f <= 1 {
			m.Q = f
		}
	}
	return m, nil
}

// AcceptSlice 已排序的 Accept 报头，权重高且更具体的媒体范围排在前面。
type AcceptSlice []MediaRange

// ParseAccept 解析 Accept 报头，忽略无法识别的项。
func ParseAccept(header string) AcceptSlice {
	return newSlice(header, nil)
}

func newSlice(header string, onParsed func(MediaRange) bool) AcceptSlice {
	var s AcceptSlice
	for i, item := range strings.Split(header, ",") {
		if strings.TrimSpace(item) == "" {
			continue
		}
		m, err := ParseMediaRange(item)
		if err != nil {
			continue
		}
		m.index = i
		if onParsed != nil && !onParsed(m) {
			continue
		}
		s = append(s, m)
	}
	sort.SliceStable(s, func(i, j int) bool {
		if s[i].Q != s[j].Q {
			return s[i].Q > s[j].Q
		}
		if a, b := s[i].specificity(), s[j].specificity(); a != b {
			return a > b
		}
		return s[i].index < s[j].index
	})
	return s
}

// onAcceptParsed 丢弃权重为 0 的项。
func onAcceptParsed(m MediaRange) bool {
	return m.Q > 0
}

// Negotiate 返回服务端提供的类型中客户端最愿意接受的一个及其下标。
func (s AcceptSlice) Negotiate(offers ...string) (string, int, error) {
	for _, m := range s {
		if m.Q <= 0 {
			continue
		}
		for i, offer := range offers {
			typ, sub, ok := splitType(offer)
			if !ok {
				continue
			}
			if typ == "*" && sub == "*" {
				return offer, i, nil
			}
			if m.Matches(typ, sub) {
				return offer, i, nil
			}
		}
	}
	return "", -1, ErrNoAcceptableType
}

// Accepts 判断客户端是否接受给定的媒体类型。
func (s AcceptSlice) Accepts(ctype string) bool {
	typ, sub, ok := splitType(ctype)
	if !ok {
		return false
	}
	for _, m := range s {
		if m.Q > 0 && m.Matches(typ, sub) {
			return true
		}
	}
	return false
}

func splitType(t string) (string, string, bool) {
	t = Essence(t)
	i := strings.IndexByte(t, '/')
	if i <= 0 || i == len(t)-1 {
		return "", "", false
	}
	return t[:i], t[i+1:], true
}
