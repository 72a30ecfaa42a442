package nego

import (
	"net/http"

	lru "github.com/hashicorp/golang-lru"
)

// Negotiator 内容协商工具，用 LRU 缓存最近解析过的 Accept 报头。
type Negotiator struct {
	onParsed func(MediaRange) bool
	cache    *lru.Cache
}

// NewNegotiator 创建内容协商工具，capacity 是缓存的报头数量，0 表示不缓存。
// onParsed 用于过滤解析出的媒体范围，为 nil 时丢弃权重为 0 的项。
func NewNegotiator(capacity int, onParsed func(MediaRange) bool) *Negotiator {
	if onParsed == nil {
		onParsed = onAcceptParsed
	}
	n := &Negotiator{onParsed: onParsed}
	if capacity > 0 {
		// 只有 capacity <= 0 时才会出错
		n.cache, _ = lru.New(capacity)
	}
	return n
}

// Parse 解析 Accept 报头
func (n *Negotiator) Parse(header string) AcceptSlice {
	if n.cache == nil {
		return newSlice(header, n.onParsed)
	}
	if v, ok := n.cache.Get(header); ok {
		return v.(AcceptSlice)
	}
	s := newSlice(header, n.onParsed)
	n.cache.Add(header, s)
	return s
}

// Accepts 返回 offers 中客户端最愿意接受的媒体类型，header 为空时返回第一项。
func (n *Negotiator) Accepts(header string, offers ...string) string {
	if len(offers) == 0 {
		return ""
	}
	if header == "" {
		return offers[0]
	}
	ct, _, err := n.Parse(header).Negotiate(offers...)
	if err != nil {
		return ""
	}
	return ct
}

// Type 与 Accepts 相同，但 types 可以是扩展名（如 json、xml），返回原始值。
func (n *Negotiator) Type(r *http.Request, types ...string) string {
	offers := make([]string, 0, len(types))
	index := make([]int, 0, len(types))
	for i, t := range types {
		if m := Lookup(t); m != "" {
			offers = append(offers, m)
			index = append(index, i)
		}
	}
	if len(offers) == 0 {
		return ""
	}
	header := r.Header.Get(HeaderAccept)
	if header == "" {
		return types[index[0]]
	}
	_, i, err := n.Parse(header).Negotiate(offers...)
	if err != nil {
		return ""
	}
	return types[index[i]]
}
