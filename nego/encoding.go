package nego

import (
	"net/http"
	"sort"
	"strconv"
	"strings"
)

// AcceptedEncoding Accept-Encoding 报头中的一项
type AcceptedEncoding struct {
	Encoding string
	Q        float64
}

// ParseAcceptEncoding 解析 Accept-Encoding 报头，按权重从高到低排序，
// 权重相同时保持报头中的顺序，权重为 0 的项被丢弃。
func ParseAcceptEncoding(values ...string) []AcceptedEncoding {
	var encodings []AcceptedEncoding
	for _, value := range values {
		for _, item := range strings.Split(value, ",") {
			name, params, _ := strings.Cut(item, ";")
			name = strings.ToLower(strings.TrimSpace(name))
			if name == "" {
				continue
			}
			e := AcceptedEncoding{Encoding: name, Q: 1}
			for _, p := range strings.Split(params, ";") {
				k, v, ok := strings.Cut(p, "=")
				if !ok || !strings.EqualFold(strings.TrimSpace(k), "q") {
					continue
				}
				if q, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil && q >= 0 && q <= 1 {
					e.Q = q
				}
			}
			if e.Q > 0 {
				encodings = append(encodings, e)
			}
		}
	}
	sort.SliceStable(encodings, func(i, j int) bool {
		return encodings[i].Q > encodings[j].Q
	})
	return encodings
}

// AcceptsEncodings 返回 offers 中客户端最愿意接受的内容编码，
// 没有 Accept-Encoding 报头或都不接受时返回空字符串。
func AcceptsEncodings(r *http.Request, offers ...string) string {
	for _, e := range ParseAcceptEncoding(r.Header.Values(HeaderAcceptEncoding)...) {
		for _, offer := range offers {
			if e.Encoding == "*" || strings.EqualFold(e.Encoding, offer) {
				return offer
			}
		}
	}
	return ""
}
