package gotham

import (
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
)

type methodBit uint16

const (
	methodConnect methodBit = 1 << iota
	methodDelete
	methodGet
	methodHead
	methodOptions
	methodPatch
	methodPost
	methodPut
	methodTrace
)

var knownMethods = []struct {
	name string
	bit  methodBit
}{
	{http.MethodConnect, methodConnect},
	{http.MethodDelete, methodDelete},
	{http.MethodGet, methodGet},
	{http.MethodHead, methodHead},
	{http.MethodOptions, methodOptions},
	{http.MethodPatch, methodPatch},
	{http.MethodPost, methodPost},
	{http.MethodPut, methodPut},
	{http.MethodTrace, methodTrace},
}

const defaultMethodBits = methodDelete | methodGet | methodHead | methodOptions | methodPatch | methodPost | methodPut

func bitOf(method string) methodBit {
	for _, m := range knownMethods {
		if m.name == method {
			return m.bit
		}
	}
	return 0
}

// MethodSet 请求方法集合。标准方法保存在位图中，扩展方法保存在有序切片中，
// 因此常见情况下计算 Allow 列表不需要分配内存。
type MethodSet struct {
	bits       methodBit
	extensions []string
}

// DefaultMethodSet 返回默认的方法集合：OPTIONS、GET、POST、PUT、DELETE、HEAD、PATCH。
func DefaultMethodSet() MethodSet {
	return MethodSet{bits: defaultMethodBits}
}

// NewMethodSet 创建包含给定方法的集合
func NewMethodSet(methods ...string) MethodSet {
	var s MethodSet
	for _, method := range methods {
		if bit := bitOf(method); bit != 0 {
			s.bits |= bit
		} else if i, found := slices.BinarySearch(s.extensions, method); !found {
			s.extensions = slices.Insert(s.extensions, i, method)
		}
	}
	return s
}

// Has 判断集合是否包含给定方法
func (s MethodSet) Has(method string) bool {
	if bit := bitOf(method); bit != 0 {
		return s.bits&bit != 0
	}
	_, found := slices.BinarySearch(s.extensions, method)
	return found
}

// Len 返回集合大小
func (s MethodSet) Len() int {
	n := len(s.extensions)
	for b := s.bits; b != 0; b &= b - 1 {
		n++
	}
	return n
}

// Intersection 返回交集
func (s MethodSet) Intersection(o MethodSet) MethodSet {
	r := MethodSet{bits: s.bits & o.bits}
	for _, m := range s.extensions {
		if _, found := slices.BinarySearch(o.extensions, m); found {
			r.extensions = append(r.extensions, m)
		}
	}
	return r
}

// Union 返回并集
func (s MethodSet) Union(o MethodSet) MethodSet {
	r := MethodSet{bits: s.bits | o.bits}
	if len(s.extensions)+len(o.extensions) > 0 {
		r.extensions = make([]string, 0, len(s.extensions)+len(o.extensions))
		r.extensions = append(r.extensions, s.extensions...)
		r.extensions = append(r.extensions, o.extensions...)
		slices.Sort(r.extensions)
		r.extensions = slices.Compact(r.extensions)
	}
	return r
}

// Equal 判断两个集合是否相等
func (s MethodSet) Equal(o MethodSet) bool {
	return s.bits == o.bits && slices.Equal(s.extensions, o.extensions)
}

// Methods 返回按字母顺序排序的方法列表
func (s MethodSet) Methods() []string {
	methods := make([]string, 0, s.Len())
	for _, m := range knownMethods {
		if s.bits&m.bit != 0 {
			methods = append(methods, m.name)
		}
	}
	methods = append(methods, s.extensions...)
	slices.Sort(methods)
	return methods
}

// RouteNonMatch 描述候选路由不适用于当前请求的原因：状态码和允许的请求方法集合。
// 多个 RouteNonMatch 可以通过 Intersection 和 Union 合并成一个最终响应。
type RouteNonMatch struct {
	status int
	allow  MethodSet
}

var _ error = RouteNonMatch{}

// NewRouteNonMatch 创建 RouteNonMatch，允许的方法默认为完整的标准集合。
func NewRouteNonMatch(status int) RouteNonMatch {
	return RouteNonMatch{status: status, allow: DefaultMethodSet()}
}

// WithAllowList 设置允许的请求方法
func (nm RouteNonMatch) WithAllowList(methods ...string) RouteNonMatch {
	nm.allow = NewMethodSet(methods...)
	return nm
}

// Intersection 合并同一决策点上互为替代的非匹配结果，允许的方法取交集，
// 状态码取优先级较高者。
func (nm RouteNonMatch) Intersection(other RouteNonMatch) RouteNonMatch {
	return RouteNonMatch{
		status: higherPrecedenceStatus(nm.status, other.status),
		allow:  nm.allow.Intersection(other.allow),
	}
}

// Union 合并同一节点上多个路由的非匹配结果，允许的方法取并集，
// 状态码取优先级较高者。
func (nm RouteNonMatch) Union(other RouteNonMatch) RouteNonMatch {
	return RouteNonMatch{
		status: higherPrecedenceStatus(nm.status, other.status),
		allow:  nm.allow.Union(other.allow),
	}
}

// Status 返回状态码
func (nm RouteNonMatch) Status() int {
	return nm.status
}

// Allow 返回按字母顺序排序的允许方法列表
func (nm RouteNonMatch) Allow() []string {
	return nm.allow.Methods()
}

// AllowSet 返回允许的方法集合
func (nm RouteNonMatch) AllowSet() MethodSet {
	return nm.allow
}

// Equal 判断两个非匹配结果是否相同
func (nm RouteNonMatch) Equal(other RouteNonMatch) bool {
	return nm.status == other.status && nm.allow.Equal(other.allow)
}

func (nm RouteNonMatch) Error() string {
	if nm.status == http.StatusMethodNotAllowed {
		return fmt.Sprintf("route non-match: %d %s (allow: %s)",
			nm.status, http.StatusText(nm.status), strings.Join(nm.Allow(), ", "))
	}
	return fmt.Sprintf("route non-match: %d %s", nm.status, http.StatusText(nm.status))
}

// HTTPError 转换成 HTTPError 以便交给错误处理器
func (nm RouteNonMatch) HTTPError() *HTTPError {
	return NewHTTPErrorWithInternal(nm.status, nm)
}

// AsRouteNonMatch 从错误中取出 RouteNonMatch，
// 自定义匹配器返回的其它错误被视为 500。
func AsRouteNonMatch(err error) RouteNonMatch {
	var nm RouteNonMatch
	if errors.As(err, &nm) {
		return nm
	}
	return NewRouteNonMatch(http.StatusInternalServerError)
}

// statusRank 404 < 405 < 406 < 其它 4xx < 非 4xx
func statusRank(status int) int {
	switch {
	case status == http.StatusNotFound:
		return 0
	case status == http.StatusMethodNotAllowed:
		return 1
	case status == http.StatusNotAcceptable:
		return 2
	case status >= 400 && status < 500:
		return 3
	}
	return 4
}

func higherPrecedenceStatus(lhs, rhs int) int {
	l, r := statusRank(lhs), statusRank(rhs)
	switch {
	case l > r:
		return lhs
	case r > l:
		return rhs
	case rhs < lhs:
		// same rank: the lower code wins so the result does not depend on order
		return rhs
	}
	return lhs
}
