package gotham

import (
	"fmt"
	"net/http"
	"slices"
)

// Node 路由树中的节点。节点持有一个模板段、按优先级排序的子节点和挂载在
// 此节点上的路由。拥有至少一个路由的节点是可路由的。
type Node struct {
	segment  Segment
	children []*Node
	routes   []Route
	// delegating 表示该节点的唯一路由把剩余路径交给了另一个路由器
	delegating bool
}

// Segment 返回节点对应的模板段
func (n *Node) Segment() Segment {
	return n.segment
}

// Children 返回子节点，完成构建后按优先级排序
func (n *Node) Children() []*Node {
	return n.children
}

// Routes 返回挂载在节点上的路由
func (n *Node) Routes() []Route {
	return n.routes
}

// IsRoutable 判断节点是否挂载了路由
func (n *Node) IsRoutable() bool {
	return len(n.routes) > 0
}

// IsDelegating 判断节点是否把请求委托给了另一个路由器
func (n *Node) IsDelegating() bool {
	return n.delegating
}

// SelectRoute 依次尝试节点上的路由，返回第一个匹配的路由。
// 都不匹配时把所有 RouteNonMatch 合并（并集）后返回；节点上没有路由时返回 500。
func (n *Node) SelectRoute(r *http.Request) (Route, error) {
	if len(n.routes) == 0 {
		return nil, NewRouteNonMatch(http.StatusInternalServerError)
	}
	var acc RouteNonMatch
	for i, route := range n.routes {
		err := route.IsMatch(r)
		if err == nil {
			return route, nil
		}
		if i == 0 {
			acc = AsRouteNonMatch(err)
		} else {
			acc = acc.Union(AsRouteNonMatch(err))
		}
	}
	return nil, acc
}

func (n *Node) child(seg Segment) *Node {
	for _, c := range n.children {
		if c.segment.Equal(seg) {
			return c
		}
	}
	return nil
}

// match 返回第一个接受 value 的子节点
func (n *Node) match(value string) *Node {
	for _, c := range n.children {
		if c.segment.Match(value) {
			return c
		}
	}
	return nil
}

func (n *Node) finalize() {
	slices.SortStableFunc(n.children, func(a, b *Node) int {
		return a.segment.Compare(b.segment)
	})
	for _, c := range n.children {
		c.finalize()
	}
}

// Tree 路由树。构建阶段只能追加，调用 Finalize 后只读，可以被多个 goroutine
// 无锁并发遍历。
type Tree struct {
	root      *Node
	finalized bool
}

// NewTree 创建只有根节点（代表 `/`）的路由树
func NewTree() *Tree {
	return &Tree{root: &Node{segment: Segment{Type: SegmentStatic, Name: "/"}}}
}

// Root 返回根节点
func (t *Tree) Root() *Node {
	return t.root
}

// Add 把路由挂载到 segments 描述的节点上，必要时创建中间节点。
// 外部委托的路由必须独占节点，并且节点不能有子节点。
func (t *Tree) Add(segments []Segment, route Route) error {
	if t.finalized {
		return ErrTreeFinalized
	}
	n := t.root
	for _, seg := range segments {
		if n.delegating {
			return fmt.Errorf("%w: %s", ErrDelegationConflict, route.Pattern())
		}
		c := n.child(seg)
		if c == nil {
			c = &Node{segment: seg}
			n.children = append(n.children, c)
		}
		n = c
	}
	if route.Delegation() == DelegationExternal {
		if len(n.routes) > 0 || len(n.children) > 0 {
			return fmt.Errorf("%w: %s", ErrDelegationConflict, route.Pattern())
		}
		n.delegating = true
	} else if n.delegating {
		return fmt.Errorf("%w: %s", ErrDelegationConflict, route.Pattern())
	}
	n.routes = append(n.routes, route)
	return nil
}

// Finalize 按优先级对所有子节点排序并冻结路由树
func (t *Tree) Finalize() *Tree {
	if !t.finalized {
		t.root.finalize()
		t.finalized = true
	}
	return t
}

// Traverse 按优先级遍历路由树：
//
//   - 每个节点上按 静态 > 约束 > 动态 > 通配 的顺序尝试子节点，第一个接受当前
//     路径段的子节点即被选中，之后不会回溯到其它兄弟节点；
//   - 静态段不记录值，约束段和动态段记录一个值，通配段记录剩余的全部路径段；
//   - 到达委托节点时立即结束，返回已处理的路径段数量；
//   - 其它情况下必须消费完全部路径段，并且终点节点可路由。
//
// 遍历失败时返回 false，调用方应响应 404。
func (t *Tree) Traverse(segments []string) (*Node, int, SegmentMapping, bool) {
	mapping := make(SegmentMapping)
	n := t.root
	processed := 0
	for !n.delegating && processed < len(segments) {
		c := n.match(segments[processed])
		if c == nil {
			return nil, 0, nil, false
		}
		switch c.segment.Type {
		case SegmentStatic:
			processed++
		case SegmentGlob:
			mapping.Add(c.segment.Name, segments[processed:]...)
			processed = len(segments)
		default:
			mapping.Add(c.segment.Name, segments[processed])
			processed++
		}
		n = c
	}
	if !n.IsRoutable() {
		return nil, 0, nil, false
	}
	return n, processed, mapping, true
}

// Walk 深度优先访问所有节点，parents 是从根到当前节点（不含）的模板段。
func (t *Tree) Walk(fn func(parents []Segment, n *Node)) {
	var walk func(parents []Segment, n *Node)
	walk = func(parents []Segment, n *Node) {
		fn(parents, n)
		next := parents
		if n != t.root {
			next = append(slices.Clip(parents), n.segment)
		}
		for _, c := range n.children {
			walk(next, c)
		}
	}
	walk(nil, t.root)
}
