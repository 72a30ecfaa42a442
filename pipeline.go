package gotham

import (
	"errors"
	"fmt"
	"net/http"
)

// NewMiddleware 中间件工厂，每个请求调用一次，失败时整条链不会执行。
type NewMiddleware interface {
	NewMiddleware() (MiddlewareFunc, error)
}

// NewMiddleware 使 MiddlewareFunc 成为返回自身的工厂
func (m MiddlewareFunc) NewMiddleware() (MiddlewareFunc, error) {
	return m, nil
}

// NewMiddlewareFunc 函数形式的中间件工厂
type NewMiddlewareFunc func() (MiddlewareFunc, error)

func (f NewMiddlewareFunc) NewMiddleware() (MiddlewareFunc, error) {
	return f()
}

// NewHandler 处理函数工厂，每个请求调用一次。
type NewHandler interface {
	NewHandler() (HandlerFunc, error)
}

// NewHandler 使 HandlerFunc 成为返回自身的工厂
func (h HandlerFunc) NewHandler() (HandlerFunc, error) {
	return h, nil
}

// NewHandlerFunc 函数形式的处理函数工厂
type NewHandlerFunc func() (HandlerFunc, error)

func (f NewHandlerFunc) NewHandler() (HandlerFunc, error) {
	return f()
}

// Pipeline 有序的中间件列表
type Pipeline struct {
	stages []NewMiddleware
}

// NewPipeline 创建管道
func NewPipeline(stages ...NewMiddleware) *Pipeline {
	return &Pipeline{stages: stages}
}

// Add 追加中间件
func (p *Pipeline) Add(stages ...NewMiddleware) *Pipeline {
	p.stages = append(p.stages, stages...)
	return p
}

// Use 追加中间件函数
func (p *Pipeline) Use(middleware ...MiddlewareFunc) *Pipeline {
	for _, m := range middleware {
		p.stages = append(p.stages, m)
	}
	return p
}

// Len 返回中间件数量
func (p *Pipeline) Len() int {
	return len(p.stages)
}

func (p *Pipeline) construct(dst []MiddlewareFunc) ([]MiddlewareFunc, error) {
	for i, stage := range p.stages {
		m, err := stage.NewMiddleware()
		if err != nil {
			return nil, fmt.Errorf("gotham: middleware #%d: %w", i, err)
		}
		dst = append(dst, m)
	}
	return dst, nil
}

// PipelineHandle 管道在 PipelineSet 中的句柄，在进程生命周期内始终有效。
type PipelineHandle struct {
	index int
	set   *PipelineSet
}

// PipelineChain 作用于路由的管道列表，第一个是最外层。
type PipelineChain []PipelineHandle

// PipelineSet 只能追加的管道集合。冻结后只读，可以被并发访问。
type PipelineSet struct {
	pipelines []*Pipeline
	frozen    bool
}

// NewPipelineSet 创建管道集合
func NewPipelineSet() *PipelineSet {
	return &PipelineSet{}
}

// Add 添加管道并返回句柄，冻结后调用会 panic。
func (s *PipelineSet) Add(p *Pipeline) PipelineHandle {
	if s.frozen {
		panic(errors.New("gotham: pipeline set is frozen"))
	}
	s.pipelines = append(s.pipelines, p)
	return PipelineHandle{index: len(s.pipelines) - 1, set: s}
}

// Get 返回句柄对应的管道
func (s *PipelineSet) Get(h PipelineHandle) (*Pipeline, bool) {
	if h.set != s || h.index < 0 || h.index >= len(s.pipelines) {
		return nil, false
	}
	return s.pipelines[h.index], true
}

// Len 返回管道数量
func (s *PipelineSet) Len() int {
	return len(s.pipelines)
}

// Freeze 冻结管道集合
func (s *PipelineSet) Freeze() {
	s.frozen = true
}

// Construct 按链的顺序构造所有中间件，任何一个失败都会返回错误。
func (s *PipelineSet) Construct(chain PipelineChain) ([]MiddlewareFunc, error) {
	var mws []MiddlewareFunc
	for _, h := range chain {
		p, ok := s.Get(h)
		if !ok {
			return nil, fmt.Errorf("gotham: unknown pipeline handle #%d", h.index)
		}
		var err error
		if mws, err = p.construct(mws); err != nil {
			return nil, err
		}
	}
	return mws, nil
}

// Dispatcher 执行路由的管道链和最终的处理函数。
type Dispatcher struct {
	pipelines *PipelineSet
	chain     PipelineChain
	handler   NewHandler
}

// NewDispatcher 创建分发器
func NewDispatcher(handler NewHandler, chain PipelineChain, pipelines *PipelineSet) *Dispatcher {
	if pipelines == nil {
		pipelines = NewPipelineSet()
	}
	return &Dispatcher{pipelines: pipelines, chain: chain, handler: handler}
}

// Dispatch 先构造全部中间件和处理函数，再按洋葱模型执行：
// 前置逻辑按链的顺序执行，后置逻辑逆序执行，中间件可以不调用 next 直接响应。
// 构造失败时不会执行任何中间件，返回 500 错误。
func (d *Dispatcher) Dispatch(c Context) error {
	mws, err := d.pipelines.Construct(d.chain)
	if err != nil {
		c.Logger().Error("pipeline construction failed", "error", err)
		return NewHTTPErrorWithInternal(http.StatusInternalServerError, err)
	}
	h, err := d.handler.NewHandler()
	if err != nil {
		c.Logger().Error("handler construction failed", "error", err)
		return NewHTTPErrorWithInternal(http.StatusInternalServerError, err)
	}
	if mw := Compose(mws...); mw != nil {
		return mw(c, h)
	}
	return h(c)
}
