package gotham

// ResponseExtender 在响应发送之前修改它，例如为某个状态码统一设置错误页面。
type ResponseExtender interface {
	ExtendResponse(c Context)
}

// ResponseExtenderFunc 函数形式的 ResponseExtender
type ResponseExtenderFunc func(c Context)

func (f ResponseExtenderFunc) ExtendResponse(c Context) {
	f(c)
}

// ResponseFinalizerBuilder 构建状态码到 ResponseExtender 的映射表
type ResponseFinalizerBuilder struct {
	handlers map[int]ResponseExtender
}

// NewResponseFinalizerBuilder 创建构建器
func NewResponseFinalizerBuilder() *ResponseFinalizerBuilder {
	return &ResponseFinalizerBuilder{handlers: make(map[int]ResponseExtender)}
}

// Add 为状态码注册扩展器，重复注册会覆盖之前的扩展器
func (b *ResponseFinalizerBuilder) Add(status int, extender ResponseExtender) *ResponseFinalizerBuilder {
	b.handlers[status] = extender
	return b
}

// AddFunc 为状态码注册扩展函数
func (b *ResponseFinalizerBuilder) AddFunc(status int, fn func(c Context)) *ResponseFinalizerBuilder {
	return b.Add(status, ResponseExtenderFunc(fn))
}

// Build 返回只读的响应终结器
func (b *ResponseFinalizerBuilder) Build() *ResponseFinalizer {
	handlers := make(map[int]ResponseExtender, len(b.handlers))
	for status, ext := range b.handlers {
		handlers[status] = ext
	}
	return &ResponseFinalizer{handlers: handlers}
}

// ResponseFinalizer 在分发完成之后、响应提交之前，根据状态码调用对应的扩展器。
type ResponseFinalizer struct {
	handlers map[int]ResponseExtender
}

// Finalize 调用与当前响应状态码对应的扩展器，已提交的响应不再处理。
func (f *ResponseFinalizer) Finalize(c Context) {
	if f == nil || len(f.handlers) == 0 {
		return
	}
	res := c.Response()
	if res.Committed() {
		return
	}
	status := res.Status()
	if status == 0 {
		status = 200
	}
	if ext, ok := f.handlers[status]; ok {
		c.Logger().Debug("finalizing response", "status", status)
		ext.ExtendResponse(c)
	}
}
