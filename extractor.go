package gotham

import (
	"encoding"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/schema"
)

// Extractor 把路径参数或查询参数转换成强类型的结构体并保存到请求上下文中。
type Extractor interface {
	// Extract 从 values 中解析数据，成功时保存到上下文
	Extract(c Context, values SegmentMapping) error
	// ExtendResponseOnError 在 Extract 失败时生成响应，默认为 400
	ExtendResponseOnError(c Context, err error)
}

// ExtractionErrorResponder 可以由提取目标类型（指针接收者）实现，
// 用于替换该类型提取失败时的默认 400 响应。
type ExtractionErrorResponder interface {
	RespondExtractionError(c Context, err error)
}

// ExtractionError 提取失败的原因，Fields 的键是参数名。
type ExtractionError struct {
	Source string
	Fields map[string]error
}

func (e *ExtractionError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s: %v", k, e.Fields[k])
	}
	return fmt.Sprintf("gotham: invalid %s data (%s)", e.Source, strings.Join(parts, "; "))
}

var (
	ErrMissingValue  = errors.New("missing value")
	ErrTooManyValues = errors.New("too many values")
	ErrEmptyValue    = errors.New("empty value")
)

// ExtractorOption 提取器选项
type ExtractorOption func(*extractorOptions)

type extractorOptions struct {
	responder func(c Context, err error)
	validate  *validator.Validate
}

// WithErrorResponder 指定提取失败时的响应函数
func WithErrorResponder(fn func(c Context, err error)) ExtractorOption {
	return func(o *extractorOptions) {
		o.responder = fn
	}
}

// WithValidator 指定校验器，默认使用共享的 validator 实例
func WithValidator(v *validator.Validate) ExtractorOption {
	return func(o *extractorOptions) {
		o.validate = v
	}
}

var defaultValidator = validator.New(validator.WithRequiredStructEnabled())

const (
	sourcePath  = "path"
	sourceQuery = "query"
)

type fieldArity uint8

const (
	arityOne fieldArity = iota
	arityOptional
	arityMany
)

type fieldPlan struct {
	key   string
	arity fieldArity
	// emptyOK 空字符串是否是合法的值
	emptyOK bool
}

var textUnmarshalerType = reflect.TypeFor[encoding.TextUnmarshaler]()

// planFields 根据字段类型计算每个参数允许的取值个数：
// 指针可选，切片可以有多个值，其它必须恰好一个值。
func planFields(t reflect.Type, tag string) []fieldPlan {
	var plans []fieldPlan
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() || f.Anonymous {
			continue
		}
		key := f.Name
		if name, _, _ := strings.Cut(f.Tag.Get(tag), ","); name == "-" {
			continue
		} else if name != "" {
			key = name
		}
		arity := arityOne
		ft := f.Type
		switch {
		case reflect.PointerTo(ft).Implements(textUnmarshalerType):
		case ft.Kind() == reflect.Pointer:
			arity = arityOptional
		case ft.Kind() == reflect.Slice:
			arity = arityMany
		}
		plans = append(plans, fieldPlan{key: key, arity: arity, emptyOK: acceptsEmpty(ft)})
	}
	return plans
}

// acceptsEmpty 只有字符串和 TextUnmarshaler 能从空字符串解码
func acceptsEmpty(t reflect.Type) bool {
	if reflect.PointerTo(t).Implements(textUnmarshalerType) {
		return true
	}
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
		if reflect.PointerTo(t).Implements(textUnmarshalerType) {
			return true
		}
	}
	return t.Kind() == reflect.String
}

func lookupFold(values SegmentMapping, key string) ([]string, bool) {
	if vs, ok := values[key]; ok {
		return vs, true
	}
	for k, vs := range values {
		if strings.EqualFold(k, key) {
			return vs, true
		}
	}
	return nil, false
}

type structExtractor[T any] struct {
	source   string
	plans    []fieldPlan
	decoder  *schema.Decoder
	validate *validator.Validate
	respond  func(c Context, err error)
	// optionalMany 为 true 时切片字段可以缺省
	optionalMany bool
}

type pathData[T any] struct{ v *T }
type queryData[T any] struct{ v *T }

func newStructExtractor[T any](source string, opts []ExtractorOption) *structExtractor[T] {
	t := reflect.TypeFor[T]()
	if t.Kind() != reflect.Struct {
		panic(fmt.Errorf("gotham: %s extractor target must be a struct, got %s", source, t))
	}
	o := extractorOptions{validate: defaultValidator}
	for _, opt := range opts {
		opt(&o)
	}
	decoder := schema.NewDecoder()
	decoder.SetAliasTag(source)
	decoder.IgnoreUnknownKeys(true)
	e := &structExtractor[T]{
		source:       source,
		plans:        planFields(t, source),
		decoder:      decoder,
		validate:     o.validate,
		respond:      o.responder,
		optionalMany: source == sourceQuery,
	}
	if e.respond == nil {
		if r, ok := any(new(T)).(ExtractionErrorResponder); ok {
			e.respond = r.RespondExtractionError
		}
	}
	return e
}

func (e *structExtractor[T]) decode(values SegmentMapping) (*T, error) {
	fields := make(map[string]error)
	for _, p := range e.plans {
		vs, ok := lookupFold(values, p.key)
		switch {
		case p.arity == arityMany:
			if len(vs) == 0 && !e.optionalMany {
				fields[p.key] = ErrMissingValue
			}
		case !ok || len(vs) == 0:
			if p.arity != arityOptional {
				fields[p.key] = ErrMissingValue
			}
		case len(vs) > 1:
			fields[p.key] = ErrTooManyValues
		case vs[0] == "" && !p.emptyOK:
			// schema 会跳过空字符串，字段保持零值
			fields[p.key] = ErrEmptyValue
		}
	}
	if len(fields) > 0 {
		return nil, &ExtractionError{Source: e.source, Fields: fields}
	}

	v := new(T)
	if err := e.decoder.Decode(v, values); err != nil {
		var me schema.MultiError
		if errors.As(err, &me) {
			for k, fe := range me {
				fields[k] = fe
			}
		} else {
			fields["*"] = err
		}
		return nil, &ExtractionError{Source: e.source, Fields: fields}
	}

	if e.validate != nil {
		if err := e.validate.Struct(v); err != nil {
			var ves validator.ValidationErrors
			if !errors.As(err, &ves) {
				fields["*"] = err
			}
			for _, fe := range ves {
				fields[fe.Field()] = fmt.Errorf("failed on the %q rule", fe.Tag())
			}
			return nil, &ExtractionError{Source: e.source, Fields: fields}
		}
	}
	return v, nil
}

func (e *structExtractor[T]) ExtendResponseOnError(c Context, err error) {
	if e.respond != nil {
		e.respond(c, err)
		return
	}
	c.Error(NewHTTPErrorWithInternal(http.StatusBadRequest, err))
}

type pathExtractor[T any] struct {
	*structExtractor[T]
}

// NewPathExtractor 创建路径参数提取器。字段名（或 `path` 标签）与模板中的
// 参数名按不区分大小写的方式对应。
func NewPathExtractor[T any](opts ...ExtractorOption) Extractor {
	return &pathExtractor[T]{newStructExtractor[T](sourcePath, opts)}
}

func (e *pathExtractor[T]) Extract(c Context, values SegmentMapping) error {
	v, err := e.decode(values)
	if err != nil {
		return err
	}
	Put(c, pathData[T]{v})
	return nil
}

type queryExtractor[T any] struct {
	*structExtractor[T]
}

// NewQueryExtractor 创建查询参数提取器，使用 `query` 标签。
// 切片字段可以缺省，其它规则与路径参数提取器相同。
func NewQueryExtractor[T any](opts ...ExtractorOption) Extractor {
	return &queryExtractor[T]{newStructExtractor[T](sourceQuery, opts)}
}

func (e *queryExtractor[T]) Extract(c Context, values SegmentMapping) error {
	v, err := e.decode(values)
	if err != nil {
		return err
	}
	Put(c, queryData[T]{v})
	return nil
}

// PathOf 返回路径参数提取器保存的数据
func PathOf[T any](c Context) (*T, bool) {
	d, ok := Borrow[pathData[T]](c)
	return d.v, ok
}

// QueryOf 返回查询参数提取器保存的数据
func QueryOf[T any](c Context) (*T, bool) {
	d, ok := Borrow[queryData[T]](c)
	return d.v, ok
}

type noopExtractor struct{}

// NoopExtractor 不提取任何数据，总是成功。
func NoopExtractor() Extractor {
	return noopExtractor{}
}

func (noopExtractor) Extract(Context, SegmentMapping) error { return nil }

func (noopExtractor) ExtendResponseOnError(c Context, err error) {
	c.Error(NewHTTPErrorWithInternal(http.StatusBadRequest, err))
}
