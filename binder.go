package gotham

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/schema"

	"go-slim.dev/gotham/nego"
)

// MaxMultipartMemory 解析 multipart 表单时保存在内存中的最大字节数
var MaxMultipartMemory int64 = 32 << 20

var formDecoder = func() *schema.Decoder {
	d := schema.NewDecoder()
	d.SetAliasTag("form")
	d.IgnoreUnknownKeys(true)
	return d
}()

// Bind 根据 Content-Type 把请求体解码到 v 并校验。
// 表单使用 `form` 标签，其它类型使用路由器注册的序列化器。
// 请求体为空返回 400，不支持的类型返回 415。
func Bind(c Context, v any) error {
	req := c.Request()
	if req.Body == nil || req.Body == http.NoBody || req.ContentLength == 0 {
		return NewHTTPError(http.StatusBadRequest, "request body can't be empty")
	}
	ct := req.Header.Get(nego.HeaderContentType)
	matched, err := nego.TypeIs(ct, "form", "multipart")
	if err != nil {
		return NewHTTPErrorWithInternal(http.StatusUnsupportedMediaType, err)
	}

	switch matched {
	case "form", "multipart":
		if matched == "multipart" {
			err = req.ParseMultipartForm(MaxMultipartMemory)
		} else {
			err = req.ParseForm()
		}
		if err != nil {
			return NewHTTPErrorWithInternal(http.StatusBadRequest, err)
		}
		if err = formDecoder.Decode(v, req.PostForm); err != nil {
			return NewHTTPErrorWithInternal(http.StatusBadRequest, err)
		}
	default:
		s, ok := c.Router().serializers.Lookup(ct)
		if !ok {
			return ErrUnsupportedMediaType
		}
		if err = s.Deserialize(req.Body, v); err != nil {
			return NewHTTPErrorWithInternal(http.StatusBadRequest, err)
		}
	}
	return Validate(v)
}

// Validate 校验结构体，非结构体直接返回 nil。
// 校验失败返回 400，内部错误为 *ExtractionError。
func Validate(v any) error {
	rv := reflect.Indirect(reflect.ValueOf(v))
	if rv.Kind() != reflect.Struct {
		return nil
	}
	err := defaultValidator.Struct(v)
	if err == nil {
		return nil
	}
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) {
		return NewHTTPErrorWithInternal(http.StatusBadRequest, err)
	}
	fields := make(map[string]error, len(ves))
	for _, fe := range ves {
		fields[fe.Field()] = fmt.Errorf("failed on the %q rule", fe.Tag())
	}
	return NewHTTPErrorWithInternal(http.StatusBadRequest, &ExtractionError{Source: "body", Fields: fields})
}
