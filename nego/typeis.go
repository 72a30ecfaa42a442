package nego

import (
	"errors"
	"mime"
	"strings"
)

var ErrWildcardType = errors.New("nego: media type must not contain wildcard")

var extensions = map[string]string{
	"json":       MIMEApplicationJSON,
	"xml":        MIMEApplicationXML,
	"text":       MIMETextPlain,
	"txt":        MIMETextPlain,
	"html":       MIMETextHTML,
	"js":         MIMEApplicationJavaScript,
	"form":       MIMEApplicationForm,
	"urlencoded": MIMEApplicationForm,
	"multipart":  MIMEMultipartForm,
	"protobuf":   MIMEApplicationProtobuf,
	"bin":        MIMEApplicationOctetStream,
}

// Essence 返回媒体类型的本质部分 `type/subtype`，去掉参数并转为小写。
func Essence(ct string) string {
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	return strings.ToLower(strings.TrimSpace(ct))
}

// Lookup 将扩展名（如 json、png）或完整的媒体类型转换成 `type/subtype`。
func Lookup(t string) string {
	t = strings.TrimSpace(t)
	if strings.ContainsRune(t, '/') {
		return Essence(t)
	}
	t = strings.TrimPrefix(strings.ToLower(t), ".")
	if m, ok := extensions[t]; ok {
		return m
	}
	if strings.HasPrefix(t, "+") {
		return "*/*" + t
	}
	if m := mime.TypeByExtension("." + t); m != "" {
		return Essence(m)
	}
	return ""
}

// TypeIs 检查内容类型 ct 是否与 types 中的某一项匹配，返回匹配项的原始值，
// 不匹配时返回空字符串。ct 的子类型不能是通配符。
func TypeIs(ct string, types ...string) (string, error) {
	typ, sub, ok := splitType(ct)
	if !ok {
		return "", nil
	}
	if typ == "*" || sub == "*" {
		return "", ErrWildcardType
	}
	for _, t := range types {
		want := Lookup(t)
		if want == "" {
			continue
		}
		if strings.HasPrefix(want, "*/*+") {
			if strings.HasSuffix(sub, want[3:]) {
				return t, nil
			}
			continue
		}
		wt, ws, ok := splitType(want)
		if !ok {
			continue
		}
		if (wt == "*" || wt == typ) && (ws == "*" || ws == sub) {
			return t, nil
		}
	}
	return "", nil
}
