package serde

import (
	"io"

	"gopkg.in/yaml.v3"
)

const MIMEApplicationYAML = "application/yaml"

// YAMLSerializer 使用 yaml.v3，indent 的长度作为缩进空格数
type YAMLSerializer struct{}

func (YAMLSerializer) MediaType() string {
	return MIMEApplicationYAML
}

func (YAMLSerializer) Serialize(w io.Writer, v any, indent string) error {
	enc := yaml.NewEncoder(w)
	if n := len(indent); n > 0 {
		enc.SetIndent(n)
	}
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

func (YAMLSerializer) Deserialize(r io.Reader, v any) error {
	return yaml.NewDecoder(r).Decode(v)
}
