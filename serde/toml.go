package serde

import (
	"io"

	"github.com/BurntSushi/toml"
)

const MIMEApplicationTOML = "application/toml"

type TOMLSerializer struct{}

func (TOMLSerializer) MediaType() string {
	return MIMEApplicationTOML
}

func (TOMLSerializer) Serialize(w io.Writer, v any, indent string) error {
	enc := toml.NewEncoder(w)
	enc.Indent = indent
	return enc.Encode(v)
}

func (TOMLSerializer) Deserialize(r io.Reader, v any) error {
	_, err := toml.NewDecoder(r).Decode(v)
	return err
}
