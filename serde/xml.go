package serde

import (
	"encoding/xml"
	"io"
)

const MIMEApplicationXML = "application/xml"

type XMLSerializer struct{}

func (XMLSerializer) MediaType() string {
	return MIMEApplicationXML
}

func (XMLSerializer) Serialize(w io.Writer, v any, indent string) error {
	enc := xml.NewEncoder(w)
	if indent != "" {
		enc.Indent("", indent)
	}
	return enc.Encode(v)
}

func (XMLSerializer) Deserialize(r io.Reader, v any) error {
	return xml.NewDecoder(r).Decode(v)
}
