package lawapi

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/ianaindex"
)

// ParseXML converts an XML document into nested maps.
//
// Each element becomes a key of its parent. Repeated elements become a list,
// text-only elements a trimmed string. Attributes are kept as "@name" keys and
// text next to child elements as "#text". The result has the root element as
// its single key.
func ParseXML(r io.Reader) (map[string]any, error) {
	dec := xml.NewDecoder(r)
	dec.CharsetReader = charsetReader
	dec.Entity = xml.HTMLEntity

	var stack []*xmlNode
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return nil, fmt.Errorf("xml: no root element")
		}
		if err != nil {
			return nil, fmt.Errorf("xml: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			n := &xmlNode{name: t.Name.Local, fields: map[string]any{}}
			for _, a := range t.Attr {
				n.fields["@"+a.Name.Local] = a.Value
			}
			stack = append(stack, n)
		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].text.Write(t)
			}
		case xml.EndElement:
			n := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return map[string]any{n.name: n.value()}, nil
			}
			stack[len(stack)-1].add(n.name, n.value())
		}
	}
}

type xmlNode struct {
	name   string
	fields map[string]any
	text   strings.Builder
}

func (n *xmlNode) value() any {
	text := strings.TrimSpace(n.text.String())
	if len(n.fields) == 0 {
		return text
	}
	if text != "" {
		n.fields["#text"] = text
	}
	return n.fields
}

func (n *xmlNode) add(key string, v any) {
	existing, ok := n.fields[key]
	if !ok {
		n.fields[key] = v
		return
	}
	if list, ok := existing.([]any); ok {
		n.fields[key] = append(list, v)
		return
	}
	n.fields[key] = []any{existing, v}
}

// charsetReader decodes non-UTF-8 documents such as EUC-KR responses.
func charsetReader(label string, input io.Reader) (io.Reader, error) {
	enc, err := ianaindex.IANA.Encoding(label)
	if err != nil {
		return nil, err
	}
	if enc == nil {
		return nil, fmt.Errorf("xml: unsupported charset %q", label)
	}
	return enc.NewDecoder().Reader(input), nil
}
