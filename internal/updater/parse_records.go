package updater

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ohler55/ojg/jp"
)

// XMLParser reads flat records from an XML document. Path is a slash
// separated element path such as "/Evts/Evt"; every element at that path
// is one record whose child elements and attributes become properties.
type XMLParser struct {
	path []string
}

func NewXMLParser(path string) (*XMLParser, error) {
	var parts []string
	for _, p := range strings.Split(path, "/") {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return nil, fmt.Errorf("xml path %q selects nothing", path)
	}
	return &XMLParser{path: parts}, nil
}

func (p *XMLParser) Parse(data []byte) ([]Record, []error, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	// Feeds declare assorted legacy charsets; the bytes are passed through.
	dec.CharsetReader = func(_ string, r io.Reader) (io.Reader, error) { return r, nil }

	var (
		stack   []string
		records []Record
		current map[string]any
		field   string
		text    strings.Builder
	)
	depth := len(p.path)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			stack = append(stack, t.Name.Local)
			switch {
			case len(stack) == depth && p.matches(stack):
				current = make(map[string]any, len(t.Attr))
				for _, a := range t.Attr {
					current[a.Name.Local] = a.Value
				}
			case current != nil && len(stack) == depth+1:
				field = t.Name.Local
				text.Reset()
			}
		case xml.CharData:
			if field != "" {
				text.Write(t)
			}
		case xml.EndElement:
			switch {
			case current != nil && len(stack) == depth+1 && field != "":
				current[field] = strings.TrimSpace(text.String())
				field = ""
			case current != nil && len(stack) == depth:
				records = append(records, Record{Index: len(records), Props: current})
				current = nil
			}
			stack = stack[:len(stack)-1]
		}
	}
	if len(stack) != 0 {
		return nil, nil, fmt.Errorf("%w: unexpected end of document", ErrMalformedEnvelope)
	}
	return records, nil, nil
}

func (p *XMLParser) matches(stack []string) bool {
	for i, name := range p.path {
		if stack[i] != name {
			return false
		}
	}
	return true
}

// JSONParser selects records from a JSON document with a JSONPath
// expression. Selected objects become records; anything else is skipped.
type JSONParser struct {
	expr jp.Expr
}

func NewJSONParser(selector string) (*JSONParser, error) {
	x, err := jp.ParseString(selector)
	if err != nil {
		return nil, fmt.Errorf("invalid jsonpath '%s': %w", selector, err)
	}
	return &JSONParser{expr: x}, nil
}

func (p *JSONParser) Parse(data []byte) ([]Record, []error, error) {
	var root any
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	var (
		records []Record
		skipped []error
	)
	for i, v := range p.expr.Get(root) {
		obj, ok := v.(map[string]any)
		if !ok {
			skipped = append(skipped, fmt.Errorf("record %d: not an object: %T", i, v))
			continue
		}
		records = append(records, Record{Index: i, Props: obj})
	}
	return records, skipped, nil
}
