// Package xmlfeed fetches supplier XML feeds and maps their product elements
// onto canonical product records.
package xmlfeed

import (
	"bytes"
	"encoding/xml"
	"errors"
	"io"
	"iter"
	"strings"

	"github.com/mobilsoft/connectors/internal/domain/feed"
)

// FallbackProductNames are tried in order when the configured product path
// matches nothing. Element names are compared case-insensitively.
var FallbackProductNames = []string{"Product", "item", "entry", "urun"}

// Element is a parsed XML element with namespace prefixes dropped
type Element struct {
	Name     string
	Attrs    map[string]string
	Text     string
	Children []*Element
	// CDATA writes Text as a CDATA section when the element is encoded
	CDATA bool
}

// Child returns the first child with the name, falling back to a case-insensitive match
func (e *Element) Child(name string) *Element {
	for _, c := range e.Children {
		if c.Name == name {
			return c
		}
	}
	for _, c := range e.Children {
		if strings.EqualFold(c.Name, name) {
			return c
		}
	}
	return nil
}

// ChildrenNamed returns all children with the name. Exact matches win over
// case-insensitive ones.
func (e *Element) ChildrenNamed(name string) []*Element {
	var exact, folded []*Element
	for _, c := range e.Children {
		switch {
		case c.Name == name:
			exact = append(exact, c)
		case strings.EqualFold(c.Name, name):
			folded = append(folded, c)
		}
	}
	if len(exact) > 0 {
		return exact
	}
	return folded
}

// Attr returns an attribute value, falling back to a case-insensitive match
func (e *Element) Attr(name string) (string, bool) {
	if v, ok := e.Attrs[name]; ok {
		return v, true
	}
	for k, v := range e.Attrs {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return "", false
}

// Document is a fetched feed converted to UTF-8
type Document struct {
	Location string
	Encoding string
	data     []byte
}

// NewDocument decodes raw bytes and checks that they are well-formed XML
func NewDocument(location string, raw []byte, declaredEncoding string) (*Document, error) {
	data, enc, err := toUTF8(raw, declaredEncoding)
	if err != nil {
		return nil, &feed.ParseError{Location: location, Err: err}
	}
	doc := &Document{Location: location, Encoding: enc, data: data}
	if err := doc.validate(); err != nil {
		return nil, err
	}
	return doc, nil
}

// Size returns the decoded document size in bytes
func (d *Document) Size() int {
	return len(d.data)
}

func (d *Document) newDecoder() *xml.Decoder {
	dec := xml.NewDecoder(bytes.NewReader(d.data))
	dec.Strict = false
	dec.AutoClose = xml.HTMLAutoClose
	dec.Entity = xml.HTMLEntity
	// the payload is already UTF-8 whatever the declaration says
	dec.CharsetReader = func(_ string, input io.Reader) (io.Reader, error) {
		return input, nil
	}
	return dec
}

func (d *Document) validate() error {
	dec := d.newDecoder()
	sawElement := false
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return &feed.ParseError{Location: d.Location, Offset: dec.InputOffset(), Err: err}
		}
		if _, ok := tok.(xml.StartElement); ok {
			sawElement = true
		}
	}
	if !sawElement {
		return &feed.ParseError{Location: d.Location, Err: errors.New("document has no root element")}
	}
	return nil
}

// ResolveProductPath returns the product path to iterate: the configured one
// when it matches at least one element, otherwise the first fallback name that does.
// ok is false when nothing matches.
func (d *Document) ResolveProductPath(configured string) (feed.Path, bool, error) {
	candidates := make([]string, 0, len(FallbackProductNames)+1)
	if configured != "" {
		candidates = append(candidates, configured)
	}
	candidates = append(candidates, FallbackProductNames...)

	for i, raw := range candidates {
		p, err := feed.ParsePath(raw)
		if err != nil {
			if i == 0 && configured != "" {
				return feed.Path{}, false, err
			}
			continue
		}
		if d.matches(p) {
			return p, true, nil
		}
	}
	return feed.Path{}, false, nil
}

func (d *Document) matches(p feed.Path) bool {
	for range d.Products(p) {
		return true
	}
	return false
}

// Products lazily yields each element whose ancestry ends with the path steps.
// Matched elements are not searched for nested matches. A parse failure is
// yielded once as the final pair.
func (d *Document) Products(p feed.Path) iter.Seq2[*Element, error] {
	return func(yield func(*Element, error) bool) {
		if len(p.Steps) == 0 {
			return
		}
		dec := d.newDecoder()
		var stack []string
		for {
			tok, err := dec.Token()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(nil, &feed.ParseError{Location: d.Location, Offset: dec.InputOffset(), Err: err})
				return
			}

			switch t := tok.(type) {
			case xml.StartElement:
				stack = append(stack, t.Name.Local)
				if !suffixMatch(stack, p.Steps) {
					continue
				}
				el, err := buildElement(dec, t)
				stack = stack[:len(stack)-1]
				if err != nil {
					yield(nil, &feed.ParseError{Location: d.Location, Offset: dec.InputOffset(), Err: err})
					return
				}
				if !yield(el, nil) {
					return
				}
			case xml.EndElement:
				if len(stack) > 0 {
					stack = stack[:len(stack)-1]
				}
			}
		}
	}
}

func suffixMatch(stack, steps []string) bool {
	if len(stack) < len(steps) {
		return false
	}
	offset := len(stack) - len(steps)
	for i, s := range steps {
		if !strings.EqualFold(stack[offset+i], s) {
			return false
		}
	}
	return true
}

// buildElement consumes tokens up to the matching end element
func buildElement(dec *xml.Decoder, start xml.StartElement) (*Element, error) {
	el := &Element{Name: start.Name.Local}
	if len(start.Attr) > 0 {
		el.Attrs = make(map[string]string, len(start.Attr))
		for _, a := range start.Attr {
			el.Attrs[a.Name.Local] = a.Value
		}
	}

	var text strings.Builder
	for {
		tok, err := dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, io.ErrUnexpectedEOF
			}
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			child, err := buildElement(dec, t)
			if err != nil {
				return nil, err
			}
			el.Children = append(el.Children, child)
		case xml.CharData:
			text.Write(t)
		case xml.EndElement:
			el.Text = strings.TrimSpace(text.String())
			return el, nil
		}
	}
}
