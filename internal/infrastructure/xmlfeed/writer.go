package xmlfeed

import (
	"bufio"
	"encoding/xml"
	"io"
	"sort"
	"strings"

	"github.com/mobilsoft/connectors/internal/domain/feed"
)

const (
	xmlHeader   = `<?xml version="1.0" encoding="UTF-8"?>` + "\n"
	writeIndent = "  "
)

// NewElement creates an empty element for writing
func NewElement(name string) *Element {
	return &Element{Name: name}
}

// Add appends a child holding text and returns it
func (e *Element) Add(name, text string) *Element {
	child := &Element{Name: name, Text: text}
	e.Children = append(e.Children, child)
	return child
}

// AddCDATA appends a child whose text is written as a CDATA section
func (e *Element) AddCDATA(name, text string) *Element {
	child := e.Add(name, text)
	child.CDATA = true
	return child
}

// Put writes values at a mapping path below e. Intermediate elements are
// reused by name. A list path appends one element per value; otherwise the
// first value sets the text or attribute of the resolved element.
func (e *Element) Put(p feed.Path, cdata bool, values ...string) {
	if len(values) == 0 {
		return
	}
	steps := p.Steps
	if p.List {
		steps = steps[:len(steps)-1]
	}
	target := e
	for _, step := range steps {
		target = target.childOrNew(step)
	}

	switch {
	case p.List:
		last := p.Steps[len(p.Steps)-1]
		for _, v := range values {
			target.Add(last, v).CDATA = cdata
		}
	case p.IsAttr():
		if target.Attrs == nil {
			target.Attrs = make(map[string]string)
		}
		target.Attrs[p.Attr] = values[0]
	default:
		target.Text = values[0]
		target.CDATA = cdata
	}
}

func (e *Element) childOrNew(name string) *Element {
	for _, c := range e.Children {
		if c.Name == name {
			return c
		}
	}
	return e.Add(name, "")
}

// Encode writes the element as an indented UTF-8 document with an XML declaration
func (e *Element) Encode(w io.Writer) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(xmlHeader); err != nil {
		return err
	}
	if err := e.encode(bw, 0); err != nil {
		return err
	}
	return bw.Flush()
}

func (e *Element) encode(w *bufio.Writer, depth int) error {
	indent := strings.Repeat(writeIndent, depth)
	w.WriteString(indent)
	w.WriteByte('<')
	w.WriteString(e.Name)

	keys := make([]string, 0, len(e.Attrs))
	for k := range e.Attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		w.WriteByte(' ')
		w.WriteString(k)
		w.WriteString(`="`)
		if err := xml.EscapeText(w, []byte(e.Attrs[k])); err != nil {
			return err
		}
		w.WriteByte('"')
	}

	if e.Text == "" && !e.CDATA && len(e.Children) == 0 {
		_, err := w.WriteString("/>\n")
		return err
	}
	w.WriteByte('>')
	if err := e.encodeText(w); err != nil {
		return err
	}
	if len(e.Children) > 0 {
		w.WriteByte('\n')
		for _, c := range e.Children {
			if err := c.encode(w, depth+1); err != nil {
				return err
			}
		}
		w.WriteString(indent)
	}
	w.WriteString("</")
	w.WriteString(e.Name)
	_, err := w.WriteString(">\n")
	return err
}

// encodeText writes the text escaped, or as CDATA sections. A "]]>" inside
// the text is split across two sections.
func (e *Element) encodeText(w *bufio.Writer) error {
	if !e.CDATA {
		return xml.EscapeText(w, []byte(e.Text))
	}
	w.WriteString("<![CDATA[")
	w.WriteString(strings.ReplaceAll(e.Text, "]]>", "]]]]><![CDATA[>"))
	_, err := w.WriteString("]]>")
	return err
}
