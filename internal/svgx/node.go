package svgx

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// Namespace URIs mapped back to their conventional prefixes when
// serializing.
const (
	svgNS   = "http://www.w3.org/2000/svg"
	xlinkNS = "http://www.w3.org/1999/xlink"
)

// node is a mutable SVG DOM subset: element name, attributes, text, and
// children, with parent links for upward transform walks.
type node struct {
	name     string
	attrs    []xml.Attr
	text     string
	children []*node
	parent   *node
}

// parseXML reads an XML document into a node tree, dropping comments
// and processing instructions.
func parseXML(r io.Reader) (*node, error) {
	dec := xml.NewDecoder(r)
	var root *node
	var cur *node
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse svg: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			n := &node{
				name:   t.Name.Local,
				attrs:  append([]xml.Attr(nil), t.Attr...),
				parent: cur,
			}
			if cur == nil {
				root = n
			} else {
				cur.children = append(cur.children, n)
			}
			cur = n
		case xml.EndElement:
			if cur != nil {
				cur = cur.parent
			}
		case xml.CharData:
			if cur != nil {
				cur.text += string(t)
			}
		}
	}
	if root == nil {
		return nil, fmt.Errorf("failed to parse svg: no root element")
	}
	return root, nil
}

// attr returns the value of the named attribute, matching either the
// plain local name or a namespaced one (xlink:href parses with the
// xlink URI as its space).
func (n *node) attr(name string) string {
	for _, a := range n.attrs {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}

func (n *node) setAttr(name, value string) {
	for i, a := range n.attrs {
		if a.Name.Local == name && a.Name.Space == "" {
			n.attrs[i].Value = value
			return
		}
	}
	n.attrs = append(n.attrs, xml.Attr{Name: xml.Name{Local: name}, Value: value})
}

// removeChild detaches child from n. Reports whether it was present.
func (n *node) removeChild(child *node) bool {
	for i, c := range n.children {
		if c == child {
			n.children = append(n.children[:i], n.children[i+1:]...)
			child.parent = nil
			return true
		}
	}
	return false
}

// clone deep-copies n without a parent link.
func (n *node) clone() *node {
	c := &node{
		name:  n.name,
		attrs: append([]xml.Attr(nil), n.attrs...),
		text:  n.text,
	}
	for _, ch := range n.children {
		cc := ch.clone()
		cc.parent = c
		c.children = append(c.children, cc)
	}
	return c
}

// byID builds an index of every element carrying an id attribute.
func (n *node) byID(index map[string]*node) {
	if id := n.attr("id"); id != "" {
		if _, ok := index[id]; !ok {
			index[id] = n
		}
	}
	for _, c := range n.children {
		c.byID(index)
	}
}

// write serializes the tree back to XML. Known namespace URIs become
// their conventional prefixes; others are dropped to local names.
func (n *node) write(w io.Writer) error {
	bw := &strings.Builder{}
	bw.WriteString(xml.Header)
	writeNode(bw, n, n.parent == nil)
	_, err := io.WriteString(w, bw.String())
	if err != nil {
		return fmt.Errorf("failed to write svg: %w", err)
	}
	return nil
}

func writeNode(b *strings.Builder, n *node, isRoot bool) {
	b.WriteByte('<')
	b.WriteString(n.name)

	hasXMLNS := false
	for _, a := range n.attrs {
		name := attrName(a.Name)
		if name == "" {
			continue
		}
		if name == "xmlns" {
			hasXMLNS = true
		}
		b.WriteByte(' ')
		b.WriteString(name)
		b.WriteString(`="`)
		xml.EscapeText(b, []byte(a.Value)) //nolint:errcheck // strings.Builder does not fail
		b.WriteByte('"')
	}
	if isRoot && n.name == "svg" && !hasXMLNS {
		fmt.Fprintf(b, ` xmlns="%s"`, svgNS)
	}

	if len(n.children) == 0 && strings.TrimSpace(n.text) == "" {
		b.WriteString("/>")
		return
	}
	b.WriteByte('>')
	if t := strings.TrimSpace(n.text); t != "" {
		xml.EscapeText(b, []byte(t)) //nolint:errcheck // strings.Builder does not fail
	}
	for _, c := range n.children {
		writeNode(b, c, false)
	}
	b.WriteString("</")
	b.WriteString(n.name)
	b.WriteByte('>')
}

func attrName(name xml.Name) string {
	switch name.Space {
	case "":
		return name.Local
	case "xmlns":
		return "xmlns:" + name.Local
	case xlinkNS:
		return "xlink:" + name.Local
	case svgNS:
		return name.Local
	case "xml":
		return "xml:" + name.Local
	default:
		return name.Local
	}
}
