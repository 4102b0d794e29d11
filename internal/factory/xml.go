package factory

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
)

// element is a generic XML element. The dialect is open ended (registered
// leaf names are element names), so documents are decoded structurally and
// interpreted afterwards.
type element struct {
	XMLName  xml.Name
	Attrs    []xml.Attr `xml:",any,attr"`
	Children []element  `xml:",any"`
}

func (e *element) tag() string { return e.XMLName.Local }

func (e *element) attr(name string) (string, bool) {
	for _, a := range e.Attrs {
		if a.Name.Local == name {
			return a.Value, true
		}
	}
	return "", false
}

// document is a parsed `<root>` element.
type document struct {
	mainTree string
	trees    map[string]*element
	order    []string
}

func parseDocument(data []byte) (*document, error) {
	var root element
	dec := xml.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&root); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty document", ErrMalformed)
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := expectEnd(dec); err != nil {
		return nil, err
	}
	if root.tag() != "root" {
		return nil, fmt.Errorf("%w: document element is <%s>, want <root>", ErrMalformed, root.tag())
	}

	doc := &document{trees: make(map[string]*element)}
	doc.mainTree, _ = root.attr("main_tree_to_execute")
	for i := range root.Children {
		c := &root.Children[i]
		switch c.tag() {
		case "BehaviorTree":
			id, _ := c.attr("ID")
			if id == "" {
				return nil, fmt.Errorf("%w: <BehaviorTree> without ID", ErrMalformed)
			}
			if _, ok := doc.trees[id]; ok {
				return nil, fmt.Errorf("%w: tree %q defined twice", ErrDuplicate, id)
			}
			if len(c.Children) != 1 {
				return nil, fmt.Errorf("%w: tree %q must have exactly one child, has %d", ErrMalformed, id, len(c.Children))
			}
			doc.trees[id] = c
			doc.order = append(doc.order, id)
		case "TreeNodesModel":
		default:
			return nil, fmt.Errorf("%w: unexpected <%s> in <root>", ErrMalformed, c.tag())
		}
	}
	return doc, nil
}

// expectEnd consumes the rest of the input, which may only hold whitespace,
// comments and processing instructions.
func expectEnd(dec *xml.Decoder) error {
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		switch tok := tok.(type) {
		case xml.Comment, xml.ProcInst:
		case xml.CharData:
			if len(bytes.TrimSpace(tok)) != 0 {
				return fmt.Errorf("%w: text after the document element", ErrMalformed)
			}
		case xml.StartElement:
			return fmt.Errorf("%w: <%s> after the document element", ErrMalformed, tok.Name.Local)
		default:
			return fmt.Errorf("%w: unexpected %T after the document element", ErrMalformed, tok)
		}
	}
}
