package docforge

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Tree is the structural form of a document: an HTML fragment tree rooted
// at a <body> element. It is the "rich content" half of a Document; the
// Markdown codec converts between a Tree and Markdown text.
type Tree struct {
	doc  *html.Node // full parsed document
	body *html.Node
}

// NewTree returns an empty document tree.
func NewTree() *Tree {
	t, err := ParseTree("")
	if err != nil {
		// Parsing the empty fragment cannot fail.
		panic("docforge: empty tree parse failed: " + err.Error())
	}
	return t
}

// ParseTree parses an HTML fragment into a document tree.
func ParseTree(fragment string) (*Tree, error) {
	doc, err := html.Parse(strings.NewReader(fragment))
	if err != nil {
		return nil, fmt.Errorf("parsing HTML fragment: %w", err)
	}
	body := findFirst(doc, "body")
	if body == nil {
		return nil, fmt.Errorf("parsing HTML fragment: no body element")
	}
	return &Tree{doc: doc, body: body}, nil
}

// Body returns the tree's <body> element. Callers must not detach it.
func (t *Tree) Body() *html.Node { return t.body }

// HTML renders the tree's content (the children of <body>) as an HTML
// fragment.
func (t *Tree) HTML() (string, error) {
	var sb strings.Builder
	for c := t.body.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&sb, c); err != nil {
			return "", fmt.Errorf("rendering tree: %w", err)
		}
	}
	return sb.String(), nil
}

// PlainText returns a best-effort plain-text projection of the tree.
// Block elements are separated by newlines; inline markup is dropped.
func (t *Tree) PlainText() string {
	var sb strings.Builder
	var visit func(n *html.Node)
	visit = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			return
		}
		if n.Type == html.ElementNode && isBlockTag(n.Data) && sb.Len() > 0 {
			sb.WriteString("\n")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			visit(c)
		}
	}
	for c := t.body.FirstChild; c != nil; c = c.NextSibling {
		visit(c)
	}
	return strings.TrimSpace(sb.String())
}

// ElementCount returns the number of element nodes in the tree.
// The chunking threshold in the export pipeline is based on this count.
func (t *Tree) ElementCount() int {
	count := 0
	walk(t.body, func(n *html.Node) {
		if n.Type == html.ElementNode {
			count++
		}
	})
	return count
}

// Blocks returns the top-level element children of <body> in order.
func (t *Tree) Blocks() []*html.Node {
	var blocks []*html.Node
	for c := t.body.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			blocks = append(blocks, c)
		}
	}
	return blocks
}

// IsEmpty reports whether the tree has no element content and no text.
func (t *Tree) IsEmpty() bool {
	return len(t.Blocks()) == 0 && strings.TrimSpace(t.PlainText()) == ""
}

// Clone returns a deep copy of the tree. The copy shares no nodes with
// the original, so exports can snapshot a document while editing continues.
func (t *Tree) Clone() (*Tree, error) {
	fragment, err := t.HTML()
	if err != nil {
		return nil, err
	}
	return ParseTree(fragment)
}

// CountTag returns the number of elements with the given tag name.
func (t *Tree) CountTag(tag string) int {
	count := 0
	walk(t.body, func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == tag {
			count++
		}
	})
	return count
}

// FindAll returns all elements with the given tag name in document order.
func (t *Tree) FindAll(tag string) []*html.Node {
	var found []*html.Node
	walk(t.body, func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == tag {
			found = append(found, n)
		}
	})
	return found
}

// StripInteractive removes elements and attributes that have no meaning in
// exported output: buttons, form inputs, scripts, and inline event handlers.
// The export pipeline applies this to its working copy, never to the
// document being edited.
func (t *Tree) StripInteractive() {
	var doomed []*html.Node
	walk(t.body, func(n *html.Node) {
		if n.Type != html.ElementNode {
			return
		}
		switch n.Data {
		case "script", "button", "input", "select", "textarea", "iframe":
			doomed = append(doomed, n)
			return
		}
		kept := n.Attr[:0]
		for _, a := range n.Attr {
			if strings.HasPrefix(strings.ToLower(a.Key), "on") {
				continue
			}
			if a.Key == "href" && strings.HasPrefix(strings.TrimSpace(strings.ToLower(a.Val)), "javascript:") {
				continue
			}
			kept = append(kept, a)
		}
		n.Attr = kept
	})
	for _, n := range doomed {
		if n.Parent != nil {
			n.Parent.RemoveChild(n)
		}
	}
}

// StripTag removes every element with the given tag name and returns how
// many were removed. The export fallback ladder uses it to drop elements
// the renderer keeps choking on.
func (t *Tree) StripTag(tag string) int {
	doomed := t.FindAll(tag)
	for _, n := range doomed {
		if n.Parent != nil {
			n.Parent.RemoveChild(n)
		}
	}
	return len(doomed)
}

// walk applies fn to n and every descendant in document order.
func walk(n *html.Node, fn func(*html.Node)) {
	fn(n)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, fn)
	}
}

// findFirst returns the first element with the given tag name, or nil.
func findFirst(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tag {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findFirst(c, tag); found != nil {
			return found
		}
	}
	return nil
}

// newElement creates a detached element node.
func newElement(tag string, attrs ...html.Attribute) *html.Node {
	return &html.Node{
		Type:     html.ElementNode,
		Data:     tag,
		DataAtom: atom.Lookup([]byte(tag)),
		Attr:     attrs,
	}
}

// newText creates a detached text node.
func newText(text string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: text}
}

// attrValue returns the value of the named attribute, or "".
func attrValue(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// setAttr sets or replaces the named attribute.
func setAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

// isBlockTag reports whether tag is a block-level element for the purpose
// of plain-text projection.
func isBlockTag(tag string) bool {
	switch tag {
	case "p", "div", "h1", "h2", "h3", "h4", "h5", "h6",
		"ul", "ol", "li", "table", "tr", "blockquote", "pre", "hr", "br":
		return true
	}
	return false
}

// headingLevel returns 1..6 for h1..h6 elements, 0 otherwise.
func headingLevel(n *html.Node) int {
	if n.Type != html.ElementNode || len(n.Data) != 2 || n.Data[0] != 'h' {
		return 0
	}
	if n.Data[1] < '1' || n.Data[1] > '6' {
		return 0
	}
	return int(n.Data[1] - '0')
}
