package docforge

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// ChangeEvent carries both representations of the document after an edit.
// Delivery is synchronous within the tick the edit occurred; downstream
// Markdown re-derivation is deferred by the SyncController.
type ChangeEvent struct {
	HTML      string
	PlainText string
}

// FormatState reports which togglable formats are active at the current
// selection, for toolbar reflection. It is derived from the live tree,
// not from command history.
type FormatState struct {
	Bold      bool
	Italic    bool
	Underline bool
	Strike    bool
	Heading   int // 0 when the selected block is not a heading
	Alignment string
}

// Editor hosts the editable structural document and applies formatting
// commands. An Editor is owned by a single SyncController and is not safe
// for concurrent use.
type Editor struct {
	tree          *Tree
	placeholder   string
	selection     *html.Node // selected block element, nil = no selection
	cursor        *html.Node // last known insertion point
	listeners     []func(ChangeEvent)
	maxImageBytes int64
	codec         MarkdownCodec
}

// EditorOption configures an Editor.
type EditorOption func(*Editor)

// WithMaxImageBytes overrides the default 5 MB image size ceiling.
func WithMaxImageBytes(n int64) EditorOption {
	return func(e *Editor) {
		e.maxImageBytes = n
	}
}

// WithEditorCodec overrides the codec used to decode Markdown initial
// content.
func WithEditorCodec(c MarkdownCodec) EditorOption {
	return func(e *Editor) {
		e.codec = c
	}
}

// NewEditor creates an editor holding the initial content. When format is
// FormatAuto the payload format is detected from structural markers.
// An empty content string yields an empty document.
func NewEditor(placeholder, content string, format ContentFormat, opts ...EditorOption) (*Editor, error) {
	e := &Editor{
		placeholder:   placeholder,
		maxImageBytes: DefaultMaxImageBytes,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.codec == nil {
		e.codec = NewMarkdownCodec()
	}

	if strings.TrimSpace(content) == "" {
		e.tree = NewTree()
		return e, nil
	}

	if format == FormatAuto || format == "" {
		format = DetectFormat(content)
	}

	var err error
	switch format {
	case FormatMarkdown:
		e.tree, err = e.codec.Decode(content)
	case FormatHTML:
		e.tree, err = ParseTree(content)
	default:
		return nil, fmt.Errorf("unknown content format %q", format)
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

// Tree returns the live document tree.
func (e *Editor) Tree() *Tree { return e.tree }

// replaceTree installs a new tree, dropping selection and cursor.
// Used by the SyncController when loading content; no change event fires
// because a freshly loaded document is not an edit.
func (e *Editor) replaceTree(t *Tree) {
	e.tree = t
	e.selection = nil
	e.cursor = nil
}

// Placeholder returns the hint text shown while the document is empty.
func (e *Editor) Placeholder() string { return e.placeholder }

// Select marks a block element as the active selection and moves the
// cursor to it.
func (e *Editor) Select(n *html.Node) {
	e.selection = n
	if n != nil {
		e.cursor = n
	}
}

// SelectBlock selects the i-th top-level block.
func (e *Editor) SelectBlock(i int) error {
	blocks := e.tree.Blocks()
	if i < 0 || i >= len(blocks) {
		return fmt.Errorf("block index %d out of range (have %d blocks)", i, len(blocks))
	}
	e.Select(blocks[i])
	return nil
}

// ClearSelection drops the active selection. The cursor keeps its last
// known position for insertion commands.
func (e *Editor) ClearSelection() {
	e.selection = nil
}

// OnChange registers a content-changed listener. Listeners run
// synchronously, in registration order, once per applied edit.
func (e *Editor) OnChange(fn func(ChangeEvent)) {
	e.listeners = append(e.listeners, fn)
}

// InsertText appends a paragraph of raw text at the end of the document
// and moves the cursor there.
func (e *Editor) InsertText(text string) {
	p := newElement("p")
	p.AppendChild(newText(text))
	e.tree.Body().AppendChild(p)
	e.cursor = p
	e.fireChange()
}

// ActiveFormats reports the toggle state at the current selection by
// inspecting the live tree.
func (e *Editor) ActiveFormats() FormatState {
	var fs FormatState
	if e.selection == nil {
		return fs
	}
	fs.Bold = hasWrapper(e.selection, "strong")
	fs.Italic = hasWrapper(e.selection, "em")
	fs.Underline = hasWrapper(e.selection, "u")
	fs.Strike = hasWrapper(e.selection, "del")
	fs.Heading = headingLevel(e.selection)
	fs.Alignment = alignmentOf(e.selection)
	return fs
}

// fireChange delivers one content-changed event to every listener.
func (e *Editor) fireChange() {
	if len(e.listeners) == 0 {
		return
	}
	htmlContent, err := e.tree.HTML()
	if err != nil {
		// Rendering an in-memory tree only fails on exotic node damage;
		// deliver the plain-text projection regardless.
		htmlContent = ""
	}
	ev := ChangeEvent{HTML: htmlContent, PlainText: e.tree.PlainText()}
	for _, fn := range e.listeners {
		fn(ev)
	}
}

// hasWrapper reports whether the block's content is wrapped in the given
// inline tag, or the block itself sits inside one.
func hasWrapper(n *html.Node, tag string) bool {
	for a := n; a != nil; a = a.Parent {
		if a.Type == html.ElementNode && a.Data == tag {
			return true
		}
	}
	c := firstElementChild(n)
	return c != nil && c.Data == tag && onlyChild(n, c)
}

// alignmentOf extracts text-align from the block's style attribute.
func alignmentOf(n *html.Node) string {
	style := attrValue(n, "style")
	for _, decl := range strings.Split(style, ";") {
		k, v, ok := strings.Cut(decl, ":")
		if ok && strings.TrimSpace(k) == "text-align" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func firstElementChild(n *html.Node) *html.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			return c
		}
	}
	return nil
}

// onlyChild reports whether c is the only non-whitespace child of n.
func onlyChild(n, c *html.Node) bool {
	for s := n.FirstChild; s != nil; s = s.NextSibling {
		if s == c {
			continue
		}
		if s.Type == html.TextNode && strings.TrimSpace(s.Data) == "" {
			continue
		}
		return false
	}
	return true
}
