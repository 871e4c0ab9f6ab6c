package docforge

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

// CommandKind identifies a formatting command.
type CommandKind string

// Formatting commands. Toggle and style commands require an active
// selection and are silent no-ops without one; insertion commands fall
// back to the cursor position or the end of the document.
const (
	CmdBold        CommandKind = "bold"
	CmdItalic      CommandKind = "italic"
	CmdUnderline   CommandKind = "underline"
	CmdStrike      CommandKind = "strike"
	CmdHeading     CommandKind = "heading"
	CmdAlign       CommandKind = "align"
	CmdTextColor   CommandKind = "text-color"
	CmdHighlight   CommandKind = "highlight-color"
	CmdInsertTable CommandKind = "insert-table"
	CmdInsertImage CommandKind = "insert-image"
)

// Command is a discrete structural operation applied to the current
// selection. Parameters are kind-specific; unused fields are ignored.
type Command struct {
	Kind      CommandKind
	Level     int    // CmdHeading: 1..6
	Rows      int    // CmdInsertTable
	Cols      int    // CmdInsertTable
	Alignment string // CmdAlign: left, center, right, justify
	Color     string // CmdTextColor, CmdHighlight
	Image     []byte // CmdInsertImage: binary payload
	ImageAlt  string // CmdInsertImage
}

// Execute applies a formatting command atomically and fires one
// content-changed event on success. Commands that require a selection are
// no-ops (not errors) without one.
func (e *Editor) Execute(cmd Command) error {
	switch cmd.Kind {
	case CmdBold:
		return e.toggleWrap("strong")
	case CmdItalic:
		return e.toggleWrap("em")
	case CmdUnderline:
		return e.toggleWrap("u")
	case CmdStrike:
		return e.toggleWrap("del")
	case CmdHeading:
		return e.setHeading(cmd.Level)
	case CmdAlign:
		return e.setAlignment(cmd.Alignment)
	case CmdTextColor:
		return e.wrapStyled("color", cmd.Color)
	case CmdHighlight:
		return e.wrapStyled("background-color", cmd.Color)
	case CmdInsertTable:
		return e.insertTable(cmd.Rows, cmd.Cols)
	case CmdInsertImage:
		return e.insertImage(cmd.Image, cmd.ImageAlt)
	default:
		return fmt.Errorf("unknown command kind %q", cmd.Kind)
	}
}

// toggleWrap wraps the selected block's content in the inline tag, or
// unwraps it when already wrapped.
func (e *Editor) toggleWrap(tag string) error {
	n := e.selection
	if n == nil {
		return nil
	}
	if c := firstElementChild(n); c != nil && c.Data == tag && onlyChild(n, c) {
		unwrapNode(c)
	} else {
		wrapChildren(n, newElement(tag))
	}
	e.fireChange()
	return nil
}

// setHeading converts the selected block to a heading of the given level.
// Applying the level the block already has reverts it to a paragraph.
func (e *Editor) setHeading(level int) error {
	n := e.selection
	if n == nil {
		return nil
	}
	if level < 1 || level > 6 {
		return fmt.Errorf("heading level %d out of range 1..6", level)
	}
	tag := fmt.Sprintf("h%d", level)
	if n.Data == tag {
		tag = "p"
	}
	renameElement(n, tag)
	e.fireChange()
	return nil
}

// setAlignment sets text-align on the selected block.
func (e *Editor) setAlignment(alignment string) error {
	n := e.selection
	if n == nil {
		return nil
	}
	switch alignment {
	case "left", "center", "right", "justify":
	default:
		return fmt.Errorf("unknown alignment %q", alignment)
	}
	setStyleProperty(n, "text-align", alignment)
	e.fireChange()
	return nil
}

// wrapStyled wraps the selected block's content in a styled span.
func (e *Editor) wrapStyled(property, value string) error {
	n := e.selection
	if n == nil {
		return nil
	}
	if value == "" {
		return fmt.Errorf("missing color value")
	}
	span := newElement("span", html.Attribute{Key: "style", Val: property + ": " + value})
	wrapChildren(n, span)
	e.fireChange()
	return nil
}

// insertTable builds an R x C table whose first row is a header row and
// inserts it after the cursor, or at the end of the document. Dimensions
// below 1 are clamped to 1; any positive integers are accepted.
func (e *Editor) insertTable(rows, cols int) error {
	if rows < 1 {
		rows = 1
	}
	if cols < 1 {
		cols = 1
	}

	tbl := newElement("table")

	thead := newElement("thead")
	headRow := newElement("tr")
	for c := 0; c < cols; c++ {
		th := newElement("th")
		th.AppendChild(newText(fmt.Sprintf("Column %d", c+1)))
		headRow.AppendChild(th)
	}
	thead.AppendChild(headRow)
	tbl.AppendChild(thead)

	if rows > 1 {
		tbody := newElement("tbody")
		for r := 1; r < rows; r++ {
			tr := newElement("tr")
			for c := 0; c < cols; c++ {
				td := newElement("td")
				td.AppendChild(newText(""))
				tr.AppendChild(td)
			}
			tbody.AppendChild(tr)
		}
		tbl.AppendChild(tbody)
	}

	e.insertBlock(tbl)
	e.fireChange()
	return nil
}

// insertImage validates and embeds a binary image payload as a data URI.
// Rejections are validation errors; the document is left unchanged.
func (e *Editor) insertImage(data []byte, alt string) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: empty payload", ErrNotAnImage)
	}
	if int64(len(data)) > e.maxImageBytes {
		return fmt.Errorf("%w: %d bytes (limit %d)", ErrImageTooLarge, len(data), e.maxImageBytes)
	}
	mime := http.DetectContentType(data)
	if !strings.HasPrefix(mime, "image/") {
		return fmt.Errorf("%w: detected %s", ErrNotAnImage, mime)
	}

	src := "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
	img := newElement("img",
		html.Attribute{Key: "src", Val: src},
		html.Attribute{Key: "alt", Val: alt},
	)
	// Images flow with surrounding text: wrapped in a paragraph so the
	// block keeps its position as the document reflows.
	p := newElement("p")
	p.AppendChild(img)
	e.insertBlock(p)
	e.fireChange()
	return nil
}

// ResizeImage sets the rendered width of an inserted image in pixels.
// Height 0 preserves the aspect ratio; a positive height overrides it.
func (e *Editor) ResizeImage(img *html.Node, width, height int) error {
	if img == nil || img.Type != html.ElementNode || img.Data != "img" {
		return fmt.Errorf("%w: not an img element", ErrNotAnImage)
	}
	if width < 1 {
		return fmt.Errorf("image width must be positive, got %d", width)
	}
	setAttr(img, "width", strconv.Itoa(width))
	if height > 0 {
		setAttr(img, "height", strconv.Itoa(height))
	} else {
		removeAttr(img, "height")
	}
	e.fireChange()
	return nil
}

// insertBlock places a new block after the cursor, or appends it when no
// cursor position is known.
func (e *Editor) insertBlock(n *html.Node) {
	if e.cursor != nil && e.cursor.Parent == e.tree.Body() {
		e.tree.Body().InsertBefore(n, e.cursor.NextSibling)
	} else {
		e.tree.Body().AppendChild(n)
	}
	e.cursor = n
}

// wrapChildren moves all children of n into wrapper and appends wrapper
// back as the sole child.
func wrapChildren(n *html.Node, wrapper *html.Node) {
	for n.FirstChild != nil {
		c := n.FirstChild
		n.RemoveChild(c)
		wrapper.AppendChild(c)
	}
	n.AppendChild(wrapper)
}

// unwrapNode replaces n with its own children.
func unwrapNode(n *html.Node) {
	parent := n.Parent
	for n.FirstChild != nil {
		c := n.FirstChild
		n.RemoveChild(c)
		parent.InsertBefore(c, n)
	}
	parent.RemoveChild(n)
}

// renameElement changes an element's tag in place.
func renameElement(n *html.Node, tag string) {
	replacement := newElement(tag)
	n.Data = replacement.Data
	n.DataAtom = replacement.DataAtom
}

// setStyleProperty sets one CSS property in the style attribute,
// preserving unrelated declarations.
func setStyleProperty(n *html.Node, property, value string) {
	var kept []string
	for _, decl := range strings.Split(attrValue(n, "style"), ";") {
		k, _, ok := strings.Cut(decl, ":")
		if !ok || strings.TrimSpace(k) == property {
			continue
		}
		kept = append(kept, strings.TrimSpace(decl))
	}
	kept = append(kept, property+": "+value)
	setAttr(n, "style", strings.Join(kept, "; "))
}

// removeAttr deletes the named attribute if present.
func removeAttr(n *html.Node, key string) {
	for i, a := range n.Attr {
		if a.Key == key {
			n.Attr = append(n.Attr[:i], n.Attr[i+1:]...)
			return
		}
	}
}
