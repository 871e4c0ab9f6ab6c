package docforge

import (
	"errors"
	"strings"
	"testing"
)

// tinyPNG is a valid 1x1 PNG, small enough to embed in tests.
var tinyPNG = []byte{
	0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A,
	0x00, 0x00, 0x00, 0x0D, 0x49, 0x48, 0x44, 0x52,
	0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1F, 0x15, 0xC4,
	0x89, 0x00, 0x00, 0x00, 0x0D, 0x49, 0x44, 0x41,
	0x54, 0x78, 0x9C, 0x62, 0x00, 0x01, 0x00, 0x00,
	0x05, 0x00, 0x01, 0x0D, 0x0A, 0x2D, 0xB4, 0x00,
	0x00, 0x00, 0x00, 0x49, 0x45, 0x4E, 0x44, 0xAE,
	0x42, 0x60, 0x82,
}

func newTestEditor(t *testing.T, fragment string) *Editor {
	t.Helper()
	e, err := NewEditor("Start typing…", fragment, FormatHTML)
	if err != nil {
		t.Fatalf("NewEditor: %v", err)
	}
	return e
}

func editorHTML(t *testing.T, e *Editor) string {
	t.Helper()
	s, err := e.Tree().HTML()
	if err != nil {
		t.Fatalf("HTML: %v", err)
	}
	return s
}

// ---------------------------------------------------------------------------
// TestNewEditor - Initial content formats
// ---------------------------------------------------------------------------

func TestNewEditor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		content  string
		format   ContentFormat
		wantTag  string
		wantText string
	}{
		{name: "empty yields empty document", content: "", format: FormatAuto},
		{name: "html content", content: "<p>hello</p>", format: FormatHTML, wantTag: "p", wantText: "hello"},
		{name: "markdown content", content: "# Title", format: FormatMarkdown, wantTag: "h1", wantText: "Title"},
		{name: "auto detects markdown", content: "## Section\n\nBody.", format: FormatAuto, wantTag: "h2", wantText: "Section"},
		{name: "auto detects html", content: "<div><p>hi</p></div>", format: FormatAuto, wantTag: "div", wantText: "hi"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			e, err := NewEditor("Start typing…", tt.content, tt.format)
			if err != nil {
				t.Fatalf("NewEditor: %v", err)
			}
			if tt.wantTag == "" {
				if !e.Tree().IsEmpty() {
					t.Error("document should start empty")
				}
				if e.Placeholder() != "Start typing…" {
					t.Errorf("Placeholder = %q", e.Placeholder())
				}
				return
			}
			blocks := e.Tree().Blocks()
			if len(blocks) == 0 || blocks[0].Data != tt.wantTag {
				t.Fatalf("first block = %v, want <%s>", blocks, tt.wantTag)
			}
			if got := e.Tree().PlainText(); !strings.Contains(got, tt.wantText) {
				t.Errorf("PlainText = %q, want %q", got, tt.wantText)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// TestEditor_ToggleWrap - Bold toggles on and back off
// ---------------------------------------------------------------------------

func TestEditor_ToggleWrap(t *testing.T) {
	t.Parallel()

	e := newTestEditor(t, "<p>some text</p>")
	if err := e.SelectBlock(0); err != nil {
		t.Fatalf("SelectBlock: %v", err)
	}

	if err := e.Execute(Command{Kind: CmdBold}); err != nil {
		t.Fatalf("Execute bold: %v", err)
	}
	if got := editorHTML(t, e); got != "<p><strong>some text</strong></p>" {
		t.Errorf("after toggle on: %q", got)
	}
	if !e.ActiveFormats().Bold {
		t.Error("Bold should be active")
	}

	if err := e.Execute(Command{Kind: CmdBold}); err != nil {
		t.Fatalf("Execute bold again: %v", err)
	}
	if got := editorHTML(t, e); got != "<p>some text</p>" {
		t.Errorf("after toggle off: %q", got)
	}
	if e.ActiveFormats().Bold {
		t.Error("Bold should be inactive")
	}
}

// ---------------------------------------------------------------------------
// TestEditor_ToggleWithoutSelection - Silent no-op, no event
// ---------------------------------------------------------------------------

func TestEditor_ToggleWithoutSelection(t *testing.T) {
	t.Parallel()

	e := newTestEditor(t, "<p>text</p>")
	events := 0
	e.OnChange(func(ChangeEvent) { events++ })

	for _, kind := range []CommandKind{CmdBold, CmdItalic, CmdUnderline, CmdStrike, CmdAlign} {
		if err := e.Execute(Command{Kind: kind, Alignment: "center"}); err != nil {
			t.Errorf("Execute(%s) without selection: %v", kind, err)
		}
	}
	if events != 0 {
		t.Errorf("%d change events fired without a selection", events)
	}
	if got := editorHTML(t, e); got != "<p>text</p>" {
		t.Errorf("document changed: %q", got)
	}
}

// ---------------------------------------------------------------------------
// TestEditor_Heading - Set, switch, and toggle back to paragraph
// ---------------------------------------------------------------------------

func TestEditor_Heading(t *testing.T) {
	t.Parallel()

	e := newTestEditor(t, "<p>title text</p>")
	if err := e.SelectBlock(0); err != nil {
		t.Fatalf("SelectBlock: %v", err)
	}

	if err := e.Execute(Command{Kind: CmdHeading, Level: 2}); err != nil {
		t.Fatalf("Execute heading: %v", err)
	}
	if got := editorHTML(t, e); got != "<h2>title text</h2>" {
		t.Errorf("after h2: %q", got)
	}
	if e.ActiveFormats().Heading != 2 {
		t.Errorf("Heading = %d, want 2", e.ActiveFormats().Heading)
	}

	// Same level again reverts to a paragraph.
	if err := e.Execute(Command{Kind: CmdHeading, Level: 2}); err != nil {
		t.Fatalf("Execute heading again: %v", err)
	}
	if got := editorHTML(t, e); got != "<p>title text</p>" {
		t.Errorf("after revert: %q", got)
	}

	if err := e.Execute(Command{Kind: CmdHeading, Level: 7}); err == nil {
		t.Error("level 7 should be rejected")
	}
}

// ---------------------------------------------------------------------------
// TestEditor_Alignment - Style property set without clobbering others
// ---------------------------------------------------------------------------

func TestEditor_Alignment(t *testing.T) {
	t.Parallel()

	e := newTestEditor(t, "<p>text</p>")
	if err := e.SelectBlock(0); err != nil {
		t.Fatalf("SelectBlock: %v", err)
	}

	if err := e.Execute(Command{Kind: CmdAlign, Alignment: "center"}); err != nil {
		t.Fatalf("Execute align: %v", err)
	}
	if got := e.ActiveFormats().Alignment; got != "center" {
		t.Errorf("Alignment = %q, want center", got)
	}

	// Re-aligning replaces the declaration instead of stacking it.
	if err := e.Execute(Command{Kind: CmdAlign, Alignment: "right"}); err != nil {
		t.Fatalf("Execute align: %v", err)
	}
	if got := editorHTML(t, e); strings.Count(got, "text-align") != 1 {
		t.Errorf("stacked declarations: %q", got)
	}

	if err := e.Execute(Command{Kind: CmdAlign, Alignment: "diagonal"}); err == nil {
		t.Error("unknown alignment should be rejected")
	}
}

// ---------------------------------------------------------------------------
// TestEditor_Colors - Text color and highlight wrap in styled spans
// ---------------------------------------------------------------------------

func TestEditor_Colors(t *testing.T) {
	t.Parallel()

	e := newTestEditor(t, "<p>colored</p>")
	if err := e.SelectBlock(0); err != nil {
		t.Fatalf("SelectBlock: %v", err)
	}

	if err := e.Execute(Command{Kind: CmdTextColor, Color: "#ff0000"}); err != nil {
		t.Fatalf("Execute text color: %v", err)
	}
	if got := editorHTML(t, e); !strings.Contains(got, `<span style="color: #ff0000">`) {
		t.Errorf("after color: %q", got)
	}

	if err := e.Execute(Command{Kind: CmdHighlight, Color: "yellow"}); err != nil {
		t.Fatalf("Execute highlight: %v", err)
	}
	if got := editorHTML(t, e); !strings.Contains(got, "background-color: yellow") {
		t.Errorf("after highlight: %q", got)
	}

	if err := e.Execute(Command{Kind: CmdTextColor}); err == nil {
		t.Error("missing color value should be rejected")
	}
}

// ---------------------------------------------------------------------------
// TestEditor_InsertTable - Header row and empty body cells
// ---------------------------------------------------------------------------

func TestEditor_InsertTable(t *testing.T) {
	t.Parallel()

	e := newTestEditor(t, "")
	if err := e.Execute(Command{Kind: CmdInsertTable, Rows: 3, Cols: 2}); err != nil {
		t.Fatalf("Execute insert table: %v", err)
	}

	tree := e.Tree()
	if tree.CountTag("table") != 1 {
		t.Fatal("no table inserted")
	}
	if got := tree.CountTag("th"); got != 2 {
		t.Errorf("header cells = %d, want 2", got)
	}
	if got := tree.CountTag("td"); got != 4 {
		t.Errorf("body cells = %d, want 4", got)
	}
	if got := tree.PlainText(); !strings.Contains(got, "Column 1") || !strings.Contains(got, "Column 2") {
		t.Errorf("header text = %q", got)
	}

	// Degenerate dimensions clamp to a single header cell.
	e2 := newTestEditor(t, "")
	if err := e2.Execute(Command{Kind: CmdInsertTable, Rows: 0, Cols: -3}); err != nil {
		t.Fatalf("Execute insert table: %v", err)
	}
	if got := e2.Tree().CountTag("th"); got != 1 {
		t.Errorf("clamped header cells = %d, want 1", got)
	}
}

// ---------------------------------------------------------------------------
// TestEditor_InsertImage - Embedding, size ceiling, and type sniffing
// ---------------------------------------------------------------------------

func TestEditor_InsertImage(t *testing.T) {
	t.Parallel()

	e := newTestEditor(t, "<p>before</p>")
	if err := e.Execute(Command{Kind: CmdInsertImage, Image: tinyPNG, ImageAlt: "dot"}); err != nil {
		t.Fatalf("Execute insert image: %v", err)
	}

	got := editorHTML(t, e)
	if !strings.Contains(got, `src="data:image/png;base64,`) {
		t.Errorf("image not embedded as data URI: %q", got)
	}
	if !strings.Contains(got, `alt="dot"`) {
		t.Errorf("alt text missing: %q", got)
	}
}

func TestEditor_InsertImageRejections(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		image   []byte
		opts    []EditorOption
		wantErr error
	}{
		{name: "empty payload", image: nil, wantErr: ErrNotAnImage},
		{name: "not an image", image: []byte("plain text, honestly"), wantErr: ErrNotAnImage},
		{name: "over the ceiling", image: tinyPNG, opts: []EditorOption{WithMaxImageBytes(10)}, wantErr: ErrImageTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			e, err := NewEditor("", "<p>before</p>", FormatHTML, tt.opts...)
			if err != nil {
				t.Fatalf("NewEditor: %v", err)
			}
			events := 0
			e.OnChange(func(ChangeEvent) { events++ })

			err = e.Execute(Command{Kind: CmdInsertImage, Image: tt.image})
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
			if got := editorHTML(t, e); got != "<p>before</p>" {
				t.Errorf("document changed by rejected insert: %q", got)
			}
			if events != 0 {
				t.Errorf("%d change events fired for a rejected insert", events)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// TestEditor_ResizeImage - Width required, height optional
// ---------------------------------------------------------------------------

func TestEditor_ResizeImage(t *testing.T) {
	t.Parallel()

	e := newTestEditor(t, "")
	if err := e.Execute(Command{Kind: CmdInsertImage, Image: tinyPNG}); err != nil {
		t.Fatalf("insert image: %v", err)
	}
	img := e.Tree().FindAll("img")[0]

	if err := e.ResizeImage(img, 320, 0); err != nil {
		t.Fatalf("ResizeImage: %v", err)
	}
	if got := attrValue(img, "width"); got != "320" {
		t.Errorf("width = %q, want 320", got)
	}
	if got := attrValue(img, "height"); got != "" {
		t.Errorf("height = %q, want unset for aspect-preserving resize", got)
	}

	if err := e.ResizeImage(img, 320, 200); err != nil {
		t.Fatalf("ResizeImage: %v", err)
	}
	if got := attrValue(img, "height"); got != "200" {
		t.Errorf("height = %q, want 200", got)
	}

	if err := e.ResizeImage(img, 0, 0); err == nil {
		t.Error("zero width should be rejected")
	}
	if err := e.ResizeImage(nil, 100, 0); !errors.Is(err, ErrNotAnImage) {
		t.Errorf("nil node err = %v, want ErrNotAnImage", err)
	}
}

// ---------------------------------------------------------------------------
// TestEditor_InsertText - Cursor placement and event delivery
// ---------------------------------------------------------------------------

func TestEditor_InsertText(t *testing.T) {
	t.Parallel()

	e := newTestEditor(t, "")
	var last ChangeEvent
	events := 0
	e.OnChange(func(ev ChangeEvent) {
		events++
		last = ev
	})

	e.InsertText("first paragraph")
	e.InsertText("second paragraph")

	if events != 2 {
		t.Errorf("events = %d, want 2", events)
	}
	if !strings.Contains(last.HTML, "<p>second paragraph</p>") {
		t.Errorf("event HTML = %q", last.HTML)
	}
	if !strings.Contains(last.PlainText, "first paragraph") {
		t.Errorf("event PlainText = %q", last.PlainText)
	}

	// New blocks insert after the cursor, not at the top.
	blocks := e.Tree().Blocks()
	if len(blocks) != 2 || blocks[1].FirstChild.Data != "second paragraph" {
		t.Errorf("block order wrong: %v", blocks)
	}
}

// ---------------------------------------------------------------------------
// TestEditor_SelectBlock - Range checking
// ---------------------------------------------------------------------------

func TestEditor_SelectBlock(t *testing.T) {
	t.Parallel()

	e := newTestEditor(t, "<p>a</p><p>b</p>")
	if err := e.SelectBlock(1); err != nil {
		t.Errorf("SelectBlock(1): %v", err)
	}
	if err := e.SelectBlock(2); err == nil {
		t.Error("out-of-range index should be rejected")
	}
	if err := e.SelectBlock(-1); err == nil {
		t.Error("negative index should be rejected")
	}

	e.ClearSelection()
	if fs := e.ActiveFormats(); fs != (FormatState{}) {
		t.Errorf("ActiveFormats after ClearSelection = %+v", fs)
	}
}
