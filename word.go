package docforge

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/net/html"

	"github.com/docforge/go-docforge/internal/docx"
)

// ExportWord exports the document tree as a .docx file. Word handles its
// own pagination, so no rasterization happens: the tree's blocks are
// mapped directly onto WordprocessingML paragraphs, tables, and images.
// Shares the single export slot with ExportPDF.
func (e *Exporter) ExportWord(ctx context.Context, tree *Tree, opts ExportOptions) (res *ExportResult, err error) {
	if err := e.acquire(); err != nil {
		return nil, err
	}
	defer e.release(&err)

	jobID := uuid.NewString()
	opts = opts.normalized()

	e.setState(StateValidating)
	if err := opts.Validate(); err != nil {
		return nil, newExportError(err)
	}
	if tree == nil || tree.IsEmpty() {
		return nil, newExportError(ErrEmptyDocument)
	}
	if vErr := e.validator.Validate(tree).Err(); vErr != nil {
		return nil, newExportError(vErr)
	}

	e.setState(StateCaching)
	e.cache.Configure(opts.CacheTTL, opts.CacheMaxEntries)
	e.memory.SetThreshold(opts.MemoryThreshold)
	serialized, err := tree.HTML()
	if err != nil {
		return nil, newExportError(err)
	}
	key := Fingerprint(serialized, "docx", opts.renderFingerprintFields())
	if cached, ok := e.cache.Get(key); ok {
		r := cached.(*ExportResult)
		return &ExportResult{
			JobID:     jobID,
			Data:      r.Data,
			FileName:  r.FileName,
			FromCache: true,
		}, nil
	}

	e.setState(StateProcessing)
	work, err := tree.Clone()
	if err != nil {
		return nil, newExportError(err)
	}
	work.StripInteractive()

	e.setState(StateRendering)
	data, err := buildDocx(ctx, work, opts)
	if err != nil {
		return nil, newExportError(err)
	}

	result := &ExportResult{
		JobID:    jobID,
		Data:     data,
		FileName: exportFileName(opts, "docx"),
		Attempts: 1,
	}
	e.cache.Put(key, result, int64(len(data)))
	e.logger.Info("word export complete", "job", jobID, "bytes", len(data))
	return result, nil
}

// ExportMarkdownWord decodes Markdown and exports it as a .docx file.
func (e *Exporter) ExportMarkdownWord(ctx context.Context, markdown string, opts ExportOptions) (*ExportResult, error) {
	if e.codec == nil {
		return nil, newExportError(ErrCodecMissing)
	}
	tree, err := e.codec.Decode(markdown)
	if err != nil {
		return nil, newExportError(err)
	}
	return e.ExportWord(ctx, tree, opts)
}

// buildDocx maps the tree's blocks onto the OOXML builder.
func buildDocx(ctx context.Context, t *Tree, opts ExportOptions) ([]byte, error) {
	pageW, pageH := opts.pageSize()
	header := opts.HeaderText
	if header == "" && opts.IncludeHeaders {
		header = opts.FileName
	}
	if !opts.IncludeHeaders {
		header = ""
	}
	footer := opts.FooterText
	if !opts.IncludeFooters {
		footer = ""
	}

	b := docx.NewBuilder(docx.Options{
		PageWidthMM:     pageW,
		PageHeightMM:    pageH,
		MarginTopMM:     opts.Margins.Top,
		MarginRightMM:   opts.Margins.Right,
		MarginBottomMM:  opts.Margins.Bottom,
		MarginLeftMM:    opts.Margins.Left,
		HeaderText:      header,
		FooterText:      footer,
		ShowPageNumbers: opts.IncludeFooters && opts.ShowPageNumbers,
	})

	for _, blk := range t.Blocks() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := appendBlock(b, blk); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	if err := b.Write(&buf); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWordCompose, err)
	}
	return buf.Bytes(), nil
}

// appendBlock maps one block element onto the builder.
func appendBlock(b *docx.Builder, n *html.Node) error {
	switch n.Data {
	case "h1", "h2", "h3", "h4", "h5", "h6":
		b.AddParagraph(docx.Paragraph{
			HeadingLevel: headingLevel(n),
			Alignment:    alignmentOf(n),
			Runs:         collectRuns(n, docx.Run{}),
		})
	case "table":
		b.AddTable(tableData(n))
	case "ul", "ol":
		appendList(b, n, n.Data == "ol")
	case "blockquote":
		b.AddParagraph(docx.Paragraph{
			Runs: collectRuns(n, docx.Run{Italic: true, Color: "555555"}),
		})
	case "pre":
		b.AddParagraph(docx.Paragraph{
			Runs: collectRuns(n, docx.Run{Color: "333333"}),
		})
	default:
		if img := findFirst(n, "img"); img != nil && onlyImage(n) {
			return appendImage(b, img)
		}
		b.AddParagraph(docx.Paragraph{
			Alignment: alignmentOf(n),
			Runs:      collectRuns(n, docx.Run{}),
		})
	}
	return nil
}

// appendList flattens list items to prefixed paragraphs; Word-native
// numbering definitions are not worth their weight here.
func appendList(b *docx.Builder, list *html.Node, ordered bool) {
	i := 0
	for li := list.FirstChild; li != nil; li = li.NextSibling {
		if li.Type != html.ElementNode || li.Data != "li" {
			continue
		}
		i++
		prefix := "• "
		if ordered {
			prefix = strconv.Itoa(i) + ". "
		}
		runs := append([]docx.Run{{Text: prefix}}, collectRuns(li, docx.Run{})...)
		b.AddParagraph(docx.Paragraph{Runs: runs})
	}
}

// collectRuns walks inline content accumulating format state.
func collectRuns(n *html.Node, state docx.Run) []docx.Run {
	var runs []docx.Run
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		switch c.Type {
		case html.TextNode:
			if c.Data == "" {
				continue
			}
			r := state
			r.Text = c.Data
			runs = append(runs, r)
		case html.ElementNode:
			child := state
			switch c.Data {
			case "strong", "b":
				child.Bold = true
			case "em", "i":
				child.Italic = true
			case "u":
				child.Underline = true
			case "del", "s":
				child.Strike = true
			case "br":
				runs = append(runs, docx.Run{Text: "\n"})
				continue
			case "span":
				if color := styleProperty(c, "color"); color != "" {
					child.Color = hexColor(color)
				}
				if styleProperty(c, "background-color") != "" {
					child.Highlight = "yellow" // Word highlights are named, not arbitrary
				}
			case "code":
				child.Color = "C7254E"
			}
			runs = append(runs, collectRuns(c, child)...)
		}
	}
	return runs
}

// tableData extracts header and body cells from a table element.
func tableData(n *html.Node) docx.Table {
	var t docx.Table
	walk(n, func(row *html.Node) {
		if row.Type != html.ElementNode || row.Data != "tr" {
			return
		}
		var cells []string
		isHeader := false
		for c := row.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode {
				continue
			}
			switch c.Data {
			case "th":
				isHeader = true
				cells = append(cells, textOf(c))
			case "td":
				cells = append(cells, textOf(c))
			}
		}
		if len(cells) == 0 {
			return
		}
		if isHeader && t.Header == nil {
			t.Header = cells
		} else {
			t.Rows = append(t.Rows, cells)
		}
	})
	return t
}

// appendImage decodes a data-URI image and embeds it.
func appendImage(b *docx.Builder, img *html.Node) error {
	src := attrValue(img, "src")
	data, format, err := decodeDataURI(src)
	if err != nil {
		return err
	}
	w := intAttr(img, "width", 400)
	h := intAttr(img, "height", 300)
	return b.AddImage(docx.Image{Data: data, Format: format, WidthPx: w, HeightPx: h})
}

// decodeDataURI extracts the payload of a base64 image data URI.
func decodeDataURI(src string) ([]byte, string, error) {
	rest, ok := strings.CutPrefix(src, "data:image/")
	if !ok {
		return nil, "", fmt.Errorf("%w: not a data URI", ErrNotAnImage)
	}
	mediatype, payload, ok := strings.Cut(rest, ";base64,")
	if !ok {
		return nil, "", fmt.Errorf("%w: not base64 encoded", ErrNotAnImage)
	}
	format := mediatype
	if format == "jpg" {
		format = "jpeg"
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrNotAnImage, err)
	}
	return data, format, nil
}

// onlyImage reports whether a block holds a single image and no text.
func onlyImage(n *html.Node) bool {
	return strings.TrimSpace(textOf(n)) == "" && findFirst(n, "img") != nil
}

// textOf returns the concatenated text content of a subtree.
func textOf(n *html.Node) string {
	var sb strings.Builder
	walk(n, func(c *html.Node) {
		if c.Type == html.TextNode {
			sb.WriteString(c.Data)
		}
	})
	return strings.TrimSpace(sb.String())
}

// intAttr parses an integer attribute with a fallback.
func intAttr(n *html.Node, key string, fallback int) int {
	v, err := strconv.Atoi(attrValue(n, key))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

// styleProperty extracts one property value from an inline style attribute.
func styleProperty(n *html.Node, property string) string {
	for _, decl := range strings.Split(attrValue(n, "style"), ";") {
		name, value, ok := strings.Cut(decl, ":")
		if ok && strings.TrimSpace(name) == property {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

// hexColor normalizes a CSS color to the bare hex form Word expects.
// Non-hex colors pass through a small named-color table; unknown names
// fall back to black.
func hexColor(css string) string {
	css = strings.TrimSpace(css)
	if hex, ok := strings.CutPrefix(css, "#"); ok {
		return strings.ToUpper(hex)
	}
	named := map[string]string{
		"black": "000000", "red": "FF0000", "green": "008000",
		"blue": "0000FF", "yellow": "FFFF00", "gray": "808080",
		"grey": "808080", "white": "FFFFFF", "orange": "FFA500",
	}
	if hex, ok := named[strings.ToLower(css)]; ok {
		return hex
	}
	return "000000"
}
