// Package docx writes minimal WordprocessingML (.docx) archives: styled
// paragraphs, tables, inline images, and a header/footer band with an
// automatic page number field. It covers the subset of OOXML a business
// report needs and nothing more.
package docx

import (
	"archive/zip"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrUnsupportedImage is returned for image formats Word cannot embed.
var ErrUnsupportedImage = errors.New("docx: unsupported image format")

// twipsPerMM converts millimeters to twentieths of a point.
const twipsPerMM = 1440.0 / 25.4

// emuPerPixel converts 96dpi CSS pixels to English Metric Units.
const emuPerPixel = 9525

// Run is one contiguous stretch of identically formatted text.
type Run struct {
	Text      string
	Bold      bool
	Italic    bool
	Underline bool
	Strike    bool
	Color     string // hex without '#', e.g. "FF0000"
	Highlight string // Word highlight name, e.g. "yellow"
}

// Paragraph is a block of runs with optional heading level and alignment.
type Paragraph struct {
	HeadingLevel int    // 0 = body text, 1..6 = Heading1..Heading6
	Alignment    string // "", "left", "center", "right", "justify"
	Runs         []Run
}

// Table is a rectangular grid; Header rows render bold with shading.
type Table struct {
	Header []string
	Rows   [][]string
}

// Image is an embedded picture with display dimensions in pixels.
type Image struct {
	Data     []byte
	Format   string // "png" or "jpeg"
	WidthPx  int
	HeightPx int
}

// Options describes the page geometry and running bands.
type Options struct {
	PageWidthMM     float64
	PageHeightMM    float64
	MarginTopMM     float64
	MarginRightMM   float64
	MarginBottomMM  float64
	MarginLeftMM    float64
	HeaderText      string
	FooterText      string
	ShowPageNumbers bool
}

// block is one body element, in document order.
type block struct {
	para  *Paragraph
	table *Table
	image *imageRef
}

type imageRef struct {
	relID string
	name  string
	img   Image
}

// Builder accumulates document content and serializes the archive.
type Builder struct {
	opts   Options
	blocks []block
	images []imageRef
}

// NewBuilder creates a builder for the given page geometry.
func NewBuilder(opts Options) *Builder {
	return &Builder{opts: opts}
}

// AddParagraph appends a paragraph block.
func (b *Builder) AddParagraph(p Paragraph) {
	b.blocks = append(b.blocks, block{para: &p})
}

// AddTable appends a table block.
func (b *Builder) AddTable(t Table) {
	b.blocks = append(b.blocks, block{table: &t})
}

// AddImage appends an inline image block.
func (b *Builder) AddImage(img Image) error {
	switch img.Format {
	case "png", "jpeg":
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedImage, img.Format)
	}
	ref := imageRef{
		relID: fmt.Sprintf("rIdImg%d", len(b.images)+1),
		name:  fmt.Sprintf("image%d.%s", len(b.images)+1, img.Format),
		img:   img,
	}
	b.images = append(b.images, ref)
	b.blocks = append(b.blocks, block{image: &ref})
	return nil
}

// Write serializes the document as a .docx archive.
func (b *Builder) Write(w io.Writer) error {
	zw := zip.NewWriter(w)

	parts := []struct {
		name    string
		content string
	}{
		{"[Content_Types].xml", b.contentTypes()},
		{"_rels/.rels", rootRels},
		{"word/document.xml", b.documentXML()},
		{"word/_rels/document.xml.rels", b.documentRels()},
		{"word/styles.xml", stylesXML},
		{"word/header1.xml", b.headerXML()},
		{"word/footer1.xml", b.footerXML()},
	}
	for _, p := range parts {
		f, err := zw.Create(p.name)
		if err != nil {
			return fmt.Errorf("docx: creating %s: %w", p.name, err)
		}
		if _, err := f.Write([]byte(p.content)); err != nil {
			return fmt.Errorf("docx: writing %s: %w", p.name, err)
		}
	}

	for _, ref := range b.images {
		f, err := zw.Create("word/media/" + ref.name)
		if err != nil {
			return fmt.Errorf("docx: creating media %s: %w", ref.name, err)
		}
		if _, err := f.Write(ref.img.Data); err != nil {
			return fmt.Errorf("docx: writing media %s: %w", ref.name, err)
		}
	}

	return zw.Close()
}

func (b *Builder) contentTypes() string {
	var sb strings.Builder
	sb.WriteString(xml.Header)
	sb.WriteString(`<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">`)
	sb.WriteString(`<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>`)
	sb.WriteString(`<Default Extension="xml" ContentType="application/xml"/>`)
	sb.WriteString(`<Default Extension="png" ContentType="image/png"/>`)
	sb.WriteString(`<Default Extension="jpeg" ContentType="image/jpeg"/>`)
	sb.WriteString(`<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>`)
	sb.WriteString(`<Override PartName="/word/styles.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.styles+xml"/>`)
	sb.WriteString(`<Override PartName="/word/header1.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.header+xml"/>`)
	sb.WriteString(`<Override PartName="/word/footer1.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.footer+xml"/>`)
	sb.WriteString(`</Types>`)
	return sb.String()
}

const rootRels = xml.Header + `<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
	`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>` +
	`</Relationships>`

func (b *Builder) documentRels() string {
	var sb strings.Builder
	sb.WriteString(xml.Header)
	sb.WriteString(`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">`)
	sb.WriteString(`<Relationship Id="rIdStyles" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/styles" Target="styles.xml"/>`)
	sb.WriteString(`<Relationship Id="rIdHeader" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/header" Target="header1.xml"/>`)
	sb.WriteString(`<Relationship Id="rIdFooter" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/footer" Target="footer1.xml"/>`)
	for _, ref := range b.images {
		fmt.Fprintf(&sb, `<Relationship Id="%s" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/image" Target="media/%s"/>`, ref.relID, ref.name)
	}
	sb.WriteString(`</Relationships>`)
	return sb.String()
}

func (b *Builder) documentXML() string {
	var sb strings.Builder
	sb.WriteString(xml.Header)
	sb.WriteString(`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"` +
		` xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships"` +
		` xmlns:wp="http://schemas.openxmlformats.org/drawingml/2006/wordprocessingDrawing"` +
		` xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main"` +
		` xmlns:pic="http://schemas.openxmlformats.org/drawingml/2006/picture">`)
	sb.WriteString(`<w:body>`)

	for _, blk := range b.blocks {
		switch {
		case blk.para != nil:
			writeParagraph(&sb, *blk.para)
		case blk.table != nil:
			writeTable(&sb, *blk.table)
		case blk.image != nil:
			writeImage(&sb, *blk.image)
		}
	}

	b.writeSectPr(&sb)
	sb.WriteString(`</w:body></w:document>`)
	return sb.String()
}

// writeSectPr emits the section properties: page size, margins, and the
// header/footer references. Dimensions are in twips.
func (b *Builder) writeSectPr(sb *strings.Builder) {
	sb.WriteString(`<w:sectPr>`)
	sb.WriteString(`<w:headerReference w:type="default" r:id="rIdHeader"/>`)
	sb.WriteString(`<w:footerReference w:type="default" r:id="rIdFooter"/>`)
	fmt.Fprintf(sb, `<w:pgSz w:w="%d" w:h="%d"/>`, mmToTwips(b.opts.PageWidthMM), mmToTwips(b.opts.PageHeightMM))
	fmt.Fprintf(sb, `<w:pgMar w:top="%d" w:right="%d" w:bottom="%d" w:left="%d" w:header="%d" w:footer="%d"/>`,
		mmToTwips(b.opts.MarginTopMM), mmToTwips(b.opts.MarginRightMM),
		mmToTwips(b.opts.MarginBottomMM), mmToTwips(b.opts.MarginLeftMM),
		mmToTwips(b.opts.MarginTopMM/2), mmToTwips(b.opts.MarginBottomMM/2))
	sb.WriteString(`</w:sectPr>`)
}

func writeParagraph(sb *strings.Builder, p Paragraph) {
	sb.WriteString(`<w:p>`)
	if p.HeadingLevel > 0 || p.Alignment != "" {
		sb.WriteString(`<w:pPr>`)
		if p.HeadingLevel > 0 {
			fmt.Fprintf(sb, `<w:pStyle w:val="Heading%d"/>`, p.HeadingLevel)
		}
		if jc := alignmentVal(p.Alignment); jc != "" {
			fmt.Fprintf(sb, `<w:jc w:val="%s"/>`, jc)
		}
		sb.WriteString(`</w:pPr>`)
	}
	for _, r := range p.Runs {
		writeRun(sb, r)
	}
	sb.WriteString(`</w:p>`)
}

func writeRun(sb *strings.Builder, r Run) {
	sb.WriteString(`<w:r>`)
	var props strings.Builder
	if r.Bold {
		props.WriteString(`<w:b/>`)
	}
	if r.Italic {
		props.WriteString(`<w:i/>`)
	}
	if r.Underline {
		props.WriteString(`<w:u w:val="single"/>`)
	}
	if r.Strike {
		props.WriteString(`<w:strike/>`)
	}
	if r.Color != "" {
		fmt.Fprintf(&props, `<w:color w:val="%s"/>`, escape(r.Color))
	}
	if r.Highlight != "" {
		fmt.Fprintf(&props, `<w:highlight w:val="%s"/>`, escape(r.Highlight))
	}
	if props.Len() > 0 {
		sb.WriteString(`<w:rPr>`)
		sb.WriteString(props.String())
		sb.WriteString(`</w:rPr>`)
	}
	fmt.Fprintf(sb, `<w:t xml:space="preserve">%s</w:t>`, escape(r.Text))
	sb.WriteString(`</w:r>`)
}

func writeTable(sb *strings.Builder, t Table) {
	sb.WriteString(`<w:tbl><w:tblPr>` +
		`<w:tblW w:w="0" w:type="auto"/>` +
		`<w:tblBorders>` +
		`<w:top w:val="single" w:sz="4" w:color="CCCCCC"/>` +
		`<w:left w:val="single" w:sz="4" w:color="CCCCCC"/>` +
		`<w:bottom w:val="single" w:sz="4" w:color="CCCCCC"/>` +
		`<w:right w:val="single" w:sz="4" w:color="CCCCCC"/>` +
		`<w:insideH w:val="single" w:sz="4" w:color="CCCCCC"/>` +
		`<w:insideV w:val="single" w:sz="4" w:color="CCCCCC"/>` +
		`</w:tblBorders></w:tblPr>`)

	if len(t.Header) > 0 {
		sb.WriteString(`<w:tr>`)
		for _, cell := range t.Header {
			sb.WriteString(`<w:tc><w:tcPr><w:shd w:val="clear" w:fill="F2F2F2"/></w:tcPr>`)
			writeParagraph(sb, Paragraph{Runs: []Run{{Text: cell, Bold: true}}})
			sb.WriteString(`</w:tc>`)
		}
		sb.WriteString(`</w:tr>`)
	}
	for _, row := range t.Rows {
		sb.WriteString(`<w:tr>`)
		for _, cell := range row {
			sb.WriteString(`<w:tc>`)
			writeParagraph(sb, Paragraph{Runs: []Run{{Text: cell}}})
			sb.WriteString(`</w:tc>`)
		}
		sb.WriteString(`</w:tr>`)
	}
	sb.WriteString(`</w:tbl>`)
}

func writeImage(sb *strings.Builder, ref imageRef) {
	cx := int64(ref.img.WidthPx) * emuPerPixel
	cy := int64(ref.img.HeightPx) * emuPerPixel
	sb.WriteString(`<w:p><w:r><w:drawing>`)
	fmt.Fprintf(sb, `<wp:inline distT="0" distB="0" distL="0" distR="0">`+
		`<wp:extent cx="%d" cy="%d"/>`+
		`<wp:docPr id="1" name="%s"/>`+
		`<a:graphic><a:graphicData uri="http://schemas.openxmlformats.org/drawingml/2006/picture">`+
		`<pic:pic>`+
		`<pic:nvPicPr><pic:cNvPr id="1" name="%s"/><pic:cNvPicPr/></pic:nvPicPr>`+
		`<pic:blipFill><a:blip r:embed="%s"/><a:stretch><a:fillRect/></a:stretch></pic:blipFill>`+
		`<pic:spPr><a:xfrm><a:off x="0" y="0"/><a:ext cx="%d" cy="%d"/></a:xfrm>`+
		`<a:prstGeom prst="rect"><a:avLst/></a:prstGeom></pic:spPr>`+
		`</pic:pic>`+
		`</a:graphicData></a:graphic>`+
		`</wp:inline>`,
		cx, cy, escape(ref.name), escape(ref.name), ref.relID, cx, cy)
	sb.WriteString(`</w:drawing></w:r></w:p>`)
}

func (b *Builder) headerXML() string {
	var sb strings.Builder
	sb.WriteString(xml.Header)
	sb.WriteString(`<w:hdr xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">`)
	writeParagraph(&sb, Paragraph{Runs: []Run{{Text: b.opts.HeaderText, Color: "6E6E6E"}}})
	sb.WriteString(`</w:hdr>`)
	return sb.String()
}

// footerXML emits the footer text and, when enabled, a PAGE field so Word
// numbers pages itself.
func (b *Builder) footerXML() string {
	var sb strings.Builder
	sb.WriteString(xml.Header)
	sb.WriteString(`<w:ftr xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">`)
	sb.WriteString(`<w:p><w:pPr><w:jc w:val="right"/></w:pPr>`)
	if b.opts.FooterText != "" {
		writeRun(&sb, Run{Text: b.opts.FooterText + "  ", Color: "6E6E6E"})
	}
	if b.opts.ShowPageNumbers {
		sb.WriteString(`<w:r><w:rPr><w:color w:val="6E6E6E"/></w:rPr><w:t xml:space="preserve">Page </w:t></w:r>`)
		sb.WriteString(`<w:r><w:fldChar w:fldCharType="begin"/></w:r>`)
		sb.WriteString(`<w:r><w:instrText xml:space="preserve"> PAGE </w:instrText></w:r>`)
		sb.WriteString(`<w:r><w:fldChar w:fldCharType="end"/></w:r>`)
	}
	sb.WriteString(`</w:p></w:ftr>`)
	return sb.String()
}

var stylesXML = xml.Header + `<w:styles xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">` +
	`<w:docDefaults><w:rPrDefault><w:rPr><w:rFonts w:ascii="Georgia" w:hAnsi="Georgia"/><w:sz w:val="22"/></w:rPr></w:rPrDefault></w:docDefaults>` +
	headingStyle(1, 36) + headingStyle(2, 30) + headingStyle(3, 26) +
	headingStyle(4, 24) + headingStyle(5, 22) + headingStyle(6, 22) +
	`</w:styles>`

// headingStyle emits one heading style definition; sz is half-points.
func headingStyle(level, sz int) string {
	return fmt.Sprintf(`<w:style w:type="paragraph" w:styleId="Heading%d">`+
		`<w:name w:val="heading %d"/>`+
		`<w:pPr><w:spacing w:before="240" w:after="120"/></w:pPr>`+
		`<w:rPr><w:rFonts w:ascii="Helvetica" w:hAnsi="Helvetica"/><w:b/><w:sz w:val="%d"/></w:rPr>`+
		`</w:style>`, level, level, sz)
}

func alignmentVal(a string) string {
	switch a {
	case "left":
		return "left"
	case "center":
		return "center"
	case "right":
		return "right"
	case "justify":
		return "both"
	}
	return ""
}

func mmToTwips(mm float64) int {
	return int(mm * twipsPerMM)
}

// escape XML-escapes text content and attribute values.
func escape(s string) string {
	var sb strings.Builder
	if err := xml.EscapeText(&sb, []byte(s)); err != nil {
		return ""
	}
	return sb.String()
}
