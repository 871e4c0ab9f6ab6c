package docforge

import (
	"bytes"
	"fmt"
	"regexp"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
	xhtml "golang.org/x/net/html"
)

// ContentFormat identifies the representation of a content payload.
type ContentFormat string

// Supported content formats. FormatAuto applies a marker heuristic.
const (
	FormatAuto     ContentFormat = "auto"
	FormatMarkdown ContentFormat = "markdown"
	FormatHTML     ContentFormat = "html"
)

// MarkdownCodec converts between the structural document tree and
// Markdown text. Implementations must be deterministic: encoding the
// same tree twice yields identical Markdown.
//
// The conversion is lossy but semantically stable. Constructs Markdown
// cannot express natively (underline) degrade to inline HTML passthrough
// rather than being dropped, and unrecognized Markdown syntax decodes to
// literal text rather than erroring.
type MarkdownCodec interface {
	// Encode serializes a tree to Markdown.
	Encode(t *Tree) (string, error)
	// Decode parses Markdown into a tree.
	Decode(markdown string) (*Tree, error)
}

// Compile-time interface check.
var _ MarkdownCodec = (*goldmarkCodec)(nil)

// goldmarkCodec implements MarkdownCodec with goldmark for decoding and
// html-to-markdown for encoding.
type goldmarkCodec struct {
	md   goldmark.Markdown
	conv *converter.Converter
}

// NewMarkdownCodec returns the default codec. The codec is resolved once
// here; both directions are available or construction would have panicked,
// so callers never inspect capabilities at call sites.
func NewMarkdownCodec() MarkdownCodec {
	md := goldmark.New(
		goldmark.WithExtensions(
			extension.GFM, // Tables, strikethrough, autolinks, task lists
			highlighting.NewHighlighting(
				highlighting.WithFormatOptions(
					chromahtml.WithClasses(true),
				),
			),
		),
		goldmark.WithRendererOptions(
			html.WithXHTML(),
			// WithUnsafe is required for the underline round trip: <u> is
			// emitted as inline HTML passthrough and must parse back into
			// a real element, not escaped text.
			html.WithUnsafe(),
		),
	)

	conv := converter.NewConverter(
		converter.WithPlugins(
			base.NewBasePlugin(),
			commonmark.NewCommonmarkPlugin(),
			table.NewTablePlugin(),
		),
	)
	// Underline has no native Markdown form; keep it as a <u> passthrough.
	conv.Register.RendererFor("u", converter.TagTypeInline, renderUnderline, converter.PriorityStandard)

	return &goldmarkCodec{md: md, conv: conv}
}

// renderUnderline emits <u>...</u> literally into the Markdown output.
func renderUnderline(ctx converter.Context, w converter.Writer, n *xhtml.Node) converter.RenderStatus {
	w.WriteString("<u>")
	ctx.RenderChildNodes(ctx, w, n)
	w.WriteString("</u>")
	return converter.RenderSuccess
}

// Encode serializes the tree to Markdown.
func (c *goldmarkCodec) Encode(t *Tree) (string, error) {
	if t == nil {
		return "", fmt.Errorf("%w: nil tree", ErrCodecFailure)
	}
	out, err := c.conv.ConvertNode(t.Body())
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCodecFailure, err)
	}
	return string(out), nil
}

// Decode parses Markdown into a document tree. Unrecognized syntax is
// preserved as literal text by goldmark, never silently dropped.
func (c *goldmarkCodec) Decode(markdown string) (*Tree, error) {
	var buf bytes.Buffer
	if err := c.md.Convert([]byte(normalizeLineEndings(markdown)), &buf); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCodecFailure, err)
	}
	return ParseTree(buf.String())
}

// Format-detection heuristics: markdown structural markers vs HTML tags.
var (
	crlfOrCR          = regexp.MustCompile(`\r\n?`)
	mdHeadingMarker   = regexp.MustCompile(`(?m)^#{1,6}\s`)
	mdListMarker      = regexp.MustCompile(`(?m)^\s*([-*+]|\d+\.)\s`)
	mdEmphasisMarker  = regexp.MustCompile(`(\*\*|__|~~)\S`)
	mdFenceMarker     = regexp.MustCompile("(?m)^(```|~~~)")
	htmlBlockTagStart = regexp.MustCompile(`(?i)<(p|div|h[1-6]|table|ul|ol|blockquote|pre|br|img|span|strong|em)[\s/>]`)
)

// DetectFormat guesses whether content is Markdown or HTML. Markdown
// structural markers win over HTML tags: a markdown document may carry
// inline HTML passthrough, but an HTML document does not start lines with
// heading or list markers.
func DetectFormat(content string) ContentFormat {
	if mdHeadingMarker.MatchString(content) ||
		mdListMarker.MatchString(content) ||
		mdFenceMarker.MatchString(content) ||
		mdEmphasisMarker.MatchString(content) {
		return FormatMarkdown
	}
	if htmlBlockTagStart.MatchString(content) {
		return FormatHTML
	}
	// Plain text is valid Markdown.
	return FormatMarkdown
}

// normalizeLineEndings converts \r\n and \r to \n.
func normalizeLineEndings(content string) string {
	return crlfOrCR.ReplaceAllString(content, "\n")
}
