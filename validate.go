package docforge

import (
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// Validation ceilings.
const (
	DefaultMaxContentBytes = 1 << 20 // 1 MB of serialized markup
	DefaultMaxImages       = 50
	DefaultMaxTables       = 20
)

// defaultAllowedTags is the structural allow-list for exportable content.
var defaultAllowedTags = map[string]bool{
	"p": true, "div": true, "span": true, "br": true, "hr": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"strong": true, "b": true, "em": true, "i": true, "u": true,
	"s": true, "del": true, "mark": true, "sub": true, "sup": true,
	"ul": true, "ol": true, "li": true,
	"blockquote": true, "pre": true, "code": true,
	"table": true, "thead": true, "tbody": true, "tr": true, "th": true, "td": true,
	"a": true, "img": true,
}

// defaultAllowedAttrs is the attribute allow-list.
var defaultAllowedAttrs = map[string]bool{
	"href": true, "src": true, "alt": true, "title": true, "style": true,
	"colspan": true, "rowspan": true, "width": true, "height": true,
	"class": true,
}

// ValidationIssue is one problem found during pre-export validation.
type ValidationIssue struct {
	Code    string
	Message string
}

// ValidationResult is the structured outcome of pre-export validation.
// Violations are reported here, never thrown as errors that interrupt
// the editing session.
type ValidationResult struct {
	Valid  bool
	Issues []ValidationIssue
}

// Err converts an invalid result to a categorized error for the export
// pipeline. The first issue picks the sentinel; all messages are carried.
// Returns nil when the result is valid.
func (r ValidationResult) Err() error {
	if r.Valid {
		return nil
	}
	msgs := make([]string, len(r.Issues))
	for i, issue := range r.Issues {
		msgs[i] = issue.Message
	}
	detail := strings.Join(msgs, "; ")

	switch r.Issues[0].Code {
	case "empty":
		return fmt.Errorf("%w: %s", ErrEmptyDocument, detail)
	case "content-too-large":
		return fmt.Errorf("%w: %s", ErrContentTooLarge, detail)
	case "too-many-images", "image-too-large":
		return fmt.Errorf("%w: %s", ErrTooManyImages, detail)
	case "too-many-tables":
		return fmt.Errorf("%w: %s", ErrTooManyTables, detail)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedElement, detail)
	}
}

// Validator rejects unexportable content early, before any rendering
// work is spent on it.
type Validator struct {
	MaxContentBytes int
	MaxImages       int
	MaxImageBytes   int64
	MaxTables       int
	AllowedTags     map[string]bool
	AllowedAttrs    map[string]bool
}

// NewValidator returns a validator with the default ceilings and
// allow-lists.
func NewValidator() *Validator {
	return &Validator{
		MaxContentBytes: DefaultMaxContentBytes,
		MaxImages:       DefaultMaxImages,
		MaxImageBytes:   DefaultMaxImageBytes,
		MaxTables:       DefaultMaxTables,
		AllowedTags:     defaultAllowedTags,
		AllowedAttrs:    defaultAllowedAttrs,
	}
}

// Validate checks a document tree against all ceilings and the
// structural allow-list.
func (v *Validator) Validate(t *Tree) ValidationResult {
	var issues []ValidationIssue
	add := func(code, format string, args ...any) {
		issues = append(issues, ValidationIssue{Code: code, Message: fmt.Sprintf(format, args...)})
	}

	if t == nil || t.IsEmpty() {
		add("empty", "document has no exportable content")
		return ValidationResult{Valid: false, Issues: issues}
	}

	serialized, err := t.HTML()
	if err != nil {
		add("serialize", "document could not be serialized: %v", err)
		return ValidationResult{Valid: false, Issues: issues}
	}
	if len(serialized) > v.MaxContentBytes {
		add("content-too-large", "content is %d bytes (limit %d)", len(serialized), v.MaxContentBytes)
	}

	images := t.FindAll("img")
	if len(images) > v.MaxImages {
		add("too-many-images", "%d images (limit %d)", len(images), v.MaxImages)
	}
	for i, img := range images {
		if size := dataURISize(attrValue(img, "src")); size > v.MaxImageBytes {
			add("image-too-large", "image %d is %d bytes (limit %d)", i+1, size, v.MaxImageBytes)
		}
	}

	if n := t.CountTag("table"); n > v.MaxTables {
		add("too-many-tables", "%d tables (limit %d)", n, v.MaxTables)
	}

	walk(t.Body(), func(n *html.Node) {
		if n.Type != html.ElementNode || n.Data == "body" {
			return
		}
		if !v.AllowedTags[n.Data] {
			add("unsupported-tag", "element <%s> is not exportable", n.Data)
			return
		}
		for _, a := range n.Attr {
			if !v.AllowedAttrs[strings.ToLower(a.Key)] {
				add("unsupported-attr", "attribute %q on <%s> is not exportable", a.Key, n.Data)
			}
		}
	})

	return ValidationResult{Valid: len(issues) == 0, Issues: issues}
}

// dataURISize estimates the decoded byte size of a data: URI payload.
// Non-data sources report zero; their size is unknown until image load.
func dataURISize(src string) int64 {
	if !strings.HasPrefix(src, "data:") {
		return 0
	}
	_, payload, ok := strings.Cut(src, ",")
	if !ok {
		return 0
	}
	return int64(base64.StdEncoding.DecodedLen(len(payload)))
}
