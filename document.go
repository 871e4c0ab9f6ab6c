package docforge

import (
	"time"
)

// Document is the single source of truth for one report being edited:
// the canonical Markdown serialization plus the structural tree, with
// dirty-state bookkeeping. At any quiescent moment the two
// representations describe the same semantic content.
type Document struct {
	Markdown     string
	Tree         *Tree
	Dirty        bool
	LastSyncedAt time.Time
}

// NewDocument returns an empty document.
func NewDocument() *Document {
	return &Document{Tree: NewTree()}
}

// DocumentFromMarkdown builds a document from Markdown text.
func DocumentFromMarkdown(markdown string, codec MarkdownCodec) (*Document, error) {
	if codec == nil {
		return nil, ErrCodecMissing
	}
	tree, err := codec.Decode(markdown)
	if err != nil {
		return nil, err
	}
	return &Document{Markdown: markdown, Tree: tree}, nil
}

// DocumentFromTree builds a document from a structural tree, deriving the
// Markdown representation.
func DocumentFromTree(tree *Tree, codec MarkdownCodec) (*Document, error) {
	if codec == nil {
		return nil, ErrCodecMissing
	}
	markdown, err := codec.Encode(tree)
	if err != nil {
		return nil, err
	}
	return &Document{Markdown: markdown, Tree: tree}, nil
}
