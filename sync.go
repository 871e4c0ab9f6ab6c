package docforge

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	clog "github.com/charmbracelet/log"
)

// DefaultDebounce is the quiet period after the last edit before an
// auto-save flush.
const DefaultDebounce = 5 * time.Second

// flushTimeout bounds one auto-save call to the collaborator.
const flushTimeout = 10 * time.Second

// SyncStatus describes the controller's reconciliation state.
type SyncStatus string

// Controller states. StatusError means the last Markdown derivation
// failed and the plain-text fallback was persisted; the structural edits
// themselves are never lost.
const (
	StatusSynced  SyncStatus = "synced"
	StatusPending SyncStatus = "pending"
	StatusError   SyncStatus = "error"
)

// SavePayload is handed to the auto-save collaborator on each debounced
// flush. Timestamp is ISO 8601 (RFC 3339).
type SavePayload struct {
	Markdown  string
	HTML      string
	Timestamp string
}

// AutoSaver persists a debounced document snapshot. A returned error is
// logged and the document stays dirty; it is never rolled back.
type AutoSaver interface {
	Save(ctx context.Context, p SavePayload) error
}

// SyncController owns one Document's authoritative state: it feeds edits
// from the Editor into the Markdown codec, keeps the two representations
// consistent, and schedules debounced persistence. No two controllers may
// hold the same document.
type SyncController struct {
	mu     sync.Mutex
	editor *Editor
	codec  MarkdownCodec
	saver  AutoSaver
	log    *clog.Logger

	debounce time.Duration
	timer    *time.Timer
	now      func() time.Time

	markdown     string
	stale        bool // markdown needs recomputation from the tree
	dirty        bool
	lastSyncedAt time.Time
	status       SyncStatus
	syncErr      error
	closed       bool
}

// SyncOption configures a SyncController.
type SyncOption func(*SyncController)

// WithDebounce overrides the 5 s auto-save debounce interval.
// Panics if d <= 0 (programmer error).
func WithDebounce(d time.Duration) SyncOption {
	if d <= 0 {
		panic("docforge: WithDebounce duration must be positive")
	}
	return func(c *SyncController) {
		c.debounce = d
	}
}

// WithSyncLogger sets the structured logger for auto-save outcomes.
func WithSyncLogger(l *clog.Logger) SyncOption {
	return func(c *SyncController) {
		c.log = l
	}
}

// NewSyncController attaches a controller to an editor. The controller
// subscribes to content-changed events; every edit marks the document
// dirty and restarts the trailing-edge debounce timer, so only the final
// state in a burst is persisted.
func NewSyncController(editor *Editor, codec MarkdownCodec, saver AutoSaver, opts ...SyncOption) *SyncController {
	c := &SyncController{
		editor:   editor,
		codec:    codec,
		saver:    saver,
		debounce: DefaultDebounce,
		now:      time.Now,
		status:   StatusSynced,
		log:      clog.New(io.Discard),
	}
	for _, opt := range opts {
		opt(c)
	}
	editor.OnChange(c.onChange)
	return c
}

// onChange runs synchronously on every editor edit.
func (c *SyncController) onChange(ChangeEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.stale = true
	c.dirty = true
	c.status = StatusPending
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = time.AfterFunc(c.debounce, func() {
		if err := c.Flush(context.Background()); err != nil {
			c.log.Error("auto-save failed", "err", err)
		}
	})
}

// Content returns the freshest representation in the requested format.
// Markdown is recomputed lazily on read when the tree has changed since
// the last derivation, avoiding recomputation storms during fast typing.
func (c *SyncController) Content(format ContentFormat) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch format {
	case FormatMarkdown:
		return c.freshMarkdownLocked(), nil
	case FormatHTML:
		return c.editor.Tree().HTML()
	default:
		return "", fmt.Errorf("unknown content format %q", format)
	}
}

// SetContent installs new content, replacing the current document state.
// A freshly loaded document is not considered unsaved: either path resets
// the dirty flag.
func (c *SyncController) SetContent(content string, format ContentFormat) error {
	if format == FormatAuto || format == "" {
		format = DetectFormat(content)
	}

	var tree *Tree
	var markdown string
	var err error
	switch format {
	case FormatMarkdown:
		markdown = content
		tree, err = c.codec.Decode(content)
	case FormatHTML:
		tree, err = ParseTree(content)
		if err == nil {
			markdown, err = c.codec.Encode(tree)
		}
	default:
		return fmt.Errorf("unknown content format %q", format)
	}
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.editor.replaceTree(tree)
	c.markdown = markdown
	c.stale = false
	c.dirty = false
	c.status = StatusSynced
	c.syncErr = nil
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	return nil
}

// Snapshot captures the document for export. The returned document shares
// no tree nodes with the live editor, so an export never observes
// concurrent edits.
func (c *SyncController) Snapshot() (*Document, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	tree, err := c.editor.Tree().Clone()
	if err != nil {
		return nil, err
	}
	return &Document{
		Markdown:     c.freshMarkdownLocked(),
		Tree:         tree,
		Dirty:        c.dirty,
		LastSyncedAt: c.lastSyncedAt,
	}, nil
}

// Flush persists the current state through the auto-saver immediately.
// The dirty flag is cleared only on success.
func (c *SyncController) Flush(ctx context.Context) error {
	c.mu.Lock()
	if c.saver == nil {
		c.mu.Unlock()
		return nil
	}
	payload := SavePayload{
		Markdown:  c.freshMarkdownLocked(),
		Timestamp: c.now().UTC().Format(time.RFC3339),
	}
	htmlContent, err := c.editor.Tree().HTML()
	if err == nil {
		payload.HTML = htmlContent
	}
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, flushTimeout)
	defer cancel()
	if err := c.saver.Save(ctx, payload); err != nil {
		return fmt.Errorf("auto-save: %w", err)
	}

	c.mu.Lock()
	c.dirty = false
	c.lastSyncedAt = c.now()
	if c.status == StatusPending {
		c.status = StatusSynced
	}
	c.mu.Unlock()
	c.log.Debug("auto-save flushed", "at", payload.Timestamp)
	return nil
}

// IsDirty reports whether there are edits not yet persisted.
func (c *SyncController) IsDirty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dirty
}

// Status returns the reconciliation state.
func (c *SyncController) Status() SyncStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// LastSyncError returns the most recent Markdown derivation failure, or
// nil.
func (c *SyncController) LastSyncError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.syncErr
}

// LastSyncedAt returns the time of the last successful flush.
func (c *SyncController) LastSyncedAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastSyncedAt
}

// Close stops the debounce timer and performs a final flush when edits
// are pending.
func (c *SyncController) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	dirty := c.dirty
	c.mu.Unlock()

	if dirty {
		return c.Flush(context.Background())
	}
	return nil
}

// freshMarkdownLocked returns up-to-date Markdown, recomputing from the
// tree when stale. A derivation failure falls back to the plain-text
// projection and records a sync error; the structural edits are kept.
// Callers must hold c.mu.
func (c *SyncController) freshMarkdownLocked() string {
	if !c.stale {
		return c.markdown
	}
	md, err := c.codec.Encode(c.editor.Tree())
	if err != nil {
		c.syncErr = err
		c.status = StatusError
		c.markdown = c.editor.Tree().PlainText()
	} else {
		c.syncErr = nil
		c.markdown = md
		if c.status == StatusError {
			c.status = StatusPending
		}
	}
	c.stale = false
	return c.markdown
}
