package docforge

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Sentinel errors for library operations.
var (
	ErrEmptyDocument  = errors.New("document content cannot be empty")
	ErrExportBusy     = errors.New("an export is already in progress")
	ErrCodecFailure   = errors.New("markdown conversion failed")
	ErrCodecMissing   = errors.New("no markdown codec configured")
	ErrBrowserConnect = errors.New("failed to connect to browser")
	ErrPageCreate     = errors.New("failed to create browser page")
	ErrPageLoad       = errors.New("failed to load page")
	ErrRasterize      = errors.New("content rasterization failed")
	ErrPDFCompose     = errors.New("PDF composition failed")
	ErrWordCompose    = errors.New("Word composition failed")

	// Page settings validation errors.
	ErrInvalidPageSize    = errors.New("invalid page size")
	ErrInvalidOrientation = errors.New("invalid orientation")
	ErrInvalidMargin      = errors.New("invalid margin")
	ErrInvalidScale       = errors.New("invalid scale")

	// Editor validation errors.
	ErrNotAnImage    = errors.New("payload is not an image")
	ErrImageTooLarge = errors.New("image exceeds maximum size")
	ErrInvalidTable  = errors.New("invalid table dimensions")

	// Pre-export validation errors.
	ErrContentTooLarge    = errors.New("content exceeds maximum size")
	ErrTooManyImages      = errors.New("too many images")
	ErrTooManyTables      = errors.New("too many tables")
	ErrUnsupportedElement = errors.New("unsupported element")
)

// ErrorCategory classifies export failures for messaging and retry decisions.
type ErrorCategory string

// Error categories. Validation errors are reported as structured results and
// never retried; network, memory, and timeout errors are transient.
const (
	CategoryValidation      ErrorCategory = "validation"
	CategoryLibraryNotFound ErrorCategory = "library-not-found"
	CategoryNetwork         ErrorCategory = "network"
	CategoryMemory          ErrorCategory = "memory"
	CategoryContentTooLarge ErrorCategory = "content-too-large"
	CategoryUnsupported     ErrorCategory = "unsupported-feature"
	CategoryCompatibility   ErrorCategory = "browser-compatibility"
	CategoryTimeout         ErrorCategory = "timeout"
	CategoryUnknown         ErrorCategory = "unknown"
)

// categoryInfo carries the fixed user-facing message and retry policy
// for one category.
type categoryInfo struct {
	message   string
	retryable bool
}

var categoryTable = map[ErrorCategory]categoryInfo{
	CategoryValidation:      {"The document contains content that cannot be exported. Fix the reported issues and try again.", false},
	CategoryLibraryNotFound: {"A required export component is unavailable. Reinstall or check your environment.", false},
	CategoryNetwork:         {"A network problem interrupted the export. It will be retried automatically.", true},
	CategoryMemory:          {"The system ran low on memory during export. It will be retried automatically.", true},
	CategoryContentTooLarge: {"The document is too large to export. Split it into smaller documents.", false},
	CategoryUnsupported:     {"The document uses a feature this export format does not support.", false},
	CategoryCompatibility:   {"The browser environment does not support this export.", false},
	CategoryTimeout:         {"The export timed out. It will be retried automatically.", true},
	CategoryUnknown:         {"Something went wrong during export. Contact support with the reference ID.", false},
}

// Retryable reports whether failures in this category should be retried.
func (c ErrorCategory) Retryable() bool {
	return categoryTable[c].retryable
}

// UserMessage returns the fixed, non-technical message for this category.
func (c ErrorCategory) UserMessage() string {
	info, ok := categoryTable[c]
	if !ok {
		return categoryTable[CategoryUnknown].message
	}
	return info.message
}

// ExportError wraps a failure from the export pipeline with its category
// and a correlation ID for support escalation.
type ExportError struct {
	Category      ErrorCategory
	CorrelationID string
	Err           error
}

// Error returns the full technical detail, intended for logs.
func (e *ExportError) Error() string {
	return fmt.Sprintf("export failed [%s, ref %s]: %v", e.Category, e.CorrelationID, e.Err)
}

// Unwrap returns the original cause.
func (e *ExportError) Unwrap() error { return e.Err }

// UserMessage returns the category's fixed user-facing message.
func (e *ExportError) UserMessage() string { return e.Category.UserMessage() }

// Retryable reports whether the wrapped failure is transient.
func (e *ExportError) Retryable() bool { return e.Category.Retryable() }

// newExportError categorizes err and attaches a fresh correlation ID.
// If err is already an ExportError it is returned unchanged so the
// original correlation ID survives retries and fallbacks.
func newExportError(err error) *ExportError {
	var ee *ExportError
	if errors.As(err, &ee) {
		return ee
	}
	return &ExportError{
		Category:      Categorize(err),
		CorrelationID: uuid.NewString(),
		Err:           err,
	}
}

// Categorize maps an error to its category using errors.Is over the
// package sentinels. Context and I/O timeouts map to CategoryTimeout.
func Categorize(err error) ErrorCategory {
	switch {
	case err == nil:
		return CategoryUnknown
	case errors.Is(err, ErrContentTooLarge):
		return CategoryContentTooLarge
	case errors.Is(err, ErrTooManyImages),
		errors.Is(err, ErrTooManyTables),
		errors.Is(err, ErrNotAnImage),
		errors.Is(err, ErrImageTooLarge),
		errors.Is(err, ErrInvalidTable),
		errors.Is(err, ErrEmptyDocument),
		errors.Is(err, ErrInvalidPageSize),
		errors.Is(err, ErrInvalidOrientation),
		errors.Is(err, ErrInvalidMargin),
		errors.Is(err, ErrInvalidScale):
		return CategoryValidation
	case errors.Is(err, ErrUnsupportedElement):
		return CategoryUnsupported
	case errors.Is(err, ErrCodecMissing), errors.Is(err, ErrBrowserConnect):
		return CategoryLibraryNotFound
	case errors.Is(err, ErrPageCreate), errors.Is(err, ErrPageLoad):
		return CategoryCompatibility
	case isTimeout(err):
		return CategoryTimeout
	case errors.Is(err, ErrRasterize), errors.Is(err, ErrPDFCompose), errors.Is(err, ErrWordCompose):
		return CategoryUnknown
	default:
		return CategoryUnknown
	}
}

// isTimeout reports whether err is a deadline or net-style timeout.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var t interface{ Timeout() bool }
	if errors.As(err, &t) && t.Timeout() {
		return true
	}
	return false
}
