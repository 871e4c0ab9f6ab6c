package main

import (
	"errors"
	"os"

	docforge "github.com/docforge/go-docforge"
	"github.com/docforge/go-docforge/internal/config"
)

// Exit codes for docforge CLI.
// Follows Unix conventions: 0=success, 1=general, 2=usage, and custom codes < 126.
const (
	ExitSuccess = 0 // Successful export
	ExitGeneral = 1 // General/unexpected error
	ExitUsage   = 2 // Invalid flags, config, or validation
	ExitIO      = 3 // File not found, permission denied
	ExitBrowser = 4 // Browser/Chrome errors
)

// exitCodeFor returns the appropriate exit code for an error.
// It uses errors.Is to check wrapped errors, so callers must use fmt.Errorf("%w", err).
func exitCodeFor(err error) int {
	if err == nil {
		return ExitSuccess
	}

	// Browser errors (exit 4)
	if errors.Is(err, docforge.ErrBrowserConnect) ||
		errors.Is(err, docforge.ErrPageCreate) ||
		errors.Is(err, docforge.ErrPageLoad) ||
		errors.Is(err, docforge.ErrRasterize) {
		return ExitBrowser
	}

	// I/O errors (exit 3)
	if errors.Is(err, os.ErrNotExist) ||
		errors.Is(err, os.ErrPermission) ||
		errors.Is(err, ErrReadMarkdown) ||
		errors.Is(err, ErrWriteOutput) ||
		errors.Is(err, ErrNoInput) {
		return ExitIO
	}

	// Usage/config/validation errors (exit 2)
	if errors.Is(err, config.ErrConfigNotFound) ||
		errors.Is(err, config.ErrConfigParse) ||
		errors.Is(err, config.ErrFieldTooLong) ||
		errors.Is(err, docforge.ErrEmptyDocument) ||
		errors.Is(err, docforge.ErrInvalidPageSize) ||
		errors.Is(err, docforge.ErrInvalidOrientation) ||
		errors.Is(err, docforge.ErrInvalidMargin) ||
		errors.Is(err, docforge.ErrInvalidScale) ||
		errors.Is(err, docforge.ErrContentTooLarge) ||
		errors.Is(err, docforge.ErrTooManyImages) ||
		errors.Is(err, docforge.ErrTooManyTables) ||
		errors.Is(err, ErrInvalidFormat) ||
		errors.Is(err, ErrInvalidExtension) ||
		errors.Is(err, ErrInvalidWorkerCount) {
		return ExitUsage
	}

	return ExitGeneral
}
