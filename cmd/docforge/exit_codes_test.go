package main

import (
	"errors"
	"fmt"
	"os"
	"testing"

	docforge "github.com/docforge/go-docforge"
	"github.com/docforge/go-docforge/internal/config"
)

// ---------------------------------------------------------------------------
// TestExitCodeFor - Error to exit code mapping
// ---------------------------------------------------------------------------

func TestExitCodeFor(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		err  error
		want int
	}{
		// Success
		{"nil error", nil, ExitSuccess},

		// Browser errors (exit 4)
		{"browser connect", docforge.ErrBrowserConnect, ExitBrowser},
		{"page create", docforge.ErrPageCreate, ExitBrowser},
		{"page load", docforge.ErrPageLoad, ExitBrowser},
		{"rasterize", docforge.ErrRasterize, ExitBrowser},
		{"wrapped browser connect", fmt.Errorf("failed: %w", docforge.ErrBrowserConnect), ExitBrowser},

		// I/O errors (exit 3)
		{"file not exist", os.ErrNotExist, ExitIO},
		{"permission denied", os.ErrPermission, ExitIO},
		{"read markdown", ErrReadMarkdown, ExitIO},
		{"write output", ErrWriteOutput, ExitIO},
		{"no input", ErrNoInput, ExitIO},
		{"wrapped file not exist", fmt.Errorf("reading: %w", os.ErrNotExist), ExitIO},

		// Usage/config/validation errors (exit 2)
		{"config not found", config.ErrConfigNotFound, ExitUsage},
		{"config parse", config.ErrConfigParse, ExitUsage},
		{"field too long", config.ErrFieldTooLong, ExitUsage},
		{"empty document", docforge.ErrEmptyDocument, ExitUsage},
		{"invalid page size", docforge.ErrInvalidPageSize, ExitUsage},
		{"invalid orientation", docforge.ErrInvalidOrientation, ExitUsage},
		{"invalid margin", docforge.ErrInvalidMargin, ExitUsage},
		{"invalid scale", docforge.ErrInvalidScale, ExitUsage},
		{"content too large", docforge.ErrContentTooLarge, ExitUsage},
		{"too many images", docforge.ErrTooManyImages, ExitUsage},
		{"too many tables", docforge.ErrTooManyTables, ExitUsage},
		{"invalid format", ErrInvalidFormat, ExitUsage},
		{"invalid extension", ErrInvalidExtension, ExitUsage},
		{"invalid worker count", ErrInvalidWorkerCount, ExitUsage},
		{"wrapped config parse", fmt.Errorf("loading: %w", config.ErrConfigParse), ExitUsage},

		// General errors (exit 1)
		{"unknown error", errors.New("something unexpected"), ExitGeneral},
		{"wrapped unknown", fmt.Errorf("context: %w", errors.New("unknown")), ExitGeneral},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := exitCodeFor(tt.err)
			if got != tt.want {
				t.Errorf("exitCodeFor(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// TestExitCodeConstants - Unix convention compliance
// ---------------------------------------------------------------------------

func TestExitCodeConstants(t *testing.T) {
	t.Parallel()
	if ExitSuccess != 0 {
		t.Errorf("ExitSuccess = %d, want 0", ExitSuccess)
	}
	if ExitGeneral != 1 {
		t.Errorf("ExitGeneral = %d, want 1", ExitGeneral)
	}
	if ExitUsage != 2 {
		t.Errorf("ExitUsage = %d, want 2", ExitUsage)
	}

	// Custom codes stay below 126 (Unix convention).
	if ExitIO >= 126 {
		t.Errorf("ExitIO = %d, should be < 126", ExitIO)
	}
	if ExitBrowser >= 126 {
		t.Errorf("ExitBrowser = %d, should be < 126", ExitBrowser)
	}
}
