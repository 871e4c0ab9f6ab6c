//go:build integration

package docforge

import (
	"bytes"
	"context"
	"testing"
	"time"
)

func assertValidPDF(t *testing.T, data []byte) {
	t.Helper()

	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		t.Errorf("data does not have PDF magic bytes, got prefix: %q", data[:min(10, len(data))])
	}
	if len(data) < 100 {
		t.Errorf("PDF data suspiciously small: %d bytes", len(data))
	}
}

// TestRodRasterizer_Integration exercises rasterization against a real
// browser. Rod downloads a managed Chromium on first run if none is found.
func TestRodRasterizer_Integration(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("full-page screenshot", func(t *testing.T) {
		t.Parallel()

		r := newRodRasterizer(defaultTimeout)
		defer r.Close()

		html := `<!DOCTYPE html>
<html>
<head><title>Test</title></head>
<body><h1>Hello, World!</h1><p>This is a test document.</p></body>
</html>`

		img, err := r.Rasterize(ctx, html, RasterOptions{
			ViewportWidthPx: 800,
			Scale:           2,
		})
		if err != nil {
			t.Fatalf("Rasterize() error = %v", err)
		}

		bounds := img.Bounds()
		if bounds.Dx() == 0 || bounds.Dy() == 0 {
			t.Errorf("empty raster: %v", bounds)
		}
	})

	t.Run("native PDF fallback mode", func(t *testing.T) {
		t.Parallel()

		r := newRodRasterizer(defaultTimeout)
		defer r.Close()

		html := `<!DOCTYPE html>
<html>
<head><title>Test</title></head>
<body><h1>Simple mode</h1></body>
</html>`

		data, err := r.NativePDF(ctx, html, DefaultExportOptions())
		if err != nil {
			t.Fatalf("NativePDF() error = %v", err)
		}
		assertValidPDF(t, data)
	})

	t.Run("cancelled context exits early", func(t *testing.T) {
		t.Parallel()

		r := newRodRasterizer(defaultTimeout)
		defer r.Close()

		cctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := r.Rasterize(cctx, "<p>never rendered</p>", RasterOptions{ViewportWidthPx: 800, Scale: 1})
		if err != context.Canceled {
			t.Errorf("error = %v, want context.Canceled", err)
		}
	})

	t.Run("expired deadline exits early", func(t *testing.T) {
		t.Parallel()

		r := newRodRasterizer(defaultTimeout)
		defer r.Close()

		dctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
		defer cancel()

		_, err := r.Rasterize(dctx, "<p>never rendered</p>", RasterOptions{ViewportWidthPx: 800, Scale: 1})
		if err != context.DeadlineExceeded {
			t.Errorf("error = %v, want context.DeadlineExceeded", err)
		}
	})
}

// TestExporter_Integration runs the full export pipeline through the public
// API with a real browser.
func TestExporter_Integration(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("markdown to paginated PDF", func(t *testing.T) {
		t.Parallel()

		e := NewExporter()
		defer e.Close()

		res, err := e.ExportMarkdownPDF(ctx, "# Hello\n\nWorld", DefaultExportOptions(), nil)
		if err != nil {
			t.Fatalf("ExportMarkdownPDF() error = %v", err)
		}

		assertValidPDF(t, res.Data)
		if res.PageCount < 1 {
			t.Errorf("PageCount = %d, want >= 1", res.PageCount)
		}
	})

	t.Run("landscape letter with custom bands", func(t *testing.T) {
		t.Parallel()

		e := NewExporter()
		defer e.Close()

		opts := DefaultExportOptions()
		opts.PageSize = PageSizeLetter
		opts.Orientation = OrientationLandscape
		opts.HeaderText = "Acme Corp"
		opts.FooterText = "Confidential"

		res, err := e.ExportMarkdownPDF(ctx, "# Report\n\nQuarterly numbers.", opts, nil)
		if err != nil {
			t.Fatalf("ExportMarkdownPDF() error = %v", err)
		}
		assertValidPDF(t, res.Data)
	})
}
