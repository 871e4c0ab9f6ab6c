package docforge

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg" // screenshot decoders
	_ "image/png"
	"io"
	"os"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/docforge/go-docforge/internal/fileutil"
)

// RasterOptions controls one rasterization pass.
type RasterOptions struct {
	ViewportWidthPx  int
	Scale            float64
	Quality          float64 // 0..1; below 1 captures lossy JPEG at that quality
	ImageLoadTimeout time.Duration
}

// Rasterizer renders an HTML document into a single tall raster image,
// and can also produce a PDF directly through the browser's print engine
// (the "simple mode" used as the last rung of the fallback ladder).
type Rasterizer interface {
	Rasterize(ctx context.Context, htmlContent string, opts RasterOptions) (image.Image, error)
	NativePDF(ctx context.Context, htmlContent string, opts ExportOptions) ([]byte, error)
	Close() error
}

// Compile-time interface check.
var _ Rasterizer = (*rodRasterizer)(nil)

// rodRasterizer renders through headless Chrome via go-rod.
// Rod downloads a managed Chromium on first run if none is found.
type rodRasterizer struct {
	loader  *lazyLoader
	timeout time.Duration
}

// newRodRasterizer creates a rasterizer with the given per-render timeout.
// The browser is not launched until the first render.
func newRodRasterizer(timeout time.Duration) *rodRasterizer {
	return &rodRasterizer{loader: newLazyLoader(), timeout: timeout}
}

// browser lazily launches and connects to Chrome. The connection attempt
// is made once and memoized; concurrent renders share the in-flight
// launch.
func (r *rodRasterizer) browser() (*rod.Browser, error) {
	h, err := r.loader.Load("browser", func() (any, error) {
		l := launcher.New()

		// Use a pre-installed browser if specified (Docker/containerized
		// environments).
		if bin := os.Getenv("ROD_BROWSER_BIN"); bin != "" {
			l = l.Bin(bin)
		}

		// NoSandbox required for CI and containerized environments.
		if os.Getenv("CI") == "true" || os.Getenv("ROD_NO_SANDBOX") == "1" || os.Getenv("ROD_BROWSER_BIN") != "" {
			l = l.NoSandbox(true)
		}

		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBrowserConnect, err)
		}

		b := rod.New().ControlURL(u)
		if err := b.Connect(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBrowserConnect, err)
		}
		return b, nil
	})
	if err != nil {
		return nil, err
	}
	return h.(*rod.Browser), nil
}

// Close releases browser resources.
func (r *rodRasterizer) Close() error {
	if !r.loader.Loaded("browser") {
		return nil
	}
	b, err := r.browser()
	if err != nil {
		return nil // failed loads hold no resources
	}
	r.loader.Forget("browser")
	return b.Close()
}

// Rasterize renders htmlContent and captures a full-page screenshot as a
// single tall image at the requested device scale.
func (r *rodRasterizer) Rasterize(ctx context.Context, htmlContent string, opts RasterOptions) (image.Image, error) {
	page, cleanup, err := r.openPage(ctx, htmlContent)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	err = proto.EmulationSetDeviceMetricsOverride{
		Width:             opts.ViewportWidthPx,
		Height:            1080,
		DeviceScaleFactor: opts.Scale,
		Mobile:            false,
	}.Call(page)
	if err != nil {
		return nil, fmt.Errorf("%w: setting viewport: %v", ErrRasterize, err)
	}

	r.waitForImages(page, opts.ImageLoadTimeout)

	shot, err := page.Screenshot(true, screenshotRequest(opts.Quality))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRasterize, err)
	}

	img, _, err := image.Decode(bytes.NewReader(shot))
	if err != nil {
		return nil, fmt.Errorf("%w: decoding screenshot: %v", ErrRasterize, err)
	}
	return img, nil
}

// screenshotRequest picks the capture encoding: a quality below 1 trades
// fidelity for memory with a lossy JPEG; full quality keeps lossless PNG.
func screenshotRequest(quality float64) *proto.PageCaptureScreenshot {
	req := &proto.PageCaptureScreenshot{Format: proto.PageCaptureScreenshotFormatPng}
	if quality > 0 && quality < 1 {
		q := int(quality * 100)
		req.Format = proto.PageCaptureScreenshotFormatJpeg
		req.Quality = &q
	}
	return req
}

// NativePDF renders htmlContent through Chrome's print engine. Used as
// the simple-mode fallback when rasterized pagination keeps failing.
func (r *rodRasterizer) NativePDF(ctx context.Context, htmlContent string, opts ExportOptions) ([]byte, error) {
	page, cleanup, err := r.openPage(ctx, htmlContent)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	w, h := opts.pageSize()
	pdfOpts := &proto.PagePrintToPDF{
		PaperWidth:      floatPtr(mmToInches(w)),
		PaperHeight:     floatPtr(mmToInches(h)),
		MarginTop:       floatPtr(mmToInches(opts.Margins.Top)),
		MarginBottom:    floatPtr(mmToInches(opts.Margins.Bottom)),
		MarginLeft:      floatPtr(mmToInches(opts.Margins.Left)),
		MarginRight:     floatPtr(mmToInches(opts.Margins.Right)),
		Landscape:       strings.ToLower(opts.Orientation) == OrientationLandscape,
		PrintBackground: true,
	}

	reader, err := page.PDF(pdfOpts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPDFCompose, err)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("%w: reading PDF stream: %v", ErrPDFCompose, err)
	}
	return data, nil
}

// openPage writes the HTML to a temp file and opens it, honoring the
// context deadline or the rasterizer's own timeout.
func (r *rodRasterizer) openPage(ctx context.Context, htmlContent string) (*rod.Page, func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	b, err := r.browser()
	if err != nil {
		return nil, nil, err
	}

	tmpPath, removeTmp, err := fileutil.WriteTempFile(htmlContent, "html")
	if err != nil {
		return nil, nil, err
	}

	page, err := b.Page(proto.TargetCreateTarget{URL: "file://" + tmpPath})
	if err != nil {
		removeTmp()
		return nil, nil, fmt.Errorf("%w: %v", ErrPageCreate, err)
	}
	cleanup := func() {
		_ = page.Close()
		removeTmp()
	}

	timeout := r.timeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
		if timeout <= 0 {
			cleanup()
			return nil, nil, context.DeadlineExceeded
		}
	}

	if err := page.Timeout(timeout).WaitLoad(); err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("%w: %v", ErrPageLoad, err)
	}
	return page, cleanup, nil
}

// waitForImages polls until every embedded image has finished loading or
// the bound expires. Images still loading at the deadline are skipped so
// a broken image can never hang an export.
func (r *rodRasterizer) waitForImages(page *rod.Page, bound time.Duration) {
	if bound <= 0 {
		bound = DefaultImageLoadTimeout
	}
	deadline := time.Now().Add(bound)
	for time.Now().Before(deadline) {
		res, err := page.Eval(`() => Array.from(document.images).every(i => i.complete)`)
		if err != nil || res.Value.Bool() {
			return
		}
		time.Sleep(100 * time.Millisecond)
	}
}

// floatPtr returns a pointer to a float64 value.
func floatPtr(v float64) *float64 {
	return &v
}

// mmToInches converts millimeters to inches for the print protocol.
func mmToInches(mm float64) float64 {
	return mm / 25.4
}
