package docforge

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/google/uuid"
	"golang.org/x/net/html"

	clog "github.com/charmbracelet/log"
)

// ProgressFunc receives progress updates during long exports. May be nil.
type ProgressFunc func(ChunkProgress)

// Exporter turns a document tree into a paginated PDF or Word file. It
// owns a content cache and a memory monitor; large documents are
// processed in chunks sized per job. One Exporter handles one export job
// at a time.
//
// The zero value is not usable; construct with NewExporter. An Exporter
// is safe for concurrent use: concurrent export calls beyond the first
// fail fast with ErrExportBusy.
type Exporter struct {
	cfg       exporterConfig
	codec     MarkdownCodec
	raster    Rasterizer
	retry     RetryPolicy
	validator *Validator
	cache     *ContentCache
	memory    *MemoryMonitor
	logger    *clog.Logger

	mu        sync.Mutex
	exporting bool
	state     ExportState
}

// NewExporter creates an exporter with the default browser-backed
// rasterizer, codec, validator, and retry policy. The browser is not
// launched until the first export. Options override individual parts.
func NewExporter(opts ...Option) *Exporter {
	e := &Exporter{
		cfg:       exporterConfig{timeout: defaultTimeout},
		codec:     NewMarkdownCodec(),
		retry:     DefaultRetryPolicy(),
		validator: NewValidator(),
		cache:     NewContentCache(DefaultCacheTTL, DefaultCacheMaxEntries),
		memory:    NewMemoryMonitor(DefaultMemoryInterval, DefaultMemoryThreshold),
		logger:    clog.New(io.Discard),
		state:     StateIdle,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.raster == nil {
		e.raster = newRodRasterizer(e.cfg.timeout)
	}
	e.memory.Watch(e.cache)
	return e
}

// SetLogger installs a structured logger for pipeline diagnostics.
func (e *Exporter) SetLogger(l *clog.Logger) {
	if l != nil {
		e.logger = l
	}
}

// State returns the current pipeline state.
func (e *Exporter) State() ExportState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Cache exposes the content cache for observability and manual expiry.
func (e *Exporter) Cache() *ContentCache { return e.cache }

// Memory exposes the memory monitor so callers can start background
// sampling or force a release when the host is backgrounded.
func (e *Exporter) Memory() *MemoryMonitor { return e.memory }

// Close releases the rasterizer's browser resources.
func (e *Exporter) Close() error {
	return e.raster.Close()
}

// setState updates the pipeline state under the lock.
func (e *Exporter) setState(s ExportState) {
	e.mu.Lock()
	e.state = s
	e.mu.Unlock()
}

// acquire claims the single export slot or fails with ErrExportBusy.
func (e *Exporter) acquire() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.exporting {
		return fmt.Errorf("%w: another export is in progress", ErrExportBusy)
	}
	e.exporting = true
	return nil
}

// release frees the export slot. Always runs, success or failure, so a
// failed job can never wedge the exporter.
func (e *Exporter) release(err *error) {
	e.mu.Lock()
	e.exporting = false
	if *err != nil {
		e.state = StateFailed
	} else {
		e.state = StateSaved
	}
	e.mu.Unlock()
}

// ExportPDF runs the full pipeline over the document tree: validate,
// process (chunked for large documents), render through the headless
// browser, slice into pages, and compose the PDF. Results are cached by
// a content+options fingerprint; a second export of unchanged content is
// served from memory.
func (e *Exporter) ExportPDF(ctx context.Context, tree *Tree, opts ExportOptions, progress ProgressFunc) (res *ExportResult, err error) {
	if err := e.acquire(); err != nil {
		return nil, err
	}
	defer e.release(&err)

	jobID := uuid.NewString()
	opts = opts.normalized()
	log := e.logger.With("job", jobID)

	// Validation stage.
	e.setState(StateValidating)
	if err := opts.Validate(); err != nil {
		return nil, newExportError(err)
	}
	if tree == nil || tree.IsEmpty() {
		return nil, newExportError(ErrEmptyDocument)
	}
	if vErr := e.validator.Validate(tree).Err(); vErr != nil {
		return nil, newExportError(vErr)
	}

	// Cache stage. The cache and monitor knobs are per-job: the last
	// caller's limits win until the next job replaces them.
	e.setState(StateCaching)
	e.cache.Configure(opts.CacheTTL, opts.CacheMaxEntries)
	e.memory.SetThreshold(opts.MemoryThreshold)
	serialized, err := tree.HTML()
	if err != nil {
		return nil, newExportError(err)
	}
	key := Fingerprint(serialized, "pdf", opts.renderFingerprintFields())
	if cached, ok := e.cache.Get(key); ok {
		log.Debug("export served from cache", "key", key)
		r := cached.(*ExportResult)
		return &ExportResult{
			JobID:     jobID,
			Data:      r.Data,
			FileName:  r.FileName,
			PageCount: r.PageCount,
			Attempts:  0,
			FromCache: true,
		}, nil
	}

	// Processing stage: strip interactive elements on a working copy and
	// assemble the export fragment, chunked for large documents.
	e.setState(StateProcessing)
	work, err := tree.Clone()
	if err != nil {
		return nil, newExportError(err)
	}
	work.StripInteractive()

	fragment, err := e.assembleFragment(ctx, work, opts, progress)
	if err != nil {
		return nil, newExportError(err)
	}

	// Render + paginate, with retry and the fallback ladder.
	data, pageCount, attempts, err := e.renderWithFallback(ctx, work, fragment, opts, progress, log)
	if err != nil {
		return nil, newExportError(err)
	}

	fileName := exportFileName(opts, "pdf")
	result := &ExportResult{
		JobID:     jobID,
		Data:      data,
		FileName:  fileName,
		PageCount: pageCount,
		Attempts:  attempts,
	}
	e.cache.Put(key, result, int64(len(data)))
	log.Info("export complete", "pages", pageCount, "bytes", len(data), "attempts", attempts)
	return result, nil
}

// ExportMarkdownPDF decodes Markdown source through the configured codec
// and exports it. Convenience for callers that hold Markdown rather than
// a live document tree.
func (e *Exporter) ExportMarkdownPDF(ctx context.Context, markdown string, opts ExportOptions, progress ProgressFunc) (*ExportResult, error) {
	if e.codec == nil {
		return nil, newExportError(ErrCodecMissing)
	}
	tree, err := e.codec.Decode(markdown)
	if err != nil {
		return nil, newExportError(err)
	}
	return e.ExportPDF(ctx, tree, opts, progress)
}

// assembleFragment serializes the tree's block elements into one HTML
// fragment. Documents above the chunking threshold are serialized in
// ordered chunks with cooperative yields and progress reporting. The
// chunk size, yield delay, and threshold come from the job's options.
func (e *Exporter) assembleFragment(ctx context.Context, t *Tree, opts ExportOptions, progress ProgressFunc) (string, error) {
	blocks := t.Blocks()
	if len(blocks) == 0 {
		// Inline-only content renders as a single implicit block.
		return t.HTML()
	}

	items := make([]any, len(blocks))
	for i, b := range blocks {
		items[i] = b
	}

	var cb func(ChunkProgress)
	if progress != nil {
		cb = func(p ChunkProgress) { progress(p) }
	}

	chunker := NewChunkedProcessor(opts.ChunkSize, opts.ChunkDelay, opts.LargeDocThreshold)
	combined, err := chunker.Process(ctx, items, func(ctx context.Context, chunk []any) (any, error) {
		parts := make([]any, 0, len(chunk))
		for _, item := range chunk {
			var buf bytes.Buffer
			if err := html.Render(&buf, item.(*html.Node)); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrCodecFailure, err)
			}
			parts = append(parts, buf.String())
		}
		return parts, nil
	}, cb)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for _, part := range combined.([]any) {
		sb.WriteString(part.(string))
	}
	return sb.String(), nil
}

// fallbackSegments is how many pieces the segmented-render rung splits a
// document into.
const fallbackSegments = 4

// renderWithFallback renders the fragment through the retry policy, then
// walks the fallback ladder on persistent failure: reduced raster scale,
// rendering in smaller segments, stripping the heaviest elements, and
// finally the browser's native print engine.
func (e *Exporter) renderWithFallback(ctx context.Context, work *Tree, fragment string, opts ExportOptions, progress ProgressFunc, log *clog.Logger) (data []byte, pageCount, attempts int, err error) {
	data, pageCount, attempts, err = e.renderPaginated(ctx, fragment, opts)
	if err == nil || !IsRetryable(err) {
		return data, pageCount, attempts, err
	}

	// First rung: halve the raster scale. Memory and size failures are
	// usually resolution-bound.
	if opts.Scale > MinScale*2 {
		opts.Scale /= 2
		log.Warn("retrying at reduced scale", "scale", opts.Scale, "cause", err)
		d, pc, a, rerr := e.renderPaginated(ctx, fragment, opts)
		attempts += a
		if rerr == nil {
			return d, pc, attempts, nil
		}
		err = rerr
	}
	if !IsRetryable(err) {
		return nil, 0, attempts, err
	}

	// Second rung: render the document in smaller pieces so each
	// screenshot stays small, then stitch the rasters back together.
	if blocks := work.Blocks(); len(blocks) > 1 {
		log.Warn("retrying in smaller segments", "cause", err)
		d, pc, a, rerr := e.renderSegmented(ctx, blocks, opts)
		attempts += a
		if rerr == nil {
			return d, pc, attempts, nil
		}
		err = rerr
	}
	if !IsRetryable(err) {
		return nil, 0, attempts, err
	}

	// Third rung: strip the heaviest elements. Embedded images dominate
	// raster memory, so a document that still fails loses them.
	if work.StripTag("img") > 0 {
		log.Warn("retrying without embedded images", "cause", err)
		stripped, serr := e.assembleFragment(ctx, work, opts, progress)
		if serr == nil {
			fragment = stripped
			d, pc, a, rerr := e.renderPaginated(ctx, fragment, opts)
			attempts += a
			if rerr == nil {
				return d, pc, attempts, nil
			}
			err = rerr
		}
	}
	if !IsRetryable(err) {
		return nil, 0, attempts, err
	}

	// Last rung: the browser's own print engine. Loses the drawn header
	// and footer bands but always produces a document.
	log.Warn("falling back to simple export mode", "cause", err)
	htmlDoc := buildExportHTML(fragment, opts)
	d, nerr := e.raster.NativePDF(ctx, htmlDoc, opts)
	attempts++
	if nerr != nil {
		return nil, 0, attempts, err // report the richer pipeline error
	}
	return d, 0, attempts, nil
}

// renderSegmented rasterizes the blocks in several smaller pieces and
// stacks the pieces into the single tall raster composePDF expects.
func (e *Exporter) renderSegmented(ctx context.Context, blocks []*html.Node, opts ExportOptions) (data []byte, pageCount, attempts int, err error) {
	images := make([]image.Image, 0, fallbackSegments)
	for _, seg := range segmentBlocks(blocks, fallbackSegments) {
		fragment, serr := renderBlocksHTML(seg)
		if serr != nil {
			return nil, 0, attempts, serr
		}
		htmlDoc := buildExportHTML(fragment, opts)

		a, rerr := e.retry.Do(ctx, func(ctx context.Context) error {
			e.setState(StateRendering)
			img, riErr := e.raster.Rasterize(ctx, htmlDoc, rasterOptionsFor(opts))
			if riErr != nil {
				return riErr
			}
			images = append(images, img)
			return nil
		})
		attempts += a
		if rerr != nil {
			return nil, 0, attempts, rerr
		}
	}

	e.setState(StatePaginating)
	data, pageCount, err = e.composePDF(ctx, stackImages(images), opts)
	return data, pageCount, attempts, err
}

// segmentBlocks splits blocks into at most n contiguous groups.
func segmentBlocks(blocks []*html.Node, n int) [][]*html.Node {
	if n > len(blocks) {
		n = len(blocks)
	}
	size := (len(blocks) + n - 1) / n
	var segs [][]*html.Node
	for start := 0; start < len(blocks); start += size {
		segs = append(segs, blocks[start:min(start+size, len(blocks))])
	}
	return segs
}

// renderBlocksHTML serializes a group of block elements to one fragment.
func renderBlocksHTML(blocks []*html.Node) (string, error) {
	var sb strings.Builder
	for _, b := range blocks {
		if err := html.Render(&sb, b); err != nil {
			return "", fmt.Errorf("%w: %v", ErrCodecFailure, err)
		}
	}
	return sb.String(), nil
}

// stackImages draws the segment rasters top to bottom into one image.
func stackImages(images []image.Image) image.Image {
	width, height := 0, 0
	for _, img := range images {
		b := img.Bounds()
		if b.Dx() > width {
			width = b.Dx()
		}
		height += b.Dy()
	}
	out := image.NewRGBA(image.Rect(0, 0, width, height))
	y := 0
	for _, img := range images {
		b := img.Bounds()
		draw.Draw(out, image.Rect(0, y, b.Dx(), y+b.Dy()), img, b.Min, draw.Src)
		y += b.Dy()
	}
	return out
}

// rasterOptionsFor maps export options onto one rasterization pass.
func rasterOptionsFor(opts ExportOptions) RasterOptions {
	return RasterOptions{
		ViewportWidthPx:  int(opts.contentWidthMM() * basePxPerMM),
		Scale:            opts.Scale,
		Quality:          opts.Quality,
		ImageLoadTimeout: opts.ImageLoadTimeout,
	}
}

// renderPaginated runs one rasterize-slice-compose pass under the retry
// policy.
func (e *Exporter) renderPaginated(ctx context.Context, fragment string, opts ExportOptions) (data []byte, pageCount, attempts int, err error) {
	htmlDoc := buildExportHTML(fragment, opts)

	attempts, err = e.retry.Do(ctx, func(ctx context.Context) error {
		e.setState(StateRendering)
		img, rErr := e.raster.Rasterize(ctx, htmlDoc, rasterOptionsFor(opts))
		if rErr != nil {
			return rErr
		}

		e.setState(StatePaginating)
		data, pageCount, rErr = e.composePDF(ctx, img, opts)
		return rErr
	})
	if err != nil {
		return nil, 0, attempts, err
	}
	return data, pageCount, attempts, nil
}

// composePDF slices the tall raster into page-height bands and draws each
// band onto its own PDF page with the header and footer areas.
func (e *Exporter) composePDF(ctx context.Context, img image.Image, opts ExportOptions) ([]byte, int, error) {
	density := pxPerMM(opts.Scale)
	bandHeightPx := int(opts.contentHeightMM() * density)
	bands := sliceImage(img, bandHeightPx)
	total := pageCountFor(img.Bounds().Dy(), bandHeightPx)

	pageW, pageH := opts.pageSize()
	pdf := fpdf.NewCustom(&fpdf.InitType{
		UnitStr: "mm",
		Size:    fpdf.SizeType{Wd: pageW, Ht: pageH},
	})
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetFont("Helvetica", "", 9)
	pdf.SetTextColor(110, 110, 110)

	for i, band := range bands {
		if err := ctx.Err(); err != nil {
			return nil, 0, err
		}

		pdf.AddPage()
		e.drawBands(pdf, opts, i+1, pageW, pageH)

		var buf bytes.Buffer
		if err := png.Encode(&buf, band); err != nil {
			return nil, 0, fmt.Errorf("%w: encoding page %d: %v", ErrPDFCompose, i+1, err)
		}
		name := fmt.Sprintf("page-%d", i+1)
		pdf.RegisterImageOptionsReader(name, fpdf.ImageOptions{ImageType: "PNG"}, &buf)
		bandHeightMM := float64(band.Bounds().Dy()) / density
		pdf.ImageOptions(name, opts.Margins.Left, opts.Margins.Top,
			opts.contentWidthMM(), bandHeightMM, false, fpdf.ImageOptions{ImageType: "PNG"}, 0, "")

		// Long documents accumulate decoded page images quickly; give
		// the monitor a chance to reclaim between batches of pages.
		if (i+1)%5 == 0 {
			e.memory.Sample()
		}
	}

	if err := pdf.Error(); err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrPDFCompose, err)
	}

	var out bytes.Buffer
	if err := pdf.Output(&out); err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrPDFCompose, err)
	}
	return out.Bytes(), total, nil
}

// drawBands writes the header and footer bands into the page margins:
// band text plus a thin rule separating each band from the content area.
func (e *Exporter) drawBands(pdf *fpdf.Fpdf, opts ExportOptions, page int, pageW, pageH float64) {
	pdf.SetDrawColor(200, 200, 200)
	pdf.SetLineWidth(0.2)

	if opts.IncludeHeaders {
		header := opts.HeaderText
		if header == "" {
			header = opts.FileName
		}
		y := opts.Margins.Top / 2
		pdf.Text(opts.Margins.Left, y, header)
		dateStr := time.Now().Format("2006-01-02")
		pdf.Text(pageW-opts.Margins.Right-pdf.GetStringWidth(dateStr), y, dateStr)
		pdf.Line(opts.Margins.Left, y+2, pageW-opts.Margins.Right, y+2)
	}

	if opts.IncludeFooters {
		y := pageH - opts.Margins.Bottom/2
		pdf.Line(opts.Margins.Left, y-4, pageW-opts.Margins.Right, y-4)
		if opts.FooterText != "" {
			pdf.Text(opts.Margins.Left, y, opts.FooterText)
		}
		if opts.ShowPageNumbers {
			label := fmt.Sprintf("Page %d", page)
			pdf.Text(pageW-opts.Margins.Right-pdf.GetStringWidth(label), y, label)
		}
	}
}

// exportFileName builds the output file name from the options base name,
// an optional timestamp suffix, and the format extension.
func exportFileName(opts ExportOptions, ext string) string {
	name := opts.FileName
	if opts.AddTimestamp {
		name = fmt.Sprintf("%s-%s", name, time.Now().Format("20060102-150405"))
	}
	return name + "." + ext
}
