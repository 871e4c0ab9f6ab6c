package docforge

import (
	"fmt"
	"strings"
	"time"
)

// Page size constants.
const (
	PageSizeA4     = "a4"
	PageSizeLetter = "letter"
	PageSizeLegal  = "legal"
)

// Orientation constants.
const (
	OrientationPortrait  = "portrait"
	OrientationLandscape = "landscape"
)

// Margin bounds in millimeters.
const (
	MinMarginMM     = 0.0
	MaxMarginMM     = 75.0
	DefaultMarginMM = 20.0
)

// Rendering and processing defaults.
const (
	DefaultScale             = 2.0
	MinScale                 = 0.25
	MaxScale                 = 4.0
	DefaultQuality           = 0.95
	DefaultChunkSize         = 1000
	DefaultChunkDelay        = 10 * time.Millisecond
	DefaultLargeDocThreshold = 5000
	DefaultCacheTTL          = 30 * time.Minute
	DefaultCacheMaxEntries   = 50
	DefaultMemoryThreshold   = 100 << 20 // 100 MB
	DefaultMemoryInterval    = 30 * time.Second
	DefaultImageLoadTimeout  = 3 * time.Second
	DefaultMaxImageBytes     = 5 << 20 // 5 MB
)

// pageDimensions maps a page size to its physical dimensions in
// portrait orientation, in millimeters.
var pageDimensions = map[string]struct{ Width, Height float64 }{
	PageSizeA4:     {210, 297},
	PageSizeLetter: {215.9, 279.4},
	PageSizeLegal:  {215.9, 355.6},
}

// Margins holds page margins in millimeters.
type Margins struct {
	Top    float64
	Right  float64
	Bottom float64
	Left   float64
}

// UniformMargins returns margins with the same value on all sides.
func UniformMargins(mm float64) Margins {
	return Margins{Top: mm, Right: mm, Bottom: mm, Left: mm}
}

// Validate checks that all margins are within bounds.
func (m Margins) Validate() error {
	for _, v := range []float64{m.Top, m.Right, m.Bottom, m.Left} {
		if v < MinMarginMM || v > MaxMarginMM {
			return fmt.Errorf("%w: %.1fmm (must be between %.1f and %.1f)", ErrInvalidMargin, v, MinMarginMM, MaxMarginMM)
		}
	}
	return nil
}

// ExportOptions configures one export job. The zero value is not usable;
// start from DefaultExportOptions.
type ExportOptions struct {
	PageSize    string // "a4", "letter", "legal"
	Orientation string // "portrait", "landscape"
	Margins     Margins
	Scale       float64 // raster scale factor
	Quality     float64 // 0..1, raster encoding quality

	IncludeHeaders  bool
	IncludeFooters  bool
	ShowPageNumbers bool
	HeaderText      string
	FooterText      string

	FileName     string // base name without extension; empty = "report"
	AddTimestamp bool   // append a timestamp suffix to the file name

	// Processing knobs. Zero values fall back to package defaults.
	ChunkSize         int
	ChunkDelay        time.Duration
	LargeDocThreshold int
	CacheTTL          time.Duration
	CacheMaxEntries   int
	MemoryThreshold   uint64
	ImageLoadTimeout  time.Duration
}

// DefaultExportOptions returns export options for an A4 portrait business
// report with headers, footers, and page numbers enabled.
func DefaultExportOptions() ExportOptions {
	return ExportOptions{
		PageSize:          PageSizeA4,
		Orientation:       OrientationPortrait,
		Margins:           UniformMargins(DefaultMarginMM),
		Scale:             DefaultScale,
		Quality:           DefaultQuality,
		IncludeHeaders:    true,
		IncludeFooters:    true,
		ShowPageNumbers:   true,
		FileName:          "report",
		ChunkSize:         DefaultChunkSize,
		ChunkDelay:        DefaultChunkDelay,
		LargeDocThreshold: DefaultLargeDocThreshold,
		CacheTTL:          DefaultCacheTTL,
		CacheMaxEntries:   DefaultCacheMaxEntries,
		MemoryThreshold:   DefaultMemoryThreshold,
		ImageLoadTimeout:  DefaultImageLoadTimeout,
	}
}

// Validate checks that export options are usable.
// Uses case-insensitive comparison and does not mutate.
func (o ExportOptions) Validate() error {
	if _, ok := pageDimensions[strings.ToLower(o.PageSize)]; !ok {
		return fmt.Errorf("%w: %q", ErrInvalidPageSize, o.PageSize)
	}
	switch strings.ToLower(o.Orientation) {
	case OrientationPortrait, OrientationLandscape:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidOrientation, o.Orientation)
	}
	if err := o.Margins.Validate(); err != nil {
		return err
	}
	if o.Scale < MinScale || o.Scale > MaxScale {
		return fmt.Errorf("%w: %.2f (must be between %.2f and %.2f)", ErrInvalidScale, o.Scale, MinScale, MaxScale)
	}
	return nil
}

// normalized returns a copy with zero-valued processing knobs replaced by
// package defaults and size/orientation lowercased.
func (o ExportOptions) normalized() ExportOptions {
	o.PageSize = strings.ToLower(o.PageSize)
	o.Orientation = strings.ToLower(o.Orientation)
	if o.FileName == "" {
		o.FileName = "report"
	}
	if o.ChunkSize <= 0 {
		o.ChunkSize = DefaultChunkSize
	}
	if o.ChunkDelay <= 0 {
		o.ChunkDelay = DefaultChunkDelay
	}
	if o.LargeDocThreshold <= 0 {
		o.LargeDocThreshold = DefaultLargeDocThreshold
	}
	if o.CacheTTL <= 0 {
		o.CacheTTL = DefaultCacheTTL
	}
	if o.CacheMaxEntries <= 0 {
		o.CacheMaxEntries = DefaultCacheMaxEntries
	}
	if o.MemoryThreshold == 0 {
		o.MemoryThreshold = DefaultMemoryThreshold
	}
	if o.ImageLoadTimeout <= 0 {
		o.ImageLoadTimeout = DefaultImageLoadTimeout
	}
	return o
}

// pageSize returns the physical page dimensions in millimeters,
// orientation applied.
func (o ExportOptions) pageSize() (width, height float64) {
	d := pageDimensions[strings.ToLower(o.PageSize)]
	if strings.ToLower(o.Orientation) == OrientationLandscape {
		return d.Height, d.Width
	}
	return d.Width, d.Height
}

// contentHeightMM returns the printable page height: the page height
// minus top and bottom margins.
func (o ExportOptions) contentHeightMM() float64 {
	_, h := o.pageSize()
	return h - o.Margins.Top - o.Margins.Bottom
}

// contentWidthMM returns the printable page width.
func (o ExportOptions) contentWidthMM() float64 {
	w, _ := o.pageSize()
	return w - o.Margins.Left - o.Margins.Right
}

// renderFingerprintFields returns the subset of options that affect
// rendered output, serialized for cache keying. Header and footer text
// are included because they change the drawn page bands.
func (o ExportOptions) renderFingerprintFields() string {
	return fmt.Sprintf("%s|%s|%.1f,%.1f,%.1f,%.1f|%.2f|%.2f|%t|%t|%t|%s|%s",
		strings.ToLower(o.PageSize), strings.ToLower(o.Orientation),
		o.Margins.Top, o.Margins.Right, o.Margins.Bottom, o.Margins.Left,
		o.Scale, o.Quality,
		o.IncludeHeaders, o.IncludeFooters, o.ShowPageNumbers,
		o.HeaderText, o.FooterText)
}

// ExportState tracks the pipeline state machine for one exporter.
type ExportState string

// Pipeline states. Only one job may occupy any non-idle state at a time.
const (
	StateIdle       ExportState = "idle"
	StateValidating ExportState = "validating"
	StateProcessing ExportState = "processing"
	StateCaching    ExportState = "caching"
	StateRendering  ExportState = "rendering"
	StatePaginating ExportState = "paginating"
	StateSaved      ExportState = "saved"
	StateFailed     ExportState = "failed"
)

// ExportResult is the outcome of a successful export job.
type ExportResult struct {
	JobID     string
	Data      []byte
	FileName  string
	PageCount int
	Attempts  int
	FromCache bool
}

// Option configures an Exporter.
type Option func(*Exporter)

// exporterConfig holds internal configuration for Exporter.
type exporterConfig struct {
	timeout time.Duration
}

// defaultTimeout bounds a single rasterization when the caller's context
// carries no deadline.
const defaultTimeout = 30 * time.Second

// WithTimeout sets the rasterization timeout.
// Panics if d <= 0 (programmer error, similar to time.NewTicker).
func WithTimeout(d time.Duration) Option {
	if d <= 0 {
		panic("docforge: WithTimeout duration must be positive")
	}
	return func(e *Exporter) {
		e.cfg.timeout = d
	}
}

// WithCodec replaces the default Markdown codec.
func WithCodec(c MarkdownCodec) Option {
	return func(e *Exporter) {
		e.codec = c
	}
}

// WithRasterizer replaces the default browser-backed rasterizer
// (e.g., by tests).
func WithRasterizer(r Rasterizer) Option {
	return func(e *Exporter) {
		e.raster = r
	}
}

// WithRetryPolicy replaces the default retry policy.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(e *Exporter) {
		e.retry = p
	}
}

// WithValidator replaces the default pre-export validator.
func WithValidator(v *Validator) Option {
	return func(e *Exporter) {
		e.validator = v
	}
}
