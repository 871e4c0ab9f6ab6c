package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	clog "github.com/charmbracelet/log"

	docforge "github.com/docforge/go-docforge"
	"github.com/docforge/go-docforge/internal/config"
	"github.com/docforge/go-docforge/internal/hints"
)

// Sentinel errors for CLI operations.
var (
	ErrNoInput            = errors.New("no input specified")
	ErrReadMarkdown       = errors.New("failed to read markdown file")
	ErrWriteOutput        = errors.New("failed to write output file")
	ErrInvalidExtension   = errors.New("file must have .md or .markdown extension")
	ErrInvalidFormat      = errors.New("format must be pdf or docx")
	ErrInvalidWorkerCount = errors.New("invalid worker count")
)

// File permission constants.
const (
	dirPermissions  = 0o750 // rwxr-x---: owner full, group read+execute
	filePermissions = 0o644 // rw-r--r--: owner read+write, others read
)

// Exporter is the interface for the export engine.
type Exporter interface {
	ExportMarkdownPDF(ctx context.Context, markdown string, opts docforge.ExportOptions, progress docforge.ProgressFunc) (*docforge.ExportResult, error)
	ExportMarkdownWord(ctx context.Context, markdown string, opts docforge.ExportOptions) (*docforge.ExportResult, error)
}

// Compile-time interface implementation check.
var _ Exporter = (*docforge.Exporter)(nil)

// Pool abstracts exporter pool operations for testability.
type Pool interface {
	Acquire() Exporter
	Release(Exporter)
	Size() int
}

// FileToExport represents a single file to process.
type FileToExport struct {
	InputPath  string
	OutputPath string
}

// ExportOutcome holds the result of a single file export.
type ExportOutcome struct {
	InputPath  string
	OutputPath string
	Pages      int
	FromCache  bool
	Err        error
	Duration   time.Duration
}

// run orchestrates the export process.
func run(args []string, pool Pool) error {
	flags, positional, err := parseFlags(args)
	if err != nil {
		return err
	}
	if err := validateWorkers(flags.workers); err != nil {
		return err
	}
	format := strings.ToLower(flags.format)
	if format != "pdf" && format != "docx" {
		return fmt.Errorf("%w: %q", ErrInvalidFormat, flags.format)
	}

	logger := newLogger(flags.common)

	// Load configuration, CLI flags win on merge.
	cfg := config.DefaultConfig()
	if flags.common.config != "" {
		cfg, err = config.LoadConfig(flags.common.config)
		if err != nil {
			if errors.Is(err, config.ErrConfigNotFound) {
				return fmt.Errorf("loading config: %w%s", err, hints.ForConfigNotFound(nil))
			}
			return fmt.Errorf("loading config: %w", err)
		}
	}
	opts := mergeOptions(flags, cfg)

	ctx := context.Background()
	if flags.timeout != "" {
		d, perr := time.ParseDuration(flags.timeout)
		if perr != nil {
			return fmt.Errorf("invalid timeout: %w", perr)
		}
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	inputPath, err := resolveInputPath(positional)
	if err != nil {
		return err
	}
	files, err := discoverFiles(inputPath, flags.output, format, cfg)
	if err != nil {
		return fmt.Errorf("discovering files: %w", err)
	}
	if len(files) == 0 {
		return fmt.Errorf("%w: no markdown files found in %s", ErrNoInput, inputPath)
	}

	outcomes := exportBatch(ctx, pool, files, format, opts, logger)
	return report(outcomes, logger, flags.common.quiet)
}

// newLogger builds the CLI logger honoring quiet/verbose.
func newLogger(f commonFlags) *clog.Logger {
	logger := clog.New(os.Stderr)
	switch {
	case f.quiet:
		logger.SetLevel(clog.ErrorLevel)
	case f.verbose:
		logger.SetLevel(clog.DebugLevel)
	default:
		logger.SetLevel(clog.InfoLevel)
	}
	return logger
}

// validateWorkers rejects negative worker counts.
func validateWorkers(n int) error {
	if n < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidWorkerCount, n)
	}
	return nil
}

// mergeOptions builds export options from config with CLI overrides.
func mergeOptions(flags *convertFlags, cfg *config.Config) docforge.ExportOptions {
	opts := docforge.DefaultExportOptions()

	// Config layer.
	if cfg.Page.Size != "" {
		opts.PageSize = cfg.Page.Size
	}
	if cfg.Page.Orientation != "" {
		opts.Orientation = cfg.Page.Orientation
	}
	if cfg.Page.MarginMM > 0 {
		opts.Margins = docforge.UniformMargins(cfg.Page.MarginMM)
	}
	if cfg.Page.Scale > 0 {
		opts.Scale = cfg.Page.Scale
	}
	opts.IncludeHeaders = cfg.Header.Enabled
	opts.IncludeFooters = cfg.Footer.Enabled
	opts.ShowPageNumbers = cfg.Footer.ShowPageNumber
	opts.HeaderText = cfg.Header.Text
	opts.FooterText = cfg.Footer.Text
	opts.AddTimestamp = cfg.Output.AddTimestamp
	if cfg.Processing.ChunkSize > 0 {
		opts.ChunkSize = cfg.Processing.ChunkSize
	}
	if cfg.Processing.LargeDocThreshold > 0 {
		opts.LargeDocThreshold = cfg.Processing.LargeDocThreshold
	}
	if cfg.Processing.CacheTTLMinutes > 0 {
		opts.CacheTTL = time.Duration(cfg.Processing.CacheTTLMinutes) * time.Minute
	}
	if cfg.Processing.CacheMaxEntries > 0 {
		opts.CacheMaxEntries = cfg.Processing.CacheMaxEntries
	}

	// CLI layer wins.
	if flags.page.size != "" {
		opts.PageSize = flags.page.size
	}
	if flags.page.orientation != "" {
		opts.Orientation = flags.page.orientation
	}
	if flags.page.margin > 0 {
		opts.Margins = docforge.UniformMargins(flags.page.margin)
	}
	if flags.page.scale > 0 {
		opts.Scale = flags.page.scale
	}
	if flags.bands.headerText != "" {
		opts.HeaderText = flags.bands.headerText
	}
	if flags.bands.footerText != "" {
		opts.FooterText = flags.bands.footerText
	}
	if flags.bands.noHeader {
		opts.IncludeHeaders = false
	}
	if flags.bands.noFooter {
		opts.IncludeFooters = false
	}
	if flags.bands.noPageNumbers {
		opts.ShowPageNumbers = false
	}
	if flags.timestamp {
		opts.AddTimestamp = true
	}
	return opts
}

// resolveInputPath returns the single positional input argument.
func resolveInputPath(positional []string) (string, error) {
	if len(positional) == 0 {
		return "", fmt.Errorf("%w: pass a markdown file or directory", ErrNoInput)
	}
	return positional[0], nil
}

// discoverFiles expands the input path into export jobs. A directory is
// walked recursively for .md and .markdown files.
func discoverFiles(inputPath, output, format string, cfg *config.Config) ([]FileToExport, error) {
	info, err := os.Stat(inputPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", os.ErrNotExist, inputPath)
	}

	outputDir := output
	if outputDir == "" {
		outputDir = cfg.Output.DefaultDir
	}

	if !info.IsDir() {
		if !hasMarkdownExtension(inputPath) {
			return nil, fmt.Errorf("%w: %s", ErrInvalidExtension, inputPath)
		}
		return []FileToExport{{
			InputPath:  inputPath,
			OutputPath: outputPathFor(inputPath, outputDir, output, format),
		}}, nil
	}

	var files []FileToExport
	err = filepath.WalkDir(inputPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !hasMarkdownExtension(path) {
			return nil
		}
		files = append(files, FileToExport{
			InputPath:  path,
			OutputPath: outputPathFor(path, outputDir, "", format),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// hasMarkdownExtension reports whether path ends in .md or .markdown.
func hasMarkdownExtension(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".md" || ext == ".markdown"
}

// outputPathFor derives the output file path. An explicit output ending
// in the format extension names the file directly (single-file mode).
func outputPathFor(inputPath, outputDir, explicit, format string) string {
	if explicit != "" && strings.EqualFold(filepath.Ext(explicit), "."+format) {
		return explicit
	}
	base := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath)) + "." + format
	if outputDir == "" {
		return filepath.Join(filepath.Dir(inputPath), base)
	}
	return filepath.Join(outputDir, base)
}

// exportBatch processes files concurrently using the exporter pool.
func exportBatch(ctx context.Context, pool Pool, files []FileToExport, format string, opts docforge.ExportOptions, logger *clog.Logger) []ExportOutcome {
	concurrency := pool.Size()
	if concurrency > len(files) {
		concurrency = len(files)
	}

	outcomes := make([]ExportOutcome, len(files))
	jobs := make(chan int, len(files))
	var wg sync.WaitGroup

	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			exp := pool.Acquire()
			defer pool.Release(exp)

			for idx := range jobs {
				outcomes[idx] = exportOne(ctx, exp, files[idx], format, opts, logger)
			}
		}()
	}

	for i := range files {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return outcomes
}

// exportOne runs a single file export end to end.
func exportOne(ctx context.Context, exp Exporter, file FileToExport, format string, opts docforge.ExportOptions, logger *clog.Logger) ExportOutcome {
	start := time.Now()
	outcome := ExportOutcome{InputPath: file.InputPath, OutputPath: file.OutputPath}

	data, err := os.ReadFile(file.InputPath) // #nosec G304 -- input path is user-provided
	if err != nil {
		outcome.Err = fmt.Errorf("%w: %v", ErrReadMarkdown, err)
		return outcome
	}

	// Per-file base name so the header band shows the document name.
	opts.FileName = strings.TrimSuffix(filepath.Base(file.InputPath), filepath.Ext(file.InputPath))

	var res *docforge.ExportResult
	if format == "docx" {
		res, err = exp.ExportMarkdownWord(ctx, string(data), opts)
	} else {
		res, err = exp.ExportMarkdownPDF(ctx, string(data), opts, func(p docforge.ChunkProgress) {
			logger.Debug("processing", "file", file.InputPath, "percent", fmt.Sprintf("%.0f%%", p.Percentage))
		})
	}
	if err != nil {
		outcome.Err = decorateError(err)
		outcome.Duration = time.Since(start)
		return outcome
	}

	if dir := filepath.Dir(file.OutputPath); dir != "." {
		if mkErr := os.MkdirAll(dir, dirPermissions); mkErr != nil {
			outcome.Err = fmt.Errorf("%w: %v%s", ErrWriteOutput, mkErr, hints.ForOutputDirectory())
			outcome.Duration = time.Since(start)
			return outcome
		}
	}
	if wErr := os.WriteFile(file.OutputPath, res.Data, filePermissions); wErr != nil {
		outcome.Err = fmt.Errorf("%w: %v", ErrWriteOutput, wErr)
		outcome.Duration = time.Since(start)
		return outcome
	}

	outcome.Pages = res.PageCount
	outcome.FromCache = res.FromCache
	outcome.Duration = time.Since(start)
	return outcome
}

// decorateError appends environment hints to known failure modes.
func decorateError(err error) error {
	switch {
	case errors.Is(err, docforge.ErrBrowserConnect):
		return fmt.Errorf("%w%s", err, hints.ForBrowserConnect())
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w%s", err, hints.ForTimeout())
	case errors.Is(err, docforge.ErrContentTooLarge):
		return fmt.Errorf("%w%s", err, hints.ForContentTooLarge())
	}
	return err
}

// report logs each outcome and returns the first error, if any.
func report(outcomes []ExportOutcome, logger *clog.Logger, quiet bool) error {
	var firstErr error
	failed := 0
	for _, o := range outcomes {
		if o.Err != nil {
			failed++
			logger.Error("export failed", "file", o.InputPath, "err", o.Err)
			if firstErr == nil {
				firstErr = o.Err
			}
			continue
		}
		if !quiet {
			logger.Info("exported", "file", o.OutputPath, "pages", o.Pages,
				"cached", o.FromCache, "took", o.Duration.Round(time.Millisecond))
		}
	}
	if firstErr != nil {
		return fmt.Errorf("%d of %d exports failed: %w", failed, len(outcomes), firstErr)
	}
	return nil
}
