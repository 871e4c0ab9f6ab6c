package main

import (
	"fmt"
	"os"

	flag "github.com/spf13/pflag"
)

// commonFlags holds flags shared across commands.
type commonFlags struct {
	config  string
	quiet   bool
	verbose bool
}

// pageFlags holds page layout flags.
type pageFlags struct {
	size        string
	orientation string
	margin      float64
	scale       float64
}

// bandFlags holds header/footer band flags.
type bandFlags struct {
	headerText    string
	footerText    string
	noHeader      bool
	noFooter      bool
	noPageNumbers bool
}

// convertFlags holds all flags for the convert command.
type convertFlags struct {
	common    commonFlags
	output    string
	format    string
	workers   int
	timeout   string
	timestamp bool
	page      pageFlags
	bands     bandFlags
}

// addCommonFlags adds common flags to a FlagSet.
func addCommonFlags(fs *flag.FlagSet, f *commonFlags) {
	fs.StringVarP(&f.config, "config", "c", "", "config file name or path")
	fs.BoolVarP(&f.quiet, "quiet", "q", false, "only show errors")
	fs.BoolVarP(&f.verbose, "verbose", "v", false, "show detailed timing")
}

// addPageFlags adds page layout flags to a FlagSet.
func addPageFlags(fs *flag.FlagSet, f *pageFlags) {
	fs.StringVarP(&f.size, "page-size", "p", "", "page size: a4, letter, legal")
	fs.StringVar(&f.orientation, "orientation", "", "page orientation: portrait, landscape")
	fs.Float64Var(&f.margin, "margin", 0, "page margin in millimeters (0-75)")
	fs.Float64Var(&f.scale, "scale", 0, "raster scale factor (0.25-4.0)")
}

// addBandFlags adds header/footer band flags to a FlagSet.
func addBandFlags(fs *flag.FlagSet, f *bandFlags) {
	fs.StringVar(&f.headerText, "header-text", "", "custom header text (default: file name)")
	fs.StringVar(&f.footerText, "footer-text", "", "custom footer text")
	fs.BoolVar(&f.noHeader, "no-header", false, "disable header band")
	fs.BoolVar(&f.noFooter, "no-footer", false, "disable footer band")
	fs.BoolVar(&f.noPageNumbers, "no-page-numbers", false, "disable page numbers")
}

// parseFlags parses CLI flags and returns positional args.
func parseFlags(args []string) (*convertFlags, []string, error) {
	fs := flag.NewFlagSet("docforge", flag.ContinueOnError)
	f := &convertFlags{}

	// I/O flags
	fs.StringVarP(&f.output, "output", "o", "", "output file or directory")
	fs.StringVarP(&f.format, "format", "f", "pdf", "output format: pdf, docx")
	fs.IntVarP(&f.workers, "workers", "w", 0, "parallel workers (0 = auto)")
	fs.StringVarP(&f.timeout, "timeout", "t", "", "export timeout (e.g., 30s, 2m)")
	fs.BoolVar(&f.timestamp, "timestamp", false, "append timestamp to output file names")

	addCommonFlags(fs, &f.common)
	addPageFlags(fs, &f.page)
	addBandFlags(fs, &f.bands)

	fs.Usage = func() { printUsage(os.Stderr) }

	if err := fs.Parse(args[1:]); err != nil {
		return nil, nil, err
	}

	return f, fs.Args(), nil
}

// printUsage writes the usage banner.
func printUsage(w *os.File) {
	fmt.Fprint(w, `docforge - export Markdown documents as paginated PDF or Word files

Usage:
  docforge [flags] <input.md | directory>

Flags:
  -o, --output string      output file or directory
  -f, --format string      output format: pdf, docx (default "pdf")
  -w, --workers int        parallel workers (0 = auto)
  -t, --timeout string     export timeout (e.g., 30s, 2m)
  -c, --config string      config file name or path
  -p, --page-size string   page size: a4, letter, legal
      --orientation string page orientation: portrait, landscape
      --margin float       page margin in millimeters (0-75)
      --scale float        raster scale factor (0.25-4.0)
      --header-text string custom header text
      --footer-text string custom footer text
      --no-header          disable header band
      --no-footer          disable footer band
      --no-page-numbers    disable page numbers
      --timestamp          append timestamp to output file names
  -q, --quiet              only show errors
  -v, --verbose            show detailed timing
`)
}
