// Package docforge implements the editing and export core of a business
// report authoring tool: a rich-text document tree kept in bidirectional
// sync with a Markdown representation, and a chunked, cacheable export
// pipeline that renders the document into paginated PDF and Word output.
//
// # Quick Start
//
// Create an editor, attach a sync controller, and export:
//
//	ed, err := docforge.NewEditor("Start writing...", "# Q3 Report", docforge.FormatAuto)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	ctrl := docforge.NewSyncController(ed, docforge.NewMarkdownCodec(), saver)
//	defer ctrl.Close()
//
//	exp := docforge.NewExporter()
//	defer exp.Close()
//
//	doc, err := ctrl.Snapshot()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	res, err := exp.ExportPDF(ctx, doc.Tree, docforge.DefaultExportOptions(), nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	os.WriteFile(res.FileName, res.Data, 0644)
//
// # Export Pipeline
//
// An export request moves through these stages:
//
//  1. Pre-export validation (size, image, and table ceilings, tag allow-list)
//  2. Content processing (interactive element stripping, chunked for large
//     documents) with content-addressed caching
//  3. Rasterization of the rendered document via headless Chrome (go-rod)
//  4. Pagination: the tall raster is sliced into page-height bands and
//     composed into a PDF with per-page header/footer bands and page numbers
//
// Failed stages are categorized, retried with exponential backoff when
// transient, and degraded through a fallback ladder before surfacing.
//
// # Concurrency
//
// Each Exporter runs at most one job at a time; a concurrent request fails
// immediately with ErrExportBusy. Cancellation is cooperative: a canceled
// context takes effect at the next chunk or page boundary. For batch work,
// ExporterPool manages multiple browser-backed Exporters.
//
// # Browser Requirements
//
// Rasterization requires Chrome/Chromium. go-rod downloads a managed
// Chromium on first run. Set ROD_NO_SANDBOX=1 in containers and CI, and
// ROD_BROWSER_BIN to use a pre-installed browser.
package docforge
