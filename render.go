package docforge

import (
	"fmt"
	"strings"

	"github.com/docforge/go-docforge/internal/assets"
)

// htmlShell wraps a rendered document fragment in a complete HTML5
// document with a fixed body width so rasterization is deterministic.
const htmlShell = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Document</title>
</head>
<body>
%s
</body>
</html>`

// buildExportHTML produces the standalone HTML document handed to the
// rasterizer: the processed fragment wrapped in a shell with the business
// stylesheet and page-width constraint injected.
func buildExportHTML(fragment string, opts ExportOptions) string {
	doc := fmt.Sprintf(htmlShell, fragment)

	css, err := assets.LoadStyle(assets.DefaultStyleName)
	if err != nil {
		// The embedded default style always exists; an error here means a
		// broken build, but the export can still proceed unstyled.
		css = ""
	}
	css += fmt.Sprintf("\nbody { width: %.1fmm; margin: 0 auto; }\n", opts.contentWidthMM())

	return injectCSS(doc, css)
}

// injectCSS inserts a <style> block into HTML content.
// Tries </head> first, then after <body>, then prepends.
// CSS content is sanitized to prevent breaking out of the style block.
func injectCSS(htmlContent, cssContent string) string {
	if cssContent == "" {
		return htmlContent
	}

	styleBlock := "<style>" + sanitizeCSS(cssContent) + "</style>"
	lowerHTML := strings.ToLower(htmlContent)

	if idx := strings.Index(lowerHTML, "</head>"); idx != -1 {
		return htmlContent[:idx] + styleBlock + htmlContent[idx:]
	}

	if idx := strings.Index(lowerHTML, "<body"); idx != -1 {
		closeIdx := strings.Index(htmlContent[idx:], ">")
		if closeIdx != -1 {
			insertPos := idx + closeIdx + 1
			return htmlContent[:insertPos] + styleBlock + htmlContent[insertPos:]
		}
	}

	return styleBlock + htmlContent
}

// sanitizeCSS escapes sequences that could close a <style> block early.
func sanitizeCSS(css string) string {
	return strings.ReplaceAll(css, "</", `<\/`)
}
