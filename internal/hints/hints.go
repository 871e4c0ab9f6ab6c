// Package hints appends actionable suggestions to error messages for the
// failure modes users actually hit: missing Chrome, sandboxed containers,
// timeouts, oversized documents, and missing config files.
// Every hint renders as "\n  hint: <text>".
package hints

import (
	"os"
	"strings"

	"github.com/docforge/go-docforge/internal/fileutil"
)

// IsInContainer reports whether the process runs inside Docker or similar.
// Variable so tests can stub the detection.
var IsInContainer = func() bool {
	return fileutil.FileExists("/.dockerenv")
}

// inCI reports whether a known CI environment variable is set.
func inCI() bool {
	for _, v := range []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL"} {
		if os.Getenv(v) != "" {
			return true
		}
	}
	return false
}

// ForBrowserConnect suggests the rod environment variables relevant to the
// current environment when the browser fails to start or connect.
func ForBrowserConnect() string {
	var hints []string

	if (inCI() || IsInContainer()) && os.Getenv("ROD_NO_SANDBOX") != "1" {
		hints = append(hints, "set ROD_NO_SANDBOX=1 for Docker/CI")
	}
	if os.Getenv("ROD_BROWSER_BIN") == "" {
		hints = append(hints, "set ROD_BROWSER_BIN to use custom Chrome")
	}

	return formatHints(hints)
}

// ForTimeout suggests raising the export deadline.
func ForTimeout() string {
	return format("for large documents, use --timeout flag")
}

// ForContentTooLarge suggests how to get a document under the size ceiling.
func ForContentTooLarge() string {
	return format("split the document or reduce embedded image sizes")
}

// ForConfigNotFound suggests the --config flag, and names the standard
// config location when it appears among the searched paths.
func ForConfigNotFound(searchedPaths []string) string {
	hint := "use --config /path/to/file.yaml"

	for _, p := range searchedPaths {
		if strings.Contains(p, ".config/docforge") {
			hint += " or create " + p
			break
		}
	}

	return format(hint)
}

// ForOutputDirectory suggests checking the output location.
func ForOutputDirectory() string {
	return format("check parent directory exists and is writable")
}

func format(hint string) string {
	if hint == "" {
		return ""
	}
	return "\n  hint: " + hint
}

func formatHints(hints []string) string {
	if len(hints) == 0 {
		return ""
	}
	return format(strings.Join(hints, "; "))
}
