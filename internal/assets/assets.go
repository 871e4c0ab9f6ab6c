// Package assets provides the embedded stylesheets used when rendering
// documents for export.
package assets

import (
	"embed"
	"errors"
	"fmt"
	"strings"
)

//go:embed styles/*.css
var styleFS embed.FS

// ErrStyleNotFound indicates the named style does not exist.
var ErrStyleNotFound = errors.New("style not found")

// DefaultStyleName is the stylesheet applied when none is requested.
const DefaultStyleName = "business"

// LoadStyle returns the CSS content of a named embedded style.
// Names must be bare identifiers; path separators are rejected.
func LoadStyle(name string) (string, error) {
	if name == "" {
		name = DefaultStyleName
	}
	if strings.ContainsAny(name, "/\\.") {
		return "", fmt.Errorf("%w: invalid name %q", ErrStyleNotFound, name)
	}
	data, err := styleFS.ReadFile("styles/" + name + ".css")
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrStyleNotFound, name)
	}
	return string(data), nil
}

// ListStyles returns the available style names.
func ListStyles() []string {
	entries, err := styleFS.ReadDir("styles")
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), ".css"))
	}
	return names
}
