// Package config loads and validates docforge configuration files.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/docforge/go-docforge/internal/fileutil"
	"github.com/docforge/go-docforge/internal/yamlutil"
)

// Sentinel errors for config operations.
var (
	ErrConfigNotFound  = errors.New("config file not found")
	ErrEmptyConfigName = errors.New("config name cannot be empty")
	ErrConfigParse     = errors.New("failed to parse config")
	ErrFieldTooLong    = errors.New("field exceeds maximum length")
)

// Field length limits for multi-tenant safety.
const (
	MaxTextLength        = 500 // header/footer free-form text
	MaxFileNameLength    = 200 // output base name
	MaxPageSizeLength    = 10  // "letter", "a4", "legal"
	MaxOrientationLength = 10  // "portrait", "landscape"
)

// Config holds all configuration for document export.
type Config struct {
	Output     OutputConfig     `yaml:"output"`
	Page       PageConfig       `yaml:"page"`
	Header     BandConfig       `yaml:"header"`
	Footer     FooterConfig     `yaml:"footer"`
	Processing ProcessingConfig `yaml:"processing"`
}

// OutputConfig defines output destination options.
type OutputConfig struct {
	DefaultDir   string `yaml:"defaultDir"`   // Default output directory (empty = same as source)
	FileName     string `yaml:"fileName"`     // Base name without extension (empty = derived from input)
	AddTimestamp bool   `yaml:"addTimestamp"` // Append a timestamp suffix to file names
}

// PageConfig defines page geometry settings.
type PageConfig struct {
	Size        string  `yaml:"size"`        // "a4", "letter", "legal" (default: "a4")
	Orientation string  `yaml:"orientation"` // "portrait", "landscape" (default: "portrait")
	MarginMM    float64 `yaml:"marginMM"`    // uniform margin in millimeters (default: 20)
	Scale       float64 `yaml:"scale"`       // raster scale factor (default: 2.0)
}

// BandConfig defines the running header band.
type BandConfig struct {
	Enabled bool   `yaml:"enabled"`
	Text    string `yaml:"text"` // Empty = document file name
}

// FooterConfig defines the running footer band.
type FooterConfig struct {
	Enabled        bool   `yaml:"enabled"`
	Text           string `yaml:"text"`
	ShowPageNumber bool   `yaml:"showPageNumber"`
}

// ProcessingConfig defines large-document processing knobs.
type ProcessingConfig struct {
	ChunkSize         int `yaml:"chunkSize"`         // elements per chunk (default: 1000)
	LargeDocThreshold int `yaml:"largeDocThreshold"` // chunking threshold (default: 5000)
	CacheTTLMinutes   int `yaml:"cacheTTLMinutes"`   // cache entry lifetime (default: 30)
	CacheMaxEntries   int `yaml:"cacheMaxEntries"`   // cache capacity (default: 50)
	Workers           int `yaml:"workers"`           // batch pool size (0 = auto)
}

// Validate checks field lengths and enum values.
// Called automatically by LoadConfig, but available for consumers
// who construct Config manually.
func (c *Config) Validate() error {
	if err := validateFieldLength("output.fileName", c.Output.FileName, MaxFileNameLength); err != nil {
		return err
	}
	if err := validateFieldLength("header.text", c.Header.Text, MaxTextLength); err != nil {
		return err
	}
	if err := validateFieldLength("footer.text", c.Footer.Text, MaxTextLength); err != nil {
		return err
	}
	if err := validateFieldLength("page.size", c.Page.Size, MaxPageSizeLength); err != nil {
		return err
	}
	if err := validateFieldLength("page.orientation", c.Page.Orientation, MaxOrientationLength); err != nil {
		return err
	}
	if c.Page.MarginMM < 0 || c.Page.MarginMM > 75 {
		return fmt.Errorf("page.marginMM: must be between 0 and 75, got %.1f", c.Page.MarginMM)
	}
	if c.Page.Scale != 0 && (c.Page.Scale < 0.25 || c.Page.Scale > 4) {
		return fmt.Errorf("page.scale: must be between 0.25 and 4, got %.2f", c.Page.Scale)
	}
	if c.Processing.Workers < 0 {
		return fmt.Errorf("processing.workers: must not be negative, got %d", c.Processing.Workers)
	}
	return nil
}

// validateFieldLength checks if a field exceeds its maximum allowed length.
func validateFieldLength(fieldName, value string, maxLength int) error {
	if len(value) > maxLength {
		return fmt.Errorf("%w: %s (%d chars, max %d)", ErrFieldTooLong, fieldName, len(value), maxLength)
	}
	return nil
}

// DefaultConfig returns a neutral configuration: A4 portrait with bands
// enabled and package defaults for processing.
func DefaultConfig() *Config {
	return &Config{
		Page:   PageConfig{Size: "a4", Orientation: "portrait", MarginMM: 20, Scale: 2.0},
		Header: BandConfig{Enabled: true},
		Footer: FooterConfig{Enabled: true, ShowPageNumber: true},
	}
}

// LoadConfig reads a config file. An argument containing a path separator is
// used as a path directly; a bare name is resolved against the working
// directory and ~/.config/docforge/ with .yaml/.yml extensions. A missing
// file is an error, never a silent fallback to defaults.
func LoadConfig(nameOrPath string) (*Config, error) {
	if nameOrPath == "" {
		return nil, ErrEmptyConfigName
	}

	path := nameOrPath
	if !fileutil.IsFilePath(nameOrPath) {
		var err error
		if path, err = resolveConfigPath(nameOrPath); err != nil {
			return nil, err
		}
	}

	data, err := os.ReadFile(path) // #nosec G304 -- config path is user-provided
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := yamlutil.UnmarshalStrict(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigParse, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// resolveConfigPath finds a config file by bare name, trying the working
// directory before the user config directory, .yaml before .yml.
func resolveConfigPath(name string) (string, error) {
	locations := []string{"."}
	if userDir, err := os.UserConfigDir(); err == nil {
		locations = append(locations, filepath.Join(userDir, "docforge"))
	}

	var tried []string
	for _, dir := range locations {
		for _, ext := range []string{".yaml", ".yml"} {
			candidate := filepath.Join(dir, name+ext)
			if fileutil.FileExists(candidate) {
				return candidate, nil
			}
			tried = append(tried, candidate)
		}
	}

	return "", fmt.Errorf("%w: tried %s", ErrConfigNotFound, strings.Join(tried, ", "))
}
