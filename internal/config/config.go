package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/c2h5oh/datasize"
	"github.com/go-playground/validator/v10"
	"github.com/mcncl/ndjsoncsv/internal/compression"
	"gopkg.in/yaml.v3"
)

// Error policies
const (
	MalformedSkip = "skip"
	MalformedFail = "fail"

	DriftDrop = "drop"
	DriftFail = "fail"
)

// DefaultProgressEvery is the progress interval in lines (pass 1) and rows (pass 2)
const DefaultProgressEvery = 200000

// Config represents the complete configuration for a conversion run
type Config struct {
	Input       InputConfig        `yaml:"input"`
	Output      OutputConfig       `yaml:"output"`
	Flatten     FlattenConfig      `yaml:"flatten"`
	Explode     ExplodeConfig      `yaml:"explode"`
	Header      HeaderConfig       `yaml:"header"`
	Values      ValuesConfig       `yaml:"values"`
	Errors      ErrorsConfig       `yaml:"errors"`
	CSV         CSVConfig          `yaml:"csv"`
	Compression compression.Config `yaml:"compression"`
	Progress    ProgressConfig     `yaml:"progress"`
	Dev         DevConfig          `yaml:"dev"`
}

// InputConfig controls how the NDJSON source is read
type InputConfig struct {
	Path        string            `yaml:"path"`
	MaxLineSize datasize.ByteSize `yaml:"max_line_size" validate:"min=1024"`
}

// OutputConfig controls where the CSV goes
type OutputConfig struct {
	Path string `yaml:"path"`
}

// FlattenConfig controls nested-object flattening
type FlattenConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Separator string `yaml:"separator" validate:"required"`
}

// ExplodeConfig selects the explode policy. Column and All are mutually exclusive.
type ExplodeConfig struct {
	Column string `yaml:"column" validate:"excluded_with=All"`
	All    bool   `yaml:"all"`
}

// HeaderConfig controls header discovery and spelling
type HeaderConfig struct {
	DiscoverLimit int               `yaml:"discover_limit" validate:"min=0"`
	Sort          bool              `yaml:"sort"`
	Case          string            `yaml:"case" validate:"omitempty,oneof=none snake camel lower_camel kebab"`
	Mappings      map[string]string `yaml:"mappings"`
}

// ValuesConfig controls how cell values are rendered
type ValuesConfig struct {
	NullText      string `yaml:"null_text"`
	ListFormat    string `yaml:"list_format" validate:"omitempty,oneof=json joined"`
	ListSeparator string `yaml:"list_separator"`
}

// ErrorsConfig controls recoverable data problems
type ErrorsConfig struct {
	OnMalformed string `yaml:"on_malformed" validate:"required,oneof=skip fail"`
	OnDrift     string `yaml:"on_drift" validate:"required,oneof=drop fail"`
}

// CSVConfig controls the CSV dialect
type CSVConfig struct {
	Delimiter  string            `yaml:"delimiter" validate:"len=1"`
	CRLF       bool              `yaml:"crlf"`
	BufferSize datasize.ByteSize `yaml:"buffer_size" validate:"min=4096"`
}

// ProgressConfig controls progress logging. 0 disables it.
type ProgressConfig struct {
	Every int `yaml:"every" validate:"min=0"`
}

// DevConfig contains development/debug options
type DevConfig struct {
	Debug bool `yaml:"debug"`
	Quiet bool `yaml:"quiet"`
}

// NewConfig creates a new Config with default values
func NewConfig() *Config {
	return &Config{
		Input: InputConfig{
			MaxLineSize: 64 * datasize.MB,
		},
		Flatten: FlattenConfig{
			Enabled:   false,
			Separator: ".",
		},
		Header: HeaderConfig{
			Case:     "none",
			Mappings: make(map[string]string),
		},
		Values: ValuesConfig{
			ListFormat:    "json",
			ListSeparator: "|",
		},
		Errors: ErrorsConfig{
			OnMalformed: MalformedSkip,
			OnDrift:     DriftDrop,
		},
		CSV: CSVConfig{
			Delimiter:  ",",
			BufferSize: 256 * datasize.KB,
		},
		Compression: compression.DefaultConfig(),
		Progress: ProgressConfig{
			Every: DefaultProgressEvery,
		},
	}
}

// LoadConfig loads configuration from a YAML file
func LoadConfig(path string) (*Config, error) {
	// Read file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Start with defaults
	cfg := NewConfig()

	// Parse YAML
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// FindConfigFile searches for a config file in current directory and parents
func FindConfigFile() string {
	configNames := []string{".ndjsoncsv.yml", ".ndjsoncsv.yaml", "ndjsoncsv.yml", "ndjsoncsv.yaml"}

	// Start from current directory
	currentDir, err := os.Getwd()
	if err != nil {
		return ""
	}

	// Search up the directory tree
	for {
		for _, name := range configNames {
			configPath := filepath.Join(currentDir, name)
			if _, err := os.Stat(configPath); err == nil {
				return configPath
			}
		}

		// Move up one directory
		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			// Reached root directory
			break
		}
		currentDir = parentDir
	}

	return ""
}

// Validate checks the struct tags and the rules tags cannot express
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if strings.ContainsAny(c.CSV.Delimiter, "\"\r\n") {
		return fmt.Errorf("invalid configuration: csv delimiter %q is not allowed", c.CSV.Delimiter)
	}
	return nil
}

// Delimiter returns the CSV delimiter as a rune
func (c *Config) Delimiter() rune {
	for _, r := range c.CSV.Delimiter {
		return r
	}
	return ','
}

// Overrides carries command line values. Zero values mean "not set" and keep
// the file or default value, except ProgressEvery where -1 means "not set".
type Overrides struct {
	Input         string
	Output        string
	Flatten       bool
	ExplodeColumn string
	ExplodeAll    bool
	DiscoverLimit int
	ProgressEvery int
	Strict        bool
	OnDrift       string
	ListFormat    string
	SortColumns   bool
	Debug         bool
	Quiet         bool
}

// ApplyOverrides merges CLI values into cfg. Command line values take
// precedence over the config file.
func (c *Config) ApplyOverrides(o Overrides) {
	if o.Input != "" {
		c.Input.Path = o.Input
	}
	if o.Output != "" {
		c.Output.Path = o.Output
	}
	if o.Flatten {
		c.Flatten.Enabled = true
	}
	// An explode flag replaces any explode policy from the file
	if o.ExplodeColumn != "" || o.ExplodeAll {
		c.Explode.Column = o.ExplodeColumn
		c.Explode.All = o.ExplodeAll
	}
	if o.DiscoverLimit > 0 {
		c.Header.DiscoverLimit = o.DiscoverLimit
	}
	if o.ProgressEvery >= 0 {
		c.Progress.Every = o.ProgressEvery
	}
	if o.Strict {
		c.Errors.OnMalformed = MalformedFail
	}
	if o.OnDrift != "" {
		c.Errors.OnDrift = o.OnDrift
	}
	if o.ListFormat != "" {
		c.Values.ListFormat = o.ListFormat
	}
	if o.SortColumns {
		c.Header.Sort = true
	}
	if o.Debug {
		c.Dev.Debug = true
	}
	if o.Quiet {
		c.Dev.Quiet = true
	}
}

// LoadConfigWithCLI loads the config file, if any, and applies CLI precedence
func LoadConfigWithCLI(configPath string, o Overrides) (*Config, error) {
	// Start with defaults
	cfg := NewConfig()

	// Load config file if provided
	if configPath != "" {
		fileConfig, err := LoadConfig(configPath)
		if err != nil {
			return nil, err
		}
		cfg = fileConfig
	}

	cfg.ApplyOverrides(o)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
