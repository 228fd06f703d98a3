package pipeline

import (
	"path/filepath"

	"github.com/mcncl/ndjsoncsv/internal/config"
	"github.com/mcncl/ndjsoncsv/internal/errors"
	"github.com/mcncl/ndjsoncsv/internal/explode"
	"github.com/mcncl/ndjsoncsv/internal/flatten"
	"github.com/mcncl/ndjsoncsv/internal/formatter"
	"github.com/mcncl/ndjsoncsv/internal/input"
	"github.com/mcncl/ndjsoncsv/internal/output"
	"github.com/mcncl/ndjsoncsv/internal/schema"
)

// Options for one conversion run
type Options struct {
	Input  string
	Output string

	InputOptions  input.Options
	OutputOptions output.Options

	Flatten   bool
	Separator string
	Explode   explode.Policy

	DiscoverLimit int
	SortColumns   bool
	Case          schema.CaseStyle
	Mappings      map[string]string

	Format formatter.Options

	// Strict makes malformed lines fatal instead of skipping them
	Strict bool
	// FailOnDrift makes undiscovered columns fatal instead of dropping them
	FailOnDrift bool

	// ProgressEvery logs progress every N lines in pass 1 and N rows in pass 2. 0 disables it.
	ProgressEvery int
}

// DefaultOptions converts in to out without flattening or exploding
func DefaultOptions(in, out string) Options {
	return Options{
		Input:         in,
		Output:        out,
		InputOptions:  input.DefaultOptions(),
		OutputOptions: output.DefaultOptions(),
		Separator:     flatten.DefaultSeparator,
		Explode:       explode.None(),
		Case:          schema.CaseNone,
		Format:        formatter.DefaultOptions(),
		ProgressEvery: config.DefaultProgressEvery,
	}
}

// FromConfig builds run options from a validated configuration
func FromConfig(cfg *config.Config) (Options, error) {
	if cfg.Input.Path == "" {
		return Options{}, errors.NewConfigError("no input file given", errors.ErrInvalidFilePath)
	}
	if cfg.Output.Path == "" {
		return Options{}, errors.NewConfigError("no output file given", errors.ErrInvalidFilePath)
	}
	if sameFile(cfg.Input.Path, cfg.Output.Path) {
		return Options{}, errors.NewConfigError("input and output must be different files", errors.ErrInvalidFilePath)
	}

	policy, err := explode.ParsePolicy(cfg.Explode.Column, cfg.Explode.All)
	if err != nil {
		return Options{}, err
	}
	listFormat, err := formatter.ParseListFormat(cfg.Values.ListFormat)
	if err != nil {
		return Options{}, errors.NewConfigError("invalid list format", err)
	}
	style, err := schema.ParseCaseStyle(cfg.Header.Case)
	if err != nil {
		return Options{}, errors.NewConfigError("invalid column case", err)
	}

	return Options{
		Input:  cfg.Input.Path,
		Output: cfg.Output.Path,
		InputOptions: input.Options{
			MaxLineSize: cfg.Input.MaxLineSize,
			Compression: cfg.Compression,
		},
		OutputOptions: output.Options{
			Delimiter:   cfg.Delimiter(),
			CRLF:        cfg.CSV.CRLF,
			BufferSize:  cfg.CSV.BufferSize,
			Compression: cfg.Compression,
		},
		Flatten:       cfg.Flatten.Enabled,
		Separator:     cfg.Flatten.Separator,
		Explode:       policy,
		DiscoverLimit: cfg.Header.DiscoverLimit,
		SortColumns:   cfg.Header.Sort,
		Case:          style,
		Mappings:      cfg.Header.Mappings,
		Format: formatter.Options{
			NullText:      cfg.Values.NullText,
			ListFormat:    listFormat,
			ListSeparator: cfg.Values.ListSeparator,
		},
		Strict:        cfg.Errors.OnMalformed == config.MalformedFail,
		FailOnDrift:   cfg.Errors.OnDrift == config.DriftFail,
		ProgressEvery: cfg.Progress.Every,
	}, nil
}

func sameFile(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	return absA == absB
}
