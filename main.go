package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"
	"github.com/dustin/go-humanize"
	"github.com/mcncl/ndjsoncsv/internal/config"
	"github.com/mcncl/ndjsoncsv/internal/errors"
	"github.com/mcncl/ndjsoncsv/internal/logging"
	"github.com/mcncl/ndjsoncsv/internal/pipeline"
	"go.uber.org/zap"
)

// cliFlags defines the command-line interface
type cliFlags struct {
	Input         string `help:"Path to the NDJSON input (.gz and .zst are decompressed)." short:"i" type:"path"`
	Output        string `help:"Path to the CSV output (.gz and .zst are compressed)." short:"o" type:"path"`
	Flatten       bool   `help:"Flatten nested objects into dotted column names."`
	ExplodeColumn string `help:"Emit one row per element of this list column." xor:"explode"`
	ExplodeAll    bool   `help:"Emit the cartesian product of all list columns." xor:"explode"`
	DiscoverLimit int    `help:"Only use the first N records to discover columns (0 scans everything)."`
	ProgressEvery int    `help:"Log progress every N lines or rows (0 disables it)." default:"-1"`
	Strict        bool   `help:"Fail on malformed lines instead of skipping them."`
	OnDrift       string `help:"What to do with columns missing from the header (drop, fail)."`
	ListFormat    string `help:"How unexploded lists are written (json, joined)."`
	SortColumns   bool   `help:"Sort the header alphabetically."`
	Config        string `help:"Path to configuration file." short:"c" type:"path"`
	Debug         bool   `help:"Enable debug logging." short:"d"`
	Quiet         bool   `help:"Only log warnings and errors." short:"q"`
	Version       bool   `help:"Show version information." short:"v"`
}

// CLI holds the parsed command-line flags
var CLI cliFlags

// Validate rejects flag values kong cannot express as constraints
func (c *cliFlags) Validate() error {
	if c.DiscoverLimit < 0 {
		return errors.NewConfigError(
			fmt.Sprintf("--discover-limit must be 0 or greater, got %d", c.DiscoverLimit), errors.ErrInvalidFlag)
	}
	if c.ProgressEvery < -1 {
		return errors.NewConfigError(
			fmt.Sprintf("--progress-every must be 0 or greater, got %d", c.ProgressEvery), errors.ErrInvalidFlag)
	}
	return nil
}

// Context holds the runtime context
type Context struct {
	Config *config.Config
	Logger *zap.Logger
}

// Version information
const (
	Version = "0.1.0"
)

func main() {
	// Parse CLI arguments with Kong
	parser := kong.Must(&CLI,
		kong.Name("ndjsoncsv"),
		kong.Description("Convert newline-delimited JSON to CSV"),
		kong.UsageOnError(),
	)

	// Parse the command line arguments
	_, err := parser.Parse(os.Args[1:])
	parser.FatalIfErrorf(err)

	// Show version and exit if requested
	if CLI.Version {
		fmt.Printf("ndjsoncsv version %s\n", Version)
		return
	}

	ctx, err := newContext()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", errors.UserFriendlyError(err))
		os.Exit(errors.ExitCode(err))
	}
	defer func() { _ = ctx.Logger.Sync() }()

	if err := run(ctx); err != nil {
		// Use our custom error handling to provide user-friendly error messages
		fmt.Fprintf(os.Stderr, "%s\n", errors.UserFriendlyError(err))

		// Show help on usage errors
		if errors.ExitCode(err) == 1 {
			fmt.Fprintf(os.Stderr, "\nFor help, run: ndjsoncsv --help\n")
		}

		_ = ctx.Logger.Sync()
		os.Exit(errors.ExitCode(err))
	}
}

// newContext loads the configuration and builds the logger
func newContext() (*Context, error) {
	if err := CLI.Validate(); err != nil {
		return nil, err
	}

	configPath := CLI.Config
	if configPath == "" {
		configPath = config.FindConfigFile()
	}

	cfg, err := config.LoadConfigWithCLI(configPath, overrides())
	if err != nil {
		return nil, errors.NewConfigError("failed to load configuration", err)
	}

	logger := logging.NewStderrLogger(cfg.Dev.Debug, cfg.Dev.Quiet)
	if configPath != "" {
		logger.Debug("loaded configuration", zap.String("path", configPath))
	}
	return &Context{Config: cfg, Logger: logger}, nil
}

// overrides collects the flags that take precedence over the config file
func overrides() config.Overrides {
	return config.Overrides{
		Input:         CLI.Input,
		Output:        CLI.Output,
		Flatten:       CLI.Flatten,
		ExplodeColumn: CLI.ExplodeColumn,
		ExplodeAll:    CLI.ExplodeAll,
		DiscoverLimit: CLI.DiscoverLimit,
		ProgressEvery: CLI.ProgressEvery,
		Strict:        CLI.Strict,
		OnDrift:       CLI.OnDrift,
		ListFormat:    CLI.ListFormat,
		SortColumns:   CLI.SortColumns,
		Debug:         CLI.Debug,
		Quiet:         CLI.Quiet,
	}
}

// run executes the main program logic
func run(ctx *Context) error {
	logger := ctx.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	// 1. Resolve run options
	opts, err := pipeline.FromConfig(ctx.Config)
	if err != nil {
		return err
	}
	logger.Debug("starting conversion",
		zap.String("input", opts.Input),
		zap.String("output", opts.Output),
		zap.Bool("flatten", opts.Flatten),
		zap.Stringer("explode", opts.Explode),
	)

	// 2. Discover the header and convert
	stats, err := pipeline.Run(opts, logger)
	if err != nil {
		return err
	}

	// 3. Report what was skipped
	logger.Info("conversion finished", stats.Fields()...)
	if stats.Clean() {
		return nil
	}
	if stats.Malformed > 0 {
		logger.Warn(fmt.Sprintf("skipped %s malformed lines", humanize.Comma(int64(stats.Malformed))))
	}
	if stats.DroppedValues > 0 {
		logger.Warn(fmt.Sprintf("dropped %s values from %s records with columns outside the header",
			humanize.Comma(int64(stats.DroppedValues)), humanize.Comma(int64(stats.DriftedRecords))))
	}
	return nil
}
