// Package pipeline converts an NDJSON file to CSV in two streaming passes.
//
// Pass 1 reads the input until EOF or the discovery limit and builds the
// header. Pass 2 reads the whole input again and writes one row per
// exploded record, so memory stays bounded by the header and one record.
package pipeline

import (
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/mcncl/ndjsoncsv/internal/errors"
	"github.com/mcncl/ndjsoncsv/internal/explode"
	"github.com/mcncl/ndjsoncsv/internal/flatten"
	"github.com/mcncl/ndjsoncsv/internal/formatter"
	"github.com/mcncl/ndjsoncsv/internal/input"
	"github.com/mcncl/ndjsoncsv/internal/models"
	"github.com/mcncl/ndjsoncsv/internal/output"
	"github.com/mcncl/ndjsoncsv/internal/parser"
	"github.com/mcncl/ndjsoncsv/internal/schema"
	"go.uber.org/zap"
)

// Pipeline runs the discovery and conversion passes
type Pipeline struct {
	opts      Options
	logger    *zap.Logger
	flattener *flatten.Flattener
	formatter *formatter.Formatter
}

// New creates a pipeline. A nil logger discards all log output.
func New(opts Options, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Separator == "" {
		opts.Separator = flatten.DefaultSeparator
	}
	return &Pipeline{
		opts:      opts,
		logger:    logger,
		flattener: flatten.New(opts.Flatten, opts.Separator),
		formatter: formatter.NewFormatter(opts.Format),
	}
}

// Run converts opts.Input to opts.Output
func Run(opts Options, logger *zap.Logger) (Stats, error) {
	return New(opts, logger).Run()
}

// Run executes both passes and returns the counters of the run.
// The output file is only created once discovery succeeded.
func (p *Pipeline) Run() (Stats, error) {
	var stats Stats
	header, err := p.Discover(&stats)
	if err != nil {
		return stats, err
	}
	if err := p.Convert(header, &stats); err != nil {
		return stats, err
	}
	return stats, nil
}

// Discover runs pass 1 and returns the header
func (p *Pipeline) Discover(stats *Stats) (models.Header, error) {
	logger := p.logger.Named("pass1")

	src, err := input.Open(p.opts.Input, p.opts.InputOptions)
	if err != nil {
		return nil, err
	}
	defer func() { _ = src.Close() }()

	var readErr error
	records := func(yield func(*models.FlatRecord) bool) {
		for src.Next() {
			stats.DiscoveryLines++
			if p.progress(stats.DiscoveryLines) {
				logger.Info(fmt.Sprintf("scanned %s lines", humanize.Comma(int64(stats.DiscoveryLines))))
			}

			rec, err := p.record(src, logger)
			if err != nil {
				readErr = err
				return
			}
			if rec == nil {
				continue
			}
			stats.RecordsDiscovered++
			if !yield(rec) {
				return
			}
		}
		readErr = src.Err()
	}

	header := schema.Discover(records, p.opts.DiscoverLimit)
	if readErr != nil {
		return nil, readErr
	}

	if stats.DiscoveryLines == 0 {
		return nil, errors.NewInputError(fmt.Sprintf("'%s' has no NDJSON lines", p.opts.Input), errors.ErrEmptyInput)
	}
	if p.opts.DiscoverLimit > 0 && stats.RecordsDiscovered >= p.opts.DiscoverLimit {
		logger.Info(fmt.Sprintf("stopped at discovery limit %s records", humanize.Comma(int64(p.opts.DiscoverLimit))))
	}

	if len(header) == 0 {
		return nil, errors.NewSchemaError(
			fmt.Sprintf("none of the %s scanned lines produced a column", humanize.Comma(int64(stats.DiscoveryLines))),
			errors.ErrNoColumns,
		)
	}
	if p.opts.SortColumns {
		header = schema.Sorted(header)
	}

	stats.Columns = len(header)
	logger.Info(fmt.Sprintf("done. lines: %s, columns: %s",
		humanize.Comma(int64(stats.DiscoveryLines)), humanize.Comma(int64(len(header)))))
	logger.Debug("discovered header", zap.Strings("columns", header))
	return header, nil
}

// Convert runs pass 2. On failure the partially written output is removed.
func (p *Pipeline) Convert(header models.Header, stats *Stats) (err error) {
	src, err := input.Open(p.opts.Input, p.opts.InputOptions)
	if err != nil {
		return err
	}
	defer func() { _ = src.Close() }()

	sink, err := output.Create(p.opts.Output, p.opts.OutputOptions)
	if err != nil {
		return err
	}
	defer func() {
		if err == nil {
			err = sink.Close()
		}
		if err != nil {
			if abortErr := sink.Abort(); abortErr != nil {
				err = stderrors.Join(err, abortErr)
			}
		}
	}()

	if err := p.WriteRows(src, sink, header, stats); err != nil {
		return err
	}

	p.logger.Named("pass2").Info(fmt.Sprintf("finished. total rows: %s. output: %s",
		humanize.Comma(int64(sink.Count())), p.opts.Output))
	return nil
}

// WriteRows streams every record of src through flatten, explode and format into sink
func (p *Pipeline) WriteRows(src *input.Reader, sink output.RowWriter, header models.Header, stats *Stats) error {
	logger := p.logger.Named("pass2")

	if err := sink.WriteHeader(schema.Rename(header, p.opts.Case, p.opts.Separator, p.opts.Mappings)); err != nil {
		return err
	}

	index := header.Index()
	exploder := explode.New(p.opts.Explode, header)
	logger.Debug("writing rows", zap.Stringer("explode", exploder.Policy()), zap.Int("columns", len(header)))
	for src.Next() {
		stats.ConversionLines++

		rec, err := p.record(src, logger)
		if err != nil {
			return err
		}
		if rec == nil {
			stats.Malformed++
			continue
		}

		if extra := schema.Undiscovered(rec, index); len(extra) > 0 {
			if p.opts.FailOnDrift {
				return errors.NewSchemaError(
					fmt.Sprintf("line %d has columns missing from the header: %s", src.LineNumber(), strings.Join(extra, ", ")),
					errors.ErrSchemaDrift,
				)
			}
			stats.DriftedRecords++
			stats.DroppedValues += len(extra)
			logger.Debug("dropping undiscovered columns", zap.Int("line", src.LineNumber()), zap.Strings("columns", extra))
		}

		for exploded := range exploder.Explode(rec) {
			if err := sink.Write(p.formatter.Format(exploded, header)); err != nil {
				return err
			}
			stats.RowsWritten++
			if p.progress(stats.RowsWritten) {
				logger.Info(fmt.Sprintf("wrote %s rows", humanize.Comma(int64(stats.RowsWritten))))
			}
		}
	}
	return src.Err()
}

// record parses and flattens the current line. A nil record without an
// error means the line was malformed and skipped.
func (p *Pipeline) record(src *input.Reader, logger *zap.Logger) (*models.FlatRecord, error) {
	obj, err := parser.ParseRecord(src.Line())
	if err != nil {
		if p.opts.Strict {
			return nil, lineError(src.LineNumber(), err)
		}
		logger.Debug("skipping malformed line", zap.Int("line", src.LineNumber()), zap.Error(err))
		return nil, nil
	}
	return p.flattener.Record(obj), nil
}

func (p *Pipeline) progress(n int) bool {
	return p.opts.ProgressEvery > 0 && n%p.opts.ProgressEvery == 0
}

// lineError prefixes a parsing error with its line number
func lineError(line int, err error) error {
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		return errors.NewParsingError(fmt.Sprintf("line %d: %s", line, appErr.Message), appErr.Err)
	}
	return errors.NewParsingError(fmt.Sprintf("line %d", line), err)
}
