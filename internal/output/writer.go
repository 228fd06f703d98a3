package output

import (
	"bufio"
	"encoding/csv"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/c2h5oh/datasize"
	"github.com/mcncl/ndjsoncsv/internal/compression"
	"github.com/mcncl/ndjsoncsv/internal/errors"
	"github.com/mcncl/ndjsoncsv/internal/models"
)

// DefaultBufferSize is the write buffer in front of the codec
const DefaultBufferSize = 256 * datasize.KB

// RowWriter receives the header once and then header-aligned rows.
// Rows are streamed through, never accumulated.
type RowWriter interface {
	WriteHeader(header []string) error
	Write(row models.Row) error
	Close() error
}

// Options for the CSV writer
type Options struct {
	Delimiter   rune
	CRLF        bool
	BufferSize  datasize.ByteSize
	Compression compression.Config
}

// DefaultOptions returns comma separated, LF terminated, uncompressed-by-default settings
func DefaultOptions() Options {
	return Options{
		Delimiter:   ',',
		BufferSize:  DefaultBufferSize,
		Compression: compression.DefaultConfig(),
	}
}

// CSVWriter writes RFC 4180 CSV to a stream or a file
type CSVWriter struct {
	csv     *csv.Writer
	buf     *bufio.Writer
	codec   io.WriteCloser
	file    *os.File
	path    string
	columns int
	count   int
	closed  bool
}

// NewWriter creates a CSV writer over w. Close flushes but does not close w.
func NewWriter(w io.Writer, opts Options) *CSVWriter {
	return newCSVWriter(w, nil, opts)
}

// Create creates path (and its parent directories) and returns a CSV writer
// for it, compressing when the extension asks for it.
// The caller must call Close, or Abort when the output must be discarded.
func Create(path string, opts Options) (*CSVWriter, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.NewOutputError(fmt.Sprintf("failed to create directory '%s'", dir), err)
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, errors.NewOutputError(fmt.Sprintf("failed to create output file '%s'", path), err)
	}

	codec, err := compression.NewWriter(file, compression.TypeFromPath(path), opts.Compression)
	if err != nil {
		_ = file.Close()
		_ = os.Remove(path)
		return nil, errors.NewOutputError(fmt.Sprintf("failed to compress '%s'", path), err)
	}

	w := newCSVWriter(codec, codec, opts)
	w.file = file
	w.path = path
	return w, nil
}

func newCSVWriter(w io.Writer, codec io.WriteCloser, opts Options) *CSVWriter {
	size := int(opts.BufferSize.Bytes())
	if size <= 0 {
		size = int(DefaultBufferSize.Bytes())
	}
	buf := bufio.NewWriterSize(w, size)
	cw := csv.NewWriter(buf)
	if opts.Delimiter != 0 {
		cw.Comma = opts.Delimiter
	}
	cw.UseCRLF = opts.CRLF
	return &CSVWriter{csv: cw, buf: buf, codec: codec}
}

// WriteHeader writes the header row and fixes the row width
func (w *CSVWriter) WriteHeader(header []string) error {
	if err := w.csv.Write(header); err != nil {
		return errors.NewOutputError("failed to write CSV header", err)
	}
	w.columns = len(header)
	return nil
}

// Write writes one data row
func (w *CSVWriter) Write(row models.Row) error {
	if len(row) != w.columns {
		return errors.NewOutputError(fmt.Sprintf("row has %d fields, header has %d", len(row), w.columns), nil)
	}
	if err := w.csv.Write(row); err != nil {
		return errors.NewOutputError(fmt.Sprintf("failed to write CSV row %d", w.count+1), err)
	}
	w.count++
	return nil
}

// Count returns the number of data rows written
func (w *CSVWriter) Count() int {
	return w.count
}

// Close flushes all layers and closes the file if the writer owns one
func (w *CSVWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	var errs []error
	w.csv.Flush()
	if err := w.csv.Error(); err != nil {
		errs = append(errs, err)
	}
	if err := w.buf.Flush(); err != nil {
		errs = append(errs, err)
	}
	if w.codec != nil {
		if err := w.codec.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if w.file != nil {
		if err := w.file.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return errors.NewOutputError("failed to finish CSV output", stderrors.Join(errs...))
	}
	return nil
}

// Abort closes the writer and removes the partially written file
func (w *CSVWriter) Abort() error {
	closeErr := w.Close()
	if w.path == "" {
		return closeErr
	}
	if err := os.Remove(w.path); err != nil && !os.IsNotExist(err) {
		return errors.NewOutputError(fmt.Sprintf("failed to remove partial output '%s'", w.path), err)
	}
	return nil
}
