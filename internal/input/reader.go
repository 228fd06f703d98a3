// Package input streams the lines of an NDJSON file, decompressing it when
// the file name asks for it.
package input

import (
	"bufio"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/c2h5oh/datasize"
	"github.com/mcncl/ndjsoncsv/internal/compression"
	"github.com/mcncl/ndjsoncsv/internal/errors"
)

// DefaultMaxLineSize bounds the buffer used for a single line
const DefaultMaxLineSize = 64 * datasize.MB

// Options for opening a line reader
type Options struct {
	MaxLineSize datasize.ByteSize
	Compression compression.Config
}

// DefaultOptions returns the options used when nothing is configured
func DefaultOptions() Options {
	return Options{
		MaxLineSize: DefaultMaxLineSize,
		Compression: compression.DefaultConfig(),
	}
}

// Reader yields the non-blank lines of an NDJSON stream in order.
// It is a scoped resource: Close must be called on every exit path.
type Reader struct {
	scanner  *bufio.Scanner
	closers  []io.Closer
	line     []byte
	lineNo   int
	maxBytes datasize.ByteSize
	err      error
}

// Open opens path and prepares it for line reading
func Open(path string, opts Options) (*Reader, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.NewInputError("file path is empty", errors.ErrInvalidFilePath)
	}
	file, err := os.Open(path)
	if err != nil {
		// Check if the file doesn't exist
		if os.IsNotExist(err) {
			return nil, errors.NewInputError(
				fmt.Sprintf("file '%s' not found", path),
				errors.ErrFileNotFound,
			)
		}
		return nil, errors.NewInputError(fmt.Sprintf("failed to open file '%s'", path), err)
	}

	stat, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, errors.NewInputError(fmt.Sprintf("failed to get file stats for '%s'", path), err)
	}
	if stat.IsDir() {
		_ = file.Close()
		return nil, errors.NewInputError(fmt.Sprintf("'%s' is a directory", path), errors.ErrInvalidFilePath)
	}

	// Size is not checked: pipes and /dev/stdin report 0
	decompressed, err := compression.NewReader(file, compression.TypeFromPath(path), opts.Compression)
	if err != nil {
		_ = file.Close()
		if stderrors.Is(err, io.EOF) {
			return nil, errors.NewInputError(fmt.Sprintf("'%s' has no NDJSON lines", path), errors.ErrEmptyInput)
		}
		return nil, errors.NewInputError(fmt.Sprintf("failed to decompress '%s'", path), err)
	}

	r := NewReader(decompressed, opts.MaxLineSize)
	// Codec first, then the file
	r.closers = []io.Closer{decompressed, file}
	return r, nil
}

// NewReader reads lines from an already opened stream. Close is a no-op
// unless the reader was created by Open.
func NewReader(rd io.Reader, maxLineSize datasize.ByteSize) *Reader {
	if maxLineSize == 0 {
		maxLineSize = DefaultMaxLineSize
	}
	scanner := bufio.NewScanner(rd)
	initial := 64 * 1024
	if uint64(initial) > maxLineSize.Bytes() {
		initial = int(maxLineSize.Bytes())
	}
	scanner.Buffer(make([]byte, 0, initial), int(maxLineSize.Bytes()))
	return &Reader{scanner: scanner, maxBytes: maxLineSize}
}

// Next advances to the next non-blank line. It returns false at EOF or on error.
func (r *Reader) Next() bool {
	if r.err != nil {
		return false
	}
	for r.scanner.Scan() {
		r.lineNo++
		line := trimSpace(r.scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		r.line = line
		return true
	}
	if err := r.scanner.Err(); err != nil {
		if stderrors.Is(err, bufio.ErrTooLong) {
			r.err = errors.NewInputError(
				fmt.Sprintf("line %d is longer than %s", r.lineNo+1, r.maxBytes.HR()),
				errors.ErrLineTooLong,
			)
		} else {
			r.err = errors.NewInputError(fmt.Sprintf("failed to read line %d", r.lineNo+1), err)
		}
	}
	r.line = nil
	return false
}

// Line returns the current line. The slice is only valid until the next call to Next.
func (r *Reader) Line() []byte { return r.line }

// LineNumber returns the 1-based physical line number of the current line, blank lines included
func (r *Reader) LineNumber() int { return r.lineNo }

// Err returns the first read error, nil at a clean EOF
func (r *Reader) Err() error { return r.err }

// Close releases the codec and the file
func (r *Reader) Close() error {
	var errs []error
	for _, c := range r.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	r.closers = nil
	if len(errs) > 0 {
		return errors.NewInputError("failed to close input", stderrors.Join(errs...))
	}
	return nil
}

// trimSpace strips JSON whitespace, and a UTF-8 BOM at the start of a line
func trimSpace(b []byte) []byte {
	b = trimBOM(b)
	start, end := 0, len(b)
	for start < end && isSpace(b[start]) {
		start++
	}
	for end > start && isSpace(b[end-1]) {
		end--
	}
	return b[start:end]
}

func trimBOM(b []byte) []byte {
	if len(b) >= 3 && b[0] == 0xEF && b[1] == 0xBB && b[2] == 0xBF {
		return b[3:]
	}
	return b
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\n'
}
