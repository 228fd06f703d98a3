// Package compression picks a stream codec from a file name and wraps readers
// and writers with it. Plain, gzip and zstd files are supported; gzip can use
// either the standard or the parallel (pgzip) implementation.
package compression

import (
	"fmt"
	"io"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/c2h5oh/datasize"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/klauspost/pgzip"
)

// Type of compression applied to a file
type Type string

const (
	TypeNone Type = "none"
	TypeGZIP Type = "gzip"
	TypeZSTD Type = "zstd"
)

// GZIPImplementation selects the gzip codec
type GZIPImplementation string

const (
	GZIPImplStandard GZIPImplementation = "standard"
	GZIPImplParallel GZIPImplementation = "parallel"
)

const (
	DefaultGZIPLevel     = gzip.BestSpeed
	DefaultGZIPImpl      = GZIPImplStandard
	DefaultGZIPBlockSize = 1 * datasize.MB

	DefaultZSTDLevel = int(zstd.SpeedDefault)
)

// Config for compression writers and readers
type Config struct {
	GZIP GZIPConfig `yaml:"gzip"`
	ZSTD ZSTDConfig `yaml:"zstd"`
}

type GZIPConfig struct {
	Level       int                `yaml:"level" validate:"min=1,max=9"`
	Impl        GZIPImplementation `yaml:"impl" validate:"required,oneof=standard parallel"`
	BlockSize   datasize.ByteSize  `yaml:"block_size" validate:"min=16384,max=104857600"` // 16kB-100MB
	Concurrency int                `yaml:"concurrency" validate:"min=0"`                  // 0 = auto
}

type ZSTDConfig struct {
	Level       int `yaml:"level" validate:"min=1,max=4"`
	Concurrency int `yaml:"concurrency" validate:"min=0"` // 0 = auto
}

// DefaultConfig returns the codec settings used when nothing is configured
func DefaultConfig() Config {
	return Config{
		GZIP: GZIPConfig{
			Level:     DefaultGZIPLevel,
			Impl:      DefaultGZIPImpl,
			BlockSize: DefaultGZIPBlockSize,
		},
		ZSTD: ZSTDConfig{
			Level: DefaultZSTDLevel,
		},
	}
}

// TypeFromPath detects the compression from the file extension
func TypeFromPath(path string) Type {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gz", ".gzip":
		return TypeGZIP
	case ".zst", ".zstd":
		return TypeZSTD
	default:
		return TypeNone
	}
}

// NewReader decompresses r. Closing the result does not close r.
func NewReader(r io.Reader, t Type, cfg Config) (io.ReadCloser, error) {
	switch t {
	case TypeNone, "":
		return io.NopCloser(r), nil
	case TypeGZIP:
		if cfg.GZIP.Impl == GZIPImplParallel {
			reader, err := pgzip.NewReaderN(r, int(cfg.GZIP.BlockSize.Bytes()), concurrency(cfg.GZIP.Concurrency))
			if err != nil {
				return nil, fmt.Errorf("cannot create parallel gzip reader: %w", err)
			}
			return reader, nil
		}
		reader, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("cannot create gzip reader: %w", err)
		}
		return reader, nil
	case TypeZSTD:
		decoder, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(concurrency(cfg.ZSTD.Concurrency)))
		if err != nil {
			return nil, fmt.Errorf("cannot create zstd reader: %w", err)
		}
		return decoder.IOReadCloser(), nil
	default:
		return nil, fmt.Errorf("unexpected compression type %q", t)
	}
}

// NewWriter compresses into w. Closing the result flushes the codec but does not close w.
func NewWriter(w io.Writer, t Type, cfg Config) (io.WriteCloser, error) {
	switch t {
	case TypeNone, "":
		return nopWriteCloser{Writer: w}, nil
	case TypeGZIP:
		if cfg.GZIP.Impl == GZIPImplParallel {
			writer, err := pgzip.NewWriterLevel(w, cfg.GZIP.Level)
			if err != nil {
				return nil, fmt.Errorf("cannot create parallel gzip writer: %w", err)
			}
			if err := writer.SetConcurrency(int(cfg.GZIP.BlockSize.Bytes()), concurrency(cfg.GZIP.Concurrency)); err != nil {
				return nil, fmt.Errorf("cannot configure parallel gzip writer: %w", err)
			}
			return writer, nil
		}
		writer, err := gzip.NewWriterLevel(w, cfg.GZIP.Level)
		if err != nil {
			return nil, fmt.Errorf("cannot create gzip writer: %w", err)
		}
		return writer, nil
	case TypeZSTD:
		encoder, err := zstd.NewWriter(w,
			zstd.WithEncoderLevel(zstd.EncoderLevel(cfg.ZSTD.Level)),
			zstd.WithEncoderConcurrency(concurrency(cfg.ZSTD.Concurrency)),
		)
		if err != nil {
			return nil, fmt.Errorf("cannot create zstd writer: %w", err)
		}
		return encoder, nil
	default:
		return nil, fmt.Errorf("unexpected compression type %q", t)
	}
}

func concurrency(n int) int {
	if n <= 0 {
		return runtime.GOMAXPROCS(0)
	}
	return n
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }
