package pipeline

import (
	"bytes"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/mcncl/ndjsoncsv/internal/compression"
	"github.com/mcncl/ndjsoncsv/internal/config"
	"github.com/mcncl/ndjsoncsv/internal/errors"
	"github.com/mcncl/ndjsoncsv/internal/explode"
	"github.com/mcncl/ndjsoncsv/internal/input"
	"github.com/mcncl/ndjsoncsv/internal/models"
	"github.com/mcncl/ndjsoncsv/internal/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func writeInput(t *testing.T, name string, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0644))
	return path
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	file, err := os.Open(path)
	require.NoError(t, err)
	defer func() { _ = file.Close() }()

	rd, err := compression.NewReader(file, compression.TypeFromPath(path), compression.DefaultConfig())
	require.NoError(t, err)
	defer func() { _ = rd.Close() }()

	records, err := csv.NewReader(rd).ReadAll()
	require.NoError(t, err)
	return records
}

func options(t *testing.T, in string) Options {
	t.Helper()
	opts := DefaultOptions(in, filepath.Join(t.TempDir(), "out.csv"))
	opts.Flatten = true
	opts.ProgressEvery = 0
	return opts
}

func TestRun_ExplodeColumn(t *testing.T) {
	in := writeInput(t, "in.ndjson",
		`{"id":1,"tags":["a","b"]}`,
		`{"id":2,"tags":["c"]}`,
	)
	opts := options(t, in)
	opts.Explode = explode.Single("tags")

	core, logs := observer.New(zapcore.DebugLevel)
	stats, err := Run(opts, zap.New(core))
	require.NoError(t, err)

	assert.Equal(t, [][]string{
		{"id", "tags"},
		{"1", "a"},
		{"1", "b"},
		{"2", "c"},
	}, readCSV(t, opts.Output))
	assert.Equal(t, 3, stats.RowsWritten)
	assert.Equal(t, 2, stats.Columns)
	assert.Equal(t, 2, stats.RecordsDiscovered)
	assert.True(t, stats.Clean())

	writing := logs.FilterMessage("writing rows").All()
	require.Len(t, writing, 1)
	assert.Equal(t, "single(tags)", writing[0].ContextMap()["explode"])
	assert.Equal(t, 1, logs.FilterMessage("finished. total rows: 3. output: "+opts.Output).Len())
}

func TestRun_ExplodeAll(t *testing.T) {
	in := writeInput(t, "in.ndjson", `{"tags":["a","b"],"sizes":[1,2]}`)
	opts := options(t, in)
	opts.Explode = explode.All()

	stats, err := Run(opts, nil)
	require.NoError(t, err)

	assert.Equal(t, [][]string{
		{"tags", "sizes"},
		{"a", "1"},
		{"a", "2"},
		{"b", "1"},
		{"b", "2"},
	}, readCSV(t, opts.Output))
	assert.Equal(t, 4, stats.RowsWritten)
}

func TestRun_DiscoverLimitDropsDrift(t *testing.T) {
	in := writeInput(t, "in.ndjson",
		`{"id":1}`,
		`{"id":2,"extra":"x"}`,
	)
	opts := options(t, in)
	opts.DiscoverLimit = 1

	stats, err := Run(opts, nil)
	require.NoError(t, err)

	assert.Equal(t, [][]string{{"id"}, {"1"}, {"2"}}, readCSV(t, opts.Output))
	assert.Equal(t, 1, stats.DiscoveryLines)
	assert.Equal(t, 2, stats.ConversionLines)
	assert.Equal(t, 1, stats.DriftedRecords)
	assert.Equal(t, 1, stats.DroppedValues)
	assert.False(t, stats.Clean())
}

func TestRun_DriftFails(t *testing.T) {
	in := writeInput(t, "in.ndjson",
		`{"id":1}`,
		`{"id":2,"extra":"x"}`,
	)
	opts := options(t, in)
	opts.DiscoverLimit = 1
	opts.FailOnDrift = true

	_, err := Run(opts, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrSchemaDrift)
	assert.Contains(t, err.Error(), "line 2")
	assert.Equal(t, 4, errors.ExitCode(err))

	// The partial output is removed
	assert.NoFileExists(t, opts.Output)
}

func TestRun_NestedAndMissingColumns(t *testing.T) {
	in := writeInput(t, "in.ndjson",
		`{"user":{"name":"Ann","address":{"city":"Oslo"}},"active":true}`,
		``,
		`{"user":{"name":"Bob"},"score":2.50,"meta":null}`,
	)
	opts := options(t, in)

	_, err := Run(opts, nil)
	require.NoError(t, err)

	assert.Equal(t, [][]string{
		{"user.name", "user.address.city", "active", "score", "meta"},
		{"Ann", "Oslo", "true", "", ""},
		{"Bob", "", "", "2.5", ""},
	}, readCSV(t, opts.Output))
}

func TestRun_WithoutFlatten(t *testing.T) {
	in := writeInput(t, "in.ndjson", `{"id":1,"user":{"name":"Ann"},"tags":["a","b"]}`)
	opts := options(t, in)
	opts.Flatten = false

	_, err := Run(opts, nil)
	require.NoError(t, err)

	assert.Equal(t, [][]string{
		{"id", "user", "tags"},
		{"1", `{"name":"Ann"}`, `["a","b"]`},
	}, readCSV(t, opts.Output))
}

func TestRun_ListCellsKeepMarkup(t *testing.T) {
	in := writeInput(t, "in.ndjson", `{"id":1,"html":["<a href=\"x\">","&amp;"],"meta":{"q":"a<b"}}`)
	opts := options(t, in)
	opts.Flatten = false

	_, err := Run(opts, nil)
	require.NoError(t, err)

	assert.Equal(t, [][]string{
		{"id", "html", "meta"},
		{"1", `["<a href=\"x\">","&amp;"]`, `{"q":"a<b"}`},
	}, readCSV(t, opts.Output))
}

func TestRun_SkipsMalformedLines(t *testing.T) {
	in := writeInput(t, "in.ndjson",
		`{"id":1}`,
		`{"id":`,
		`[1,2]`,
		`{"id":2} {"id":3}`,
		`{"id" 2}`,
		`{"id":3,}`,
		`{"id":4 "x":5}`,
		`{"id":01}`,
		`{"id":4}`,
	)
	opts := options(t, in)

	core, logs := observer.New(zapcore.DebugLevel)
	stats, err := Run(opts, zap.New(core))
	require.NoError(t, err)

	// Columns of rejected lines never reach the header
	assert.Equal(t, [][]string{{"id"}, {"1"}, {"4"}}, readCSV(t, opts.Output))
	assert.Equal(t, 7, stats.Malformed)
	assert.Equal(t, 9, stats.ConversionLines)
	assert.Equal(t, 2, stats.RecordsDiscovered)
	assert.False(t, stats.Clean())

	// Both passes log every skipped line
	skipped := logs.FilterMessage("skipping malformed line").All()
	require.Len(t, skipped, 14)
	pass2 := 0
	for _, entry := range skipped {
		if entry.LoggerName == "pass2" {
			pass2++
		}
	}
	assert.Equal(t, 7, pass2)
}

func TestRun_StrictFailsOnMalformedLine(t *testing.T) {
	in := writeInput(t, "in.ndjson", `{"id":1}`, `not json`)
	opts := options(t, in)
	opts.Strict = true

	_, err := Run(opts, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
	assert.Equal(t, 4, errors.ExitCode(err))

	// Discovery failed, so no output was created
	assert.NoFileExists(t, opts.Output)
}

func TestRun_EmptyInput(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr error
	}{
		{name: "zero bytes", content: "", wantErr: errors.ErrEmptyInput},
		{name: "blank lines", content: "\n  \n\n", wantErr: errors.ErrEmptyInput},
		{name: "only empty objects", content: "{}\n{}\n", wantErr: errors.ErrNoColumns},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := filepath.Join(t.TempDir(), "in.ndjson")
			require.NoError(t, os.WriteFile(in, []byte(tt.content), 0644))
			opts := options(t, in)

			_, err := Run(opts, nil)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.NoFileExists(t, opts.Output)
		})
	}
}

func TestRun_MissingInput(t *testing.T) {
	opts := options(t, filepath.Join(t.TempDir(), "missing.ndjson"))

	_, err := Run(opts, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrFileNotFound)
	assert.Equal(t, 2, errors.ExitCode(err))
}

func TestRun_Gzip(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.ndjson.gz")

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := io.WriteString(zw, "{\"id\":1,\"name\":\"Ann\"}\n{\"id\":2,\"name\":\"Bob\"}\n")
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, os.WriteFile(in, buf.Bytes(), 0644))

	for _, out := range []string{"out.csv.gz", "out.csv.zst", "nested/dir/out.csv"} {
		t.Run(out, func(t *testing.T) {
			opts := options(t, in)
			opts.Output = filepath.Join(dir, out)

			_, err := Run(opts, nil)
			require.NoError(t, err)
			assert.Equal(t, [][]string{{"id", "name"}, {"1", "Ann"}, {"2", "Bob"}}, readCSV(t, opts.Output))
		})
	}
}

func TestRun_HeaderOptions(t *testing.T) {
	in := writeInput(t, "in.ndjson", `{"userName":"Ann","geo":{"countryCode":"NO"},"id":1}`)
	opts := options(t, in)
	opts.SortColumns = true
	opts.Case = schema.CaseSnake
	opts.Mappings = map[string]string{"id": "ID"}

	_, err := Run(opts, nil)
	require.NoError(t, err)

	assert.Equal(t, [][]string{
		{"geo.country_code", "ID", "user_name"},
		{"NO", "1", "Ann"},
	}, readCSV(t, opts.Output))
}

func TestRun_Progress(t *testing.T) {
	in := writeInput(t, "in.ndjson", `{"id":1}`, `{"id":2}`, `{"id":3}`, `{"id":4}`)
	opts := options(t, in)
	opts.ProgressEvery = 2

	core, logs := observer.New(zapcore.InfoLevel)
	_, err := Run(opts, zap.New(core))
	require.NoError(t, err)

	assert.Equal(t, 1, logs.FilterMessage("scanned 2 lines").Len())
	assert.Equal(t, 1, logs.FilterMessage("wrote 4 rows").Len())
	assert.Equal(t, 1, logs.FilterMessage("done. lines: 4, columns: 1").Len())
}

type memorySink struct {
	header []string
	rows   []models.Row
}

func (m *memorySink) WriteHeader(header []string) error {
	m.header = header
	return nil
}

func (m *memorySink) Write(row models.Row) error {
	m.rows = append(m.rows, row)
	return nil
}

func (m *memorySink) Close() error { return nil }

func TestWriteRows_RowWidthMatchesHeader(t *testing.T) {
	src := input.NewReader(strings.NewReader(
		"{\"a\":1,\"list\":[1,2,3],\"other\":[]}\n{\"b\":{\"c\":[\"x\"]}}\n{\"a\":[]}\n",
	), 0)
	header := models.Header{"a", "list", "other", "b.c"}

	p := New(Options{Flatten: true, Explode: explode.All()}, nil)
	var stats Stats
	sink := &memorySink{}
	require.NoError(t, p.WriteRows(src, sink, header, &stats))

	assert.Equal(t, []string{"a", "list", "other", "b.c"}, sink.header)
	// 3*1 rows, then 1, then 1 with an empty list placeholder
	require.Len(t, sink.rows, 5)
	for _, row := range sink.rows {
		assert.Len(t, row, len(header))
	}
	assert.Equal(t, models.Row{"", "", "", "x"}, sink.rows[3])
	assert.Equal(t, models.Row{"", "", "", ""}, sink.rows[4])
	assert.Equal(t, 5, stats.RowsWritten)
}

func TestFromConfig(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Input.Path = "in.ndjson"
	cfg.Output.Path = "out.csv"
	cfg.Flatten.Enabled = true
	cfg.Explode.Column = "tags"
	cfg.Errors.OnMalformed = config.MalformedFail
	cfg.Errors.OnDrift = config.DriftFail
	cfg.Header.Case = "kebab"
	cfg.CSV.Delimiter = ";"

	opts, err := FromConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, explode.Single("tags"), opts.Explode)
	assert.True(t, opts.Flatten)
	assert.True(t, opts.Strict)
	assert.True(t, opts.FailOnDrift)
	assert.Equal(t, schema.CaseKebab, opts.Case)
	assert.Equal(t, ';', opts.OutputOptions.Delimiter)
	assert.Equal(t, cfg.Input.MaxLineSize, opts.InputOptions.MaxLineSize)
}

func TestFromConfig_Errors(t *testing.T) {
	tests := []struct {
		name   string
		modify func(cfg *config.Config)
	}{
		{name: "no input", modify: func(cfg *config.Config) { cfg.Input.Path = "" }},
		{name: "no output", modify: func(cfg *config.Config) { cfg.Output.Path = "" }},
		{name: "same file", modify: func(cfg *config.Config) { cfg.Output.Path = "./data.ndjson" }},
		{name: "both explode modes", modify: func(cfg *config.Config) { cfg.Explode.Column = "x"; cfg.Explode.All = true }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.NewConfig()
			cfg.Input.Path = "data.ndjson"
			cfg.Output.Path = "data.csv"
			tt.modify(cfg)

			_, err := FromConfig(cfg)
			require.Error(t, err)
			assert.Equal(t, 1, errors.ExitCode(err))
		})
	}
}
