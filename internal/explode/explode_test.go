package explode

import (
	stderrors "errors"
	"testing"

	"github.com/mcncl/ndjsoncsv/internal/errors"
	"github.com/mcncl/ndjsoncsv/internal/flatten"
	"github.com/mcncl/ndjsoncsv/internal/models"
	"github.com/mcncl/ndjsoncsv/internal/parser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func flat(t *testing.T, line string) *models.FlatRecord {
	t.Helper()
	obj, err := parser.ParseRecord([]byte(line))
	require.NoError(t, err)
	return flatten.New(true, ".").Record(obj)
}

// texts renders the given columns of every record, nulls as ""
func texts(records []*models.FlatRecord, columns ...string) [][]string {
	out := make([][]string, 0, len(records))
	for _, rec := range records {
		row := make([]string, len(columns))
		for i, col := range columns {
			v, _ := rec.Get(col)
			row[i] = v.Text()
		}
		out = append(out, row)
	}
	return out
}

func collect(e *Exploder, rec *models.FlatRecord) []*models.FlatRecord {
	var out []*models.FlatRecord
	for r := range e.Explode(rec) {
		out = append(out, r)
	}
	return out
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("", false)
	require.NoError(t, err)
	assert.Equal(t, None(), p)

	p, err = ParsePolicy("tags", false)
	require.NoError(t, err)
	assert.Equal(t, Single("tags"), p)
	assert.Equal(t, "single(tags)", p.String())

	p, err = ParsePolicy("", true)
	require.NoError(t, err)
	assert.Equal(t, All(), p)

	_, err = ParsePolicy("tags", true)
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrConflictingFlags))
}

func TestExplode_NoneIsIdentity(t *testing.T) {
	rec := flat(t, `{"id": 1, "tags": ["a", "b"]}`)
	out := collect(New(None(), models.Header{"id", "tags"}), rec)

	require.Len(t, out, 1)
	assert.Same(t, rec, out[0])
}

func TestExplode_SingleColumn(t *testing.T) {
	e := New(Single("tags"), models.Header{"id", "tags"})

	first := collect(e, flat(t, `{"id": 1, "tags": ["a", "b"]}`))
	second := collect(e, flat(t, `{"id": 2, "tags": ["c"]}`))

	assert.Equal(t, [][]string{{"1", "a"}, {"1", "b"}}, texts(first, "id", "tags"))
	assert.Equal(t, [][]string{{"2", "c"}}, texts(second, "id", "tags"))
}

func TestExplode_SingleColumnRowsDifferOnlyInTarget(t *testing.T) {
	rec := flat(t, `{"id": 7, "meta": {"src": "x"}, "tags": ["a", "b", "c"], "other": [1, 2]}`)
	e := New(Single("tags"), models.Header{"id", "meta.src", "tags", "other"})

	out := collect(e, rec)
	require.Len(t, out, 3)

	for i, r := range out {
		assert.Equal(t, rec.Keys(), r.Keys())
		for _, key := range rec.Keys() {
			got, _ := r.Get(key)
			if key == "tags" {
				assert.Equal(t, []string{"a", "b", "c"}[i], got.Text())
				continue
			}
			want, _ := rec.Get(key)
			assert.Equal(t, want, got, key)
		}
	}

	// The source record is left untouched
	tags, _ := rec.Get("tags")
	assert.Equal(t, models.KindList, tags.Kind())
}

func TestExplode_SingleColumnNoOp(t *testing.T) {
	e := New(Single("tags"), models.Header{"id", "tags"})

	for _, line := range []string{`{"id": 1}`, `{"id": 1, "tags": "scalar"}`, `{"id": 1, "tags": null}`} {
		rec := flat(t, line)
		out := collect(e, rec)
		require.Len(t, out, 1, line)
		assert.Same(t, rec, out[0], line)
	}
}

func TestExplode_SingleColumnEmptyList(t *testing.T) {
	e := New(Single("tags"), models.Header{"id", "tags"})

	out := collect(e, flat(t, `{"id": 1, "tags": []}`))
	require.Len(t, out, 1)
	tags, _ := out[0].Get("tags")
	assert.True(t, tags.IsNull())
}

func TestExplode_AllCartesianOrder(t *testing.T) {
	rec := flat(t, `{"tags": ["a", "b"], "sizes": [1, 2]}`)
	e := New(All(), models.Header{"tags", "sizes"})

	out := collect(e, rec)
	assert.Equal(t, [][]string{{"a", "1"}, {"a", "2"}, {"b", "1"}, {"b", "2"}}, texts(out, "tags", "sizes"))
}

func TestExplode_AllFollowsHeaderOrder(t *testing.T) {
	// Record order is tags, sizes but the header puts sizes first, so tags varies fastest
	rec := flat(t, `{"tags": ["a", "b"], "sizes": [1, 2]}`)
	e := New(All(), models.Header{"sizes", "tags"})

	out := collect(e, rec)
	assert.Equal(t, [][]string{{"a", "1"}, {"b", "1"}, {"a", "2"}, {"b", "2"}}, texts(out, "tags", "sizes"))
}

func TestExplode_AllRowCount(t *testing.T) {
	tests := []struct {
		name     string
		line     string
		expected int
	}{
		{name: "no lists", line: `{"id": 1}`, expected: 1},
		{name: "one list", line: `{"a": [1, 2, 3]}`, expected: 3},
		{name: "three lists", line: `{"a": [1, 2], "b": [1, 2, 3], "c": {"d": [1, 2, 3, 4]}}`, expected: 24},
		{name: "empty list counts as one", line: `{"a": [1, 2], "b": [], "c": [1, 2, 3]}`, expected: 6},
		{name: "only empty lists", line: `{"a": [], "b": []}`, expected: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := flat(t, tt.line)
			e := New(All(), models.Header(rec.Keys()))

			out := collect(e, rec)
			assert.Len(t, out, tt.expected)
			for _, r := range out {
				for _, key := range r.Keys() {
					v, _ := r.Get(key)
					assert.NotEqual(t, models.KindList, v.Kind(), "no list survives explode-all")
				}
			}
		})
	}
}

func TestExplode_AllColumnsOutsideHeaderComeLast(t *testing.T) {
	rec := flat(t, `{"late": ["x", "y"], "tags": ["a", "b"]}`)
	e := New(All(), models.Header{"tags"})

	out := collect(e, rec)
	assert.Equal(t, [][]string{{"a", "x"}, {"a", "y"}, {"b", "x"}, {"b", "y"}}, texts(out, "tags", "late"))
}

func TestExplode_AllObjectElements(t *testing.T) {
	rec := flat(t, `{"id": 1, "items": [{"sku": "a"}, {"sku": "b"}]}`)
	e := New(All(), models.Header{"id", "items"})

	out := collect(e, rec)
	require.Len(t, out, 2)
	item, _ := out[1].Get("items")
	require.Equal(t, models.KindObject, item.Kind())
	sku, _ := item.Object().Get("sku")
	assert.Equal(t, "b", sku.Text())
}

func TestExplode_StopsWhenConsumerStops(t *testing.T) {
	rec := flat(t, `{"a": [1, 2, 3], "b": [1, 2, 3]}`)
	e := New(All(), models.Header{"a", "b"})

	n := 0
	for range e.Explode(rec) {
		n++
		if n == 4 {
			break
		}
	}
	assert.Equal(t, 4, n)
}
