package formatter

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/mcncl/ndjsoncsv/internal/models"
)

// ListFormat selects how list and object values are written into one cell
type ListFormat string

const (
	// ListJSON writes compact JSON, e.g. ["a","b"]
	ListJSON ListFormat = "json"
	// ListJoined joins scalar elements with the list separator, e.g. a|b
	ListJoined ListFormat = "joined"
)

// DefaultListSeparator is used by ListJoined when no separator is configured
const DefaultListSeparator = "|"

// Options control the text form of cell values
type Options struct {
	NullText      string
	ListFormat    ListFormat
	ListSeparator string
}

// DefaultOptions renders null as an empty cell and lists as compact JSON
func DefaultOptions() Options {
	return Options{
		ListFormat:    ListJSON,
		ListSeparator: DefaultListSeparator,
	}
}

// ParseListFormat validates a list format name. An empty name is ListJSON.
func ParseListFormat(s string) (ListFormat, error) {
	switch f := ListFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case "", ListJSON:
		return ListJSON, nil
	case ListJoined:
		return ListJoined, nil
	default:
		return "", fmt.Errorf("unknown list format %q", s)
	}
}

// Formatter is responsible for turning flattened records into CSV rows
type Formatter struct {
	opts Options
}

// NewFormatter creates a new Formatter instance
func NewFormatter(opts Options) *Formatter {
	if opts.ListFormat == "" {
		opts.ListFormat = ListJSON
	}
	if opts.ListSeparator == "" {
		opts.ListSeparator = DefaultListSeparator
	}
	return &Formatter{opts: opts}
}

// Format returns one field per header column, in header order.
// Columns missing from rec are empty; columns of rec outside the header are ignored.
func (f *Formatter) Format(rec *models.FlatRecord, header models.Header) models.Row {
	row := make(models.Row, len(header))
	for i, col := range header {
		if val, ok := rec.Get(col); ok {
			row[i] = f.Cell(val)
		}
	}
	return row
}

// Cell renders a single value
func (f *Formatter) Cell(val models.Value) string {
	switch val.Kind() {
	case models.KindNull:
		return f.opts.NullText
	case models.KindBool:
		return strconv.FormatBool(val.AsBool())
	case models.KindNumber:
		return FormatNumber(val.Text())
	case models.KindString:
		return val.Text()
	case models.KindList:
		if f.opts.ListFormat == ListJoined {
			return f.joined(val)
		}
		return string(AppendJSON(nil, val))
	case models.KindObject:
		return string(AppendJSON(nil, val))
	default:
		return ""
	}
}

func (f *Formatter) joined(list models.Value) string {
	parts := make([]string, len(list.Items()))
	for i, item := range list.Items() {
		switch item.Kind() {
		case models.KindList, models.KindObject:
			parts[i] = string(AppendJSON(nil, item))
		default:
			parts[i] = f.Cell(item)
		}
	}
	return strings.Join(parts, f.opts.ListSeparator)
}

// FormatNumber returns the canonical text of a JSON number.
// Integer literals are kept verbatim so that large IDs survive; every other
// number is printed as the shortest decimal that round-trips through float64,
// using an exponent only below 1e-6 or from 1e21 up.
func FormatNumber(text string) string {
	if isInteger(text) {
		return text
	}
	n, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return text
	}
	if abs := math.Abs(n); abs != 0 && (abs < 1e-6 || abs >= 1e21) {
		return strconv.FormatFloat(n, 'g', -1, 64)
	}
	return strconv.FormatFloat(n, 'f', -1, 64)
}

func isInteger(text string) bool {
	digits := strings.TrimPrefix(text, "-")
	if digits == "" {
		return false
	}
	for i := 0; i < len(digits); i++ {
		if digits[i] < '0' || digits[i] > '9' {
			return false
		}
	}
	return true
}

// AppendJSON appends the compact JSON encoding of val to buf.
// Object members keep their order, numbers their source text, and strings are
// not HTML-escaped.
func AppendJSON(buf []byte, val models.Value) []byte {
	switch val.Kind() {
	case models.KindNull:
		return append(buf, "null"...)
	case models.KindBool:
		return strconv.AppendBool(buf, val.AsBool())
	case models.KindNumber:
		return append(buf, val.Text()...)
	case models.KindString:
		return appendString(buf, val.Text())
	case models.KindList:
		buf = append(buf, '[')
		for i, item := range val.Items() {
			if i > 0 {
				buf = append(buf, ',')
			}
			buf = AppendJSON(buf, item)
		}
		return append(buf, ']')
	case models.KindObject:
		buf = append(buf, '{')
		for i, m := range val.Object().Members() {
			if i > 0 {
				buf = append(buf, ',')
			}
			buf = appendString(buf, m.Key)
			buf = append(buf, ':')
			buf = AppendJSON(buf, m.Value)
		}
		return append(buf, '}')
	default:
		return append(buf, "null"...)
	}
}

func appendString(buf []byte, s string) []byte {
	var b bytes.Buffer
	enc := json.NewEncoder(&b)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		// Strings always encode; fall back to Go quoting just in case
		return strconv.AppendQuote(buf, s)
	}
	return append(buf, bytes.TrimSuffix(b.Bytes(), []byte("\n"))...)
}
