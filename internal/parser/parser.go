package parser

import (
	"bytes"
	stderrors "errors" // Standard errors package
	"fmt"
	"io"
	"strconv"

	"github.com/goccy/go-json"
	"github.com/mcncl/ndjsoncsv/internal/errors" // Custom errors package
	"github.com/mcncl/ndjsoncsv/internal/models"
)

// MaxDepth bounds the nesting of objects and lists within one line
const MaxDepth = 512

// lineParser builds a models.Value from the token stream of one line.
// Going through tokens instead of map decoding keeps object members in document order.
type lineParser struct {
	dec   *json.Decoder
	depth int
}

// ParseLine decodes exactly one JSON value from an NDJSON line
func ParseLine(line []byte) (models.Value, error) {
	dec := json.NewDecoder(bytes.NewReader(line))
	dec.UseNumber() // Keep the source text of numbers
	p := &lineParser{dec: dec}

	tok, err := dec.Token()
	if err != nil {
		if stderrors.Is(err, io.EOF) {
			return models.Value{}, errors.NewParsingError("line is empty", errors.ErrInvalidJSON)
		}
		return models.Value{}, syntaxError(err)
	}
	val, err := p.value(tok)
	if err != nil {
		return models.Value{}, err
	}

	// Anything but EOF after the first value means the line holds more than one value
	if _, err := dec.Token(); !stderrors.Is(err, io.EOF) {
		return models.Value{}, errors.NewParsingError(
			fmt.Sprintf("unexpected data at offset %d", dec.InputOffset()),
			errors.ErrTrailingData,
		)
	}

	// The token stream does not check separators, so missing or extra colons
	// and commas only show up here
	if !json.Valid(line) {
		return models.Value{}, errors.NewParsingError("misplaced ':' or ','", errors.ErrInvalidJSON)
	}
	return val, nil
}

// ParseRecord decodes a line that must hold a JSON object
func ParseRecord(line []byte) (*models.Object, error) {
	val, err := ParseLine(line)
	if err != nil {
		return nil, err
	}
	if val.Kind() != models.KindObject {
		return nil, errors.NewParsingError(
			fmt.Sprintf("expected an object, got %s", val.Kind()),
			errors.ErrNotObject,
		)
	}
	return val.Object(), nil
}

func (p *lineParser) value(tok json.Token) (models.Value, error) {
	switch v := tok.(type) {
	case json.Delim:
		switch v {
		case '{':
			return p.object()
		case '[':
			return p.list()
		default:
			return models.Value{}, errors.NewParsingError(
				fmt.Sprintf("unexpected delimiter %q at offset %d", rune(v), p.dec.InputOffset()),
				errors.ErrInvalidJSON,
			)
		}
	case string:
		return models.String(v), nil
	case json.Number:
		if !validNumber(string(v)) {
			return models.Value{}, errors.NewParsingError(
				fmt.Sprintf("invalid number %q at offset %d", string(v), p.dec.InputOffset()),
				errors.ErrInvalidJSON,
			)
		}
		return models.Number(string(v)), nil
	case float64: // Only reachable if the decoder ignores UseNumber
		return models.Number(strconv.FormatFloat(v, 'g', -1, 64)), nil
	case bool:
		return models.Bool(v), nil
	case nil:
		return models.Null(), nil
	default:
		return models.Value{}, errors.NewParsingError(fmt.Sprintf("unexpected token %T", v), errors.ErrInvalidJSON)
	}
}

func (p *lineParser) object() (models.Value, error) {
	if err := p.enter(); err != nil {
		return models.Value{}, err
	}
	defer p.leave()

	obj := &models.Object{}
	for {
		tok, err := p.next()
		if err != nil {
			return models.Value{}, err
		}
		if d, ok := tok.(json.Delim); ok && d == '}' {
			return models.ObjectValue(obj), nil
		}
		key, ok := tok.(string)
		if !ok {
			return models.Value{}, errors.NewParsingError(
				fmt.Sprintf("object key must be a string at offset %d", p.dec.InputOffset()),
				errors.ErrInvalidJSON,
			)
		}

		tok, err = p.next()
		if err != nil {
			return models.Value{}, err
		}
		val, err := p.value(tok)
		if err != nil {
			return models.Value{}, err
		}
		obj.Set(key, val)
	}
}

func (p *lineParser) list() (models.Value, error) {
	if err := p.enter(); err != nil {
		return models.Value{}, err
	}
	defer p.leave()

	items := []models.Value{}
	for {
		tok, err := p.next()
		if err != nil {
			return models.Value{}, err
		}
		if d, ok := tok.(json.Delim); ok && d == ']' {
			return models.List(items...), nil
		}
		val, err := p.value(tok)
		if err != nil {
			return models.Value{}, err
		}
		items = append(items, val)
	}
}

// next reads a token inside a container, where EOF means truncated input
func (p *lineParser) next() (json.Token, error) {
	tok, err := p.dec.Token()
	if err != nil {
		if stderrors.Is(err, io.EOF) || stderrors.Is(err, io.ErrUnexpectedEOF) {
			return nil, errors.NewParsingError("unexpected end of line", errors.ErrInvalidJSON)
		}
		return nil, syntaxError(err)
	}
	return tok, nil
}

func (p *lineParser) enter() error {
	p.depth++
	if p.depth > MaxDepth {
		return errors.NewParsingError(fmt.Sprintf("nesting deeper than %d levels", MaxDepth), errors.ErrInvalidJSON)
	}
	return nil
}

func (p *lineParser) leave() { p.depth-- }

// validNumber checks s against the JSON number grammar:
// -?(0|[1-9][0-9]*)(\.[0-9]+)?([eE][+-]?[0-9]+)?
func validNumber(s string) bool {
	i := 0
	if i < len(s) && s[i] == '-' {
		i++
	}
	switch {
	case i < len(s) && s[i] == '0':
		i++
	case i < len(s) && s[i] >= '1' && s[i] <= '9':
		i = skipDigits(s, i)
	default:
		return false
	}
	if i < len(s) && s[i] == '.' {
		j := skipDigits(s, i+1)
		if j == i+1 {
			return false
		}
		i = j
	}
	if i < len(s) && (s[i] == 'e' || s[i] == 'E') {
		i++
		if i < len(s) && (s[i] == '+' || s[i] == '-') {
			i++
		}
		j := skipDigits(s, i)
		if j == i {
			return false
		}
		i = j
	}
	return i == len(s)
}

func skipDigits(s string, i int) int {
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	return i
}

func syntaxError(err error) error {
	var syntaxErr *json.SyntaxError
	if stderrors.As(err, &syntaxErr) {
		return errors.NewParsingError(
			fmt.Sprintf("JSON syntax error at offset %d", syntaxErr.Offset),
			errors.ErrInvalidJSON,
		)
	}
	return errors.NewParsingError("failed to decode JSON", stderrors.Join(errors.ErrInvalidJSON, err))
}
