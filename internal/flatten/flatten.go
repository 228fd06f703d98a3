package flatten

import (
	"github.com/mcncl/ndjsoncsv/internal/models"
)

const (
	// DefaultSeparator joins the keys of nested objects into a column name
	DefaultSeparator = "."
	// RootKey names the column of a non-object value flattened without a prefix
	RootKey = "value"
)

// Flattener turns one record into a FlatRecord.
type Flattener struct {
	// Nested enables flattening of nested objects into dotted columns.
	// When false, top-level members are kept as they are.
	Nested    bool
	Separator string
}

// New creates a Flattener. An empty separator falls back to DefaultSeparator.
func New(nested bool, separator string) *Flattener {
	if separator == "" {
		separator = DefaultSeparator
	}
	return &Flattener{Nested: nested, Separator: separator}
}

// Record flattens a top-level object according to the Flattener settings
func (f *Flattener) Record(obj *models.Object) *models.FlatRecord {
	if !f.Nested {
		return Shallow(obj)
	}
	return f.Flatten(models.ObjectValue(obj), "")
}

// Flatten stores every leaf of val under its path, starting at prefix.
// Objects are walked depth-first in member order; lists and scalars are leaves.
func (f *Flattener) Flatten(val models.Value, prefix string) *models.FlatRecord {
	rec := models.NewFlatRecord(8)
	if prefix == "" && val.Kind() != models.KindObject {
		prefix = RootKey
	}
	f.value(rec, val, prefix)
	return rec
}

func (f *Flattener) value(rec *models.FlatRecord, val models.Value, path string) {
	if val.Kind() == models.KindObject {
		f.object(rec, val.Object(), path)
		return
	}
	rec.Set(path, val)
}

func (f *Flattener) object(rec *models.FlatRecord, obj *models.Object, prefix string) {
	for _, m := range obj.Members() {
		key := m.Key
		if prefix != "" {
			key = prefix + f.Separator + m.Key
		}
		f.value(rec, m.Value, key)
	}
}

// Shallow maps each top-level member to its value. Nested objects stay opaque leaves.
func Shallow(obj *models.Object) *models.FlatRecord {
	rec := models.NewFlatRecord(obj.Len())
	for _, m := range obj.Members() {
		rec.Set(m.Key, m.Value)
	}
	return rec
}
