package models

import (
	"strconv"
	"strings"
)

// Kind tags the variant held by a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindList
	KindObject
)

// String returns the JSON name of the kind
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "boolean"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindList:
		return "list"
	case KindObject:
		return "object"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Value is a JSON value as a tagged variant.
// The zero Value is null. Numbers keep their source text in s.
type Value struct {
	kind Kind
	b    bool
	s    string
	list []Value
	obj  *Object
}

// Null returns the null value
func Null() Value { return Value{} }

// Bool wraps a boolean
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Number wraps the JSON text of a number, e.g. "42" or "1.5e3"
func Number(text string) Value { return Value{kind: KindNumber, s: text} }

// String wraps a string
func String(s string) Value { return Value{kind: KindString, s: s} }

// List wraps a slice of values
func List(items ...Value) Value {
	if items == nil {
		items = []Value{}
	}
	return Value{kind: KindList, list: items}
}

// ObjectValue wraps an object
func ObjectValue(o *Object) Value {
	if o == nil {
		o = &Object{}
	}
	return Value{kind: KindObject, obj: o}
}

// Kind reports which variant v holds
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is null
func (v Value) IsNull() bool { return v.kind == KindNull }

// AsBool returns the boolean held by v
func (v Value) AsBool() bool { return v.b }

// Text returns the string content of a string value or the source text of a number
func (v Value) Text() string { return v.s }

// Items returns the elements of a list value. Nil for other kinds.
func (v Value) Items() []Value { return v.list }

// Object returns the object held by v, or nil
func (v Value) Object() *Object { return v.obj }

// Member is one key/value pair of an object
type Member struct {
	Key   string
	Value Value
}

// Object is a JSON object that keeps its members in document order.
type Object struct {
	members []Member
	// index is built once the object grows past indexThreshold members
	index map[string]int
}

const indexThreshold = 16

// NewObject builds an object from members. Later duplicates replace the
// value of the first occurrence and keep its position.
func NewObject(members ...Member) *Object {
	o := &Object{}
	for _, m := range members {
		o.Set(m.Key, m.Value)
	}
	return o
}

// Set adds key, or replaces its value in place if already present
func (o *Object) Set(key string, val Value) {
	if i, ok := o.find(key); ok {
		o.members[i].Value = val
		return
	}
	o.members = append(o.members, Member{Key: key, Value: val})
	switch {
	case o.index != nil:
		o.index[key] = len(o.members) - 1
	case len(o.members) > indexThreshold:
		o.index = make(map[string]int, len(o.members)*2)
		for i, m := range o.members {
			o.index[m.Key] = i
		}
	}
}

// Get looks up key
func (o *Object) Get(key string) (Value, bool) {
	if i, ok := o.find(key); ok {
		return o.members[i].Value, true
	}
	return Value{}, false
}

func (o *Object) find(key string) (int, bool) {
	if o.index != nil {
		i, ok := o.index[key]
		return i, ok
	}
	for i := range o.members {
		if o.members[i].Key == key {
			return i, true
		}
	}
	return 0, false
}

// Members returns the members in document order
func (o *Object) Members() []Member { return o.members }

// Len returns the number of members
func (o *Object) Len() int { return len(o.members) }

// FlatRecord maps column names to leaf values, keeping first-insertion order.
type FlatRecord struct {
	keys   []string
	values map[string]Value
}

// NewFlatRecord returns an empty record sized for n columns
func NewFlatRecord(n int) *FlatRecord {
	return &FlatRecord{
		keys:   make([]string, 0, n),
		values: make(map[string]Value, n),
	}
}

// Set stores val under key. Existing keys keep their position.
func (r *FlatRecord) Set(key string, val Value) {
	if _, exists := r.values[key]; !exists {
		r.keys = append(r.keys, key)
	}
	r.values[key] = val
}

// Get looks up key
func (r *FlatRecord) Get(key string) (Value, bool) {
	v, ok := r.values[key]
	return v, ok
}

// Keys returns the column names in first-insertion order
func (r *FlatRecord) Keys() []string { return r.keys }

// Len returns the number of columns
func (r *FlatRecord) Len() int { return len(r.keys) }

// Clone returns a shallow copy that can be modified independently
func (r *FlatRecord) Clone() *FlatRecord {
	c := &FlatRecord{
		keys:   make([]string, len(r.keys)),
		values: make(map[string]Value, len(r.values)),
	}
	copy(c.keys, r.keys)
	for k, v := range r.values {
		c.values[k] = v
	}
	return c
}

// Header is the ordered, duplicate-free list of output columns
type Header []string

// Index returns the position of each column
func (h Header) Index() map[string]int {
	idx := make(map[string]int, len(h))
	for i, col := range h {
		idx[col] = i
	}
	return idx
}

// String renders the header as a comma separated list, for logs
func (h Header) String() string { return strings.Join(h, ",") }

// Row is one CSV data row, aligned with a Header
type Row []string
