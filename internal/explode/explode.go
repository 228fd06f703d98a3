package explode

import (
	"fmt"
	"iter"
	"sort"

	"github.com/mcncl/ndjsoncsv/internal/errors"
	"github.com/mcncl/ndjsoncsv/internal/models"
)

// Mode selects how list-valued columns turn into rows
type Mode int

const (
	// ModeNone leaves lists intact, one row per record
	ModeNone Mode = iota
	// ModeSingle emits one row per element of a single column
	ModeSingle
	// ModeAll emits the cartesian product of every list column
	ModeAll
)

// String returns the mode name used in logs
func (m Mode) String() string {
	switch m {
	case ModeNone:
		return "none"
	case ModeSingle:
		return "single"
	case ModeAll:
		return "all"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Policy is the explode mode plus its target column for ModeSingle
type Policy struct {
	Mode   Mode
	Column string
}

// None returns the identity policy
func None() Policy { return Policy{Mode: ModeNone} }

// Single returns a policy exploding column
func Single(column string) Policy { return Policy{Mode: ModeSingle, Column: column} }

// All returns the cartesian-all policy
func All() Policy { return Policy{Mode: ModeAll} }

// ParsePolicy builds a policy from the two mutually exclusive options
func ParsePolicy(column string, all bool) (Policy, error) {
	switch {
	case column != "" && all:
		return Policy{}, errors.NewConfigError("invalid explode options", errors.ErrConflictingFlags)
	case all:
		return All(), nil
	case column != "":
		return Single(column), nil
	default:
		return None(), nil
	}
}

// String describes the policy for logs
func (p Policy) String() string {
	if p.Mode == ModeSingle {
		return fmt.Sprintf("single(%s)", p.Column)
	}
	return p.Mode.String()
}

// Exploder expands one flattened record into the records it turns into.
type Exploder struct {
	policy Policy
	order  map[string]int
}

// New creates an Exploder. The header fixes the iteration order of list
// columns for ModeAll; columns outside the header follow in record order.
func New(policy Policy, header models.Header) *Exploder {
	return &Exploder{policy: policy, order: header.Index()}
}

// Policy returns the policy the Exploder applies
func (e *Exploder) Policy() Policy { return e.policy }

// Explode lazily yields the records rec expands into. At least one record is
// always produced. Yielded records other than rec itself are fresh copies.
func (e *Exploder) Explode(rec *models.FlatRecord) iter.Seq[*models.FlatRecord] {
	switch e.policy.Mode {
	case ModeSingle:
		return e.single(rec)
	case ModeAll:
		return e.all(rec)
	default:
		return func(yield func(*models.FlatRecord) bool) { yield(rec) }
	}
}

func (e *Exploder) single(rec *models.FlatRecord) iter.Seq[*models.FlatRecord] {
	return func(yield func(*models.FlatRecord) bool) {
		val, ok := rec.Get(e.policy.Column)
		if !ok || val.Kind() != models.KindList {
			yield(rec)
			return
		}
		for _, item := range elements(val) {
			out := rec.Clone()
			out.Set(e.policy.Column, item)
			if !yield(out) {
				return
			}
		}
	}
}

func (e *Exploder) all(rec *models.FlatRecord) iter.Seq[*models.FlatRecord] {
	return func(yield func(*models.FlatRecord) bool) {
		columns := e.listColumns(rec)
		if len(columns) == 0 {
			yield(rec)
			return
		}

		lists := make([][]models.Value, len(columns))
		for i, col := range columns {
			v, _ := rec.Get(col)
			lists[i] = elements(v)
		}

		// Odometer over the element indexes, last column fastest
		idx := make([]int, len(columns))
		for {
			out := rec.Clone()
			for i, col := range columns {
				out.Set(col, lists[i][idx[i]])
			}
			if !yield(out) {
				return
			}

			i := len(idx) - 1
			for ; i >= 0; i-- {
				idx[i]++
				if idx[i] < len(lists[i]) {
					break
				}
				idx[i] = 0
			}
			if i < 0 {
				return
			}
		}
	}
}

// listColumns returns the list-valued columns of rec, header columns first in
// header order, then the rest in record order
func (e *Exploder) listColumns(rec *models.FlatRecord) []string {
	var known, unknown []string
	for _, key := range rec.Keys() {
		v, _ := rec.Get(key)
		if v.Kind() != models.KindList {
			continue
		}
		if _, ok := e.order[key]; ok {
			known = append(known, key)
		} else {
			unknown = append(unknown, key)
		}
	}
	sort.SliceStable(known, func(i, j int) bool { return e.order[known[i]] < e.order[known[j]] })
	return append(known, unknown...)
}

// elements returns the items of a list, or a single null placeholder for an
// empty list so that the record is never dropped
func elements(list models.Value) []models.Value {
	if items := list.Items(); len(items) > 0 {
		return items
	}
	return []models.Value{models.Null()}
}
