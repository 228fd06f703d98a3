// Package schema discovers the CSV header from a stream of flattened records
package schema

import (
	"iter"
	"sort"

	"github.com/mcncl/ndjsoncsv/internal/models"
)

// Discoverer collects column names in first-seen order over a bounded or
// unbounded prefix of the records.
type Discoverer struct {
	limit   int
	records int
	seen    map[string]struct{}
	columns []string
}

// NewDiscoverer creates a Discoverer that stops after limit records. 0 means no limit.
func NewDiscoverer(limit int) *Discoverer {
	if limit < 0 {
		limit = 0
	}
	return &Discoverer{
		limit: limit,
		seen:  make(map[string]struct{}),
	}
}

// Observe records the columns of rec that have not been seen yet.
// It reports whether more records are wanted.
func (d *Discoverer) Observe(rec *models.FlatRecord) bool {
	if d.Done() {
		return false
	}
	d.records++
	for _, key := range rec.Keys() {
		if _, ok := d.seen[key]; ok {
			continue
		}
		d.seen[key] = struct{}{}
		d.columns = append(d.columns, key)
	}
	return !d.Done()
}

// Done reports whether the discovery limit has been reached
func (d *Discoverer) Done() bool {
	return d.limit > 0 && d.records >= d.limit
}

// Header returns a copy of the columns discovered so far
func (d *Discoverer) Header() models.Header {
	h := make(models.Header, len(d.columns))
	copy(h, d.columns)
	return h
}

// Discover builds the header from records, consuming at most limit of them
func Discover(records iter.Seq[*models.FlatRecord], limit int) models.Header {
	d := NewDiscoverer(limit)
	for rec := range records {
		if !d.Observe(rec) {
			break
		}
	}
	return d.Header()
}

// Sorted returns a lexicographically sorted copy of h
func Sorted(h models.Header) models.Header {
	out := make(models.Header, len(h))
	copy(out, h)
	sort.Strings(out)
	return out
}

// Undiscovered returns the columns of rec that are not part of the header index
func Undiscovered(rec *models.FlatRecord, index map[string]int) []string {
	var missing []string
	for _, key := range rec.Keys() {
		if _, ok := index[key]; !ok {
			missing = append(missing, key)
		}
	}
	return missing
}
