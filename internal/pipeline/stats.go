package pipeline

import (
	"go.uber.org/zap"
)

// Stats accumulates the counters of one run across both passes
type Stats struct {
	// DiscoveryLines is the number of non-blank lines read by pass 1
	DiscoveryLines int
	// ConversionLines is the number of non-blank lines read by pass 2
	ConversionLines int
	// RecordsDiscovered is the number of records that fed the header
	RecordsDiscovered int
	// Malformed is the number of lines skipped by pass 2
	Malformed int
	// DriftedRecords is the number of records that had columns outside the header
	DriftedRecords int
	// DroppedValues is the number of values dropped from those records
	DroppedValues int
	RowsWritten   int
	Columns       int
}

// Fields returns the counters as log fields
func (s Stats) Fields() []zap.Field {
	return []zap.Field{
		zap.Int("columns", s.Columns),
		zap.Int("rows", s.RowsWritten),
		zap.Int("lines", s.ConversionLines),
		zap.Int("discovered", s.RecordsDiscovered),
		zap.Int("malformed", s.Malformed),
		zap.Int("drifted", s.DriftedRecords),
		zap.Int("dropped", s.DroppedValues),
	}
}

// Clean reports whether no line was skipped and no value was dropped
func (s Stats) Clean() bool {
	return s.Malformed == 0 && s.DroppedValues == 0
}
