package mapping

import (
	"fmt"
	"sort"
)

// Table is the validated mapping set of one device.
// Mappings are sorted by TargetStart and their target ranges never overlap.
// A Table is immutable and safe for concurrent use.
type Table struct {
	mappings []Mapping
}

// NewTable validates ms and returns the resulting Table.
// The input slice is not modified.
func NewTable(ms []Mapping) (*Table, error) {
	if len(ms) == 0 {
		return nil, ErrEmptyMappingSet
	}

	sorted := make([]Mapping, len(ms))
	copy(sorted, ms)
	for i := range sorted {
		if err := sorted[i].validate(); err != nil {
			return nil, err
		}
		sorted[i].Length = sorted[i].Len()
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].TargetStart < sorted[j].TargetStart
	})

	next := 0
	for _, m := range sorted {
		if m.TargetStart < next {
			return nil, fmt.Errorf("%w: %s starts before target index %d", ErrOverlappingTargetRanges, m, next)
		}
		next = m.TargetEnd()
	}

	return &Table{mappings: sorted}, nil
}

// Mappings returns a copy of the mappings in target order.
func (t *Table) Mappings() []Mapping {
	out := make([]Mapping, len(t.mappings))
	copy(out, t.mappings)
	return out
}

// Len returns the number of mappings.
func (t *Table) Len() int {
	return len(t.mappings)
}

// Span returns the lowest mapped target index and the total number of
// target pixels between it and the end of the last mapping, gaps included.
func (t *Table) Span() (origin, size int) {
	first := t.mappings[0]
	last := t.mappings[len(t.mappings)-1]
	return first.TargetStart, last.TargetEnd() - first.TargetStart
}

// End returns the first target index after the last mapping.
func (t *Table) End() int {
	return t.mappings[len(t.mappings)-1].TargetEnd()
}

// MappedPixels returns the number of target pixels written by the table.
func (t *Table) MappedPixels() int {
	n := 0
	for _, m := range t.mappings {
		n += m.Len()
	}
	return n
}

// Window returns a table holding only the i-th mapping, used when every
// mapping is addressed on its own.
func (t *Table) Window(i int) *Table {
	return &Table{mappings: []Mapping{t.mappings[i]}}
}
