// Package rangemap provides two interval-keyed containers used to index
// module-relative addresses: a flat map of disjoint ranges, and a map of
// ranges that may nest but never partially overlap.
package rangemap

import (
	"sort"

	"golang.org/x/exp/constraints"
)

// entry is one stored interval, kept sorted by high (base+size-1).
type entry[K constraints.Unsigned, V any] struct {
	base  K
	high  K
	value V
}

func (e entry[K, V]) contains(addr K) bool {
	return e.base <= addr && addr <= e.high
}

// overlaps reports whether e and o share any address.
func (e entry[K, V]) overlaps(base, high K) bool {
	return e.base <= high && base <= e.high
}

// RangeMap stores a set of disjoint half-open intervals [base, base+size)
// keyed by high end, each bound to a value of type V. It supports O(log n)
// point lookup and insertion via binary search; it never merges, splits,
// or rebalances.
type RangeMap[K constraints.Unsigned, V any] struct {
	entries []entry[K, V]
}

// New returns an empty RangeMap.
func New[K constraints.Unsigned, V any]() *RangeMap[K, V] {
	return &RangeMap[K, V]{}
}

// Len reports the number of stored intervals.
func (m *RangeMap[K, V]) Len() int {
	return len(m.entries)
}

// search returns the index of the first entry whose high end is >= addr.
func (m *RangeMap[K, V]) search(high K) int {
	return sort.Search(len(m.entries), func(i int) bool {
		return m.entries[i].high >= high
	})
}

// StoreRange inserts [base, base+size) -> value. It rejects (returns
// false, leaving the map unchanged) if size is zero, if base+size
// overflows K, or if the new range overlaps any existing range.
func (m *RangeMap[K, V]) StoreRange(base, size K, value V) bool {
	if size == 0 {
		return false
	}
	high := base + size - 1
	if high < base {
		// base + size overflowed K.
		return false
	}

	idx := m.search(high)
	if idx < len(m.entries) && m.entries[idx].overlaps(base, high) {
		return false
	}
	// The candidate just before idx might also overlap (its high end
	// could be < high while its base is still inside [base, high], or
	// it could simply straddle base from below).
	if idx > 0 && m.entries[idx-1].overlaps(base, high) {
		return false
	}

	m.entries = append(m.entries, entry[K, V]{})
	copy(m.entries[idx+1:], m.entries[idx:])
	m.entries[idx] = entry[K, V]{base: base, high: high, value: value}
	return true
}

// RetrieveRange returns the value of the unique interval containing addr,
// or the zero value and false if none covers it.
func (m *RangeMap[K, V]) RetrieveRange(addr K) (V, bool) {
	idx := m.search(addr)
	if idx < len(m.entries) && m.entries[idx].contains(addr) {
		return m.entries[idx].value, true
	}
	var zero V
	return zero, false
}
