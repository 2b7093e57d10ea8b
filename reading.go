// SPDX-License-Identifier: GPL-3.0-or-later

package mindbridge

// Reading is one raw acquisition produced by a [Source] for a single tick.
//
// A Reading is created fresh each tick, consumed by [*SampleBuilder.Build],
// and then discarded.
type Reading interface {
	// Lookup returns the value of the named schema field. A missing
	// field is a normal outcome and is reported as false.
	Lookup(field string) (any, bool)

	// Len returns the number of values. A zero-length reading is skipped.
	Len() int
}

// FlatReading is a [Reading] keyed by dotted paths, as returned by [Flatten].
//
// Do not rely on the iteration order of a FlatReading.
type FlatReading map[string]any

var _ Reading = FlatReading{}

// Lookup implements [Reading].
func (r FlatReading) Lookup(field string) (any, bool) {
	value, found := r[field]
	return value, found
}

// Len implements [Reading].
func (r FlatReading) Len() int {
	return len(r)
}

// isEmpty reports whether the reading carries nothing to emit.
func isEmpty(r Reading) bool {
	return r == nil || r.Len() == 0
}
