// SPDX-License-Identifier: GPL-3.0-or-later

package mindbridge

import (
	"cmp"
	"fmt"
	"iter"
	"maps"
	"reflect"
	"slices"
)

// Mapping is implemented by custom mapping-like values that [Flatten]
// should descend into.
type Mapping interface {
	All() iter.Seq2[string, any]
}

// DefaultSeparator joins nested keys in a [FlatReading].
const DefaultSeparator = "."

// Flatten converts a nested mapping into a [FlatReading] whose keys are the
// sep-joined paths from the root to each leaf.
//
// Any mapping-like value is a branch: map[string]any, any other map type
// (keys are formatted with [fmt.Sprint]), and any [Mapping]. Everything else is
// a leaf, including nil, false, 0, and "". An empty branch has no leaves and
// therefore produces no entries.
//
// Keys are visited in sorted order, so that the result is deterministic even
// when two paths collide (e.g., "a.b" and {"a": {"b": ...}}): the last
// one visited wins.
func Flatten(nested map[string]any, sep string) FlatReading {
	out := make(FlatReading)
	flattenInto(out, "", sep, sortedEntries(nested))
	return out
}

func flattenInto(out FlatReading, prefix, sep string, entries iter.Seq2[string, any]) {
	for key, value := range entries {
		path := key
		if prefix != "" {
			path = prefix + sep + key
		}
		if children, ok := asMapping(value); ok {
			flattenInto(out, path, sep, children)
			continue
		}
		out[path] = value
	}
}

// asMapping is a capability check: it reports whether value can be
// iterated as a mapping, regardless of its concrete type.
func asMapping(value any) (iter.Seq2[string, any], bool) {
	switch v := value.(type) {
	case nil:
		return nil, false
	case map[string]any:
		return sortedEntries(v), true
	case Mapping:
		if rv := reflect.ValueOf(v); rv.Kind() == reflect.Pointer && rv.IsNil() {
			return nil, false
		}
		return v.All(), true
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Map {
		return nil, false
	}
	return reflectEntries(rv), true
}

func sortedEntries(m map[string]any) iter.Seq2[string, any] {
	return func(yield func(string, any) bool) {
		for _, key := range slices.Sorted(maps.Keys(m)) {
			if !yield(key, m[key]) {
				return
			}
		}
	}
}

type reflectEntry struct {
	key   string
	value any
}

func reflectEntries(rv reflect.Value) iter.Seq2[string, any] {
	entries := make([]reflectEntry, 0, rv.Len())
	mr := rv.MapRange()
	for mr.Next() {
		entries = append(entries, reflectEntry{
			key:   fmt.Sprint(mr.Key().Interface()),
			value: mr.Value().Interface(),
		})
	}
	slices.SortFunc(entries, func(a, b reflectEntry) int {
		return cmp.Compare(a.key, b.key)
	})
	return func(yield func(string, any) bool) {
		for _, entry := range entries {
			if !yield(entry.key, entry.value) {
				return
			}
		}
	}
}
