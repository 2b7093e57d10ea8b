// SPDX-License-Identifier: GPL-3.0-or-later

package mindbridge

import (
	"iter"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// orderedMapping is a custom mapping-like type that is not a Go map.
type orderedMapping []struct {
	key   string
	value any
}

func (m orderedMapping) All() iter.Seq2[string, any] {
	return func(yield func(string, any) bool) {
		for _, entry := range m {
			if !yield(entry.key, entry.value) {
				return
			}
		}
	}
}

// pointerMapping implements [Mapping] with a pointer receiver.
type pointerMapping struct {
	attention int
}

func (m *pointerMapping) All() iter.Seq2[string, any] {
	return func(yield func(string, any) bool) {
		yield("attention", m.attention)
	}
}

// countLeaves counts the non-mapping values reachable from nested.
func countLeaves(nested map[string]any) int {
	var count int
	for _, value := range nested {
		if children, ok := value.(map[string]any); ok {
			count += countLeaves(children)
			continue
		}
		count++
	}
	return count
}

// Flatten joins nested keys and keeps every leaf, including falsy ones.
func TestFlatten(t *testing.T) {
	type testcase struct {
		// name is the test case name.
		name string

		// input is the nested mapping.
		input map[string]any

		// expect is the expected flat mapping.
		expect FlatReading
	}

	cases := []testcase{
		{
			name:   "empty",
			input:  map[string]any{},
			expect: FlatReading{},
		},

		{
			name: "ThinkGear record",
			input: map[string]any{
				"eSense":          map[string]any{"attention": 40, "meditation": 55},
				"eegPower":        map[string]any{"delta": 1, "lowAlpha": 2},
				"poorSignalLevel": 0,
			},
			expect: FlatReading{
				"eSense.attention":  40,
				"eSense.meditation": 55,
				"eegPower.delta":    1,
				"eegPower.lowAlpha": 2,
				"poorSignalLevel":   0,
			},
		},

		{
			name: "falsy leaves",
			input: map[string]any{
				"zero":  0,
				"false": false,
				"empty": "",
				"null":  nil,
				"deep":  map[string]any{"deeper": map[string]any{"zero": 0.0}},
			},
			expect: FlatReading{
				"zero":             0,
				"false":            false,
				"empty":            "",
				"null":             nil,
				"deep.deeper.zero": 0.0,
			},
		},

		{
			name: "empty branch has no leaves",
			input: map[string]any{
				"eSense": map[string]any{},
				"rawEeg": 12,
			},
			expect: FlatReading{"rawEeg": 12},
		},

		{
			name: "custom mapping-like values",
			input: map[string]any{
				"eSense": orderedMapping{
					{key: "attention", value: 40},
					{key: "nested", value: orderedMapping{{key: "x", value: 1}}},
				},
				"typed": map[string]int{"a": 1},
				"keyed": map[int]any{7: "seven"},
			},
			expect: FlatReading{
				"eSense.attention": 40,
				"eSense.nested.x":  1,
				"typed.a":          1,
				"keyed.7":          "seven",
			},
		},

		{
			name: "slices are leaves",
			input: map[string]any{
				"rawEegMulti": []any{1, 2, 3},
			},
			expect: FlatReading{"rawEegMulti": []any{1, 2, 3}},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expect, Flatten(tc.input, DefaultSeparator))
		})
	}
}

// A nil pointer implementing Mapping is a leaf.
func TestFlattenNilPointerMapping(t *testing.T) {
	var missing *pointerMapping
	input := map[string]any{
		"eSense":   &pointerMapping{attention: 40},
		"eegPower": missing,
	}

	var got FlatReading
	require.NotPanics(t, func() { got = Flatten(input, DefaultSeparator) })

	assert.Equal(t, FlatReading{"eSense.attention": 40, "eegPower": missing}, got)
}

// Flatten is idempotent on already flat input.
func TestFlattenIdempotent(t *testing.T) {
	inputs := []map[string]any{
		{},
		{"a": 1, "b": false},
		{"eSense": map[string]any{"attention": 40}, "eegPower": map[string]any{"delta": map[string]any{"x": 0}}},
	}

	for _, input := range inputs {
		once := Flatten(input, DefaultSeparator)
		twice := Flatten(once, DefaultSeparator)
		assert.Equal(t, once, twice)
		assert.Equal(t, countLeaves(input), once.Len())
	}
}

// Flatten uses the given separator.
func TestFlattenSeparator(t *testing.T) {
	input := map[string]any{"eSense": map[string]any{"attention": 40}}

	assert.Equal(t, FlatReading{"eSense/attention": 40}, Flatten(input, "/"))
}

// Flatten is deterministic when distinct paths collide.
func TestFlattenCollision(t *testing.T) {
	input := map[string]any{
		"a":   map[string]any{"b": "nested"},
		"a.b": "flat",
	}

	for range 10 {
		assert.Equal(t, FlatReading{"a.b": "flat"}, Flatten(input, DefaultSeparator))
	}
}
