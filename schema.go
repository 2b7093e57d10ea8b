// SPDX-License-Identifier: GPL-3.0-or-later

package mindbridge

import (
	"fmt"
	"slices"

	"github.com/bassosimone/runtimex"
)

// Field describes one metric of the [FieldSchema].
type Field struct {
	// Name is the dotted path of the metric (e.g., "eegPower.delta").
	Name string

	// Unit is the measurement unit (e.g., "microvolts").
	Unit string

	// Category is the channel type (e.g., "EEG").
	Category string
}

// FieldSchema is the ordered, immutable list of metrics the bridge emits.
//
// The order defines the positional contract of every [Sample].
type FieldSchema struct {
	fields []Field
	index  map[string]int
}

// NewFieldSchema returns a [*FieldSchema] or an error when names repeat or are empty.
func NewFieldSchema(fields ...Field) (*FieldSchema, error) {
	index := make(map[string]int, len(fields))
	for i, f := range fields {
		if f.Name == "" {
			return nil, fmt.Errorf("%w: field %d has no name", ErrSetup, i)
		}
		if _, found := index[f.Name]; found {
			return nil, fmt.Errorf("%w: duplicate field %q", ErrSetup, f.Name)
		}
		index[f.Name] = i
	}
	return &FieldSchema{fields: slices.Clone(fields), index: index}, nil
}

// Len returns the number of fields.
func (s *FieldSchema) Len() int {
	return len(s.fields)
}

// Fields returns a copy of the fields in order.
func (s *FieldSchema) Fields() []Field {
	return slices.Clone(s.fields)
}

// Names returns the field names in order.
func (s *FieldSchema) Names() []string {
	names := make([]string, len(s.fields))
	for i, f := range s.fields {
		names[i] = f.Name
	}
	return names
}

// Index returns the position of the named field.
func (s *FieldSchema) Index(name string) (int, bool) {
	idx, found := s.index[name]
	return idx, found
}

// Names of the fields given a special meaning.
const (
	// RawEEGField is the single amplitude field.
	RawEEGField = "rawEeg"

	// SignalQualityField carries the poor signal level (0 is best).
	SignalQualityField = "poorSignalLevel"
)

// PoorSignalLevel is the [SignalQualityField] value meaning that the
// headset is not touching the skin.
const PoorSignalLevel = 200

// MindwaveFields lists the fields emitted by a Mindwave Mobile 2 headset in
// wire order. Consumers index samples by position: do not reorder.
var MindwaveFields = []string{
	"rawEegMulti.ch1",
	"rawEegMulti.ch2",
	"rawEegMulti.ch3",
	"rawEegMulti.ch4",
	"rawEegMulti.ch5",
	"rawEegMulti.ch6",
	"rawEegMulti.ch7",
	"rawEegMulti.ch8",
	RawEEGField,
	"familiarity",
	"mentalEffort",
	"blinkStrength",
	SignalQualityField,
	"eSense.attention",
	"eSense.meditation",
	"eegPower.delta",
	"eegPower.theta",
	"eegPower.lowAlpha",
	"eegPower.highAlpha",
	"eegPower.lowBeta",
	"eegPower.highBeta",
	"eegPower.lowGamma",
	"eegPower.highGamma",
}

// NewMindwaveSchema returns the [*FieldSchema] built from [MindwaveFields].
//
// The amplitude field is in microvolts; every other field is in arbitrary units.
func NewMindwaveSchema() *FieldSchema {
	fields := make([]Field, 0, len(MindwaveFields))
	for _, name := range MindwaveFields {
		unit := "a.u."
		if name == RawEEGField {
			unit = "microvolts"
		}
		fields = append(fields, Field{Name: name, Unit: unit, Category: "EEG"})
	}
	return runtimex.PanicOnError1(NewFieldSchema(fields...))
}

// ChannelAnchor is the electrode position of the headset's single sensor.
const ChannelAnchor = "Fp1"

// Channel describes one stream channel. It is derived 1:1 from a [Field].
type Channel struct {
	// Metric is the [Field] name.
	Metric string `json:"metric"`

	// Label is [ChannelAnchor] for the amplitude field and
	// "Fp1-<metric>" for all the others.
	Label string `json:"label"`

	// Type is the [Field] category.
	Type string `json:"type"`

	// Unit is the [Field] unit.
	Unit string `json:"unit"`
}

// Channels derives the channel descriptors in schema order.
func (s *FieldSchema) Channels() []Channel {
	channels := make([]Channel, 0, len(s.fields))
	for _, f := range s.fields {
		label := ChannelAnchor
		if f.Name != RawEEGField {
			label = ChannelAnchor + "-" + f.Name
		}
		channels = append(channels, Channel{Metric: f.Name, Label: label, Type: f.Category, Unit: f.Unit})
	}
	return channels
}
