// SPDX-License-Identifier: GPL-3.0-or-later

package mindbridge

import (
	"encoding/json"
	"log/slog"
	"math"
	"strconv"
)

// Sample is the fixed-length vector pushed to every [Sink] once per tick.
//
// Position i carries the value of [FieldSchema] field i, or [Missing].
type Sample []float64

// Missing is the sentinel for a field without a value this tick.
var Missing = math.NaN()

// IsMissing reports whether v is the [Missing] sentinel.
func IsMissing(v float64) bool {
	return math.IsNaN(v)
}

// NewSampleBuilder returns a [*SampleBuilder] for the given schema.
//
// The metrics argument may be nil.
func NewSampleBuilder(schema *FieldSchema, metrics *Metrics, logger SLogger) *SampleBuilder {
	return &SampleBuilder{
		Logger:          logger,
		Metrics:         metrics,
		PoorSignalLevel: PoorSignalLevel,
		QualityField:    SignalQualityField,
		Schema:          schema,
	}
}

// SampleBuilder maps a [Reading] onto a [Sample] in [FieldSchema] order.
//
// All fields are safe to modify after construction but before first use.
type SampleBuilder struct {
	// Logger is the [SLogger] to use.
	//
	// Set by [NewSampleBuilder] to the user-provided logger.
	Logger SLogger

	// Metrics counts built samples and poor signal ticks.
	//
	// Set by [NewSampleBuilder] to the user-provided metrics.
	Metrics *Metrics

	// PoorSignalLevel is the raw quality value triggering a warning.
	//
	// Set by [NewSampleBuilder] to [PoorSignalLevel].
	PoorSignalLevel float64

	// QualityField names the signal quality field.
	//
	// Set by [NewSampleBuilder] to [SignalQualityField].
	QualityField string

	// Schema defines the sample layout.
	//
	// Set by [NewSampleBuilder] to the user-provided schema.
	Schema *FieldSchema
}

// Build returns a [Sample] with one value per schema field.
//
// A field that is absent from the reading, or whose value is not numeric,
// is set to [Missing]. Build never fails: the result always has the schema
// length, even for a nil reading. When the quality field reports a very poor
// signal, Build logs a warning and still returns the sample.
func (b *SampleBuilder) Build(reading Reading) Sample {
	sample := make(Sample, 0, b.Schema.Len())
	for _, f := range b.Schema.fields {
		sample = append(sample, b.lookup(reading, f.Name))
	}
	b.Metrics.sampleBuilt()

	if quality := b.lookup(reading, b.QualityField); quality == b.PoorSignalLevel {
		b.Metrics.poorSignal()
		b.Logger.Warn(
			"poorSignal",
			slog.String("field", b.QualityField),
			slog.Float64("value", quality),
			slog.String("hint", "check headset fitting"),
		)
		return sample
	}

	b.Logger.Debug("sample", slog.Any("values", []float64(sample)))
	return sample
}

func (b *SampleBuilder) lookup(reading Reading, name string) float64 {
	if reading == nil {
		return Missing
	}
	raw, found := reading.Lookup(name)
	if !found {
		return Missing
	}
	value, ok := toFloat64(raw)
	if !ok {
		b.Logger.Debug("nonNumericField", slog.String("field", name), slog.Any("value", raw))
		return Missing
	}
	return value
}

// toFloat64 converts the scalar types produced by JSON decoding and by
// headset drivers. Strings are accepted when they parse as numbers.
func toFloat64(raw any) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int8:
		return float64(v), true
	case int16:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint8:
		return float64(v), true
	case uint16:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	case bool:
		if v {
			return 1, true
		}
		return 0, true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(v, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
