// SPDX-License-Identifier: GPL-3.0-or-later

package mindbridge

import (
	"context"
	"fmt"
	"log/slog"
)

// Known distributions of the Mindwave serial driver.
const (
	MindwaveDriverOrigin = "https://github.com/BarkleyUS/mindwave-python"
	MindwaveDriverFork   = "https://github.com/faturita/python-mindwave"
)

// Headset is a directly connected headset exposing named numeric attributes.
//
// The thinkgear subpackage provides an implementation.
type Headset interface {
	// Connect establishes the dongle-to-headset connection.
	Connect(ctx context.Context) error

	// Next blocks until the driver has decoded new data.
	Next(ctx context.Context) error

	// Value returns a scalar attribute (e.g., "attention").
	Value(attr string) (float64, bool)

	// Wave returns a band power (e.g., "low-alpha").
	Wave(band string) (float64, bool)

	// Close releases the device.
	Close() error
}

// HeadsetOpener opens the headset at the given device path.
//
// When openSerial is false the device must not be configured as a serial port.
type HeadsetOpener func(device, headsetID string, openSerial bool) (Headset, error)

// headsetProbe names where a schema field lives on a [Headset].
type headsetProbe struct {
	wave bool
	name string
}

// headsetProbes maps schema fields to headset attributes. The eight
// rawEegMulti channels, familiarity, and mentalEffort have no mapping
// and are always [Missing].
var headsetProbes = map[string]headsetProbe{
	RawEEGField:          {name: "raw_value"},
	"blinkStrength":      {name: "blink"},
	SignalQualityField:   {name: "poor_signal"},
	"eSense.attention":   {name: "attention"},
	"eSense.meditation":  {name: "meditation"},
	"eegPower.delta":     {wave: true, name: "delta"},
	"eegPower.theta":     {wave: true, name: "theta"},
	"eegPower.lowAlpha":  {wave: true, name: "low-alpha"},
	"eegPower.highAlpha": {wave: true, name: "high-alpha"},
	"eegPower.lowBeta":   {wave: true, name: "low-beta"},
	"eegPower.highBeta":  {wave: true, name: "high-beta"},
	"eegPower.lowGamma":  {wave: true, name: "low-gamma"},
	"eegPower.highGamma": {wave: true, name: "high-gamma"},
}

// DeviceSourceOptions configures a [*DeviceSource].
type DeviceSourceOptions struct {
	// Device is the device path.
	Device string

	// HeadsetID is the optional headset ID.
	HeadsetID string

	// OpenSerial controls whether Device is opened as a serial port.
	OpenSerial bool
}

// NewDeviceSource returns a new [*DeviceSource].
//
// The cfg argument contains the common configuration.
//
// The schema defines which fields [*DeviceSource.Read] probes.
func NewDeviceSource(cfg *Config, schema *FieldSchema, opts DeviceSourceOptions, logger SLogger) *DeviceSource {
	return &DeviceSource{
		Logger:  logger,
		Opener:  cfg.HeadsetOpener,
		Options: opts,
		Schema:  schema,
	}
}

// DeviceSource reads a directly connected headset through a [Headset].
//
// Unlike [*NetworkSource], it does not flatten anything: each read probes
// the driver attributes for every schema field.
type DeviceSource struct {
	// Logger is the [SLogger] to use.
	//
	// Set by [NewDeviceSource] to the user-provided logger.
	Logger SLogger

	// Opener opens the headset.
	//
	// Set by [NewDeviceSource] from [Config.HeadsetOpener].
	Opener HeadsetOpener

	// Options contains the device settings.
	//
	// Set by [NewDeviceSource] to the user-provided options.
	Options DeviceSourceOptions

	// Schema defines the probed fields.
	//
	// Set by [NewDeviceSource] to the user-provided schema.
	Schema *FieldSchema

	headset Headset
}

var _ Source = &DeviceSource{}

// Setup implements [Source].
func (s *DeviceSource) Setup(ctx context.Context) error {
	if s.Opener == nil {
		return fmt.Errorf(
			"%w: no Mindwave headset driver available; install one of:\n%s\n%s",
			ErrConnection, MindwaveDriverOrigin, MindwaveDriverFork,
		)
	}

	s.Logger.Info(
		"headsetConnectStart",
		slog.String("device", s.Options.Device),
		slog.String("headsetID", s.Options.HeadsetID),
		slog.Bool("openSerial", s.Options.OpenSerial),
	)
	headset, err := s.Opener(s.Options.Device, s.Options.HeadsetID, s.Options.OpenSerial)
	if err != nil {
		s.Logger.Info("headsetConnectDone", slog.Any("err", err))
		return fmt.Errorf("%w: cannot open %s: %w", ErrConnection, s.Options.Device, err)
	}
	if err := headset.Connect(ctx); err != nil {
		headset.Close()
		s.Logger.Info("headsetConnectDone", slog.Any("err", err))
		return fmt.Errorf("%w: cannot connect headset on %s: %w", ErrConnection, s.Options.Device, err)
	}
	s.Logger.Info("headsetConnectDone", slog.Any("err", nil))

	s.headset = headset
	return nil
}

// Read implements [Source].
//
// It waits for the driver to decode new data, then returns a [FlatReading]
// with one entry per schema field. Fields without a known attribute, or
// whose attribute the driver has not reported yet, are [Missing].
func (s *DeviceSource) Read(ctx context.Context) (Reading, error) {
	if s.headset == nil {
		return nil, fmt.Errorf("%w: headset not connected", ErrRead)
	}
	if err := s.headset.Next(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRead, err)
	}

	reading := make(FlatReading, s.Schema.Len())
	for _, name := range s.Schema.Names() {
		reading[name] = s.probe(name)
	}
	return reading, nil
}

func (s *DeviceSource) probe(field string) float64 {
	probe, found := headsetProbes[field]
	if !found {
		return Missing
	}
	lookup := s.headset.Value
	if probe.wave {
		lookup = s.headset.Wave
	}
	value, found := lookup(probe.name)
	if !found {
		return Missing
	}
	return value
}

// Write implements [Source].
//
// The headset cannot accept commands: Write logs a warning and returns nil.
func (s *DeviceSource) Write(ctx context.Context, command any) error {
	s.Logger.Warn("writeUnsupported", slog.String("source", "device"), slog.Any("command", command))
	return nil
}

// Close implements [Source].
func (s *DeviceSource) Close() error {
	if s.headset == nil {
		return nil
	}
	headset := s.headset
	s.headset = nil
	return headset.Close()
}
