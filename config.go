// SPDX-License-Identifier: GPL-3.0-or-later

package mindbridge

import (
	"net"
	"time"
)

// Config holds the runtime dependencies shared by the bridge components.
//
// Pass this to constructor functions to pre-wire dependencies.
// All fields have sensible defaults set by [NewConfig].
type Config struct {
	// Dialer is used by [*ConnectFunc] to reach the ThinkGear Connector.
	//
	// Set by [NewConfig] to [*net.Dialer].
	Dialer Dialer

	// ErrClassifier classifies errors for structured logging.
	//
	// Set by [NewConfig] to [DefaultErrClassifier].
	ErrClassifier ErrClassifier

	// HeadsetOpener opens a directly connected headset for [*DeviceSource].
	//
	// Set by [NewConfig] to nil, meaning that no driver is available. The
	// command wires this to the thinkgear package.
	HeadsetOpener HeadsetOpener

	// StreamTransport opens the live stream used by [*StreamSink].
	//
	// Set by [NewConfig] to nil. A [*StreamSink] without a transport fails
	// its setup with [ErrSetup].
	StreamTransport StreamTransport

	// TimeNow returns the current time.
	//
	// Set by [NewConfig] to [time.Now].
	TimeNow func() time.Time
}

// NewConfig creates a [*Config] with sensible defaults.
func NewConfig() *Config {
	return &Config{
		Dialer:          &net.Dialer{},
		ErrClassifier:   DefaultErrClassifier,
		HeadsetOpener:   nil,
		StreamTransport: nil,
		TimeNow:         time.Now,
	}
}

// Default ThinkGear Connector address.
const (
	DefaultHost = "localhost"
	DefaultPort = 13854
)

// BridgeOptions contains the user-facing settings used by [NewBridge].
//
// Construct using [NewBridgeOptions] to get the defaults.
type BridgeOptions struct {
	// Host is the ThinkGear Connector host.
	Host string

	// Port is the ThinkGear Connector port.
	Port uint16

	// OutputPath enables the [*FileSink] when not empty.
	OutputPath string

	// Stream enables the [*StreamSink].
	Stream bool

	// DeviceSource selects the [*DeviceSource] instead of the [*NetworkSource].
	DeviceSource bool

	// DevicePath is the headset serial device (e.g., /dev/rfcomm0).
	DevicePath string

	// HeadsetID is the optional headset ID (hex) used when pairing.
	HeadsetID string

	// OpenSerial controls whether the device path is opened as a serial port.
	OpenSerial bool
}

// NewBridgeOptions returns the default [*BridgeOptions].
func NewBridgeOptions() *BridgeOptions {
	return &BridgeOptions{
		Host:       DefaultHost,
		Port:       DefaultPort,
		Stream:     true,
		OpenSerial: true,
	}
}
