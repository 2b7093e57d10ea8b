// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strconv"

	"github.com/bassosimone/mindbridge"
	"gopkg.in/yaml.v3"
)

// options contains the command settings.
//
// Values come from the defaults, then from the optional YAML file, then
// from the flags explicitly set on the command line.
type options struct {
	ConfigPath   string `yaml:"-"`
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	Output       string `yaml:"output"`
	Stream       bool   `yaml:"stream"`
	StreamAddr   string `yaml:"stream_addr"`
	DeviceSource bool   `yaml:"device_source"`
	Device       string `yaml:"device"`
	HeadsetID    string `yaml:"headset_id"`
	OpenSerial   bool   `yaml:"open_serial"`
	MetricsAddr  string `yaml:"metrics_addr"`
	LogLevel     string `yaml:"log_level"`
	LogFormat    string `yaml:"log_format"`
}

// DefaultStreamAddr is the default websocket listen address.
const DefaultStreamAddr = "localhost:8765"

func defaultOptions() *options {
	defaults := mindbridge.NewBridgeOptions()
	return &options{
		Host:       defaults.Host,
		Port:       int(defaults.Port),
		Stream:     defaults.Stream,
		StreamAddr: DefaultStreamAddr,
		OpenSerial: defaults.OpenSerial,
		LogLevel:   "info",
		LogFormat:  "text",
	}
}

// invertedBool is a boolean flag clearing the value it points to.
type invertedBool struct {
	value *bool
}

var _ flag.Value = invertedBool{}

func (b invertedBool) IsBoolFlag() bool {
	return true
}

func (b invertedBool) String() string {
	if b.value == nil {
		return "false"
	}
	return strconv.FormatBool(!*b.value)
}

func (b invertedBool) Set(s string) error {
	v, err := strconv.ParseBool(s)
	if err != nil {
		return err
	}
	*b.value = !v
	return nil
}

func newFlagSet(opts *options, output io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet("mindbridge", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.StringVar(&opts.ConfigPath, "config", opts.ConfigPath, "Optional YAML configuration file")
	fs.StringVar(&opts.Host, "host", opts.Host, "The host for the ThinkGear Connector")
	fs.IntVar(&opts.Port, "port", opts.Port, "The port for the ThinkGear Connector")
	fs.StringVar(&opts.Output, "output", opts.Output, "CSV output file or directory (empty disables the file output)")
	fs.Var(invertedBool{&opts.Stream}, "no-stream", "Disable the websocket stream")
	fs.StringVar(&opts.StreamAddr, "stream-addr", opts.StreamAddr, "Websocket stream listen address")
	fs.BoolVar(&opts.DeviceSource, "device-source", opts.DeviceSource, "Read the headset directly instead of the ThinkGear Connector")
	fs.StringVar(&opts.Device, "device", opts.Device, "Headset serial device (e.g., /dev/rfcomm0)")
	fs.StringVar(&opts.HeadsetID, "headset-id", opts.HeadsetID, "Headset ID in hex (e.g., 625f)")
	fs.Var(invertedBool{&opts.OpenSerial}, "no-open-serial", "Do not configure the device as a serial port")
	fs.StringVar(&opts.MetricsAddr, "metrics-addr", opts.MetricsAddr, "Prometheus metrics listen address (empty disables)")
	fs.StringVar(&opts.LogLevel, "log-level", opts.LogLevel, "Log level: debug, info, warn, error")
	fs.StringVar(&opts.LogFormat, "log-format", opts.LogFormat, "Log format: text, json")
	return fs
}

// errDeviceRequired is returned when the device source has no device path.
var errDeviceRequired = errors.New("-device is required with -device-source; you might also need -headset-id")

// parseOptions parses args, loading the YAML file named by -config first.
func parseOptions(args []string, stderr io.Writer) (*options, error) {
	opts := defaultOptions()
	if err := newFlagSet(opts, stderr).Parse(args); err != nil {
		return nil, err
	}

	if opts.ConfigPath != "" {
		loaded, err := loadOptions(opts.ConfigPath)
		if err != nil {
			return nil, err
		}
		// flags take precedence over the file
		if err := newFlagSet(loaded, io.Discard).Parse(args); err != nil {
			return nil, err
		}
		opts = loaded
	}

	if err := opts.validate(); err != nil {
		return nil, err
	}
	return opts, nil
}

func loadOptions(path string) (*options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config: %w", err)
	}
	opts := defaultOptions()
	if err := yaml.Unmarshal(data, opts); err != nil {
		return nil, fmt.Errorf("cannot parse config %s: %w", path, err)
	}
	return opts, nil
}

func (o *options) validate() error {
	if o.DeviceSource && o.Device == "" {
		return errDeviceRequired
	}
	if o.Port <= 0 || o.Port > 65535 {
		return fmt.Errorf("invalid port: %d", o.Port)
	}
	if _, err := o.level(); err != nil {
		return err
	}
	if !slices.Contains([]string{"text", "json"}, o.LogFormat) {
		return fmt.Errorf("invalid log format: %q", o.LogFormat)
	}
	return nil
}

func (o *options) level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(o.LogLevel)); err != nil {
		return 0, fmt.Errorf("invalid log level: %q", o.LogLevel)
	}
	return level, nil
}

func (o *options) bridgeOptions() *mindbridge.BridgeOptions {
	return &mindbridge.BridgeOptions{
		Host:         o.Host,
		Port:         uint16(o.Port),
		OutputPath:   o.Output,
		Stream:       o.Stream,
		DeviceSource: o.DeviceSource,
		DevicePath:   o.Device,
		HeadsetID:    o.HeadsetID,
		OpenSerial:   o.OpenSerial,
	}
}

func (o *options) newLogger(w io.Writer) *slog.Logger {
	level, _ := o.level()
	handlerOpts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler = slog.NewTextHandler(w, handlerOpts)
	if o.LogFormat == "json" {
		handler = slog.NewJSONHandler(w, handlerOpts)
	}
	return slog.New(handler)
}
