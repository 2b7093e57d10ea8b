// SPDX-License-Identifier: GPL-3.0-or-later

package mindbridge

import (
	"fmt"
	"log/slog"
	"sync"
)

// Stream metadata declared by [*StreamSink].
const (
	StreamName          = "Mindwave"
	StreamType          = "Gaze"
	StreamChannelFormat = "double64"
	StreamVersion       = "1.0"
)

// StreamInfo describes the live stream declared by a [*StreamSink].
type StreamInfo struct {
	// Name is the stream name.
	Name string `json:"name"`

	// Type is the stream content type.
	Type string `json:"type"`

	// ChannelCount is the number of values of every sample.
	ChannelCount int `json:"channelCount"`

	// ChannelFormat is the numeric format of the values.
	ChannelFormat string `json:"channelFormat"`

	// SourceID identifies the producing process.
	SourceID string `json:"sourceId"`

	// Desc is the attached description.
	Desc StreamDesc `json:"desc"`
}

// StreamDesc is the description attached once to a [StreamInfo].
type StreamDesc struct {
	// Version is [StreamVersion].
	Version string `json:"version"`

	// Channels describes each channel in sample order.
	Channels []Channel `json:"channels"`
}

// StreamTransport opens live streams.
//
// The outlet subpackage provides a websocket implementation.
type StreamTransport interface {
	Open(info *StreamInfo) (StreamOutlet, error)
}

// StreamOutlet transmits the samples of an open stream.
type StreamOutlet interface {
	// PushSample transmits one sample. It must not block.
	PushSample(values []float64) error

	// Close ends the stream.
	Close() error
}

// NewStreamSink returns a new [*StreamSink].
//
// The cfg argument contains the common configuration.
//
// The logger argument is the [SLogger] to use for structured logging.
func NewStreamSink(cfg *Config, logger SLogger) *StreamSink {
	return &StreamSink{
		Logger:    logger,
		SourceID:  ProcessSourceID(),
		Transport: cfg.StreamTransport,
	}
}

// StreamSink transmits samples through a [StreamTransport].
type StreamSink struct {
	// Logger is the [SLogger] to use.
	//
	// Set by [NewStreamSink] to the user-provided logger.
	Logger SLogger

	// SourceID is the stream source identifier.
	//
	// Set by [NewStreamSink] to [ProcessSourceID].
	SourceID string

	// Transport opens the stream.
	//
	// Set by [NewStreamSink] from [Config.StreamTransport].
	Transport StreamTransport

	mu     sync.Mutex
	outlet StreamOutlet
}

var _ Sink = &StreamSink{}

// Name implements [Sink].
func (s *StreamSink) Name() string {
	return "stream"
}

// Setup implements [Sink].
func (s *StreamSink) Setup(channels []Channel) error {
	if s.Transport == nil {
		return fmt.Errorf("%w: no stream transport configured", ErrSetup)
	}
	info := &StreamInfo{
		Name:          StreamName,
		Type:          StreamType,
		ChannelCount:  len(channels),
		ChannelFormat: StreamChannelFormat,
		SourceID:      s.SourceID,
		Desc: StreamDesc{
			Version:  StreamVersion,
			Channels: channels,
		},
	}
	outlet, err := s.Transport.Open(info)
	if err != nil {
		return fmt.Errorf("%w: cannot open stream: %w", ErrSetup, err)
	}
	s.mu.Lock()
	s.outlet = outlet
	s.mu.Unlock()
	s.Logger.Info(
		"streamSinkSetup",
		slog.String("name", info.Name),
		slog.String("sourceID", info.SourceID),
		slog.Int("channelCount", info.ChannelCount),
	)
	return nil
}

// Push implements [Sink].
func (s *StreamSink) Push(sample Sample) error {
	s.mu.Lock()
	outlet := s.outlet
	s.mu.Unlock()
	if outlet == nil {
		return fmt.Errorf("%w: stream sink not set up", ErrNotStarted)
	}
	return outlet.PushSample(sample)
}

// Close implements [Sink].
func (s *StreamSink) Close() error {
	s.mu.Lock()
	outlet := s.outlet
	s.outlet = nil
	s.mu.Unlock()
	if outlet == nil {
		return nil
	}
	return outlet.Close()
}
