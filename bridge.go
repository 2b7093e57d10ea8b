// SPDX-License-Identifier: GPL-3.0-or-later

package mindbridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// NewBridge returns a new [*Bridge] configured by opts.
//
// The cfg argument contains the common configuration.
//
// The metrics argument may be nil.
//
// The logger argument is the [SLogger] to use for structured logging.
func NewBridge(cfg *Config, opts *BridgeOptions, metrics *Metrics, logger SLogger) *Bridge {
	schema := NewMindwaveSchema()
	b := &Bridge{
		Builder:        NewSampleBuilder(schema, metrics, logger),
		Logger:         logger,
		Metrics:        metrics,
		ReadErrorDelay: 100 * time.Millisecond,
		Schema:         schema,
	}

	b.NewSource = func() Source {
		if opts.DeviceSource {
			return NewDeviceSource(cfg, schema, DeviceSourceOptions{
				Device:     opts.DevicePath,
				HeadsetID:  opts.HeadsetID,
				OpenSerial: opts.OpenSerial,
			}, logger)
		}
		return NewNetworkSource(cfg, Endpoint{Host: opts.Host, Port: opts.Port}, logger)
	}

	b.NewSinks = func() ([]Sink, error) {
		var sinks []Sink
		if opts.Stream {
			sinks = append(sinks, NewStreamSink(cfg, logger))
		}
		if opts.OutputPath != "" {
			sinks = append(sinks, NewFileSink(opts.OutputPath, logger))
		}
		return sinks, nil
	}

	return b
}

type bridgeState int

const (
	bridgeUninitialized bridgeState = iota
	bridgeStarted
	bridgeRunning
)

// Bridge owns one [Source] and a set of [Sink] and runs the acquisition loop.
//
// The lifecycle is [*Bridge.Setup], then [*Bridge.Run] until the context is
// done, then [*Bridge.Close]. Per-tick failures are logged and skipped;
// cancellation of the context always stops the loop.
//
// All exported fields are safe to modify after construction but before
// calling [*Bridge.Setup].
type Bridge struct {
	// Builder maps each reading onto a [Sample].
	//
	// Set by [NewBridge] using [Bridge.Schema].
	Builder *SampleBuilder

	// Logger is the [SLogger] to use.
	//
	// Set by [NewBridge] to the user-provided logger.
	Logger SLogger

	// Metrics counts reads, writes, and sink pushes.
	//
	// Set by [NewBridge] to the user-provided metrics.
	Metrics *Metrics

	// NewSinks constructs the configured sinks in delivery order.
	//
	// Set by [NewBridge] according to [BridgeOptions.Stream] and
	// [BridgeOptions.OutputPath].
	NewSinks func() ([]Sink, error)

	// NewSource constructs the configured source.
	//
	// Set by [NewBridge] according to [BridgeOptions.DeviceSource].
	NewSource func() Source

	// ReadErrorDelay is how long [*Bridge.Run] waits after a failed read.
	// Zero disables waiting.
	//
	// Set by [NewBridge] to 100 milliseconds.
	ReadErrorDelay time.Duration

	// Schema defines the sample layout and the sink channels.
	//
	// Set by [NewBridge] to [NewMindwaveSchema].
	Schema *FieldSchema

	channels []Channel
	mu       sync.Mutex
	sinks    []Sink
	source   Source
	state    bridgeState
}

// Setup constructs and initializes the sinks and the source.
//
// Setup is idempotent: once it succeeds, subsequent calls return the
// same source without constructing anything. Sinks are set up first; when
// no sink is configured, Setup fails with [ErrSetup] and no source is
// constructed. A source failure aborts setup and closes the sinks.
func (b *Bridge) Setup(ctx context.Context) (Source, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != bridgeUninitialized {
		return b.source, nil
	}

	channels := b.Schema.Channels()
	sinks, err := b.setupSinks(channels)
	if err != nil {
		return nil, err
	}

	source := b.NewSource()
	if err := source.Setup(ctx); err != nil {
		closeSinks(sinks)
		return nil, err
	}

	b.channels = channels
	b.sinks = sinks
	b.source = source
	b.state = bridgeStarted
	b.Logger.Info("bridgeStarted", slog.Int("channels", len(channels)), slog.Int("sinks", len(sinks)))
	return source, nil
}

func (b *Bridge) setupSinks(channels []Channel) ([]Sink, error) {
	sinks, err := b.NewSinks()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSetup, err)
	}
	if len(sinks) == 0 {
		return nil, fmt.Errorf("%w: no sink configured: enable the stream or set an output path", ErrSetup)
	}
	for idx, sink := range sinks {
		if err := sink.Setup(channels); err != nil {
			closeSinks(sinks[:idx])
			return nil, err
		}
	}
	return sinks, nil
}

func closeSinks(sinks []Sink) error {
	var errs []error
	for _, sink := range sinks {
		errs = append(errs, sink.Close())
	}
	return errors.Join(errs...)
}

// Started reports whether [*Bridge.Setup] has succeeded.
func (b *Bridge) Started() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state != bridgeUninitialized
}

// Channels returns the channel descriptors built by [*Bridge.Setup].
func (b *Bridge) Channels() []Channel {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.channels
}

func (b *Bridge) started() (Source, []Sink, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == bridgeUninitialized {
		return nil, nil, ErrNotStarted
	}
	return b.source, b.sinks, nil
}

// Write sends command to the source.
//
// Returns [ErrNotStarted] before [*Bridge.Setup] and the context error on
// cancellation. Any other failure is logged and swallowed.
func (b *Bridge) Write(ctx context.Context, command any) error {
	source, _, err := b.started()
	if err != nil {
		return err
	}
	if err := source.Write(ctx, command); err != nil {
		if cerr := canceled(ctx, err); cerr != nil {
			return cerr
		}
		b.Metrics.writeError()
		b.Logger.Warn("writeFailed", slog.Any("command", command), slog.Any("err", err))
	}
	return nil
}

// Read returns the next reading from the source.
//
// Returns [ErrNotStarted] before [*Bridge.Setup] and the context error on
// cancellation. Any other failure is logged and reported as a nil reading.
func (b *Bridge) Read(ctx context.Context) (Reading, error) {
	reading, _, err := b.read(ctx)
	return reading, err
}

// read is like Read and also reports whether the source failed.
func (b *Bridge) read(ctx context.Context) (Reading, bool, error) {
	source, _, err := b.started()
	if err != nil {
		return nil, false, err
	}
	reading, err := source.Read(ctx)
	if err != nil {
		if cerr := canceled(ctx, err); cerr != nil {
			return nil, false, cerr
		}
		b.Metrics.readError()
		b.Logger.Warn("readFailed", slog.Any("err", err))
		return nil, true, nil
	}
	b.Metrics.reading()
	return reading, false, nil
}

// Run reads, builds, and delivers samples until ctx is done.
//
// Returns [ErrNotStarted] before [*Bridge.Setup]; otherwise Run only
// returns the context error. Samples go to every sink in configuration
// order and a failing sink does not prevent delivery to the others.
func (b *Bridge) Run(ctx context.Context) error {
	b.mu.Lock()
	if b.state == bridgeUninitialized {
		b.mu.Unlock()
		return ErrNotStarted
	}
	b.state = bridgeRunning
	sinks := b.sinks
	b.mu.Unlock()

	b.Logger.Info("bridgeRunning")
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		reading, failed, err := b.read(ctx)
		if err != nil {
			return err
		}
		if failed {
			if err := b.wait(ctx); err != nil {
				return err
			}
			continue
		}
		if isEmpty(reading) {
			continue
		}
		b.tick(reading, sinks)
	}
}

func (b *Bridge) wait(ctx context.Context) error {
	if b.ReadErrorDelay <= 0 {
		return nil
	}
	timer := time.NewTimer(b.ReadErrorDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// tick builds one sample and pushes it to every sink.
func (b *Bridge) tick(reading Reading, sinks []Sink) {
	defer func() {
		if r := recover(); r != nil {
			b.Logger.Error("tickFailed", slog.Any("panic", r))
		}
	}()
	sample := b.Builder.Build(reading)
	for _, sink := range sinks {
		err := safePush(sink, sample)
		b.Metrics.sinkPushed(sink.Name(), err)
		if err != nil {
			b.Logger.Warn("sinkPushFailed", slog.String("sink", sink.Name()), slog.Any("err", err))
		}
	}
}

// Close releases the source and the sinks.
//
// After Close, the bridge is no longer started.
func (b *Bridge) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == bridgeUninitialized {
		return nil
	}
	errs := []error{b.source.Close(), closeSinks(b.sinks)}
	b.source, b.sinks, b.channels = nil, nil, nil
	b.state = bridgeUninitialized
	b.Logger.Info("bridgeClosed")
	return errors.Join(errs...)
}
