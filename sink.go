// SPDX-License-Identifier: GPL-3.0-or-later

package mindbridge

import "fmt"

// Sink persists or transmits every [Sample] built by the [*Bridge].
//
// Implementations: [*StreamSink] and [*FileSink].
type Sink interface {
	// Name identifies the sink in logs and metrics.
	Name() string

	// Setup prepares the sink for the given channels, in schema order.
	// Failures wrap [ErrSetup].
	Setup(channels []Channel) error

	// Push delivers one sample.
	Push(sample Sample) error

	// Close releases the sink.
	Close() error
}

// safePush calls sink.Push and converts a panic into an error.
func safePush(sink Sink, sample Sample) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sink %s panicked: %v", sink.Name(), r)
		}
	}()
	return sink.Push(sample)
}
