// SPDX-License-Identifier: GPL-3.0-or-later

// Package mindbridge bridges a single EEG headset data source to one or more sinks.
//
// # Data Flow
//
// A [Bridge] owns exactly one [Source] and an ordered set of [Sink] values. Each
// acquisition tick performs one blocking read, one synchronous conversion, and
// one synchronous fan-out:
//
//	Source.Read -> Reading -> SampleBuilder.Build -> Sample -> Sink.Push (each sink)
//
// The [FieldSchema] fixes the positional layout of every [Sample]: position i
// always carries the metric named by field i. Fields absent from a reading are
// set to [Missing] (NaN); use [IsMissing] to test for them.
//
// # Sources
//
// Two sources are available:
//
//   - [NetworkSource]: connects to the ThinkGear Connector socket (default
//     localhost:13854), reads `\r`-terminated JSON records and flattens them
//     with [Flatten] into a [FlatReading].
//   - [DeviceSource]: drives a directly connected headset through a [Headset]
//     implementation (see the thinkgear subpackage) and probes its attributes.
//
// # Sinks
//
//   - [StreamSink]: declares a "Mindwave" stream with one channel per schema
//     field and pushes samples through a [StreamTransport] (see the outlet
//     subpackage for a websocket transport).
//   - [FileSink]: appends one CSV line per sample below a header row.
//
// # Failure Isolation
//
// Setup failures (no sinks, unreachable source, empty CSV header) are fatal and
// returned to the caller. Per-tick failures (malformed record, failing sink,
// failed command write) are logged and the loop continues. A failing sink does
// not prevent delivery to the sinks configured after it.
//
// # Cancellation
//
// All blocking operations take a [context.Context]. The [NetworkSource] binds
// its socket to the setup context via [CancelWatchFunc], so cancelling that
// context (e.g., using [signal.NotifyContext]) unblocks a pending read. The
// generic error handlers in [*Bridge.Read], [*Bridge.Write], and [*Bridge.Run]
// never swallow a context error.
//
// # Observability
//
// Components log through [SLogger], which [*slog.Logger] satisfies. By default
// logging is disabled. Counters are exported through [Metrics] when a
// Prometheus registerer is provided.
package mindbridge
