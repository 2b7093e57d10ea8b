//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: https://github.com/bassosimone/nop/blob/main/slogger.go
//

package mindbridge

// SLogger abstracts the [*slog.Logger] behavior.
//
// Levels are used as follows:
//   - Debug for per-I/O events and for every built sample
//   - Info for lifecycle events (connect, close, setup)
//   - Warn for recoverable per-tick conditions (poor signal, skipped record)
//   - Error for failures recovered by the acquisition loop
//
// The [*slog.Logger] type satisfies this interface.
type SLogger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// DefaultSLogger returns a no-op [SLogger] that discards all output.
func DefaultSLogger() SLogger {
	return discardSLogger{}
}

type discardSLogger struct{}

var _ SLogger = discardSLogger{}

func (discardSLogger) Debug(msg string, args ...any) {}

func (discardSLogger) Info(msg string, args ...any) {}

func (discardSLogger) Warn(msg string, args ...any) {}

func (discardSLogger) Error(msg string, args ...any) {}
