// SPDX-License-Identifier: GPL-3.0-or-later

package mindbridge

import (
	"context"
	"errors"
)

// Error categories. Concrete errors wrap one of these together with the
// underlying cause, so callers can test both with [errors.Is].
var (
	// ErrConnection indicates that the source could not be opened. Fatal at setup.
	ErrConnection = errors.New("connection error")

	// ErrSetup indicates that no sink could be configured or a sink could not
	// be initialized (e.g., a CSV file sink without header). Fatal at setup.
	ErrSetup = errors.New("setup error")

	// ErrRead indicates malformed or absent inbound data. The tick is skipped.
	ErrRead = errors.New("read error")

	// ErrWrite indicates that a command could not be sent to the source.
	ErrWrite = errors.New("write error")

	// ErrNotStarted indicates that the [*Bridge] was used before [*Bridge.Setup].
	ErrNotStarted = errors.New("bridge not started: call Setup first")
)

// canceled returns the context error when ctx is done, or when err is itself
// a context error. The acquisition loop must never swallow these.
func canceled(ctx context.Context, err error) error {
	if cerr := ctx.Err(); cerr != nil {
		return cerr
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}
