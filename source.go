// SPDX-License-Identifier: GPL-3.0-or-later

package mindbridge

import "context"

// Source acquires one [Reading] per tick and optionally accepts commands.
//
// Implementations: [*NetworkSource] and [*DeviceSource].
type Source interface {
	// Setup opens the source. Failures wrap [ErrConnection].
	Setup(ctx context.Context) error

	// Read blocks until the next reading. Malformed data wraps [ErrRead].
	Read(ctx context.Context) (Reading, error)

	// Write sends a command to the origin device. Failures wrap [ErrWrite].
	// Sources that cannot accept commands document Write as a no-op.
	Write(ctx context.Context, command any) error

	// Close releases the source.
	Close() error
}
