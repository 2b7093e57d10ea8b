// SPDX-License-Identifier: GPL-3.0-or-later

package mindbridge

import (
	"sync"

	"github.com/bassosimone/runtimex"
	"github.com/google/uuid"
)

// NewSourceID returns a random (version 4) UUID identifying a stream source.
//
// This function panics if the system random number generator fails,
// which should only happen under extraordinary circumstances.
func NewSourceID() string {
	return runtimex.PanicOnError1(uuid.NewRandom()).String()
}

// ProcessSourceID returns the stream source ID of this process.
//
// The ID is generated on first use and stays the same for the
// lifetime of the process, so that stream consumers can recognize
// the outlet across reconnections.
var ProcessSourceID = sync.OnceValue(NewSourceID)
