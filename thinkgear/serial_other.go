// SPDX-License-Identifier: GPL-3.0-or-later

//go:build !linux && !darwin

package thinkgear

import (
	"errors"
	"os"
)

// ErrSerialUnsupported indicates that this system cannot configure serial ports.
var ErrSerialUnsupported = errors.New("thinkgear: serial ports not supported on this system")

// OpenSerial always fails with [ErrSerialUnsupported]. Open the device
// without serial setup instead.
func OpenSerial(device string) (*os.File, error) {
	return nil, ErrSerialUnsupported
}
