// SPDX-License-Identifier: GPL-3.0-or-later

package thinkgear

import "golang.org/x/sys/unix"

const (
	ioctlGetTermios = unix.TIOCGETA
	ioctlSetTermios = unix.TIOCSETA
)

func setSpeed115200(tio *unix.Termios) {
	tio.Ispeed = unix.B115200
	tio.Ospeed = unix.B115200
}
