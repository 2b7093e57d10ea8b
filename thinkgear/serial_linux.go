// SPDX-License-Identifier: GPL-3.0-or-later

package thinkgear

import "golang.org/x/sys/unix"

const (
	ioctlGetTermios = unix.TCGETS
	ioctlSetTermios = unix.TCSETS
)

func setSpeed115200(tio *unix.Termios) {
	tio.Cflag &^= unix.CBAUD
	tio.Cflag |= unix.B115200
	tio.Ispeed = unix.B115200
	tio.Ospeed = unix.B115200
}
