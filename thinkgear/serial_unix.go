// SPDX-License-Identifier: GPL-3.0-or-later

//go:build linux || darwin

package thinkgear

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// OpenSerial opens device as a 115200 8N1 raw serial port.
func OpenSerial(device string) (*os.File, error) {
	fd, err := unix.Open(device, unix.O_RDWR|unix.O_NOCTTY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("thinkgear: open %s: %w", device, err)
	}
	if err := configureSerial(fd); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("thinkgear: configure %s: %w", device, err)
	}
	return os.NewFile(uintptr(fd), device), nil
}

func configureSerial(fd int) error {
	tio, err := unix.IoctlGetTermios(fd, ioctlGetTermios)
	if err != nil {
		return err
	}
	tio.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.PARMRK | unix.ISTRIP |
		unix.INLCR | unix.IGNCR | unix.ICRNL | unix.IXON | unix.IXOFF
	tio.Oflag &^= unix.OPOST
	tio.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.ISIG | unix.IEXTEN
	tio.Cflag &^= unix.CSIZE | unix.PARENB | unix.CSTOPB
	tio.Cflag |= unix.CS8 | unix.CREAD | unix.CLOCAL
	tio.Cc[unix.VMIN] = 1
	tio.Cc[unix.VTIME] = 0
	setSpeed115200(tio)
	return unix.IoctlSetTermios(fd, ioctlSetTermios, tio)
}
