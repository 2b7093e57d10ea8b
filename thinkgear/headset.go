// SPDX-License-Identifier: GPL-3.0-or-later

package thinkgear

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/bassosimone/mindbridge"
)

// Dongle commands.
const (
	CommandConnect     = 0xC0
	CommandAutoConnect = 0xC2
)

// Attribute names returned by [*Headset.Value].
const (
	AttrPoorSignal = "poor_signal"
	AttrAttention  = "attention"
	AttrMeditation = "meditation"
	AttrBlink      = "blink"
	AttrRawValue   = "raw_value"
)

// BandNames lists the band powers of [CodeASICEEGPower] in wire order.
//
// The eighth band covers 41-49.75 Hz.
var BandNames = []string{
	"delta",
	"theta",
	"low-alpha",
	"high-alpha",
	"low-beta",
	"high-beta",
	"low-gamma",
	"high-gamma",
}

// Status is the dongle connection status.
type Status int

// Dongle connection status values.
const (
	StatusIdle Status = iota
	StatusScanning
	StatusStandby
	StatusConnected
	StatusNotFound
	StatusDisconnected
	StatusDenied
)

var statusNames = map[Status]string{
	StatusIdle:         "idle",
	StatusScanning:     "scanning",
	StatusStandby:      "standby",
	StatusConnected:    "connected",
	StatusNotFound:     "notFound",
	StatusDisconnected: "disconnected",
	StatusDenied:       "denied",
}

// String implements [fmt.Stringer].
func (s Status) String() string {
	if name, found := statusNames[s]; found {
		return name
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// Errors returned by [*Headset.Connect].
var (
	ErrHeadsetNotFound = errors.New("thinkgear: headset not found")
	ErrRequestDenied   = errors.New("thinkgear: connection request denied")
	ErrConnectTimeout  = errors.New("thinkgear: timed out waiting for the headset")
)

// DefaultConnectTimeout bounds [*Headset.Connect].
const DefaultConnectTimeout = 10 * time.Second

// Open opens the headset dongle at device.
//
// When openSerial is true, the device is configured as a 115200 8N1 raw
// serial port; otherwise it is opened as is (e.g., a preconfigured tty or
// a named pipe).
//
// The headsetID is the optional global headset ID in hex (e.g., "625f").
func Open(device, headsetID string, openSerial bool, logger mindbridge.SLogger) (*Headset, error) {
	var (
		port *os.File
		err  error
	)
	if openSerial {
		port, err = OpenSerial(device)
	} else {
		port, err = os.OpenFile(device, os.O_RDWR, 0)
	}
	if err != nil {
		return nil, err
	}
	headset, err := New(port, headsetID, logger)
	if err != nil {
		port.Close()
		return nil, err
	}
	return headset, nil
}

// New returns a [*Headset] that takes ownership of port and starts reading from it.
func New(port io.ReadWriteCloser, headsetID string, logger mindbridge.SLogger) (*Headset, error) {
	id, err := parseHeadsetID(headsetID)
	if err != nil {
		return nil, err
	}
	h := &Headset{
		ConnectTimeout: DefaultConnectTimeout,
		Logger:         logger,
		done:           make(chan struct{}),
		id:             id,
		port:           port,
		updated:        make(chan struct{}),
		values:         make(map[string]float64),
		waves:          make(map[string]float64),
	}
	go h.readLoop()
	return h, nil
}

func parseHeadsetID(value string) ([]byte, error) {
	if value == "" {
		return nil, nil
	}
	id, err := hex.DecodeString(value)
	if err != nil || len(id) != 2 {
		return nil, fmt.Errorf("thinkgear: invalid headset ID %q: want four hex digits", value)
	}
	return id, nil
}

// Headset decodes the data sent by a ThinkGear dongle.
//
// A background goroutine parses the port until [*Headset.Close] and keeps
// the latest value of every attribute.
type Headset struct {
	// ConnectTimeout bounds [*Headset.Connect].
	//
	// Set by [New] to [DefaultConnectTimeout].
	ConnectTimeout time.Duration

	// Logger is the [mindbridge.SLogger] to use.
	//
	// Set by [New] to the user-provided logger.
	Logger mindbridge.SLogger

	closeonce sync.Once
	done      chan struct{}
	err       error
	id        []byte
	mu        sync.Mutex
	port      io.ReadWriteCloser
	status    Status
	updated   chan struct{}
	values    map[string]float64
	waves     map[string]float64
}

var _ mindbridge.Headset = &Headset{}

func (h *Headset) readLoop() {
	var (
		buf    = make([]byte, 512)
		parser Parser
	)
	for {
		count, err := h.port.Read(buf)
		for _, b := range buf[:count] {
			if payload, ok := parser.Feed(b); ok {
				h.apply(payload)
			}
		}
		if err != nil {
			h.mu.Lock()
			h.err = err
			h.mu.Unlock()
			close(h.done)
			return
		}
	}
}

// apply updates the state from one payload and wakes the waiters.
func (h *Headset) apply(payload []byte) {
	rows, err := ParsePayload(payload)
	if err != nil {
		h.Logger.Debug("thinkgearPayload", slog.Any("err", err))
	}

	h.mu.Lock()
	for _, row := range rows {
		h.applyRow(row)
	}
	close(h.updated)
	h.updated = make(chan struct{})
	h.mu.Unlock()
}

// applyRow must be called with the mutex held.
func (h *Headset) applyRow(row Row) {
	if row.Excode != 0 {
		return
	}
	switch row.Code {
	case CodePoorSignal:
		h.values[AttrPoorSignal] = float64(row.Value[0])
	case CodeAttention:
		h.values[AttrAttention] = float64(row.Value[0])
	case CodeMeditation:
		h.values[AttrMeditation] = float64(row.Value[0])
	case CodeBlink:
		h.values[AttrBlink] = float64(row.Value[0])
	case CodeRawValue:
		if len(row.Value) == 2 {
			h.values[AttrRawValue] = float64(int16(binary.BigEndian.Uint16(row.Value)))
		}
	case CodeASICEEGPower:
		for idx, name := range BandNames {
			off := idx * 3
			if off+3 > len(row.Value) {
				break
			}
			v := row.Value[off : off+3]
			h.waves[name] = float64(uint32(v[0])<<16 | uint32(v[1])<<8 | uint32(v[2]))
		}
	case CodeHeadsetConnected:
		h.status = StatusConnected
	case CodeHeadsetNotFound:
		h.status = StatusNotFound
	case CodeHeadsetDisconnected:
		h.status = StatusDisconnected
	case CodeRequestDenied:
		h.status = StatusDenied
	case CodeStandbyScan:
		h.status = StatusStandby
		if len(row.Value) > 0 && row.Value[0] != 0 {
			h.status = StatusScanning
		}
	}
	if row.Code < CodeHeadsetConnected && h.status != StatusConnected {
		// headset data implies a connection even without a dongle report
		h.status = StatusConnected
	}
}

// Connect asks the dongle to pair with the headset and waits for the outcome.
//
// Without headset ID the dongle connects to any headset in range.
func (h *Headset) Connect(ctx context.Context) error {
	command := []byte{CommandAutoConnect}
	if len(h.id) > 0 {
		command = append([]byte{CommandConnect}, h.id...)
	}
	h.Logger.Info("thinkgearConnectStart", slog.String("command", hex.EncodeToString(command)))
	if _, err := h.port.Write(command); err != nil {
		h.Logger.Info("thinkgearConnectDone", slog.Any("err", err))
		return err
	}

	if h.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.ConnectTimeout)
		defer cancel()
	}
	err := h.waitConnected(ctx)
	h.Logger.Info("thinkgearConnectDone", slog.Any("err", err), slog.String("status", h.Status().String()))
	return err
}

func (h *Headset) waitConnected(ctx context.Context) error {
	for {
		h.mu.Lock()
		status, updated := h.status, h.updated
		h.mu.Unlock()

		switch status {
		case StatusConnected:
			return nil
		case StatusNotFound:
			return ErrHeadsetNotFound
		case StatusDenied:
			return ErrRequestDenied
		}

		select {
		case <-updated:
		case <-h.done:
			return h.readErr()
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return ErrConnectTimeout
			}
			return ctx.Err()
		}
	}
}

// Next blocks until the next packet has been decoded.
func (h *Headset) Next(ctx context.Context) error {
	h.mu.Lock()
	updated := h.updated
	h.mu.Unlock()

	select {
	case <-updated:
		return nil
	case <-h.done:
		return h.readErr()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Headset) readErr() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return fmt.Errorf("thinkgear: port closed: %w", h.err)
}

// Status returns the last dongle status.
func (h *Headset) Status() Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.status
}

// Value returns the latest value of attr.
func (h *Headset) Value(attr string) (float64, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	value, found := h.values[attr]
	return value, found
}

// Wave returns the latest power of band.
func (h *Headset) Wave(band string) (float64, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	value, found := h.waves[band]
	return value, found
}

// Close closes the port, which stops the background reader.
//
// Subsequent calls return [os.ErrClosed].
func (h *Headset) Close() (err error) {
	err = os.ErrClosed
	h.closeonce.Do(func() {
		err = h.port.Close()
	})
	return
}
