// SPDX-License-Identifier: GPL-3.0-or-later

package thinkgear

import (
	"errors"
	"fmt"
)

// Packet framing.
const (
	// SyncByte is sent twice before every packet.
	SyncByte = 0xAA

	// ExcodeByte prefixes a row code once per extended code level.
	ExcodeByte = 0x55

	// MaxPayloadLength is the largest valid payload length.
	MaxPayloadLength = 169
)

// Data row codes.
const (
	CodePoorSignal          = 0x02
	CodeAttention           = 0x04
	CodeMeditation          = 0x05
	CodeBlink               = 0x16
	CodeRawValue            = 0x80
	CodeASICEEGPower        = 0x83
	CodeHeadsetConnected    = 0xD0
	CodeHeadsetNotFound     = 0xD1
	CodeHeadsetDisconnected = 0xD2
	CodeRequestDenied       = 0xD3
	CodeStandbyScan         = 0xD4
)

// Row is one data row of a packet payload.
type Row struct {
	// Excode is the number of [ExcodeByte] prefixes.
	Excode int

	// Code is the row code.
	Code byte

	// Value is the row value. Codes below 0x80 have a single-byte value.
	Value []byte
}

// ErrMalformedPayload indicates a payload that cannot be split into rows.
var ErrMalformedPayload = errors.New("thinkgear: malformed payload")

// ParsePayload splits a checksum-verified payload into rows.
func ParsePayload(payload []byte) ([]Row, error) {
	var rows []Row
	for idx := 0; idx < len(payload); {
		var row Row
		for idx < len(payload) && payload[idx] == ExcodeByte {
			row.Excode++
			idx++
		}
		if idx >= len(payload) {
			return rows, fmt.Errorf("%w: missing code after excode", ErrMalformedPayload)
		}
		row.Code = payload[idx]
		idx++

		vlen := 1
		if row.Code >= 0x80 {
			if idx >= len(payload) {
				return rows, fmt.Errorf("%w: missing length for code 0x%02X", ErrMalformedPayload, row.Code)
			}
			vlen = int(payload[idx])
			idx++
		}
		if idx+vlen > len(payload) {
			return rows, fmt.Errorf("%w: truncated value for code 0x%02X", ErrMalformedPayload, row.Code)
		}
		row.Value = payload[idx : idx+vlen]
		idx += vlen
		rows = append(rows, row)
	}
	return rows, nil
}

// Checksum returns the checksum of payload.
func Checksum(payload []byte) byte {
	var sum byte
	for _, b := range payload {
		sum += b
	}
	return ^sum
}

// Encode frames payload into a packet.
func Encode(payload []byte) []byte {
	packet := make([]byte, 0, len(payload)+4)
	packet = append(packet, SyncByte, SyncByte, byte(len(payload)))
	packet = append(packet, payload...)
	return append(packet, Checksum(payload))
}

type parserState int

const (
	stateSync parserState = iota
	stateSyncCheck
	stateLength
	statePayload
	stateChecksum
)

// Parser extracts packet payloads from the serial byte stream.
//
// The zero value is ready to use. Packets with an invalid length or a bad
// checksum are dropped and counted in Dropped.
type Parser struct {
	// Dropped counts the discarded packets.
	Dropped int

	length  int
	payload []byte
	state   parserState
}

// Feed consumes one byte and returns a payload when b completes a valid packet.
//
// The returned slice is owned by the caller.
func (p *Parser) Feed(b byte) ([]byte, bool) {
	switch p.state {
	case stateSync:
		if b == SyncByte {
			p.state = stateSyncCheck
		}

	case stateSyncCheck:
		if b == SyncByte {
			p.state = stateLength
		} else {
			p.state = stateSync
		}

	case stateLength:
		switch {
		case b == SyncByte:
			// more than two sync bytes: keep waiting for the length
		case int(b) > MaxPayloadLength:
			p.Dropped++
			p.state = stateSync
		default:
			p.length = int(b)
			p.payload = make([]byte, 0, p.length)
			p.state = statePayload
			if p.length == 0 {
				p.state = stateChecksum
			}
		}

	case statePayload:
		p.payload = append(p.payload, b)
		if len(p.payload) >= p.length {
			p.state = stateChecksum
		}

	case stateChecksum:
		p.state = stateSync
		if Checksum(p.payload) != b {
			p.Dropped++
			return nil, false
		}
		return p.payload, true
	}
	return nil, false
}
