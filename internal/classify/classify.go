// Copyright (c) 2025 vtrunkd authors
// Licensed under AGPL-3.0 - see LICENSE file for details
// WireGuard® is a registered trademark of Jason A. Donenfeld.

// Package classify implements the inbound packet classifier: the first-byte
// dispatch between WireGuard protocol datagrams and vtrunkd's own
// out-of-band ping/pong control datagrams.
package classify

import "encoding/binary"

// Kind identifies what an inbound UDP datagram turned out to be.
type Kind int

const (
	// KindWireGuard is a standard WireGuard protocol datagram (handshake
	// initiation/response, cookie reply, or transport data) and must be
	// forwarded to the noise engine unmodified.
	KindWireGuard Kind = iota
	// KindPing is a vtrunkd health-monitor probe.
	KindPing
	// KindPong is a reply to a previously sent KindPing.
	KindPong
	// KindEmpty is a zero-length datagram.
	KindEmpty
	// KindUnknown is a non-empty datagram whose first byte matches none of
	// the above; it is dropped and logged, never propagated.
	KindUnknown
)

func (k Kind) String() string {
	switch k {
	case KindWireGuard:
		return "wireguard"
	case KindPing:
		return "ping"
	case KindPong:
		return "pong"
	case KindEmpty:
		return "empty"
	default:
		return "unknown"
	}
}

// Control datagram discriminants. WireGuard's own message types occupy
// 1 (initiation), 2 (response), 3 (cookie reply), 4 (transport data) — see
// golang.zx2c4.com/wireguard/device's MessageInitiationType through
// MessageTransportType. 0xFF and 0xFE sit well outside that range and
// outside the 0 byte some implementations reserve as "uninitialized", so
// neither can collide with a present or future WireGuard message type.
const (
	DiscriminantPing byte = 0xFF
	DiscriminantPong byte = 0xFE
)

// ControlHeaderLen is the fixed size of a control datagram: one
// discriminant byte followed by an 8-byte big-endian sequence number.
const ControlHeaderLen = 1 + 8

const (
	wireGuardTypeMin = 1
	wireGuardTypeMax = 4
)

// Classify inspects the first byte of an inbound datagram and reports what
// it is. It never panics and never allocates.
func Classify(b []byte) Kind {
	if len(b) == 0 {
		return KindEmpty
	}
	switch {
	case b[0] >= wireGuardTypeMin && b[0] <= wireGuardTypeMax:
		return KindWireGuard
	case b[0] == DiscriminantPing:
		return KindPing
	case b[0] == DiscriminantPong:
		return KindPong
	default:
		return KindUnknown
	}
}

// DecodeControl parses a control datagram's sequence number. The caller
// must already know b is a KindPing or KindPong via Classify.
func DecodeControl(b []byte) (seq uint64, ok bool) {
	if len(b) < ControlHeaderLen {
		return 0, false
	}
	return binary.BigEndian.Uint64(b[1:ControlHeaderLen]), true
}

// EncodePing writes a ping control datagram carrying seq into dst, which
// must have length >= ControlHeaderLen, and returns the used slice.
func EncodePing(dst []byte, seq uint64) []byte {
	return encodeControl(dst, DiscriminantPing, seq)
}

// EncodePong writes a pong control datagram echoing seq into dst.
func EncodePong(dst []byte, seq uint64) []byte {
	return encodeControl(dst, DiscriminantPong, seq)
}

func encodeControl(dst []byte, discriminant byte, seq uint64) []byte {
	dst = dst[:ControlHeaderLen]
	dst[0] = discriminant
	binary.BigEndian.PutUint64(dst[1:], seq)
	return dst
}
