// Copyright (c) 2025 vtrunkd authors
// Licensed under AGPL-3.0 - see LICENSE file for details
// WireGuard® is a registered trademark of Jason A. Donenfeld.

package classify

import "testing"

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		in   []byte
		want Kind
	}{
		{"empty", nil, KindEmpty},
		{"handshake-init", []byte{1, 0, 0, 0}, KindWireGuard},
		{"handshake-resp", []byte{2, 0, 0, 0}, KindWireGuard},
		{"cookie-reply", []byte{3, 0, 0, 0}, KindWireGuard},
		{"transport-data", []byte{4, 0, 0, 0}, KindWireGuard},
		{"ping", append([]byte{DiscriminantPing}, make([]byte, 8)...), KindPing},
		{"pong", append([]byte{DiscriminantPong}, make([]byte, 8)...), KindPong},
		{"garbage", []byte{0x42}, KindUnknown},
		{"zero-byte", []byte{0x00}, KindUnknown},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := Classify(c.in); got != c.want {
				t.Errorf("Classify(%v) = %v, want %v", c.in, got, c.want)
			}
		})
	}
}

func TestEncodeDecodeControlRoundTrip(t *testing.T) {
	buf := make([]byte, ControlHeaderLen)
	pkt := EncodePing(buf, 0xdeadbeef)
	if Classify(pkt) != KindPing {
		t.Fatalf("expected KindPing")
	}
	seq, ok := DecodeControl(pkt)
	if !ok || seq != 0xdeadbeef {
		t.Fatalf("DecodeControl() = %v, %v, want 0xdeadbeef, true", seq, ok)
	}

	pong := EncodePong(buf, 7)
	if Classify(pong) != KindPong {
		t.Fatalf("expected KindPong")
	}
	seq, ok = DecodeControl(pong)
	if !ok || seq != 7 {
		t.Fatalf("DecodeControl() = %v, %v, want 7, true", seq, ok)
	}
}

func TestDecodeControlShort(t *testing.T) {
	if _, ok := DecodeControl([]byte{DiscriminantPing, 0, 0}); ok {
		t.Fatalf("expected ok=false for short buffer")
	}
}
