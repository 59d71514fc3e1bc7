// Copyright (c) 2025 vtrunkd authors
// Licensed under AGPL-3.0 - see LICENSE file for details
// WireGuard® is a registered trademark of Jason A. Donenfeld.

package session

import (
	"strings"
	"testing"
	"time"
)

func TestBuildIPCOmitsListenPort(t *testing.T) {
	out := BuildIPC(Keys{
		PrivateKeyHex:    "aa",
		PeerPublicKeyHex: "bb",
		PeerAllowedIPs:   []string{"0.0.0.0/0"},
	})
	if containsAny(out, "listen_port=") {
		t.Fatalf("BuildIPC output should never set listen_port, got:\n%s", out)
	}
	if !containsAll(out, "private_key=aa", "public_key=bb", "endpoint="+PeerEndpointPlaceholder) {
		t.Fatalf("BuildIPC missing expected fields:\n%s", out)
	}
}

func TestBuildIPCIncludesOptionalFields(t *testing.T) {
	out := BuildIPC(Keys{
		PrivateKeyHex:       "aa",
		PeerPublicKeyHex:    "bb",
		PresharedKeyHex:     "cc",
		PersistentKeepalive: 25 * time.Second,
		PeerAllowedIPs:      []string{"10.0.0.0/24"},
	})
	if !containsAll(out, "preshared_key=cc", "persistent_keepalive_interval=25", "allowed_ip=10.0.0.0/24") {
		t.Fatalf("BuildIPC missing optional fields:\n%s", out)
	}
}

func TestParseStatus(t *testing.T) {
	raw := "last_handshake_time_sec=1700000000\ntx_bytes=100\nrx_bytes=200\nother=ignored\n"
	st := parseStatus(raw)
	if st.BytesSent != 100 || st.BytesReceived != 200 {
		t.Fatalf("parseStatus() = %+v, want tx=100 rx=200", st)
	}
	if st.LastHandshake.Unix() != 1700000000 {
		t.Fatalf("LastHandshake = %v, want unix 1700000000", st.LastHandshake)
	}
}

func containsAny(haystack string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}

func containsAll(haystack string, needles ...string) bool {
	for _, n := range needles {
		if !strings.Contains(haystack, n) {
			return false
		}
	}
	return true
}
