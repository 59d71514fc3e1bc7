// Copyright (c) 2025 vtrunkd authors
// Licensed under AGPL-3.0 - see LICENSE file for details
// WireGuard® is a registered trademark of Jason A. Donenfeld.

package config

import (
	"bytes"
	"encoding/base64"
	"encoding/hex"
	"strings"
	"testing"
)

const testPrivateKeyHex = "0000000000000000000000000000000000000000000000000000000000000000"
const testPeerPublicKeyHex = "1111111111111111111111111111111111111111111111111111111111111111"

func baseYAML(extra string) string {
	return `
mtu: 1420
interface: vtrunk0
private_key: "` + testPrivateKeyHex + `"
peer_public_key: "` + testPeerPublicKeyHex + `"
bonding_mode: aggregate
health_check_enabled: false
links:
  - name: wifi
    weight: 1
    endpoint: 198.51.100.1:51820
` + extra
}

func TestLoadValid(t *testing.T) {
	cfg, err := Load(strings.NewReader(baseYAML("")))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.BufferSize != cfg.MTU {
		t.Fatalf("buffer_size default = %d, want %d", cfg.BufferSize, cfg.MTU)
	}
}

func TestRejectMTUOutOfRange(t *testing.T) {
	yaml := strings.Replace(baseYAML(""), "mtu: 1420", "mtu: 70000", 1)
	_, err := Load(strings.NewReader(yaml))
	if err == nil || !strings.Contains(err.Error(), "mtu") {
		t.Fatalf("Load() error = %v, want error naming mtu", err)
	}
}

func TestRejectBufferSmallerThanMTU(t *testing.T) {
	yaml := baseYAML("buffer_size: 100\n")
	_, err := Load(strings.NewReader(yaml))
	if err == nil || !strings.Contains(err.Error(), "buffer_size") || !strings.Contains(err.Error(), "mtu") {
		t.Fatalf("Load() error = %v, want error naming buffer_size and mtu", err)
	}
}

func TestRejectTimeoutNotGreaterThanDefaultInterval(t *testing.T) {
	yaml := strings.Replace(baseYAML("health_check_timeout_ms: 500\n"), "health_check_enabled: false", "health_check_enabled: true", 1)
	_, err := Load(strings.NewReader(yaml))
	if err == nil || !strings.Contains(err.Error(), "health_check_timeout_ms") {
		t.Fatalf("Load() error = %v, want error naming health_check_timeout_ms", err)
	}
}

// TestRejectTimeoutNotGreaterThanDefaultIntervalEvenWhenDisabled: the
// timeout/interval relationship is a property of the config object, not
// conditioned on health_check_enabled.
func TestRejectTimeoutNotGreaterThanDefaultIntervalEvenWhenDisabled(t *testing.T) {
	yaml := baseYAML("health_check_timeout_ms: 500\n")
	_, err := Load(strings.NewReader(yaml))
	if err == nil || !strings.Contains(err.Error(), "health_check_timeout_ms") {
		t.Fatalf("Load() error = %v, want error naming health_check_timeout_ms even with health checking disabled", err)
	}
}

func TestRejectUnknownField(t *testing.T) {
	yaml := baseYAML("not_a_real_field: true\n")
	if _, err := Load(strings.NewReader(yaml)); err == nil {
		t.Fatalf("expected error for unknown field")
	}
}

func TestRejectNoLinks(t *testing.T) {
	yaml := `
mtu: 1420
interface: vtrunk0
private_key: deadbeef
peer_public_key: deadbeef
bonding_mode: aggregate
links: []
`
	if _, err := Load(strings.NewReader(yaml)); err == nil {
		t.Fatalf("expected error for empty links")
	}
}

func TestGenerateKeyPairRoundTrip(t *testing.T) {
	kp, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	pub, err := DerivePublicKeyHex(kp.PrivateKeyHex)
	if err != nil {
		t.Fatalf("DerivePublicKeyHex: %v", err)
	}
	if pub != kp.PublicKeyHex {
		t.Fatalf("derived public key %s != generated %s", pub, kp.PublicKeyHex)
	}
}

func TestGeneratePresharedKeyHexIsValidHex32(t *testing.T) {
	psk, err := GeneratePresharedKeyHex()
	if err != nil {
		t.Fatalf("GeneratePresharedKeyHex: %v", err)
	}
	if len(psk) != 64 {
		t.Fatalf("preshared key hex length = %d, want 64", len(psk))
	}
	if _, err := hex.DecodeString(psk); err != nil {
		t.Fatalf("preshared key is not valid hex: %v", err)
	}
}

func TestHexToBase64RoundTrip(t *testing.T) {
	kp, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	b64, err := HexToBase64(kp.PrivateKeyHex)
	if err != nil {
		t.Fatalf("HexToBase64: %v", err)
	}
	decoded, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		t.Fatalf("base64 output does not decode: %v", err)
	}
	want, _ := hex.DecodeString(kp.PrivateKeyHex)
	if !bytes.Equal(decoded, want) {
		t.Fatalf("HexToBase64 round trip mismatch")
	}
}

func TestHexToBase64RejectsInvalidHex(t *testing.T) {
	if _, err := HexToBase64("not-hex"); err == nil {
		t.Fatalf("expected error for invalid hex input")
	}
}
