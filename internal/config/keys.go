// Copyright (c) 2025 vtrunkd authors
// Licensed under AGPL-3.0 - see LICENSE file for details
// WireGuard® is a registered trademark of Jason A. Donenfeld.

package config

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/curve25519"
)

// KeyPair is a generated Curve25519 static key pair, hex-encoded (the
// format session.BuildIPC/device.NoisePrivateKey.FromHex expect).
type KeyPair struct {
	PrivateKeyHex string
	PublicKeyHex  string
}

// GenerateKeyPair creates a new Curve25519 private key with the standard
// clamping applied, and derives its public key — the same two-step
// sequence as core/keys.go's GeneratePrivateKey/DerivePublicKey, kept
// together here since every caller needs both.
func GenerateKeyPair() (KeyPair, error) {
	var priv [32]byte
	if _, err := rand.Read(priv[:]); err != nil {
		return KeyPair{}, fmt.Errorf("random read: %w", err)
	}
	priv[0] &= 248
	priv[31] &= 127
	priv[31] |= 64

	pub, err := curve25519.X25519(priv[:], curve25519.Basepoint)
	if err != nil {
		return KeyPair{}, fmt.Errorf("x25519: %w", err)
	}

	return KeyPair{
		PrivateKeyHex: hex.EncodeToString(priv[:]),
		PublicKeyHex:  hex.EncodeToString(pub),
	}, nil
}

// DerivePublicKeyHex derives a hex-encoded public key from a hex-encoded
// private key, for the `vtrunkd pubkey` CLI subcommand.
func DerivePublicKeyHex(privHex string) (string, error) {
	privBytes, err := hex.DecodeString(privHex)
	if err != nil || len(privBytes) != 32 {
		return "", fmt.Errorf("invalid private key hex")
	}
	pub, err := curve25519.X25519(privBytes, curve25519.Basepoint)
	if err != nil {
		return "", fmt.Errorf("x25519: %w", err)
	}
	return hex.EncodeToString(pub), nil
}

// GeneratePresharedKeyHex creates a random 32-byte preshared key.
func GeneratePresharedKeyHex() (string, error) {
	var key [32]byte
	if _, err := rand.Read(key[:]); err != nil {
		return "", fmt.Errorf("random read: %w", err)
	}
	return hex.EncodeToString(key[:]), nil
}

// HexToBase64 converts a hex-encoded key to the base64 form WireGuard's
// own config file format and `wg` CLI use, for interoperable display.
func HexToBase64(hexStr string) (string, error) {
	b, err := hex.DecodeString(hexStr)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b), nil
}
