// Copyright (c) 2025 vtrunkd authors
// Licensed under AGPL-3.0 - see LICENSE file for details
// WireGuard® is a registered trademark of Jason A. Donenfeld.

// Package session implements the tunnel session: a thin wrapper around
// golang.zx2c4.com/wireguard/device.Device rather than a hand-rolled
// noise-protocol state machine. Device's own internal goroutines already
// perform the session's three verbs:
//
//   - encapsulate: triggered by a TUN read, emitted via the conn.Bind's
//     Send (which, in this daemon, is internal/linkmgr's scheduler).
//   - decapsulate: triggered by a conn.Bind ReceiveFunc yielding bytes,
//     written to TUN on success.
//   - tick: Device's internal timer routines drive handshake retransmit
//     and keepalive deadlines without any help from the caller.
//
// Session's job is lifecycle (Up/Down/Close/Wait), applying configuration
// via the UAPI text protocol, and translating IpcGet output into a status
// snapshot.
package session

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.zx2c4.com/wireguard/conn"
	"golang.zx2c4.com/wireguard/device"
	"golang.zx2c4.com/wireguard/tun"
)

// PeerEndpointPlaceholder is the value BuildIPC writes on the peer's
// endpoint line. The multi-link Bind's ParseEndpoint discards it; it
// exists only so Device considers the peer reachable and will initiate a
// handshake before any inbound traffic has arrived.
const PeerEndpointPlaceholder = "vtrunkd-peer"

// Keys bundles the noise-protocol key material a session is configured
// with.
type Keys struct {
	PrivateKeyHex       string
	PeerPublicKeyHex    string
	PresharedKeyHex     string // optional, "" if unused
	PersistentKeepalive time.Duration
	PeerAllowedIPs      []string
}

// Session wraps a *device.Device bringing up one TUN interface and routing
// its WireGuard traffic through a caller-supplied conn.Bind (in practice,
// internal/linkmgr's scheduler).
type Session struct {
	dev    *device.Device
	tunDev tun.Device
}

// New creates the TUN device and the underlying WireGuard device bound to
// bind.
func New(ifaceName string, mtu int, bind conn.Bind, logger *device.Logger) (*Session, error) {
	tunDev, err := tun.CreateTUN(ifaceName, mtu)
	if err != nil {
		return nil, fmt.Errorf("create tun %q: %w", ifaceName, err)
	}

	dev := device.NewDevice(tunDev, bind, logger)
	if dev == nil {
		_ = tunDev.Close()
		return nil, fmt.Errorf("create device on %q", ifaceName)
	}

	return &Session{dev: dev, tunDev: tunDev}, nil
}

// ApplyConfig pushes UAPI configuration text built by BuildIPC to the
// device.
func (s *Session) ApplyConfig(config string) error {
	return s.dev.IpcSet(config)
}

// Up brings the tunnel session up: handshake and data processing
// goroutines start running inside device.Device.
func (s *Session) Up() error { return s.dev.Up() }

// Down stops all processing without releasing the device's resources.
func (s *Session) Down() error { return s.dev.Down() }

// Close releases the device and its TUN handle. Idempotent per
// device.Device's own contract.
func (s *Session) Close() {
	s.dev.Close()
}

// Wait returns a channel that is closed once the device has fully closed — used by the orchestrator
// to detect an unexpected device-level exit if Close was never called by this process itself.
func (s *Session) Wait() <-chan struct{} { return s.dev.Wait() }

// TunName reports the TUN interface's actual kernel-assigned name.
func (s *Session) TunName() (string, error) { return s.tunDev.Name() }

// BuildIPC renders the UAPI config text for a single-peer tunnel. vtrunkd
// never sets listen_port: the links bind their own sockets, so the port
// Device would listen on is meaningless. The endpoint line carries a fixed
// placeholder — the Bind's ParseEndpoint ignores the string and hands back
// its singleton peer endpoint — because Device refuses to initiate a
// handshake toward a peer with no endpoint at all, while actual addressing
// is owned entirely by the scheduler.
func BuildIPC(k Keys) string {
	var b strings.Builder
	fmt.Fprintf(&b, "private_key=%s\n", k.PrivateKeyHex)
	fmt.Fprintf(&b, "public_key=%s\n", k.PeerPublicKeyHex)
	fmt.Fprintf(&b, "endpoint=%s\n", PeerEndpointPlaceholder)
	if k.PresharedKeyHex != "" {
		fmt.Fprintf(&b, "preshared_key=%s\n", k.PresharedKeyHex)
	}
	for _, cidr := range k.PeerAllowedIPs {
		fmt.Fprintf(&b, "allowed_ip=%s\n", cidr)
	}
	if k.PersistentKeepalive > 0 {
		fmt.Fprintf(&b, "persistent_keepalive_interval=%d\n", int(k.PersistentKeepalive.Seconds()))
	}
	return b.String()
}

// Status is a snapshot of tunnel health, parsed from IpcGet output.
type Status struct {
	LastHandshake time.Time
	BytesSent     int64
	BytesReceived int64
}

// Status queries the device's current IPC state and parses it.
func (s *Session) Status() (Status, error) {
	raw, err := s.dev.IpcGet()
	if err != nil {
		return Status{}, err
	}
	return parseStatus(raw), nil
}

func parseStatus(raw string) Status {
	var st Status
	for _, line := range strings.Split(raw, "\n") {
		k, v, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		switch k {
		case "last_handshake_time_sec":
			if sec, err := strconv.ParseInt(v, 10, 64); err == nil && sec > 0 {
				st.LastHandshake = time.Unix(sec, 0)
			}
		case "tx_bytes":
			if n, err := strconv.ParseInt(v, 10, 64); err == nil {
				st.BytesSent = n
			}
		case "rx_bytes":
			if n, err := strconv.ParseInt(v, 10, 64); err == nil {
				st.BytesReceived = n
			}
		}
	}
	return st
}
