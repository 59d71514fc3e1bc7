// Copyright (c) 2025 vtrunkd authors
// Licensed under AGPL-3.0 - see LICENSE file for details
// WireGuard® is a registered trademark of Jason A. Donenfeld.

package session

import (
	"github.com/charmbracelet/log"
	"golang.zx2c4.com/wireguard/device"
)

// NewDeviceLogger adapts the daemon's structured logger into a
// *device.Logger. Device's Verbosef becomes a debug-level log line,
// Errorf an error-level one, both tagged with the owning interface's
// name.
func NewDeviceLogger(l *log.Logger, ifaceName string) *device.Logger {
	named := l.With("component", "wireguard", "iface", ifaceName)
	return &device.Logger{
		Verbosef: func(format string, args ...interface{}) {
			named.Debugf(format, args...)
		},
		Errorf: func(format string, args ...interface{}) {
			named.Errorf(format, args...)
		},
	}
}
