// Copyright (c) 2025 vtrunkd authors
// Licensed under AGPL-3.0 - see LICENSE file for details
// WireGuard® is a registered trademark of Jason A. Donenfeld.

// Package buildinfo holds the version string reported by `vtrunkd --version`
// and included in startup log lines, set via -ldflags at release build time.
package buildinfo

// Version is overridden at build time with:
//
//	go build -ldflags "-X github.com/vtrunkd/vtrunkd/internal/buildinfo.Version=v1.2.3"
//
// and otherwise reports "dev" for local builds.
var Version = "dev"
