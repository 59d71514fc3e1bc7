//go:build darwin

// Copyright (c) 2025 vtrunkd authors
// Licensed under AGPL-3.0 - see LICENSE file for details
// WireGuard® is a registered trademark of Jason A. Donenfeld.

package orchestrator

import (
	"fmt"
	"os/exec"

	"golang.org/x/sys/unix"
)

// configureInterface assigns the tunnel's inner address on a utunN
// interface via ifconfig's point-to-point syntax. MTU is set with a
// SIOCSIFMTU ioctl instead of being folded into the ifconfig invocation.
func configureInterface(ifaceName, address, netmask string, mtu int) error {
	if out, err := exec.Command("ifconfig", ifaceName, address, address, "netmask", netmask, "up").CombinedOutput(); err != nil {
		return fmt.Errorf("ifconfig: %w: %s", err, out)
	}
	if err := setMTU(ifaceName, mtu); err != nil {
		return fmt.Errorf("set mtu: %w", err)
	}
	return nil
}

// setMTU sets ifaceName's MTU with a SIOCSIFMTU ioctl over a throwaway
// AF_INET socket.
func setMTU(ifaceName string, mtu int) error {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_DGRAM, 0)
	if err != nil {
		return fmt.Errorf("socket for mtu ioctl: %w", err)
	}
	defer func() { _ = unix.Close(fd) }()

	var ifr unix.IfreqMTU
	copy(ifr.Name[:], ifaceName)
	ifr.MTU = int32(mtu)
	if err := unix.IoctlSetIfreqMTU(fd, &ifr); err != nil {
		return fmt.Errorf("ioctl SIOCSIFMTU on %s: %w", ifaceName, err)
	}
	return nil
}
