//go:build linux

// Copyright (c) 2025 vtrunkd authors
// Licensed under AGPL-3.0 - see LICENSE file for details
// WireGuard® is a registered trademark of Jason A. Donenfeld.

package orchestrator

import (
	"fmt"
	"net"
	"os/exec"

	"golang.org/x/sys/unix"
)

// configureInterface assigns the tunnel's inner address and brings the TUN
// interface up by shelling out to `ip`. MTU is set via a direct SIOCSIFMTU
// ioctl instead of a third subprocess.
func configureInterface(ifaceName, address, netmask string, mtu int) error {
	ones, _ := net.IPMask(net.ParseIP(netmask).To4()).Size()
	cidr := fmt.Sprintf("%s/%d", address, ones)

	if out, err := exec.Command("ip", "addr", "add", cidr, "dev", ifaceName).CombinedOutput(); err != nil {
		return fmt.Errorf("ip addr add: %w: %s", err, out)
	}
	if err := setMTU(ifaceName, mtu); err != nil {
		return fmt.Errorf("set mtu: %w", err)
	}
	if out, err := exec.Command("ip", "link", "set", "up", "dev", ifaceName).CombinedOutput(); err != nil {
		return fmt.Errorf("ip link set up: %w: %s", err, out)
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

	ifr, err := unix.NewIfreq(ifaceName)
	if err != nil {
		return fmt.Errorf("ifreq for %s: %w", ifaceName, err)
	}
	ifr.SetUint32(uint32(mtu))
	if err := unix.IoctlIfreq(fd, unix.SIOCSIFMTU, ifr); err != nil {
		return fmt.Errorf("ioctl SIOCSIFMTU on %s: %w", ifaceName, err)
	}
	return nil
}
