// Copyright (c) 2025 vtrunkd authors
// Licensed under AGPL-3.0 - see LICENSE file for details
// WireGuard® is a registered trademark of Jason A. Donenfeld.

// Package linkmgr implements the Link and Link manager components: one UDP
// socket per physical network path, the liveness tri-state rule, the three
// scheduling policies (aggregate, redundant, failover), and the conn.Bind
// adapter that lets golang.zx2c4.com/wireguard/device.Device send and
// receive through the scheduler instead of a single default socket.
package linkmgr

import (
	"fmt"
	"net"
	"sync"
	"time"
)

// Config describes one configured link, as validated by internal/config.
type Config struct {
	Name       string
	Bind       string // optional; host:port or just host, "" = kernel-chosen
	Endpoint   string // optional configured remote endpoint, host:port
	Weight     int
	BufferSize int // socket buffer request, 0 = kernel default
}

// Link is one UDP socket with a bind address, optional remote endpoint,
// weight, and liveness state.
type Link struct {
	Name   string
	Weight int

	conn *net.UDPConn

	mu              sync.Mutex
	endpoint        *net.UDPAddr // configured, nil if not set
	learned         *net.UDPAddr // discovered from the most recent inbound datagram
	lastRx          time.Time    // zero = never
	lastPingSent    time.Time    // zero = never
	pingStreakStart time.Time    // first ping of the current unanswered streak, zero = none
	lastRTT         time.Duration
	pingSeq         uint64
	backoffUntil    time.Time
}

// NewLink resolves a link's bind and endpoint addresses, applies the
// address-family mirroring rule, and opens its socket.
func NewLink(cfg Config) (*Link, error) {
	if cfg.Weight <= 0 {
		return nil, fmt.Errorf("link %q: weight must be positive", cfg.Name)
	}

	var endpoint *net.UDPAddr
	if cfg.Endpoint != "" {
		addr, err := net.ResolveUDPAddr("udp", cfg.Endpoint)
		if err != nil {
			return nil, fmt.Errorf("link %q: resolve endpoint: %w", cfg.Name, err)
		}
		endpoint = addr
	}

	bindAddr, err := resolveBind(cfg.Bind, endpoint)
	if err != nil {
		return nil, fmt.Errorf("link %q: resolve bind: %w", cfg.Name, err)
	}

	sock, err := net.ListenUDP(bindAddr.Network(), bindAddr)
	if err != nil {
		return nil, fmt.Errorf("link %q: listen: %w", cfg.Name, err)
	}
	if cfg.BufferSize > 0 {
		// Best effort; the kernel clamps to its own limits.
		_ = sock.SetReadBuffer(cfg.BufferSize)
		_ = sock.SetWriteBuffer(cfg.BufferSize)
	}

	return &Link{
		Name:     cfg.Name,
		Weight:   cfg.Weight,
		conn:     sock,
		endpoint: endpoint,
	}, nil
}

// resolveBind mirrors the endpoint's address family: an absent bind host
// defaults to 0.0.0.0 when the endpoint is IPv4 and :: when IPv6. A
// default IPv4 bind cannot reach an IPv6 endpoint and would silently
// fail, so the endpoint's family is the only source of truth when no bind
// host was configured. A bind with no port gets a kernel-chosen one.
func resolveBind(configured string, endpoint *net.UDPAddr) (*net.UDPAddr, error) {
	host, port := "", "0"
	if configured != "" {
		h, p, err := net.SplitHostPort(configured)
		if err != nil {
			h, p = configured, "0" // bare host
		}
		host, port = h, p
	}

	if host == "" {
		host = "0.0.0.0"
		if endpoint != nil && endpoint.IP.To4() == nil {
			host = "::"
		}
	}
	return net.ResolveUDPAddr("udp", net.JoinHostPort(host, port))
}

// Conn returns the link's underlying socket for use by a conn.Bind's
// ReceiveFunc.
func (l *Link) Conn() *net.UDPConn { return l.conn }

// Close tears down the link's socket.
func (l *Link) Close() error { return l.conn.Close() }

// Send transmits b to dst. A send error is non-fatal: the link enters
// error-backoff for backoff and the error is returned so the caller's
// scheduler can skip this link on the next attempt.
func (l *Link) Send(b []byte, dst *net.UDPAddr, backoff time.Duration) error {
	_, err := l.conn.WriteToUDP(b, dst)
	if err != nil {
		l.mu.Lock()
		l.backoffUntil = time.Now().Add(backoff)
		l.mu.Unlock()
	}
	return err
}

// Destination returns the address vtrunkd should send to on this link:
// the configured endpoint if any, else the learned peer address from the
// most recent inbound datagram. ok is false if neither is known, in which
// case the link is not a valid egress choice.
func (l *Link) Destination() (addr *net.UDPAddr, ok bool) {
	if l.endpoint != nil {
		return l.endpoint, true
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.learned == nil {
		return nil, false
	}
	return l.learned, true
}

// ObserveRx records that a datagram arrived from src, updating last-rx and
// the learned endpoint used for destination resolution. Any inbound
// datagram ends the current unanswered-ping streak.
func (l *Link) ObserveRx(src *net.UDPAddr, now time.Time) {
	l.mu.Lock()
	l.lastRx = now
	l.pingStreakStart = time.Time{}
	if l.endpoint == nil {
		l.learned = src
	}
	l.mu.Unlock()
}

// ObservePingSent records that a health ping was sent now and returns the
// sequence number to encode into it. Only the most recent sequence is kept
// — vtrunkd never queues pending pings per link. The streak anchor is set
// only by the first ping after the last inbound datagram: the monitor
// re-pings an idle link every interval, so measuring availability from
// the most recent ping would keep a dead link fresh forever.
func (l *Link) ObservePingSent(now time.Time) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lastPingSent = now
	if l.pingStreakStart.IsZero() {
		l.pingStreakStart = now
	}
	l.pingSeq++
	return l.pingSeq
}

// ObservePong records a pong's round-trip time if seq matches the most
// recently sent ping, and always refreshes last-rx since a pong is itself
// proof of liveness.
func (l *Link) ObservePong(seq uint64, now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lastRx = now
	l.pingStreakStart = time.Time{}
	if seq == l.pingSeq && !l.lastPingSent.IsZero() {
		l.lastRTT = now.Sub(l.lastPingSent)
	}
}

// Available implements the tri-state availability rule: a link is
// available if it has recently received a datagram, or if it has never
// received one but also never been pinged (grace), or if it has never
// received one and its current unanswered-ping streak began within
// timeout. The streak anchor — not the most recent ping — is what gets
// compared: the monitor keeps re-pinging an idle link every interval, and
// interval < timeout, so a most-recent-ping comparison would hold a
// never-responding link available indefinitely. A non-positive timeout
// disables liveness tracking entirely and every link counts as available.
func (l *Link) Available(now time.Time, timeout time.Duration) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.available(now, timeout)
}

func (l *Link) available(now time.Time, timeout time.Duration) bool {
	if timeout <= 0 {
		return true
	}
	if !l.lastRx.IsZero() {
		return now.Sub(l.lastRx) <= timeout
	}
	if l.pingStreakStart.IsZero() {
		return true
	}
	return now.Sub(l.pingStreakStart) <= timeout
}

// NeedsPing reports whether this link has not received a datagram within
// interval, the health monitor's trigger for emitting a probe. A link
// that has never received anything is always idle by this measure.
func (l *Link) NeedsPing(now time.Time, interval time.Duration) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.lastRx.IsZero() {
		return true
	}
	return now.Sub(l.lastRx) >= interval
}

// underBackoff reports whether a recent send error put this link into
// error-backoff.
func (l *Link) underBackoff(now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return !l.backoffUntil.IsZero() && now.Before(l.backoffUntil)
}

// Stats is a snapshot of a link's liveness state, used for status
// reporting.
type Stats struct {
	Name      string
	Weight    int
	Available bool
	LastRx    time.Time
	LastRTT   time.Duration
}

// Snapshot returns a point-in-time view of the link's liveness for status
// reporting.
func (l *Link) Snapshot(now time.Time, timeout time.Duration) Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Stats{
		Name:      l.Name,
		Weight:    l.Weight,
		Available: l.available(now, timeout),
		LastRx:    l.lastRx,
		LastRTT:   l.lastRTT,
	}
}
