// Copyright (c) 2025 vtrunkd authors
// Licensed under AGPL-3.0 - see LICENSE file for details
// WireGuard® is a registered trademark of Jason A. Donenfeld.

package linkmgr

import (
	"errors"
	"net"
	"sync"
	"time"
)

// Mode selects one of the three scheduling policies.
type Mode int

const (
	// ModeAggregate stripes packets across available links weighted by
	// their configured weight (alias: bonding).
	ModeAggregate Mode = iota
	// ModeRedundant sends every outbound datagram on every reachable link.
	ModeRedundant
	// ModeFailover sends on the single highest-weight available link.
	ModeFailover
)

// ParseMode maps a configuration string to a Mode. "bonding" is an alias
// for "aggregate".
func ParseMode(s string) (Mode, error) {
	switch s {
	case "aggregate", "bonding":
		return ModeAggregate, nil
	case "redundant":
		return ModeRedundant, nil
	case "failover":
		return ModeFailover, nil
	default:
		return 0, errors.New("unknown bonding mode: " + s)
	}
}

// ErrNoAvailableLink is returned by ScheduledSend when no link is a valid
// egress choice for the active policy.
var ErrNoAvailableLink = errors.New("linkmgr: no available link")

// SendRecorder receives counts for scheduling outcomes. internal/metrics
// supplies the Prometheus-backed implementation the orchestrator wires in;
// a Manager with no recorder set records nothing.
type SendRecorder interface {
	RecordSend(link string)
	RecordDrop(reason string)
}

type noopRecorder struct{}

func (noopRecorder) RecordSend(string) {}
func (noopRecorder) RecordDrop(string) {}

// Manager owns a list of links and the round-robin cursor. The manager
// and scheduler never observe an empty link set — configuration validation
// guarantees at least one link before a Manager is constructed.
type Manager struct {
	mode    Mode
	links   []*Link // configuration order
	timeout time.Duration
	backoff time.Duration

	expansion []*Link // weighted round-robin expansion, built once at start

	mu     sync.Mutex // guards cursor only
	cursor int

	rec SendRecorder
}

// NewManager builds a Manager for mode over links, expanding the weighted
// round-robin sequence once up front.
func NewManager(mode Mode, links []*Link, timeout, backoff time.Duration) (*Manager, error) {
	if len(links) == 0 {
		return nil, errors.New("linkmgr: at least one link is required")
	}
	return &Manager{
		mode:      mode,
		links:     links,
		timeout:   timeout,
		backoff:   backoff,
		expansion: expand(links),
		rec:       noopRecorder{},
	}, nil
}

// SetRecorder installs rec to receive send/drop counts. Optional; a Manager
// built via NewManager already has a no-op recorder.
func (m *Manager) SetRecorder(rec SendRecorder) {
	if rec != nil {
		m.rec = rec
	}
}

// expand builds the weighted round-robin sequence: each link appears
// weight times, in configuration order.
func expand(links []*Link) []*Link {
	var seq []*Link
	for _, l := range links {
		for i := 0; i < l.Weight; i++ {
			seq = append(seq, l)
		}
	}
	return seq
}

// Links returns the manager's links in configuration order.
func (m *Manager) Links() []*Link { return m.links }

// ScheduledSend selects one or more links per the active policy and sends
// b. It is used both for data traffic and for tunnel-session emits that
// have no associated link context — those always go out via
// this same scheduled path, never broadcast.
func (m *Manager) ScheduledSend(b []byte) error {
	switch m.mode {
	case ModeAggregate:
		return m.aggregateSend(b)
	case ModeRedundant:
		return m.BroadcastSend(b)
	case ModeFailover:
		return m.failoverSend(b)
	default:
		return m.aggregateSend(b)
	}
}

func (m *Manager) aggregateSend(b []byte) error {
	now := time.Now()
	n := len(m.expansion)

	m.mu.Lock()
	start := m.cursor
	m.mu.Unlock()

	for i := 0; i < n; i++ {
		idx := (start + i) % n
		link := m.expansion[idx]
		if !m.eligibleForSchedule(link, now) {
			continue
		}
		dst, ok := link.Destination()
		if !ok {
			continue
		}
		err := link.Send(b, dst, m.backoff)

		m.mu.Lock()
		m.cursor = (idx + 1) % n
		m.mu.Unlock()

		if err != nil {
			m.rec.RecordDrop("send_error")
		} else {
			m.rec.RecordSend(link.Name)
		}
		return err
	}
	m.rec.RecordDrop("no_available_link")
	return ErrNoAvailableLink
}

// eligibleForSchedule is the availability check used by aggregate and
// failover: liveness must hold, and the link must not be in send backoff.
func (m *Manager) eligibleForSchedule(l *Link, now time.Time) bool {
	return l.Available(now, m.timeout) && !l.underBackoff(now)
}

func (m *Manager) failoverSend(b []byte) error {
	now := time.Now()
	link := m.failoverCandidate(now)
	if link == nil {
		m.rec.RecordDrop("no_available_link")
		return ErrNoAvailableLink
	}
	dst, ok := link.Destination()
	if !ok {
		m.rec.RecordDrop("no_destination")
		return ErrNoAvailableLink
	}
	err := link.Send(b, dst, m.backoff)
	if err != nil {
		m.rec.RecordDrop("send_error")
	} else {
		m.rec.RecordSend(link.Name)
	}
	return err
}

// failoverCandidate picks the highest-weight available link that has a
// destination, config order breaking ties.
func (m *Manager) failoverCandidate(now time.Time) *Link {
	var best *Link
	for _, l := range m.links {
		if !m.eligibleForSchedule(l, now) {
			continue
		}
		if _, ok := l.Destination(); !ok {
			continue
		}
		if best == nil || l.Weight > best.Weight {
			best = l
		}
	}
	return best
}

// BroadcastSend iterates every link — not only available ones — and sends
// to each that has a resolvable destination. ScheduledSend uses it for
// redundant-mode traffic; the health monitor does not use it and sends
// each ping on its own link with TargetedSend.
func (m *Manager) BroadcastSend(b []byte) error {
	var firstErr error
	sent := 0
	for _, l := range m.links {
		dst, ok := l.Destination()
		if !ok {
			continue
		}
		if err := l.Send(b, dst, m.backoff); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		m.rec.RecordSend(l.Name)
		sent++
	}
	if sent == 0 {
		m.rec.RecordDrop("no_available_link")
		if firstErr != nil {
			return firstErr
		}
		return ErrNoAvailableLink
	}
	return nil
}

// TargetedSend replies on the same link that received a ping, addressed to
// the sender's address.
func (m *Manager) TargetedSend(l *Link, b []byte, dst *net.UDPAddr) error {
	return l.Send(b, dst, m.backoff)
}

// Timeout returns the configured liveness timeout.
func (m *Manager) Timeout() time.Duration { return m.timeout }

// Snapshot returns a liveness snapshot of every link, in configuration
// order, for status reporting.
func (m *Manager) Snapshot() []Stats {
	now := time.Now()
	out := make([]Stats, 0, len(m.links))
	for _, l := range m.links {
		out = append(out, l.Snapshot(now, m.timeout))
	}
	return out
}

// Close closes every link's socket.
func (m *Manager) Close() error {
	var firstErr error
	for _, l := range m.links {
		if err := l.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
