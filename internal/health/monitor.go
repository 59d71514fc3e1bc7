// Copyright (c) 2025 vtrunkd authors
// Licensed under AGPL-3.0 - see LICENSE file for details
// WireGuard® is a registered trademark of Jason A. Donenfeld.

// Package health implements the health monitor: a ticker-driven loop that
// emits ping control datagrams on idle links and interprets pongs via the
// classifier's routing into Link.ObservePong. All liveness timestamps use
// time.Time's monotonic reading, so clock jumps never flap a link.
package health

import (
	"context"
	"time"

	"github.com/vtrunkd/vtrunkd/internal/classify"
	"github.com/vtrunkd/vtrunkd/internal/linkmgr"
)

// Config configures a Monitor.
type Config struct {
	Enabled  bool
	Interval time.Duration
	Timeout  time.Duration // must be strictly greater than Interval

	// OnTransition is called on the first tick with each link's initial
	// availability, and afterwards whenever it changes between ticks.
	// Optional.
	OnTransition func(linkName string, available bool)
}

// Monitor periodically pings idle links and reports availability
// transitions. Pongs are not handled here: the packet classifier in
// linkmgr.Bind routes them to Link.ObservePong.
type Monitor struct {
	cfg Config
	mgr *linkmgr.Manager

	prevAvailable map[string]bool
}

// New creates a Monitor over mgr. cfg.Timeout must already have been
// validated as strictly greater than cfg.Interval.
func New(cfg Config, mgr *linkmgr.Manager) *Monitor {
	return &Monitor{
		cfg:           cfg,
		mgr:           mgr,
		prevAvailable: make(map[string]bool),
	}
}

// Run starts the ping loop. Blocks until ctx is cancelled. If the monitor
// is disabled, Run returns immediately once ctx is cancelled without ever
// ticking — links then rely solely on WireGuard traffic for liveness.
func (m *Monitor) Run(ctx context.Context) error {
	if !m.cfg.Enabled {
		<-ctx.Done()
		return ctx.Err()
	}

	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.tick()
		}
	}
}

// tick emits one ping per link idle longer than one interval, addressed
// to its current destination (learned or configured); links with no known
// destination are skipped silently.
func (m *Monitor) tick() {
	now := time.Now()
	buf := make([]byte, classify.ControlHeaderLen)

	for _, l := range m.mgr.Links() {
		if !l.NeedsPing(now, m.cfg.Interval) {
			continue
		}
		dst, ok := l.Destination()
		if !ok {
			continue
		}
		seq := l.ObservePingSent(now)
		ping := classify.EncodePing(buf, seq)
		_ = m.mgr.TargetedSend(l, ping, dst)
	}

	m.logTransitions(now)
}

// logTransitions compares each link's current availability against its
// last observed value and invokes OnTransition for any change, and for
// every link seen for the first time.
// Availability itself is recomputed lazily on every scheduler query with
// no explicit event source, so this is the one place up/down transitions
// become visible.
func (m *Monitor) logTransitions(now time.Time) {
	if m.cfg.OnTransition == nil {
		return
	}
	for _, l := range m.mgr.Links() {
		avail := l.Available(now, m.cfg.Timeout)
		prev, seen := m.prevAvailable[l.Name]
		if !seen || prev != avail {
			m.cfg.OnTransition(l.Name, avail)
		}
		m.prevAvailable[l.Name] = avail
	}
}
