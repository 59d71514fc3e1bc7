// Copyright (c) 2025 vtrunkd authors
// Licensed under AGPL-3.0 - see LICENSE file for details
// WireGuard® is a registered trademark of Jason A. Donenfeld.

package health

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/vtrunkd/vtrunkd/internal/linkmgr"
)

func newTestLink(t *testing.T, name string) *linkmgr.Link {
	t.Helper()
	l, err := linkmgr.NewLink(linkmgr.Config{
		Name:     name,
		Bind:     "127.0.0.1:0",
		Endpoint: "127.0.0.1:1",
		Weight:   1,
	})
	if err != nil {
		t.Fatalf("linkmgr.NewLink: %v", err)
	}
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func TestMonitorPingsIdleLinks(t *testing.T) {
	l := newTestLink(t, "only")
	mgr, err := linkmgr.NewManager(linkmgr.ModeAggregate, []*linkmgr.Link{l}, 50*time.Millisecond, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("linkmgr.NewManager: %v", err)
	}

	m := New(Config{Enabled: true, Interval: 5 * time.Millisecond, Timeout: 50 * time.Millisecond}, mgr)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_ = m.Run(ctx)

	snap := mgr.Snapshot()
	if len(snap) != 1 {
		t.Fatalf("snapshot length = %d, want 1", len(snap))
	}
	// A pinged link that never answered has an open ping streak, so under a
	// 1ns timeout it reads as down; a never-pinged link would still be in
	// its grace state.
	if l.Available(time.Now(), time.Nanosecond) {
		t.Fatalf("idle link was never pinged")
	}
}

// TestMonitorMarksNeverRespondingLinkDown runs the real monitor against a
// link whose endpoint never answers: the monitor keeps re-pinging it every
// interval, and the link must still flip to unavailable once the timeout
// has passed since the streak's first ping — the re-pings themselves must
// not keep it alive.
func TestMonitorMarksNeverRespondingLinkDown(t *testing.T) {
	const (
		interval = 10 * time.Millisecond
		timeout  = 25 * time.Millisecond
	)
	l := newTestLink(t, "dead")
	mgr, err := linkmgr.NewManager(linkmgr.ModeAggregate, []*linkmgr.Link{l}, timeout, interval)
	if err != nil {
		t.Fatalf("linkmgr.NewManager: %v", err)
	}

	var mu sync.Mutex
	var transitions []bool
	m := New(Config{
		Enabled:  true,
		Interval: interval,
		Timeout:  timeout,
		OnTransition: func(name string, available bool) {
			mu.Lock()
			transitions = append(transitions, available)
			mu.Unlock()
		},
	}, mgr)

	ctx, cancel := context.WithTimeout(context.Background(), 10*interval)
	defer cancel()
	_ = m.Run(ctx)

	if l.Available(time.Now(), timeout) {
		t.Fatalf("link that never answered a ping still reports available after the timeout")
	}
	snap := mgr.Snapshot()
	if len(snap) != 1 || snap[0].Available {
		t.Fatalf("snapshot still reports the dead link available: %+v", snap)
	}

	mu.Lock()
	defer mu.Unlock()
	sawDown := false
	for _, available := range transitions {
		if !available {
			sawDown = true
		}
	}
	if !sawDown {
		t.Fatalf("no down transition was logged for the dead link, transitions = %v", transitions)
	}
}

func TestMonitorDisabledNeverTicks(t *testing.T) {
	l := newTestLink(t, "only")
	mgr, err := linkmgr.NewManager(linkmgr.ModeAggregate, []*linkmgr.Link{l}, 50*time.Millisecond, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("linkmgr.NewManager: %v", err)
	}
	m := New(Config{Enabled: false}, mgr)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := m.Run(ctx); err == nil {
		t.Fatalf("expected Run to return ctx error on cancellation")
	}
	// Never pinged and never received: the link is still in its grace
	// state even under a 1ns timeout.
	if !l.Available(time.Now(), time.Nanosecond) {
		t.Fatalf("disabled monitor pinged the link")
	}
}
