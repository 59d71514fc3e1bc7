// Copyright (c) 2025 vtrunkd authors
// Licensed under AGPL-3.0 - see LICENSE file for details
// WireGuard® is a registered trademark of Jason A. Donenfeld.

// Package orchestrator implements the datapath orchestrator: it builds
// the tunnel session, link manager, and health monitor, wires them
// together, runs the supervised activities under an errgroup, and owns
// the shutdown contract.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/vtrunkd/vtrunkd/internal/config"
	"github.com/vtrunkd/vtrunkd/internal/health"
	"github.com/vtrunkd/vtrunkd/internal/linkmgr"
	"github.com/vtrunkd/vtrunkd/internal/metrics"
	"github.com/vtrunkd/vtrunkd/internal/session"
)

// Orchestrator owns the lifecycle of one running tunnel: the tunnel
// session, the link manager/scheduler, and the health monitor. Exactly one
// Orchestrator exists per daemon process.
type Orchestrator struct {
	cfg     config.Config
	logger  *log.Logger
	metrics *metrics.Metrics

	mgr     *linkmgr.Manager
	sess    *session.Session
	monitor *health.Monitor
}

// New builds every component from cfg — session, links with their sockets
// open, scheduler, monitor — but does not start any of them; Run does.
func New(cfg config.Config, logger *log.Logger, reg prometheus.Registerer) (*Orchestrator, error) {
	mode, err := linkmgr.ParseMode(cfg.BondingMode)
	if err != nil {
		return nil, classify(SeverityConfig, err)
	}

	links := make([]*linkmgr.Link, 0, len(cfg.Links))
	for _, lc := range cfg.Links {
		l, err := linkmgr.NewLink(linkmgr.Config{
			Name:       lc.Name,
			Bind:       lc.Bind,
			Endpoint:   lc.Endpoint,
			Weight:     lc.Weight,
			BufferSize: cfg.BufferSize,
		})
		if err != nil {
			for _, done := range links {
				_ = done.Close()
			}
			return nil, classify(SeverityConfig, fmt.Errorf("orchestrator: %w", err))
		}
		links = append(links, l)
	}

	timeout := time.Duration(cfg.HealthCheckTimeoutMS) * time.Millisecond
	backoff := time.Duration(cfg.ErrorBackoffSeconds) * time.Second

	mgr, err := linkmgr.NewManager(mode, links, timeout, backoff)
	if err != nil {
		return nil, classify(SeverityConfig, fmt.Errorf("orchestrator: %w", err))
	}

	m := metrics.New(reg)
	mgr.SetRecorder(m)

	bind := linkmgr.NewBind(mgr, newLinkmgrLogger(logger))
	bind.SetRecorder(m)
	devLogger := session.NewDeviceLogger(logger, cfg.IfaceName)

	sess, err := session.New(cfg.IfaceName, cfg.MTU, bind, devLogger)
	if err != nil {
		_ = mgr.Close()
		return nil, classify(SeverityFatal, fmt.Errorf("orchestrator: %w", err))
	}

	monitor := health.New(health.Config{
		Enabled:  cfg.HealthCheckEnabled,
		Interval: time.Duration(cfg.HealthCheckIntervalMS) * time.Millisecond,
		Timeout:  timeout,
		OnTransition: func(name string, available bool) {
			logger.Infof("link %s availability changed: %v", name, available)
			if available {
				m.LinkAvailable.WithLabelValues(name).Set(1)
			} else {
				m.LinkAvailable.WithLabelValues(name).Set(0)
			}
		},
	}, mgr)

	return &Orchestrator{
		cfg:     cfg,
		logger:  logger,
		metrics: m,
		mgr:     mgr,
		sess:    sess,
		monitor: monitor,
	}, nil
}

// Run brings the tunnel up, configures the kernel interface, and blocks
// until ctx is cancelled or any supervised activity exits — whichever
// comes first.
func (o *Orchestrator) Run(ctx context.Context) error {
	ipcConfig := session.BuildIPC(session.Keys{
		PrivateKeyHex:       o.cfg.PrivateKey,
		PeerPublicKeyHex:    o.cfg.PeerPublicKey,
		PresharedKeyHex:     o.cfg.PresharedKey,
		PersistentKeepalive: time.Duration(o.cfg.PersistentKeepalive) * time.Second,
		PeerAllowedIPs:      []string{"0.0.0.0/0", "::/0"},
	})
	if err := o.sess.ApplyConfig(ipcConfig); err != nil {
		return classify(SeverityFatal, fmt.Errorf("orchestrator: apply config: %w", err))
	}

	if err := o.sess.Up(); err != nil {
		return classify(SeverityFatal, fmt.Errorf("orchestrator: bring tunnel up: %w", err))
	}
	defer o.sess.Close()

	tunName, err := o.sess.TunName()
	if err != nil {
		o.logger.Warnf("could not read tun name: %v", err)
	} else if err := configureInterface(tunName, o.cfg.Address, o.cfg.Netmask, o.cfg.MTU); err != nil {
		return classify(SeverityFatal, fmt.Errorf("orchestrator: configure interface: %w", err))
	}

	// The TUN-read/encapsulate/scheduled-send path, the per-link
	// recv/classifier loops, the tunnel-to-TUN writer, and the handshake
	// and keepalive timers are all performed internally by device.Device's
	// own goroutines once Up() is called. The only activities supervised
	// here are the health tick, the handshake-age gauge refresh, and a
	// watcher that turns an unexpected device exit into a fatal daemon
	// exit.
	return supervise(ctx,
		o.monitor.Run,
		func(actx context.Context) error {
			select {
			case <-o.sess.Wait():
				return classify(SeverityFatal, fmt.Errorf("orchestrator: tunnel session exited unexpectedly"))
			case <-actx.Done():
				return nil
			}
		},
		o.refreshHandshakeMetric,
	)
}

// supervise runs every activity under one errgroup: the first failure
// cancels the siblings and is returned, so the daemon exits non-zero
// rather than limping along silently. Cancellation of ctx itself is a
// clean shutdown and yields nil no matter what the activities returned on
// their way out.
func supervise(ctx context.Context, activities ...func(context.Context) error) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, activity := range activities {
		activity := activity
		g.Go(func() error { return activity(gctx) })
	}
	err := g.Wait()
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// refreshHandshakeMetric polls IpcGet on the same cadence as the health
// monitor and republishes the handshake age, giving operators a liveness
// signal for the noise session itself, not just the links carrying it.
func (o *Orchestrator) refreshHandshakeMetric(ctx context.Context) error {
	interval := time.Duration(o.cfg.HealthCheckIntervalMS) * time.Millisecond
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			st, err := o.sess.Status()
			if err != nil {
				continue
			}
			if st.LastHandshake.IsZero() {
				o.metrics.SetHandshakeAge(-1)
				continue
			}
			o.metrics.SetHandshakeAge(time.Since(st.LastHandshake).Seconds())
		}
	}
}

// Status returns a point-in-time snapshot of every link and the tunnel
// session for external reporting.
func (o *Orchestrator) Status() (StatusReport, error) {
	sessStatus, err := o.sess.Status()
	if err != nil {
		return StatusReport{}, err
	}
	return StatusReport{
		Session: sessStatus,
		Links:   o.mgr.Snapshot(),
	}, nil
}

// StatusReport bundles tunnel and per-link status for cmd/vtrunkd or a
// future external status surface.
type StatusReport struct {
	Session session.Status
	Links   []linkmgr.Stats
}

// linkmgrLogger adapts the daemon's structured logger to linkmgr.Logger.
type linkmgrLogger struct {
	l *log.Logger
}

func newLinkmgrLogger(l *log.Logger) linkmgrLogger {
	return linkmgrLogger{l: l.With("component", "linkmgr")}
}

func (a linkmgrLogger) Debugf(format string, args ...interface{}) { a.l.Debugf(format, args...) }
func (a linkmgrLogger) Warnf(format string, args ...interface{})  { a.l.Warnf(format, args...) }
