// Copyright (c) 2025 vtrunkd authors
// Licensed under AGPL-3.0 - see LICENSE file for details
// WireGuard® is a registered trademark of Jason A. Donenfeld.

package linkmgr

import (
	"errors"
	"net"
	"net/netip"
	"time"

	"golang.zx2c4.com/wireguard/conn"

	"github.com/vtrunkd/vtrunkd/internal/classify"
)

// Bind adapts a Manager into golang.zx2c4.com/wireguard/conn.Bind, so
// device.Device's own send/receive goroutines run through vtrunkd's
// scheduler and packet classifier instead of a single default socket:
// every byte Device wants to send becomes a Manager.ScheduledSend, and
// every packet a link's socket receives is classified here before
// anything reaches the noise engine.
type Bind struct {
	mgr    *Manager
	logger Logger
	rec    ControlRecorder
}

// Logger is the minimal logging surface Bind needs; internal/orchestrator
// supplies an adapter over the daemon's structured logger.
type Logger interface {
	Debugf(format string, args ...interface{})
	Warnf(format string, args ...interface{})
}

// ControlRecorder receives a count of inbound datagrams the classifier
// dropped (empty or matching no known discriminant); internal/metrics
// supplies the Prometheus-backed implementation the orchestrator wires in.
type ControlRecorder interface {
	RecordControlDrop()
}

type noopControlRecorder struct{}

func (noopControlRecorder) RecordControlDrop() {}

// NewBind constructs a Bind over mgr.
func NewBind(mgr *Manager, logger Logger) *Bind {
	return &Bind{mgr: mgr, logger: logger, rec: noopControlRecorder{}}
}

// SetRecorder installs rec to receive unknown-discriminant counts.
// Optional; a Bind built via NewBind already has a no-op recorder.
func (b *Bind) SetRecorder(rec ControlRecorder) {
	if rec != nil {
		b.rec = rec
	}
}

// peerEndpoint is the conn.Endpoint vtrunkd hands back to device.Device.
// There is exactly one logical peer (one remote vtrunkd instance reached
// over N links), and which physical link carries a given packet is decided
// entirely by Manager — not by Device's own endpoint/roaming logic — so
// the endpoint object itself carries no per-link information and never
// changes. This deliberately decouples Device's idea of "the peer's
// address" from the scheduler's idea of "which socket to use next."
type peerEndpoint struct{}

func (peerEndpoint) ClearSrc()           {}
func (peerEndpoint) SrcToString() string { return "" }
func (peerEndpoint) DstToString() string { return "vtrunkd-peer" }
func (peerEndpoint) DstToBytes() []byte  { return []byte("vtrunkd-peer") }
func (peerEndpoint) DstIP() netip.Addr   { return netip.Addr{} }
func (peerEndpoint) SrcIP() netip.Addr   { return netip.Addr{} }

// Open returns one ReceiveFunc per link. Links already bind their sockets
// in linkmgr.NewLink, so the requested port is ignored; the returned
// actualPort is nominal.
func (b *Bind) Open(_ uint16) ([]conn.ReceiveFunc, uint16, error) {
	fns := make([]conn.ReceiveFunc, 0, len(b.mgr.links))
	for _, l := range b.mgr.links {
		fns = append(fns, b.receiveFuncFor(l))
	}
	actualPort := uint16(0)
	if len(b.mgr.links) > 0 {
		if addr, ok := b.mgr.links[0].Conn().LocalAddr().(*net.UDPAddr); ok {
			actualPort = uint16(addr.Port)
		}
	}
	return fns, actualPort, nil
}

// receiveFuncFor builds the per-link receive loop implementing the packet
// classifier. It never returns an error upward except when the link's
// socket has actually been closed — every other outcome (empty datagram,
// control datagram, unknown first byte) is absorbed here and the read
// loop continues, so a malformed datagram from the network can never
// terminate the datapath.
func (b *Bind) receiveFuncFor(l *Link) conn.ReceiveFunc {
	pongBuf := make([]byte, classify.ControlHeaderLen)
	return func(packets [][]byte, sizes []int, eps []conn.Endpoint) (int, error) {
		for {
			n, src, err := l.conn.ReadFromUDP(packets[0][:cap(packets[0])])
			if err != nil {
				if errors.Is(err, net.ErrClosed) {
					return 0, err
				}
				b.logger.Warnf("link %s: recv error: %v", l.Name, err)
				continue
			}
			now := time.Now()
			data := packets[0][:n]

			switch classify.Classify(data) {
			case classify.KindWireGuard:
				l.ObserveRx(src, now)
				sizes[0] = n
				eps[0] = peerEndpoint{}
				return 1, nil

			case classify.KindPing:
				l.ObserveRx(src, now)
				seq, ok := classify.DecodeControl(data)
				if !ok {
					b.logger.Debugf("link %s: malformed ping from %s", l.Name, src)
					continue
				}
				pong := classify.EncodePong(pongBuf, seq)
				if err := b.mgr.TargetedSend(l, pong, src); err != nil {
					b.logger.Debugf("link %s: pong send failed: %v", l.Name, err)
				}

			case classify.KindPong:
				seq, ok := classify.DecodeControl(data)
				if !ok {
					b.logger.Debugf("link %s: malformed pong from %s", l.Name, src)
					continue
				}
				l.ObservePong(seq, now)

			case classify.KindEmpty:
				b.logger.Debugf("link %s: empty datagram from %s", l.Name, src)
				b.rec.RecordControlDrop()

			default:
				b.logger.Debugf("link %s: unknown datagram from %s, first byte %#x", l.Name, src, data[0])
				b.rec.RecordControlDrop()
			}
		}
	}
}

// Close closes every link's socket.
func (b *Bind) Close() error { return b.mgr.Close() }

// SetMark is not meaningful across a multi-socket bind with independently
// configured links; it is a no-op here, since socket lifetime is tied to
// link configuration rather than to Device.
func (b *Bind) SetMark(uint32) error { return nil }

// Send is device.Device's entry point for every WireGuard protocol
// datagram it wants to transmit — handshake messages, keepalives, and
// transport data alike. All of them go through the scheduled send: the
// same policy used for data is used for protocol emits with no link
// context, never a broadcast.
func (b *Bind) Send(bufs [][]byte, _ conn.Endpoint) error {
	var firstErr error
	for _, buf := range bufs {
		if err := b.mgr.ScheduledSend(buf); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// ParseEndpoint always returns the singleton peer endpoint; vtrunkd never
// lets Device's own endpoint tracking pick a destination address.
func (b *Bind) ParseEndpoint(string) (conn.Endpoint, error) {
	return peerEndpoint{}, nil
}

// BatchSize reports 1: each link's ReceiveFunc yields one datagram per
// call, since the classifier dispatches per packet.
func (b *Bind) BatchSize() int { return 1 }
