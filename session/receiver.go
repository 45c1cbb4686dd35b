/*
Copyright (c) The Bond Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bondwire/bond/aggregator"
	"github.com/bondwire/bond/congestion"
	"github.com/bondwire/bond/path"
	"github.com/bondwire/bond/transport"
	"github.com/bondwire/bond/transport/udp"
	"github.com/bondwire/bond/wire"
)

// DefaultReleaseTick is how often the aggregator's release rule runs
// against wall-clock time, independent of packet arrival.
const DefaultReleaseTick = 10 * time.Millisecond

// DefaultLinkReportInterval is how often a receiver path reports its
// smoothed observables back to the sender via LINK_REPORT.
const DefaultLinkReportInterval = 200 * time.Millisecond

// ackTracker records which of the most recent AckBitmapBits sequences
// have arrived, so the receiver can build an ACK's selective-loss
// bitmap without re-scanning the reassembly buffer (whose entries are
// already gone by the time they're acked).
type ackTracker struct {
	mu      sync.Mutex
	present [wire.AckBitmapBits]uint64 // seq+1 of the last arrival in each slot
}

func (t *ackTracker) observe(seq uint64) {
	t.mu.Lock()
	t.present[seq%wire.AckBitmapBits] = seq + 1
	t.mu.Unlock()
}

func (t *ackTracker) body(cumulative uint64) wire.ACKBody {
	t.mu.Lock()
	defer t.mu.Unlock()
	var bitmap uint64
	for i := uint64(0); i < wire.AckBitmapBits && i < cumulative; i++ {
		seq := cumulative - 1 - i
		if t.present[seq%wire.AckBitmapBits] != seq+1 {
			bitmap |= 1 << i
		}
	}
	return wire.ACKBody{Cumulative: cumulative, LossBitmap: bitmap}
}

// Receiver is the receiving endpoint of a bonded session: it reassembles
// the session-wide sequence-ordered stream out of whatever arrives on
// however many live paths, triggering erasure decode on repairable gaps
// and declaring unrepairable ones late, and exposes the result as a
// lazy sequence of reassembled source units via NextBuffer.
type Receiver struct {
	*Session

	tok *congestion.TokenCoordinator

	buf     *aggregator.Buffer
	jitter  *aggregator.JitterEstimator
	playout *aggregator.PlayoutModel
	frag    wire.Reassembler

	ack ackTracker

	out chan []byte
}

// NewReceiver returns a Receiver in the handshaking state with no paths
// registered yet.
func NewReceiver(cfg Config) *Receiver {
	s := newSession(cfg, RoleReceiver)
	r := &Receiver{
		Session: s,
		tok:     congestion.NewTokenCoordinator(0),
		buf:     aggregator.NewBuffer(s.cfg.BufPoolCapacity, s.cfg.CodingWindow, int(s.cfg.MTU)),
		jitter:  aggregator.NewJitterEstimator(s.cfg.JitterWindowSize),
		playout: aggregator.NewPlayoutModel(),
		out:     make(chan []byte, 256),
	}
	s.group.Go(func() error { return r.commandLoop(s.groupCtx) })
	return r
}

// RemovePath unregisters path id. It does not close the socket; callers
// that own the socket's lifecycle close it separately if appropriate.
func (r *Receiver) RemovePath(id path.ID) {
	r.mu.Lock()
	delete(r.paths, id)
	r.mu.Unlock()
}

// AddPathDial dials a new UDP socket per cfg and registers it as path id,
// the CmdAddPath control-plane entry point.
func (r *Receiver) AddPathDial(id path.ID, cfg udp.Config) error {
	sock, err := udp.Dial(cfg)
	if err != nil {
		return err
	}
	if err := r.AddPath(id, sock); err != nil {
		sock.Close()
		return err
	}
	return nil
}

// commandLoop drains Session.Commands() and applies each one to the
// receiver, replying on the command's Result channel if the submitter
// asked for one. CmdSetMaxBitrate and CmdSetRedundancyMode have no
// effect here: a receiver has no scheduler to carry them.
func (r *Receiver) commandLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case cmd, ok := <-r.cmds:
			if !ok {
				return nil
			}
			reply(cmd, r.applyCommand(ctx, cmd))
		}
	}
}

func (r *Receiver) applyCommand(ctx context.Context, cmd Command) error {
	switch cmd.Kind {
	case CmdSetMaxBitrate, CmdSetRedundancyMode:
		return nil
	case CmdAddPath:
		return r.AddPathDial(cmd.PathID, udp.Config{
			LocalBind:  cmd.LocalBind,
			RemoteAddr: cmd.RemoteAddr,
			Iface:      cmd.Iface,
		})
	case CmdRemovePath:
		r.LeavePath(ctx, cmd.PathID)
		r.RemovePath(cmd.PathID)
		return nil
	case CmdFreezePath:
		r.FreezePath(cmd.PathID)
		return nil
	case CmdResumePath:
		r.JoinPath(cmd.PathID)
		return nil
	case CmdSetProbeEnabled:
		r.probesEnabled.Store(cmd.ProbeEnabled)
		return nil
	default:
		return fmt.Errorf("session: unknown command kind %v", cmd.Kind)
	}
}

// AddPath registers a new inbound path bound to sock and starts its
// read/keepalive/link-report workers under the session's supervising
// group.
func (r *Receiver) AddPath(id path.ID, sock transport.Socket) error {
	p, err := r.newPath(id, sock, r.tok)
	if err != nil {
		return err
	}

	e := &pathEntry{path: p, sock: sock}

	r.mu.Lock()
	if _, exists := r.paths[id]; exists {
		r.mu.Unlock()
		return fmt.Errorf("session: path %d already registered", id)
	}
	r.paths[id] = e
	r.mu.Unlock()

	r.group.Go(func() error { return r.keepaliveLoop(r.groupCtx, id, e) })
	r.group.Go(func() error { return r.inboundLoop(r.groupCtx, id, e) })
	r.group.Go(func() error { return r.linkReportLoop(r.groupCtx, id, e) })

	_ = p.Lifecycle.Transition(path.StateProbe)
	return nil
}

// Start launches the buffer's tick-driven release loop. It must be
// called once before the first call to NextBuffer.
func (r *Receiver) Start() {
	r.group.Go(func() error { return r.releaseLoop(r.groupCtx) })
}

// NextBuffer blocks until the next reassembled source unit is ready, ctx
// is done, or the session closes.
func (r *Receiver) NextBuffer(ctx context.Context) ([]byte, error) {
	select {
	case b, ok := <-r.out:
		if !ok {
			return nil, fmt.Errorf("session: receiver closed")
		}
		return b, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-r.groupCtx.Done():
		return nil, fmt.Errorf("session: receiver closed")
	}
}

// inboundLoop is the single reader for e's socket: data packets are
// folded into the reassembly buffer, REPAIR symbols into their owning
// coding window, and the remaining control subtypes dispatched to the
// shared probe/session handlers.
func (r *Receiver) inboundLoop(ctx context.Context, id path.ID, e *pathEntry) error {
	buf := make([]byte, int(r.cfg.MTU)+wire.MaxHeaderLen+64)
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		_ = e.sock.SetReadDeadline(time.Now().Add(r.cfg.KeepaliveInterval))
		n, err := e.sock.ReadFrom(buf)
		if err != nil {
			if isTimeout(err) {
				continue
			}
			return err
		}

		h, payload, err := wire.Decode(buf[:n], r.cfg.MTU)
		if err != nil {
			continue
		}
		now := time.Now()

		if !h.Control {
			r.observeData(id, e, h, payload, now)
			continue
		}

		subtype, err := wire.PeekControlSubtype(payload)
		if err != nil {
			continue
		}
		switch subtype {
		case wire.ControlRepair:
			if body, err := wire.UnmarshalRepairBody(payload[1:]); err == nil {
				symbol := append([]byte(nil), body.Symbol...)
				r.buf.ObserveRepair(body.Generation, body.SymbolIndex, symbol)
			}
		case wire.ControlProbe:
			if body, err := wire.UnmarshalProbeBody(payload[1:]); err == nil {
				r.handleProbe(id, e, body, now)
			}
		}
	}
}

// observeData folds one data packet into the reassembly buffer, updates
// the per-path jitter/delivery observables, and records its arrival in
// the ACK tracker. The fragment marker rides alongside the payload as a
// one-byte prefix so the release path can feed it back into a
// wire.Reassembler without a second lookup table.
func (r *Receiver) observeData(id path.ID, e *pathEntry, h wire.Header, payload []byte, now time.Time) {
	stored := make([]byte, 1+len(payload))
	stored[0] = byte(h.Fragment)
	copy(stored[1:], payload)

	snap := e.path.Snapshot()
	deadline := r.playout.Deadline(now, r.jitter.P95(), snap.SmoothedLossSlow)
	r.jitter.Observe(now)

	dup := r.buf.Insert(h.Sequence, stored, now, deadline)
	if !dup {
		e.path.Observables.RecordDelivery(uint64(len(payload)), now)
	}
	r.ack.observe(h.Sequence)
}

// releaseLoop drives the aggregator's release rule on a fixed tick,
// pushing every newly-contiguous reassembled source unit to NextBuffer's
// channel and requesting a NACK for any gap the release rule judged
// still repairable.
func (r *Receiver) releaseLoop(ctx context.Context) error {
	ticker := time.NewTicker(DefaultReleaseTick)
	defer ticker.Stop()
	ackTicker := time.NewTicker(r.cfg.ProbeSuppressionInterval)
	defer ackTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			close(r.out)
			return ctx.Err()
		case <-ticker.C:
			r.drain(ctx)
		case <-ackTicker.C:
			r.sendAcks()
		}
	}
}

func (r *Receiver) drain(ctx context.Context) {
	now := time.Now()
	released, nacks := r.buf.ReleaseReady(now)
	for _, payload := range released {
		marker := wire.Fragment(payload[0])
		unit, done, err := r.frag.Feed(marker, payload[1:])
		if err != nil {
			r.log.WithError(err).Debug("session: fragment reassembly error, resyncing")
			r.frag.Reset()
			continue
		}
		if !done {
			continue
		}
		select {
		case r.out <- unit:
		case <-ctx.Done():
			return
		}
	}

	for _, nk := range nacks {
		r.requestRepair(nk)
	}
}

// requestRepair picks an alive path to carry the NACK for a gap the
// release rule judged still repairable, subject to each path's own
// suppression window.
func (r *Receiver) requestRepair(nk aggregator.NackTrigger) {
	for _, e := range r.aliveSockets() {
		if e.path.Receiver == nil {
			continue
		}
		// The release rule only calls requestRepair once a gap's
		// arrival deadline has already elapsed, so the lead-time
		// guard (meant to delay NACKing a gap that just appeared)
		// is already satisfied; only the per-range suppression
		// interval still applies.
		snap := e.path.Snapshot()
		longAgo := time.Now().Add(-time.Hour)
		if !e.path.Receiver.ShouldNack(nk.Start, nk.N, longAgo, snap.SmoothedRTT, time.Time{}, time.Now()) {
			continue
		}
		body := wire.NACKBody{Ranges: []wire.NACKRange{{Start: nk.Start, Len: nk.N}}}
		buf := make([]byte, wire.MaxHeaderLen+3+12*len(body.Ranges))
		n, err := body.MarshalBinaryTo(buf[wire.MaxHeaderLen:])
		if err != nil {
			continue
		}
		h := wire.Header{Version: wire.Version, Control: true, SessionEpoch: r.epoch.Load()}
		out, err := wire.EncodeTo(buf, h, buf[wire.MaxHeaderLen:wire.MaxHeaderLen+n])
		if err != nil {
			continue
		}
		if _, err := e.sock.WriteTo(buf[:out]); err != nil {
			r.log.WithField("path", e.path.ID).WithError(err).Debug("session: NACK send failed")
		}
		return
	}
}

// sendAcks emits the current cumulative/selective ACK on every alive
// path, so the sender's retransmit store converges even if a single
// path's return traffic is lossy.
func (r *Receiver) sendAcks() {
	cumulative := r.buf.NextExpected()
	body := r.ack.body(cumulative)
	buf := make([]byte, wire.MaxHeaderLen+32)
	n, err := body.MarshalBinaryTo(buf[wire.MaxHeaderLen:])
	if err != nil {
		return
	}
	h := wire.Header{Version: wire.Version, Control: true, SessionEpoch: r.epoch.Load()}
	out, err := wire.EncodeTo(buf, h, buf[wire.MaxHeaderLen:wire.MaxHeaderLen+n])
	if err != nil {
		return
	}
	for _, e := range r.aliveSockets() {
		if _, err := e.sock.WriteTo(buf[:out]); err != nil {
			r.log.WithField("path", e.path.ID).WithError(err).Debug("session: ACK send failed")
		}
	}
}

// BufferStats returns the reassembly buffer's lifetime late/duplicate/
// restart counters, for telemetry.
func (r *Receiver) BufferStats() (late, duplicate, restart uint64) {
	return r.buf.LateCount, r.buf.DuplicateCount, r.buf.RestartCount
}

// linkReportLoop periodically reports path id's smoothed observables
// back to the sender via LINK_REPORT, so the sender's scheduler and
// congestion controller see the same view of the path the receiver
// does.
func (r *Receiver) linkReportLoop(ctx context.Context, id path.ID, e *pathEntry) error {
	ticker := time.NewTicker(DefaultLinkReportInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		if e.draining.Load() {
			continue
		}
		snap := e.path.Snapshot()
		body := wire.LinkReportBody{
			PathID:          uint16(id),
			SmoothedRTTUs:   uint32(snap.SmoothedRTT / time.Microsecond),
			RTTVarianceUs:   uint32(snap.RTTVariance / time.Microsecond),
			SmoothedLossPPM: uint32(snap.SmoothedLossSlow * 1e6),
			DeliveredBps:    uint64(snap.DeliveredBps),
		}
		buf := make([]byte, wire.MaxHeaderLen+32)
		n, err := body.MarshalBinaryTo(buf[wire.MaxHeaderLen:])
		if err != nil {
			continue
		}
		h := wire.Header{Version: wire.Version, Control: true, SessionEpoch: r.epoch.Load()}
		out, err := wire.EncodeTo(buf, h, buf[wire.MaxHeaderLen:wire.MaxHeaderLen+n])
		if err != nil {
			continue
		}
		if _, err := e.sock.WriteTo(buf[:out]); err != nil {
			r.log.WithField("path", id).WithError(err).Debug("session: LINK_REPORT send failed")
		}
	}
}
