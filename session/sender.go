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
	"sync/atomic"
	"time"

	"github.com/bondwire/bond/bufpool"
	"github.com/bondwire/bond/congestion"
	"github.com/bondwire/bond/fec"
	"github.com/bondwire/bond/internal/ringbuf"
	"github.com/bondwire/bond/path"
	"github.com/bondwire/bond/retransmit"
	"github.com/bondwire/bond/scheduler"
	"github.com/bondwire/bond/transport"
	"github.com/bondwire/bond/transport/udp"
	"github.com/bondwire/bond/wire"
)

// DefaultOutboundRingCapacity is the per-path outbound queue depth
// between Enqueue's caller and the path's dedicated write worker.
const DefaultOutboundRingCapacity = 1024

// outboundJob is one encoded datagram queued for a path's write worker.
// handle is the zero Handle for control packets that were not allocated
// out of the shared pool.
type outboundJob struct {
	buf    []byte
	handle bufpool.Handle
}

// Sender is the sending endpoint of a bonded session: it classifies and
// schedules outbound media units across every live path, streams FEC
// repair symbols alongside them, and reacts to ACK/NACK/LINK_REPORT
// control traffic flowing back.
//
// Enqueue must be called from a single producer goroutine per Sender
// (the media pipeline feeding it), matching the single-producer
// contract of the per-path outbound ring buffers.
type Sender struct {
	*Session

	sched   *scheduler.Scheduler
	retx    *retransmit.Store
	tok     *congestion.TokenCoordinator
	nextSeq atomic.Uint64
}

// NewSender returns a Sender in quality redundancy mode with no paths
// registered yet. Its control loop is started immediately, so Submit can
// be used as soon as NewSender returns, before any path exists.
func NewSender(cfg Config) *Sender {
	s := newSession(cfg, RoleSender)
	sender := &Sender{
		Session: s,
		sched:   scheduler.New(),
		retx:    retransmit.New(s.cfg.RepairHorizon),
		tok:     congestion.NewTokenCoordinator(0),
	}
	s.group.Go(func() error { return sender.commandLoop(s.groupCtx) })
	return sender
}

// AddPath registers a new outbound path bound to sock and starts its
// write/read/keepalive workers under the session's supervising group.
func (s *Sender) AddPath(id path.ID, sock transport.Socket) error {
	p, err := s.newPath(id, sock, s.tok)
	if err != nil {
		return err
	}

	e := &pathEntry{
		path:     p,
		sock:     sock,
		outbound: ringbuf.New[outboundJob](DefaultOutboundRingCapacity),
	}

	s.mu.Lock()
	if _, exists := s.paths[id]; exists {
		s.mu.Unlock()
		return fmt.Errorf("session: path %d already registered", id)
	}
	s.paths[id] = e
	s.mu.Unlock()

	s.sched.AddPath(p, s.cfg.BanditSeed)

	s.group.Go(func() error { return s.keepaliveLoop(s.groupCtx, id, e) })
	s.group.Go(func() error { return s.outboundWorker(s.groupCtx, id, e) })
	s.group.Go(func() error { return s.inboundLoop(s.groupCtx, id, e) })

	_ = p.Lifecycle.Transition(path.StateProbe)
	return nil
}

// RemovePath unregisters path id. It does not close the socket; callers
// that own the socket's lifecycle close it separately if appropriate.
func (s *Sender) RemovePath(id path.ID) {
	s.mu.Lock()
	delete(s.paths, id)
	s.mu.Unlock()
	s.sched.RemovePath(id)
}

// Enqueue runs payload through the scheduler and fans it out to the
// path(s) it was assigned to, returning the scheduler's admission
// outcome. deadline, if non-zero, is the latest time payload may still
// usefully arrive; prio is the caller-requested priority (Classify may
// upgrade but never downgrade it).
func (s *Sender) Enqueue(ctx context.Context, payload []byte, prio scheduler.Priority, deadline time.Time) (scheduler.Outcome, error) {
	now := time.Now()
	unit := scheduler.Unit{Payload: payload, Deadline: deadline, RequestedPriority: prio}

	outcome, assignments, err := s.sched.Enqueue(unit, now)
	if err != nil || outcome != scheduler.Queued {
		return outcome, err
	}

	seq := s.nextSeq.Add(1) - 1
	for _, a := range assignments {
		if err := s.dispatch(ctx, a.Path, seq, payload, deadline, now); err != nil {
			return outcome, err
		}
	}
	return outcome, nil
}

// dispatch encodes payload as sequence seq, acquires a pool buffer,
// records it in the retransmit store, folds it into the path's FEC
// window (streaming any repair symbols now due), and queues it on the
// path's outbound ring.
func (s *Sender) dispatch(ctx context.Context, id path.ID, seq uint64, payload []byte, deadline, now time.Time) error {
	e := s.entry(id)
	if e == nil {
		return fmt.Errorf("session: path %d not registered", id)
	}

	handle, err := s.pool.Acquire()
	if err != nil {
		return fmt.Errorf("session: acquiring buffer for seq %d: %w", seq, err)
	}

	h := wire.Header{
		Version:      wire.Version,
		TimestampUs:  uint32(now.UnixMicro()),
		SessionEpoch: s.epoch.Load(),
		Sequence:     seq,
	}
	n, err := wire.EncodeTo(handle.Bytes(), h, payload)
	if err != nil {
		handle.Release()
		return fmt.Errorf("session: encoding seq %d: %w", seq, err)
	}

	s.retx.Put(seq, handle.Share(), now, deadline)

	if e.path.Sender != nil {
		e.path.Sender.ObserveSource(seq, payload)
		for _, r := range e.path.Sender.StreamRepair(seq) {
			if err := s.queueRepair(ctx, e, r); err != nil {
				s.log.WithField("path", id).WithError(err).Debug("session: streaming repair symbol failed")
			}
		}
	}

	return e.outbound.Push(ctx, outboundJob{buf: handle.Bytes()[:n], handle: handle})
}

func (s *Sender) queueRepair(ctx context.Context, e *pathEntry, r path.RepairEmission) error {
	body := wire.RepairBody{
		Generation:  r.Generation,
		SymbolIndex: r.SymbolIndex,
		SourceCount: uint8(r.SourceCount),
		Symbol:      r.Symbol,
	}
	buf := make([]byte, wire.MaxHeaderLen+1+5+len(r.Symbol))
	bn, err := body.MarshalBinaryTo(buf[wire.MaxHeaderLen:])
	if err != nil {
		return err
	}
	h := wire.Header{Version: wire.Version, Control: true, SessionEpoch: s.epoch.Load()}
	n, err := wire.EncodeTo(buf, h, buf[wire.MaxHeaderLen:wire.MaxHeaderLen+bn])
	if err != nil {
		return err
	}
	return e.outbound.Push(ctx, outboundJob{buf: buf[:n]})
}

// outboundWorker is the single writer for e's socket's data plane: it
// drains e's outbound ring in order and writes each job, releasing any
// pool-backed buffer afterward.
func (s *Sender) outboundWorker(ctx context.Context, id path.ID, e *pathEntry) error {
	for {
		job, err := e.outbound.Pop(ctx)
		if err != nil {
			return err
		}
		if _, err := e.sock.WriteTo(job.buf); err != nil {
			s.log.WithField("path", id).WithError(err).Debug("session: write failed")
		}
		if job.handle.Valid() {
			job.handle.Release()
		}
	}
}

// inboundLoop is the single reader for e's socket's control plane: ACK,
// NACK, LINK_REPORT, and PROBE packets arriving from the receiver.
func (s *Sender) inboundLoop(ctx context.Context, id path.ID, e *pathEntry) error {
	buf := make([]byte, int(s.cfg.MTU)+wire.MaxHeaderLen+64)
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		_ = e.sock.SetReadDeadline(time.Now().Add(s.cfg.KeepaliveInterval))
		n, err := e.sock.ReadFrom(buf)
		if err != nil {
			if isTimeout(err) {
				continue
			}
			return err
		}

		h, payload, err := wire.Decode(buf[:n], 0)
		if err != nil || !h.Control {
			continue
		}
		subtype, err := wire.PeekControlSubtype(payload)
		if err != nil {
			continue
		}
		now := time.Now()
		switch subtype {
		case wire.ControlACK:
			if body, err := wire.UnmarshalACKBody(payload[1:]); err == nil {
				s.handleACK(id, e, body, now)
			}
		case wire.ControlNACK:
			if body, err := wire.UnmarshalNACKBody(payload[1:]); err == nil {
				s.handleNACK(ctx, id, e, body)
			}
		case wire.ControlLinkReport:
			if body, err := wire.UnmarshalLinkReportBody(payload[1:]); err == nil {
				s.handleLinkReport(e, body, now)
			}
		case wire.ControlProbe:
			if body, err := wire.UnmarshalProbeBody(payload[1:]); err == nil {
				s.handleProbe(id, e, body, now)
			}
		}
	}
}

// handleACK folds an ACKBody into the retransmit store and the path's
// congestion/bandit state. Sequences below the bitmap window are
// acknowledged in bulk; sequences within it are acknowledged
// individually unless flagged lost.
func (s *Sender) handleACK(id path.ID, e *pathEntry, body wire.ACKBody, now time.Time) {
	e.ackMu.Lock()
	prev := e.lastCumulativeAck
	if body.Cumulative > e.lastCumulativeAck {
		e.lastCumulativeAck = body.Cumulative
	}
	e.ackMu.Unlock()

	var windowStart uint64
	if body.Cumulative > wire.AckBitmapBits {
		windowStart = body.Cumulative - wire.AckBitmapBits
	}
	if windowStart > prev {
		s.retx.AckRange(prev, uint32(windowStart-prev))
	}

	acked := 0
	for i := uint64(0); i < wire.AckBitmapBits && i < body.Cumulative; i++ {
		seq := body.Cumulative - 1 - i
		if seq < windowStart {
			break
		}
		if body.LossBitmap&(1<<i) != 0 {
			continue
		}
		if s.retx.Ack(seq) {
			acked++
		}
	}

	if acked > 0 {
		e.path.Observables.RecordDelivery(uint64(acked)*uint64(s.pool.BufSize()), now)
		if e.path.Congestion != nil {
			e.path.Congestion.OnAck(uint64(acked)*uint64(s.pool.BufSize()), 0, now)
		}
	}
	s.sched.ObserveOutcome(id, acked > 0)
}

// handleNACK maps each NACK range to its owning FEC generation and
// streams the requested number of additional repair symbols for it.
func (s *Sender) handleNACK(ctx context.Context, id path.ID, e *pathEntry, body wire.NACKBody) {
	if e.path.Sender == nil {
		return
	}
	for _, r := range body.Ranges {
		start := (r.Start / uint64(s.cfg.CodingWindow)) * uint64(s.cfg.CodingWindow)
		genID := fec.GenerationID(start)
		for _, em := range e.path.Sender.OnNACK(genID, int(r.Len)) {
			if err := s.queueRepair(ctx, e, em); err != nil {
				s.log.WithField("path", id).WithError(err).Debug("session: NACK repair emission failed")
			}
		}
	}
	s.sched.ObserveOutcome(id, false)
}

// handleLinkReport folds a receiver's periodic observation of this path
// back into its Observables, independent of per-ACK sampling.
func (s *Sender) handleLinkReport(e *pathEntry, body wire.LinkReportBody, now time.Time) {
	e.path.Observables.RecordRTTSample(time.Duration(body.SmoothedRTTUs) * time.Microsecond)
	e.path.Observables.RecordLossSample(float64(body.SmoothedLossPPM) / 1e6)
	if body.DeliveredBps > 0 {
		e.path.Observables.RecordDelivery(body.DeliveredBps/8, now)
	}
}

// DegradationStage reports the sender's current host-pressure
// degradation stage and the pressure value that produced it, for
// telemetry.
func (s *Sender) DegradationStage() (scheduler.DegradationStage, float64) {
	g := s.sched.DegradationGate()
	return g.Stage(), g.Pressure()
}

// UpdatePressure folds a host-pressure sample (0..1) into the
// scheduler's degradation gate. Callers (telemetry's host-pressure
// sampler) drive this on a timer; the gate itself never samples.
func (s *Sender) UpdatePressure(pressure float64) {
	s.sched.DegradationGate().Update(pressure)
}

// RetransmitStats returns the lifetime acked/lost/late counters from the
// sender's retransmit store, for telemetry.
func (s *Sender) RetransmitStats() (acked, lost, late uint64) {
	return s.retx.Stats()
}

// SetMaxBitrate forwards an operator-configured bitrate ceiling to the
// scheduler.
func (s *Sender) SetMaxBitrate(bps uint64) {
	s.sched.SetMaxBitrate(bps)
}

// SetRedundancyMode changes the scheduler's redundancy mode.
func (s *Sender) SetRedundancyMode(m scheduler.RedundancyMode) {
	s.sched.SetMode(m)
}

// AddPathDial dials a new UDP socket per cfg and registers it as path id,
// the CmdAddPath control-plane entry point.
func (s *Sender) AddPathDial(id path.ID, cfg udp.Config) error {
	sock, err := udp.Dial(cfg)
	if err != nil {
		return err
	}
	if err := s.AddPath(id, sock); err != nil {
		sock.Close()
		return err
	}
	return nil
}

// commandLoop drains Session.Commands() and applies each one to the
// sender, replying on the command's Result channel if the submitter
// asked for one. It runs for the lifetime of the session.
func (s *Sender) commandLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case cmd, ok := <-s.cmds:
			if !ok {
				return nil
			}
			reply(cmd, s.applyCommand(ctx, cmd))
		}
	}
}

// applyCommand executes a single Command against the sender and returns
// the error to report back to the submitter.
func (s *Sender) applyCommand(ctx context.Context, cmd Command) error {
	switch cmd.Kind {
	case CmdSetMaxBitrate:
		s.SetMaxBitrate(cmd.MaxBitrateBps)
		return nil
	case CmdSetRedundancyMode:
		s.SetRedundancyMode(cmd.RedundancyMode)
		return nil
	case CmdAddPath:
		return s.AddPathDial(cmd.PathID, udp.Config{
			LocalBind:  cmd.LocalBind,
			RemoteAddr: cmd.RemoteAddr,
			Iface:      cmd.Iface,
		})
	case CmdRemovePath:
		s.LeavePath(ctx, cmd.PathID)
		s.RemovePath(cmd.PathID)
		return nil
	case CmdFreezePath:
		s.FreezePath(cmd.PathID)
		return nil
	case CmdResumePath:
		s.JoinPath(cmd.PathID)
		return nil
	case CmdSetProbeEnabled:
		s.probesEnabled.Store(cmd.ProbeEnabled)
		return nil
	default:
		return fmt.Errorf("session: unknown command kind %v", cmd.Kind)
	}
}

func isTimeout(err error) bool {
	type timeout interface{ Timeout() bool }
	t, ok := err.(timeout)
	return ok && t.Timeout()
}
