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
	"math/rand"
	"time"

	"github.com/bondwire/bond/path"
	"github.com/bondwire/bond/transport"
	"github.com/bondwire/bond/wire"
)

// DefaultKeepaliveInterval is how often a PROBE is sent on each path.
const DefaultKeepaliveInterval = 200 * time.Millisecond

// DefaultKeepaliveFailureThreshold is the number of consecutive failed
// PROBE sends that demotes a path toward dead.
const DefaultKeepaliveFailureThreshold = 5

// DefaultDrainWindow is how long LeavePath waits after marking a path
// draining before it is actually removed, giving in-flight units on it
// a chance to arrive or time out cleanly.
const DefaultDrainWindow = 500 * time.Millisecond

// DefaultProbeSuppressionInterval is the interval at which the receiver
// emits ACKs on each path. Inbound PROBEs are echoed every time, with no
// suppression.
const DefaultProbeSuppressionInterval = 50 * time.Millisecond

// keepaliveLoop sends a PROBE on e's socket every KeepaliveInterval and
// records it as pending; its echo is matched by handleProbe, called from
// the path's receive loop. A miss is counted only when sending the PROBE
// fails; a PROBE that is sent but never echoed is not counted. Failed
// sends past the failure threshold demote the path, and a CarrierMonitor
// reporting the link physically down moves it straight to dead without
// waiting out the dwell timer.
func (s *Session) keepaliveLoop(ctx context.Context, id path.ID, e *pathEntry) error {
	ticker := time.NewTicker(s.cfg.KeepaliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		if mon, ok := e.sock.(transport.CarrierMonitor); ok {
			up, err := mon.CarrierUp()
			if err == nil && !up {
				s.log.WithField("path", id).Warn("session: carrier down, declaring path dead")
				_ = e.path.Lifecycle.Transition(path.StateDead)
				continue
			}
		}

		if e.draining.Load() || !s.probesEnabled.Load() {
			continue
		}

		nonce := rand.Uint32()
		e.probeMu.Lock()
		e.pendingNonce = nonce
		e.pendingSentAt = time.Now()
		e.probeMu.Unlock()

		body := wire.ProbeBody{Nonce: nonce, SendTsUs: uint64(time.Now().UnixMicro())}
		if err := s.sendProbe(e.sock, body); err != nil {
			s.log.WithField("path", id).WithError(err).Debug("session: probe send failed")
			s.recordProbeMiss(id, e)
			continue
		}
	}
}

func (s *Session) sendProbe(sock transport.Socket, body wire.ProbeBody) error {
	buf := make([]byte, wire.MaxHeaderLen+32)
	n, err := body.MarshalBinaryTo(buf[wire.MaxHeaderLen:])
	if err != nil {
		return err
	}
	payload := buf[wire.MaxHeaderLen : wire.MaxHeaderLen+n]
	h := wire.Header{Version: wire.Version, Control: true, SessionEpoch: s.epoch.Load()}
	out, err := wire.Encode(h, payload)
	if err != nil {
		return err
	}
	_, err = sock.WriteTo(out)
	return err
}

// handleProbe processes an inbound PROBE control packet on path id: if
// it is unechoed (EchoTsUs == 0) it is the peer's probe and gets echoed
// back immediately; otherwise it is the echo of our own probe and is
// matched against the pending nonce to compute an RTT sample and clear
// the miss counter.
func (s *Session) handleProbe(id path.ID, e *pathEntry, body wire.ProbeBody, now time.Time) {
	if body.EchoTsUs == 0 {
		body.EchoTsUs = uint64(now.UnixMicro())
		if err := s.sendProbe(e.sock, body); err != nil {
			s.log.WithField("path", id).WithError(err).Debug("session: probe echo send failed")
		}
		return
	}

	e.probeMu.Lock()
	matches := body.Nonce == e.pendingNonce
	sentAt := e.pendingSentAt
	if matches {
		e.misses = 0
	}
	e.probeMu.Unlock()

	if !matches {
		return
	}
	rtt := now.Sub(sentAt)
	if rtt > 0 {
		e.path.Observables.RecordRTTSample(rtt)
		if e.path.Congestion != nil {
			e.path.Congestion.OnAck(0, rtt, now)
		}
	}
}

// recordProbeMiss increments e's consecutive-miss counter and demotes
// the path once it reaches KeepaliveFailureThreshold. keepaliveLoop calls
// it when a PROBE send fails; a matching echo in handleProbe resets the
// counter.
func (s *Session) recordProbeMiss(id path.ID, e *pathEntry) {
	e.probeMu.Lock()
	e.misses++
	misses := e.misses
	e.probeMu.Unlock()

	if misses < s.cfg.KeepaliveFailureThreshold {
		return
	}
	state := e.path.Lifecycle.State()
	switch state {
	case path.StateLive:
		if err := e.path.Lifecycle.Transition(path.StateDegrade); err != nil {
			s.log.WithField("path", id).WithError(err).Debug("session: degrade transition rejected")
		}
	case path.StateDegrade, path.StateWarm, path.StateProbe:
		_ = e.path.Lifecycle.Transition(path.StateDead)
	}
}

// JoinPath marks a previously-added path as eligible for scheduling
// immediately; paths start eligible on AddPath, so JoinPath exists for
// the LINK_JOIN control flow where a peer re-announces a path that was
// quiesced rather than removed.
func (s *Session) JoinPath(id path.ID) {
	if e := s.entry(id); e != nil {
		e.draining.Store(false)
	}
}

// FreezePath quiesces path id immediately without waiting out the drain
// window or removing it, for the CmdFreezePath control flow where the
// operator wants the path held in reserve rather than torn down.
func (s *Session) FreezePath(id path.ID) {
	if e := s.entry(id); e != nil {
		e.draining.Store(true)
	}
}

// LeavePath quiesces path id: it stops being offered new work
// immediately, and is fully removed (by the caller, via RemovePath)
// after DrainWindow, giving anything already in flight on it time to
// land.
func (s *Session) LeavePath(ctx context.Context, id path.ID) {
	e := s.entry(id)
	if e == nil {
		return
	}
	e.draining.Store(true)
	select {
	case <-time.After(s.cfg.DrainWindow):
	case <-ctx.Done():
	}
}
