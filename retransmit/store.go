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

package retransmit

import (
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/bondwire/bond/bufpool"
)

// Outcome is the terminal state recorded for a sequence once it leaves
// the store, satisfying the data model's invariant that every sent
// sequence is, at all times, either still within the retransmit
// horizon or in exactly one terminal state.
type Outcome uint8

// Outcomes.
const (
	OutcomeAcked Outcome = iota
	OutcomeLost
	OutcomeLate
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAcked:
		return "acked"
	case OutcomeLost:
		return "lost"
	case OutcomeLate:
		return "late"
	default:
		return "unknown"
	}
}

// DefaultHorizon is the default retransmit/repair eligibility window
// applied when a caller does not supply an explicit playout deadline
// per packet.
const DefaultHorizon = 500 * time.Millisecond

type entry struct {
	handle   bufpool.Handle
	sentAt   time.Time
	deadline time.Time
}

// Store maps outbound sequence numbers to the packet buffer handle sent
// for them, until ACKed or until the playout-deadline horizon passes.
// It is the only place in the sender that holds a long-lived reference
// to a sent packet's buffer; releasing that reference (on Ack or
// Expire) is what ultimately returns the buffer to bufpool.Pool.
type Store struct {
	mu      sync.Mutex
	horizon time.Duration
	entries map[uint64]*entry

	acked, lost, late uint64
}

// New returns an empty Store using horizon as the default
// arrival_deadline when Put is called without an explicit deadline.
func New(horizon time.Duration) *Store {
	if horizon <= 0 {
		horizon = DefaultHorizon
	}
	return &Store{horizon: horizon, entries: make(map[uint64]*entry)}
}

// Put records seq as sent, taking ownership of one reference to h. The
// deadline defaults to sentAt+horizon when zero.
func (s *Store) Put(seq uint64, h bufpool.Handle, sentAt time.Time, deadline time.Time) {
	if deadline.IsZero() {
		deadline = sentAt.Add(s.horizon)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[seq] = &entry{handle: h, sentAt: sentAt, deadline: deadline}
}

// Get returns the handle stored for seq, if it is still pending.
func (s *Store) Get(seq uint64) (bufpool.Handle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[seq]
	if !ok {
		return bufpool.Handle{}, false
	}
	return e.handle, true
}

// Ack records seq as ACKed, releasing the store's reference to its
// buffer and removing it from the pending set. Returns false if seq was
// not pending (already terminal, or never sent).
func (s *Store) Ack(seq uint64) bool {
	s.mu.Lock()
	e, ok := s.entries[seq]
	if ok {
		delete(s.entries, seq)
		s.acked++
	}
	s.mu.Unlock()
	if ok {
		e.handle.Release()
	}
	return ok
}

// AckRange acks every sequence in [start, start+n).
func (s *Store) AckRange(start uint64, n uint32) {
	for i := uint32(0); i < n; i++ {
		s.Ack(start + uint64(i))
	}
}

// Deadline returns the arrival deadline recorded for seq, if pending.
func (s *Store) Deadline(seq uint64) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[seq]
	if !ok {
		return time.Time{}, false
	}
	return e.deadline, true
}

// Expire scans for pending sequences whose deadline has passed as of
// now, declares them OutcomeLost, releases their buffers, and returns
// the expired sequences. The reliability layer is expected to have
// already attempted repair for anything still worth saving; anything
// still pending past its deadline here is unrecoverable.
func (s *Store) Expire(now time.Time) []uint64 {
	var expired []uint64
	var handles []bufpool.Handle

	s.mu.Lock()
	for seq, e := range s.entries {
		if now.After(e.deadline) {
			expired = append(expired, seq)
			handles = append(handles, e.handle)
			delete(s.entries, seq)
		}
	}
	s.lost += uint64(len(expired))
	s.mu.Unlock()

	for _, h := range handles {
		h.Release()
	}
	if len(expired) > 0 {
		log.WithField("count", len(expired)).Debug("retransmit: declared sequences lost past horizon")
	}
	return expired
}

// MarkLate declares seq OutcomeLate (the receiver skipped past it
// rather than the sender timing it out) and releases its buffer if
// still held. It is a no-op if seq was already terminal.
func (s *Store) MarkLate(seq uint64) bool {
	s.mu.Lock()
	e, ok := s.entries[seq]
	if ok {
		delete(s.entries, seq)
		s.late++
	}
	s.mu.Unlock()
	if ok {
		e.handle.Release()
	}
	return ok
}

// Len returns the number of sequences currently pending (neither ACKed,
// declared lost, nor declared late).
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Stats returns lifetime terminal-outcome counters for telemetry.
func (s *Store) Stats() (acked, lost, late uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.acked, s.lost, s.late
}
