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

package aggregator

import (
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/bondwire/bond/fec"
)

// DefaultCapacity is the buffer capacity the sender-restart heuristic
// measures against (a lower incoming sequence more than half of it
// behind next_expected is a restart, not ordinary reordering); it also
// bounds how many gap sequences one arrival stamps with a deadline.
const DefaultCapacity = 4096

// NackTrigger is returned by ReleaseReady when a gap's arrival deadline
// passed and the gap may still be repairable: the caller (session/path
// wiring) is expected to request a NACK for the named range.
type NackTrigger struct {
	Start uint64
	N     uint32
}

// Buffer is the sequence-keyed ordered reassembly buffer with a
// presence index, erasure-decode integration, and sender-restart
// detection.
type Buffer struct {
	capacity     int
	windowSize   int
	symbolLen    int
	nextExpected uint64

	present    map[uint64][]byte
	arrivedAt  map[uint64]time.Time
	deadlines  map[uint64]time.Time
	windows    map[uint16]*CodingWindow

	LateCount      uint64
	DuplicateCount uint64
	RestartCount   uint64
}

// NewBuffer returns a Buffer starting with next_expected = 0.
func NewBuffer(capacity, windowSize, symbolLen int) *Buffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Buffer{
		capacity:   capacity,
		windowSize: windowSize,
		symbolLen:  symbolLen,
		present:    make(map[uint64][]byte),
		arrivedAt:  make(map[uint64]time.Time),
		deadlines:  make(map[uint64]time.Time),
		windows:    make(map[uint16]*CodingWindow),
	}
}

// NextExpected returns the next sequence the buffer is waiting to
// release.
func (b *Buffer) NextExpected() uint64 {
	return b.nextExpected
}

func (b *Buffer) windowFor(seq uint64) *CodingWindow {
	start := (seq / uint64(b.windowSize)) * uint64(b.windowSize)
	id := fec.GenerationID(start)
	w, ok := b.windows[id]
	if !ok {
		w = NewCodingWindow(id, b.windowSize, b.symbolLen)
		b.windows[id] = w
	}
	return w
}

// Insert records one arrived source packet. It returns true if seq was
// already present (a duplicate, counted and otherwise ignored: first
// arrival wins).
func (b *Buffer) Insert(seq uint64, payload []byte, now time.Time, deadline time.Time) bool {
	b.maybeDetectRestart(seq)

	if _, dup := b.present[seq]; dup {
		b.DuplicateCount++
		return true
	}
	b.present[seq] = payload
	b.arrivedAt[seq] = now
	if !deadline.IsZero() {
		b.deadlines[seq] = deadline
	}
	b.stampGapDeadlines(seq, deadline)
	w := b.windowFor(seq)
	start := (seq / uint64(b.windowSize)) * uint64(b.windowSize)
	w.ObserveSource(int(seq-start), payload)
	return false
}

// stampGapDeadlines gives every not-yet-arrived sequence between
// next_expected and seq a playout deadline, derived from the arrival
// that just revealed the gap. A sequence that is genuinely lost never
// has Insert called for it on its own behalf, so without this its
// deadline would never be set and ReleaseReady could never judge it
// late or repairable — it would simply stall next_expected forever.
// Bounded to at most capacity sequences so a large forward jump cannot
// make this unbounded.
func (b *Buffer) stampGapDeadlines(seq uint64, deadline time.Time) {
	if deadline.IsZero() || seq <= b.nextExpected {
		return
	}
	lo := b.nextExpected
	if seq-lo > uint64(b.capacity) {
		lo = seq - uint64(b.capacity)
	}
	for s := lo; s < seq; s++ {
		if _, ok := b.present[s]; ok {
			continue
		}
		if _, ok := b.deadlines[s]; ok {
			continue
		}
		b.deadlines[s] = deadline
	}
}

// ObserveRepair records a repair symbol for the generation owning seq.
func (b *Buffer) ObserveRepair(genID uint16, symbolIndex uint8, symbol []byte) {
	w, ok := b.windows[genID]
	if !ok {
		w = NewCodingWindow(genID, b.windowSize, b.symbolLen)
		b.windows[genID] = w
	}
	w.ObserveRepair(symbolIndex, symbol)
}

// maybeDetectRestart implements the sender-restart heuristic: if seq is
// smaller than next_expected by more than half the buffer capacity (and
// so could not simply be a very late, in-window arrival), the buffer
// resets to treat seq as the new base.
func (b *Buffer) maybeDetectRestart(seq uint64) {
	if b.nextExpected == 0 {
		return
	}
	if seq >= b.nextExpected {
		return
	}
	behind := b.nextExpected - seq
	if behind > uint64(b.capacity)/2 && seq < uint64(b.capacity) {
		log.WithField("seq", seq).WithField("next_expected", b.nextExpected).
			Warning("aggregator: sender restart detected, resetting buffer")
		b.reset(seq)
	}
}

func (b *Buffer) reset(newNextExpected uint64) {
	b.nextExpected = newNextExpected
	b.present = make(map[uint64][]byte)
	b.arrivedAt = make(map[uint64]time.Time)
	b.deadlines = make(map[uint64]time.Time)
	b.windows = make(map[uint16]*CodingWindow)
	b.RestartCount++
}

// ReleaseReady releases every contiguous sequence starting at
// next_expected. When next_expected is missing and its deadline has
// passed, it first tries an erasure decode of its window; if that does
// not recover it, it emits a NACK trigger for it (when the window still
// misses sources and holds fewer than W repair symbols) and then skips
// past it as late in every case. The NACK trigger does not hold
// next_expected back: a repair arriving afterwards is not released.
func (b *Buffer) ReleaseReady(now time.Time) (released [][]byte, nacks []NackTrigger) {
	for {
		payload, ok := b.present[b.nextExpected]
		if ok {
			released = append(released, payload)
			b.forget(b.nextExpected)
			b.nextExpected++
			continue
		}

		deadline, hasDeadline := b.deadlines[b.nextExpected]
		if !hasDeadline || now.Before(deadline) {
			break
		}

		w := b.windowFor(b.nextExpected)
		if w.ReadyToDecode() {
			if w.Decode() {
				start := (b.nextExpected / uint64(b.windowSize)) * uint64(b.windowSize)
				for i, src := range w.Sources {
					seq := start + uint64(i)
					if seq >= b.nextExpected {
						if _, already := b.present[seq]; !already {
							b.present[seq] = src
						}
					}
				}
				continue
			}
		}
		if w.MissingCount() > 0 && len(w.RepairSymbols) < w.W {
			nacks = append(nacks, NackTrigger{Start: b.nextExpected, N: 1})
		}
		b.LateCount++
		b.forget(b.nextExpected)
		b.nextExpected++
	}
	return released, nacks
}

func (b *Buffer) forget(seq uint64) {
	delete(b.present, seq)
	delete(b.arrivedAt, seq)
	delete(b.deadlines, seq)

	start := (seq / uint64(b.windowSize)) * uint64(b.windowSize)
	if seq == start+uint64(b.windowSize)-1 {
		id := fec.GenerationID(start)
		delete(b.windows, id)
	}
}
