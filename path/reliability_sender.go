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

package path

import (
	"sync"
	"time"

	"github.com/bondwire/bond/fec"
)

// SenderReliability is the send-side half of the per-path reliability
// layer: it tracks the active sliding coding windows, streams repair
// symbols at the adaptive ratio, and answers NACKs with additional
// coded symbols from the referenced generation rather than literal
// retransmits.
type SenderReliability struct {
	mu sync.Mutex

	windowSize int
	symbolLen  int
	horizon    time.Duration

	rate       *fec.RateModel
	currentR   float64
	lastRecalc time.Time

	generations map[uint16]*fec.Generation
	genOrder    []uint16 // oldest-first, for horizon eviction

	repairStreamed int
	repairOnNack   int
}

// NewSenderReliability builds a SenderReliability with the given coding
// window size, symbol length (the path MTU minus header), and
// retransmit/repair horizon.
func NewSenderReliability(windowSize, symbolLen int, horizon time.Duration) (*SenderReliability, error) {
	rate, err := fec.NewRateModel("")
	if err != nil {
		return nil, err
	}
	return &SenderReliability{
		windowSize:  windowSize,
		symbolLen:   symbolLen,
		horizon:     horizon,
		rate:        rate,
		currentR:    fec.DefaultRepairRatio,
		generations: make(map[uint16]*fec.Generation),
	}, nil
}

// generationFor returns (creating if needed) the generation that owns
// seq.
func (s *SenderReliability) generationFor(seq uint64) *fec.Generation {
	start := (seq / uint64(s.windowSize)) * uint64(s.windowSize)
	id := fec.GenerationID(start)
	g, ok := s.generations[id]
	if !ok {
		g = fec.NewGeneration(id, start, s.windowSize, s.symbolLen)
		s.generations[id] = g
		s.genOrder = append(s.genOrder, id)
	}
	return g
}

// ObserveSource records a source packet being sent, so it becomes part
// of the generation's encoding material.
func (s *SenderReliability) ObserveSource(seq uint64, payload []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g := s.generationFor(seq)
	off, ok := g.SequenceOffset(seq)
	if ok {
		g.AddSource(off, payload)
	}
}

// StreamRepair returns the repair symbols due for continuous streaming
// at the current adaptive ratio for the generation owning seq. It is
// called once per source packet sent; over W source packets it emits
// approximately R*W repair symbols.
func (s *SenderReliability) StreamRepair(seq uint64) []RepairEmission {
	s.mu.Lock()
	defer s.mu.Unlock()
	g := s.generationFor(seq)
	off, ok := g.SequenceOffset(seq)
	if !ok {
		return nil
	}

	budget := s.currentR * float64(s.windowSize)
	due := int(float64(off+1) * s.currentR)
	_ = budget
	var out []RepairEmission
	for int(g.NextSymbolIndex()) < due {
		idx, sym := g.EmitRepair()
		out = append(out, RepairEmission{Generation: g.ID, SymbolIndex: idx, Symbol: sym, SourceCount: s.windowSize})
		s.repairStreamed++
	}
	return out
}

// RepairEmission is one repair symbol ready to be wrapped in a wire
// REPAIR control packet.
type RepairEmission struct {
	Generation  uint16
	SymbolIndex uint8
	Symbol      []byte
	SourceCount int
}

// OnNACK responds to a NACK referencing generation genID by generating
// extraSymbols additional repair symbols for it (never literal
// retransmits: any W linearly independent symbols decode the window).
func (s *SenderReliability) OnNACK(genID uint16, extraSymbols int) []RepairEmission {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.generations[genID]
	if !ok || g.Released() {
		return nil
	}
	out := make([]RepairEmission, 0, extraSymbols)
	for i := 0; i < extraSymbols; i++ {
		idx, sym := g.EmitRepair()
		out = append(out, RepairEmission{Generation: g.ID, SymbolIndex: idx, Symbol: sym, SourceCount: s.windowSize})
		s.repairOnNack++
	}
	return out
}

// Recalculate re-derives the adaptive repair ratio from the latest
// observed loss rate, at most once per fec.RecomputeInterval.
func (s *SenderReliability) Recalculate(lossRate float64, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if now.Sub(s.lastRecalc) < fec.RecomputeInterval {
		return nil
	}
	r, err := s.rate.Recommend(lossRate, s.windowSize)
	if err != nil {
		return err
	}
	s.currentR = r
	s.lastRecalc = now
	return nil
}

// CurrentRatio returns the active repair ratio.
func (s *SenderReliability) CurrentRatio() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentR
}

// ReleaseAged evicts generations whose age exceeds the retransmit
// horizon, releasing their coding state.
func (s *SenderReliability) ReleaseAged() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	released := 0
	kept := s.genOrder[:0]
	for _, id := range s.genOrder {
		g := s.generations[id]
		if g.Age() > s.horizon {
			g.Release()
			delete(s.generations, id)
			released++
			continue
		}
		kept = append(kept, id)
	}
	s.genOrder = kept
	return released
}

// Stats returns lifetime repair-symbol counters for telemetry.
func (s *SenderReliability) Stats() (streamed, onNack int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.repairStreamed, s.repairOnNack
}
