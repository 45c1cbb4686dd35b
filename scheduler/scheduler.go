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

package scheduler

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/bondwire/bond/path"
)

// Outcome is the result of an Enqueue call.
type Outcome uint8

const (
	Queued Outcome = iota
	Busy
	OverDeadline
)

func (o Outcome) String() string {
	switch o {
	case Queued:
		return "queued"
	case Busy:
		return "busy"
	case OverDeadline:
		return "over_deadline"
	default:
		return "unknown"
	}
}

// ErrAllPathsDead is returned by Enqueue when every registered path is
// in lifecycle state dead.
var ErrAllPathsDead = errors.New("scheduler: all paths are dead")

// RedundancyMode selects whether non-critical units favor link quality
// (single best path) or reliability (broadcast headroom permitting).
type RedundancyMode uint8

const (
	ModeQuality RedundancyMode = iota
	ModeReliability
)

// DefaultHeadroomMargin is the minimum capacity headroom, as a fraction
// of aggregate bottleneck bandwidth, required before a unit is
// duplicated under reliability mode.
const DefaultHeadroomMargin = 0.3

// demandGain smooths the producer's enqueued-bytes rate into an EWMA
// estimate of outbound demand, the same point-rate-then-smooth shape
// path.Observables.RecordDelivery uses for the delivery rate.
const demandGain = 0.2

// Assignment is one (unit, path) pairing the scheduler produced for a
// single Enqueue call; critical units produce one Assignment per alive
// path (broadcast).
type Assignment struct {
	Path    path.ID
	Starved bool
}

// Scheduler runs the eight-stage outbound pipeline described in the
// package doc comment. It is owned by a single worker goroutine; all
// exported methods assume single-threaded use except where noted.
type Scheduler struct {
	mu sync.Mutex

	paths map[path.ID]*path.Path
	order []path.ID

	dwrr    *DWRR
	bandits map[path.ID]*BetaBandit
	pacers  map[path.ID]*Pacer
	gate    *DegradationGate

	mode              RedundancyMode
	headroomMargin    float64
	blockingThreshold time.Duration
	maxBitrateBps     uint64

	lastAssignedArrival time.Time

	replenishQuantum float64

	demandBps     float64
	haveDemand    bool
	lastDemandAt  time.Time
}

// New returns an empty Scheduler in quality redundancy mode.
func New() *Scheduler {
	return &Scheduler{
		paths:             make(map[path.ID]*path.Path),
		dwrr:              NewDWRR(),
		bandits:           make(map[path.ID]*BetaBandit),
		pacers:            make(map[path.ID]*Pacer),
		gate:              NewDegradationGate(),
		mode:              ModeQuality,
		headroomMargin:    DefaultHeadroomMargin,
		blockingThreshold: DefaultBlockingThreshold,
		replenishQuantum:  1.0,
	}
}

// SetMode changes the redundancy mode.
func (s *Scheduler) SetMode(m RedundancyMode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mode = m
}

// DegradationGate exposes the gate so telemetry can feed it host
// pressure readings.
func (s *Scheduler) DegradationGate() *DegradationGate {
	return s.gate
}

// SetMaxBitrate records the operator-configured bitrate ceiling. The
// scheduler does not itself shape the producer's send rate (that is the
// caller's job, per the Enqueue contract); this value is surfaced
// through telemetry and through MaxBitrateBps so the producer and the
// degradation gate can be tuned consistently from one control-plane
// value.
func (s *Scheduler) SetMaxBitrate(bps uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.maxBitrateBps = bps
}

// MaxBitrateBps returns the last value set by SetMaxBitrate, or 0 if
// unset (no configured ceiling).
func (s *Scheduler) MaxBitrateBps() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.maxBitrateBps
}

// AddPath registers a path with the scheduler, giving it a fresh bandit
// and pacer.
func (s *Scheduler) AddPath(p *path.Path, seed int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.paths[p.ID]; exists {
		return
	}
	s.paths[p.ID] = p
	s.order = append(s.order, p.ID)
	s.bandits[p.ID] = NewBetaBandit(seed)
	s.pacers[p.ID] = NewPacer()
	s.dwrr.SetWeight(p.ID, p.Weight(), int64(p.Snapshot().SmoothedRTT))
}

// RemovePath drops a path from scheduling entirely.
func (s *Scheduler) RemovePath(id path.ID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.paths, id)
	delete(s.bandits, id)
	delete(s.pacers, id)
	s.dwrr.Remove(id)
	kept := s.order[:0]
	for _, existing := range s.order {
		if existing != id {
			kept = append(kept, existing)
		}
	}
	s.order = kept
}

// refreshWeights pulls every registered path's weight and smoothed RTT
// into the DWRR bookkeeping and its pacing rate into its Pacer; called
// once per Enqueue. The weight is the value last set by Path.SetWeight
// (1.0 unless changed); it is not derived from the path's bandwidth
// estimate.
func (s *Scheduler) refreshWeights() {
	for id, p := range s.paths {
		s.dwrr.SetWeight(id, p.Weight(), int64(p.Snapshot().SmoothedRTT))
		s.pacers[id].Update(p.PacingRateBps())
	}
	s.dwrr.Replenish(s.replenishQuantum)
}

// aliveIDs returns the ids of every non-dead registered path, in
// registration order.
func (s *Scheduler) aliveIDs() []path.ID {
	var out []path.ID
	for _, id := range s.order {
		if p, ok := s.paths[id]; ok && p.Alive() {
			out = append(out, id)
		}
	}
	return out
}

// Enqueue runs one outbound unit through the full pipeline and returns
// the path(s) it was assigned to. A single Assignment is produced for
// non-broadcast units; critical units produce one Assignment per alive
// path. A degradation-gate drop produces a Queued outcome with a nil
// assignment slice: the unit was validly accepted by the system, the
// pipeline simply chose to shed it internally rather than reject the
// producer's call.
func (s *Scheduler) Enqueue(u Unit, now time.Time) (Outcome, []Assignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !u.Deadline.IsZero() && now.After(u.Deadline) {
		return OverDeadline, nil, nil
	}

	alive := s.aliveIDs()
	if len(alive) == 0 {
		return Busy, nil, ErrAllPathsDead
	}

	priority := Classify(u)
	if !s.gate.Admit(priority, u.IsKeyframe) {
		return Queued, nil, nil
	}

	s.refreshWeights()
	s.observeDemand(len(u.Payload), now)

	broadcast := priority == PriorityCritical || (s.mode == ModeReliability && s.headroom() > s.headroomMargin)
	if broadcast {
		assignments := make([]Assignment, 0, len(alive))
		for _, id := range alive {
			_, starved, _ := s.dwrr.Select([]path.ID{id}, len(u.Payload))
			assignments = append(assignments, Assignment{Path: id, Starved: starved})
		}
		return Queued, assignments, nil
	}

	ranked := s.rankByBandit(alive)
	chosenID, ok := s.pickArrivalSafe(ranked, u, now)
	if !ok {
		// Every candidate failed the ordering/blocking guards; fall
		// back to the fastest alive path to guarantee progress.
		chosenID = s.fastestPath(alive, u, now)
	}

	id, starved, ok := s.dwrr.Select([]path.ID{chosenID}, len(u.Payload))
	if !ok {
		return Busy, nil, fmt.Errorf("scheduler: selected path %d vanished mid-enqueue", chosenID)
	}
	s.lastAssignedArrival = s.predictArrival(id, u, now)
	return Queued, []Assignment{{Path: id, Starved: starved}}, nil
}

// observeDemand folds one enqueued unit's size into an EWMA estimate of
// the producer's outbound demand, sampled as bytes over the interval
// since the previous Enqueue call.
func (s *Scheduler) observeDemand(bytes int, now time.Time) {
	if !s.lastDemandAt.IsZero() {
		if interval := now.Sub(s.lastDemandAt); interval > 0 {
			bps := float64(bytes) * 8 / interval.Seconds()
			if !s.haveDemand {
				s.demandBps = bps
				s.haveDemand = true
			} else {
				s.demandBps = (1-demandGain)*s.demandBps + demandGain*bps
			}
		}
	}
	s.lastDemandAt = now
}

// headroom returns aggregate bottleneck bandwidth headroom as a
// fraction in [0,1]: the share of the alive paths' combined pacing rate
// left over once the smoothed producer demand is subtracted.
func (s *Scheduler) headroom() float64 {
	var total float64
	for _, p := range s.paths {
		if p.Alive() {
			total += p.PacingRateBps()
		}
	}
	if total == 0 {
		return 0
	}
	h := (total - s.demandBps) / total
	switch {
	case h < 0:
		return 0
	case h > 1:
		return 1
	default:
		return h
	}
}

// rankByBandit draws a Thompson sample per candidate and sorts
// descending, tie-breaking by lower smoothed RTT then lower id.
func (s *Scheduler) rankByBandit(candidates []path.ID) []path.ID {
	type scored struct {
		id    path.ID
		draw  float64
		rtt   time.Duration
	}
	scoredList := make([]scored, 0, len(candidates))
	for _, id := range candidates {
		draw := s.bandits[id].Draw()
		scoredList = append(scoredList, scored{id: id, draw: draw, rtt: s.paths[id].Snapshot().SmoothedRTT})
	}
	sort.Slice(scoredList, func(i, j int) bool {
		if scoredList[i].draw != scoredList[j].draw {
			return scoredList[i].draw > scoredList[j].draw
		}
		if scoredList[i].rtt != scoredList[j].rtt {
			return scoredList[i].rtt < scoredList[j].rtt
		}
		return scoredList[i].id < scoredList[j].id
	})
	out := make([]path.ID, len(scoredList))
	for i, sc := range scoredList {
		out[i] = sc.id
	}
	return out
}

// predictArrival estimates the arrival time of unit u on path id.
func (s *Scheduler) predictArrival(id path.ID, u Unit, now time.Time) time.Time {
	snap := s.paths[id].Snapshot()
	oneWay := snap.SmoothedRTT / 2
	return PredictedArrival(now, oneWay, 0, s.paths[id].PacingRateBps(), len(u.Payload))
}

// fastestPath returns the alive candidate with the earliest predicted
// arrival for u.
func (s *Scheduler) fastestPath(candidates []path.ID, u Unit, now time.Time) path.ID {
	best := candidates[0]
	bestArrival := s.predictArrival(best, u, now)
	for _, id := range candidates[1:] {
		arrival := s.predictArrival(id, u, now)
		if arrival.Before(bestArrival) {
			best = id
			bestArrival = arrival
		}
	}
	return best
}

// pickArrivalSafe walks ranked candidates applying the in-order arrival
// and blocking guards, returning the first that passes both.
func (s *Scheduler) pickArrivalSafe(ranked []path.ID, u Unit, now time.Time) (path.ID, bool) {
	if len(ranked) == 0 {
		return 0, false
	}
	fastest := s.fastestPath(ranked, u, now)
	fastestArrival := s.predictArrival(fastest, u, now)

	for _, id := range ranked {
		arrival := s.predictArrival(id, u, now)
		if !InOrderGuard(arrival, s.lastAssignedArrival) {
			continue
		}
		if BlockingGuard(arrival, fastestArrival, s.blockingThreshold) {
			continue
		}
		return id, true
	}
	return 0, false
}

// ObserveOutcome feeds an ACK/NACK-derived success signal back into a
// path's bandit after the fact.
func (s *Scheduler) ObserveOutcome(id path.ID, success bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.bandits[id]; ok {
		b.Observe(success)
	}
}
