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

import "time"

// MaxBatchSize caps how many queued sends get coalesced into one
// underlying-socket write call, so pacing never trades latency for
// syscall efficiency beyond this bound.
const MaxBatchSize = 8

// Pacer converts a path's pacing rate (bits/sec) into the interval the
// per-path worker should wait between drains of its send queue, and how
// many queued units it may coalesce into a single batched write.
type Pacer struct {
	pacingRateBps float64
}

// NewPacer returns a Pacer with no rate set (Interval degrades to zero
// wait until the first Update).
func NewPacer() *Pacer {
	return &Pacer{}
}

// Update records the path's current pacing rate in bits per second, as
// reported by its congestion controller.
func (p *Pacer) Update(pacingRateBps float64) {
	p.pacingRateBps = pacingRateBps
}

// Interval returns how long the per-path worker should wait before
// sending a unit of unitSize bytes, given the current pacing rate.
func (p *Pacer) Interval(unitSize int) time.Duration {
	if p.pacingRateBps <= 0 {
		return 0
	}
	seconds := float64(unitSize) * 8 / p.pacingRateBps
	return time.Duration(seconds * float64(time.Second))
}

// BatchSize returns how many of the queueDepth pending units may be
// coalesced into the next write, capped at MaxBatchSize.
func (p *Pacer) BatchSize(queueDepth int) int {
	if queueDepth > MaxBatchSize {
		return MaxBatchSize
	}
	return queueDepth
}
