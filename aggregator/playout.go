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

import "time"

// DefaultStartLatency is the fixed baseline delay added to every
// playout deadline before jitter/loss terms.
const DefaultStartLatency = 50 * time.Millisecond

// DefaultJitterMultiplier is k in start_latency + k*jitter_estimate +
// loss_penalty.
const DefaultJitterMultiplier = 4.0

// DefaultMaxLossPenalty caps how much additional playout delay observed
// post-FEC loss can add, so a badly degraded path cannot push playout
// latency unboundedly.
const DefaultMaxLossPenalty = 200 * time.Millisecond

// PlayoutModel computes the playout deadline for newly arrived
// sequences from the current jitter estimate and observed post-FEC loss
// rate.
type PlayoutModel struct {
	StartLatency     time.Duration
	JitterMultiplier float64
	MaxLossPenalty   time.Duration
}

// NewPlayoutModel returns a model with the package defaults.
func NewPlayoutModel() *PlayoutModel {
	return &PlayoutModel{
		StartLatency:     DefaultStartLatency,
		JitterMultiplier: DefaultJitterMultiplier,
		MaxLossPenalty:   DefaultMaxLossPenalty,
	}
}

// Deadline returns the playout deadline for a sequence that arrived (or
// whose absence was first noticed) at arrivedAt, given the current p95
// jitter estimate and post-FEC loss rate in [0,1].
func (m *PlayoutModel) Deadline(arrivedAt time.Time, jitterP95 time.Duration, postFECLossRate float64) time.Time {
	penalty := time.Duration(postFECLossRate * float64(m.MaxLossPenalty))
	if penalty > m.MaxLossPenalty {
		penalty = m.MaxLossPenalty
	}
	delay := m.StartLatency + time.Duration(float64(jitterP95)*m.JitterMultiplier) + penalty
	return arrivedAt.Add(delay)
}
