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
	"container/ring"
	"math"
	"sort"
	"time"

	"github.com/eclesh/welford"
)

// DefaultJitterWindowSize is the number of recent inter-packet arrival
// deltas the p95 estimator keeps.
const DefaultJitterWindowSize = 128

// JitterEstimator tracks the p95 of inter-packet arrival deltas over a
// fixed-size sliding window, built on the same container/ring
// fixed-capacity technique the teacher's client package uses for its
// offset sliding window, plus a welford running variance for telemetry.
type JitterEstimator struct {
	samples     *ring.Ring
	size        int
	currentSize int
	lastArrival time.Time

	variance *welford.Stats
}

// NewJitterEstimator returns an estimator over size samples (
// DefaultJitterWindowSize if size <= 0).
func NewJitterEstimator(size int) *JitterEstimator {
	if size <= 0 {
		size = DefaultJitterWindowSize
	}
	r := ring.New(size)
	for i := 0; i < size; i++ {
		r.Value = math.NaN()
		r = r.Next()
	}
	return &JitterEstimator{samples: r, size: size, variance: welford.New()}
}

// Observe records a packet's arrival time, folding the inter-arrival
// delta from the previous observation into the window.
func (j *JitterEstimator) Observe(at time.Time) {
	if !j.lastArrival.IsZero() {
		delta := at.Sub(j.lastArrival).Seconds()
		j.add(delta)
		j.variance.Add(delta)
	}
	j.lastArrival = at
}

func (j *JitterEstimator) add(sample float64) {
	j.samples = j.samples.Next()
	if v, ok := j.samples.Value.(float64); ok && !math.IsNaN(v) {
		// no running sum needed for a percentile estimator
		_ = v
	} else if j.currentSize < j.size {
		j.currentSize++
	}
	j.samples.Value = sample
}

func (j *JitterEstimator) samplesSlice() []float64 {
	out := make([]float64, 0, j.size)
	r := j.samples
	for i := 0; i < j.size; i++ {
		if v, ok := r.Value.(float64); ok && !math.IsNaN(v) {
			out = append(out, v)
		}
		r = r.Prev()
	}
	return out
}

// P95 returns the 95th percentile inter-arrival delta observed so far,
// as a time.Duration; zero if no samples yet.
func (j *JitterEstimator) P95() time.Duration {
	s := j.samplesSlice()
	if len(s) == 0 {
		return 0
	}
	sort.Float64s(s)
	idx := int(math.Ceil(0.95*float64(len(s)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(s) {
		idx = len(s) - 1
	}
	return time.Duration(s[idx] * float64(time.Second))
}

// Variance returns the running variance of inter-arrival deltas in
// seconds^2, for telemetry.
func (j *JitterEstimator) Variance() float64 {
	return j.variance.Variance()
}
