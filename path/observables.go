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
	"sync/atomic"
	"time"

	"github.com/eclesh/welford"
)

// RTT estimator gains, the standard values from RFC 6298: SRTT and RTTVAR
// are smoothed with alpha=1/8, beta=1/4.
const (
	rttAlpha = 1.0 / 8.0
	rttBeta  = 1.0 / 4.0

	// Fast/slow EWMA gains for the loss-rate pair: the fast estimator
	// reacts within roughly one RTT, the slow one smooths over a burst.
	lossFastGain = 0.25
	lossSlowGain = 0.05
)

// Snapshot is an immutable, single-writer-produced view of a path's
// smoothed observables. Readers (the scheduler) take a Snapshot instead
// of touching Observables' internal state directly.
type Snapshot struct {
	SmoothedRTT     time.Duration
	RTTVariance     time.Duration
	SmoothedLossFast float64
	SmoothedLossSlow float64
	DeliveredBps     float64
	LastUpdated      time.Time
}

// Observables accumulates a path's smoothed RTT, loss, and delivery-rate
// statistics. It is written exclusively by the owning per-path worker
// and read elsewhere only via Snapshot(), which reads through an
// atomically published pointer (a single-writer wait-free design, per
// the concurrency model's "smoothed per-path observables" rule).
type Observables struct {
	snap atomic.Pointer[Snapshot]

	haveRTT bool
	srttNs  float64
	rttvarNs float64

	lossFast float64
	lossSlow float64

	deliveryVariance *welford.Stats

	lastAckBytes uint64
	lastAckAt    time.Time
}

// NewObservables returns a zeroed Observables with an initial Snapshot
// published so readers never see a nil pointer.
func NewObservables() *Observables {
	o := &Observables{deliveryVariance: welford.New()}
	o.snap.Store(&Snapshot{LastUpdated: time.Now()})
	return o
}

// RecordRTTSample folds one round-trip-time sample into the smoothed
// estimator using the RFC 6298 update rule.
func (o *Observables) RecordRTTSample(rtt time.Duration) {
	sample := float64(rtt.Nanoseconds())
	if !o.haveRTT {
		o.srttNs = sample
		o.rttvarNs = sample / 2
		o.haveRTT = true
	} else {
		diff := sample - o.srttNs
		o.rttvarNs = (1-rttBeta)*o.rttvarNs + rttBeta*abs(diff)
		o.srttNs = (1-rttAlpha)*o.srttNs + rttAlpha*sample
	}
	o.publish()
}

// RecordLossSample folds one loss observation (0 or 1, or a fractional
// windowed rate) into the fast/slow EWMA pair.
func (o *Observables) RecordLossSample(lost float64) {
	o.lossFast = (1-lossFastGain)*o.lossFast + lossFastGain*lost
	o.lossSlow = (1-lossSlowGain)*o.lossSlow + lossSlowGain*lost
	o.publish()
}

// RecordDelivery folds one ACK's delivered-bytes-since-last-ACK sample,
// computed as bytes divided by the inter-ACK interval, into both the
// point delivery-rate estimate and its running variance.
func (o *Observables) RecordDelivery(ackedBytes uint64, at time.Time) {
	if !o.lastAckAt.IsZero() {
		interval := at.Sub(o.lastAckAt)
		if interval > 0 {
			bps := float64(ackedBytes) * 8 / interval.Seconds()
			o.deliveryVariance.Add(bps)
		}
	}
	o.lastAckBytes = ackedBytes
	o.lastAckAt = at
	o.publish()
}

// DeliveryVariance returns the running variance of the delivery-rate
// samples folded in so far.
func (o *Observables) DeliveryVariance() float64 {
	return o.deliveryVariance.Variance()
}

func (o *Observables) publish() {
	o.snap.Store(&Snapshot{
		SmoothedRTT:      time.Duration(o.srttNs),
		RTTVariance:      time.Duration(o.rttvarNs),
		SmoothedLossFast: o.lossFast,
		SmoothedLossSlow: o.lossSlow,
		DeliveredBps:     o.deliveryVariance.Mean(),
		LastUpdated:      time.Now(),
	})
}

// Snapshot returns the most recently published observables. Safe to
// call concurrently with writes from the owning worker.
func (o *Observables) Snapshot() Snapshot {
	return *o.snap.Load()
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
