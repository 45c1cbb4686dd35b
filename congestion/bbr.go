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

package congestion

import (
	"sync"
	"time"
)

// StartupGain is the pacing gain applied during startup's exponential
// ramp (4·ln2 ≈ 2.77, rounded for readability).
const StartupGain = 2.77

// DrainGain flushes the queue startup's high gain built up.
const DrainGain = 0.35

// StartupPlateauRounds is how many consecutive rounds of
// less-than-25%-growth in bottleneck bandwidth signal the pipe is full
// and startup should exit to drain.
const StartupPlateauRounds = 3

// StartupGrowthThreshold is the minimum round-over-round bandwidth
// growth that keeps startup ramping.
const StartupGrowthThreshold = 1.25

// Controller is a per-path BBR-family congestion controller: it
// maintains windowed bottleneck-bandwidth and min-RTT estimates and
// derives a pacing rate from them, cycling through
// startup/drain/probe_bw/probe_rtt. It satisfies path.CongestionController.
type Controller struct {
	mu sync.Mutex

	bw  *bwWindow
	rtt *rttWindow

	phase          Phase
	phaseEnteredAt time.Time
	round          uint64

	plateauRounds int
	lastMaxBw     float64

	cycleIndex     int
	cycleStartedAt time.Time

	lastAckAt    time.Time
	lastAckBytes uint64

	token     *TokenCoordinator
	tokenSlot int

	radio *RadioHook
}

// New returns a Controller in startup, optionally coordinating the
// exclusive probe_bw.up sub-phase through tok (nil disables
// coordination: the path behaves as a standalone BBR instance).
func New(tok *TokenCoordinator) *Controller {
	c := &Controller{
		bw:             newBwWindow(DefaultWindowRounds),
		rtt:            newRttWindow(time.Duration(DefaultWindowRounds) * time.Second),
		phase:          PhaseStartup,
		phaseEnteredAt: time.Now(),
		tokenSlot:      -1,
	}
	if tok != nil {
		c.token = tok
		c.tokenSlot = tok.Register()
	}
	return c
}

// AttachRadio wires an optional radio feed-forward hook into the
// controller; a nil hook (the default) leaves the controller as pure
// BBR.
func (c *Controller) AttachRadio(r *RadioHook) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.radio = r
}

// OnAck folds one ACK's delivered-bytes and RTT sample into the model
// and advances the phase state machine.
func (c *Controller) OnAck(ackedBytes uint64, rttSample time.Duration, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.round++
	c.rtt.Add(rttSample, now)

	if !c.lastAckAt.IsZero() {
		interval := now.Sub(c.lastAckAt)
		if interval > 0 {
			bps := float64(ackedBytes) * 8 / interval.Seconds()
			c.bw.Add(bps, c.round)
		}
	}
	c.lastAckAt = now
	c.lastAckBytes = ackedBytes

	c.advance(now)
}

// OnLoss records a loss signal; probe_bw's defensive handling of
// deteriorating trends lives in the radio hook rather than here, since
// plain packet loss on a bonded path is routine and handled upstream by
// the reliability layer, not by cutting the pacing rate.
func (c *Controller) OnLoss(now time.Time) {}

func (c *Controller) advance(now time.Time) {
	switch c.phase {
	case PhaseStartup:
		c.advanceStartup(now)
	case PhaseDrain:
		c.advanceDrain(now)
	case PhaseProbeBW:
		c.advanceProbeBW(now)
	case PhaseProbeRTT:
		c.advanceProbeRTT(now)
	}
}

func (c *Controller) advanceStartup(now time.Time) {
	max := c.bw.Max(c.round)
	if c.lastMaxBw > 0 && max < c.lastMaxBw*StartupGrowthThreshold {
		c.plateauRounds++
	} else {
		c.plateauRounds = 0
	}
	c.lastMaxBw = max
	if c.plateauRounds >= StartupPlateauRounds {
		c.enterPhase(PhaseDrain, now)
	}
}

func (c *Controller) advanceDrain(now time.Time) {
	// Drain exits once queueing delay has fallen back to roughly
	// min_rtt: approximated here by a fixed dwell, since the sender
	// does not have direct in-flight-bytes accounting without the
	// scheduler's credit-queue depth.
	if now.Sub(c.phaseEnteredAt) >= ProbeRTTDuration {
		c.enterPhase(PhaseProbeBW, now)
	}
}

func (c *Controller) advanceProbeBW(now time.Time) {
	if now.Sub(c.phaseEnteredAt) >= ProbeRTTInterval {
		c.enterPhase(PhaseProbeRTT, now)
		return
	}
	cycleLen := time.Duration(len(probeBWGainCycle)) * c.rtt.Min()
	if cycleLen <= 0 {
		return
	}
	elapsed := now.Sub(c.cycleStartedAt)
	idx := int(elapsed * time.Duration(len(probeBWGainCycle)) / cycleLen)
	if idx >= len(probeBWGainCycle) {
		idx = 0
		c.cycleStartedAt = now
	}
	c.cycleIndex = idx
}

func (c *Controller) advanceProbeRTT(now time.Time) {
	if now.Sub(c.phaseEnteredAt) >= ProbeRTTDuration {
		c.enterPhase(PhaseProbeBW, now)
	}
}

func (c *Controller) enterPhase(p Phase, now time.Time) {
	c.phase = p
	c.phaseEnteredAt = now
	if p == PhaseProbeBW {
		c.cycleIndex = 0
		c.cycleStartedAt = now
	}
	if p == PhaseStartup {
		c.plateauRounds = 0
		c.lastMaxBw = 0
	}
}

// gain returns the current pacing gain for the active phase/sub-phase.
func (c *Controller) gain(now time.Time) float64 {
	switch c.phase {
	case PhaseStartup:
		return StartupGain
	case PhaseDrain:
		return DrainGain
	case PhaseProbeRTT:
		return DrainGain
	case PhaseProbeBW:
		g := probeBWGainCycle[c.cycleIndex]
		if g > 1.0 && c.token != nil && !c.token.HoldsToken(c.tokenSlot, now) {
			// Lost (or never held) the cross-path probe token: cruise
			// instead of probing up so only one path inflates the
			// shared bottleneck at a time.
			return 1.0
		}
		return g
	default:
		return 1.0
	}
}

// PacingRateBps returns the pacing rate the scheduler should drain this
// path's queue at.
func (c *Controller) PacingRateBps() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	bw := c.bw.Max(c.round)
	if c.radio != nil {
		if ceiling, defensive := c.radio.Ceiling(); ceiling > 0 {
			if bw > ceiling || bw == 0 {
				bw = ceiling
			}
			if defensive {
				return bw * DrainGain
			}
		}
	}
	return bw * c.gain(time.Now())
}

// BottleneckBw returns the windowed max delivery-rate estimate in bps.
func (c *Controller) BottleneckBw() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bw.Max(c.round)
}

// MinRTT returns the windowed min RTT estimate.
func (c *Controller) MinRTT() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rtt.Min()
}

// Phase returns the controller's current phase as a string, for
// telemetry.
func (c *Controller) Phase() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase.String()
}
