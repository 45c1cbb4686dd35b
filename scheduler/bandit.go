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
	"math"
	"math/rand"
)

// DefaultBanditDecay halves the weight of past outcomes roughly every
// 34 observations (0.98^34 ≈ 0.5), so a path's bandit priors
// track its recent behavior instead of its entire history.
const DefaultBanditDecay = 0.98

// BetaBandit holds one path's Beta(alpha, beta) success/failure counts
// for Thompson sampling link preference. Counts decay on every
// observation so older outcomes stop dominating, per the spec's
// "priors decay on a sliding window" requirement.
type BetaBandit struct {
	alpha, beta float64
	decay       float64
	rng         *rand.Rand
}

// NewBetaBandit returns a bandit with a uniform Beta(1,1) prior.
func NewBetaBandit(seed int64) *BetaBandit {
	return &BetaBandit{
		alpha: 1,
		beta:  1,
		decay: DefaultBanditDecay,
		rng:   rand.New(rand.NewSource(seed)),
	}
}

// Observe folds in one outcome: success true increments alpha, false
// increments beta, after decaying both counts toward the uniform prior.
func (b *BetaBandit) Observe(success bool) {
	b.alpha = 1 + (b.alpha-1)*b.decay
	b.beta = 1 + (b.beta-1)*b.decay
	if success {
		b.alpha++
	} else {
		b.beta++
	}
}

// Draw samples a value from the bandit's current Beta(alpha, beta)
// posterior, implemented via the ratio of two Gamma-distributed draws
// (X/(X+Y) ~ Beta(a,b) when X~Gamma(a,1), Y~Gamma(b,1)) since the
// standard library's math/rand offers no Beta distribution directly.
func (b *BetaBandit) Draw() float64 {
	x := sampleGamma(b.rng, b.alpha)
	y := sampleGamma(b.rng, b.beta)
	if x+y == 0 {
		return 0.5
	}
	return x / (x + y)
}

// sampleGamma draws from Gamma(shape, 1) using the Marsaglia-Tsang
// method, boosting shapes below 1 by one (Gamma(a+1,1) * U^(1/a) ~
// Gamma(a,1)) since the method itself requires shape >= 1.
func sampleGamma(rng *rand.Rand, shape float64) float64 {
	if shape <= 0 {
		return 0
	}
	if shape < 1 {
		u := rng.Float64()
		return sampleGamma(rng, shape+1) * math.Pow(u, 1/shape)
	}
	d := shape - 1.0/3.0
	c := 1.0 / math.Sqrt(9*d)
	for {
		var x, v float64
		for {
			x = rng.NormFloat64()
			v = 1 + c*x
			if v > 0 {
				break
			}
		}
		v = v * v * v
		u := rng.Float64()
		if u < 1-0.0331*x*x*x*x {
			return d * v
		}
		if math.Log(u) < 0.5*x*x+d*(1-v+math.Log(v)) {
			return d * v
		}
	}
}
