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

package fec

import (
	"fmt"
	"math"
	"time"

	"github.com/Knetic/govaluate"
)

// RecomputeInterval is how often the adaptive repair ratio is
// recomputed.
const RecomputeInterval = 100 * time.Millisecond

// Default cost-weighting constants. Defaults emphasize loss over
// bandwidth: Alpha > Gamma > Beta.
const (
	DefaultAlpha = 6.0
	DefaultBeta  = 1.0
	DefaultGamma = 2.0

	DefaultRMin = 0.01
	DefaultRMax = 0.5

	rateSearchStep = 0.01
)

// DefaultCostFormula mirrors the spec's
// alpha*P_unrecoverable(r) + beta*overhead(r) + gamma*latency(r), with
// P_unrecoverable approximated as the probability that losses within a
// window of w exceed the r*w repair budget under a binomial loss model,
// overhead as the repair ratio itself, and latency as proportional to
// the number of repair symbols needed before decode can trigger.
const DefaultCostFormula = "alpha*punrecoverable(r, lossRate, w) + beta*overhead(r) + gamma*latency(r, w)"

// RateModel picks the per-path repair ratio r in [RMin, RMax] that
// minimizes an operator-configurable cost formula, evaluated with
// govaluate the same way the teacher's M/W/Drift clock formulas are
// (see fbclock/daemon's Math type).
type RateModel struct {
	Alpha, Beta, Gamma float64
	RMin, RMax         float64
	Formula            string

	expr *govaluate.EvaluableExpression
}

// NewRateModel builds a RateModel with the given formula (DefaultCostFormula
// if empty) and compiles it once up front.
func NewRateModel(formula string) (*RateModel, error) {
	if formula == "" {
		formula = DefaultCostFormula
	}
	m := &RateModel{
		Alpha: DefaultAlpha, Beta: DefaultBeta, Gamma: DefaultGamma,
		RMin: DefaultRMin, RMax: DefaultRMax,
		Formula: formula,
	}
	expr, err := govaluate.NewEvaluableExpressionWithFunctions(formula, rateFunctions)
	if err != nil {
		return nil, fmt.Errorf("fec: compiling rate formula: %w", err)
	}
	m.expr = expr
	return m, nil
}

var rateFunctions = map[string]govaluate.ExpressionFunction{
	"punrecoverable": func(args ...interface{}) (interface{}, error) {
		r := args[0].(float64)
		lossRate := args[1].(float64)
		w := args[2].(float64)
		return binomialTailExceeds(w, lossRate, r*w), nil
	},
	"overhead": func(args ...interface{}) (interface{}, error) {
		return args[0].(float64), nil
	},
	"latency": func(args ...interface{}) (interface{}, error) {
		r := args[0].(float64)
		w := args[1].(float64)
		if r <= 0 {
			r = 0.001
		}
		return w / (r * w), nil
	},
}

// binomialTailExceeds approximates P(X > budget) for X ~ Binomial(n, p)
// using a normal approximation, which is accurate enough at the window
// sizes (tens of packets) this model operates over and avoids an
// exact combinatorial sum on the hot recomputation path.
func binomialTailExceeds(n, p, budget float64) float64 {
	if p <= 0 {
		return 0
	}
	if p >= 1 {
		return 1
	}
	mean := n * p
	stdev := math.Sqrt(n * p * (1 - p))
	if stdev == 0 {
		if mean > budget {
			return 1
		}
		return 0
	}
	z := (budget - mean) / stdev
	return 0.5 * math.Erfc(z/math.Sqrt2)
}

// Recommend evaluates the cost formula at a discretized grid of r values
// in [RMin, RMax] and returns the minimizer.
func (m *RateModel) Recommend(lossRate float64, w int) (float64, error) {
	best := m.RMin
	bestCost := math.Inf(1)
	for r := m.RMin; r <= m.RMax+1e-9; r += rateSearchStep {
		params := map[string]interface{}{
			"r":        r,
			"lossRate": lossRate,
			"w":        float64(w),
			"alpha":    m.Alpha,
			"beta":     m.Beta,
			"gamma":    m.Gamma,
		}
		v, err := m.expr.Evaluate(params)
		if err != nil {
			return 0, fmt.Errorf("fec: evaluating rate formula: %w", err)
		}
		cost, ok := v.(float64)
		if !ok {
			return 0, fmt.Errorf("fec: rate formula did not return a number")
		}
		if cost < bestCost {
			bestCost = cost
			best = r
		}
	}
	return best, nil
}
