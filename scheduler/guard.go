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

// DefaultBlockingThreshold is the default head-of-line-extension
// threshold past which a candidate path is skipped for a unit.
const DefaultBlockingThreshold = 50 * time.Millisecond

// PredictedArrival estimates when a unit enqueued now would arrive at
// the receiver on a path with the given one-way delay (half the
// smoothed RTT), current queue depth in bytes, pacing rate, and the
// unit's own size: queueing delay plus propagation delay.
func PredictedArrival(now time.Time, oneWayDelay time.Duration, queueBytes int, pacingRateBps float64, unitSize int) time.Time {
	if pacingRateBps <= 0 {
		// No rate estimate yet; treat the path as having no queueing
		// delay rather than dividing by zero or blocking forever.
		return now.Add(oneWayDelay)
	}
	drainSeconds := float64(queueBytes+unitSize) * 8 / pacingRateBps
	return now.Add(oneWayDelay).Add(time.Duration(drainSeconds * float64(time.Second)))
}

// InOrderGuard reports whether candidate may be assigned the next unit
// given the predicted arrival time of the last-assigned unit: accepted
// only if candidate's predicted arrival is not earlier.
func InOrderGuard(candidateArrival, lastAssignedArrival time.Time) bool {
	return !candidateArrival.Before(lastAssignedArrival)
}

// BlockingGuard reports whether candidate would extend head-of-line
// arrival by more than threshold relative to the fastest alive path,
// and so should be skipped.
func BlockingGuard(candidateArrival, fastestArrival time.Time, threshold time.Duration) bool {
	if threshold <= 0 {
		threshold = DefaultBlockingThreshold
	}
	return candidateArrival.Sub(fastestArrival) > threshold
}
