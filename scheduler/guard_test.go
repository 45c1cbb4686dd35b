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
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPredictedArrivalAccountsForQueueingDelay(t *testing.T) {
	now := time.Now()
	noQueue := PredictedArrival(now, 10*time.Millisecond, 0, 1_000_000, 1000)
	withQueue := PredictedArrival(now, 10*time.Millisecond, 100_000, 1_000_000, 1000)
	require.True(t, withQueue.After(noQueue))
}

func TestPredictedArrivalZeroRateSkipsQueueing(t *testing.T) {
	now := time.Now()
	arrival := PredictedArrival(now, 10*time.Millisecond, 100_000, 0, 1000)
	require.Equal(t, now.Add(10*time.Millisecond), arrival)
}

func TestInOrderGuard(t *testing.T) {
	now := time.Now()
	require.True(t, InOrderGuard(now, now.Add(-time.Millisecond)))
	require.False(t, InOrderGuard(now, now.Add(time.Millisecond)))
}

func TestBlockingGuard(t *testing.T) {
	now := time.Now()
	fastest := now
	require.False(t, BlockingGuard(now.Add(30*time.Millisecond), fastest, 0))
	require.True(t, BlockingGuard(now.Add(60*time.Millisecond), fastest, 0))
}
