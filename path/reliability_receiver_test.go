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
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestShouldNackSuppressedPastDeadline(t *testing.T) {
	r := NewReceiverReliability()
	now := time.Now()
	leadingEdge := now.Add(-time.Second)
	deadline := now.Add(-time.Millisecond)

	require.False(t, r.ShouldNack(10, 4, leadingEdge, 10*time.Millisecond, deadline, now))
}

func TestShouldNackSuppressedBeforeLeadTimeElapses(t *testing.T) {
	r := NewReceiverReliability()
	now := time.Now()
	leadingEdge := now
	smoothedRTT := 100 * time.Millisecond

	require.False(t, r.ShouldNack(10, 4, leadingEdge, smoothedRTT, time.Time{}, now))
}

func TestShouldNackFiresAfterLeadTimeElapses(t *testing.T) {
	r := NewReceiverReliability()
	now := time.Now()
	smoothedRTT := 10 * time.Millisecond
	leadingEdge := now.Add(-time.Duration(float64(smoothedRTT) * (NackLeadTime + 1)))

	require.True(t, r.ShouldNack(10, 4, leadingEdge, smoothedRTT, time.Time{}, now))
}

func TestShouldNackSuppressedWithinReSendInterval(t *testing.T) {
	r := NewReceiverReliability()
	now := time.Now()
	smoothedRTT := 10 * time.Millisecond
	leadingEdge := now.Add(-time.Second)

	require.True(t, r.ShouldNack(10, 4, leadingEdge, smoothedRTT, time.Time{}, now))
	require.False(t, r.ShouldNack(10, 4, leadingEdge, smoothedRTT, time.Time{}, now.Add(time.Millisecond)))

	later := now.Add(r.suppressionInterval + time.Millisecond)
	require.True(t, r.ShouldNack(10, 4, leadingEdge, smoothedRTT, time.Time{}, later))
}

func TestForgetRangeClearsSuppressionState(t *testing.T) {
	r := NewReceiverReliability()
	now := time.Now()
	leadingEdge := now.Add(-time.Second)
	smoothedRTT := 10 * time.Millisecond

	require.True(t, r.ShouldNack(10, 4, leadingEdge, smoothedRTT, time.Time{}, now))
	r.ForgetRange(10, 4)
	require.True(t, r.ShouldNack(10, 4, leadingEdge, smoothedRTT, time.Time{}, now.Add(time.Millisecond)))
}

func TestAckTimedOut(t *testing.T) {
	r := NewReceiverReliability()
	now := time.Now()
	require.False(t, r.AckTimedOut(10*time.Millisecond, now), "no ACK observed yet means no timeout")

	r.ObserveAck(now)
	require.False(t, r.AckTimedOut(10*time.Millisecond, now.Add(5*time.Millisecond)))
	require.True(t, r.AckTimedOut(10*time.Millisecond, now.Add(100*time.Millisecond)))
}

func TestDecodeIrrecoverable(t *testing.T) {
	require.True(t, DecodeIrrecoverable(40, 32, 0))
	require.False(t, DecodeIrrecoverable(40, 32, 2), "symbols still in flight means not yet irrecoverable")
	require.False(t, DecodeIrrecoverable(20, 32, 0), "gap within window is recoverable")
}
