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
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestControllerStartsInStartup(t *testing.T) {
	c := New(nil)
	require.Equal(t, "startup", c.Phase())
}

func TestControllerBottleneckBwTracksDeliveredRate(t *testing.T) {
	c := New(nil)
	now := time.Now()
	// 125000 bytes in 100ms = 10 Mbps.
	c.OnAck(12500, 20*time.Millisecond, now)
	now = now.Add(100 * time.Millisecond)
	c.OnAck(125000, 20*time.Millisecond, now)

	require.InDelta(t, 10e6, c.BottleneckBw(), 1e6)
}

func TestControllerMinRTTTracksSmallestSample(t *testing.T) {
	c := New(nil)
	now := time.Now()
	c.OnAck(1000, 50*time.Millisecond, now)
	c.OnAck(1000, 10*time.Millisecond, now.Add(10*time.Millisecond))
	c.OnAck(1000, 30*time.Millisecond, now.Add(20*time.Millisecond))

	require.Equal(t, 10*time.Millisecond, c.MinRTT())
}

func TestControllerExitsStartupOnPlateau(t *testing.T) {
	c := New(nil)
	now := time.Now()

	// Ramp: each round roughly doubles the delivered rate.
	bytesPerRound := []uint64{1000, 2000, 4000, 8000}
	for _, b := range bytesPerRound {
		now = now.Add(10 * time.Millisecond)
		c.OnAck(b, 10*time.Millisecond, now)
	}
	require.Equal(t, "startup", c.Phase())

	// Plateau: delivered rate stops growing for StartupPlateauRounds.
	for i := 0; i < StartupPlateauRounds+1; i++ {
		now = now.Add(10 * time.Millisecond)
		c.OnAck(8000, 10*time.Millisecond, now)
	}
	require.NotEqual(t, "startup", c.Phase())
}

func TestControllerRadioHookClampsBandwidth(t *testing.T) {
	c := New(nil)
	hook := &RadioHook{}
	c.AttachRadio(hook)

	now := time.Now()
	c.OnAck(125000, 10*time.Millisecond, now)
	hook.Update(1e6, false)

	require.LessOrEqual(t, c.PacingRateBps(), 1e6*StartupGain+1)
}

func TestControllerPacingRateZeroBeforeAnyAck(t *testing.T) {
	c := New(nil)
	require.Equal(t, 0.0, c.PacingRateBps())
}
