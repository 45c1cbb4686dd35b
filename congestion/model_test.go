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

func TestBwWindowMaxWithinWindow(t *testing.T) {
	w := newBwWindow(4)
	w.Add(100, 1)
	w.Add(500, 2)
	w.Add(200, 3)
	require.Equal(t, 500.0, w.Max(3))
}

func TestBwWindowMaxAgesOutOldSamples(t *testing.T) {
	w := newBwWindow(2)
	w.Add(1000, 1)
	w.Add(100, 2)
	w.Add(200, 3)
	require.Equal(t, 200.0, w.Max(3), "sample from round 1 is outside a 2-round window at round 3")
}

func TestRttWindowMinTracksSmallestRecentSample(t *testing.T) {
	w := newRttWindow(time.Second)
	now := time.Now()
	w.Add(50*time.Millisecond, now)
	w.Add(10*time.Millisecond, now.Add(100*time.Millisecond))
	w.Add(30*time.Millisecond, now.Add(200*time.Millisecond))
	require.Equal(t, 10*time.Millisecond, w.Min())
}

func TestRttWindowEvictsOldSamples(t *testing.T) {
	w := newRttWindow(100 * time.Millisecond)
	now := time.Now()
	w.Add(5*time.Millisecond, now)
	w.Add(50*time.Millisecond, now.Add(200*time.Millisecond))
	require.Equal(t, 50*time.Millisecond, w.Min(), "the 5ms sample should have aged out of the 100ms window")
}

func TestRttWindowMinEmptyIsZero(t *testing.T) {
	w := newRttWindow(time.Second)
	require.Equal(t, time.Duration(0), w.Min())
}
