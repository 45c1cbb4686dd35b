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
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPlayoutModelDeadlineGrowsWithJitter(t *testing.T) {
	m := NewPlayoutModel()
	now := time.Now()
	low := m.Deadline(now, 5*time.Millisecond, 0)
	high := m.Deadline(now, 50*time.Millisecond, 0)
	require.True(t, high.After(low))
}

func TestPlayoutModelLossPenaltyCapped(t *testing.T) {
	m := NewPlayoutModel()
	now := time.Now()
	atCap := m.Deadline(now, 0, 1.0)
	overCap := m.Deadline(now, 0, 5.0)
	require.Equal(t, atCap, overCap)
	require.Equal(t, now.Add(m.StartLatency).Add(m.MaxLossPenalty), atCap)
}
