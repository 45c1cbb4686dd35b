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

func newTestSenderReliability(t *testing.T) *SenderReliability {
	t.Helper()
	s, err := NewSenderReliability(8, 1200, time.Second)
	require.NoError(t, err)
	return s
}

func TestSenderReliabilityStreamsRepairAtApproxRatio(t *testing.T) {
	s := newTestSenderReliability(t)
	s.currentR = 0.5

	var total int
	for i := uint64(0); i < 8; i++ {
		s.ObserveSource(i, []byte("payload"))
		out := s.StreamRepair(i)
		total += len(out)
	}
	require.InDelta(t, 4, total, 1)
}

func TestSenderReliabilityOnNACKNeverRetransmitsGeneratesFreshSymbols(t *testing.T) {
	s := newTestSenderReliability(t)
	for i := uint64(0); i < 8; i++ {
		s.ObserveSource(i, []byte("payload"))
	}
	g := s.generationFor(0)
	before := g.NextSymbolIndex()

	out := s.OnNACK(g.ID, 3)
	require.Len(t, out, 3)
	require.Equal(t, before+3, g.NextSymbolIndex())
	for _, r := range out {
		require.NotEmpty(t, r.Symbol)
	}
}

func TestSenderReliabilityOnNACKUnknownGenerationIsNoop(t *testing.T) {
	s := newTestSenderReliability(t)
	out := s.OnNACK(9999, 2)
	require.Nil(t, out)
}

func TestSenderReliabilityRecalculateThrottled(t *testing.T) {
	s := newTestSenderReliability(t)
	now := time.Now()
	require.NoError(t, s.Recalculate(0.1, now))
	r1 := s.CurrentRatio()

	require.NoError(t, s.Recalculate(0.9, now.Add(time.Millisecond)))
	require.Equal(t, r1, s.CurrentRatio(), "second call within the recompute interval must be a no-op")
}

func TestSenderReliabilityReleaseAgedEvictsOldGenerations(t *testing.T) {
	s := newTestSenderReliability(t)
	s.horizon = 10 * time.Millisecond
	s.ObserveSource(0, []byte("payload"))
	require.Equal(t, 1, len(s.generations))

	time.Sleep(20 * time.Millisecond)
	released := s.ReleaseAged()
	require.Equal(t, 1, released)
	require.Empty(t, s.generations)
}
