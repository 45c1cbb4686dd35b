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

	"github.com/bondwire/bond/fec"
)

const testSymbolLen = 8

func TestBufferReleasesInOrderWithNoGaps(t *testing.T) {
	b := NewBuffer(DefaultCapacity, 4, testSymbolLen)
	now := time.Unix(1700000000, 0)

	for seq := uint64(0); seq < 3; seq++ {
		dup := b.Insert(seq, []byte{byte(seq), 1, 2, 3, 4, 5, 6, 7}, now, now.Add(20*time.Millisecond))
		require.False(t, dup)
	}

	released, nacks := b.ReleaseReady(now)
	require.Len(t, released, 3)
	require.Empty(t, nacks)
	require.Equal(t, uint64(3), b.NextExpected())
}

func TestBufferDuplicateInsertIsCountedAndIgnored(t *testing.T) {
	b := NewBuffer(DefaultCapacity, 4, testSymbolLen)
	now := time.Unix(1700000000, 0)

	first := []byte{1, 1, 1, 1, 1, 1, 1, 1}
	second := []byte{2, 2, 2, 2, 2, 2, 2, 2}
	require.False(t, b.Insert(0, first, now, now.Add(time.Millisecond)))
	require.True(t, b.Insert(0, second, now, now.Add(time.Millisecond)))
	require.EqualValues(t, 1, b.DuplicateCount)

	released, _ := b.ReleaseReady(now.Add(2 * time.Millisecond))
	require.Equal(t, [][]byte{first}, released)
}

// TestBufferGapGetsDeadlineFromLaterArrival is the regression test for
// the stall bug: sequence 1 never arrives, but sequence 2's arrival
// must still stamp a deadline for it so ReleaseReady can eventually
// judge it late (or repairable) instead of blocking next_expected
// forever.
func TestBufferGapGetsDeadlineFromLaterArrival(t *testing.T) {
	b := NewBuffer(DefaultCapacity, 8, testSymbolLen)
	now := time.Unix(1700000000, 0)

	require.False(t, b.Insert(0, []byte{0, 0, 0, 0, 0, 0, 0, 0}, now, now.Add(20*time.Millisecond)))
	// seq 1 is lost: never Insert'd.
	laterArrival := now.Add(5 * time.Millisecond)
	laterDeadline := laterArrival.Add(20 * time.Millisecond)
	require.False(t, b.Insert(2, []byte{2, 2, 2, 2, 2, 2, 2, 2}, laterArrival, laterDeadline))

	// Before seq 1's stamped deadline, ReleaseReady should only release seq 0.
	released, nacks := b.ReleaseReady(now.Add(10 * time.Millisecond))
	require.Equal(t, [][]byte{{0, 0, 0, 0, 0, 0, 0, 0}}, released)
	require.Empty(t, nacks)
	require.Equal(t, uint64(1), b.NextExpected())

	// Past the deadline stamped for seq 1 (derived from seq 2's
	// arrival), the gap must resolve: with no repair symbols the coding
	// window can't decode, so expect a NACK trigger and a late drop past
	// seq 1, releasing seq 2 next. Before the fix this deadline was
	// never set and ReleaseReady would loop here forever.
	released, nacks = b.ReleaseReady(laterDeadline.Add(time.Millisecond))
	require.Equal(t, [][]byte{{2, 2, 2, 2, 2, 2, 2, 2}}, released)
	require.Len(t, nacks, 1)
	require.Equal(t, uint64(1), nacks[0].Start)
	require.EqualValues(t, 1, b.LateCount)
	require.Equal(t, uint64(3), b.NextExpected())
}

// TestBufferRecoversRepairableGapViaDecode exercises the erasure-decode
// trigger: a generation missing one source but holding a repair symbol
// covering the whole window should be fully recovered by ReleaseReady
// without ever counting a late drop or emitting a NACK.
func TestBufferRecoversRepairableGapViaDecode(t *testing.T) {
	const w = 4
	b := NewBuffer(DefaultCapacity, w, testSymbolLen)
	now := time.Unix(1700000000, 0)

	sources := make([][]byte, w)
	for i := range sources {
		sources[i] = []byte{byte(10 + i), 1, 2, 3, 4, 5, 6, byte(i)}
	}
	genID := fec.GenerationID(0)
	repairSymbol := fec.EncodeSymbol(genID, 0, sources, testSymbolLen)

	// seq 0, 2, 3 arrive; seq 1 is lost.
	require.False(t, b.Insert(0, sources[0], now, now.Add(20*time.Millisecond)))
	laterArrival := now.Add(2 * time.Millisecond)
	laterDeadline := laterArrival.Add(20 * time.Millisecond)
	require.False(t, b.Insert(2, sources[2], laterArrival, laterDeadline))
	require.False(t, b.Insert(3, sources[3], laterArrival, laterDeadline))
	b.ObserveRepair(genID, 0, repairSymbol)

	released, nacks := b.ReleaseReady(laterDeadline.Add(time.Millisecond))
	require.Empty(t, nacks)
	require.EqualValues(t, 0, b.LateCount)
	require.Equal(t, sources, released)
	require.Equal(t, uint64(4), b.NextExpected())
}

func TestBufferDetectsSenderRestart(t *testing.T) {
	b := NewBuffer(256, 4, testSymbolLen)
	now := time.Unix(1700000000, 0)

	for seq := uint64(0); seq < 200; seq++ {
		b.Insert(seq, []byte{byte(seq), 0, 0, 0, 0, 0, 0, 0}, now, now.Add(20*time.Millisecond))
	}
	b.ReleaseReady(now)
	require.Equal(t, uint64(200), b.NextExpected())

	// A sequence far below next_expected, beyond ordinary reordering
	// range, signals the sender restarted rather than a stray late packet.
	dup := b.Insert(0, []byte{9, 9, 9, 9, 9, 9, 9, 9}, now, now.Add(20*time.Millisecond))
	require.False(t, dup)
	require.EqualValues(t, 1, b.RestartCount)
	require.Equal(t, uint64(0), b.NextExpected())
}
