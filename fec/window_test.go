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
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerationAddSourceAndComplete(t *testing.T) {
	g := NewGeneration(GenerationID(100), 100, 4, 8)
	require.False(t, g.Complete())
	for i := 0; i < 4; i++ {
		off, ok := g.SequenceOffset(uint64(100 + i))
		require.True(t, ok)
		g.AddSource(off, make([]byte, 8))
	}
	require.True(t, g.Complete())

	_, ok := g.SequenceOffset(99)
	require.False(t, ok)
	_, ok = g.SequenceOffset(104)
	require.False(t, ok)
}

func TestGenerationEmitRepairAdvancesIndex(t *testing.T) {
	g := NewGeneration(1, 0, 2, 4)
	g.AddSource(0, []byte{1, 2, 3, 4})
	g.AddSource(1, []byte{5, 6, 7, 8})

	idx0, _ := g.EmitRepair()
	idx1, _ := g.EmitRepair()
	require.Equal(t, uint8(0), idx0)
	require.Equal(t, uint8(1), idx1)
}

func TestGenerationRelease(t *testing.T) {
	g := NewGeneration(1, 0, 2, 4)
	require.False(t, g.Released())
	g.Release()
	require.True(t, g.Released())
	require.False(t, g.Complete())
}
