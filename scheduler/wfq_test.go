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

	"github.com/stretchr/testify/require"

	"github.com/bondwire/bond/path"
)

func TestDWRRSelectsHighestCredit(t *testing.T) {
	d := NewDWRR()
	d.SetWeight(1, 2.0, 100)
	d.SetWeight(2, 1.0, 100)
	d.Replenish(10)

	chosen, starved, ok := d.Select([]path.ID{1, 2}, 5)
	require.True(t, ok)
	require.False(t, starved)
	require.Equal(t, path.ID(1), chosen, "path 1 has double the weight and so more credit after replenish")
}

func TestDWRRTieBreaksByLowerRTTThenLowerID(t *testing.T) {
	d := NewDWRR()
	d.SetWeight(2, 1.0, 50)
	d.SetWeight(1, 1.0, 100)
	d.Replenish(10)

	chosen, _, ok := d.Select([]path.ID{1, 2}, 1)
	require.True(t, ok)
	require.Equal(t, path.ID(2), chosen, "equal credit breaks by lower smoothed RTT")
}

func TestDWRRReportsStarvation(t *testing.T) {
	d := NewDWRR()
	d.SetWeight(1, 1.0, 10)
	d.Replenish(1)

	_, starved, ok := d.Select([]path.ID{1}, 1000)
	require.True(t, ok)
	require.True(t, starved)
}

func TestDWRRSelectUnknownPathFails(t *testing.T) {
	d := NewDWRR()
	_, _, ok := d.Select([]path.ID{99}, 10)
	require.False(t, ok)
}

func TestDWRRRemove(t *testing.T) {
	d := NewDWRR()
	d.SetWeight(1, 1.0, 10)
	d.Remove(1)
	_, _, ok := d.Select([]path.ID{1}, 10)
	require.False(t, ok)
}
