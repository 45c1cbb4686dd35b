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
)

func TestDegradationGateStartsNormal(t *testing.T) {
	g := NewDegradationGate()
	require.Equal(t, StageNormal, g.Stage())
	require.True(t, g.Admit(PriorityDisposable, false))
}

func TestDegradationGateStageThresholds(t *testing.T) {
	g := NewDegradationGate()

	g.Update(0.65)
	require.Equal(t, StageDropDisposable, g.Stage())
	require.False(t, g.Admit(PriorityDisposable, false))
	require.True(t, g.Admit(PriorityStandard, false))

	g.Update(0.85)
	require.Equal(t, StageKeyframeOnly, g.Stage())
	require.False(t, g.Admit(PriorityStandard, false))
	require.True(t, g.Admit(PriorityCritical, false))
	require.True(t, g.Admit(PriorityStandard, true), "keyframe references survive keyframe_only")

	g.Update(0.99)
	require.Equal(t, StageEmergency, g.Stage())
	require.False(t, g.Admit(PriorityStandard, true))
	require.True(t, g.Admit(PriorityCritical, false))
}

func TestDegradationGateClampsOutOfRangePressure(t *testing.T) {
	g := NewDegradationGate()
	g.Update(5.0)
	require.Equal(t, 1.0, g.Pressure())
	g.Update(-5.0)
	require.Equal(t, 0.0, g.Pressure())
}
