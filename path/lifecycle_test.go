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

func TestLifecycleHappyPath(t *testing.T) {
	l := NewLifecycle()
	require.Equal(t, StateInit, l.State())

	require.NoError(t, l.Transition(StateProbe))
	require.Equal(t, StateProbe, l.State())
}

func TestLifecycleRejectsIllegalTransition(t *testing.T) {
	l := NewLifecycle()
	err := l.Transition(StateLive)
	require.Error(t, err)
	require.Equal(t, StateInit, l.State())
}

func TestLifecycleDwellMinimumEnforced(t *testing.T) {
	DwellMinimums[StateProbe] = 50 * time.Millisecond
	l := NewLifecycle()
	require.NoError(t, l.Transition(StateProbe))

	err := l.Transition(StateWarm)
	require.Error(t, err, "must not cross before dwell minimum elapses")

	time.Sleep(60 * time.Millisecond)
	require.NoError(t, l.Transition(StateWarm))
}

func TestLifecycleDeadIsTerminal(t *testing.T) {
	l := NewLifecycle()
	require.NoError(t, l.Transition(StateDead))
	require.Equal(t, StateDead, l.State())

	err := l.Transition(StateProbe)
	require.Error(t, err)
}

func TestLifecycleDeadReachableFromAnyState(t *testing.T) {
	for _, s := range []State{StateInit, StateProbe, StateWarm, StateLive, StateDegrade, StateCooldown} {
		l := NewLifecycle()
		l.state = s // test-only direct set to exercise every source state
		require.NoError(t, l.Transition(StateDead))
	}
}

func TestLifecycleNoTransitionFasterThanDwell(t *testing.T) {
	DwellMinimums[StateLive] = 100 * time.Millisecond
	l := NewLifecycle()
	l.state = StateLive
	l.enteredAt = time.Now()

	require.Error(t, l.Transition(StateDegrade))
	require.Equal(t, 0, l.TransitionCount())
}
