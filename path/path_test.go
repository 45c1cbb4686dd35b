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
	"net"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewPathStartsAliveWithUnitWeight(t *testing.T) {
	local := &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 5000}
	remote := &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 5001}

	p := NewPath(1, local, remote)
	require.Equal(t, ID(1), p.ID)
	require.True(t, p.Alive())
	require.Equal(t, 1.0, p.Weight())
	require.Equal(t, StateInit, p.Lifecycle.State())
}

func TestPathWeightRoundTrip(t *testing.T) {
	p := NewPath(2, nil, nil)
	p.SetWeight(0.25)
	require.Equal(t, 0.25, p.Weight())

	p.SetWeight(3.5)
	require.Equal(t, 3.5, p.Weight())
}

func TestPathAliveFollowsLifecycle(t *testing.T) {
	p := NewPath(3, nil, nil)
	require.True(t, p.Alive())

	require.NoError(t, p.Lifecycle.Transition(StateDead))
	require.False(t, p.Alive())
}
