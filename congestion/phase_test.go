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

func TestTokenCoordinatorAtMostOneHolderAtATime(t *testing.T) {
	tok := NewTokenCoordinator(time.Minute)
	a := tok.Register()
	b := tok.Register()
	c := tok.Register()

	now := time.Now()
	holders := 0
	for _, slot := range []int{a, b, c} {
		if tok.HoldsToken(slot, now) {
			holders++
		}
	}
	require.Equal(t, 1, holders)
}

func TestTokenCoordinatorRotates(t *testing.T) {
	tok := NewTokenCoordinator(10 * time.Millisecond)
	a := tok.Register()
	b := tok.Register()

	now := time.Now()
	require.True(t, tok.HoldsToken(a, now))
	require.False(t, tok.HoldsToken(b, now))

	later := now.Add(20 * time.Millisecond)
	require.True(t, tok.HoldsToken(b, later))
	require.False(t, tok.HoldsToken(a, later))
}

func TestTokenCoordinatorNoPathsNeverHolds(t *testing.T) {
	tok := NewTokenCoordinator(time.Second)
	require.False(t, tok.HoldsToken(0, time.Now()))
}
