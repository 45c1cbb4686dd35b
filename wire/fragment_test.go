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

package wire

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFragmenterSmallUnit(t *testing.T) {
	f := &Fragmenter{MaxPayload: 100}
	pieces, err := f.Split([]byte("short"))
	require.NoError(t, err)
	require.Len(t, pieces, 1)
	require.Equal(t, FragmentComplete, pieces[0].Marker)
}

func TestFragmenterSplitsAndReassembles(t *testing.T) {
	unit := bytes.Repeat([]byte("x"), 1000)
	f := &Fragmenter{MaxPayload: 128}
	pieces, err := f.Split(unit)
	require.NoError(t, err)
	require.Greater(t, len(pieces), 1)
	require.Equal(t, FragmentStart, pieces[0].Marker)
	require.Equal(t, FragmentEnd, pieces[len(pieces)-1].Marker)

	var r Reassembler
	var out []byte
	for _, p := range pieces {
		u, done, err := r.Feed(p.Marker, p.Payload)
		require.NoError(t, err)
		if done {
			out = u
		}
	}
	require.Equal(t, unit, out)
}

func TestFragmenterEmptyUnit(t *testing.T) {
	f := &Fragmenter{MaxPayload: 10}
	pieces, err := f.Split(nil)
	require.NoError(t, err)
	require.Nil(t, pieces)
}

func TestReassemblerRejectsOutOfOrderMarkers(t *testing.T) {
	var r Reassembler
	_, _, err := r.Feed(FragmentMiddle, []byte("x"))
	require.Error(t, err)

	_, _, err = r.Feed(FragmentEnd, []byte("x"))
	require.Error(t, err)
}

func TestReassemblerResetsOnUnexpectedStart(t *testing.T) {
	var r Reassembler
	_, _, err := r.Feed(FragmentStart, []byte("a"))
	require.NoError(t, err)
	_, _, err = r.Feed(FragmentStart, []byte("b"))
	require.NoError(t, err)
	out, done, err := r.Feed(FragmentEnd, []byte("c"))
	require.NoError(t, err)
	require.True(t, done)
	require.Equal(t, []byte("bc"), out)
}
