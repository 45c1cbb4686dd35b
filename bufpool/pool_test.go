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

package bufpool

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAcquireReleaseRoundTrip(t *testing.T) {
	p := New(4, 128)
	require.Equal(t, 4, p.Capacity())

	h, err := p.Acquire()
	require.NoError(t, err)
	require.True(t, h.Valid())
	require.Len(t, h.Bytes(), 128)
	require.Equal(t, 1, p.InUse())

	h.Release()
	require.Equal(t, 0, p.InUse())
}

func TestAcquireExhaustion(t *testing.T) {
	p := New(2, 16)
	h1, err := p.Acquire()
	require.NoError(t, err)
	h2, err := p.Acquire()
	require.NoError(t, err)

	_, err = p.Acquire()
	require.ErrorIs(t, err, ErrExhausted)

	h1.Release()
	h3, err := p.Acquire()
	require.NoError(t, err)
	require.True(t, h3.Valid())

	h2.Release()
	h3.Release()

	_, exhaustions := p.Stats()
	require.Equal(t, uint64(1), exhaustions)
}

func TestShareReturnsOnLastRelease(t *testing.T) {
	p := New(1, 16)
	h, err := p.Acquire()
	require.NoError(t, err)

	shared := h.Share()
	h.Release()
	require.Equal(t, 1, p.InUse(), "buffer must stay checked out while a shared handle remains")

	shared.Release()
	require.Equal(t, 0, p.InUse())
}

func TestReleaseOfInvalidHandleIsNoop(t *testing.T) {
	var h Handle
	require.False(t, h.Valid())
	h.Release() // must not panic
}
