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

import "sync/atomic"

// slot is the pool-owned backing storage for one buffer. Handles never
// hold the slice directly; they hold a *slot so Release can be cheap and
// shared even though the buffer can be resliced by a holder.
type slot struct {
	buf    []byte
	pool   *Pool
	refs   int32
	index  int
}

// Handle is a cheap-to-copy owning reference into a pool-allocated
// buffer. The underlying storage returns to the pool when the last
// Handle sharing it is released. The zero Handle is not valid; obtain
// one from Pool.Acquire.
type Handle struct {
	s *slot
}

// Bytes returns the full-capacity backing buffer. Callers reslice it
// (e.g. buf[:n]) to the length they actually used.
func (h Handle) Bytes() []byte {
	if h.s == nil {
		return nil
	}
	return h.s.buf
}

// Valid reports whether h refers to a live slot.
func (h Handle) Valid() bool {
	return h.s != nil
}

// Share increments the reference count and returns a new Handle aliasing
// the same storage. Use this whenever a buffer is handed to a second
// owner (e.g. broadcasting one packet across several paths) instead of
// copying the bytes.
func (h Handle) Share() Handle {
	if h.s == nil {
		return Handle{}
	}
	atomic.AddInt32(&h.s.refs, 1)
	return Handle{s: h.s}
}

// Release relinquishes this reference. Once the last reference is
// released the buffer is returned to its pool for reuse. Calling
// Release more than once per acquired/shared reference is a programmer
// error and will under-count; callers must release exactly once per
// Handle value they hold.
func (h Handle) Release() {
	if h.s == nil {
		return
	}
	if atomic.AddInt32(&h.s.refs, -1) == 0 {
		h.s.pool.put(h.s)
	}
}
