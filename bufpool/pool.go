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
	"errors"
	"sync"

	"golang.org/x/sync/semaphore"
)

// ErrExhausted is returned by Acquire when every buffer is in flight or
// held in the retransmit store. Exhaustion is an observable, non-fatal
// condition: the scheduler backpressures its upstream producer rather
// than dropping anything from the pool itself.
var ErrExhausted = errors.New("bufpool: exhausted")

// DefaultCapacity is the default number of pre-allocated buffers,
// sized to cover the worst-case in-flight-plus-retransmit window.
const DefaultCapacity = 4096

// Pool is a fixed-size set of pre-allocated, MTU-sized buffers.
type Pool struct {
	bufSize int

	// sem gates the number of buffers in flight. It duplicates the
	// free-list length check below, but gives the scheduler a
	// non-blocking TryAcquire-shaped backpressure signal independent of
	// the pool's own lock, the same exhaustion/backpressure contract
	// SPEC_FULL.md calls for.
	sem *semaphore.Weighted

	mu    sync.Mutex
	free  []*slot
	slots []slot // backing storage, indexed by slot.index

	// acquires/exhaustions are best-effort counters for telemetry; they
	// are read via Stats and are not required to be perfectly precise
	// under contention.
	acquires    uint64
	exhaustions uint64
}

// New allocates a Pool of capacity buffers, each bufSize bytes.
func New(capacity, bufSize int) *Pool {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	p := &Pool{
		bufSize: bufSize,
		sem:     semaphore.NewWeighted(int64(capacity)),
		slots:   make([]slot, capacity),
		free:    make([]*slot, 0, capacity),
	}
	for i := range p.slots {
		s := &p.slots[i]
		s.buf = make([]byte, bufSize)
		s.pool = p
		s.index = i
		p.free = append(p.free, s)
	}
	return p
}

// Capacity returns the total number of buffers the pool was built with.
func (p *Pool) Capacity() int {
	return len(p.slots)
}

// BufSize returns the fixed size of every buffer in the pool.
func (p *Pool) BufSize() int {
	return p.bufSize
}

// Acquire takes ownership of one free buffer, or returns ErrExhausted if
// none are available. It never allocates.
func (p *Pool) Acquire() (Handle, error) {
	if !p.sem.TryAcquire(1) {
		p.mu.Lock()
		p.exhaustions++
		p.mu.Unlock()
		return Handle{}, ErrExhausted
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.acquires++
	n := len(p.free)
	if n == 0 {
		// sem and the free list must stay in lockstep; reaching here
		// means a slot leaked without releasing the semaphore.
		p.sem.Release(1)
		p.exhaustions++
		return Handle{}, ErrExhausted
	}
	s := p.free[n-1]
	p.free = p.free[:n-1]
	s.refs = 1
	return Handle{s: s}, nil
}

// InUse returns the number of buffers currently checked out.
func (p *Pool) InUse() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.slots) - len(p.free)
}

// Stats returns best-effort lifetime counters for telemetry.
func (p *Pool) Stats() (acquires, exhaustions uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.acquires, p.exhaustions
}

func (p *Pool) put(s *slot) {
	p.mu.Lock()
	p.free = append(p.free, s)
	p.mu.Unlock()
	p.sem.Release(1)
}
