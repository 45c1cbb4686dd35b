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
	"github.com/bondwire/bond/path"
)

// creditEntry is one path's deficit weighted round robin bookkeeping.
type creditEntry struct {
	id          path.ID
	credit      float64
	weight      float64 // proportional to estimated bottleneck bandwidth
	smoothedRTT int64   // nanoseconds, for tie-breaking only
}

// DWRR is a deficit weighted fair queue over a fixed set of paths: each
// holds a credit bucket replenished proportional to its weight, debited
// by bytes sent.
type DWRR struct {
	entries map[path.ID]*creditEntry
	order   []path.ID
}

// NewDWRR returns an empty DWRR.
func NewDWRR() *DWRR {
	return &DWRR{entries: make(map[path.ID]*creditEntry)}
}

// SetWeight registers or updates a path's weight (proportional to its
// estimated bottleneck bandwidth) and smoothed RTT (used only to break
// equal-credit ties).
func (d *DWRR) SetWeight(id path.ID, weight float64, smoothedRTTNs int64) {
	e, ok := d.entries[id]
	if !ok {
		e = &creditEntry{id: id}
		d.entries[id] = e
		d.order = append(d.order, id)
	}
	e.weight = weight
	e.smoothedRTT = smoothedRTTNs
}

// Remove drops a path from the queue (e.g. it went dead).
func (d *DWRR) Remove(id path.ID) {
	delete(d.entries, id)
	kept := d.order[:0]
	for _, existing := range d.order {
		if existing != id {
			kept = append(kept, existing)
		}
	}
	d.order = kept
}

// Replenish adds weight*quantum credit to every registered path.
func (d *DWRR) Replenish(quantum float64) {
	for _, e := range d.entries {
		e.credit += e.weight * quantum
	}
}

// Select picks the path among candidates with the highest credit,
// ties broken by lower smoothed RTT then lower id, and debits its
// credit by size. If no candidate has sufficient credit, the
// highest-credit one is still chosen (to guarantee progress) and
// starved is reported true.
func (d *DWRR) Select(candidates []path.ID, size int) (chosen path.ID, starved bool, ok bool) {
	var best *creditEntry
	for _, id := range candidates {
		e, exists := d.entries[id]
		if !exists {
			continue
		}
		if best == nil || better(e, best) {
			best = e
		}
	}
	if best == nil {
		return 0, false, false
	}
	starved = best.credit < float64(size)
	best.credit -= float64(size)
	return best.id, starved, true
}

// better reports whether a should be preferred over b: higher credit,
// then lower smoothed RTT, then lower id.
func better(a, b *creditEntry) bool {
	if a.credit != b.credit {
		return a.credit > b.credit
	}
	if a.smoothedRTT != b.smoothedRTT {
		return a.smoothedRTT < b.smoothedRTT
	}
	return a.id < b.id
}
