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

import "sync/atomic"

// RadioHook is the optional external bandwidth ceiling a controller can
// be attached to via Controller.AttachRadio. It is written by a poller
// (package congestion/radio reads an attached modem over serial) and
// read on the controller's hot path, so both fields are plain atomics
// rather than behind a mutex.
type RadioHook struct {
	ceilingBps atomic.Uint64 // bits-per-second, 0 means "no reading yet"
	defensive  atomic.Bool
}

// Update records a new ceiling derived from signal/channel-quality
// readings, and whether the trend is deteriorating enough to warrant
// the defensive reduced-gain sub-phase.
func (h *RadioHook) Update(ceilingBps float64, defensive bool) {
	h.ceilingBps.Store(uint64(ceilingBps))
	h.defensive.Store(defensive)
}

// Ceiling returns the current bandwidth ceiling (0 if no reading has
// arrived yet) and whether the defensive sub-phase is active.
func (h *RadioHook) Ceiling() (float64, bool) {
	return float64(h.ceilingBps.Load()), h.defensive.Load()
}
