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

import "fmt"

// Piece is one fragment of a source unit, ready to be wrapped in a
// Header and sent as its own packet.
type Piece struct {
	Marker  Fragment
	Payload []byte
}

// Fragmenter splits source units larger than MaxPayload into
// (start, middle..., end) pieces sharing contiguous sequences. A unit
// that fits within MaxPayload emits a single FragmentComplete piece.
type Fragmenter struct {
	MaxPayload int
}

// Split divides unit into wire-ready pieces. It never allocates more
// than len(unit)/MaxPayload+1 slice headers; piece payloads alias unit.
func (f *Fragmenter) Split(unit []byte) ([]Piece, error) {
	if f.MaxPayload <= 0 {
		return nil, fmt.Errorf("wire: fragmenter MaxPayload must be positive")
	}
	if len(unit) == 0 {
		return nil, nil
	}
	if len(unit) <= f.MaxPayload {
		return []Piece{{Marker: FragmentComplete, Payload: unit}}, nil
	}

	n := (len(unit) + f.MaxPayload - 1) / f.MaxPayload
	pieces := make([]Piece, 0, n)
	for i := 0; i < len(unit); i += f.MaxPayload {
		end := i + f.MaxPayload
		if end > len(unit) {
			end = len(unit)
		}
		var marker Fragment
		switch {
		case i == 0:
			marker = FragmentStart
		case end == len(unit):
			marker = FragmentEnd
		default:
			marker = FragmentMiddle
		}
		pieces = append(pieces, Piece{Marker: marker, Payload: unit[i:end]})
	}
	return pieces, nil
}

// Reassembler accumulates fragments sharing a contiguous sequence range
// and yields the reassembled source unit once the terminating FragmentEnd
// (or a lone FragmentComplete) arrives. It assumes the caller feeds
// fragments to it in sequence order; out-of-order delivery is resolved
// upstream by the aggregator before reaching a Reassembler.
type Reassembler struct {
	buf     []byte
	started bool
}

// Reset discards any partially accumulated unit. Called when a gap makes
// the in-progress fragment run unrecoverable.
func (r *Reassembler) Reset() {
	r.buf = r.buf[:0]
	r.started = false
}

// Feed appends one fragment. It returns the reassembled unit and true
// once a terminating fragment completes a run; otherwise it returns
// (nil, false). An unexpected marker sequence (e.g. Middle/End without a
// preceding Start) resets internal state and returns an error.
func (r *Reassembler) Feed(marker Fragment, payload []byte) ([]byte, bool, error) {
	switch marker {
	case FragmentComplete:
		if r.started {
			r.Reset()
			return nil, false, fmt.Errorf("wire: complete fragment while a run was in progress")
		}
		return payload, true, nil
	case FragmentStart:
		if r.started {
			r.Reset()
		}
		r.buf = append(r.buf[:0], payload...)
		r.started = true
		return nil, false, nil
	case FragmentMiddle:
		if !r.started {
			return nil, false, fmt.Errorf("wire: middle fragment without a preceding start")
		}
		r.buf = append(r.buf, payload...)
		return nil, false, nil
	case FragmentEnd:
		if !r.started {
			return nil, false, fmt.Errorf("wire: end fragment without a preceding start")
		}
		r.buf = append(r.buf, payload...)
		out := r.buf
		r.buf = nil
		r.started = false
		return out, true, nil
	default:
		return nil, false, fmt.Errorf("wire: unknown fragment marker %d", marker)
	}
}
