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

package aggregator

import "github.com/bondwire/bond/fec"

// CodingWindow tracks one generation's decode state on the receive
// side: the source slots seen so far and the repair symbols received
// for it, mirroring fec.Generation's sender-side bookkeeping but without
// the sender's emission counters.
type CodingWindow struct {
	GenID     uint16
	W         int
	SymbolLen int

	Sources       [][]byte // len W; nil until seen
	RepairIndexes []uint8
	RepairSymbols [][]byte

	Decoded bool
}

// NewCodingWindow begins tracking a receive-side coding window.
func NewCodingWindow(genID uint16, w, symbolLen int) *CodingWindow {
	return &CodingWindow{GenID: genID, W: w, SymbolLen: symbolLen, Sources: make([][]byte, w)}
}

// ObserveSource records a source packet at its in-window offset.
func (c *CodingWindow) ObserveSource(offset int, payload []byte) {
	if offset < 0 || offset >= c.W {
		return
	}
	c.Sources[offset] = payload
}

// ObserveRepair records a repair symbol.
func (c *CodingWindow) ObserveRepair(symbolIndex uint8, symbol []byte) {
	c.RepairIndexes = append(c.RepairIndexes, symbolIndex)
	c.RepairSymbols = append(c.RepairSymbols, symbol)
}

// MissingCount returns how many source slots are still unobserved.
func (c *CodingWindow) MissingCount() int {
	n := 0
	for _, s := range c.Sources {
		if s == nil {
			n++
		}
	}
	return n
}

// ReadyToDecode reports whether enough symbols (source + repair) are
// present to attempt a decode: at least W total, with at least one
// missing source (otherwise decode is a no-op, so the reassembly buffer
// should not even call this).
func (c *CodingWindow) ReadyToDecode() bool {
	missing := c.MissingCount()
	if missing == 0 {
		return false
	}
	present := c.W - missing + len(c.RepairSymbols)
	return present >= c.W
}

// Decode attempts to recover every missing source packet. On success it
// updates c.Sources in place and marks the window Decoded.
func (c *CodingWindow) Decode() bool {
	if c.Decoded {
		return true
	}
	out, ok := fec.Decode(c.GenID, c.W, c.SymbolLen, c.Sources, c.RepairIndexes, c.RepairSymbols)
	if !ok {
		return false
	}
	c.Sources = out
	c.Decoded = true
	return true
}
