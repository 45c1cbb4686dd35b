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

package fec

import "math/rand"

// Coefficients deterministically derives the W coding coefficients for
// repair symbol symbolIndex of generation genID, so the receiver can
// reconstruct them from the generation id and symbol index alone,
// without having seen the sender's random draws. No coefficient is
// ever zero, which keeps every repair symbol linearly relevant to every
// source column it covers.
func Coefficients(genID uint16, symbolIndex uint8, w int) []byte {
	seed := int64(genID)<<8 | int64(symbolIndex)
	rng := rand.New(rand.NewSource(seed))
	coeffs := make([]byte, w)
	for i := range coeffs {
		c := byte(rng.Intn(255)) + 1 // 1..255, never zero
		coeffs[i] = c
	}
	return coeffs
}

// EncodeSymbol produces one repair symbol: the GF(256) linear
// combination of the present source packets in window, using the
// coefficients for (genID, symbolIndex). All source packets must be the
// same length (symbolLen); shorter packets are treated as zero-padded.
func EncodeSymbol(genID uint16, symbolIndex uint8, sources [][]byte, symbolLen int) []byte {
	coeffs := Coefficients(genID, symbolIndex, len(sources))
	out := make([]byte, symbolLen)
	for i, src := range sources {
		if src == nil {
			continue
		}
		gfMulVecAccum(out, padded(src, symbolLen), coeffs[i])
	}
	return out
}

func padded(b []byte, n int) []byte {
	if len(b) >= n {
		return b[:n]
	}
	p := make([]byte, n)
	copy(p, b)
	return p
}

// equation is one row of the decode system: a coefficient per source
// column and the resulting value vector.
type equation struct {
	coeffs []byte
	value  []byte
}

// Decode attempts to recover every missing source packet in a window of
// size w given the present sources (nil entries are missing) and a set
// of repair symbols with their (genID, symbolIndex) identifiers. It
// returns the full set of w source packets (present ones echoed back
// unchanged) and true on success, or (nil, false) if the supplied
// symbols are not sufficient (fewer than w linearly independent
// equations).
func Decode(genID uint16, w, symbolLen int, sources [][]byte, repairSymbolIndexes []uint8, repairSymbols [][]byte) ([][]byte, bool) {
	eqs := make([]equation, 0, w)
	missing := map[int]bool{}

	for i, src := range sources {
		if src != nil {
			row := make([]byte, w)
			row[i] = 1
			eqs = append(eqs, equation{coeffs: row, value: padded(src, symbolLen)})
		} else {
			missing[i] = true
		}
	}
	if len(missing) == 0 {
		return sources, true
	}
	for i, idx := range repairSymbolIndexes {
		eqs = append(eqs, equation{coeffs: Coefficients(genID, idx, w), value: append([]byte(nil), repairSymbols[i]...)})
	}
	if len(eqs) < w {
		return nil, false
	}

	if !gaussJordan(eqs, w) {
		return nil, false
	}

	out := make([][]byte, w)
	copy(out, sources)
	for col := range missing {
		row := findPivotRow(eqs, col)
		if row < 0 {
			return nil, false
		}
		out[col] = eqs[row].value
	}
	return out, true
}

// gaussJordan reduces eqs (w columns) to reduced row-echelon form in
// place. It returns false if the system is rank-deficient (fewer than w
// independent equations among all the rows of eqs).
func gaussJordan(eqs []equation, w int) bool {
	rows := len(eqs)
	pivotRowOf := make([]int, w)
	for i := range pivotRowOf {
		pivotRowOf[i] = -1
	}

	r := 0
	for col := 0; col < w && r < rows; col++ {
		pivot := -1
		for i := r; i < rows; i++ {
			if eqs[i].coeffs[col] != 0 {
				pivot = i
				break
			}
		}
		if pivot == -1 {
			continue
		}
		eqs[r], eqs[pivot] = eqs[pivot], eqs[r]

		inv := gfInv(eqs[r].coeffs[col])
		scaleRow(&eqs[r], inv)

		for i := 0; i < rows; i++ {
			if i == r {
				continue
			}
			c := eqs[i].coeffs[col]
			if c == 0 {
				continue
			}
			subtractScaled(&eqs[i], &eqs[r], c)
		}
		pivotRowOf[col] = r
		r++
	}

	for col := 0; col < w; col++ {
		if pivotRowOf[col] == -1 {
			return false // rank-deficient: this column never got a pivot
		}
	}
	// Reorder so row i is the solved equation for column i, simplifying
	// lookups in findPivotRow.
	reordered := make([]equation, w)
	for col, row := range pivotRowOf {
		reordered[col] = eqs[row]
	}
	copy(eqs, reordered)
	return true
}

func scaleRow(e *equation, inv byte) {
	for i := range e.coeffs {
		e.coeffs[i] = gfMul(e.coeffs[i], inv)
	}
	for i := range e.value {
		e.value[i] = gfMul(e.value[i], inv)
	}
}

func subtractScaled(dst, src *equation, c byte) {
	for i := range dst.coeffs {
		dst.coeffs[i] = gfAdd(dst.coeffs[i], gfMul(src.coeffs[i], c))
	}
	gfMulVecAccum(dst.value, src.value, c)
}

func findPivotRow(eqs []equation, col int) int {
	// After gaussJordan's reordering, row == col holds the solved
	// equation for that column.
	if col < len(eqs) && eqs[col].coeffs[col] == 1 {
		isIdentityRow := true
		for i, v := range eqs[col].coeffs {
			if i != col && v != 0 {
				isIdentityRow = false
				break
			}
		}
		if isIdentityRow {
			return col
		}
	}
	for i := range eqs {
		if eqs[i].coeffs[col] == 1 {
			ok := true
			for j, v := range eqs[i].coeffs {
				if j != col && v != 0 {
					ok = false
					break
				}
			}
			if ok {
				return i
			}
		}
	}
	return -1
}
