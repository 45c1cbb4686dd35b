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

// Package fec implements sliding-window random linear network coding
// (RLNC) over GF(256): systematic source transmission, repair-symbol
// generation with coefficients deterministically derived from a
// generation id, Gauss-Jordan decode of any W linearly independent
// symbols, and an operator-configurable adaptive repair-ratio cost
// model.
//
// There is no grounding for GF(256)/RLNC arithmetic itself in the
// retrieved example pack (no erasure-coding library appears in any
// example go.mod); see DESIGN.md for why this one package is built on
// the standard library rather than a third-party coder.
package fec
