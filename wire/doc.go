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

// Package wire implements the bonded-transport UDP wire format: the
// 12-byte fixed header plus QUIC-style variable-length sequence field,
// the control packet subtype taxonomy, and source-unit fragmentation.
//
// Encoding never allocates when given a backing buffer; decoding never
// panics on attacker-controlled input and only ever returns one of the
// four documented error kinds.
package wire
