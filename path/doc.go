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

// Package path models one logical unidirectional network path between
// session endpoints: its lifecycle state machine, its per-path
// reliability layer (sliding-window erasure coding plus NACK-driven
// repair), and the smoothed observables (RTT, loss, delivery rate) the
// scheduler reads as single-writer snapshots.
package path
