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

// Package scheduler implements the sender's eight-stage outbound
// pipeline: priority classification, a host-pressure-aware degradation
// gate, the broadcast/redundancy decision, a Beta-distributed bandit
// for link preference, an in-order arrival guard, a head-of-line
// blocking guard, a deficit weighted fair queue over per-path credit,
// and pacing against each path's congestion-derived rate. Every stage
// is a pure function of its input plus per-path state; the scheduler
// keeps its *path.Path records in a map keyed by path.ID, and package
// path never refers back to the scheduler, so no cyclic reference forms.
package scheduler
