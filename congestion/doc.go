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

// Package congestion implements a BBR-family per-path congestion
// controller: a windowed delivery-rate/min-RTT model driving a pacing
// rate, cycling through startup/drain/probe_bw/probe_rtt phases, with a
// rotating cross-path token coordinating which single path may occupy
// probe_bw's bandwidth-probing sub-phase at any moment, and an optional
// radio feed-forward hook (package congestion/radio) that clamps the
// bandwidth estimate to a physical ceiling when external signal-quality
// readings are available.
package congestion
