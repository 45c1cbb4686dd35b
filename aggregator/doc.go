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

// Package aggregator implements the receiver-side reassembly engine: a
// sequence-keyed ordered buffer with a presence index, a p95 jitter
// estimator driving the playout deadline, erasure decode triggered on
// demand when a gap intersects a coding window, and sender-restart
// detection.
package aggregator
