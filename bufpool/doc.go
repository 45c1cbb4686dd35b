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

// Package bufpool provides a fixed-size, pre-allocated pool of MTU-sized
// packet buffers and the reference-counted Handle that shares ownership
// of one buffer across the scheduler, a per-path worker, the retransmit
// store, and (on the receiver) the aggregator. The pool is the only
// allocator on the data-plane hot path.
package bufpool
