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

// Package ringbuf implements the bounded single-producer/single-consumer
// ring buffer used for handoff between the data-plane workers: the
// scheduler worker enqueues onto a per-path ring, the path worker drains
// it, with no blocking locks on the hot path (bounded spin followed by a
// parked wait, per the concurrency model's suspension-point rules).
package ringbuf
