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

// Package retransmit holds every sent packet until its playout-deadline
// horizon elapses, so the sender scheduler worker can answer NACKs and
// classify ACK/loss/late outcomes. The Store guards its state with a
// mutex and is called directly from several goroutines, including each
// path's inbound loop when it handles ACKs; outcomes are not passed as
// messages to a single owning worker.
package retransmit
