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

// Package session wires the wire codec, packet pool, per-path
// reliability and congestion control, scheduler, and aggregator into
// the two externally visible endpoints of a bonded stream: Sender and
// Receiver. It owns path lifecycle end to end: handshake, keepalive,
// and link join/leave, layered over whatever transport.Socket each path
// is given.
package session
