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

package scheduler

import "time"

// Priority is one of the four outbound-unit priority classes.
type Priority uint8

const (
	PriorityCritical Priority = iota
	PriorityReference
	PriorityStandard
	PriorityDisposable
)

func (p Priority) String() string {
	switch p {
	case PriorityCritical:
		return "critical"
	case PriorityReference:
		return "reference"
	case PriorityStandard:
		return "standard"
	case PriorityDisposable:
		return "disposable"
	default:
		return "unknown"
	}
}

// Unit is one outbound media unit entering the scheduler.
type Unit struct {
	Payload       []byte
	Deadline      time.Time
	IsKeyframe    bool
	IsCodecConfig bool

	// RequestedPriority is the priority tagged by the caller (an
	// external media parser or explicit profile). Classify may upgrade
	// it but never downgrades an explicit request.
	RequestedPriority Priority
}

// Classify determines a unit's effective priority. Codec-config and
// keyframe bytes are always critical regardless of what the caller
// requested, since losing them stalls every subsequent unit in the
// GOP.
func Classify(u Unit) Priority {
	if u.IsCodecConfig || u.IsKeyframe {
		return PriorityCritical
	}
	return u.RequestedPriority
}
