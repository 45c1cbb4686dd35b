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

package session

import (
	"fmt"
	"sync"
)

// State is one of the session-level lifecycle states. It is distinct
// from path.State. lifecycleState.Transition enforces the allowed moves
// between these states, but nothing in the package calls it, so a
// session's state stays StateHandshaking.
type State uint8

// Session lifecycle states.
const (
	StateHandshaking State = iota
	StateEstablished
	StateDraining
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateHandshaking:
		return "handshaking"
	case StateEstablished:
		return "established"
	case StateDraining:
		return "draining"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

var sessionTransitions = map[State]map[State]bool{
	StateHandshaking: {StateEstablished: true, StateClosed: true},
	StateEstablished: {StateDraining: true, StateClosed: true},
	StateDraining:    {StateClosed: true, StateEstablished: true},
	StateClosed:      {},
}

// lifecycleState is the session-level state machine, guarded
// independently of any single path's path.Lifecycle.
type lifecycleState struct {
	mu    sync.Mutex
	state State
}

func newLifecycleState() *lifecycleState {
	return &lifecycleState{state: StateHandshaking}
}

// State returns the current session state.
func (l *lifecycleState) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Transition moves the session from its current state to to, rejecting
// transitions absent from the session lifecycle graph.
func (l *lifecycleState) Transition(to State) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !sessionTransitions[l.state][to] {
		return fmt.Errorf("session: illegal lifecycle transition %s -> %s", l.state, to)
	}
	l.state = to
	return nil
}

// State returns the session's current lifecycle state.
func (s *Session) State() State {
	return s.state.State()
}
