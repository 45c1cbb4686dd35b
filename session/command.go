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
	"net"

	"github.com/bondwire/bond/path"
	"github.com/bondwire/bond/scheduler"
)

// CommandKind identifies the operation a Command carries.
type CommandKind uint8

// Command kinds, per the external command-channel surface.
const (
	CmdSetMaxBitrate CommandKind = iota
	CmdSetRedundancyMode
	CmdAddPath
	CmdRemovePath
	CmdFreezePath
	CmdResumePath
	CmdSetProbeEnabled
)

func (k CommandKind) String() string {
	switch k {
	case CmdSetMaxBitrate:
		return "set_max_bitrate"
	case CmdSetRedundancyMode:
		return "set_redundancy_mode"
	case CmdAddPath:
		return "add_path"
	case CmdRemovePath:
		return "remove_path"
	case CmdFreezePath:
		return "freeze_path"
	case CmdResumePath:
		return "resume_path"
	case CmdSetProbeEnabled:
		return "set_probe_enabled"
	default:
		return "unknown"
	}
}

// Command is the sum type accepted by Session.Submit and drained by the
// session's control loop. Only the fields relevant to Kind are read.
type Command struct {
	Kind CommandKind

	MaxBitrateBps  uint64
	RedundancyMode scheduler.RedundancyMode

	PathID     path.ID
	LocalBind  *net.UDPAddr
	RemoteAddr *net.UDPAddr
	Iface      string

	ProbeEnabled bool

	// Result, if non-nil, receives exactly one error (nil on success)
	// and is closed by the handler.
	Result chan<- error
}

// reply sends err on cmd.Result and closes it, if the caller asked for
// one.
func reply(cmd Command, err error) {
	if cmd.Result == nil {
		return
	}
	cmd.Result <- err
	close(cmd.Result)
}
