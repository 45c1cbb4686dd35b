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

// Package control is the HTTP bridge between cmd/bondctl and a running
// bond-sender/bond-receiver daemon's session.Session.Submit channel:
// an operator process across the network can't reach an in-process Go
// channel directly, so this package gives session.Command a wire
// representation and an http.Handler that decodes, submits, and waits
// for the reply the same way session.Command.Result already does
// in-process.
package control

import (
	"net"

	"github.com/bondwire/bond/path"
	"github.com/bondwire/bond/scheduler"
	"github.com/bondwire/bond/session"
)

// Request is the JSON wire form of a session.Command: addresses are
// strings (net.UDPAddr has no JSON marshaling bondctl should rely on)
// and Kind is the command's String() form rather than its numeric
// value, so a request body is readable without consulting the enum.
type Request struct {
	Kind string `json:"kind"`

	MaxBitrateBps  uint64 `json:"max_bitrate_bps,omitempty"`
	RedundancyMode string `json:"redundancy_mode,omitempty"`

	PathID     uint16 `json:"path_id,omitempty"`
	LocalBind  string `json:"local_bind,omitempty"`
	RemoteAddr string `json:"remote_addr,omitempty"`
	Iface      string `json:"iface,omitempty"`

	ProbeEnabled bool `json:"probe_enabled,omitempty"`
}

// Response is the JSON wire form of a command's outcome.
type Response struct {
	Error string `json:"error,omitempty"`
}

var kindByName = map[string]session.CommandKind{
	session.CmdSetMaxBitrate.String():    session.CmdSetMaxBitrate,
	session.CmdSetRedundancyMode.String(): session.CmdSetRedundancyMode,
	session.CmdAddPath.String():          session.CmdAddPath,
	session.CmdRemovePath.String():       session.CmdRemovePath,
	session.CmdFreezePath.String():       session.CmdFreezePath,
	session.CmdResumePath.String():       session.CmdResumePath,
	session.CmdSetProbeEnabled.String():  session.CmdSetProbeEnabled,
}

var modeByName = map[string]scheduler.RedundancyMode{
	"quality":     scheduler.ModeQuality,
	"reliability": scheduler.ModeReliability,
}

// toCommand converts a Request into a session.Command, reporting an
// error for an unrecognized Kind/RedundancyMode or an unparsable
// address rather than submitting a zero-valued Command.
func toCommand(req Request) (session.Command, error) {
	kind, ok := kindByName[req.Kind]
	if !ok {
		return session.Command{}, &unknownKindError{req.Kind}
	}

	cmd := session.Command{
		Kind:          kind,
		MaxBitrateBps: req.MaxBitrateBps,
		PathID:        path.ID(req.PathID),
		Iface:         req.Iface,
		ProbeEnabled:  req.ProbeEnabled,
	}

	if req.RedundancyMode != "" {
		mode, ok := modeByName[req.RedundancyMode]
		if !ok {
			return session.Command{}, &unknownModeError{req.RedundancyMode}
		}
		cmd.RedundancyMode = mode
	}

	if req.LocalBind != "" {
		addr, err := net.ResolveUDPAddr("udp", req.LocalBind)
		if err != nil {
			return session.Command{}, err
		}
		cmd.LocalBind = addr
	}
	if req.RemoteAddr != "" {
		addr, err := net.ResolveUDPAddr("udp", req.RemoteAddr)
		if err != nil {
			return session.Command{}, err
		}
		cmd.RemoteAddr = addr
	}

	return cmd, nil
}

type unknownKindError struct{ kind string }

func (e *unknownKindError) Error() string { return "control: unknown command kind " + e.kind }

type unknownModeError struct{ mode string }

func (e *unknownModeError) Error() string { return "control: unknown redundancy mode " + e.mode }
