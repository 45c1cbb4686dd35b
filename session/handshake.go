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
	"context"
	"errors"
	"fmt"
	"time"

	version "github.com/hashicorp/go-version"

	"github.com/bondwire/bond/transport"
	"github.com/bondwire/bond/wire"
)

// ProtocolVersion is this build's session-protocol version. It rides in
// the upper 16 bits of a SESSION handshake's Extensions field as
// major<<8|minor; the lower 16 bits are a capability bitmask.
var ProtocolVersion = version.Must(version.NewVersion("1.0.0"))

// MinPeerVersion is the oldest peer protocol version this build will
// handshake with. A peer below it gets ErrIncompatibleVersion instead of
// a best-effort downgrade, since the wire taxonomy has changed
// incompatibly across major versions.
var MinPeerVersion = version.Must(version.NewVersion("1.0.0"))

// Extension capability bits, packed into the low 16 bits of a SESSION
// handshake's Extensions field.
const (
	ExtRadioFeedForward uint32 = 1 << 0
	ExtReliabilityMode  uint32 = 1 << 1
)

// SupportedExtensions is the capability bitmask this build advertises.
const SupportedExtensions = ExtRadioFeedForward | ExtReliabilityMode

// HandshakeTimeout bounds how long either side of a handshake waits for
// the next message before giving up.
const HandshakeTimeout = 5 * time.Second

// Errors returned by the handshake.
var (
	ErrHandshakeFailed     = errors.New("session: handshake failed")
	ErrIncompatibleVersion = errors.New("session: incompatible peer protocol version")
)

func packExtensions(v *version.Version, caps uint32) uint32 {
	seg := v.Segments()
	major, minor := uint32(0), uint32(0)
	if len(seg) > 0 {
		major = uint32(seg[0])
	}
	if len(seg) > 1 {
		minor = uint32(seg[1])
	}
	return (major&0xff)<<24 | (minor&0xff)<<16 | (caps & 0xffff)
}

func unpackVersion(ext uint32) *version.Version {
	major := (ext >> 24) & 0xff
	minor := (ext >> 16) & 0xff
	v, err := version.NewVersion(fmt.Sprintf("%d.%d.0", major, minor))
	if err != nil {
		return version.Must(version.NewVersion("0.0.0"))
	}
	return v
}

func unpackCaps(ext uint32) uint32 { return ext & 0xffff }

// handshakeResult is what either side of a successful handshake agrees
// on.
type handshakeResult struct {
	mtu   uint16
	caps  uint32
	epoch uint32
}

// HandshakeInitiate runs the sender side of the SESSION handshake over
// sock: send HELLO, await the peer's HELLO-ACK, send a final ACK
// confirming the negotiated parameters.
func (s *Session) HandshakeInitiate(ctx context.Context, sock transport.Socket) (handshakeResult, error) {
	epoch := s.epoch.Load()
	hello := wire.SessionBody{
		Subsubtype:   wire.SessionHandshake,
		SessionID:    s.cfg.SessionID,
		MTU:          s.cfg.MTU,
		InitialEpoch: epoch,
		Extensions:   packExtensions(ProtocolVersion, SupportedExtensions),
	}
	if err := s.sendSessionBody(sock, hello); err != nil {
		return handshakeResult{}, fmt.Errorf("%w: sending hello: %v", ErrHandshakeFailed, err)
	}

	ack, err := s.recvSessionBody(ctx, sock)
	if err != nil {
		return handshakeResult{}, fmt.Errorf("%w: awaiting hello-ack: %v", ErrHandshakeFailed, err)
	}
	if ack.SessionID != s.cfg.SessionID {
		return handshakeResult{}, fmt.Errorf("%w: session id mismatch", ErrHandshakeFailed)
	}
	peerVersion := unpackVersion(ack.Extensions)
	if peerVersion.LessThan(MinPeerVersion) {
		return handshakeResult{}, fmt.Errorf("%w: peer %s < min %s", ErrIncompatibleVersion, peerVersion, MinPeerVersion)
	}

	final := wire.SessionBody{
		Subsubtype:   wire.SessionHandshake,
		SessionID:    s.cfg.SessionID,
		MTU:          ack.MTU,
		InitialEpoch: epoch,
		Extensions:   packExtensions(ProtocolVersion, unpackCaps(ack.Extensions)&SupportedExtensions),
	}
	if err := s.sendSessionBody(sock, final); err != nil {
		return handshakeResult{}, fmt.Errorf("%w: sending final ack: %v", ErrHandshakeFailed, err)
	}

	return handshakeResult{mtu: ack.MTU, caps: unpackCaps(ack.Extensions) & SupportedExtensions, epoch: epoch}, nil
}

// HandshakeAccept runs the receiver side: await HELLO, reply with
// HELLO-ACK offering the narrower of the two MTUs and the intersection
// of advertised capabilities, then await the sender's final ACK.
func (s *Session) HandshakeAccept(ctx context.Context, sock transport.Socket) (handshakeResult, error) {
	hello, err := s.recvSessionBody(ctx, sock)
	if err != nil {
		return handshakeResult{}, fmt.Errorf("%w: awaiting hello: %v", ErrHandshakeFailed, err)
	}
	peerVersion := unpackVersion(hello.Extensions)
	if peerVersion.LessThan(MinPeerVersion) {
		return handshakeResult{}, fmt.Errorf("%w: peer %s < min %s", ErrIncompatibleVersion, peerVersion, MinPeerVersion)
	}

	mtu := hello.MTU
	if s.cfg.MTU != 0 && s.cfg.MTU < mtu {
		mtu = s.cfg.MTU
	}
	caps := unpackCaps(hello.Extensions) & SupportedExtensions

	ack := wire.SessionBody{
		Subsubtype:   wire.SessionHandshake,
		SessionID:    hello.SessionID,
		MTU:          mtu,
		InitialEpoch: hello.InitialEpoch,
		Extensions:   packExtensions(ProtocolVersion, caps),
	}
	if err := s.sendSessionBody(sock, ack); err != nil {
		return handshakeResult{}, fmt.Errorf("%w: sending hello-ack: %v", ErrHandshakeFailed, err)
	}

	final, err := s.recvSessionBody(ctx, sock)
	if err != nil {
		return handshakeResult{}, fmt.Errorf("%w: awaiting final ack: %v", ErrHandshakeFailed, err)
	}
	if final.SessionID != hello.SessionID {
		return handshakeResult{}, fmt.Errorf("%w: session id mismatch on final ack", ErrHandshakeFailed)
	}

	return handshakeResult{mtu: mtu, caps: caps, epoch: hello.InitialEpoch}, nil
}

func (s *Session) sendSessionBody(sock transport.Socket, body wire.SessionBody) error {
	buf := make([]byte, wire.MaxHeaderLen+32)
	n, err := body.MarshalBinaryTo(buf[wire.MaxHeaderLen:])
	if err != nil {
		return err
	}
	payload := buf[wire.MaxHeaderLen : wire.MaxHeaderLen+n]
	h := wire.Header{Version: wire.Version, Control: true, SessionEpoch: s.epoch.Load()}
	out, err := wire.Encode(h, payload)
	if err != nil {
		return err
	}
	_, err = sock.WriteTo(out)
	return err
}

func (s *Session) recvSessionBody(ctx context.Context, sock transport.Socket) (wire.SessionBody, error) {
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(HandshakeTimeout)
	}
	_ = sock.SetReadDeadline(deadline)

	buf := make([]byte, wire.MaxHeaderLen+64)
	for {
		n, err := sock.ReadFrom(buf)
		if err != nil {
			return wire.SessionBody{}, err
		}
		h, payload, err := wire.Decode(buf[:n], 0)
		if err != nil || !h.Control {
			continue
		}
		subtype, err := wire.PeekControlSubtype(payload)
		if err != nil || subtype != wire.ControlSession {
			continue
		}
		body, err := wire.UnmarshalSessionBody(payload[1:])
		if err != nil {
			return wire.SessionBody{}, err
		}
		if body.Subsubtype != wire.SessionHandshake {
			continue
		}
		return body, nil
	}
}
