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
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/bondwire/bond/path"
	"github.com/bondwire/bond/scheduler"
	"github.com/bondwire/bond/transport"
	"github.com/bondwire/bond/transport/udp"
	"github.com/bondwire/bond/wire"
)

// simAddr is a minimal net.Addr for simSocket endpoints. Session only
// uses addresses informationally (Path's local/remote bookkeeping
// fields); nothing here needs to resolve to a real interface.
type simAddr string

func (a simAddr) Network() string { return "sim" }
func (a simAddr) String() string  { return string(a) }

// simTimeout satisfies the unexported `interface{ Timeout() bool }` that
// session.isTimeout checks for, the same shape a *net.OpError from a
// real UDPConn read deadline has.
type simTimeout struct{}

func (simTimeout) Error() string   { return "simsocket: i/o timeout" }
func (simTimeout) Timeout() bool   { return true }
func (simTimeout) Temporary() bool { return true }

// simSocket is a real in-memory, deadline-aware datagram pipe standing
// in for a UDP socket. Two of them, created in a pair, exercise a full
// Sender/Receiver handshake deterministically and without a real NIC.
// lossFn, if set, is consulted on every outbound write and may drop the
// datagram to simulate path loss.
type simSocket struct {
	local, remote net.Addr
	peer          *simSocket
	in            chan []byte

	mu           sync.Mutex
	closed       bool
	readDeadline time.Time

	lossFn func([]byte) bool
}

// newSimSocketPair returns two ends of an in-memory datagram pipe, named
// for the session roles dialing them.
func newSimSocketPair(localName, remoteName string) (*simSocket, *simSocket) {
	a := &simSocket{local: simAddr(localName), remote: simAddr(remoteName), in: make(chan []byte, 256)}
	b := &simSocket{local: simAddr(remoteName), remote: simAddr(localName), in: make(chan []byte, 256)}
	a.peer = b
	b.peer = a
	return a, b
}

func (s *simSocket) WriteTo(b []byte) (int, error) {
	if s.lossFn != nil && s.lossFn(b) {
		return len(b), nil
	}
	s.peer.mu.Lock()
	closed := s.peer.closed
	s.peer.mu.Unlock()
	if closed {
		return len(b), nil
	}
	cp := append([]byte(nil), b...)
	select {
	case s.peer.in <- cp:
	default:
		// peer's inbound queue is saturated; drop, the same as a real
		// UDP receive buffer overrunning.
	}
	return len(b), nil
}

func (s *simSocket) ReadFrom(b []byte) (int, error) {
	s.mu.Lock()
	deadline := s.readDeadline
	s.mu.Unlock()

	var timeoutCh <-chan time.Time
	if !deadline.IsZero() {
		d := time.Until(deadline)
		if d <= 0 {
			return 0, simTimeout{}
		}
		timer := time.NewTimer(d)
		defer timer.Stop()
		timeoutCh = timer.C
	}

	select {
	case data := <-s.in:
		return copy(b, data), nil
	case <-timeoutCh:
		return 0, simTimeout{}
	}
}

func (s *simSocket) SetReadDeadline(t time.Time) error {
	s.mu.Lock()
	s.readDeadline = t
	s.mu.Unlock()
	return nil
}

func (s *simSocket) SetWriteDeadline(time.Time) error { return nil }
func (s *simSocket) LocalAddr() net.Addr              { return s.local }
func (s *simSocket) RemoteAddr() net.Addr             { return s.remote }

func (s *simSocket) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

// wrapMock wires sock through transport/udp's gomock-generated
// MockSocket so the session simulation tests exercise it directly,
// rather than leaving it referenced by nothing outside its own file.
// Every call is delegated straight through to sock.
func wrapMock(t *testing.T, sock *simSocket) transport.Socket {
	t.Helper()
	ctrl := gomock.NewController(t)
	m := udp.NewMockSocket(ctrl)
	m.EXPECT().WriteTo(gomock.Any()).DoAndReturn(sock.WriteTo).AnyTimes()
	m.EXPECT().ReadFrom(gomock.Any()).DoAndReturn(sock.ReadFrom).AnyTimes()
	m.EXPECT().SetReadDeadline(gomock.Any()).DoAndReturn(sock.SetReadDeadline).AnyTimes()
	m.EXPECT().SetWriteDeadline(gomock.Any()).DoAndReturn(sock.SetWriteDeadline).AnyTimes()
	m.EXPECT().LocalAddr().DoAndReturn(sock.LocalAddr).AnyTimes()
	m.EXPECT().RemoteAddr().DoAndReturn(sock.RemoteAddr).AnyTimes()
	m.EXPECT().Close().DoAndReturn(sock.Close).AnyTimes()
	return m
}

func simPayload(i int) []byte {
	return []byte(fmt.Sprintf("frame-%04d", i))
}

// TestSessionCleanTwoPathAggregationDeliversInOrder is spec scenario 1:
// two lossless paths, every enqueued unit reassembled at the receiver in
// strict sequence order regardless of which path actually carried it.
func TestSessionCleanTwoPathAggregationDeliversInOrder(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SessionID = 1
	cfg.MTU = 1200
	cfg.CodingWindow = 8

	sender := NewSender(cfg)
	receiver := NewReceiver(cfg)
	defer sender.Close()
	defer receiver.Close()

	for _, id := range []int{1, 2} {
		a, b := newSimSocketPair(fmt.Sprintf("sender-%d", id), fmt.Sprintf("receiver-%d", id))
		require.NoError(t, sender.AddPath(path.ID(id), wrapMock(t, a)))
		require.NoError(t, receiver.AddPath(path.ID(id), wrapMock(t, b)))
	}
	receiver.Start()

	const n = 20
	ctx := context.Background()
	for i := 0; i < n; i++ {
		outcome, err := sender.Enqueue(ctx, simPayload(i), scheduler.PriorityStandard, time.Time{})
		require.NoError(t, err)
		require.Equal(t, scheduler.Queued, outcome)
	}

	recvCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	for i := 0; i < n; i++ {
		got, err := receiver.NextBuffer(recvCtx)
		require.NoError(t, err)
		require.Equal(t, simPayload(i), got)
	}
}

// TestSessionAdvancesPastSingleLostPacket is spec scenario 3 (burst
// loss), reduced to its smallest reproducing case: a single path drops
// one datagram outright. Before aggregator/buffer.go stamped a deadline
// for a sequence that never itself arrived, ReleaseReady could never
// judge the gap late and the receiver would stall on it forever; this
// exercises that fix at the session level instead of only at the
// aggregator's.
func TestSessionAdvancesPastSingleLostPacket(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SessionID = 2
	cfg.MTU = 1200
	cfg.CodingWindow = 8

	sender := NewSender(cfg)
	receiver := NewReceiver(cfg)
	defer sender.Close()
	defer receiver.Close()

	a, b := newSimSocketPair("sender-1", "receiver-1")
	const lostSeq = 4
	a.lossFn = func(datagram []byte) bool {
		h, _, err := wire.Decode(datagram, 0)
		return err == nil && !h.Control && h.Sequence == lostSeq
	}
	require.NoError(t, sender.AddPath(path.ID(1), wrapMock(t, a)))
	require.NoError(t, receiver.AddPath(path.ID(1), wrapMock(t, b)))
	receiver.Start()

	const n = 10
	ctx := context.Background()
	for i := 0; i < n; i++ {
		outcome, err := sender.Enqueue(ctx, simPayload(i), scheduler.PriorityStandard, time.Time{})
		require.NoError(t, err)
		require.Equal(t, scheduler.Queued, outcome)
	}

	recvCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	var got [][]byte
	for i := 0; i < n-1; i++ {
		payload, err := receiver.NextBuffer(recvCtx)
		require.NoError(t, err, "receiver stalled instead of advancing past the lost sequence")
		got = append(got, payload)
	}

	for i, want := range got {
		skip := 0
		if i >= lostSeq {
			skip = 1
		}
		require.Equal(t, simPayload(i+skip), want)
	}

	late, _, _ := receiver.BufferStats()
	require.Equal(t, uint64(1), late)
}
