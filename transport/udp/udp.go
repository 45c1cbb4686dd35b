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

// Package udp is the concrete transport.Socket backing a path: a bound
// net.UDPConn, wrapped in golang.org/x/net/ipv4's PacketConn so that
// WriteBatch can coalesce several datagrams into one syscall (the session
// sends with WriteTo and does not call it), with optional DSCP marking
// (golang.org/x/sys) and an interface-existence check for a named NIC
// (jsimonetti/rtnetlink).
package udp

import (
	"fmt"
	"net"
	"time"

	"golang.org/x/net/ipv4"

	"github.com/bondwire/bond/dscp"
	"github.com/bondwire/bond/timestamp"
)

// MaxBatchSize caps how many datagrams a single WriteBatch call will
// coalesce, per spec §4.5 step 8's "batch size is capped to preserve
// latency".
const MaxBatchSize = 16

// Socket is the concrete transport.Socket/BatchSocket/CarrierMonitor
// implementation for one path, bound to a local address and connected
// to a single remote peer.
type Socket struct {
	conn   *net.UDPConn
	pc     *ipv4.PacketConn
	remote *net.UDPAddr
	iface  string
}

// Config controls how a Socket is constructed.
type Config struct {
	LocalBind  *net.UDPAddr
	RemoteAddr *net.UDPAddr
	DSCP       int    // 0-63; 0 means "don't set"
	Iface      string // interface name for carrier-loss polling, optional
}

// Dial binds a UDP socket per cfg and connects it to cfg.RemoteAddr so
// WriteTo/ReadFrom need not specify an address each call.
func Dial(cfg Config) (*Socket, error) {
	conn, err := net.DialUDP("udp", cfg.LocalBind, cfg.RemoteAddr)
	if err != nil {
		return nil, fmt.Errorf("udp: dialing %s -> %s: %w", cfg.LocalBind, cfg.RemoteAddr, err)
	}

	if cfg.DSCP > 0 {
		fd, err := timestamp.ConnFd(conn)
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("udp: getting socket fd for DSCP: %w", err)
		}
		if err := dscp.Enable(fd, cfg.LocalBind.IP, cfg.DSCP); err != nil {
			conn.Close()
			return nil, fmt.Errorf("udp: enabling DSCP %d: %w", cfg.DSCP, err)
		}
	}

	return &Socket{
		conn:   conn,
		pc:     ipv4.NewPacketConn(conn),
		remote: cfg.RemoteAddr,
		iface:  cfg.Iface,
	}, nil
}

// WriteTo sends b to the connected remote address.
func (s *Socket) WriteTo(b []byte) (int, error) {
	return s.conn.Write(b)
}

// ReadFrom reads the next datagram into b.
func (s *Socket) ReadFrom(b []byte) (int, error) {
	return s.conn.Read(b)
}

// WriteBatch sends buffers via the underlying ipv4.PacketConn's
// WriteBatch, in as many syscalls as needed of at most MaxBatchSize
// datagrams each.
func (s *Socket) WriteBatch(buffers [][]byte) (int, error) {
	sent := 0
	for len(buffers) > 0 {
		n := len(buffers)
		if n > MaxBatchSize {
			n = MaxBatchSize
		}
		msgs := make([]ipv4.Message, n)
		for i := 0; i < n; i++ {
			msgs[i].Buffers = [][]byte{buffers[i]}
		}
		wrote, err := s.pc.WriteBatch(msgs, 0)
		sent += wrote
		if err != nil {
			return sent, fmt.Errorf("udp: WriteBatch: %w", err)
		}
		buffers = buffers[n:]
	}
	return sent, nil
}

// SetWriteDeadline implements transport.Socket.
func (s *Socket) SetWriteDeadline(t time.Time) error { return s.conn.SetWriteDeadline(t) }

// SetReadDeadline implements transport.Socket.
func (s *Socket) SetReadDeadline(t time.Time) error { return s.conn.SetReadDeadline(t) }

// LocalAddr implements transport.Socket.
func (s *Socket) LocalAddr() net.Addr { return s.conn.LocalAddr() }

// RemoteAddr implements transport.Socket.
func (s *Socket) RemoteAddr() net.Addr { return s.remote }

// Close implements transport.Socket.
func (s *Socket) Close() error { return s.conn.Close() }

// CarrierUp implements transport.CarrierMonitor by checking the bound
// interface's operational flags. It is a poll, not a netlink
// subscription: cheap enough to call from the keepalive timer without
// needing a dedicated monitoring goroutine per path.
func (s *Socket) CarrierUp() (bool, error) {
	if s.iface == "" {
		return true, nil
	}
	iface, err := net.InterfaceByName(s.iface)
	if err != nil {
		return false, fmt.Errorf("udp: looking up interface %s: %w", s.iface, err)
	}
	return iface.Flags&net.FlagRunning != 0, nil
}
