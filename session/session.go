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
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/bondwire/bond/bufpool"
	"github.com/bondwire/bond/congestion"
	"github.com/bondwire/bond/fec"
	"github.com/bondwire/bond/internal/ringbuf"
	"github.com/bondwire/bond/path"
	"github.com/bondwire/bond/transport"
)

// Role distinguishes the sending and receiving end of a session; both
// run the same handshake and keepalive machinery.
type Role uint8

// Roles.
const (
	RoleSender Role = iota
	RoleReceiver
)

func (r Role) String() string {
	if r == RoleSender {
		return "sender"
	}
	return "receiver"
}

// Config carries every tunable the session and the subsystems it wires
// together need. A config.Config loaded from YAML is translated into
// one of these by the caller; session itself has no YAML dependency.
type Config struct {
	SessionID uint64
	MTU       uint16

	BufPoolCapacity int
	CodingWindow    int
	RepairHorizon   time.Duration

	JitterWindowSize int

	KeepaliveInterval         time.Duration
	KeepaliveFailureThreshold int
	DrainWindow               time.Duration
	ProbeSuppressionInterval  time.Duration

	BanditSeed int64
}

// DefaultConfig returns a Config with the package defaults referenced
// throughout path/scheduler/aggregator/fec filled in. SessionID and MTU
// are left zero.
func DefaultConfig() Config {
	return Config{
		BufPoolCapacity:           bufpool.DefaultCapacity,
		CodingWindow:              fec.DefaultWindowSize,
		RepairHorizon:             500 * time.Millisecond,
		JitterWindowSize:          0, // 0 => aggregator.DefaultJitterWindowSize
		KeepaliveInterval:         DefaultKeepaliveInterval,
		KeepaliveFailureThreshold: DefaultKeepaliveFailureThreshold,
		DrainWindow:               DefaultDrainWindow,
		ProbeSuppressionInterval:  DefaultProbeSuppressionInterval,
		BanditSeed:                1,
	}
}

// pathEntry bundles one path's bonded state with the socket it sends
// and receives through and the bookkeeping the keepalive loop needs.
type pathEntry struct {
	path *path.Path
	sock transport.Socket

	probeMu       sync.Mutex
	pendingNonce  uint32
	pendingSentAt time.Time
	misses        int

	draining atomic.Bool

	// Sender-only fields below; zero-valued and unused on a receiver
	// path entry.
	outbound          *ringbuf.Ring[outboundJob]
	ackMu             sync.Mutex
	lastCumulativeAck uint64
}

// Session is the shared core between Sender and Receiver: path
// registry, handshake/lifecycle/keepalive state, and the supervising
// errgroup every per-path worker runs under.
type Session struct {
	cfg  Config
	role Role
	log  *log.Entry

	epoch atomic.Uint32

	mu    sync.RWMutex
	paths map[path.ID]*pathEntry

	pool *bufpool.Pool

	state *lifecycleState

	cmds     chan Command
	group    *errgroup.Group
	groupCtx context.Context
	cancel   context.CancelFunc

	probesEnabled atomic.Bool

	startedAt time.Time
}

func newSession(cfg Config, role Role) *Session {
	if cfg.BufPoolCapacity <= 0 {
		cfg.BufPoolCapacity = bufpool.DefaultCapacity
	}
	if cfg.CodingWindow <= 0 {
		cfg.CodingWindow = fec.DefaultWindowSize
	}
	if cfg.RepairHorizon <= 0 {
		cfg.RepairHorizon = 500 * time.Millisecond
	}
	if cfg.KeepaliveInterval <= 0 {
		cfg.KeepaliveInterval = DefaultKeepaliveInterval
	}
	if cfg.KeepaliveFailureThreshold <= 0 {
		cfg.KeepaliveFailureThreshold = DefaultKeepaliveFailureThreshold
	}
	if cfg.DrainWindow <= 0 {
		cfg.DrainWindow = DefaultDrainWindow
	}
	if cfg.ProbeSuppressionInterval <= 0 {
		cfg.ProbeSuppressionInterval = DefaultProbeSuppressionInterval
	}

	ctx, cancel := context.WithCancel(context.Background())
	g, gctx := errgroup.WithContext(ctx)

	s := &Session{
		cfg:       cfg,
		role:      role,
		log:       log.WithField("session", cfg.SessionID).WithField("role", role.String()),
		paths:     make(map[path.ID]*pathEntry),
		pool:      bufpool.New(cfg.BufPoolCapacity, int(cfg.MTU)),
		state:     newLifecycleState(),
		cmds:      make(chan Command, 32),
		group:     g,
		groupCtx:  gctx,
		cancel:    cancel,
		startedAt: time.Now(),
	}
	s.probesEnabled.Store(true)
	return s
}

// Commands returns the channel the session's control loop reads
// submitted commands from. cmd/bondctl and other control-plane callers
// use Submit to enqueue, not this channel directly.
func (s *Session) Commands() <-chan Command {
	return s.cmds
}

// Submit enqueues a command for the session's control loop to apply.
// It blocks until the command is accepted or ctx is done.
func (s *Session) Submit(ctx context.Context, cmd Command) error {
	select {
	case s.cmds <- cmd:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-s.groupCtx.Done():
		return fmt.Errorf("session: closed")
	}
}

// Epoch returns the current session epoch. Nothing in the package
// changes it after construction, so it is always 0.
func (s *Session) Epoch() uint32 {
	return s.epoch.Load()
}

// newPath constructs a bonded path.Path with fresh reliability and
// congestion state appropriate to role, but does not register it
// anywhere; callers (Sender.AddPath/Receiver.AddPath) do the
// role-specific wiring.
func (s *Session) newPath(id path.ID, sock transport.Socket, tok *congestion.TokenCoordinator) (*path.Path, error) {
	p := path.NewPath(id, localAddr(sock), remoteAddr(sock))
	p.Congestion = congestion.New(tok)

	switch s.role {
	case RoleSender:
		sr, err := path.NewSenderReliability(s.cfg.CodingWindow, int(s.cfg.MTU), s.cfg.RepairHorizon)
		if err != nil {
			return nil, fmt.Errorf("session: building sender reliability for path %d: %w", id, err)
		}
		p.Sender = sr
	case RoleReceiver:
		p.Receiver = path.NewReceiverReliability()
	}
	return p, nil
}

func localAddr(sock transport.Socket) *net.UDPAddr  { return toUDPAddr(sock.LocalAddr()) }
func remoteAddr(sock transport.Socket) *net.UDPAddr { return toUDPAddr(sock.RemoteAddr()) }

// toUDPAddr adapts a net.Addr to *net.UDPAddr for path.Path's bookkeeping
// fields, which are informational only (the actual I/O goes through
// transport.Socket). Non-UDP addresses (e.g. a test fake) fall back to a
// zero-value address rather than panicking.
func toUDPAddr(a net.Addr) *net.UDPAddr {
	if u, ok := a.(*net.UDPAddr); ok {
		return u
	}
	return &net.UDPAddr{}
}

// Paths returns every currently registered path, for telemetry snapshot
// building. Callers must not mutate the returned Path values; only the
// owning worker does.
func (s *Session) Paths() []*path.Path {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*path.Path, 0, len(s.paths))
	for _, e := range s.paths {
		out = append(out, e.path)
	}
	return out
}

// SessionID returns the configured session identifier.
func (s *Session) SessionID() uint64 {
	return s.cfg.SessionID
}

// Role returns whether this session is the sending or receiving
// endpoint.
func (s *Session) Role() Role {
	return s.role
}

// Uptime returns how long the session has been running.
func (s *Session) Uptime() time.Duration {
	return time.Since(s.startedAt)
}

// entry returns the registered path entry for id, or nil.
func (s *Session) entry(id path.ID) *pathEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.paths[id]
}

// aliveSockets returns every non-draining path's socket, for control
// traffic (NACK, PROBE) that may go out on any alive path.
func (s *Session) aliveSockets() []*pathEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*pathEntry, 0, len(s.paths))
	for _, e := range s.paths {
		if e.path.Alive() && !e.draining.Load() {
			out = append(out, e)
		}
	}
	return out
}

// Close tears the session down: cancels every worker and waits for
// them to exit.
func (s *Session) Close() error {
	s.cancel()
	err := s.group.Wait()
	s.mu.Lock()
	for _, e := range s.paths {
		e.sock.Close()
	}
	s.mu.Unlock()
	if err != nil && err != context.Canceled {
		return err
	}
	return nil
}
