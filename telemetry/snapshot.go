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

// Package telemetry turns a running session's live path and scheduler
// state into versioned, append-only snapshots, and exports them as
// Prometheus metrics and as a JSON HTTP endpoint.
package telemetry

import (
	"time"

	"github.com/bondwire/bond/path"
	"github.com/bondwire/bond/scheduler"
	"github.com/bondwire/bond/session"
)

// SchemaVersion is bumped whenever a field is added to PathSnapshot or
// AggregateSnapshot; consumers should ignore unknown fields rather than
// fail on a version bump, but the field is exported so they don't have
// to guess.
const SchemaVersion = 1

// PathSnapshot is one path's telemetry at a single instant.
type PathSnapshot struct {
	ID    path.ID `json:"id"`
	State string  `json:"state"`

	SmoothedRTTMicros int64   `json:"smoothed_rtt_us"`
	RTTVarianceMicros int64   `json:"rtt_variance_us"`
	SmoothedLossFast  float64 `json:"smoothed_loss_fast"`
	SmoothedLossSlow  float64 `json:"smoothed_loss_slow"`
	DeliveredBps      float64 `json:"delivered_bps"`

	CongestionPhase string  `json:"congestion_phase"`
	PacingRateBps   float64 `json:"pacing_rate_bps"`
	BottleneckBwBps float64 `json:"bottleneck_bw_bps"`
	MinRTTMicros    int64   `json:"min_rtt_us"`

	Weight float64 `json:"weight"`

	// Sender-side only; zero on a receive-only path.
	RepairRatio    float64 `json:"repair_ratio,omitempty"`
	RepairStreamed int     `json:"repair_streamed,omitempty"`
	RepairOnNack   int     `json:"repair_on_nack,omitempty"`

	// Receiver-side only; zero on a send-only path.
	NacksSent uint64 `json:"nacks_sent,omitempty"`
}

// pathSnapshot builds a PathSnapshot from a live path.Path.
func pathSnapshot(p *path.Path) PathSnapshot {
	snap := p.Snapshot()
	s := PathSnapshot{
		ID:                p.ID,
		State:             p.Lifecycle.State().String(),
		SmoothedRTTMicros: int64(snap.SmoothedRTT / time.Microsecond),
		RTTVarianceMicros: int64(snap.RTTVariance / time.Microsecond),
		SmoothedLossFast:  snap.SmoothedLossFast,
		SmoothedLossSlow:  snap.SmoothedLossSlow,
		DeliveredBps:      snap.DeliveredBps,
		Weight:            p.Weight(),
	}
	if p.Congestion != nil {
		s.CongestionPhase = p.Congestion.Phase()
		s.PacingRateBps = p.Congestion.PacingRateBps()
		s.BottleneckBwBps = p.Congestion.BottleneckBw()
		s.MinRTTMicros = int64(p.Congestion.MinRTT() / time.Microsecond)
	}
	if p.Sender != nil {
		s.RepairRatio = p.Sender.CurrentRatio()
		s.RepairStreamed, s.RepairOnNack = p.Sender.Stats()
	}
	if p.Receiver != nil {
		s.NacksSent = p.Receiver.Stats()
	}
	return s
}

// AggregateSnapshot is the session-wide telemetry at a single instant:
// per-path snapshots plus the figures that only make sense rolled up
// across every path.
type AggregateSnapshot struct {
	SchemaVersion   int            `json:"schema_version"`
	ProtocolVersion string         `json:"protocol_version"`
	SessionID       uint64         `json:"session_id"`
	Role            string         `json:"role"`
	UptimeSeconds   float64        `json:"uptime_seconds"`
	Paths           []PathSnapshot `json:"paths"`

	AlivePaths        int     `json:"alive_paths"`
	TotalPacingBps    float64 `json:"total_pacing_bps"`
	TotalDeliveredBps float64 `json:"total_delivered_bps"`

	DegradationStage    string  `json:"degradation_stage,omitempty"`
	DegradationPressure float64 `json:"degradation_pressure,omitempty"`

	// Sender-only, from the retransmit store.
	Acked uint64 `json:"acked,omitempty"`
	Lost  uint64 `json:"lost,omitempty"`
	Late  uint64 `json:"late,omitempty"`

	// Receiver-only, from the reassembly buffer.
	LatePackets      uint64 `json:"late_packets,omitempty"`
	DuplicatePackets uint64 `json:"duplicate_packets,omitempty"`
	RestartCount     uint64 `json:"restart_count,omitempty"`
}

// Source is whatever a Collector pulls live state from: Sender and
// Receiver both implement it via their embedded *session.Session.
type Source interface {
	SessionID() uint64
	Uptime() time.Duration
	Paths() []*path.Path
	Role() session.Role
}

// degradationSource is implemented by Sender, whose scheduler owns the
// degradation gate; a Receiver has no scheduler and so no degradation
// stage of its own to report.
type degradationSource interface {
	DegradationStage() (scheduler.DegradationStage, float64)
}

// retransmitSource is implemented by Sender.
type retransmitSource interface {
	RetransmitStats() (acked, lost, late uint64)
}

// bufferSource is implemented by Receiver.
type bufferSource interface {
	BufferStats() (late, duplicate, restart uint64)
}

// Snapshot builds an AggregateSnapshot from src's current state.
func Snapshot(src Source) AggregateSnapshot {
	paths := src.Paths()
	out := AggregateSnapshot{
		SchemaVersion:   SchemaVersion,
		ProtocolVersion: session.ProtocolVersion.String(),
		SessionID:       src.SessionID(),
		Role:            src.Role().String(),
		UptimeSeconds:   src.Uptime().Seconds(),
		Paths:           make([]PathSnapshot, 0, len(paths)),
	}
	for _, p := range paths {
		ps := pathSnapshot(p)
		out.Paths = append(out.Paths, ps)
		if p.Alive() {
			out.AlivePaths++
		}
		out.TotalPacingBps += ps.PacingRateBps
		out.TotalDeliveredBps += ps.DeliveredBps
	}
	if ds, ok := src.(degradationSource); ok {
		stage, pressure := ds.DegradationStage()
		out.DegradationStage = stage.String()
		out.DegradationPressure = pressure
	}
	if rs, ok := src.(retransmitSource); ok {
		out.Acked, out.Lost, out.Late = rs.RetransmitStats()
	}
	if bs, ok := src.(bufferSource); ok {
		out.LatePackets, out.DuplicatePackets, out.RestartCount = bs.BufferStats()
	}
	return out
}
