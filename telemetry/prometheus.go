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

package telemetry

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector adapts a Source to prometheus.Collector. It declares a fixed
// set of metric descriptors up front and fills their values from the
// current Snapshot on every Collect call.
type Collector struct {
	src Source

	sessionID *prometheus.Desc
	alive     *prometheus.Desc
	pacing    *prometheus.Desc
	delivered *prometheus.Desc
	pressure  *prometheus.Desc

	pathRTT   *prometheus.Desc
	pathLoss  *prometheus.Desc
	pathRate  *prometheus.Desc
	pathBw    *prometheus.Desc
	pathState *prometheus.Desc
}

// NewCollector returns a Collector reading from src on every Collect
// call; callers register it with a prometheus.Registry and serve it via
// promhttp.
func NewCollector(src Source) *Collector {
	return &Collector{
		src:       src,
		sessionID: prometheus.NewDesc("bond_session_uptime_seconds", "Seconds since the session started.", nil, nil),
		alive:     prometheus.NewDesc("bond_alive_paths", "Number of paths not in the dead state.", nil, nil),
		pacing:    prometheus.NewDesc("bond_total_pacing_bps", "Sum of every path's congestion-derived pacing rate.", nil, nil),
		delivered: prometheus.NewDesc("bond_total_delivered_bps", "Sum of every path's smoothed delivered bitrate.", nil, nil),
		pressure:  prometheus.NewDesc("bond_degradation_pressure", "Host-pressure score (CPU and file descriptors) driving scheduler degradation.", nil, nil),
		pathRTT:   prometheus.NewDesc("bond_path_smoothed_rtt_seconds", "Smoothed round-trip time.", []string{"path"}, nil),
		pathLoss:  prometheus.NewDesc("bond_path_smoothed_loss", "Smoothed loss rate (slow EWMA).", []string{"path"}, nil),
		pathRate:  prometheus.NewDesc("bond_path_pacing_rate_bps", "Congestion-derived pacing rate.", []string{"path"}, nil),
		pathBw:    prometheus.NewDesc("bond_path_bottleneck_bw_bps", "Estimated bottleneck bandwidth.", []string{"path"}, nil),
		pathState: prometheus.NewDesc("bond_path_state", "1 if the path is currently in the labeled lifecycle state.", []string{"path", "state"}, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.sessionID
	ch <- c.alive
	ch <- c.pacing
	ch <- c.delivered
	ch <- c.pressure
	ch <- c.pathRTT
	ch <- c.pathLoss
	ch <- c.pathRate
	ch <- c.pathBw
	ch <- c.pathState
}

// Collect implements prometheus.Collector, taking a fresh Snapshot on
// every scrape.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	snap := Snapshot(c.src)

	ch <- prometheus.MustNewConstMetric(c.sessionID, prometheus.CounterValue, snap.UptimeSeconds)
	ch <- prometheus.MustNewConstMetric(c.alive, prometheus.GaugeValue, float64(snap.AlivePaths))
	ch <- prometheus.MustNewConstMetric(c.pacing, prometheus.GaugeValue, snap.TotalPacingBps)
	ch <- prometheus.MustNewConstMetric(c.delivered, prometheus.GaugeValue, snap.TotalDeliveredBps)
	ch <- prometheus.MustNewConstMetric(c.pressure, prometheus.GaugeValue, snap.DegradationPressure)

	for _, p := range snap.Paths {
		label := strconv.Itoa(int(p.ID))
		ch <- prometheus.MustNewConstMetric(c.pathRTT, prometheus.GaugeValue, float64(p.SmoothedRTTMicros)/1e6, label)
		ch <- prometheus.MustNewConstMetric(c.pathLoss, prometheus.GaugeValue, p.SmoothedLossSlow, label)
		ch <- prometheus.MustNewConstMetric(c.pathRate, prometheus.GaugeValue, p.PacingRateBps, label)
		ch <- prometheus.MustNewConstMetric(c.pathBw, prometheus.GaugeValue, p.BottleneckBwBps, label)
		ch <- prometheus.MustNewConstMetric(c.pathState, prometheus.GaugeValue, 1, label, p.State)
	}
}
