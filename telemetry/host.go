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
	"context"
	"os"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/shirou/gopsutil/process"
)

// DefaultHostSampleInterval is how often HostPressureLoop samples this
// process's CPU and file-descriptor usage.
const DefaultHostSampleInterval = 2 * time.Second

// MaxExpectedFDs is the file-descriptor count HostPressureLoop treats as
// "fully loaded" for the FD component of the pressure score; one bonded
// session holds a handful of sockets per path, so a few hundred in use
// already indicates an unusual number of concurrent sessions on the
// host.
const MaxExpectedFDs = 512

// pressureSink is implemented by Sender; Receiver has no scheduler and
// so nothing to feed host pressure into.
type pressureSink interface {
	UpdatePressure(pressure float64)
}

// HostPressureLoop samples this process's CPU percent and open
// file-descriptor count every interval and folds a combined [0,1]
// pressure score into sink's degradation gate, the same metrics
// SysStats.CollectRuntimeStats gathers for reporting, repurposed here to
// drive admission control instead of a dashboard.
func HostPressureLoop(ctx context.Context, sink pressureSink, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultHostSampleInterval
	}
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		cpuPct, err := proc.Percent(0)
		if err != nil {
			log.WithError(err).Debug("telemetry: cpu sample failed")
			continue
		}
		numFDs, err := proc.NumFDs()
		if err != nil {
			log.WithError(err).Debug("telemetry: fd sample failed")
			continue
		}

		cpuScore := cpuPct / 100
		if cpuScore > 1 {
			cpuScore = 1
		}
		fdScore := float64(numFDs) / MaxExpectedFDs
		if fdScore > 1 {
			fdScore = 1
		}
		pressure := cpuScore
		if fdScore > pressure {
			pressure = fdScore
		}
		sink.UpdatePressure(pressure)
	}
}
