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

package radio

import (
	"bytes"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"go.bug.st/serial"

	"github.com/bondwire/bond/congestion"
)

const (
	cmdSignalQuality = "AT+CSQ\r"
	pollInterval     = 2 * time.Second
)

// Mapping converts a raw signal/channel-quality pair into a physical
// bandwidth ceiling in bits per second. Operators supply one per modem
// model; BasicMapping is a conservative linear default.
type Mapping func(signalQuality, channelQuality int) (ceilingBps float64)

// BasicMapping treats signalQuality (0-31 per 3GPP AT+CSQ) as a linear
// fraction of a configured peak rate.
func BasicMapping(peakBps float64) Mapping {
	return func(signalQuality, _ int) float64 {
		if signalQuality < 0 {
			signalQuality = 0
		}
		if signalQuality > 31 {
			signalQuality = 31
		}
		return peakBps * float64(signalQuality) / 31.0
	}
}

// DeteriorationThreshold is the fractional drop in consecutive readings
// that flags the defensive sub-phase.
const DeteriorationThreshold = 0.3

// Poller periodically reads signal quality off a modem's serial port
// and updates a congestion.RadioHook, the same request/response command
// pattern the teacher's SA53 firmware tool uses over go.bug.st/serial.
type Poller struct {
	port    serial.Port
	hook    *congestion.RadioHook
	mapping Mapping

	lastCeiling float64
}

// NewPoller opens device at baud and returns a Poller feeding hook via
// mapping. Callers run Poller.Run in its own goroutine.
func NewPoller(device string, baud int, hook *congestion.RadioHook, mapping Mapping) (*Poller, error) {
	port, err := serial.Open(device, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, fmt.Errorf("radio: opening %s: %w", device, err)
	}
	return &Poller{port: port, hook: hook, mapping: mapping}, nil
}

// Close releases the underlying serial port.
func (p *Poller) Close() error {
	return p.port.Close()
}

// Run polls at pollInterval until stop is closed.
func (p *Poller) Run(stop <-chan struct{}) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := p.pollOnce(); err != nil {
				log.WithError(err).Warning("radio: poll failed")
			}
		}
	}
}

func (p *Poller) pollOnce() error {
	if _, err := p.port.Write([]byte(cmdSignalQuality)); err != nil {
		return fmt.Errorf("radio: writing command: %w", err)
	}
	buf := make([]byte, 256)
	n, err := p.port.Read(buf)
	if err != nil {
		return fmt.Errorf("radio: reading response: %w", err)
	}
	sq, cq, err := parseCSQ(buf[:n])
	if err != nil {
		return err
	}
	ceiling := p.mapping(sq, cq)
	defensive := p.lastCeiling > 0 && ceiling < p.lastCeiling*(1-DeteriorationThreshold)
	p.hook.Update(ceiling, defensive)
	p.lastCeiling = ceiling
	return nil
}

// parseCSQ extracts (signalQuality, channelQuality) from an
// "+CSQ: <rssi>,<ber>" response.
func parseCSQ(resp []byte) (int, int, error) {
	idx := bytes.Index(resp, []byte("+CSQ:"))
	if idx < 0 {
		return 0, 0, fmt.Errorf("radio: unexpected response %q", resp)
	}
	var rssi, ber int
	if _, err := fmt.Sscanf(string(resp[idx:]), "+CSQ: %d,%d", &rssi, &ber); err != nil {
		return 0, 0, fmt.Errorf("radio: parsing CSQ response %q: %w", resp, err)
	}
	return rssi, ber, nil
}
