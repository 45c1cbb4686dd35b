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

// Package pcapreplay extracts UDP payloads from a pcap capture, for use
// as an additional, real-traffic-derived corpus source alongside a
// synthetic fuzz corpus: a capture of an actual bonded session mixed
// with whatever else the link carried that day exercises malformed
// inputs a randomized mutation loop might never construct.
package pcapreplay

import (
	"io"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

// Corpus reads successive UDP payloads out of a pcap (not pcapng)
// capture.
type Corpus struct {
	r *pcapgo.Reader
}

// Open returns a Corpus reading packets from r.
func Open(r io.Reader) (*Corpus, error) {
	pr, err := pcapgo.NewReader(r)
	if err != nil {
		return nil, err
	}
	return &Corpus{r: pr}, nil
}

// Next returns the next packet's UDP payload, skipping any packet with
// no UDP layer or an empty payload. It returns io.EOF once the capture
// is exhausted.
func (c *Corpus) Next() ([]byte, error) {
	for {
		data, _, err := c.r.ReadPacketData()
		if err != nil {
			return nil, err
		}
		packet := gopacket.NewPacket(data, c.r.LinkType(), gopacket.Lazy)
		layer := packet.Layer(layers.LayerTypeUDP)
		if layer == nil {
			continue
		}
		udp, ok := layer.(*layers.UDP)
		if !ok || len(udp.Payload) == 0 {
			continue
		}
		return udp.Payload, nil
	}
}

// All drains every remaining UDP payload in the capture.
func (c *Corpus) All() ([][]byte, error) {
	var out [][]byte
	for {
		payload, err := c.Next()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, append([]byte(nil), payload...))
	}
}
