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

package wire

import (
	"bytes"
	"errors"
	"math/rand"
	"net"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/stretchr/testify/require"

	"github.com/bondwire/bond/internal/pcapreplay"
)

// fuzzCorpus seeds the mutation loop with known-interesting inputs: an
// empty slice, a one-byte truncated header, an all-zero fixed header
// with no sequence varint after it, an all-0xFF buffer whose version is
// unsupported, and a handful of validly-encoded packets so
// mutation starts from both well-formed and malformed material.
func fuzzCorpus(t *testing.T) [][]byte {
	t.Helper()
	var corpus [][]byte
	corpus = append(corpus,
		nil,
		[]byte{0x00},
		make([]byte, FixedHeaderLen),
		bytes.Repeat([]byte{0xFF}, FixedHeaderLen+8),
	)

	for _, seq := range []uint64{0, 300, MaxVarInt} {
		for _, ctl := range []bool{false, true} {
			h := Header{Version: Version, Control: ctl, Sequence: seq}
			payload := []byte("stream-payload")
			enc, err := Encode(h, payload)
			require.NoError(t, err)
			corpus = append(corpus, enc)
		}
	}
	return corpus
}

// mutate flips, drops, or truncates bytes of b, returning a fresh slice.
func mutate(rng *rand.Rand, b []byte) []byte {
	out := append([]byte(nil), b...)
	switch {
	case len(out) == 0:
		return []byte{byte(rng.Intn(256))}
	case rng.Intn(3) == 0:
		return out[:rng.Intn(len(out)+1)]
	default:
		n := 1 + rng.Intn(4)
		for i := 0; i < n; i++ {
			out[rng.Intn(len(out))] = byte(rng.Intn(256))
		}
		return out
	}
}

// assertOnlyDocumentedErrors decodes b and fails the test if Decode
// panics or returns anything other than nil or one of the four
// documented error kinds.
func assertOnlyDocumentedErrors(t *testing.T, b []byte) {
	t.Helper()
	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("wire.Decode panicked on input %x: %v", b, r)
		}
	}()
	_, _, err := Decode(b, 0)
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, ErrMalformed),
		errors.Is(err, ErrUnsupportedVersion),
		errors.Is(err, ErrTruncated),
		errors.Is(err, ErrBadVarint):
		return
	default:
		t.Fatalf("wire.Decode returned an undocumented error on input %x: %v", b, err)
	}
}

// TestDecodeOnlyReturnsDocumentedErrors runs a fixed corpus plus a
// randomized mutation loop against Decode, the fuzz-equivalent property
// test for scenario 6: no input, however malformed, should ever produce
// a panic or an error outside the four documented kinds.
func TestDecodeOnlyReturnsDocumentedErrors(t *testing.T) {
	corpus := fuzzCorpus(t)
	for _, b := range corpus {
		assertOnlyDocumentedErrors(t, b)
	}

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 2000; i++ {
		seed := corpus[rng.Intn(len(corpus))]
		assertOnlyDocumentedErrors(t, mutate(rng, seed))
	}
}

// syntheticCapture builds a small in-memory pcap recording of Ethernet/
// IPv4/UDP frames carrying a mix of valid and truncated bonded-session
// packets, standing in for a real captured fixture.
func syntheticCapture(t *testing.T) []byte {
	t.Helper()

	valid, err := Encode(Header{Version: Version, Sequence: 7}, []byte("hello"))
	require.NoError(t, err)
	truncated := valid[:FixedHeaderLen-1]
	badVersion, err := Encode(Header{Version: Version, Sequence: 1}, []byte("x"))
	require.NoError(t, err)
	badVersion[0] |= 0xC0 // corrupt the version bits

	var buf bytes.Buffer
	w := pcapgo.NewWriter(&buf)
	require.NoError(t, w.WriteFileHeader(65536, layers.LinkTypeEthernet))

	now := time.Unix(1700000000, 0)
	for i, payload := range [][]byte{valid, truncated, badVersion} {
		frame := gopacket.NewSerializeBuffer()
		opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
		eth := &layers.Ethernet{
			SrcMAC:       net.HardwareAddr{0x02, 0, 0, 0, 0, byte(i)},
			DstMAC:       net.HardwareAddr{0x02, 0, 0, 0, 0, 0xFF},
			EthernetType: layers.EthernetTypeIPv4,
		}
		ip := &layers.IPv4{
			Version:  4,
			IHL:      5,
			TTL:      64,
			Protocol: layers.IPProtocolUDP,
			SrcIP:    net.IPv4(10, 0, 0, 1),
			DstIP:    net.IPv4(10, 0, 0, 2),
		}
		udp := &layers.UDP{SrcPort: 5000, DstPort: 6000}
		require.NoError(t, udp.SetNetworkLayerForChecksum(ip))
		require.NoError(t, gopacket.SerializeLayers(frame, opts, eth, ip, udp, gopacket.Payload(payload)))

		require.NoError(t, w.WritePacket(gopacket.CaptureInfo{
			Timestamp:     now.Add(time.Duration(i) * time.Millisecond),
			CaptureLength: len(frame.Bytes()),
			Length:        len(frame.Bytes()),
		}, frame.Bytes()))
	}
	return buf.Bytes()
}

// TestDecodeHandlesPcapReplayedPayloads replays a synthetic pcap capture
// through internal/pcapreplay and runs every extracted UDP payload
// through the same documented-errors-only property, the way a real
// testdata/*.pcap fixture would be used as an additional corpus source
// per the fuzz scenario's optional pcap replay path.
func TestDecodeHandlesPcapReplayedPayloads(t *testing.T) {
	corpus, err := pcapreplay.Open(bytes.NewReader(syntheticCapture(t)))
	require.NoError(t, err)

	payloads, err := corpus.All()
	require.NoError(t, err)
	require.Len(t, payloads, 3)

	for _, p := range payloads {
		assertOnlyDocumentedErrors(t, p)
	}
}
