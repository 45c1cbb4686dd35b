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

import "fmt"

// ControlSubtype identifies the body format of a control packet. It is
// the first byte of a control packet's payload.
type ControlSubtype uint8

// Control subtypes, per the wire taxonomy.
const (
	ControlACK         ControlSubtype = 0x01
	ControlNACK        ControlSubtype = 0x02
	ControlRepair      ControlSubtype = 0x03
	ControlLinkReport  ControlSubtype = 0x04
	ControlRateCmd     ControlSubtype = 0x05
	ControlProbe       ControlSubtype = 0x06
	ControlSession     ControlSubtype = 0x07
)

func (s ControlSubtype) String() string {
	switch s {
	case ControlACK:
		return "ACK"
	case ControlNACK:
		return "NACK"
	case ControlRepair:
		return "REPAIR"
	case ControlLinkReport:
		return "LINK_REPORT"
	case ControlRateCmd:
		return "RATE_CMD"
	case ControlProbe:
		return "PROBE"
	case ControlSession:
		return "SESSION"
	default:
		return fmt.Sprintf("unknown(0x%02x)", uint8(s))
	}
}

// SessionSubsubtype distinguishes SESSION control packets.
type SessionSubsubtype uint8

// SESSION control subsubtypes.
const (
	SessionHandshake SessionSubsubtype = iota
	SessionTeardown
	SessionLinkJoin
	SessionLinkLeave
)

// AckBitmapBits is the width, in bits, of the selective-loss bitmap
// carried by an ACK control packet (K most recent losses).
const AckBitmapBits = 64

// ACKBody is the decoded body of a 0x01 ACK control packet: a cumulative
// sequence plus a selective bitmap of up to AckBitmapBits most recent
// losses below it (bit i set means Cumulative-1-i was lost).
type ACKBody struct {
	Cumulative uint64
	LossBitmap uint64
}

// MarshalBinaryTo encodes an ACKBody (subtype byte included) into b.
func (a *ACKBody) MarshalBinaryTo(b []byte) (int, error) {
	if len(b) < 1+8+8 {
		return 0, fmt.Errorf("wire: ACK buffer too small")
	}
	b[0] = byte(ControlACK)
	putUint64(b[1:9], a.Cumulative)
	putUint64(b[9:17], a.LossBitmap)
	return 17, nil
}

// UnmarshalACKBody decodes an ACKBody from payload, which must already
// have had the subtype byte stripped by the caller.
func UnmarshalACKBody(payload []byte) (ACKBody, error) {
	if len(payload) < 16 {
		return ACKBody{}, ErrTruncated
	}
	return ACKBody{
		Cumulative: getUint64(payload[0:8]),
		LossBitmap: getUint64(payload[8:16]),
	}, nil
}

// NACKRange is one (start, len) range of missing sequences.
type NACKRange struct {
	Start uint64
	Len   uint32
}

// NACKBody is the decoded body of a 0x02 NACK control packet: one or
// more (start, len) ranges.
type NACKBody struct {
	Ranges []NACKRange
}

// MarshalBinaryTo encodes a NACKBody (subtype byte included) into b.
func (n *NACKBody) MarshalBinaryTo(b []byte) (int, error) {
	need := 1 + 2 + len(n.Ranges)*12
	if len(b) < need {
		return 0, fmt.Errorf("wire: NACK buffer too small")
	}
	b[0] = byte(ControlNACK)
	putUint16(b[1:3], uint16(len(n.Ranges)))
	off := 3
	for _, r := range n.Ranges {
		putUint64(b[off:off+8], r.Start)
		putUint32(b[off+8:off+12], r.Len)
		off += 12
	}
	return off, nil
}

// UnmarshalNACKBody decodes a NACKBody from payload (subtype stripped).
func UnmarshalNACKBody(payload []byte) (NACKBody, error) {
	if len(payload) < 2 {
		return NACKBody{}, ErrTruncated
	}
	count := int(getUint16(payload[0:2]))
	off := 2
	need := off + count*12
	if len(payload) < need {
		return NACKBody{}, ErrTruncated
	}
	ranges := make([]NACKRange, count)
	for i := 0; i < count; i++ {
		ranges[i] = NACKRange{
			Start: getUint64(payload[off : off+8]),
			Len:   getUint32(payload[off+8 : off+12]),
		}
		off += 12
	}
	return NACKBody{Ranges: ranges}, nil
}

// RepairBody is the decoded body of a 0x03 REPAIR control packet: one
// erasure-coded symbol belonging to a coding generation.
type RepairBody struct {
	Generation   uint16
	SymbolIndex  uint8
	SourceCount  uint8
	RepairCount  uint8
	Symbol       []byte
}

// MarshalBinaryTo encodes a RepairBody (subtype byte included) into b.
func (r *RepairBody) MarshalBinaryTo(b []byte) (int, error) {
	need := 1 + 2 + 1 + 1 + 1 + len(r.Symbol)
	if len(b) < need {
		return 0, fmt.Errorf("wire: REPAIR buffer too small")
	}
	b[0] = byte(ControlRepair)
	putUint16(b[1:3], r.Generation)
	b[3] = r.SymbolIndex
	b[4] = r.SourceCount
	b[5] = r.RepairCount
	copy(b[6:], r.Symbol)
	return need, nil
}

// UnmarshalRepairBody decodes a RepairBody from payload (subtype
// stripped). The returned Symbol aliases payload; callers that need to
// retain it past the lifetime of the underlying packet buffer must copy.
func UnmarshalRepairBody(payload []byte) (RepairBody, error) {
	if len(payload) < 5 {
		return RepairBody{}, ErrTruncated
	}
	return RepairBody{
		Generation:  getUint16(payload[0:2]),
		SymbolIndex: payload[2],
		SourceCount: payload[3],
		RepairCount: payload[4],
		Symbol:      payload[5:],
	}, nil
}

// LinkReportBody is the decoded body of a 0x04 LINK_REPORT control
// packet: per-path observations the receiver returns to the sender.
type LinkReportBody struct {
	PathID          uint16
	SmoothedRTTUs   uint32
	RTTVarianceUs   uint32
	SmoothedLossPPM uint32
	DeliveredBps    uint64
}

// MarshalBinaryTo encodes a LinkReportBody (subtype byte included).
func (l *LinkReportBody) MarshalBinaryTo(b []byte) (int, error) {
	if len(b) < 23 {
		return 0, fmt.Errorf("wire: LINK_REPORT buffer too small")
	}
	b[0] = byte(ControlLinkReport)
	putUint16(b[1:3], l.PathID)
	putUint32(b[3:7], l.SmoothedRTTUs)
	putUint32(b[7:11], l.RTTVarianceUs)
	putUint32(b[11:15], l.SmoothedLossPPM)
	putUint64(b[15:23], l.DeliveredBps)
	return 23, nil
}

// UnmarshalLinkReportBody decodes a LinkReportBody (subtype stripped).
func UnmarshalLinkReportBody(payload []byte) (LinkReportBody, error) {
	if len(payload) < 22 {
		return LinkReportBody{}, ErrTruncated
	}
	return LinkReportBody{
		PathID:          getUint16(payload[0:2]),
		SmoothedRTTUs:   getUint32(payload[2:6]),
		RTTVarianceUs:   getUint32(payload[6:10]),
		SmoothedLossPPM: getUint32(payload[10:14]),
		DeliveredBps:    getUint64(payload[14:22]),
	}, nil
}

// RateCmdBody is the decoded body of a 0x05 RATE_CMD control packet.
type RateCmdBody struct {
	SuggestedBps uint64
}

// MarshalBinaryTo encodes a RateCmdBody (subtype byte included).
func (r *RateCmdBody) MarshalBinaryTo(b []byte) (int, error) {
	if len(b) < 9 {
		return 0, fmt.Errorf("wire: RATE_CMD buffer too small")
	}
	b[0] = byte(ControlRateCmd)
	putUint64(b[1:9], r.SuggestedBps)
	return 9, nil
}

// UnmarshalRateCmdBody decodes a RateCmdBody (subtype stripped).
func UnmarshalRateCmdBody(payload []byte) (RateCmdBody, error) {
	if len(payload) < 8 {
		return RateCmdBody{}, ErrTruncated
	}
	return RateCmdBody{SuggestedBps: getUint64(payload[0:8])}, nil
}

// ProbeBody is the decoded body of a 0x06 PROBE control packet, echoed
// with send/receive timestamps for RTT measurement.
type ProbeBody struct {
	Nonce     uint32
	SendTsUs  uint64
	EchoTsUs  uint64 // zero until echoed back by the peer
}

// MarshalBinaryTo encodes a ProbeBody (subtype byte included).
func (p *ProbeBody) MarshalBinaryTo(b []byte) (int, error) {
	if len(b) < 21 {
		return 0, fmt.Errorf("wire: PROBE buffer too small")
	}
	b[0] = byte(ControlProbe)
	putUint32(b[1:5], p.Nonce)
	putUint64(b[5:13], p.SendTsUs)
	putUint64(b[13:21], p.EchoTsUs)
	return 21, nil
}

// UnmarshalProbeBody decodes a ProbeBody (subtype stripped).
func UnmarshalProbeBody(payload []byte) (ProbeBody, error) {
	if len(payload) < 20 {
		return ProbeBody{}, ErrTruncated
	}
	return ProbeBody{
		Nonce:    getUint32(payload[0:4]),
		SendTsUs: getUint64(payload[4:12]),
		EchoTsUs: getUint64(payload[12:20]),
	}, nil
}

// SessionBody is the decoded body of a 0x07 SESSION control packet.
type SessionBody struct {
	Subsubtype    SessionSubsubtype
	SessionID     uint64
	MTU           uint16
	InitialEpoch  uint32
	Extensions    uint32 // bitmask of supported extensions
	PathID        uint16 // for LinkJoin/LinkLeave
}

// MarshalBinaryTo encodes a SessionBody (subtype byte included).
func (s *SessionBody) MarshalBinaryTo(b []byte) (int, error) {
	if len(b) < 22 {
		return 0, fmt.Errorf("wire: SESSION buffer too small")
	}
	b[0] = byte(ControlSession)
	b[1] = byte(s.Subsubtype)
	putUint64(b[2:10], s.SessionID)
	putUint16(b[10:12], s.MTU)
	putUint32(b[12:16], s.InitialEpoch)
	putUint32(b[16:20], s.Extensions)
	putUint16(b[20:22], s.PathID)
	return 22, nil
}

// UnmarshalSessionBody decodes a SessionBody (subtype stripped).
func UnmarshalSessionBody(payload []byte) (SessionBody, error) {
	if len(payload) < 21 {
		return SessionBody{}, ErrTruncated
	}
	return SessionBody{
		Subsubtype:   SessionSubsubtype(payload[0]),
		SessionID:    getUint64(payload[1:9]),
		MTU:          getUint16(payload[9:11]),
		InitialEpoch: getUint32(payload[11:15]),
		Extensions:   getUint32(payload[15:19]),
		PathID:       getUint16(payload[19:21]),
	}, nil
}

// PeekControlSubtype reads the subtype byte from the front of a control
// packet's payload without copying.
func PeekControlSubtype(payload []byte) (ControlSubtype, error) {
	if len(payload) < 1 {
		return 0, ErrTruncated
	}
	return ControlSubtype(payload[0]), nil
}

func putUint16(b []byte, v uint16) { b[0] = byte(v >> 8); b[1] = byte(v) }
func getUint16(b []byte) uint16    { return uint16(b[0])<<8 | uint16(b[1]) }

func putUint32(b []byte, v uint32) {
	b[0] = byte(v >> 24)
	b[1] = byte(v >> 16)
	b[2] = byte(v >> 8)
	b[3] = byte(v)
}
func getUint32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

func putUint64(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> uint(56-8*i))
	}
}
func getUint64(b []byte) uint64 {
	var v uint64
	for i := 0; i < 8; i++ {
		v = v<<8 | uint64(b[i])
	}
	return v
}
