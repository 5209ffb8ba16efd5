// Package transport correlates gateway command request/response pairs
// and decodes the RECEIVE_REQUEST/RECEIVE_RESPONSE packet-number
// continuation scheme.
package transport

import (
	"time"

	"github.com/tigotap/tigotap/frame"
)

// PendingCommand is a stored COMMAND_REQUEST awaiting its response.
type PendingCommand struct {
	PacketType byte
	Payload    []byte
}

// ReceiveResponse is the decoded variable header of a RECEIVE_RESPONSE
// frame, plus the capture time recorded by the paired RECEIVE_REQUEST
// (if any) and the remaining PV-packet bytes.
type ReceiveResponse struct {
	SlotCounter     frame.SlotCounter
	CaptureTime     time.Time
	HaveCaptureTime bool
	Data            []byte
}

// CommandPair is a correlated COMMAND_REQUEST/COMMAND_RESPONSE pair.
type CommandPair struct {
	RequestType     byte
	RequestPayload  []byte
	ResponseType    byte
	ResponsePayload []byte
}

type gatewayRx struct {
	packetNumber     uint16
	havePacketNumber bool
	captureTime      time.Time
	haveCaptureTime  bool
}

type gatewayCmd struct {
	lastSeq     byte
	haveLastSeq bool
	pending     [256]*PendingCommand
}

// Correlator tracks, per gateway, the outstanding RECEIVE_REQUEST
// capture time and the awaiting-command map. The awaiting-command map
// is a fixed 256-entry array indexed by sequence number, since a
// (GatewayID, seq) pair has bounded cardinality and the array avoids
// allocating on the hot path.
type Correlator struct {
	rx  map[frame.GatewayID]*gatewayRx
	cmd map[frame.GatewayID]*gatewayCmd
}

// NewCorrelator returns an empty Correlator.
func NewCorrelator() *Correlator {
	return &Correlator{
		rx:  make(map[frame.GatewayID]*gatewayRx),
		cmd: make(map[frame.GatewayID]*gatewayCmd),
	}
}

// ReceiveRequest records the packet number and capture time carried by
// a host->gateway RECEIVE_REQUEST. Returns false if the payload is too
// short to contain a packet number.
func (c *Correlator) ReceiveRequest(gw frame.GatewayID, payload []byte, now time.Time) bool {
	if len(payload) < 5 {
		return false
	}
	packetNumber := uint16(payload[2])<<8 | uint16(payload[3])
	c.rx[gw] = &gatewayRx{
		packetNumber:     packetNumber,
		havePacketNumber: true,
		captureTime:      now,
		haveCaptureTime:  true,
	}
	return true
}

// ReceiveResponse decodes a gateway->host RECEIVE_RESPONSE's variable
// header: the optional-field bitmap, the packet number (absolute or
// low-byte continuation), and the trailing SlotCounter, returning the
// remaining PV-packet bytes. It returns false if no RECEIVE_REQUEST has
// been recorded for gw yet, or the header is truncated or malformed.
func (c *Correlator) ReceiveResponse(gw frame.GatewayID, payload []byte) (ReceiveResponse, bool) {
	rxState, ok := c.rx[gw]
	if !ok || !rxState.havePacketNumber {
		return ReceiveResponse{}, false
	}
	if len(payload) < 4 {
		return ReceiveResponse{}, false
	}

	statusType := uint16(payload[0])<<8 | uint16(payload[1])
	if statusType&0x00E0 != 0x00E0 {
		return ReceiveResponse{}, false
	}

	offset := 2
	if statusType&0x0001 == 0 {
		offset++
	}
	if statusType&0x0002 == 0 {
		offset++
	}
	if statusType&0x0004 == 0 {
		offset += 2
	}
	if statusType&0x0008 == 0 {
		offset += 2
	}
	if offset >= len(payload) {
		return ReceiveResponse{}, false
	}

	var packetNumber uint16
	if statusType&0x0010 == 0 {
		if offset+2 > len(payload) {
			return ReceiveResponse{}, false
		}
		packetNumber = uint16(payload[offset])<<8 | uint16(payload[offset+1])
		offset += 2
	} else {
		if offset+1 > len(payload) {
			return ReceiveResponse{}, false
		}
		lo := payload[offset]
		offset++
		packetNumber = interpretPacketNumberLo(lo, rxState.packetNumber)
	}

	if offset+2 > len(payload) {
		return ReceiveResponse{}, false
	}
	sc := frame.DecodeSlotCounter(payload[offset : offset+2])
	offset += 2

	rxState.packetNumber = packetNumber
	captureTime := rxState.captureTime
	haveCapture := rxState.haveCaptureTime
	rxState.haveCaptureTime = false

	return ReceiveResponse{
		SlotCounter:     sc,
		CaptureTime:     captureTime,
		HaveCaptureTime: haveCapture,
		Data:            append([]byte(nil), payload[offset:]...),
	}, true
}

// interpretPacketNumberLo expands a 1-byte packet number using the
// previous full number, wrapping the stored high byte when the new low
// byte appears to have wrapped around.
func interpretPacketNumberLo(newLo byte, old uint16) uint16 {
	oldHi := byte(old >> 8)
	oldLo := byte(old)
	newHi := oldHi
	if newLo < oldLo {
		newHi = oldHi + 1
	}
	return uint16(newHi)<<8 | uint16(newLo)
}

// CommandRequest stores a host->gateway COMMAND_REQUEST for later
// correlation with its response. A request carrying the same sequence
// number as the last recorded one overwrites the outstanding entry
// (retransmission) rather than duplicating it.
func (c *Correlator) CommandRequest(gw frame.GatewayID, payload []byte) bool {
	if len(payload) < 5 {
		return false
	}
	packetType := payload[3]
	seq := payload[4]

	gwCmd, ok := c.cmd[gw]
	if !ok {
		gwCmd = &gatewayCmd{}
		c.cmd[gw] = gwCmd
	}
	gwCmd.lastSeq = seq
	gwCmd.haveLastSeq = true
	gwCmd.pending[seq] = &PendingCommand{
		PacketType: packetType,
		Payload:    append([]byte(nil), payload[5:]...),
	}
	return true
}

// CommandResponse correlates a gateway->host COMMAND_RESPONSE with its
// stored request by (gateway, sequence number). An unmatched response
// (no stored request) returns false and is silently ignored by the
// caller, per the transport's error-handling policy.
func (c *Correlator) CommandResponse(gw frame.GatewayID, payload []byte) (CommandPair, bool) {
	if len(payload) < 5 {
		return CommandPair{}, false
	}
	respType := payload[3]
	seq := payload[4]

	gwCmd, ok := c.cmd[gw]
	if !ok {
		return CommandPair{}, false
	}
	pending := gwCmd.pending[seq]
	if pending == nil {
		return CommandPair{}, false
	}
	gwCmd.pending[seq] = nil

	return CommandPair{
		RequestType:     pending.PacketType,
		RequestPayload:  pending.Payload,
		ResponseType:    respType,
		ResponsePayload: append([]byte(nil), payload[5:]...),
	}, true
}
