// Package frame implements the link-layer byte types shared by every
// higher component: gateway/node identifiers, the frame envelope, and
// the fixed-width codecs used to decode it.
package frame

import (
	"encoding/binary"
	"fmt"
)

// GatewayID is a 15-bit gateway identifier (0-32767).
type GatewayID uint16

// MaxGatewayID is the largest value a GatewayID may hold.
const MaxGatewayID GatewayID = 0x7FFF

// NodeAddress is a PV-network address (0-65535). 0 is the broadcast
// sentinel.
type NodeAddress uint16

// Broadcast is the reserved NodeAddress used for broadcast traffic.
const Broadcast NodeAddress = 0

// NodeID is a NodeAddress known not to be the broadcast sentinel.
type NodeID = NodeAddress

// LongAddress is an IEEE 802.15.4 64-bit MAC address.
type LongAddress [8]byte

// String renders the address as colon-separated uppercase hex.
func (a LongAddress) String() string {
	return fmt.Sprintf("%02X:%02X:%02X:%02X:%02X:%02X:%02X:%02X",
		a[0], a[1], a[2], a[3], a[4], a[5], a[6], a[7])
}

// TigoOUI is the first two bytes of every Tigo-manufactured LongAddress.
var TigoOUI = [2]byte{0x04, 0xC0}

// HasTigoOUI reports whether addr carries the Tigo manufacturer prefix.
func (a LongAddress) HasTigoOUI() bool {
	return a[0] == TigoOUI[0] && a[1] == TigoOUI[1]
}

// Address is a gateway link address: a direction bit plus a GatewayID.
type Address struct {
	GatewayID GatewayID
	IsFrom    bool // true: gateway->host, false: host->gateway
}

// DecodeAddress decodes a big-endian u16 link address.
func DecodeAddress(b []byte) Address {
	v := binary.BigEndian.Uint16(b)
	return Address{
		GatewayID: GatewayID(v & 0x7FFF),
		IsFrom:    v&0x8000 != 0,
	}
}

// String renders the address the way the teacher's APCI types render
// their control fields: a short tag plus the wrapped value.
func (a Address) String() string {
	dir := "To"
	if a.IsFrom {
		dir = "From"
	}
	return fmt.Sprintf("%s(GatewayID(%d))", dir, a.GatewayID)
}

// FrameType is the raw u16 link-layer frame type.
type FrameType uint16

// Gateway link-layer frame types. Only a subset drives parser state
// (see the parser package's dispatchFrame); the rest are named here for
// readable logs.
const (
	FrameTypeReceiveRequest         FrameType = 0x0148
	FrameTypeReceiveResponse        FrameType = 0x0149
	FrameTypeCommandRequest         FrameType = 0x0B0F
	FrameTypeCommandResponse        FrameType = 0x0B10
	FrameTypePingRequest            FrameType = 0x0B00
	FrameTypePingResponse           FrameType = 0x0B01
	FrameTypeEnumerationStartReq    FrameType = 0x0014
	FrameTypeEnumerationStartResp   FrameType = 0x0015
	FrameTypeEnumerationRequest     FrameType = 0x0038
	FrameTypeEnumerationResponse    FrameType = 0x0039
	FrameTypeAssignGatewayIDReq     FrameType = 0x003C
	FrameTypeAssignGatewayIDResp    FrameType = 0x003D
	FrameTypeIdentifyRequest        FrameType = 0x003A
	FrameTypeIdentifyResponse       FrameType = 0x003B
	FrameTypeVersionRequest         FrameType = 0x000A
	FrameTypeVersionResponse        FrameType = 0x000B
	FrameTypeEnumerationEndRequest  FrameType = 0x0E02
	FrameTypeEnumerationEndResponse FrameType = 0x0006
)

var frameTypeNames = map[FrameType]string{
	FrameTypeReceiveRequest:         "RECEIVE_REQUEST",
	FrameTypeReceiveResponse:        "RECEIVE_RESPONSE",
	FrameTypeCommandRequest:         "COMMAND_REQUEST",
	FrameTypeCommandResponse:        "COMMAND_RESPONSE",
	FrameTypePingRequest:            "PING_REQUEST",
	FrameTypePingResponse:           "PING_RESPONSE",
	FrameTypeEnumerationStartReq:    "ENUMERATION_START_REQUEST",
	FrameTypeEnumerationStartResp:   "ENUMERATION_START_RESPONSE",
	FrameTypeEnumerationRequest:     "ENUMERATION_REQUEST",
	FrameTypeEnumerationResponse:    "ENUMERATION_RESPONSE",
	FrameTypeAssignGatewayIDReq:     "ASSIGN_GATEWAY_ID_REQUEST",
	FrameTypeAssignGatewayIDResp:    "ASSIGN_GATEWAY_ID_RESPONSE",
	FrameTypeIdentifyRequest:        "IDENTIFY_REQUEST",
	FrameTypeIdentifyResponse:       "IDENTIFY_RESPONSE",
	FrameTypeVersionRequest:         "VERSION_REQUEST",
	FrameTypeVersionResponse:        "VERSION_RESPONSE",
	FrameTypeEnumerationEndRequest:  "ENUMERATION_END_REQUEST",
	FrameTypeEnumerationEndResponse: "ENUMERATION_END_RESPONSE",
}

// String renders a readable frame-type name, falling back to the raw
// hex value for anything outside the named vocabulary.
func (t FrameType) String() string {
	if name, ok := frameTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("FT<0x%04X>", uint16(t))
}

// Frame is a decoded, CRC-validated link-layer frame.
type Frame struct {
	Address   Address
	FrameType FrameType
	Payload   []byte
}

// SlotCounter is a 16-bit time-synchronization counter: a 2-bit epoch
// plus a 14-bit slot number.
type SlotCounter uint16

// SlotsPerEpoch and MaxSlotNumber bound the 14-bit slot-number field.
const (
	SlotsPerEpoch = 12000
	MaxSlotNumber = 11999
)

// DecodeSlotCounter decodes a big-endian u16 slot counter.
func DecodeSlotCounter(b []byte) SlotCounter {
	return SlotCounter(binary.BigEndian.Uint16(b))
}

// Epoch returns the 2-bit rolling epoch.
func (sc SlotCounter) Epoch() int {
	return int((sc >> 14) & 0x3)
}

// SlotNumber returns the 14-bit slot number within the epoch.
func (sc SlotCounter) SlotNumber() int {
	return int(sc & 0x3FFF)
}

// SlotsSince returns the number of slots elapsed between past and sc,
// handling the modulo-4 epoch wrap.
func (sc SlotCounter) SlotsSince(past SlotCounter) int {
	epochDiff := ((sc.Epoch() - past.Epoch()) % 4 + 4) % 4
	switch epochDiff {
	case 0:
		return sc.SlotNumber() - past.SlotNumber()
	case 1:
		return (MaxSlotNumber - past.SlotNumber() + 1) + sc.SlotNumber()
	default:
		return epochDiff*SlotsPerEpoch + (sc.SlotNumber() - past.SlotNumber())
	}
}
