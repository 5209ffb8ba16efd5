// Package app implements the PV application-layer decoder: the
// per-packet header format carried inside a RECEIVE_RESPONSE, the
// 13-byte PowerReport codec, and the event types the parser emits.
package app

import (
	"fmt"
	"math"

	"github.com/tigotap/tigotap/frame"
)

// PacketType is the raw u8 PV application packet type.
type PacketType byte

// The full packet-type vocabulary observed on the PV mesh. Only
// STRING_REQUEST/RESPONSE, TOPOLOGY_REPORT, NODE_TABLE_REQUEST/RESPONSE
// and POWER_REPORT drive event emission; the rest are named here purely
// for readable logs, matching the documented "unknown packet type:
// ignore" policy.
const (
	PacketTypeStringRequest              PacketType = 0x06
	PacketTypeStringResponse             PacketType = 0x07
	PacketTypeTopologyReport             PacketType = 0x09
	PacketTypeGatewayRadioConfigRequest  PacketType = 0x0D
	PacketTypeGatewayRadioConfigResponse PacketType = 0x0E
	PacketTypePVConfigRequest            PacketType = 0x13
	PacketTypePVConfigResponse           PacketType = 0x18
	PacketTypeBroadcast                  PacketType = 0x22
	PacketTypeBroadcastAck               PacketType = 0x23
	PacketTypeNodeTableRequest           PacketType = 0x26
	PacketTypeNodeTableResponse          PacketType = 0x27
	PacketTypeLongNetworkStatusRequest   PacketType = 0x2D
	PacketTypeNetworkStatusRequest       PacketType = 0x2E
	PacketTypeNetworkStatusResponse      PacketType = 0x2F
	PacketTypePowerReport                PacketType = 0x31
)

var packetTypeNames = map[PacketType]string{
	PacketTypeStringRequest:              "STRING_REQUEST",
	PacketTypeStringResponse:             "STRING_RESPONSE",
	PacketTypeTopologyReport:             "TOPOLOGY_REPORT",
	PacketTypeGatewayRadioConfigRequest:  "GATEWAY_RADIO_CONFIGURATION_REQUEST",
	PacketTypeGatewayRadioConfigResponse: "GATEWAY_RADIO_CONFIGURATION_RESPONSE",
	PacketTypePVConfigRequest:            "PV_CONFIGURATION_REQUEST",
	PacketTypePVConfigResponse:           "PV_CONFIGURATION_RESPONSE",
	PacketTypeBroadcast:                  "BROADCAST",
	PacketTypeBroadcastAck:               "BROADCAST_ACK",
	PacketTypeNodeTableRequest:           "NODE_TABLE_REQUEST",
	PacketTypeNodeTableResponse:          "NODE_TABLE_RESPONSE",
	PacketTypeLongNetworkStatusRequest:   "LONG_NETWORK_STATUS_REQUEST",
	PacketTypeNetworkStatusRequest:       "NETWORK_STATUS_REQUEST",
	PacketTypeNetworkStatusResponse:      "NETWORK_STATUS_RESPONSE",
	PacketTypePowerReport:                "POWER_REPORT",
}

// String renders a readable packet-type name, falling back to the raw
// hex value for anything outside the named vocabulary.
func (t PacketType) String() string {
	if name, ok := packetTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("PT<0x%02X>", byte(t))
}

// ReceivedPacketHeader is the fixed 7-byte header prefixing every PV
// packet embedded in a RECEIVE_RESPONSE payload.
type ReceivedPacketHeader struct {
	PacketType   PacketType
	NodeAddress  frame.NodeAddress
	ShortAddress uint16
	DSN          byte
	DataLength   byte
}

const receivedPacketHeaderSize = 7

func decodeReceivedPacketHeader(b []byte) ReceivedPacketHeader {
	return ReceivedPacketHeader{
		PacketType:   PacketType(b[0]),
		NodeAddress:  frame.NodeAddress(uint16(b[1])<<8 | uint16(b[2])),
		ShortAddress: uint16(b[3])<<8 | uint16(b[4]),
		DSN:          b[5],
		DataLength:   b[6],
	}
}

// PVPacket is one decoded header plus its payload slice, as yielded by
// IteratePackets.
type PVPacket struct {
	Header ReceivedPacketHeader
	Data   []byte
}

// IteratePackets walks the back-to-back PV packets embedded in a
// RECEIVE_RESPONSE payload (after its variable header has been
// stripped). Iteration stops silently at the first truncated header or
// truncated payload, per the spec's "stop decoding current
// RECEIVE_RESPONSE" truncation policy.
func IteratePackets(data []byte) []PVPacket {
	var out []PVPacket
	offset := 0
	for offset < len(data) {
		if offset+receivedPacketHeaderSize > len(data) {
			break
		}
		header := decodeReceivedPacketHeader(data[offset : offset+receivedPacketHeaderSize])
		dataLen := int(header.DataLength)
		start := offset + receivedPacketHeaderSize
		if start+dataLen > len(data) {
			break
		}
		out = append(out, PVPacket{Header: header, Data: data[start : start+dataLen]})
		offset = start + dataLen
	}
	return out
}

// U12Pair is two 12-bit values packed into 3 bytes.
type U12Pair struct {
	First  uint16
	Second uint16
}

func decodeU12Pair(b []byte) U12Pair {
	return U12Pair{
		First:  uint16(b[0])<<4 | uint16(b[1]>>4),
		Second: uint16(b[1]&0x0F)<<8 | uint16(b[2]),
	}
}

// PowerReport is a decoded 13-byte solar optimizer power measurement,
// still in raw scaled units.
type PowerReport struct {
	VoltageInOut U12Pair
	DutyCycleRaw byte
	CurrentTemp  U12Pair
	Unknown      [3]byte
	SlotCounter  frame.SlotCounter
	RSSI         byte
}

const powerReportSize = 13

// DecodePowerReport decodes the leading 13 bytes of data. Payloads of
// exactly 15 bytes (an extended variant with unspecified trailing
// bytes) are accepted the same way, since only the leading 13 bytes are
// ever consumed.
func DecodePowerReport(data []byte) (PowerReport, bool) {
	if len(data) < powerReportSize {
		return PowerReport{}, false
	}
	return PowerReport{
		VoltageInOut: decodeU12Pair(data[0:3]),
		DutyCycleRaw: data[3],
		CurrentTemp:  decodeU12Pair(data[4:7]),
		Unknown:      [3]byte{data[7], data[8], data[9]},
		SlotCounter:  frame.DecodeSlotCounter(data[10:12]),
		RSSI:         data[12],
	}, true
}

// VoltageIn returns the input voltage in volts.
func (r PowerReport) VoltageIn() float64 { return float64(r.VoltageInOut.First) / 20.0 }

// VoltageOut returns the output voltage in volts.
func (r PowerReport) VoltageOut() float64 { return float64(r.VoltageInOut.Second) / 10.0 }

// Current returns the input current in amps.
func (r PowerReport) Current() float64 { return float64(r.CurrentTemp.First) / 200.0 }

// Temperature returns the sign-extended 12-bit temperature in °C.
func (r PowerReport) Temperature() float64 {
	raw := r.CurrentTemp.Second
	if raw&0x800 != 0 {
		signed := int16(raw | 0xF000)
		return float64(signed) / 10.0
	}
	return float64(raw) / 10.0
}

// DutyCycle returns the DC-DC converter duty cycle in [0, 1].
func (r PowerReport) DutyCycle() float64 { return float64(r.DutyCycleRaw) / 255.0 }

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
