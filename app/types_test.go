package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildHeader(pt PacketType, node uint16, short uint16, dsn byte, dataLen byte) []byte {
	return []byte{
		byte(pt),
		byte(node >> 8), byte(node),
		byte(short >> 8), byte(short),
		dsn,
		dataLen,
	}
}

func TestIteratePacketsSinglePacket(t *testing.T) {
	data := append(buildHeader(PacketTypePowerReport, 5, 0, 1, 3), 0xAA, 0xBB, 0xCC)
	packets := IteratePackets(data)
	require.Len(t, packets, 1)
	assert.Equal(t, PacketTypePowerReport, packets[0].Header.PacketType)
	assert.Equal(t, []byte{0xAA, 0xBB, 0xCC}, packets[0].Data)
}

func TestIteratePacketsMultiplePackets(t *testing.T) {
	var data []byte
	data = append(data, buildHeader(PacketTypeStringRequest, 1, 0, 1, 2)...)
	data = append(data, 0x01, 0x02)
	data = append(data, buildHeader(PacketTypeTopologyReport, 2, 0, 2, 1)...)
	data = append(data, 0x03)

	packets := IteratePackets(data)
	require.Len(t, packets, 2)
	assert.Equal(t, PacketTypeStringRequest, packets[0].Header.PacketType)
	assert.Equal(t, PacketTypeTopologyReport, packets[1].Header.PacketType)
	assert.Equal(t, []byte{0x03}, packets[1].Data)
}

func TestIteratePacketsStopsOnTruncatedHeader(t *testing.T) {
	data := []byte{byte(PacketTypePowerReport), 0x00}
	packets := IteratePackets(data)
	assert.Empty(t, packets)
}

func TestIteratePacketsStopsOnTruncatedData(t *testing.T) {
	header := buildHeader(PacketTypePowerReport, 1, 0, 1, 5)
	data := append(header, 0x01, 0x02) // claims 5 bytes, only 2 present
	packets := IteratePackets(data)
	assert.Empty(t, packets)
}

func TestIteratePacketsFirstGoodPacketKeptWhenSecondTruncated(t *testing.T) {
	var data []byte
	data = append(data, buildHeader(PacketTypeStringRequest, 1, 0, 1, 1)...)
	data = append(data, 0xAA)
	data = append(data, buildHeader(PacketTypePowerReport, 2, 0, 2, 13)...)
	data = append(data, 0x01, 0x02) // truncated second packet

	packets := IteratePackets(data)
	require.Len(t, packets, 1)
	assert.Equal(t, PacketTypeStringRequest, packets[0].Header.PacketType)
}

func TestDecodePowerReportExactValues(t *testing.T) {
	// voltage pair: first=800 (40.0V), second=400 (40.0V)
	// current/temp pair: first=500 (2.5A), second=0x19B=411 (41.1C, not sign-extended)
	data := []byte{
		0x32, 0x01, 0x90, // voltage_in_out
		128,              // duty cycle raw
		0x1F, 0x41, 0x9B, // current_temp
		0x00, 0x00, 0x00, // unknown
		0x00, 0x01, // slot counter
		0xC4, // rssi
	}

	report, ok := DecodePowerReport(data)
	require.True(t, ok)

	assert.InDelta(t, 40.0, report.VoltageIn(), 0.0001)
	assert.InDelta(t, 40.0, report.VoltageOut(), 0.0001)
	assert.InDelta(t, 2.5, report.Current(), 0.0001)
	assert.InDelta(t, 41.1, report.Temperature(), 0.0001)
	assert.InDelta(t, 128.0/255.0, report.DutyCycle(), 0.0001)
	assert.Equal(t, byte(0xC4), report.RSSI)
}

func TestDecodePowerReportNegativeTemperature(t *testing.T) {
	data := make([]byte, 13)
	// temp_raw = 0xFFF (sign bit set) -> -0.1C
	data[5] = 0x0F
	data[6] = 0xFF

	report, ok := DecodePowerReport(data)
	require.True(t, ok)
	assert.InDelta(t, -0.1, report.Temperature(), 0.0001)
}

func TestDecodePowerReportTooShort(t *testing.T) {
	_, ok := DecodePowerReport(make([]byte, 12))
	assert.False(t, ok)
}

func TestDecodePowerReportAcceptsExtendedLength(t *testing.T) {
	data := make([]byte, 15)
	_, ok := DecodePowerReport(data)
	assert.True(t, ok)
}

func TestPacketTypeStringKnown(t *testing.T) {
	assert.Equal(t, "POWER_REPORT", PacketTypePowerReport.String())
}

func TestPacketTypeStringUnknown(t *testing.T) {
	assert.Equal(t, "PT<0x01>", PacketType(0x01).String())
}
