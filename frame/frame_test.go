package frame

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCRC16Vectors(t *testing.T) {
	assert.Equal(t, uint16(0x8408), CRC16(nil))
	assert.Equal(t, uint16(15191), CRC16([]byte{0x92}))
	assert.Equal(t, uint16(14216), CRC16([]byte{0x92, 0x01}))
}

func TestCRC16Deterministic(t *testing.T) {
	body := []byte{0x01, 0x02, 0x03, 0x04}
	assert.Equal(t, CRC16(body), CRC16(body))
}

func TestCRC16DiffersOnDifferentBuffers(t *testing.T) {
	assert.NotEqual(t, CRC16([]byte{0x01}), CRC16([]byte{0x02}))
}

var knownAddress = LongAddress{0x04, 0xC0, 0x5B, 0x30, 0x00, 0x02, 0xBE, 0x16}

func TestEncodeBarcodeKnownAddress(t *testing.T) {
	barcode, ok := EncodeBarcode(knownAddress)
	require.True(t, ok)
	assert.Contains(t, barcode, "-")
	assert.GreaterOrEqual(t, len(barcode), 5)
}

func TestBarcodeRoundTrip(t *testing.T) {
	barcode, ok := EncodeBarcode(knownAddress)
	require.True(t, ok)

	decoded, err := DecodeBarcode(barcode)
	require.NoError(t, err)
	assert.Equal(t, knownAddress, decoded)
}

func TestEncodeBarcodeRejectsNonTigoOUI(t *testing.T) {
	addr := LongAddress{0x00, 0x11, 0x5B, 0x30, 0x00, 0x02, 0xBE, 0x16}
	_, ok := EncodeBarcode(addr)
	assert.False(t, ok)
}

func TestBarcodeFromAddress(t *testing.T) {
	assert.Equal(t, "", BarcodeFromAddress([]byte{0x01, 0x02}))

	barcode := BarcodeFromAddress(knownAddress[:])
	assert.NotEmpty(t, barcode)
}

func TestDecodeBarcodeRejectsBadCheckChar(t *testing.T) {
	barcode, ok := EncodeBarcode(knownAddress)
	require.True(t, ok)

	mangled := []byte(barcode)
	last := mangled[len(mangled)-1]
	for _, c := range []byte(barcodeAlphabet) {
		if c != last {
			mangled[len(mangled)-1] = c
			break
		}
	}

	_, err := DecodeBarcode(string(mangled))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CRC mismatch")
}

func TestDecodeBarcodeRejectsTooShort(t *testing.T) {
	_, err := DecodeBarcode("5-A")
	require.Error(t, err)
}

func TestDecodeBarcodeRejectsMissingDash(t *testing.T) {
	_, err := DecodeBarcode("5X300002BE16Z")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dash")
}

func TestSlotCounterEpochWrap(t *testing.T) {
	sc1 := SlotCounter(uint16(3)<<14 | uint16(MaxSlotNumber))
	sc2 := SlotCounter(uint16(0)<<14 | uint16(0))
	assert.Equal(t, 1, sc2.SlotsSince(sc1))
}

func TestSlotCounterSameEpoch(t *testing.T) {
	sc1 := SlotCounter(uint16(1)<<14 | uint16(100))
	sc2 := SlotCounter(uint16(1)<<14 | uint16(150))
	assert.Equal(t, 50, sc2.SlotsSince(sc1))
}

func TestDecodeAddress(t *testing.T) {
	addr := DecodeAddress([]byte{0x80, 0x01})
	assert.True(t, addr.IsFrom)
	assert.Equal(t, GatewayID(1), addr.GatewayID)
	assert.Contains(t, addr.String(), "From")
}

func TestFrameTypeString(t *testing.T) {
	assert.Equal(t, "RECEIVE_REQUEST", FrameTypeReceiveRequest.String())
	assert.Contains(t, FrameType(0xFFFF).String(), "FT<0x")
}

func TestLongAddressString(t *testing.T) {
	assert.Equal(t, "04:C0:5B:30:00:02:BE:16", knownAddress.String())
	assert.True(t, knownAddress.HasTigoOUI())
}
