package link

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tigotap/tigotap/frame"
)

func feedAll(e *Extractor, bytes []byte) []frame.Frame {
	var frames []frame.Frame
	for _, b := range bytes {
		if f, ok := e.Feed(b); ok {
			frames = append(frames, f)
		}
	}
	return frames
}

func crcBytes(payload []byte) []byte {
	crc := frame.CRC16(payload)
	return []byte{byte(crc), byte(crc >> 8)}
}

func buildFrame(payload []byte) []byte {
	out := []byte{0x7E, 0x07}
	out = append(out, payload...)
	out = append(out, crcBytes(payload)...)
	out = append(out, 0x7E, 0x08)
	return out
}

func TestExtractorBasicFrame(t *testing.T) {
	e := NewExtractor()
	payload := []byte{0x12, 0x01, 0x0B, 0x00, 0x01}
	frames := feedAll(e, buildFrame(payload))

	require.Len(t, frames, 1)
	f := frames[0]
	assert.Equal(t, frame.GatewayID(0x1201), f.Address.GatewayID)
	assert.False(t, f.Address.IsFrom)
	assert.Equal(t, frame.FrameTypePingRequest, f.FrameType)
	assert.Equal(t, []byte{0x01}, f.Payload)
	assert.Equal(t, uint64(1), e.Counters().FramesReceived)
}

func TestExtractorRejectsBadCRC(t *testing.T) {
	e := NewExtractor()
	raw := buildFrame([]byte{0x12, 0x01, 0x0B, 0x00, 0x01})
	raw[len(raw)-3] ^= 0xFF // corrupt the CRC high byte
	frames := feedAll(e, raw)

	assert.Len(t, frames, 0)
	assert.Equal(t, uint64(1), e.Counters().CRCErrors)
}

func TestExtractorRejectsRunt(t *testing.T) {
	e := NewExtractor()
	// Only 4 bytes inside the frame: too short once the 2-byte CRC is
	// subtracted (payload would be negative length).
	raw := []byte{0x7E, 0x07, 0x01, 0x02, 0x03, 0x04, 0x7E, 0x08}
	frames := feedAll(e, raw)

	assert.Len(t, frames, 0)
	assert.Equal(t, uint64(1), e.Counters().Runts)
}

func TestExtractorRestartMidFrame(t *testing.T) {
	e := NewExtractor()
	payload := []byte{0x12, 0x01, 0x0B, 0x00, 0x01}

	raw := []byte{0x7E, 0x07, 0xAA, 0xBB} // partial frame, discarded on restart
	raw = append(raw, buildFrame(payload)...)
	frames := feedAll(e, raw)

	require.Len(t, frames, 1)
	assert.Equal(t, []byte{0x01}, frames[0].Payload)
}

func TestExtractorEscapeSequenceUnescapes(t *testing.T) {
	e := NewExtractor()
	// payload contains a literal 0x7E, which must be escaped as 7E 00.
	payload := []byte{0x12, 0x01, 0x0B, 0x00, 0x7E}
	escapedPayload := []byte{0x12, 0x01, 0x0B, 0x00, 0x7E, 0x00}
	raw := []byte{0x7E, 0x07}
	raw = append(raw, escapedPayload...)
	raw = append(raw, crcBytes(payload)...)
	raw = append(raw, 0x7E, 0x08)

	frames := feedAll(e, raw)
	require.Len(t, frames, 1)
	assert.Equal(t, []byte{0x7E}, frames[0].Payload)
}

func TestExtractorUnknownEscapeDropsToNoise(t *testing.T) {
	e := NewExtractor()
	raw := []byte{0x7E, 0x07, 0x01, 0x7E, 0xFF, 0x02}
	frames := feedAll(e, raw)
	assert.Len(t, frames, 0)
}

func TestExtractorGiantFrameDiscarded(t *testing.T) {
	e := NewExtractor()
	var raw []byte
	raw = append(raw, 0x7E, 0x07)
	for i := 0; i < 300; i++ {
		raw = append(raw, 0x01)
	}
	raw = append(raw, 0x7E, 0x08)

	frames := feedAll(e, raw)
	assert.Len(t, frames, 0)
	assert.Equal(t, uint64(1), e.Counters().Giants)
}

func TestExtractorNoiseBytesCounted(t *testing.T) {
	e := NewExtractor()
	feedAll(e, []byte{0x01, 0x02, 0x03})
	assert.Equal(t, uint64(3), e.Counters().NoiseBytes)
}

func TestExtractorIdleBytesNotCountedAsNoise(t *testing.T) {
	e := NewExtractor()
	feedAll(e, []byte{0x00, 0xFF, 0x00})
	assert.Equal(t, uint64(0), e.Counters().NoiseBytes)
}

func TestExtractorDeterministicAcrossSplits(t *testing.T) {
	payload := []byte{0x12, 0x01, 0x0B, 0x00, 0x01}
	raw := buildFrame(payload)

	whole := NewExtractor()
	wholeFrames := feedAll(whole, raw)

	split := NewExtractor()
	var splitFrames []frame.Frame
	mid := len(raw) / 2
	splitFrames = append(splitFrames, feedAll(split, raw[:mid])...)
	splitFrames = append(splitFrames, feedAll(split, raw[mid:])...)

	require.Len(t, wholeFrames, 1)
	require.Len(t, splitFrames, 1)
	assert.Equal(t, wholeFrames[0], splitFrames[0])
}
