// Package link implements the byte-stuffed frame reassembly state
// machine that turns a raw gateway byte stream into CRC-validated
// frames.
package link

import "github.com/tigotap/tigotap/frame"

type state int

const (
	stateIdle state = iota
	stateNoise
	stateStartOfFrame
	stateFrame
	stateFrameEscape
	stateGiant
	stateGiantEscape
)

const (
	startEscape = 0x07
	endEscape   = 0x08
	escapeByte  = 0x7E

	giantThreshold = 256
	minFrameBody   = 6
)

// unescapeTable maps an escape byte following 0x7E to its unescaped
// value. Any byte not in this table (other than startEscape/endEscape)
// aborts the current frame and returns to NOISE.
var unescapeTable = map[byte]byte{
	0x00: 0x7E,
	0x01: 0x24,
	0x02: 0x23,
	0x03: 0x25,
	0x04: 0xA4,
	0x05: 0xA3,
	0x06: 0xA5,
}

// Counters tallies the frame extractor's observable outcomes.
type Counters struct {
	FramesReceived uint64
	CRCErrors      uint64
	Runts          uint64
	Giants         uint64
	NoiseBytes     uint64
}

// Extractor is a single gateway connection's frame reassembly state
// machine. It is driven one byte at a time via Feed.
type Extractor struct {
	st       state
	body     []byte
	counters Counters
}

// NewExtractor returns an Extractor in the IDLE state.
func NewExtractor() *Extractor {
	return &Extractor{st: stateIdle}
}

// Counters returns a snapshot of the extractor's running counters.
func (e *Extractor) Counters() Counters {
	return e.counters
}

// Feed advances the state machine by one byte. It returns a decoded,
// CRC-validated frame.Frame and true whenever a byte completes one;
// otherwise ok is false.
func (e *Extractor) Feed(b byte) (frame.Frame, bool) {
	switch e.st {
	case stateIdle, stateNoise:
		if b == escapeByte {
			e.st = stateStartOfFrame
			return frame.Frame{}, false
		}
		if b == 0x00 || b == 0xFF {
			e.st = stateIdle
		} else {
			e.st = stateNoise
			e.counters.NoiseBytes++
		}
		return frame.Frame{}, false

	case stateStartOfFrame:
		switch b {
		case startEscape:
			e.body = e.body[:0]
			e.st = stateFrame
		default:
			e.st = stateNoise
			e.counters.NoiseBytes++
		}
		return frame.Frame{}, false

	case stateFrame:
		switch b {
		case escapeByte:
			e.st = stateFrameEscape
		default:
			e.body = append(e.body, b)
			if len(e.body) > giantThreshold {
				e.st = stateGiant
				e.counters.Giants++
			}
		}
		return frame.Frame{}, false

	case stateFrameEscape:
		switch b {
		case startEscape:
			e.body = e.body[:0]
			e.st = stateFrame
			return frame.Frame{}, false
		case endEscape:
			f, ok := e.closeFrame()
			e.st = stateIdle
			return f, ok
		}
		if unescaped, known := unescapeTable[b]; known {
			e.body = append(e.body, unescaped)
			e.st = stateFrame
			return frame.Frame{}, false
		}
		e.st = stateNoise
		return frame.Frame{}, false

	case stateGiant:
		if b == escapeByte {
			e.st = stateGiantEscape
		}
		return frame.Frame{}, false

	case stateGiantEscape:
		switch b {
		case startEscape:
			e.body = e.body[:0]
			e.st = stateFrame
		case endEscape:
			e.st = stateIdle
		default:
			e.st = stateGiant
		}
		return frame.Frame{}, false
	}

	return frame.Frame{}, false
}

// closeFrame validates and decodes the accumulated body, incrementing
// the appropriate counter on failure.
func (e *Extractor) closeFrame() (frame.Frame, bool) {
	body := e.body
	if len(body) < minFrameBody {
		e.counters.Runts++
		return frame.Frame{}, false
	}

	payload := body[:len(body)-2]
	trailer := uint16(body[len(body)-2]) | uint16(body[len(body)-1])<<8
	if frame.CRC16(payload) != trailer {
		e.counters.CRCErrors++
		return frame.Frame{}, false
	}

	f := frame.Frame{
		Address:   frame.DecodeAddress(payload[0:2]),
		FrameType: frame.FrameType(uint16(payload[2])<<8 | uint16(payload[3])),
		Payload:   append([]byte(nil), payload[4:]...),
	}
	e.counters.FramesReceived++
	return f, true
}
