package parser

import (
	"time"

	"github.com/tigotap/tigotap/app"
	"github.com/tigotap/tigotap/frame"
	"github.com/tigotap/tigotap/infra"
)

// dispatchFrame routes one CRC-validated link frame to its handler,
// matching the direction gates the firmware observes: a *_REQUEST frame
// always travels host->gateway (IsFrom false), its *_RESPONSE pair
// always travels gateway->host (IsFrom true). Any frame failing its
// direction gate is dropped rather than misinterpreted.
func (p *Parser) dispatchFrame(f frame.Frame, now time.Time) []app.Event {
	gw := f.Address.GatewayID

	switch f.FrameType {
	case frame.FrameTypeReceiveRequest:
		if f.Address.IsFrom {
			return nil
		}
		p.correlator.ReceiveRequest(gw, f.Payload, now)
		return nil

	case frame.FrameTypeReceiveResponse:
		if !f.Address.IsFrom {
			return nil
		}
		return p.handleReceiveResponse(gw, f.Payload, now)

	case frame.FrameTypeCommandRequest:
		if f.Address.IsFrom {
			return nil
		}
		p.correlator.CommandRequest(gw, f.Payload)
		return nil

	case frame.FrameTypeCommandResponse:
		if !f.Address.IsFrom {
			return nil
		}
		pair, ok := p.correlator.CommandResponse(gw, f.Payload)
		if !ok {
			return nil
		}
		return p.handleCommandPair(gw, pair, now)

	case frame.FrameTypeEnumerationStartReq:
		if f.Address.IsFrom {
			return nil
		}
		if gw != 0 {
			return nil
		}
		p.handleEnumerationStart(f.Payload)
		return nil

	case frame.FrameTypeEnumerationEndResponse:
		if !f.Address.IsFrom {
			return nil
		}
		return p.handleEnumerationEnd(now)

	case frame.FrameTypeEnumerationResponse, frame.FrameTypeIdentifyResponse:
		if !f.Address.IsFrom {
			return nil
		}
		return p.handleIdentifyResponse(gw, f.Payload)

	case frame.FrameTypeVersionResponse:
		if !f.Address.IsFrom {
			return nil
		}
		return p.handleVersionResponse(gw, f.Payload)
	}

	return nil
}

// handleEnumerationStart begins a provisional enumeration cycle. The
// address of the gateway driving the enumeration lives at payload
// offset 4:6 (bytes 0:4 are unrelated header fields this frame type
// also carries); its own identify/version responses during the cycle
// are ignored rather than buffered, so it never reports itself as a
// member of its own fleet.
func (p *Parser) handleEnumerationStart(payload []byte) {
	if len(payload) < 6 {
		return
	}
	target := frame.DecodeAddress(payload[4:6])
	p.enumMachine.Start(target.GatewayID)
}

func (p *Parser) handleEnumerationEnd(now time.Time) []app.Event {
	buffer, committed := p.enumMachine.Commit()
	if !committed {
		return nil
	}
	gateways := make(map[frame.GatewayID]infra.GatewayInfo, len(buffer))
	for gw, id := range buffer {
		gateways[gw] = infra.GatewayInfo{
			LongAddress: id.LongAddress,
			HaveLong:    id.HaveLong,
			Version:     id.Version,
			HaveVersion: id.HaveVersion,
		}
	}
	p.infraState.ReplaceGateways(gateways)
	return []app.Event{p.emitInfrastructureSnapshot(now)}
}

func (p *Parser) handleIdentifyResponse(gw frame.GatewayID, payload []byte) []app.Event {
	if len(payload) < 8 {
		return nil
	}
	var addr frame.LongAddress
	copy(addr[:], payload[:8])

	if direct := p.enumMachine.ObserveIdentity(gw, addr); direct {
		p.infraState.SetIdentity(gw, addr)
	}
	return nil
}

func (p *Parser) handleVersionResponse(gw frame.GatewayID, payload []byte) []app.Event {
	version := string(payload)
	if direct := p.enumMachine.ObserveVersion(gw, version); direct {
		p.infraState.SetVersion(gw, version)
	}
	return nil
}
