package parser

import (
	"time"

	"github.com/tigotap/tigotap/app"
	"github.com/tigotap/tigotap/frame"
	"github.com/tigotap/tigotap/nodetable"
	"github.com/tigotap/tigotap/transport"
)

// handleReceiveResponse decodes a RECEIVE_RESPONSE's variable header,
// calibrates gw's slot clock against the capture time recorded by its
// paired RECEIVE_REQUEST (if any), and dispatches every embedded PV
// packet.
func (p *Parser) handleReceiveResponse(gw frame.GatewayID, payload []byte, now time.Time) []app.Event {
	rr, ok := p.correlator.ReceiveResponse(gw, payload)
	if !ok {
		return nil
	}
	if rr.HaveCaptureTime {
		p.clockFor(gw).Set(rr.SlotCounter, rr.CaptureTime)
	}

	var events []app.Event
	for _, pkt := range app.IteratePackets(rr.Data) {
		if pkt.Header.NodeAddress == frame.Broadcast {
			continue
		}
		if ev, ok := p.parsePVPacket(gw, pkt, now); ok {
			events = append(events, ev)
		}
	}
	return events
}

func (p *Parser) parsePVPacket(gw frame.GatewayID, pkt app.PVPacket, now time.Time) (app.Event, bool) {
	switch pkt.Header.PacketType {
	case app.PacketTypePowerReport:
		return p.handlePowerReport(gw, pkt.Header.NodeAddress, pkt.Data)
	case app.PacketTypeStringResponse:
		return app.Event{
			Type:      app.EventTypeString,
			Timestamp: now,
			String: &app.StringEvent{
				GatewayID: gw,
				NodeID:    pkt.Header.NodeAddress,
				Direction: "response",
				Content:   string(pkt.Data),
			},
		}, true
	case app.PacketTypeTopologyReport:
		return app.Event{
			Type:      app.EventTypeTopology,
			Timestamp: now,
			Topology: &app.TopologyEvent{
				GatewayID: gw,
				NodeID:    pkt.Header.NodeAddress,
				Data:      append([]byte(nil), pkt.Data...),
			},
		}, true
	}
	return app.Event{}, false
}

// handlePowerReport decodes a POWER_REPORT payload, dropping it if it's
// too short to hold the fixed 13-byte report or if gw has no calibrated
// slot clock yet (a power report with no way to timestamp it is useless
// downstream).
func (p *Parser) handlePowerReport(gw frame.GatewayID, node frame.NodeID, data []byte) (app.Event, bool) {
	if len(data) == 15 {
		data = data[:13]
	}
	report, ok := app.DecodePowerReport(data)
	if !ok {
		return app.Event{}, false
	}

	clock, ok := p.clocks[gw]
	if !ok {
		p.log.Warn("power report from gateway %v with no calibrated slot clock, dropping", gw)
		return app.Event{}, false
	}
	ts := clock.Get(report.SlotCounter)

	barcode := ""
	haveBarcode := false
	if longAddr, ok := p.infraState.LookupNode(gw, node); ok {
		if b, ok := frame.EncodeBarcode(longAddr); ok {
			barcode = b
			haveBarcode = true
		}
	}

	ev := app.NewPowerReportEvent(gw, node, barcode, haveBarcode, report)
	return app.Event{
		Type:        app.EventTypePowerReport,
		Timestamp:   ts,
		PowerReport: &ev,
	}, true
}

// nodeTableEntrySize is the on-wire stride of one node-table entry: a
// 2-byte NodeAddress followed by an 8-byte LongAddress.
const nodeTableEntrySize = 10

// handleCommandPair routes a correlated COMMAND_REQUEST/COMMAND_RESPONSE
// pair by its inner packet types.
func (p *Parser) handleCommandPair(gw frame.GatewayID, pair transport.CommandPair, now time.Time) []app.Event {
	switch {
	case app.PacketType(pair.RequestType) == app.PacketTypeNodeTableRequest &&
		app.PacketType(pair.ResponseType) == app.PacketTypeNodeTableResponse:
		return p.handleNodeTableCommand(gw, pair.ResponsePayload, now)

	case app.PacketType(pair.RequestType) == app.PacketTypeStringRequest &&
		app.PacketType(pair.ResponseType) == app.PacketTypeStringResponse:
		return p.handleStringCommand(gw, pair.RequestPayload, now)
	}
	return nil
}

func (p *Parser) handleNodeTableCommand(gw frame.GatewayID, respPayload []byte, now time.Time) []app.Event {
	if len(respPayload) < 1 {
		return nil
	}
	count := int(respPayload[0])
	entriesData := respPayload[1:]
	if len(entriesData) != count*nodeTableEntrySize {
		p.log.Warn("node table response entry count mismatch for gateway %v, dropping page", gw)
		return nil
	}

	entries := make([]nodetable.Entry, 0, count)
	for i := 0; i < count; i++ {
		start := i * nodeTableEntrySize
		var long frame.LongAddress
		copy(long[:], entriesData[start+2:start+10])
		entries = append(entries, nodetable.Entry{
			Node: frame.NodeAddress(uint16(entriesData[start])<<8 | uint16(entriesData[start+1])),
			Long: long,
		})
	}

	table, done := p.nodeBuilderFor(gw).Push(entries)
	if !done {
		return nil
	}
	p.infraState.SetNodeTable(gw, table)
	return []app.Event{p.emitInfrastructureSnapshot(now)}
}

func (p *Parser) handleStringCommand(gw frame.GatewayID, reqPayload []byte, now time.Time) []app.Event {
	if len(reqPayload) < 2 {
		return nil
	}
	node := frame.NodeAddress(uint16(reqPayload[0])<<8 | uint16(reqPayload[1]))
	content := string(reqPayload[2:])
	return []app.Event{{
		Type:      app.EventTypeString,
		Timestamp: now,
		String: &app.StringEvent{
			GatewayID: gw,
			NodeID:    node,
			Direction: "request",
			Content:   content,
		},
	}}
}
