// Package parser ties the link-layer extractor, transport correlator,
// enumeration state machine, per-gateway slot clocks and node-table
// builders, and the infrastructure snapshot into one façade: feed it
// raw gateway bytes, get back decoded application events.
package parser

import (
	"time"

	"github.com/tigotap/tigotap/app"
	"github.com/tigotap/tigotap/clog"
	"github.com/tigotap/tigotap/enum"
	"github.com/tigotap/tigotap/frame"
	"github.com/tigotap/tigotap/infra"
	"github.com/tigotap/tigotap/link"
	"github.com/tigotap/tigotap/nodetable"
	"github.com/tigotap/tigotap/slotclock"
	"github.com/tigotap/tigotap/transport"
)

// Parser decodes one gateway connection's byte stream into application
// events, accumulating infrastructure state across the connection's
// lifetime.
type Parser struct {
	extractor   *link.Extractor
	correlator  *transport.Correlator
	enumMachine *enum.Machine
	infraState  *infra.State

	clocks       map[frame.GatewayID]*slotclock.Clock
	nodeBuilders map[frame.GatewayID]*nodetable.Builder

	log clog.Clog
}

// New returns an empty Parser logging through log (the zero value
// clog.Clog{} is a safe, silent no-op logger).
func New(log clog.Clog) *Parser {
	return &Parser{
		extractor:    link.NewExtractor(),
		correlator:   transport.NewCorrelator(),
		enumMachine:  enum.NewMachine(),
		infraState:   infra.New(),
		clocks:       make(map[frame.GatewayID]*slotclock.Clock),
		nodeBuilders: make(map[frame.GatewayID]*nodetable.Builder),
		log:          log,
	}
}

// Feed advances the frame extractor over data, dispatching every
// completed frame and returning the events it produced, in order. now
// is the wall-clock time of receipt, used both to calibrate slot clocks
// and to timestamp events that carry no slot counter of their own.
func (p *Parser) Feed(data []byte, now time.Time) []app.Event {
	var events []app.Event
	for _, b := range data {
		f, ok := p.extractor.Feed(b)
		if !ok {
			continue
		}
		events = append(events, p.dispatchFrame(f, now)...)
	}
	return events
}

// Counters returns the underlying frame extractor's running counters.
func (p *Parser) Counters() link.Counters {
	return p.extractor.Counters()
}

// Infrastructure returns a snapshot of everything learned about the
// fleet so far.
func (p *Parser) Infrastructure() infra.Snapshot {
	return p.infraState.Snapshot()
}

// GatewayNodeTables returns a deep copy of every gateway's node table,
// keyed by gateway, for persistence.
func (p *Parser) GatewayNodeTables() map[frame.GatewayID]map[frame.NodeID]frame.LongAddress {
	return p.infraState.NodeTables()
}

// Restore primes the parser's infrastructure view from a persisted
// snapshot at startup. identities/versions become gateway entries and
// nodeTables seed per-gateway node tables, so power reports resolve
// against the cached map immediately rather than waiting for the first
// live enumeration and node-table transfer.
func (p *Parser) Restore(identities map[frame.GatewayID]frame.LongAddress, versions map[frame.GatewayID]string, nodeTables map[frame.GatewayID]map[frame.NodeID]frame.LongAddress) {
	gateways := make(map[frame.GatewayID]infra.GatewayInfo, len(identities)+len(versions))
	for gw, addr := range identities {
		info := gateways[gw]
		info.LongAddress = addr
		info.HaveLong = true
		gateways[gw] = info
	}
	for gw, version := range versions {
		info := gateways[gw]
		info.Version = version
		info.HaveVersion = true
		gateways[gw] = info
	}
	p.infraState.Restore(gateways, nodeTables)
}

func (p *Parser) clockFor(gw frame.GatewayID) *slotclock.Clock {
	c, ok := p.clocks[gw]
	if !ok {
		c = slotclock.New()
		p.clocks[gw] = c
	}
	return c
}

func (p *Parser) nodeBuilderFor(gw frame.GatewayID) *nodetable.Builder {
	b, ok := p.nodeBuilders[gw]
	if !ok {
		b = nodetable.NewBuilder()
		p.nodeBuilders[gw] = b
	}
	return b
}

func (p *Parser) emitInfrastructureSnapshot(now time.Time) app.Event {
	snap := p.infraState.Snapshot()

	gateways := make([]app.InfrastructureGateway, 0, len(snap.Gateways))
	for gw, info := range snap.Gateways {
		gateways = append(gateways, app.InfrastructureGateway{
			GatewayID:   gw,
			LongAddress: info.LongAddress,
			HaveLong:    info.HaveLong,
			Version:     info.Version,
			HaveVersion: info.HaveVersion,
		})
	}

	nodes := make([]app.InfrastructureNode, 0, len(snap.Nodes))
	for node, info := range snap.Nodes {
		nodes = append(nodes, app.InfrastructureNode{
			NodeID:      node,
			LongAddress: info.LongAddress,
			Barcode:     info.Barcode,
			HaveBarcode: info.Barcode != "",
		})
	}

	return app.Event{
		Type:           app.EventTypeInfrastructure,
		Timestamp:      now,
		Infrastructure: &app.InfrastructureEvent{Gateways: gateways, Nodes: nodes},
	}
}
