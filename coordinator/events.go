package coordinator

import (
	"encoding/hex"
	"time"

	"github.com/tigotap/tigotap/app"
	"github.com/tigotap/tigotap/energy"
	"github.com/tigotap/tigotap/frame"
	"github.com/tigotap/tigotap/infra"
)

func (c *Coordinator) handleEvent(ev app.Event, now time.Time) {
	switch ev.Type {
	case app.EventTypePowerReport:
		c.handlePowerReport(ev.PowerReport)
	case app.EventTypeInfrastructure:
		c.handleInfrastructure(ev.Infrastructure)
	case app.EventTypeTopology:
		c.handleTopology(ev.Topology)
	case app.EventTypeString:
		c.log.Debug("string from gateway %v node %v (%s): %s",
			ev.String.GatewayID, ev.String.NodeID, ev.String.Direction, ev.String.Content)
	}
	_ = now
}

func (c *Coordinator) handlePowerReport(ev *app.PowerReportEvent) {
	barcode := ev.Barcode
	if barcode == "" {
		c.mu.RLock()
		if c.infrastructureReceived {
			barcode = c.nodeToBarcode[ev.NodeID]
		}
		c.mu.RUnlock()
	}
	if barcode == "" {
		c.log.Debug("power report from gateway %v node %v with no resolvable barcode yet, dropping", ev.GatewayID, ev.NodeID)
		return
	}

	if len(c.cfg.BarcodeAllowList) > 0 && !c.configuredBarcodes[barcode] {
		c.recordDiscovered(barcode, ev.GatewayID, ev.NodeID)
		return
	}

	now := time.Now()
	acc := c.energyAccFor(barcode)
	c.mu.Lock()
	energyResult := energy.Accumulate(acc, ev.Power, now, c.cfg.Energy)
	c.modules[barcode] = ModuleReading{
		GatewayID:     ev.GatewayID,
		NodeID:        ev.NodeID,
		Barcode:       barcode,
		VoltageIn:     ev.VoltageIn,
		VoltageOut:    ev.VoltageOut,
		CurrentIn:     ev.CurrentIn,
		CurrentOut:    ev.CurrentOut,
		Power:         ev.Power,
		Temperature:   ev.Temperature,
		DutyCycle:     ev.DutyCycle,
		RSSI:          ev.RSSI,
		DailyEnergyWh: acc.DailyWh,
		TotalEnergyWh: acc.TotalWh,
		LastUpdate:    now,
		LastTopology:  c.modules[barcode].LastTopology,
	}
	c.mu.Unlock()

	if energyResult.DiscardedGapDuringProduction {
		c.log.Warn("discarded energy across a production gap for barcode %s", barcode)
	}
}

func (c *Coordinator) handleInfrastructure(ev *app.InfrastructureEvent) {
	c.mu.Lock()
	gateways := make(map[frame.GatewayID]infra.GatewayInfo, len(ev.Gateways))
	for _, gw := range ev.Gateways {
		gateways[gw.GatewayID] = infra.GatewayInfo{
			LongAddress: gw.LongAddress,
			HaveLong:    gw.HaveLong,
			Version:     gw.Version,
			HaveVersion: gw.HaveVersion,
		}
	}
	c.gateways = gateways

	// Events with an empty node table are gateway-only announcements
	// (e.g. an enumeration commit before any node table has ever been
	// read); the existing barcode maps survive those untouched. A
	// non-empty node table is rebuilt from scratch rather than merged,
	// so a node that has left the fleet doesn't linger as a stale
	// mapping, and flips infrastructureReceived so power reports may
	// now trust the cached map.
	var toLog []string
	if len(ev.Nodes) > 0 {
		c.barcodeToNode = make(map[string]frame.NodeID, len(ev.Nodes))
		c.nodeToBarcode = make(map[frame.NodeID]string, len(ev.Nodes))
		c.infrastructureReceived = true

		for _, n := range ev.Nodes {
			if !n.HaveBarcode || n.Barcode == "" {
				continue
			}
			c.barcodeToNode[n.Barcode] = n.NodeID
			c.nodeToBarcode[n.NodeID] = n.Barcode

			if len(c.cfg.BarcodeAllowList) > 0 && !c.configuredBarcodes[n.Barcode] && !c.discoveredBarcodes[n.Barcode] {
				c.discoveredBarcodes[n.Barcode] = true
				toLog = append(toLog, n.Barcode)
			}
		}
	}
	c.mu.Unlock()

	for _, barcode := range toLog {
		c.log.Debug("discovered unconfigured Tigo optimizer barcode %s", barcode)
	}
}

func (c *Coordinator) handleTopology(ev *app.TopologyEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()

	barcode, ok := c.nodeToBarcode[ev.NodeID]
	if !ok {
		return
	}
	if len(c.cfg.BarcodeAllowList) > 0 && !c.configuredBarcodes[barcode] {
		return
	}
	reading, ok := c.modules[barcode]
	if !ok {
		return
	}
	reading.LastTopology = hex.EncodeToString(ev.Data)
	c.modules[barcode] = reading
}

// recordDiscovered tracks an unconfigured barcode seen on the bus, like
// the reference client's "discovered but not tracked" bookkeeping, and
// logs it exactly once.
func (c *Coordinator) recordDiscovered(barcode string, gw frame.GatewayID, node frame.NodeID) {
	c.mu.Lock()
	alreadyKnown := c.discoveredBarcodes[barcode]
	if !alreadyKnown {
		c.discoveredBarcodes[barcode] = true
	}
	c.mu.Unlock()

	if !alreadyKnown {
		c.log.Debug("discovered unconfigured Tigo optimizer barcode %s (gateway %v node %v)", barcode, gw, node)
	}
}

func (c *Coordinator) energyAccFor(barcode string) *energy.Accumulator {
	c.mu.Lock()
	defer c.mu.Unlock()
	acc, ok := c.energyAcc[barcode]
	if !ok {
		acc = &energy.Accumulator{}
		c.energyAcc[barcode] = acc
	}
	return acc
}
