package coordinator

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/tigotap/tigotap/clog"
	"github.com/tigotap/tigotap/energy"
	"github.com/tigotap/tigotap/frame"
	"github.com/tigotap/tigotap/infra"
	"github.com/tigotap/tigotap/link"
	"github.com/tigotap/tigotap/metrics"
	"github.com/tigotap/tigotap/parser"
	"github.com/tigotap/tigotap/store"
	"github.com/tigotap/tigotap/transportio"
)

// ModuleReading is the latest known state of one tracked optimizer.
type ModuleReading struct {
	GatewayID frame.GatewayID
	NodeID    frame.NodeID
	Barcode   string

	VoltageIn   float64
	VoltageOut  float64
	CurrentIn   float64
	CurrentOut  float64
	Power       float64
	Temperature float64
	DutyCycle   float64
	RSSI        byte

	DailyEnergyWh float64
	TotalEnergyWh float64

	LastUpdate   time.Time
	LastTopology string
}

// Snapshot is an immutable view of everything the coordinator has
// learned and tracked so far.
type Snapshot struct {
	Gateways           map[frame.GatewayID]infra.GatewayInfo
	Modules            map[string]ModuleReading
	DiscoveredBarcodes []string
	Counters           link.Counters
}

// Coordinator owns one gateway connection's reconnect loop: it reads
// raw bytes from a transportio.Source, feeds them to a parser.Parser,
// and folds the resulting events into per-barcode readings and energy
// tallies, periodically persisting them to a store.Store.
type Coordinator struct {
	cfg   Config
	log   clog.Clog
	store *store.Store
	p     *parser.Parser

	mu                     sync.RWMutex
	gateways               map[frame.GatewayID]infra.GatewayInfo
	modules                map[string]ModuleReading
	barcodeToNode          map[string]frame.NodeID
	nodeToBarcode          map[frame.NodeID]string
	configuredBarcodes     map[string]bool
	discoveredBarcodes     map[string]bool
	energyAcc              map[string]*energy.Accumulator
	infrastructureReceived bool
}

// New returns a Coordinator for cfg, priming its barcode maps and
// energy accumulators from doc (the persisted document from a prior
// run; pass an empty store.Document for a cold start).
func New(cfg Config, st *store.Store, log clog.Clog, doc store.Document) (*Coordinator, error) {
	if err := cfg.Valid(); err != nil {
		return nil, err
	}

	c := &Coordinator{
		cfg:                cfg,
		log:                log,
		store:              st,
		p:                  parser.New(log),
		gateways:           make(map[frame.GatewayID]infra.GatewayInfo),
		modules:            make(map[string]ModuleReading),
		barcodeToNode:      make(map[string]frame.NodeID),
		nodeToBarcode:      make(map[frame.NodeID]string),
		configuredBarcodes: make(map[string]bool),
		discoveredBarcodes: make(map[string]bool),
		energyAcc:          make(map[string]*energy.Accumulator),
	}
	for _, b := range cfg.BarcodeAllowList {
		c.configuredBarcodes[b] = true
	}
	for barcode, node := range doc.BarcodeToNode {
		c.barcodeToNode[barcode] = node
		c.nodeToBarcode[node] = barcode
	}
	for _, b := range doc.DiscoveredBarcodes {
		c.discoveredBarcodes[b] = true
	}
	for barcode, rec := range doc.EnergyData {
		acc := rec.ToAccumulator()
		c.energyAcc[barcode] = &acc
	}
	c.p.Restore(doc.ParserState.GatewayIdentities, doc.ParserState.GatewayVersions, doc.ParserState.GatewayNodeTables)
	return c, nil
}

func (c *Coordinator) newSource() transportio.Source {
	if c.cfg.Device != "" {
		return transportio.NewSerialSource(c.cfg.Device, c.cfg.Baud)
	}
	return transportio.NewTCPSource(c.cfg.Host, c.cfg.Port)
}

// Run drives the reconnect loop until ctx is canceled or, if
// ReconnectRetries is set, until the retry budget is exhausted.
// Persistence runs on its own ticker for the duration of the call.
func (c *Coordinator) Run(ctx context.Context) error {
	if c.store != nil {
		go c.persistenceLoop(ctx)
	}

	retries := 0
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		src := c.newSource()
		if err := src.Connect(); err != nil {
			c.log.Warn("gateway connection failed: %v", err)
		} else {
			c.log.Debug("connected to gateway")
			retries = 0
			if err := c.readLoop(ctx, src); err != nil {
				c.log.Warn("gateway connection lost: %v", err)
			}
			_ = src.Close()
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}

		retries++
		if c.cfg.ReconnectRetries > 0 && retries > c.cfg.ReconnectRetries {
			return fmt.Errorf("coordinator: max reconnect retries (%d) exceeded", c.cfg.ReconnectRetries)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.cfg.ReconnectDelay):
		}
	}
}

func (c *Coordinator) readLoop(ctx context.Context, src transportio.Source) error {
	buf := make([]byte, 4096)
	lastData := time.Now()

	for {
		if ctx.Err() != nil {
			return nil
		}

		n, err := src.Read(buf)
		if err != nil {
			return err
		}
		if n > 0 {
			lastData = time.Now()
			now := time.Now()
			for _, ev := range c.p.Feed(buf[:n], now) {
				c.handleEvent(ev, now)
			}
			continue
		}

		if time.Since(lastData) > c.cfg.ReconnectTimeout {
			return fmt.Errorf("no data from gateway for %s", c.cfg.ReconnectTimeout)
		}
	}
}

func (c *Coordinator) persistenceLoop(ctx context.Context) {
	ticker := time.NewTicker(c.cfg.PersistenceDebounce)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			c.persist()
			return
		case <-ticker.C:
			c.persist()
		}
	}
}

func (c *Coordinator) persist() {
	if c.store == nil {
		return
	}
	doc := store.Document{
		BarcodeToNode:      make(map[string]frame.NodeID),
		DiscoveredBarcodes: nil,
		EnergyData:         make(map[string]store.EnergyRecord),
	}

	c.mu.RLock()
	for barcode, node := range c.barcodeToNode {
		doc.BarcodeToNode[barcode] = node
	}
	for b := range c.discoveredBarcodes {
		doc.DiscoveredBarcodes = append(doc.DiscoveredBarcodes, b)
	}
	for barcode, acc := range c.energyAcc {
		doc.EnergyData[barcode] = store.EnergyRecordFromAccumulator(*acc)
	}
	c.mu.RUnlock()
	sort.Strings(doc.DiscoveredBarcodes)

	snap := c.p.Infrastructure()
	doc.ParserState = store.ParserState{
		GatewayIdentities: make(map[frame.GatewayID]frame.LongAddress),
		GatewayVersions:   make(map[frame.GatewayID]string),
		GatewayNodeTables: make(map[frame.GatewayID]map[frame.NodeID]frame.LongAddress),
	}
	for gw, info := range snap.Gateways {
		if info.HaveLong {
			doc.ParserState.GatewayIdentities[gw] = info.LongAddress
		}
		if info.HaveVersion {
			doc.ParserState.GatewayVersions[gw] = info.Version
		}
	}
	doc.ParserState.GatewayNodeTables = c.p.GatewayNodeTables()

	if err := c.store.Save(doc); err != nil {
		c.log.Warn("failed to persist coordinator state: %v", err)
	}
}

// ModuleSnapshot returns every tracked module as a metrics.ModuleSample,
// satisfying the metrics package's Source interface without that
// package needing to import coordinator's richer types.
func (c *Coordinator) ModuleSnapshot() []metrics.ModuleSample {
	c.mu.RLock()
	defer c.mu.RUnlock()

	samples := make([]metrics.ModuleSample, 0, len(c.modules))
	for barcode, m := range c.modules {
		samples = append(samples, metrics.ModuleSample{
			Barcode:     barcode,
			GatewayID:   m.GatewayID,
			Power:       m.Power,
			VoltageIn:   m.VoltageIn,
			VoltageOut:  m.VoltageOut,
			Temperature: m.Temperature,
			DutyCycle:   m.DutyCycle,
			RSSI:        float64(m.RSSI),
			DailyWh:     m.DailyEnergyWh,
			TotalWh:     m.TotalEnergyWh,
		})
	}
	return samples
}

// Counters exposes the parser's link-layer counters, the other half of
// the metrics package's Source interface.
func (c *Coordinator) Counters() link.Counters {
	return c.p.Counters()
}

// Snapshot returns an immutable view of everything tracked so far.
func (c *Coordinator) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	gateways := make(map[frame.GatewayID]infra.GatewayInfo, len(c.gateways))
	for gw, info := range c.gateways {
		gateways[gw] = info
	}
	modules := make(map[string]ModuleReading, len(c.modules))
	for barcode, m := range c.modules {
		modules[barcode] = m
	}
	discovered := make([]string, 0, len(c.discoveredBarcodes))
	for b := range c.discoveredBarcodes {
		discovered = append(discovered, b)
	}
	sort.Strings(discovered)

	return Snapshot{
		Gateways:           gateways,
		Modules:            modules,
		DiscoveredBarcodes: discovered,
		Counters:           c.p.Counters(),
	}
}
