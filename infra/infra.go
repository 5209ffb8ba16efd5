// Package infra holds the parser's persistent infrastructure view: the
// set of known gateways and nodes, as distinct from the transient
// per-frame state in transport and enum.
package infra

import "github.com/tigotap/tigotap/frame"

// GatewayInfo is what's known about one gateway: its long address (once
// an IDENTIFY_RESPONSE has been seen) and firmware version string (once
// a VERSION_RESPONSE has been seen). Either field may be absent.
type GatewayInfo struct {
	LongAddress frame.LongAddress
	HaveLong    bool
	Version     string
	HaveVersion bool
}

// NodeInfo is what's known about one mesh node.
type NodeInfo struct {
	LongAddress frame.LongAddress
	Barcode     string
}

// Snapshot is an immutable, complete view of the infrastructure at one
// instant. It is handed across the parser/coordinator boundary by value
// so a concurrent reader never observes a write in progress.
type Snapshot struct {
	Gateways map[frame.GatewayID]GatewayInfo
	Nodes    map[frame.NodeID]NodeInfo
}

// State is the parser's single mutable infrastructure store. It is
// owned exclusively by the parser; callers outside the parser only ever
// see a Snapshot.
type State struct {
	gateways   map[frame.GatewayID]GatewayInfo
	nodeTables map[frame.GatewayID]map[frame.NodeID]frame.LongAddress
}

// New returns an empty State.
func New() *State {
	return &State{
		gateways:   make(map[frame.GatewayID]GatewayInfo),
		nodeTables: make(map[frame.GatewayID]map[frame.NodeID]frame.LongAddress),
	}
}

// SetIdentity records gw's long address, creating the gateway entry if
// it doesn't exist yet.
func (s *State) SetIdentity(gw frame.GatewayID, addr frame.LongAddress) {
	info := s.gateways[gw]
	info.LongAddress = addr
	info.HaveLong = true
	s.gateways[gw] = info
}

// SetVersion records gw's firmware version string.
func (s *State) SetVersion(gw frame.GatewayID, version string) {
	info := s.gateways[gw]
	info.Version = version
	info.HaveVersion = true
	s.gateways[gw] = info
}

// ReplaceGateways wholesale-replaces the gateway identity/version map,
// used by the enumeration state machine to commit a provisional buffer
// atomically.
func (s *State) ReplaceGateways(gateways map[frame.GatewayID]GatewayInfo) {
	s.gateways = gateways
}

// SetNodeTable replaces gw's node table atomically, used when C4's
// Builder finalizes a paginated transfer.
func (s *State) SetNodeTable(gw frame.GatewayID, table map[frame.NodeID]frame.LongAddress) {
	s.nodeTables[gw] = table
}

// NodeTables returns a deep copy of every gateway's node table, keyed by
// gateway, for persistence — unlike Snapshot's Nodes map, this preserves
// which gateway each entry came from.
func (s *State) NodeTables() map[frame.GatewayID]map[frame.NodeID]frame.LongAddress {
	tables := make(map[frame.GatewayID]map[frame.NodeID]frame.LongAddress, len(s.nodeTables))
	for gw, table := range s.nodeTables {
		copied := make(map[frame.NodeID]frame.LongAddress, len(table))
		for node, addr := range table {
			copied[node] = addr
		}
		tables[gw] = copied
	}
	return tables
}

// Restore primes a freshly constructed State from persisted values at
// startup, bypassing the normal enumeration/node-table commit flow.
func (s *State) Restore(gateways map[frame.GatewayID]GatewayInfo, nodeTables map[frame.GatewayID]map[frame.NodeID]frame.LongAddress) {
	for gw, info := range gateways {
		s.gateways[gw] = info
	}
	for gw, table := range nodeTables {
		copied := make(map[frame.NodeID]frame.LongAddress, len(table))
		for node, addr := range table {
			copied[node] = addr
		}
		s.nodeTables[gw] = copied
	}
}

// LookupNode resolves a NodeID against gw's stored node table, if any.
func (s *State) LookupNode(gw frame.GatewayID, node frame.NodeID) (frame.LongAddress, bool) {
	table, ok := s.nodeTables[gw]
	if !ok {
		return frame.LongAddress{}, false
	}
	addr, ok := table[node]
	return addr, ok
}

// Snapshot produces a deep, immutable copy of the current state. It is
// the only channel through which infrastructure state leaves the
// parser's exclusive ownership.
func (s *State) Snapshot() Snapshot {
	gateways := make(map[frame.GatewayID]GatewayInfo, len(s.gateways))
	for gw, info := range s.gateways {
		gateways[gw] = info
	}

	nodes := make(map[frame.NodeID]NodeInfo)
	for _, table := range s.nodeTables {
		for node, addr := range table {
			barcode, _ := frame.EncodeBarcode(addr)
			nodes[node] = NodeInfo{LongAddress: addr, Barcode: barcode}
		}
	}

	return Snapshot{Gateways: gateways, Nodes: nodes}
}
