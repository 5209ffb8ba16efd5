// Package enum implements the gateway enumeration state machine: the
// provisional-buffer-then-atomic-commit transition that protects
// downstream consumers from observing a partially re-discovered fleet.
package enum

import "github.com/tigotap/tigotap/frame"

// GatewayIdentity mirrors infra.GatewayInfo without importing infra, so
// enum stays a leaf package the way the teacher keeps its ASDU type
// system independent of the APCI session layer.
type GatewayIdentity struct {
	LongAddress frame.LongAddress
	HaveLong    bool
	Version     string
	HaveVersion bool
}

// Machine is the enumeration state machine. While idle, identity and
// version updates apply directly (Machine reports "not buffering" and
// the caller applies them to the persistent snapshot itself). While
// enumerating, updates accumulate in a side buffer until Commit.
type Machine struct {
	enumerating       bool
	enumerationTarget frame.GatewayID
	buffer            map[frame.GatewayID]GatewayIdentity
}

// NewMachine returns a Machine in the IDLE state.
func NewMachine() *Machine {
	return &Machine{}
}

// Start begins a provisional enumeration cycle targeting the gateway
// addressed by the ENUMERATION_START_REQUEST's embedded address field.
// Responses from that gateway are ignored for the duration of the
// cycle, to avoid recording the enumerator as a participant.
func (m *Machine) Start(target frame.GatewayID) {
	m.enumerating = true
	m.enumerationTarget = target
	m.buffer = make(map[frame.GatewayID]GatewayIdentity)
}

// Enumerating reports whether a cycle is in progress.
func (m *Machine) Enumerating() bool {
	return m.enumerating
}

// ObserveIdentity records a LongAddress for gw. If a cycle is in
// progress and gw is the enumeration's own target, the observation is
// dropped and direct is false (caller emits no event); if a cycle is in
// progress for any other gateway, it's written into the side buffer
// and direct is false (caller emits no event — the commit alone emits);
// if idle, direct is true and the caller must apply the update directly.
func (m *Machine) ObserveIdentity(gw frame.GatewayID, addr frame.LongAddress) (direct bool) {
	if !m.enumerating {
		return true
	}
	if gw == m.enumerationTarget {
		return false
	}
	id := m.buffer[gw]
	id.LongAddress = addr
	id.HaveLong = true
	m.buffer[gw] = id
	return false
}

// ObserveVersion records a version string for gw, with the same
// direct/buffered/ignored semantics as ObserveIdentity.
func (m *Machine) ObserveVersion(gw frame.GatewayID, version string) (direct bool) {
	if !m.enumerating {
		return true
	}
	if gw == m.enumerationTarget {
		return false
	}
	id := m.buffer[gw]
	id.Version = version
	id.HaveVersion = true
	m.buffer[gw] = id
	return false
}

// Commit ends the enumeration cycle (triggered by
// ENUMERATION_END_RESPONSE) and returns the buffered identities to
// replace the persistent snapshot wholesale, plus true if a cycle was
// actually in progress (a commit with no prior Start is a no-op).
func (m *Machine) Commit() (map[frame.GatewayID]GatewayIdentity, bool) {
	if !m.enumerating {
		return nil, false
	}
	buffer := m.buffer
	m.enumerating = false
	m.buffer = nil
	return buffer, true
}
