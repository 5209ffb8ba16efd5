package app

import (
	"time"

	"github.com/tigotap/tigotap/frame"
)

// EventType discriminates the Event union.
type EventType string

const (
	EventTypePowerReport    EventType = "power_report"
	EventTypeInfrastructure EventType = "infrastructure"
	EventTypeTopology       EventType = "topology"
	EventTypeString         EventType = "string"
)

// Event is a tagged union of everything the parser can emit. Exactly
// one of the pointer fields matching Type is populated; callers switch
// on Type rather than testing each field for nil.
type Event struct {
	Type      EventType
	Timestamp time.Time

	PowerReport    *PowerReportEvent
	Infrastructure *InfrastructureEvent
	Topology       *TopologyEvent
	String         *StringEvent
}

// PowerReportEvent is a single optimizer's decoded measurement, with the
// derived output-current and power figures the gateway itself doesn't
// transmit.
type PowerReportEvent struct {
	GatewayID   frame.GatewayID
	NodeID      frame.NodeID
	Barcode     string
	HaveBarcode bool

	VoltageIn   float64
	VoltageOut  float64
	CurrentIn   float64
	CurrentOut  float64
	Power       float64
	Temperature float64
	DutyCycle   float64
	RSSI        byte
}

// NewPowerReportEvent derives a PowerReportEvent from a decoded
// PowerReport, computing output current and power the same way the
// reference implementation does: current_out = (v_in * i_in) / v_out,
// rounded to 4 decimal places, and zero whenever v_out is zero rather
// than dividing by it.
func NewPowerReportEvent(gw frame.GatewayID, node frame.NodeID, barcode string, haveBarcode bool, r PowerReport) PowerReportEvent {
	voltageIn := r.VoltageIn()
	voltageOut := r.VoltageOut()
	currentIn := r.Current()

	var currentOut float64
	if voltageOut != 0 {
		currentOut = round4(voltageIn * currentIn / voltageOut)
	}
	power := round4(currentOut * voltageOut)

	return PowerReportEvent{
		GatewayID:   gw,
		NodeID:      node,
		Barcode:     barcode,
		HaveBarcode: haveBarcode,
		VoltageIn:   voltageIn,
		VoltageOut:  voltageOut,
		CurrentIn:   currentIn,
		CurrentOut:  currentOut,
		Power:       power,
		Temperature: r.Temperature(),
		DutyCycle:   r.DutyCycle(),
		RSSI:        r.RSSI,
	}
}

// InfrastructureGateway is one entry of an InfrastructureEvent's
// gateway list.
type InfrastructureGateway struct {
	GatewayID   frame.GatewayID
	LongAddress frame.LongAddress
	HaveLong    bool
	Version     string
	HaveVersion bool
}

// InfrastructureNode is one entry of an InfrastructureEvent's node
// list.
type InfrastructureNode struct {
	NodeID      frame.NodeID
	LongAddress frame.LongAddress
	Barcode     string
	HaveBarcode bool
}

// InfrastructureEvent announces a freshly committed fleet topology:
// either an enumeration cycle's atomic commit, or a completed
// node-table page sequence for one gateway.
type InfrastructureEvent struct {
	Gateways []InfrastructureGateway
	Nodes    []InfrastructureNode
}

// TopologyEvent carries an opaque TOPOLOGY_REPORT payload verbatim.
// Unlike PowerReportEvent, its timestamp is the wall-clock time of
// receipt: topology reports carry no slot counter to convert.
type TopologyEvent struct {
	GatewayID frame.GatewayID
	NodeID    frame.NodeID
	Data      []byte
}

// StringEvent carries a decoded string message: "request" for a gateway
// COMMAND STRING_REQUEST/STRING_RESPONSE pair (content is the request's
// payload), and "response" for a PV-level STRING_RESPONSE pushed up
// through a RECEIVE_RESPONSE (content is the response's own payload).
// Like TopologyEvent, its timestamp is wall-clock.
type StringEvent struct {
	GatewayID frame.GatewayID
	NodeID    frame.NodeID
	Direction string
	Content   string
}
