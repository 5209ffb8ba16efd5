package infra

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tigotap/tigotap/frame"
)

func TestSetIdentityAndVersion(t *testing.T) {
	s := New()
	addr := frame.LongAddress{0x04, 0xC0, 1, 2, 3, 4, 5, 6}
	s.SetIdentity(2, addr)
	s.SetVersion(2, "1.2.3")

	snap := s.Snapshot()
	info, ok := snap.Gateways[2]
	assert.True(t, ok)
	assert.True(t, info.HaveLong)
	assert.Equal(t, addr, info.LongAddress)
	assert.True(t, info.HaveVersion)
	assert.Equal(t, "1.2.3", info.Version)
}

func TestReplaceGatewaysWholesale(t *testing.T) {
	s := New()
	s.SetIdentity(1, frame.LongAddress{0x04, 0xC0, 0, 0, 0, 0, 0, 1})

	replacement := map[frame.GatewayID]GatewayInfo{
		2: {LongAddress: frame.LongAddress{0x04, 0xC0, 0, 0, 0, 0, 0, 2}, HaveLong: true},
	}
	s.ReplaceGateways(replacement)

	snap := s.Snapshot()
	_, hasOld := snap.Gateways[1]
	assert.False(t, hasOld)
	_, hasNew := snap.Gateways[2]
	assert.True(t, hasNew)
}

func TestSnapshotIsADeepCopy(t *testing.T) {
	s := New()
	s.SetIdentity(1, frame.LongAddress{0x04, 0xC0, 0, 0, 0, 0, 0, 1})

	snap := s.Snapshot()
	info := snap.Gateways[1]
	info.Version = "mutated"
	snap.Gateways[1] = info

	snap2 := s.Snapshot()
	assert.NotEqual(t, "mutated", snap2.Gateways[1].Version)
}

func TestSetNodeTableAndLookup(t *testing.T) {
	s := New()
	addr := frame.LongAddress{0x04, 0xC0, 0x5B, 0x30, 0x00, 0x02, 0xBE, 0x16}
	s.SetNodeTable(1, map[frame.NodeID]frame.LongAddress{16: addr})

	got, ok := s.LookupNode(1, 16)
	assert.True(t, ok)
	assert.Equal(t, addr, got)

	_, ok = s.LookupNode(1, 99)
	assert.False(t, ok)

	_, ok = s.LookupNode(2, 16)
	assert.False(t, ok)
}

func TestSnapshotDerivesNodeBarcodes(t *testing.T) {
	s := New()
	addr := frame.LongAddress{0x04, 0xC0, 0x5B, 0x30, 0x00, 0x02, 0xBE, 0x16}
	s.SetNodeTable(1, map[frame.NodeID]frame.LongAddress{16: addr})

	snap := s.Snapshot()
	node, ok := snap.Nodes[16]
	assert.True(t, ok)
	assert.NotEmpty(t, node.Barcode)
}
