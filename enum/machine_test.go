package enum

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tigotap/tigotap/frame"
)

func TestIdleObservationsApplyDirectly(t *testing.T) {
	m := NewMachine()
	direct := m.ObserveIdentity(2, frame.LongAddress{0x04, 0xC0, 1, 2, 3, 4, 5, 6})
	assert.True(t, direct)
	assert.False(t, m.Enumerating())
}

func TestEnumerationBuffersNonTargetUpdates(t *testing.T) {
	m := NewMachine()
	m.Start(1) // gateway 1 is the enumerator itself

	direct := m.ObserveIdentity(2, frame.LongAddress{0x04, 0xC0, 0, 0, 0, 0, 0, 2})
	assert.False(t, direct)

	direct = m.ObserveVersion(2, "1.0.0")
	assert.False(t, direct)

	buffer, committed := m.Commit()
	require.True(t, committed)
	require.Contains(t, buffer, frame.GatewayID(2))
	assert.Equal(t, "1.0.0", buffer[2].Version)
}

func TestEnumerationIgnoresEnumeratorsOwnResponses(t *testing.T) {
	m := NewMachine()
	m.Start(2)

	direct := m.ObserveIdentity(2, frame.LongAddress{0x04, 0xC0, 0, 0, 0, 0, 0, 9})
	assert.False(t, direct)

	buffer, committed := m.Commit()
	require.True(t, committed)
	assert.NotContains(t, buffer, frame.GatewayID(2))
}

func TestCommitWithoutStartIsNoOp(t *testing.T) {
	m := NewMachine()
	_, committed := m.Commit()
	assert.False(t, committed)
}

func TestCommitResetsToIdle(t *testing.T) {
	m := NewMachine()
	m.Start(1)
	m.Commit()
	assert.False(t, m.Enumerating())

	direct := m.ObserveIdentity(3, frame.LongAddress{0x04, 0xC0, 0, 0, 0, 0, 0, 3})
	assert.True(t, direct)
}
