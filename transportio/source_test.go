package transportio

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewTCPSourceDefaultsPort(t *testing.T) {
	s := NewTCPSource("gateway.local", 0)
	assert.Equal(t, DefaultTCPPort, s.Port)
}

func TestNewTCPSourceKeepsExplicitPort(t *testing.T) {
	s := NewTCPSource("gateway.local", 9999)
	assert.Equal(t, 9999, s.Port)
}

func TestNewSerialSourceDefaultsBaud(t *testing.T) {
	s := NewSerialSource("/dev/ttyUSB0", 0)
	assert.Equal(t, DefaultSerialBaud, s.Baud)
}

func TestReadOnUnconnectedTCPSourceErrors(t *testing.T) {
	s := &TCPSource{Host: "gateway.local", Port: 502}
	_, err := s.Read(make([]byte, 16))
	assert.Error(t, err)
}

func TestReadOnUnconnectedSerialSourceErrors(t *testing.T) {
	s := &SerialSource{Device: "/dev/ttyUSB0", Baud: 38400}
	_, err := s.Read(make([]byte, 16))
	assert.Error(t, err)
}

func TestCloseOnUnconnectedSourcesIsNoOp(t *testing.T) {
	tcp := &TCPSource{}
	assert.NoError(t, tcp.Close())

	sp := &SerialSource{}
	assert.NoError(t, sp.Close())
}
