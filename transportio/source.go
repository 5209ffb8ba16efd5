// Package transportio provides the raw byte sources the coordinator
// reads from: a TCP gateway connection or a local serial port. Sources
// carry no protocol knowledge of their own — they hand back whatever
// bytes arrived, leaving framing to the parser package.
package transportio

import (
	"errors"
	"net"
	"strconv"
	"time"

	"github.com/tarm/serial"
)

// Source is anything the coordinator can read a gateway's byte stream
// from.
type Source interface {
	Connect() error
	Read(buf []byte) (int, error)
	Close() error
}

const tcpReadTimeout = 10 * time.Second

// TCPSource connects to a TAP gateway's bridge over TCP (the usual
// deployment: an ESP-based serial-to-WiFi bridge sitting between the
// gateway and the host).
type TCPSource struct {
	Host string
	Port int

	conn net.Conn
}

// DefaultTCPPort matches the gateway bridge's default listening port.
const DefaultTCPPort = 502

// NewTCPSource returns a TCPSource targeting host:port. Port 0 selects
// DefaultTCPPort.
func NewTCPSource(host string, port int) *TCPSource {
	if port == 0 {
		port = DefaultTCPPort
	}
	return &TCPSource{Host: host, Port: port}
}

// Connect dials the gateway bridge and enables TCP keepalive with a 10s
// keepalive period. The probe interval and probe count are whatever
// SetKeepAlivePeriod and the operating system apply; they are not set
// separately.
func (s *TCPSource) Connect() error {
	conn, err := net.DialTimeout("tcp", net.JoinHostPort(s.Host, strconv.Itoa(s.Port)), tcpReadTimeout)
	if err != nil {
		return err
	}
	if tcpConn, ok := conn.(*net.TCPConn); ok {
		_ = tcpConn.SetKeepAlive(true)
		_ = tcpConn.SetKeepAlivePeriod(10 * time.Second)
	}
	s.conn = conn
	return nil
}

// Read returns up to len(buf) bytes, or (0, nil) on a read timeout
// (matching the source contract's "empty read means try again" rule)
// rather than propagating the deadline-exceeded error.
func (s *TCPSource) Read(buf []byte) (int, error) {
	if s.conn == nil {
		return 0, errors.New("transportio: TCP source not connected")
	}
	_ = s.conn.SetReadDeadline(time.Now().Add(tcpReadTimeout))
	n, err := s.conn.Read(buf)
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return 0, nil
		}
		return n, err
	}
	return n, nil
}

// Close closes the underlying connection.
func (s *TCPSource) Close() error {
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}

// DefaultSerialBaud matches the reference gateway's serial bridge rate.
const DefaultSerialBaud = 38400

// SerialSource reads a TAP gateway's byte stream directly off a local
// serial port.
type SerialSource struct {
	Device string
	Baud   int

	port *serial.Port
}

// NewSerialSource returns a SerialSource for device at baud. Baud 0
// selects DefaultSerialBaud.
func NewSerialSource(device string, baud int) *SerialSource {
	if baud == 0 {
		baud = DefaultSerialBaud
	}
	return &SerialSource{Device: device, Baud: baud}
}

// Connect opens the serial port 8N1, matching the reference client.
func (s *SerialSource) Connect() error {
	cfg := &serial.Config{
		Name:        s.Device,
		Baud:        s.Baud,
		ReadTimeout: time.Second,
		Size:        8,
		Parity:      serial.ParityNone,
		StopBits:    serial.Stop1,
	}
	port, err := serial.OpenPort(cfg)
	if err != nil {
		return err
	}
	s.port = port
	return nil
}

// Read returns up to len(buf) bytes, or (0, nil) on the port's 1s read
// timeout.
func (s *SerialSource) Read(buf []byte) (int, error) {
	if s.port == nil {
		return 0, errors.New("transportio: serial source not connected")
	}
	return s.port.Read(buf)
}

// Close closes the serial port.
func (s *SerialSource) Close() error {
	if s.port == nil {
		return nil
	}
	err := s.port.Close()
	s.port = nil
	return err
}
