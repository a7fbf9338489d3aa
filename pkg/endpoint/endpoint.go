// Package endpoint implements the datagram transport the reliable-transport
// core is layered on: a bound UDP socket that sends one segment at a time
// and receives one segment at a time, with a caller-supplied timeout.
//
// This is the UDP-backed counterpart of this codebase's virtual in-process
// bus transport: the same bind/send/recv-with-deadline shape, adapted from
// a length-prefixed CAN frame stream to the protocol's 12-byte segment
// header plus payload, and from an always-connected TCP link to a
// destination-per-datagram UDP socket.
package endpoint

import (
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/samsamfire/relxfer/pkg/segment"
	"github.com/samsamfire/relxfer/pkg/tunables"
)

var (
	// ErrTimeout is returned by Recv when no datagram arrives within the
	// requested timeout.
	ErrTimeout = errors.New("endpoint: recv timed out")
	// ErrBindFailure is returned by Bind when the local address cannot be
	// acquired (e.g. the port is already in use).
	ErrBindFailure = errors.New("endpoint: bind failed")
	// ErrClosed is returned by Send/Recv after Close.
	ErrClosed = errors.New("endpoint: closed")
)

// Endpoint is a bound UDP socket exchanging segment.Segment datagrams.
// It performs no reassembly, reordering, or filtering: datagrams from a
// given peer may arrive dropped, reordered, or duplicated, and it is the
// caller's (C3/C4/C5's) job to cope with that.
type Endpoint struct {
	conn     *net.UDPConn
	maxDgram int
}

// Bind acquires a UDP socket on (ip, port). An empty ip binds all
// interfaces; port 0 lets the OS choose an ephemeral port.
func Bind(ip string, port int, maxSegmentSize int) (*Endpoint, error) {
	addr := &net.UDPAddr{IP: net.ParseIP(ip), Port: port}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBindFailure, err)
	}
	if maxSegmentSize <= 0 {
		maxSegmentSize = tunables.DefaultSegmentSize
	}
	return &Endpoint{conn: conn, maxDgram: maxSegmentSize}, nil
}

// LocalAddr returns the bound local address.
func (e *Endpoint) LocalAddr() *net.UDPAddr {
	return e.conn.LocalAddr().(*net.UDPAddr)
}

// Send is a best-effort, non-blocking write of one segment to (ip, port).
// There are no retries at this layer; the caller's protocol phase decides
// whether and when to retransmit.
func (e *Endpoint) Send(ip string, port int, s segment.Segment) error {
	dst := &net.UDPAddr{IP: net.ParseIP(ip), Port: port}
	_, err := e.conn.WriteToUDP(s.Encode(), dst)
	if errors.Is(err, net.ErrClosed) {
		return fmt.Errorf("%w: %v", ErrClosed, err)
	}
	return err
}

// Message is one received datagram, decoded and tagged with its sender.
type Message struct {
	IP      string
	Port    int
	Segment segment.Segment
}

// Recv blocks until one datagram arrives, decodes it, and returns it along
// with the sender's address. A timeout of tunables.Blocking (zero) waits
// indefinitely; any positive timeout returns ErrTimeout if nothing arrives
// in time. A too-short or checksum-invalid datagram surfaces as
// segment.ErrTooShort / segment.ErrInvalidChecksum; the caller decides
// whether to retry.
func (e *Endpoint) Recv(timeout time.Duration) (Message, error) {
	if timeout == tunables.Blocking {
		_ = e.conn.SetReadDeadline(time.Time{})
	} else {
		_ = e.conn.SetReadDeadline(time.Now().Add(timeout))
	}

	buf := make([]byte, e.maxDgram)
	n, addr, err := e.conn.ReadFromUDP(buf)
	if err != nil {
		if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
			return Message{}, ErrTimeout
		}
		if errors.Is(err, net.ErrClosed) {
			return Message{}, fmt.Errorf("%w: %v", ErrClosed, err)
		}
		return Message{}, err
	}

	s, err := segment.Decode(buf[:n])
	if err != nil {
		return Message{}, err
	}
	return Message{IP: addr.IP.String(), Port: addr.Port, Segment: s}, nil
}

// Close releases the socket.
func (e *Endpoint) Close() error {
	return e.conn.Close()
}
