// Package segment implements the wire framing for the reliable-transport
// core: the 12-byte segment header, its checksum, and the control/data
// segment builders used by the handshake and go-back-N components.
package segment

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/samsamfire/relxfer/internal/crc16"
)

// Flag is a bitfield describing the role of a segment.
type Flag uint8

const (
	FlagFIN Flag = 0x01
	FlagSYN Flag = 0x02
	FlagMSG Flag = 0x08 // vendor marker for bare data segments
	FlagACK Flag = 0x10
)

func (f Flag) Has(bit Flag) bool { return f&bit != 0 }

func (f Flag) String() string {
	if f == 0 {
		return "NONE"
	}
	s := ""
	for _, pair := range []struct {
		bit  Flag
		name string
	}{
		{FlagSYN, "SYN"},
		{FlagACK, "ACK"},
		{FlagFIN, "FIN"},
		{FlagMSG, "MSG"},
	} {
		if f.Has(pair.bit) {
			if s != "" {
				s += "|"
			}
			s += pair.name
		}
	}
	return s
}

// HeaderSize is the fixed size of a segment header, in bytes.
const HeaderSize = 12

var (
	// ErrTooShort is returned by Decode when the buffer is shorter than HeaderSize.
	ErrTooShort = errors.New("segment: buffer shorter than header size")
	// ErrInvalidChecksum is returned by Decode when the recomputed CRC does
	// not match the transmitted checksum field.
	ErrInvalidChecksum = errors.New("segment: invalid checksum")
)

// Segment is the in-memory representation of one wire datagram.
type Segment struct {
	SeqNum  uint32
	AckNum  uint32
	Flags   Flag
	Payload []byte
}

// SYN builds a bare control SYN segment with the given sequence number.
func SYN(seq uint32) Segment { return Segment{SeqNum: seq, Flags: FlagSYN} }

// SYNACK builds a bare SYN|ACK control segment.
func SYNACK() Segment { return Segment{Flags: FlagSYN | FlagACK} }

// ACK builds a bare ACK control segment carrying the given seq/ack numbers.
func ACK(seq, ack uint32) Segment { return Segment{SeqNum: seq, AckNum: ack, Flags: FlagACK} }

// FIN builds a bare FIN control segment.
func FIN() Segment { return Segment{Flags: FlagFIN} }

// FINACK builds a bare FIN|ACK control segment.
func FINACK() Segment { return Segment{Flags: FlagFIN | FlagACK} }

// Data builds a data segment carrying payload, tagged with the MSG marker.
// seq is the segment's index in the transfer; ack is the sender's current
// base and is informational only.
func Data(seq, ack uint32, payload []byte) Segment {
	return Segment{SeqNum: seq, AckNum: ack, Flags: FlagMSG, Payload: payload}
}

// Equal reports whether two segments carry identical header fields and
// payload bytes. This is the comparison the handshake engine uses to
// recognize a previously-sent control segment echoed back by a peer.
func (s Segment) Equal(other Segment) bool {
	if s.SeqNum != other.SeqNum || s.AckNum != other.AckNum || s.Flags != other.Flags {
		return false
	}
	if len(s.Payload) != len(other.Payload) {
		return false
	}
	for i := range s.Payload {
		if s.Payload[i] != other.Payload[i] {
			return false
		}
	}
	return true
}

// checksumWire computes the CRC-16 over the wire bytes exactly as they
// appear in hdr and payload, with the checksum field (hdr[10:12]) treated
// as zero. Operating on the raw wire bytes rather than the parsed fields
// means any corrupted bit anywhere in the 12-byte header, including the
// reserved byte, changes the computed checksum.
func checksumWire(hdr [HeaderSize]byte, payload []byte) uint16 {
	hdr[10] = 0
	hdr[11] = 0
	var c crc16.CRC16
	c.Update(hdr[:])
	c.Update(payload)
	return uint16(c)
}

// Encode produces the wire layout: 12-byte header followed by payload.
func (s Segment) Encode() []byte {
	buf := make([]byte, HeaderSize+len(s.Payload))
	binary.BigEndian.PutUint32(buf[0:4], s.SeqNum)
	binary.BigEndian.PutUint32(buf[4:8], s.AckNum)
	buf[8] = byte(s.Flags)
	buf[9] = 0
	copy(buf[12:], s.Payload)

	var hdr [HeaderSize]byte
	copy(hdr[:], buf[:HeaderSize])
	binary.BigEndian.PutUint16(buf[10:12], checksumWire(hdr, s.Payload))
	return buf
}

// Decode parses the wire layout into a Segment, verifying the checksum
// against the raw received bytes before trusting any field.
func Decode(buf []byte) (Segment, error) {
	if len(buf) < HeaderSize {
		return Segment{}, fmt.Errorf("%w: got %d bytes", ErrTooShort, len(buf))
	}

	var hdr [HeaderSize]byte
	copy(hdr[:], buf[:HeaderSize])
	payload := buf[HeaderSize:]

	wantChecksum := binary.BigEndian.Uint16(buf[10:12])
	if checksumWire(hdr, payload) != wantChecksum {
		return Segment{}, ErrInvalidChecksum
	}

	s := Segment{
		SeqNum: binary.BigEndian.Uint32(buf[0:4]),
		AckNum: binary.BigEndian.Uint32(buf[4:8]),
		Flags:  Flag(buf[8]),
	}
	if len(payload) > 0 {
		s.Payload = append([]byte(nil), payload...)
	}
	return s, nil
}
