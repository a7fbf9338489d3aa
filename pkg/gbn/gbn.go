// Package gbn implements the go-back-N sliding-window sender and the
// in-order receiver: the data-transfer half of the protocol, once a
// connection has been established by pkg/handshake. Grounded on this
// codebase's SDO segmented-transfer state machine (seq/toggle bookkeeping,
// timeout-driven retransmission, explicit step results) adapted from a
// single-segment-in-flight stop-and-wait exchange to a multi-segment
// sliding window with cumulative ACKs.
package gbn

import (
	"errors"
	"time"

	"github.com/samsamfire/relxfer/pkg/endpoint"
	"github.com/samsamfire/relxfer/pkg/logging"
	"github.com/samsamfire/relxfer/pkg/segment"
)

// recoverable reports whether err is retried internally rather than
// propagated as fatal.
func recoverable(err error) bool {
	return errors.Is(err, endpoint.ErrTimeout) ||
		errors.Is(err, segment.ErrInvalidChecksum) ||
		errors.Is(err, segment.ErrTooShort)
}

// Send transmits buf to (remoteIP, remotePort) as a sequence of segments of
// at most payloadSize bytes, using go-back-N with the given static window
// size, then performs FIN/FIN-ACK teardown. Returns only on success or a
// fatal transport error; timeouts and any out-of-order ACK are go-back-N's
// ordinary recovery path, not errors.
func Send(ep *endpoint.Endpoint, remoteIP string, remotePort int, buf []byte, payloadSize, windowSize int, timeout time.Duration, log logging.Sink) error {
	total := numSegments(len(buf), payloadSize)
	window := windowSize
	if total < window {
		window = total
	}
	if window < 1 {
		window = 1
	}

	seqBase := 0
	onTransfer := 0

	send := func(i int) error {
		lo := i * payloadSize
		hi := lo + payloadSize
		if hi > len(buf) {
			hi = len(buf)
		}
		seg := segment.Data(uint32(i), uint32(seqBase), buf[lo:hi])
		log.Info("sending data segment", "phase", "transfer", "seq", i)
		return ep.Send(remoteIP, remotePort, seg)
	}

	for seqBase < total {
		for onTransfer < window && seqBase+onTransfer < total {
			if err := send(seqBase + onTransfer); err != nil {
				return err
			}
			onTransfer++
		}

		msg, err := ep.Recv(timeout)
		if err != nil {
			if !recoverable(err) {
				return err
			}
			log.Warn("timeout waiting for ACK, retransmitting window", "phase", "transfer", "seq_base", seqBase)
			onTransfer = 0
			continue
		}
		if !msg.Segment.Flags.Has(segment.FlagACK) || msg.Segment.Flags.Has(segment.FlagSYN) {
			log.Warn("ignoring non-ACK segment during transfer", "phase", "transfer", "flags", msg.Segment.Flags.String())
			continue
		}
		if int(msg.Segment.AckNum) == seqBase {
			seqBase++
			onTransfer--
			log.Info("window advanced", "phase", "transfer", "seq_base", seqBase)
			continue
		}
		log.Warn("ACK mismatch, retransmitting window", "phase", "transfer", "seq_base", seqBase, "ack_num", msg.Segment.AckNum)
		onTransfer = 0
	}

	return teardown(ep, remoteIP, remotePort, timeout, log)
}

// teardown sends FIN and retransmits it on timeout/corruption until
// FIN-ACK is observed.
func teardown(ep *endpoint.Endpoint, remoteIP string, remotePort int, timeout time.Duration, log logging.Sink) error {
	fin := segment.FIN()
	log.Info("sending FIN", "phase", "teardown")
	if err := ep.Send(remoteIP, remotePort, fin); err != nil {
		return err
	}
	for {
		msg, err := ep.Recv(timeout)
		if err != nil {
			if !recoverable(err) {
				return err
			}
			log.Warn("retransmitting FIN", "phase", "teardown", "reason", err)
			if err := ep.Send(remoteIP, remotePort, fin); err != nil {
				return err
			}
			continue
		}
		if msg.Segment.Equal(segment.FINACK()) {
			log.Info("teardown complete", "phase", "teardown")
			return nil
		}
		log.Warn("ignoring unexpected segment during teardown", "phase", "teardown", "flags", msg.Segment.Flags.String())
	}
}

// numSegments is ceil(length / payloadSize). An empty buffer yields zero
// segments: the sender's loop condition (seqBase == total) is immediately
// true, so Send goes directly to FIN/FIN-ACK teardown with no data segment.
func numSegments(length, payloadSize int) int {
	n := length / payloadSize
	if length%payloadSize != 0 {
		n++
	}
	return n
}

// Recv blocks, accumulating in-order segments into a byte buffer (segments
// are accepted from any sender address; ACKs go back to each segment's
// sender), until FIN arrives, then replies FIN-ACK and returns
// the assembled buffer. Out-of-window segments are dropped silently;
// duplicates of already-accepted segments are re-ACKed to help the
// sender's go-back-N recovery converge.
func Recv(ep *endpoint.Endpoint, log logging.Sink) ([]byte, error) {
	expected := 0
	var output []byte

	for {
		msg, err := ep.Recv(0) // Blocking
		if err != nil {
			if !recoverable(err) {
				return nil, err
			}
			log.Warn("dropping malformed datagram during transfer", "phase", "transfer", "reason", err)
			continue
		}

		seg := msg.Segment
		switch {
		case seg.Equal(segment.FIN()):
			log.Info("received FIN, flushing output", "phase", "teardown", "bytes", len(output))
			if err := ep.Send(msg.IP, msg.Port, segment.FINACK()); err != nil {
				return nil, err
			}
			return output, nil

		case seg.Flags.Has(segment.FlagMSG) && int(seg.SeqNum) == expected:
			output = append(output, seg.Payload...)
			if err := ep.Send(msg.IP, msg.Port, segment.ACK(uint32(expected), uint32(expected))); err != nil {
				return nil, err
			}
			log.Info("accepted segment", "phase", "transfer", "seq", expected)
			expected++

		case seg.Flags.Has(segment.FlagMSG) && int(seg.SeqNum) < expected:
			log.Info("re-acking duplicate segment", "phase", "transfer", "seq", seg.SeqNum)
			if err := ep.Send(msg.IP, msg.Port, segment.ACK(seg.SeqNum, seg.SeqNum)); err != nil {
				return nil, err
			}

		default:
			log.Warn("dropping out-of-window segment", "phase", "transfer", "seq", seg.SeqNum, "expected", expected)
		}
	}
}
