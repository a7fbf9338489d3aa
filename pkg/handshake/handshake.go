// Package handshake drives the three-way handshake from either side of a
// connection: the asymmetric client/server enrollment and transfer-start
// sequences, and the symmetric peer role-negotiation sequence. Modelled as
// an explicit sequence of typed sends/waits rather than exception-driven
// control flow: every recoverable failure (timeout, bad checksum) is
// retried inside the function that observed it and never escapes.
package handshake

import (
	"errors"
	"time"

	"github.com/samsamfire/relxfer/pkg/endpoint"
	"github.com/samsamfire/relxfer/pkg/logging"
	"github.com/samsamfire/relxfer/pkg/segment"
)

// State names a connection's lifecycle phase.
type State int

const (
	StateIdle State = iota
	StateHandshaking
	StateEstablished
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateHandshaking:
		return "handshaking"
	case StateEstablished:
		return "established"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// recoverable reports whether err is one of the kinds the handshake engine
// retries internally: a recv timeout or a corrupt segment. Every other
// error (bind/IO failures) is fatal and unwinds to the role orchestrator.
func recoverable(err error) bool {
	return errors.Is(err, endpoint.ErrTimeout) ||
		errors.Is(err, segment.ErrInvalidChecksum) ||
		errors.Is(err, segment.ErrTooShort)
}

// ClientEnroll sends SYN(0) to (serverIP, serverPort) and retransmits on
// every timeout or checksum failure until ACK(0,0) is received. It never
// returns an error for recoverable failures; it returns only on success or
// on a fatal (non-recoverable) transport error.
func ClientEnroll(ep *endpoint.Endpoint, serverIP string, serverPort int, timeout time.Duration, log logging.Sink) error {
	syn := segment.SYN(0)
	log.Info("sending enrollment SYN", "phase", "enroll", "to", serverIP, "port", serverPort)
	if err := ep.Send(serverIP, serverPort, syn); err != nil {
		return err
	}
	for {
		msg, err := ep.Recv(timeout)
		if err != nil {
			if !recoverable(err) {
				return err
			}
			log.Warn("retransmitting enrollment SYN", "phase", "enroll", "reason", err)
			if err := ep.Send(serverIP, serverPort, syn); err != nil {
				return err
			}
			continue
		}
		if msg.Segment.Equal(segment.ACK(0, 0)) {
			log.Info("enrollment acknowledged", "phase", "enroll", "from", msg.IP, "port", msg.Port)
			return nil
		}
		log.Warn("ignoring unexpected segment during enrollment", "phase", "enroll", "flags", msg.Segment.Flags.String())
	}
}

// ServerEnrollOnce blocks until one client SYN(0) arrives, registers the
// sender by replying ACK(0,0), and returns the sender's address. It is
// called in a loop by the server orchestrator, which decides via an
// external oracle whether to keep enrolling.
func ServerEnrollOnce(ep *endpoint.Endpoint, log logging.Sink) (clientIP string, clientPort int, err error) {
	for {
		msg, err := ep.Recv(0) // Blocking
		if err != nil {
			if !recoverable(err) {
				return "", 0, err
			}
			log.Warn("dropping malformed datagram during enrollment", "phase", "enroll", "reason", err)
			continue
		}
		if !msg.Segment.Equal(segment.SYN(0)) {
			log.Warn("ignoring unexpected segment during enrollment", "phase", "enroll", "flags", msg.Segment.Flags.String())
			continue
		}
		log.Info("received enrollment SYN", "phase", "enroll", "from", msg.IP, "port", msg.Port)
		if err := ep.Send(msg.IP, msg.Port, segment.ACK(0, 0)); err != nil {
			return "", 0, err
		}
		return msg.IP, msg.Port, nil
	}
}

// ServerInitiate drives the transfer-start handshake from the server side:
// send SYN(0), retransmitting on timeout/corruption, until SYN|ACK is
// observed, then send a final, non-retransmitted ACK(0,0). Per the open
// question in the design notes, a lost final ACK is not fatal: the first
// data segment serves as implicit confirmation to the receiver.
func ServerInitiate(ep *endpoint.Endpoint, clientIP string, clientPort int, timeout time.Duration, log logging.Sink) error {
	syn := segment.SYN(0)
	log.Info("sending transfer-start SYN", "phase", "handshake", "to", clientIP, "port", clientPort)
	if err := ep.Send(clientIP, clientPort, syn); err != nil {
		return err
	}
	for {
		msg, err := ep.Recv(timeout)
		if err != nil {
			if !recoverable(err) {
				return err
			}
			log.Warn("retransmitting transfer-start SYN", "phase", "handshake", "reason", err)
			if err := ep.Send(clientIP, clientPort, syn); err != nil {
				return err
			}
			continue
		}
		if msg.Segment.Equal(segment.SYNACK()) {
			log.Info("received SYN-ACK, sending final ACK", "phase", "handshake", "from", msg.IP, "port", msg.Port)
			return ep.Send(clientIP, clientPort, segment.ACK(0, 0))
		}
		log.Warn("ignoring unexpected segment during transfer-start", "phase", "handshake", "flags", msg.Segment.Flags.String())
	}
}

// ClientAwaitInitiate blocks until the server's transfer-start SYN(0)
// arrives and echoes SYN|ACK.
func ClientAwaitInitiate(ep *endpoint.Endpoint, log logging.Sink) error {
	for {
		msg, err := ep.Recv(0) // Blocking
		if err != nil {
			if !recoverable(err) {
				return err
			}
			log.Warn("dropping malformed datagram awaiting transfer-start", "phase", "handshake", "reason", err)
			continue
		}
		if !msg.Segment.Equal(segment.SYN(0)) {
			log.Warn("ignoring unexpected segment awaiting transfer-start", "phase", "handshake", "flags", msg.Segment.Flags.String())
			continue
		}
		log.Info("received transfer-start SYN, replying SYN-ACK", "phase", "handshake", "from", msg.IP, "port", msg.Port)
		return ep.Send(msg.IP, msg.Port, segment.SYNACK())
	}
}

// NegotiateRole implements the symmetric peer handshake (§4.3(b)): the peer
// first listens for the remote's SYN(0) with a finite timeout. If one
// arrives, this peer is the passive side and becomes the initial receiver.
// On timeout or checksum error, it flips to the active side, initiates its
// own handshake, and becomes the initial sender. If both peers time out and
// go active together, each receives the other's SYN(0): the peer whose local
// port is higher than remotePort yields and completes the handshake as the
// passive side; with equal port numbers neither side yields.
func NegotiateRole(ep *endpoint.Endpoint, remoteIP string, remotePort int, timeout time.Duration, log logging.Sink) (isInitialSender bool, err error) {
	for {
		msg, err := ep.Recv(timeout)
		if err != nil {
			if !recoverable(err) {
				return false, err
			}
			log.Info("no SYN observed, becoming active side", "phase", "negotiate", "reason", err)
			return activeNegotiate(ep, remoteIP, remotePort, timeout, log)
		}
		if !msg.Segment.Equal(segment.SYN(0)) {
			log.Warn("ignoring unexpected segment during negotiation", "phase", "negotiate", "flags", msg.Segment.Flags.String())
			continue
		}
		log.Info("received SYN, becoming passive side", "phase", "negotiate", "from", msg.IP, "port", msg.Port)
		return passiveNegotiate(ep, remoteIP, remotePort, timeout, log)
	}
}

// passiveNegotiate completes the three-way handshake as the side that
// observed the remote's SYN first: reply SYN|ACK, await ACK(0,0).
func passiveNegotiate(ep *endpoint.Endpoint, remoteIP string, remotePort int, timeout time.Duration, log logging.Sink) (bool, error) {
	synAck := segment.SYNACK()
	if err := ep.Send(remoteIP, remotePort, synAck); err != nil {
		return false, err
	}
	for {
		msg, err := ep.Recv(timeout)
		if err != nil {
			if !recoverable(err) {
				return false, err
			}
			log.Warn("retransmitting SYN-ACK", "phase", "negotiate", "reason", err)
			if err := ep.Send(remoteIP, remotePort, synAck); err != nil {
				return false, err
			}
			continue
		}
		if msg.Segment.Equal(segment.ACK(0, 0)) {
			log.Info("negotiation complete, starting as initial receiver", "phase", "negotiate")
			return false, nil
		}
		log.Warn("ignoring unexpected segment during negotiation", "phase", "negotiate", "flags", msg.Segment.Flags.String())
	}
}

// activeNegotiate completes the three-way handshake as the side that timed
// out waiting for the remote's SYN: send SYN(0), await SYN|ACK, send ACK.
func activeNegotiate(ep *endpoint.Endpoint, remoteIP string, remotePort int, timeout time.Duration, log logging.Sink) (bool, error) {
	syn := segment.SYN(0)
	if err := ep.Send(remoteIP, remotePort, syn); err != nil {
		return false, err
	}
	for {
		msg, err := ep.Recv(timeout)
		if err != nil {
			if !recoverable(err) {
				return false, err
			}
			log.Warn("retransmitting SYN", "phase", "negotiate", "reason", err)
			if err := ep.Send(remoteIP, remotePort, syn); err != nil {
				return false, err
			}
			continue
		}
		if msg.Segment.Equal(segment.SYNACK()) {
			log.Info("negotiation complete, starting as initial sender", "phase", "negotiate")
			return true, ep.Send(remoteIP, remotePort, segment.ACK(0, 0))
		}
		if msg.Segment.Equal(segment.SYN(0)) && ep.LocalAddr().Port > remotePort {
			log.Info("simultaneous SYN, yielding to passive side", "phase", "negotiate", "from", msg.IP, "port", msg.Port)
			return passiveNegotiate(ep, remoteIP, remotePort, timeout, log)
		}
		log.Warn("ignoring unexpected segment during negotiation", "phase", "negotiate", "flags", msg.Segment.Flags.String())
	}
}
