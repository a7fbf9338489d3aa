// Package role implements the three program roles that drive the
// reliable-transport core: a server broadcasting a file to enrolled
// clients, a client receiving from a server, and a peer exchanging files
// bidirectionally with a symmetric counterpart. Grounded on this
// codebase's node controller, which owns a single resource for its
// lifetime and exposes a small Start/Stop/Wait-shaped surface; here each
// role instead runs to completion synchronously, matching the core's
// single-threaded, no-cancellation scheduling model.
package role

import (
	"io"

	"github.com/samsamfire/relxfer/pkg/endpoint"
	"github.com/samsamfire/relxfer/pkg/gbn"
	"github.com/samsamfire/relxfer/pkg/handshake"
	"github.com/samsamfire/relxfer/pkg/logging"
	"github.com/samsamfire/relxfer/pkg/tunables"
)

// ClientInfo identifies one enrolled client by its UDP address.
type ClientInfo struct {
	IP   string
	Port int
}

// AcceptMore is consulted by the server after every successful enrollment;
// it returns false once the server should stop enrolling and begin
// broadcasting to the clients enrolled so far. count is the number of
// clients enrolled including the one that just completed.
type AcceptMore func(count int) bool

// Server broadcasts one payload to a set of enrolled clients, serially.
type Server struct {
	ep  *endpoint.Endpoint
	cfg tunables.Config
	log logging.Sink
}

// NewServer constructs a Server bound to ep.
func NewServer(ep *endpoint.Endpoint, cfg tunables.Config, log logging.Sink) *Server {
	if log == nil {
		log = logging.NewRecorder()
	}
	return &Server{ep: ep, cfg: cfg, log: log}
}

// Run drives the server role to completion: enroll clients until accept
// returns false, then hand each one, in enrollment order, a fresh
// transfer-start handshake followed by a full go-back-N transfer of
// payload and a FIN teardown. The enrollment list is frozen before any
// transfer begins, matching the core's single-threaded, no-concurrency
// scheduling model.
func (s *Server) Run(accept AcceptMore, payload []byte) error {
	var registry []ClientInfo
	for {
		ip, port, err := handshake.ServerEnrollOnce(s.ep, s.log)
		if err != nil {
			return err
		}
		registry = append(registry, ClientInfo{IP: ip, Port: port})
		s.log.Info("client enrolled", "phase", "enroll", "ip", ip, "port", port, "count", len(registry))
		if !accept(len(registry)) {
			break
		}
	}

	for _, client := range registry {
		s.log.Info("starting transfer to enrolled client", "phase", "handshake", "ip", client.IP, "port", client.Port)
		if err := handshake.ServerInitiate(s.ep, client.IP, client.Port, s.cfg.Timeout, s.log); err != nil {
			return err
		}
		if err := gbn.Send(s.ep, client.IP, client.Port, payload, s.cfg.PayloadSize(), s.cfg.WindowSize, s.cfg.Timeout, s.log); err != nil {
			return err
		}
	}
	return nil
}

// Client enrolls with a server and receives one file.
type Client struct {
	ep  *endpoint.Endpoint
	cfg tunables.Config
	log logging.Sink
}

// NewClient constructs a Client bound to ep.
func NewClient(ep *endpoint.Endpoint, cfg tunables.Config, log logging.Sink) *Client {
	if log == nil {
		log = logging.NewRecorder()
	}
	return &Client{ep: ep, cfg: cfg, log: log}
}

// Run enrolls with (serverIP, serverPort), awaits the server-initiated
// transfer-start handshake, receives the file via go-back-N, and writes
// the assembled bytes to output.
func (c *Client) Run(serverIP string, serverPort int, output io.Writer) error {
	if err := handshake.ClientEnroll(c.ep, serverIP, serverPort, c.cfg.Timeout, c.log); err != nil {
		return err
	}
	if err := handshake.ClientAwaitInitiate(c.ep, c.log); err != nil {
		return err
	}
	buf, err := gbn.Recv(c.ep, c.log)
	if err != nil {
		return err
	}
	_, err = output.Write(buf)
	return err
}

// Peer performs a symmetric, bidirectional file exchange with one remote
// peer: negotiate who sends first, exchange in that order, then swap
// roles and exchange a second file in the opposite direction.
type Peer struct {
	ep  *endpoint.Endpoint
	cfg tunables.Config
	log logging.Sink
}

// NewPeer constructs a Peer bound to ep.
func NewPeer(ep *endpoint.Endpoint, cfg tunables.Config, log logging.Sink) *Peer {
	if log == nil {
		log = logging.NewRecorder()
	}
	return &Peer{ep: ep, cfg: cfg, log: log}
}

// Run reads input in full, negotiates the initial send/receive order with
// (remoteIP, remotePort), exchanges that file in the negotiated order,
// then swaps roles and exchanges a second, fresh handshake and transfer in
// the opposite direction, writing whatever this peer ultimately receives
// to output.
func (p *Peer) Run(remoteIP string, remotePort int, input io.Reader, output io.Writer) error {
	payload, err := io.ReadAll(input)
	if err != nil {
		return err
	}

	isInitialSender, err := handshake.NegotiateRole(p.ep, remoteIP, remotePort, p.cfg.Timeout, p.log)
	if err != nil {
		return err
	}

	if isInitialSender {
		if err := gbn.Send(p.ep, remoteIP, remotePort, payload, p.cfg.PayloadSize(), p.cfg.WindowSize, p.cfg.Timeout, p.log); err != nil {
			return err
		}
		p.log.Info("swapping roles, awaiting second handshake", "phase", "handshake")
		if err := handshake.ClientAwaitInitiate(p.ep, p.log); err != nil {
			return err
		}
		received, err := gbn.Recv(p.ep, p.log)
		if err != nil {
			return err
		}
		_, err = output.Write(received)
		return err
	}

	received, err := gbn.Recv(p.ep, p.log)
	if err != nil {
		return err
	}
	if _, err := output.Write(received); err != nil {
		return err
	}
	p.log.Info("swapping roles, initiating second handshake", "phase", "handshake")
	if err := handshake.ServerInitiate(p.ep, remoteIP, remotePort, p.cfg.Timeout, p.log); err != nil {
		return err
	}
	return gbn.Send(p.ep, remoteIP, remotePort, payload, p.cfg.PayloadSize(), p.cfg.WindowSize, p.cfg.Timeout, p.log)
}
