package handshake

import (
	"testing"
	"time"

	"github.com/samsamfire/relxfer/pkg/endpoint"
	"github.com/samsamfire/relxfer/pkg/logging"
	"github.com/samsamfire/relxfer/pkg/segment"
	"github.com/samsamfire/relxfer/pkg/tunables"
	"github.com/stretchr/testify/require"
)

func mustBind(t *testing.T) *endpoint.Endpoint {
	t.Helper()
	ep, err := endpoint.Bind("127.0.0.1", 0, tunables.DefaultSegmentSize)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ep.Close() })
	return ep
}

func TestClientServerEnrollment(t *testing.T) {
	server := mustBind(t)
	client := mustBind(t)

	serverDone := make(chan struct {
		ip   string
		port int
		err  error
	}, 1)
	go func() {
		ip, port, err := ServerEnrollOnce(server, logging.NewRecorder())
		serverDone <- struct {
			ip   string
			port int
			err  error
		}{ip, port, err}
	}()

	err := ClientEnroll(client, "127.0.0.1", server.LocalAddr().Port, 200*time.Millisecond, logging.NewRecorder())
	require.NoError(t, err)

	result := <-serverDone
	require.NoError(t, result.err)
	require.Equal(t, client.LocalAddr().Port, result.port)
}

func TestTransferStartHandshake(t *testing.T) {
	server := mustBind(t)
	client := mustBind(t)

	clientDone := make(chan error, 1)
	go func() {
		clientDone <- ClientAwaitInitiate(client, logging.NewRecorder())
	}()

	err := ServerInitiate(server, "127.0.0.1", client.LocalAddr().Port, 200*time.Millisecond, logging.NewRecorder())
	require.NoError(t, err)
	require.NoError(t, <-clientDone)
}

func TestPeerNegotiationIsAsymmetric(t *testing.T) {
	peerA := mustBind(t)
	peerB := mustBind(t)

	type result struct {
		isSender bool
		err      error
	}
	aDone := make(chan result, 1)
	bDone := make(chan result, 1)

	go func() {
		isSender, err := NegotiateRole(peerA, "127.0.0.1", peerB.LocalAddr().Port, 150*time.Millisecond, logging.NewRecorder())
		aDone <- result{isSender, err}
	}()
	// Give peerA a head start so it times out waiting and becomes active,
	// while peerB listens passively from the start.
	time.Sleep(20 * time.Millisecond)
	go func() {
		isSender, err := NegotiateRole(peerB, "127.0.0.1", peerA.LocalAddr().Port, 150*time.Millisecond, logging.NewRecorder())
		bDone <- result{isSender, err}
	}()

	ra := <-aDone
	rb := <-bDone
	require.NoError(t, ra.err)
	require.NoError(t, rb.err)
	require.NotEqual(t, ra.isSender, rb.isSender)
}

func TestClientEnrollRetransmitsOnTimeout(t *testing.T) {
	client := mustBind(t)
	listener := mustBind(t)

	// No responder at all for the first 120ms: listener then drains the
	// queued datagrams, counts how many SYNs arrived, and replies.
	synCount := make(chan int, 1)
	go func() {
		time.Sleep(120 * time.Millisecond)
		var last endpoint.Message
		n := 0
		for {
			msg, err := listener.Recv(10 * time.Millisecond)
			if err != nil {
				break
			}
			last = msg
			n++
		}
		synCount <- n
		if n > 0 {
			_ = listener.Send(last.IP, last.Port, segment.ACK(0, 0))
		}
	}()

	err := ClientEnroll(client, "127.0.0.1", listener.LocalAddr().Port, 40*time.Millisecond, logging.NewRecorder())
	require.NoError(t, err)
	require.Greater(t, <-synCount, 1)
}
