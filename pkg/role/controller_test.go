package role

import (
	"bytes"
	"sync"
	"testing"
	"time"

	"github.com/samsamfire/relxfer/pkg/endpoint"
	"github.com/samsamfire/relxfer/pkg/logging"
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

func testConfig() tunables.Config {
	cfg := tunables.Default()
	cfg.Timeout = 100 * time.Millisecond
	cfg.SegmentSize = 64
	cfg.WindowSize = 2
	return cfg
}

func TestServerBroadcastsToTwoClients(t *testing.T) {
	cfg := testConfig()
	serverEp := mustBind(t)
	server := NewServer(serverEp, cfg, logging.NewRecorder())

	clientA := mustBind(t)
	clientB := mustBind(t)

	payload := bytes.Repeat([]byte("relxfer-payload-"), 8)

	var wg sync.WaitGroup
	outA := &bytes.Buffer{}
	outB := &bytes.Buffer{}

	runClient := func(ep *endpoint.Endpoint, out *bytes.Buffer) {
		defer wg.Done()
		c := NewClient(ep, cfg, logging.NewRecorder())
		err := c.Run("127.0.0.1", serverEp.LocalAddr().Port, out)
		require.NoError(t, err)
	}

	wg.Add(2)
	go runClient(clientA, outA)
	go runClient(clientB, outB)

	count := 0
	err := server.Run(func(n int) bool {
		count = n
		return n < 2
	}, payload)
	require.NoError(t, err)
	require.Equal(t, 2, count)

	wg.Wait()
	require.Equal(t, payload, outA.Bytes())
	require.Equal(t, payload, outB.Bytes())
}

func TestPeerBidirectionalExchange(t *testing.T) {
	cfg := testConfig()
	epA := mustBind(t)
	epB := mustBind(t)

	fileA := bytes.Repeat([]byte("from-A-"), 10)
	fileB := bytes.Repeat([]byte("from-B-"), 6)

	var wg sync.WaitGroup
	wg.Add(2)

	outA := &bytes.Buffer{}
	outB := &bytes.Buffer{}
	var errA, errB error

	go func() {
		defer wg.Done()
		p := NewPeer(epA, cfg, logging.NewRecorder())
		errA = p.Run("127.0.0.1", epB.LocalAddr().Port, bytes.NewReader(fileA), outA)
	}()
	go func() {
		defer wg.Done()
		p := NewPeer(epB, cfg, logging.NewRecorder())
		errB = p.Run("127.0.0.1", epA.LocalAddr().Port, bytes.NewReader(fileB), outB)
	}()

	wg.Wait()
	require.NoError(t, errA)
	require.NoError(t, errB)
	require.Equal(t, fileB, outA.Bytes())
	require.Equal(t, fileA, outB.Bytes())
}
