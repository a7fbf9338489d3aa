package endpoint

import (
	"testing"
	"time"

	"github.com/samsamfire/relxfer/pkg/segment"
	"github.com/samsamfire/relxfer/pkg/tunables"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustBind(t *testing.T) *Endpoint {
	t.Helper()
	ep, err := Bind("127.0.0.1", 0, tunables.DefaultSegmentSize)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ep.Close() })
	return ep
}

func TestSendAndRecvRoundTrip(t *testing.T) {
	a := mustBind(t)
	b := mustBind(t)

	want := segment.Data(3, 3, []byte("hello"))
	require.NoError(t, a.Send("127.0.0.1", b.LocalAddr().Port, want))

	msg, err := b.Recv(time.Second)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1", msg.IP)
	assert.Equal(t, a.LocalAddr().Port, msg.Port)
	assert.True(t, want.Equal(msg.Segment))
}

func TestRecvTimesOutWhenNothingArrives(t *testing.T) {
	a := mustBind(t)

	_, err := a.Recv(50 * time.Millisecond)
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestRecvSurfacesInvalidChecksum(t *testing.T) {
	a := mustBind(t)
	b := mustBind(t)

	encoded := segment.Data(1, 1, []byte("x")).Encode()
	encoded[len(encoded)-1] ^= 0xFF // corrupt payload byte
	// Send the corrupted bytes directly, bypassing Segment.Encode's checksum.
	dst := b.LocalAddr()
	_, err := a.conn.WriteToUDP(encoded, dst)
	require.NoError(t, err)

	_, err = b.Recv(time.Second)
	assert.ErrorIs(t, err, segment.ErrInvalidChecksum)
}

func TestBindRejectsPortInUse(t *testing.T) {
	a := mustBind(t)
	_, err := Bind("127.0.0.1", a.LocalAddr().Port, tunables.DefaultSegmentSize)
	assert.ErrorIs(t, err, ErrBindFailure)
}
