package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecorderCountsByLevel(t *testing.T) {
	r := NewRecorder()
	r.Info("enrolled client", "phase", "enroll")
	r.Warn("retransmitting SYN", "phase", "handshake")
	r.Warn("retransmitting SYN", "phase", "handshake")
	r.Error("fatal bind failure")

	assert.Equal(t, 1, r.Count("info"))
	assert.Equal(t, 2, r.Count("warn"))
	assert.Equal(t, 1, r.Count("error"))
	assert.Equal(t, 0, r.Count("prompt"))
}

func TestRecorderPreservesFields(t *testing.T) {
	r := NewRecorder()
	r.Info("segment accepted", "seq", 3, "ack", 3)

	require := r.Events[0]
	assert.Equal(t, "segment accepted", require.Msg)
	assert.Equal(t, []any{"seq", 3, "ack", 3}, require.Fields)
}

func TestNewWrapsNilLoggerWithoutPanic(t *testing.T) {
	sink := New(nil)
	assert.NotPanics(t, func() {
		sink.Info("ready")
	})
}
