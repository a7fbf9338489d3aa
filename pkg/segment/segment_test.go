package segment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTripControlSegments(t *testing.T) {
	cases := []Segment{
		SYN(0),
		SYNACK(),
		ACK(0, 0),
		FIN(),
		FINACK(),
		Data(3, 3, []byte("hello")),
		Data(0, 0, nil),
	}
	for _, s := range cases {
		encoded := s.Encode()
		decoded, err := Decode(encoded)
		require.NoError(t, err)
		assert.True(t, s.Equal(decoded), "got %+v want %+v", decoded, s)
	}
}

func TestDecodeRejectsShortBuffer(t *testing.T) {
	_, err := Decode(make([]byte, HeaderSize-1))
	assert.ErrorIs(t, err, ErrTooShort)
}

func TestDecodeDetectsBitFlips(t *testing.T) {
	encoded := Data(5, 5, []byte("ABCDE")).Encode()
	for i := range encoded {
		for bit := 0; bit < 8; bit++ {
			corrupt := append([]byte(nil), encoded...)
			corrupt[i] ^= 1 << bit
			_, err := Decode(corrupt)
			assert.ErrorIs(t, err, ErrInvalidChecksum, "byte %d bit %d should be detected", i, bit)
		}
	}
}

func TestEqualIgnoresConstructionPath(t *testing.T) {
	a := Segment{SeqNum: 1, AckNum: 2, Flags: FlagMSG, Payload: []byte("x")}
	b := Data(1, 2, []byte("x"))
	assert.True(t, a.Equal(b))
}

func TestFlagString(t *testing.T) {
	assert.Equal(t, "SYN|ACK", (FlagSYN | FlagACK).String())
	assert.Equal(t, "NONE", Flag(0).String())
}
