package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTripScalars(t *testing.T) {
	e := NewEncoder()
	e.U8(7)
	e.U32(1234)
	e.U64(9_999_999_999)

	d := NewDecoder(e.Bytes())
	u8, err := d.U8()
	require.NoError(t, err)
	assert.Equal(t, uint8(7), u8)

	u32, err := d.U32()
	require.NoError(t, err)
	assert.Equal(t, uint32(1234), u32)

	u64, err := d.U64()
	require.NoError(t, err)
	assert.Equal(t, uint64(9_999_999_999), u64)
}

func TestRoundTripCompactLen(t *testing.T) {
	for _, n := range []int{0, 1, 127, 128, 300, 100000} {
		e := NewEncoder()
		e.CompactLen(n)
		d := NewDecoder(e.Bytes())
		got, err := d.CompactLen()
		require.NoError(t, err)
		assert.Equal(t, n, got)
	}
}

func TestRoundTripRawBytesAndString(t *testing.T) {
	e := NewEncoder()
	e.RawBytes([]byte("hello"))
	e.String("world")

	d := NewDecoder(e.Bytes())
	b, err := d.RawBytes()
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), b)

	s, err := d.String()
	require.NoError(t, err)
	assert.Equal(t, "world", s)
}

func TestTruncatedInputErrors(t *testing.T) {
	d := NewDecoder([]byte{0x01})
	_, err := d.U32()
	assert.ErrorIs(t, err, ErrTruncated)
}
