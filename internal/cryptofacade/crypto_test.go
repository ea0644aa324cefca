package cryptofacade

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSumDeterministic(t *testing.T) {
	a := Sum([]byte("hello"))
	b := Sum([]byte("hello"))
	assert.Equal(t, a, b)
	assert.False(t, a.IsZero())
}

func TestSumAllMatchesConcatenation(t *testing.T) {
	left := []byte("left")
	right := []byte("right")
	got := SumAll(left, right)
	want := Sum(append(append([]byte{}, left...), right...))
	assert.Equal(t, want, got)
}

func TestSignAndVerify(t *testing.T) {
	kp, err := GenerateKeyPair()
	require.NoError(t, err)

	payload := []byte("sign me")
	sig := kp.Sign(payload)
	require.NoError(t, Verify(kp.Public, payload, sig))

	other, err := GenerateKeyPair()
	require.NoError(t, err)
	assert.ErrorIs(t, Verify(other.Public, payload, sig), ErrSignatureVerificationFailed)
}
