package bigint

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignedRoundTrip(t *testing.T) {
	values := []int64{0, 1, -1, 127, -128, 128, -129, 255, 256, -256, 32767,
		-32768, 1 << 40, -(1 << 40)}
	for _, width := range []int{2, 3, 4, 8, 16, 32} {
		for _, v := range values {
			n := big.NewInt(v)
			if !FitsIn(n, width, true) {
				continue
			}
			enc, err := ToBytes(n, width, true)
			require.NoError(t, err)
			require.Equal(t, width, len(enc))
			assert.Zero(t, n.Cmp(FromBytes(enc)), "width %d value %d", width, v)
		}
	}
}

func TestUnsignedRoundTrip(t *testing.T) {
	values := []uint64{0, 1, 127, 128, 255, 256, 65535, 1 << 32, 1 << 63}
	for _, width := range []int{1, 2, 3, 4, 8, 16, 32} {
		for _, v := range values {
			n := new(big.Int).SetUint64(v)
			if !FitsIn(n, width, false) {
				continue
			}
			enc, err := ToBytes(n, width, false)
			require.NoError(t, err)
			require.Equal(t, width, len(enc))
			assert.Zero(t, n.Cmp(FromBytesUnsigned(enc)), "width %d value %d", width, v)
		}
	}
}

func TestKnownEncodings(t *testing.T) {
	enc, err := ToBytes(big.NewInt(-1), 2, true)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xff, 0xff}, enc)

	enc, err = ToBytes(big.NewInt(-256), 2, true)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0xff}, enc)

	enc, err = ToBytes(big.NewInt(0x1234), 4, false)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x34, 0x12, 0x00, 0x00}, enc)

	// The unsigned reader ignores the sign bit.
	assert.Equal(t, int64(0xffff), FromBytesUnsigned([]byte{0xff, 0xff}).Int64())
	assert.Equal(t, int64(-1), FromBytes([]byte{0xff, 0xff}).Int64())
}

func TestFitsIn(t *testing.T) {
	assert.True(t, FitsIn(big.NewInt(127), 1, true))
	assert.False(t, FitsIn(big.NewInt(128), 1, true))
	assert.True(t, FitsIn(big.NewInt(-128), 1, true))
	assert.False(t, FitsIn(big.NewInt(-129), 1, true))
	assert.True(t, FitsIn(big.NewInt(255), 1, false))
	assert.False(t, FitsIn(big.NewInt(256), 1, false))
	assert.False(t, FitsIn(big.NewInt(-1), 1, false))
	assert.False(t, FitsIn(big.NewInt(1), 0, false))

	big16 := new(big.Int).Lsh(bigOne, 127)
	assert.False(t, FitsIn(big16, 16, true))
	assert.True(t, FitsIn(big16, 16, false))
	assert.True(t, FitsIn(new(big.Int).Sub(big16, bigOne), 16, true))
	assert.True(t, FitsIn(new(big.Int).Neg(big16), 16, true))
}

func TestOutOfRange(t *testing.T) {
	_, err := ToBytes(big.NewInt(256), 1, false)
	assert.ErrorIs(t, err, ErrOutOfRange)
	_, err = ToBytes(big.NewInt(-1), 4, false)
	assert.ErrorIs(t, err, ErrOutOfRange)
	_, err = ToBytes(big.NewInt(32768), 2, true)
	assert.ErrorIs(t, err, ErrOutOfRange)
}

func TestUint256Parity(t *testing.T) {
	data := []byte{0x2c, 0x01, 0x00, 0xff}
	assert.Zero(t, FromBytesUnsigned(data).Cmp(Uint256FromBytesUnsigned(data).ToBig()))
}
