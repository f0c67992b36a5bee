// Package bigint converts fixed-width little-endian two's-complement byte
// strings to and from math/big integers. Record fields wider than 8 bytes
// are encoded through it.
package bigint

import (
	"errors"
	"math/big"
	"slices"

	"github.com/holiman/uint256"
)

// MaxBytesLen is the maximum width of a serialized integer.
const MaxBytesLen = 32 // 256-bit integer

// ErrOutOfRange is returned when a value cannot be represented in the
// requested width.
var ErrOutOfRange = errors.New("integer out of range for width")

var bigOne = big.NewInt(1)

// FromBytes converts data in little-endian format to an integer, treating the
// highest bit of the last byte as the sign.
func FromBytes(data []byte) *big.Int {
	if len(data) == 0 {
		return big.NewInt(0)
	}
	be := slices.Clone(data)
	slices.Reverse(be)
	n := new(big.Int).SetBytes(be)
	if data[len(data)-1]&0x80 != 0 {
		n.Sub(n, new(big.Int).Lsh(bigOne, uint(8*len(data))))
	}
	return n
}

// FromBytesUnsigned converts data in little-endian format to an unsigned
// integer.
func FromBytesUnsigned(data []byte) *big.Int {
	if len(data) <= MaxBytesLen {
		return Uint256FromBytesUnsigned(data).ToBig()
	}
	be := slices.Clone(data)
	slices.Reverse(be)
	return new(big.Int).SetBytes(be)
}

// Uint256FromBytesUnsigned converts data of up to MaxBytesLen bytes in
// little-endian format to an unsigned integer.
func Uint256FromBytesUnsigned(data []byte) *uint256.Int {
	be := slices.Clone(data)
	slices.Reverse(be)
	return new(uint256.Int).SetBytes(be)
}

// FitsIn reports whether n is representable in width little-endian bytes
// with the given signedness.
func FitsIn(n *big.Int, width int, signed bool) bool {
	if width <= 0 {
		return false
	}
	if !signed {
		return n.Sign() >= 0 && n.BitLen() <= 8*width
	}
	if n.Sign() >= 0 {
		return n.BitLen() <= 8*width-1
	}
	// Negative bound is -(1 << (8*width-1)).
	lo := new(big.Int).Lsh(bigOne, uint(8*width-1))
	lo.Neg(lo)
	return n.Cmp(lo) >= 0
}

// ToBytes converts an integer to exactly width bytes in little-endian
// two's-complement format. It fails with ErrOutOfRange if the value does not
// fit.
func ToBytes(n *big.Int, width int, signed bool) ([]byte, error) {
	if !FitsIn(n, width, signed) {
		return nil, ErrOutOfRange
	}
	t := n
	if n.Sign() < 0 {
		t = new(big.Int).Add(n, new(big.Int).Lsh(bigOne, uint(8*width)))
	}
	be := t.Bytes()
	out := make([]byte, width)
	for i := range be {
		out[i] = be[len(be)-1-i]
	}
	return out, nil
}
