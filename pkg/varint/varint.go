// Package varint implements the four variable-length integer encodings used
// by record schemas: ULEB128, signed LEB128, VLQ and the compact-index
// prefix-class encoding. All functions are pure and operate on single values;
// framing them into records is the record package's job.
package varint

import (
	"errors"
	"fmt"
	"strings"
)

// Scheme identifies one of the supported variable-length integer encodings.
type Scheme byte

const (
	// ULEB128 is the unsigned little-endian base-128 encoding: 7-bit groups,
	// least significant first, high bit set on all but the final byte.
	ULEB128 Scheme = iota
	// LEB128 is the signed variant of ULEB128. The second-highest bit of the
	// final byte sign-extends the remaining high bits.
	LEB128
	// VLQ is the unsigned big-endian base-128 encoding: 7-bit groups, most
	// significant first, high bit set on all but the final byte.
	VLQ
	// CompactIndex encodes the byte length in the first byte: values below
	// 0xfd stand for themselves, 0xfd/0xfe/0xff prefix a little-endian
	// uint16/uint32/uint64 payload. Unsigned only.
	CompactIndex
)

// MaxLen64 is the maximum length of a 7-bit-group encoded 64-bit value.
const MaxLen64 = 10

// maxCompactLen is the longest compact-index class (prefix + uint64).
const maxCompactLen = 9

// ErrOverflow is returned when a decoded value does not terminate within the
// permitted number of bytes or does not fit into 64 bits.
var ErrOverflow = errors.New("varint overflows byte limit")

// Limit bounds a single decode.
type Limit struct {
	// MaxBytes caps the encoded length of one value, zero means the scheme's
	// natural 64-bit maximum. Exceeding the cap fails with ErrOverflow.
	MaxBytes int
	// AllowShort makes a decoder return the partially accumulated value and
	// the consumed count instead of an error when the source ends mid-value.
	AllowShort bool
}

// cap returns the effective byte cap for a scheme.
func (l Limit) cap(natural int) int {
	if l.MaxBytes <= 0 || l.MaxBytes > natural {
		return natural
	}
	return l.MaxBytes
}

// Signed reports whether the scheme carries negative values.
func (s Scheme) Signed() bool {
	return s == LEB128
}

// String implements fmt.Stringer.
func (s Scheme) String() string {
	switch s {
	case ULEB128:
		return "uleb128"
	case LEB128:
		return "leb128"
	case VLQ:
		return "vlq"
	case CompactIndex:
		return "compact"
	default:
		return fmt.Sprintf("scheme(%d)", byte(s))
	}
}

// ParseScheme converts a scheme name as accepted in format definitions and
// CLI flags into a Scheme.
func ParseScheme(name string) (Scheme, error) {
	switch strings.ToLower(name) {
	case "uleb128":
		return ULEB128, nil
	case "leb128":
		return LEB128, nil
	case "vlq":
		return VLQ, nil
	case "compact", "compactindex", "compact-index":
		return CompactIndex, nil
	default:
		return 0, fmt.Errorf("unknown varint scheme %q", name)
	}
}
