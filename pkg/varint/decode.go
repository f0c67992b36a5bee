package varint

import (
	"errors"
	"io"
	"math"
)

// DecodeULEB128 reads one ULEB128-encoded value from r. It returns the value
// and the number of bytes consumed. Non-minimal encodings are accepted.
func DecodeULEB128(r io.ByteReader, lim Limit) (uint64, int, error) {
	max := lim.cap(MaxLen64)
	var v uint64
	var shift uint
	n := 0
	for {
		if n == max {
			return 0, n, ErrOverflow
		}
		b, err := r.ReadByte()
		if err != nil {
			if lim.AllowShort && isEOF(err) {
				return v, n, nil
			}
			return 0, n, mapEOF(err, n)
		}
		n++
		if n == MaxLen64 && b > 1 {
			return 0, n, ErrOverflow
		}
		v |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			return v, n, nil
		}
		shift += 7
	}
}

// DecodeLEB128 reads one signed LEB128-encoded value from r. The
// second-highest bit of the final byte sign-extends the undecoded high bits.
func DecodeLEB128(r io.ByteReader, lim Limit) (int64, int, error) {
	max := lim.cap(MaxLen64)
	var v uint64
	var shift uint
	n := 0
	for {
		if n == max {
			return 0, n, ErrOverflow
		}
		b, err := r.ReadByte()
		if err != nil {
			if lim.AllowShort && isEOF(err) {
				return int64(v), n, nil
			}
			return 0, n, mapEOF(err, n)
		}
		n++
		// The tenth byte holds bit 63 alone, anything else cannot fit.
		if n == MaxLen64 && b != 0x00 && b != 0x7f {
			return 0, n, ErrOverflow
		}
		if shift < 64 {
			v |= uint64(b&0x7f) << shift
		}
		shift += 7
		if b&0x80 == 0 {
			if shift < 64 && b&0x40 != 0 {
				v |= ^uint64(0) << shift
			}
			return int64(v), n, nil
		}
	}
}

// DecodeVLQ reads one VLQ-encoded value from r, most significant group
// first.
func DecodeVLQ(r io.ByteReader, lim Limit) (uint64, int, error) {
	max := lim.cap(MaxLen64)
	var v uint64
	n := 0
	for {
		if n == max {
			return 0, n, ErrOverflow
		}
		b, err := r.ReadByte()
		if err != nil {
			if lim.AllowShort && isEOF(err) {
				return v, n, nil
			}
			return 0, n, mapEOF(err, n)
		}
		n++
		if v > math.MaxUint64>>7 {
			return 0, n, ErrOverflow
		}
		v = v<<7 | uint64(b&0x7f)
		if b&0x80 == 0 {
			return v, n, nil
		}
	}
}

// DecodeCompact reads one compact-index-encoded value from r. The first byte
// selects the payload class, the payload is little-endian.
func DecodeCompact(r io.ByteReader, lim Limit) (uint64, int, error) {
	max := lim.cap(maxCompactLen)
	b, err := r.ReadByte()
	if err != nil {
		if lim.AllowShort && isEOF(err) {
			return 0, 0, nil
		}
		return 0, 0, err
	}
	n := 1
	var need int
	switch b {
	case 0xfd:
		need = 2
	case 0xfe:
		need = 4
	case 0xff:
		need = 8
	default:
		return uint64(b), n, nil
	}
	if n+need > max {
		return 0, n, ErrOverflow
	}
	var v uint64
	for i := 0; i < need; i++ {
		c, err := r.ReadByte()
		if err != nil {
			if lim.AllowShort && isEOF(err) {
				return v, n, nil
			}
			return 0, n, mapEOF(err, n)
		}
		v |= uint64(c) << (8 * i)
		n++
	}
	return v, n, nil
}

func isEOF(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}

// mapEOF keeps io.EOF for clean zero-byte reads and upgrades an end of input
// in the middle of a value to io.ErrUnexpectedEOF.
func mapEOF(err error, n int) error {
	if n > 0 && errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}
