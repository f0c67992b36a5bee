package record

import (
	"errors"
	"fmt"
	"math"
	"math/big"

	"github.com/holiman/uint256"
	"github.com/nspcc-dev/binrec/pkg/encoding/bigint"
	"github.com/nspcc-dev/binrec/pkg/io"
	"github.com/nspcc-dev/binrec/pkg/varint"
)

// UInt8 declares an unsigned 8-bit integer field.
func UInt8(name string, opts ...Option) *FieldSpec {
	return intField(name, 1, false, opts)
}

// UInt16 declares an unsigned 16-bit integer field, little-endian unless
// BigEndian is given.
func UInt16(name string, opts ...Option) *FieldSpec {
	return intField(name, 2, false, opts)
}

// UInt32 declares an unsigned 32-bit integer field.
func UInt32(name string, opts ...Option) *FieldSpec {
	return intField(name, 4, false, opts)
}

// UInt64 declares an unsigned 64-bit integer field.
func UInt64(name string, opts ...Option) *FieldSpec {
	return intField(name, 8, false, opts)
}

// Int8 declares a signed 8-bit integer field.
func Int8(name string, opts ...Option) *FieldSpec {
	return intField(name, 1, true, opts)
}

// Int16 declares a signed 16-bit integer field.
func Int16(name string, opts ...Option) *FieldSpec {
	return intField(name, 2, true, opts)
}

// Int32 declares a signed 32-bit integer field.
func Int32(name string, opts ...Option) *FieldSpec {
	return intField(name, 4, true, opts)
}

// Int64 declares a signed 64-bit integer field.
func Int64(name string, opts ...Option) *FieldSpec {
	return intField(name, 8, true, opts)
}

func intField(name string, width int, signed bool, opts []Option) *FieldSpec {
	f := newField(name, kindInt, intCodec{})
	f.width = width
	f.signed = signed
	return f.applyOpts(opts)
}

// Float32 declares an IEEE 754 single-precision field. Values surface as
// float64.
func Float32(name string, opts ...Option) *FieldSpec {
	f := newField(name, kindFloat, floatCodec{})
	f.width = 4
	return f.applyOpts(opts)
}

// Float64 declares an IEEE 754 double-precision field.
func Float64(name string, opts ...Option) *FieldSpec {
	f := newField(name, kindFloat, floatCodec{})
	f.width = 8
	return f.applyOpts(opts)
}

// VarUint declares a variable-length unsigned integer field in the given
// scheme. The signed LEB128 scheme is declared through VarInt instead.
func VarUint(name string, scheme varint.Scheme, opts ...Option) *FieldSpec {
	f := newField(name, kindVarInt, varintCodec{})
	f.scheme = scheme
	if scheme == varint.LEB128 {
		f.fail("use VarInt for the signed LEB128 scheme")
	}
	return f.applyOpts(opts)
}

// VarInt declares a signed LEB128 field.
func VarInt(name string, opts ...Option) *FieldSpec {
	f := newField(name, kindVarInt, varintCodec{})
	f.scheme = varint.LEB128
	f.signed = true
	return f.applyOpts(opts)
}

// BigInt declares a fixed-width two's complement integer field of up to 32
// bytes, decoded into *big.Int. It is signed unless the Unsigned option is
// given.
func BigInt(name string, width int, opts ...Option) *FieldSpec {
	f := newField(name, kindBigInt, bigIntCodec{})
	f.width = width
	f.signed = true
	if width < 1 || width > bigint.MaxBytesLen {
		f.fail("width %d out of range [1, %d]", width, bigint.MaxBytesLen)
	}
	return f.applyOpts(opts)
}

type intCodec struct{}

func (intCodec) decode(r *io.BinReader, f *FieldSpec, _ int, _ *State) (any, error) {
	buf := make([]byte, f.width)
	r.ReadBytes(buf)
	if r.Err != nil {
		return nil, r.Err
	}
	v := rawUint(buf, f.bigEnd)
	if f.signed {
		return signExtend(v, f.width), nil
	}
	return v, nil
}

func (intCodec) encode(w *io.BinWriter, f *FieldSpec, v any, _ *State) error {
	u, err := intBits(f, v)
	if err != nil {
		return err
	}
	w.WriteBytes(putRawUint(u, f.width, f.bigEnd))
	return w.Err
}

func (intCodec) sizeOf(f *FieldSpec, _ any, _ *State) (int, error) {
	return f.width, nil
}

func (intCodec) staticSize(f *FieldSpec) int {
	return f.width
}

func (intCodec) normalize(f *FieldSpec, v any) (any, error) {
	if f.signed {
		return normInt64(v)
	}
	return normUint64(v)
}

// rawUint assembles up to 8 bytes into a raw bit pattern.
func rawUint(b []byte, bigEnd bool) uint64 {
	var v uint64
	if bigEnd {
		for _, c := range b {
			v = v<<8 | uint64(c)
		}
	} else {
		for i := len(b) - 1; i >= 0; i-- {
			v = v<<8 | uint64(b[i])
		}
	}
	return v
}

// putRawUint spreads the low width bytes of u in the given order.
func putRawUint(u uint64, width int, bigEnd bool) []byte {
	buf := make([]byte, width)
	if bigEnd {
		for i := width - 1; i >= 0; i-- {
			buf[i] = byte(u)
			u >>= 8
		}
	} else {
		for i := range buf {
			buf[i] = byte(u)
			u >>= 8
		}
	}
	return buf
}

// signExtend interprets the low 8*width bits of v as two's complement.
func signExtend(v uint64, width int) int64 {
	if width < 8 && v&(1<<(uint(width)*8-1)) != 0 {
		v |= ^uint64(0) << (uint(width) * 8)
	}
	return int64(v)
}

// intBits range-checks a normalized integer against the field width and
// returns its raw bit pattern.
func intBits(f *FieldSpec, v any) (uint64, error) {
	if f.signed {
		n := v.(int64)
		if f.width < 8 {
			half := int64(1) << (uint(f.width)*8 - 1)
			if n < -half || n > half-1 {
				return 0, fmt.Errorf("%w: %d does not fit %d signed bytes", ErrValueSize, n, f.width)
			}
		}
		return uint64(n), nil
	}
	n := v.(uint64)
	if f.width < 8 && n >= 1<<(uint(f.width)*8) {
		return 0, fmt.Errorf("%w: %d does not fit %d unsigned bytes", ErrValueSize, n, f.width)
	}
	return n, nil
}

// normInt64 coerces integer-typed values to the signed canonical form.
func normInt64(v any) (any, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case int8:
		return int64(n), nil
	case int16:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case uint:
		return normInt64(uint64(n))
	case uint8:
		return int64(n), nil
	case uint16:
		return int64(n), nil
	case uint32:
		return int64(n), nil
	case uint64:
		if n > math.MaxInt64 {
			return nil, fmt.Errorf("%w: %d overflows int64", ErrValueSize, n)
		}
		return int64(n), nil
	case *big.Int:
		if !n.IsInt64() {
			return nil, fmt.Errorf("%w: %s overflows int64", ErrValueSize, n)
		}
		return n.Int64(), nil
	}
	return nil, fmt.Errorf("%w: %T is not an integer", ErrUnserializableValue, v)
}

// normUint64 coerces integer-typed values to the unsigned canonical form.
func normUint64(v any) (any, error) {
	switch n := v.(type) {
	case uint64:
		return n, nil
	case uint:
		return uint64(n), nil
	case uint8:
		return uint64(n), nil
	case uint16:
		return uint64(n), nil
	case uint32:
		return uint64(n), nil
	case int:
		return normUint64(int64(n))
	case int8:
		return normUint64(int64(n))
	case int16:
		return normUint64(int64(n))
	case int32:
		return normUint64(int64(n))
	case int64:
		if n < 0 {
			return nil, fmt.Errorf("%w: %d is negative", ErrValueSize, n)
		}
		return uint64(n), nil
	case *big.Int:
		if !n.IsUint64() {
			return nil, fmt.Errorf("%w: %s overflows uint64", ErrValueSize, n)
		}
		return n.Uint64(), nil
	}
	return nil, fmt.Errorf("%w: %T is not an integer", ErrUnserializableValue, v)
}

type floatCodec struct{}

func (floatCodec) decode(r *io.BinReader, f *FieldSpec, _ int, _ *State) (any, error) {
	if f.width == 4 {
		var u uint32
		if f.bigEnd {
			u = r.ReadU32BE()
		} else {
			u = r.ReadU32LE()
		}
		if r.Err != nil {
			return nil, r.Err
		}
		return float64(math.Float32frombits(u)), nil
	}
	var u uint64
	if f.bigEnd {
		u = r.ReadU64BE()
	} else {
		u = r.ReadU64LE()
	}
	if r.Err != nil {
		return nil, r.Err
	}
	return math.Float64frombits(u), nil
}

func (floatCodec) encode(w *io.BinWriter, f *FieldSpec, v any, _ *State) error {
	x := v.(float64)
	if f.width == 4 {
		if !math.IsInf(x, 0) && math.Abs(x) > math.MaxFloat32 {
			return fmt.Errorf("%w: %g does not fit float32", ErrValueSize, x)
		}
		u := math.Float32bits(float32(x))
		if f.bigEnd {
			w.WriteU32BE(u)
		} else {
			w.WriteU32LE(u)
		}
		return w.Err
	}
	u := math.Float64bits(x)
	if f.bigEnd {
		w.WriteU64BE(u)
	} else {
		w.WriteU64LE(u)
	}
	return w.Err
}

func (floatCodec) sizeOf(f *FieldSpec, _ any, _ *State) (int, error) {
	return f.width, nil
}

func (floatCodec) staticSize(f *FieldSpec) int {
	return f.width
}

func (floatCodec) normalize(_ *FieldSpec, v any) (any, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	}
	return nil, fmt.Errorf("%w: %T is not a float", ErrUnserializableValue, v)
}

type varintCodec struct{}

func (varintCodec) decode(r *io.BinReader, f *FieldSpec, _ int, _ *State) (any, error) {
	lim := varint.Limit{MaxBytes: f.maxBytes}
	var (
		v   any
		err error
	)
	switch f.scheme {
	case varint.LEB128:
		v, _, err = varint.DecodeLEB128(r, lim)
	case varint.VLQ:
		v, _, err = varint.DecodeVLQ(r, lim)
	case varint.CompactIndex:
		v, _, err = varint.DecodeCompact(r, lim)
	default:
		v, _, err = varint.DecodeULEB128(r, lim)
	}
	if err != nil {
		if errors.Is(err, varint.ErrOverflow) {
			return nil, fmt.Errorf("%w: %w", ErrDeserialization, err)
		}
		return nil, err
	}
	return v, nil
}

func (varintCodec) encode(w *io.BinWriter, f *FieldSpec, v any, _ *State) error {
	var buf []byte
	switch f.scheme {
	case varint.LEB128:
		buf = varint.AppendLEB128(nil, v.(int64))
	case varint.VLQ:
		buf = varint.AppendVLQ(nil, v.(uint64))
	case varint.CompactIndex:
		buf = varint.AppendCompact(nil, v.(uint64))
	default:
		buf = varint.AppendULEB128(nil, v.(uint64))
	}
	if f.maxBytes > 0 && len(buf) > f.maxBytes {
		return fmt.Errorf("%w: %d encoded bytes exceed limit %d", ErrValueSize, len(buf), f.maxBytes)
	}
	w.WriteBytes(buf)
	return w.Err
}

func (varintCodec) sizeOf(f *FieldSpec, v any, _ *State) (int, error) {
	switch f.scheme {
	case varint.LEB128:
		return varint.SizeLEB128(v.(int64)), nil
	case varint.VLQ:
		return varint.SizeVLQ(v.(uint64)), nil
	case varint.CompactIndex:
		return varint.SizeCompact(v.(uint64)), nil
	default:
		return varint.SizeULEB128(v.(uint64)), nil
	}
}

func (varintCodec) staticSize(_ *FieldSpec) int {
	return -1
}

func (varintCodec) normalize(f *FieldSpec, v any) (any, error) {
	if f.scheme.Signed() {
		return normInt64(v)
	}
	return normUint64(v)
}

type bigIntCodec struct{}

func (bigIntCodec) decode(r *io.BinReader, f *FieldSpec, _ int, _ *State) (any, error) {
	buf := make([]byte, f.width)
	r.ReadBytes(buf)
	if r.Err != nil {
		return nil, r.Err
	}
	if f.bigEnd {
		reverse(buf)
	}
	if f.signed {
		return bigint.FromBytes(buf), nil
	}
	return bigint.FromBytesUnsigned(buf), nil
}

func (bigIntCodec) encode(w *io.BinWriter, f *FieldSpec, v any, _ *State) error {
	n := v.(*big.Int)
	buf, err := bigint.ToBytes(n, f.width, f.signed)
	if err != nil {
		return fmt.Errorf("%w: %s does not fit %d bytes", ErrValueSize, n, f.width)
	}
	if f.bigEnd {
		reverse(buf)
	}
	w.WriteBytes(buf)
	return w.Err
}

func (bigIntCodec) sizeOf(f *FieldSpec, _ any, _ *State) (int, error) {
	return f.width, nil
}

func (bigIntCodec) staticSize(f *FieldSpec) int {
	return f.width
}

func (bigIntCodec) normalize(_ *FieldSpec, v any) (any, error) {
	switch n := v.(type) {
	case *big.Int:
		return n, nil
	case *uint256.Int:
		return n.ToBig(), nil
	case int:
		return big.NewInt(int64(n)), nil
	case int32:
		return big.NewInt(int64(n)), nil
	case int64:
		return big.NewInt(n), nil
	case uint64:
		return new(big.Int).SetUint64(n), nil
	case string:
		b, ok := new(big.Int).SetString(n, 0)
		if !ok {
			return nil, fmt.Errorf("%w: %q is not an integer literal", ErrUnserializableValue, n)
		}
		return b, nil
	}
	return nil, fmt.Errorf("%w: %T is not an integer", ErrUnserializableValue, v)
}

func reverse(b []byte) {
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
}
