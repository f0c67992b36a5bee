package record

import (
	"fmt"
	"time"

	"github.com/nspcc-dev/binrec/pkg/io"
)

// Timestamp32 declares a signed 32-bit Unix timestamp field. The stored
// resolution defaults to seconds, WithTimeUnit changes it. Values surface as
// time.Time in UTC.
func Timestamp32(name string, opts ...Option) *FieldSpec {
	f := newField(name, kindTime, timeCodec{})
	f.width = 4
	f.signed = true
	return f.applyOpts(opts)
}

// Timestamp64 declares a signed 64-bit Unix timestamp field.
func Timestamp64(name string, opts ...Option) *FieldSpec {
	f := newField(name, kindTime, timeCodec{})
	f.width = 8
	f.signed = true
	return f.applyOpts(opts)
}

type timeCodec struct{}

func (timeCodec) decode(r *io.BinReader, f *FieldSpec, _ int, _ *State) (any, error) {
	buf := make([]byte, f.width)
	r.ReadBytes(buf)
	if r.Err != nil {
		return nil, r.Err
	}
	n := signExtend(rawUint(buf, f.bigEnd), f.width)
	return timeFromUnits(n, f.unit), nil
}

func (timeCodec) encode(w *io.BinWriter, f *FieldSpec, v any, _ *State) error {
	n := unitsFromTime(v.(time.Time), f.unit)
	if f.width < 8 {
		half := int64(1) << (uint(f.width)*8 - 1)
		if n < -half || n > half-1 {
			return fmt.Errorf("%w: timestamp %d%s does not fit %d bytes", ErrValueSize, n, f.unit, f.width)
		}
	}
	w.WriteBytes(putRawUint(uint64(n), f.width, f.bigEnd))
	return w.Err
}

func (timeCodec) sizeOf(f *FieldSpec, _ any, _ *State) (int, error) {
	return f.width, nil
}

func (timeCodec) staticSize(f *FieldSpec) int {
	return f.width
}

func (timeCodec) normalize(f *FieldSpec, v any) (any, error) {
	switch t := v.(type) {
	case time.Time:
		return t.UTC(), nil
	case int:
		return timeFromUnits(int64(t), f.unit), nil
	case int64:
		return timeFromUnits(t, f.unit), nil
	case uint64:
		n, err := normInt64(t)
		if err != nil {
			return nil, err
		}
		return timeFromUnits(n.(int64), f.unit), nil
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, t)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not an RFC 3339 timestamp", ErrUnserializableValue, t)
		}
		return parsed.UTC(), nil
	}
	return nil, fmt.Errorf("%w: %T is not a timestamp", ErrUnserializableValue, v)
}

func timeFromUnits(n int64, u TimeUnit) time.Time {
	switch u {
	case Milliseconds:
		return time.UnixMilli(n).UTC()
	case Microseconds:
		return time.UnixMicro(n).UTC()
	case Nanoseconds:
		return time.Unix(0, n).UTC()
	default:
		return time.Unix(n, 0).UTC()
	}
}

func unitsFromTime(t time.Time, u TimeUnit) int64 {
	switch u {
	case Milliseconds:
		return t.UnixMilli()
	case Microseconds:
		return t.UnixMicro()
	case Nanoseconds:
		return t.UnixNano()
	default:
		return t.Unix()
	}
}
