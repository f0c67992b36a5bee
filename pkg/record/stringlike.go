package record

import (
	"bytes"
	"fmt"
	gio "io"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/nspcc-dev/binrec/pkg/io"
)

// Bytes declares a raw byte-string field. With a size policy it reads and
// writes exactly that many bytes, without one it consumes the rest of the
// input on load and writes values as-is on dump.
func Bytes(name string, opts ...Option) *FieldSpec {
	return newField(name, kindBytes, bytesCodec{}).applyOpts(opts)
}

// String declares a sized text field. A size policy is required, the byte
// budget counts encoded bytes. Text is UTF-8 unless WithEncoding overrides.
func String(name string, opts ...Option) *FieldSpec {
	return newField(name, kindString, stringCodec{}).applyOpts(opts)
}

// StringZ declares a zero-terminated text field. The terminator is the
// encoding's representation of NUL, so multi-byte encodings scan in whole
// code units.
func StringZ(name string, opts ...Option) *FieldSpec {
	return newField(name, kindStringZ, stringZCodec{}).applyOpts(opts)
}

// UUID declares a 16-byte RFC 4122 identifier field.
func UUID(name string, opts ...Option) *FieldSpec {
	return newField(name, kindUUID, uuidCodec{}).applyOpts(opts)
}

type bytesCodec struct{}

func (bytesCodec) decode(r *io.BinReader, _ *FieldSpec, size int, _ *State) (any, error) {
	if size < 0 {
		data, err := gio.ReadAll(r)
		if err != nil {
			return nil, err
		}
		return data, nil
	}
	data := make([]byte, size)
	r.ReadBytes(data)
	if r.Err != nil {
		return nil, r.Err
	}
	return data, nil
}

func (bytesCodec) encode(w *io.BinWriter, f *FieldSpec, v any, st *State) error {
	data := v.([]byte)
	if f.size.kind != sizeNone {
		expected, err := f.byteSize(st)
		if err != nil {
			return err
		}
		if len(data) != expected {
			return fmt.Errorf("%w: %d bytes declared, %d given", ErrValueSize, expected, len(data))
		}
	}
	w.WriteBytes(data)
	return w.Err
}

func (bytesCodec) sizeOf(_ *FieldSpec, v any, _ *State) (int, error) {
	return len(v.([]byte)), nil
}

func (bytesCodec) staticSize(_ *FieldSpec) int {
	return -1
}

func (bytesCodec) normalize(_ *FieldSpec, v any) (any, error) {
	switch b := v.(type) {
	case []byte:
		return b, nil
	case string:
		return []byte(b), nil
	}
	return nil, fmt.Errorf("%w: %T is not a byte string", ErrUnserializableValue, v)
}

type stringCodec struct{}

func (stringCodec) decode(r *io.BinReader, f *FieldSpec, size int, _ *State) (any, error) {
	if size < 0 {
		return nil, fmt.Errorf("%w: text field %q needs a size", ErrUndefinedSize, f.name)
	}
	raw := make([]byte, size)
	r.ReadBytes(raw)
	if r.Err != nil {
		return nil, r.Err
	}
	return decodeText(f, raw)
}

func (stringCodec) encode(w *io.BinWriter, f *FieldSpec, v any, st *State) error {
	raw, err := encodeText(f, v.(string))
	if err != nil {
		return err
	}
	expected, err := f.byteSize(st)
	if err != nil {
		return err
	}
	if len(raw) < expected && f.padByte >= 0 {
		padded := make([]byte, expected)
		copy(padded, raw)
		for i := len(raw); i < expected; i++ {
			padded[i] = byte(f.padByte)
		}
		raw = padded
	}
	if len(raw) != expected {
		return fmt.Errorf("%w: %d bytes declared, %d encoded", ErrValueSize, expected, len(raw))
	}
	w.WriteBytes(raw)
	return w.Err
}

func (stringCodec) sizeOf(f *FieldSpec, v any, _ *State) (int, error) {
	raw, err := encodeText(f, v.(string))
	if err != nil {
		return 0, err
	}
	return len(raw), nil
}

func (stringCodec) staticSize(_ *FieldSpec) int {
	return -1
}

func (stringCodec) normalize(_ *FieldSpec, v any) (any, error) {
	switch s := v.(type) {
	case string:
		return s, nil
	case []byte:
		return string(s), nil
	}
	return nil, fmt.Errorf("%w: %T is not a string", ErrUnserializableValue, v)
}

type stringZCodec struct{}

func (stringZCodec) decode(r *io.BinReader, f *FieldSpec, _ int, _ *State) (any, error) {
	term := f.terminator()
	unit := make([]byte, len(term))
	var raw []byte
	for {
		r.ReadBytes(unit)
		if r.Err != nil {
			return nil, r.Err
		}
		if bytes.Equal(unit, term) {
			break
		}
		raw = append(raw, unit...)
	}
	return decodeText(f, raw)
}

func (stringZCodec) encode(w *io.BinWriter, f *FieldSpec, v any, _ *State) error {
	raw, err := encodeText(f, v.(string))
	if err != nil {
		return err
	}
	w.WriteBytes(raw)
	w.WriteBytes(f.terminator())
	return w.Err
}

func (stringZCodec) sizeOf(f *FieldSpec, v any, _ *State) (int, error) {
	raw, err := encodeText(f, v.(string))
	if err != nil {
		return 0, err
	}
	return len(raw) + len(f.terminator()), nil
}

func (stringZCodec) staticSize(_ *FieldSpec) int {
	return -1
}

func (stringZCodec) normalize(f *FieldSpec, v any) (any, error) {
	return stringCodec{}.normalize(f, v)
}

// terminator returns the encoded form of NUL. Build precomputes it for
// custom encodings, plain UTF-8 terminates on a single zero byte.
func (f *FieldSpec) terminator() []byte {
	if len(f.term) > 0 {
		return f.term
	}
	return []byte{0}
}

// decodeText converts encoded bytes to a string per the field's encoding.
func decodeText(f *FieldSpec, raw []byte) (string, error) {
	if f.enc == nil {
		if !utf8.Valid(raw) {
			return "", fmt.Errorf("%w: invalid UTF-8 text", ErrUnexpectedValue)
		}
		return string(raw), nil
	}
	out, err := f.enc.NewDecoder().Bytes(raw)
	if err != nil {
		return "", fmt.Errorf("%w: text does not decode: %v", ErrUnexpectedValue, err)
	}
	return string(out), nil
}

// encodeText converts a string to encoded bytes per the field's encoding.
func encodeText(f *FieldSpec, s string) ([]byte, error) {
	if f.enc == nil {
		if !utf8.ValidString(s) {
			return nil, fmt.Errorf("%w: invalid UTF-8 text", ErrUnserializableValue)
		}
		return []byte(s), nil
	}
	out, err := f.enc.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return nil, fmt.Errorf("%w: text does not encode: %v", ErrUnserializableValue, err)
	}
	return out, nil
}

type uuidCodec struct{}

func (uuidCodec) decode(r *io.BinReader, _ *FieldSpec, _ int, _ *State) (any, error) {
	var buf [16]byte
	r.ReadBytes(buf[:])
	if r.Err != nil {
		return nil, r.Err
	}
	u, err := uuid.FromBytes(buf[:])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnexpectedValue, err)
	}
	return u, nil
}

func (uuidCodec) encode(w *io.BinWriter, _ *FieldSpec, v any, _ *State) error {
	u := v.(uuid.UUID)
	w.WriteBytes(u[:])
	return w.Err
}

func (uuidCodec) sizeOf(_ *FieldSpec, _ any, _ *State) (int, error) {
	return 16, nil
}

func (uuidCodec) staticSize(_ *FieldSpec) int {
	return 16
}

func (uuidCodec) normalize(_ *FieldSpec, v any) (any, error) {
	switch u := v.(type) {
	case uuid.UUID:
		return u, nil
	case string:
		parsed, err := uuid.Parse(u)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a UUID", ErrUnserializableValue, u)
		}
		return parsed, nil
	case []byte:
		parsed, err := uuid.FromBytes(u)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnserializableValue, err)
		}
		return parsed, nil
	}
	return nil, fmt.Errorf("%w: %T is not a UUID", ErrUnserializableValue, v)
}
