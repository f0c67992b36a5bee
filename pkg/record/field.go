package record

import (
	"bytes"
	"errors"
	"fmt"
	gio "io"
	"math"
	"math/big"
	"reflect"
	"time"

	"github.com/nspcc-dev/binrec/pkg/io"
	"github.com/nspcc-dev/binrec/pkg/varint"
	"golang.org/x/text/encoding"
)

// kind tells field variants apart where behavior or capabilities differ
// outside of the codec itself (option compatibility, fingerprinting).
type kind byte

const (
	kindInvalid kind = iota
	kindInt
	kindFloat
	kindBytes
	kindString
	kindStringZ
	kindVarInt
	kindBigInt
	kindUUID
	kindTime
	kindArray
	kindUnion
	kindNested
)

// String implements fmt.Stringer.
func (k kind) String() string {
	switch k {
	case kindInt:
		return "integer"
	case kindFloat:
		return "float"
	case kindBytes:
		return "bytes"
	case kindString:
		return "string"
	case kindStringZ:
		return "stringz"
	case kindVarInt:
		return "varint"
	case kindBigInt:
		return "bigint"
	case kindUUID:
		return "uuid"
	case kindTime:
		return "timestamp"
	case kindArray:
		return "array"
	case kindUnion:
		return "union"
	case kindNested:
		return "nested"
	default:
		return "invalid"
	}
}

// codec is the byte-level behavior behind a field variant. The implementation
// set is closed within the package, declaration surfaces compose fields from
// the exported constructors instead.
type codec interface {
	// decode reads one value. size is the resolved byte budget for fields
	// carrying an explicit or intrinsic size and -1 otherwise.
	decode(r *io.BinReader, f *FieldSpec, size int, st *State) (any, error)
	// encode writes v, which has been through normalize already.
	encode(w *io.BinWriter, f *FieldSpec, v any, st *State) error
	// sizeOf reports the encoded size of a normalized value.
	sizeOf(f *FieldSpec, v any, st *State) (int, error)
	// staticSize reports the value-independent encoded size, -1 if none.
	staticSize(f *FieldSpec) int
	// normalize coerces v to the codec's canonical type.
	normalize(f *FieldSpec, v any) (any, error)
}

type sizeKind byte

const (
	sizeNone sizeKind = iota
	sizeFixed
	sizeRef
	sizeFn
)

type sizePolicy struct {
	kind sizeKind
	n    int
	ref  string
	fn   SizeFunc
}

type nullKind byte

const (
	nullNone nullKind = iota
	nullZeroes
	nullBytes
)

type fieldValidator struct {
	phase Phase
	fn    FieldValidator
}

// FieldSpec describes one field of a record: its codec, size policy, value
// policies and validators. Specs are built by the package constructors and
// frozen by Builder.Build, after which they are safe for concurrent use.
type FieldSpec struct {
	name    string
	index   int
	declIdx int
	kind    kind
	codec   codec

	width    int
	signed   bool
	bigEnd   bool
	scheme   varint.Scheme
	maxBytes int
	unit     TimeUnit

	enc     encoding.Encoding
	encName string
	term    []byte
	padByte int

	size sizePolicy

	hasConst   bool
	constVal   any
	hasDefault bool
	defaultVal any
	defaultFn  func() any
	nullKind   nullKind
	nullValue  []byte
	presence   PresenceFunc
	computeFn  ComputeFunc
	lengthOf   string
	countOf    string
	discard    bool
	validators []fieldValidator

	elem     *FieldSpec
	count    int
	countRef string
	halt     HaltFunc
	choices  []*FieldSpec
	loadDec  LoadDecider
	dumpDec  DumpDecider
	inner    *Schema

	err error
}

// Name returns the field's name.
func (f *FieldSpec) Name() string {
	return f.name
}

// Index returns the field's position within its schema, -1 before Build.
func (f *FieldSpec) Index() int {
	return f.index
}

// String implements fmt.Stringer.
func (f *FieldSpec) String() string {
	return fmt.Sprintf("%s (%s)", f.name, f.kind)
}

// Constant reports whether the field carries a declared constant, meaning
// it needs no assigned value and rejects assignment.
func (f *FieldSpec) Constant() bool {
	return f.hasConst
}

// Computed reports whether the field derives its written value from
// siblings at dump time.
func (f *FieldSpec) Computed() bool {
	return f.computeFn != nil
}

// Discarded reports whether the field's value is dropped once a load
// completes.
func (f *FieldSpec) Discarded() bool {
	return f.discard
}

// Nullable reports whether the field accepts logical null.
func (f *FieldSpec) Nullable() bool {
	return f.nullKind != nullNone
}

// Elem returns an array field's element spec, nil for other variants.
func (f *FieldSpec) Elem() *FieldSpec {
	return f.elem
}

// Inner returns a nested field's record schema, nil for other variants.
func (f *FieldSpec) Inner() *Schema {
	return f.inner
}

// fail records the first configuration mistake, Builder.Build reports it.
func (f *FieldSpec) fail(format string, args ...any) {
	if f.err == nil {
		f.err = fmt.Errorf("%w: field %q: %s", ErrConfiguration, f.name, fmt.Sprintf(format, args...))
	}
}

// newField is the common part of all field constructors. Options apply
// after the constructor filled in variant defaults, see applyOpts.
func newField(name string, k kind, c codec) *FieldSpec {
	f := &FieldSpec{
		name:    name,
		index:   -1,
		declIdx: -1,
		kind:    k,
		codec:   c,
		padByte: -1,
		count:   -1,
	}
	if name == "" {
		f.fail("empty name")
	}
	return f
}

// applyOpts runs the user options over variant defaults.
func (f *FieldSpec) applyOpts(opts []Option) *FieldSpec {
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Read decodes one value of this field from r. Presence is consulted first
// and may yield NotPresent without touching the stream. The returned error
// belongs to the deserialization family unless a size reference or callback
// failed.
func (f *FieldSpec) Read(r *io.BinReader, st *State) (any, error) {
	if st == nil {
		st = NewState(nil, nil)
	}
	if f.presence != nil && !f.presence(st) {
		return NotPresent, nil
	}
	size, err := f.byteSize(st)
	if err != nil {
		return nil, err
	}
	var v any
	if f.nullKind != nullNone {
		v, err = f.readNullable(r, size, st)
	} else {
		v, err = f.codec.decode(r, f, size, st)
	}
	if err == nil && r.Err != nil {
		err = r.Err
	}
	if err != nil {
		return nil, wrapEOF(err)
	}
	if f.hasConst && !valueEqual(v, f.constVal) {
		return nil, fmt.Errorf("%w: read %v, expected constant %v", ErrUnexpectedValue, v, f.constVal)
	}
	if err := f.runValidators(PostLoad, st, v); err != nil {
		return nil, err
	}
	return v, nil
}

// Write validates and encodes v through w, returning the number of bytes
// written. The NotPresent sentinel writes nothing, nil writes the field's
// null pattern.
func (f *FieldSpec) Write(w *io.BinWriter, v any, st *State) (int, error) {
	if st == nil {
		st = NewState(nil, nil)
	}
	v, err := f.checkValue(st, v)
	if err != nil {
		return 0, err
	}
	start := w.Written()
	err = f.writeValue(w, v, st)
	return int(w.Written() - start), err
}

// checkValue normalizes v and runs pre-dump validation without writing
// anything. Whole-record encoding validates every field through it before
// the first byte goes out.
func (f *FieldSpec) checkValue(st *State, v any) (any, error) {
	if v == NotPresent {
		return v, nil
	}
	if isSentinel(v) {
		return nil, fmt.Errorf("%w: %v", ErrUnserializableValue, v)
	}
	if v == nil {
		if f.nullKind == nullNone {
			return nil, fmt.Errorf("%w: nil value for non-nullable field", ErrUnserializableValue)
		}
	} else {
		var err error
		v, err = f.codec.normalize(f, v)
		if err != nil {
			return nil, err
		}
		if f.hasConst && !valueEqual(v, f.constVal) {
			return nil, fmt.Errorf("%w: %v conflicts with constant %v", ErrImmutableField, v, f.constVal)
		}
	}
	if err := f.runValidators(PreDump, st, v); err != nil {
		return nil, err
	}
	return v, nil
}

// writeValue emits a value that has been through checkValue.
func (f *FieldSpec) writeValue(w *io.BinWriter, v any, st *State) error {
	if v == NotPresent {
		return nil
	}
	var err error
	if v == nil {
		err = f.writeNull(w, st)
	} else {
		err = f.codec.encode(w, f, v, st)
	}
	if err == nil && w.Err != nil {
		err = w.Err
	}
	return err
}

// ExpectedSize reports the encoded byte size of the field. Sizes that hang
// off sibling fields or the value itself resolve through st, so callers must
// have resolved those first.
func (f *FieldSpec) ExpectedSize(st *State) (int, error) {
	if st == nil {
		st = NewState(nil, nil)
	}
	if v, ok := st.Value(f.name); ok && v == NotPresent {
		return 0, nil
	}
	if n := f.staticByteSize(); n >= 0 {
		return n, nil
	}
	if f.size.kind == sizeRef || f.size.kind == sizeFn {
		return f.byteSize(st)
	}
	v, ok := st.Value(f.name)
	if !ok || isSentinel(v) {
		return 0, fmt.Errorf("%w: field %q needs its value to compute a size", ErrUndefinedSize, f.name)
	}
	if v == nil {
		if f.nullKind == nullBytes {
			return len(f.nullValue), nil
		}
		return 0, fmt.Errorf("%w: null for field %q without a sized pattern", ErrUndefinedSize, f.name)
	}
	v, err := f.codec.normalize(f, v)
	if err != nil {
		return 0, err
	}
	return f.codec.sizeOf(f, v, st)
}

// byteSize resolves the field's declared size policy, falling back to the
// codec's intrinsic size. -1 means the size depends on the value.
func (f *FieldSpec) byteSize(st *State) (int, error) {
	switch f.size.kind {
	case sizeFixed:
		return f.size.n, nil
	case sizeRef:
		v, ok := st.Value(f.size.ref)
		if !ok || v == nil || isSentinel(v) {
			return 0, fmt.Errorf("%w: size reference %q has no value", ErrUndefinedSize, f.size.ref)
		}
		n, err := toInt(v)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("%w: size reference %q resolved to %v", ErrUndefinedSize, f.size.ref, v)
		}
		return n, nil
	case sizeFn:
		n, err := f.size.fn(st)
		if err != nil {
			return 0, err
		}
		if n < 0 {
			return 0, fmt.Errorf("%w: size callback returned %d", ErrUndefinedSize, n)
		}
		return n, nil
	}
	return f.codec.staticSize(f), nil
}

// staticByteSize reports the size known without sibling values or the value
// itself, -1 if there is none.
func (f *FieldSpec) staticByteSize() int {
	switch f.size.kind {
	case sizeFixed:
		return f.size.n
	case sizeNone:
		return f.codec.staticSize(f)
	}
	return -1
}

// readNullable reads the field's full byte span and either recognizes the
// null pattern or decodes a value from exactly those bytes.
func (f *FieldSpec) readNullable(r *io.BinReader, size int, st *State) (any, error) {
	if size < 0 {
		return nil, fmt.Errorf("%w: nullable field %q needs a resolvable size", ErrUndefinedSize, f.name)
	}
	raw := make([]byte, size)
	r.ReadBytes(raw)
	if r.Err != nil {
		return nil, r.Err
	}
	if bytes.Equal(raw, f.nullPattern(size)) {
		return nil, nil
	}
	sub := io.NewBinReaderFromBuf(raw)
	v, err := f.codec.decode(sub, f, size, st)
	if err == nil && sub.Err != nil {
		err = sub.Err
	}
	return v, err
}

// writeNull emits the field's null pattern.
func (f *FieldSpec) writeNull(w *io.BinWriter, st *State) error {
	if f.nullKind == nullBytes {
		w.WriteBytes(f.nullValue)
		return w.Err
	}
	n, err := f.byteSize(st)
	if err != nil {
		return err
	}
	if n < 0 {
		return fmt.Errorf("%w: nullable field %q needs a resolvable size", ErrUndefinedSize, f.name)
	}
	w.WriteBytes(make([]byte, n))
	return w.Err
}

// nullPattern returns the byte sequence standing for null at the given size.
func (f *FieldSpec) nullPattern(size int) []byte {
	if f.nullKind == nullBytes {
		return f.nullValue
	}
	return make([]byte, size)
}

// runValidators applies the field's validators registered for the phase.
// NotPresent values are exempt, nulls are not.
func (f *FieldSpec) runValidators(phase Phase, st *State, v any) error {
	if v == NotPresent {
		return nil
	}
	for _, fv := range f.validators {
		if !fv.phase.has(phase) {
			continue
		}
		if err := fv.fn(st, v); err != nil {
			if errors.Is(err, ErrValidation) {
				return err
			}
			return fmt.Errorf("%w: field %q: %w", ErrValidation, f.name, err)
		}
	}
	return nil
}

// wrapEOF folds raw reader EOF conditions into the error taxonomy while
// keeping them reachable for errors.Is.
func wrapEOF(err error) error {
	if errors.Is(err, gio.EOF) || errors.Is(err, gio.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: %w", ErrUnexpectedEOF, err)
	}
	return err
}

// valueEqual compares decoded values. Big integers and timestamps get value
// semantics, everything else structural equality.
func valueEqual(a, b any) bool {
	switch x := a.(type) {
	case *big.Int:
		y, ok := b.(*big.Int)
		return ok && x.Cmp(y) == 0
	case time.Time:
		y, ok := b.(time.Time)
		return ok && x.Equal(y)
	}
	return reflect.DeepEqual(a, b)
}

// toInt converts count and size reference values to a non-negative int.
func toInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		if n < math.MinInt || n > math.MaxInt {
			return 0, fmt.Errorf("value %d out of int range", n)
		}
		return int(n), nil
	case uint64:
		if n > math.MaxInt {
			return 0, fmt.Errorf("value %d out of int range", n)
		}
		return int(n), nil
	case int8:
		return int(n), nil
	case int16:
		return int(n), nil
	case int32:
		return int(n), nil
	case uint:
		if uint64(n) > math.MaxInt {
			return 0, fmt.Errorf("value %d out of int range", n)
		}
		return int(n), nil
	case uint8:
		return int(n), nil
	case uint16:
		return int(n), nil
	case uint32:
		return int(n), nil
	case *big.Int:
		if !n.IsInt64() {
			return 0, fmt.Errorf("value %s out of int range", n)
		}
		return toInt(n.Int64())
	}
	return 0, fmt.Errorf("not an integer: %T", v)
}
