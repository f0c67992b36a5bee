package record

import (
	"fmt"
	"reflect"

	"github.com/nspcc-dev/binrec/pkg/io"
)

// Array declares a repeated field over elem. Exactly one of Count, CountRef
// or HaltWhen bounds the element count.
func Array(name string, elem *FieldSpec, opts ...Option) *FieldSpec {
	f := newField(name, kindArray, arrayCodec{})
	f.elem = elem
	if elem == nil {
		f.fail("nil element spec")
	}
	return f.applyOpts(opts)
}

// Union declares a field decoded as one of several candidates. load picks
// the candidate index from the stream, peeking but not consuming, dump picks
// it from the value. Single-candidate unions may pass nil for both.
func Union(name string, choices []*FieldSpec, load LoadDecider, dump DumpDecider, opts ...Option) *FieldSpec {
	f := newField(name, kindUnion, unionCodec{})
	f.choices = append([]*FieldSpec(nil), choices...)
	f.loadDec = load
	f.dumpDec = dump
	return f.applyOpts(opts)
}

// Nested declares a field holding a whole record of another schema.
func Nested(name string, inner *Schema, opts ...Option) *FieldSpec {
	f := newField(name, kindNested, nestedCodec{})
	f.inner = inner
	if inner == nil {
		f.fail("nil schema")
	}
	return f.applyOpts(opts)
}

// HaltAtEOF terminates a greedy array once the input has no more bytes.
var HaltAtEOF HaltFunc = func(_ *State, r *io.BinReader, _ *[]any) (bool, error) {
	return len(r.Peek(1)) == 0, nil
}

// FinalElementCount reports how many elements the given array value takes on
// the wire after count policies apply.
func (f *FieldSpec) FinalElementCount(v any, st *State) (int, error) {
	if f.kind != kindArray {
		return 0, fmt.Errorf("%w: %s is not an array", ErrConfiguration, f)
	}
	if st == nil {
		st = NewState(nil, nil)
	}
	elems, err := toSlice(v)
	if err != nil {
		return 0, err
	}
	if err := f.checkCount(len(elems), st); err != nil {
		return 0, err
	}
	return len(elems), nil
}

// checkCount verifies an element count against the array's declared policy.
func (f *FieldSpec) checkCount(n int, st *State) error {
	if f.count >= 0 && n != f.count {
		return fmt.Errorf("%w: %d declared, %d given", ErrArraySize, f.count, n)
	}
	if f.countRef != "" {
		if v, ok := st.Value(f.countRef); ok && v != nil && !isSentinel(v) {
			if c, err := toInt(v); err == nil && c != n {
				return fmt.Errorf("%w: %q says %d, %d given", ErrArraySize, f.countRef, c, n)
			}
		}
	}
	return nil
}

// valueSize sizes one concrete value of this field, which for containers
// recurses into elements.
func (f *FieldSpec) valueSize(v any, st *State) (int, error) {
	if v == NotPresent {
		return 0, nil
	}
	if v == nil {
		if f.nullKind == nullBytes {
			return len(f.nullValue), nil
		}
		n, err := f.byteSize(st)
		if err != nil {
			return 0, err
		}
		if n < 0 {
			return 0, fmt.Errorf("%w: null for field %q without a sized pattern", ErrUndefinedSize, f.name)
		}
		return n, nil
	}
	v, err := f.codec.normalize(f, v)
	if err != nil {
		return 0, err
	}
	return f.codec.sizeOf(f, v, st)
}

type arrayCodec struct{}

func (arrayCodec) decode(r *io.BinReader, f *FieldSpec, _ int, st *State) (any, error) {
	count := -1
	switch {
	case f.count >= 0:
		count = f.count
	case f.countRef != "":
		v, ok := st.Value(f.countRef)
		if !ok || v == nil || isSentinel(v) {
			return nil, fmt.Errorf("%w: count reference %q has no value", ErrUndefinedSize, f.countRef)
		}
		n, err := toInt(v)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("%w: count reference %q resolved to %v", ErrUndefinedSize, f.countRef, v)
		}
		count = n
	case f.halt == nil:
		return nil, fmt.Errorf("%w: array %q has no count policy", ErrConfiguration, f.name)
	}
	elems := []any{}
	if count >= 0 {
		for i := 0; i < count; i++ {
			v, err := f.elem.Read(r, st)
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", i, err)
			}
			elems = append(elems, v)
		}
		return elems, nil
	}
	for {
		stop, err := f.halt(st, r, &elems)
		if err != nil {
			return nil, err
		}
		if stop {
			return elems, nil
		}
		v, err := f.elem.Read(r, st)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", len(elems), err)
		}
		elems = append(elems, v)
	}
}

func (arrayCodec) encode(w *io.BinWriter, f *FieldSpec, v any, st *State) error {
	elems := v.([]any)
	if err := f.checkCount(len(elems), st); err != nil {
		return err
	}
	for i, e := range elems {
		if _, err := f.elem.Write(w, e, st); err != nil {
			return fmt.Errorf("element %d: %w", i, err)
		}
	}
	return w.Err
}

func (arrayCodec) sizeOf(f *FieldSpec, v any, st *State) (int, error) {
	elems := v.([]any)
	if n := f.elem.staticByteSize(); n >= 0 {
		return n * len(elems), nil
	}
	var total int
	for i, e := range elems {
		n, err := f.elem.valueSize(e, st)
		if err != nil {
			return 0, fmt.Errorf("element %d: %w", i, err)
		}
		total += n
	}
	return total, nil
}

func (arrayCodec) staticSize(f *FieldSpec) int {
	if f.count >= 0 {
		if n := f.elem.staticByteSize(); n >= 0 {
			return f.count * n
		}
	}
	return -1
}

func (arrayCodec) normalize(f *FieldSpec, v any) (any, error) {
	src, err := toSlice(v)
	if err != nil {
		return nil, err
	}
	out := make([]any, len(src))
	for i, e := range src {
		if e == nil || isSentinel(e) {
			out[i] = e
			continue
		}
		ne, err := f.elem.codec.normalize(f.elem, e)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		out[i] = ne
	}
	return out, nil
}

// toSlice widens any slice or array value to []any.
func toSlice(v any) ([]any, error) {
	if s, ok := v.([]any); ok {
		return s, nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, fmt.Errorf("%w: %T is not a slice", ErrUnserializableValue, v)
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, nil
}

type unionCodec struct{}

func (unionCodec) decode(r *io.BinReader, f *FieldSpec, _ int, st *State) (any, error) {
	idx := 0
	if f.loadDec != nil {
		var err error
		idx, err = f.loadDec(r, st)
		if err != nil {
			return nil, err
		}
	}
	if idx < 0 || idx >= len(f.choices) {
		return nil, fmt.Errorf("%w: union decider chose %d of %d candidates", ErrConfiguration, idx, len(f.choices))
	}
	return f.choices[idx].Read(r, st)
}

func (unionCodec) encode(w *io.BinWriter, f *FieldSpec, v any, st *State) error {
	idx, err := f.dumpChoice(v, st)
	if err != nil {
		return err
	}
	_, err = f.choices[idx].Write(w, v, st)
	return err
}

func (unionCodec) sizeOf(f *FieldSpec, v any, st *State) (int, error) {
	idx, err := f.dumpChoice(v, st)
	if err != nil {
		return 0, err
	}
	return f.choices[idx].valueSize(v, st)
}

func (unionCodec) staticSize(f *FieldSpec) int {
	if len(f.choices) == 0 {
		return -1
	}
	n := f.choices[0].staticByteSize()
	for _, c := range f.choices[1:] {
		if c.staticByteSize() != n {
			return -1
		}
	}
	return n
}

func (unionCodec) normalize(_ *FieldSpec, v any) (any, error) {
	return v, nil
}

// dumpChoice resolves the candidate index for encoding v.
func (f *FieldSpec) dumpChoice(v any, st *State) (int, error) {
	idx := 0
	if f.dumpDec != nil {
		var err error
		idx, err = f.dumpDec(v, st)
		if err != nil {
			return 0, err
		}
	}
	if idx < 0 || idx >= len(f.choices) {
		return 0, fmt.Errorf("%w: union decider chose %d of %d candidates", ErrConfiguration, idx, len(f.choices))
	}
	return idx, nil
}

type nestedCodec struct{}

func (nestedCodec) decode(r *io.BinReader, f *FieldSpec, _ int, st *State) (any, error) {
	return f.inner.decodeFrom(st.Context(), r, len(f.inner.fields)-1, false)
}

func (nestedCodec) encode(w *io.BinWriter, f *FieldSpec, v any, st *State) error {
	rec := v.(*Record)
	return f.inner.encodeTo(st.Context(), w, rec, len(f.inner.fields)-1, false, resolveStrict)
}

func (nestedCodec) sizeOf(_ *FieldSpec, v any, st *State) (int, error) {
	return v.(*Record).Size(st.Context())
}

func (nestedCodec) staticSize(f *FieldSpec) int {
	if n, ok := f.inner.FixedSize(); ok {
		return n
	}
	return -1
}

func (nestedCodec) normalize(f *FieldSpec, v any) (any, error) {
	switch rec := v.(type) {
	case *Record:
		if rec.schema != f.inner {
			return nil, fmt.Errorf("%w: record of schema %q where %q is expected",
				ErrUnserializableValue, rec.schema.Name(), f.inner.Name())
		}
		return rec, nil
	case map[string]any:
		return f.inner.NewRecord(rec)
	}
	return nil, fmt.Errorf("%w: %T is not a record", ErrUnserializableValue, v)
}
