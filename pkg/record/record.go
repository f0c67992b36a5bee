package record

import (
	"context"
	"fmt"
	gio "io"
	"math/big"

	"github.com/nspcc-dev/binrec/pkg/io"
)

// Record is one mutable instance of a schema, a value slot per field. Slots
// start out Undefined, loading and assignment fill them.
type Record struct {
	schema *Schema
	values []any
}

// New returns an empty record of this schema.
func (s *Schema) New() *Record {
	vals := make([]any, len(s.fields))
	for i := range vals {
		vals[i] = Undefined
	}
	return &Record{schema: s, values: vals}
}

// NewRecord returns a record with the given initial values.
func (s *Schema) NewRecord(init map[string]any) (*Record, error) {
	rec := s.New()
	for name, v := range init {
		if err := rec.Set(name, v); err != nil {
			return nil, err
		}
	}
	return rec, nil
}

// Schema returns the schema the record belongs to.
func (rec *Record) Schema() *Schema {
	return rec.schema
}

// Set assigns a field value, coercing it to the field's canonical type
// right away so type mistakes surface at the call site. nil assigns logical
// null to nullable fields. Constant and computed fields reject assignment.
func (rec *Record) Set(name string, v any) error {
	i, ok := rec.schema.byName[name]
	if !ok {
		return fmt.Errorf("%w: %q in schema %q", ErrNoSuchField, name, rec.schema.name)
	}
	f := rec.schema.fields[i]
	if f.hasConst || f.computeFn != nil {
		return fmt.Errorf("%w: %q", ErrImmutableField, name)
	}
	switch {
	case v == nil:
		if f.nullKind == nullNone {
			return fmt.Errorf("%w: nil for non-nullable field %q", ErrUnserializableValue, name)
		}
		rec.values[i] = nil
	case isSentinel(v):
		rec.values[i] = v
	default:
		nv, err := f.codec.normalize(f, v)
		if err != nil {
			return fmt.Errorf("field %q: %w", name, err)
		}
		rec.values[i] = nv
	}
	return nil
}

// Get returns the field's current value: a concrete value, nil for logical
// null, or one of the sentinels.
func (rec *Record) Get(name string) (any, error) {
	i, ok := rec.schema.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q in schema %q", ErrNoSuchField, name, rec.schema.name)
	}
	return rec.values[i], nil
}

// Unset clears a field back to Undefined.
func (rec *Record) Unset(name string) error {
	i, ok := rec.schema.byName[name]
	if !ok {
		return fmt.Errorf("%w: %q in schema %q", ErrNoSuchField, name, rec.schema.name)
	}
	rec.values[i] = Undefined
	return nil
}

// Copy returns a deep copy of the record.
func (rec *Record) Copy() *Record {
	out := &Record{schema: rec.schema, values: make([]any, len(rec.values))}
	for i, v := range rec.values {
		out.values[i] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch x := v.(type) {
	case *Record:
		return x.Copy()
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = copyValue(e)
		}
		return out
	case []byte:
		return append([]byte(nil), x...)
	case *big.Int:
		return new(big.Int).Set(x)
	}
	return v
}

// Encode resolves and writes the whole record to w.
func (rec *Record) Encode(ctx context.Context, w gio.Writer) error {
	s := rec.schema
	return s.encodeTo(ctx, io.NewBinWriterFromIO(w), rec, len(s.fields)-1, false, resolveStrict)
}

// EncodeBytes returns the record's encoded form.
func (rec *Record) EncodeBytes(ctx context.Context) ([]byte, error) {
	s := rec.schema
	buf := io.NewBufBinWriter()
	if err := s.encodeTo(ctx, buf.BinWriter, rec, len(s.fields)-1, false, resolveStrict); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// PartialEncode writes fields up to and including lastField. An empty
// lastField writes until the first field with no resolvable value and stops
// cleanly there. Record validators do not run on partial dumps.
func (rec *Record) PartialEncode(ctx context.Context, w gio.Writer, lastField string) error {
	s := rec.schema
	upto := len(s.fields) - 1
	mode := resolveTruncate
	if lastField != "" {
		i, ok := s.byName[lastField]
		if !ok {
			return fmt.Errorf("%w: %q in schema %q", ErrNoSuchField, lastField, s.name)
		}
		upto, mode = i, resolveStrict
	}
	return s.encodeTo(ctx, io.NewBinWriterFromIO(w), rec, upto, true, mode)
}

// PartialEncodeN writes the first n fields.
func (rec *Record) PartialEncodeN(ctx context.Context, w gio.Writer, n int) error {
	s := rec.schema
	if n < 1 || n > len(s.fields) {
		return fmt.Errorf("%w: schema %q has %d fields, not %d", ErrConfiguration, s.name, len(s.fields), n)
	}
	return s.encodeTo(ctx, io.NewBinWriterFromIO(w), rec, n-1, true, resolveStrict)
}

// Size reports the encoded byte size without serializing. Dynamic layouts
// resolve values the same way a dump would.
func (rec *Record) Size(ctx context.Context) (int, error) {
	s := rec.schema
	if s.hasFixed {
		return s.fixedSize, nil
	}
	st, vals, err := s.resolveDump(ctx, rec, len(s.fields)-1, resolveStrict)
	if err != nil {
		return 0, err
	}
	var total int
	for i := range vals {
		f := s.fields[i]
		n, err := f.valueSize(vals[i], st)
		if err != nil {
			return 0, fmt.Errorf("record %s: field %q: %w", s.name, f.name, err)
		}
		total += n
	}
	return total, nil
}

// Validate resolves the record and runs every field and record validator of
// both phases without writing anything.
func (rec *Record) Validate(ctx context.Context) error {
	s := rec.schema
	st, vals, err := s.resolveDump(ctx, rec, len(s.fields)-1, resolveStrict)
	if err != nil {
		return err
	}
	for i := range vals {
		f := s.fields[i]
		if _, err := f.checkValue(st, vals[i]); err != nil {
			return fmt.Errorf("record %s: field %q: %w", s.name, f.name, err)
		}
		if err := f.runValidators(PostLoad, st, vals[i]); err != nil {
			return fmt.Errorf("record %s: field %q: %w", s.name, f.name, err)
		}
	}
	return s.runRecordValidators(PostLoad|PreDump, st)
}

// Map returns the record flattened to plain Go values, resolving policies
// the way a dump would. Nested records become maps, arrays stay slices,
// discarded fields are omitted and absent ones keep the NotPresent mark.
func (rec *Record) Map(ctx context.Context) (map[string]any, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	s := rec.schema
	st, vals, err := s.resolveDump(ctx, rec, len(s.fields)-1, resolveBestEffort)
	if err != nil {
		return nil, err
	}
	out := make(map[string]any, len(s.fields))
	for i, f := range s.fields {
		v := vals[i]
		if v == Undefined {
			// The first pass runs in field order, a failed slot may
			// resolve now that later siblings are in.
			v, err = s.resolveField(st, f, rec.values[i])
			if err != nil {
				return nil, fmt.Errorf("record %s: field %q: %w", s.name, f.name, err)
			}
			st.put(f.name, v)
		}
		if f.discard {
			continue
		}
		mv, err := mapValue(ctx, v)
		if err != nil {
			return nil, err
		}
		out[f.name] = mv
	}
	return out, nil
}

func mapValue(ctx context.Context, v any) (any, error) {
	switch x := v.(type) {
	case *Record:
		return x.Map(ctx)
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			me, err := mapValue(ctx, e)
			if err != nil {
				return nil, err
			}
			out[i] = me
		}
		return out, nil
	}
	return v, nil
}

// EncodeBinary implements io.Serializable.
func (rec *Record) EncodeBinary(w *io.BinWriter) error {
	s := rec.schema
	return s.encodeTo(context.Background(), w, rec, len(s.fields)-1, false, resolveStrict)
}

// DecodeBinary implements io.Serializable.
func (rec *Record) DecodeBinary(r *io.BinReader) error {
	dec, err := rec.schema.decodeFrom(context.Background(), r, len(rec.schema.fields)-1, false)
	if err != nil {
		return err
	}
	copy(rec.values, dec.values)
	return nil
}
