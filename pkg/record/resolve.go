package record

import (
	"context"
	"errors"
	"fmt"

	"github.com/nspcc-dev/binrec/pkg/io"
)

// resolveMode controls how resolveDump treats fields without a value.
type resolveMode byte

const (
	// resolveStrict propagates every resolution failure.
	resolveStrict resolveMode = iota
	// resolveBestEffort leaves slots unresolved on serialization-family and
	// undefined-size failures, Map retries them once siblings are known.
	resolveBestEffort
	// resolveTruncate stops cleanly before the first missing value.
	resolveTruncate
)

// resolveDump computes the value every field contributes to a dump. Explicit
// values become visible to callbacks first, then policies run in declared
// order, which is what lets a computed length placed before its payload see
// the payload. The returned slice has one entry per resolved field, in
// best-effort mode unresolved slots stay Undefined.
func (s *Schema) resolveDump(ctx context.Context, rec *Record, upto int, mode resolveMode) (*State, []any, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	st := &State{ctx: ctx, schema: s, values: make(map[string]any, len(s.fields))}
	for i, f := range s.fields[:upto+1] {
		if v := rec.values[i]; !isSentinel(v) {
			st.put(f.name, v)
		}
	}
	vals := make([]any, upto+1)
	for i := range vals {
		vals[i] = Undefined
	}
	for i, f := range s.fields[:upto+1] {
		v, err := s.resolveField(st, f, rec.values[i])
		if err != nil {
			if mode == resolveTruncate && errors.Is(err, ErrMissingRequiredValue) {
				return st, vals[:i], nil
			}
			if mode == resolveBestEffort && (errors.Is(err, ErrSerialization) || errors.Is(err, ErrUndefinedSize)) {
				continue
			}
			return nil, nil, fmt.Errorf("record %s: field %q: %w", s.name, f.name, err)
		}
		st.put(f.name, v)
		vals[i] = v
	}
	return st, vals, nil
}

// resolveField yields the value f contributes to a dump: the explicit value
// if there is one, then computed, default and constant policies in that
// order.
func (s *Schema) resolveField(st *State, f *FieldSpec, explicit any) (any, error) {
	if f.presence != nil && !f.presence(st) {
		return NotPresent, nil
	}
	if !isSentinel(explicit) {
		if explicit == nil {
			return nil, nil
		}
		return f.codec.normalize(f, explicit)
	}
	switch {
	case f.computeFn != nil:
		v, err := f.computeFn(st)
		if err != nil {
			return nil, err
		}
		if v == nil || isSentinel(v) {
			return v, nil
		}
		return f.codec.normalize(f, v)
	case f.hasDefault:
		if f.defaultFn != nil {
			v := f.defaultFn()
			if v == nil {
				return nil, nil
			}
			return f.codec.normalize(f, v)
		}
		return f.defaultVal, nil
	case f.hasConst:
		return f.constVal, nil
	}
	return nil, ErrMissingRequiredValue
}

// encodeTo resolves, validates and writes rec's leading fields through w.
// Every field passes validation before the first byte goes out, so a
// validator tripping over the last field never leaves half a record in w.
func (s *Schema) encodeTo(ctx context.Context, w *io.BinWriter, rec *Record, upto int, partial bool, mode resolveMode) error {
	st, vals, err := s.resolveDump(ctx, rec, upto, mode)
	if err != nil {
		return err
	}
	for i := range vals {
		f := s.fields[i]
		checked, err := f.checkValue(st, vals[i])
		if err != nil {
			return fmt.Errorf("record %s: field %q: %w", s.name, f.name, err)
		}
		vals[i] = checked
	}
	if !partial {
		if err := s.runRecordValidators(PreDump, st); err != nil {
			return err
		}
	}
	for i := range vals {
		f := s.fields[i]
		start := w.Written()
		if err := f.writeValue(w, vals[i], st); err != nil {
			return fieldErr(s, f, start, err)
		}
	}
	return nil
}
