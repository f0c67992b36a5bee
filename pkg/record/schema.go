package record

import (
	"context"
	"errors"
	"fmt"
	gio "io"

	"github.com/nspcc-dev/binrec/pkg/io"
)

// Schema is an immutable, ordered field layout built by Builder. A schema
// decodes byte streams into Records and encodes Records back, it is safe
// for concurrent use once built.
type Schema struct {
	name    string
	fields  []*FieldSpec
	byName  map[string]int
	recVals []recordValidator

	fixedSize   int
	hasFixed    bool
	fingerprint uint64
}

// Name returns the record name.
func (s *Schema) Name() string {
	return s.name
}

// Fields returns the fields in wire order.
func (s *Schema) Fields() []*FieldSpec {
	return append([]*FieldSpec(nil), s.fields...)
}

// Field looks a field up by name.
func (s *Schema) Field(name string) (*FieldSpec, bool) {
	i, ok := s.byName[name]
	if !ok {
		return nil, false
	}
	return s.fields[i], nil
}

// FixedSize reports the byte size records of this schema always take, if
// the layout has one. Dynamic sizes and conditional fields leave ok false.
func (s *Schema) FixedSize() (int, bool) {
	return s.fixedSize, s.hasFixed
}

// Fingerprint returns a stable 64-bit hash of the wire layout. Two schemas
// with the same fingerprint accept the same byte strings, behavioral
// details like validators and deciders are not part of it.
func (s *Schema) Fingerprint() uint64 {
	return s.fingerprint
}

// Decode reads one full record from r.
func (s *Schema) Decode(ctx context.Context, r gio.Reader) (*Record, error) {
	return s.decodeFrom(ctx, io.NewBinReaderFromIO(r), len(s.fields)-1, false)
}

// DecodeBytes decodes one record from data expecting full consumption,
// trailing bytes fail with ErrExtraneousData.
func (s *Schema) DecodeBytes(ctx context.Context, data []byte) (*Record, error) {
	br := io.NewBinReaderFromBuf(data)
	rec, err := s.decodeFrom(ctx, br, len(s.fields)-1, false)
	if err != nil {
		return nil, err
	}
	if n := len(data) - int(br.Pos()); n > 0 {
		return nil, fmt.Errorf("%w: %d bytes after record %s", ErrExtraneousData, n, s.name)
	}
	return rec, nil
}

// PartialDecode reads fields up to and including lastField and leaves the
// rest Undefined. Record validators do not run on partial loads.
func (s *Schema) PartialDecode(ctx context.Context, r gio.Reader, lastField string) (*Record, error) {
	i, ok := s.byName[lastField]
	if !ok {
		return nil, fmt.Errorf("%w: %q in schema %q", ErrNoSuchField, lastField, s.name)
	}
	return s.decodeFrom(ctx, io.NewBinReaderFromIO(r), i, true)
}

// PartialDecodeN reads the first n fields.
func (s *Schema) PartialDecodeN(ctx context.Context, r gio.Reader, n int) (*Record, error) {
	if n < 1 || n > len(s.fields) {
		return nil, fmt.Errorf("%w: schema %q has %d fields, not %d", ErrConfiguration, s.name, len(s.fields), n)
	}
	return s.decodeFrom(ctx, io.NewBinReaderFromIO(r), n-1, true)
}

// DecodeAvailable reads fields until the input runs out at a field
// boundary, leaving the rest Undefined. When the input ends inside a field
// and r can seek, the cut-off field is unwound so r stays at the boundary,
// otherwise mid-field exhaustion fails with ErrUnexpectedEOF.
func (s *Schema) DecodeAvailable(ctx context.Context, r gio.Reader) (*Record, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	br := io.NewBinReaderFromIO(r)
	st := &State{ctx: ctx, schema: s, values: make(map[string]any, len(s.fields))}
	rec := s.New()
	for i, f := range s.fields {
		start := br.Pos()
		v, err := f.Read(br, st)
		if err != nil {
			if !errors.Is(err, ErrUnexpectedEOF) {
				return nil, fieldErr(s, f, start, err)
			}
			consumed := br.Pos() - start
			if consumed == 0 {
				break
			}
			if sk, ok := r.(gio.Seeker); ok && br.Buffered() == 0 {
				if _, serr := sk.Seek(-consumed, gio.SeekCurrent); serr == nil {
					break
				}
			}
			return nil, fieldErr(s, f, start, err)
		}
		st.put(f.name, v)
		rec.values[i] = v
	}
	s.eraseDiscards(rec)
	return rec, nil
}

// decodeFrom is the load loop shared by the decode entry points.
func (s *Schema) decodeFrom(ctx context.Context, br *io.BinReader, upto int, partial bool) (*Record, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	st := &State{ctx: ctx, schema: s, values: make(map[string]any, len(s.fields))}
	rec := s.New()
	for i, f := range s.fields[:upto+1] {
		start := br.Pos()
		v, err := f.Read(br, st)
		if err != nil {
			return nil, fieldErr(s, f, start, err)
		}
		st.put(f.name, v)
		rec.values[i] = v
	}
	if !partial {
		if err := s.runRecordValidators(PostLoad, st); err != nil {
			return nil, err
		}
	}
	s.eraseDiscards(rec)
	return rec, nil
}

// eraseDiscards drops values of bridging fields after validators saw them.
func (s *Schema) eraseDiscards(rec *Record) {
	for i, f := range s.fields {
		if f.discard {
			rec.values[i] = Undefined
		}
	}
}

// runRecordValidators applies whole-record validators for the phase.
func (s *Schema) runRecordValidators(phase Phase, st *State) error {
	for _, rv := range s.recVals {
		if !rv.phase.has(phase) {
			continue
		}
		if err := rv.fn(st); err != nil {
			if errors.Is(err, ErrValidation) {
				return err
			}
			return fmt.Errorf("%w: record %s: %w", ErrValidation, s.name, err)
		}
	}
	return nil
}

// fieldErr ties an engine error to its field and stream offset.
func fieldErr(s *Schema, f *FieldSpec, off int64, err error) error {
	return fmt.Errorf("record %s: field %q at offset %d: %w", s.name, f.name, off, err)
}

// computeFixedSize sums static field sizes, bailing out on anything
// dynamic or conditional.
func computeFixedSize(s *Schema) (int, bool) {
	var total int
	for _, f := range s.fields {
		if f.presence != nil {
			return 0, false
		}
		n := f.staticByteSize()
		if n < 0 {
			return 0, false
		}
		total += n
	}
	return total, true
}
