package record

import (
	"fmt"
	"sort"
)

type recordValidator struct {
	phase Phase
	fn    RecordValidator
}

type pendingFieldValidator struct {
	field string
	phase Phase
	fn    FieldValidator
}

// Builder assembles a Schema. Configuration mistakes stick to the builder
// and surface from Build, so declarations chain without per-call error
// handling.
type Builder struct {
	name    string
	parent  *Schema
	fields  []*FieldSpec
	recVals []recordValidator
	fldVals []pendingFieldValidator
	err     error
}

// NewBuilder starts a schema with the given record name.
func NewBuilder(name string) *Builder {
	b := &Builder{name: name}
	if name == "" {
		b.fail("empty schema name")
	}
	return b
}

// Embed inherits all fields and record validators of a parent schema. The
// parent's fields come first, at their original positions. At most one
// parent can be embedded.
func (b *Builder) Embed(parent *Schema) *Builder {
	if parent == nil {
		b.fail("nil parent schema")
		return b
	}
	if b.parent != nil {
		b.err = fmt.Errorf("%w: %q and %q", ErrMultipleInheritance, b.parent.name, parent.name)
		return b
	}
	b.parent = parent
	return b
}

// Add appends field declarations.
func (b *Builder) Add(fields ...*FieldSpec) *Builder {
	for _, f := range fields {
		if f == nil {
			b.fail("nil field spec")
			return b
		}
		b.fields = append(b.fields, f)
	}
	return b
}

// ValidateField attaches a validator to a named field for the given phases.
func (b *Builder) ValidateField(field string, phase Phase, fn FieldValidator) *Builder {
	if fn == nil {
		b.fail("nil validator for field %q", field)
		return b
	}
	b.fldVals = append(b.fldVals, pendingFieldValidator{field: field, phase: phase, fn: fn})
	return b
}

// ValidateRecord attaches a whole-record validator for the given phases.
func (b *Builder) ValidateRecord(phase Phase, fn RecordValidator) *Builder {
	if fn == nil {
		b.fail("nil record validator")
		return b
	}
	b.recVals = append(b.recVals, recordValidator{phase: phase, fn: fn})
	return b
}

func (b *Builder) fail(format string, args ...any) {
	if b.err == nil {
		b.err = fmt.Errorf("%w: schema %q: %s", ErrConfiguration, b.name, fmt.Sprintf(format, args...))
	}
}

// Build validates the declarations and freezes them into a Schema.
func (b *Builder) Build() (*Schema, error) {
	if b.err != nil {
		return nil, b.err
	}
	own, err := b.orderOwnFields()
	if err != nil {
		return nil, err
	}
	s := &Schema{
		name:   b.name,
		byName: make(map[string]int),
	}
	if b.parent != nil {
		s.fields = append(s.fields, b.parent.fields...)
		s.recVals = append(s.recVals, b.parent.recVals...)
	}
	s.fields = append(s.fields, own...)
	s.recVals = append(s.recVals, b.recVals...)
	if len(s.fields) == 0 {
		return nil, fmt.Errorf("%w: schema %q", ErrNoFields, b.name)
	}
	for i, f := range s.fields {
		if _, dup := s.byName[f.name]; dup {
			return nil, fmt.Errorf("%w: %q in schema %q", ErrFieldRedefined, f.name, b.name)
		}
		s.byName[f.name] = i
	}
	for i, f := range s.fields {
		if f.index >= 0 && f.index != i {
			return nil, fmt.Errorf("%w: schema %q: field %q is already bound at position %d",
				ErrConfiguration, b.name, f.name, f.index)
		}
		f.index = i
		if err := finalizeField(s, f, i); err != nil {
			return nil, fmt.Errorf("schema %q: %w", b.name, err)
		}
	}
	if err := b.attachValidators(s); err != nil {
		return nil, err
	}
	s.fixedSize, s.hasFixed = computeFixedSize(s)
	s.fingerprint = fingerprintSchema(s)
	return s, nil
}

// orderOwnFields applies the all-or-none explicit index convention to the
// fields declared on this builder.
func (b *Builder) orderOwnFields() ([]*FieldSpec, error) {
	indexed := 0
	for _, f := range b.fields {
		if f.declIdx >= 0 {
			indexed++
		}
	}
	switch {
	case indexed == 0:
		return b.fields, nil
	case indexed != len(b.fields):
		return nil, fmt.Errorf("%w: schema %q has %d of %d fields indexed",
			ErrMixedDeclarations, b.name, indexed, len(b.fields))
	}
	own := append([]*FieldSpec(nil), b.fields...)
	sort.SliceStable(own, func(i, j int) bool { return own[i].declIdx < own[j].declIdx })
	for i := 1; i < len(own); i++ {
		if own[i].declIdx == own[i-1].declIdx {
			return nil, fmt.Errorf("%w: schema %q: index %d used twice",
				ErrConfiguration, b.name, own[i].declIdx)
		}
	}
	return own, nil
}

// attachValidators binds builder-registered field validators, copying
// inherited specs so the parent schema stays untouched.
func (b *Builder) attachValidators(s *Schema) error {
	for _, pv := range b.fldVals {
		i, ok := s.byName[pv.field]
		if !ok {
			return fmt.Errorf("%w: %q in schema %q", ErrNoSuchField, pv.field, b.name)
		}
		f := s.fields[i]
		if b.parent != nil && i < len(b.parent.fields) {
			clone := *f
			clone.validators = append([]fieldValidator(nil), f.validators...)
			f = &clone
			s.fields[i] = f
		}
		f.validators = append(f.validators, fieldValidator{phase: pv.phase, fn: pv.fn})
	}
	return nil
}

// NewSchema builds a schema from fields in declaration order.
func NewSchema(name string, fields ...*FieldSpec) (*Schema, error) {
	return NewBuilder(name).Add(fields...).Build()
}

// MustSchema is NewSchema that panics on configuration errors, for
// package-level schema variables.
func MustSchema(name string, fields ...*FieldSpec) *Schema {
	s, err := NewSchema(name, fields...)
	if err != nil {
		panic(err)
	}
	return s
}

// finalizeField checks variant and option compatibility and precomputes
// derived state. pos is the field's position for reference direction checks.
func finalizeField(s *Schema, f *FieldSpec, pos int) error {
	if f.err != nil {
		return f.err
	}
	if err := checkOptionCompat(f); err != nil {
		return err
	}
	if err := checkRefs(s, f, pos); err != nil {
		return err
	}
	if f.kind == kindStringZ && f.enc != nil && len(f.term) == 0 {
		term, err := f.enc.NewEncoder().Bytes([]byte{0})
		if err != nil || len(term) == 0 {
			return fmt.Errorf("%w: field %q: encoding cannot represent the terminator", ErrConfiguration, f.name)
		}
		f.term = term
	}
	if f.nullKind != nullNone {
		if f.staticByteSize() < 0 && f.size.kind != sizeRef && f.size.kind != sizeFn {
			return fmt.Errorf("%w: nullable field %q has no resolvable size", ErrUndefinedSize, f.name)
		}
		if f.nullKind == nullBytes {
			n := f.staticByteSize()
			if n < 0 {
				return fmt.Errorf("%w: field %q: explicit null pattern needs a fixed size", ErrConfiguration, f.name)
			}
			if len(f.nullValue) != n {
				return fmt.Errorf("%w: field %q: null pattern is %d bytes, field takes %d",
					ErrConfiguration, f.name, len(f.nullValue), n)
			}
		}
	}
	if f.hasConst {
		if f.computeFn != nil {
			return fmt.Errorf("%w: constant field %q cannot be computed", ErrConfiguration, f.name)
		}
		if f.hasDefault {
			return fmt.Errorf("%w: constant field %q needs no default", ErrConfiguration, f.name)
		}
		nv, err := normalizePolicy(f, f.constVal)
		if err != nil {
			return fmt.Errorf("field %q constant: %w", f.name, err)
		}
		f.constVal = nv
	}
	if f.hasDefault {
		if f.computeFn != nil {
			return fmt.Errorf("%w: computed field %q needs no default", ErrConfiguration, f.name)
		}
		if f.defaultFn == nil {
			nv, err := normalizePolicy(f, f.defaultVal)
			if err != nil {
				return fmt.Errorf("field %q default: %w", f.name, err)
			}
			f.defaultVal = nv
		}
	}
	switch f.kind {
	case kindArray:
		if f.count < 0 && f.countRef == "" && f.halt == nil {
			return fmt.Errorf("%w: array %q needs Count, CountRef or HaltWhen", ErrConfiguration, f.name)
		}
		if err := finalizeField(s, f.elem, pos); err != nil {
			return fmt.Errorf("array %q: %w", f.name, err)
		}
	case kindUnion:
		if len(f.choices) == 0 {
			return fmt.Errorf("%w: union %q has no candidates", ErrConfiguration, f.name)
		}
		if len(f.choices) > 1 && (f.loadDec == nil || f.dumpDec == nil) {
			return fmt.Errorf("%w: union %q needs both deciders", ErrConfiguration, f.name)
		}
		for _, c := range f.choices {
			if err := finalizeField(s, c, pos); err != nil {
				return fmt.Errorf("union %q: %w", f.name, err)
			}
		}
	}
	return nil
}

// checkOptionCompat rejects options on field variants that cannot honor
// them.
func checkOptionCompat(f *FieldSpec) error {
	reject := func(what string) error {
		return fmt.Errorf("%w: field %q: %s does not apply to %s fields", ErrConfiguration, f.name, what, f.kind)
	}
	if f.size.kind != sizeNone && f.kind != kindBytes && f.kind != kindString {
		return reject("a size policy")
	}
	if f.kind == kindString && f.size.kind == sizeNone {
		return fmt.Errorf("%w: text field %q needs Size, SizeRef or SizeFn", ErrConfiguration, f.name)
	}
	if (f.count >= 0 || f.countRef != "" || f.halt != nil) && f.kind != kindArray {
		return reject("a count policy")
	}
	if f.bigEnd && f.kind != kindInt && f.kind != kindFloat && f.kind != kindTime && f.kind != kindBigInt {
		return reject("byte order")
	}
	if f.enc != nil && f.kind != kindString && f.kind != kindStringZ {
		return reject("a character encoding")
	}
	if f.padByte >= 0 && f.kind != kindString {
		return reject("padding")
	}
	if f.maxBytes > 0 && f.kind != kindVarInt {
		return reject("a byte limit")
	}
	if f.unit != Seconds && f.kind != kindTime {
		return reject("a time unit")
	}
	return nil
}

// checkRefs verifies that size and count references point at existing
// earlier fields.
func checkRefs(s *Schema, f *FieldSpec, pos int) error {
	check := func(ref string) error {
		i, ok := s.byName[ref]
		if !ok {
			return fmt.Errorf("%w: %q referenced by %q", ErrNoSuchField, ref, f.name)
		}
		if i >= pos {
			return fmt.Errorf("%w: %q is not resolved before %q", ErrCircularDependency, ref, f.name)
		}
		return nil
	}
	if f.size.kind == sizeRef {
		if err := check(f.size.ref); err != nil {
			return err
		}
	}
	if f.countRef != "" {
		if err := check(f.countRef); err != nil {
			return err
		}
	}
	return nil
}

// normalizePolicy runs constant and default values through the codec once
// at build time, so later equality checks compare canonical forms.
func normalizePolicy(f *FieldSpec, v any) (any, error) {
	if v == nil {
		if f.nullKind == nullNone {
			return nil, fmt.Errorf("%w: nil value for non-nullable field", ErrConfiguration)
		}
		return nil, nil
	}
	nv, err := f.codec.normalize(f, v)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	return nv, nil
}
