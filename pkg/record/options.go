package record

import (
	"fmt"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// Option adjusts a field at construction. Options are checked against the
// field variant; incompatible combinations surface from Builder.Build as
// ErrConfiguration.
type Option func(*FieldSpec)

// Size fixes the field's encoded size to n bytes.
func Size(n int) Option {
	return func(f *FieldSpec) {
		if n < 0 {
			f.fail("negative size %d", n)
			return
		}
		f.setSize(sizePolicy{kind: sizeFixed, n: n})
	}
}

// SizeRef takes the field's encoded size from the value of an earlier
// integer field.
func SizeRef(field string) Option {
	return func(f *FieldSpec) {
		f.setSize(sizePolicy{kind: sizeRef, ref: field})
	}
}

// SizeFn resolves the field's encoded size through a callback over sibling
// values.
func SizeFn(fn SizeFunc) Option {
	return func(f *FieldSpec) {
		if fn == nil {
			f.fail("nil size callback")
			return
		}
		f.setSize(sizePolicy{kind: sizeFn, fn: fn})
	}
}

func (f *FieldSpec) setSize(p sizePolicy) {
	if f.size.kind != sizeNone {
		f.fail("size declared twice")
		return
	}
	f.size = p
}

// Count fixes an array's element count.
func Count(n int) Option {
	return func(f *FieldSpec) {
		if n < 0 {
			f.fail("negative count %d", n)
			return
		}
		f.setCount(func() { f.count = n })
	}
}

// CountRef takes an array's element count from the value of an earlier
// integer field.
func CountRef(field string) Option {
	return func(f *FieldSpec) {
		f.setCount(func() { f.countRef = field })
	}
}

// HaltWhen terminates an array through a predicate consulted before each
// element read. HaltAtEOF is the common choice for greedy arrays.
func HaltWhen(fn HaltFunc) Option {
	return func(f *FieldSpec) {
		if fn == nil {
			f.fail("nil halt callback")
			return
		}
		f.setCount(func() { f.halt = fn })
	}
}

func (f *FieldSpec) setCount(apply func()) {
	if f.count >= 0 || f.countRef != "" || f.halt != nil {
		f.fail("count declared twice")
		return
	}
	apply()
}

// Const pins the field to a single value. Reading anything else fails with
// ErrUnexpectedValue and the value needs not be supplied for writing.
func Const(v any) Option {
	return func(f *FieldSpec) {
		if f.hasConst {
			f.fail("constant declared twice")
			return
		}
		f.hasConst = true
		f.constVal = v
	}
}

// Default supplies the value written when none was assigned.
func Default(v any) Option {
	return func(f *FieldSpec) {
		if f.hasDefault {
			f.fail("default declared twice")
			return
		}
		f.hasDefault = true
		f.defaultVal = v
	}
}

// DefaultFunc supplies the written value through a factory, for defaults
// that must differ per record.
func DefaultFunc(fn func() any) Option {
	return func(f *FieldSpec) {
		if fn == nil {
			f.fail("nil default factory")
			return
		}
		if f.hasDefault {
			f.fail("default declared twice")
			return
		}
		f.hasDefault = true
		f.defaultFn = fn
	}
}

// Discard decodes and verifies the field but drops its value from the
// record once the whole load finished. Bridging fields like padding or
// checksums use it.
func Discard(f *FieldSpec) {
	f.discard = true
}

// NullZeroes makes the field nullable with an all-zero byte pattern of the
// field's size.
func NullZeroes(f *FieldSpec) {
	if f.nullKind != nullNone {
		f.fail("null pattern declared twice")
		return
	}
	f.nullKind = nullZeroes
}

// NullValue makes the field nullable with an explicit byte pattern. The
// pattern length must match the field's fixed size.
func NullValue(pattern []byte) Option {
	return func(f *FieldSpec) {
		if f.nullKind != nullNone {
			f.fail("null pattern declared twice")
			return
		}
		if len(pattern) == 0 {
			f.fail("empty null pattern")
			return
		}
		f.nullKind = nullBytes
		f.nullValue = append([]byte(nil), pattern...)
	}
}

// PresentIf gates the field on a predicate over previously resolved values.
// Absent fields take no bytes on either direction and resolve to NotPresent.
func PresentIf(fn PresenceFunc) Option {
	return func(f *FieldSpec) {
		if fn == nil {
			f.fail("nil presence predicate")
			return
		}
		if f.presence != nil {
			f.fail("presence declared twice")
			return
		}
		f.presence = fn
	}
}

// ComputedBy derives the field's written value from sibling values at dump
// time. Computed fields reject direct assignment.
func ComputedBy(fn ComputeFunc) Option {
	return func(f *FieldSpec) {
		if fn == nil {
			f.fail("nil compute callback")
			return
		}
		if f.computeFn != nil {
			f.fail("compute declared twice")
			return
		}
		f.computeFn = fn
	}
}

// LengthOf derives this integer field from the encoded byte length of the
// named sibling. It is the canned producer for length-prefixed payloads,
// pair it with SizeRef on the payload side for loading.
func LengthOf(target string) Option {
	return func(f *FieldSpec) {
		ComputedBy(func(st *State) (any, error) {
			t, err := siblingSpec(st, target)
			if err != nil {
				return nil, err
			}
			v, ok := st.Value(target)
			if !ok {
				return nil, fmt.Errorf("%w: %q is not resolved yet", ErrMissingRequiredValue, target)
			}
			n, err := t.valueSize(v, st)
			if err != nil {
				return nil, err
			}
			return n, nil
		})(f)
		f.lengthOf = target
	}
}

// CountOf derives this integer field from the element count of the named
// sibling array. Pair it with CountRef on the array side for loading.
func CountOf(target string) Option {
	return func(f *FieldSpec) {
		ComputedBy(func(st *State) (any, error) {
			t, err := siblingSpec(st, target)
			if err != nil {
				return nil, err
			}
			v, ok := st.Value(target)
			if !ok {
				return nil, fmt.Errorf("%w: %q is not resolved yet", ErrMissingRequiredValue, target)
			}
			if v == NotPresent {
				return 0, nil
			}
			n, err := t.FinalElementCount(v, st)
			if err != nil {
				return nil, err
			}
			return n, nil
		})(f)
		f.countOf = target
	}
}

func siblingSpec(st *State, name string) (*FieldSpec, error) {
	s := st.Schema()
	if s == nil {
		return nil, fmt.Errorf("%w: no schema in scope for reference to %q", ErrConfiguration, name)
	}
	f, ok := s.Field(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNoSuchField, name)
	}
	return f, nil
}

// WithValidator attaches a validator running after load and before dump.
func WithValidator(fn FieldValidator) Option {
	return WithValidatorAt(PostLoad|PreDump, fn)
}

// WithValidatorAt attaches a validator restricted to the given phases.
func WithValidatorAt(phase Phase, fn FieldValidator) Option {
	return func(f *FieldSpec) {
		if fn == nil {
			f.fail("nil validator")
			return
		}
		if phase&(PostLoad|PreDump) == 0 {
			f.fail("validator with empty phase")
			return
		}
		f.validators = append(f.validators, fieldValidator{phase: phase, fn: fn})
	}
}

// BigEndian switches a numeric field to big-endian byte order.
func BigEndian(f *FieldSpec) {
	f.bigEnd = true
}

// LittleEndian is the default byte order, the option exists for explicit
// declarations.
func LittleEndian(f *FieldSpec) {
	f.bigEnd = false
}

// Unsigned switches a big-integer field to unsigned interpretation.
func Unsigned(f *FieldSpec) {
	if f.kind != kindBigInt {
		f.fail("unsigned applies to big-integer fields")
		return
	}
	f.signed = false
}

// WithEncoding sets the character encoding of a text field. Text is UTF-8
// passthrough without it. Encodings set this way have no name in format
// files or struct tags, use Encoding for the named set.
func WithEncoding(enc encoding.Encoding) Option {
	return func(f *FieldSpec) {
		if enc == nil {
			f.fail("nil encoding")
			return
		}
		f.enc = enc
	}
}

// Encoding sets the character encoding of a text field by the name used in
// format definitions and struct tags: utf8, latin1, utf16le or utf16be.
func Encoding(name string) Option {
	return func(f *FieldSpec) {
		enc, canonical, err := parseEncodingName(name)
		if err != nil {
			f.fail("%v", err)
			return
		}
		f.encName = canonical
		if enc != nil {
			f.enc = enc
		}
	}
}

// parseEncodingName maps a format-file encoding name onto a text encoding
// and its canonical spelling. UTF-8 is the nil encoding.
func parseEncodingName(name string) (encoding.Encoding, string, error) {
	switch strings.ToLower(name) {
	case "", "utf8", "utf-8":
		return nil, "", nil
	case "latin1", "iso8859-1", "iso-8859-1":
		return charmap.ISO8859_1, "latin1", nil
	case "utf16le", "utf-16le":
		return unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM), "utf16le", nil
	case "utf16be", "utf-16be":
		return unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM), "utf16be", nil
	default:
		return nil, "", fmt.Errorf("unknown encoding %q", name)
	}
}

// WithPadByte pads short text up to the field's fixed size on write instead
// of failing with ErrValueSize.
func WithPadByte(b byte) Option {
	return func(f *FieldSpec) {
		f.padByte = int(b)
	}
}

// WithMaxBytes caps the encoded length of a variable-length integer.
func WithMaxBytes(n int) Option {
	return func(f *FieldSpec) {
		if n < 1 {
			f.fail("max bytes %d out of range", n)
			return
		}
		f.maxBytes = n
	}
}

// WithTimeUnit sets the resolution a timestamp field is stored in.
func WithTimeUnit(u TimeUnit) Option {
	return func(f *FieldSpec) {
		if u > Nanoseconds {
			f.fail("unknown time unit")
			return
		}
		f.unit = u
	}
}

// AtIndex orders the field explicitly instead of by declaration order.
// Within one record either every field carries an index or none does,
// otherwise Build fails with ErrMixedDeclarations.
func AtIndex(i int) Option {
	return func(f *FieldSpec) {
		if i < 0 {
			f.fail("negative index %d", i)
			return
		}
		f.declIdx = i
	}
}

// TimeUnit is the resolution of a timestamp field.
type TimeUnit byte

const (
	// Seconds is the classic Unix timestamp resolution and the default.
	Seconds TimeUnit = iota
	// Milliseconds resolution.
	Milliseconds
	// Microseconds resolution.
	Microseconds
	// Nanoseconds resolution.
	Nanoseconds
)

// String implements fmt.Stringer.
func (u TimeUnit) String() string {
	switch u {
	case Seconds:
		return "s"
	case Milliseconds:
		return "ms"
	case Microseconds:
		return "us"
	case Nanoseconds:
		return "ns"
	default:
		return fmt.Sprintf("unit(%d)", byte(u))
	}
}

// ParseTimeUnit converts a unit name as used in schema files.
func ParseTimeUnit(s string) (TimeUnit, error) {
	switch strings.ToLower(s) {
	case "s", "sec", "seconds":
		return Seconds, nil
	case "ms", "milliseconds":
		return Milliseconds, nil
	case "us", "µs", "microseconds":
		return Microseconds, nil
	case "ns", "nanoseconds":
		return Nanoseconds, nil
	default:
		return Seconds, fmt.Errorf("%w: unknown time unit %q", ErrConfiguration, s)
	}
}
