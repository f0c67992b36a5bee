package record

import (
	"errors"
	"fmt"
)

// Category errors. Every failure produced by this package wraps exactly one
// of them, more specific sentinels below wrap these in turn, so callers can
// test with errors.Is at either granularity.
var (
	// ErrConfiguration is returned for schema construction mistakes. These
	// are programmer errors, not data errors.
	ErrConfiguration = errors.New("invalid schema configuration")
	// ErrSerialization is returned when a value cannot be turned into bytes.
	ErrSerialization = errors.New("serialization failed")
	// ErrDeserialization is returned when bytes cannot be turned into a value.
	ErrDeserialization = errors.New("deserialization failed")
	// ErrValidation is returned when a field- or record-level validator
	// rejects resolved values.
	ErrValidation = errors.New("validation failed")
)

// Configuration errors.
var (
	// ErrFieldRedefined is returned when two fields of one record share a
	// name, including collisions with an embedded parent's fields.
	ErrFieldRedefined = fmt.Errorf("%w: field redefined", ErrConfiguration)
	// ErrNoFields is returned when a schema is built with no fields at all.
	ErrNoFields = fmt.Errorf("%w: no fields defined", ErrConfiguration)
	// ErrMixedDeclarations is returned when explicitly indexed and
	// declaration-ordered fields are combined in one record.
	ErrMixedDeclarations = fmt.Errorf("%w: mixed declaration conventions", ErrConfiguration)
	// ErrMultipleInheritance is returned when more than one parent schema is
	// embedded.
	ErrMultipleInheritance = fmt.Errorf("%w: multiple parent schemas", ErrConfiguration)
	// ErrCircularDependency is returned when a size reference points forward
	// or reference chains loop, leaving no natural resolution direction.
	ErrCircularDependency = fmt.Errorf("%w: circular size dependency", ErrConfiguration)
	// ErrUndefinedSize is returned when a size cannot be determined without
	// sibling values or the value itself.
	ErrUndefinedSize = fmt.Errorf("%w: undefined size", ErrConfiguration)
	// ErrNoSuchField is returned for lookups of field names a schema does
	// not contain.
	ErrNoSuchField = fmt.Errorf("%w: no such field", ErrConfiguration)
)

// Serialization errors.
var (
	// ErrUnserializableValue is returned when a value's type or shape does
	// not fit the field it is written through.
	ErrUnserializableValue = fmt.Errorf("%w: unserializable value", ErrSerialization)
	// ErrValueSize is returned when an encoded form does not fit the field's
	// fixed size.
	ErrValueSize = fmt.Errorf("%w: value does not fit size", ErrSerialization)
	// ErrArraySize is returned when the number of array elements contradicts
	// the declared count.
	ErrArraySize = fmt.Errorf("%w: array element count mismatch", ErrSerialization)
	// ErrMissingRequiredValue is returned when a field with no value and no
	// default, computed or constant policy is dumped.
	ErrMissingRequiredValue = fmt.Errorf("%w: missing required value", ErrSerialization)
	// ErrImmutableField is returned on attempts to assign constant or
	// computed fields.
	ErrImmutableField = fmt.Errorf("%w: field is immutable", ErrSerialization)
)

// Deserialization errors.
var (
	// ErrUnexpectedEOF is returned when the source ends before a field's
	// required byte count is available.
	ErrUnexpectedEOF = fmt.Errorf("%w: unexpected end of input", ErrDeserialization)
	// ErrUnexpectedValue is returned when a constant-valued field reads
	// bytes differing from its declared constant.
	ErrUnexpectedValue = fmt.Errorf("%w: unexpected value", ErrDeserialization)
	// ErrExtraneousData is returned by strict whole-buffer decoding when
	// trailing bytes remain.
	ErrExtraneousData = fmt.Errorf("%w: extraneous data after decoding", ErrDeserialization)
)
