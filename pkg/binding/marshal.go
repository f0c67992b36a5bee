package binding

import (
	"context"
	"fmt"
	"math"
	"math/big"
	"reflect"

	"github.com/nspcc-dev/binrec/pkg/record"
)

var bigIntType = reflect.TypeOf((*big.Int)(nil))

// Marshal encodes v, a tagged struct or pointer to one, through its derived
// schema. Constant and computed fields are filled in by the engine, nil
// pointer fields fall back to the field's null or default policy.
func Marshal(ctx context.Context, v any) ([]byte, error) {
	b, rv, err := binderFor(v)
	if err != nil {
		return nil, err
	}
	rec, err := b.fill(rv)
	if err != nil {
		return nil, err
	}
	return rec.EncodeBytes(ctx)
}

// Unmarshal decodes data into v, a non-nil pointer to a tagged struct.
// Fields the load left without a value (not present, discarded) keep their
// Go zero value.
func Unmarshal(ctx context.Context, data []byte, v any) error {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return fmt.Errorf("%w: unmarshal needs a non-nil struct pointer, not %T", record.ErrConfiguration, v)
	}
	rv = rv.Elem()
	b, err := derive(rv.Type())
	if err != nil {
		return err
	}
	rec, err := b.schema.DecodeBytes(ctx, data)
	if err != nil {
		return err
	}
	return b.extract(rec, rv)
}

func binderFor(v any) (*binder, reflect.Value, error) {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, reflect.Value{}, fmt.Errorf("%w: nil %T", record.ErrConfiguration, v)
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil, reflect.Value{}, fmt.Errorf("%w: bindings need a struct, not %T", record.ErrConfiguration, v)
	}
	b, err := derive(rv.Type())
	if err != nil {
		return nil, reflect.Value{}, err
	}
	return b, rv, nil
}

// fill builds a record out of the struct's bound fields. Nil pointers and
// nil slices stay Undefined so declared policies decide their fate.
func (b *binder) fill(rv reflect.Value) (*record.Record, error) {
	rec := b.schema.New()
	for _, bf := range b.fields {
		if bf.spec.Constant() || bf.spec.Computed() {
			continue
		}
		fv := rv.FieldByIndex(bf.path)
		if fv.Kind() == reflect.Pointer {
			if fv.IsNil() {
				if bf.spec.Nullable() {
					if err := rec.Set(bf.name, nil); err != nil {
						return nil, err
					}
				}
				continue
			}
			if fv.Type() != bigIntType {
				fv = fv.Elem()
			}
		}
		if fv.Kind() == reflect.Slice && fv.IsNil() {
			continue
		}
		val, err := b.recordValue(bf, fv)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", bf.name, err)
		}
		if err := rec.Set(bf.name, val); err != nil {
			return nil, err
		}
	}
	return rec, nil
}

// recordValue converts one Go field value to what Record.Set expects,
// descending into nested struct types through their binders.
func (b *binder) recordValue(bf boundField, fv reflect.Value) (any, error) {
	if bf.sub == nil {
		return fv.Interface(), nil
	}
	switch fv.Kind() {
	case reflect.Struct:
		return bf.sub.fill(fv)
	case reflect.Slice, reflect.Array:
		out := make([]any, fv.Len())
		for i := range out {
			ev := fv.Index(i)
			if ev.Kind() == reflect.Pointer {
				if ev.IsNil() {
					out[i] = nil
					continue
				}
				ev = ev.Elem()
			}
			sub, err := bf.sub.fill(ev)
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", i, err)
			}
			out[i] = sub
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: cannot bind a record to %s", record.ErrUnserializableValue, fv.Type())
}

// extract writes record values back into the struct's bound fields.
func (b *binder) extract(rec *record.Record, rv reflect.Value) error {
	for _, bf := range b.fields {
		v, err := rec.Get(bf.name)
		if err != nil {
			return err
		}
		if v == record.Undefined || v == record.NotPresent || v == record.UseDefault {
			continue
		}
		fv := rv.FieldByIndex(bf.path)
		if err := b.setGo(bf, fv, v); err != nil {
			return fmt.Errorf("field %q: %w", bf.name, err)
		}
	}
	return nil
}

// setGo assigns one decoded value to a Go field, widening and narrowing
// integers with range checks.
func (b *binder) setGo(bf boundField, fv reflect.Value, v any) error {
	if v == nil {
		fv.SetZero()
		return nil
	}
	if fv.Kind() == reflect.Pointer && fv.Type() != bigIntType {
		if fv.IsNil() {
			fv.Set(reflect.New(fv.Type().Elem()))
		}
		fv = fv.Elem()
	}
	switch x := v.(type) {
	case *record.Record:
		if bf.sub == nil || fv.Kind() != reflect.Struct {
			return fmt.Errorf("cannot assign a record to %s", fv.Type())
		}
		return bf.sub.extract(x, fv)
	case []any:
		if fv.Kind() != reflect.Slice {
			return fmt.Errorf("cannot assign %d elements to %s", len(x), fv.Type())
		}
		out := reflect.MakeSlice(fv.Type(), len(x), len(x))
		for i, e := range x {
			if e == nil || e == record.NotPresent {
				continue
			}
			if err := b.setGo(bf, out.Index(i), e); err != nil {
				return fmt.Errorf("element %d: %w", i, err)
			}
		}
		fv.Set(out)
		return nil
	case uint64:
		switch fv.Kind() {
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			if fv.OverflowUint(x) {
				return fmt.Errorf("%d does not fit %s", x, fv.Type())
			}
			fv.SetUint(x)
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			if x > math.MaxInt64 || fv.OverflowInt(int64(x)) {
				return fmt.Errorf("%d does not fit %s", x, fv.Type())
			}
			fv.SetInt(int64(x))
		default:
			return fmt.Errorf("cannot assign an integer to %s", fv.Type())
		}
		return nil
	case int64:
		switch fv.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			if fv.OverflowInt(x) {
				return fmt.Errorf("%d does not fit %s", x, fv.Type())
			}
			fv.SetInt(x)
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			if x < 0 || fv.OverflowUint(uint64(x)) {
				return fmt.Errorf("%d does not fit %s", x, fv.Type())
			}
			fv.SetUint(uint64(x))
		default:
			return fmt.Errorf("cannot assign an integer to %s", fv.Type())
		}
		return nil
	case float64:
		if fv.Kind() != reflect.Float32 && fv.Kind() != reflect.Float64 {
			return fmt.Errorf("cannot assign a float to %s", fv.Type())
		}
		if fv.OverflowFloat(x) {
			return fmt.Errorf("%g does not fit %s", x, fv.Type())
		}
		fv.SetFloat(x)
		return nil
	case string:
		if fv.Kind() != reflect.String {
			return fmt.Errorf("cannot assign a string to %s", fv.Type())
		}
		fv.SetString(x)
		return nil
	case []byte:
		if fv.Kind() != reflect.Slice || fv.Type().Elem().Kind() != reflect.Uint8 {
			return fmt.Errorf("cannot assign bytes to %s", fv.Type())
		}
		fv.SetBytes(append([]byte(nil), x...))
		return nil
	}
	xv := reflect.ValueOf(v)
	if !xv.Type().AssignableTo(fv.Type()) {
		return fmt.Errorf("cannot assign %T to %s", v, fv.Type())
	}
	fv.Set(xv)
	return nil
}
