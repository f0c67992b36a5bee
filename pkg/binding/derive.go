/*
Package binding maps Go structs onto record schemas through binrec struct
tags and generates such structs back from format definitions.

A tag names the field type and then options, comma-separated, with the same
vocabulary format files use:

	type Bitmap struct {
	    Magic   []byte  `binrec:"bytes,size=2,const=424d"`
	    Width   uint16  `binrec:"uint16"`
	    Height  uint16  `binrec:"uint16"`
	    NPixels uint32  `binrec:"uint32,name=npixels,count_of=pixels"`
	    Pixels  []Pixel `binrec:"array,count_ref=npixels"`
	}

The wire name defaults to the lowercased Go field name, name= overrides it.
Fields without a binrec tag are invisible to the codec and "-" skips one
explicitly. An anonymous embedded struct becomes the record's embedded
parent. Array element types are inferred from the Go slice, elem= overrides
the inference and covers the scalar set only, richer element layouts are
declared in code through the record package builder. Unions, presence
predicates and custom validators likewise have no tag form.
*/
package binding

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru"
	"github.com/nspcc-dev/binrec/pkg/record"
	"github.com/nspcc-dev/binrec/pkg/varint"
)

// TagKey is the struct tag key the package reads.
const TagKey = "binrec"

// cacheSize bounds the number of struct types with memoized schemas.
const cacheSize = 128

var cache, _ = lru.New(cacheSize) // Never errors for positive size.

// binder ties a derived schema to the Go struct layout it came from.
type binder struct {
	schema *record.Schema
	fields []boundField
}

// boundField connects one schema field to the Go field holding its value.
type boundField struct {
	name string
	path []int
	spec *record.FieldSpec
	sub  *binder
}

// Derive builds the record schema described by the binrec tags of v's type.
// v is a struct or a pointer to one. Results are memoized per type, deriving
// the same type twice returns the same schema.
func Derive(v any) (*record.Schema, error) {
	b, err := derive(reflect.TypeOf(v))
	if err != nil {
		return nil, err
	}
	return b.schema, nil
}

func derive(t reflect.Type) (*binder, error) {
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: bindings need a struct type, not %v", record.ErrConfiguration, t)
	}
	if c, ok := cache.Get(t); ok {
		return c.(*binder), nil
	}
	b, err := deriveType(t)
	if err != nil {
		return nil, err
	}
	cache.Add(t, b)
	return b, nil
}

func deriveType(t reflect.Type) (*binder, error) {
	if t.Name() == "" {
		return nil, fmt.Errorf("%w: unnamed struct types cannot name a record", record.ErrConfiguration)
	}
	bld := record.NewBuilder(strings.ToLower(t.Name()))
	b := &binder{}
	if err := collectFields(bld, b, t, nil); err != nil {
		return nil, err
	}
	s, err := bld.Build()
	if err != nil {
		return nil, err
	}
	b.schema = s
	for i := range b.fields {
		f, ok := s.Field(b.fields[i].name)
		if !ok {
			return nil, fmt.Errorf("%w: %q", record.ErrNoSuchField, b.fields[i].name)
		}
		b.fields[i].spec = f
	}
	return b, nil
}

// collectFields walks t and feeds the builder, recording the Go index path
// of every bound field. Embedded parents contribute their fields with the
// path extended through the anonymous member.
func collectFields(bld *record.Builder, b *binder, t reflect.Type, path []int) error {
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		tag, tagged := sf.Tag.Lookup(TagKey)
		if tag == "-" {
			continue
		}
		fpath := append(append([]int(nil), path...), i)
		if sf.Anonymous && !tagged {
			et := sf.Type
			if et.Kind() == reflect.Pointer {
				return fmt.Errorf("%w: embedded %s: embed structs by value", record.ErrConfiguration, et)
			}
			if et.Kind() != reflect.Struct {
				continue
			}
			parent, err := derive(et)
			if err != nil {
				return err
			}
			bld.Embed(parent.schema)
			for _, pf := range parent.fields {
				b.fields = append(b.fields, boundField{
					name: pf.name,
					path: append(append([]int(nil), fpath...), pf.path...),
					sub:  pf.sub,
				})
			}
			continue
		}
		if !tagged || !sf.IsExported() {
			continue
		}
		spec, sub, err := fieldFromTag(sf, tag)
		if err != nil {
			return fmt.Errorf("field %s: %w", sf.Name, err)
		}
		bld.Add(spec)
		b.fields = append(b.fields, boundField{name: spec.Name(), path: fpath, sub: sub})
	}
	return nil
}

// scalarCtors covers the field types usable both standalone and as array
// elements.
var scalarCtors = map[string]func(string, ...record.Option) *record.FieldSpec{
	"uint8":       record.UInt8,
	"byte":        record.UInt8,
	"uint16":      record.UInt16,
	"uint32":      record.UInt32,
	"uint64":      record.UInt64,
	"int8":        record.Int8,
	"int16":       record.Int16,
	"int32":       record.Int32,
	"int64":       record.Int64,
	"float32":     record.Float32,
	"float64":     record.Float64,
	"uuid":        record.UUID,
	"timestamp32": record.Timestamp32,
	"timestamp64": record.Timestamp64,
	"bytes":       record.Bytes,
	"string":      record.String,
	"stringz":     record.StringZ,
}

// fieldFromTag turns one tag into a field spec, plus the binder of the
// nested struct type for record fields and record-element arrays.
func fieldFromTag(sf reflect.StructField, tag string) (*record.FieldSpec, *binder, error) {
	tokens := strings.Split(tag, ",")
	typ := strings.TrimSpace(tokens[0])
	if typ == "" {
		return nil, nil, errors.New("tag names no field type")
	}
	name := strings.ToLower(sf.Name)
	var (
		opts       []record.Option
		schemeName string
		elemTyp    string
		elemSize   = -1
		elemBig    bool
		width      int
	)
	for _, tok := range tokens[1:] {
		key, val, hasVal := strings.Cut(tok, "=")
		switch key {
		case "discard", "unsigned":
			if hasVal {
				return nil, nil, fmt.Errorf("tag option %q takes no value", key)
			}
			if key == "discard" {
				opts = append(opts, record.Discard)
			} else {
				opts = append(opts, record.Unsigned)
			}
			continue
		}
		if !hasVal || val == "" {
			return nil, nil, fmt.Errorf("tag option %q needs a value", key)
		}
		switch key {
		case "name":
			name = val
		case "endian":
			switch val {
			case "big", "be":
				opts = append(opts, record.BigEndian)
			case "little", "le":
				opts = append(opts, record.LittleEndian)
			default:
				return nil, nil, fmt.Errorf("unknown byte order %q", val)
			}
		case "size":
			n, err := tagInt(key, val)
			if err != nil {
				return nil, nil, err
			}
			opts = append(opts, record.Size(n))
		case "size_ref":
			opts = append(opts, record.SizeRef(val))
		case "count":
			n, err := tagInt(key, val)
			if err != nil {
				return nil, nil, err
			}
			opts = append(opts, record.Count(n))
		case "count_ref":
			opts = append(opts, record.CountRef(val))
		case "until":
			if val != "eof" {
				return nil, nil, fmt.Errorf("unknown until condition %q", val)
			}
			opts = append(opts, record.HaltWhen(record.HaltAtEOF))
		case "const":
			v, err := tagScalar(typ, val)
			if err != nil {
				return nil, nil, fmt.Errorf("const: %w", err)
			}
			opts = append(opts, record.Const(v))
		case "default":
			v, err := tagScalar(typ, val)
			if err != nil {
				return nil, nil, fmt.Errorf("default: %w", err)
			}
			opts = append(opts, record.Default(v))
		case "null":
			if val == "zeroes" || val == "zeros" {
				opts = append(opts, record.NullZeroes)
				break
			}
			pattern, err := hex.DecodeString(val)
			if err != nil || len(pattern) == 0 {
				return nil, nil, fmt.Errorf("null pattern %q is not hex", val)
			}
			opts = append(opts, record.NullValue(pattern))
		case "encoding":
			opts = append(opts, record.Encoding(val))
		case "unit":
			u, err := record.ParseTimeUnit(val)
			if err != nil {
				return nil, nil, err
			}
			opts = append(opts, record.WithTimeUnit(u))
		case "max_bytes":
			n, err := tagInt(key, val)
			if err != nil {
				return nil, nil, err
			}
			opts = append(opts, record.WithMaxBytes(n))
		case "pad":
			n, err := tagInt(key, val)
			if err != nil {
				return nil, nil, err
			}
			if n < 0 || n > 255 {
				return nil, nil, fmt.Errorf("pad byte %d out of range", n)
			}
			opts = append(opts, record.WithPadByte(byte(n)))
		case "length_of":
			opts = append(opts, record.LengthOf(val))
		case "count_of":
			opts = append(opts, record.CountOf(val))
		case "scheme":
			schemeName = val
		case "width":
			n, err := tagInt(key, val)
			if err != nil {
				return nil, nil, err
			}
			width = n
		case "elem":
			elemTyp = val
		case "elem_size":
			n, err := tagInt(key, val)
			if err != nil {
				return nil, nil, err
			}
			elemSize = n
		case "elem_endian":
			switch val {
			case "big", "be":
				elemBig = true
			case "little", "le":
				elemBig = false
			default:
				return nil, nil, fmt.Errorf("unknown byte order %q", val)
			}
		default:
			return nil, nil, fmt.Errorf("unknown tag option %q", key)
		}
	}

	switch typ {
	case "varuint":
		scheme := varint.ULEB128
		if schemeName != "" {
			var err error
			scheme, err = varint.ParseScheme(schemeName)
			if err != nil {
				return nil, nil, err
			}
		}
		return record.VarUint(name, scheme, opts...), nil, nil
	case "varint":
		if schemeName != "" && schemeName != "leb128" {
			return nil, nil, fmt.Errorf("signed varints use the leb128 scheme, not %q", schemeName)
		}
		return record.VarInt(name, opts...), nil, nil
	case "bigint":
		if width == 0 {
			return nil, nil, errors.New("bigint needs a width")
		}
		return record.BigInt(name, width, opts...), nil, nil
	case "array":
		elem, sub, err := elemField(sf, name, elemTyp, elemSize, elemBig)
		if err != nil {
			return nil, nil, err
		}
		return record.Array(name, elem, opts...), sub, nil
	case "record":
		et := sf.Type
		for et.Kind() == reflect.Pointer {
			et = et.Elem()
		}
		if et.Kind() != reflect.Struct {
			return nil, nil, fmt.Errorf("record fields need a struct type, not %s", sf.Type)
		}
		inner, err := derive(et)
		if err != nil {
			return nil, nil, err
		}
		return record.Nested(name, inner.schema, opts...), inner, nil
	case "union":
		return nil, nil, errors.New("unions have no tag form, declare this record in code")
	}
	ctor, ok := scalarCtors[typ]
	if !ok {
		return nil, nil, fmt.Errorf("unknown field type %q", typ)
	}
	return ctor(name, opts...), nil, nil
}

// elemField builds the element spec of a tagged array. The element type
// comes from elem= or, failing that, from the Go slice element.
func elemField(sf reflect.StructField, name, elemTyp string, elemSize int, elemBig bool) (*record.FieldSpec, *binder, error) {
	t := sf.Type
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Slice && t.Kind() != reflect.Array {
		return nil, nil, fmt.Errorf("array fields need a slice type, not %s", sf.Type)
	}
	et := t.Elem()
	if elemTyp == "" {
		var err error
		elemTyp, err = inferElemType(et)
		if err != nil {
			return nil, nil, err
		}
	}
	if elemTyp == "record" {
		for et.Kind() == reflect.Pointer {
			et = et.Elem()
		}
		if et.Kind() != reflect.Struct {
			return nil, nil, fmt.Errorf("record elements need a struct type, not %s", et)
		}
		inner, err := derive(et)
		if err != nil {
			return nil, nil, err
		}
		return record.Nested(name, inner.schema), inner, nil
	}
	ctor, ok := scalarCtors[elemTyp]
	if !ok {
		return nil, nil, fmt.Errorf("array elements cannot be %q", elemTyp)
	}
	var eopts []record.Option
	if elemSize >= 0 {
		eopts = append(eopts, record.Size(elemSize))
	}
	if elemBig {
		eopts = append(eopts, record.BigEndian)
	}
	return ctor(name, eopts...), nil, nil
}

func inferElemType(et reflect.Type) (string, error) {
	if et.Kind() == reflect.Pointer {
		et = et.Elem()
	}
	switch et.Kind() {
	case reflect.Struct:
		return "record", nil
	case reflect.Uint8:
		return "uint8", nil
	case reflect.Uint16:
		return "uint16", nil
	case reflect.Uint32:
		return "uint32", nil
	case reflect.Uint64, reflect.Uint:
		return "uint64", nil
	case reflect.Int8:
		return "int8", nil
	case reflect.Int16:
		return "int16", nil
	case reflect.Int32:
		return "int32", nil
	case reflect.Int64, reflect.Int:
		return "int64", nil
	case reflect.Float32:
		return "float32", nil
	case reflect.Float64:
		return "float64", nil
	case reflect.String:
		return "stringz", nil
	}
	return "", fmt.Errorf("cannot infer an element type for %s, give elem=", et)
}

func tagInt(key, val string) (int, error) {
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("tag option %s: %q is not a number", key, val)
	}
	return n, nil
}

// tagScalar parses a const or default literal for the given field type.
func tagScalar(typ, val string) (any, error) {
	switch typ {
	case "uint8", "byte", "uint16", "uint32", "uint64", "varuint":
		n, err := strconv.ParseUint(val, 0, 64)
		if err != nil {
			return nil, fmt.Errorf("%q is not an unsigned integer", val)
		}
		return n, nil
	case "int8", "int16", "int32", "int64", "varint":
		n, err := strconv.ParseInt(val, 0, 64)
		if err != nil {
			return nil, fmt.Errorf("%q is not an integer", val)
		}
		return n, nil
	case "float32", "float64":
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return nil, fmt.Errorf("%q is not a number", val)
		}
		return f, nil
	case "bigint":
		n, ok := new(big.Int).SetString(val, 10)
		if !ok {
			return nil, fmt.Errorf("%q is not an integer", val)
		}
		return n, nil
	case "uuid":
		return uuid.Parse(val)
	case "timestamp32", "timestamp64":
		t, err := time.Parse(time.RFC3339Nano, val)
		if err != nil {
			return nil, fmt.Errorf("%q is not an RFC 3339 timestamp", val)
		}
		return t.UTC(), nil
	case "bytes":
		b, err := hex.DecodeString(val)
		if err != nil {
			return nil, fmt.Errorf("byte values are hex strings, %q is not one", val)
		}
		return b, nil
	case "string", "stringz":
		return val, nil
	}
	return nil, fmt.Errorf("%q fields cannot carry tag values", typ)
}
