package record

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/nspcc-dev/binrec/pkg/varint"
)

// Tag returns the field's declaration in struct-tag form, the inverse of
// what the binding package parses from binrec tags. Behavior only reachable
// through callbacks (ComputedBy, PresentIf, SizeFn, custom halting
// predicates, union deciders, validators and WithEncoding values) has no
// tag form and is left out. The canned producers and HaltAtEOF read back
// as length_of, count_of and until=eof.
func (f *FieldSpec) Tag() string {
	parts := []string{f.typeToken()}
	add := func(s string) { parts = append(parts, s) }

	if f.bigEnd {
		add("endian=big")
	}
	if f.kind == kindVarInt && !f.signed && f.scheme != varint.ULEB128 {
		add("scheme=" + f.scheme.String())
	}
	if f.kind == kindBigInt {
		add("width=" + strconv.Itoa(f.width))
		if !f.signed {
			add("unsigned")
		}
	}
	switch f.size.kind {
	case sizeFixed:
		add("size=" + strconv.Itoa(f.size.n))
	case sizeRef:
		add("size_ref=" + f.size.ref)
	}
	switch {
	case f.count >= 0:
		add("count=" + strconv.Itoa(f.count))
	case f.countRef != "":
		add("count_ref=" + f.countRef)
	case f.halt != nil:
		add("until=eof")
	}
	if f.elem != nil && f.elem.kind != kindNested {
		add("elem=" + f.elem.typeToken())
		if f.elem.size.kind == sizeFixed {
			add("elem_size=" + strconv.Itoa(f.elem.size.n))
		}
		if f.elem.bigEnd {
			add("elem_endian=big")
		}
	}
	if f.hasConst {
		if v, ok := tagValue(f.constVal); ok {
			add("const=" + v)
		}
	}
	if f.hasDefault && f.defaultFn == nil {
		if v, ok := tagValue(f.defaultVal); ok {
			add("default=" + v)
		}
	}
	switch f.nullKind {
	case nullZeroes:
		add("null=zeroes")
	case nullBytes:
		add("null=" + hex.EncodeToString(f.nullValue))
	}
	if f.discard {
		add("discard")
	}
	if f.encName != "" {
		add("encoding=" + f.encName)
	}
	if f.padByte >= 0 {
		add("pad=" + strconv.Itoa(f.padByte))
	}
	if f.kind == kindTime && f.unit != Seconds {
		add("unit=" + f.unit.String())
	}
	if f.maxBytes > 0 {
		add("max_bytes=" + strconv.Itoa(f.maxBytes))
	}
	if f.lengthOf != "" {
		add("length_of=" + f.lengthOf)
	}
	if f.countOf != "" {
		add("count_of=" + f.countOf)
	}
	return strings.Join(parts, ",")
}

func (f *FieldSpec) typeToken() string {
	switch f.kind {
	case kindInt:
		if f.signed {
			return "int" + strconv.Itoa(f.width*8)
		}
		return "uint" + strconv.Itoa(f.width*8)
	case kindFloat:
		return "float" + strconv.Itoa(f.width*8)
	case kindVarInt:
		if f.signed {
			return "varint"
		}
		return "varuint"
	case kindBigInt:
		return "bigint"
	case kindUUID:
		return "uuid"
	case kindTime:
		if f.width == 4 {
			return "timestamp32"
		}
		return "timestamp64"
	case kindBytes:
		return "bytes"
	case kindString:
		return "string"
	case kindStringZ:
		return "stringz"
	case kindArray:
		return "array"
	case kindUnion:
		return "union"
	case kindNested:
		return "record"
	default:
		return "invalid"
	}
}

// tagValue renders a constant or default for a tag. Values whose text form
// would break tag tokenization report false.
func tagValue(v any) (string, bool) {
	switch x := v.(type) {
	case nil:
		return "", false
	case []byte:
		return hex.EncodeToString(x), true
	case string:
		if strings.ContainsAny(x, ",`\"") || x == "" {
			return "", false
		}
		return x, true
	case time.Time:
		return x.Format(time.RFC3339Nano), true
	default:
		s := fmt.Sprintf("%v", x)
		if strings.ContainsAny(s, ",`\"") {
			return "", false
		}
		return s, true
	}
}
