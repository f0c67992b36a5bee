package format

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/nspcc-dev/binrec/pkg/record"
	"github.com/nspcc-dev/binrec/pkg/varint"
	"gopkg.in/yaml.v3"
)

// fieldDef is one entry of a record's fields list. Keys irrelevant to the
// declared type are tolerated like in any YAML config, unknown keys are not.
type fieldDef struct {
	Name     string     `yaml:"name"`
	Type     string     `yaml:"type"`
	Endian   string     `yaml:"endian"`
	Size     *int       `yaml:"size"`
	SizeRef  string     `yaml:"size_ref"`
	Count    *int       `yaml:"count"`
	CountRef string     `yaml:"count_ref"`
	Until    string     `yaml:"until"`
	Const    *yaml.Node `yaml:"const"`
	Default  *yaml.Node `yaml:"default"`
	Null     string     `yaml:"null"`
	Discard  bool       `yaml:"discard"`
	Encoding string     `yaml:"encoding"`
	Unit     string     `yaml:"unit"`
	MaxBytes int        `yaml:"max_bytes"`
	LengthOf string     `yaml:"length_of"`
	CountOf  string     `yaml:"count_of"`
	Scheme   string     `yaml:"scheme"`
	Width    int        `yaml:"width"`
	Unsigned bool       `yaml:"unsigned"`
	Pad      *int       `yaml:"pad"`
	Record   string     `yaml:"record"`
	Elem     *fieldDef  `yaml:"elem"`
}

var fieldKeys = map[string]bool{
	"name": true, "type": true, "endian": true,
	"size": true, "size_ref": true,
	"count": true, "count_ref": true, "until": true,
	"const": true, "default": true, "null": true,
	"discard": true, "encoding": true, "unit": true, "max_bytes": true,
	"length_of": true, "count_of": true,
	"scheme": true, "width": true, "unsigned": true, "pad": true,
	"record": true, "elem": true,
}

// UnmarshalYAML implements the YAML unmarshaler interface. It rejects
// unknown keys so that typos surface as parse errors instead of silently
// changed wire layouts.
func (d *fieldDef) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: field must be a mapping", node.Line)
	}
	for i := 0; i < len(node.Content); i += 2 {
		if key := node.Content[i].Value; !fieldKeys[key] {
			return fmt.Errorf("line %d: unknown field key %q", node.Content[i].Line, key)
		}
	}
	type raw fieldDef
	var r raw
	if err := node.Decode(&r); err != nil {
		return err
	}
	*d = fieldDef(r)
	return nil
}

// fieldSpec converts one definition into a field spec. from names the
// owning record for nested reference resolution.
func (p *parser) fieldSpec(from string, d *fieldDef) (*record.FieldSpec, error) {
	opts, err := d.options()
	if err != nil {
		return nil, err
	}
	name := d.Name

	switch strings.ToLower(d.Type) {
	case "uint8", "byte":
		return record.UInt8(name, opts...), nil
	case "uint16":
		return record.UInt16(name, opts...), nil
	case "uint32":
		return record.UInt32(name, opts...), nil
	case "uint64":
		return record.UInt64(name, opts...), nil
	case "int8":
		return record.Int8(name, opts...), nil
	case "int16":
		return record.Int16(name, opts...), nil
	case "int32":
		return record.Int32(name, opts...), nil
	case "int64":
		return record.Int64(name, opts...), nil
	case "float32":
		return record.Float32(name, opts...), nil
	case "float64":
		return record.Float64(name, opts...), nil
	case "varuint":
		scheme := varint.ULEB128
		if d.Scheme != "" {
			if scheme, err = varint.ParseScheme(d.Scheme); err != nil {
				return nil, err
			}
		}
		return record.VarUint(name, scheme, opts...), nil
	case "varint":
		if d.Scheme != "" && strings.ToLower(d.Scheme) != "leb128" {
			return nil, fmt.Errorf("signed varints use the leb128 scheme, not %q", d.Scheme)
		}
		return record.VarInt(name, opts...), nil
	case "bigint":
		return record.BigInt(name, d.Width, opts...), nil
	case "uuid":
		return record.UUID(name, opts...), nil
	case "timestamp32":
		return record.Timestamp32(name, opts...), nil
	case "timestamp64":
		return record.Timestamp64(name, opts...), nil
	case "bytes":
		return record.Bytes(name, opts...), nil
	case "string":
		return record.String(name, opts...), nil
	case "stringz":
		return record.StringZ(name, opts...), nil
	case "array":
		if d.Elem == nil {
			return nil, fmt.Errorf("array needs an elem definition")
		}
		elem := d.Elem
		if elem.Name == "" {
			elem.Name = name
		}
		es, err := p.fieldSpec(from, elem)
		if err != nil {
			return nil, fmt.Errorf("elem: %w", err)
		}
		return record.Array(name, es, opts...), nil
	case "record":
		if d.Record == "" {
			return nil, fmt.Errorf("record field needs a record name")
		}
		inner, err := p.resolve(from, d.Record)
		if err != nil {
			return nil, err
		}
		return record.Nested(name, inner, opts...), nil
	case "union":
		return nil, fmt.Errorf("unions have no YAML form, declare this record in code")
	case "":
		return nil, fmt.Errorf("field has no type")
	default:
		return nil, fmt.Errorf("unknown field type %q", d.Type)
	}
}

// options translates the definition's generic keys. Compatibility of each
// option with the field variant is checked by the record builder.
func (d *fieldDef) options() ([]record.Option, error) {
	var opts []record.Option

	switch strings.ToLower(d.Endian) {
	case "":
	case "big", "be":
		opts = append(opts, record.BigEndian)
	case "little", "le":
		opts = append(opts, record.LittleEndian)
	default:
		return nil, fmt.Errorf("unknown byte order %q", d.Endian)
	}

	if d.Size != nil {
		opts = append(opts, record.Size(*d.Size))
	}
	if d.SizeRef != "" {
		opts = append(opts, record.SizeRef(d.SizeRef))
	}
	if d.Count != nil {
		opts = append(opts, record.Count(*d.Count))
	}
	if d.CountRef != "" {
		opts = append(opts, record.CountRef(d.CountRef))
	}
	switch strings.ToLower(d.Until) {
	case "":
	case "eof":
		opts = append(opts, record.HaltWhen(record.HaltAtEOF))
	default:
		return nil, fmt.Errorf("unknown until condition %q", d.Until)
	}

	isBytes := strings.ToLower(d.Type) == "bytes"
	if d.Const != nil {
		v, err := decodeScalar(d.Const, isBytes)
		if err != nil {
			return nil, fmt.Errorf("const: %w", err)
		}
		opts = append(opts, record.Const(v))
	}
	if d.Default != nil {
		v, err := decodeScalar(d.Default, isBytes)
		if err != nil {
			return nil, fmt.Errorf("default: %w", err)
		}
		opts = append(opts, record.Default(v))
	}
	switch strings.ToLower(d.Null) {
	case "":
	case "zeroes", "zeros":
		opts = append(opts, record.NullZeroes)
	default:
		pattern, err := parseHex(d.Null)
		if err != nil {
			return nil, fmt.Errorf("null: %w", err)
		}
		opts = append(opts, record.NullValue(pattern))
	}

	if d.Discard {
		opts = append(opts, record.Discard)
	}
	if d.Unsigned {
		opts = append(opts, record.Unsigned)
	}
	if d.Encoding != "" {
		opts = append(opts, record.Encoding(d.Encoding))
	}
	if d.Unit != "" {
		u, err := record.ParseTimeUnit(d.Unit)
		if err != nil {
			return nil, err
		}
		opts = append(opts, record.WithTimeUnit(u))
	}
	if d.MaxBytes != 0 {
		opts = append(opts, record.WithMaxBytes(d.MaxBytes))
	}
	if d.Pad != nil {
		if *d.Pad < 0 || *d.Pad > 0xff {
			return nil, fmt.Errorf("pad byte %d out of range", *d.Pad)
		}
		opts = append(opts, record.WithPadByte(byte(*d.Pad)))
	}
	if d.LengthOf != "" {
		opts = append(opts, record.LengthOf(d.LengthOf))
	}
	if d.CountOf != "" {
		opts = append(opts, record.CountOf(d.CountOf))
	}
	return opts, nil
}

// decodeScalar extracts a const or default value. Byte string values are
// written as hex.
func decodeScalar(node *yaml.Node, isBytes bool) (any, error) {
	var v any
	if err := node.Decode(&v); err != nil {
		return nil, err
	}
	if isBytes {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("byte values are hex strings, not %T", v)
		}
		return parseHex(s)
	}
	return v, nil
}

func parseHex(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid hex %q: %w", s, err)
	}
	if len(b) == 0 {
		return nil, fmt.Errorf("empty hex value")
	}
	return b, nil
}

