package format

import (
	"context"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/nspcc-dev/binrec/pkg/record"
	"github.com/stretchr/testify/require"
)

const bitmapDoc = `
records:
  bitmap:
    fields:
      - name: magic
        type: bytes
        size: 2
        const: "424d"
      - name: width
        type: uint16
      - name: height
        type: uint16
      - name: npixels
        type: uint32
        count_of: pixels
      - name: pixels
        type: array
        count_ref: npixels
        elem:
          type: record
          record: pixel
  pixel:
    fields:
      - name: b
        type: uint8
      - name: g
        type: uint8
      - name: r
        type: uint8
`

func TestParseBitmap(t *testing.T) {
	set, err := Parse([]byte(bitmapDoc))
	require.NoError(t, err)
	require.Equal(t, []string{"bitmap", "pixel"}, set.Names())

	_, err = set.Schema("palette")
	require.ErrorIs(t, err, ErrUnknownRecord)

	s, err := set.Schema("bitmap")
	require.NoError(t, err)
	ctx := context.Background()

	rec := s.New()
	require.NoError(t, rec.Set("width", 3))
	require.NoError(t, rec.Set("height", 2))
	require.NoError(t, rec.Set("pixels", []any{
		map[string]any{"b": 9, "g": 8, "r": 7},
	}))

	data, err := rec.EncodeBytes(ctx)
	require.NoError(t, err)
	require.Equal(t, []byte{
		0x42, 0x4d,
		0x03, 0x00,
		0x02, 0x00,
		0x01, 0x00, 0x00, 0x00,
		0x09, 0x08, 0x07,
	}, data)

	back, err := s.DecodeBytes(ctx, data)
	require.NoError(t, err)
	width, err := back.Get("width")
	require.NoError(t, err)
	require.Equal(t, uint64(3), width)
	pixels, err := back.Get("pixels")
	require.NoError(t, err)
	require.Len(t, pixels, 1)
	g, err := pixels.([]any)[0].(*record.Record).Get("g")
	require.NoError(t, err)
	require.Equal(t, uint64(8), g)
}

const sampleDoc = `
records:
  sample:
    fields:
      - name: tag
        type: varuint
        scheme: compact
      - name: delta
        type: varint
        max_bytes: 3
      - name: balance
        type: bigint
        width: 8
        unsigned: true
        endian: big
      - name: id
        type: uuid
      - name: when
        type: timestamp64
        unit: ms
      - name: label
        type: string
        size: 8
        encoding: latin1
        pad: 32
      - name: motto
        type: stringz
        encoding: utf16le
      - name: serial
        type: int32
        null: zeroes
      - name: spare
        type: bytes
        size: 2
        discard: true
        default: "abab"
      - name: version
        type: uint8
        default: 7
`

func TestParseFieldVariants(t *testing.T) {
	set, err := Parse([]byte(sampleDoc))
	require.NoError(t, err)
	s, err := set.Schema("sample")
	require.NoError(t, err)
	ctx := context.Background()

	id := uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")
	when := time.Unix(1700000000, 0).UTC()

	rec := s.New()
	require.NoError(t, rec.Set("tag", 1000))
	require.NoError(t, rec.Set("delta", -3))
	require.NoError(t, rec.Set("balance", new(big.Int).Lsh(big.NewInt(1), 40)))
	require.NoError(t, rec.Set("id", id))
	require.NoError(t, rec.Set("when", when))
	require.NoError(t, rec.Set("label", "hi"))
	require.NoError(t, rec.Set("motto", "ok"))
	require.NoError(t, rec.Set("serial", nil))

	data, err := rec.EncodeBytes(ctx)
	require.NoError(t, err)
	require.Len(t, data, 57)
	require.Equal(t, []byte{0xfd, 0xe8, 0x03, 0x7d}, data[0:4])
	require.Equal(t, []byte{0, 0, 1, 0, 0, 0, 0, 0}, data[4:12])
	require.Equal(t, []byte("hi      "), data[36:44])
	require.Equal(t, []byte{0, 0, 0, 0}, data[50:54])
	require.Equal(t, []byte{0xab, 0xab}, data[54:56])
	require.Equal(t, byte(7), data[56])

	back, err := s.DecodeBytes(ctx, data)
	require.NoError(t, err)

	tag, err := back.Get("tag")
	require.NoError(t, err)
	require.Equal(t, uint64(1000), tag)
	delta, err := back.Get("delta")
	require.NoError(t, err)
	require.Equal(t, int64(-3), delta)
	balance, err := back.Get("balance")
	require.NoError(t, err)
	require.Zero(t, new(big.Int).Lsh(big.NewInt(1), 40).Cmp(balance.(*big.Int)))
	gotID, err := back.Get("id")
	require.NoError(t, err)
	require.Equal(t, id, gotID)
	gotWhen, err := back.Get("when")
	require.NoError(t, err)
	require.True(t, when.Equal(gotWhen.(time.Time)))
	label, err := back.Get("label")
	require.NoError(t, err)
	require.Equal(t, "hi      ", label)
	motto, err := back.Get("motto")
	require.NoError(t, err)
	require.Equal(t, "ok", motto)
	serial, err := back.Get("serial")
	require.NoError(t, err)
	require.Nil(t, serial)
	spare, err := back.Get("spare")
	require.NoError(t, err)
	require.Equal(t, record.Undefined, spare)
	version, err := back.Get("version")
	require.NoError(t, err)
	require.Equal(t, uint64(7), version)
}

func TestParseEmbed(t *testing.T) {
	set, err := Parse([]byte(`
records:
  extended:
    embed: base
    fields:
      - name: value
        type: uint16
  base:
    fields:
      - name: kind
        type: uint8
`))
	require.NoError(t, err)
	s, err := set.Schema("extended")
	require.NoError(t, err)
	require.Len(t, s.Fields(), 2)
	require.Equal(t, "kind", s.Fields()[0].Name())
	require.Equal(t, "value", s.Fields()[1].Name())

	rec, err := s.DecodeBytes(context.Background(), []byte{1, 5, 0})
	require.NoError(t, err)
	v, err := rec.Get("value")
	require.NoError(t, err)
	require.Equal(t, uint64(5), v)
}

func TestParseGreedyArray(t *testing.T) {
	set, err := Parse([]byte(`
records:
  tail:
    fields:
      - name: head
        type: uint8
      - name: rest
        type: array
        until: eof
        elem:
          type: uint16
`))
	require.NoError(t, err)
	s, err := set.Schema("tail")
	require.NoError(t, err)

	rec, err := s.DecodeBytes(context.Background(), []byte{9, 1, 0, 2, 0})
	require.NoError(t, err)
	rest, err := rec.Get("rest")
	require.NoError(t, err)
	require.Equal(t, []any{uint64(1), uint64(2)}, rest)
}

func TestParseErrors(t *testing.T) {
	cases := map[string]struct {
		doc  string
		want string
	}{
		"no records": {
			doc:  "records: {}\n",
			want: "declares no records",
		},
		"records not a mapping": {
			doc:  "records: [a, b]\n",
			want: "must be a mapping",
		},
		"field not a mapping": {
			doc:  "records: {a: {fields: [3]}}\n",
			want: "field must be a mapping",
		},
		"unknown field key": {
			doc:  "records: {a: {fields: [{name: x, type: uint8, sise: 4}]}}\n",
			want: `unknown field key "sise"`,
		},
		"unknown type": {
			doc:  "records: {a: {fields: [{name: x, type: quadword}]}}\n",
			want: `unknown field type "quadword"`,
		},
		"missing type": {
			doc:  "records: {a: {fields: [{name: x}]}}\n",
			want: "field has no type",
		},
		"missing name": {
			doc:  "records: {a: {fields: [{type: uint8}]}}\n",
			want: "has no name",
		},
		"unknown record reference": {
			doc:  "records: {a: {fields: [{name: x, type: record, record: b}]}}\n",
			want: `references unknown record "b"`,
		},
		"reference cycle": {
			doc: "records: {a: {fields: [{name: x, type: record, record: b}]}, " +
				"b: {fields: [{name: y, type: record, record: a}]}}\n",
			want: "cycle",
		},
		"self reference": {
			doc:  "records: {a: {fields: [{name: x, type: record, record: a}]}}\n",
			want: "cycle",
		},
		"array without elem": {
			doc:  "records: {a: {fields: [{name: x, type: array, count: 2}]}}\n",
			want: "needs an elem",
		},
		"record without name": {
			doc:  "records: {a: {fields: [{name: x, type: record}]}}\n",
			want: "needs a record name",
		},
		"union in yaml": {
			doc:  "records: {a: {fields: [{name: x, type: union}]}}\n",
			want: "no YAML form",
		},
		"bad endian": {
			doc:  "records: {a: {fields: [{name: x, type: uint16, endian: middle}]}}\n",
			want: `unknown byte order "middle"`,
		},
		"bad until": {
			doc:  "records: {a: {fields: [{name: x, type: array, until: full, elem: {type: uint8}}]}}\n",
			want: `unknown until condition "full"`,
		},
		"bad encoding": {
			doc:  "records: {a: {fields: [{name: x, type: string, size: 4, encoding: ebcdic}]}}\n",
			want: `unknown encoding "ebcdic"`,
		},
		"bad unit": {
			doc:  "records: {a: {fields: [{name: x, type: timestamp64, unit: fortnights}]}}\n",
			want: "unknown time unit",
		},
		"bad scheme": {
			doc:  "records: {a: {fields: [{name: x, type: varuint, scheme: morse}]}}\n",
			want: `unknown varint scheme "morse"`,
		},
		"signed scheme mismatch": {
			doc:  "records: {a: {fields: [{name: x, type: varint, scheme: vlq}]}}\n",
			want: "use the leb128 scheme",
		},
		"bad null hex": {
			doc:  "records: {a: {fields: [{name: x, type: uint16, null: xyz}]}}\n",
			want: "invalid hex",
		},
		"bytes const not hex": {
			doc:  "records: {a: {fields: [{name: x, type: bytes, size: 2, const: 99}]}}\n",
			want: "hex strings",
		},
		"pad out of range": {
			doc:  "records: {a: {fields: [{name: x, type: string, size: 4, pad: 300}]}}\n",
			want: "out of range",
		},
		"duplicate record": {
			doc:  "records: {a: {fields: [{name: x, type: uint8}]}, a: {fields: [{name: y, type: uint8}]}}\n",
			want: "declared twice",
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(tc.doc))
			require.ErrorContains(t, err, tc.want)
		})
	}
}

func TestParseBuilderErrors(t *testing.T) {
	// problems below the YAML layer surface as the builder's own errors
	_, err := Parse([]byte("records: {a: {fields: [{name: x, type: string}]}}\n"))
	require.ErrorIs(t, err, record.ErrConfiguration)

	_, err = Parse([]byte(
		"records: {a: {fields: [{name: x, type: uint8}, {name: x, type: uint8}]}}\n"))
	require.ErrorIs(t, err, record.ErrFieldRedefined)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bitmap.yml")
	require.NoError(t, os.WriteFile(path, []byte(bitmapDoc), 0o644))

	set, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, []string{"bitmap", "pixel"}, set.Names())

	_, err = Load(filepath.Join(t.TempDir(), "missing.yml"))
	require.Error(t, err)
}
