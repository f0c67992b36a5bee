package record

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/nspcc-dev/binrec/internal/testserdes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetGetUnset(t *testing.T) {
	s := MustSchema("KV", UInt8("k"), Bytes("v", Size(2)))
	rec := s.New()

	v, err := rec.Get("k")
	require.NoError(t, err)
	require.Equal(t, Undefined, v)

	require.NoError(t, rec.Set("k", 7))
	v, err = rec.Get("k")
	require.NoError(t, err)
	require.Equal(t, uint64(7), v)

	require.NoError(t, rec.Unset("k"))
	v, err = rec.Get("k")
	require.NoError(t, err)
	require.Equal(t, Undefined, v)

	_, err = rec.Get("missing")
	require.ErrorIs(t, err, ErrNoSuchField)
	require.ErrorIs(t, rec.Set("missing", 1), ErrNoSuchField)
	require.ErrorIs(t, rec.Unset("missing"), ErrNoSuchField)
}

func TestSetCoercion(t *testing.T) {
	s := MustSchema("Typed", UInt8("u"), Int16("i"), Bytes("b", Size(3)))
	rec := s.New()

	// type mistakes surface at assignment, not at dump
	err := rec.Set("u", "nope")
	require.ErrorIs(t, err, ErrUnserializableValue)
	require.Contains(t, err.Error(), `field "u"`)

	require.ErrorIs(t, rec.Set("u", -1), ErrValueSize)
	require.ErrorIs(t, rec.Set("i", uint64(1)<<63), ErrValueSize)
	require.ErrorIs(t, rec.Set("u", nil), ErrUnserializableValue)

	// strings coerce to bytes
	require.NoError(t, rec.Set("b", "abc"))
	v, err := rec.Get("b")
	require.NoError(t, err)
	require.Equal(t, []byte("abc"), v)
}

func TestDefaults(t *testing.T) {
	s := MustSchema("D",
		UInt8("a", Default(7)),
		UInt8("b"))
	ctx := context.Background()

	rec := s.New()
	require.NoError(t, rec.Set("b", 1))
	data, err := rec.EncodeBytes(ctx)
	require.NoError(t, err)
	require.Equal(t, []byte{7, 1}, data)

	// an explicit value wins over the default
	require.NoError(t, rec.Set("a", 9))
	data, err = rec.EncodeBytes(ctx)
	require.NoError(t, err)
	require.Equal(t, []byte{9, 1}, data)

	// UseDefault reverts to the policy without unsetting by hand
	require.NoError(t, rec.Set("a", UseDefault))
	data, err = rec.EncodeBytes(ctx)
	require.NoError(t, err)
	require.Equal(t, []byte{7, 1}, data)

	// UseDefault without a default policy leaves nothing to write
	require.NoError(t, rec.Set("b", UseDefault))
	_, err = rec.EncodeBytes(ctx)
	require.ErrorIs(t, err, ErrMissingRequiredValue)
}

func TestDefaultFunc(t *testing.T) {
	var serial int
	s := MustSchema("Seq",
		UInt8("id", DefaultFunc(func() any {
			serial++
			return serial
		})))
	ctx := context.Background()

	first, err := s.New().EncodeBytes(ctx)
	require.NoError(t, err)
	second, err := s.New().EncodeBytes(ctx)
	require.NoError(t, err)
	require.Equal(t, []byte{1}, first)
	require.Equal(t, []byte{2}, second)
}

func TestNullZeroes(t *testing.T) {
	s := MustSchema("N", Int32("maybe", NullZeroes), UInt8("tail"))
	ctx := context.Background()

	rec := s.New()
	require.NoError(t, rec.Set("maybe", nil))
	require.NoError(t, rec.Set("tail", 9))
	data, err := rec.EncodeBytes(ctx)
	require.NoError(t, err)
	require.Equal(t, []byte{0, 0, 0, 0, 9}, data)

	back, err := s.DecodeBytes(ctx, data)
	require.NoError(t, err)
	v, err := back.Get("maybe")
	require.NoError(t, err)
	require.Nil(t, v)

	back, err = s.DecodeBytes(ctx, []byte{0xfe, 0xff, 0xff, 0xff, 9})
	require.NoError(t, err)
	v, err = back.Get("maybe")
	require.NoError(t, err)
	require.Equal(t, int64(-2), v)

	// nullable does not mean optional, a value is still required
	_, err = s.New().EncodeBytes(ctx)
	require.ErrorIs(t, err, ErrMissingRequiredValue)
}

func TestNullPattern(t *testing.T) {
	s := MustSchema("P", UInt16("opt", NullValue([]byte{0xff, 0xff})))
	ctx := context.Background()

	rec := s.New()
	require.NoError(t, rec.Set("opt", nil))
	data, err := rec.EncodeBytes(ctx)
	require.NoError(t, err)
	require.Equal(t, []byte{0xff, 0xff}, data)

	back, err := s.DecodeBytes(ctx, data)
	require.NoError(t, err)
	v, err := back.Get("opt")
	require.NoError(t, err)
	require.Nil(t, v)

	back, err = s.DecodeBytes(ctx, []byte{0x34, 0x12})
	require.NoError(t, err)
	v, err = back.Get("opt")
	require.NoError(t, err)
	require.Equal(t, uint64(0x1234), v)
}

func TestCopy(t *testing.T) {
	inner := MustSchema("Inner", UInt8("n"))
	s := MustSchema("Outer",
		Bytes("data", Size(3)),
		Nested("sub", inner),
		BigInt("big", 8))

	rec := s.New()
	require.NoError(t, rec.Set("data", []byte{1, 2, 3}))
	sub := inner.New()
	require.NoError(t, sub.Set("n", 5))
	require.NoError(t, rec.Set("sub", sub))
	require.NoError(t, rec.Set("big", big.NewInt(42)))

	dup := rec.Copy()

	// mutating the copy leaves the original alone
	d, _ := dup.Get("data")
	d.([]byte)[0] = 0xff
	ds, _ := dup.Get("sub")
	require.NoError(t, ds.(*Record).Set("n", 6))
	db, _ := dup.Get("big")
	db.(*big.Int).SetInt64(0)

	orig, _ := rec.Get("data")
	require.Equal(t, []byte{1, 2, 3}, orig)
	os, _ := rec.Get("sub")
	on, _ := os.(*Record).Get("n")
	require.Equal(t, uint64(5), on)
	ob, _ := rec.Get("big")
	require.Zero(t, ob.(*big.Int).Cmp(big.NewInt(42)))
}

func TestMap(t *testing.T) {
	point := MustSchema("Point", Int16("x"), Int16("y"))
	s := MustSchema("Shape",
		UInt8("kind", Discard, Default(1)),
		Nested("origin", point),
		Array("path", Nested("p", point), Count(2)),
		UInt8("opt", PresentIf(func(*State) bool { return false })))
	ctx := context.Background()

	rec := s.New()
	require.NoError(t, rec.Set("origin", map[string]any{"x": 1, "y": 2}))
	require.NoError(t, rec.Set("path", []any{
		map[string]any{"x": 3, "y": 4},
		map[string]any{"x": 5, "y": 6},
	}))

	m, err := rec.Map(ctx)
	require.NoError(t, err)
	require.Equal(t, map[string]any{
		"origin": map[string]any{"x": int64(1), "y": int64(2)},
		"path": []any{
			map[string]any{"x": int64(3), "y": int64(4)},
			map[string]any{"x": int64(5), "y": int64(6)},
		},
		"opt": NotPresent,
	}, m)
	_, hasKind := m["kind"]
	assert.False(t, hasKind, "discarded fields stay out of the flattened view")
}

func TestMapResolvesInTwoPasses(t *testing.T) {
	s := MustSchema("TwoPass",
		UInt8("total", ComputedBy(func(st *State) (any, error) {
			v, ok := st.Value("count")
			if !ok {
				return nil, ErrMissingRequiredValue
			}
			return v.(uint64) + 1, nil
		})),
		UInt8("count", ComputedBy(func(st *State) (any, error) {
			v, ok := st.Value("items")
			if !ok {
				return nil, ErrMissingRequiredValue
			}
			return len(v.([]any)), nil
		})),
		Array("items", UInt8("i"), CountRef("count")))
	ctx := context.Background()

	rec := s.New()
	require.NoError(t, rec.Set("items", []any{10, 20}))

	m, err := rec.Map(ctx)
	require.NoError(t, err)
	require.Equal(t, map[string]any{
		"total": uint64(3),
		"count": uint64(2),
		"items": []any{uint64(10), uint64(20)},
	}, m)
}

func TestMapMissingValue(t *testing.T) {
	s := MustSchema("M", UInt8("a"), UInt8("b"))
	rec := s.New()
	require.NoError(t, rec.Set("a", 1))
	_, err := rec.Map(context.Background())
	require.ErrorIs(t, err, ErrMissingRequiredValue)
	require.Contains(t, err.Error(), `field "b"`)
}

func TestValidate(t *testing.T) {
	s := MustSchema("V",
		UInt8("n", WithValidatorAt(PostLoad, func(_ *State, v any) error {
			if v.(uint64) == 0 {
				return errors.New("zero is reserved")
			}
			return nil
		})))
	ctx := context.Background()

	rec := s.New()
	require.ErrorIs(t, rec.Validate(ctx), ErrMissingRequiredValue)

	// both validation phases run, the load-side rule fires without a dump
	require.NoError(t, rec.Set("n", 0))
	require.ErrorIs(t, rec.Validate(ctx), ErrValidation)

	require.NoError(t, rec.Set("n", 1))
	require.NoError(t, rec.Validate(ctx))
}

func TestRecordSerializable(t *testing.T) {
	s := MustSchema("Wire", UInt16("a"), Bytes("b", Size(2)))

	rec := s.New()
	require.NoError(t, rec.Set("a", 0x1234))
	require.NoError(t, rec.Set("b", []byte{9, 8}))

	testserdes.EncodeDecodeBinary(t, rec, s.New())
}

func TestNewRecordInit(t *testing.T) {
	s := MustSchema("I", UInt8("a"), UInt8("b"))

	rec, err := s.NewRecord(map[string]any{"a": 1, "b": 2})
	require.NoError(t, err)
	data, err := rec.EncodeBytes(context.Background())
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2}, data)

	_, err = s.NewRecord(map[string]any{"nope": 1})
	require.ErrorIs(t, err, ErrNoSuchField)
	_, err = s.NewRecord(map[string]any{"a": "text"})
	require.ErrorIs(t, err, ErrUnserializableValue)
}
