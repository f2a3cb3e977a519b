package wire_test

import (
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/siege/internal/wire"
)

func TestBytes_Layout(t *testing.T) {
	v := wire.Bytes{0xAA, 0xBB, 0xCC}
	assert.Equal(t, wire.TagBytes, v.Type())
	assert.Equal(t, 7, v.Len())
	assert.Equal(t, []byte{0x01, 0, 0, 0, 3, 0xAA, 0xBB, 0xCC}, wire.Marshal(v))
}

func TestInt_Layout(t *testing.T) {
	v := wire.Int(-2)
	assert.Equal(t, 8, v.Len())
	assert.Equal(t, []byte{0x02, 0, 0, 0, 4, 0xFF, 0xFF, 0xFF, 0xFE}, wire.Marshal(v))
}

func TestString_Layout(t *testing.T) {
	v := wire.String("hi")
	assert.Equal(t, 6, v.Len())
	assert.Equal(t, []byte{0x03, 0, 0, 0, 2, 'h', 'i'}, wire.Marshal(v))
}

func TestStruct_Layout(t *testing.T) {
	v := wire.Struct{wire.Int(1), wire.String("a")}
	// header + (1+8) + (1+5)
	assert.Equal(t, 4+9+6, v.Len())
	out := wire.Marshal(v)
	require.Len(t, out, 1+v.Len())
	assert.Equal(t, []byte{0x04, 0, 0, 0, 15}, out[:5])
}

func TestDecode_ConsumesExactlyOneValue(t *testing.T) {
	buf := wire.Append(nil, wire.Int(7))
	buf = wire.Append(buf, wire.String("tail"))

	v, n, err := wire.Decode(buf)
	require.NoError(t, err)
	assert.Equal(t, 9, n)
	assert.Equal(t, wire.Int(7), v)
}

func TestDecode_UnknownTag(t *testing.T) {
	_, _, err := wire.Decode([]byte{0x7F, 0, 0, 0, 0})
	var ute *wire.UnknownTypeError
	require.True(t, errors.As(err, &ute))
	assert.Equal(t, wire.Tag(0x7F), ute.Tag)
	assert.Contains(t, err.Error(), "unsupported type")
}

func TestDecode_TruncatedPayload(t *testing.T) {
	_, _, err := wire.Decode([]byte{0x01, 0, 0, 0, 10, 1, 2, 3})
	var tie *wire.TruncatedInputError
	require.True(t, errors.As(err, &tie))
	assert.Equal(t, 15, tie.Need)
	assert.Equal(t, 8, tie.Have)
}

func TestDecode_TruncatedHeader(t *testing.T) {
	_, _, err := wire.Decode([]byte{0x02, 0, 0})
	var tie *wire.TruncatedInputError
	assert.True(t, errors.As(err, &tie))

	_, _, err = wire.Decode(nil)
	assert.True(t, errors.As(err, &tie))
}

func TestDecode_IntWrongSize(t *testing.T) {
	_, _, err := wire.Decode([]byte{0x02, 0, 0, 0, 2, 1, 2})
	assert.ErrorIs(t, err, wire.ErrMalformed)
}

func TestDecode_InvalidUTF8(t *testing.T) {
	_, _, err := wire.Decode([]byte{0x03, 0, 0, 0, 2, 0xC3, 0x28})
	assert.ErrorIs(t, err, wire.ErrMalformed)
}

func TestDecode_DeclaredLengthTooLarge(t *testing.T) {
	_, _, err := wire.Decode([]byte{0x01, 0x7F, 0xFF, 0xFF, 0xFF})
	assert.ErrorIs(t, err, wire.ErrFrameTooLarge)
}

func TestDecode_NestedTruncationSurfaces(t *testing.T) {
	inner := wire.Marshal(wire.Int(3))
	// struct declares the full inner length but the inner int lies about its size
	inner[4] = 9
	frame := append([]byte{0x04, 0, 0, 0, byte(len(inner))}, inner...)
	_, _, err := wire.Decode(frame)
	var tie *wire.TruncatedInputError
	assert.True(t, errors.As(err, &tie))
}

func TestDecode_TooDeep(t *testing.T) {
	var v wire.Value = wire.Int(1)
	for i := 0; i < wire.MaxDepth+1; i++ {
		v = wire.Struct{v}
	}
	_, _, err := wire.Decode(wire.Marshal(v))
	assert.ErrorIs(t, err, wire.ErrTooDeep)
}

func TestEqual(t *testing.T) {
	assert.True(t, wire.Equal(wire.Bytes{1, 2}, wire.Bytes{1, 2}))
	assert.True(t, wire.Equal(wire.Bytes(nil), wire.Bytes{}))
	assert.False(t, wire.Equal(wire.Bytes{1}, wire.Bytes{2}))
	assert.False(t, wire.Equal(wire.Int(1), wire.String("1")))
	assert.True(t, wire.Equal(
		wire.Struct{wire.Int(1), wire.Struct{wire.String("x")}},
		wire.Struct{wire.Int(1), wire.Struct{wire.String("x")}},
	))
	assert.False(t, wire.Equal(wire.Struct{wire.Int(1)}, wire.Struct{}))
}

func TestFields_TypedReads(t *testing.T) {
	vals, err := wire.DecodeAll(wire.Marshal(wire.Struct{
		wire.Int(4), wire.String("north"), wire.Bytes{9}, wire.Struct{wire.Int(5)},
	})[5:])
	require.NoError(t, err)

	f := wire.NewFields(vals)
	i, err := f.ReadInt()
	require.NoError(t, err)
	assert.Equal(t, int32(4), i)
	s, err := f.ReadString()
	require.NoError(t, err)
	assert.Equal(t, "north", s)
	b, err := f.ReadBytes()
	require.NoError(t, err)
	assert.Equal(t, []byte{9}, b)
	sub, err := f.ReadStruct()
	require.NoError(t, err)
	inner, err := sub.ReadInt()
	require.NoError(t, err)
	assert.Equal(t, int32(5), inner)
	assert.Equal(t, 0, f.Remaining())

	_, err = f.ReadInt()
	assert.ErrorIs(t, err, wire.ErrMissingField)
}

func TestFields_TypeMismatch(t *testing.T) {
	f := wire.NewFields([]wire.Value{wire.String("x")})
	_, err := f.ReadInt()
	var tme *wire.TypeMismatchError
	require.True(t, errors.As(err, &tme))
	assert.Equal(t, wire.TagInt, tme.Want)
	assert.Equal(t, wire.TagString, tme.Got)
	assert.Equal(t, 1, f.Remaining(), "a failed read must not advance")
}

// boolValue exercises extension through Register with a tag unknown to the core.
type boolValue bool

const tagBool wire.Tag = 0x40

func (boolValue) Type() wire.Tag { return tagBool }
func (boolValue) Len() int       { return wire.HeaderSize + 1 }
func (b boolValue) AppendTo(dst []byte) []byte {
	dst = append(dst, 0, 0, 0, 1)
	if b {
		return append(dst, 1)
	}
	return append(dst, 0)
}

var registerBool sync.Once

func TestRegister_ExtendsWithoutTouchingExistingTags(t *testing.T) {
	frame := wire.Marshal(boolValue(true))

	registerBool.Do(func() {
		wire.Register(tagBool, func(_ *wire.Decoder, p []byte) (wire.Value, error) {
			if len(p) != 1 {
				return nil, wire.ErrMalformed
			}
			return boolValue(p[0] == 1), nil
		})
	})

	v, n, err := wire.Decode(frame)
	require.NoError(t, err)
	assert.Equal(t, len(frame), n)
	assert.Equal(t, boolValue(true), v)

	assert.Panics(t, func() {
		wire.Register(wire.TagInt, func(*wire.Decoder, []byte) (wire.Value, error) { return nil, nil })
	})
}

func valueGen(depth int) *rapid.Generator[wire.Value] {
	return rapid.Custom(func(t *rapid.T) wire.Value {
		kinds := 3
		if depth > 0 {
			kinds = 4
		}
		switch rapid.IntRange(0, kinds-1).Draw(t, "kind") {
		case 0:
			return wire.Bytes(rapid.SliceOf(rapid.Byte()).Draw(t, "bytes"))
		case 1:
			return wire.Int(rapid.Int32().Draw(t, "int"))
		case 2:
			return wire.String(rapid.String().Draw(t, "string"))
		default:
			return wire.Struct(rapid.SliceOfN(valueGen(depth-1), 0, 4).Draw(t, "fields"))
		}
	})
}

func TestProperty_RoundTrip(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		v := valueGen(3).Draw(rt, "value")
		buf := wire.Marshal(v)
		if len(buf) != 1+v.Len() {
			rt.Fatalf("encoded %d bytes, Len reports %d", len(buf), v.Len())
		}
		got, n, err := wire.Decode(buf)
		if err != nil {
			rt.Fatalf("decode: %v", err)
		}
		if n != len(buf) {
			rt.Fatalf("consumed %d of %d bytes", n, len(buf))
		}
		if !wire.Equal(v, got) {
			rt.Fatalf("round trip mismatch: %#v != %#v", v, got)
		}
	})
}

func TestProperty_EveryPrefixIsTruncated(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		v := valueGen(2).Draw(rt, "value")
		buf := wire.Marshal(v)
		cut := rapid.IntRange(0, len(buf)-1).Draw(rt, "cut")
		_, _, err := wire.Decode(buf[:cut])
		var tie *wire.TruncatedInputError
		if !errors.As(err, &tie) {
			rt.Fatalf("prefix of %d/%d bytes: expected truncation, got %v", cut, len(buf), err)
		}
	})
}

func TestTag_String(t *testing.T) {
	assert.Equal(t, "bytes", wire.TagBytes.String())
	assert.True(t, strings.HasPrefix(wire.Tag(0x99).String(), "tag("))
}
