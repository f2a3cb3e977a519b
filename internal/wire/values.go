package wire

import (
	"bytes"
	"encoding/binary"
)

// Bytes is an opaque byte-array value.
type Bytes []byte

// Type implements Value.
func (Bytes) Type() Tag { return TagBytes }

// Len implements Value.
func (b Bytes) Len() int { return HeaderSize + len(b) }

// AppendTo implements Value.
func (b Bytes) AppendTo(dst []byte) []byte {
	dst = appendHeader(dst, len(b))
	return append(dst, b...)
}

// Int is a signed 32-bit integer value.
type Int int32

// Type implements Value.
func (Int) Type() Tag { return TagInt }

// Len implements Value.
func (Int) Len() int { return HeaderSize + 4 }

// AppendTo implements Value.
func (i Int) AppendTo(dst []byte) []byte {
	dst = appendHeader(dst, 4)
	return binary.BigEndian.AppendUint32(dst, uint32(i))
}

// String is a UTF-8 text value.
type String string

// Type implements Value.
func (String) Type() Tag { return TagString }

// Len implements Value.
func (s String) Len() int { return HeaderSize + len(s) }

// AppendTo implements Value.
func (s String) AppendTo(dst []byte) []byte {
	dst = appendHeader(dst, len(s))
	return append(dst, s...)
}

// Struct is an ordered list of tagged values.
type Struct []Value

// Type implements Value.
func (Struct) Type() Tag { return TagStruct }

// Len implements Value.
func (s Struct) Len() int {
	n := HeaderSize
	for _, f := range s {
		n += 1 + f.Len()
	}
	return n
}

// AppendTo implements Value.
func (s Struct) AppendTo(dst []byte) []byte {
	dst = appendHeader(dst, s.Len()-HeaderSize)
	for _, f := range s {
		dst = Append(dst, f)
	}
	return dst
}

// Equal reports whether a and b carry the same tag and decoded contents.
// Byte arrays compare by content, so a nil Bytes equals an empty one.
func Equal(a, b Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Type() != b.Type() {
		return false
	}
	switch av := a.(type) {
	case Bytes:
		bv, ok := b.(Bytes)
		return ok && bytes.Equal(av, bv)
	case Int:
		bv, ok := b.(Int)
		return ok && av == bv
	case String:
		bv, ok := b.(String)
		return ok && av == bv
	case Struct:
		bv, ok := b.(Struct)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	default:
		return bytes.Equal(Marshal(a), Marshal(b))
	}
}
