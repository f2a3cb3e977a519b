// Package wire implements the type-tagged binary value codec used for every
// frame exchanged between clients and the server.
//
// Every value is written as [1 tag byte][4-byte big-endian length N][N payload bytes].
// A Value reports Len() == N + 4: the tag byte belongs to the enclosing envelope
// and is written by Append, never by the value itself.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Tag identifies the wire representation of a value.
type Tag uint8

// Known tags. New tags are added with Register and never renumber these.
const (
	TagBytes  Tag = 0x01
	TagInt    Tag = 0x02
	TagString Tag = 0x03
	TagStruct Tag = 0x04
)

const (
	// HeaderSize is the size of the length prefix carried by every value.
	HeaderSize = 4
	// MaxPayload bounds the declared payload length Decode will accept.
	MaxPayload = 1 << 20
	// MaxDepth bounds struct nesting on decode.
	MaxDepth = 16
)

// String returns a human-readable tag name.
func (t Tag) String() string {
	switch t {
	case TagBytes:
		return "bytes"
	case TagInt:
		return "int"
	case TagString:
		return "string"
	case TagStruct:
		return "struct"
	default:
		return fmt.Sprintf("tag(0x%02x)", uint8(t))
	}
}

var (
	// ErrFrameTooLarge is returned when a declared length exceeds MaxPayload.
	ErrFrameTooLarge = errors.New("wire: declared length exceeds limit")
	// ErrMalformed is returned when a payload is invalid for its tag.
	ErrMalformed = errors.New("wire: malformed payload")
	// ErrMissingField is returned by Fields when no values remain.
	ErrMissingField = errors.New("wire: missing field")
	// ErrTooDeep is returned when struct nesting exceeds MaxDepth.
	ErrTooDeep = errors.New("wire: struct nesting too deep")
)

// TruncatedInputError reports that fewer bytes were available than required.
type TruncatedInputError struct {
	Need int
	Have int
}

func (e *TruncatedInputError) Error() string {
	return fmt.Sprintf("wire: truncated input: need %d bytes, have %d", e.Need, e.Have)
}

// UnknownTypeError reports a tag with no registered decoder.
type UnknownTypeError struct {
	Tag Tag
}

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("wire: unsupported type tag 0x%02x", uint8(e.Tag))
}

// TypeMismatchError reports a field whose tag differs from the expected one.
type TypeMismatchError struct {
	Want Tag
	Got  Tag
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("wire: expected %s, got %s", e.Want, e.Got)
}

// Value is a wire-encodable value.
type Value interface {
	// Type returns the tag written ahead of the value.
	Type() Tag
	// Len returns the encoded size excluding the tag byte.
	Len() int
	// AppendTo appends the length prefix and payload to dst.
	AppendTo(dst []byte) []byte
}

// Append appends the tag byte followed by the encoded value to dst.
func Append(dst []byte, v Value) []byte {
	dst = append(dst, byte(v.Type()))
	return v.AppendTo(dst)
}

// Marshal returns the tagged encoding of v.
//
// Postcondition: len(result) == 1 + v.Len().
func Marshal(v Value) []byte {
	return Append(make([]byte, 0, 1+v.Len()), v)
}

func appendHeader(dst []byte, n int) []byte {
	return binary.BigEndian.AppendUint32(dst, uint32(n))
}
