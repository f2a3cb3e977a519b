package wire

import (
	"encoding/binary"
	"fmt"
	"sync"
	"unicode/utf8"
)

// DecodeFunc builds a Value from a payload whose length prefix has already
// been consumed. Nested values must be decoded through d so depth is tracked.
type DecodeFunc func(d *Decoder, payload []byte) (Value, error)

var (
	registryMu sync.RWMutex
	decoders   = make(map[Tag]DecodeFunc)
)

func init() {
	Register(TagBytes, decodeBytes)
	Register(TagInt, decodeInt)
	Register(TagString, decodeString)
	Register(TagStruct, decodeStruct)
}

// Register installs the decoder for tag.
//
// Precondition: tag must not already be registered; fn must be non-nil.
func Register(tag Tag, fn DecodeFunc) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if fn == nil {
		panic("wire: Register decoder is nil")
	}
	if _, dup := decoders[tag]; dup {
		panic(fmt.Sprintf("wire: Register called twice for %s", tag))
	}
	decoders[tag] = fn
}

func lookup(tag Tag) DecodeFunc {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return decoders[tag]
}

// Decoder carries per-call decode state.
type Decoder struct {
	depth int
}

// Decode reads one tagged value from the front of b.
//
// Postcondition: Returns the value and the number of bytes consumed, or an
// *UnknownTypeError, *TruncatedInputError, ErrFrameTooLarge, ErrMalformed or ErrTooDeep.
func Decode(b []byte) (Value, int, error) {
	var d Decoder
	return d.Decode(b)
}

// DecodeAll decodes consecutive tagged values until b is exhausted.
func DecodeAll(b []byte) ([]Value, error) {
	var d Decoder
	return d.DecodeAll(b)
}

// Decode reads one tagged value from the front of b.
func (d *Decoder) Decode(b []byte) (Value, int, error) {
	if len(b) < 1 {
		return nil, 0, &TruncatedInputError{Need: 1, Have: 0}
	}
	tag := Tag(b[0])
	fn := lookup(tag)
	if fn == nil {
		return nil, 0, &UnknownTypeError{Tag: tag}
	}
	if len(b) < 1+HeaderSize {
		return nil, 0, &TruncatedInputError{Need: 1 + HeaderSize, Have: len(b)}
	}
	n := binary.BigEndian.Uint32(b[1 : 1+HeaderSize])
	if n > MaxPayload {
		return nil, 0, fmt.Errorf("%w: %s declares %d bytes", ErrFrameTooLarge, tag, n)
	}
	end := 1 + HeaderSize + int(n)
	if len(b) < end {
		return nil, 0, &TruncatedInputError{Need: end, Have: len(b)}
	}
	v, err := fn(d, b[1+HeaderSize:end])
	if err != nil {
		return nil, 0, fmt.Errorf("decoding %s: %w", tag, err)
	}
	return v, end, nil
}

// DecodeAll decodes consecutive tagged values until b is exhausted.
func (d *Decoder) DecodeAll(b []byte) ([]Value, error) {
	var out []Value
	for len(b) > 0 {
		v, n, err := d.Decode(b)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
		b = b[n:]
	}
	return out, nil
}

func decodeBytes(_ *Decoder, p []byte) (Value, error) {
	out := make([]byte, len(p))
	copy(out, p)
	return Bytes(out), nil
}

func decodeInt(_ *Decoder, p []byte) (Value, error) {
	if len(p) != 4 {
		return nil, fmt.Errorf("%w: int payload is %d bytes", ErrMalformed, len(p))
	}
	return Int(int32(binary.BigEndian.Uint32(p))), nil
}

func decodeString(_ *Decoder, p []byte) (Value, error) {
	if !utf8.Valid(p) {
		return nil, fmt.Errorf("%w: string is not valid UTF-8", ErrMalformed)
	}
	return String(p), nil
}

func decodeStruct(d *Decoder, p []byte) (Value, error) {
	if d.depth >= MaxDepth {
		return nil, ErrTooDeep
	}
	d.depth++
	defer func() { d.depth-- }()
	fields, err := d.DecodeAll(p)
	if err != nil {
		return nil, err
	}
	if fields == nil {
		fields = []Value{}
	}
	return Struct(fields), nil
}
