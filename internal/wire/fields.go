package wire

import "fmt"

// Fields reads a sequence of decoded values positionally with typed accessors.
type Fields struct {
	vals []Value
	pos  int
}

// NewFields returns a reader over vals.
func NewFields(vals []Value) *Fields {
	return &Fields{vals: vals}
}

// Remaining reports how many values have not been read.
func (f *Fields) Remaining() int {
	return len(f.vals) - f.pos
}

func (f *Fields) next(want Tag) (Value, error) {
	if f.pos >= len(f.vals) {
		return nil, fmt.Errorf("%w: field %d (%s)", ErrMissingField, f.pos, want)
	}
	v := f.vals[f.pos]
	if v.Type() != want {
		return nil, &TypeMismatchError{Want: want, Got: v.Type()}
	}
	f.pos++
	return v, nil
}

// ReadInt consumes the next value as an Int.
func (f *Fields) ReadInt() (int32, error) {
	v, err := f.next(TagInt)
	if err != nil {
		return 0, err
	}
	return int32(v.(Int)), nil
}

// ReadString consumes the next value as a String.
func (f *Fields) ReadString() (string, error) {
	v, err := f.next(TagString)
	if err != nil {
		return "", err
	}
	return string(v.(String)), nil
}

// ReadBytes consumes the next value as Bytes.
func (f *Fields) ReadBytes() ([]byte, error) {
	v, err := f.next(TagBytes)
	if err != nil {
		return nil, err
	}
	return []byte(v.(Bytes)), nil
}

// ReadStruct consumes the next value as a Struct and returns a reader over its members.
func (f *Fields) ReadStruct() (*Fields, error) {
	v, err := f.next(TagStruct)
	if err != nil {
		return nil, err
	}
	return NewFields(v.(Struct)), nil
}
