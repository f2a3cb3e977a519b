package protocol

import (
	"fmt"
	"math"
	"unicode/utf8"

	"github.com/cory-johannsen/siege/internal/game/world"
	"github.com/cory-johannsen/siege/internal/wire"
)

// EncodeMessage returns the frame for m.
//
// Postcondition: Returns a frame that DecodeMessage maps back to an equal value,
// or an error wrapping ErrSerialization.
func EncodeMessage(m Message) ([]byte, error) {
	if m == nil {
		return nil, fmt.Errorf("%w: nil message", ErrSerialization)
	}
	return encode(m.Kind(), m.appendFields)
}

// EncodeResult returns the frame for r.
//
// Postcondition: Returns a frame that DecodeResult maps back to an equal value,
// or an error wrapping ErrSerialization.
func EncodeResult(r Result) ([]byte, error) {
	if r == nil {
		return nil, fmt.Errorf("%w: nil result", ErrSerialization)
	}
	return encode(r.Kind(), r.appendFields)
}

func encode(k Kind, fill func(*fieldWriter)) ([]byte, error) {
	w := &fieldWriter{}
	fill(w)
	if w.err != nil {
		return nil, fmt.Errorf("encoding %s: %w", k, w.err)
	}
	n := frameHeader
	for _, v := range w.vals {
		n += 1 + v.Len()
	}
	out := make([]byte, 0, n)
	out = append(out, Version, byte(k))
	for _, v := range w.vals {
		out = wire.Append(out, v)
	}
	return out, nil
}

// DecodeMessage parses a client frame.
//
// Postcondition: Returns the message, or an error wrapping ErrProtocol. Result
// kinds are rejected with ErrUnknownKind.
func DecodeMessage(b []byte) (Message, error) {
	k, f, err := decodeFrame(b)
	if err != nil {
		return nil, err
	}
	dec, ok := messageDecoders[k]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, k)
	}
	m, err := dec(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrProtocol, k, err)
	}
	return m, nil
}

// DecodeResult parses a server frame.
//
// Postcondition: Returns the result, or an error wrapping ErrProtocol. Message
// kinds are rejected with ErrUnknownKind.
func DecodeResult(b []byte) (Result, error) {
	k, f, err := decodeFrame(b)
	if err != nil {
		return nil, err
	}
	dec, ok := resultDecoders[k]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, k)
	}
	r, err := dec(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrProtocol, k, err)
	}
	return r, nil
}

// PeekKind returns the kind byte of a frame without decoding its fields.
func PeekKind(b []byte) (Kind, error) {
	if len(b) < frameHeader {
		return 0, fmt.Errorf("%w: frame of %d bytes is shorter than its header", ErrProtocol, len(b))
	}
	if b[0] != Version {
		return 0, fmt.Errorf("%w: %d", ErrUnsupportedVersion, b[0])
	}
	return Kind(b[1]), nil
}

func decodeFrame(b []byte) (Kind, *wire.Fields, error) {
	k, err := PeekKind(b)
	if err != nil {
		return 0, nil, err
	}
	vals, err := wire.DecodeAll(b[frameHeader:])
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %s: %w", ErrProtocol, k, err)
	}
	return k, wire.NewFields(vals), nil
}

// fieldWriter accumulates a variant's fields. The first failure sticks and
// later writes are ignored.
type fieldWriter struct {
	vals []wire.Value
	err  error
}

func (w *fieldWriter) putString(name, s string) {
	if w.err != nil {
		return
	}
	if !utf8.ValidString(s) {
		w.err = fmt.Errorf("%w: %s is not valid UTF-8", ErrSerialization, name)
		return
	}
	w.put(name, wire.String(s))
}

func (w *fieldWriter) putInt(name string, n int) {
	if w.err != nil {
		return
	}
	if n < math.MinInt32 || n > math.MaxInt32 {
		w.err = fmt.Errorf("%w: %s %d overflows int32", ErrSerialization, name, n)
		return
	}
	w.vals = append(w.vals, wire.Int(int32(n)))
}

func (w *fieldWriter) putStruct(fill func(*fieldWriter)) {
	if w.err != nil {
		return
	}
	nested := &fieldWriter{vals: []wire.Value{}}
	fill(nested)
	if nested.err != nil {
		w.err = nested.err
		return
	}
	w.put("struct", wire.Struct(nested.vals))
}

// put appends v unless its payload is longer than a decoder accepts.
func (w *fieldWriter) put(name string, v wire.Value) {
	if n := v.Len() - wire.HeaderSize; n > wire.MaxPayload {
		w.err = fmt.Errorf("%w: %s payload of %d bytes exceeds %d", ErrSerialization, name, n, wire.MaxPayload)
		return
	}
	w.vals = append(w.vals, v)
}

func (w *fieldWriter) putDirection(d world.Direction) {
	if w.err == nil && !d.Valid() {
		w.err = fmt.Errorf("%w: invalid direction %d", ErrSerialization, int(d))
		return
	}
	w.putInt("direction", int(d))
}

func (w *fieldWriter) putLocation(l world.Location) {
	w.putStruct(func(s *fieldWriter) {
		s.putInt("row", l.Row)
		s.putInt("col", l.Col)
	})
}

func (w *fieldWriter) putPlayer(p world.Player) {
	w.putStruct(func(s *fieldWriter) {
		s.putString("identity", p.Identity)
		s.putLocation(p.Location)
		s.putInt("strength", p.Strength)
		s.putString("team", p.Team)
		s.putString("type", p.Type)
	})
}

func (w *fieldWriter) putBuilding(b world.Building) {
	w.putStruct(func(s *fieldWriter) {
		s.putLocation(b.Location)
		s.putInt("strength", b.Strength)
	})
}

func readInt(f *wire.Fields) (int, error) {
	n, err := f.ReadInt()
	return int(n), err
}

func readDirection(f *wire.Fields) (world.Direction, error) {
	n, err := f.ReadInt()
	if err != nil {
		return 0, err
	}
	d := world.Direction(n)
	if !d.Valid() {
		return 0, fmt.Errorf("invalid direction %d", n)
	}
	return d, nil
}

func readLocation(f *wire.Fields) (world.Location, error) {
	s, err := f.ReadStruct()
	if err != nil {
		return world.Location{}, err
	}
	row, err := readInt(s)
	if err != nil {
		return world.Location{}, fmt.Errorf("location row: %w", err)
	}
	col, err := readInt(s)
	if err != nil {
		return world.Location{}, fmt.Errorf("location col: %w", err)
	}
	return world.Location{Row: row, Col: col}, nil
}

func readPlayer(f *wire.Fields) (world.Player, error) {
	s, err := f.ReadStruct()
	if err != nil {
		return world.Player{}, err
	}
	var p world.Player
	if p.Identity, err = s.ReadString(); err != nil {
		return world.Player{}, fmt.Errorf("player identity: %w", err)
	}
	if p.Location, err = readLocation(s); err != nil {
		return world.Player{}, fmt.Errorf("player location: %w", err)
	}
	if p.Strength, err = readInt(s); err != nil {
		return world.Player{}, fmt.Errorf("player strength: %w", err)
	}
	if p.Team, err = s.ReadString(); err != nil {
		return world.Player{}, fmt.Errorf("player team: %w", err)
	}
	if p.Type, err = s.ReadString(); err != nil {
		return world.Player{}, fmt.Errorf("player type: %w", err)
	}
	return p, nil
}

func readBuilding(f *wire.Fields) (world.Building, error) {
	s, err := f.ReadStruct()
	if err != nil {
		return world.Building{}, err
	}
	var b world.Building
	if b.Location, err = readLocation(s); err != nil {
		return world.Building{}, fmt.Errorf("building location: %w", err)
	}
	if b.Strength, err = readInt(s); err != nil {
		return world.Building{}, fmt.Errorf("building strength: %w", err)
	}
	return b, nil
}
