// Package protocol defines the closed set of client messages and server results
// and their framing on top of the wire codec.
//
// A frame is [version byte][kind byte] followed by the variant's fields as
// tagged wire values. Decoders ignore well-formed values after the known fields
// so a newer peer may append fields without breaking older ones.
package protocol

import (
	"errors"
	"fmt"
)

// Version is the protocol version written at the start of every frame.
const Version = 1

// frameHeader is the size of the version and kind prefix.
const frameHeader = 2

var (
	// ErrProtocol is the root of every decode failure for malformed or
	// unrecognized frames.
	ErrProtocol = errors.New("protocol error")
	// ErrUnsupportedVersion is returned for a frame with an unknown version byte.
	ErrUnsupportedVersion = fmt.Errorf("%w: unsupported version", ErrProtocol)
	// ErrUnknownKind is returned for a frame with an unknown kind byte.
	ErrUnknownKind = fmt.Errorf("%w: unknown kind", ErrProtocol)
	// ErrSerialization is returned when a value cannot be encoded.
	ErrSerialization = errors.New("serialization failure")
)

// Kind identifies a message or result variant on the wire.
// Client messages use the low range; server results set the high bit.
type Kind uint8

// Client to server kinds.
const (
	KindHello     Kind = 0x01
	KindJoinLobby Kind = 0x02
	KindJoinGame  Kind = 0x03
	KindMove      Kind = 0x04
	KindAttack    Kind = 0x05
	KindLogout    Kind = 0x06
)

// Server to client kinds.
const (
	KindWelcome         Kind = 0x81
	KindSnapshot        Kind = 0x82
	KindPlayerMoved     Kind = 0x83
	KindPlayerUpdated   Kind = 0x84
	KindBuildingUpdated Kind = 0x85
	KindPlayerJoined    Kind = 0x86
	KindPlayerLeft      Kind = 0x87
	KindRejected        Kind = 0x88
)

var kindNames = map[Kind]string{
	KindHello:           "hello",
	KindJoinLobby:       "join_lobby",
	KindJoinGame:        "join_game",
	KindMove:            "move",
	KindAttack:          "attack",
	KindLogout:          "logout",
	KindWelcome:         "welcome",
	KindSnapshot:        "snapshot",
	KindPlayerMoved:     "player_moved",
	KindPlayerUpdated:   "player_updated",
	KindBuildingUpdated: "building_updated",
	KindPlayerJoined:    "player_joined",
	KindPlayerLeft:      "player_left",
	KindRejected:        "rejected",
}

// String returns the snake_case variant name.
func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return fmt.Sprintf("kind(0x%02x)", uint8(k))
}

// IsResult reports whether k is in the server to client range.
func (k Kind) IsResult() bool { return k&0x80 != 0 }

// Message is a client to server variant.
type Message interface {
	Kind() Kind
	appendFields(w *fieldWriter)
	message()
}

// Result is a server to client variant.
type Result interface {
	Kind() Kind
	appendFields(w *fieldWriter)
	result()
}

// RejectCode classifies a Rejected result.
type RejectCode int

// Reject codes.
const (
	RejectCapacity         RejectCode = 1
	RejectIdentityConflict RejectCode = 2
	RejectProtocol         RejectCode = 3
)

// String returns the code name.
func (c RejectCode) String() string {
	switch c {
	case RejectCapacity:
		return "capacity"
	case RejectIdentityConflict:
		return "identity_conflict"
	case RejectProtocol:
		return "protocol"
	default:
		return fmt.Sprintf("reject(%d)", int(c))
	}
}
