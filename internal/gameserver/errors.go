package gameserver

import (
	"errors"

	"github.com/cory-johannsen/siege/internal/game/session"
	"github.com/cory-johannsen/siege/internal/game/world"
	"github.com/cory-johannsen/siege/internal/protocol"
	"github.com/cory-johannsen/siege/internal/wire"
)

var (
	// ErrNotInRoom is returned for a room-scoped action from an identity in the lobby.
	ErrNotInRoom = errors.New("identity is not in a room")
	// ErrNoTarget is returned for an attack on an empty or off-grid cell.
	ErrNoTarget = errors.New("nothing to attack")
	// ErrUnexpectedHello is returned for a Hello after the session is established.
	ErrUnexpectedHello = errors.New("hello after login")
)

// ErrorClass is the recovery category of an engine error.
type ErrorClass int

// Error classes.
const (
	ClassUnknown ErrorClass = iota
	ClassProtocol
	ClassCapacity
	ClassState
	ClassIdentityConflict
	ClassSerialization
)

// String returns the class name used in log fields.
func (c ErrorClass) String() string {
	switch c {
	case ClassProtocol:
		return "protocol"
	case ClassCapacity:
		return "capacity"
	case ClassState:
		return "state"
	case ClassIdentityConflict:
		return "identity_conflict"
	case ClassSerialization:
		return "serialization"
	default:
		return "unknown"
	}
}

var stateErrors = []error{
	ErrNotInRoom,
	ErrNoTarget,
	ErrUnexpectedHello,
	session.ErrNotLoggedIn,
	world.ErrBlocked,
	world.ErrOccupiedCell,
	world.ErrPlayerNotFound,
	world.ErrOutOfBounds,
	world.ErrNoSuchRoom,
	world.ErrNoBuilding,
	world.ErrAlreadyInRoom,
}

// Classify maps err onto the engine's error taxonomy.
//
// Postcondition: Returns ClassUnknown for nil or unrecognised errors.
func Classify(err error) ErrorClass {
	if err == nil {
		return ClassUnknown
	}
	var (
		truncated *wire.TruncatedInputError
		unknown   *wire.UnknownTypeError
		mismatch  *wire.TypeMismatchError
	)
	switch {
	case errors.Is(err, protocol.ErrSerialization):
		return ClassSerialization
	case errors.Is(err, protocol.ErrProtocol),
		errors.Is(err, session.ErrEmptyIdentity),
		errors.As(err, &truncated),
		errors.As(err, &unknown),
		errors.As(err, &mismatch),
		errors.Is(err, wire.ErrMalformed),
		errors.Is(err, wire.ErrMissingField),
		errors.Is(err, wire.ErrTooDeep),
		errors.Is(err, wire.ErrFrameTooLarge):
		return ClassProtocol
	case errors.Is(err, session.ErrAlreadyLoggedIn):
		return ClassIdentityConflict
	case errors.Is(err, world.ErrCapacityExceeded):
		return ClassCapacity
	}
	for _, target := range stateErrors {
		if errors.Is(err, target) {
			return ClassState
		}
	}
	return ClassUnknown
}
