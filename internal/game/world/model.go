// Package world provides the in-memory game world model: grid locations,
// directions, players, buildings, rooms, and the lobby that owns them.
package world

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors returned by Room and Lobby operations.
var (
	ErrCapacityExceeded = errors.New("capacity exceeded")
	ErrOccupiedCell     = errors.New("cell occupied")
	ErrBlocked          = errors.New("move blocked")
	ErrNoBuilding       = errors.New("no building at location")
	ErrPlayerNotFound   = errors.New("player not found")
	ErrOutOfBounds      = errors.New("location out of bounds")
	ErrNoSuchRoom       = errors.New("no such room")
	ErrAlreadyInRoom    = errors.New("player already in room")

	// ErrWorldFull is returned when the world-wide player cap is reached.
	ErrWorldFull = fmt.Errorf("%w: world player cap reached", ErrCapacityExceeded)
)

// Location is a (row, col) cell on a room grid. Equality is structural.
type Location struct {
	Row int
	Col int
}

// String returns "(row,col)".
func (l Location) String() string {
	return fmt.Sprintf("(%d,%d)", l.Row, l.Col)
}

// Step returns the neighbouring location in direction d.
// Up decreases the row, Down increases it, Left decreases the column, Right increases it.
//
// Postcondition: Returns l unchanged for an invalid direction.
func (l Location) Step(d Direction) Location {
	switch d {
	case Up:
		return Location{Row: l.Row - 1, Col: l.Col}
	case Down:
		return Location{Row: l.Row + 1, Col: l.Col}
	case Left:
		return Location{Row: l.Row, Col: l.Col - 1}
	case Right:
		return Location{Row: l.Row, Col: l.Col + 1}
	default:
		return l
	}
}

// distance returns the Manhattan distance between two locations.
func (l Location) distance(o Location) int {
	return abs(l.Row-o.Row) + abs(l.Col-o.Col)
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// Direction is a movement or attack orientation. The numeric values are the
// wire representation.
type Direction int

// Directions.
const (
	Up Direction = iota
	Down
	Left
	Right
)

// Directions lists every valid direction in wire order.
var Directions = []Direction{Up, Down, Left, Right}

// Valid reports whether d is one of the four directions.
func (d Direction) Valid() bool {
	return d >= Up && d <= Right
}

// String returns the lowercase direction name.
func (d Direction) String() string {
	switch d {
	case Up:
		return "up"
	case Down:
		return "down"
	case Left:
		return "left"
	case Right:
		return "right"
	default:
		return fmt.Sprintf("direction(%d)", int(d))
	}
}

// Opposite returns the reverse direction.
func (d Direction) Opposite() Direction {
	switch d {
	case Up:
		return Down
	case Down:
		return Up
	case Left:
		return Right
	case Right:
		return Left
	default:
		return d
	}
}

// ParseDirection parses a case-insensitive direction name.
func ParseDirection(s string) (Direction, error) {
	for _, d := range Directions {
		if strings.EqualFold(s, d.String()) {
			return d, nil
		}
	}
	return 0, fmt.Errorf("unknown direction %q", s)
}

// Player is a participant placed in a room.
type Player struct {
	Identity string
	Location Location
	Strength int
	Team     string
	Type     string
}

// Building is a fixed structure occupying one cell of a room.
type Building struct {
	Location Location
	Strength int
}

// EliminationPolicy decides what happens to a player whose strength reaches zero.
type EliminationPolicy string

// Elimination policies.
const (
	// EliminateRespawn restores full strength and re-spawns the player.
	EliminateRespawn EliminationPolicy = "respawn"
	// EliminateRemove removes the player from the room.
	EliminateRemove EliminationPolicy = "remove"
)

// OccupiedMovePolicy decides what happens when a player moves onto another player.
type OccupiedMovePolicy string

// Occupied-cell movement policies.
const (
	// MoveBlock rejects the move without changing state.
	MoveBlock OccupiedMovePolicy = "block"
	// MoveSwap exchanges the two players' cells.
	MoveSwap OccupiedMovePolicy = "swap"
)

// Rules holds the per-room gameplay rules.
type Rules struct {
	// MaxPlayerStrength is the upper clamp and spawn strength for players.
	MaxPlayerStrength int
	// MaxBuildingStrength is the upper clamp and default strength for buildings.
	MaxBuildingStrength int
	// Spawn is the preferred spawn cell for new and respawned players.
	Spawn Location
	// Elimination is applied when damage brings a player to zero strength.
	Elimination EliminationPolicy
	// OccupiedMove is applied when a move targets another player's cell.
	OccupiedMove OccupiedMovePolicy
}

// DefaultRules returns the rules used when none are configured.
func DefaultRules() Rules {
	return Rules{
		MaxPlayerStrength:   100,
		MaxBuildingStrength: 100,
		Spawn:               Location{Row: 0, Col: 0},
		Elimination:         EliminateRespawn,
		OccupiedMove:        MoveBlock,
	}
}

// Validate checks rule invariants.
func (r Rules) Validate() error {
	var errs []string
	if r.MaxPlayerStrength < 1 {
		errs = append(errs, fmt.Sprintf("max player strength must be >= 1, got %d", r.MaxPlayerStrength))
	}
	if r.MaxBuildingStrength < 1 {
		errs = append(errs, fmt.Sprintf("max building strength must be >= 1, got %d", r.MaxBuildingStrength))
	}
	switch r.Elimination {
	case EliminateRespawn, EliminateRemove:
	default:
		errs = append(errs, fmt.Sprintf("elimination policy must be one of [respawn, remove], got %q", r.Elimination))
	}
	switch r.OccupiedMove {
	case MoveBlock, MoveSwap:
	default:
		errs = append(errs, fmt.Sprintf("occupied move policy must be one of [block, swap], got %q", r.OccupiedMove))
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
