package world

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

// LobbyConfig holds the fixed world dimensions supplied at initialisation.
type LobbyConfig struct {
	MaxTotalPlayers int
	TotalRooms      int
	MaxRoomPlayers  int
	RoomRows        int
	RoomCols        int
	Rules           Rules
}

const (
	// MaxGridSide bounds room rows and columns. Spawning scans the grid under
	// the room lock, and coordinates travel as int32.
	MaxGridSide = 1024
	// MaxRoomCapacity bounds the players one room may hold.
	MaxRoomCapacity = 4096
)

// Validate checks the configuration invariants.
//
// Postcondition: Returns nil if valid, or an error describing all violations.
func (c LobbyConfig) Validate() error {
	var errs []string
	if c.MaxTotalPlayers < 1 {
		errs = append(errs, fmt.Sprintf("max total players must be >= 1, got %d", c.MaxTotalPlayers))
	}
	if c.TotalRooms < 1 {
		errs = append(errs, fmt.Sprintf("total rooms must be >= 1, got %d", c.TotalRooms))
	}
	if c.MaxRoomPlayers < 1 || c.MaxRoomPlayers > MaxRoomCapacity {
		errs = append(errs, fmt.Sprintf("max room players must be within [1,%d], got %d", MaxRoomCapacity, c.MaxRoomPlayers))
	}
	if c.RoomRows < 1 || c.RoomCols < 1 || c.RoomRows > MaxGridSide || c.RoomCols > MaxGridSide {
		errs = append(errs, fmt.Sprintf("room grid must be between 1x1 and %dx%d, got %dx%d", MaxGridSide, MaxGridSide, c.RoomRows, c.RoomCols))
	}
	if err := c.Rules.Validate(); err != nil {
		errs = append(errs, err.Error())
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

// Lobby owns the fixed pool of rooms and the world-wide player cap.
// The room-assignment decision runs under the lobby lock; gameplay actions
// only take the lock of the room they touch.
type Lobby struct {
	mu       sync.Mutex
	rooms    []*Room
	maxTotal int
}

// NewLobby creates the room pool.
//
// Precondition: cfg must be valid.
// Postcondition: Returns a Lobby with cfg.TotalRooms empty rooms indexed from zero.
func NewLobby(cfg LobbyConfig) (*Lobby, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid lobby config: %w", err)
	}
	l := &Lobby{
		rooms:    make([]*Room, 0, cfg.TotalRooms),
		maxTotal: cfg.MaxTotalPlayers,
	}
	for i := 0; i < cfg.TotalRooms; i++ {
		r, err := NewRoom(i, cfg.RoomRows, cfg.RoomCols, cfg.MaxRoomPlayers, cfg.Rules)
		if err != nil {
			return nil, err
		}
		l.rooms = append(l.rooms, r)
	}
	return l, nil
}

// Room returns the room at index i.
func (l *Lobby) Room(i int) (*Room, bool) {
	if i < 0 || i >= len(l.rooms) {
		return nil, false
	}
	return l.rooms[i], true
}

// Rooms returns the room pool in index order.
func (l *Lobby) Rooms() []*Room {
	out := make([]*Room, len(l.rooms))
	copy(out, l.rooms)
	return out
}

// RoomCount returns the number of rooms.
func (l *Lobby) RoomCount() int { return len(l.rooms) }

// MaxTotalPlayers returns the world-wide player cap.
func (l *Lobby) MaxTotalPlayers() int { return l.maxTotal }

// TotalPlayers returns the number of players across all rooms.
func (l *Lobby) TotalPlayers() int {
	n := 0
	for _, r := range l.rooms {
		n += r.Occupancy()
	}
	return n
}

// AssignRoom places a new player in the first room, by ascending index, with a free slot.
//
// Postcondition: Returns the room and the spawned player, or ErrCapacityExceeded
// when the world cap is reached or no room qualifies.
func (l *Lobby) AssignRoom(identity, team, playerType string) (*Room, Player, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.assignLocked(identity, team, playerType)
}

// Candidates returns room indexes in join order: preferred first when it is a
// valid index, then every other room ascending. Callers that must lock each
// room before placing into it walk this list with JoinRoomAt.
func (l *Lobby) Candidates(preferred int) []int {
	out := make([]int, 0, len(l.rooms))
	if preferred >= 0 && preferred < len(l.rooms) {
		out = append(out, preferred)
	}
	for i := range l.rooms {
		if i != preferred {
			out = append(out, i)
		}
	}
	return out
}

// JoinRoomAt places a new player in room index. The world cap check and the
// placement happen under the lobby lock so concurrent joins never over-admit.
//
// Postcondition: Returns ErrNoSuchRoom, ErrWorldFull, or ErrCapacityExceeded
// when the room is full.
func (l *Lobby) JoinRoomAt(index int, identity, team, playerType string) (*Room, Player, error) {
	r, ok := l.Room(index)
	if !ok {
		return nil, Player{}, fmt.Errorf("%w: %d", ErrNoSuchRoom, index)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.checkTotalLocked(); err != nil {
		return nil, Player{}, err
	}
	p, err := r.SpawnPlayer(identity, team, playerType)
	if err != nil {
		return nil, Player{}, err
	}
	return r, p, nil
}

func (l *Lobby) assignLocked(identity, team, playerType string) (*Room, Player, error) {
	if err := l.checkTotalLocked(); err != nil {
		return nil, Player{}, err
	}
	for _, r := range l.rooms {
		if r.Occupancy() >= r.Capacity() {
			continue
		}
		p, err := r.SpawnPlayer(identity, team, playerType)
		if errors.Is(err, ErrCapacityExceeded) {
			continue
		}
		if err != nil {
			return nil, Player{}, err
		}
		return r, p, nil
	}
	return nil, Player{}, fmt.Errorf("%w: all %d rooms are full", ErrCapacityExceeded, len(l.rooms))
}

func (l *Lobby) checkTotalLocked() error {
	if total := l.TotalPlayers(); total >= l.maxTotal {
		return fmt.Errorf("%w: world holds %d of %d players", ErrWorldFull, total, l.maxTotal)
	}
	return nil
}

// ApplyLayout places the layout's buildings into every room.
//
// Precondition: layout must have been validated against this lobby's dimensions.
func (l *Lobby) ApplyLayout(layout *Layout) error {
	for _, r := range l.rooms {
		for _, b := range layout.BuildingsFor(r.Index(), r.Rules().MaxBuildingStrength) {
			if err := r.PlaceBuilding(b); err != nil {
				return fmt.Errorf("room %d: %w", r.Index(), err)
			}
		}
	}
	return nil
}
