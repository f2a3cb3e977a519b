package world

import (
	"fmt"
	"sort"
	"sync"
)

// TargetKind classifies what an attack hit.
type TargetKind int

// Attack target kinds.
const (
	TargetNone TargetKind = iota
	TargetBuilding
	TargetPlayer
)

// MoveOutcome describes an applied move.
type MoveOutcome struct {
	// Location is the mover's new cell.
	Location Location
	// Swapped is the other player after a swap, or nil.
	Swapped *Player
}

// DamageOutcome describes damage applied to a player.
type DamageOutcome struct {
	// Strength is the strength immediately after damage, before any elimination rule runs.
	Strength int
	// Eliminated is true when Strength reached zero.
	Eliminated bool
	// Respawned is the player after a respawn, or nil.
	Respawned *Player
	// Removed is true when the player was removed from the room.
	Removed bool
}

// AttackOutcome describes a resolved attack.
type AttackOutcome struct {
	Target   Location
	Kind     TargetKind
	Building Building
	// Victim is the identity of the damaged player when Kind is TargetPlayer.
	Victim string
	Damage DamageOutcome
}

// Snapshot is a consistent copy of a room's state.
type Snapshot struct {
	Index     int
	Rows      int
	Cols      int
	Players   []Player
	Buildings []Building
}

// Room is a fixed-size grid play area. All methods are safe for concurrent use;
// every mutation runs under the room's own lock.
type Room struct {
	index    int
	rows     int
	cols     int
	capacity int
	rules    Rules

	mu        sync.Mutex
	players   map[string]*Player
	cells     map[Location]string
	buildings map[Location]*Building
}

// NewRoom creates an empty room.
//
// Precondition: rows, cols and capacity must be >= 1; rules must be valid.
// Postcondition: Returns an empty Room or an error.
func NewRoom(index, rows, cols, capacity int, rules Rules) (*Room, error) {
	if rows < 1 || cols < 1 {
		return nil, fmt.Errorf("room %d: grid must be at least 1x1, got %dx%d", index, rows, cols)
	}
	if capacity < 1 {
		return nil, fmt.Errorf("room %d: capacity must be >= 1, got %d", index, capacity)
	}
	if err := rules.Validate(); err != nil {
		return nil, fmt.Errorf("room %d: %w", index, err)
	}
	return &Room{
		index:     index,
		rows:      rows,
		cols:      cols,
		capacity:  capacity,
		rules:     rules,
		players:   make(map[string]*Player),
		cells:     make(map[Location]string),
		buildings: make(map[Location]*Building),
	}, nil
}

// Index returns the room's stable position in the lobby pool.
func (r *Room) Index() int { return r.index }

// Rows returns the grid height.
func (r *Room) Rows() int { return r.rows }

// Cols returns the grid width.
func (r *Room) Cols() int { return r.cols }

// Capacity returns the maximum number of players.
func (r *Room) Capacity() int { return r.capacity }

// Rules returns the room's rules.
func (r *Room) Rules() Rules { return r.rules }

// InBounds reports whether loc lies on the grid.
func (r *Room) InBounds(loc Location) bool {
	return loc.Row >= 0 && loc.Row < r.rows && loc.Col >= 0 && loc.Col < r.cols
}

// Occupancy returns the number of players in the room.
func (r *Room) Occupancy() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.players)
}

// HasPlayer reports whether identity is in the room.
func (r *Room) HasPlayer(identity string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.players[identity]
	return ok
}

// Player returns a copy of the named player.
func (r *Room) Player(identity string) (Player, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.players[identity]
	if !ok {
		return Player{}, false
	}
	return *p, true
}

// Identities returns the identities of all players, sorted.
func (r *Room) Identities() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.players))
	for id := range r.players {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// PlaceBuilding puts a building on the grid. Strength is clamped to [0, MaxBuildingStrength].
//
// Postcondition: Returns ErrOutOfBounds or ErrOccupiedCell without changing state on failure.
func (r *Room) PlaceBuilding(b Building) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.InBounds(b.Location) {
		return fmt.Errorf("%w: building at %s", ErrOutOfBounds, b.Location)
	}
	if r.occupiedLocked(b.Location) {
		return fmt.Errorf("%w: %s", ErrOccupiedCell, b.Location)
	}
	b.Strength = clamp(b.Strength, 0, r.rules.MaxBuildingStrength)
	r.buildings[b.Location] = &b
	return nil
}

// PlacePlayer puts a player on a specific cell. Strength is clamped to [0, MaxPlayerStrength].
//
// Postcondition: Returns ErrCapacityExceeded, ErrAlreadyInRoom, ErrOutOfBounds or
// ErrOccupiedCell without changing state on failure.
func (r *Room) PlacePlayer(p Player) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.placeLocked(p)
}

func (r *Room) placeLocked(p Player) error {
	if _, ok := r.players[p.Identity]; ok {
		return fmt.Errorf("%w: %q in room %d", ErrAlreadyInRoom, p.Identity, r.index)
	}
	if len(r.players) >= r.capacity {
		return fmt.Errorf("%w: room %d holds %d players", ErrCapacityExceeded, r.index, r.capacity)
	}
	if !r.InBounds(p.Location) {
		return fmt.Errorf("%w: %s", ErrOutOfBounds, p.Location)
	}
	if r.occupiedLocked(p.Location) {
		return fmt.Errorf("%w: %s", ErrOccupiedCell, p.Location)
	}
	p.Strength = clamp(p.Strength, 0, r.rules.MaxPlayerStrength)
	r.players[p.Identity] = &p
	r.cells[p.Location] = p.Identity
	return nil
}

// SpawnPlayer places a new player at full strength on the spawn cell, or on the
// nearest free cell when the spawn cell is taken.
//
// Postcondition: Returns the placed player, or ErrCapacityExceeded when the room
// or its grid is full.
func (r *Room) SpawnPlayer(identity, team, playerType string) (Player, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	loc, ok := r.freeCellNearLocked(r.rules.Spawn)
	if !ok {
		return Player{}, fmt.Errorf("%w: room %d has no free cell", ErrCapacityExceeded, r.index)
	}
	p := Player{
		Identity: identity,
		Location: loc,
		Strength: r.rules.MaxPlayerStrength,
		Team:     team,
		Type:     playerType,
	}
	if err := r.placeLocked(p); err != nil {
		return Player{}, err
	}
	return p, nil
}

// freeCellNearLocked returns the free cell closest to want by Manhattan distance,
// breaking ties by row then column. An out-of-grid want is clamped onto the grid first.
func (r *Room) freeCellNearLocked(want Location) (Location, bool) {
	want = Location{Row: clamp(want.Row, 0, r.rows-1), Col: clamp(want.Col, 0, r.cols-1)}
	if !r.occupiedLocked(want) {
		return want, true
	}
	best, found := Location{}, false
	bestDist := 0
	for row := 0; row < r.rows; row++ {
		for col := 0; col < r.cols; col++ {
			loc := Location{Row: row, Col: col}
			if r.occupiedLocked(loc) {
				continue
			}
			d := loc.distance(want)
			if !found || d < bestDist {
				best, bestDist, found = loc, d, true
			}
		}
	}
	return best, found
}

// RemovePlayer takes a player out of the room.
func (r *Room) RemovePlayer(identity string) (Player, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.players[identity]
	if !ok {
		return Player{}, fmt.Errorf("%w: %q in room %d", ErrPlayerNotFound, identity, r.index)
	}
	r.removeLocked(p)
	return *p, nil
}

func (r *Room) removeLocked(p *Player) {
	delete(r.cells, p.Location)
	delete(r.players, p.Identity)
}

// MovePlayer moves a player one cell in dir.
//
// Postcondition: On ErrBlocked or ErrPlayerNotFound no state has changed.
// Moving onto another player follows the room's OccupiedMove policy.
func (r *Room) MovePlayer(identity string, dir Direction) (MoveOutcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.players[identity]
	if !ok {
		return MoveOutcome{}, fmt.Errorf("%w: %q in room %d", ErrPlayerNotFound, identity, r.index)
	}
	if !dir.Valid() {
		return MoveOutcome{}, fmt.Errorf("%w: invalid direction %d", ErrBlocked, int(dir))
	}
	target := p.Location.Step(dir)
	if !r.InBounds(target) {
		return MoveOutcome{}, fmt.Errorf("%w: %s is off the grid", ErrBlocked, target)
	}
	if _, ok := r.buildings[target]; ok {
		return MoveOutcome{}, fmt.Errorf("%w: building at %s", ErrBlocked, target)
	}
	if otherID, ok := r.cells[target]; ok {
		if r.rules.OccupiedMove != MoveSwap {
			return MoveOutcome{}, fmt.Errorf("%w: player %q at %s", ErrBlocked, otherID, target)
		}
		other := r.players[otherID]
		other.Location, p.Location = p.Location, target
		r.cells[other.Location] = other.Identity
		r.cells[p.Location] = p.Identity
		swapped := *other
		return MoveOutcome{Location: p.Location, Swapped: &swapped}, nil
	}
	delete(r.cells, p.Location)
	p.Location = target
	r.cells[target] = p.Identity
	return MoveOutcome{Location: target}, nil
}

// DamageBuilding reduces a building's strength, flooring at zero.
//
// Postcondition: Returns the new strength; once at zero further damage is a no-op
// returning zero. Negative amounts are treated as zero.
func (r *Room) DamageBuilding(loc Location, amount int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.damageBuildingLocked(loc, amount)
}

func (r *Room) damageBuildingLocked(loc Location, amount int) (int, error) {
	b, ok := r.buildings[loc]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrNoBuilding, loc)
	}
	if b.Strength == 0 || amount <= 0 {
		return b.Strength, nil
	}
	b.Strength = clamp(b.Strength-amount, 0, r.rules.MaxBuildingStrength)
	return b.Strength, nil
}

// DamagePlayer reduces a player's strength, flooring at zero. Reaching zero
// applies the room's Elimination policy.
func (r *Room) DamagePlayer(identity string, amount int) (DamageOutcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.damagePlayerLocked(identity, amount)
}

func (r *Room) damagePlayerLocked(identity string, amount int) (DamageOutcome, error) {
	p, ok := r.players[identity]
	if !ok {
		return DamageOutcome{}, fmt.Errorf("%w: %q in room %d", ErrPlayerNotFound, identity, r.index)
	}
	if amount > 0 {
		p.Strength = clamp(p.Strength-amount, 0, r.rules.MaxPlayerStrength)
	}
	out := DamageOutcome{Strength: p.Strength}
	if p.Strength > 0 {
		return out, nil
	}
	out.Eliminated = true
	switch r.rules.Elimination {
	case EliminateRemove:
		r.removeLocked(p)
		out.Removed = true
	default:
		delete(r.cells, p.Location)
		loc, _ := r.freeCellNearLocked(r.rules.Spawn) // the victim's own cell was just freed
		p.Location = loc
		p.Strength = r.rules.MaxPlayerStrength
		r.cells[loc] = p.Identity
		respawned := *p
		out.Respawned = &respawned
	}
	return out, nil
}

// SetPlayerStrength sets a player's strength, clamped to [0, MaxPlayerStrength].
// It never triggers elimination.
func (r *Room) SetPlayerStrength(identity string, strength int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.players[identity]
	if !ok {
		return 0, fmt.Errorf("%w: %q in room %d", ErrPlayerNotFound, identity, r.index)
	}
	p.Strength = clamp(strength, 0, r.rules.MaxPlayerStrength)
	return p.Strength, nil
}

// SetBuildingStrength sets a building's strength, clamped to [0, MaxBuildingStrength].
func (r *Room) SetBuildingStrength(loc Location, strength int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.buildings[loc]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrNoBuilding, loc)
	}
	b.Strength = clamp(strength, 0, r.rules.MaxBuildingStrength)
	return b.Strength, nil
}

// Attack resolves an attack by identity in dir with the given damage, atomically.
//
// Postcondition: Kind is TargetNone when the target cell is empty or off the grid.
func (r *Room) Attack(identity string, dir Direction, amount int) (AttackOutcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.players[identity]
	if !ok {
		return AttackOutcome{}, fmt.Errorf("%w: %q in room %d", ErrPlayerNotFound, identity, r.index)
	}
	target := p.Location.Step(dir)
	out := AttackOutcome{Target: target}
	if !dir.Valid() || !r.InBounds(target) {
		return out, nil
	}
	if _, ok := r.buildings[target]; ok {
		strength, err := r.damageBuildingLocked(target, amount)
		if err != nil {
			return AttackOutcome{}, err
		}
		out.Kind = TargetBuilding
		out.Building = Building{Location: target, Strength: strength}
		return out, nil
	}
	if victim, ok := r.cells[target]; ok {
		dmg, err := r.damagePlayerLocked(victim, amount)
		if err != nil {
			return AttackOutcome{}, err
		}
		out.Kind = TargetPlayer
		out.Victim = victim
		out.Damage = dmg
	}
	return out, nil
}

// Occupant describes the content of one cell.
type Occupant struct {
	Kind     TargetKind
	Identity string
	Building Building
}

// OccupantAt returns what occupies loc.
func (r *Room) OccupantAt(loc Location) Occupant {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.buildings[loc]; ok {
		return Occupant{Kind: TargetBuilding, Building: *b}
	}
	if id, ok := r.cells[loc]; ok {
		return Occupant{Kind: TargetPlayer, Identity: id}
	}
	return Occupant{Kind: TargetNone}
}

// Snapshot returns a copy of the room state. Players are sorted by identity and
// buildings by location so the result is deterministic.
func (r *Room) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := Snapshot{
		Index:     r.index,
		Rows:      r.rows,
		Cols:      r.cols,
		Players:   make([]Player, 0, len(r.players)),
		Buildings: make([]Building, 0, len(r.buildings)),
	}
	for _, p := range r.players {
		s.Players = append(s.Players, *p)
	}
	for _, b := range r.buildings {
		s.Buildings = append(s.Buildings, *b)
	}
	sort.Slice(s.Players, func(i, j int) bool { return s.Players[i].Identity < s.Players[j].Identity })
	sort.Slice(s.Buildings, func(i, j int) bool {
		a, b := s.Buildings[i].Location, s.Buildings[j].Location
		if a.Row != b.Row {
			return a.Row < b.Row
		}
		return a.Col < b.Col
	})
	return s
}

func (r *Room) occupiedLocked(loc Location) bool {
	if _, ok := r.buildings[loc]; ok {
		return true
	}
	_, ok := r.cells[loc]
	return ok
}
