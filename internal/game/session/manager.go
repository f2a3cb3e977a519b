package session

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// NoRoom is the room index of an identity waiting in the lobby.
const NoRoom = -1

var (
	// ErrAlreadyLoggedIn is returned when an identity already has an active session.
	ErrAlreadyLoggedIn = errors.New("identity already logged in")
	// ErrNotLoggedIn is returned for an identity without an active session.
	ErrNotLoggedIn = errors.New("identity not logged in")
	// ErrEmptyIdentity is returned by Login for an empty identity.
	ErrEmptyIdentity = errors.New("identity must be non-empty")
)

// State is the lifecycle position of an identity.
type State int

// Session states.
const (
	StateLoggedOut State = iota
	StateInLobby
	StateInRoom
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateLoggedOut:
		return "logged_out"
	case StateInLobby:
		return "in_lobby"
	case StateInRoom:
		return "in_room"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// PlayerSession is one active login.
//
// Team, Type, Room and State are owned by the Manager; read them through
// Manager.Info. Lock and Unlock serialize this identity's actions with its logout.
type PlayerSession struct {
	// Identity is the trusted unique name supplied at login.
	Identity string
	// Entity is the outbound frame queue.
	Entity *BridgeEntity

	team  string
	ptype string
	room  int
	state State

	actions sync.Mutex
}

// Lock acquires the session's action lock.
func (s *PlayerSession) Lock() { s.actions.Lock() }

// Unlock releases the session's action lock.
func (s *PlayerSession) Unlock() { s.actions.Unlock() }

// Info is a consistent copy of a session's placement.
type Info struct {
	Identity string
	Team     string
	Type     string
	Room     int
	State    State
}

// Manager maps identities to sessions and tracks room membership.
// All methods are safe for concurrent use.
type Manager struct {
	bufferSize int

	mu       sync.RWMutex
	players  map[string]*PlayerSession // identity → session
	roomSets map[int]map[string]bool   // room index → set of identities
}

// NewManager creates an empty session Manager whose entities buffer
// bufferSize frames.
func NewManager(bufferSize int) *Manager {
	return &Manager{
		bufferSize: bufferSize,
		players:    make(map[string]*PlayerSession),
		roomSets:   make(map[int]map[string]bool),
	}
}

// Login binds identity to a new session in the lobby.
//
// Precondition: identity must be non-empty.
// Postcondition: Returns the session, or ErrAlreadyLoggedIn if the identity is bound.
func (m *Manager) Login(identity string) (*PlayerSession, error) {
	if identity == "" {
		return nil, ErrEmptyIdentity
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.players[identity]; exists {
		return nil, fmt.Errorf("%w: %q", ErrAlreadyLoggedIn, identity)
	}
	sess := &PlayerSession{
		Identity: identity,
		Entity:   NewBridgeEntity(identity, m.bufferSize),
		room:     NoRoom,
		state:    StateInLobby,
	}
	m.players[identity] = sess
	return sess, nil
}

// Logout removes the session, drops its room membership, and closes its entity.
//
// Postcondition: Returns the removed session, or ErrNotLoggedIn.
func (m *Manager) Logout(identity string) (*PlayerSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, exists := m.players[identity]
	if !exists {
		return nil, fmt.Errorf("%w: %q", ErrNotLoggedIn, identity)
	}
	m.leaveLocked(sess)
	sess.state = StateLoggedOut
	_ = sess.Entity.Close()
	delete(m.players, identity)
	return sess, nil
}

// Session returns the active session for identity.
func (m *Manager) Session(identity string) (*PlayerSession, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sess, ok := m.players[identity]
	return sess, ok
}

// Info returns a copy of the placement of identity. An unknown identity
// reports StateLoggedOut.
func (m *Manager) Info(identity string) Info {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sess, ok := m.players[identity]
	if !ok {
		return Info{Identity: identity, Room: NoRoom, State: StateLoggedOut}
	}
	return infoOf(sess)
}

func infoOf(s *PlayerSession) Info {
	return Info{Identity: s.Identity, Team: s.team, Type: s.ptype, Room: s.room, State: s.state}
}

// SetPreference records the team and player type used for the next room join.
func (m *Manager) SetPreference(identity, team, playerType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.players[identity]
	if !ok {
		return fmt.Errorf("%w: %q", ErrNotLoggedIn, identity)
	}
	sess.team, sess.ptype = team, playerType
	return nil
}

// EnterRoom marks identity as occupying room.
//
// Postcondition: The identity is InRoom and listed by IdentitiesInRoom(room).
func (m *Manager) EnterRoom(identity string, room int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.players[identity]
	if !ok {
		return fmt.Errorf("%w: %q", ErrNotLoggedIn, identity)
	}
	m.leaveLocked(sess)
	sess.room, sess.state = room, StateInRoom
	if m.roomSets[room] == nil {
		m.roomSets[room] = make(map[string]bool)
	}
	m.roomSets[room][identity] = true
	return nil
}

// LeaveRoom returns identity to the lobby.
//
// Postcondition: Returns the previous room index, NoRoom if the identity was already in the lobby.
func (m *Manager) LeaveRoom(identity string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.players[identity]
	if !ok {
		return NoRoom, fmt.Errorf("%w: %q", ErrNotLoggedIn, identity)
	}
	return m.leaveLocked(sess), nil
}

func (m *Manager) leaveLocked(sess *PlayerSession) int {
	old := sess.room
	if rs, ok := m.roomSets[old]; ok {
		delete(rs, sess.Identity)
		if len(rs) == 0 {
			delete(m.roomSets, old)
		}
	}
	sess.room, sess.state = NoRoom, StateInLobby
	return old
}

// IdentitiesInRoom returns the identities occupying room, sorted.
//
// Postcondition: Returns a slice of identities (may be empty).
func (m *Manager) IdentitiesInRoom(room int) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rs := m.roomSets[room]
	ids := make([]string, 0, len(rs))
	for id := range rs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// EntitiesInRoom returns the outbound queues of the identities occupying room,
// ordered by identity.
func (m *Manager) EntitiesInRoom(room int) []*BridgeEntity {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rs := m.roomSets[room]
	ids := make([]string, 0, len(rs))
	for id := range rs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]*BridgeEntity, 0, len(ids))
	for _, id := range ids {
		out = append(out, m.players[id].Entity)
	}
	return out
}

// Infos returns the placement of every session, ordered by identity.
func (m *Manager) Infos() []Info {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Info, 0, len(m.players))
	for _, s := range m.players {
		out = append(out, infoOf(s))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Identity < out[j].Identity })
	return out
}

// PlayerCount returns the number of active sessions.
func (m *Manager) PlayerCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.players)
}
