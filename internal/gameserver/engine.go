package gameserver

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/cory-johannsen/siege/internal/game/session"
	"github.com/cory-johannsen/siege/internal/game/world"
	"github.com/cory-johannsen/siege/internal/protocol"
)

// SnapshotPolicy controls when occupants receive full room snapshots.
type SnapshotPolicy string

// Snapshot policies.
const (
	// SnapshotOnJoin sends a Snapshot only to a session entering a room.
	SnapshotOnJoin SnapshotPolicy = "join"
	// SnapshotOnChange additionally sends every occupant a Snapshot after each applied change.
	SnapshotOnChange SnapshotPolicy = "change"
)

// Options tunes action resolution.
type Options struct {
	// AttackDamage is dealt by player types without a TypeDamage entry.
	AttackDamage int
	// TypeDamage maps a lowercased player type to its attack damage.
	TypeDamage map[string]int
	Snapshot   SnapshotPolicy
}

// Engine resolves session messages against the lobby and delivers results
// to room occupants.
//
// Lock order is room lane, then lobby, then room state. A lane is held from
// the moment an action touches a room until its results are queued, so the
// occupants of one room see results in the order the actions were applied.
// Room membership in the session manager only changes under the room's lane.
type Engine struct {
	lobby    *world.Lobby
	sessions *session.Manager
	opts     Options
	logger   *zap.Logger
	lanes    []sync.Mutex

	applied       atomic.Uint64
	dropped       atomic.Uint64
	protocolErrs  atomic.Uint64
	serialization atomic.Uint64
	pushFailures  atomic.Uint64
}

// NewEngine creates an Engine over lobby and sessions.
//
// Precondition: lobby, sessions and logger must be non-nil.
func NewEngine(lobby *world.Lobby, sessions *session.Manager, opts Options, logger *zap.Logger) *Engine {
	if opts.Snapshot == "" {
		opts.Snapshot = SnapshotOnJoin
	}
	damage := make(map[string]int, len(opts.TypeDamage))
	for k, v := range opts.TypeDamage {
		damage[strings.ToLower(k)] = v
	}
	opts.TypeDamage = damage
	return &Engine{
		lobby:    lobby,
		sessions: sessions,
		opts:     opts,
		logger:   logger,
		lanes:    make([]sync.Mutex, lobby.RoomCount()),
	}
}

// Lobby returns the engine's lobby.
func (e *Engine) Lobby() *world.Lobby { return e.lobby }

// Sessions returns the engine's session manager.
func (e *Engine) Sessions() *session.Manager { return e.sessions }

// Login binds identity to a new session in the lobby and queues a Welcome.
//
// Precondition: identity is supplied by a trusted handshake.
// Postcondition: Returns the session, or an error wrapping session.ErrAlreadyLoggedIn
// or session.ErrEmptyIdentity.
func (e *Engine) Login(identity string) (*session.PlayerSession, error) {
	sess, err := e.sessions.Login(identity)
	if err != nil {
		e.logger.Info("login refused", zap.String("identity", identity), zap.Error(err))
		return nil, fmt.Errorf("login: %w", err)
	}
	e.send(sess.Entity, protocol.Welcome{Identity: identity, Version: protocol.Version})
	e.logger.Info("player logged in", zap.String("identity", identity))
	return sess, nil
}

// Logout ends identity's session, removing it from its room.
//
// Postcondition: Occupants of the room receive PlayerLeft; the session's entity is closed.
func (e *Engine) Logout(identity string) error {
	sess, err := e.acquire(identity)
	if err != nil {
		return err
	}
	defer sess.Unlock()
	return e.logoutLocked(sess)
}

// Disconnect logs sess out if it is still the active session for its identity.
// Transports call it when a connection ends so a stale connection never ends a
// newer login of the same identity.
func (e *Engine) Disconnect(sess *session.PlayerSession) {
	sess.Lock()
	defer sess.Unlock()
	if cur, ok := e.sessions.Session(sess.Identity); !ok || cur != sess {
		return
	}
	if err := e.logoutLocked(sess); err != nil {
		e.logger.Warn("disconnect", zap.String("identity", sess.Identity), zap.Error(err))
	}
}

// HandleFrame decodes one client frame and dispatches it.
// Decode failures are counted, logged, and returned; the session survives.
func (e *Engine) HandleFrame(identity string, frame []byte) error {
	msg, err := protocol.DecodeMessage(frame)
	if err != nil {
		e.protocolErrs.Add(1)
		e.logger.Warn("dropping malformed frame",
			zap.String("identity", identity),
			zap.Int("bytes", len(frame)),
			zap.Error(err),
		)
		return err
	}
	return e.HandleMessage(identity, msg)
}

// HandleMessage applies one message from identity.
//
// Postcondition: Capacity failures have queued a Rejected result to identity.
// State errors are dropped without any result. The returned error, if any,
// describes why the message had no effect.
func (e *Engine) HandleMessage(identity string, msg protocol.Message) error {
	sess, err := e.acquire(identity)
	if err != nil {
		e.dropped.Add(1)
		return err
	}
	defer sess.Unlock()

	switch m := msg.(type) {
	case protocol.Hello:
		err = ErrUnexpectedHello
	case protocol.JoinLobby:
		err = e.sessions.SetPreference(identity, m.Team, m.Type)
	case protocol.JoinGame:
		err = e.joinGame(sess, m.Room)
	case protocol.Move:
		err = e.move(identity, m.Direction)
	case protocol.Attack:
		err = e.attack(identity, m.Direction)
	case protocol.Logout:
		err = e.logoutLocked(sess)
	default:
		err = fmt.Errorf("%w: %s", protocol.ErrUnknownKind, msg.Kind())
	}

	if err == nil {
		e.applied.Add(1)
		return nil
	}
	e.dropped.Add(1)
	class := Classify(err)
	if class == ClassProtocol {
		e.protocolErrs.Add(1)
	}
	e.logger.Debug("action dropped",
		zap.String("identity", identity),
		zap.Stringer("kind", msg.Kind()),
		zap.Stringer("class", class),
		zap.Error(err),
	)
	return err
}

// acquire locks the active session of identity.
func (e *Engine) acquire(identity string) (*session.PlayerSession, error) {
	sess, ok := e.sessions.Session(identity)
	if !ok {
		return nil, fmt.Errorf("%w: %q", session.ErrNotLoggedIn, identity)
	}
	sess.Lock()
	if cur, ok := e.sessions.Session(identity); !ok || cur != sess {
		sess.Unlock()
		return nil, fmt.Errorf("%w: %q", session.ErrNotLoggedIn, identity)
	}
	return sess, nil
}

func (e *Engine) logoutLocked(sess *session.PlayerSession) error {
	info := e.sessions.Info(sess.Identity)
	if info.State == session.StateInRoom {
		e.leaveRoom(sess.Identity, info.Room)
	}
	if _, err := e.sessions.Logout(sess.Identity); err != nil {
		return err
	}
	e.logger.Info("player logged out", zap.String("identity", sess.Identity))
	return nil
}

// leaveRoom removes identity from room and tells the remaining occupants.
// It is a no-op when identity has already left room.
func (e *Engine) leaveRoom(identity string, room int) bool {
	r, ok := e.lobby.Room(room)
	if !ok {
		return false
	}
	lane := &e.lanes[room]
	lane.Lock()
	defer lane.Unlock()

	if info := e.sessions.Info(identity); info.State != session.StateInRoom || info.Room != room {
		return false
	}
	if _, err := r.RemovePlayer(identity); err != nil && !errors.Is(err, world.ErrPlayerNotFound) {
		e.logger.Warn("removing player", zap.String("identity", identity), zap.Int("room", room), zap.Error(err))
	}
	if _, err := e.sessions.LeaveRoom(identity); err != nil {
		e.logger.Warn("leaving room", zap.String("identity", identity), zap.Int("room", room), zap.Error(err))
	}
	e.broadcast(r, protocol.PlayerLeft{Identity: identity})
	e.logger.Info("player left room", zap.String("identity", identity), zap.Int("room", room))
	return true
}

// broadcast queues results, in order, to every occupant of r, followed by a
// fresh snapshot under SnapshotOnChange.
//
// Precondition: the caller holds r's lane.
func (e *Engine) broadcast(r *world.Room, results ...protocol.Result) {
	if e.opts.Snapshot == SnapshotOnChange {
		results = append(results, protocol.SnapshotFrom(r.Snapshot()))
	}
	e.deliver(e.sessions.EntitiesInRoom(r.Index()), results...)
}

func (e *Engine) deliver(to []*session.BridgeEntity, results ...protocol.Result) {
	if len(to) == 0 || len(results) == 0 {
		return
	}
	frames := make([][]byte, 0, len(results))
	for _, res := range results {
		frame, err := protocol.EncodeResult(res)
		if err != nil {
			e.serialization.Add(1)
			e.logger.Error("encoding result", zap.Stringer("kind", res.Kind()), zap.Error(err))
			continue
		}
		frames = append(frames, frame)
	}
	for _, ent := range to {
		for _, frame := range frames {
			e.push(ent, frame)
		}
	}
}

func (e *Engine) send(to *session.BridgeEntity, res protocol.Result) {
	e.deliver([]*session.BridgeEntity{to}, res)
}

func (e *Engine) push(to *session.BridgeEntity, frame []byte) {
	if err := to.Push(frame); err != nil {
		e.pushFailures.Add(1)
		e.logger.Warn("push failed", zap.String("identity", to.Identity()), zap.Error(err))
	}
}

func (e *Engine) damageFor(playerType string) int {
	if d, ok := e.opts.TypeDamage[strings.ToLower(playerType)]; ok {
		return d
	}
	return e.opts.AttackDamage
}
