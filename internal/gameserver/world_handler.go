package gameserver

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/cory-johannsen/siege/internal/game/session"
	"github.com/cory-johannsen/siege/internal/game/world"
	"github.com/cory-johannsen/siege/internal/protocol"
)

// joinGame places the session in a room, leaving its current room first when
// a different existing room is requested. A session already in a room that
// asks for AutoRoom, its own room or an index outside the pool only gets a
// fresh Snapshot.
//
// Precondition: the caller holds the session lock.
// Postcondition: On capacity failure the identity is in the lobby and has been
// sent Rejected.
func (e *Engine) joinGame(sess *session.PlayerSession, preferred int) error {
	info := e.sessions.Info(sess.Identity)
	if info.State == session.StateInRoom {
		if _, exists := e.lobby.Room(preferred); !exists || preferred == info.Room {
			if e.resendSnapshot(sess, info.Room) {
				return nil
			}
		} else {
			e.leaveRoom(sess.Identity, info.Room)
		}
	}
	return e.join(sess, info.Team, info.Type, preferred)
}

// resendSnapshot sends the current snapshot of room to a session already in it.
func (e *Engine) resendSnapshot(sess *session.PlayerSession, room int) bool {
	r, ok := e.lobby.Room(room)
	if !ok {
		return false
	}
	lane := &e.lanes[room]
	lane.Lock()
	defer lane.Unlock()
	if info := e.sessions.Info(sess.Identity); info.State != session.StateInRoom || info.Room != room {
		return false
	}
	e.send(sess.Entity, protocol.SnapshotFrom(r.Snapshot()))
	return true
}

// join tries the preferred room then every other room ascending.
func (e *Engine) join(sess *session.PlayerSession, team, playerType string, preferred int) error {
	var last error
	for _, idx := range e.lobby.Candidates(preferred) {
		joined, err := e.joinAt(sess, idx, team, playerType)
		if joined {
			return nil
		}
		last = err
		if errors.Is(err, world.ErrWorldFull) {
			break
		}
		if !errors.Is(err, world.ErrCapacityExceeded) {
			return err
		}
	}
	if last == nil || !errors.Is(last, world.ErrWorldFull) {
		last = fmt.Errorf("%w: all %d rooms are full", world.ErrCapacityExceeded, e.lobby.RoomCount())
	}
	e.send(sess.Entity, protocol.Rejected{Code: protocol.RejectCapacity, Reason: last.Error()})
	e.logger.Info("join rejected", zap.String("identity", sess.Identity), zap.Error(last))
	return last
}

// joinAt spawns the session into room idx under the room's lane. Existing
// occupants receive PlayerJoined before the newcomer is listed, then the
// newcomer receives a Snapshot.
func (e *Engine) joinAt(sess *session.PlayerSession, idx int, team, playerType string) (bool, error) {
	lane := &e.lanes[idx]
	lane.Lock()
	defer lane.Unlock()

	r, p, err := e.lobby.JoinRoomAt(idx, sess.Identity, team, playerType)
	if err != nil {
		return false, err
	}
	e.broadcast(r, protocol.PlayerJoined{Player: p})
	if err := e.sessions.EnterRoom(sess.Identity, idx); err != nil {
		// The session lock is held, so the identity cannot have logged out.
		_, _ = r.RemovePlayer(sess.Identity)
		return false, err
	}
	e.send(sess.Entity, protocol.SnapshotFrom(r.Snapshot()))
	e.logger.Info("player joined room",
		zap.String("identity", sess.Identity),
		zap.Int("room", idx),
		zap.Stringer("location", p.Location),
	)
	return true, nil
}

// roomAction runs fn under the lane of the room identity occupies.
func (e *Engine) roomAction(identity string, fn func(r *world.Room) error) error {
	info := e.sessions.Info(identity)
	if info.State != session.StateInRoom {
		return fmt.Errorf("%w: %q", ErrNotInRoom, identity)
	}
	r, ok := e.lobby.Room(info.Room)
	if !ok {
		return fmt.Errorf("%w: %d", world.ErrNoSuchRoom, info.Room)
	}
	lane := &e.lanes[info.Room]
	lane.Lock()
	defer lane.Unlock()
	// An attack may have removed the identity before the lane was acquired.
	if cur := e.sessions.Info(identity); cur.State != session.StateInRoom || cur.Room != info.Room {
		return fmt.Errorf("%w: %q", ErrNotInRoom, identity)
	}
	return fn(r)
}

// move applies a one-cell move and broadcasts PlayerMoved to every occupant,
// the mover included. A swap reports both players.
func (e *Engine) move(identity string, dir world.Direction) error {
	return e.roomAction(identity, func(r *world.Room) error {
		out, err := r.MovePlayer(identity, dir)
		if err != nil {
			return err
		}
		results := []protocol.Result{protocol.PlayerMoved{Identity: identity, Location: out.Location}}
		if out.Swapped != nil {
			results = append(results, protocol.PlayerMoved{Identity: out.Swapped.Identity, Location: out.Swapped.Location})
		}
		e.broadcast(r, results...)
		return nil
	})
}
