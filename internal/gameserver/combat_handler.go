package gameserver

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/cory-johannsen/siege/internal/game/world"
	"github.com/cory-johannsen/siege/internal/protocol"
)

// attack damages whatever occupies the cell adjacent to identity in dir.
//
// Postcondition: A building hit broadcasts BuildingUpdated. A player hit
// broadcasts PlayerUpdated, followed by the respawn position and strength or
// by PlayerLeft when the victim is removed. An empty cell returns ErrNoTarget.
func (e *Engine) attack(identity string, dir world.Direction) error {
	return e.roomAction(identity, func(r *world.Room) error {
		// Damage follows the type the attacker joined the room with.
		attacker, ok := r.Player(identity)
		if !ok {
			return fmt.Errorf("%w: %q", world.ErrPlayerNotFound, identity)
		}
		out, err := r.Attack(identity, dir, e.damageFor(attacker.Type))
		if err != nil {
			return err
		}
		switch out.Kind {
		case world.TargetBuilding:
			e.broadcast(r, protocol.BuildingUpdated{Location: out.Building.Location, Strength: out.Building.Strength})
		case world.TargetPlayer:
			e.resolvePlayerHit(r, out.Victim, out.Damage)
		default:
			return ErrNoTarget
		}
		return nil
	})
}

// resolvePlayerHit reports damage to a player.
//
// Precondition: the caller holds r's lane.
func (e *Engine) resolvePlayerHit(r *world.Room, victim string, dmg world.DamageOutcome) {
	results := []protocol.Result{protocol.PlayerUpdated{Identity: victim, Strength: dmg.Strength}}
	switch {
	case dmg.Respawned != nil:
		results = append(results,
			protocol.PlayerMoved{Identity: victim, Location: dmg.Respawned.Location},
			protocol.PlayerUpdated{Identity: victim, Strength: dmg.Respawned.Strength},
		)
	case dmg.Removed:
		results = append(results, protocol.PlayerLeft{Identity: victim})
	}
	// The victim is still listed so it learns of its own removal.
	e.broadcast(r, results...)
	if dmg.Eliminated {
		e.logger.Info("player eliminated",
			zap.String("identity", victim),
			zap.Int("room", r.Index()),
			zap.Bool("removed", dmg.Removed),
		)
	}
	if dmg.Removed {
		if _, err := e.sessions.LeaveRoom(victim); err != nil {
			e.logger.Warn("returning eliminated player to lobby", zap.String("identity", victim), zap.Error(err))
		}
	}
}
