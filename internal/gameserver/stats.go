package gameserver

// Stats is a point-in-time copy of the engine counters.
type Stats struct {
	ActionsApplied        uint64 `json:"actions_applied"`
	ActionsDropped        uint64 `json:"actions_dropped"`
	ProtocolErrors        uint64 `json:"protocol_errors"`
	SerializationFailures uint64 `json:"serialization_failures"`
	PushFailures          uint64 `json:"push_failures"`
	Sessions              int    `json:"sessions"`
	PlayersInRooms        int    `json:"players_in_rooms"`
}

// Stats returns the current counters.
func (e *Engine) Stats() Stats {
	return Stats{
		ActionsApplied:        e.applied.Load(),
		ActionsDropped:        e.dropped.Load(),
		ProtocolErrors:        e.protocolErrs.Load(),
		SerializationFailures: e.serialization.Load(),
		PushFailures:          e.pushFailures.Load(),
		Sessions:              e.sessions.PlayerCount(),
		PlayersInRooms:        e.lobby.TotalPlayers(),
	}
}

// RoomStatus summarises one room's occupancy.
type RoomStatus struct {
	Index      int      `json:"index"`
	Rows       int      `json:"rows"`
	Cols       int      `json:"cols"`
	Capacity   int      `json:"capacity"`
	Occupancy  int      `json:"occupancy"`
	Identities []string `json:"identities"`
}

// Rooms returns the status of every room in index order.
func (e *Engine) Rooms() []RoomStatus {
	rooms := e.lobby.Rooms()
	out := make([]RoomStatus, 0, len(rooms))
	for _, r := range rooms {
		ids := r.Identities()
		out = append(out, RoomStatus{
			Index:      r.Index(),
			Rows:       r.Rows(),
			Cols:       r.Cols(),
			Capacity:   r.Capacity(),
			Occupancy:  len(ids),
			Identities: ids,
		})
	}
	return out
}
