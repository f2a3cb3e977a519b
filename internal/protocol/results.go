package protocol

import (
	"github.com/cory-johannsen/siege/internal/game/world"
	"github.com/cory-johannsen/siege/internal/wire"
)

// Welcome acknowledges a Hello.
type Welcome struct {
	Identity string
	Version  int
}

// Snapshot is the full state of one room. Players are ordered by identity and
// buildings by location.
type Snapshot struct {
	Room      int
	Rows      int
	Cols      int
	Players   []world.Player
	Buildings []world.Building
}

// SnapshotFrom converts a room snapshot to its result form.
func SnapshotFrom(s world.Snapshot) Snapshot {
	out := Snapshot{Room: s.Index, Rows: s.Rows, Cols: s.Cols}
	if len(s.Players) > 0 {
		out.Players = s.Players
	}
	if len(s.Buildings) > 0 {
		out.Buildings = s.Buildings
	}
	return out
}

// PlayerMoved reports a player's new cell.
type PlayerMoved struct {
	Identity string
	Location world.Location
}

// PlayerUpdated reports a player's new strength.
type PlayerUpdated struct {
	Identity string
	Strength int
}

// BuildingUpdated reports a building's new strength.
type BuildingUpdated struct {
	Location world.Location
	Strength int
}

// PlayerJoined announces a newcomer to a room's existing occupants.
type PlayerJoined struct {
	Player world.Player
}

// PlayerLeft announces a departure to a room's remaining occupants.
type PlayerLeft struct {
	Identity string
}

// Rejected reports a refused request to the requesting session only.
type Rejected struct {
	Code   RejectCode
	Reason string
}

func (Welcome) Kind() Kind         { return KindWelcome }
func (Snapshot) Kind() Kind        { return KindSnapshot }
func (PlayerMoved) Kind() Kind     { return KindPlayerMoved }
func (PlayerUpdated) Kind() Kind   { return KindPlayerUpdated }
func (BuildingUpdated) Kind() Kind { return KindBuildingUpdated }
func (PlayerJoined) Kind() Kind    { return KindPlayerJoined }
func (PlayerLeft) Kind() Kind      { return KindPlayerLeft }
func (Rejected) Kind() Kind        { return KindRejected }

func (Welcome) result()         {}
func (Snapshot) result()        {}
func (PlayerMoved) result()     {}
func (PlayerUpdated) result()   {}
func (BuildingUpdated) result() {}
func (PlayerJoined) result()    {}
func (PlayerLeft) result()      {}
func (Rejected) result()        {}

func (r Welcome) appendFields(w *fieldWriter) {
	w.putString("identity", r.Identity)
	w.putInt("version", r.Version)
}

func (r Snapshot) appendFields(w *fieldWriter) {
	w.putInt("room", r.Room)
	w.putInt("rows", r.Rows)
	w.putInt("cols", r.Cols)
	w.putStruct(func(s *fieldWriter) {
		for _, p := range r.Players {
			s.putPlayer(p)
		}
	})
	w.putStruct(func(s *fieldWriter) {
		for _, b := range r.Buildings {
			s.putBuilding(b)
		}
	})
}

func (r PlayerMoved) appendFields(w *fieldWriter) {
	w.putString("identity", r.Identity)
	w.putLocation(r.Location)
}

func (r PlayerUpdated) appendFields(w *fieldWriter) {
	w.putString("identity", r.Identity)
	w.putInt("strength", r.Strength)
}

func (r BuildingUpdated) appendFields(w *fieldWriter) {
	w.putLocation(r.Location)
	w.putInt("strength", r.Strength)
}

func (r PlayerJoined) appendFields(w *fieldWriter) {
	w.putPlayer(r.Player)
}

func (r PlayerLeft) appendFields(w *fieldWriter) {
	w.putString("identity", r.Identity)
}

func (r Rejected) appendFields(w *fieldWriter) {
	w.putInt("code", int(r.Code))
	w.putString("reason", r.Reason)
}

var resultDecoders = map[Kind]func(*wire.Fields) (Result, error){
	KindWelcome: func(f *wire.Fields) (Result, error) {
		id, err := f.ReadString()
		if err != nil {
			return nil, err
		}
		v, err := readInt(f)
		if err != nil {
			return nil, err
		}
		return Welcome{Identity: id, Version: v}, nil
	},
	KindSnapshot: decodeSnapshot,
	KindPlayerMoved: func(f *wire.Fields) (Result, error) {
		id, err := f.ReadString()
		if err != nil {
			return nil, err
		}
		loc, err := readLocation(f)
		if err != nil {
			return nil, err
		}
		return PlayerMoved{Identity: id, Location: loc}, nil
	},
	KindPlayerUpdated: func(f *wire.Fields) (Result, error) {
		id, err := f.ReadString()
		if err != nil {
			return nil, err
		}
		s, err := readInt(f)
		if err != nil {
			return nil, err
		}
		return PlayerUpdated{Identity: id, Strength: s}, nil
	},
	KindBuildingUpdated: func(f *wire.Fields) (Result, error) {
		loc, err := readLocation(f)
		if err != nil {
			return nil, err
		}
		s, err := readInt(f)
		if err != nil {
			return nil, err
		}
		return BuildingUpdated{Location: loc, Strength: s}, nil
	},
	KindPlayerJoined: func(f *wire.Fields) (Result, error) {
		p, err := readPlayer(f)
		if err != nil {
			return nil, err
		}
		return PlayerJoined{Player: p}, nil
	},
	KindPlayerLeft: func(f *wire.Fields) (Result, error) {
		id, err := f.ReadString()
		if err != nil {
			return nil, err
		}
		return PlayerLeft{Identity: id}, nil
	},
	KindRejected: func(f *wire.Fields) (Result, error) {
		code, err := readInt(f)
		if err != nil {
			return nil, err
		}
		reason, err := f.ReadString()
		if err != nil {
			return nil, err
		}
		return Rejected{Code: RejectCode(code), Reason: reason}, nil
	},
}

func decodeSnapshot(f *wire.Fields) (Result, error) {
	var (
		s   Snapshot
		err error
	)
	if s.Room, err = readInt(f); err != nil {
		return nil, err
	}
	if s.Rows, err = readInt(f); err != nil {
		return nil, err
	}
	if s.Cols, err = readInt(f); err != nil {
		return nil, err
	}
	players, err := f.ReadStruct()
	if err != nil {
		return nil, err
	}
	for players.Remaining() > 0 {
		p, err := readPlayer(players)
		if err != nil {
			return nil, err
		}
		s.Players = append(s.Players, p)
	}
	buildings, err := f.ReadStruct()
	if err != nil {
		return nil, err
	}
	for buildings.Remaining() > 0 {
		b, err := readBuilding(buildings)
		if err != nil {
			return nil, err
		}
		s.Buildings = append(s.Buildings, b)
	}
	return s, nil
}
