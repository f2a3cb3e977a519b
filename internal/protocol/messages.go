package protocol

import (
	"github.com/cory-johannsen/siege/internal/game/world"
	"github.com/cory-johannsen/siege/internal/wire"
)

// AutoRoom asks the lobby to pick the first room with a free slot.
const AutoRoom = -1

// Hello opens a session. Identity is supplied by the trusted login callback
// of the transport.
type Hello struct {
	Identity string
}

// JoinLobby records the sender's team and player type.
type JoinLobby struct {
	Team string
	Type string
}

// JoinGame asks to enter room Room, or any room when Room is AutoRoom.
type JoinGame struct {
	Room int
}

// Move moves the sender one cell.
type Move struct {
	Direction world.Direction
}

// Attack strikes the cell adjacent to the sender.
type Attack struct {
	Direction world.Direction
}

// Logout ends the session.
type Logout struct{}

func (Hello) Kind() Kind     { return KindHello }
func (JoinLobby) Kind() Kind { return KindJoinLobby }
func (JoinGame) Kind() Kind  { return KindJoinGame }
func (Move) Kind() Kind      { return KindMove }
func (Attack) Kind() Kind    { return KindAttack }
func (Logout) Kind() Kind    { return KindLogout }

func (Hello) message()     {}
func (JoinLobby) message() {}
func (JoinGame) message()  {}
func (Move) message()      {}
func (Attack) message()    {}
func (Logout) message()    {}

func (m Hello) appendFields(w *fieldWriter) {
	w.putString("identity", m.Identity)
}

func (m JoinLobby) appendFields(w *fieldWriter) {
	w.putString("team", m.Team)
	w.putString("type", m.Type)
}

func (m JoinGame) appendFields(w *fieldWriter) {
	w.putInt("room", m.Room)
}

func (m Move) appendFields(w *fieldWriter) {
	w.putDirection(m.Direction)
}

func (m Attack) appendFields(w *fieldWriter) {
	w.putDirection(m.Direction)
}

func (Logout) appendFields(*fieldWriter) {}

var messageDecoders = map[Kind]func(*wire.Fields) (Message, error){
	KindHello: func(f *wire.Fields) (Message, error) {
		id, err := f.ReadString()
		if err != nil {
			return nil, err
		}
		return Hello{Identity: id}, nil
	},
	KindJoinLobby: func(f *wire.Fields) (Message, error) {
		team, err := f.ReadString()
		if err != nil {
			return nil, err
		}
		typ, err := f.ReadString()
		if err != nil {
			return nil, err
		}
		return JoinLobby{Team: team, Type: typ}, nil
	},
	KindJoinGame: func(f *wire.Fields) (Message, error) {
		room, err := readInt(f)
		if err != nil {
			return nil, err
		}
		return JoinGame{Room: room}, nil
	},
	KindMove: func(f *wire.Fields) (Message, error) {
		d, err := readDirection(f)
		if err != nil {
			return nil, err
		}
		return Move{Direction: d}, nil
	},
	KindAttack: func(f *wire.Fields) (Message, error) {
		d, err := readDirection(f)
		if err != nil {
			return nil, err
		}
		return Attack{Direction: d}, nil
	},
	KindLogout: func(*wire.Fields) (Message, error) {
		return Logout{}, nil
	},
}
