package session

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestBridgeEntity_Push(t *testing.T) {
	e := NewBridgeEntity("test", 4)
	require.NoError(t, e.Push([]byte("hello")))

	data := <-e.Events()
	assert.Equal(t, []byte("hello"), data)
	assert.Equal(t, "test", e.Identity())
}

func TestBridgeEntity_PushClosed(t *testing.T) {
	e := NewBridgeEntity("test", 4)
	require.NoError(t, e.Close())
	assert.True(t, e.IsClosed())
	assert.ErrorIs(t, e.Push([]byte("fail")), ErrEntityClosed)
}

func TestBridgeEntity_PushFull(t *testing.T) {
	e := NewBridgeEntity("test", 1)
	require.NoError(t, e.Push([]byte("first")))
	err := e.Push([]byte("overflow"))
	assert.ErrorIs(t, err, ErrEntityFull)
	assert.Contains(t, err.Error(), "buffer full")
}

func TestBridgeEntity_CloseIdempotent(t *testing.T) {
	e := NewBridgeEntity("test", 4)
	require.NoError(t, e.Close())
	require.NoError(t, e.Close())
	assert.True(t, e.IsClosed())
	_, open := <-e.Events()
	assert.False(t, open)
}

func TestManager_Login(t *testing.T) {
	m := NewManager(8)
	sess, err := m.Login("alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", sess.Identity)
	require.NotNil(t, sess.Entity)
	assert.Equal(t, 1, m.PlayerCount())

	info := m.Info("alice")
	assert.Equal(t, StateInLobby, info.State)
	assert.Equal(t, NoRoom, info.Room)
}

func TestManager_LoginDuplicate(t *testing.T) {
	m := NewManager(8)
	_, err := m.Login("alice")
	require.NoError(t, err)
	_, err = m.Login("alice")
	assert.ErrorIs(t, err, ErrAlreadyLoggedIn)
	assert.Equal(t, 1, m.PlayerCount())
}

func TestManager_LoginEmpty(t *testing.T) {
	m := NewManager(8)
	_, err := m.Login("")
	assert.ErrorIs(t, err, ErrEmptyIdentity)
}

func TestManager_Logout(t *testing.T) {
	m := NewManager(8)
	sess, err := m.Login("alice")
	require.NoError(t, err)
	require.NoError(t, m.EnterRoom("alice", 2))

	removed, err := m.Logout("alice")
	require.NoError(t, err)
	assert.Same(t, sess, removed)
	assert.True(t, sess.Entity.IsClosed())
	assert.Equal(t, 0, m.PlayerCount())
	assert.Empty(t, m.IdentitiesInRoom(2))
	assert.Equal(t, StateLoggedOut, m.Info("alice").State)

	_, err = m.Logout("alice")
	assert.ErrorIs(t, err, ErrNotLoggedIn)

	_, err = m.Login("alice")
	assert.NoError(t, err, "identity may log in again after logout")
}

func TestManager_EnterAndLeaveRoom(t *testing.T) {
	m := NewManager(8)
	_, _ = m.Login("a")
	_, _ = m.Login("b")
	require.NoError(t, m.SetPreference("a", "red", "archer"))

	require.NoError(t, m.EnterRoom("a", 0))
	require.NoError(t, m.EnterRoom("b", 0))
	assert.Equal(t, []string{"a", "b"}, m.IdentitiesInRoom(0))

	info := m.Info("a")
	assert.Equal(t, StateInRoom, info.State)
	assert.Equal(t, 0, info.Room)
	assert.Equal(t, "red", info.Team)
	assert.Equal(t, "archer", info.Type)

	require.NoError(t, m.EnterRoom("a", 1))
	assert.Equal(t, []string{"b"}, m.IdentitiesInRoom(0))
	assert.Equal(t, []string{"a"}, m.IdentitiesInRoom(1))

	old, err := m.LeaveRoom("a")
	require.NoError(t, err)
	assert.Equal(t, 1, old)
	assert.Empty(t, m.IdentitiesInRoom(1))
	assert.Equal(t, StateInLobby, m.Info("a").State)

	old, err = m.LeaveRoom("a")
	require.NoError(t, err)
	assert.Equal(t, NoRoom, old)

	_, err = m.LeaveRoom("ghost")
	assert.ErrorIs(t, err, ErrNotLoggedIn)
	assert.ErrorIs(t, m.EnterRoom("ghost", 0), ErrNotLoggedIn)
	assert.ErrorIs(t, m.SetPreference("ghost", "", ""), ErrNotLoggedIn)
}

func TestManager_EntitiesInRoom(t *testing.T) {
	m := NewManager(8)
	b, _ := m.Login("b")
	a, _ := m.Login("a")
	_, _ = m.Login("c")
	require.NoError(t, m.EnterRoom("a", 3))
	require.NoError(t, m.EnterRoom("b", 3))

	got := m.EntitiesInRoom(3)
	require.Len(t, got, 2)
	assert.Same(t, a.Entity, got[0])
	assert.Same(t, b.Entity, got[1])
	assert.Empty(t, m.EntitiesInRoom(4))
}

func TestManager_Infos(t *testing.T) {
	m := NewManager(8)
	_, _ = m.Login("zed")
	_, _ = m.Login("amy")
	require.NoError(t, m.EnterRoom("zed", 1))

	infos := m.Infos()
	require.Len(t, infos, 2)
	assert.Equal(t, "amy", infos[0].Identity)
	assert.Equal(t, StateInLobby, infos[0].State)
	assert.Equal(t, 1, infos[1].Room)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "logged_out", StateLoggedOut.String())
	assert.Equal(t, "in_lobby", StateInLobby.String())
	assert.Equal(t, "in_room", StateInRoom.String())
	assert.Equal(t, "state(7)", State(7).String())
}

func TestManager_ConcurrentLoginSameIdentity(t *testing.T) {
	m := NewManager(8)
	const n = 50
	var (
		wg      sync.WaitGroup
		success atomic.Int32
	)
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			if _, err := m.Login("same"); err == nil {
				success.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), success.Load())
	assert.Equal(t, 1, m.PlayerCount())
}

func TestManager_ConcurrentLoginLogout(t *testing.T) {
	m := NewManager(8)
	const n = 100
	var wg sync.WaitGroup

	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("u%d", i)
			_, _ = m.Login(id)
			_ = m.EnterRoom(id, i%3)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, n, m.PlayerCount())

	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			_, _ = m.Logout(fmt.Sprintf("u%d", i))
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 0, m.PlayerCount())
	for r := 0; r < 3; r++ {
		assert.Empty(t, m.IdentitiesInRoom(r))
	}
}

func TestPropertyRoomOccupancyConsistent(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		m := NewManager(4)
		numPlayers := rapid.IntRange(1, 20).Draw(t, "num_players")
		for i := 0; i < numPlayers; i++ {
			_, _ = m.Login(fmt.Sprintf("p%d", i))
		}

		ops := rapid.IntRange(0, numPlayers*3).Draw(t, "num_ops")
		for i := 0; i < ops; i++ {
			id := fmt.Sprintf("p%d", rapid.IntRange(0, numPlayers-1).Draw(t, "player"))
			switch rapid.IntRange(0, 2).Draw(t, "op") {
			case 0:
				_ = m.EnterRoom(id, rapid.IntRange(0, 2).Draw(t, "room"))
			case 1:
				_, _ = m.LeaveRoom(id)
			case 2:
				_, _ = m.Logout(id)
			}
		}

		inRooms := 0
		for r := 0; r < 3; r++ {
			for _, id := range m.IdentitiesInRoom(r) {
				info := m.Info(id)
				if info.State != StateInRoom || info.Room != r {
					t.Fatalf("%s listed in room %d but info is %+v", id, r, info)
				}
				inRooms++
			}
		}
		placed := 0
		for _, info := range m.Infos() {
			if info.State == StateInRoom {
				placed++
			}
		}
		if placed != inRooms {
			t.Fatalf("%d sessions in rooms, %d listed by room index", placed, inRooms)
		}
	})
}
