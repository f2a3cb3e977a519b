package gameserver

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/siege/internal/protocol"
)

// RoomTickManager runs a periodic tick for each registered room.
// Callbacks run sequentially in ascending room order within one goroutine.
//
// Invariant: all callbacks are invoked at most once per tick interval.
type RoomTickManager struct {
	interval time.Duration
	mu       sync.Mutex
	ticks    map[int]func()
}

// NewRoomTickManager returns a manager that fires ticks every interval.
//
// Precondition: interval must be > 0.
func NewRoomTickManager(interval time.Duration) *RoomTickManager {
	if interval <= 0 {
		panic("gameserver.NewRoomTickManager: interval must be > 0")
	}
	return &RoomTickManager{
		interval: interval,
		ticks:    make(map[int]func()),
	}
}

// RegisterTick registers a callback for room. Replaces any existing callback.
func (m *RoomTickManager) RegisterTick(room int, fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ticks[room] = fn
}

// Unregister removes the tick callback for room.
func (m *RoomTickManager) Unregister(room int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.ticks, room)
}

// Start begins the tick loop. Runs until ctx is cancelled.
//
// Postcondition: all registered tick callbacks are invoked once per interval.
func (m *RoomTickManager) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.fire()
			}
		}
	}()
}

func (m *RoomTickManager) fire() {
	m.mu.Lock()
	rooms := make([]int, 0, len(m.ticks))
	for r := range m.ticks {
		rooms = append(rooms, r)
	}
	sort.Ints(rooms)
	callbacks := make([]func(), 0, len(rooms))
	for _, r := range rooms {
		callbacks = append(callbacks, m.ticks[r])
	}
	m.mu.Unlock()
	for _, fn := range callbacks {
		fn()
	}
}

// StartSnapshotTicks sends every occupied room's occupants a fresh Snapshot
// once per interval until ctx is cancelled.
//
// Precondition: interval must be > 0.
func (e *Engine) StartSnapshotTicks(ctx context.Context, interval time.Duration) *RoomTickManager {
	m := NewRoomTickManager(interval)
	for i := 0; i < e.lobby.RoomCount(); i++ {
		room := i
		m.RegisterTick(room, func() { e.tickSnapshot(room) })
	}
	m.Start(ctx)
	e.logger.Info("periodic snapshots enabled", zap.Duration("interval", interval))
	return m
}

func (e *Engine) tickSnapshot(room int) {
	r, ok := e.lobby.Room(room)
	if !ok {
		return
	}
	lane := &e.lanes[room]
	lane.Lock()
	defer lane.Unlock()
	to := e.sessions.EntitiesInRoom(room)
	if len(to) == 0 {
		return
	}
	e.deliver(to, protocol.SnapshotFrom(r.Snapshot()))
}
