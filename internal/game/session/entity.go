// Package session tracks logged-in identities, their lobby or room placement,
// and the outbound frame queue of each session.
package session

import (
	"errors"
	"fmt"
	"sync"
)

// ErrEntityClosed is returned by Push after Close.
var ErrEntityClosed = errors.New("entity closed")

// ErrEntityFull is returned by Push when the outbound queue is full.
var ErrEntityFull = errors.New("entity event buffer full")

// BridgeEntity is the outbound frame queue of one session. The engine pushes
// encoded results; the transport writer drains Events.
type BridgeEntity struct {
	identity string
	events   chan []byte
	mu       sync.Mutex
	closed   bool
}

// NewBridgeEntity creates a BridgeEntity for the given identity.
//
// Precondition: identity must be non-empty.
// Postcondition: Returns a BridgeEntity with an open events channel.
func NewBridgeEntity(identity string, bufferSize int) *BridgeEntity {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	return &BridgeEntity{
		identity: identity,
		events:   make(chan []byte, bufferSize),
	}
}

// Identity returns the owning identity.
func (e *BridgeEntity) Identity() string {
	return e.identity
}

// Push enqueues a frame without blocking.
//
// Precondition: data must be a non-nil byte slice.
// Postcondition: data is enqueued, or ErrEntityClosed / ErrEntityFull is returned.
func (e *BridgeEntity) Push(data []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return fmt.Errorf("%w: %s", ErrEntityClosed, e.identity)
	}
	select {
	case e.events <- data:
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrEntityFull, e.identity)
	}
}

// Events returns the read-only events channel. It is closed by Close.
func (e *BridgeEntity) Events() <-chan []byte {
	return e.events
}

// Close marks the entity as closed and closes the events channel.
//
// Postcondition: The events channel is closed. Further Push calls return an error.
func (e *BridgeEntity) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.closed {
		e.closed = true
		close(e.events)
	}
	return nil
}

// IsClosed reports whether the entity has been closed.
func (e *BridgeEntity) IsClosed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}
