// Package tcp serves game sessions over length-prefixed TCP frames.
package tcp

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/cory-johannsen/siege/internal/frontend/handlers"
)

// HeaderSize is the length prefix in front of every frame.
const HeaderSize = 4

// ErrFrameTooLarge is returned for a frame longer than the connection's limit.
var ErrFrameTooLarge = errors.New("frame exceeds limit")

// Conn wraps a TCP connection carrying [4-byte big-endian length][frame] records.
type Conn struct {
	raw    net.Conn
	reader *bufio.Reader
	mu     sync.Mutex

	readTimeout  time.Duration
	writeTimeout time.Duration
	maxFrame     int

	closeOnce sync.Once
	closeErr  error
}

// NewConn wraps a raw TCP connection.
//
// Precondition: raw must be open; maxFrame must be > 0.
func NewConn(raw net.Conn, readTimeout, writeTimeout time.Duration, maxFrame int) *Conn {
	return &Conn{
		raw:          raw,
		reader:       bufio.NewReaderSize(raw, 4096),
		readTimeout:  readTimeout,
		writeTimeout: writeTimeout,
		maxFrame:     maxFrame,
	}
}

// ReadFrame reads the next frame.
//
// Postcondition: An oversized frame is skipped and reported as
// handlers.ErrFrameRejected; the connection stays usable.
func (c *Conn) ReadFrame(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c.readTimeout > 0 {
		_ = c.raw.SetReadDeadline(time.Now().Add(c.readTimeout))
	}

	var hdr [HeaderSize]byte
	if _, err := io.ReadFull(c.reader, hdr[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(hdr[:])
	if uint64(n) > uint64(c.maxFrame) {
		if _, err := io.CopyN(io.Discard, c.reader, int64(n)); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w: %d > %d bytes", handlers.ErrFrameRejected, ErrFrameTooLarge, n, c.maxFrame)
	}
	frame := make([]byte, n)
	if _, err := io.ReadFull(c.reader, frame); err != nil {
		return nil, err
	}
	return frame, nil
}

// WriteFrame writes one length-prefixed frame.
func (c *Conn) WriteFrame(ctx context.Context, frame []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.writeTimeout > 0 {
		_ = c.raw.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	buf := make([]byte, HeaderSize, HeaderSize+len(frame))
	binary.BigEndian.PutUint32(buf, uint32(len(frame)))
	_, err := c.raw.Write(append(buf, frame...))
	return err
}

// Close closes the underlying connection. Later calls return the first result.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() { c.closeErr = c.raw.Close() })
	return c.closeErr
}

// RemoteAddr returns the remote network address.
func (c *Conn) RemoteAddr() net.Addr {
	return c.raw.RemoteAddr()
}
