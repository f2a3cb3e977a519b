// Package testutil holds helpers shared by transport tests.
package testutil

import (
	"encoding/binary"
	"io"
	"net"
	"testing"
	"time"

	"github.com/cory-johannsen/siege/internal/protocol"
)

// FrameClient is a TCP test client speaking length-prefixed protocol frames.
type FrameClient struct {
	conn net.Conn
	t    *testing.T
}

// NewFrameClient dials the given address and returns a test client.
//
// Precondition: addr must be a valid "host:port" string with a listening server.
// Postcondition: Returns a connected FrameClient or fails the test.
func NewFrameClient(t *testing.T, addr string) *FrameClient {
	t.Helper()
	start := time.Now()

	conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
	if err != nil {
		t.Fatalf("connecting to %s: %v [%s]", addr, err, time.Since(start))
	}
	t.Cleanup(func() {
		conn.Close()
	})

	t.Logf("frame client connected to %s [%s]", addr, time.Since(start))
	return &FrameClient{conn: conn, t: t}
}

// SendRaw writes frame behind a 4-byte big-endian length prefix.
func (c *FrameClient) SendRaw(frame []byte) {
	c.t.Helper()
	c.SendPrefixed(uint32(len(frame)), frame)
}

// SendPrefixed writes an arbitrary length prefix followed by body.
func (c *FrameClient) SendPrefixed(length uint32, body []byte) {
	c.t.Helper()
	_ = c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	buf := binary.BigEndian.AppendUint32(nil, length)
	if _, err := c.conn.Write(append(buf, body...)); err != nil {
		c.t.Fatalf("writing frame: %v", err)
	}
}

// Send encodes and writes a message.
func (c *FrameClient) Send(msg protocol.Message) {
	c.t.Helper()
	frame, err := protocol.EncodeMessage(msg)
	if err != nil {
		c.t.Fatalf("encoding %T: %v", msg, err)
	}
	c.SendRaw(frame)
}

// ReadResult reads and decodes the next result, failing the test on timeout.
func (c *FrameClient) ReadResult(timeout time.Duration) protocol.Result {
	c.t.Helper()
	frame, err := c.ReadRaw(timeout)
	if err != nil {
		c.t.Fatalf("reading result: %v", err)
	}
	res, err := protocol.DecodeResult(frame)
	if err != nil {
		c.t.Fatalf("decoding result: %v", err)
	}
	return res
}

// ReadRaw reads the next frame. It returns io.EOF once the server closes.
func (c *FrameClient) ReadRaw(timeout time.Duration) ([]byte, error) {
	_ = c.conn.SetReadDeadline(time.Now().Add(timeout))
	var hdr [4]byte
	if _, err := io.ReadFull(c.conn, hdr[:]); err != nil {
		return nil, err
	}
	frame := make([]byte, binary.BigEndian.Uint32(hdr[:]))
	if _, err := io.ReadFull(c.conn, frame); err != nil {
		return nil, err
	}
	return frame, nil
}

// Close closes the underlying connection.
func (c *FrameClient) Close() {
	c.conn.Close()
}
