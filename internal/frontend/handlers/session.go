// Package handlers runs client sessions over any framed transport.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cory-johannsen/siege/internal/game/session"
	"github.com/cory-johannsen/siege/internal/protocol"
)

var (
	// ErrHandshake is returned when a connection's first frame is not a valid Hello.
	ErrHandshake = errors.New("first frame must be hello")
	// ErrFrameRejected marks a ReadFrame failure that consumed one bad frame
	// but left the connection usable. The session skips it and keeps reading.
	ErrFrameRejected = errors.New("frame rejected")
)

// FrameConn is a bidirectional connection carrying whole protocol frames.
// WriteFrame is only called from one goroutine at a time. Close must be safe
// to call concurrently with ReadFrame and more than once.
type FrameConn interface {
	ReadFrame(ctx context.Context) ([]byte, error)
	WriteFrame(ctx context.Context, frame []byte) error
	Close() error
}

// Engine is the part of the game engine a session needs.
type Engine interface {
	Login(identity string) (*session.PlayerSession, error)
	HandleFrame(identity string, frame []byte) error
	Disconnect(sess *session.PlayerSession)
}

// SessionHandler drives one connection from handshake to disconnect.
type SessionHandler struct {
	engine Engine
	logger *zap.Logger
}

// NewSessionHandler creates a SessionHandler.
//
// Precondition: engine and logger must be non-nil.
func NewSessionHandler(engine Engine, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{engine: engine, logger: logger}
}

// Serve runs the session on conn until the client disconnects, the session
// logs out, or ctx is cancelled. conn is closed on return.
//
// Flow:
//  1. Read Hello and log the identity in; refuse with Rejected on failure
//  2. Spawn a writer that forwards the session's queued frames to conn
//  3. Feed every further frame to the engine
//  4. Disconnect the session
//
// Postcondition: Returns nil on a clean end, or the error that ended the session.
func (h *SessionHandler) Serve(ctx context.Context, conn FrameConn) error {
	start := time.Now()
	logger := h.logger.With(zap.String("conn_id", uuid.NewString()))
	defer conn.Close()

	first, err := conn.ReadFrame(ctx)
	if err != nil {
		return fmt.Errorf("reading hello: %w", err)
	}
	msg, err := protocol.DecodeMessage(first)
	hello, ok := msg.(protocol.Hello)
	if err != nil || !ok {
		h.reject(ctx, conn, logger, protocol.RejectProtocol, ErrHandshake.Error())
		return ErrHandshake
	}

	sess, err := h.engine.Login(hello.Identity)
	if err != nil {
		code := protocol.RejectProtocol
		if errors.Is(err, session.ErrAlreadyLoggedIn) {
			code = protocol.RejectIdentityConflict
		}
		h.reject(ctx, conn, logger, code, err.Error())
		return err
	}
	logger = logger.With(zap.String("identity", sess.Identity))
	logger.Info("session started")

	sessCtx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		h.forward(sessCtx, conn, sess.Entity, logger)
		// Unblocks ReadFrame once the session has logged out.
		_ = conn.Close()
	}()

	err = h.readLoop(sessCtx, conn, sess.Identity, logger)

	cancel()
	wg.Wait()
	h.engine.Disconnect(sess)
	logger.Info("session ended", zap.Duration("duration", time.Since(start)))

	if ctx.Err() != nil || sess.Entity.IsClosed() || errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func (h *SessionHandler) readLoop(ctx context.Context, conn FrameConn, identity string, logger *zap.Logger) error {
	for {
		frame, err := conn.ReadFrame(ctx)
		if errors.Is(err, ErrFrameRejected) {
			logger.Warn("skipping frame", zap.Error(err))
			continue
		}
		if err != nil {
			return err
		}
		if err := h.engine.HandleFrame(identity, frame); err != nil {
			logger.Debug("frame had no effect", zap.Error(err))
		}
	}
}

// forward writes queued frames until the entity closes or ctx ends.
func (h *SessionHandler) forward(ctx context.Context, conn FrameConn, entity *session.BridgeEntity, logger *zap.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-entity.Events():
			if !ok {
				return
			}
			if err := conn.WriteFrame(ctx, frame); err != nil {
				logger.Debug("forward frame failed", zap.Error(err))
				return
			}
		}
	}
}

func (h *SessionHandler) reject(ctx context.Context, conn FrameConn, logger *zap.Logger, code protocol.RejectCode, reason string) {
	frame, err := protocol.EncodeResult(protocol.Rejected{Code: code, Reason: reason})
	if err != nil {
		logger.Error("encoding rejection", zap.Error(err))
		return
	}
	if err := conn.WriteFrame(ctx, frame); err != nil {
		logger.Debug("writing rejection", zap.Error(err))
	}
	logger.Info("session refused", zap.Stringer("code", code), zap.String("reason", reason))
}
