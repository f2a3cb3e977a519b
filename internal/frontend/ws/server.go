package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/cory-johannsen/siege/internal/config"
	"github.com/cory-johannsen/siege/internal/frontend/handlers"
	"github.com/cory-johannsen/siege/internal/gameserver"
)

// SessionHandler runs one connected session.
type SessionHandler interface {
	Serve(ctx context.Context, conn handlers.FrameConn) error
}

// StatusSource reports engine state for the status endpoints.
type StatusSource interface {
	Stats() gameserver.Stats
	Rooms() []gameserver.RoomStatus
}

// Options bounds websocket frames.
type Options struct {
	MaxFrame     int
	WriteTimeout time.Duration
}

// Server serves /ws sessions and the /healthz, /rooms and /stats endpoints.
type Server struct {
	cfg     config.HTTPConfig
	opts    Options
	handler SessionHandler
	status  StatusSource
	logger  *zap.Logger

	upgrader websocket.Upgrader
	router   chi.Router

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	srv      *http.Server
	listener net.Listener
}

// NewServer creates a Server.
//
// Precondition: handler, status and logger must be non-nil; opts.MaxFrame must be > 0.
func NewServer(cfg config.HTTPConfig, opts Options, handler SessionHandler, status StatusSource, logger *zap.Logger) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		cfg:     cfg,
		opts:    opts,
		handler: handler,
		status:  status,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		ctx:    ctx,
		cancel: cancel,
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", s.handleHealthz)
	r.Get("/rooms", s.handleRooms)
	r.Get("/stats", s.handleStats)
	r.Get("/ws", s.handleWS)
	return r
}

// Handler returns the HTTP handler, for mounting in tests.
func (s *Server) Handler() http.Handler { return s.router }

// Start listens and serves until Stop is called.
//
// Postcondition: Returns nil after Stop, or the listen error.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.Addr())
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.cfg.Addr(), err)
	}
	srv := &http.Server{Handler: s.router, ReadHeaderTimeout: 10 * time.Second}

	s.mu.Lock()
	s.srv, s.listener = srv, ln
	s.mu.Unlock()

	s.logger.Info("http server listening", zap.String("addr", ln.Addr().String()))
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serving http: %w", err)
	}
	return nil
}

// Stop shuts the HTTP server down and ends every websocket session.
func (s *Server) Stop() {
	s.cancel()
	s.mu.Lock()
	srv := s.srv
	s.mu.Unlock()
	if srv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			s.logger.Warn("http shutdown", zap.Error(err))
		}
	}
	s.wg.Wait()
	s.logger.Info("http server stopped")
}

// Addr returns the listening address, or empty string before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	// Shutdown stops tracking the request once it is hijacked, so register first.
	s.wg.Add(1)
	defer s.wg.Done()
	raw, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", zap.String("remote_addr", r.RemoteAddr), zap.Error(err))
		return
	}

	conn := NewConn(raw, s.opts.WriteTimeout, s.opts.MaxFrame)
	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	if err := s.handler.Serve(ctx, conn); err != nil {
		s.logger.Debug("websocket session ended", zap.String("remote_addr", r.RemoteAddr), zap.Error(err))
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) handleRooms(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, s.status.Rooms())
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, s.status.Stats())
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
