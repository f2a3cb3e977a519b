// Package main provides the siege server binary. It serves game sessions over
// framed TCP, websockets and a gRPC stream, all backed by one engine.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/cory-johannsen/siege/internal/config"
	"github.com/cory-johannsen/siege/internal/frontend/handlers"
	"github.com/cory-johannsen/siege/internal/frontend/tcp"
	"github.com/cory-johannsen/siege/internal/frontend/ws"
	"github.com/cory-johannsen/siege/internal/game/session"
	"github.com/cory-johannsen/siege/internal/game/world"
	"github.com/cory-johannsen/siege/internal/gameserver"
	"github.com/cory-johannsen/siege/internal/observability"
	"github.com/cory-johannsen/siege/internal/server"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	envFile := flag.String("env", ".env", "optional .env file loaded before the config")
	flag.Parse()

	if err := config.LoadDotEnv(*envFile); err != nil {
		log.Fatalf("loading env: %v", err)
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("starting siege server",
		zap.Int("rooms", cfg.World.TotalRooms),
		zap.Int("max_total_players", cfg.World.MaxTotalPlayers),
		zap.Int("max_room_players", cfg.World.MaxRoomPlayers),
	)

	lobby, err := world.NewLobby(cfg.LobbyConfig())
	if err != nil {
		logger.Fatal("creating lobby", zap.Error(err))
	}
	if cfg.Rules.LayoutFile != "" {
		if err := applyLayout(lobby, cfg); err != nil {
			logger.Fatal("applying layout", zap.String("file", cfg.Rules.LayoutFile), zap.Error(err))
		}
	}

	sessions := session.NewManager(cfg.Session.OutboundBuffer)
	engine := gameserver.NewEngine(lobby, sessions, gameserver.Options{
		AttackDamage: cfg.Rules.AttackDamage,
		TypeDamage:   cfg.Rules.TypeDamage,
		Snapshot:     gameserver.SnapshotPolicy(cfg.Rules.Snapshot),
	}, logger)
	sessionHandler := handlers.NewSessionHandler(engine, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if cfg.Rules.SnapshotInterval > 0 {
		engine.StartSnapshotTicks(ctx, cfg.Rules.SnapshotInterval)
	}

	acceptor := tcp.NewAcceptor(cfg.TCP, sessionHandler, logger)
	httpServer := ws.NewServer(cfg.HTTP, ws.Options{
		MaxFrame:     cfg.TCP.MaxFrame,
		WriteTimeout: cfg.TCP.WriteTimeout,
	}, sessionHandler, engine, logger)

	grpcServer := grpc.NewServer()
	gameserver.NewGameServiceServer(sessionHandler, logger).Register(grpcServer)

	lifecycle := server.NewLifecycle(logger)
	lifecycle.Add("tcp", &server.FuncService{
		StartFn: acceptor.ListenAndServe,
		StopFn:  acceptor.Stop,
	})
	lifecycle.Add("http", httpServer)
	lifecycle.Add("grpc", &server.FuncService{
		StartFn: func() error {
			lis, err := net.Listen("tcp", cfg.GRPC.Addr())
			if err != nil {
				return fmt.Errorf("listening on %s: %w", cfg.GRPC.Addr(), err)
			}
			logger.Info("gRPC server listening",
				zap.String("addr", lis.Addr().String()),
			)
			return grpcServer.Serve(lis)
		},
		StopFn: func() {
			stopGRPC(grpcServer, 5*time.Second)
		},
	})

	logger.Info("siege server initialized",
		zap.Duration("startup", time.Since(start)),
		zap.String("tcp_addr", cfg.TCP.Addr()),
		zap.String("http_addr", cfg.HTTP.Addr()),
		zap.String("grpc_addr", cfg.GRPC.Addr()),
	)

	if err := lifecycle.Run(ctx); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}

func applyLayout(lobby *world.Lobby, cfg config.Config) error {
	layout, err := world.LoadLayoutFromFile(cfg.Rules.LayoutFile)
	if err != nil {
		return err
	}
	if err := layout.Validate(cfg.World.TotalRooms, cfg.World.RoomRows, cfg.World.RoomCols); err != nil {
		return err
	}
	return lobby.ApplyLayout(layout)
}

// stopGRPC drains the server, force-closing streams still open after timeout.
func stopGRPC(srv *grpc.Server, timeout time.Duration) {
	done := make(chan struct{})
	go func() {
		srv.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		srv.Stop()
		<-done
	}
}
