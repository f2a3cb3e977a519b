package gameserver

import (
	"context"
	"errors"
	"io"
	"sync"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/cory-johannsen/siege/internal/frontend/handlers"
)

// SessionMethod is the full gRPC method name of the session stream.
const SessionMethod = "/siege.v1.Siege/Session"

// SiegeServer is the server API of the siege.v1.Siege service.
type SiegeServer interface {
	// Session carries protocol frames as google.protobuf.BytesValue in both directions.
	Session(stream grpc.ServerStream) error
}

// SiegeServiceDesc describes siege.v1.Siege for grpc.Server.RegisterService.
var SiegeServiceDesc = grpc.ServiceDesc{
	ServiceName: "siege.v1.Siege",
	HandlerType: (*SiegeServer)(nil),
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Session",
			Handler:       sessionStreamHandler,
			ServerStreams: true,
			ClientStreams: true,
		},
	},
	Metadata: "siege/v1/siege.proto",
}

func sessionStreamHandler(srv any, stream grpc.ServerStream) error {
	return srv.(SiegeServer).Session(stream)
}

// NewSessionStream opens a session stream on cc.
func NewSessionStream(ctx context.Context, cc grpc.ClientConnInterface, opts ...grpc.CallOption) (grpc.ClientStream, error) {
	return cc.NewStream(ctx, &SiegeServiceDesc.Streams[0], SessionMethod, opts...)
}

// GameServiceServer implements SiegeServer on top of a SessionHandler.
type GameServiceServer struct {
	sessions *handlers.SessionHandler
	logger   *zap.Logger
}

// NewGameServiceServer creates a GameServiceServer.
//
// Precondition: sessions and logger must be non-nil.
func NewGameServiceServer(sessions *handlers.SessionHandler, logger *zap.Logger) *GameServiceServer {
	return &GameServiceServer{sessions: sessions, logger: logger}
}

// Register adds the service to srv.
func (s *GameServiceServer) Register(srv *grpc.Server) {
	srv.RegisterService(&SiegeServiceDesc, s)
}

// Session implements the bidirectional streaming RPC. The first frame must be
// Hello; the stream ends when the session logs out or the client closes it.
func (s *GameServiceServer) Session(stream grpc.ServerStream) error {
	conn := newStreamConn(stream)
	err := s.sessions.Serve(stream.Context(), conn)
	if err != nil && !errors.Is(err, io.EOF) {
		s.logger.Debug("grpc session ended", zap.Error(err))
	}
	return nil
}

type recvResult struct {
	frame []byte
	err   error
}

// streamConn adapts a server stream to handlers.FrameConn. Receives run on a
// pump goroutine so Close can unblock a pending ReadFrame.
type streamConn struct {
	stream grpc.ServerStream
	recv   chan recvResult
	done   chan struct{}
	once   sync.Once
}

func newStreamConn(stream grpc.ServerStream) *streamConn {
	c := &streamConn{
		stream: stream,
		recv:   make(chan recvResult),
		done:   make(chan struct{}),
	}
	go c.pump()
	return c
}

func (c *streamConn) pump() {
	for {
		var msg wrapperspb.BytesValue
		err := c.stream.RecvMsg(&msg)
		select {
		case c.recv <- recvResult{frame: msg.GetValue(), err: err}:
		case <-c.done:
			return
		}
		if err != nil {
			return
		}
	}
}

func (c *streamConn) ReadFrame(ctx context.Context) ([]byte, error) {
	select {
	case r := <-c.recv:
		return r.frame, r.err
	case <-c.done:
		return nil, io.EOF
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *streamConn) WriteFrame(ctx context.Context, frame []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case <-c.done:
		return io.ErrClosedPipe
	default:
	}
	return c.stream.SendMsg(wrapperspb.Bytes(frame))
}

func (c *streamConn) Close() error {
	c.once.Do(func() { close(c.done) })
	return nil
}
