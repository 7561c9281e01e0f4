package daemon

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"sync/atomic"

	"go.trai.ch/locus/internal/core/domain"
	"go.trai.ch/locus/internal/engine/processor" //nolint:depguard // the daemon serves the engine
	"go.trai.ch/zerr"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Engine answers the queries a daemon receives.
type Engine interface {
	Query(ctx context.Context, request string) (*processor.Response, error)
	Invalidate(ctx context.Context) error
}

// Server implements DaemonServer on top of an Engine.
type Server struct {
	lifecycle  *Lifecycle
	engine     Engine
	grpcServer *grpc.Server
	queries    atomic.Int64
}

// NewServer creates a daemon server answering queries with engine.
func NewServer(lifecycle *Lifecycle, engine Engine) *Server {
	s := &Server{
		lifecycle:  lifecycle,
		engine:     engine,
		grpcServer: grpc.NewServer(ServerOptions()...),
	}
	RegisterDaemonServer(s.grpcServer, s)
	return s
}

// Serve listens on the unix socket at socketPath until ctx is canceled or
// the lifecycle shuts down. The socket is removed on return.
func (s *Server) Serve(ctx context.Context, socketPath string) error {
	if err := os.MkdirAll(filepath.Dir(socketPath), domain.DirPerm); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to create daemon directory"), "path", socketPath)
	}

	if err := os.Remove(socketPath); err != nil && !os.IsNotExist(err) {
		return zerr.With(zerr.Wrap(err, "failed to remove stale socket"), "path", socketPath)
	}

	lis, err := net.Listen("unix", socketPath)
	if err != nil {
		return zerr.With(zerr.Wrap(err, "failed to listen on unix socket"), "path", socketPath)
	}
	defer func() { _ = os.Remove(socketPath) }()

	if err := os.Chmod(socketPath, domain.SocketPerm); err != nil {
		_ = lis.Close()
		return zerr.With(zerr.Wrap(err, "failed to set socket permissions"), "path", socketPath)
	}

	return s.ServeListener(ctx, lis)
}

// ServeListener serves on lis until ctx is canceled or the lifecycle shuts down.
func (s *Server) ServeListener(ctx context.Context, lis net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.grpcServer.Serve(lis)
	}()

	select {
	case <-ctx.Done():
		s.grpcServer.GracefulStop()
		return ctx.Err()
	case <-s.lifecycle.ShutdownChan():
		s.grpcServer.GracefulStop()
		return nil
	case err := <-errCh:
		if errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return err
	}
}

// Ping implements DaemonServer.
func (s *Server) Ping(_ context.Context, _ *PingRequest) (*PingResponse, error) {
	s.lifecycle.ResetTimer()
	return &PingResponse{
		IdleRemainingSeconds: int64(s.lifecycle.IdleRemaining().Seconds()),
	}, nil
}

// Query implements DaemonServer.
func (s *Server) Query(ctx context.Context, req *QueryRequest) (*QueryResponse, error) {
	s.lifecycle.ResetTimer()
	s.queries.Add(1)

	resp, err := s.engine.Query(ctx, req.Query)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}

	out := &QueryResponse{Payload: resp.Payload}
	for _, d := range resp.Diagnostics {
		out.Diagnostics = append(out.Diagnostics, d.Error())
	}
	return out, nil
}

// Invalidate implements DaemonServer.
func (s *Server) Invalidate(ctx context.Context, _ *InvalidateRequest) (*InvalidateResponse, error) {
	s.lifecycle.ResetTimer()
	if err := s.engine.Invalidate(ctx); err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return &InvalidateResponse{}, nil
}

// Status implements DaemonServer.
func (s *Server) Status(_ context.Context, _ *StatusRequest) (*StatusResponse, error) {
	s.lifecycle.ResetTimer()
	return &StatusResponse{
		Running:              true,
		Pid:                  int64(os.Getpid()),
		UptimeSeconds:        int64(s.lifecycle.Uptime().Seconds()),
		LastActivityUnix:     s.lifecycle.LastActivity().Unix(),
		IdleRemainingSeconds: int64(s.lifecycle.IdleRemaining().Seconds()),
		QueriesServed:        s.queries.Load(),
	}, nil
}

// Shutdown implements DaemonServer.
func (s *Server) Shutdown(_ context.Context, _ *ShutdownRequest) (*ShutdownResponse, error) {
	s.lifecycle.Shutdown()
	return &ShutdownResponse{Success: true}, nil
}
