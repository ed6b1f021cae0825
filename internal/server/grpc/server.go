package grpcserver

import (
	"context"
	"net"

	"github.com/xieyihong/zeebe/internal/runtime"
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Server owns the gRPC server instance and runtime.
type Server struct {
	rt   *runtime.Runtime
	grpc *grpc.Server
	lis  net.Listener
}

// New constructs a gRPC server and registers the standard health service.
func New(rt *runtime.Runtime, opts ...grpc.ServerOption) *Server {
	s := &Server{rt: rt, grpc: grpc.NewServer(opts...)}
	healthpb.RegisterHealthServer(s.grpc, &healthServer{rt: rt})
	return s
}

// ListenAndServe binds to addr and serves until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.lis = l
	errCh := make(chan error, 1)
	go func() { errCh <- s.grpc.Serve(l) }()
	select {
	case <-ctx.Done():
		s.grpc.GracefulStop()
		return nil
	case err := <-errCh:
		return err
	}
}

// Close stops the server and closes the listener.
func (s *Server) Close() {
	if s.grpc != nil {
		s.grpc.GracefulStop()
	}
	if s.lis != nil {
		_ = s.lis.Close()
	}
}

// healthServer adapts runtime.Runtime.CheckHealth to the standard gRPC
// health checking protocol.
type healthServer struct {
	rt *runtime.Runtime
}

func (h *healthServer) Check(ctx context.Context, _ *healthpb.HealthCheckRequest) (*healthpb.HealthCheckResponse, error) {
	if err := h.rt.CheckHealth(ctx); err != nil {
		return &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_NOT_SERVING}, nil
	}
	return &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_SERVING}, nil
}

func (h *healthServer) Watch(req *healthpb.HealthCheckRequest, stream healthpb.Health_WatchServer) error {
	resp, err := h.Check(stream.Context(), req)
	if err != nil {
		return err
	}
	return stream.Send(resp)
}
