// Package grpc serves the standard gRPC health protocol next to the REST API.
package grpc

import (
	"errors"
	"fmt"
	"log/slog"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName is the health service name of the sticker pipeline.
const ServiceName = "stickerforge.Sticker"

// Server hosts the health service.
type Server struct {
	srv    *grpc.Server
	health *health.Server
	addr   string
}

// NewServer creates a server for addr. Every service starts NOT_SERVING.
func NewServer(addr string) *Server {
	srv := grpc.NewServer()
	hs := health.NewServer()

	healthpb.RegisterHealthServer(srv, hs)
	reflection.Register(srv)

	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)

	return &Server{srv: srv, health: hs, addr: addr}
}

// SetServing flips the overall and sticker service status.
func (s *Server) SetServing(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}

	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
	slog.Info("gRPC health status changed", "service", ServiceName, "status", status.String())
}

// Serve accepts connections on l until Stop is called.
func (s *Server) Serve(l net.Listener) error {
	slog.Info("gRPC server listening", "addr", l.Addr().String())
	if err := s.srv.Serve(l); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("grpc server: %w", err)
	}
	return nil
}

// ListenAndServe listens on the configured address and serves.
func (s *Server) ListenAndServe() error {
	l, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	return s.Serve(l)
}

// Stop marks every service NOT_SERVING and drains open RPCs.
func (s *Server) Stop() {
	s.health.Shutdown()
	s.srv.GracefulStop()
}
