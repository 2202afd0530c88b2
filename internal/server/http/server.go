// Package http exposes the sticker pipeline over a huma REST API.
package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/rs/cors"
)

// Server is the REST front end.
type Server struct {
	srv *http.Server
}

// NewServer builds the API on addr. Every origin is allowed and echoed back
// so credentialed browser requests pass.
func NewServer(addr string, runner Runner) *Server {
	mux := http.NewServeMux()

	cfg := huma.DefaultConfig("stickerforge", "1.0.0")
	cfg.Info.Description = "Turns text, images and voice notes into transparent PNG stickers."
	api := humago.New(mux, cfg)

	RegisterHealth(api)
	NewStickerHandler(api, runner)

	c := cors.New(cors.Options{
		AllowOriginFunc:  func(string) bool { return true },
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"X-Artifact-Name", "X-Sticker-Transcript"},
		AllowCredentials: true,
	})

	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           c.Handler(mux),
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Handler returns the root handler including CORS.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// Serve accepts connections on l until Shutdown is called.
func (s *Server) Serve(l net.Listener) error {
	slog.Info("HTTP server listening", "addr", l.Addr().String())
	if err := s.srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// ListenAndServe listens on the configured address and serves.
func (s *Server) ListenAndServe() error {
	l, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.srv.Addr, err)
	}
	return s.Serve(l)
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
