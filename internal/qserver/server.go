package qserver

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/zjrosen/skywidgets/internal/log"
)

// Server runs a Handler on a TCP listener.
type Server struct {
	server   *http.Server
	listener net.Listener
	port     int
}

// ServerConfig configures a Server.
type ServerConfig struct {
	// Addr is the listen address; port 0 picks a free port.
	Addr        string
	Handler     *Handler
	ReadTimeout time.Duration
}

// NewServer binds the listener so Port is known before Start.
func NewServer(cfg ServerConfig) (*Server, error) {
	readTimeout := cfg.ReadTimeout
	if readTimeout == 0 {
		readTimeout = 30 * time.Second
	}
	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", cfg.Addr, err)
	}
	port := 0
	if addr, ok := ln.Addr().(*net.TCPAddr); ok {
		port = addr.Port
	}
	return &Server{
		listener: ln,
		port:     port,
		server: &http.Server{
			Handler:           cfg.Handler.Routes(),
			ReadTimeout:       readTimeout,
			ReadHeaderTimeout: 10 * time.Second,
			// SSE responses never finish, so no write timeout.
		},
	}, nil
}

// Start serves until Stop. It returns http.ErrServerClosed after Stop.
func (s *Server) Start() error {
	log.Info(log.CatServer, "Starting mock queue server", "addr", s.listener.Addr().String())
	return s.server.Serve(s.listener)
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	log.Info(log.CatServer, "Stopping mock queue server")
	return s.server.Shutdown(ctx)
}

// Port returns the bound port.
func (s *Server) Port() int { return s.port }

// URL returns the base URL clients should use.
func (s *Server) URL() string {
	return fmt.Sprintf("http://127.0.0.1:%d", s.port)
}
