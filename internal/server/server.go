// Package server implements the two ingress paths of a SynkNode: the text
// protocol over TCP (TCPServer) and the HTTP/JSON API (Server).
//
// Both are thin adapters over the same Store; neither holds business logic
// beyond parsing, dispatch and status mapping.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/synknodes/synknode/pkg/synkerr"
)

// Store is the subset of the engine the listeners need.
type Store interface {
	Get(key string) (string, bool)
	Set(key, value string) error
	Keys() []string
}

// NodeInfo is reported by GET /status.
type NodeInfo struct {
	ID       string
	TCPPort  int
	HTTPPort int
}

// Options toggles the optional HTTP endpoints.
type Options struct {
	// MetricsEnabled exposes GET /metrics.
	MetricsEnabled bool
	// MCP, when set, is mounted under /mcp.
	MCP http.Handler
}

// Server holds the HTTP interface over a Store.
type Server struct {
	store Store
	info  NodeInfo

	handler    http.Handler
	httpServer *http.Server
	listener   net.Listener
}

// NewServer builds the router and middleware chain. Call Listen, then Serve.
func NewServer(store Store, info NodeInfo, opts Options) *Server {
	s := &Server{
		store: store,
		info:  info,
	}

	router := mux.NewRouter()
	// Keys may contain an escaped '/'; handlers unescape them.
	router.UseEncodedPath()
	s.registerHTTPHandlers(router, opts)
	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.writeHTTPText(w, http.StatusNotFound, textNotFound)
	})

	// Logging runs as router middleware so it sees the matched route template.
	router.Use(s.LoggingMiddleware)

	// Recovery must be outer-most to catch everything.
	s.handler = s.RecoveryMiddleware(router)

	s.httpServer = &http.Server{
		Handler: s.handler,
	}
	return s
}

// Handler returns the complete HTTP handler, middleware included.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Listen binds addr. A bind failure is a network error and is not retried.
// The bound port replaces NodeInfo.HTTPPort, so port 0 reports the real one.
func (s *Server) Listen(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return synkerr.Network("bind http "+addr, err)
	}
	s.listener = ln
	if tcpAddr, ok := ln.Addr().(*net.TCPAddr); ok {
		s.info.HTTPPort = tcpAddr.Port
	}
	return nil
}

// Addr returns the bound address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Serve runs the HTTP server until ctx is cancelled or the server fails.
//
// Cancellation closes the server immediately with http.Server.Close: active
// connections are dropped, nothing is drained, and Serve returns nil.
func (s *Server) Serve(ctx context.Context) error {
	if s.listener == nil {
		return synkerr.Network("serve http", errors.New("listener not bound"))
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP API listening", "addr", s.listener.Addr().String())
		errCh <- s.httpServer.Serve(s.listener)
	}()

	select {
	case <-ctx.Done():
		if err := s.httpServer.Close(); err != nil {
			slog.Warn("HTTP server close error", "error", err)
		}
		<-errCh
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return synkerr.Network("serve http", err)
	}
}

// registerHTTPHandlers sets up the API routes.
func (s *Server) registerHTTPHandlers(r *mux.Router, opts Options) {
	r.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/data/{key}", s.handleGetData).Methods(http.MethodGet)
	r.HandleFunc("/store", s.handleStore).Methods(http.MethodPost)
	r.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)

	if opts.MetricsEnabled {
		r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	}
	if opts.MCP != nil {
		r.PathPrefix("/mcp").Handler(opts.MCP)
	}
}
