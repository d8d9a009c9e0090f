// Package node wires the store, the TCP listener and the HTTP API into one
// running SynkNode.
//
// Both listeners run until the context is cancelled. If either one fails the
// other is stopped and Serve returns the failure; a bind error on startup is
// returned before anything is served.
package node

import (
	"context"
	"errors"
	"log/slog"
	"net"

	"golang.org/x/sync/errgroup"

	"github.com/synknodes/synknode/internal/config"
	"github.com/synknodes/synknode/internal/mcp"
	"github.com/synknodes/synknode/internal/server"
	"github.com/synknodes/synknode/pkg/synkerr"
)

// Node is a single SynkNode process.
type Node struct {
	cfg   config.Config
	store server.Store

	tcp  *server.TCPServer
	http *server.Server
}

// New creates a node over store. Nothing is bound until Listen.
func New(cfg config.Config, store server.Store) *Node {
	return &Node{
		cfg:   cfg,
		store: store,
		tcp: server.NewTCPServer(store, server.TCPOptions{
			ReadTimeout: cfg.TCPReadTimeout,
		}),
	}
}

// ID returns the node identifier.
func (n *Node) ID() string {
	return n.cfg.NodeID
}

// Listen binds the TCP listener, then the HTTP listener.
func (n *Node) Listen() error {
	if len(n.cfg.Peers) > 0 {
		slog.Warn("Peers are configured but replication is not implemented; ignoring them",
			"peers", n.cfg.Peers)
	}

	if err := n.tcp.Listen(n.cfg.TCPAddr()); err != nil {
		return err
	}

	info := server.NodeInfo{
		ID:       n.cfg.NodeID,
		TCPPort:  portOf(n.tcp.Addr()),
		HTTPPort: n.cfg.HTTPPort,
	}
	opts := server.Options{MetricsEnabled: n.cfg.MetricsEnabled}
	if n.cfg.MCPEnabled {
		opts.MCP = mcp.Handler(n.store)
	}
	n.http = server.NewServer(n.store, info, opts)

	if err := n.http.Listen(n.cfg.HTTPAddr()); err != nil {
		_ = n.tcp.Close()
		return err
	}
	return nil
}

// Serve runs both listeners until ctx is cancelled or one of them fails.
func (n *Node) Serve(ctx context.Context) error {
	if n.http == nil {
		return synkerr.Network("serve", errors.New("node not listening"))
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return n.tcp.Serve(gctx) })
	g.Go(func() error { return n.http.Serve(gctx) })

	slog.Info("SynkNode running",
		"tcp", n.TCPAddr().String(),
		"http", n.HTTPAddr().String(),
		"metrics", n.cfg.MetricsEnabled,
		"mcp", n.cfg.MCPEnabled,
	)

	err := g.Wait()
	if err != nil {
		slog.Error("Listener failed, node stopping", "error", err)
		return err
	}
	slog.Info("SynkNode stopped")
	return nil
}

// Run is Listen followed by Serve.
func (n *Node) Run(ctx context.Context) error {
	if err := n.Listen(); err != nil {
		return err
	}
	return n.Serve(ctx)
}

// TCPAddr returns the bound TCP address, or nil before Listen.
func (n *Node) TCPAddr() net.Addr {
	return n.tcp.Addr()
}

// HTTPAddr returns the bound HTTP address, or nil before Listen.
func (n *Node) HTTPAddr() net.Addr {
	if n.http == nil {
		return nil
	}
	return n.http.Addr()
}

func portOf(addr net.Addr) int {
	if tcpAddr, ok := addr.(*net.TCPAddr); ok {
		return tcpAddr.Port
	}
	return 0
}
