package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/synknodes/synknode/internal/protocol"
	"github.com/synknodes/synknode/pkg/metrics"
	"github.com/synknodes/synknode/pkg/synkerr"
)

// DefaultReadBufferSize is the size of the single read that makes up a request.
// Longer requests are truncated silently.
const DefaultReadBufferSize = 1024

const acceptRetryDelay = 5 * time.Millisecond

// TCPOptions configures the TCP listener.
type TCPOptions struct {
	// ReadBufferSize bounds the request size (default: 1024 bytes).
	ReadBufferSize int
	// ReadTimeout drops a connection that sends nothing in time. Zero waits forever.
	ReadTimeout time.Duration
}

// TCPServer serves the text protocol: one request and one reply per connection.
//
// Every accepted connection runs in its own goroutine. There is no limit on
// concurrent connections and no backpressure.
type TCPServer struct {
	store    Store
	opts     TCPOptions
	listener net.Listener

	mu      sync.Mutex
	conns   map[net.Conn]struct{}
	closing bool
}

// NewTCPServer creates a TCP server over store. Call Listen, then Serve.
func NewTCPServer(store Store, opts TCPOptions) *TCPServer {
	if opts.ReadBufferSize <= 0 {
		opts.ReadBufferSize = DefaultReadBufferSize
	}
	return &TCPServer{
		store: store,
		opts:  opts,
		conns: make(map[net.Conn]struct{}),
	}
}

// Listen binds addr. A bind failure is a network error and is not retried.
func (t *TCPServer) Listen(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return synkerr.Network("bind tcp "+addr, err)
	}
	t.listener = ln
	return nil
}

// Addr returns the bound address, or nil before Listen.
func (t *TCPServer) Addr() net.Addr {
	if t.listener == nil {
		return nil
	}
	return t.listener.Addr()
}

// Close releases a listener that will never be served.
func (t *TCPServer) Close() error {
	if t.listener == nil {
		return nil
	}
	return t.listener.Close()
}

// Serve runs the accept loop until ctx is cancelled or the listener fails.
//
// Cancellation is abrupt: the listener and every open connection are closed
// at once, without waiting for in-flight requests, and Serve returns nil.
func (t *TCPServer) Serve(ctx context.Context) error {
	if t.listener == nil {
		return synkerr.Network("serve tcp", errors.New("listener not bound"))
	}

	stop := context.AfterFunc(ctx, t.closeAll)
	defer stop()

	slog.Info("TCP listener running", "addr", t.listener.Addr().String())

	for {
		conn, err := t.listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return synkerr.Network("accept", err)
			}
			slog.Error("Accept error", "error", err)
			time.Sleep(acceptRetryDelay)
			continue
		}

		if !t.track(conn) {
			_ = conn.Close()
			return nil
		}
		go t.handleConn(conn)
	}
}

// handleConn runs one request/response cycle.
func (t *TCPServer) handleConn(conn net.Conn) {
	metrics.TCPConnectionsActive.Inc()
	defer metrics.TCPConnectionsActive.Dec()
	defer t.untrack(conn)
	defer conn.Close()

	peer := conn.RemoteAddr().String()

	if t.opts.ReadTimeout > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(t.opts.ReadTimeout))
	}

	buf := make([]byte, t.opts.ReadBufferSize)
	n, err := conn.Read(buf)
	if n == 0 {
		// Transport failure or client closed before sending: no reply.
		slog.Warn("Empty read or error from peer", "peer", peer, "error", err)
		metrics.TCPRequestsTotal.WithLabelValues("none", "dropped").Inc()
		return
	}

	reply := t.dispatch(peer, buf[:n])
	if _, err := conn.Write(reply); err != nil {
		slog.Debug("Failed to write reply", "peer", peer, "error", err)
	}
}

// dispatch parses a request and runs it against the store.
func (t *TCPServer) dispatch(peer string, raw []byte) []byte {
	cmd, err := protocol.Parse(raw)
	if err != nil {
		slog.Debug("Invalid request", "peer", peer)
		metrics.TCPRequestsTotal.WithLabelValues("invalid", "error").Inc()
		return protocol.Invalid()
	}

	slog.Debug("Received request", "peer", peer, "command", cmd.Name, "key", cmd.Key)

	switch cmd.Name {
	case protocol.CommandPut:
		if err := t.store.Set(cmd.Key, cmd.Value); err != nil {
			slog.Error("Store error", "peer", peer, "key", cmd.Key, "error", err)
			metrics.TCPRequestsTotal.WithLabelValues(cmd.Name, "error").Inc()
			return protocol.Error(err.Error())
		}
		metrics.TCPRequestsTotal.WithLabelValues(cmd.Name, "ok").Inc()
		return protocol.OK()

	case protocol.CommandGet:
		value, ok := t.store.Get(cmd.Key)
		if !ok {
			metrics.TCPRequestsTotal.WithLabelValues(cmd.Name, "not_found").Inc()
			return protocol.NotFound()
		}
		metrics.TCPRequestsTotal.WithLabelValues(cmd.Name, "ok").Inc()
		return protocol.Value(value)
	}

	return protocol.Invalid()
}

func (t *TCPServer) track(conn net.Conn) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closing {
		return false
	}
	t.conns[conn] = struct{}{}
	return true
}

func (t *TCPServer) untrack(conn net.Conn) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.conns, conn)
}

// closeAll stops accepting and drops every open connection.
func (t *TCPServer) closeAll() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.closing = true
	_ = t.listener.Close()
	for conn := range t.conns {
		_ = conn.Close()
	}
}
