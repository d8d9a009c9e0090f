package node

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/synknodes/synknode/internal/config"
	"github.com/synknodes/synknode/pkg/engine"
	"github.com/synknodes/synknode/pkg/synkerr"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.NodeID = "test-node"
	cfg.TCPPort = 0
	cfg.HTTPPort = 0
	cfg.DataDir = t.TempDir()
	cfg.SnapshotFsync = false
	return cfg
}

func openEngine(t *testing.T, dir string) *engine.Engine {
	t.Helper()
	opts := engine.DefaultOptions(dir)
	opts.Fsync = false
	eng, err := engine.Open(opts)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { eng.Close() })
	return eng
}

// startNode runs n in the background and stops it at cleanup.
func startNode(t *testing.T, n *Node) {
	t.Helper()
	if err := n.Listen(); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- n.Serve(ctx) }()

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("Serve() after cancel = %v", err)
			}
		case <-time.After(3 * time.Second):
			t.Error("node did not stop")
		}
	})
}

func tcpRequest(t *testing.T, addr net.Addr, line string) string {
	t.Helper()
	conn, err := net.DialTimeout("tcp", addr.String(), time.Second)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(2 * time.Second))
	if _, err := conn.Write([]byte(line)); err != nil {
		t.Fatal(err)
	}
	reply, err := io.ReadAll(conn)
	if err != nil {
		t.Fatal(err)
	}
	return string(reply)
}

func httpURL(n *Node, path string) string {
	return "http://" + n.HTTPAddr().String() + path
}

func TestNodeEndToEnd(t *testing.T) {
	cfg := testConfig(t)
	eng := openEngine(t, cfg.DataDir)
	n := New(cfg, eng)
	startNode(t, n)

	// TCP write, HTTP read.
	if got := tcpRequest(t, n.TCPAddr(), "PUT greeting hello world\n"); got != "OK\n" {
		t.Fatalf("TCP PUT reply %q", got)
	}
	resp, err := http.Get(httpURL(n, "/data/greeting"))
	if err != nil {
		t.Fatal(err)
	}
	var data struct {
		Key   string `json:"key"`
		Value string `json:"value"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || data.Value != "hello world" {
		t.Fatalf("HTTP GET = %d %+v", resp.StatusCode, data)
	}

	// HTTP write, TCP read.
	body, _ := json.Marshal(map[string]string{"key": "color", "value": "blue"})
	resp, err = http.Post(httpURL(n, "/store"), "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("POST /store = %d", resp.StatusCode)
	}
	if got := tcpRequest(t, n.TCPAddr(), "GET color\n"); got != "VALUE blue\n" {
		t.Fatalf("TCP GET reply %q", got)
	}

	// Status reports the bound ports and both keys.
	resp, err = http.Get(httpURL(n, "/status"))
	if err != nil {
		t.Fatal(err)
	}
	var status struct {
		NodeID   string   `json:"node_id"`
		TCPPort  int      `json:"tcp_port"`
		HTTPPort int      `json:"http_port"`
		Keys     []string `json:"keys"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	if status.NodeID != "test-node" {
		t.Errorf("node_id = %q", status.NodeID)
	}
	if status.TCPPort != n.TCPAddr().(*net.TCPAddr).Port {
		t.Errorf("tcp_port = %d, want %s", status.TCPPort, n.TCPAddr())
	}
	if status.HTTPPort != n.HTTPAddr().(*net.TCPAddr).Port {
		t.Errorf("http_port = %d, want %s", status.HTTPPort, n.HTTPAddr())
	}
	if len(status.Keys) != 2 {
		t.Errorf("keys = %v", status.Keys)
	}
}

func TestNodeSurvivesRestart(t *testing.T) {
	cfg := testConfig(t)

	first := openEngine(t, cfg.DataDir)
	n := New(cfg, first)
	if err := n.Listen(); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- n.Serve(ctx) }()

	if got := tcpRequest(t, n.TCPAddr(), "PUT k v\n"); got != "OK\n" {
		t.Fatalf("PUT reply %q", got)
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Serve() = %v", err)
	}
	first.Close()

	second := openEngine(t, cfg.DataDir)
	restarted := New(cfg, second)
	startNode(t, restarted)
	if got := tcpRequest(t, restarted.TCPAddr(), "GET k\n"); got != "VALUE v\n" {
		t.Fatalf("GET after restart %q, want VALUE v", got)
	}
}

func TestNodeOptionalEndpoints(t *testing.T) {
	cfg := testConfig(t)
	cfg.MCPEnabled = true
	n := New(cfg, openEngine(t, cfg.DataDir))
	startNode(t, n)

	resp, err := http.Get(httpURL(n, "/metrics"))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("/metrics = %d", resp.StatusCode)
	}

	resp, err = http.Get(httpURL(n, "/mcp"))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		t.Error("/mcp should be mounted when MCP is enabled")
	}
}

func TestNodeTCPBindConflict(t *testing.T) {
	busy, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer busy.Close()

	cfg := testConfig(t)
	cfg.TCPPort = busy.Addr().(*net.TCPAddr).Port

	err = New(cfg, openEngine(t, cfg.DataDir)).Run(context.Background())
	if !errors.Is(err, synkerr.ErrNetwork) {
		t.Fatalf("expected network error, got %v", err)
	}
}

func TestNodeHTTPBindConflictReleasesTCP(t *testing.T) {
	busy, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer busy.Close()

	cfg := testConfig(t)
	cfg.HTTPPort = busy.Addr().(*net.TCPAddr).Port

	n := New(cfg, openEngine(t, cfg.DataDir))
	if err := n.Listen(); !errors.Is(err, synkerr.ErrNetwork) {
		t.Fatalf("expected network error, got %v", err)
	}

	// The TCP port bound first must be free again.
	port := strconv.Itoa(n.TCPAddr().(*net.TCPAddr).Port)
	ln, err := net.Listen("tcp", net.JoinHostPort("127.0.0.1", port))
	if err != nil {
		t.Fatalf("TCP listener was not released: %v", err)
	}
	ln.Close()
}

func TestNodeServeWithoutListen(t *testing.T) {
	cfg := testConfig(t)
	err := New(cfg, openEngine(t, cfg.DataDir)).Serve(context.Background())
	if !errors.Is(err, synkerr.ErrNetwork) {
		t.Fatalf("expected network error, got %v", err)
	}
}

func TestNodeID(t *testing.T) {
	cfg := testConfig(t)
	if id := New(cfg, openEngine(t, cfg.DataDir)).ID(); id != "test-node" {
		t.Errorf("ID() = %q", id)
	}
}

func TestNodeStopsWhenListenerFails(t *testing.T) {
	cfg := testConfig(t)
	n := New(cfg, openEngine(t, cfg.DataDir))
	if err := n.Listen(); err != nil {
		t.Fatal(err)
	}
	httpAddr := n.HTTPAddr().String()

	done := make(chan error, 1)
	go func() { done <- n.Serve(context.Background()) }()

	// Wait for the HTTP API to answer before breaking the TCP side.
	resp, err := http.Get("http://" + httpAddr + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	if err := n.tcp.Close(); err != nil {
		t.Fatal(err)
	}

	select {
	case err := <-done:
		if !errors.Is(err, synkerr.ErrNetwork) {
			t.Fatalf("Serve() = %v, want network error", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("node kept running after its TCP listener failed")
	}

	if conn, err := net.DialTimeout("tcp", httpAddr, 200*time.Millisecond); err == nil {
		conn.Close()
		t.Error("HTTP listener should be closed once the node stops")
	}
}
