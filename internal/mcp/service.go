package mcp

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Store is the part of the engine the tools operate on.
type Store interface {
	Get(key string) (string, bool)
	Set(key, value string) error
	Keys() []string
}

type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

// --- Tool Handlers ---

func (s *Service) Get(ctx context.Context, req *mcp.CallToolRequest, args GetArgs) (*mcp.CallToolResult, GetResult, error) {
	value, ok := s.store.Get(args.Key)
	return nil, GetResult{Key: args.Key, Value: value, Found: ok}, nil
}

func (s *Service) Set(ctx context.Context, req *mcp.CallToolRequest, args SetArgs) (*mcp.CallToolResult, SetResult, error) {
	if err := s.store.Set(args.Key, args.Value); err != nil {
		slog.Error("MCP kv_set failed", "key", args.Key, "error", err)
		return nil, SetResult{}, fmt.Errorf("kv_set %q: %w", args.Key, err)
	}
	return nil, SetResult{Status: "OK"}, nil
}

func (s *Service) ListKeys(ctx context.Context, req *mcp.CallToolRequest, args ListKeysArgs) (*mcp.CallToolResult, ListKeysResult, error) {
	keys := s.store.Keys()
	if keys == nil {
		keys = []string{}
	}
	return nil, ListKeysResult{Keys: keys, Count: len(keys)}, nil
}
