// Package mcp exposes the key-value store as Model Context Protocol tools.
package mcp

import (
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Version is reported in the MCP server implementation info.
const Version = "0.1.0"

func NewMCPServer(store Store) *mcp.Server {
	service := NewService(store)

	s := mcp.NewServer(&mcp.Implementation{
		Name:    "SynkNode",
		Version: Version,
	}, nil)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "kv_get",
		Description: "Read the value stored under a key. 'found' is false when the key does not exist.",
	}, service.Get)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "kv_set",
		Description: "Store a value under a key, replacing any previous value. The write is persisted before it succeeds.",
	}, service.Set)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "kv_list_keys",
		Description: "List every key currently held by the node.",
	}, service.ListKeys)

	return s
}

// Handler serves the MCP server over streamable HTTP.
func Handler(store Store) http.Handler {
	srv := NewMCPServer(store)
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return srv }, nil)
}
