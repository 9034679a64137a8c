package mcp

import (
	"context"
	"encoding/json"
)

// Transport is the wire-level contract a Client drives with JSON-RPC
// method calls, independent of stdio vs HTTP framing.
type Transport interface {
	Connect(ctx context.Context) error
	Close() error
	Call(ctx context.Context, method string, params any) (json.RawMessage, error)
	Notify(ctx context.Context, method string, params any) error
	Connected() bool
}

// NewTransport selects a Transport implementation from the server's
// configured transport type.
func NewTransport(cfg *ServerConfig) Transport {
	if cfg.Transport == TransportHTTP {
		return NewHTTPTransport(cfg)
	}
	return NewStdioTransport(cfg)
}
