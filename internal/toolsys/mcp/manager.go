package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Config is the manager-level MCP configuration: whether the toolbox is
// enabled at all, and which servers to manage.
type Config struct {
	Enabled bool            `yaml:"enabled"`
	Servers []*ServerConfig `yaml:"servers"`
}

// Manager owns the set of configured MCP server connections.
type Manager struct {
	config *Config
	logger *slog.Logger

	mu      sync.RWMutex
	clients map[string]*Client
}

// NewManager creates a manager for the given configuration.
func NewManager(cfg *Config, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		config:  cfg,
		logger:  logger.With("component", "mcp"),
		clients: make(map[string]*Client),
	}
}

// Start connects every server configured with AutoStart. Failures are
// logged, not fatal: a broken MCP server should not prevent task startup.
func (m *Manager) Start(ctx context.Context) {
	if m.config == nil || !m.config.Enabled {
		return
	}
	for _, srv := range m.config.Servers {
		if !srv.AutoStart {
			continue
		}
		if err := m.Connect(ctx, srv.ID); err != nil {
			m.logger.Error("mcp server connect failed", "server", srv.ID, "error", err)
		}
	}
}

// Connect connects to a specific configured server, a no-op if already
// connected.
func (m *Manager) Connect(ctx context.Context, serverID string) error {
	var cfg *ServerConfig
	for _, c := range m.config.Servers {
		if c.ID == serverID {
			cfg = c
			break
		}
	}
	if cfg == nil {
		return fmt.Errorf("mcp: server %q not configured", serverID)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	m.mu.RLock()
	_, exists := m.clients[serverID]
	m.mu.RUnlock()
	if exists {
		return nil
	}

	client := NewClient(cfg, m.logger)
	if err := client.Connect(ctx); err != nil {
		return err
	}
	m.mu.Lock()
	m.clients[serverID] = client
	m.mu.Unlock()
	return nil
}

// Stop disconnects every connected server.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, client := range m.clients {
		if err := client.Close(); err != nil {
			m.logger.Warn("mcp client close failed", "server", id, "error", err)
		}
	}
	m.clients = make(map[string]*Client)
}

// Clients returns a snapshot of connected clients keyed by server id.
func (m *Manager) Clients() map[string]*Client {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]*Client, len(m.clients))
	for id, c := range m.clients {
		out[id] = c
	}
	return out
}
