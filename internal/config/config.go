// Package config implements the engine's YAML + environment configuration
// layer: LLM endpoint/credentials, agent loop bounds, MCP/A2A server
// lists, sandbox provisioning mode, and the Redis/Postgres stream and
// session store DSNs.
//
// Grounded on the teacher's internal/config package: a single Config
// struct aggregating one sub-struct per concern, loaded with
// gopkg.in/yaml.v3 (internal/config/loader.go), then patched with
// environment-variable overrides in a second pass (the same two-phase
// load-then-override shape, simplified here to this core's much smaller
// surface -- no $include directives or JSON5, since nothing in this
// spec's scope needs multi-file config composition).
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config aggregates every sub-concern this engine's components need at
// startup.
type Config struct {
	LLM      LLMConfig      `yaml:"llm"`
	Agent    AgentConfig    `yaml:"agent"`
	MCP      MCPConfig      `yaml:"mcp"`
	A2A      A2AConfig      `yaml:"a2a"`
	Browser  BrowserConfig  `yaml:"browser"`
	Sandbox  SandboxConfig  `yaml:"sandbox"`
	Redis    RedisConfig    `yaml:"redis"`
	Postgres PostgresConfig `yaml:"postgres"`
}

// LLMConfig selects and configures the model backend (internal/llm).
type LLMConfig struct {
	Provider    string  `yaml:"provider"` // "anthropic" | "openai" | "bedrock"
	Endpoint    string  `yaml:"endpoint"`
	APIKey      string  `yaml:"api_key"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

// AgentConfig bounds the agent loop (internal/agentloop).
//
// Field bounds mirror the teacher's sanitizeLoopConfig tolerance:
// out-of-range values are clamped with a logged warning at load time,
// never a hard failure.
type AgentConfig struct {
	MaxIterations     int `yaml:"max_iterations"`      // 1-999
	MaxRetries        int `yaml:"max_retries"`         // 2-9
	MaxSearchResults  int `yaml:"max_search_results"`  // 2-29
}

// ServerConfig names one configured MCP server (grounded on
// internal/mcp/types.go's ServerConfig).
type ServerConfig struct {
	Name      string `yaml:"name"`
	Transport string `yaml:"transport"` // "stdio" | "sse" | "http"
	Command   string `yaml:"command,omitempty"`
	Args      []string `yaml:"args,omitempty"`
	URL       string `yaml:"url,omitempty"`
	Enabled   bool   `yaml:"enabled"`
}

// MCPConfig lists the MCP servers internal/toolsys/mcp connects to.
type MCPConfig struct {
	Enabled bool           `yaml:"enabled"`
	Servers []ServerConfig `yaml:"servers"`
}

// A2AServerConfig names one configured remote A2A agent server.
type A2AServerConfig struct {
	ID      string `yaml:"id"`
	BaseURL string `yaml:"base_url"`
}

// A2AConfig lists the A2A servers internal/toolsys/a2a fetches agent
// cards from.
type A2AConfig struct {
	Enabled bool              `yaml:"enabled"`
	Servers []A2AServerConfig `yaml:"servers"`
}

// BrowserConfig configures the pooled Playwright browser
// (internal/browser). A zero MaxInstances/Timeout/viewport takes the
// package's own defaults; leaving RemoteURL empty launches a local
// Chromium instead of connecting to a remote-control endpoint.
type BrowserConfig struct {
	Enabled        bool   `yaml:"enabled"`
	MaxInstances   int    `yaml:"max_instances"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	Headless       bool   `yaml:"headless"`
	ViewportWidth  int    `yaml:"viewport_width"`
	ViewportHeight int    `yaml:"viewport_height"`
	RemoteURL      string `yaml:"remote_url"`
}

// SandboxConfig selects how internal/sandbox provisions a session's
// isolated environment.
type SandboxConfig struct {
	Mode           string `yaml:"mode"` // "docker" | "shared"
	Image          string `yaml:"image"`
	SharedEndpoint string `yaml:"shared_endpoint"`
	PoolSize       int    `yaml:"pool_size"`
}

// RedisConfig addresses the Redis-backed message stream implementation.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// PostgresConfig addresses the session store's database.
type PostgresConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// Default returns a Config with every field at its documented default,
// before Load applies file or environment overrides.
func Default() Config {
	return Config{
		LLM: LLMConfig{
			Provider:    "anthropic",
			Model:       "claude-opus-4-20250514",
			Temperature: 0.7,
			MaxTokens:   4096,
		},
		Agent: AgentConfig{
			MaxIterations:    10,
			MaxRetries:       3,
			MaxSearchResults: 5,
		},
		Browser: BrowserConfig{
			Headless:       true,
			MaxInstances:   5,
			TimeoutSeconds: 30,
			ViewportWidth:  1280,
			ViewportHeight: 800,
		},
		Sandbox: SandboxConfig{
			Mode:     "docker",
			PoolSize: 1,
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Postgres: PostgresConfig{
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
	}
}

// Load reads path (if non-empty) over Default(), then applies
// environment-variable overrides, then sanitizes out-of-range Agent
// bounds, logging a warning for each field it clamps.
func Load(path string) (Config, error) {
	cfg := Default()

	if strings.TrimSpace(path) != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("config: read %s: %w", path, err)
		}
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return cfg, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	applyEnvOverrides(&cfg)
	sanitizeAgentConfig(&cfg.Agent)
	return cfg, nil
}

// applyEnvOverrides patches fields commonly rotated outside the config
// file (API keys, DSNs) from the environment, the same two-phase
// load-then-override pattern the teacher's own config package uses.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("AGENTEXEC_LLM_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv("AGENTEXEC_LLM_ENDPOINT"); v != "" {
		cfg.LLM.Endpoint = v
	}
	if v := os.Getenv("AGENTEXEC_LLM_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
	if v := os.Getenv("AGENTEXEC_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("AGENTEXEC_POSTGRES_DSN"); v != "" {
		cfg.Postgres.DSN = v
	}
	if v := os.Getenv("AGENTEXEC_SANDBOX_IMAGE"); v != "" {
		cfg.Sandbox.Image = v
	}
	if v := os.Getenv("AGENTEXEC_AGENT_MAX_ITERATIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Agent.MaxIterations = n
		}
	}
}

// sanitizeAgentConfig clamps AgentConfig fields into their documented
// bounds, matching the teacher's sanitizeLoopConfig tolerance for
// out-of-range values: clamp and warn, never fail the load.
func sanitizeAgentConfig(a *AgentConfig) {
	clamp(&a.MaxIterations, 1, 999, "agent.max_iterations")
	clamp(&a.MaxRetries, 2, 9, "agent.max_retries")
	clamp(&a.MaxSearchResults, 2, 29, "agent.max_search_results")
}

func clamp(field *int, min, max int, name string) {
	if *field < min {
		slog.Warn("config: clamping out-of-range field", "field", name, "value", *field, "clamped_to", min)
		*field = min
	} else if *field > max {
		slog.Warn("config: clamping out-of-range field", "field", name, "value", *field, "clamped_to", max)
		*field = max
	}
}
