// Command agentexec wires the engine's components into a runnable
// process: load config, build an LLM provider, bring up the session
// store, stream factory, sandbox manager, and task registry, mount the
// chat orchestrator behind a minimal HTTP surface, and serve /metrics.
//
// This is a wiring example, not a full HTTP/WebSocket/VNC-proxy adapter --
// grounded on cmd/nexus/main.go's flag-parsed, config-driven startup shape and
// internal/gateway/http_server.go's mux/metrics/graceful-shutdown
// pattern, collapsed to this core's much smaller surface.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/haasonsaas/agentexec/internal/agentloop"
	"github.com/haasonsaas/agentexec/internal/browser"
	"github.com/haasonsaas/agentexec/internal/chat"
	"github.com/haasonsaas/agentexec/internal/config"
	"github.com/haasonsaas/agentexec/internal/flow"
	"github.com/haasonsaas/agentexec/internal/llm"
	"github.com/haasonsaas/agentexec/internal/logging"
	"github.com/haasonsaas/agentexec/internal/metrics"
	"github.com/haasonsaas/agentexec/internal/planner"
	"github.com/haasonsaas/agentexec/internal/react"
	"github.com/haasonsaas/agentexec/internal/sandbox"
	"github.com/haasonsaas/agentexec/internal/search"
	"github.com/haasonsaas/agentexec/internal/session"
	"github.com/haasonsaas/agentexec/internal/streams"
	"github.com/haasonsaas/agentexec/internal/task"
	"github.com/haasonsaas/agentexec/internal/toolsys"
	"github.com/haasonsaas/agentexec/internal/toolsys/a2a"
	"github.com/haasonsaas/agentexec/internal/toolsys/mcp"
	"github.com/haasonsaas/agentexec/pkg/models"
)

func main() {
	configPath := flag.String("config", os.Getenv("AGENTEXEC_CONFIG"), "path to agentexec.yaml")
	addr := flag.String("addr", ":8080", "http listen address")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "agentexec: load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.Setup(slog.LevelInfo)

	provider, err := buildProvider(cfg)
	if err != nil {
		logger.Error("build llm provider", "error", err)
		os.Exit(1)
	}

	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics(reg)

	streamFactory := buildStreamFactory(cfg, logger)
	store := buildSessionStore(cfg, logger)

	var provisioner sandbox.Provisioner
	if cfg.Sandbox.SharedEndpoint == "" {
		dockerProvisioner, err := sandbox.NewDockerProvisioner()
		if err != nil {
			logger.Error("build docker provisioner", "error", err)
			os.Exit(1)
		}
		provisioner = dockerProvisioner
	}
	sandboxes := sandbox.NewManager(sandbox.Config{
		SharedEndpoint:    cfg.Sandbox.SharedEndpoint,
		Image:             cfg.Sandbox.Image,
		ReadinessAttempts: 30,
		ReadinessInterval: 2 * time.Second,
		HTTPTimeout:       600 * time.Second,
	}, provisioner)

	searchEngine := search.NewHTTPEngine("", "")

	var browserPool *browser.Pool
	if cfg.Browser.Enabled {
		browserPool, err = browser.NewPool(browser.PoolConfig{
			MaxInstances:   cfg.Browser.MaxInstances,
			Timeout:        time.Duration(cfg.Browser.TimeoutSeconds) * time.Second,
			Headless:       cfg.Browser.Headless,
			ViewportWidth:  cfg.Browser.ViewportWidth,
			ViewportHeight: cfg.Browser.ViewportHeight,
			RemoteURL:      cfg.Browser.RemoteURL,
		})
		if err != nil {
			logger.Error("build browser pool", "error", err)
			os.Exit(1)
		}
		defer browserPool.Close()
	}

	mcpManager := buildMCPManager(cfg, logger)
	mcpManager.Start(context.Background())
	defer mcpManager.Stop()

	a2aToolbox := a2a.NewToolbox()
	if err := a2aToolbox.Initialize(context.Background(), buildA2AConfig(cfg)); err != nil {
		logger.Warn("a2a initialize", "error", err)
	}

	runner := &task.SessionRunner{
		Store:     store,
		Sandboxes: sandboxes,
		BuildFlow: func(ctx context.Context, sess *models.Session, sandboxSess *sandbox.Session) (*flow.Flow, error) {
			registry := toolsys.NewRegistry()
			registry.Register(toolsys.NewMessageToolbox())
			registry.Register(search.NewToolbox(searchEngine, cfg.Agent.MaxSearchResults))
			registry.Register(sandbox.NewShellToolbox(sandboxSess))
			registry.Register(sandbox.NewFileToolbox(sandboxSess))
			if browserPool != nil {
				registry.Register(browser.NewToolbox(browserPool))
			}
			if cfg.MCP.Enabled {
				registry.Register(mcp.NewToolbox(mcpManager))
			}
			if cfg.A2A.Enabled {
				registry.Register(a2aToolbox)
			}

			loop := agentloop.NewLoop(provider, registry, agentloop.LoopConfig{
				MaxIterations: cfg.Agent.MaxIterations,
				MaxRetries:    cfg.Agent.MaxRetries,
				MaxTokens:     cfg.LLM.MaxTokens,
			})
			return flow.New(planner.New(loop, cfg.LLM.Model), react.New(loop, cfg.LLM.Model), cfg.LLM.Model), nil
		},
		InputPoll: time.Second,
	}

	orchestrator := &chat.Orchestrator{
		Store:   store,
		Tasks:   task.NewRegistry(),
		Streams: streamFactory,
		Runner:  runner,
		Metrics: m,
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", handleHealthz)
	mux.Handle("/sessions/", newChatHandler(orchestrator, logger))

	srv := &http.Server{Addr: *addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	listener, err := net.Listen("tcp", *addr)
	if err != nil {
		logger.Error("listen", "addr", *addr, "error", err)
		os.Exit(1)
	}

	go func() {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()
	logger.Info("agentexec listening", "addr", *addr, "llm_provider", provider.Name())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http server shutdown error", "error", err)
	}
}

func buildProvider(cfg config.Config) (llm.Provider, error) {
	switch cfg.LLM.Provider {
	case "openai":
		return llm.NewOpenAIProvider(llm.OpenAIConfig{
			APIKey:       cfg.LLM.APIKey,
			BaseURL:      cfg.LLM.Endpoint,
			DefaultModel: cfg.LLM.Model,
		})
	case "bedrock":
		return llm.NewBedrockProvider(context.Background(), llm.BedrockConfig{
			DefaultModel: cfg.LLM.Model,
		})
	default:
		return llm.NewAnthropicProvider(llm.AnthropicConfig{
			APIKey:       cfg.LLM.APIKey,
			BaseURL:      cfg.LLM.Endpoint,
			DefaultModel: cfg.LLM.Model,
		})
	}
}

func buildStreamFactory(cfg config.Config, logger *slog.Logger) streams.Factory {
	if cfg.Redis.Addr == "" {
		return streams.NewMemoryFactory()
	}
	rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
	logger.Info("using redis stream factory", "addr", cfg.Redis.Addr)
	return streams.NewRedisFactory(rdb)
}

func buildSessionStore(cfg config.Config, logger *slog.Logger) session.Store {
	if cfg.Postgres.DSN == "" {
		return session.NewMemoryStore()
	}
	store, err := session.NewPostgresStore(context.Background(), session.PostgresConfig{
		DSN:             cfg.Postgres.DSN,
		MaxOpenConns:    cfg.Postgres.MaxOpenConns,
		MaxIdleConns:    cfg.Postgres.MaxIdleConns,
		ConnMaxLifetime: cfg.Postgres.ConnMaxLifetime,
	})
	if err != nil {
		logger.Warn("postgres session store unavailable, falling back to memory", "error", err)
		return session.NewMemoryStore()
	}
	return store
}

// buildMCPManager translates the YAML-facing config.MCPConfig server
// entries into the mcp package's own ServerConfig, keyed by server name
// since the config file has no separate id field.
func buildMCPManager(cfg config.Config, logger *slog.Logger) *mcp.Manager {
	servers := make([]*mcp.ServerConfig, 0, len(cfg.MCP.Servers))
	for _, s := range cfg.MCP.Servers {
		servers = append(servers, &mcp.ServerConfig{
			ID:        s.Name,
			Name:      s.Name,
			Transport: mcp.TransportType(s.Transport),
			Command:   s.Command,
			Args:      s.Args,
			URL:       s.URL,
			AutoStart: s.Enabled,
		})
	}
	return mcp.NewManager(&mcp.Config{Enabled: cfg.MCP.Enabled, Servers: servers}, logger)
}

func buildA2AConfig(cfg config.Config) a2a.Config {
	servers := make([]a2a.ServerConfig, 0, len(cfg.A2A.Servers))
	for _, s := range cfg.A2A.Servers {
		servers = append(servers, a2a.ServerConfig{ID: s.ID, BaseURL: s.BaseURL})
	}
	return a2a.Config{Enabled: cfg.A2A.Enabled, Servers: servers}
}

func handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
