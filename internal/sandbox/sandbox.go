// Package sandbox manages the per-session isolated environment described
// in spec §4.2: a long-lived container (or a pre-configured shared
// endpoint) exposing shell, file, and browser HTTP surfaces, readiness
// polling, and teardown.
//
// Grounded on internal/tools/sandbox/daytona.go's ensureSandbox/
// waitForSandbox retry-poll lifecycle, adapted from the Daytona SaaS API
// to this system's own supervisor/status wire protocol, and on
// container/manager.go for Docker-backed provisioning when no shared
// endpoint is configured.
package sandbox

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Config configures how sandboxes are created.
type Config struct {
	// SharedEndpoint, if set, is a pre-provisioned sandbox base URL reused
	// for every session instead of provisioning a fresh container.
	SharedEndpoint string

	Image       string
	NetworkName string

	ReadinessAttempts int
	ReadinessInterval time.Duration
	HTTPTimeout       time.Duration
}

// DefaultConfig returns the timeouts spec §5 names for sandbox readiness
// and HTTP calls.
func DefaultConfig() Config {
	return Config{
		Image:             "agentexec/sandbox:latest",
		NetworkName:       "agentexec-sandbox",
		ReadinessAttempts: 30,
		ReadinessInterval: 2 * time.Second,
		HTTPTimeout:       600 * time.Second,
	}
}

// Session is a sandbox instance bound to one session: its network
// addresses, and the client used to drive shell/file/browser operations.
type Session struct {
	ID         string
	ShellURL   string
	FileURL    string
	BrowserURL string
	VNCAddr    string
	CreatedAt  time.Time

	containerID string // empty if using a shared endpoint

	Client *Client
}

// Manager creates, caches, and destroys Sessions.
type Manager struct {
	cfg       Config
	provision Provisioner

	mu       sync.RWMutex
	sessions map[string]*Session
}

// Provisioner provisions and tears down the compute backing a fresh
// sandbox. DockerProvisioner is the only implementation; it is injected
// so Manager can be tested without a Docker daemon.
type Provisioner interface {
	Provision(ctx context.Context, name string, cfg Config) (addr string, containerID string, err error)
	Remove(ctx context.Context, containerID string) error
}

// NewManager creates a Manager. provisioner may be nil if cfg.SharedEndpoint
// is always set (no fresh containers will ever be needed).
func NewManager(cfg Config, provisioner Provisioner) *Manager {
	return &Manager{
		cfg:       cfg,
		provision: provisioner,
		sessions:  make(map[string]*Session),
	}
}

// Create starts (or attaches to) a sandbox for sessionID. Calling Create
// again for an id already in Manager's cache returns the cached Session,
// per spec §3's "sandbox_id once set remains stable" invariant.
func (m *Manager) Create(ctx context.Context, sessionID string) (*Session, error) {
	m.mu.RLock()
	if s, ok := m.sessions[sessionID]; ok {
		m.mu.RUnlock()
		return s, nil
	}
	m.mu.RUnlock()

	var sess *Session
	if m.cfg.SharedEndpoint != "" {
		sess = &Session{
			ID:         sessionID,
			ShellURL:   m.cfg.SharedEndpoint,
			FileURL:    m.cfg.SharedEndpoint,
			BrowserURL: m.cfg.SharedEndpoint,
			CreatedAt:  time.Now().UTC(),
		}
	} else {
		if m.provision == nil {
			return nil, fmt.Errorf("sandbox: no shared endpoint configured and no provisioner available")
		}
		name := "agentexec-" + sessionID
		addr, containerID, err := m.provision.Provision(ctx, name, m.cfg)
		if err != nil {
			return nil, fmt.Errorf("sandbox: provision: %w", err)
		}
		sess = &Session{
			ID:          sessionID,
			ShellURL:    addr,
			FileURL:     addr,
			BrowserURL:  addr,
			CreatedAt:   time.Now().UTC(),
			containerID: containerID,
		}
	}
	sess.Client = NewClient(sess.ShellURL, m.cfg.HTTPTimeout)

	m.mu.Lock()
	m.sessions[sessionID] = sess
	m.mu.Unlock()
	return sess, nil
}

// Get resolves a cached sandbox session by id.
func (m *Manager) Get(sessionID string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[sessionID]
	return s, ok
}

// ErrNotReady is returned by EnsureReady when the retry budget is
// exhausted without every supervised service reporting RUNNING.
var ErrNotReady = fmt.Errorf("sandbox: not ready")

// EnsureReady polls the supervisor/status endpoint up to
// cfg.ReadinessAttempts times, cfg.ReadinessInterval apart, until every
// named service reports RUNNING.
func (m *Manager) EnsureReady(ctx context.Context, sess *Session) error {
	attempts := m.cfg.ReadinessAttempts
	if attempts <= 0 {
		attempts = 30
	}
	interval := m.cfg.ReadinessInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		status, err := sess.Client.SupervisorStatus(ctx)
		if err == nil && allRunning(status) {
			return nil
		}
		lastErr = err

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
	if lastErr != nil {
		return fmt.Errorf("%w: %v", ErrNotReady, lastErr)
	}
	return ErrNotReady
}

func allRunning(status map[string]string) bool {
	if len(status) == 0 {
		return false
	}
	for _, state := range status {
		if state != "RUNNING" {
			return false
		}
	}
	return true
}

// Destroy removes a session's backing container (if one was provisioned)
// and evicts it from the cache. Idempotent: destroying an unknown or
// already-destroyed session is not an error.
func (m *Manager) Destroy(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	sess, ok := m.sessions[sessionID]
	if ok {
		delete(m.sessions, sessionID)
	}
	m.mu.Unlock()
	if !ok {
		return nil
	}

	if sess.containerID != "" && m.provision != nil {
		if err := m.provision.Remove(ctx, sess.containerID); err != nil {
			return fmt.Errorf("sandbox: remove container: %w", err)
		}
	}
	return nil
}
