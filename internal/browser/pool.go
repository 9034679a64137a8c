// Package browser implements the headless-browser capability surface: one
// pooled Playwright page per sandbox, with markdown extraction, stable
// interactive-element indexing, and the console/VNC remote-control action
// set.
//
// Grounded on internal/tools/browser/pool.go (instance pooling, user
// agent rotation, remote-vs-launched Chromium) and browser.go (the
// Toolbox action dispatch shape), generalized from that teacher's fixed
// nine-action CSS-selector API to this engine's richer index/XY-addressed
// action set.
package browser

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
)

// PoolConfig configures the browser pool.
type PoolConfig struct {
	MaxInstances   int
	Timeout        time.Duration
	Headless       bool
	ViewportWidth  int
	ViewportHeight int
	RemoteURL      string // ws:// or http(s):// remote-control endpoint
}

// Pool manages reusable Playwright browser instances, one per sandbox
// session in practice since each Task owns exactly one browser that
// reconnects lazily on first use.
type Pool struct {
	config    PoolConfig
	instances chan *Instance

	mu      sync.Mutex
	closed  bool
	pw      *playwright.Playwright
	created int
	uaIndex int
}

// NewPool starts the Playwright driver and returns an empty pool.
func NewPool(config PoolConfig) (*Pool, error) {
	if config.MaxInstances == 0 {
		config.MaxInstances = 5
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.ViewportWidth == 0 {
		config.ViewportWidth = 1280
	}
	if config.ViewportHeight == 0 {
		config.ViewportHeight = 800
	}

	if strings.TrimSpace(config.RemoteURL) == "" {
		if err := playwright.Install(&playwright.RunOptions{Verbose: false}); err != nil {
			return &Pool{config: config, instances: make(chan *Instance, config.MaxInstances)}, nil
		}
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("browser: start playwright: %w", err)
	}
	return &Pool{config: config, instances: make(chan *Instance, config.MaxInstances), pw: pw}, nil
}

// connectBackoffSchedule is the 5-attempt, cap-10s exponential backoff
// spec §5 names for browser connect.
func connectBackoffSchedule() []time.Duration {
	return []time.Duration{0, 1 * time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second}
}

// Acquire obtains an Instance, retrying a remote connect up to 5 times
// with backoff capped at 10s, then creating a fresh launched browser if
// no remote is configured and the pool has capacity, else blocking for a
// released instance.
func (p *Pool) Acquire(ctx context.Context) (*Instance, error) {
	for {
		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			return nil, fmt.Errorf("browser: pool is closed")
		}
		select {
		case inst := <-p.instances:
			p.mu.Unlock()
			return inst, nil
		default:
		}
		if p.created < p.config.MaxInstances {
			p.created++
			p.mu.Unlock()
			inst, err := p.createInstance(ctx)
			if err != nil {
				p.mu.Lock()
				p.created--
				p.mu.Unlock()
				return nil, err
			}
			return inst, nil
		}
		p.mu.Unlock()

		select {
		case inst := <-p.instances:
			return inst, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Release returns an instance to the pool, or tears it down if the pool
// is full or closed.
func (p *Pool) Release(inst *Instance) {
	if inst == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		inst.cleanup()
		p.created--
		return
	}
	select {
	case p.instances <- inst:
	default:
		inst.cleanup()
		p.created--
	}
}

// Close tears down every pooled instance and stops Playwright.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	close(p.instances)
	for inst := range p.instances {
		inst.cleanup()
	}
	p.created = 0
	if p.pw != nil {
		return p.pw.Stop()
	}
	return nil
}

func (p *Pool) createInstance(ctx context.Context) (*Instance, error) {
	if p.pw == nil {
		return nil, fmt.Errorf("browser: playwright not initialized")
	}

	browser, err := p.connectOrLaunch(ctx)
	if err != nil {
		return nil, err
	}

	bctx, err := browser.NewContext(playwright.BrowserNewContextOptions{
		UserAgent:         playwright.String(p.nextUserAgent()),
		Viewport:          &playwright.Size{Width: p.config.ViewportWidth, Height: p.config.ViewportHeight},
		AcceptDownloads:   playwright.Bool(true),
		IgnoreHttpsErrors: playwright.Bool(true),
	})
	if err != nil {
		browser.Close()
		return nil, fmt.Errorf("browser: new context: %w", err)
	}

	page, err := bctx.NewPage()
	if err != nil {
		bctx.Close()
		browser.Close()
		return nil, fmt.Errorf("browser: new page: %w", err)
	}
	page.SetDefaultTimeout(float64(p.config.Timeout.Milliseconds()))

	return &Instance{
		browser: browser,
		ctx:     bctx,
		page:    page,
		id:      fmt.Sprintf("browser-%d", time.Now().UnixNano()),
	}, nil
}

func (p *Pool) connectOrLaunch(ctx context.Context) (playwright.Browser, error) {
	remote := normalizeRemoteURL(p.config.RemoteURL)
	if remote == "" {
		browser, err := p.pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
			Headless: playwright.Bool(p.config.Headless),
			Timeout:  playwright.Float(float64(p.config.Timeout.Milliseconds())),
		})
		if err != nil {
			return nil, fmt.Errorf("browser: launch: %w", err)
		}
		return browser, nil
	}

	var lastErr error
	for _, wait := range connectBackoffSchedule() {
		if wait > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
		}
		browser, err := p.pw.Chromium.Connect(remote)
		if err == nil {
			return browser, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("browser: connect to %s after 5 attempts: %w", remote, lastErr)
}

func normalizeRemoteURL(raw string) string {
	value := strings.TrimSpace(raw)
	switch {
	case value == "":
		return ""
	case strings.HasPrefix(value, "http://"):
		return "ws://" + strings.TrimPrefix(value, "http://")
	case strings.HasPrefix(value, "https://"):
		return "wss://" + strings.TrimPrefix(value, "https://")
	default:
		return value
	}
}

func (p *Pool) nextUserAgent() string {
	agents := []string{
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
		"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	ua := agents[p.uaIndex%len(agents)]
	p.uaIndex++
	return ua
}
