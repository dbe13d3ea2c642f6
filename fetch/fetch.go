// Package fetch resolves a URL to raw markup, either through a single
// static HTTP request or through a persistent scripted-browser session that
// executes page script and drives scroll-triggered lazy loading.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
)

// Mode selects the acquisition path for one fetch.
type Mode int

const (
	// ModeStatic is a single HTTP GET. No JS, no session state.
	ModeStatic Mode = iota
	// ModeRendered drives a headless browser: JS runs, lazy content loads.
	ModeRendered
)

// ErrStatus reports a non-2xx response in static mode.
var ErrStatus = errors.New("fetch: unexpected status")

// Config configures a Fetcher.
type Config struct {
	// Timeout applies to the whole static request. Default: 30s.
	Timeout time.Duration

	// UserAgent sent with static requests. Default: a current desktop Chrome.
	UserAgent string

	// MaxBytes caps the static response body. Default: 10MB.
	MaxBytes int64

	// SettleDelay is how long a rendered page gets to finish loading after
	// navigation and after the final scroll. Default: 3s.
	SettleDelay time.Duration

	// ScrollDelay is the pause after each scroll step. Default: 2s.
	ScrollDelay time.Duration

	// MaxScrolls bounds the scroll-to-bottom steps. Default: 3.
	MaxScrolls int

	// ControlURL connects to an existing browser instead of launching one.
	// Used by tests; empty in production.
	ControlURL string

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.UserAgent == "" {
		c.UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	}
	if c.MaxBytes <= 0 {
		c.MaxBytes = 10 << 20
	}
	if c.SettleDelay <= 0 {
		c.SettleDelay = 3 * time.Second
	}
	if c.ScrollDelay <= 0 {
		c.ScrollDelay = 2 * time.Second
	}
	if c.MaxScrolls <= 0 {
		c.MaxScrolls = 3
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Fetcher resolves URLs to markup. The zero browser session is created
// lazily on the first rendered fetch and persists across calls until
// Release. A Fetcher is intended for one site run at a time; the browser
// session is not safe for concurrent rendered fetches.
type Fetcher struct {
	config Config
	client *http.Client

	mu      sync.Mutex
	browser *rod.Browser
	lnch    *launcher.Launcher
}

// New creates a Fetcher. No browser is launched until a rendered fetch
// needs one.
func New(cfg Config) *Fetcher {
	cfg.defaults()
	return &Fetcher{
		config: cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// Fetch resolves url to markup in the given mode. Failures are returned to
// the caller without retry; the pagination crawler treats them as an empty
// page.
func (f *Fetcher) Fetch(ctx context.Context, url string, mode Mode) (string, error) {
	if mode == ModeRendered {
		return f.fetchRendered(ctx, url)
	}
	return f.fetchStatic(ctx, url)
}

func (f *Fetcher) fetchStatic(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("fetch: new request: %w", err)
	}
	req.Header.Set("User-Agent", f.config.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "fr-FR,fr;q=0.8,en-US,en;q=0.5")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch: do: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("fetch: %s: http %d: %w", url, resp.StatusCode, ErrStatus)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.config.MaxBytes))
	if err != nil {
		return "", fmt.Errorf("fetch: read body: %w", err)
	}

	f.config.Logger.Debug("fetch: static", "url", url, "status", resp.StatusCode, "size", len(body))
	return string(body), nil
}
