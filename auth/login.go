// Package auth performs scripted-browser form login on sites that gate
// their catalog behind an account.
package auth

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/ecomwatch/collector/extract"
)

// Ordered candidate locators for each login form field. The first one
// confirmed present in the page wins; when none is confirmed the first
// candidate is still attempted, so a slow-rendering form gets one chance.
var (
	usernameCandidates = []string{
		`input[type="email"]`,
		`input[name*="email"]`,
		`input[name*="username"]`,
		`input[id*="email"]`,
		`input[id*="username"]`,
		`#email`, `#username`, `#login`,
	}
	passwordCandidates = []string{
		`input[type="password"]`,
		`input[name*="password"]`,
		`input[id*="password"]`,
		`#password`, `#pass`,
	}
	submitCandidates = []string{
		`button[type="submit"]`,
		`input[type="submit"]`,
		`.login-button`, `.submit-button`,
	}
)

// PageOpener provides a scripted-browser page on the session the rendered
// fetches will reuse afterwards, so the login cookies carry over.
type PageOpener interface {
	Page(ctx context.Context) (*rod.Page, error)
}

// Config configures the login flow.
type Config struct {
	// SettleDelay is the wait after navigation and after submit. Default: 2s.
	SettleDelay time.Duration
	// FieldTimeout bounds how long to wait for a resolved field to appear.
	// Default: 10s.
	FieldTimeout time.Duration
	Logger       *slog.Logger
}

func (c *Config) defaults() {
	if c.SettleDelay <= 0 {
		c.SettleDelay = 2 * time.Second
	}
	if c.FieldTimeout <= 0 {
		c.FieldTimeout = 10 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Client runs form logins on pages opened from a PageOpener.
type Client struct {
	opener PageOpener
	config Config
}

// New creates a login Client.
func New(opener PageOpener, cfg Config) *Client {
	cfg.defaults()
	return &Client{opener: opener, config: cfg}
}

// Login navigates to url, locates the username/password/submit elements —
// each independently, via override or candidate probing — fills the form
// and submits it. A nil return means the sequence completed, not that the
// session is verified as authenticated.
func (c *Client) Login(ctx context.Context, url, username, password string, overrides extract.Overrides) error {
	page, err := c.opener.Page(ctx)
	if err != nil {
		return fmt.Errorf("auth: open page: %w", err)
	}
	defer page.Close()

	if err := page.Timeout(c.config.FieldTimeout).Navigate(url); err != nil {
		return fmt.Errorf("auth: navigate %s: %w", url, err)
	}
	wait(ctx, c.config.SettleDelay)

	present := func(sel string) bool {
		has, _, err := page.Has(sel)
		return err == nil && has
	}

	userSel := resolveField(present, overrides["username"], usernameCandidates)
	passSel := resolveField(present, overrides["password"], passwordCandidates)
	submitSel := resolveField(present, overrides["submit"], submitCandidates)
	c.config.Logger.Debug("auth: resolved locators",
		"username", userSel, "password", passSel, "submit", submitSel)

	if err := c.fill(page, userSel, username); err != nil {
		return fmt.Errorf("auth: username field: %w", err)
	}
	if err := c.fill(page, passSel, password); err != nil {
		return fmt.Errorf("auth: password field: %w", err)
	}

	submit, err := page.Timeout(c.config.FieldTimeout).Element(submitSel)
	if err != nil {
		return fmt.Errorf("auth: submit button %s: %w", submitSel, err)
	}
	if err := submit.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("auth: submit: %w", err)
	}

	wait(ctx, c.config.SettleDelay)
	c.config.Logger.Info("auth: login form submitted", "url", url)
	return nil
}

func (c *Client) fill(page *rod.Page, sel, value string) error {
	el, err := page.Timeout(c.config.FieldTimeout).Element(sel)
	if err != nil {
		return fmt.Errorf("locate %s: %w", sel, err)
	}
	if err := el.Input(value); err != nil {
		return fmt.Errorf("input %s: %w", sel, err)
	}
	return nil
}

// resolveField picks the locator for one form field: a non-empty override
// wins outright; otherwise the first candidate confirmed present, falling
// back to the first candidate.
func resolveField(present func(string) bool, override string, candidates []string) string {
	if override != "" {
		return override
	}
	for _, sel := range candidates {
		if present(sel) {
			return sel
		}
	}
	return candidates[0]
}

func wait(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
