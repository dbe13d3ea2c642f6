package fetch

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/stealth"
)

// session returns the shared browser, launching it on first use.
func (f *Fetcher) session() (*rod.Browser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.browser != nil {
		return f.browser, nil
	}

	wsURL := f.config.ControlURL
	if wsURL == "" {
		l := launcher.New().
			Headless(true).
			NoSandbox(true).
			Set("disable-dev-shm-usage").
			Set("disable-blink-features", "AutomationControlled")

		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("fetch: launch browser: %w", err)
		}
		f.lnch = l
		wsURL = u
	}

	b := rod.New().ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		return nil, fmt.Errorf("fetch: connect browser: %w", err)
	}

	f.browser = b
	f.config.Logger.Info("fetch: browser session opened")
	return b, nil
}

// Page opens a fresh stealth page on the session browser. The caller owns
// the page and must close it. The login flow uses this to drive forms on
// the same session the rendered fetches will reuse.
func (f *Fetcher) Page(ctx context.Context) (*rod.Page, error) {
	b, err := f.session()
	if err != nil {
		return nil, err
	}
	page, err := stealth.Page(b)
	if err != nil {
		return nil, fmt.Errorf("fetch: new page: %w", err)
	}
	return page.Context(ctx), nil
}

// fetchRendered navigates a session page, lets it settle, performs bounded
// scroll-to-bottom steps for lazy-loaded content and returns the final DOM.
func (f *Fetcher) fetchRendered(ctx context.Context, url string) (string, error) {
	page, err := f.Page(ctx)
	if err != nil {
		return "", err
	}
	defer page.Close()

	if err := page.Timeout(f.config.Timeout).Navigate(url); err != nil {
		return "", fmt.Errorf("fetch: navigate %s: %w", url, err)
	}
	if err := page.Timeout(f.config.Timeout).WaitLoad(); err != nil {
		return "", fmt.Errorf("fetch: wait load %s: %w", url, err)
	}
	sleep(ctx, f.config.SettleDelay)

	if err := f.scrollToBottom(ctx, page); err != nil {
		// Scroll failures degrade to whatever already rendered.
		f.config.Logger.Warn("fetch: scroll", "url", url, "error", err)
	}

	html, err := page.HTML()
	if err != nil {
		return "", fmt.Errorf("fetch: page html: %w", err)
	}

	f.config.Logger.Debug("fetch: rendered", "url", url, "size", len(html))
	return html, nil
}

// scrollToBottom scrolls at most MaxScrolls times, stopping early once the
// page height stops growing (no more lazy content).
func (f *Fetcher) scrollToBottom(ctx context.Context, page *rod.Page) error {
	height, err := pageHeight(page)
	if err != nil {
		return err
	}

	for i := 0; i < f.config.MaxScrolls; i++ {
		if _, err := page.Eval(`() => window.scrollTo(0, document.body.scrollHeight)`); err != nil {
			return fmt.Errorf("scroll: %w", err)
		}
		sleep(ctx, f.config.ScrollDelay)

		next, err := pageHeight(page)
		if err != nil {
			return err
		}
		if next == height {
			break
		}
		height = next
	}
	return nil
}

func pageHeight(page *rod.Page) (int, error) {
	obj, err := page.Eval(`() => document.body.scrollHeight`)
	if err != nil {
		return 0, fmt.Errorf("scroll height: %w", err)
	}
	return obj.Value.Int(), nil
}

// Release closes the browser session and the launched process. Idempotent:
// calling it on a Fetcher that never opened a session, or twice, is a no-op.
func (f *Fetcher) Release() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.browser != nil {
		if err := f.browser.Close(); err != nil {
			f.config.Logger.Warn("fetch: close browser", "error", err)
		}
		f.browser = nil
		f.config.Logger.Info("fetch: browser session released")
	}
	if f.lnch != nil {
		f.lnch.Kill()
		f.lnch = nil
	}
}

// sleep waits d or until ctx is cancelled, whichever comes first.
func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
