// Package crawl drives fetch and extraction across successive catalog
// pages until the catalog is exhausted or the page cap is reached.
package crawl

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ecomwatch/collector/extract"
	"github.com/ecomwatch/collector/fetch"
)

// Fetcher is the slice of fetch.Fetcher the crawler needs.
type Fetcher interface {
	Fetch(ctx context.Context, url string, mode fetch.Mode) (string, error)
}

// Config configures a Crawler.
type Config struct {
	// Mode is the fetch mode for every page of the crawl.
	Mode fetch.Mode
	// Delay is the pause between successive pages. Default: 2s.
	Delay  time.Duration
	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.Delay <= 0 {
		c.Delay = 2 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Crawler paginates one catalog with one extraction strategy.
type Crawler struct {
	fetcher   Fetcher
	extractor extract.Extractor
	config    Config
}

// New creates a Crawler.
func New(f Fetcher, e extract.Extractor, cfg Config) *Crawler {
	cfg.defaults()
	return &Crawler{fetcher: f, extractor: e, config: cfg}
}

// Crawl walks pages 1..maxPages of the catalog and returns the accumulated
// products. The first page that yields zero records ends the crawl: that is
// how catalog exhaustion looks, and deliberately also how a transient fetch
// failure looks — there is no lookahead. The error is non-nil only when the
// context is cancelled mid-crawl; everything already collected is still
// returned.
func (c *Crawler) Crawl(ctx context.Context, catalogURL string, maxPages int) ([]extract.Product, error) {
	log := c.config.Logger
	var all []extract.Product

	for page := 1; page <= maxPages; page++ {
		if err := ctx.Err(); err != nil {
			return all, err
		}

		pageURL := PageURL(catalogURL, page)
		log.Info("crawl: page", "page", page, "max", maxPages, "url", pageURL)

		markup, err := c.fetcher.Fetch(ctx, pageURL, c.config.Mode)
		if err != nil {
			// A failed fetch is an empty page, which ends the crawl below.
			log.Warn("crawl: fetch failed", "url", pageURL, "error", err)
			markup = ""
		}

		products, err := extract.Extract(c.extractor, markup, pageURL)
		if err != nil {
			log.Warn("crawl: extract failed", "url", pageURL, "error", err)
			products = nil
		}

		if len(products) == 0 {
			log.Info("crawl: empty page, stopping", "page", page)
			break
		}

		all = append(all, products...)
		log.Info("crawl: page done", "page", page, "products", len(products), "total", len(all))

		if page < maxPages {
			pause(ctx, c.config.Delay)
		}
	}

	return all, nil
}

// PageURL computes the URL of a catalog page: page 1 is the catalog URL
// verbatim, later pages append page=N with the separator the URL calls for.
func PageURL(catalogURL string, page int) string {
	if page <= 1 {
		return catalogURL
	}
	sep := "?"
	if strings.Contains(catalogURL, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%spage=%d", catalogURL, sep, page)
}

func pause(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
