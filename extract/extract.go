// Package extract locates repeating product blocks in catalog markup and
// derives typed fields per block, without site-specific configuration.
//
// Two strategies implement the Extractor interface: Generic applies layered
// structural heuristics to arbitrary markup, PrestaShop trades heuristics
// for the fixed DOM shape of a known catalog platform.
package extract

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Extractor is the capability interface shared by the generic heuristic
// engine and the fixed-template platform adapter. DetectContainers returns
// the candidate product blocks of a parsed page; ExtractFields derives one
// Product from a single block, reporting ok=false when the block should be
// discarded.
type Extractor interface {
	DetectContainers(doc *goquery.Document) *goquery.Selection
	ExtractFields(container *goquery.Selection, base *url.URL) (Product, bool)
}

// Extract parses markup, detects containers via the given Extractor and
// returns one Product per accepted container. A page where no repeating
// structure is found yields an empty slice, not an error; only malformed
// input that cannot be parsed at all fails.
func Extract(e Extractor, markup, baseURL string) ([]Product, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("extract: parse: %w", err)
	}

	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("extract: base url: %w", err)
	}

	now := time.Now()

	var products []Product
	e.DetectContainers(doc).Each(func(_ int, container *goquery.Selection) {
		p, ok := e.ExtractFields(container, base)
		if !ok {
			return
		}
		p.CollectedAt = now
		products = append(products, p)
	})

	return products, nil
}

// resolveRef resolves href/src attribute values against the page URL.
// Unparseable references resolve to "".
func resolveRef(base *url.URL, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	u, err := base.Parse(ref)
	if err != nil {
		return ""
	}
	return u.String()
}

// cleanText collapses inner whitespace the way browsers render it.
func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
