package extract

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// PrestaShop is the fixed-template extraction strategy for catalogs built
// on the PrestaShop storefront. It skips all heuristics: the container and
// child locators are the platform's standard theme markup. The adapter is
// stateful — it remembers every product URL it has emitted so the same
// product listed on several pages of one run is collected once.
type PrestaShop struct {
	seen map[string]bool
}

// NewPrestaShop creates a PrestaShop extractor with an empty dedup set.
// Create one per run: the URL dedup is scoped to the adapter instance.
func NewPrestaShop() *PrestaShop {
	return &PrestaShop{seen: make(map[string]bool)}
}

// DetectContainers returns the standard PrestaShop product tiles.
func (p *PrestaShop) DetectContainers(doc *goquery.Document) *goquery.Selection {
	return doc.Find("article.product-miniature")
}

// ExtractFields reads the fixed child locators of one tile. A tile without
// a product link, with a title shorter than 3 characters, or whose URL was
// already emitted this run is dropped.
func (p *PrestaShop) ExtractFields(c *goquery.Selection, base *url.URL) (Product, bool) {
	link := c.Find("a.product-thumbnail[href]").First()
	if link.Length() == 0 {
		return Product{}, false
	}
	productURL := resolveRef(base, link.AttrOr("href", ""))
	if productURL == "" || p.seen[productURL] {
		return Product{}, false
	}

	title := firstText(c, "h3.h3", "h2.h3", "a.product-title")
	if len(title) < 3 {
		return Product{}, false
	}

	specs := cleanText(c.Find("div.product-description-short").First().Text())
	// Cap in runes, not bytes: slicing mid-rune would corrupt accented text.
	if runes := []rune(specs); len(runes) > 200 {
		specs = string(runes[:200])
	}

	image := ""
	if img := c.Find("img").First(); img.Length() > 0 {
		// Lazy-loaded themes put the real source in data-src.
		src := img.AttrOr("data-src", img.AttrOr("src", ""))
		image = resolveRef(base, src)
	}

	p.seen[productURL] = true

	return Product{
		Model:        title,
		Brand:        brandFromTitle(title),
		Price:        cleanText(c.Find("span.price").First().Text()),
		URL:          productURL,
		Image:        image,
		Specs:        specs,
		Availability: "En stock",
	}, true
}

// firstText returns the text of the first selector that matches anything.
func firstText(c *goquery.Selection, selectors ...string) string {
	for _, sel := range selectors {
		if s := c.Find(sel).First(); s.Length() > 0 {
			return cleanText(s.Text())
		}
	}
	return ""
}

// brandFromTitle guesses the brand as the first title token when it looks
// like a brand name (all-caps or short). Low precision, kept deliberately:
// PrestaShop tiles carry no structured brand field.
func brandFromTitle(title string) string {
	words := strings.Fields(title)
	if len(words) == 0 {
		return ""
	}
	first := words[0]
	if first == strings.ToUpper(first) || len(first) < 15 {
		return first
	}
	return ""
}
