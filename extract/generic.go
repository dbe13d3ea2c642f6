package extract

import (
	"log/slog"
	"net/url"
	"regexp"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
)

const (
	// containerCap bounds how many candidate blocks a single strategy may
	// return, so an adversarial page cannot blow up a run.
	containerCap = 100
	// containerMin is the repetition threshold below which a strategy is
	// rejected: fewer than this and the match is probably not a listing.
	containerMin = 5
)

var (
	reContainerTight = regexp.MustCompile(`(?i)product-item|product-card|item-card|product_item`)
	reContainerLoose = regexp.MustCompile(`(?i)product|item`)
	reTestID         = regexp.MustCompile(`(?i)product`)
)

// Generic is the heuristic extraction strategy. It carries the per-site
// locator overrides; all other state is derived from the page itself.
type Generic struct {
	Overrides Overrides
	Logger    *slog.Logger
}

// NewGeneric creates a Generic extractor. Overrides may be nil.
func NewGeneric(ov Overrides, logger *slog.Logger) *Generic {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generic{Overrides: ov, Logger: logger}
}

// DetectContainers tries, in order: the tight "product item" class
// vocabulary, the loose product|item class match, schema.org Product
// microdata (including data-testid markers), and finally the most frequent
// exact class value among divs. The first strategy reaching the repetition
// threshold wins; none winning yields an empty selection.
func (g *Generic) DetectContainers(doc *goquery.Document) *goquery.Selection {
	candidates := doc.Find("div, article, li")

	steps := []struct {
		name  string
		match func(*goquery.Selection) bool
	}{
		{"class-tight", func(s *goquery.Selection) bool {
			return reContainerTight.MatchString(s.AttrOr("class", ""))
		}},
		{"class-loose", func(s *goquery.Selection) bool {
			return reContainerLoose.MatchString(s.AttrOr("class", ""))
		}},
		{"microdata", func(s *goquery.Selection) bool {
			if v, ok := s.Attr("data-testid"); ok && reTestID.MatchString(v) {
				return true
			}
			return s.AttrOr("itemtype", "") == "https://schema.org/Product"
		}},
	}

	for _, step := range steps {
		found := candidates.FilterFunction(func(_ int, s *goquery.Selection) bool {
			return step.match(s)
		})
		if found.Length() > containerCap {
			found = found.Slice(0, containerCap)
		}
		if found.Length() >= containerMin {
			g.Logger.Debug("extract: containers detected", "strategy", step.name, "count", found.Length())
			return found
		}
	}

	// Fallback: the most repeated exact class value among divs is probably
	// the listing grid.
	counts := make(map[string]int)
	doc.Find("div[class]").Each(func(_ int, s *goquery.Selection) {
		counts[s.AttrOr("class", "")]++
	})

	best, n := "", 0
	for class, count := range counts {
		if count > n {
			best, n = class, count
		}
	}
	if best != "" && n >= containerMin {
		g.Logger.Debug("extract: containers detected", "strategy", "frequency", "class", best, "count", n)
		return doc.Find("div[class]").FilterFunction(func(_ int, s *goquery.Selection) bool {
			return s.AttrOr("class", "") == best
		})
	}

	return doc.Selection.Slice(0, 0)
}

// ExtractFields derives each field independently: an override wins when
// configured for that field, otherwise the structural heuristics apply.
// The block is kept only if at least one identifying field came out
// non-empty (the availability default never counts).
func (g *Generic) ExtractFields(c *goquery.Selection, base *url.URL) (Product, bool) {
	p := Product{
		Brand:  g.fieldText(c, "brand", detectBrand),
		Model:  g.fieldText(c, "model", detectModel),
		Finish: g.fieldText(c, "finish", detectFinish),
		Specs:  g.fieldText(c, "specs", detectSpecs),

		Price:        detectPrice(c),
		URL:          detectURL(c, base),
		Image:        detectImage(c, base),
		Availability: detectAvailability(c),
	}

	ok := p.Brand != "" || p.Model != "" || p.Finish != "" || p.Specs != "" ||
		p.Price != "" || p.URL != "" || p.Image != ""
	return p, ok
}

// fieldText applies the override selector when one is configured for the
// field, falling back to the heuristic otherwise. A configured override
// that matches nothing yields "" — never the heuristic value.
func (g *Generic) fieldText(c *goquery.Selection, field string, detect func(*goquery.Selection) string) string {
	if sel := g.Overrides[field]; sel != "" {
		return overrideText(c, sel)
	}
	return detect(c)
}

// overrideText extracts text via a caller-supplied CSS selector scoped to
// the container. Invalid selectors and missing matches both yield "".
func overrideText(c *goquery.Selection, sel string) string {
	m, err := cascadia.Compile(sel)
	if err != nil {
		return ""
	}
	s := c.FindMatcher(m).First()
	if s.Length() == 0 {
		return ""
	}
	return cleanText(s.Text())
}
