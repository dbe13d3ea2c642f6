package extract

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Structural signatures for heuristic field detection. Each field probes an
// ordered list of class/attribute patterns scoped to the tags that sites
// typically use for it.
var (
	reBrandClass  = regexp.MustCompile(`(?i)brand|manufacturer|marque`)
	reModelClass  = regexp.MustCompile(`(?i)product-name|product-title|title|name|model`)
	reFinishClass = regexp.MustCompile(`(?i)variant|finish|color|colour|size|option`)
	reSpecsClass  = regexp.MustCompile(`(?i)spec|feature|characteristic|description|detail`)
	rePriceClass  = regexp.MustCompile(`(?i)price|prix|cost`)
	reAvailClass  = regexp.MustCompile(`(?i)stock|availability|disponibilit`)

	// rePrice requires an actual currency symbol next to the digits so an
	// unrelated number (rating, count) is never captured as a price.
	rePrice = regexp.MustCompile(`[\d\s]+[,.]?\d*\s*[€$£¥]`)
)

const (
	finishMaxLen = 50
	specMinLen   = 10
	specMaxLen   = 500
	specMax      = 3
	specScanCap  = 5
)

// matchFn reports whether a candidate element carries a field's signature.
type matchFn func(*goquery.Selection) bool

func classMatches(re *regexp.Regexp) matchFn {
	return func(s *goquery.Selection) bool { return re.MatchString(s.AttrOr("class", "")) }
}

func hasAttr(name string) matchFn {
	return func(s *goquery.Selection) bool { _, ok := s.Attr(name); return ok }
}

func attrEquals(name, val string) matchFn {
	return func(s *goquery.Selection) bool { return s.AttrOr(name, "") == val }
}

// firstMatch returns the first descendant of c among tags satisfying match.
func firstMatch(c *goquery.Selection, tags string, match matchFn) *goquery.Selection {
	return c.Find(tags).FilterFunction(func(_ int, s *goquery.Selection) bool {
		return match(s)
	}).First()
}

// allMatches returns every descendant of c among tags satisfying match,
// capped at limit (0 = no cap).
func allMatches(c *goquery.Selection, tags string, match matchFn, limit int) *goquery.Selection {
	found := c.Find(tags).FilterFunction(func(_ int, s *goquery.Selection) bool {
		return match(s)
	})
	if limit > 0 && found.Length() > limit {
		found = found.Slice(0, limit)
	}
	return found
}

func detectBrand(c *goquery.Selection) string {
	const tags = "span, div, p, a"
	for _, m := range []matchFn{
		classMatches(reBrandClass),
		hasAttr("data-brand"),
		attrEquals("itemprop", "brand"),
	} {
		if s := firstMatch(c, tags, m); s.Length() > 0 {
			return cleanText(s.Text())
		}
	}
	return ""
}

func detectModel(c *goquery.Selection) string {
	const tags = "h1, h2, h3, h4, a, span"
	for _, m := range []matchFn{
		classMatches(reModelClass),
		attrEquals("itemprop", "name"),
		hasAttr("data-name"),
	} {
		if s := firstMatch(c, tags, m); s.Length() > 0 {
			return cleanText(s.Text())
		}
	}
	// Fallback: the first heading or link is usually the title.
	if s := c.Find("h1, h2, h3, h4, a").First(); s.Length() > 0 {
		return cleanText(s.Text())
	}
	return ""
}

func detectFinish(c *goquery.Selection) string {
	const tags = "span, div, li"
	var finishes []string
	for _, m := range []matchFn{
		classMatches(reFinishClass),
		hasAttr("data-variant"),
	} {
		allMatches(c, tags, m, 0).Each(func(_ int, s *goquery.Selection) {
			text := cleanText(s.Text())
			if text != "" && len(text) < finishMaxLen {
				finishes = append(finishes, text)
			}
		})
	}
	return strings.Join(finishes, ", ")
}

func detectSpecs(c *goquery.Selection) string {
	const tags = "ul, div, p, span"
	var specs []string
	for _, m := range []matchFn{
		classMatches(reSpecsClass),
		attrEquals("itemprop", "description"),
	} {
		allMatches(c, tags, m, specScanCap).Each(func(_ int, s *goquery.Selection) {
			text := cleanText(s.Text())
			if len(text) > specMinLen && len(text) < specMaxLen {
				specs = append(specs, text)
			}
		})
	}
	if len(specs) > specMax {
		specs = specs[:specMax]
	}
	return strings.Join(specs, " | ")
}

// detectPrice locates a price-flavored element, then requires the
// numeric-currency pattern to match over its text. An element whose text
// carries no currency does not stop the probe — the next signature is tried.
func detectPrice(c *goquery.Selection) string {
	const tags = "span, div, p"
	for _, m := range []matchFn{
		classMatches(rePriceClass),
		attrEquals("itemprop", "price"),
		hasAttr("data-price"),
	} {
		s := firstMatch(c, tags, m)
		if s.Length() == 0 {
			continue
		}
		if match := rePrice.FindString(cleanText(s.Text())); match != "" {
			return strings.TrimSpace(match)
		}
	}
	return ""
}

func detectURL(c *goquery.Selection, base *url.URL) string {
	if s := c.Find("a[href]").First(); s.Length() > 0 {
		return resolveRef(base, s.AttrOr("href", ""))
	}
	return ""
}

func detectImage(c *goquery.Selection, base *url.URL) string {
	if s := c.Find("img[src]").First(); s.Length() > 0 {
		return resolveRef(base, s.AttrOr("src", ""))
	}
	return ""
}

// detectAvailability tries structural signatures first, then a bilingual
// keyword scan over the whole block text.
func detectAvailability(c *goquery.Selection) string {
	const tags = "span, div, p"
	for _, m := range []matchFn{
		classMatches(reAvailClass),
		attrEquals("itemprop", "availability"),
	} {
		if s := firstMatch(c, tags, m); s.Length() > 0 {
			return cleanText(s.Text())
		}
	}

	text := strings.ToLower(c.Text())
	switch {
	case strings.Contains(text, "en stock"),
		strings.Contains(text, "available"),
		strings.Contains(text, "disponible"):
		return "En stock"
	case strings.Contains(text, "rupture"),
		strings.Contains(text, "out of stock"):
		return "Rupture de stock"
	}
	return "Inconnu"
}
