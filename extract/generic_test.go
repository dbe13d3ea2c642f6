package extract

import (
	"fmt"
	"strings"
	"testing"
)

func extractAll(t *testing.T, e Extractor, markup, base string) []Product {
	t.Helper()
	products, err := Extract(e, markup, base)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	return products
}

// listing builds a page with n repeated blocks using the given block template.
func listing(n int, block string) string {
	var b strings.Builder
	b.WriteString("<html><body>")
	for i := 0; i < n; i++ {
		b.WriteString(strings.ReplaceAll(block, "{i}", fmt.Sprintf("%d", i)))
	}
	b.WriteString("</body></html>")
	return b.String()
}

func TestDetectContainersStrategies(t *testing.T) {
	tests := []struct {
		name   string
		markup string
		want   int
	}{
		{
			"tight class vocabulary",
			listing(6, `<div class="product-card"><h3>Item {i}</h3></div>`),
			6,
		},
		{
			"loose class match",
			listing(5, `<li class="catalog-item"><a href="/p{i}">Item {i}</a></li>`),
			5,
		},
		{
			"schema.org microdata",
			listing(5, `<div itemtype="https://schema.org/Product"><a href="/p{i}">Item {i}</a></div>`),
			5,
		},
		{
			"data-testid marker",
			listing(5, `<div data-testid="product-tile"><a href="/p{i}">Item {i}</a></div>`),
			5,
		},
		{
			"frequency fallback",
			listing(7, `<div class="c3x"><a href="/p{i}">Item {i}</a></div>`),
			7,
		},
		{
			"below repetition threshold",
			listing(4, `<div class="product-card"><h3>Item {i}</h3></div>`),
			0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := extractAll(t, NewGeneric(nil, nil), tt.markup, "https://shop.example/cat")
			if len(got) != tt.want {
				t.Errorf("products: got %d, want %d", len(got), tt.want)
			}
		})
	}
}

func TestNoContainersIsNotAnError(t *testing.T) {
	// WHAT: markup with no repeating structure yields an empty slice, nil error.
	// WHY: a heuristic extractor must degrade, not fail, on arbitrary pages.
	products, err := Extract(NewGeneric(nil, nil), "<html><body><p>nothing here</p></body></html>", "https://a.example")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(products) != 0 {
		t.Errorf("products: got %d, want 0", len(products))
	}
}

func TestContainerCap(t *testing.T) {
	got := extractAll(t, NewGeneric(nil, nil),
		listing(150, `<div class="product-item"><h3>Item {i}</h3></div>`),
		"https://shop.example")
	if len(got) != containerCap {
		t.Errorf("products: got %d, want cap %d", len(got), containerCap)
	}
}

func TestFieldHeuristics(t *testing.T) {
	markup := listing(6, `
		<div class="product-card">
			<span class="brand">Grohe</span>
			<h3 class="product-title">Mitigeur {i}</h3>
			<span class="color">Chrome</span>
			<span class="variant">Brossé</span>
			<p class="description">Mitigeur thermostatique avec limiteur de température intégré</p>
			<span class="price">Prix: 129,99 €</span>
			<a href="/produit/{i}"><img src="/img/{i}.jpg"></a>
			<span class="stock">En stock</span>
		</div>`)

	products := extractAll(t, NewGeneric(nil, nil), markup, "https://shop.example/cat?sort=asc")
	if len(products) != 6 {
		t.Fatalf("products: got %d, want 6", len(products))
	}

	p := products[0]
	if p.Brand != "Grohe" {
		t.Errorf("brand: got %q", p.Brand)
	}
	if p.Model != "Mitigeur 0" {
		t.Errorf("model: got %q", p.Model)
	}
	if p.Finish != "Chrome, Brossé" {
		t.Errorf("finish: got %q", p.Finish)
	}
	if !strings.Contains(p.Specs, "thermostatique") {
		t.Errorf("specs: got %q", p.Specs)
	}
	if p.Price != "129,99 €" {
		t.Errorf("price: got %q, want %q", p.Price, "129,99 €")
	}
	if p.URL != "https://shop.example/produit/0" {
		t.Errorf("url: got %q", p.URL)
	}
	if p.Image != "https://shop.example/img/0.jpg" {
		t.Errorf("image: got %q", p.Image)
	}
	if p.Availability != "En stock" {
		t.Errorf("availability: got %q", p.Availability)
	}
	if p.CollectedAt.IsZero() {
		t.Error("collected_at not set")
	}
}

func TestMissingFieldIsEmptyNotError(t *testing.T) {
	// A block carrying only a title still produces a record; every other
	// field stays "".
	markup := listing(5, `<div class="product-item"><h3>Lone title {i}</h3></div>`)
	products := extractAll(t, NewGeneric(nil, nil), markup, "https://a.example")
	if len(products) != 5 {
		t.Fatalf("products: got %d, want 5", len(products))
	}
	p := products[0]
	if p.Model != "Lone title 0" {
		t.Errorf("model: got %q", p.Model)
	}
	if p.Brand != "" || p.Price != "" || p.URL != "" || p.Image != "" {
		t.Errorf("expected empty fields, got %+v", p)
	}
	if p.Availability != "Inconnu" {
		t.Errorf("availability: got %q, want Inconnu", p.Availability)
	}
}

func TestPriceRequiresCurrency(t *testing.T) {
	tests := []struct {
		name  string
		price string
		want  string
	}{
		{"french format", "Prix: 129,99 €", "129,99 €"},
		{"dollar", "$ 45.00", ""}, // symbol before digits does not match
		{"trailing dollar", "45.00$", "45.00$"},
		{"no currency", "129,99", ""},
		{"rating is not a price", "4,5 étoiles", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			markup := listing(5, fmt.Sprintf(
				`<div class="product-item"><h3>Item {i}</h3><span class="price">%s</span></div>`, tt.price))
			products := extractAll(t, NewGeneric(nil, nil), markup, "https://a.example")
			if len(products) == 0 {
				t.Fatal("no products")
			}
			if got := products[0].Price; got != tt.want {
				t.Errorf("price: got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestModelFallbackToFirstHeading(t *testing.T) {
	markup := listing(5, `<div class="product-item"><h2>Heading {i}</h2></div>`)
	products := extractAll(t, NewGeneric(nil, nil), markup, "https://a.example")
	if products[0].Model != "Heading 0" {
		t.Errorf("model: got %q", products[0].Model)
	}
}

func TestOverrides(t *testing.T) {
	markup := listing(5, `
		<div class="product-item">
			<span class="fabricant">Hansgrohe</span>
			<span class="brand">WrongBrand</span>
			<h3>Item {i}</h3>
		</div>`)

	t.Run("override wins over heuristic", func(t *testing.T) {
		e := NewGeneric(Overrides{"brand": ".fabricant"}, nil)
		products := extractAll(t, e, markup, "https://a.example")
		if products[0].Brand != "Hansgrohe" {
			t.Errorf("brand: got %q, want Hansgrohe", products[0].Brand)
		}
	})

	t.Run("override matching nothing yields empty", func(t *testing.T) {
		e := NewGeneric(Overrides{"brand": ".does-not-exist"}, nil)
		products := extractAll(t, e, markup, "https://a.example")
		if products[0].Brand != "" {
			t.Errorf("brand: got %q, want empty", products[0].Brand)
		}
	})

	t.Run("invalid override selector yields empty", func(t *testing.T) {
		e := NewGeneric(Overrides{"brand": "[[["}, nil)
		products := extractAll(t, e, markup, "https://a.example")
		if products[0].Brand != "" {
			t.Errorf("brand: got %q, want empty", products[0].Brand)
		}
	})

	t.Run("other fields keep heuristics", func(t *testing.T) {
		e := NewGeneric(Overrides{"brand": ".fabricant"}, nil)
		products := extractAll(t, e, markup, "https://a.example")
		if products[0].Model != "Item 0" {
			t.Errorf("model: got %q", products[0].Model)
		}
	})
}

func TestFinishAndSpecsBounds(t *testing.T) {
	long := strings.Repeat("x", 60)
	markup := listing(5, fmt.Sprintf(`
		<div class="product-item">
			<h3>Item {i}</h3>
			<span class="color">Noir</span>
			<span class="color">%s</span>
			<p class="detail">First spec long enough to pass</p>
			<p class="detail">Second spec long enough to pass</p>
			<p class="detail">Third spec long enough to pass</p>
			<p class="detail">Fourth spec long enough to pass</p>
			<p class="detail">short</p>
		</div>`, long))

	products := extractAll(t, NewGeneric(nil, nil), markup, "https://a.example")
	p := products[0]
	if p.Finish != "Noir" {
		t.Errorf("finish: got %q, want values over %d chars dropped", p.Finish, finishMaxLen)
	}
	if got := strings.Count(p.Specs, " | "); got != specMax-1 {
		t.Errorf("specs: got %d separators, want %d: %q", got, specMax-1, p.Specs)
	}
	if strings.Contains(p.Specs, "short") {
		t.Errorf("specs picked up a value under the minimum length: %q", p.Specs)
	}
}
