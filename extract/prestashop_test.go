package extract

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"
)

func tile(href, title, price string) string {
	return fmt.Sprintf(`
		<article class="product-miniature">
			<a class="product-thumbnail" href=%q><img data-src="/img/lazy.jpg" src="/img/placeholder.gif"></a>
			<h3 class="h3">%s</h3>
			<span class="price">%s</span>
			<div class="product-description-short">Mitigeur de cuisine avec douchette</div>
		</article>`, href, title, price)
}

func page(tiles ...string) string {
	return "<html><body>" + strings.Join(tiles, "\n") + "</body></html>"
}

func TestPrestaShopExtract(t *testing.T) {
	e := NewPrestaShop()
	products := extractAll(t, e, page(tile("/mitigeur-chrome", "GROHE Mitigeur Essence", "249,00 €")),
		"https://boutique.example/robinetterie")

	if len(products) != 1 {
		t.Fatalf("products: got %d, want 1", len(products))
	}
	p := products[0]
	if p.Model != "GROHE Mitigeur Essence" {
		t.Errorf("model: got %q", p.Model)
	}
	if p.Brand != "GROHE" {
		t.Errorf("brand: got %q", p.Brand)
	}
	if p.Price != "249,00 €" {
		t.Errorf("price: got %q", p.Price)
	}
	if p.URL != "https://boutique.example/mitigeur-chrome" {
		t.Errorf("url: got %q", p.URL)
	}
	if p.Image != "https://boutique.example/img/lazy.jpg" {
		t.Errorf("image should prefer data-src: got %q", p.Image)
	}
	if p.Availability != "En stock" {
		t.Errorf("availability: got %q", p.Availability)
	}
	if !strings.Contains(p.Specs, "douchette") {
		t.Errorf("specs: got %q", p.Specs)
	}
}

func TestPrestaShopDedupAcrossPages(t *testing.T) {
	// WHAT: the same product URL on two successive pages is emitted once.
	// WHY: PrestaShop repeats featured items; dedup is scoped to one run.
	e := NewPrestaShop()
	base := "https://boutique.example/cat"

	page1 := page(tile("/p1", "GROHE Mitigeur", "10 €"), tile("/p2", "HANSGROHE Douche", "20 €"))
	page2 := page(tile("/p2", "HANSGROHE Douche", "20 €"), tile("/p3", "DELTA Robinet", "30 €"))

	first := extractAll(t, e, page1, base)
	second := extractAll(t, e, page2, base)

	if len(first) != 2 {
		t.Errorf("page 1: got %d, want 2", len(first))
	}
	if len(second) != 1 {
		t.Errorf("page 2: got %d, want 1 (duplicate dropped)", len(second))
	}
	if len(second) == 1 && second[0].URL != "https://boutique.example/p3" {
		t.Errorf("page 2 kept %q, want /p3", second[0].URL)
	}

	// A fresh adapter starts a fresh run: the URL is no longer seen.
	again := extractAll(t, NewPrestaShop(), page2, base)
	if len(again) != 2 {
		t.Errorf("fresh run: got %d, want 2", len(again))
	}
}

func TestPrestaShopInvalidTiles(t *testing.T) {
	tests := []struct {
		name string
		tile string
	}{
		{
			"missing product link",
			`<article class="product-miniature"><h3 class="h3">GROHE Mitigeur</h3></article>`,
		},
		{
			"title under three characters",
			tile("/short", "ab", "10 €"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			products := extractAll(t, NewPrestaShop(), page(tt.tile), "https://b.example")
			if len(products) != 0 {
				t.Errorf("products: got %d, want 0", len(products))
			}
		})
	}
}

func TestPrestaShopSpecsCapOnRuneBoundary(t *testing.T) {
	// WHAT: a description capped mid-word around an accented character stays
	// valid UTF-8 and is cut at 200 characters, not 200 bytes.
	desc := strings.Repeat("a", 199) + "équipé d'une cartouche céramique"
	block := fmt.Sprintf(`
		<article class="product-miniature">
			<a class="product-thumbnail" href="/p1"></a>
			<h3 class="h3">GROHE Mitigeur</h3>
			<div class="product-description-short">%s</div>
		</article>`, desc)

	products := extractAll(t, NewPrestaShop(), page(block), "https://b.example")
	if len(products) != 1 {
		t.Fatalf("products: got %d, want 1", len(products))
	}
	specs := products[0].Specs
	if !utf8.ValidString(specs) {
		t.Fatalf("specs is not valid UTF-8: %q", specs)
	}
	if got := utf8.RuneCountInString(specs); got != 200 {
		t.Errorf("specs length: got %d runes, want 200", got)
	}
	if !strings.HasSuffix(specs, "é") {
		t.Errorf("specs should end on the accented character: %q", specs)
	}
}

func TestPrestaShopTitleFallbacks(t *testing.T) {
	block := `
		<article class="product-miniature">
			<a class="product-thumbnail" href="/p9"></a>
			<a class="product-title">Robinet mural</a>
		</article>`
	products := extractAll(t, NewPrestaShop(), page(block), "https://b.example")
	if len(products) != 1 {
		t.Fatalf("products: got %d, want 1", len(products))
	}
	if products[0].Model != "Robinet mural" {
		t.Errorf("model: got %q", products[0].Model)
	}
}

func TestBrandFromTitle(t *testing.T) {
	tests := []struct {
		title string
		want  string
	}{
		{"GROHE Mitigeur Essence", "GROHE"},
		{"Grohe Mitigeur", "Grohe"}, // short first token passes too
		{"Extraordinairement-longue-marque inconnue", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := brandFromTitle(tt.title); got != tt.want {
			t.Errorf("brandFromTitle(%q): got %q, want %q", tt.title, got, tt.want)
		}
	}
}
