package extract

import "time"

// Product is one catalog entry as collected from a listing page.
// Fields that could not be located are empty strings rather than errors:
// partial data from an uncontrolled third-party page beats no data.
type Product struct {
	Brand        string    `json:"brand"`
	Model        string    `json:"model"`
	Finish       string    `json:"finish"`
	Specs        string    `json:"specs"`
	Price        string    `json:"price"`
	URL          string    `json:"url"`
	Image        string    `json:"image"`
	Availability string    `json:"availability"`
	Site         string    `json:"site"`
	CollectedAt  time.Time `json:"collected_at"`
}

// Overrides maps a field name to a CSS selector supplied by site
// configuration, bypassing heuristic detection for that field.
// Recognised keys: brand, model, finish, specs, username, password, submit
// (the last three are consumed by the login flow, not the extractor).
type Overrides map[string]string
