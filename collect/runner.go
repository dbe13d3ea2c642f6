// Package collect orchestrates collection runs: one run walks every active
// site strictly sequentially, scrapes its catalog, persists the products
// and appends a durable per-site result to the audit log. Site failures are
// independent — nothing a single site does can abort the run.
package collect

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ecomwatch/collector/audit"
	"github.com/ecomwatch/collector/config"
	"github.com/ecomwatch/collector/crawl"
	"github.com/ecomwatch/collector/extract"
	"github.com/ecomwatch/collector/fetch"
	"github.com/ecomwatch/collector/store"
)

// Fetcher is the per-site fetch resource. Release must be idempotent: the
// runner releases on every exit path.
type Fetcher interface {
	Fetch(ctx context.Context, url string, mode fetch.Mode) (string, error)
	Release()
}

// LoginFunc performs the scripted form login for a site that requires it.
type LoginFunc func(ctx context.Context, f Fetcher, url, username, password string, overrides extract.Overrides) error

// Config wires the runner to its collaborators. Sites, NewFetcher and
// OpenStore are required.
type Config struct {
	// Sites returns the configured site list; the runner filters on Active.
	Sites func(ctx context.Context) ([]config.Site, error)

	// Credentials resolves a site's login; (nil, nil) means absent.
	Credentials func(ctx context.Context, siteID string) (*config.Credential, error)

	// NewFetcher builds the fetch resource for one site's run.
	NewFetcher func() Fetcher

	// OpenStore builds the persistence backend; it is acquired, used and
	// released per site.
	OpenStore func() (store.Store, error)

	// Login performs form authentication. Required only when some site has
	// requires_auth set.
	Login LoginFunc

	// MaxPages caps the crawl for sites that do not set their own. Default: 5.
	MaxPages int

	// PageDelay is the pacing between catalog pages. Default: 2s.
	PageDelay time.Duration

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.MaxPages <= 0 {
		c.MaxPages = 5
	}
	if c.PageDelay <= 0 {
		c.PageDelay = 2 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Summary aggregates one run. Derived, logged, not persisted.
type Summary struct {
	RunID     string `json:"run_id"`
	Sites     int    `json:"sites"`
	Successes int    `json:"successes"`
	Failures  int    `json:"failures"`
	Products  int    `json:"products"`
}

// Runner executes collection runs. Construct one explicitly and hand it to
// a Scheduler (or call RunAll directly); there is no implicit global.
type Runner struct {
	config Config
	log    *audit.Log
}

// NewRunner creates a Runner appending results to log.
func NewRunner(cfg Config, log *audit.Log) (*Runner, error) {
	if cfg.Sites == nil || cfg.NewFetcher == nil || cfg.OpenStore == nil {
		return nil, fmt.Errorf("collect: Sites, NewFetcher and OpenStore are required")
	}
	cfg.defaults()
	return &Runner{config: cfg, log: log}, nil
}

// RunAll executes one run over every active site and returns the aggregate.
// The error is non-nil only when the site list itself cannot be loaded.
func (r *Runner) RunAll(ctx context.Context) (Summary, error) {
	logger := r.config.Logger
	sum := Summary{RunID: uuid.NewString()}

	sites, err := r.config.Sites(ctx)
	if err != nil {
		return sum, fmt.Errorf("collect: load sites: %w", err)
	}

	logger.Info("collect: run started", "run_id", sum.RunID, "sites", len(sites))

	for _, site := range sites {
		if !site.Active {
			continue
		}
		res := r.RunSite(ctx, sum.RunID, site)
		sum.Sites++
		if res.Status == audit.StatusSuccess {
			sum.Successes++
		} else {
			sum.Failures++
		}
		sum.Products += res.Collected
	}

	logger.Info("collect: run finished", "run_id", sum.RunID,
		"sites", sum.Sites, "successes", sum.Successes,
		"failures", sum.Failures, "products", sum.Products)
	return sum, nil
}

// RunSite collects one site and appends its result to the audit log. Every
// outcome — including a panic below this frame — produces exactly one
// appended result with status and duration filled in, and the fetch
// resource is released before returning.
func (r *Runner) RunSite(ctx context.Context, runID string, site config.Site) audit.Result {
	logger := r.config.Logger
	start := time.Now()
	res := audit.Result{
		RunID:     runID,
		SiteID:    site.ID,
		SiteName:  site.Name,
		URL:       site.URL,
		StartedAt: start,
		Status:    audit.StatusSuccess,
	}

	logger.Info("collect: site started", "site", site.Name, "url", site.URL)

	f := r.config.NewFetcher()
	func() {
		defer f.Release()
		defer func() {
			if p := recover(); p != nil {
				res.Status = audit.StatusError
				res.Errors = append(res.Errors, fmt.Sprintf("panic: %v", p))
				logger.Error("collect: site run panicked", "site", site.Name, "panic", p)
			}
		}()
		r.collectSite(ctx, f, site, &res)
	}()

	res.DurationSeconds = time.Since(start).Seconds()
	if err := r.log.Append(res); err != nil {
		logger.Error("collect: audit append failed", "site", site.Name, "error", err)
	}

	logger.Info("collect: site finished", "site", site.Name, "status", res.Status,
		"collected", res.Collected, "inserted", res.Inserted,
		"duration_s", res.DurationSeconds)
	return res
}

func (r *Runner) collectSite(ctx context.Context, f Fetcher, site config.Site, res *audit.Result) {
	mode := fetch.ModeStatic

	if site.RequiresAuth {
		mode = fetch.ModeRendered

		if r.config.Credentials == nil {
			fail(res, "identifiants manquants")
			return
		}
		cred, err := r.config.Credentials(ctx, site.ID)
		if err != nil {
			fail(res, "identifiants: "+err.Error())
			return
		}
		if cred == nil {
			fail(res, "identifiants manquants")
			return
		}
		if r.config.Login == nil {
			fail(res, "échec de l'authentification: login flow not configured")
			return
		}
		if err := r.config.Login(ctx, f, site.URL, cred.Username, cred.Password, site.Overrides); err != nil {
			fail(res, "échec de l'authentification: "+err.Error())
			return
		}
	}

	crawler := crawl.New(f, r.extractorFor(site), crawl.Config{
		Mode:   mode,
		Delay:  r.config.PageDelay,
		Logger: r.config.Logger,
	})

	maxPages := site.MaxPages
	if maxPages <= 0 {
		maxPages = r.config.MaxPages
	}

	products, err := crawler.Crawl(ctx, site.URL, maxPages)
	if err != nil {
		res.Status = audit.StatusError
		res.Errors = append(res.Errors, err.Error())
	}
	res.Collected = len(products)
	if len(products) == 0 {
		return
	}

	for i := range products {
		products[i].Site = site.Name
	}

	// Persistence failures are recorded but do not discard the collected
	// count — the operator sees both numbers in the audit log.
	st, err := r.config.OpenStore()
	if err != nil {
		res.Errors = append(res.Errors, "erreur de connexion à la base de données: "+err.Error())
		return
	}
	defer st.Close()

	if err := st.Connect(ctx); err != nil {
		res.Errors = append(res.Errors, "erreur de connexion à la base de données: "+err.Error())
		return
	}
	if err := st.EnsureSchema(ctx); err != nil {
		res.Errors = append(res.Errors, "erreur de schéma: "+err.Error())
		return
	}

	n, err := st.Insert(ctx, products, site.Name)
	res.Inserted = n
	if err != nil {
		res.Errors = append(res.Errors, "erreur d'insertion: "+err.Error())
	}
}

// extractorFor selects the extraction strategy per site configuration.
// The PrestaShop adapter is created fresh here so its URL dedup is scoped
// to this site's run.
func (r *Runner) extractorFor(site config.Site) extract.Extractor {
	if site.Template == "prestashop" {
		return extract.NewPrestaShop()
	}
	return extract.NewGeneric(site.Overrides, r.config.Logger)
}

// fail marks a result as a terminal per-site error.
func fail(res *audit.Result, msg string) {
	res.Status = audit.StatusError
	res.Errors = append(res.Errors, msg)
}
