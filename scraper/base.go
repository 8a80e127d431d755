package scraper

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"immo-prospect/models"
	"immo-prospect/storage"
	"immo-prospect/utils"
)

// Params carries the knobs a run was invoked with. Which keys a scraper
// honors is source-specific.
type Params struct {
	Ville      string  `json:"ville,omitempty"`
	PrixMin    int     `json:"prix_min,omitempty"`
	PrixMax    int     `json:"prix_max,omitempty"`
	SurfaceMin float64 `json:"surface_min,omitempty"`
	SurfaceMax float64 `json:"surface_max,omitempty"`
	TypeBien   string  `json:"type_bien,omitempty"`
	MaxPages   int     `json:"max_pages,omitempty"`
}

// Source is the contract a concrete scraper implements. Everything
// correctness-critical — validation gating, within-run dedupe, transform
// stamps, report counters — lives in the Runner; a Source only extracts.
type Source interface {
	Name() string

	// Init prepares the source client or session. A failure here is fatal to
	// the run.
	Init(ctx context.Context) error

	// Scrape discovers items and hands each one to emit. Accumulating items
	// outside emit bypasses validation and dedupe and must not be done.
	// emit reports whether the item was kept.
	Scrape(ctx context.Context, params Params, emit func(models.ScrapedItem) bool) error

	// Validate returns the problems that disqualify an item; empty means
	// valid. Sources layer their required-field checks on ValidateCommon.
	Validate(item models.ScrapedItem) []string

	// Transform normalizes an item. The stamps the Runner applied
	// (scraped_at, scraper_name, source) must be preserved.
	Transform(item models.ScrapedItem) models.ScrapedItem

	// Close releases whatever Init opened. Called exactly once per run,
	// whether the scrape succeeded or not.
	Close() error
}

// ValidateCommon is the baseline check every source shares: the record must
// carry some content at all.
func ValidateCommon(item models.ScrapedItem) []string {
	if item.Title == "" && item.URL == "" && item.Reference == "" {
		return []string{"empty record"}
	}
	return nil
}

// ContentHash digests a transformed item. The hash field itself is excluded,
// so two items with identical content always collide and any changed field
// produces a different digest.
func ContentHash(item models.ScrapedItem) string {
	raw, err := json.Marshal(item)
	if err != nil {
		// Only unmarshalable types reach here, which ScrapedItem has none of.
		return ""
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// Runner drives the shared run lifecycle around a Source: initialize, scrape,
// persist, finalize. Per-item failures are counted and swallowed; an Init
// failure aborts the run, but Run still returns a complete report.
type Runner struct {
	source Source
	store  storage.Store
	logger *utils.Logger

	seen      *utils.SeenSet
	startedAt time.Time
	results   []*models.ScrapedItem
	errs      []string
	stats     models.RunStats
}

// NewRunner wires a Runner around one Source instance. store may be nil for
// runs that only report.
func NewRunner(source Source, store storage.Store, logger *utils.Logger) *Runner {
	return &Runner{
		source: source,
		store:  store,
		logger: logger,
		seen:   utils.NewSeenSet(),
	}
}

// Add validates, transforms, hashes and accumulates one item. Invalid items
// bump the error counter; items whose content hash was already seen this run
// bump the duplicate counter. Returns whether the item was kept.
func (r *Runner) Add(item models.ScrapedItem) bool {
	if problems := r.source.Validate(item); len(problems) > 0 {
		r.stats.Errors++
		r.errs = append(r.errs, fmt.Sprintf("invalid item %q: %v", item.Title, problems))
		r.logger.Debug("[%s] dropped invalid item: %v", r.source.Name(), problems)
		return false
	}

	// Base stamps. The run-level timestamp keeps identical items identical.
	item.ScrapedAt = r.startedAt
	item.ScraperName = r.source.Name()
	if item.Source == "" {
		item.Source = r.source.Name()
	}

	item = r.source.Transform(item)

	hash := ContentHash(item)
	if !r.seen.Add(hash) {
		r.stats.Duplicates++
		r.logger.Debug("[%s] duplicate content hash, skipping: %s", r.source.Name(), item.Title)
		return false
	}
	item.Hash = hash

	r.results = append(r.results, &item)
	return true
}

// Run orchestrates initialize → scrape → optional save → finalize. It never
// lets a scrape failure escape: whatever happens, the caller gets a report.
func (r *Runner) Run(ctx context.Context, params Params, collection string) *models.RunReport {
	r.startedAt = time.Now()

	if err := r.source.Init(ctx); err != nil {
		r.stats.Errors++
		r.errs = append(r.errs, fmt.Sprintf("init: %v", err))
		r.logger.Error("[%s] init failed: %v", r.source.Name(), err)
		return r.finalize()
	}

	r.scrape(ctx, params)

	if collection != "" && r.store != nil {
		r.saveTo(ctx, collection)
	}

	return r.finalize()
}

func (r *Runner) scrape(ctx context.Context, params Params) {
	defer func() {
		if rec := recover(); rec != nil {
			r.stats.Errors++
			r.errs = append(r.errs, fmt.Sprintf("scrape panic: %v", rec))
			r.logger.Error("[%s] scrape panicked: %v", r.source.Name(), rec)
		}
	}()

	if err := r.source.Scrape(ctx, params, r.Add); err != nil {
		r.stats.Errors++
		r.errs = append(r.errs, fmt.Sprintf("scrape: %v", err))
		r.logger.Error("[%s] scrape failed: %v", r.source.Name(), err)
	}
}

// saveTo bulk-upserts the accumulated items, hash-stripped, with the
// per-source reference as the conflict target. Store failures are recorded,
// never propagated.
func (r *Runner) saveTo(ctx context.Context, collection string) {
	if len(r.results) == 0 {
		return
	}

	saved, err := r.store.UpsertItems(ctx, collection, r.results, "reference", true)
	if err != nil {
		r.stats.Errors++
		r.errs = append(r.errs, fmt.Sprintf("save to %s: %v", collection, err))
		r.logger.Error("[%s] save to %s failed: %v", r.source.Name(), collection, err)
	}
	r.stats.ItemsSaved = saved
}

func (r *Runner) finalize() *models.RunReport {
	if err := r.source.Close(); err != nil {
		r.logger.Warn("[%s] close: %v", r.source.Name(), err)
	}

	r.stats.Duration = time.Since(r.startedAt)
	r.stats.ItemsScraped = len(r.results)

	r.logger.Info("[%s] run finished — scraped: %d | saved: %d | duplicates: %d | errors: %d | took %v",
		r.source.Name(), r.stats.ItemsScraped, r.stats.ItemsSaved,
		r.stats.Duplicates, r.stats.Errors, r.stats.Duration.Round(time.Millisecond))

	return &models.RunReport{
		Name:    r.source.Name(),
		Stats:   r.stats,
		Results: r.results,
		Errors:  r.errs,
	}
}
