package scraper

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"immo-prospect/models"
	"immo-prospect/storage"
	"immo-prospect/utils"
)

// ErrUnknownScraper is returned when a run is requested for an unregistered
// scraper identifier.
var ErrUnknownScraper = errors.New("unknown scraper")

// ErrUnknownCategory is returned for an unregistered category name.
var ErrUnknownCategory = errors.New("unknown category")

// Factory builds a fresh Source instance for one run.
type Factory func() Source

// Registration binds a scraper identifier to its factory and its destination
// collection.
type Registration struct {
	Factory    Factory
	Collection string
}

// Options tunes a single managed run.
type Options struct {
	// Save persists the run's results into the scraper's collection.
	Save bool
}

// RunRequest describes one scraper invocation inside RunMany.
type RunRequest struct {
	Scraper string
	Params  Params
	Options Options
}

// Info describes a registered scraper.
type Info struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Collection  string `json:"collection"`
}

// RunRecord is one entry of the in-memory run ledger.
type RunRecord struct {
	ID      string          `json:"id"`
	Scraper string          `json:"scraper"`
	Params  Params          `json:"params"`
	Stats   models.RunStats `json:"stats"`
	Success bool            `json:"success"`
	At      time.Time       `json:"at"`
}

// Stats aggregates the run ledger.
type Stats struct {
	TotalRuns    int     `json:"totalRuns"`
	Successes    int     `json:"successes"`
	SuccessRate  float64 `json:"successRate"`
	ItemsScraped int     `json:"itemsScraped"`
	ItemsSaved   int     `json:"itemsSaved"`
	Duplicates   int     `json:"duplicates"`
	Errors       int     `json:"errors"`
}

// MultiReport aggregates a RunMany batch.
type MultiReport struct {
	Succeeded int                          `json:"succeeded"`
	Failed    int                          `json:"failed"`
	Reports   map[string]*models.RunReport `json:"reports"`
}

// Manager owns the scraper registry and the run history ledger. The registry
// is injected at construction; the manager holds no hidden global state.
type Manager struct {
	registry    map[string]Registration
	categories  map[string][]string
	store       storage.Store
	logger      *utils.Logger
	concurrency int

	mu      sync.Mutex
	history []RunRecord
}

// NewManager builds a Manager over an explicit registry and category map.
func NewManager(registry map[string]Registration, categories map[string][]string, store storage.Store, logger *utils.Logger, concurrency int) *Manager {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Manager{
		registry:    registry,
		categories:  categories,
		store:       store,
		logger:      logger,
		concurrency: concurrency,
	}
}

// List returns all registered scrapers, sorted by identifier.
func (m *Manager) List() []Info {
	infos := make([]Info, 0, len(m.registry))
	for id, reg := range m.registry {
		infos = append(infos, Info{ID: id, DisplayName: displayName(id), Collection: reg.Collection})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos
}

// Exists reports whether the identifier is registered.
func (m *Manager) Exists(id string) bool {
	_, ok := m.registry[id]
	return ok
}

// Run executes one scraper end to end and appends a history entry whatever
// the outcome. An unknown identifier is rejected before anything runs.
// A panic out of a source factory is recorded in history, then re-raised:
// that is a programming error, not an operational failure.
func (m *Manager) Run(ctx context.Context, id string, params Params, opts Options) (report *models.RunReport, err error) {
	reg, ok := m.registry[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownScraper, id)
	}

	started := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			m.record(id, params, models.RunStats{
				Duration: time.Since(started),
				Errors:   1,
			})
			panic(rec)
		}
	}()

	m.logger.Info("[manager] running scraper %q", id)

	collection := ""
	if opts.Save {
		collection = reg.Collection
	}

	runner := NewRunner(reg.Factory(), m.store, m.logger)
	report = runner.Run(ctx, params, collection)

	m.record(id, params, report.Stats)
	return report, nil
}

// RunMany executes several scrapers concurrently. Runs are independent: one
// failing never aborts the others.
func (m *Manager) RunMany(ctx context.Context, reqs []RunRequest) *MultiReport {
	multi := &MultiReport{Reports: make(map[string]*models.RunReport, len(reqs))}
	pool := utils.NewWorkerPool(m.concurrency, 0)
	var mu sync.Mutex

	for _, req := range reqs {
		req := req
		pool.Submit(func() {
			report, err := m.runIsolated(ctx, req)

			mu.Lock()
			defer mu.Unlock()
			if err != nil || report.Stats.Errors > 0 {
				multi.Failed++
			} else {
				multi.Succeeded++
			}
			if report != nil {
				multi.Reports[req.Scraper] = report
			}
		})
	}
	pool.Wait()

	m.logger.Info("[manager] batch done — %d succeeded, %d failed", multi.Succeeded, multi.Failed)
	return multi
}

// runIsolated shields a RunMany batch from a single run's panic.
func (m *Manager) runIsolated(ctx context.Context, req RunRequest) (report *models.RunReport, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("scraper %q panicked: %v", req.Scraper, rec)
			report = &models.RunReport{
				Name:   req.Scraper,
				Stats:  models.RunStats{Errors: 1},
				Errors: []string{err.Error()},
			}
			m.logger.Error("[manager] %v", err)
		}
	}()
	return m.Run(ctx, req.Scraper, req.Params, req.Options)
}

// RunCategory resolves a fixed category to its scraper list and runs them.
func (m *Manager) RunCategory(ctx context.Context, category string, params Params, opts Options) (*MultiReport, error) {
	ids, ok := m.categories[category]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCategory, category)
	}

	reqs := make([]RunRequest, 0, len(ids))
	for _, id := range ids {
		reqs = append(reqs, RunRequest{Scraper: id, Params: params, Options: opts})
	}
	return m.RunMany(ctx, reqs), nil
}

// History returns the most recent run records, newest first. limit <= 0
// returns everything.
func (m *Manager) History(limit int) []RunRecord {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]RunRecord, len(m.history))
	copy(out, m.history)
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// GetStats aggregates the whole ledger.
func (m *Manager) GetStats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := Stats{TotalRuns: len(m.history)}
	for _, rec := range m.history {
		if rec.Success {
			s.Successes++
		}
		s.ItemsScraped += rec.Stats.ItemsScraped
		s.ItemsSaved += rec.Stats.ItemsSaved
		s.Duplicates += rec.Stats.Duplicates
		s.Errors += rec.Stats.Errors
	}
	if s.TotalRuns > 0 {
		s.SuccessRate = float64(s.Successes) / float64(s.TotalRuns)
	}
	return s
}

// ClearHistory resets the ledger. History is operational telemetry only and
// never survives a restart anyway.
func (m *Manager) ClearHistory() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history = nil
}

func (m *Manager) record(id string, params Params, stats models.RunStats) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history = append(m.history, RunRecord{
		ID:      uuid.New().String(),
		Scraper: id,
		Params:  params,
		Stats:   stats,
		Success: stats.Errors == 0,
		At:      time.Now(),
	})
}

func displayName(id string) string {
	parts := strings.FieldsFunc(id, func(r rune) bool { return r == '-' || r == '_' })
	for i, p := range parts {
		if p == "" {
			continue
		}
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, " ")
}
