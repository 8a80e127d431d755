package scraper

import (
	"context"
	"errors"
	"testing"

	"immo-prospect/models"
)

func managerWith(sources map[string]*fakeSource) *Manager {
	registry := make(map[string]Registration, len(sources))
	for id, src := range sources {
		src := src
		registry[id] = Registration{Factory: func() Source { return src }}
	}
	categories := map[string][]string{"tous": keysOf(sources)}
	return NewManager(registry, categories, nil, newTestLogger(), 2)
}

func keysOf(m map[string]*fakeSource) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func TestManagerRejectsUnknownScraper(t *testing.T) {
	invoked := false
	m := NewManager(map[string]Registration{
		"known": {Factory: func() Source {
			invoked = true
			return &fakeSource{name: "known"}
		}},
	}, nil, nil, newTestLogger(), 1)

	_, err := m.Run(context.Background(), "missing", Params{}, Options{})
	if !errors.Is(err, ErrUnknownScraper) {
		t.Errorf("expected ErrUnknownScraper, got %v", err)
	}
	if invoked {
		t.Error("factory must not run for an unknown identifier")
	}
	if len(m.History(0)) != 0 {
		t.Error("rejected run must not appear in history")
	}
}

func TestManagerRecordsHistory(t *testing.T) {
	m := managerWith(map[string]*fakeSource{
		"ok": {name: "ok", items: []models.ScrapedItem{
			{Title: "Bien", Reference: "r1", URL: "https://x/r1"},
		}},
		"broken": {name: "broken", scrapeErr: errors.New("boom")},
	})

	if _, err := m.Run(context.Background(), "ok", Params{}, Options{}); err != nil {
		t.Fatalf("run ok: %v", err)
	}
	if _, err := m.Run(context.Background(), "broken", Params{}, Options{}); err != nil {
		t.Fatalf("run broken: %v", err)
	}

	hist := m.History(0)
	if len(hist) != 2 {
		t.Fatalf("expected 2 history entries, got %d", len(hist))
	}
	// Newest first.
	if hist[0].Scraper != "broken" || hist[0].Success {
		t.Errorf("latest entry should be the failed run, got %+v", hist[0])
	}
	if hist[1].Scraper != "ok" || !hist[1].Success {
		t.Errorf("oldest entry should be the successful run, got %+v", hist[1])
	}

	stats := m.GetStats()
	if stats.TotalRuns != 2 || stats.Successes != 1 {
		t.Errorf("stats = %+v; want 2 runs, 1 success", stats)
	}
	if stats.SuccessRate != 0.5 {
		t.Errorf("success rate = %v; want 0.5", stats.SuccessRate)
	}
	if stats.ItemsScraped != 1 {
		t.Errorf("items scraped = %d; want 1", stats.ItemsScraped)
	}
}

func TestManagerHistoryLimit(t *testing.T) {
	m := managerWith(map[string]*fakeSource{"ok": {name: "ok"}})
	for i := 0; i < 5; i++ {
		if _, err := m.Run(context.Background(), "ok", Params{}, Options{}); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
	}
	if got := len(m.History(3)); got != 3 {
		t.Errorf("History(3) returned %d entries", got)
	}

	m.ClearHistory()
	if got := m.GetStats().TotalRuns; got != 0 {
		t.Errorf("after ClearHistory, TotalRuns = %d", got)
	}
}

func TestRunManyIsolatesFailures(t *testing.T) {
	m := managerWith(map[string]*fakeSource{
		"ok": {name: "ok", items: []models.ScrapedItem{
			{Title: "Bien", Reference: "r1", URL: "https://x/r1"},
		}},
		"panicky": {name: "panicky", panicMsg: "dom changed"},
		"failing": {name: "failing", scrapeErr: errors.New("http 503")},
	})

	multi := m.RunMany(context.Background(), []RunRequest{
		{Scraper: "ok"},
		{Scraper: "panicky"},
		{Scraper: "failing"},
	})

	if multi.Succeeded != 1 || multi.Failed != 2 {
		t.Errorf("got %d succeeded / %d failed; want 1 / 2", multi.Succeeded, multi.Failed)
	}
	if len(multi.Reports) != 3 {
		t.Errorf("every request must yield a report, got %d", len(multi.Reports))
	}
	if rep := multi.Reports["ok"]; rep == nil || rep.Stats.ItemsScraped != 1 {
		t.Errorf("ok report incomplete: %+v", rep)
	}
}

func TestRunCategoryUnknown(t *testing.T) {
	m := managerWith(map[string]*fakeSource{"ok": {name: "ok"}})
	_, err := m.RunCategory(context.Background(), "inexistant", Params{}, Options{})
	if !errors.Is(err, ErrUnknownCategory) {
		t.Errorf("expected ErrUnknownCategory, got %v", err)
	}
}

func TestDisplayName(t *testing.T) {
	tests := []struct {
		id   string
		want string
	}{
		{"leboncoin", "Leboncoin"},
		{"moteur-immo", "Moteur Immo"},
		{"se_loger", "Se Loger"},
	}
	for _, tt := range tests {
		if got := displayName(tt.id); got != tt.want {
			t.Errorf("displayName(%q) = %q; want %q", tt.id, got, tt.want)
		}
	}
}
