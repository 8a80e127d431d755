package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"time"

	"immo-prospect/api"
	"immo-prospect/config"
	"immo-prospect/mailer"
	"immo-prospect/matching"
	"immo-prospect/scraper"
	"immo-prospect/scraper/leboncoin"
	"immo-prospect/scraper/moteurimmo"
	"immo-prospect/scraper/seloger"
	"immo-prospect/services"
	"immo-prospect/storage"
	"immo-prospect/utils"
)

func main() {
	serve := flag.Bool("serve", false, "start the HTTP API instead of a one-shot run")
	category := flag.String("category", "tous", "scraper category for the one-shot run")
	ville := flag.String("ville", "", "target city for the one-shot run")
	flag.Parse()

	logger := utils.NewLogger()
	cfg := config.Load()
	logger.SetDebug(cfg.Debug)

	logger.Info("=== ImmoProspect core starting ===")
	logger.Info("Config — concurrency: %d | rate: %dms | retries: %d",
		cfg.MaxConcurrency, cfg.RateLimitMs, cfg.MaxRetries)

	store := openStore(cfg, logger)
	defer store.Close()

	// Explicit registry: every scraper and its destination collection is
	// wired here, at startup, and nowhere else.
	registry := map[string]scraper.Registration{
		"leboncoin": {
			Factory:    func() scraper.Source { return leboncoin.New(cfg.Source("leboncoin"), logger) },
			Collection: storage.CollectionBiens,
		},
		"seloger": {
			Factory:    func() scraper.Source { return seloger.New(cfg.Source("seloger"), logger) },
			Collection: storage.CollectionBiens,
		},
		"moteurimmo": {
			Factory:    func() scraper.Source { return moteurimmo.New(cfg.Source("moteurimmo"), logger) },
			Collection: storage.CollectionBiens,
		},
	}

	manager := scraper.NewManager(registry, cfg.Scrapers.Categories, store, logger, cfg.MaxConcurrency)
	engine := matching.NewEngine(store, logger, cfg.MatchingWindowDays)
	notifier := matching.NewNotifier(store, buildMailer(cfg, logger), logger, cfg.MailerFromName, cfg.MailerFromEmail)
	cleanup := services.NewCleanupService(store, logger, services.Policy{
		ArchiveAfter:      daysToDuration(cfg.ArchiveAfterDays),
		InactiveAfter:     daysToDuration(cfg.InactiveAfterDays),
		RejectedRetention: daysToDuration(cfg.RejectedRetentionDays),
	})

	if *serve {
		server := api.NewServer(manager, engine, notifier, cleanup, store, logger)
		logger.Info("HTTP API listening on %s", cfg.HTTPAddr)
		if err := http.ListenAndServe(cfg.HTTPAddr, server.Router()); err != nil {
			logger.Error("HTTP server stopped: %v", err)
			os.Exit(1)
		}
		return
	}

	runOnce(cfg, logger, store, manager, engine, notifier, *category, *ville)
}

// runOnce is the batch mode an external scheduler invokes: scrape one
// category, export the raw crop, match recent listings, sweep notifications.
func runOnce(cfg *config.Config, logger *utils.Logger, store storage.Store,
	manager *scraper.Manager, engine *matching.Engine, notifier *matching.Notifier,
	category, ville string) {

	ctx := context.Background()
	params := scraper.Params{Ville: ville}

	multi, err := manager.RunCategory(ctx, category, params, scraper.Options{Save: true})
	if err != nil {
		logger.Error("Category run failed: %v", err)
		os.Exit(1)
	}

	exportRaw(cfg, logger, multi)

	stats := manager.GetStats()
	logger.Info("Scraping done — %d runs, %.0f%% success, %d items scraped, %d saved",
		stats.TotalRuns, stats.SuccessRate*100, stats.ItemsScraped, stats.ItemsSaved)

	if report, err := engine.MatchRecent(ctx); err != nil {
		logger.Error("Matching pass failed: %v", err)
	} else {
		logger.Info("Matching done — %d matches created, %d already existed", report.Created, report.Existing)
	}

	if report, err := notifier.Sweep(ctx, 100); err != nil {
		logger.Error("Notification sweep failed: %v", err)
	} else {
		logger.Info("Notifications — %d sent, %d failed", report.Sent, report.Failed)
	}

	biens, err := store.SelectBiens(ctx, storage.BienFilter{NotArchived: true})
	if err != nil {
		logger.Error("Failed to fetch biens for insights: %v", err)
		return
	}
	insightSvc := services.NewInsightService(logger)
	insightSvc.Print(insightSvc.Generate(biens))
}

func exportRaw(cfg *config.Config, logger *utils.Logger, multi *scraper.MultiReport) {
	csvWriter, err := storage.NewCSVWriter(cfg.RawExportPath)
	if err != nil {
		logger.Error("Failed to create CSV exporter: %v", err)
		return
	}
	defer csvWriter.Close()

	for name, report := range multi.Reports {
		if err := csvWriter.ExportRaw(report.Results); err != nil {
			logger.Error("CSV export failed for %s: %v", name, err)
		}
	}
	logger.Info("Raw items exported to %s", cfg.RawExportPath)
}

func openStore(cfg *config.Config, logger *utils.Logger) storage.Store {
	store, err := storage.NewPostgresStore(cfg.DSN())
	if err != nil {
		logger.Warn("PostgreSQL unavailable (%v) — falling back to in-memory store", err)
		return storage.NewMemoryStore()
	}
	return store
}

func buildMailer(cfg *config.Config, logger *utils.Logger) mailer.Mailer {
	if cfg.MailerAPIKey == "" {
		logger.Warn("No mailer API key configured — emails will be logged, not sent")
		return &mailer.LogMailer{Logger: logger}
	}
	return mailer.NewAPIMailer(cfg.MailerAPIURL, cfg.MailerAPIKey, cfg.RequestTimeout)
}

func daysToDuration(days int) time.Duration {
	return time.Duration(days) * 24 * time.Hour
}
