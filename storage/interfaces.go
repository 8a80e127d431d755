package storage

import (
	"context"
	"time"

	"immo-prospect/models"
)

// Collection names used by the scraper → store mapping.
const (
	CollectionBiens = "biens"
)

// BienFilter narrows a listing select.
type BienFilter struct {
	Statut       string
	Source       string
	CreatedAfter time.Time
	NotArchived  bool
}

// AcheteurFilter narrows a buyer-profile select.
type AcheteurFilter struct {
	Statut string
}

// Store is the persistence boundary shared by the scraping pipeline, the
// matching engine and the maintenance policies.
type Store interface {
	// UpsertItems bulk-writes scraped items into the named collection.
	// conflictKey names the natural-key column; with ignoreDuplicates set,
	// conflicting rows are silently skipped instead of erroring. Returns the
	// number of rows actually written.
	UpsertItems(ctx context.Context, collection string, items []*models.ScrapedItem, conflictKey string, ignoreDuplicates bool) (int, error)

	GetBien(ctx context.Context, id int64) (*models.Bien, error)
	SelectBiens(ctx context.Context, f BienFilter) ([]*models.Bien, error)
	GetAcheteur(ctx context.Context, id int64) (*models.Acheteur, error)
	SelectAcheteurs(ctx context.Context, f AcheteurFilter) ([]*models.Acheteur, error)

	// InsertMatch creates a match keyed by (bien_id, acheteur_id). It returns
	// false when the pair already exists; re-runs never duplicate rows.
	InsertMatch(ctx context.Context, m *models.Match) (bool, error)
	// PendingMatches returns matches awaiting notification: statut nouveau
	// and email not yet sent.
	PendingMatches(ctx context.Context, limit int) ([]*models.Match, error)
	// MarkNotified flips the notification flags for one match.
	MarkNotified(ctx context.Context, matchID string, at time.Time) error
	CountMatches(ctx context.Context) (int, error)

	// Maintenance policies. Each returns the number of affected rows.
	ArchiveSoldBiens(ctx context.Context, soldBefore time.Time) (int, error)
	DeactivateAcheteurs(ctx context.Context, lastSeenBefore time.Time) (int, error)
	PurgeRejectedMatches(ctx context.Context, olderThan time.Time) (int, error)

	Close() error
}

// RawExporter persists unprocessed scraped items for auditing, before any
// cleaning happens on the store side.
type RawExporter interface {
	ExportRaw(items []*models.ScrapedItem) error
	Close() error
}
