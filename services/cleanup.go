package services

import (
	"context"
	"fmt"
	"time"

	"immo-prospect/storage"
	"immo-prospect/utils"
)

// Policy holds the retention windows the cleanup pass applies.
type Policy struct {
	// ArchiveAfter: biens vendus are soft-archived this long after the sale.
	ArchiveAfter time.Duration
	// InactiveAfter: acheteurs not seen for this long become inactif.
	InactiveAfter time.Duration
	// RejectedRetention: rejected matches older than this are deleted.
	RejectedRetention time.Duration
}

// DefaultPolicy mirrors the production cadence: 90 days to archive, 180 days
// of buyer inactivity, 30 days of rejected-match retention.
func DefaultPolicy() Policy {
	return Policy{
		ArchiveAfter:      90 * 24 * time.Hour,
		InactiveAfter:     180 * 24 * time.Hour,
		RejectedRetention: 30 * 24 * time.Hour,
	}
}

// CleanupReport summarizes one maintenance pass.
type CleanupReport struct {
	BiensArchives       int      `json:"biensArchives"`
	AcheteursDesactives int      `json:"acheteursDesactives"`
	MatchesSupprimes    int      `json:"matchesSupprimes"`
	Errors              []string `json:"errors,omitempty"`
}

// CleanupService applies the periodic retention policies in a single pass.
// Each policy is isolated: one failing never blocks the others.
type CleanupService struct {
	store  storage.Store
	logger *utils.Logger
	policy Policy
}

// NewCleanupService wires a CleanupService.
func NewCleanupService(store storage.Store, logger *utils.Logger, policy Policy) *CleanupService {
	return &CleanupService{store: store, logger: logger, policy: policy}
}

// Run executes all three policies once and reports the affected counts.
func (s *CleanupService) Run(ctx context.Context) *CleanupReport {
	now := time.Now()
	report := &CleanupReport{}

	n, err := s.store.ArchiveSoldBiens(ctx, now.Add(-s.policy.ArchiveAfter))
	if err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("archive biens: %v", err))
		s.logger.Error("[cleanup] archive biens: %v", err)
	} else {
		report.BiensArchives = n
	}

	n, err = s.store.DeactivateAcheteurs(ctx, now.Add(-s.policy.InactiveAfter))
	if err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("deactivate acheteurs: %v", err))
		s.logger.Error("[cleanup] deactivate acheteurs: %v", err)
	} else {
		report.AcheteursDesactives = n
	}

	n, err = s.store.PurgeRejectedMatches(ctx, now.Add(-s.policy.RejectedRetention))
	if err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("purge matches: %v", err))
		s.logger.Error("[cleanup] purge matches: %v", err)
	} else {
		report.MatchesSupprimes = n
	}

	s.logger.Info("[cleanup] done — %d biens archivés, %d acheteurs désactivés, %d matches supprimés",
		report.BiensArchives, report.AcheteursDesactives, report.MatchesSupprimes)
	return report
}
