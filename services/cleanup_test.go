package services

import (
	"context"
	"testing"
	"time"

	"immo-prospect/models"
	"immo-prospect/storage"
	"immo-prospect/utils"
)

func newTestLogger() *utils.Logger { return utils.NewLogger() }

func TestCleanupArchivesOldSales(t *testing.T) {
	store := storage.NewMemoryStore()
	oldSale := time.Now().Add(-120 * 24 * time.Hour)
	recentSale := time.Now().Add(-10 * 24 * time.Hour)

	store.AddBien(&models.Bien{Titre: "Vendu il y a longtemps", Statut: models.BienVendu, DateVente: &oldSale})
	store.AddBien(&models.Bien{Titre: "Vendu récemment", Statut: models.BienVendu, DateVente: &recentSale})
	store.AddBien(&models.Bien{Titre: "Toujours en vente", Statut: models.BienDisponible})

	svc := NewCleanupService(store, newTestLogger(), DefaultPolicy())
	report := svc.Run(context.Background())

	if report.BiensArchives != 1 {
		t.Errorf("expected 1 bien archived, got %d", report.BiensArchives)
	}

	active, err := store.SelectBiens(context.Background(), storage.BienFilter{NotArchived: true})
	if err != nil {
		t.Fatalf("SelectBiens: %v", err)
	}
	if len(active) != 2 {
		t.Errorf("expected 2 non-archived biens, got %d", len(active))
	}
}

func TestCleanupDeactivatesDormantAcheteurs(t *testing.T) {
	store := storage.NewMemoryStore()
	store.AddAcheteur(&models.Acheteur{Nom: "Dormant", DerniereConnexion: time.Now().Add(-200 * 24 * time.Hour)})
	store.AddAcheteur(&models.Acheteur{Nom: "Actif", DerniereConnexion: time.Now().Add(-5 * 24 * time.Hour)})

	svc := NewCleanupService(store, newTestLogger(), DefaultPolicy())
	report := svc.Run(context.Background())

	if report.AcheteursDesactives != 1 {
		t.Errorf("expected 1 acheteur deactivated, got %d", report.AcheteursDesactives)
	}

	actifs, err := store.SelectAcheteurs(context.Background(), storage.AcheteurFilter{Statut: models.AcheteurActif})
	if err != nil {
		t.Fatalf("SelectAcheteurs: %v", err)
	}
	if len(actifs) != 1 || actifs[0].Nom != "Actif" {
		t.Errorf("only the recently seen profile should stay actif, got %d", len(actifs))
	}
}

func TestCleanupPurgesOldRejectedMatches(t *testing.T) {
	store := storage.NewMemoryStore()
	ctx := context.Background()
	store.AddBien(&models.Bien{ID: 1, Titre: "Bien"})
	store.AddAcheteur(&models.Acheteur{ID: 1, Nom: "Martin"})

	oldRejected := &models.Match{BienID: 1, AcheteurID: 1, Statut: models.MatchRejete,
		CreatedAt: time.Now().Add(-60 * 24 * time.Hour)}
	if _, err := store.InsertMatch(ctx, oldRejected); err != nil {
		t.Fatalf("seed: %v", err)
	}

	svc := NewCleanupService(store, newTestLogger(), DefaultPolicy())
	report := svc.Run(ctx)

	if report.MatchesSupprimes != 1 {
		t.Errorf("expected 1 match purged, got %d", report.MatchesSupprimes)
	}
	if n, _ := store.CountMatches(ctx); n != 0 {
		t.Errorf("store should be empty of matches, got %d", n)
	}
}

func TestCleanupKeepsRecentRejections(t *testing.T) {
	store := storage.NewMemoryStore()
	ctx := context.Background()
	recent := &models.Match{BienID: 1, AcheteurID: 1, Statut: models.MatchRejete,
		CreatedAt: time.Now().Add(-2 * 24 * time.Hour)}
	if _, err := store.InsertMatch(ctx, recent); err != nil {
		t.Fatalf("seed: %v", err)
	}

	svc := NewCleanupService(store, newTestLogger(), DefaultPolicy())
	report := svc.Run(ctx)

	if report.MatchesSupprimes != 0 {
		t.Errorf("recent rejection must survive the purge, got %d deleted", report.MatchesSupprimes)
	}
}
