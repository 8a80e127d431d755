package storage

import (
	"context"
	"testing"

	"immo-prospect/models"
)

func TestUpsertItemsConflictOnReference(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	items := []*models.ScrapedItem{
		{Source: "leboncoin", Reference: "a1", Title: "T3 Lyon", Price: 250000},
		{Source: "leboncoin", Reference: "b2", Title: "T2 Paris", Price: 400000},
	}
	saved, err := store.UpsertItems(ctx, CollectionBiens, items, "reference", true)
	if err != nil {
		t.Fatalf("UpsertItems: %v", err)
	}
	if saved != 2 {
		t.Errorf("first insert saved %d; want 2", saved)
	}

	// Same references again, plus one new: only the new row lands.
	again := []*models.ScrapedItem{
		{Source: "leboncoin", Reference: "a1", Title: "T3 Lyon republished", Price: 255000},
		{Source: "leboncoin", Reference: "c3", Title: "Maison Nantes", Price: 320000},
	}
	saved, err = store.UpsertItems(ctx, CollectionBiens, again, "reference", true)
	if err != nil {
		t.Fatalf("UpsertItems rerun: %v", err)
	}
	if saved != 1 {
		t.Errorf("rerun saved %d; want 1", saved)
	}

	biens, err := store.SelectBiens(ctx, BienFilter{})
	if err != nil {
		t.Fatalf("SelectBiens: %v", err)
	}
	if len(biens) != 3 {
		t.Errorf("store holds %d biens; want 3", len(biens))
	}
}

func TestUpsertItemsSameReferenceDifferentSource(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	items := []*models.ScrapedItem{
		{Source: "leboncoin", Reference: "a1", Title: "T3 Lyon"},
		{Source: "seloger", Reference: "a1", Title: "T3 Lyon"},
	}
	saved, err := store.UpsertItems(ctx, CollectionBiens, items, "reference", true)
	if err != nil {
		t.Fatalf("UpsertItems: %v", err)
	}
	// The conflict target is (source, reference), not reference alone.
	if saved != 2 {
		t.Errorf("saved %d; want 2", saved)
	}
}

func TestUpsertItemsRejectsUnknownCollection(t *testing.T) {
	store := NewMemoryStore()
	_, err := store.UpsertItems(context.Background(), "inconnue", nil, "reference", true)
	if err == nil {
		t.Error("expected an error for an unknown collection")
	}
}

func TestUpsertItemsDefaultsPropertyType(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if _, err := store.UpsertItems(ctx, CollectionBiens, []*models.ScrapedItem{
		{Source: "leboncoin", Reference: "a1", Title: "Sans type"},
	}, "reference", true); err != nil {
		t.Fatalf("UpsertItems: %v", err)
	}

	biens, _ := store.SelectBiens(ctx, BienFilter{})
	if len(biens) != 1 || biens[0].Type != "appartement" {
		t.Errorf("missing type should default to appartement, got %+v", biens)
	}
}
