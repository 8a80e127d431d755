package services

import (
	"testing"

	"immo-prospect/models"
)

func TestInsightsGenerate(t *testing.T) {
	biens := []*models.Bien{
		{Titre: "T3 Lyon", Prix: 250000, Surface: 70, Ville: "Lyon", Type: "appartement", Source: "leboncoin", Statut: models.BienDisponible},
		{Titre: "Maison Bordeaux", Prix: 450000, Surface: 120, Ville: "Bordeaux", Type: "maison", Source: "seloger", Statut: models.BienDisponible},
		{Titre: "Studio Lyon", Prix: 120000, Surface: 25, Ville: "Lyon", Type: "appartement", Source: "leboncoin", Statut: models.BienVendu},
		{Titre: "Sans prix", Ville: "Lyon", Type: "appartement", Source: "moteurimmo", Statut: models.BienDisponible},
	}

	s := NewInsightService(newTestLogger())
	r := s.Generate(biens)

	if r.TotalBiens != 4 {
		t.Errorf("TotalBiens = %d; want 4", r.TotalBiens)
	}
	if r.Disponibles != 3 {
		t.Errorf("Disponibles = %d; want 3", r.Disponibles)
	}
	if r.PrixMin != 120000 || r.PrixMax != 450000 {
		t.Errorf("price range = [%d, %d]; want [120000, 450000]", r.PrixMin, r.PrixMax)
	}
	if r.PrixMoyen != round2((250000+450000+120000)/3.0) {
		t.Errorf("PrixMoyen = %.2f", r.PrixMoyen)
	}
	if r.PlusCher == nil || r.PlusCher.Titre != "Maison Bordeaux" {
		t.Errorf("PlusCher should be the Bordeaux house, got %+v", r.PlusCher)
	}
	if r.BiensParVille["Lyon"] != 3 {
		t.Errorf("Lyon count = %d; want 3", r.BiensParVille["Lyon"])
	}
	if r.BiensParSource["leboncoin"] != 2 {
		t.Errorf("leboncoin count = %d; want 2", r.BiensParSource["leboncoin"])
	}
}

func TestInsightsEmptyInput(t *testing.T) {
	s := NewInsightService(newTestLogger())
	r := s.Generate(nil)

	if r.TotalBiens != 0 || r.PrixMoyen != 0 || r.PlusCher != nil {
		t.Errorf("empty input should yield a zero report, got %+v", r)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("court", 10); got != "court" {
		t.Errorf("truncate short = %q", got)
	}
	if got := truncate("une description vraiment interminable", 12); got != "une descr..." {
		t.Errorf("truncate long = %q", got)
	}
}
