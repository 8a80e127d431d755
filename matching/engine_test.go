package matching

import (
	"context"
	"testing"

	"immo-prospect/models"
	"immo-prospect/storage"
	"immo-prospect/utils"
)

func newTestLogger() *utils.Logger { return utils.NewLogger() }

func fptr(v float64) *float64 { return &v }
func iptr(v int) *int         { return &v }

func baseBien() *models.Bien {
	return &models.Bien{
		ID:         1,
		Type:       "appartement",
		Titre:      "T3 Lyon 3e",
		Prix:       250000,
		Surface:    70,
		Pieces:     3,
		Chambres:   2,
		Ville:      "Lyon",
		CodePostal: "69003",
		Statut:     models.BienDisponible,
	}
}

func baseAcheteur() *models.Acheteur {
	return &models.Acheteur{
		ID:        1,
		Nom:       "Martin",
		Email:     "martin@example.fr",
		TypesBien: []string{"appartement"},
		BudgetMin: 200000,
		BudgetMax: 300000,
		Villes:    []string{"Lyon"},
		Statut:    models.AcheteurActif,
	}
}

func TestScoreHardPredicate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(b *models.Bien, a *models.Acheteur)
	}{
		{"wrong type", func(b *models.Bien, a *models.Acheteur) { a.TypesBien = []string{"maison"} }},
		{"no types wanted", func(b *models.Bien, a *models.Acheteur) { a.TypesBien = nil }},
		{"wrong city", func(b *models.Bien, a *models.Acheteur) { a.Villes = []string{"Paris"} }},
		{"no location at all", func(b *models.Bien, a *models.Acheteur) { a.Villes = nil }},
		{"over budget", func(b *models.Bien, a *models.Acheteur) { b.Prix = 310000 }},
		{"under budget", func(b *models.Bien, a *models.Acheteur) { b.Prix = 150000 }},
		{"inactive profile", func(b *models.Bien, a *models.Acheteur) { a.Statut = models.AcheteurInactif }},
	}

	for _, tt := range tests {
		b, a := baseBien(), baseAcheteur()
		tt.mutate(b, a)
		_, eligible, err := Score(b, a)
		if err != nil {
			t.Errorf("%s: unexpected error: %v", tt.name, err)
		}
		if eligible {
			t.Errorf("%s: pair should not be eligible", tt.name)
		}
	}
}

func TestScoreBudgetBoundsInclusive(t *testing.T) {
	for _, prix := range []int{200000, 300000} {
		b, a := baseBien(), baseAcheteur()
		b.Prix = prix
		if _, eligible, _ := Score(b, a); !eligible {
			t.Errorf("price %d at budget bound must stay eligible", prix)
		}
	}
}

func TestScoreDepartementFallback(t *testing.T) {
	b, a := baseBien(), baseAcheteur()
	a.Villes = nil
	a.Departements = []string{"69"}
	if _, eligible, _ := Score(b, a); !eligible {
		t.Error("department 69 should match a 69003 listing when no city is given")
	}

	// A stated city list wins over departments.
	a.Villes = []string{"Paris"}
	if _, eligible, _ := Score(b, a); eligible {
		t.Error("city mismatch must not fall back to departments")
	}
}

func TestScoreUnspecifiedCriteriaFullMarks(t *testing.T) {
	b, a := baseBien(), baseAcheteur()
	a.BudgetMin = 0
	score, eligible, err := Score(b, a)
	if err != nil || !eligible {
		t.Fatalf("Score = %d, %v, %v", score, eligible, err)
	}
	// No surface, pieces, chambres or amenity criteria and no lower budget
	// bound: only the price position inside [0, BudgetMax] can cost points.
	if score < 85 {
		t.Errorf("score = %d; unspecified criteria should score near full", score)
	}
}

func TestScoreSurfaceCenterPreference(t *testing.T) {
	a := baseAcheteur()
	a.SurfaceMin = fptr(60)
	a.SurfaceMax = fptr(80)

	atCenter := baseBien()
	atCenter.Surface = 70
	atEdge := baseBien()
	atEdge.Surface = 60
	outside := baseBien()
	outside.Surface = 95

	sc, _, _ := Score(atCenter, a)
	se, _, _ := Score(atEdge, a)
	so, _, _ := Score(outside, a)

	if !(sc > se && se > so) {
		t.Errorf("surface closeness should order scores: center %d > edge %d > outside %d", sc, se, so)
	}
}

func TestScoreAmenityFraction(t *testing.T) {
	a := baseAcheteur()
	a.Jardin = true
	a.Parking = true

	none := baseBien()
	one := baseBien()
	one.Parking = true
	both := baseBien()
	both.Jardin = true
	both.Parking = true

	s0, _, _ := Score(none, a)
	s1, _, _ := Score(one, a)
	s2, _, _ := Score(both, a)

	if !(s2 > s1 && s1 > s0) {
		t.Errorf("amenity coverage should order scores: both %d > one %d > none %d", s2, s1, s0)
	}
	if s2-s0 < 20 {
		t.Errorf("full vs zero amenity coverage should span most of the amenity weight, got %d vs %d", s2, s0)
	}
}

func TestScoreRejectsMalformedBudget(t *testing.T) {
	b, a := baseBien(), baseAcheteur()
	a.BudgetMin = 400000
	a.BudgetMax = 300000
	if _, _, err := Score(b, a); err == nil {
		t.Error("inverted budget range must be an error, not a silent mismatch")
	}
	if _, _, err := Score(nil, a); err == nil {
		t.Error("nil bien must be an error")
	}
}

func TestMatchBienPersistsOnceAboveThreshold(t *testing.T) {
	store := storage.NewMemoryStore()
	store.AddAcheteur(baseAcheteur())
	bien := store.AddBien(baseBien())

	engine := NewEngine(store, newTestLogger(), 30)
	ctx := context.Background()

	report, err := engine.MatchBien(ctx, bien)
	if err != nil {
		t.Fatalf("MatchBien: %v", err)
	}
	if report.Created != 1 {
		t.Fatalf("expected 1 match created, got %+v", report)
	}

	// Re-running the same pass must not duplicate the match.
	report, err = engine.MatchBien(ctx, bien)
	if err != nil {
		t.Fatalf("MatchBien rerun: %v", err)
	}
	if report.Created != 0 || report.Existing != 1 {
		t.Errorf("rerun should find the match existing, got %+v", report)
	}

	if n, _ := store.CountMatches(ctx); n != 1 {
		t.Errorf("store holds %d matches; want 1", n)
	}
}

func TestMatchBienSkipsUnscorablePair(t *testing.T) {
	store := storage.NewMemoryStore()
	bad := baseAcheteur()
	bad.BudgetMin = 500000
	bad.BudgetMax = 100000
	store.AddAcheteur(bad)
	good := baseAcheteur()
	good.ID = 2
	store.AddAcheteur(good)
	bien := store.AddBien(baseBien())

	engine := NewEngine(store, newTestLogger(), 30)
	report, err := engine.MatchBien(context.Background(), bien)
	if err != nil {
		t.Fatalf("MatchBien: %v", err)
	}
	if report.Skipped != 1 {
		t.Errorf("malformed profile should be skipped, got %+v", report)
	}
	if report.Created != 1 {
		t.Errorf("valid profile should still match, got %+v", report)
	}
}

func TestMatchRecentCrossesAllPairs(t *testing.T) {
	store := storage.NewMemoryStore()
	store.AddAcheteur(baseAcheteur())
	lyon := store.AddBien(baseBien())
	paris := baseBien()
	paris.ID = 2
	paris.Ville = "Paris"
	paris.CodePostal = "75011"
	store.AddBien(paris)

	engine := NewEngine(store, newTestLogger(), 30)
	report, err := engine.MatchRecent(context.Background())
	if err != nil {
		t.Fatalf("MatchRecent: %v", err)
	}
	if report.Pairs != 2 {
		t.Errorf("expected 2 pairs considered, got %d", report.Pairs)
	}
	if report.Created != 1 {
		t.Errorf("only the Lyon listing should match, got %+v", report)
	}
	_ = lyon
}
