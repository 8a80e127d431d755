package matching

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"immo-prospect/models"
	"immo-prospect/storage"
	"immo-prospect/utils"
)

// Scoring weights. Each soft criterion contributes independently, so
// tightening one criterion never lowers another's contribution, and a buyer
// who leaves a criterion unspecified gets full marks for it.
const (
	weightSurface   = 30.0
	weightPieces    = 15.0
	weightChambres  = 15.0
	weightAmenities = 25.0
	weightPrix      = 15.0

	// NotifyThreshold is the minimum score that materializes a Match.
	NotifyThreshold = 60
)

// Engine computes bien ↔ acheteur compatibility and materializes matches.
type Engine struct {
	store  storage.Store
	logger *utils.Logger

	windowDays int
}

// BatchReport summarizes one matching pass. Skipped counts pairs whose
// scoring failed; they never abort the batch.
type BatchReport struct {
	Pairs    int `json:"pairs"`
	Eligible int `json:"eligible"`
	Created  int `json:"created"`
	Existing int `json:"existing"`
	Skipped  int `json:"skipped"`
}

// NewEngine builds a matching Engine. windowDays bounds how far back
// MatchAcheteur looks for candidate listings.
func NewEngine(store storage.Store, logger *utils.Logger, windowDays int) *Engine {
	if windowDays <= 0 {
		windowDays = 30
	}
	return &Engine{store: store, logger: logger, windowDays: windowDays}
}

// MatchBien scores one listing against every active buyer profile.
func (e *Engine) MatchBien(ctx context.Context, bien *models.Bien) (*BatchReport, error) {
	acheteurs, err := e.store.SelectAcheteurs(ctx, storage.AcheteurFilter{Statut: models.AcheteurActif})
	if err != nil {
		return nil, fmt.Errorf("matching: select acheteurs: %w", err)
	}

	report := &BatchReport{}
	for _, a := range acheteurs {
		e.matchPair(ctx, bien, a, report)
	}

	e.logger.Info("[matching] bien %d vs %d acheteurs — %d eligible, %d created, %d existing, %d skipped",
		bien.ID, report.Pairs, report.Eligible, report.Created, report.Existing, report.Skipped)
	return report, nil
}

// MatchAcheteur scores one buyer profile against recent available listings.
func (e *Engine) MatchAcheteur(ctx context.Context, acheteur *models.Acheteur) (*BatchReport, error) {
	biens, err := e.store.SelectBiens(ctx, storage.BienFilter{
		Statut:       models.BienDisponible,
		CreatedAfter: time.Now().AddDate(0, 0, -e.windowDays),
		NotArchived:  true,
	})
	if err != nil {
		return nil, fmt.Errorf("matching: select biens: %w", err)
	}

	report := &BatchReport{}
	for _, b := range biens {
		e.matchPair(ctx, b, acheteur, report)
	}

	e.logger.Info("[matching] acheteur %d vs %d biens — %d eligible, %d created, %d existing, %d skipped",
		acheteur.ID, report.Pairs, report.Eligible, report.Created, report.Existing, report.Skipped)
	return report, nil
}

// MatchRecent runs the pass over every recent available listing. Used by the
// periodic batch entry point.
func (e *Engine) MatchRecent(ctx context.Context) (*BatchReport, error) {
	biens, err := e.store.SelectBiens(ctx, storage.BienFilter{
		Statut:       models.BienDisponible,
		CreatedAfter: time.Now().AddDate(0, 0, -e.windowDays),
		NotArchived:  true,
	})
	if err != nil {
		return nil, fmt.Errorf("matching: select biens: %w", err)
	}
	acheteurs, err := e.store.SelectAcheteurs(ctx, storage.AcheteurFilter{Statut: models.AcheteurActif})
	if err != nil {
		return nil, fmt.Errorf("matching: select acheteurs: %w", err)
	}

	report := &BatchReport{}
	for _, b := range biens {
		for _, a := range acheteurs {
			e.matchPair(ctx, b, a, report)
		}
	}

	e.logger.Info("[matching] batch over %d biens × %d acheteurs — %d eligible, %d created, %d existing, %d skipped",
		len(biens), len(acheteurs), report.Eligible, report.Created, report.Existing, report.Skipped)
	return report, nil
}

func (e *Engine) matchPair(ctx context.Context, b *models.Bien, a *models.Acheteur, report *BatchReport) {
	report.Pairs++

	score, eligible, err := Score(b, a)
	if err != nil {
		report.Skipped++
		e.logger.Warn("[matching] skipping pair (bien %d, acheteur %d): %v", b.ID, a.ID, err)
		return
	}
	if !eligible || score < NotifyThreshold {
		return
	}
	report.Eligible++

	created, err := e.store.InsertMatch(ctx, &models.Match{
		BienID:     b.ID,
		AcheteurID: a.ID,
		Score:      score,
		Statut:     models.MatchNouveau,
	})
	if err != nil {
		report.Skipped++
		e.logger.Warn("[matching] persist failed (bien %d, acheteur %d): %v", b.ID, a.ID, err)
		return
	}
	if created {
		report.Created++
	} else {
		report.Existing++
	}
}

// Score computes the 0–100 compatibility of a pair. eligible is false when
// the hard predicate fails; an error means the profile or listing is too
// malformed to score and the pair should be skipped.
func Score(b *models.Bien, a *models.Acheteur) (score int, eligible bool, err error) {
	if b == nil || a == nil {
		return 0, false, errors.New("nil bien or acheteur")
	}
	if a.BudgetMin > 0 && a.BudgetMax > 0 && a.BudgetMin > a.BudgetMax {
		return 0, false, fmt.Errorf("acheteur %d: budget_min %d > budget_max %d", a.ID, a.BudgetMin, a.BudgetMax)
	}

	if !eligiblePair(b, a) {
		return 0, false, nil
	}

	total := weightSurface*surfaceScore(b, a) +
		weightPieces*minCountScore(b.Pieces, a.PiecesMin) +
		weightChambres*minCountScore(b.Chambres, a.ChambresMin) +
		weightAmenities*amenityScore(b, a) +
		weightPrix*priceScore(b, a)

	score = int(math.Round(total))
	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}
	return score, true, nil
}

// eligiblePair is the hard predicate: property type, location, budget and an
// active profile must all hold before any soft scoring happens.
func eligiblePair(b *models.Bien, a *models.Acheteur) bool {
	if a.Statut != models.AcheteurActif {
		return false
	}
	if !typeMatches(b.Type, a.TypesBien) {
		return false
	}
	if !locationMatches(b, a) {
		return false
	}
	if a.BudgetMin > 0 && b.Prix < a.BudgetMin {
		return false
	}
	if a.BudgetMax > 0 && b.Prix > a.BudgetMax {
		return false
	}
	return true
}

func typeMatches(bienType string, wanted []string) bool {
	if len(wanted) == 0 {
		return false
	}
	for _, t := range wanted {
		if strings.EqualFold(t, bienType) {
			return true
		}
	}
	return false
}

// locationMatches checks the city set first and falls back to departments
// only when the buyer gave no city-level preference.
func locationMatches(b *models.Bien, a *models.Acheteur) bool {
	if len(a.Villes) > 0 {
		for _, v := range a.Villes {
			if strings.EqualFold(v, b.Ville) {
				return true
			}
		}
		return false
	}
	if len(a.Departements) > 0 {
		dep := b.Departement()
		for _, d := range a.Departements {
			if d == dep {
				return true
			}
		}
		return false
	}
	return false
}

// surfaceScore rewards surfaces close to the center of the buyer's stated
// range: 1.0 at the center, falling off linearly to 0 at twice the
// half-width. One-sided ranges degrade to a ratio check.
func surfaceScore(b *models.Bien, a *models.Acheteur) float64 {
	switch {
	case a.SurfaceMin == nil && a.SurfaceMax == nil:
		return 1
	case a.SurfaceMin != nil && a.SurfaceMax != nil:
		lo, hi := *a.SurfaceMin, *a.SurfaceMax
		if hi <= lo {
			return boundedRatio(b.Surface, lo)
		}
		center := (lo + hi) / 2
		halfWidth := (hi - lo) / 2
		dist := math.Abs(b.Surface - center)
		return clamp01(1 - dist/(2*halfWidth))
	case a.SurfaceMin != nil:
		return boundedRatio(b.Surface, *a.SurfaceMin)
	default:
		if b.Surface <= *a.SurfaceMax {
			return 1
		}
		return clamp01(*a.SurfaceMax / b.Surface)
	}
}

// minCountScore gives full credit at or above the minimum and proportional
// credit below it. No stated minimum scores full.
func minCountScore(have int, min *int) float64 {
	if min == nil || *min <= 0 {
		return 1
	}
	if have >= *min {
		return 1
	}
	return clamp01(float64(have) / float64(*min))
}

// amenityScore is the fraction of requested amenities the listing has.
func amenityScore(b *models.Bien, a *models.Acheteur) float64 {
	wanted := a.Amenites()
	if len(wanted) == 0 {
		return 1
	}
	has := map[string]bool{
		"jardin":    b.Jardin,
		"parking":   b.Parking,
		"balcon":    b.Balcon,
		"terrasse":  b.Terrasse,
		"piscine":   b.Piscine,
		"ascenseur": b.Ascenseur,
	}
	matched := 0
	for _, w := range wanted {
		if has[w] {
			matched++
		}
	}
	return float64(matched) / float64(len(wanted))
}

// priceScore rewards prices low in the budget range. The hard predicate
// already guaranteed the price is inside it.
func priceScore(b *models.Bien, a *models.Acheteur) float64 {
	if a.BudgetMax <= a.BudgetMin {
		return 1
	}
	return clamp01(float64(a.BudgetMax-b.Prix) / float64(a.BudgetMax-a.BudgetMin))
}

func boundedRatio(have, min float64) float64 {
	if min <= 0 || have >= min {
		return 1
	}
	return clamp01(have / min)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
