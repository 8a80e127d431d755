package services

import (
	"fmt"
	"sort"
	"strings"

	"immo-prospect/models"
	"immo-prospect/utils"
)

// MarketReport holds the computed analytics over the current listing stock.
type MarketReport struct {
	TotalBiens     int
	Disponibles    int
	PrixMoyen      float64
	PrixMin        int
	PrixMax        int
	PrixM2Moyen    float64
	PlusCher       *models.Bien
	BiensParVille  map[string]int
	BiensParType   map[string]int
	BiensParSource map[string]int
}

// InsightService computes market analytics used by the prospecting dashboard.
type InsightService struct {
	logger *utils.Logger
}

func NewInsightService(logger *utils.Logger) *InsightService {
	return &InsightService{logger: logger}
}

func (s *InsightService) Generate(biens []*models.Bien) *MarketReport {
	report := &MarketReport{
		BiensParVille:  make(map[string]int),
		BiensParType:   make(map[string]int),
		BiensParSource: make(map[string]int),
	}

	if len(biens) == 0 {
		return report
	}

	report.TotalBiens = len(biens)

	var priced []*models.Bien
	var m2Sum float64
	var m2Count int

	for _, b := range biens {
		if b.Statut == models.BienDisponible {
			report.Disponibles++
		}
		if b.Prix > 0 {
			priced = append(priced, b)
		}
		if b.Prix > 0 && b.Surface > 0 {
			m2Sum += float64(b.Prix) / b.Surface
			m2Count++
		}
		if b.Ville != "" {
			report.BiensParVille[b.Ville]++
		}
		if b.Type != "" {
			report.BiensParType[b.Type]++
		}
		if b.Source != "" {
			report.BiensParSource[b.Source]++
		}
	}

	if len(priced) > 0 {
		report.PrixMin = priced[0].Prix
		report.PrixMax = priced[0].Prix
		report.PlusCher = priced[0]
		var total int
		for _, b := range priced {
			total += b.Prix
			if b.Prix < report.PrixMin {
				report.PrixMin = b.Prix
			}
			if b.Prix > report.PrixMax {
				report.PrixMax = b.Prix
				report.PlusCher = b
			}
		}
		report.PrixMoyen = round2(float64(total) / float64(len(priced)))
	}
	if m2Count > 0 {
		report.PrixM2Moyen = round2(m2Sum / float64(m2Count))
	}

	return report
}

func (s *InsightService) Print(r *MarketReport) {
	sep := strings.Repeat("═", 54)
	thin := strings.Repeat("─", 54)

	fmt.Printf("\n\033[1;35m%s\033[0m\n", sep)
	fmt.Printf("\033[1;35m  📊 ÉTAT DU MARCHÉ\033[0m\n")
	fmt.Printf("\033[1;35m%s\033[0m\n\n", sep)

	fmt.Printf("\033[1;33m  Parc d'annonces\033[0m\n")
	fmt.Printf("  %s\n", thin)
	fmt.Printf("  Biens suivis     : \033[1m%d\033[0m\n", r.TotalBiens)
	fmt.Printf("  Disponibles      : \033[1m%d\033[0m\n", r.Disponibles)
	fmt.Println()

	fmt.Printf("\033[1;33m  Prix\033[0m\n")
	fmt.Printf("  %s\n", thin)
	if r.PrixMoyen > 0 {
		fmt.Printf("  Prix moyen   : \033[1;32m%.0f €\033[0m\n", r.PrixMoyen)
		fmt.Printf("  Prix minimum : \033[1;32m%d €\033[0m\n", r.PrixMin)
		fmt.Printf("  Prix maximum : \033[1;32m%d €\033[0m\n", r.PrixMax)
		if r.PrixM2Moyen > 0 {
			fmt.Printf("  Prix moyen/m²: \033[1;32m%.0f €\033[0m\n", r.PrixM2Moyen)
		}
	} else {
		fmt.Printf("  Aucune donnée de prix\n")
	}
	fmt.Println()

	if r.PlusCher != nil {
		fmt.Printf("\033[1;33m  Bien le plus cher\033[0m\n")
		fmt.Printf("  %s\n", thin)
		fmt.Printf("  %s\n", truncate(r.PlusCher.Titre, 50))
		fmt.Printf("  Ville : %s\n", r.PlusCher.Ville)
		fmt.Printf("  Prix  : \033[1;31m%d €\033[0m\n", r.PlusCher.Prix)
		fmt.Println()
	}

	fmt.Printf("\033[1;33m  Biens par ville\033[0m\n")
	fmt.Printf("  %s\n", thin)
	printCounts(r.BiensParVille)
	fmt.Println()

	fmt.Printf("\033[1;33m  Biens par source\033[0m\n")
	fmt.Printf("  %s\n", thin)
	printCounts(r.BiensParSource)

	fmt.Printf("\n\033[1;35m%s\033[0m\n\n", sep)
}

func printCounts(counts map[string]int) {
	if len(counts) == 0 {
		fmt.Printf("  Aucune donnée\n")
		return
	}
	type kv struct {
		key   string
		count int
	}
	var entries []kv
	for k, c := range counts {
		if k != "" {
			entries = append(entries, kv{k, c})
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].count > entries[j].count })
	for _, e := range entries {
		bar := strings.Repeat("█", e.count)
		fmt.Printf("  %-30s %s (%d)\n", truncate(e.key, 28), bar, e.count)
	}
}

func round2(f float64) float64 {
	return float64(int(f*100+0.5)) / 100
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
