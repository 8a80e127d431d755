package scraper

import "testing"

func TestExtractPrice(t *testing.T) {
	tests := []struct {
		raw  string
		want int
		ok   bool
	}{
		{"350 000 €", 350000, true},
		{"1200€", 1200, true},
		{"Prix : 245.000 euros", 245000, true},
		{"loyer 850 € /mois", 850, true},
		{"95 EUR", 95, true},
		{"pas de prix", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		got, ok := ExtractPrice(tt.raw)
		if ok != tt.ok || got != tt.want {
			t.Errorf("ExtractPrice(%q) = %d, %v; want %d, %v", tt.raw, got, ok, tt.want, tt.ok)
		}
	}
}

func TestExtractSurface(t *testing.T) {
	tests := []struct {
		raw  string
		want float64
		ok   bool
	}{
		{"Magnifique T3 de 78m² à Lyon", 78, true},
		{"surface 120 m2", 120, true},
		{"45,5 m²", 45.5, true},
		{"studio meublé", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		got, ok := ExtractSurface(tt.raw)
		if ok != tt.ok || got != tt.want {
			t.Errorf("ExtractSurface(%q) = %.1f, %v; want %.1f, %v", tt.raw, got, ok, tt.want, tt.ok)
		}
	}
}

func TestExtractPieces(t *testing.T) {
	tests := []struct {
		raw  string
		want int
		ok   bool
	}{
		{"T3 lumineux", 3, true},
		{"F2 au calme", 2, true},
		{"maison 5 pièces avec jardin", 5, true},
		{"appartement 4 pcs", 4, true},
		{"3 p cuisine équipée", 3, true},
		{"grand séjour", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		got, ok := ExtractPieces(tt.raw)
		if ok != tt.ok || got != tt.want {
			t.Errorf("ExtractPieces(%q) = %d, %v; want %d, %v", tt.raw, got, ok, tt.want, tt.ok)
		}
	}
}

func TestExtractPhone(t *testing.T) {
	tests := []struct {
		raw  string
		want string
		ok   bool
	}{
		{"Contactez-moi au 06 12 34 56 78", "06 12 34 56 78", true},
		{"tel: 0612345678", "06 12 34 56 78", true},
		{"+33 6 12 34 56 78", "06 12 34 56 78", true},
		{"06.12.34.56.78", "06 12 34 56 78", true},
		{"aucun numéro", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		got, ok := ExtractPhone(tt.raw)
		if ok != tt.ok || got != tt.want {
			t.Errorf("ExtractPhone(%q) = %q, %v; want %q, %v", tt.raw, got, ok, tt.want, tt.ok)
		}
	}
}

func TestExtractEmail(t *testing.T) {
	got, ok := ExtractEmail("écrivez à agence.lyon@example.fr pour visiter")
	if !ok || got != "agence.lyon@example.fr" {
		t.Errorf("ExtractEmail = %q, %v; want agence.lyon@example.fr, true", got, ok)
	}
	if _, ok := ExtractEmail("rien ici"); ok {
		t.Error("expected no email in plain text")
	}
}

func TestSplitCityPostal(t *testing.T) {
	tests := []struct {
		raw        string
		wantCity   string
		wantPostal string
	}{
		{"Lyon 69003", "Lyon", "69003"},
		{"75011 Paris", "Paris", "75011"},
		{"Bordeaux", "Bordeaux", ""},
		{"(33000)", "", "33000"},
		{"", "", ""},
	}

	for _, tt := range tests {
		city, postal := SplitCityPostal(tt.raw)
		if city != tt.wantCity || postal != tt.wantPostal {
			t.Errorf("SplitCityPostal(%q) = %q, %q; want %q, %q",
				tt.raw, city, postal, tt.wantCity, tt.wantPostal)
		}
	}
}

func TestNormalizeText(t *testing.T) {
	got := NormalizeText("  Bel   appartement\n lumineux\t ")
	if got != "Bel appartement lumineux" {
		t.Errorf("NormalizeText = %q", got)
	}
}
