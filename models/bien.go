package models

import "time"

// Bien statuses.
const (
	BienDisponible    = "disponible"
	BienVendu         = "vendu"
	BienSousCompromis = "sous_compromis"
)

// Transaction kinds.
const (
	TransactionVente    = "vente"
	TransactionLocation = "location"
)

// Bien is a property listing, either scraped or manually published. Reference
// is unique per source and serves as the natural dedupe key across runs.
type Bien struct {
	ID            int64      `json:"id"`
	Type          string     `json:"type"` // appartement, maison, terrain, ...
	Transaction   string     `json:"transaction"`
	Titre         string     `json:"titre"`
	Prix          int        `json:"prix"`
	Surface       float64    `json:"surface"`
	Pieces        int        `json:"pieces"`
	Chambres      int        `json:"chambres"`
	Ville         string     `json:"ville"`
	CodePostal    string     `json:"code_postal"`
	DPE           string     `json:"dpe"`
	GES           string     `json:"ges"`
	Jardin        bool       `json:"jardin"`
	Parking       bool       `json:"parking"`
	Balcon        bool       `json:"balcon"`
	Terrasse      bool       `json:"terrasse"`
	Piscine       bool       `json:"piscine"`
	Ascenseur     bool       `json:"ascenseur"`
	Photos        []string   `json:"photos,omitempty"`
	Description   string     `json:"description"`
	Statut        string     `json:"statut"`
	Source        string     `json:"source"`
	Reference     string     `json:"reference"`
	DateVente     *time.Time `json:"date_vente,omitempty"`
	Archive       bool       `json:"archive"`
	DateArchivage *time.Time `json:"date_archivage,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// Departement returns the two-digit department prefix of the postal code,
// or "" when the postal code is missing or malformed.
func (b *Bien) Departement() string {
	if len(b.CodePostal) < 2 {
		return ""
	}
	return b.CodePostal[:2]
}
