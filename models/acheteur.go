package models

import "time"

// Acheteur statuses. The transition is one-way: actif profiles get deactivated
// by the inactivity policy and are never reactivated automatically.
const (
	AcheteurActif   = "actif"
	AcheteurInactif = "inactif"
)

// Acheteur is a buyer profile with search criteria. Optional soft criteria are
// pointers so "not specified" stays distinct from zero.
type Acheteur struct {
	ID        int64  `json:"id"`
	Nom       string `json:"nom"`
	Email     string `json:"email"`
	Telephone string `json:"telephone"`

	TypesBien   []string `json:"types_bien"`
	BudgetMin   int      `json:"budget_min"`
	BudgetMax   int      `json:"budget_max"`
	SurfaceMin  *float64 `json:"surface_min,omitempty"`
	SurfaceMax  *float64 `json:"surface_max,omitempty"`
	PiecesMin   *int     `json:"pieces_min,omitempty"`
	ChambresMin *int     `json:"chambres_min,omitempty"`

	Villes       []string `json:"villes"`
	Departements []string `json:"departements"`

	Jardin    bool `json:"jardin"`
	Parking   bool `json:"parking"`
	Balcon    bool `json:"balcon"`
	Terrasse  bool `json:"terrasse"`
	Piscine   bool `json:"piscine"`
	Ascenseur bool `json:"ascenseur"`

	Statut            string    `json:"statut"`
	AgentID           string    `json:"agent_id"`
	DerniereConnexion time.Time `json:"derniere_connexion"`
	CreatedAt         time.Time `json:"created_at"`
}

// Amenites lists the amenity preferences the buyer actually asked for.
func (a *Acheteur) Amenites() []string {
	var want []string
	for _, p := range []struct {
		name string
		on   bool
	}{
		{"jardin", a.Jardin},
		{"parking", a.Parking},
		{"balcon", a.Balcon},
		{"terrasse", a.Terrasse},
		{"piscine", a.Piscine},
		{"ascenseur", a.Ascenseur},
	} {
		if p.on {
			want = append(want, p.name)
		}
	}
	return want
}
