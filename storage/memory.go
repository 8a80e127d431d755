package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"immo-prospect/models"
)

// MemoryStore is an in-process Store with the same conflict-key semantics as
// the Postgres backend. It backs tests and store-less runs.
type MemoryStore struct {
	mu        sync.Mutex
	nextBien  int64
	biens     []*models.Bien
	acheteurs []*models.Acheteur
	matches   []*models.Match
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{nextBien: 1}
}

// AddAcheteur seeds a buyer profile, assigning an ID when missing.
func (s *MemoryStore) AddAcheteur(a *models.Acheteur) *models.Acheteur {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID == 0 {
		a.ID = int64(len(s.acheteurs) + 1)
	}
	if a.Statut == "" {
		a.Statut = models.AcheteurActif
	}
	s.acheteurs = append(s.acheteurs, a)
	return a
}

// AddBien seeds a listing directly, assigning an ID when missing.
func (s *MemoryStore) AddBien(b *models.Bien) *models.Bien {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b.ID == 0 {
		b.ID = s.nextBien
		s.nextBien++
	}
	if b.Statut == "" {
		b.Statut = models.BienDisponible
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now()
	}
	s.biens = append(s.biens, b)
	return b
}

func (s *MemoryStore) UpsertItems(ctx context.Context, collection string, items []*models.ScrapedItem, conflictKey string, ignoreDuplicates bool) (int, error) {
	if collection != CollectionBiens {
		return 0, fmt.Errorf("memory: unknown collection %q", collection)
	}
	if conflictKey != "reference" {
		return 0, fmt.Errorf("memory: unsupported conflict key %q", conflictKey)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	saved := 0
	for _, it := range items {
		if s.findByReference(it.Source, it.Reference) != nil {
			if !ignoreDuplicates {
				return saved, fmt.Errorf("memory: duplicate reference %s/%s", it.Source, it.Reference)
			}
			continue
		}
		typ := it.Type
		if typ == "" {
			typ = "appartement"
		}
		b := &models.Bien{
			ID:          s.nextBien,
			Type:        typ,
			Transaction: models.TransactionVente,
			Titre:       it.Title,
			Prix:        it.Price,
			Surface:     it.Surface,
			Pieces:      it.Pieces,
			Ville:       it.City,
			CodePostal:  it.PostalCode,
			Photos:      it.Images,
			Description: it.Description,
			Statut:      models.BienDisponible,
			Source:      it.Source,
			Reference:   it.Reference,
			CreatedAt:   time.Now(),
		}
		s.nextBien++
		s.biens = append(s.biens, b)
		saved++
	}
	return saved, nil
}

func (s *MemoryStore) findByReference(source, reference string) *models.Bien {
	for _, b := range s.biens {
		if b.Source == source && b.Reference == reference {
			return b
		}
	}
	return nil
}

func (s *MemoryStore) GetBien(ctx context.Context, id int64) (*models.Bien, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.biens {
		if b.ID == id {
			return b, nil
		}
	}
	return nil, fmt.Errorf("memory: bien %d not found", id)
}

func (s *MemoryStore) SelectBiens(ctx context.Context, f BienFilter) ([]*models.Bien, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Bien
	for _, b := range s.biens {
		if f.Statut != "" && b.Statut != f.Statut {
			continue
		}
		if f.Source != "" && b.Source != f.Source {
			continue
		}
		if !f.CreatedAfter.IsZero() && b.CreatedAt.Before(f.CreatedAfter) {
			continue
		}
		if f.NotArchived && b.Archive {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

func (s *MemoryStore) GetAcheteur(ctx context.Context, id int64) (*models.Acheteur, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.acheteurs {
		if a.ID == id {
			return a, nil
		}
	}
	return nil, fmt.Errorf("memory: acheteur %d not found", id)
}

func (s *MemoryStore) SelectAcheteurs(ctx context.Context, f AcheteurFilter) ([]*models.Acheteur, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Acheteur
	for _, a := range s.acheteurs {
		if f.Statut != "" && a.Statut != f.Statut {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (s *MemoryStore) InsertMatch(ctx context.Context, m *models.Match) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.matches {
		if existing.BienID == m.BienID && existing.AcheteurID == m.AcheteurID {
			return false, nil
		}
	}
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.Statut == "" {
		m.Statut = models.MatchNouveau
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	s.matches = append(s.matches, m)
	return true, nil
}

func (s *MemoryStore) PendingMatches(ctx context.Context, limit int) ([]*models.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Match
	for _, m := range s.matches {
		if m.EmailEnvoye || m.Statut != models.MatchNouveau {
			continue
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) MarkNotified(ctx context.Context, matchID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.matches {
		if m.ID == matchID {
			m.EmailEnvoye = true
			m.WorkflowNotified = true
			t := at
			m.DateNotification = &t
			return nil
		}
	}
	return fmt.Errorf("memory: match %s not found", matchID)
}

func (s *MemoryStore) CountMatches(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.matches), nil
}

func (s *MemoryStore) ArchiveSoldBiens(ctx context.Context, soldBefore time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	now := time.Now()
	for _, b := range s.biens {
		if b.Statut == models.BienVendu && !b.Archive && b.DateVente != nil && b.DateVente.Before(soldBefore) {
			b.Archive = true
			t := now
			b.DateArchivage = &t
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) DeactivateAcheteurs(ctx context.Context, lastSeenBefore time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, a := range s.acheteurs {
		if a.Statut == models.AcheteurActif && a.DerniereConnexion.Before(lastSeenBefore) {
			a.Statut = models.AcheteurInactif
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) PurgeRejectedMatches(ctx context.Context, olderThan time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.matches[:0]
	n := 0
	for _, m := range s.matches {
		if m.Statut == models.MatchRejete && m.CreatedAt.Before(olderThan) {
			n++
			continue
		}
		kept = append(kept, m)
	}
	s.matches = kept
	return n, nil
}

func (s *MemoryStore) Close() error { return nil }
