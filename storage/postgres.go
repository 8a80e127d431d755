package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"immo-prospect/models"
)

// PostgresStore persists biens, acheteurs and matches in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens a connection, runs the schema bootstrap, and returns
// a ready-to-use store.
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	for i := 0; i < 10; i++ {
		if err = db.Ping(); err == nil {
			break
		}
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: ping failed after retries: %w", err)
	}

	s := &PostgresStore{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}

	return s, nil
}

func (s *PostgresStore) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS biens (
			id             BIGSERIAL PRIMARY KEY,
			type           VARCHAR(50)  NOT NULL DEFAULT 'appartement',
			transaction    VARCHAR(20)  NOT NULL DEFAULT 'vente',
			titre          TEXT         NOT NULL,
			prix           INTEGER      NOT NULL DEFAULT 0,
			surface        NUMERIC(8,2) NOT NULL DEFAULT 0,
			pieces         INTEGER      NOT NULL DEFAULT 0,
			chambres       INTEGER      NOT NULL DEFAULT 0,
			ville          TEXT         NOT NULL DEFAULT '',
			code_postal    VARCHAR(10)  NOT NULL DEFAULT '',
			dpe            VARCHAR(2)   NOT NULL DEFAULT '',
			ges            VARCHAR(2)   NOT NULL DEFAULT '',
			jardin         BOOLEAN      NOT NULL DEFAULT FALSE,
			parking        BOOLEAN      NOT NULL DEFAULT FALSE,
			balcon         BOOLEAN      NOT NULL DEFAULT FALSE,
			terrasse       BOOLEAN      NOT NULL DEFAULT FALSE,
			piscine        BOOLEAN      NOT NULL DEFAULT FALSE,
			ascenseur      BOOLEAN      NOT NULL DEFAULT FALSE,
			photos         TEXT[]       NOT NULL DEFAULT '{}',
			description    TEXT         NOT NULL DEFAULT '',
			statut         VARCHAR(20)  NOT NULL DEFAULT 'disponible',
			source         VARCHAR(50)  NOT NULL,
			reference      TEXT         NOT NULL,
			date_vente     TIMESTAMPTZ,
			archive        BOOLEAN      NOT NULL DEFAULT FALSE,
			date_archivage TIMESTAMPTZ,
			created_at     TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
			UNIQUE (source, reference)
		);

		CREATE TABLE IF NOT EXISTS acheteurs (
			id                 BIGSERIAL PRIMARY KEY,
			nom                TEXT         NOT NULL,
			email              TEXT         NOT NULL,
			telephone          TEXT         NOT NULL DEFAULT '',
			types_bien         TEXT[]       NOT NULL DEFAULT '{}',
			budget_min         INTEGER      NOT NULL DEFAULT 0,
			budget_max         INTEGER      NOT NULL DEFAULT 0,
			surface_min        NUMERIC(8,2),
			surface_max        NUMERIC(8,2),
			pieces_min         INTEGER,
			chambres_min       INTEGER,
			villes             TEXT[]       NOT NULL DEFAULT '{}',
			departements       TEXT[]       NOT NULL DEFAULT '{}',
			jardin             BOOLEAN      NOT NULL DEFAULT FALSE,
			parking            BOOLEAN      NOT NULL DEFAULT FALSE,
			balcon             BOOLEAN      NOT NULL DEFAULT FALSE,
			terrasse           BOOLEAN      NOT NULL DEFAULT FALSE,
			piscine            BOOLEAN      NOT NULL DEFAULT FALSE,
			ascenseur          BOOLEAN      NOT NULL DEFAULT FALSE,
			statut             VARCHAR(20)  NOT NULL DEFAULT 'actif',
			agent_id           TEXT         NOT NULL DEFAULT '',
			derniere_connexion TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
			created_at         TIMESTAMPTZ  NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS matches (
			id                UUID         PRIMARY KEY,
			bien_id           BIGINT       NOT NULL REFERENCES biens(id),
			acheteur_id       BIGINT       NOT NULL REFERENCES acheteurs(id),
			score             INTEGER      NOT NULL,
			statut            VARCHAR(20)  NOT NULL DEFAULT 'nouveau',
			email_envoye      BOOLEAN      NOT NULL DEFAULT FALSE,
			date_notification TIMESTAMPTZ,
			workflow_notified BOOLEAN      NOT NULL DEFAULT FALSE,
			created_at        TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
			UNIQUE (bien_id, acheteur_id)
		);

		CREATE INDEX IF NOT EXISTS idx_biens_ville      ON biens(ville);
		CREATE INDEX IF NOT EXISTS idx_biens_statut     ON biens(statut);
		CREATE INDEX IF NOT EXISTS idx_biens_created_at ON biens(created_at);
		CREATE INDEX IF NOT EXISTS idx_acheteurs_statut ON acheteurs(statut);
		CREATE INDEX IF NOT EXISTS idx_matches_pending  ON matches(email_envoye, statut);
	`)
	return err
}

// UpsertItems batch-inserts scraped items into the biens collection. The
// conflict target is the per-source natural key; duplicates from earlier runs
// are skipped, not errors.
func (s *PostgresStore) UpsertItems(ctx context.Context, collection string, items []*models.ScrapedItem, conflictKey string, ignoreDuplicates bool) (int, error) {
	if collection != CollectionBiens {
		return 0, fmt.Errorf("postgres: unknown collection %q", collection)
	}
	if conflictKey != "reference" {
		return 0, fmt.Errorf("postgres: unsupported conflict key %q", conflictKey)
	}
	if len(items) == 0 {
		return 0, nil
	}

	saved := 0
	const batchSize = 50
	for i := 0; i < len(items); i += batchSize {
		end := i + batchSize
		if end > len(items) {
			end = len(items)
		}
		n, err := s.insertBienBatch(ctx, items[i:end], ignoreDuplicates)
		if err != nil {
			return saved, err
		}
		saved += n
	}
	return saved, nil
}

func (s *PostgresStore) insertBienBatch(ctx context.Context, batch []*models.ScrapedItem, ignoreDuplicates bool) (int, error) {
	const cols = 11
	valueStrings := make([]string, 0, len(batch))
	valueArgs := make([]interface{}, 0, len(batch)*cols)

	for idx, it := range batch {
		typ := it.Type
		if typ == "" {
			typ = "appartement"
		}
		base := idx * cols
		placeholders := make([]string, cols)
		for j := 0; j < cols; j++ {
			placeholders[j] = fmt.Sprintf("$%d", base+j+1)
		}
		valueStrings = append(valueStrings, "("+strings.Join(placeholders, ",")+")")
		valueArgs = append(valueArgs,
			typ, it.Title, it.Price, it.Surface, it.Pieces, it.City, it.PostalCode,
			it.Description, pq.Array(it.Images), it.Source, it.Reference)
	}

	conflict := ""
	if ignoreDuplicates {
		conflict = "ON CONFLICT (source, reference) DO NOTHING"
	}

	query := fmt.Sprintf(`
		INSERT INTO biens (type, titre, prix, surface, pieces, ville, code_postal, description, photos, source, reference)
		VALUES %s
		%s
	`, strings.Join(valueStrings, ","), conflict)

	res, err := s.db.ExecContext(ctx, query, valueArgs...)
	if err != nil {
		return 0, fmt.Errorf("postgres: insert biens: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

const bienColumns = `id, type, transaction, titre, prix, surface, pieces, chambres, ville, code_postal,
	dpe, ges, jardin, parking, balcon, terrasse, piscine, ascenseur, photos, description,
	statut, source, reference, date_vente, archive, date_archivage, created_at`

func scanBien(row interface{ Scan(...interface{}) error }) (*models.Bien, error) {
	b := &models.Bien{}
	err := row.Scan(
		&b.ID, &b.Type, &b.Transaction, &b.Titre, &b.Prix, &b.Surface, &b.Pieces, &b.Chambres,
		&b.Ville, &b.CodePostal, &b.DPE, &b.GES, &b.Jardin, &b.Parking, &b.Balcon, &b.Terrasse,
		&b.Piscine, &b.Ascenseur, pq.Array(&b.Photos), &b.Description, &b.Statut, &b.Source,
		&b.Reference, &b.DateVente, &b.Archive, &b.DateArchivage, &b.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (s *PostgresStore) GetBien(ctx context.Context, id int64) (*models.Bien, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+bienColumns+" FROM biens WHERE id = $1", id)
	b, err := scanBien(row)
	if err != nil {
		return nil, fmt.Errorf("postgres: get bien %d: %w", id, err)
	}
	return b, nil
}

func (s *PostgresStore) SelectBiens(ctx context.Context, f BienFilter) ([]*models.Bien, error) {
	query := "SELECT " + bienColumns + " FROM biens WHERE 1=1"
	var args []interface{}

	if f.Statut != "" {
		args = append(args, f.Statut)
		query += fmt.Sprintf(" AND statut = $%d", len(args))
	}
	if f.Source != "" {
		args = append(args, f.Source)
		query += fmt.Sprintf(" AND source = $%d", len(args))
	}
	if !f.CreatedAfter.IsZero() {
		args = append(args, f.CreatedAfter)
		query += fmt.Sprintf(" AND created_at >= $%d", len(args))
	}
	if f.NotArchived {
		query += " AND archive = FALSE"
	}
	query += " ORDER BY id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: select biens: %w", err)
	}
	defer rows.Close()

	var biens []*models.Bien
	for rows.Next() {
		b, err := scanBien(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan bien: %w", err)
		}
		biens = append(biens, b)
	}
	return biens, rows.Err()
}

const acheteurColumns = `id, nom, email, telephone, types_bien, budget_min, budget_max,
	surface_min, surface_max, pieces_min, chambres_min, villes, departements,
	jardin, parking, balcon, terrasse, piscine, ascenseur, statut, agent_id,
	derniere_connexion, created_at`

func scanAcheteur(row interface{ Scan(...interface{}) error }) (*models.Acheteur, error) {
	a := &models.Acheteur{}
	err := row.Scan(
		&a.ID, &a.Nom, &a.Email, &a.Telephone, pq.Array(&a.TypesBien), &a.BudgetMin, &a.BudgetMax,
		&a.SurfaceMin, &a.SurfaceMax, &a.PiecesMin, &a.ChambresMin,
		pq.Array(&a.Villes), pq.Array(&a.Departements),
		&a.Jardin, &a.Parking, &a.Balcon, &a.Terrasse, &a.Piscine, &a.Ascenseur,
		&a.Statut, &a.AgentID, &a.DerniereConnexion, &a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (s *PostgresStore) GetAcheteur(ctx context.Context, id int64) (*models.Acheteur, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+acheteurColumns+" FROM acheteurs WHERE id = $1", id)
	a, err := scanAcheteur(row)
	if err != nil {
		return nil, fmt.Errorf("postgres: get acheteur %d: %w", id, err)
	}
	return a, nil
}

func (s *PostgresStore) SelectAcheteurs(ctx context.Context, f AcheteurFilter) ([]*models.Acheteur, error) {
	query := "SELECT " + acheteurColumns + " FROM acheteurs"
	var args []interface{}
	if f.Statut != "" {
		query += " WHERE statut = $1"
		args = append(args, f.Statut)
	}
	query += " ORDER BY id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: select acheteurs: %w", err)
	}
	defer rows.Close()

	var acheteurs []*models.Acheteur
	for rows.Next() {
		a, err := scanAcheteur(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan acheteur: %w", err)
		}
		acheteurs = append(acheteurs, a)
	}
	return acheteurs, rows.Err()
}

func (s *PostgresStore) InsertMatch(ctx context.Context, m *models.Match) (bool, error) {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO matches (id, bien_id, acheteur_id, score, statut)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (bien_id, acheteur_id) DO NOTHING
	`, m.ID, m.BienID, m.AcheteurID, m.Score, m.Statut)
	if err != nil {
		return false, fmt.Errorf("postgres: insert match: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (s *PostgresStore) PendingMatches(ctx context.Context, limit int) ([]*models.Match, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, bien_id, acheteur_id, score, statut, email_envoye, date_notification, workflow_notified, created_at
		FROM matches
		WHERE email_envoye = FALSE AND statut = $1
		ORDER BY created_at
		LIMIT $2
	`, models.MatchNouveau, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: pending matches: %w", err)
	}
	defer rows.Close()

	var matches []*models.Match
	for rows.Next() {
		m := &models.Match{}
		if err := rows.Scan(&m.ID, &m.BienID, &m.AcheteurID, &m.Score, &m.Statut,
			&m.EmailEnvoye, &m.DateNotification, &m.WorkflowNotified, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan match: %w", err)
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

func (s *PostgresStore) MarkNotified(ctx context.Context, matchID string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE matches
		SET email_envoye = TRUE, date_notification = $2, workflow_notified = TRUE
		WHERE id = $1
	`, matchID, at)
	if err != nil {
		return fmt.Errorf("postgres: mark notified: %w", err)
	}
	return nil
}

func (s *PostgresStore) CountMatches(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM matches").Scan(&n); err != nil {
		return 0, fmt.Errorf("postgres: count matches: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) ArchiveSoldBiens(ctx context.Context, soldBefore time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE biens
		SET archive = TRUE, date_archivage = NOW()
		WHERE statut = $1 AND archive = FALSE AND date_vente IS NOT NULL AND date_vente < $2
	`, models.BienVendu, soldBefore)
	if err != nil {
		return 0, fmt.Errorf("postgres: archive biens: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (s *PostgresStore) DeactivateAcheteurs(ctx context.Context, lastSeenBefore time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE acheteurs
		SET statut = $1
		WHERE statut = $2 AND derniere_connexion < $3
	`, models.AcheteurInactif, models.AcheteurActif, lastSeenBefore)
	if err != nil {
		return 0, fmt.Errorf("postgres: deactivate acheteurs: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (s *PostgresStore) PurgeRejectedMatches(ctx context.Context, olderThan time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM matches
		WHERE statut = $1 AND created_at < $2
	`, models.MatchRejete, olderThan)
	if err != nil {
		return 0, fmt.Errorf("postgres: purge matches: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
