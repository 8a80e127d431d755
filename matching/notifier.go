package matching

import (
	"context"
	"fmt"
	"time"

	"immo-prospect/mailer"
	"immo-prospect/models"
	"immo-prospect/storage"
	"immo-prospect/utils"
)

// Notifier sweeps pending matches and dispatches one alert email per match.
// The sweep only ever sees matches with email_envoye unset, so a sent match
// is never re-sent; a failed send leaves the flag unset for the next sweep.
type Notifier struct {
	store  storage.Store
	mailer mailer.Mailer
	logger *utils.Logger

	fromName  string
	fromEmail string
}

// SweepReport summarizes one notification pass.
type SweepReport struct {
	Candidates int `json:"candidates"`
	Sent       int `json:"sent"`
	Failed     int `json:"failed"`
}

// NewNotifier wires a Notifier.
func NewNotifier(store storage.Store, m mailer.Mailer, logger *utils.Logger, fromName, fromEmail string) *Notifier {
	return &Notifier{
		store:     store,
		mailer:    m,
		logger:    logger,
		fromName:  fromName,
		fromEmail: fromEmail,
	}
}

// Sweep processes up to limit pending matches. Per-match failures are
// counted and the sweep continues.
func (n *Notifier) Sweep(ctx context.Context, limit int) (*SweepReport, error) {
	if limit <= 0 {
		limit = 100
	}

	pending, err := n.store.PendingMatches(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("notifier: pending matches: %w", err)
	}

	report := &SweepReport{Candidates: len(pending)}
	for _, m := range pending {
		if err := n.notify(ctx, m); err != nil {
			report.Failed++
			n.logger.Warn("[notifier] match %s not sent: %v", m.ID, err)
			continue
		}
		report.Sent++
	}

	n.logger.Info("[notifier] sweep done — %d candidates, %d sent, %d failed",
		report.Candidates, report.Sent, report.Failed)
	return report, nil
}

func (n *Notifier) notify(ctx context.Context, m *models.Match) error {
	bien, err := n.store.GetBien(ctx, m.BienID)
	if err != nil {
		return fmt.Errorf("load bien: %w", err)
	}
	acheteur, err := n.store.GetAcheteur(ctx, m.AcheteurID)
	if err != nil {
		return fmt.Errorf("load acheteur: %w", err)
	}

	subject, html := composeAlert(bien, acheteur, m.Score)
	err = n.mailer.Send(ctx, mailer.Email{
		To:        acheteur.Email,
		ToName:    acheteur.Nom,
		FromName:  n.fromName,
		FromEmail: n.fromEmail,
		Subject:   subject,
		HTML:      html,
	})
	if err != nil {
		return err
	}

	if err := n.store.MarkNotified(ctx, m.ID, time.Now()); err != nil {
		// The email went out; a failed flag update means a possible re-send
		// next sweep, which beats silently losing the alert.
		return fmt.Errorf("mark notified: %w", err)
	}
	return nil
}

func composeAlert(b *models.Bien, a *models.Acheteur, score int) (subject, html string) {
	subject = fmt.Sprintf("Nouveau bien pour vous : %s à %s", b.Titre, b.Ville)

	html = fmt.Sprintf(`<html><body>
<p>Bonjour %s,</p>
<p>Un bien correspondant à vos critères vient d'être publié (compatibilité %d%%) :</p>
<ul>
  <li><strong>%s</strong></li>
  <li>%s — %s %s</li>
  <li>Prix : %d €</li>
  <li>Surface : %.0f m² — %d pièces</li>
</ul>
<p>Connectez-vous à votre espace pour consulter l'annonce complète.</p>
</body></html>`,
		a.Nom, score, b.Titre, b.Type, b.Ville, b.CodePostal, b.Prix, b.Surface, b.Pieces)

	return subject, html
}
