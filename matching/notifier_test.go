package matching

import (
	"context"
	"errors"
	"strings"
	"testing"

	"immo-prospect/mailer"
	"immo-prospect/models"
	"immo-prospect/storage"
)

// recordingMailer captures sent emails and can be told to fail.
type recordingMailer struct {
	sent    []mailer.Email
	failure error
}

func (m *recordingMailer) Send(ctx context.Context, e mailer.Email) error {
	if m.failure != nil {
		return m.failure
	}
	m.sent = append(m.sent, e)
	return nil
}

func seedMatch(t *testing.T, store *storage.MemoryStore) *models.Match {
	t.Helper()
	store.AddBien(baseBien())
	store.AddAcheteur(baseAcheteur())
	m := &models.Match{BienID: 1, AcheteurID: 1, Score: 85}
	if created, err := store.InsertMatch(context.Background(), m); err != nil || !created {
		t.Fatalf("seed match: created=%v err=%v", created, err)
	}
	return m
}

func TestSweepSendsAndMarks(t *testing.T) {
	store := storage.NewMemoryStore()
	seedMatch(t, store)
	mail := &recordingMailer{}
	n := NewNotifier(store, mail, newTestLogger(), "ImmoProspect", "alertes@immoprospect.fr")

	ctx := context.Background()
	report, err := n.Sweep(ctx, 0)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if report.Candidates != 1 || report.Sent != 1 || report.Failed != 0 {
		t.Fatalf("report = %+v; want 1 candidate sent", report)
	}
	if len(mail.sent) != 1 {
		t.Fatalf("expected 1 email, got %d", len(mail.sent))
	}

	e := mail.sent[0]
	if e.To != "martin@example.fr" {
		t.Errorf("email to %q; want the buyer address", e.To)
	}
	if !strings.Contains(e.Subject, "Lyon") {
		t.Errorf("subject %q should name the city", e.Subject)
	}
	if !strings.Contains(e.HTML, "85") {
		t.Errorf("body should carry the compatibility score")
	}

	// The match is now flagged: a second sweep has nothing to do.
	report, err = n.Sweep(ctx, 0)
	if err != nil {
		t.Fatalf("second Sweep: %v", err)
	}
	if report.Candidates != 0 || len(mail.sent) != 1 {
		t.Errorf("notified match must not be re-sent: report=%+v emails=%d", report, len(mail.sent))
	}
}

func TestSweepFailureLeavesMatchPending(t *testing.T) {
	store := storage.NewMemoryStore()
	seedMatch(t, store)
	mail := &recordingMailer{failure: errors.New("smtp relay down")}
	n := NewNotifier(store, mail, newTestLogger(), "ImmoProspect", "alertes@immoprospect.fr")

	ctx := context.Background()
	report, err := n.Sweep(ctx, 0)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if report.Failed != 1 || report.Sent != 0 {
		t.Fatalf("report = %+v; want 1 failure", report)
	}

	// The flag stayed unset, so the next sweep retries it.
	mail.failure = nil
	report, err = n.Sweep(ctx, 0)
	if err != nil {
		t.Fatalf("retry Sweep: %v", err)
	}
	if report.Sent != 1 {
		t.Errorf("failed match should be retried on the next sweep, got %+v", report)
	}
}

func TestSweepSkipsBrokenMatch(t *testing.T) {
	store := storage.NewMemoryStore()
	store.AddAcheteur(baseAcheteur())
	// A match pointing at a listing that no longer exists.
	if _, err := store.InsertMatch(context.Background(), &models.Match{BienID: 99, AcheteurID: 1, Score: 70}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	mail := &recordingMailer{}
	n := NewNotifier(store, mail, newTestLogger(), "ImmoProspect", "alertes@immoprospect.fr")

	report, err := n.Sweep(context.Background(), 0)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if report.Failed != 1 || len(mail.sent) != 0 {
		t.Errorf("dangling match should fail without sending, got %+v", report)
	}
}
