package models

import "time"

// Match statuses.
const (
	MatchNouveau = "nouveau"
	MatchRejete  = "rejete"
)

// Match is a scored (bien, acheteur) pairing. The pair is the key: re-running
// the matching pass over an unchanged pair must not create a second row.
// Once EmailEnvoye is set the notification sweep never picks the match again.
type Match struct {
	ID               string     `json:"id"`
	BienID           int64      `json:"bien_id"`
	AcheteurID       int64      `json:"acheteur_id"`
	Score            int        `json:"score"`
	Statut           string     `json:"statut"`
	EmailEnvoye      bool       `json:"email_envoye"`
	DateNotification *time.Time `json:"date_notification,omitempty"`
	WorkflowNotified bool       `json:"workflow_notified"`
	CreatedAt        time.Time  `json:"created_at"`
}
