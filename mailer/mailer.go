package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"immo-prospect/utils"
)

// Email is one transactional message.
type Email struct {
	To        string
	ToName    string
	FromName  string
	FromEmail string
	Subject   string
	HTML      string
}

// Mailer dispatches transactional email. Implementations must treat Send as
// best-effort: the caller retries on the next sweep, not here.
type Mailer interface {
	Send(ctx context.Context, e Email) error
}

// APIMailer posts messages to a hosted transactional-email HTTP API.
type APIMailer struct {
	url    string
	apiKey string
	client *http.Client
}

// NewAPIMailer builds an APIMailer with a bounded per-request timeout.
func NewAPIMailer(url, apiKey string, timeout time.Duration) *APIMailer {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &APIMailer{
		url:    url,
		apiKey: apiKey,
		client: &http.Client{Timeout: timeout},
	}
}

type apiPayload struct {
	Sender      apiAddress   `json:"sender"`
	To          []apiAddress `json:"to"`
	Subject     string       `json:"subject"`
	HTMLContent string       `json:"htmlContent"`
}

type apiAddress struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// Send posts the message. Any non-2xx response is an error.
func (m *APIMailer) Send(ctx context.Context, e Email) error {
	body, err := json.Marshal(apiPayload{
		Sender:      apiAddress{Email: e.FromEmail, Name: e.FromName},
		To:          []apiAddress{{Email: e.To, Name: e.ToName}},
		Subject:     e.Subject,
		HTMLContent: e.HTML,
	})
	if err != nil {
		return fmt.Errorf("mailer: encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("mailer: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api-key", m.apiKey)

	res, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("mailer: send: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return fmt.Errorf("mailer: status %d: %s", res.StatusCode, detail)
	}
	return nil
}

// LogMailer logs messages instead of sending them. Used when no API key is
// configured, so local runs never email real buyers.
type LogMailer struct {
	Logger *utils.Logger
}

func (m *LogMailer) Send(ctx context.Context, e Email) error {
	m.Logger.Info("[mailer] (dry run) to=%s subject=%q", e.To, e.Subject)
	return nil
}
