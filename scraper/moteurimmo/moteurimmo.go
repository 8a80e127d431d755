package moteurimmo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"immo-prospect/config"
	"immo-prospect/models"
	"immo-prospect/scraper"
	"immo-prospect/utils"
)

const source = "moteurimmo"

// Scraper pulls listings from the MoteurImmo partner API. Unlike the portal
// scrapers this source is a structured JSON feed with generous rate limits;
// the remaining quota is tracked and logged but never stops a run mid-way.
type Scraper struct {
	cfg    config.SourceConfig
	logger *utils.Logger
	client *http.Client

	quotaRemaining int
}

// New creates a MoteurImmo Scraper from its source config.
func New(cfg config.SourceConfig, logger *utils.Logger) *Scraper {
	return &Scraper{cfg: cfg, logger: logger, quotaRemaining: -1}
}

func (s *Scraper) Name() string { return source }

// Init checks the one required credential. A missing API key means the run
// cannot start at all.
func (s *Scraper) Init(ctx context.Context) error {
	if s.cfg.APIKey == "" {
		return errors.New("moteurimmo: api key not configured")
	}
	if s.cfg.BaseURL == "" {
		return errors.New("moteurimmo: base_url not configured")
	}
	s.client = &http.Client{Timeout: 30 * time.Second}
	return nil
}

type searchRequest struct {
	City       string  `json:"city,omitempty"`
	PriceMin   int     `json:"priceMin,omitempty"`
	PriceMax   int     `json:"priceMax,omitempty"`
	SurfaceMin float64 `json:"surfaceMin,omitempty"`
	SurfaceMax float64 `json:"surfaceMax,omitempty"`
	Type       string  `json:"propertyType,omitempty"`
	Limit      int     `json:"limit"`
}

type apiAnnonce struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Price       int      `json:"price"`
	Surface     float64  `json:"surface"`
	Rooms       int      `json:"rooms"`
	City        string   `json:"city"`
	PostalCode  string   `json:"postalCode"`
	Type        string   `json:"propertyType"`
	Description string   `json:"description"`
	Pictures    []string `json:"pictures"`
	URL         string   `json:"url"`
	Contact     string   `json:"contact"`
}

type searchResponse struct {
	Annonces []apiAnnonce `json:"annonces"`
	Total    int          `json:"total"`
}

// Scrape posts the filter payload once and emits every returned annonce.
func (s *Scraper) Scrape(ctx context.Context, params scraper.Params, emit func(models.ScrapedItem) bool) error {
	payload := searchRequest{
		City:       params.Ville,
		PriceMin:   params.PrixMin,
		PriceMax:   params.PrixMax,
		SurfaceMin: params.SurfaceMin,
		SurfaceMax: params.SurfaceMax,
		Type:       params.TypeBien,
		Limit:      100,
	}

	resp, err := s.search(ctx, payload)
	if err != nil {
		return err
	}

	s.logger.Info("[moteurimmo] API returned %d annonces (total available: %d)",
		len(resp.Annonces), resp.Total)
	if s.quotaRemaining >= 0 {
		s.logger.Info("[moteurimmo] quota remaining: %d requests", s.quotaRemaining)
	}

	for _, a := range resp.Annonces {
		emit(s.itemFromAnnonce(a))
	}
	return nil
}

func (s *Scraper) search(ctx context.Context, payload searchRequest) (*searchResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("moteurimmo: encode filter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.BaseURL+"/annonces/search", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("moteurimmo: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)
	req.Header.Set("User-Agent", s.cfg.UserAgent)

	res, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("moteurimmo: search: %w", err)
	}
	defer res.Body.Close()

	if remaining := res.Header.Get("X-RateLimit-Remaining"); remaining != "" {
		if n, err := strconv.Atoi(remaining); err == nil {
			s.quotaRemaining = n
		}
	}

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("moteurimmo: status %d", res.StatusCode)
	}

	var parsed searchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("moteurimmo: decode response: %w", err)
	}
	return &parsed, nil
}

func (s *Scraper) itemFromAnnonce(a apiAnnonce) models.ScrapedItem {
	item := models.ScrapedItem{
		Source:      source,
		Reference:   a.ID,
		Title:       a.Title,
		Price:       a.Price,
		Surface:     a.Surface,
		Pieces:      a.Rooms,
		City:        a.City,
		PostalCode:  a.PostalCode,
		Type:        a.Type,
		Description: a.Description,
		Images:      a.Pictures,
		URL:         a.URL,
	}

	// The feed often buries agent contact details in free text.
	if a.Contact != "" {
		extra := map[string]string{}
		if email, ok := scraper.ExtractEmail(a.Contact); ok {
			extra["contact_email"] = email
		}
		if phone, ok := scraper.ExtractPhone(a.Contact); ok {
			extra["contact_phone"] = phone
		}
		if len(extra) > 0 {
			item.Extra = extra
		}
	}

	return item
}

// Validate requires the API identifier and a positive price; the feed is
// structured enough that city and title are also mandatory.
func (s *Scraper) Validate(item models.ScrapedItem) []string {
	problems := scraper.ValidateCommon(item)
	if item.Reference == "" {
		problems = append(problems, "missing reference")
	}
	if item.Title == "" {
		problems = append(problems, "missing title")
	}
	if item.City == "" {
		problems = append(problems, "missing city")
	}
	if item.Price <= 0 {
		problems = append(problems, "missing or non-positive price")
	}
	return problems
}

// Transform maps the API's property types onto the shared vocabulary and
// normalizes text fields.
func (s *Scraper) Transform(item models.ScrapedItem) models.ScrapedItem {
	item.Title = scraper.NormalizeText(item.Title)
	item.Description = scraper.NormalizeText(item.Description)
	item.City = scraper.NormalizeText(item.City)

	switch item.Type {
	case "house":
		item.Type = "maison"
	case "flat", "apartment":
		item.Type = "appartement"
	case "land", "plot":
		item.Type = "terrain"
	}
	return item
}

func (s *Scraper) Close() error { return nil }
