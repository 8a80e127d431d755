package leboncoin

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"immo-prospect/config"
	"immo-prospect/models"
	"immo-prospect/scraper"
	"immo-prospect/utils"
)

const source = "leboncoin"

// Category codes the portal uses, mapped to the shared type vocabulary.
var categoryTypes = map[string]string{
	"9":           "maison",
	"10":          "appartement",
	"11":          "terrain",
	"maison":      "maison",
	"appartement": "appartement",
	"terrain":     "terrain",
	"local":       "local_commercial",
}

// Scraper extracts listings from leboncoin search result pages.
type Scraper struct {
	cfg    config.SourceConfig
	logger *utils.Logger
	client *http.Client
}

// New creates a leboncoin Scraper from its source config.
func New(cfg config.SourceConfig, logger *utils.Logger) *Scraper {
	return &Scraper{cfg: cfg, logger: logger}
}

func (s *Scraper) Name() string { return source }

// Init builds the HTTP client. The base URL is the one required credential
// of this source.
func (s *Scraper) Init(ctx context.Context) error {
	if s.cfg.BaseURL == "" {
		return errors.New("leboncoin: base_url not configured")
	}
	s.client = &http.Client{Timeout: 30 * time.Second}
	return nil
}

func (s *Scraper) buildURL(params scraper.Params, page int) string {
	q := url.Values{}
	q.Set("category", "9") // immobilier ventes
	if params.Ville != "" {
		q.Set("locations", params.Ville)
	}
	if params.TypeBien != "" {
		q.Set("real_estate_type", params.TypeBien)
	}
	if params.PrixMin > 0 || params.PrixMax > 0 {
		q.Set("price", fmt.Sprintf("%d-%d", params.PrixMin, params.PrixMax))
	}
	if params.SurfaceMin > 0 || params.SurfaceMax > 0 {
		q.Set("square", fmt.Sprintf("%.0f-%.0f", params.SurfaceMin, params.SurfaceMax))
	}
	if page > 1 {
		q.Set("page", strconv.Itoa(page))
	}
	return s.cfg.BaseURL + "/recherche?" + q.Encode()
}

// Scrape walks the paginated search results and emits one item per ad card.
// A failure on the first page is a run failure; later pages just stop the
// pagination.
func (s *Scraper) Scrape(ctx context.Context, params scraper.Params, emit func(models.ScrapedItem) bool) error {
	maxPages := params.MaxPages
	if maxPages <= 0 {
		maxPages = s.cfg.MaxPages
	}

	for page := 1; page <= maxPages; page++ {
		pageURL := s.buildURL(params, page)
		s.logger.Info("[leboncoin] fetching page %d — %s", page, pageURL)

		doc, err := s.fetch(ctx, pageURL)
		if err != nil {
			if page == 1 {
				return err
			}
			s.logger.Warn("[leboncoin] page %d failed, stopping pagination: %v", page, err)
			break
		}

		count := 0
		doc.Find(`a[data-qa-id="aditem_container"]`).Each(func(_ int, card *goquery.Selection) {
			item := s.extractCard(card)
			emit(item)
			count++
		})

		s.logger.Debug("[leboncoin] page %d — %d cards", page, count)
		if count == 0 {
			break
		}

		if page < maxPages && s.cfg.RateLimitMs > 0 {
			select {
			case <-time.After(time.Duration(s.cfg.RateLimitMs) * time.Millisecond):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return nil
}

func (s *Scraper) fetch(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("leboncoin: build request: %w", err)
	}
	req.Header.Set("User-Agent", s.cfg.UserAgent)
	req.Header.Set("Accept-Language", "fr-FR,fr;q=0.9")

	res, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("leboncoin: fetch: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("leboncoin: status %d for %s", res.StatusCode, pageURL)
	}

	doc, err := goquery.NewDocumentFromReader(res.Body)
	if err != nil {
		return nil, fmt.Errorf("leboncoin: parse: %w", err)
	}
	return doc, nil
}

func (s *Scraper) extractCard(card *goquery.Selection) models.ScrapedItem {
	item := models.ScrapedItem{Source: source}

	item.Title = card.Find(`p[data-qa-id="aditem_title"]`).Text()
	if item.Title == "" {
		item.Title = card.AttrOr("title", "")
	}

	if href, ok := card.Attr("href"); ok {
		if strings.HasPrefix(href, "/") {
			href = s.cfg.BaseURL + href
		}
		item.URL = href
		item.Reference = referenceFromURL(href)
	}

	priceText := card.Find(`span[data-qa-id="aditem_price"]`).Text()
	if prix, ok := scraper.ExtractPrice(priceText); ok {
		item.Price = prix
	}

	item.City = card.Find(`p[data-qa-id="aditem_location"]`).Text()

	desc := card.Find(`p[data-qa-id="aditem_description"]`).Text()
	item.Description = desc
	if surface, ok := scraper.ExtractSurface(item.Title + " " + desc); ok {
		item.Surface = surface
	}
	if pieces, ok := scraper.ExtractPieces(item.Title + " " + desc); ok {
		item.Pieces = pieces
	}
	if cat, ok := card.Attr("data-category"); ok {
		item.Extra = map[string]string{"category": cat}
	}

	card.Find("img").Each(func(_ int, img *goquery.Selection) {
		if src, ok := img.Attr("src"); ok && strings.HasPrefix(src, "http") {
			item.Images = append(item.Images, src)
		}
	})

	return item
}

// referenceFromURL derives the portal's ad identifier from the listing URL,
// e.g. /ventes_immobilieres/2412345678.htm → 2412345678.
func referenceFromURL(href string) string {
	trimmed := strings.TrimSuffix(href, ".htm")
	if i := strings.LastIndex(trimmed, "/"); i >= 0 {
		trimmed = trimmed[i+1:]
	}
	return trimmed
}

// Validate enforces the portal's required fields on top of the shared check:
// a usable card has a title, a link, a located city and a positive price.
func (s *Scraper) Validate(item models.ScrapedItem) []string {
	problems := scraper.ValidateCommon(item)
	if item.Title == "" {
		problems = append(problems, "missing title")
	}
	if item.URL == "" {
		problems = append(problems, "missing url")
	}
	if item.City == "" {
		problems = append(problems, "missing city")
	}
	if item.Price <= 0 {
		problems = append(problems, "missing or non-positive price")
	}
	return problems
}

// Transform trims free text, splits the "Ville 69003" location format and
// maps the portal category to the shared type vocabulary. Runner stamps are
// left untouched.
func (s *Scraper) Transform(item models.ScrapedItem) models.ScrapedItem {
	item.Title = scraper.NormalizeText(item.Title)
	item.Description = scraper.NormalizeText(item.Description)

	city, postal := scraper.SplitCityPostal(item.City)
	if city != "" {
		item.City = city
	}
	if postal != "" && item.PostalCode == "" {
		item.PostalCode = postal
	}

	if item.Type == "" && item.Extra != nil {
		if t, ok := categoryTypes[strings.ToLower(item.Extra["category"])]; ok {
			item.Type = t
		}
	}
	if item.Type == "" {
		item.Type = typeFromText(item.Title)
	}

	return item
}

func typeFromText(s string) string {
	lower := strings.ToLower(s)
	switch {
	case strings.Contains(lower, "maison"), strings.Contains(lower, "villa"):
		return "maison"
	case strings.Contains(lower, "terrain"):
		return "terrain"
	case strings.Contains(lower, "local"):
		return "local_commercial"
	default:
		return "appartement"
	}
}

func (s *Scraper) Close() error { return nil }
