package seloger

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/chromedp/chromedp"

	"immo-prospect/config"
	"immo-prospect/models"
	"immo-prospect/scraper"
	"immo-prospect/utils"
)

const source = "seloger"

// Scraper drives a headless browser against seloger search pages. The portal
// renders cards client-side, so plain HTTP scraping sees nothing.
type Scraper struct {
	cfg    config.SourceConfig
	logger *utils.Logger
	retry  *utils.RetryConfig

	allocCtx    context.Context
	cancelAlloc context.CancelFunc
	browserCtx  context.Context
	cancelBrows context.CancelFunc
}

// New creates a seloger Scraper from its source config.
func New(cfg config.SourceConfig, logger *utils.Logger) *Scraper {
	return &Scraper{
		cfg:    cfg,
		logger: logger,
		retry: &utils.RetryConfig{
			MaxAttempts: 3,
			BaseDelay:   2 * time.Second,
			Logger:      logger,
		},
	}
}

func (s *Scraper) Name() string { return source }

// Init starts the headless browser session. A browser that cannot start is
// fatal to the run.
func (s *Scraper) Init(ctx context.Context) error {
	if s.cfg.BaseURL == "" {
		return errors.New("seloger: base_url not configured")
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(s.cfg.UserAgent),
	)

	s.allocCtx, s.cancelAlloc = chromedp.NewExecAllocator(ctx, opts...)
	s.browserCtx, s.cancelBrows = chromedp.NewContext(s.allocCtx,
		chromedp.WithLogf(func(string, ...interface{}) {}))

	// Fail now, not on the first page, if no browser binary is usable.
	startup, cancel := context.WithTimeout(s.browserCtx, 30*time.Second)
	defer cancel()
	if err := chromedp.Run(startup); err != nil {
		return fmt.Errorf("seloger: start browser: %w", err)
	}
	return nil
}

func (s *Scraper) buildURL(params scraper.Params, page int) string {
	q := url.Values{}
	q.Set("projects", "2") // achat
	if params.TypeBien != "" {
		q.Set("types", params.TypeBien)
	}
	if params.Ville != "" {
		q.Set("places", fmt.Sprintf(`[{"label":%q}]`, params.Ville))
	}
	if params.PrixMax > 0 {
		q.Set("price", fmt.Sprintf("%d/%d", params.PrixMin, params.PrixMax))
	}
	if params.SurfaceMax > 0 {
		q.Set("surface", fmt.Sprintf("%.0f/%.0f", params.SurfaceMin, params.SurfaceMax))
	}
	if page > 1 {
		q.Set("LISTING-LISTpg", fmt.Sprintf("%d", page))
	}
	return s.cfg.BaseURL + "/list.htm?" + q.Encode()
}

type cardData struct {
	Title   string `json:"title"`
	Price   string `json:"price"`
	City    string `json:"city"`
	Details string `json:"details"`
	URL     string `json:"url"`
}

// Scrape walks the paginated results in one browser session, extracting card
// data with an in-page script, and emits each card.
func (s *Scraper) Scrape(ctx context.Context, params scraper.Params, emit func(models.ScrapedItem) bool) error {
	maxPages := params.MaxPages
	if maxPages <= 0 {
		maxPages = s.cfg.MaxPages
	}

	for page := 1; page <= maxPages; page++ {
		pageURL := s.buildURL(params, page)
		s.logger.Info("[seloger] scraping page %d — %s", page, pageURL)

		cards, err := s.scrapePage(ctx, pageURL, page)
		if err != nil {
			if page == 1 {
				return err
			}
			s.logger.Warn("[seloger] page %d failed, stopping pagination: %v", page, err)
			break
		}
		if len(cards) == 0 {
			s.logger.Warn("[seloger] page %d returned 0 cards — stopping", page)
			break
		}

		for _, c := range cards {
			emit(s.itemFromCard(c))
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

func (s *Scraper) scrapePage(ctx context.Context, pageURL string, pageNum int) ([]cardData, error) {
	var cards []cardData

	err := s.retry.Do(ctx, fmt.Sprintf("seloger-page-%d", pageNum), func() error {
		tabCtx, cancel := chromedp.NewContext(s.browserCtx)
		defer cancel()

		tabCtx, cancelTimeout := context.WithTimeout(tabCtx, 90*time.Second)
		defer cancelTimeout()

		var extracted []cardData
		err := chromedp.Run(tabCtx,
			chromedp.Navigate(pageURL),
			chromedp.Sleep(5*time.Second),
			chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight)`, nil),
			chromedp.Sleep(2*time.Second),
			chromedp.Evaluate(`
				(function() {
					var results = [];
					var seen = {};
					var cards = document.querySelectorAll('[data-testid="sl.explore.card-container"], div[data-test="sl.card-container"], article');
					for (var i = 0; i < cards.length; i++) {
						var card = cards[i];
						var link = card.querySelector('a[href*="/annonces/"]') || card.querySelector('a[data-testid="sl.explore.coveringLink"]');
						if (!link || !link.href || seen[link.href]) continue;
						seen[link.href] = true;

						var titleEl = card.querySelector('[data-testid="sl.explore.card-title"], [data-test="sl.title"]');
						var priceEl = card.querySelector('[data-testid="sl.price-label"], [data-test="sl.price-label"]');
						var cityEl  = card.querySelector('[data-testid="sl.address"], [data-test="sl.address"]');

						var text = card.innerText || '';
						results.push({
							title:   titleEl ? titleEl.innerText.trim() : text.split('\n')[0] || '',
							price:   priceEl ? priceEl.innerText.trim() : (text.match(/[\d\s.]+€/) || [''])[0],
							city:    cityEl ? cityEl.innerText.trim() : '',
							details: text,
							url:     link.href
						});
					}
					return results;
				})()
			`, &extracted),
		)
		if err != nil {
			return fmt.Errorf("seloger: page extract: %w", err)
		}

		cards = extracted
		return nil
	})

	return cards, err
}

func (s *Scraper) itemFromCard(c cardData) models.ScrapedItem {
	item := models.ScrapedItem{
		Source: source,
		Title:  c.Title,
		City:   c.City,
		URL:    c.URL,
	}

	if prix, ok := scraper.ExtractPrice(c.Price); ok {
		item.Price = prix
	} else if prix, ok := scraper.ExtractPrice(c.Details); ok {
		item.Price = prix
	}
	if surface, ok := scraper.ExtractSurface(c.Details); ok {
		item.Surface = surface
	}
	if pieces, ok := scraper.ExtractPieces(c.Details); ok {
		item.Pieces = pieces
	}
	item.Reference = referenceFromURL(c.URL)

	return item
}

// referenceFromURL derives the annonce identifier from its URL,
// e.g. .../annonces/achat/appartement/lyon-3eme-69/123456789.htm → 123456789.
func referenceFromURL(href string) string {
	trimmed := strings.TrimSuffix(href, ".htm")
	trimmed = strings.TrimSuffix(trimmed, "/")
	if i := strings.LastIndex(trimmed, "/"); i >= 0 {
		trimmed = trimmed[i+1:]
	}
	if j := strings.IndexByte(trimmed, '?'); j >= 0 {
		trimmed = trimmed[:j]
	}
	return trimmed
}

// Validate mirrors the required fields of the portal card: title, url, city
// and a positive price.
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

// Transform normalizes the card text and derives the shared property type
// from the title wording.
func (s *Scraper) Transform(item models.ScrapedItem) models.ScrapedItem {
	item.Title = scraper.NormalizeText(item.Title)

	city, postal := scraper.SplitCityPostal(item.City)
	if city != "" {
		item.City = city
	}
	if postal != "" && item.PostalCode == "" {
		item.PostalCode = postal
	}

	if item.Type == "" {
		lower := strings.ToLower(item.Title)
		switch {
		case strings.Contains(lower, "maison"), strings.Contains(lower, "villa"):
			item.Type = "maison"
		case strings.Contains(lower, "terrain"):
			item.Type = "terrain"
		default:
			item.Type = "appartement"
		}
	}

	return item
}

// Close tears the browser session down; safe to call after a failed Init.
func (s *Scraper) Close() error {
	if s.cancelBrows != nil {
		s.cancelBrows()
	}
	if s.cancelAlloc != nil {
		s.cancelAlloc()
	}
	return nil
}
