package models

import "time"

// ScrapedItem is the normalized record a scraper hands to the pipeline before
// persistence. The common projection is mandatory for every source; anything
// source-specific goes into the Extra bag so adapters never grow new top-level
// fields ad hoc.
type ScrapedItem struct {
	Source      string            `json:"source"`
	ScraperName string            `json:"scraper_name"`
	Reference   string            `json:"reference"`
	Type        string            `json:"type,omitempty"` // shared vocabulary: appartement, maison, ...
	Title       string            `json:"title"`
	Price       int               `json:"price"` // euros, no decimals
	City        string            `json:"city"`
	PostalCode  string            `json:"postal_code"`
	Surface     float64           `json:"surface"` // m²
	Pieces      int               `json:"pieces"`
	Description string            `json:"description"`
	Images      []string          `json:"images,omitempty"`
	URL         string            `json:"url"`
	Extra       map[string]string `json:"extra,omitempty"`
	ScrapedAt   time.Time         `json:"scraped_at"`

	// Hash is the within-run content digest. It is never part of its own
	// computation and is stripped before persistence.
	Hash string `json:"-"`
}

// RunStats summarizes one scraper run.
type RunStats struct {
	Duration     time.Duration `json:"duration"`
	ItemsScraped int           `json:"itemsScraped"`
	ItemsSaved   int           `json:"itemsSaved"`
	Duplicates   int           `json:"duplicates"`
	Errors       int           `json:"errors"`
}

// RunReport is the structured result every run produces, even when the scrape
// failed mid-way. Zero items scraped is not itself an error.
type RunReport struct {
	Name    string         `json:"name"`
	Stats   RunStats       `json:"stats"`
	Results []*ScrapedItem `json:"results,omitempty"`
	Errors  []string       `json:"errors,omitempty"`
}
