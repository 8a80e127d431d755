package storage

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"immo-prospect/models"
)

// CSVWriter exports raw scraped items to a CSV file for auditing scrape
// output before it reaches the store. It is safe for concurrent use.
type CSVWriter struct {
	mu     sync.Mutex
	file   *os.File
	writer *csv.Writer
}

// NewCSVWriter creates (or truncates) the CSV file at the given path and
// writes the header row. Intermediate directories are created automatically.
func NewCSVWriter(path string) (*CSVWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("csv: create output dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("csv: create file %q: %w", path, err)
	}

	w := csv.NewWriter(f)

	if err := w.Write([]string{
		"source", "scraper", "reference", "type", "title", "price", "city",
		"postal_code", "surface", "pieces", "url", "scraped_at",
	}); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("csv: write header: %w", err)
	}
	w.Flush()

	return &CSVWriter{file: f, writer: w}, nil
}

// ExportRaw appends the given items to the CSV file.
func (c *CSVWriter) ExportRaw(items []*models.ScrapedItem) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, it := range items {
		row := []string{
			it.Source,
			it.ScraperName,
			it.Reference,
			it.Type,
			it.Title,
			strconv.Itoa(it.Price),
			it.City,
			it.PostalCode,
			strconv.FormatFloat(it.Surface, 'f', 2, 64),
			strconv.Itoa(it.Pieces),
			it.URL,
			it.ScrapedAt.Format(time.RFC3339),
		}
		if err := c.writer.Write(row); err != nil {
			return fmt.Errorf("csv: write row: %w", err)
		}
	}

	c.writer.Flush()
	return c.writer.Error()
}

// Close flushes and closes the underlying file.
func (c *CSVWriter) Close() error {
	c.writer.Flush()
	return c.file.Close()
}
