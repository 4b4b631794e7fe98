package storage

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/cryarchy/fiverr-tools/models"
)

var journalHeader = []string{
	"path", "title", "category", "page", "reviews", "excerpt", "scraped_at",
}

// CSVJournal appends one row per completed gig to a CSV file.
// It is safe for concurrent use.
type CSVJournal struct {
	mu     sync.Mutex
	file   *os.File
	writer *csv.Writer
}

// NewCSVJournal opens the journal at path for appending, creating it and any
// intermediate directories as needed. The header row is written only when
// the file is new or empty.
func NewCSVJournal(path string) (*CSVJournal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("csv: create output dir: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("csv: open file %q: %w", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("csv: stat file %q: %w", path, err)
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(journalHeader); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("csv: write header: %w", err)
		}
		w.Flush()
		if err := w.Error(); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("csv: write header: %w", err)
		}
	}

	return &CSVJournal{file: f, writer: w}, nil
}

// Append writes entry and flushes it to disk.
func (c *CSVJournal) Append(e models.JournalEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	row := []string{
		e.Path,
		e.Title,
		e.CategoryPath,
		strconv.Itoa(e.Page),
		strconv.Itoa(e.Reviews),
		e.Excerpt,
		e.ScrapedAt.UTC().Format(time.RFC3339),
	}
	if err := c.writer.Write(row); err != nil {
		return fmt.Errorf("csv: write row: %w", err)
	}

	c.writer.Flush()
	return c.writer.Error()
}

// Close flushes and closes the underlying file.
func (c *CSVJournal) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writer.Flush()
	return c.file.Close()
}
