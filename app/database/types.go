package database

import (
	"time"
)

type Source struct {
	Name          string // Configuration source identifier derived from filename
	URL           string
	LastScrapedAt *time.Time
	NextScrapeAt  *time.Time
	LastFound     int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type Event struct {
	ID          int64
	TitleKey    string // Normalized title used for deduplication
	Title       string
	Link        string
	Description string
	Source      string // Human-readable source label, e.g. "I Amsterdam Official"
	DateText    string
	Location    string
	Tags        []string
	ImageURL    string
	ScrapedAt   time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
