package database

import (
	"time"
)

type SourceRepository interface {
	GetSource(name string) (*Source, error)
	GetSources() ([]Source, error)
	GetNextScrapeAt() (*time.Time, error)

	UpsertSource(name, url string) error
	UpdateSourceScraped(name string, found int, scrapedAt time.Time, nextScrape time.Time) error
}

type EventRepository interface {
	GetEvents(limit int) ([]Event, error)
	GetEventCount() (int, error)

	UpsertEvent(event Event) (bool, error)
	DeleteEventsBefore(cutoff time.Time) (int64, error)
}
