package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

var _ SourceRepository = (*sourceRepository)(nil)

type sourceRepository struct {
	db *DB
}

func NewSourceRepository(db *DB) SourceRepository {
	return &sourceRepository{db: db}
}

func (r *sourceRepository) UpsertSource(name, url string) error {
	now := dbTime(time.Now())
	_, err := r.db.Exec(`
		INSERT INTO sources (name, url, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (name) DO UPDATE SET
			url = excluded.url,
			updated_at = excluded.updated_at
	`, name, url, now, now)
	if err != nil {
		return fmt.Errorf("failed to upsert source: %w", err)
	}
	return nil
}

func (r *sourceRepository) UpdateSourceScraped(name string, found int, scrapedAt time.Time, nextScrape time.Time) error {
	result, err := r.db.Exec(`
		UPDATE sources
		SET last_scraped_at = ?, next_scrape_at = ?, last_found = ?, updated_at = ?
		WHERE name = ?
	`, dbTime(scrapedAt), dbTime(nextScrape), found, dbTime(time.Now()), name)
	if err != nil {
		return fmt.Errorf("failed to update source scrape status: %w", err)
	}

	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		return fmt.Errorf("source '%s' not found", name)
	}
	return nil
}

func (r *sourceRepository) GetSource(name string) (*Source, error) {
	row := r.db.QueryRow(`
		SELECT name, url, last_scraped_at, next_scrape_at, last_found, created_at, updated_at
		FROM sources
		WHERE name = ?
	`, name)

	source, err := scanSource(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get source: %w", err)
	}
	return source, nil
}

func (r *sourceRepository) GetSources() ([]Source, error) {
	rows, err := r.db.Query(`
		SELECT name, url, last_scraped_at, next_scrape_at, last_found, created_at, updated_at
		FROM sources
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to get sources: %w", err)
	}
	defer rows.Close()

	var sources []Source
	for rows.Next() {
		source, err := scanSource(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan source row: %w", err)
		}
		sources = append(sources, *source)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating source rows: %w", err)
	}

	return sources, nil
}

// GetNextScrapeAt returns the earliest scheduled scrape, or nil when some
// source has never been scraped (or there are no sources).
func (r *sourceRepository) GetNextScrapeAt() (*time.Time, error) {
	var pending int
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM sources WHERE next_scrape_at IS NULL`).Scan(&pending); err != nil {
		return nil, fmt.Errorf("failed to count unscheduled sources: %w", err)
	}
	if pending > 0 {
		return nil, nil
	}

	var next sql.NullTime
	err := r.db.QueryRow(`
		SELECT next_scrape_at
		FROM sources
		ORDER BY next_scrape_at ASC
		LIMIT 1
	`).Scan(&next)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get next scrape time: %w", err)
	}

	return nullTimePtr(next), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSource(row rowScanner) (*Source, error) {
	var source Source
	var lastScraped, nextScrape sql.NullTime

	err := row.Scan(&source.Name, &source.URL, &lastScraped, &nextScrape,
		&source.LastFound, &source.CreatedAt, &source.UpdatedAt)
	if err != nil {
		return nil, err
	}

	source.LastScrapedAt = nullTimePtr(lastScraped)
	source.NextScrapeAt = nullTimePtr(nextScrape)
	return &source, nil
}

func nullTimePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

// dbTime normalizes timestamps so their text form sorts chronologically.
func dbTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}
