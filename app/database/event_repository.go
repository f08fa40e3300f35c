package database

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var _ EventRepository = (*eventRepository)(nil)

type eventRepository struct {
	db *DB
}

func NewEventRepository(db *DB) EventRepository {
	return &eventRepository{db: db}
}

// UpsertEvent stores event keyed by its TitleKey and reports whether a new
// row was inserted.
func (r *eventRepository) UpsertEvent(event Event) (bool, error) {
	if event.TitleKey == "" {
		return false, fmt.Errorf("event title key is required")
	}

	tags, err := json.Marshal(nonNilTags(event.Tags))
	if err != nil {
		return false, fmt.Errorf("failed to encode tags: %w", err)
	}

	var existingID int64
	err = r.db.QueryRow(`SELECT id FROM events WHERE title_key = ?`, event.TitleKey).Scan(&existingID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return false, fmt.Errorf("failed to check existing event: %w", err)
	}

	now := dbTime(time.Now())
	scrapedAt := dbTime(event.ScrapedAt)
	if event.ScrapedAt.IsZero() {
		scrapedAt = now
	}

	if errors.Is(err, sql.ErrNoRows) {
		_, err = r.db.Exec(`
			INSERT INTO events (
				title_key, title, link, description, source, date_text,
				location, tags, image_url, scraped_at, created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, event.TitleKey, event.Title, event.Link, event.Description, event.Source, event.DateText,
			event.Location, string(tags), event.ImageURL, scrapedAt, now, now)
		if err != nil {
			return false, fmt.Errorf("failed to insert event: %w", err)
		}
		return true, nil
	}

	_, err = r.db.Exec(`
		UPDATE events
		SET title = ?, link = ?, description = ?, source = ?, date_text = ?,
		    location = ?, tags = ?, image_url = ?, scraped_at = ?, updated_at = ?
		WHERE id = ?
	`, event.Title, event.Link, event.Description, event.Source, event.DateText,
		event.Location, string(tags), event.ImageURL, scrapedAt, now, existingID)
	if err != nil {
		return false, fmt.Errorf("failed to update event: %w", err)
	}

	return false, nil
}

func (r *eventRepository) GetEvents(limit int) ([]Event, error) {
	if limit <= 0 {
		limit = -1 // sqlite: no limit
	}

	rows, err := r.db.Query(`
		SELECT id, title_key, title, link, description, source, date_text,
		       location, tags, image_url, scraped_at, created_at, updated_at
		FROM events
		ORDER BY scraped_at DESC, id ASC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var event Event
		var tags string
		err := rows.Scan(
			&event.ID, &event.TitleKey, &event.Title, &event.Link, &event.Description,
			&event.Source, &event.DateText, &event.Location, &tags, &event.ImageURL,
			&event.ScrapedAt, &event.CreatedAt, &event.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event row: %w", err)
		}
		if err := json.Unmarshal([]byte(tags), &event.Tags); err != nil {
			return nil, fmt.Errorf("failed to decode tags for event %d: %w", event.ID, err)
		}
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating event rows: %w", err)
	}

	return events, nil
}

func (r *eventRepository) GetEventCount() (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM events").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get event count: %w", err)
	}
	return count, nil
}

func (r *eventRepository) DeleteEventsBefore(cutoff time.Time) (int64, error) {
	result, err := r.db.Exec(`DELETE FROM events WHERE scraped_at < ?`, dbTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("failed to delete stale events: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted events: %w", err)
	}
	return deleted, nil
}

func nonNilTags(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}
