package database

import (
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := NewConnection(filepath.Join(t.TempDir(), "data", "events.db"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, _, err := RunMigrations(db); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}
	return db
}

func TestRunMigrations(t *testing.T) {
	db := newTestDB(t)

	version, dirty, err := RunMigrations(db)
	if err != nil {
		t.Fatalf("Re-running migrations should be a no-op, got: %v", err)
	}
	if version != 1 || dirty {
		t.Errorf("Expected version 1 clean, got %d dirty=%v", version, dirty)
	}
}

func TestEventRepositoryUpsert(t *testing.T) {
	repo := NewEventRepository(newTestDB(t))
	scrapedAt := time.Date(2025, 6, 4, 10, 0, 0, 0, time.UTC)

	event := Event{
		TitleKey:    "canal festival weekend",
		Title:       "Canal Festival Weekend",
		Link:        "https://example.com/canal",
		Description: "Boats and music",
		Source:      "I Amsterdam Official",
		DateText:    "4 June 2025",
		Location:    "Prinsengracht",
		Tags:        []string{"Amsterdam 750 events", "Gratis entree"},
		ImageURL:    "https://img.example.com/canal.jpg",
		ScrapedAt:   scrapedAt,
	}

	created, err := repo.UpsertEvent(event)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if !created {
		t.Error("First upsert should create the event")
	}

	event.Title = "Canal Festival Weekend (updated)"
	event.Tags = nil
	created, err = repo.UpsertEvent(event)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if created {
		t.Error("Second upsert should update the existing event")
	}

	events, err := repo.GetEvents(10)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("Expected 1 event, got %d", len(events))
	}

	got := events[0]
	if got.Title != "Canal Festival Weekend (updated)" || got.Location != "Prinsengracht" {
		t.Errorf("Unexpected event %+v", got)
	}
	if len(got.Tags) != 0 {
		t.Errorf("Expected tags to be cleared, got %v", got.Tags)
	}
	if !got.ScrapedAt.Equal(scrapedAt) {
		t.Errorf("Expected scraped_at %v, got %v", scrapedAt, got.ScrapedAt)
	}

	if _, err := repo.UpsertEvent(Event{Title: "No key"}); err == nil {
		t.Error("Expected error for missing title key")
	}
}

func TestEventRepositoryOrderingAndPruning(t *testing.T) {
	repo := NewEventRepository(newTestDB(t))
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	for i, title := range []string{"oldest event", "middle event", "newest event"} {
		_, err := repo.UpsertEvent(Event{
			TitleKey:  title,
			Title:     title,
			Link:      "https://example.com/" + title,
			Tags:      []string{"tag"},
			ScrapedAt: base.AddDate(0, 0, i),
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	events, err := repo.GetEvents(2)
	if err != nil {
		t.Fatal(err)
	}
	titles := []string{events[0].Title, events[1].Title}
	if !reflect.DeepEqual(titles, []string{"newest event", "middle event"}) {
		t.Errorf("Expected newest first, got %v", titles)
	}
	if !reflect.DeepEqual(events[0].Tags, []string{"tag"}) {
		t.Errorf("Unexpected tags %v", events[0].Tags)
	}

	all, _ := repo.GetEvents(0)
	if len(all) != 3 {
		t.Errorf("Limit 0 should return all events, got %d", len(all))
	}

	deleted, err := repo.DeleteEventsBefore(base.AddDate(0, 0, 1))
	if err != nil {
		t.Fatal(err)
	}
	if deleted != 1 {
		t.Errorf("Expected 1 deleted event, got %d", deleted)
	}

	if count, _ := repo.GetEventCount(); count != 2 {
		t.Errorf("Expected 2 remaining events, got %d", count)
	}
}

func TestSourceRepository(t *testing.T) {
	repo := NewSourceRepository(newTestDB(t))

	next, err := repo.GetNextScrapeAt()
	if err != nil || next != nil {
		t.Errorf("Expected no schedule without sources, got %v, %v", next, err)
	}

	if err := repo.UpsertSource("iamsterdam", "https://www.iamsterdam.com/agenda"); err != nil {
		t.Fatal(err)
	}
	if err := repo.UpsertSource("timeout", "https://www.timeout.com/amsterdam"); err != nil {
		t.Fatal(err)
	}
	if err := repo.UpsertSource("iamsterdam", "https://www.iamsterdam.com/en/agenda"); err != nil {
		t.Fatal(err)
	}

	source, err := repo.GetSource("iamsterdam")
	if err != nil {
		t.Fatal(err)
	}
	if source == nil || source.URL != "https://www.iamsterdam.com/en/agenda" {
		t.Fatalf("Expected updated URL, got %+v", source)
	}
	if source.LastScrapedAt != nil || source.NextScrapeAt != nil {
		t.Error("New source should not have scrape times")
	}

	scrapedAt := time.Date(2025, 6, 4, 12, 0, 0, 0, time.UTC)
	if err := repo.UpdateSourceScraped("iamsterdam", 12, scrapedAt, scrapedAt.Add(2*time.Hour)); err != nil {
		t.Fatal(err)
	}

	// timeout has never been scraped, so a scrape is due now.
	if next, _ := repo.GetNextScrapeAt(); next != nil {
		t.Errorf("Expected nil while a source is unscheduled, got %v", next)
	}

	if err := repo.UpdateSourceScraped("timeout", 3, scrapedAt, scrapedAt.Add(time.Hour)); err != nil {
		t.Fatal(err)
	}

	next, err = repo.GetNextScrapeAt()
	if err != nil {
		t.Fatal(err)
	}
	if next == nil || !next.Equal(scrapedAt.Add(time.Hour)) {
		t.Errorf("Expected earliest next scrape %v, got %v", scrapedAt.Add(time.Hour), next)
	}

	source, _ = repo.GetSource("iamsterdam")
	if source.LastFound != 12 || source.LastScrapedAt == nil || !source.LastScrapedAt.Equal(scrapedAt) {
		t.Errorf("Unexpected scrape state %+v", source)
	}

	sources, err := repo.GetSources()
	if err != nil || len(sources) != 2 || sources[0].Name != "iamsterdam" {
		t.Errorf("Unexpected sources %v, %v", sources, err)
	}

	if err := repo.UpdateSourceScraped("missing", 0, scrapedAt, scrapedAt); err == nil {
		t.Error("Expected error for unknown source")
	}

	if missing, err := repo.GetSource("missing"); err != nil || missing != nil {
		t.Errorf("Expected nil for unknown source, got %v, %v", missing, err)
	}
}
