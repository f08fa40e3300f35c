package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/lassebenni/amsterdam-events/app/database"
	"github.com/lassebenni/amsterdam-events/app/feed"
)

// Publisher renders the stored events as RSS and writes the feed file.
type Publisher struct {
	eventRepo  database.EventRepository
	generator  *feed.Generator
	channel    feed.Channel
	maxItems   int
	outputFile string
	feedCache  FeedCache
	feedURL    string
}

// NewPublisher returns a publisher writing to outputFile. An empty
// outputFile disables writing; feedURL names the cache entry dropped after
// each write.
func NewPublisher(eventRepo database.EventRepository, generator *feed.Generator, channel feed.Channel,
	maxItems int, outputFile string, feedCache FeedCache, feedURL string) *Publisher {
	return &Publisher{
		eventRepo:  eventRepo,
		generator:  generator,
		channel:    channel,
		maxItems:   maxItems,
		outputFile: outputFile,
		feedCache:  feedCache,
		feedURL:    feedURL,
	}
}

// Render returns the feed XML for the newest stored events and their count.
func (p *Publisher) Render() (string, int, error) {
	events, err := p.eventRepo.GetEvents(p.maxItems)
	if err != nil {
		return "", 0, fmt.Errorf("failed to load events: %w", err)
	}

	xml, err := p.generator.Run(p.channel, events)
	if err != nil {
		return "", 0, fmt.Errorf("failed to generate feed: %w", err)
	}

	return xml, len(events), nil
}

func (p *Publisher) Publish(ctx context.Context) error {
	if p.outputFile == "" {
		return nil
	}

	xml, count, err := p.Render()
	if err != nil {
		return err
	}

	if err := writeFileAtomic(p.outputFile, []byte(xml)); err != nil {
		return fmt.Errorf("failed to write feed file: %w", err)
	}

	if p.feedCache != nil && p.feedURL != "" {
		p.feedCache.Invalidate(ctx, p.feedURL)
	}

	slog.Info("Feed published", "file", p.outputFile, "events", count)
	return nil
}

// writeFileAtomic replaces path so readers never see a partial feed.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".feed-*.xml")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return err
	}

	return os.Rename(tmp.Name(), path)
}
