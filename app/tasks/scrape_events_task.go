package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lassebenni/amsterdam-events/app/database"
	"github.com/lassebenni/amsterdam-events/app/scraper"
)

const scrapeTarget = "sources"

type ScrapeOptions struct {
	MinEvents      int
	RetentionDays  int           // 0 keeps events forever
	ScrapeInterval time.Duration // delay until the next scheduled run
}

type ScrapeEventsTask struct {
	Task
	configs    ConfigProvider
	collector  EventCollector
	sourceRepo database.SourceRepository
	eventRepo  database.EventRepository
	publisher  *Publisher
	opts       ScrapeOptions
	now        func() time.Time
}

func NewScrapeEventsTask(configs ConfigProvider, collector EventCollector, sourceRepo database.SourceRepository,
	eventRepo database.EventRepository, publisher *Publisher, opts ScrapeOptions) *ScrapeEventsTask {
	return &ScrapeEventsTask{
		Task:       NewTask(TaskTypeScrapeEvents, scrapeTarget),
		configs:    configs,
		collector:  collector,
		sourceRepo: sourceRepo,
		eventRepo:  eventRepo,
		publisher:  publisher,
		opts:       opts,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (t *ScrapeEventsTask) Execute(ctx context.Context) error {

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	configs := t.configs.GetEnabledConfigs()
	if len(configs) == 0 {
		slog.Debug("No enabled sources, skipping scrape")
		return nil
	}

	for _, config := range configs {
		if err := t.sourceRepo.UpsertSource(config.Name, config.URL); err != nil {
			return fmt.Errorf("failed to register source %s: %w", config.Name, err)
		}
	}

	result := t.collector.Collect(ctx, configs, t.opts.MinEvents)

	if err := t.recordRuns(configs, result); err != nil {
		return err
	}

	if len(result.Events) == 0 {
		if err := failedSources(result); err != nil {
			return fmt.Errorf("no events scraped: %w", err)
		}
		slog.Warn("Scrape found no events, keeping the published feed")
		return nil
	}

	newCount := 0
	for _, event := range result.Events {
		created, err := t.eventRepo.UpsertEvent(event)
		if err != nil {
			return fmt.Errorf("failed to store event: %w", err)
		}
		if created {
			newCount++
		}
	}

	pruned, err := t.prune()
	if err != nil {
		return err
	}

	if t.publisher != nil {
		if err := t.publisher.Publish(ctx); err != nil {
			return fmt.Errorf("failed to publish feed: %w", err)
		}
	}

	slog.Info("Task completed",
		"type", "ScrapeEvents",
		"duration", t.GetDuration(),
		"sources", len(result.Sources),
		"total", len(result.Events),
		"new", newCount,
		"pruned", pruned)

	return nil
}

// recordRuns stores the outcome of every enabled source. Fallback sources
// skipped by this run are rescheduled with it.
func (t *ScrapeEventsTask) recordRuns(configs []*scraper.Config, result scraper.Result) error {
	found := make(map[string]int, len(result.Sources))
	for _, source := range result.Sources {
		found[source.Name] = source.Found
	}

	now := t.now()
	for _, config := range configs {
		interval := t.opts.ScrapeInterval
		if interval <= 0 {
			interval = config.Settings.GetRefreshInterval()
		}

		if err := t.sourceRepo.UpdateSourceScraped(config.Name, found[config.Name], now, now.Add(interval)); err != nil {
			return fmt.Errorf("failed to update source %s: %w", config.Name, err)
		}
	}
	return nil
}

func (t *ScrapeEventsTask) prune() (int64, error) {
	if t.opts.RetentionDays <= 0 {
		return 0, nil
	}

	cutoff := t.now().AddDate(0, 0, -t.opts.RetentionDays)
	deleted, err := t.eventRepo.DeleteEventsBefore(cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune events: %w", err)
	}
	return deleted, nil
}

func failedSources(result scraper.Result) error {
	var errs []error
	for _, source := range result.Sources {
		if source.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", source.Name, source.Err))
		}
	}
	return errors.Join(errs...)
}
