package scraper

import (
	"context"
	"log/slog"

	"github.com/lassebenni/amsterdam-events/app/database"
)

type SourceResult struct {
	Name  string
	URL   string
	Found int
	Err   error
}

type Result struct {
	Events  []database.Event
	Sources []SourceResult
}

// Collect scrapes the primary sources and, when they yield fewer than
// minEvents events, the fallback sources too. Disabled sources are
// skipped. A failing source is logged and recorded in the result; it
// never aborts the run.
func (s *Scraper) Collect(ctx context.Context, configs []*Config, minEvents int) Result {
	var primary, fallback []*Config
	for _, config := range configs {
		if !config.Settings.Enabled {
			continue
		}
		if config.Settings.Fallback {
			fallback = append(fallback, config)
		} else {
			primary = append(primary, config)
		}
	}

	var result Result
	s.runSources(ctx, primary, &result)

	if len(fallback) > 0 && len(result.Events) < minEvents {
		slog.Info("Adding events from fallback sources",
			"collected", len(result.Events),
			"min_events", minEvents)
		s.runSources(ctx, fallback, &result)
	}

	before := len(result.Events)
	result.Events = Dedupe(result.Events)
	slog.Info("Scraping complete",
		"events", len(result.Events),
		"duplicates_removed", before-len(result.Events))

	return result
}

func (s *Scraper) runSources(ctx context.Context, configs []*Config, result *Result) {
	for _, config := range configs {
		if ctx.Err() != nil {
			return
		}

		events, err := s.Run(ctx, config)
		if err != nil {
			slog.Error("Failed to scrape source", "source", config.Name, "error", err)
		}

		result.Events = append(result.Events, events...)
		result.Sources = append(result.Sources, SourceResult{
			Name:  config.Name,
			URL:   config.URL,
			Found: len(events),
			Err:   err,
		})
	}
}
