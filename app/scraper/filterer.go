package scraper

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/lassebenni/amsterdam-events/app/database"
)

var validFilterFields = map[string]bool{
	"title":         true,
	"link":          true,
	"description":   true,
	"title_or_link": true,
}

type Filterer struct{}

func NewFilterer() *Filterer {
	return &Filterer{}
}

// Run returns the events that pass every filter, in order.
func (f *Filterer) Run(events []database.Event, config *Config) []database.Event {
	if len(config.Filters) == 0 {
		return events
	}

	kept := make([]database.Event, 0, len(events))
	for _, event := range events {
		if filtered, reason := f.applyFilters(event, config.Filters); filtered {
			slog.Debug("Event filtered", "source", config.Name, "title", event.Title, "reason", reason)
			continue
		}
		kept = append(kept, event)
	}

	return kept
}

func (f *Filterer) applyFilters(event database.Event, filters []ConfigFilter) (bool, string) {
	for _, filter := range filters {
		value := f.getFieldValue(event, filter.Field)

		for _, exclude := range filter.Excludes {
			if f.matchesFilter(value, exclude) {
				return true, fmt.Sprintf("Excluded by %s filter: contains '%s'", filter.Field, exclude)
			}
		}

		if len(filter.Includes) > 0 {
			matched := false
			for _, include := range filter.Includes {
				if f.matchesFilter(value, include) {
					matched = true
					break
				}
			}
			if !matched {
				return true, fmt.Sprintf("Excluded by %s filter: does not contain any of %v", filter.Field, filter.Includes)
			}
		}
	}

	return false, ""
}

func (f *Filterer) matchesFilter(value, pattern string) bool {
	return strings.Contains(strings.ToLower(value), strings.ToLower(pattern))
}

func (f *Filterer) getFieldValue(event database.Event, field string) string {
	switch field {
	case "title":
		return event.Title
	case "link":
		return event.Link
	case "description":
		return event.Description
	case "title_or_link":
		return event.Title + "\n" + event.Link
	default:
		return ""
	}
}
