package scraper

import (
	"testing"

	"github.com/lassebenni/amsterdam-events/app/database"
)

func titles(events []database.Event) []string {
	out := make([]string, len(events))
	for i, event := range events {
		out[i] = event.Title
	}
	return out
}

func TestFiltererNoFilters(t *testing.T) {
	filterer := NewFilterer()

	events := []database.Event{{Title: "One"}, {Title: "Two"}}
	result := filterer.Run(events, &Config{})

	if len(result) != 2 {
		t.Errorf("Expected 2 events, got %d", len(result))
	}
}

func TestFiltererIncludeAndExclude(t *testing.T) {
	filterer := NewFilterer()

	events := []database.Event{
		{Title: "Jazz Festival in the park"},
		{Title: "Cookies settings"},
		{Title: "Festival cookies workshop"},
		{Title: "Weather report"},
	}

	config := &Config{
		Filters: []ConfigFilter{
			{Field: "title", Excludes: []string{"cookies"}},
			{Field: "title", Includes: []string{"festival", "concert"}},
		},
	}

	result := filterer.Run(events, config)

	if len(result) != 1 || result[0].Title != "Jazz Festival in the park" {
		t.Errorf("Unexpected result: %v", titles(result))
	}
}

func TestFiltererTitleOrLink(t *testing.T) {
	filterer := NewFilterer()

	events := []database.Event{
		{Title: "Grachtenfestival opening night", Link: "https://example.com/a"},
		{Title: "Something else entirely", Link: "https://example.com/agenda/123"},
		{Title: "Contact us for more", Link: "https://example.com/contact"},
	}

	config := &Config{
		Filters: []ConfigFilter{
			{Field: "title_or_link", Includes: []string{"festival", "agenda"}},
		},
	}

	result := filterer.Run(events, config)

	if len(result) != 2 {
		t.Fatalf("Expected 2 events, got %v", titles(result))
	}
	if result[0].Title != "Grachtenfestival opening night" || result[1].Title != "Something else entirely" {
		t.Errorf("Unexpected order or content: %v", titles(result))
	}
}

func TestFiltererCaseInsensitive(t *testing.T) {
	filterer := NewFilterer()

	events := []database.Event{{Title: "AMSTERDAM 750 Parade"}}
	config := &Config{Filters: []ConfigFilter{{Field: "title", Includes: []string{"amsterdam 750"}}}}

	if len(filterer.Run(events, config)) != 1 {
		t.Error("Filters should match regardless of case")
	}
}

func TestFiltererDescriptionAndLink(t *testing.T) {
	filterer := NewFilterer()

	events := []database.Event{
		{Title: "A", Link: "https://www.eventbrite.com/e/123", Description: "free entry"},
		{Title: "B", Link: "https://www.eventbrite.com/signin", Description: "free entry"},
		{Title: "C", Link: "https://www.eventbrite.com/e/456", Description: "paid"},
	}
	config := &Config{
		Filters: []ConfigFilter{
			{Field: "link", Includes: []string{"/e/"}},
			{Field: "description", Excludes: []string{"paid"}},
		},
	}

	result := filterer.Run(events, config)
	if len(result) != 1 || result[0].Title != "A" {
		t.Errorf("Unexpected result: %v", titles(result))
	}
}

func TestFiltererGetFieldValue(t *testing.T) {
	filterer := NewFilterer()
	event := database.Event{Title: "T", Link: "L", Description: "D"}

	tests := map[string]string{
		"title":         "T",
		"link":          "L",
		"description":   "D",
		"title_or_link": "T\nL",
		"unknown":       "",
	}

	for field, expected := range tests {
		if got := filterer.getFieldValue(event, field); got != expected {
			t.Errorf("getFieldValue(%q) = %q, want %q", field, got, expected)
		}
	}
}
