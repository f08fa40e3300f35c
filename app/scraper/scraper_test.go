package scraper

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"

	"github.com/lassebenni/amsterdam-events/app/database"
)

const agendaPage = `<html><body>
<nav><a href="/en">English version of the site</a><a href="#top">Back to the top of page</a></nav>
<ul>
  <li><a href="/agenda/canal-festival">Canal Festival on the Prinsengracht</a>
      <span>04 jun '25</span> <span>Part of Amsterdam 750, gratis</span> <span>Vondelpark stage and boats all evening long</span></li>
  <li><a href="/agenda/museum-night">Museum Night Amsterdam edition</a></li>
  <li><a href="/agenda/museum-night">Museum Night Amsterdam edition</a></li>
  <li><a href="/agenda/short">Short</a></li>
  <li><a href="/privacy">Privacy and cookies statement</a></li>
</ul>
</body></html>`

const cardsPage = `<html><body>
<article class="card"><h3 class="title">Open Air Cinema</h3><a href="https://other.example.com/cinema">More</a><p class="description">Films under the stars</p></article>
<article class="card"><h3 class="title">Food Market</h3><a href="/market">More</a></article>
<article class="card"><a href="/untitled">Untitled listing here</a></article>
</body></html>`

func eventPage(image string) string {
	return fmt.Sprintf(`<html><head><meta property="og:image" content="%s"></head><body><article><p>Event page</p></article></body></html>`, image)
}

func newTestScraper() *Scraper {
	s := New(Options{UserAgent: "events-test", RateLimit: rate.Inf})
	s.now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }
	return s
}

func newAgendaServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/agenda", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != "events-test" {
			t.Errorf("Unexpected User-Agent %q", r.Header.Get("User-Agent"))
		}
		w.Write([]byte(agendaPage))
	})
	mux.HandleFunc("/cards", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(cardsPage))
	})
	mux.HandleFunc("/agenda/canal-festival", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(eventPage("/_next/image?url=https%3A%2F%2Fcdn.thefeedfactory.nl%2Fcanal.jpg&w=1200")))
	})
	mux.HandleFunc("/agenda/museum-night", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(eventPage("/img/museum.png")))
	})
	mux.HandleFunc("/broken", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func linksConfig(server *httptest.Server) *Config {
	return &Config{
		Name:                "agenda",
		URL:                 server.URL + "/agenda",
		Label:               "Test Agenda",
		Mode:                ModeLinks,
		Selectors:           ConfigSelectors{Item: "a[href]", Link: "a[href]"},
		MinTitleLength:      10,
		DateText:            "Check website for dates and times",
		DescriptionTemplate: "Discover this Amsterdam event: {title}",
		Settings: ConfigSettings{
			Enabled:       true,
			MaxItems:      15,
			Timeout:       5,
			ParseContext:  true,
			ExtractImages: true,
		},
		Filters: []ConfigFilter{
			{Field: "title", Excludes: []string{"privacy", "english"}},
		},
	}
}

func TestScraperRunLinks(t *testing.T) {
	server := newAgendaServer(t)
	s := newTestScraper()

	events, err := s.Run(context.Background(), linksConfig(server))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if len(events) != 2 {
		t.Fatalf("Expected 2 events, got %d: %+v", len(events), events)
	}

	canal := events[0]
	if canal.Title != "Canal Festival on the Prinsengracht" {
		t.Errorf("Unexpected title %q", canal.Title)
	}
	if canal.Link != server.URL+"/agenda/canal-festival" {
		t.Errorf("Link should be absolute, got %q", canal.Link)
	}
	if canal.Source != "Test Agenda" {
		t.Errorf("Unexpected source %q", canal.Source)
	}
	if canal.DateText != "4 June 2025" {
		t.Errorf("Expected date from context, got %q", canal.DateText)
	}
	if canal.Location != "Amsterdam" {
		t.Errorf("Expected location from context, got %q", canal.Location)
	}
	if len(canal.Tags) != 2 {
		t.Errorf("Expected 2 tags, got %v", canal.Tags)
	}
	if !strings.Contains(canal.Description, "Vondelpark stage") {
		t.Errorf("Expected description from context, got %q", canal.Description)
	}
	if canal.ImageURL != "https://cdn.thefeedfactory.nl/canal.jpg" {
		t.Errorf("Expected unwrapped image URL, got %q", canal.ImageURL)
	}
	if canal.TitleKey != "canal festival on the prinsengracht" {
		t.Errorf("Unexpected title key %q", canal.TitleKey)
	}
	if !canal.ScrapedAt.Equal(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)) {
		t.Errorf("Unexpected scrape time %v", canal.ScrapedAt)
	}

	museum := events[1]
	if museum.DateText != "Check website for dates and times" {
		t.Errorf("Expected default date text, got %q", museum.DateText)
	}
	if museum.Description != "Discover this Amsterdam event: Museum Night Amsterdam edition" {
		t.Errorf("Expected templated description, got %q", museum.Description)
	}
	if museum.ImageURL != server.URL+"/img/museum.png" {
		t.Errorf("Expected absolute image URL, got %q", museum.ImageURL)
	}
}

func TestScraperRunMaxItemsAndPrefix(t *testing.T) {
	server := newAgendaServer(t)
	s := newTestScraper()

	config := linksConfig(server)
	config.Settings.MaxItems = 1
	config.Settings.ExtractImages = false
	config.TitlePrefix = "Agenda: "

	events, err := s.Run(context.Background(), config)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("Expected 1 event, got %d", len(events))
	}
	if events[0].Title != "Agenda: Canal Festival on the Prinsengracht" {
		t.Errorf("Expected prefixed title, got %q", events[0].Title)
	}
	if events[0].ImageURL != "" {
		t.Errorf("Expected no image lookup, got %q", events[0].ImageURL)
	}
}

func TestScraperRunCards(t *testing.T) {
	server := newAgendaServer(t)
	s := newTestScraper()

	config := &Config{
		Name:                "cards",
		URL:                 server.URL + "/cards",
		Label:               "Cards",
		Mode:                ModeCards,
		Selectors:           ConfigSelectors{Item: "article.card", Title: "h3.title", Link: "a[href]", Description: "p.description"},
		MinTitleLength:      6,
		DateText:            "Check website for dates",
		DescriptionTemplate: "Cards: {title}",
		Settings:            ConfigSettings{Enabled: true, MaxItems: 10, Timeout: 5},
	}

	events, err := s.Run(context.Background(), config)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("Expected 3 events, got %d", len(events))
	}

	if events[0].Title != "Open Air Cinema" || events[0].Link != "https://other.example.com/cinema" {
		t.Errorf("Unexpected first event %+v", events[0])
	}
	if events[0].Description != "Films under the stars" {
		t.Errorf("Expected card description, got %q", events[0].Description)
	}
	if events[1].Description != "Cards: Food Market" {
		t.Errorf("Expected templated description, got %q", events[1].Description)
	}
	if events[2].Title != "Untitled listing here" {
		t.Errorf("Expected link text as title, got %q", events[2].Title)
	}
}

func TestScraperRunNonASCIITitles(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body>
<a href="/e/1">Συναυλία στο πάρκο</a>
<a href="/e/2">Έκθεση φωτογραφίας</a>
</body></html>`))
	}))
	t.Cleanup(server.Close)

	config := &Config{
		Name:           "greek",
		URL:            server.URL,
		Label:          "Greek Agenda",
		Mode:           ModeLinks,
		Selectors:      ConfigSelectors{Item: "a[href]", Link: "a[href]"},
		MinTitleLength: 5,
		Settings:       ConfigSettings{Enabled: true, MaxItems: 10, Timeout: 5},
	}

	events, err := newTestScraper().Run(context.Background(), config)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	// Both titles have an empty key; neither may be taken for a duplicate.
	if len(events) != 2 {
		t.Fatalf("Expected 2 events, got %d: %+v", len(events), events)
	}
	if events[0].Title != "Συναυλία στο πάρκο" || events[1].Title != "Έκθεση φωτογραφίας" {
		t.Errorf("Unexpected titles %q, %q", events[0].Title, events[1].Title)
	}
}

func TestScraperRunHTTPError(t *testing.T) {
	server := newAgendaServer(t)
	s := newTestScraper()

	config := linksConfig(server)
	config.URL = server.URL + "/broken"

	if _, err := s.Run(context.Background(), config); err == nil {
		t.Error("Expected error for unavailable source")
	}
}

func TestScraperCollectFallbackPolicy(t *testing.T) {
	server := newAgendaServer(t)
	s := newTestScraper()

	primary := linksConfig(server)
	primary.Settings.ExtractImages = false

	fallback := linksConfig(server)
	fallback.Name = "fallback"
	fallback.Label = "Fallback"
	fallback.TitlePrefix = "Fallback: "
	fallback.Settings.Fallback = true
	fallback.Settings.ExtractImages = false

	broken := linksConfig(server)
	broken.Name = "broken"
	broken.URL = server.URL + "/broken"

	disabled := linksConfig(server)
	disabled.Name = "disabled"
	disabled.Settings.Enabled = false

	configs := []*Config{primary, broken, fallback, disabled}

	result := s.Collect(context.Background(), configs, 2)
	if len(result.Events) != 2 {
		t.Errorf("Expected only primary events, got %d", len(result.Events))
	}
	if len(result.Sources) != 2 {
		t.Fatalf("Expected 2 source results, got %d", len(result.Sources))
	}
	if result.Sources[1].Name != "broken" || result.Sources[1].Err == nil {
		t.Errorf("Expected failing source to be recorded: %+v", result.Sources[1])
	}

	result = s.Collect(context.Background(), configs, 10)
	if len(result.Events) != 4 {
		t.Errorf("Expected primary and fallback events, got %d", len(result.Events))
	}
	if len(result.Sources) != 3 {
		t.Errorf("Expected 3 source results, got %d", len(result.Sources))
	}
}

func TestFindImage(t *testing.T) {
	pageURL, _ := url.Parse("https://www.iamsterdam.com/uit/agenda/event")

	tests := []struct {
		name     string
		html     string
		expected string
	}{
		{
			name:     "feed factory image wins",
			html:     `<main><img src="/other.jpg"></main><img src="https://cdn.thefeedfactory.nl/a.jpg">`,
			expected: "https://cdn.thefeedfactory.nl/a.jpg",
		},
		{
			name:     "og image",
			html:     `<head><meta property="og:image" content="https://img.example.com/og.png"></head><main><img src="/main.jpg"></main>`,
			expected: "https://img.example.com/og.png",
		},
		{
			name:     "relative main image",
			html:     `<main><img src="/media/main.jpg"></main>`,
			expected: "https://www.iamsterdam.com/media/main.jpg",
		},
		{
			name:     "next image wrapper",
			html:     `<img src="/_next/image?url=https%3A%2F%2Fcdn.example.com%2Fx.webp&w=640" alt="Amsterdam skyline">`,
			expected: "https://cdn.example.com/x.webp",
		},
		{
			name:     "none",
			html:     `<p>No images</p>`,
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := goquery.NewDocumentFromReader(strings.NewReader(tt.html))
			if err != nil {
				t.Fatal(err)
			}
			if got := FindImage(doc, pageURL); got != tt.expected {
				t.Errorf("FindImage = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestTitleKeyAndDedupe(t *testing.T) {
	if key := TitleKey("  Rock & Roll: Night!  "); key != "rock roll night" {
		t.Errorf("TitleKey = %q", key)
	}

	events := []database.Event{
		{Title: "Canal Festival"},
		{Title: "canal festival!"},
		{Title: "Tiny"},
		{Title: "Museum Night"},
	}

	unique := Dedupe(events)
	if len(unique) != 2 {
		t.Fatalf("Expected 2 unique events, got %d", len(unique))
	}
	if unique[0].Title != "Canal Festival" || unique[1].Title != "Museum Night" {
		t.Errorf("Unexpected events: %v", titles(unique))
	}
	if unique[0].TitleKey != "canal festival" {
		t.Errorf("Dedupe should set title keys, got %q", unique[0].TitleKey)
	}
}
