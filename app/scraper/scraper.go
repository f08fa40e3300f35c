package scraper

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"github.com/lassebenni/amsterdam-events/app/database"
	"github.com/lassebenni/amsterdam-events/app/feed"
)

const (
	DefaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

	// Readability runs only when the scraped description is shorter.
	shortDescriptionLength = 80
	articleSummaryWords    = 60
	minTitleKeyLength      = 6
)

var titleKeyRegex = regexp.MustCompile(`[^a-z0-9\s]`)

type Options struct {
	UserAgent   string
	RateLimit   rate.Limit // requests per second across all sources
	RetryCount  int
	RetryWait   time.Duration
	PageTimeout time.Duration // event page fetches
}

// Scraper turns event listing pages into events. Requests are shared
// between sources through one rate limiter.
type Scraper struct {
	client           *resty.Client
	limiter          *rate.Limiter
	filterer         *Filterer
	contentExtractor *feed.ContentExtractor
	pageTimeout      time.Duration
	now              func() time.Time
}

func New(opts Options) *Scraper {
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.RateLimit == 0 {
		opts.RateLimit = 5
	}
	if opts.RetryWait <= 0 {
		opts.RetryWait = 2 * time.Second
	}
	if opts.PageTimeout <= 0 {
		opts.PageTimeout = 10 * time.Second
	}

	client := resty.New().
		SetHeader("User-Agent", opts.UserAgent).
		SetRetryCount(opts.RetryCount).
		SetRetryWaitTime(opts.RetryWait).
		SetRetryMaxWaitTime(5 * opts.RetryWait)

	return &Scraper{
		client:           client,
		limiter:          rate.NewLimiter(opts.RateLimit, 1),
		filterer:         NewFilterer(),
		contentExtractor: feed.NewContentExtractor(),
		pageTimeout:      opts.PageTimeout,
		now:              time.Now,
	}
}

// Run scrapes one source and returns at most Settings.MaxItems events.
func (s *Scraper) Run(ctx context.Context, config *Config) ([]database.Event, error) {
	pageURL, err := url.Parse(config.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid source URL %s: %w", config.URL, err)
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, config.Settings.GetTimeout())
	defer cancel()

	doc, _, err := s.fetch(timeoutCtx, config.URL)
	if err != nil {
		return nil, err
	}

	events := s.collect(doc, pageURL, config)
	total := len(events)

	events = s.filterer.Run(events, config)
	if limit := config.Settings.MaxItems; limit > 0 && len(events) > limit {
		events = events[:limit]
	}

	for i := range events {
		events[i].Title = config.TitlePrefix + events[i].Title
		events[i].TitleKey = TitleKey(events[i].Title)

		if config.Settings.ExtractImages || config.Settings.ExtractContent {
			s.enrich(ctx, &events[i], config)
		}
	}

	slog.Info("Source scraped",
		"source", config.Name,
		"candidates", total,
		"events", len(events))

	return events, nil
}

func (s *Scraper) fetch(ctx context.Context, address string) (*goquery.Document, []byte, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, nil, fmt.Errorf("rate limiter: %w", err)
	}

	resp, err := s.client.R().
		SetContext(ctx).
		SetHeader("Accept", "text/html,application/xhtml+xml").
		Get(address)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch %s: %w", address, err)
	}

	if resp.StatusCode() != http.StatusOK {
		return nil, nil, fmt.Errorf("unexpected status code %d from %s", resp.StatusCode(), address)
	}

	body := resp.Body()
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse HTML from %s: %w", address, err)
	}

	return doc, body, nil
}

// collect returns one event per qualifying element in page order, without
// duplicates and before filters are applied.
func (s *Scraper) collect(doc *goquery.Document, pageURL *url.URL, config *Config) []database.Event {
	var events []database.Event
	seen := make(map[string]bool)
	scrapedAt := s.now()

	doc.Find(config.Selectors.Item).Each(func(_ int, item *goquery.Selection) {
		title, href, description := s.readItem(item, config)

		if utf8.RuneCountInString(title) < config.MinTitleLength {
			return
		}
		if href == "" || strings.HasPrefix(href, "#") {
			return
		}

		link := resolveURL(pageURL, href)
		if link == "" {
			return
		}

		// Titles without ASCII letters or digits have an empty key and are
		// left to Dedupe.
		if key := TitleKey(title); key != "" {
			if seen[key] {
				return
			}
			seen[key] = true
		}

		event := database.Event{
			Title:       title,
			Link:        link,
			Description: description,
			Source:      config.Label,
			DateText:    config.DateText,
			ScrapedAt:   scrapedAt,
		}
		if event.Description == "" {
			event.Description = strings.ReplaceAll(config.DescriptionTemplate, "{title}", title)
		}

		if config.Settings.ParseContext {
			applyContext(&event, item)
		}

		events = append(events, event)
	})

	return events
}

func (s *Scraper) readItem(item *goquery.Selection, config *Config) (title, href, description string) {
	if config.Mode == ModeLinks {
		href, _ = item.Attr("href")
		return spacedText(item), strings.TrimSpace(href), ""
	}

	if config.Selectors.Title != "" {
		title = spacedText(item.Find(config.Selectors.Title).First())
	}

	link := item
	if !item.Is(config.Selectors.Link) {
		link = item.Find(config.Selectors.Link).First()
	}
	href, _ = link.Attr("href")
	if title == "" {
		title = spacedText(link)
	}

	if config.Selectors.Description != "" {
		description = spacedText(item.Find(config.Selectors.Description).First())
	}

	return title, strings.TrimSpace(href), description
}

func applyContext(event *database.Event, item *goquery.Selection) {
	parent := item.ParentsFiltered("div, article, section, li").First()
	if parent.Length() == 0 {
		return
	}

	pc := ParseContext(event.Title, spacedText(parent))

	if len(pc.Text) > minContextDescriptionLength {
		event.Description = pc.Text
	}
	if pc.Date != "" {
		event.DateText = pc.Date
	}
	event.Location = pc.Location
	event.Tags = pc.Tags
}

// enrich fetches the event page for its image and, when the description
// is short, its readable text. Failures leave the event as it is.
func (s *Scraper) enrich(ctx context.Context, event *database.Event, config *Config) {
	pageURL, err := url.Parse(event.Link)
	if err != nil {
		return
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, s.pageTimeout)
	defer cancel()

	doc, body, err := s.fetch(timeoutCtx, event.Link)
	if err != nil {
		slog.Warn("Failed to fetch event page", "source", config.Name, "link", event.Link, "error", err)
		return
	}

	if config.Settings.ExtractImages {
		if image := FindImage(doc, pageURL); image != "" {
			event.ImageURL = image
		} else {
			slog.Debug("No suitable image found", "link", event.Link)
		}
	}

	if config.Settings.ExtractContent && len(event.Description) < shortDescriptionLength {
		article, err := s.contentExtractor.Run(body, pageURL)
		if err != nil {
			slog.Debug("Content extraction failed", "link", event.Link, "error", err)
			return
		}
		if article.Text != "" {
			event.Description = feed.TrimWords(article.Text, articleSummaryWords, feed.DefaultEllipsis)
		}
	}
}

// TitleKey normalizes a title for duplicate detection: lower case, only
// ASCII letters, digits and single spaces.
func TitleKey(title string) string {
	key := titleKeyRegex.ReplaceAllString(strings.ToLower(title), "")
	return strings.Join(strings.Fields(key), " ")
}

// Dedupe keeps the first event per title key and drops events whose key
// is too short to identify them.
func Dedupe(events []database.Event) []database.Event {
	seen := make(map[string]bool, len(events))
	unique := make([]database.Event, 0, len(events))

	for _, event := range events {
		key := TitleKey(event.Title)
		if len(key) < minTitleKeyLength || seen[key] {
			continue
		}
		seen[key] = true
		event.TitleKey = key
		unique = append(unique, event)
	}

	return unique
}
