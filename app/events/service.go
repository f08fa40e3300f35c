package events

import (
	"context"
	"errors"
	"html/template"
	"log/slog"
	"slices"
	"strconv"

	"github.com/lassebenni/amsterdam-events/app/feed"
	"github.com/lassebenni/amsterdam-events/app/render"
	"github.com/lassebenni/amsterdam-events/app/shortcode"
)

const ShortcodeName = "amsterdam_events"

var ErrEmptyFeed = errors.New("feed has no items")

// ItemSource is the feed retrieval the service depends on.
type ItemSource interface {
	Fetch(ctx context.Context, address string, max int) ([]feed.Item, error)
}

type Defaults struct {
	FeedURL      string
	MaxItems     int
	SummaryWords int
	Layout       string
	ShowImages   bool
	// AllowedFeeds are accepted from untrusted callers besides FeedURL.
	AllowedFeeds []string
}

// Params selects what to render. Zero values take the service defaults.
type Params struct {
	FeedURL      string
	MaxItems     int
	SummaryWords int
	Layout       string
}

type Service struct {
	source   ItemSource
	renderer *render.Renderer
	extract  feed.ExtractOptions
	defaults Defaults
}

func NewService(source ItemSource, renderer *render.Renderer, extract feed.ExtractOptions, defaults Defaults) *Service {
	if defaults.MaxItems <= 0 {
		defaults.MaxItems = 12
	}
	if defaults.SummaryWords <= 0 {
		defaults.SummaryWords = feed.DefaultSummaryWords
	}
	if !render.ValidLayout(defaults.Layout) {
		defaults.Layout = render.LayoutGrid
	}

	return &Service{
		source:   source,
		renderer: renderer,
		extract:  extract,
		defaults: defaults,
	}
}

func (s *Service) Defaults() Defaults {
	return s.defaults
}

// AllowsFeed reports whether an untrusted caller may request address.
// Empty means the default feed.
func (s *Service) AllowsFeed(address string) bool {
	if address == "" || address == s.defaults.FeedURL {
		return true
	}
	return slices.Contains(s.defaults.AllowedFeeds, address)
}

// Records fetches the feed and extracts display records. It returns
// feed.ErrFeedUnavailable (wrapped) when the feed cannot be read and
// ErrEmptyFeed when it has no items.
func (s *Service) Records(ctx context.Context, params Params) ([]feed.DisplayRecord, error) {
	params = s.withDefaults(params)

	items, err := s.source.Fetch(ctx, params.FeedURL, params.MaxItems)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, ErrEmptyFeed
	}

	opts := s.extract
	opts.SummaryWords = params.SummaryWords
	return feed.NewExtractor(opts).RunAll(items), nil
}

// Render never fails: an unreadable feed renders the "unable" message and
// an empty one the "no events" message.
func (s *Service) Render(ctx context.Context, params Params) template.HTML {
	params = s.withDefaults(params)

	records, err := s.Records(ctx, params)
	switch {
	case errors.Is(err, ErrEmptyFeed):
		return s.renderer.Message(render.MessageEmpty)
	case err != nil:
		slog.Warn("Events feed unavailable", "feed_url", params.FeedURL, "error", err)
		return s.renderer.Message(render.MessageUnavailable)
	}

	return s.renderer.Events(records, render.Options{
		Layout:     params.Layout,
		ShowImages: s.defaults.ShowImages,
	})
}

// Shortcode handles [amsterdam_events max="12" feed_url="..." layout="grid" words="20"].
func (s *Service) Shortcode() shortcode.Handler {
	return func(ctx context.Context, attrs shortcode.Attrs) (template.HTML, error) {
		merged := shortcode.Merge(shortcode.Attrs{
			"max":      strconv.Itoa(s.defaults.MaxItems),
			"feed_url": s.defaults.FeedURL,
			"layout":   s.defaults.Layout,
			"words":    strconv.Itoa(s.defaults.SummaryWords),
		}, attrs)

		return s.Render(ctx, Params{
			FeedURL:      merged["feed_url"],
			MaxItems:     positiveInt(merged["max"]),
			SummaryWords: positiveInt(merged["words"]),
			Layout:       merged["layout"],
		}), nil
	}
}

func (s *Service) Register(reg *shortcode.Registry) error {
	return reg.Register(ShortcodeName, s.Shortcode())
}

func (s *Service) withDefaults(params Params) Params {
	if params.FeedURL == "" {
		params.FeedURL = s.defaults.FeedURL
	}
	if params.MaxItems <= 0 {
		params.MaxItems = s.defaults.MaxItems
	}
	if params.SummaryWords <= 0 {
		params.SummaryWords = s.defaults.SummaryWords
	}
	if !render.ValidLayout(params.Layout) {
		params.Layout = s.defaults.Layout
	}
	return params
}

// positiveInt returns 0, meaning "use the default", for anything that is
// not a positive integer.
func positiveInt(value string) int {
	n, err := strconv.Atoi(value)
	if err != nil || n <= 0 {
		return 0
	}
	return n
}
