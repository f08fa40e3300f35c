package events

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/lassebenni/amsterdam-events/app/feed"
	"github.com/lassebenni/amsterdam-events/app/render"
	"github.com/lassebenni/amsterdam-events/app/shortcode"
)

type mockSource struct {
	items []feed.Item
	err   error

	calls       int
	lastAddress string
	lastMax     int
}

func (m *mockSource) Fetch(ctx context.Context, address string, max int) ([]feed.Item, error) {
	m.calls++
	m.lastAddress = address
	m.lastMax = max
	if m.err != nil {
		return nil, m.err
	}
	if max > 0 && len(m.items) > max {
		return m.items[:max], nil
	}
	return m.items, nil
}

func newTestService(t *testing.T, source *mockSource) *Service {
	t.Helper()
	renderer, err := render.New()
	if err != nil {
		t.Fatal(err)
	}
	return NewService(source, renderer, feed.ExtractOptions{Location: time.UTC}, Defaults{
		FeedURL:    "https://example.com/events.xml",
		ShowImages: true,
	})
}

func sampleItems(n int) []feed.Item {
	items := make([]feed.Item, n)
	for i := range items {
		items[i] = feed.Item{
			Title:       fmt.Sprintf("Event %d", i+1),
			Link:        fmt.Sprintf("https://example.com/events/%d", i+1),
			Description: "one two three four five six seven eight nine ten eleven twelve thirteen fourteen fifteen sixteen seventeen eighteen nineteen twenty twentyone",
		}
	}
	return items
}

func TestServiceDefaults(t *testing.T) {
	svc := newTestService(t, &mockSource{})

	d := svc.Defaults()
	if d.MaxItems != 12 || d.SummaryWords != 20 || d.Layout != render.LayoutGrid {
		t.Errorf("Unexpected defaults %+v", d)
	}
}

func TestServiceAllowsFeed(t *testing.T) {
	renderer, err := render.New()
	if err != nil {
		t.Fatal(err)
	}
	svc := NewService(&mockSource{}, renderer, feed.ExtractOptions{}, Defaults{
		FeedURL:      "https://example.com/events.xml",
		AllowedFeeds: []string{"https://example.com/other.xml"},
	})

	tests := map[string]bool{
		"":                               true,
		"https://example.com/events.xml": true,
		"https://example.com/other.xml":  true,
		"https://example.com/third.xml":  false,
		"http://127.0.0.1:8081/admin":    false,
	}
	for address, expected := range tests {
		if got := svc.AllowsFeed(address); got != expected {
			t.Errorf("AllowsFeed(%q) = %v, want %v", address, got, expected)
		}
	}
}

func TestServiceRenderUnavailable(t *testing.T) {
	source := &mockSource{err: fmt.Errorf("%w: boom", feed.ErrFeedUnavailable)}
	svc := newTestService(t, source)

	out := svc.Render(context.Background(), Params{})
	if out != `<p class="text-red-600">Unable to fetch events at this time.</p>` {
		t.Errorf("Unexpected output %q", out)
	}
}

func TestServiceRenderEmpty(t *testing.T) {
	source := &mockSource{}
	svc := newTestService(t, source)

	out := svc.Render(context.Background(), Params{})
	if out != `<p class="text-gray-500">No events found.</p>` {
		t.Errorf("Unexpected output %q", out)
	}

	if _, err := svc.Records(context.Background(), Params{}); !errors.Is(err, ErrEmptyFeed) {
		t.Errorf("Expected ErrEmptyFeed, got %v", err)
	}
}

func TestServiceRenderEvents(t *testing.T) {
	source := &mockSource{items: sampleItems(15)}
	svc := newTestService(t, source)

	out := string(svc.Render(context.Background(), Params{}))

	if source.lastAddress != "https://example.com/events.xml" || source.lastMax != 12 {
		t.Errorf("Unexpected fetch args %q %d", source.lastAddress, source.lastMax)
	}
	if strings.Count(out, "<h2") != 12 {
		t.Errorf("Expected 12 events, got %d", strings.Count(out, "<h2"))
	}
	if !strings.Contains(out, "eighteen nineteen twenty...") {
		t.Error("Expected summaries truncated to 20 words")
	}
}

func TestServiceRecordsParams(t *testing.T) {
	source := &mockSource{items: sampleItems(5)}
	svc := newTestService(t, source)

	records, err := svc.Records(context.Background(), Params{
		FeedURL:      "file:///tmp/other.xml",
		MaxItems:     2,
		SummaryWords: 3,
	})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if source.lastAddress != "file:///tmp/other.xml" {
		t.Errorf("Expected custom feed URL, got %q", source.lastAddress)
	}
	if len(records) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(records))
	}
	if records[0].Summary != "one two three..." {
		t.Errorf("Unexpected summary %q", records[0].Summary)
	}
}

func TestServiceShortcode(t *testing.T) {
	source := &mockSource{items: sampleItems(5)}
	svc := newTestService(t, source)

	reg := shortcode.NewRegistry()
	if err := svc.Register(reg); err != nil {
		t.Fatal(err)
	}
	if err := svc.Register(reg); !errors.Is(err, shortcode.ErrDuplicate) {
		t.Errorf("Expected ErrDuplicate on second registration, got %v", err)
	}

	out := string(reg.Expand(context.Background(), `<h1>Events</h1>[amsterdam_events max="3" layout="list" words="2"]`))

	if !strings.HasPrefix(out, "<h1>Events</h1>") {
		t.Errorf("Surrounding content should be kept: %q", out)
	}
	if source.lastMax != 3 {
		t.Errorf("Expected max 3, got %d", source.lastMax)
	}
	if strings.Count(out, `class="event-item"`) != 3 {
		t.Errorf("Expected 3 list items, got %d", strings.Count(out, `class="event-item"`))
	}
	if !strings.Contains(out, "one two...") {
		t.Error("Expected summaries truncated to 2 words")
	}
}

func TestServiceShortcodeInvalidMax(t *testing.T) {
	source := &mockSource{items: sampleItems(20)}
	svc := newTestService(t, source)

	handler := svc.Shortcode()
	if _, err := handler(context.Background(), shortcode.Attrs{"max": "lots"}); err != nil {
		t.Fatal(err)
	}
	if source.lastMax != 12 {
		t.Errorf("Invalid max should fall back to 12, got %d", source.lastMax)
	}

	handler(context.Background(), shortcode.Attrs{"max": "-4"})
	if source.lastMax != 12 {
		t.Errorf("Negative max should fall back to 12, got %d", source.lastMax)
	}
}

func TestServiceUnavailableSkipsExtraction(t *testing.T) {
	source := &mockSource{err: errors.New("network down")}
	svc := newTestService(t, source)

	if _, err := svc.Records(context.Background(), Params{}); err == nil {
		t.Error("Expected error")
	}
	if source.calls != 1 {
		t.Errorf("Expected exactly one fetch, got %d", source.calls)
	}
}
