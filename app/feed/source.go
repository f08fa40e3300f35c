package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/lassebenni/amsterdam-events/app/cache"
)

// ErrFeedUnavailable wraps every fetch, read and parse failure.
var ErrFeedUnavailable = errors.New("feed unavailable")

type SourceOptions struct {
	UserAgent    string
	Timeout      time.Duration
	CacheTTL     time.Duration
	ForceRefresh bool // drop the cached copy before every fetch
}

// Source retrieves feed items from a remote URL or a local file and keeps
// the parsed items in a transient cache.
type Source struct {
	httpClient *http.Client
	parser     *Parser
	store      cache.Store
	opts       SourceOptions
}

func NewSource(httpClient *http.Client, parser *Parser, store cache.Store, opts SourceOptions) *Source {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	return &Source{
		httpClient: httpClient,
		parser:     parser,
		store:      store,
		opts:       opts,
	}
}

// Fetch returns at most max items (all when max <= 0) in feed order.
func (s *Source) Fetch(ctx context.Context, address string, max int) ([]Item, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, fmt.Errorf("%w: empty feed address", ErrFeedUnavailable)
	}

	key := cache.GenerateFeedKey(address)

	if s.opts.ForceRefresh {
		s.Invalidate(ctx, address)
	} else if items, ok := s.cached(ctx, key); ok {
		slog.Debug("Feed served from cache", "address", address, "items", len(items))
		return limitItems(items, max), nil
	}

	data, err := s.read(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFeedUnavailable, err)
	}

	items, err := s.parser.Run(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFeedUnavailable, err)
	}

	s.storeItems(ctx, key, items)

	slog.Debug("Feed fetched", "address", address, "items", len(items))

	return limitItems(items, max), nil
}

// Invalidate drops the cached copy of address.
func (s *Source) Invalidate(ctx context.Context, address string) {
	if s.store == nil {
		return
	}
	if err := s.store.Delete(ctx, cache.GenerateFeedKey(address)); err != nil {
		slog.Warn("Failed to invalidate cached feed", "address", address, "error", err)
	}
}

func (s *Source) cached(ctx context.Context, key string) ([]Item, bool) {
	if s.store == nil {
		return nil, false
	}

	data, found, err := s.store.Get(ctx, key)
	if err != nil {
		slog.Warn("Cache read failed", "key", key, "error", err)
		return nil, false
	}
	if !found {
		return nil, false
	}

	var items []Item
	if err := json.Unmarshal(data, &items); err != nil {
		slog.Warn("Discarding unreadable cache entry", "key", key, "error", err)
		s.store.Delete(ctx, key)
		return nil, false
	}
	return items, true
}

func (s *Source) storeItems(ctx context.Context, key string, items []Item) {
	if s.store == nil {
		return
	}

	data, err := json.Marshal(items)
	if err != nil {
		slog.Warn("Failed to encode feed items for cache", "key", key, "error", err)
		return
	}
	if err := s.store.Set(ctx, key, data, s.opts.CacheTTL); err != nil {
		slog.Warn("Cache write failed", "key", key, "error", err)
	}
}

func (s *Source) read(ctx context.Context, address string) ([]byte, error) {
	switch {
	case strings.HasPrefix(address, "http://"), strings.HasPrefix(address, "https://"):
		return s.fetchRemote(ctx, address)
	case strings.HasPrefix(address, "file://"):
		return s.readLocal(strings.TrimPrefix(address, "file://"))
	default:
		return s.readLocal(address)
	}
}

func (s *Source) fetchRemote(ctx context.Context, url string) ([]byte, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(timeoutCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if s.opts.UserAgent != "" {
		req.Header.Set("User-Agent", s.opts.UserAgent)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return data, nil
}

func (s *Source) readLocal(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read feed file: %w", err)
	}
	return data, nil
}

func limitItems(items []Item, max int) []Item {
	if max > 0 && len(items) > max {
		return items[:max]
	}
	return items
}
