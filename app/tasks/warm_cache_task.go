package tasks

import (
	"context"
	"fmt"
	"log/slog"
)

// WarmCacheTask refetches a feed so page renders hit the transient cache.
type WarmCacheTask struct {
	Task
	feedCache FeedCache
	maxItems  int
}

func NewWarmCacheTask(feedURL string, feedCache FeedCache, maxItems int) *WarmCacheTask {
	return &WarmCacheTask{
		Task:      NewTask(TaskTypeWarmCache, feedURL),
		feedCache: feedCache,
		maxItems:  maxItems,
	}
}

func (t *WarmCacheTask) Execute(ctx context.Context) error {

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	t.feedCache.Invalidate(ctx, t.Target)

	items, err := t.feedCache.Fetch(ctx, t.Target, t.maxItems)
	if err != nil {
		return fmt.Errorf("failed to warm feed cache: %w", err)
	}

	slog.Info("Task completed",
		"type", "WarmCache",
		"feed_url", t.Target,
		"duration", t.GetDuration(),
		"items", len(items))

	return nil
}
