package tasks

import (
	"context"

	"github.com/lassebenni/amsterdam-events/app/feed"
	"github.com/lassebenni/amsterdam-events/app/scraper"
)

// TaskSchedulerInterface defines the interface for task scheduling operations.
// Used by the HTTP API to trigger scrapes on demand.
// Example usage:
//
//	scheduler := NewScheduler(configCache, collector, sourceRepo, eventRepo, publisher, warmer, opts)
//	scheduler.Start()
//	defer scheduler.Stop()
//	scheduler.EnqueueScrape()
type TaskSchedulerInterface interface {
	Start()
	Stop()
	EnqueueTask(task TaskInterface) error
	EnqueueScrape() (TaskInterface, error)
}

// ConfigProvider lists the loaded source configurations.
type ConfigProvider interface {
	GetEnabledConfigs() []*scraper.Config
}

var _ ConfigProvider = (*scraper.ConfigCache)(nil)

type EventCollector interface {
	Collect(ctx context.Context, configs []*scraper.Config, minEvents int) scraper.Result
}

var _ EventCollector = (*scraper.Scraper)(nil)

// FeedCache is the part of feed.Source the tasks refresh.
type FeedCache interface {
	Fetch(ctx context.Context, address string, max int) ([]feed.Item, error)
	Invalidate(ctx context.Context, address string)
}

var _ FeedCache = (*feed.Source)(nil)
