package cfg

import (
	"time"
)

type Cfg struct {
	// HTTP server
	Port    string
	BaseUrl string

	// Events display
	FeedURL      string
	AllowedFeeds []string
	MaxItems     int
	SummaryWords int
	Layout       string
	HideImages   bool

	// Transient feed cache
	CacheTTL     time.Duration
	ForceRefresh bool
	RedisURL     string

	// Scraping and storage
	DBPath            string
	SourcesDir        string
	OutputFile        string
	FeedItems         int
	MinEvents         int
	RetentionDays     int
	WorkerCount       int
	SchedulerInterval time.Duration
	ScrapeInterval    time.Duration

	// Site
	SiteName        string
	SiteDescription string
	FrontPage       string

	// Application metadata
	APIAccessKey string
	UserAgent    string
	Timezone     string
	Debug        bool
	Version      string
}

// DisplayFeedURL is the feed the pages render: the configured feed URL or,
// when unset, the locally generated feed file.
func (c *Cfg) DisplayFeedURL() string {
	if c.FeedURL != "" {
		return c.FeedURL
	}
	return c.OutputFile
}
