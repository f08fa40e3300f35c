package cfg

import (
	"cmp"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// HTTP server
	Port    string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	BaseUrl string `long:"base-url" env:"BASE_URL" description:"Public base URL for the service (e.g., https://events.example.com)"`

	// Events display
	FeedURL      string   `long:"feed-url" env:"FEED_URL" description:"RSS feed to display (defaults to the generated output file)"`
	AllowedFeeds []string `long:"allowed-feed" env:"ALLOWED_FEEDS" env-delim:"," description:"Extra feed URL accepted in the feed_url query parameter (repeatable)"`
	MaxItems     int      `long:"max-items" env:"MAX_ITEMS" default:"12" description:"Default number of events to display"`
	SummaryWords int      `long:"summary-words" env:"SUMMARY_WORDS" default:"20" description:"Default summary word limit"`
	Layout       string   `long:"layout" env:"LAYOUT" default:"grid" choice:"grid" choice:"list" description:"Default events layout"`
	HideImages   bool     `long:"hide-images" env:"HIDE_IMAGES" description:"Do not render event images"`

	// Transient feed cache
	CacheTTL     int    `long:"cache-ttl" env:"CACHE_TTL" default:"43200" description:"Feed cache lifetime in seconds"`
	ForceRefresh bool   `long:"force-refresh" env:"FORCE_REFRESH" description:"Drop the cached feed before every fetch"`
	RedisURL     string `long:"redis-url" env:"REDIS_URL" description:"Redis URL for the feed cache (in-memory cache when empty)"`

	// Scraping and storage
	DBPath            string `long:"db-path" env:"DB_PATH" default:"./data/events.db" description:"SQLite database file"`
	SourcesDir        string `long:"sources-dir" env:"SOURCES_DIR" default:"./sources" description:"Directory containing source configuration files"`
	OutputFile        string `long:"output-file" env:"OUTPUT_FILE" default:"./public/amsterdam-events.xml" description:"Generated RSS feed file (empty disables writing)"`
	FeedItems         int    `long:"feed-items" env:"FEED_ITEMS" default:"50" description:"Number of events in the generated feed"`
	MinEvents         int    `long:"min-events" env:"MIN_EVENTS" default:"10" description:"Run fallback sources when primaries yield fewer events"`
	RetentionDays     int    `long:"retention-days" env:"RETENTION_DAYS" default:"30" description:"Delete events not seen for this many days (0 keeps them)"`
	WorkerCount       int    `long:"worker-count" env:"WORKER_COUNT" default:"2" description:"Number of background workers"`
	SchedulerInterval int    `long:"scheduler-interval" env:"SCHEDULER_INTERVAL" default:"30" description:"Scheduler interval in seconds"`
	ScrapeInterval    int    `long:"scrape-interval" env:"SCRAPE_INTERVAL" default:"0" description:"Seconds between scrapes (0 uses each source's refresh_interval)"`

	// Site
	SiteName        string `long:"site-name" env:"SITE_NAME" default:"Amsterdam Events" description:"Site title"`
	SiteDescription string `long:"site-description" env:"SITE_DESCRIPTION" default:"What's on in Amsterdam" description:"Site tagline"`
	FrontPage       string `long:"front-page" env:"FRONT_PAGE" default:"[amsterdam_events]" description:"Front page content, may contain shortcodes"`

	// Application metadata
	APIAccessKey string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for authentication (optional)"`
	UserAgent    string `long:"user-agent" env:"USER_AGENT" description:"User agent string for HTTP requests"`
	Timezone     string `long:"timezone" env:"TZ" default:"Europe/Amsterdam" description:"Timezone for timestamps (e.g., UTC, Europe/Amsterdam)"`
	Debug        bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

// Load reads .env (when present), the environment and os.Args. It returns
// nil, nil when help was requested.
func Load() (*Cfg, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Printf("Warning: Error loading .env file: %v\n", err)
	}

	return LoadArgs(os.Args[1:])
}

func LoadArgs(args []string) (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.ParseArgs(args); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	if err := validate(&raw); err != nil {
		return nil, err
	}

	cfg := &Cfg{
		Port:              raw.Port,
		BaseUrl:           raw.BaseUrl,
		FeedURL:           raw.FeedURL,
		AllowedFeeds:      raw.AllowedFeeds,
		MaxItems:          raw.MaxItems,
		SummaryWords:      raw.SummaryWords,
		Layout:            raw.Layout,
		HideImages:        raw.HideImages,
		CacheTTL:          time.Duration(raw.CacheTTL) * time.Second,
		ForceRefresh:      raw.ForceRefresh,
		RedisURL:          raw.RedisURL,
		DBPath:            raw.DBPath,
		SourcesDir:        raw.SourcesDir,
		OutputFile:        raw.OutputFile,
		FeedItems:         raw.FeedItems,
		MinEvents:         raw.MinEvents,
		RetentionDays:     raw.RetentionDays,
		WorkerCount:       raw.WorkerCount,
		SchedulerInterval: time.Duration(raw.SchedulerInterval) * time.Second,
		ScrapeInterval:    time.Duration(raw.ScrapeInterval) * time.Second,
		SiteName:          raw.SiteName,
		SiteDescription:   raw.SiteDescription,
		FrontPage:         raw.FrontPage,
		APIAccessKey:      raw.APIAccessKey,
		UserAgent:         raw.UserAgent,
		Timezone:          raw.Timezone,
		Debug:             raw.Debug,
		Version:           GetVersion(),
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		fmt.Printf("Warning: Invalid timezone '%s', using system default: %v\n", cfg.Timezone, err)
	}

	return cfg, nil
}

func validate(raw *rawCfg) error {
	positive := map[string]int{
		"max-items":          raw.MaxItems,
		"summary-words":      raw.SummaryWords,
		"worker-count":       raw.WorkerCount,
		"scheduler-interval": raw.SchedulerInterval,
		"feed-items":         raw.FeedItems,
	}
	for name, value := range positive {
		if value <= 0 {
			return fmt.Errorf("--%s must be positive, got %d", name, value)
		}
	}

	nonNegative := map[string]int{
		"cache-ttl":       raw.CacheTTL,
		"min-events":      raw.MinEvents,
		"retention-days":  raw.RetentionDays,
		"scrape-interval": raw.ScrapeInterval,
	}
	for name, value := range nonNegative {
		if value < 0 {
			return fmt.Errorf("--%s cannot be negative, got %d", name, value)
		}
	}

	return nil
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		if loc, err := time.LoadLocation(timezone); err != nil {
			return err
		} else {
			time.Local = loc
		}
	}
	return nil
}
