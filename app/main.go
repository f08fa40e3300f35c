package main

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lassebenni/amsterdam-events/app/api"
	"github.com/lassebenni/amsterdam-events/app/cache"
	"github.com/lassebenni/amsterdam-events/app/cfg"
	"github.com/lassebenni/amsterdam-events/app/database"
	"github.com/lassebenni/amsterdam-events/app/events"
	"github.com/lassebenni/amsterdam-events/app/feed"
	"github.com/lassebenni/amsterdam-events/app/render"
	"github.com/lassebenni/amsterdam-events/app/scraper"
	"github.com/lassebenni/amsterdam-events/app/shortcode"
	"github.com/lassebenni/amsterdam-events/app/tasks"
)

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if appCfg == nil {
		// Help was shown
		return
	}

	setupLogger(appCfg.Debug)

	if err := run(appCfg); err != nil {
		slog.Error("Amsterdam Events failed", "error", err)
		os.Exit(1)
	}
}

func setupLogger(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})))
}

func run(appCfg *cfg.Cfg) error {
	slog.Info("Starting Amsterdam Events", "version", appCfg.Version, "timezone", time.Local.String())

	db, err := database.NewConnection(appCfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		return err
	}
	slog.Info("Database ready", "path", appCfg.DBPath, "migration_version", version, "dirty", dirty)

	eventRepo := database.NewEventRepository(db)
	sourceRepo := database.NewSourceRepository(db)

	configCache := scraper.NewConfigCache(appCfg.SourcesDir)
	if err := configCache.Run(); err != nil {
		return fmt.Errorf("failed to load source configurations: %w", err)
	}
	slog.Info("Source configurations loaded", "dir", appCfg.SourcesDir, "count", configCache.GetConfigCount())

	store, closeStore, err := newStore(appCfg)
	if err != nil {
		return err
	}
	defer closeStore()

	userAgent := cmp.Or(appCfg.UserAgent, scraper.DefaultUserAgent)

	source := feed.NewSource(&http.Client{}, feed.NewParser(), store, feed.SourceOptions{
		UserAgent:    userAgent,
		Timeout:      30 * time.Second,
		CacheTTL:     appCfg.CacheTTL,
		ForceRefresh: appCfg.ForceRefresh,
	})

	renderer, err := render.New()
	if err != nil {
		return err
	}

	displayFeedURL := appCfg.DisplayFeedURL()
	service := events.NewService(source, renderer, feed.ExtractOptions{
		SummaryWords: appCfg.SummaryWords,
		Location:     time.Local,
	}, events.Defaults{
		FeedURL:      displayFeedURL,
		MaxItems:     appCfg.MaxItems,
		SummaryWords: appCfg.SummaryWords,
		Layout:       appCfg.Layout,
		ShowImages:   !appCfg.HideImages,
		AllowedFeeds: appCfg.AllowedFeeds,
	})

	registry := shortcode.NewRegistry()
	if err := service.Register(registry); err != nil {
		return fmt.Errorf("failed to register shortcode: %w", err)
	}

	publisher := tasks.NewPublisher(eventRepo, feed.NewGenerator(), feed.Channel{
		Link:      appCfg.BaseUrl,
		Generator: "Amsterdam Events " + appCfg.Version,
	}, appCfg.FeedItems, appCfg.OutputFile, source, displayFeedURL)

	eventScraper := scraper.New(scraper.Options{
		UserAgent:  userAgent,
		RetryCount: 2,
	})

	scheduler := tasks.NewScheduler(configCache, eventScraper, sourceRepo, eventRepo, publisher, source, tasks.SchedulerOptions{
		WorkerCount: appCfg.WorkerCount,
		Interval:    appCfg.SchedulerInterval,
		FeedURL:     displayFeedURL,
		MaxItems:    appCfg.MaxItems,
		Scrape: tasks.ScrapeOptions{
			MinEvents:      appCfg.MinEvents,
			RetentionDays:  appCfg.RetentionDays,
			ScrapeInterval: appCfg.ScrapeInterval,
		},
	})
	slog.Info("Starting background scheduler", "workers", appCfg.WorkerCount)
	scheduler.Start()
	defer scheduler.Stop()

	handler := api.NewHandler(service, renderer, registry, publisher, eventRepo, sourceRepo,
		configCache, scheduler, store, api.Site{
			Name:        appCfg.SiteName,
			Description: appCfg.SiteDescription,
			FrontPage:   appCfg.FrontPage,
		})

	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      api.NewServer(handler, appCfg.APIAccessKey),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("Starting HTTP server", "port", appCfg.Port, "feed_url", displayFeedURL)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig.String())
	case err := <-serverErrChan:
		return err
	}

	slog.Info("Shutting down server gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	slog.Info("Amsterdam Events shutdown complete")
	return nil
}

// newStore picks Redis when a URL is configured and memory otherwise.
func newStore(appCfg *cfg.Cfg) (cache.Store, func(), error) {
	if appCfg.RedisURL == "" {
		return cache.NewMemoryStore(appCfg.CacheTTL, 10*time.Minute), func() {}, nil
	}

	store, err := cache.NewRedisStore(context.Background(), appCfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	return store, func() {
		if err := store.Close(); err != nil {
			slog.Warn("Failed to close Redis connection", "error", err)
		}
	}, nil
}
