package api

import (
	"bytes"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lassebenni/amsterdam-events/app/cache"
	"github.com/lassebenni/amsterdam-events/app/database"
	"github.com/lassebenni/amsterdam-events/app/events"
	"github.com/lassebenni/amsterdam-events/app/render"
	"github.com/lassebenni/amsterdam-events/app/scraper"
	"github.com/lassebenni/amsterdam-events/app/shortcode"
	"github.com/lassebenni/amsterdam-events/app/tasks"
)

func NewHandler(service *events.Service, renderer *render.Renderer, registry *shortcode.Registry,
	feed FeedRenderer, eventRepo database.EventRepository, sourceRepo database.SourceRepository,
	configCache *scraper.ConfigCache, scheduler tasks.TaskSchedulerInterface, store cache.Store, site Site) *Handler {
	return &Handler{
		service:     service,
		renderer:    renderer,
		registry:    registry,
		feed:        feed,
		eventRepo:   eventRepo,
		sourceRepo:  sourceRepo,
		configCache: configCache,
		scheduler:   scheduler,
		store:       store,
		site:        site,
	}
}

func (h *Handler) GetIndex(c *gin.Context) {
	content := h.registry.Expand(c.Request.Context(), h.site.FrontPage)

	var buf bytes.Buffer
	err := h.renderer.Page(&buf, render.PageData{
		SiteName:        h.site.Name,
		SiteDescription: h.site.Description,
		FeedURL:         feedPath,
		Content:         content,
	})
	if err != nil {
		slog.Error("Page rendering error", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	c.Data(http.StatusOK, "text/html; charset=utf-8", buf.Bytes())
}

func (h *Handler) GetEvents(c *gin.Context) {
	query, ok := h.bindEventsQuery(c)
	if !ok {
		return
	}

	html := h.service.Render(c.Request.Context(), query.params())
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(html))
}

func (h *Handler) GetEventsJSON(c *gin.Context) {
	query, ok := h.bindEventsQuery(c)
	if !ok {
		return
	}

	records, err := h.service.Records(c.Request.Context(), query.params())
	switch {
	case errors.Is(err, events.ErrEmptyFeed):
		c.JSON(http.StatusOK, []any{})
		return
	case err != nil:
		slog.Warn("Events feed unavailable", "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "Unable to fetch events at this time."})
		return
	}

	c.JSON(http.StatusOK, records)
}

// bindEventsQuery validates the query string and rejects feeds that are not
// configured, so the public routes never fetch arbitrary addresses.
func (h *Handler) bindEventsQuery(c *gin.Context) (EventsQuery, bool) {
	var query EventsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid query", "details": err.Error()})
		return query, false
	}

	if !h.service.AllowsFeed(query.FeedURL) {
		slog.Warn("Rejected feed_url", "feed_url", query.FeedURL, "client_ip", c.ClientIP())
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid query", "details": "feed_url is not a configured feed"})
		return query, false
	}

	return query, true
}

func (h *Handler) GetFeed(c *gin.Context) {
	rss, count, err := h.feed.Render()
	if err != nil {
		slog.Error("RSS generation error", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	c.Header("X-Feed-Items", strconv.Itoa(count))
	c.Data(http.StatusOK, "application/rss+xml; charset=utf-8", []byte(rss))
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]interface{}{
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
		"cache":     h.store.Name(),
	}

	if eventCount, err := h.eventRepo.GetEventCount(); err == nil {
		health["events"] = eventCount
	}

	health["loaded_configurations"] = h.configCache.GetConfigCount()
	health["shortcodes"] = h.registry.Names()

	// Only the in-memory store can count its entries cheaply.
	if counter, ok := h.store.(interface{ Count() int }); ok {
		health["cache_entries"] = counter.Count()
	}

	c.JSON(http.StatusOK, health)
}

func (h *Handler) APIListSources(c *gin.Context) {
	configs := h.configCache.GetConfigs()

	sources := make([]map[string]interface{}, 0, len(configs))

	for _, config := range configs {
		sourceInfo := map[string]interface{}{
			"name":             config.Name,
			"url":              config.URL,
			"label":            config.Label,
			"mode":             config.Mode,
			"enabled":          config.Settings.Enabled,
			"fallback":         config.Settings.Fallback,
			"max_items":        config.Settings.MaxItems,
			"refresh_interval": config.Settings.GetRefreshInterval().String(),
			"filters":          len(config.Filters),
		}

		if source, err := h.sourceRepo.GetSource(config.Name); err == nil && source != nil {
			sourceInfo["last_scraped_at"] = source.LastScrapedAt
			sourceInfo["next_scrape_at"] = source.NextScrapeAt
			sourceInfo["last_found"] = source.LastFound
		}

		sources = append(sources, sourceInfo)
	}

	c.JSON(http.StatusOK, map[string]interface{}{
		"sources": sources,
		"total":   len(sources),
	})
}

func (h *Handler) APIScrape(c *gin.Context) {
	task, err := h.scheduler.EnqueueScrape()
	switch {
	case errors.Is(err, tasks.ErrScrapeInProgress):
		c.JSON(http.StatusConflict, gin.H{"error": "Scrape already queued or running"})
		return
	case err != nil:
		slog.Error("Error enqueueing scrape task", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "Failed to enqueue scrape task",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"success": true,
		"message": "Scrape task enqueued",
		"task": gin.H{
			"id":   task.GetID(),
			"type": task.GetType(),
		},
	})
}

func (h *Handler) APIFlushCache(c *gin.Context) {
	if err := h.store.Flush(c.Request.Context()); err != nil {
		slog.Error("Cache flush error", "cache", h.store.Name(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to flush cache"})
		return
	}

	slog.Info("Feed cache flushed", "cache", h.store.Name())
	c.JSON(http.StatusOK, gin.H{"success": true, "cache": h.store.Name()})
}
