package api

import (
	"github.com/lassebenni/amsterdam-events/app/cache"
	"github.com/lassebenni/amsterdam-events/app/database"
	"github.com/lassebenni/amsterdam-events/app/events"
	"github.com/lassebenni/amsterdam-events/app/render"
	"github.com/lassebenni/amsterdam-events/app/scraper"
	"github.com/lassebenni/amsterdam-events/app/shortcode"
	"github.com/lassebenni/amsterdam-events/app/tasks"
)

const feedPath = "/feeds/events.xml"

type FeedRenderer interface {
	Render() (string, int, error)
}

var _ FeedRenderer = (*tasks.Publisher)(nil)

// Site holds the page chrome and the front page content.
type Site struct {
	Name        string
	Description string
	FrontPage   string // may contain shortcodes
}

type Handler struct {
	service     *events.Service
	renderer    *render.Renderer
	registry    *shortcode.Registry
	feed        FeedRenderer
	eventRepo   database.EventRepository
	sourceRepo  database.SourceRepository
	configCache *scraper.ConfigCache
	scheduler   tasks.TaskSchedulerInterface
	store       cache.Store
	site        Site
}

// EventsQuery is bound from the /events and /events.json query string.
type EventsQuery struct {
	Max     int    `form:"max" binding:"omitempty,min=1,max=100"`
	FeedURL string `form:"feed_url" binding:"omitempty,http_url"`
	Layout  string `form:"layout" binding:"omitempty,oneof=grid list"`
	Words   int    `form:"words" binding:"omitempty,min=1,max=500"`
}

func (q EventsQuery) params() events.Params {
	return events.Params{
		FeedURL:      q.FeedURL,
		MaxItems:     q.Max,
		SummaryWords: q.Words,
		Layout:       q.Layout,
	}
}
