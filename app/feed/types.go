package feed

import (
	"time"
)

type Item struct {
	GUID        string     `json:"guid"`
	Title       string     `json:"title"`
	Link        string     `json:"link"`
	Description string     `json:"description,omitempty"`
	Content     string     `json:"content,omitempty"`
	PublishedAt *time.Time `json:"published_at,omitempty"` // nil when the feed omits pubDate
	Categories  []string   `json:"categories,omitempty"`

	EnclosureURL  string `json:"enclosure_url,omitempty"`
	EnclosureType string `json:"enclosure_type,omitempty"`
}

// DisplayRecord is the normalized, render-ready view of one feed item.
type DisplayRecord struct {
	Title       string `json:"title"`
	Link        string `json:"link"`
	ImageURL    string `json:"image_url"`
	DisplayDate string `json:"display_date"`
	Summary     string `json:"summary"`
}

// Extraction options

const (
	DefaultSummaryWords = 20
	DefaultEllipsis     = "..."
	DefaultDateLayout   = "2 January 2006, 15:04"
)

type ExtractOptions struct {
	SummaryWords int
	Ellipsis     string
	DateLayout   string
	Location     *time.Location // time.Local when nil
}

func (o ExtractOptions) withDefaults() ExtractOptions {
	if o.SummaryWords <= 0 {
		o.SummaryWords = DefaultSummaryWords
	}
	if o.Ellipsis == "" {
		o.Ellipsis = DefaultEllipsis
	}
	if o.DateLayout == "" {
		o.DateLayout = DefaultDateLayout
	}
	return o
}
