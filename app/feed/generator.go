package feed

import (
	"bytes"
	"cmp"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/gorilla/feeds"

	"github.com/lassebenni/amsterdam-events/app/database"
)

const (
	DefaultChannelTitle       = "Amsterdam Events Feed"
	DefaultChannelDescription = "Curated events happening in Amsterdam"
	DefaultChannelLanguage    = "en"
)

// Channel describes the generated RSS channel.
type Channel struct {
	Title       string
	Link        string
	Description string
	Language    string
	Generator   string
}

// cardTemplate is the item markup read back by the extractor: the Date
// label/value pair and the event-description-text paragraph.
var cardTemplate = template.Must(template.New("card").Parse(
	`<div class="event-card">` +
		`{{if .ImageURL}}<img src="{{.ImageURL}}" alt="{{.Title}}" class="event-image" />{{end}}` +
		`<div class="event-info">` +
		`{{range .Lines}}<div class="event-info-line"><span class="event-label">{{.Label}}:</span> <span class="event-value">{{.Value}}</span></div>{{end}}` +
		`</div>` +
		`{{if .Description}}<p class="event-description-text">{{.Description}}</p>{{end}}` +
		`{{if .Link}}<p><a class="event-link" href="{{.Link}}">View event details</a></p>{{end}}` +
		`</div>`))

type cardLine struct {
	Label string
	Value string
}

type cardData struct {
	Title       string
	ImageURL    string
	Lines       []cardLine
	Description string
	Link        string
}

type Generator struct{}

func NewGenerator() *Generator {
	return &Generator{}
}

func (g *Generator) Run(channel Channel, events []database.Event) (string, error) {
	now := time.Now().In(time.Local)

	f := &feeds.Feed{
		Title:       cmp.Or(channel.Title, DefaultChannelTitle),
		Link:        &feeds.Link{Href: channel.Link},
		Description: cmp.Or(channel.Description, DefaultChannelDescription),
		Updated:     now,
	}

	for _, event := range events {
		item, err := g.newItem(event)
		if err != nil {
			return "", err
		}
		f.Add(item)
	}

	rss := (&feeds.Rss{Feed: f}).RssFeed()
	rss.Language = cmp.Or(channel.Language, DefaultChannelLanguage)
	rss.Generator = channel.Generator
	rss.LastBuildDate = now.Format(time.RFC1123Z)

	xml, err := feeds.ToXML(rss)
	if err != nil {
		return "", fmt.Errorf("failed to encode RSS feed: %w", err)
	}
	return xml, nil
}

func (g *Generator) newItem(event database.Event) (*feeds.Item, error) {
	card, err := g.card(event)
	if err != nil {
		return nil, fmt.Errorf("failed to render card for %q: %w", event.Title, err)
	}

	item := &feeds.Item{
		Title:       event.Title,
		Link:        &feeds.Link{Href: event.Link},
		Description: card,
		Id:          event.Link,
		Created:     event.ScrapedAt,
	}

	if event.ImageURL != "" {
		item.Enclosure = &feeds.Enclosure{
			Url:    event.ImageURL,
			Length: "0",
			Type:   "image/jpeg",
		}
	}

	return item, nil
}

func (g *Generator) card(event database.Event) (string, error) {
	data := cardData{
		Title:    event.Title,
		ImageURL: event.ImageURL,
		Link:     event.Link,
	}

	if event.DateText != "" {
		data.Lines = append(data.Lines, cardLine{"Date", event.DateText})
	}
	if event.Location != "" {
		data.Lines = append(data.Lines, cardLine{"Location", event.Location})
	}
	if event.Source != "" {
		data.Lines = append(data.Lines, cardLine{"Source", event.Source})
	}
	if len(event.Tags) > 0 {
		data.Lines = append(data.Lines, cardLine{"Tags", strings.Join(event.Tags, " • ")})
	}

	if desc := strings.TrimSpace(event.Description); desc != "" && desc != strings.TrimSpace(event.Title) {
		data.Description = desc
	}

	var buf bytes.Buffer
	if err := cardTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
