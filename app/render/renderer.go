package render

import (
	"bytes"
	"cmp"
	"embed"
	"fmt"
	"html/template"
	"io"
	"log/slog"

	"github.com/lassebenni/amsterdam-events/app/feed"
)

//go:embed templates/*.html
var templatesFS embed.FS

const (
	LayoutGrid = "grid"
	LayoutList = "list"
)

type MessageKind int

const (
	MessageUnavailable MessageKind = iota
	MessageEmpty
)

var messages = map[MessageKind]template.HTML{
	MessageUnavailable: `<p class="text-red-600">Unable to fetch events at this time.</p>`,
	MessageEmpty:       `<p class="text-gray-500">No events found.</p>`,
}

type Options struct {
	Layout     string // LayoutGrid when empty or unknown
	ShowImages bool
}

type PageData struct {
	Title           string
	SiteName        string
	SiteDescription string
	Language        string
	FeedURL         string
	Content         template.HTML
}

type eventsData struct {
	Records    []feed.DisplayRecord
	ShowImages bool
}

// Renderer turns display records into HTML. Every field goes through
// html/template escaping; unsafe link and image URLs are neutralized.
type Renderer struct {
	templates *template.Template
}

func New() (*Renderer, error) {
	templates, err := template.ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	return &Renderer{templates: templates}, nil
}

// ValidLayout reports whether layout names a known layout.
func ValidLayout(layout string) bool {
	return layout == LayoutGrid || layout == LayoutList
}

func (r *Renderer) Events(records []feed.DisplayRecord, opts Options) template.HTML {
	if len(records) == 0 {
		return r.Message(MessageEmpty)
	}

	name := "events_grid"
	if opts.Layout == LayoutList {
		name = "events_list"
	}

	var buf bytes.Buffer
	if err := r.templates.ExecuteTemplate(&buf, name, eventsData{Records: records, ShowImages: opts.ShowImages}); err != nil {
		slog.Error("Failed to render events", "layout", name, "error", err)
		return r.Message(MessageUnavailable)
	}

	return template.HTML(buf.String())
}

func (r *Renderer) Message(kind MessageKind) template.HTML {
	return messages[kind]
}

func (r *Renderer) Page(w io.Writer, data PageData) error {
	data.Language = cmp.Or(data.Language, "en")
	if err := r.templates.ExecuteTemplate(w, "page", data); err != nil {
		return fmt.Errorf("failed to render page: %w", err)
	}
	return nil
}
