package feed

import (
	"bytes"
	"cmp"
	"fmt"
	"strings"

	"github.com/mmcdole/gofeed"
)

type Parser struct {
	gofeedParser *gofeed.Parser
}

func NewParser() *Parser {
	return &Parser{
		gofeedParser: gofeed.NewParser(),
	}
}

func (p *Parser) Run(data []byte) ([]Item, error) {
	feed, err := p.gofeedParser.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	items := make([]Item, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item == nil {
			continue
		}
		items = append(items, p.normalizeItem(item))
	}

	return items, nil
}

func (p *Parser) normalizeItem(item *gofeed.Item) Item {
	normalized := Item{
		GUID:        cmp.Or(item.GUID, item.Link),
		Title:       item.Title,
		Link:        item.Link,
		Description: item.Description,
		// RSS 2.0 feeds without content:encoded carry their markup in
		// <description>; the content patterns are scanned there instead.
		Content: cmp.Or(item.Content, item.Description),
	}

	if item.PublishedParsed != nil {
		published := *item.PublishedParsed
		normalized.PublishedAt = &published
	} else if item.UpdatedParsed != nil {
		updated := *item.UpdatedParsed
		normalized.PublishedAt = &updated
	}

	if item.Categories != nil {
		normalized.Categories = item.Categories
	}

	if enclosure := p.pickEnclosure(item.Enclosures); enclosure != nil {
		normalized.EnclosureURL = enclosure.URL
		normalized.EnclosureType = enclosure.Type
	} else if item.Image != nil && item.Image.URL != "" {
		normalized.EnclosureURL = item.Image.URL
	}

	return normalized
}

// pickEnclosure prefers the first image enclosure and otherwise returns
// the first enclosure with a URL.
func (p *Parser) pickEnclosure(enclosures []*gofeed.Enclosure) *gofeed.Enclosure {
	var first *gofeed.Enclosure
	for _, enclosure := range enclosures {
		if enclosure == nil || enclosure.URL == "" {
			continue
		}
		if strings.HasPrefix(enclosure.Type, "image/") {
			return enclosure
		}
		if first == nil {
			first = enclosure
		}
	}
	return first
}
