package feed

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/url"

	readability "codeberg.org/readeck/go-readability"
)

// Article is the readable part of an event page.
type Article struct {
	Title   string
	Content string // HTML
	Text    string // Content as collapsed plain text
}

type ContentExtractor struct{}

func NewContentExtractor() *ContentExtractor {
	return &ContentExtractor{}
}

func (e *ContentExtractor) Run(data []byte, pageURL *url.URL) (*Article, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("HTML data is empty")
	}

	article, err := readability.FromReader(bytes.NewReader(data), pageURL)
	if err != nil {
		return nil, fmt.Errorf("failed to extract content: %w", err)
	}

	if article.Content == "" {
		return nil, fmt.Errorf("no content extracted from %s", pageURL)
	}

	slog.Debug("Content extracted successfully",
		"url", pageURL,
		"title", article.Title,
		"content_length", len(article.Content))

	return &Article{
		Title:   article.Title,
		Content: article.Content,
		Text:    CleanText(article.Content),
	}, nil
}
