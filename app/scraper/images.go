package scraper

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// imageSelectors are tried in order; the first element carrying a URL wins.
var imageSelectors = []string{
	`img[src*="thefeedfactory"]`,
	`meta[property="og:image"]`,
	`img[alt*="Amsterdam"]`,
	`img[src*="_next/image"]`,
	`.hero-image img`,
	`article img`,
	`main img`,
}

// FindImage returns the main image of an event page as an absolute URL,
// or "" when the page has none.
func FindImage(doc *goquery.Document, pageURL *url.URL) string {
	for _, selector := range imageSelectors {
		el := doc.Find(selector).First()
		if el.Length() == 0 {
			continue
		}

		attr := "src"
		if goquery.NodeName(el) == "meta" {
			attr = "content"
		}

		raw, ok := el.Attr(attr)
		raw = strings.TrimSpace(raw)
		if !ok || raw == "" {
			continue
		}

		if imageURL := normalizeImageURL(raw, pageURL); imageURL != "" {
			return imageURL
		}
	}

	return ""
}

// normalizeImageURL makes raw absolute and unwraps Next.js image proxy
// URLs (/_next/image?url=...) to the original image.
func normalizeImageURL(raw string, pageURL *url.URL) string {
	resolved := resolveURL(pageURL, raw)
	if resolved == "" {
		return ""
	}

	u, err := url.Parse(resolved)
	if err != nil {
		return ""
	}

	if strings.Contains(u.Path, "/_next/image") || strings.Contains(resolved, "thefeedfactory") {
		if original := u.Query().Get("url"); original != "" {
			if unwrapped := resolveURL(pageURL, original); unwrapped != "" {
				return unwrapped
			}
		}
	}

	return resolved
}

// resolveURL resolves ref against base and returns "" for anything that
// is not an http(s) URL afterwards.
func resolveURL(base *url.URL, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}

	u, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	if base != nil {
		u = base.ResolveReference(u)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	return u.String()
}
