package feed

import (
	"html"
	"regexp"
	"strings"
	"time"
)

// Content patterns of the event feed. Every match is optional: a miss
// falls through to the next tier.
var (
	imageSrcRegex = regexp.MustCompile(`(?is)<img\b[^>]*?[\s"'/]src\s*=\s*(?:"([^"]*)"|'([^']*)'|([^\s"'>]+))`)

	eventValueParagraphRegex = regexp.MustCompile(`(?is)<span\b[^>]*\bclass\s*=\s*["'][^"']*\bevent-value\b[^"']*["'][^>]*>[^<]*</span>\s*<p\b[^>]*>(.*?)</p>`)
	eventDateValueRegex      = regexp.MustCompile(`(?is)<span\b[^>]*\bclass\s*=\s*["'][^"']*\bevent-label\b[^"']*["'][^>]*>\s*Date\s*:?\s*</span>\s*<span\b[^>]*\bclass\s*=\s*["'][^"']*\bevent-value\b[^"']*["'][^>]*>(.*?)</span>`)

	descriptionTextRegex = regexp.MustCompile(`(?is)<p\b[^>]*\bclass\s*=\s*["'][^"']*\bevent-description-text\b[^"']*["'][^>]*>(.*?)</p>`)
)

// Extractor turns feed items into display records. It holds no mutable
// state and is safe for concurrent use.
type Extractor struct {
	opts ExtractOptions
}

func NewExtractor(opts ExtractOptions) *Extractor {
	return &Extractor{opts: opts.withDefaults()}
}

func (e *Extractor) Run(item Item) DisplayRecord {
	return DisplayRecord{
		Title:       CleanText(item.Title),
		Link:        strings.TrimSpace(item.Link),
		ImageURL:    e.resolveImage(item),
		DisplayDate: e.resolveDate(item),
		Summary:     e.resolveSummary(item),
	}
}

func (e *Extractor) RunAll(items []Item) []DisplayRecord {
	records := make([]DisplayRecord, 0, len(items))
	for _, item := range items {
		records = append(records, e.Run(item))
	}
	return records
}

func (e *Extractor) resolveImage(item Item) string {
	if url := bareURL(item.EnclosureURL); url != "" {
		return url
	}

	m := imageSrcRegex.FindStringSubmatch(item.Content)
	if m == nil {
		return ""
	}
	for _, src := range m[1:] {
		if url := bareURL(html.UnescapeString(src)); url != "" {
			return url
		}
	}

	return ""
}

func (e *Extractor) resolveDate(item Item) string {
	for _, re := range []*regexp.Regexp{eventValueParagraphRegex, eventDateValueRegex} {
		if text := firstGroupText(re, item.Content); text != "" {
			return text
		}
	}

	if item.PublishedAt == nil || item.PublishedAt.IsZero() {
		return ""
	}

	loc := e.opts.Location
	if loc == nil {
		loc = time.Local
	}
	return item.PublishedAt.In(loc).Format(e.opts.DateLayout)
}

func (e *Extractor) resolveSummary(item Item) string {
	text := firstGroupText(descriptionTextRegex, item.Content)
	if text == "" {
		text = CleanText(item.Description)
	}

	return TrimWords(text, e.opts.SummaryWords, e.opts.Ellipsis)
}

// firstGroupText returns the cleaned text of the first capture group of
// the first match, or "" when there is no match or only whitespace.
func firstGroupText(re *regexp.Regexp, content string) string {
	if content == "" {
		return ""
	}
	m := re.FindStringSubmatch(content)
	if len(m) < 2 {
		return ""
	}
	return CleanText(m[1])
}
