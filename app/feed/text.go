package feed

import (
	"html"
	"regexp"
	"strings"
)

var (
	scriptStyleRegex = regexp.MustCompile(`(?is)<(?:script|style)\b[^>]*>.*?</(?:script|style)\s*>`)
	// A tag starts with a letter, '/', '!' or '?'; an unterminated one runs
	// to the end of the input. Any other '<' is text and is removed by
	// angleReplacer.
	htmlTagRegex = regexp.MustCompile(`(?s)<[A-Za-z/!?][^>]*(?:>|$)`)

	angleReplacer = strings.NewReplacer("<", " ", ">", " ")
)

// CleanText turns an HTML fragment into plain text: script and style
// blocks are dropped, tags become spaces, entities are decoded and
// whitespace is collapsed. The result never contains '<' or '>'.
func CleanText(input string) string {
	if input == "" {
		return ""
	}

	cleaned := scriptStyleRegex.ReplaceAllString(input, " ")
	cleaned = htmlTagRegex.ReplaceAllString(cleaned, " ")
	cleaned = html.UnescapeString(cleaned)
	// Decoded &lt; / &gt; must not reintroduce markup characters.
	cleaned = angleReplacer.Replace(cleaned)

	return strings.Join(strings.Fields(cleaned), " ")
}

// TrimWords keeps the first limit words of text and appends more when
// anything was cut. Words are whitespace-separated; the kept words are
// joined by single spaces.
func TrimWords(text string, limit int, more string) string {
	words := strings.Fields(text)
	if limit <= 0 || len(words) <= limit {
		return strings.Join(words, " ")
	}

	return strings.Join(words[:limit], " ") + more
}

// bareURL returns s trimmed, or "" when it cannot be a bare URL.
func bareURL(s string) string {
	s = strings.TrimSpace(s)
	if s == "" || strings.ContainsAny(s, "<>\"' \t\r\n") {
		return ""
	}
	return s
}
