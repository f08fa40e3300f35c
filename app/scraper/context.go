package scraper

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	inlineImageURLRegex = regexp.MustCompile(`(?i)https?://\S+\.(?:jpg|jpeg|png|gif|webp)`)

	monthNameDateRegex = regexp.MustCompile(`(\d{1,2})\s*(jan|feb|mrt|mar|apr|mei|may|jun|jul|aug|sep|okt|oct|nov|dec)[a-z]*\s*\W?(\d{2,4})`)
	dayFirstDateRegex  = regexp.MustCompile(`\b(\d{1,2})-(\d{1,2})-(\d{4})\b`)
	isoDateRegex       = regexp.MustCompile(`\b(\d{4})-(\d{1,2})-(\d{1,2})\b`)

	titleCaser = cases.Title(language.English)
)

// Dutch and English month abbreviations.
var monthAbbreviations = map[string]time.Month{
	"jan": time.January,
	"feb": time.February,
	"mrt": time.March,
	"mar": time.March,
	"apr": time.April,
	"mei": time.May,
	"may": time.May,
	"jun": time.June,
	"jul": time.July,
	"aug": time.August,
	"sep": time.September,
	"okt": time.October,
	"oct": time.October,
	"nov": time.November,
	"dec": time.December,
}

var locationIndicators = []string{
	"amsterdam",
	"museum",
	"theater",
	"concertgebouw",
	"vondelpark",
	"centrum",
	"beursplein",
}

const minContextDescriptionLength = 50

// PageContext is what the text around an event link tells about the event.
type PageContext struct {
	Text     string
	Tags     []string
	Date     string
	Location string
}

// ParseContext reads tags, a date and a location from the text of the
// element enclosing an event link. Empty fields mean nothing was found.
func ParseContext(title, text string) PageContext {
	text = strings.Join(strings.Fields(inlineImageURLRegex.ReplaceAllString(text, "")), " ")
	lower := strings.ToLower(text)

	pc := PageContext{
		Text:     text,
		Date:     ParseDate(lower),
		Location: parseLocation(strings.ToLower(title), lower),
	}

	if strings.Contains(lower, "amsterdam 750") {
		pc.Tags = append(pc.Tags, "Amsterdam 750 events")
	}
	if strings.Contains(lower, "gratis") || strings.Contains(lower, "free") {
		pc.Tags = append(pc.Tags, "Gratis entree")
	}
	if strings.Contains(lower, "toekomsttiendaagse") {
		pc.Tags = append(pc.Tags, "ToekomstTiendaagse")
	}

	return pc
}

// ParseDate finds the first date written as "04 jun '25", "4 juni 2025",
// "4-6-2025" or "2025-06-04" and renders it as "4 June 2025".
func ParseDate(text string) string {
	text = strings.ToLower(text)

	if m := monthNameDateRegex.FindStringSubmatch(text); m != nil {
		year := m[3]
		if len(year) == 2 {
			year = "20" + year
		}
		if date := formatDate(m[1], monthAbbreviations[m[2]], year); date != "" {
			return date
		}
	}

	if m := dayFirstDateRegex.FindStringSubmatch(text); m != nil {
		if month, err := strconv.Atoi(m[2]); err == nil {
			if date := formatDate(m[1], time.Month(month), m[3]); date != "" {
				return date
			}
		}
	}

	if m := isoDateRegex.FindStringSubmatch(text); m != nil {
		if month, err := strconv.Atoi(m[2]); err == nil {
			if date := formatDate(m[3], time.Month(month), m[1]); date != "" {
				return date
			}
		}
	}

	return ""
}

func formatDate(day string, month time.Month, year string) string {
	d, err := strconv.Atoi(day)
	if err != nil || d < 1 || d > 31 {
		return ""
	}
	if month < time.January || month > time.December {
		return ""
	}
	y, err := strconv.Atoi(year)
	if err != nil || y < 1000 {
		return ""
	}
	return strconv.Itoa(d) + " " + month.String() + " " + strconv.Itoa(y)
}

func parseLocation(lowerTitle, lowerText string) string {
	for _, indicator := range locationIndicators {
		if strings.Contains(lowerText, indicator) && !strings.Contains(lowerTitle, indicator) {
			return titleCaser.String(indicator)
		}
	}
	return ""
}

// spacedText is Selection.Text with a space between text nodes, so words
// in adjacent elements are not glued together.
func spacedText(sel *goquery.Selection) string {
	var parts []string
	var walk func(*goquery.Selection)
	walk = func(s *goquery.Selection) {
		s.Contents().Each(func(_ int, child *goquery.Selection) {
			switch goquery.NodeName(child) {
			case "#text":
				parts = append(parts, child.Text())
			case "script", "style", "#comment":
			default:
				walk(child)
			}
		})
	}
	walk(sel)
	return strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
}
