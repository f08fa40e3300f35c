package scraper

import (
	"time"
)

const (
	ModeLinks = "links"
	ModeCards = "cards"
)

// Config describes one event source. Name is derived from the filename
// (without the .yml extension).
type Config struct {
	Name                string
	URL                 string          `yaml:"url"`
	Label               string          `yaml:"label"`
	Mode                string          `yaml:"mode"`
	Selectors           ConfigSelectors `yaml:"selectors"`
	TitlePrefix         string          `yaml:"title_prefix"`
	MinTitleLength      int             `yaml:"min_title_length"`
	DateText            string          `yaml:"date_text"`
	DescriptionTemplate string          `yaml:"description_template"` // {title} is replaced
	Settings            ConfigSettings  `yaml:"settings"`
	Filters             []ConfigFilter  `yaml:"filters"`
}

type ConfigSelectors struct {
	Item        string `yaml:"item"`
	Title       string `yaml:"title"`
	Link        string `yaml:"link"`
	Description string `yaml:"description"`
}

type ConfigSettings struct {
	Enabled         bool `yaml:"enabled"`
	Fallback        bool `yaml:"fallback"` // only scraped when primary sources come up short
	MaxItems        int  `yaml:"max_items"`
	Timeout         int  `yaml:"timeout"`          // seconds
	RefreshInterval int  `yaml:"refresh_interval"` // seconds
	ExtractImages   bool `yaml:"extract_images"`
	ExtractContent  bool `yaml:"extract_content"`
	ParseContext    bool `yaml:"parse_context"`
}

type ConfigFilter struct {
	Field    string   `yaml:"field"`
	Includes []string `yaml:"includes"`
	Excludes []string `yaml:"excludes"`
}

func (s ConfigSettings) GetRefreshInterval() time.Duration {
	if s.RefreshInterval <= 0 {
		return 3600 * time.Second
	}
	return time.Duration(s.RefreshInterval) * time.Second
}

func (s ConfigSettings) GetTimeout() time.Duration {
	if s.Timeout <= 0 {
		return 30 * time.Second
	}
	return time.Duration(s.Timeout) * time.Second
}
