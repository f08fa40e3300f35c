package scraper

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

const (
	defaultMinTitleLength      = 10
	defaultMaxItems            = 15
	defaultTimeout             = 30
	defaultRefreshInterval     = 3600
	defaultLinkSelector        = "a[href]"
	defaultTitleSelector       = "h1, h2, h3"
	defaultDateText            = "Check website for dates and times"
	defaultDescriptionTemplate = "Discover this Amsterdam event: {title}"
)

type ConfigCache struct {
	sourcesDir string
	cache      map[string]*Config
	mu         sync.RWMutex
}

func NewConfigCache(sourcesDir string) *ConfigCache {
	return &ConfigCache{
		sourcesDir: sourcesDir,
		cache:      make(map[string]*Config),
	}
}

func (cc *ConfigCache) Run() error {
	if _, err := os.Stat(cc.sourcesDir); os.IsNotExist(err) {
		return nil
	}

	files, err := filepath.Glob(filepath.Join(cc.sourcesDir, "*.yml"))
	if err != nil {
		return fmt.Errorf("failed to find YML files: %w", err)
	}

	for _, file := range files {
		sourceName := strings.TrimSuffix(filepath.Base(file), ".yml")

		config, err := cc.LoadConfig(sourceName)
		if err != nil {
			return fmt.Errorf("error loading %s: %w", file, err)
		}

		slog.Debug("Source configuration loaded",
			"source", sourceName,
			"enabled", config.Settings.Enabled,
			"fallback", config.Settings.Fallback,
			"mode", config.Mode)
	}

	return nil
}

func (cc *ConfigCache) LoadConfig(sourceName string) (*Config, error) {
	configFile := cc.getConfigFilePath(sourceName)
	config, err := cc.parseConfig(configFile)
	if err != nil {
		return nil, err
	}

	config.Name = sourceName

	if err := cc.validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", configFile, err)
	}

	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.cache[config.Name] = config

	return config, nil
}

func (cc *ConfigCache) GetConfig(sourceName string) (*Config, error) {
	cc.mu.RLock()
	defer cc.mu.RUnlock()

	config, ok := cc.cache[sourceName]
	if !ok {
		return nil, fmt.Errorf("source config with name '%s' not found", sourceName)
	}
	return config, nil
}

// GetConfigs returns all configurations ordered by name.
func (cc *ConfigCache) GetConfigs() []*Config {
	cc.mu.RLock()
	defer cc.mu.RUnlock()

	configs := make([]*Config, 0, len(cc.cache))
	for _, config := range cc.cache {
		configs = append(configs, config)
	}
	sort.Slice(configs, func(i, j int) bool { return configs[i].Name < configs[j].Name })
	return configs
}

func (cc *ConfigCache) GetEnabledConfigs() []*Config {
	var enabled []*Config
	for _, config := range cc.GetConfigs() {
		if config.Settings.Enabled {
			enabled = append(enabled, config)
		}
	}
	return enabled
}

func (cc *ConfigCache) GetConfigCount() int {
	cc.mu.RLock()
	defer cc.mu.RUnlock()
	return len(cc.cache)
}

func (cc *ConfigCache) parseConfig(configFile string) (*Config, error) {
	data, err := os.ReadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if config.Mode == "" {
		config.Mode = ModeLinks
	}
	if config.MinTitleLength == 0 {
		config.MinTitleLength = defaultMinTitleLength
	}
	if config.DateText == "" {
		config.DateText = defaultDateText
	}
	if config.DescriptionTemplate == "" {
		config.DescriptionTemplate = defaultDescriptionTemplate
	}
	if config.Selectors.Link == "" {
		config.Selectors.Link = defaultLinkSelector
	}
	if config.Selectors.Item == "" && config.Mode == ModeLinks {
		config.Selectors.Item = defaultLinkSelector
	}
	if config.Selectors.Title == "" && config.Mode == ModeCards {
		config.Selectors.Title = defaultTitleSelector
	}
	if config.Settings.RefreshInterval == 0 {
		config.Settings.RefreshInterval = defaultRefreshInterval
	}
	if config.Settings.MaxItems == 0 {
		config.Settings.MaxItems = defaultMaxItems
	}
	if config.Settings.Timeout == 0 {
		config.Settings.Timeout = defaultTimeout
	}

	return &config, nil
}

func (cc *ConfigCache) validateConfig(config *Config) error {
	if config == nil {
		return fmt.Errorf("config is nil")
	}

	requiredFields := map[string]string{
		"source name":  config.Name,
		"source URL":   config.URL,
		"source label": config.Label,
	}

	for fieldName, fieldValue := range requiredFields {
		if fieldValue == "" {
			return fmt.Errorf("%s is required", fieldName)
		}
	}

	if !strings.HasPrefix(config.URL, "http://") && !strings.HasPrefix(config.URL, "https://") {
		return fmt.Errorf("source URL must be http(s): %s", config.URL)
	}

	switch config.Mode {
	case ModeLinks:
	case ModeCards:
		if config.Selectors.Item == "" {
			return fmt.Errorf("item selector is required in cards mode")
		}
	default:
		return fmt.Errorf("invalid mode: %s", config.Mode)
	}

	nonNegativeFields := map[string]int{
		"refresh interval": config.Settings.RefreshInterval,
		"max items":        config.Settings.MaxItems,
		"timeout":          config.Settings.Timeout,
		"min title length": config.MinTitleLength,
	}

	for fieldName, fieldValue := range nonNegativeFields {
		if fieldValue < 0 {
			return fmt.Errorf("%s must be non-negative", fieldName)
		}
	}

	for i, filter := range config.Filters {
		if !validFilterFields[filter.Field] {
			return fmt.Errorf("invalid filter field at index %d: %s", i, filter.Field)
		}
		if len(filter.Includes) == 0 && len(filter.Excludes) == 0 {
			return fmt.Errorf("filter at index %d must have at least one include or exclude rule", i)
		}
	}

	return nil
}

func (cc *ConfigCache) getConfigFilePath(sourceName string) string {
	return filepath.Join(cc.sourcesDir, sourceName+".yml")
}
