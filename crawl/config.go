package crawl

import (
	"github.com/hazyhaar/dasite/crawl/internal/config"
)

// Config is the top-level dasite configuration. Re-exported from internal.
type Config = config.Config

// CrawlConfig controls link following.
type CrawlConfig = config.CrawlConfig

// BrowserConfig controls the Chrome instance.
type BrowserConfig = config.BrowserConfig

// CompareConfig controls the image comparison.
type CompareConfig = config.CompareConfig

// ReportConfig controls report emission.
type ReportConfig = config.ReportConfig

// LoadConfigFile reads a YAML configuration file.
func LoadConfigFile(path string) (*Config, error) {
	return config.LoadFile(path)
}

// DefaultConfig returns a Config with all defaults applied.
func DefaultConfig() *Config {
	return config.Default()
}
