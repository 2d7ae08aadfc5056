// Package config defines the dasite configuration and parses YAML config
// files with defaults applied. CLI flags override file values; the merge
// happens in cmd/dasite.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level dasite configuration.
type Config struct {
	Output  string        `yaml:"output"`
	Crawl   CrawlConfig   `yaml:"crawl"`
	Browser BrowserConfig `yaml:"browser"`
	Compare CompareConfig `yaml:"compare"`
	Report  ReportConfig  `yaml:"report"`
}

// CrawlConfig controls link following.
type CrawlConfig struct {
	// Enabled turns on breadth-first same-domain crawling. Off by default:
	// a bare invocation captures only the seed URL.
	Enabled  bool `yaml:"enabled"`
	MaxPages int  `yaml:"max_pages"` // 0 = unlimited
}

// BrowserConfig controls the Chrome instance. Headless is the default mode;
// headful is the opt-in so the zero value stays useful.
type BrowserConfig struct {
	Remote     string        `yaml:"remote"`      // ws:// URL of an external Chrome
	Headful    bool          `yaml:"headful"`     // show the browser window
	Stealth    bool          `yaml:"stealth"`     // anti-detection page setup
	NavTimeout time.Duration `yaml:"nav_timeout"` // per-page navigation budget
}

// CompareConfig controls the image comparison.
type CompareConfig struct {
	// Threshold is the overall failure cutoff: the run fails when the max
	// diff percentage across changed targets is strictly greater.
	Threshold float64 `yaml:"threshold"`
	// PixelThreshold is the per-pixel Euclidean RGB sensitivity.
	PixelThreshold float64 `yaml:"pixel_threshold"`
	Highlight      string  `yaml:"highlight"` // hex colour for the diff overlay
	Alpha          float64 `yaml:"alpha"`     // overlay blend factor
}

// ReportConfig controls report emission.
type ReportConfig struct {
	HTML  bool   `yaml:"html"`
	Title string `yaml:"title"`
}

// LoadFile reads a YAML configuration file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	cfg.ApplyDefaults()
	return &cfg, nil
}

// Default returns a Config with all defaults applied.
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.Output == "" {
		c.Output = "./dasite"
	}
	if c.Browser.NavTimeout <= 0 {
		c.Browser.NavTimeout = 30 * time.Second
	}
	if c.Compare.Highlight == "" {
		c.Compare.Highlight = "#ff0000"
	}
	if c.Compare.Alpha <= 0 || c.Compare.Alpha > 1 {
		c.Compare.Alpha = 0.5
	}
	if c.Report.Title == "" {
		c.Report.Title = "dasite visual regression report"
	}
}
