package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Fetch modes
const (
	ModeLocal  = "local"
	ModeRemote = "remote"
)

// Fetcher kinds
const (
	FetcherColly = "colly"
	FetcherRod   = "rod"
)

// Selector kinds
const (
	SelectorCSS   = "css"
	SelectorXPath = "xpath"
)

// PageConfig describes one source page and how to read team quotas from it
type PageConfig struct {
	URL          string `yaml:"url"`
	Fetcher      string `yaml:"fetcher"`
	SelectorKind string `yaml:"selector_kind"`
	Row          string `yaml:"row"`
	Team         string `yaml:"team"`
	Quota        string `yaml:"quota"`
}

// Config represents the application configuration
type Config struct {
	Display struct {
		Cap int `yaml:"cap"`
	} `yaml:"display"`

	Fetch struct {
		Mode      string        `yaml:"mode"`
		RemoteURL string        `yaml:"remote_url"`
		Timeout   time.Duration `yaml:"timeout"`
	} `yaml:"fetch"`

	Pages struct {
		First  PageConfig `yaml:"first"`
		Second PageConfig `yaml:"second"`
	} `yaml:"pages"`

	Bot struct {
		AllowedUsers []int64 `yaml:"allowed_users"`
	} `yaml:"bot"`

	Sheets struct {
		SpreadsheetURL string `yaml:"spreadsheet_url"`
	} `yaml:"sheets"`

	Log struct {
		Level       string `yaml:"level"`
		Development bool   `yaml:"development"`
	} `yaml:"log"`
}

// LoadConfig loads configuration from a YAML file.
// Keys missing from the file keep their default values.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := GetDefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	cfg.applyPageDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file: %w", err)
	}
	return cfg, nil
}

// LoadOrDefault loads the config at path, falling back to defaults when the file does not exist
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return GetDefaultConfig(), nil
	}
	return LoadConfig(path)
}

// GetDefaultConfig returns a default configuration
func GetDefaultConfig() *Config {
	cfg := &Config{}
	cfg.Display.Cap = 15
	cfg.Fetch.Mode = ModeLocal
	cfg.Fetch.RemoteURL = "http://localhost:3000"
	cfg.Fetch.Timeout = 60 * time.Second
	cfg.Log.Level = "info"
	cfg.applyPageDefaults()
	return cfg
}

func (c *Config) applyPageDefaults() {
	for _, p := range []*PageConfig{&c.Pages.First, &c.Pages.Second} {
		if p.Fetcher == "" {
			p.Fetcher = FetcherColly
		}
		if p.SelectorKind == "" {
			p.SelectorKind = SelectorCSS
		}
	}
}

// Validate checks the configuration for values the application cannot run with
func (c *Config) Validate() error {
	var errs []error

	if c.Display.Cap < 0 {
		errs = append(errs, fmt.Errorf("display.cap must not be negative, got %d", c.Display.Cap))
	}
	if c.Fetch.Timeout < 0 {
		errs = append(errs, fmt.Errorf("fetch.timeout must not be negative, got %s", c.Fetch.Timeout))
	}

	switch c.Fetch.Mode {
	case ModeLocal:
		errs = append(errs, c.Pages.First.validate("pages.first"), c.Pages.Second.validate("pages.second"))
	case ModeRemote:
		if c.Fetch.RemoteURL == "" {
			errs = append(errs, errors.New("fetch.remote_url is required in remote mode"))
		}
	default:
		errs = append(errs, fmt.Errorf("fetch.mode must be %q or %q, got %q", ModeLocal, ModeRemote, c.Fetch.Mode))
	}

	return errors.Join(errs...)
}

func (p PageConfig) validate(name string) error {
	// an unconfigured page is allowed; fetching it fails later
	if p.URL == "" {
		return nil
	}

	var errs []error
	if p.Fetcher != FetcherColly && p.Fetcher != FetcherRod {
		errs = append(errs, fmt.Errorf("%s.fetcher must be %q or %q, got %q", name, FetcherColly, FetcherRod, p.Fetcher))
	}
	if p.SelectorKind != SelectorCSS && p.SelectorKind != SelectorXPath {
		errs = append(errs, fmt.Errorf("%s.selector_kind must be %q or %q, got %q", name, SelectorCSS, SelectorXPath, p.SelectorKind))
	}
	if p.Row == "" || p.Team == "" {
		errs = append(errs, fmt.Errorf("%s needs both row and team selectors", name))
	}
	return errors.Join(errs...)
}
