package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration document. Unknown keys are
// ignored; every section has working defaults so an empty document (or
// no document at all) yields a runnable setup.
type Config struct {
	Database       Database           `yaml:"database"`
	Scrapers       map[string]Scraper `yaml:"scrapers"`
	Scheduler      Scheduler          `yaml:"scheduler"`
	SearchFilters  SearchFilters      `yaml:"search_filters"`
	QualityFilters *QualityFilters    `yaml:"quality_filters"`
}

// Database holds connection settings for the listing store. Environment
// variables DB_HOST/DB_PORT/DB_NAME/DB_USER/DB_PASSWORD override the
// document values.
type Database struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

// Scraper carries per-source tuning.
type Scraper struct {
	Enabled                *bool `yaml:"enabled"`
	DetailFetchConcurrency int   `yaml:"detail_fetch_concurrency"`
	FetchDetails           *bool `yaml:"fetch_details"`
	UseBrowser             bool  `yaml:"use_browser"`
	RegionID               int   `yaml:"region_id"`
	DistrictID             int   `yaml:"district_id"`
}

// Scheduler gates the cron scheduler. Cron expressions use the standard
// five-field form and fire in the Europe/Prague time zone.
type Scheduler struct {
	Enabled    bool   `yaml:"enabled"`
	DailyCron  string `yaml:"daily_cron"`
	WeeklyCron string `yaml:"weekly_cron"`
}

// SearchFilters holds the admission policy: a global district list plus
// per-property-type stanzas (houses, apartments, lands, ...). A type
// with no stanza is admitted unfiltered.
type SearchFilters struct {
	TargetDistricts []string              `yaml:"target_districts"`
	Types           map[string]TypeFilter `yaml:",inline"`
}

// TypeFilter is one per-property-type stanza. A nil Enabled counts as
// enabled; price bounds are inclusive.
type TypeFilter struct {
	Enabled    *bool    `yaml:"enabled"`
	OfferTypes []string `yaml:"offer_types"`
	MinPrice   *float64 `yaml:"min_price"`
	MaxPrice   *float64 `yaml:"max_price"`
}

// QualityFilters are the record completeness requirements checked
// before any geographic or price policy.
type QualityFilters struct {
	RequirePhotos        bool `yaml:"require_photos"`
	MinPhotos            int  `yaml:"min_photos"`
	RequirePrice         bool `yaml:"require_price"`
	RequireLocation      bool `yaml:"require_location"`
	RequireDescription   bool `yaml:"require_description"`
	MinDescriptionLength int  `yaml:"min_description_length"`
}

// Load reads and parses the YAML configuration document, then applies
// environment overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	cfg.applyEnv()
	return cfg, nil
}

// Default returns the configuration used when no document is present.
func Default() *Config {
	cfg := &Config{
		Database: Database{
			Host: "localhost",
			Port: "5432",
			Name: "realscan",
			User: "realscan",
		},
		Scheduler: Scheduler{
			DailyCron:  "0 3 * * *",
			WeeklyCron: "0 2 * * 0",
		},
	}
	cfg.applyEnv()
	return cfg
}

func (c *Config) applyEnv() {
	if v := os.Getenv("DB_HOST"); v != "" {
		c.Database.Host = v
	}
	if v := os.Getenv("DB_PORT"); v != "" {
		c.Database.Port = v
	}
	if v := os.Getenv("DB_NAME"); v != "" {
		c.Database.Name = v
	}
	if v := os.Getenv("DB_USER"); v != "" {
		c.Database.User = v
	}
	if v := os.Getenv("DB_PASSWORD"); v != "" {
		c.Database.Password = v
	}
}

// DatabaseURL renders the database stanza as a pgx connection URL.
func (c *Config) DatabaseURL() string {
	d := c.Database
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s", d.User, d.Password, d.Host, d.Port, d.Name)
}

// ScraperFor returns the tuning stanza for a source code, zero-valued
// when the document has none.
func (c *Config) ScraperFor(code string) Scraper {
	if c.Scrapers == nil {
		return Scraper{}
	}
	return c.Scrapers[code]
}

// SourceEnabled reports whether a source participates in the default
// "all sources" resolution. Sources are enabled unless the document
// says otherwise.
func (c *Config) SourceEnabled(code string) bool {
	s := c.ScraperFor(code)
	return s.Enabled == nil || *s.Enabled
}

// UsesBrowser reports whether any configured source wants the headless
// browser, so the pool is only started when something needs it.
func (c *Config) UsesBrowser() bool {
	for _, s := range c.Scrapers {
		if s.UseBrowser {
			return true
		}
	}
	return false
}
