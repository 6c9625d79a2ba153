package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/rewired-gh/skyfeed/internal/calendar"
	"github.com/rewired-gh/skyfeed/internal/detect"
	"github.com/rewired-gh/skyfeed/internal/feed"
	"github.com/rewired-gh/skyfeed/internal/models"
	"github.com/rewired-gh/skyfeed/internal/search"
)

// Config represents the complete application configuration
type Config struct {
	Range      RangeConfig              `mapstructure:"range"`
	Bodies     []string                 `mapstructure:"bodies"`
	Categories []string                 `mapstructure:"categories"`
	Search     SearchConfig             `mapstructure:"search"`
	Profiles   map[string]ProfileConfig `mapstructure:"profiles"`
	Oracle     OracleConfig             `mapstructure:"oracle"`
	Cache      CacheConfig              `mapstructure:"cache"`
	Output     OutputConfig             `mapstructure:"output"`
	Workers    int                      `mapstructure:"workers"`
	Metrics    MetricsConfig            `mapstructure:"metrics"`
	Telegram   TelegramConfig           `mapstructure:"telegram"`
	Logging    LoggingConfig            `mapstructure:"logging"`
}

// RangeConfig holds the feed date range. An empty start means the current
// UTC day; an empty end means start plus Days.
type RangeConfig struct {
	Start string `mapstructure:"start"`
	End   string `mapstructure:"end"`
	Days  int    `mapstructure:"days"`
}

// SearchConfig holds root-finding and detector parameters
type SearchConfig struct {
	Precision       time.Duration `mapstructure:"precision"`
	RefineRadius    time.Duration `mapstructure:"refine_radius"`
	GridPoints      int           `mapstructure:"grid_points"`
	RejectThreshold float64       `mapstructure:"reject_threshold"`
	TightThreshold  float64       `mapstructure:"tight_threshold"`
	TightRadius     time.Duration `mapstructure:"tight_radius"`
	AspectStep      time.Duration `mapstructure:"aspect_step"`
	AspectOrb       float64       `mapstructure:"aspect_orb"`
	MoonAspectOrb   float64       `mapstructure:"moon_aspect_orb"`
	Aspects         []float64     `mapstructure:"aspects"` // angles in degrees
	DedupWindow     time.Duration `mapstructure:"dedup_window"`
	PhaseStep       time.Duration `mapstructure:"phase_step"`
	LunarDayStep    time.Duration `mapstructure:"lunar_day_step"`
}

// ProfileConfig overrides fields of a built-in body profile. Zero values keep
// the built-in setting.
type ProfileConfig struct {
	SignStep    time.Duration `mapstructure:"sign_step"`
	StationStep time.Duration `mapstructure:"station_step"`
	Stationary  float64       `mapstructure:"stationary"`
	Exact       float64       `mapstructure:"exact"`
	Retrogrades *bool         `mapstructure:"retrogrades"`
}

// OracleConfig selects and configures the ephemeris source
type OracleConfig struct {
	Kind           string        `mapstructure:"kind"` // kepler or remote
	URL            string        `mapstructure:"url"`
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
	HTTP2          bool          `mapstructure:"http2"`
}

// CacheConfig holds the oracle sample cache configuration
type CacheConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	DBPath     string `mapstructure:"db_path"`
	MaxSamples int    `mapstructure:"max_samples"`
}

// OutputConfig holds feed output configuration
type OutputConfig struct {
	Path     string `mapstructure:"path"` // empty = stdout
	Format   string `mapstructure:"format"`
	Envelope bool   `mapstructure:"envelope"`
}

// MetricsConfig holds run metrics export configuration
type MetricsConfig struct {
	Textfile string `mapstructure:"textfile"`
}

// TelegramConfig holds Telegram notification configuration
type TelegramConfig struct {
	BotToken       string        `mapstructure:"bot_token"`
	ChatID         string        `mapstructure:"chat_id"`
	Enabled        bool          `mapstructure:"enabled"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables.
// An empty path loads defaults and environment only.
func Load(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("SKYFEED")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	v.SetDefault("range.start", "")
	v.SetDefault("range.end", "")
	v.SetDefault("range.days", 30)

	v.SetDefault("bodies", []string{"mercury", "venus", "mars", "jupiter", "saturn", "uranus", "neptune", "pluto", "sun"})
	v.SetDefault("categories", []string{"signs", "aspects", "stations", "moon_signs", "moon_aspects", "moon_phases", "lunar_days"})

	v.SetDefault("search.precision", "1m")
	v.SetDefault("search.refine_radius", "3h")
	v.SetDefault("search.grid_points", 1000)
	v.SetDefault("search.reject_threshold", 1.0)
	v.SetDefault("search.tight_threshold", 0.001)
	v.SetDefault("search.tight_radius", "3h")
	v.SetDefault("search.aspect_step", "4h")
	v.SetDefault("search.aspect_orb", 5.0)
	v.SetDefault("search.moon_aspect_orb", 2.0)
	v.SetDefault("search.aspects", []float64{0, 60, 90, 120, 180})
	v.SetDefault("search.dedup_window", "24h")
	v.SetDefault("search.phase_step", "3h")
	v.SetDefault("search.lunar_day_step", "1h")

	v.SetDefault("oracle.kind", "kepler")
	v.SetDefault("oracle.url", "")
	v.SetDefault("oracle.timeout", "30s")
	v.SetDefault("oracle.max_retries", 3)
	v.SetDefault("oracle.retry_delay_base", "1s")
	v.SetDefault("oracle.http2", true)

	v.SetDefault("cache.enabled", false)
	v.SetDefault("cache.db_path", "") // empty = temp dir
	v.SetDefault("cache.max_samples", 200000)

	v.SetDefault("output.path", "")
	v.SetDefault("output.format", feed.FormatJSON)
	v.SetDefault("output.envelope", false)

	v.SetDefault("workers", 1)
	v.SetDefault("metrics.textfile", "")

	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.max_retries", 3)
	v.SetDefault("telegram.retry_delay_base", "1s")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	if _, _, err := c.Period(time.Now()); err != nil {
		return err
	}
	if c.Range.Days < 1 {
		return fmt.Errorf("range.days must be at least 1")
	}
	if _, err := c.BodyList(); err != nil {
		return err
	}
	if _, err := c.CategoryList(); err != nil {
		return err
	}

	// Search
	if c.Search.Precision < time.Second {
		return fmt.Errorf("search.precision must be at least 1 second")
	}
	if c.Search.RefineRadius <= 0 || c.Search.TightRadius <= 0 {
		return fmt.Errorf("search.refine_radius and search.tight_radius must be positive")
	}
	if c.Search.GridPoints < 2 {
		return fmt.Errorf("search.grid_points must be at least 2")
	}
	if c.Search.RejectThreshold <= 0 {
		return fmt.Errorf("search.reject_threshold must be positive")
	}
	if c.Search.TightThreshold < 0 {
		return fmt.Errorf("search.tight_threshold must not be negative")
	}
	if c.Search.AspectStep <= 0 || c.Search.PhaseStep <= 0 || c.Search.LunarDayStep <= 0 {
		return fmt.Errorf("search scan steps must be positive")
	}
	if c.Search.AspectOrb <= 0 || c.Search.AspectOrb > 30 {
		return fmt.Errorf("search.aspect_orb must be in (0, 30]")
	}
	if c.Search.MoonAspectOrb <= 0 || c.Search.MoonAspectOrb > 30 {
		return fmt.Errorf("search.moon_aspect_orb must be in (0, 30]")
	}
	for _, angle := range c.Search.Aspects {
		if angle < 0 || angle > 180 {
			return fmt.Errorf("search.aspects angle %g must be in [0, 180]", angle)
		}
	}
	if c.Search.DedupWindow < 0 {
		return fmt.Errorf("search.dedup_window must not be negative")
	}
	if _, err := c.ProfileTable(); err != nil {
		return err
	}

	// Oracle
	switch c.Oracle.Kind {
	case "kepler":
	case "remote":
		if c.Oracle.URL == "" {
			return fmt.Errorf("oracle.url is required when oracle.kind is remote")
		}
		if c.Oracle.MaxRetries < 1 {
			return fmt.Errorf("oracle.max_retries must be at least 1")
		}
	default:
		return fmt.Errorf("oracle.kind must be one of: kepler, remote")
	}

	if c.Cache.Enabled && c.Cache.MaxSamples < 1 {
		return fmt.Errorf("cache.max_samples must be at least 1")
	}

	if c.Output.Format != feed.FormatJSON && c.Output.Format != feed.FormatYAML {
		return fmt.Errorf("output.format must be one of: json, yaml")
	}

	if c.Workers < 1 || c.Workers > 64 {
		return fmt.Errorf("workers must be between 1 and 64")
	}

	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}

// Period resolves the configured range relative to now.
func (c *Config) Period(now time.Time) (time.Time, time.Time, error) {
	now = now.UTC()
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if c.Range.Start != "" {
		t, err := feed.ParseDateTime(c.Range.Start)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("range.start: %w", err)
		}
		start = t
	}

	end := start.AddDate(0, 0, c.Range.Days)
	if c.Range.End != "" {
		t, err := feed.ParseDateTime(c.Range.End)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("range.end: %w", err)
		}
		end = t
	}

	if !end.After(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("range.end must be after range.start")
	}
	return start, end, nil
}

// BodyList returns the configured bodies.
func (c *Config) BodyList() ([]models.Body, error) {
	known := make(map[models.Body]bool)
	for _, b := range models.Planets {
		known[b] = true
	}
	known[models.Moon] = true

	bodies := make([]models.Body, 0, len(c.Bodies))
	for _, name := range c.Bodies {
		b := models.Body(strings.ToLower(name))
		if !known[b] {
			return nil, fmt.Errorf("bodies: unknown body %q", name)
		}
		bodies = append(bodies, b)
	}
	return bodies, nil
}

// CategoryList returns the configured categories.
func (c *Config) CategoryList() ([]calendar.Category, error) {
	cats := make([]calendar.Category, 0, len(c.Categories))
	for _, name := range c.Categories {
		cat, err := calendar.ParseCategory(name)
		if err != nil {
			return nil, fmt.Errorf("categories: %w", err)
		}
		cats = append(cats, cat)
	}
	return cats, nil
}

// ProfileTable returns the built-in profiles with the configured overrides
// applied.
func (c *Config) ProfileTable() (models.Profiles, error) {
	table := models.DefaultProfiles()
	for name, o := range c.Profiles {
		b := models.Body(strings.ToLower(name))
		p := table.Lookup(b)
		if o.SignStep != 0 {
			p.SignStep = o.SignStep
		}
		if o.StationStep != 0 {
			p.StationStep = o.StationStep
		}
		if o.Stationary != 0 {
			p.Stationary = o.Stationary
		}
		if o.Exact != 0 {
			p.Exact = o.Exact
		}
		if o.Retrogrades != nil {
			p.Retrogrades = *o.Retrogrades
		}
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("profiles.%s: %w", name, err)
		}
		table[b] = p
	}
	return table, nil
}

// Engine returns the root-finding engine for the search settings.
func (c *Config) Engine() search.Engine {
	return search.Engine{
		Locator: search.Locator{
			Precision:      c.Search.Precision,
			TightThreshold: c.Search.TightThreshold,
			TightRadius:    c.Search.TightRadius,
		},
		Refiner:     search.Refiner{Radius: c.Search.RefineRadius, GridPoints: c.Search.GridPoints},
		RejectAbove: c.Search.RejectThreshold,
	}
}

// DetectSettings returns the detector settings for the search section.
func (c *Config) DetectSettings() detect.Settings {
	s := detect.DefaultSettings()
	s.AspectStep = c.Search.AspectStep
	s.AspectOrb = c.Search.AspectOrb
	s.MoonAspectOrb = c.Search.MoonAspectOrb
	if len(c.Search.Aspects) > 0 {
		s.Aspects = make([]models.AspectDef, len(c.Search.Aspects))
		for i, angle := range c.Search.Aspects {
			s.Aspects[i] = models.AspectDef{Angle: angle}
		}
	}
	s.PhaseStep = c.Search.PhaseStep
	s.LunarDayStep = c.Search.LunarDayStep
	s.Precision = c.Search.Precision
	return s
}
