// Package config loads publish.yaml.
package config

import (
	"bytes"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	ferrors "git.home.luguber.info/inful/sitepublish/internal/foundation/errors"
	"git.home.luguber.info/inful/sitepublish/internal/foundation/normalization"
	"git.home.luguber.info/inful/sitepublish/internal/retry"
)

// FileName is the configuration file looked up in the site root.
const FileName = "publish.yaml"

// Config represents the site configuration.
type Config struct {
	Site    SiteConfig    `yaml:"site"`
	Content ContentConfig `yaml:"content"`
	Feeds   FeedsConfig   `yaml:"feeds"`
	Sitemap SitemapConfig `yaml:"sitemap"`
	Deploy  DeployConfig  `yaml:"deploy"`
	Notify  NotifyConfig  `yaml:"notify"`
	Metrics MetricsConfig `yaml:"metrics"`
	History HistoryConfig `yaml:"history"`
	Watch   WatchConfig   `yaml:"watch"`

	// Path is the file the configuration was read from.
	Path string `yaml:"-"`
}

// SiteConfig describes the website.
type SiteConfig struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
	URL         string `yaml:"url"`
	Language    string `yaml:"language,omitempty"`
	Image       string `yaml:"image,omitempty"`
	// TimeZone is used for content dates without an explicit zone.
	TimeZone string `yaml:"time_zone,omitempty"`
}

// ContentConfig controls where content is read from and how it renders.
type ContentConfig struct {
	Dir           string   `yaml:"dir"`
	ResourcesDir  string   `yaml:"resources_dir"`
	Resources     []string `yaml:"resources,omitempty"` // glob patterns below ResourcesDir
	Theme         string   `yaml:"theme,omitempty"`     // theme directory; built-in theme when empty
	UnsafeHTML    bool     `yaml:"unsafe_html"`
	ExcerptLength int      `yaml:"excerpt_length,omitempty"`
	// SortItems orders section items by "date" (newest first) or "title".
	SortItems string `yaml:"sort_items,omitempty"`
}

// FeedsConfig groups the feed generators.
type FeedsConfig struct {
	RSS     RSSConfig     `yaml:"rss"`
	Podcast PodcastConfig `yaml:"podcast"`
}

// RSSConfig controls the RSS feed.
type RSSConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Path     string        `yaml:"path"`
	Sections []string      `yaml:"sections,omitempty"` // all sections when empty
	MaxItems int           `yaml:"max_items"`
	TTL      time.Duration `yaml:"ttl,omitempty"`
}

// PodcastConfig controls the podcast feed of one section.
type PodcastConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Section    string `yaml:"section"`
	Path       string `yaml:"path"`
	Author     string `yaml:"author"`
	OwnerName  string `yaml:"owner_name"`
	OwnerEmail string `yaml:"owner_email"`
	Category   string `yaml:"category"`
	Explicit   bool   `yaml:"explicit"`
	Image      string `yaml:"image,omitempty"`
}

// SitemapConfig controls the sitemap.
type SitemapConfig struct {
	Enabled bool     `yaml:"enabled"`
	Exclude []string `yaml:"exclude,omitempty"` // site path globs
}

// DeployConfig groups deployment targets.
type DeployConfig struct {
	Git *GitDeployConfig `yaml:"git,omitempty"`
}

// GitDeployConfig pushes the output folder to a git remote.
type GitDeployConfig struct {
	Remote      string      `yaml:"remote"`
	Branch      string      `yaml:"branch"`
	AuthorName  string      `yaml:"author_name"`
	AuthorEmail string      `yaml:"author_email"`
	Message     string      `yaml:"message,omitempty"`
	Token       string      `yaml:"token,omitempty"` // usually ${GIT_TOKEN}
	Retry       RetryConfig `yaml:"retry"`
}

var sortOrders = normalization.NewEnum("sort order", map[string]string{
	"date":   "date",
	"newest": "date",
	"title":  "title",
	"none":   "none",
})

var retryModes = normalization.NewEnum("retry mode", map[string]retry.Mode{
	string(retry.ModeFixed):       retry.ModeFixed,
	string(retry.ModeLinear):      retry.ModeLinear,
	string(retry.ModeExponential): retry.ModeExponential,
	"backoff":                     retry.ModeExponential,
})

// RetryConfig mirrors retry.Policy.
type RetryConfig struct {
	Mode       string        `yaml:"mode,omitempty"`
	Initial    time.Duration `yaml:"initial,omitempty"`
	Max        time.Duration `yaml:"max,omitempty"`
	MaxRetries int           `yaml:"max_retries,omitempty"`
}

// Policy converts c into a retry policy.
func (c RetryConfig) Policy() retry.Policy {
	return retry.NewPolicy(retryModes.Lookup(c.Mode, ""), c.Initial, c.Max, c.MaxRetries)
}

// NotifyConfig groups notification targets.
type NotifyConfig struct {
	NATS *NATSConfig `yaml:"nats,omitempty"`
}

// NATSConfig publishes run notifications to NATS.
type NATSConfig struct {
	URL           string        `yaml:"url"`
	SubjectPrefix string        `yaml:"subject_prefix,omitempty"`
	JetStream     bool          `yaml:"jetstream"`
	Timeout       time.Duration `yaml:"timeout,omitempty"`
	Retry         RetryConfig   `yaml:"retry"`
}

// MetricsConfig controls the Prometheus endpoint of long running commands.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// HistoryConfig controls the run history database.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	File    string `yaml:"file"` // relative to the caches folder
	MaxRuns int    `yaml:"max_runs"`
}

// WatchConfig controls the watch command.
type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce,omitempty"`
	Schedule string        `yaml:"schedule,omitempty"` // cron expression
	Ignore   []string      `yaml:"ignore,omitempty"`   // path globs relative to the root
}

// Load reads the configuration at path. .env and .env.local next to the file
// are loaded first; variables already set in the environment win. ${VAR}
// references in the file are expanded.
func Load(path string) (*Config, error) {
	if err := loadEnvFiles(filepath.Dir(path)); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ferrors.NotFoundError("configuration file not found").
				WithContext("path", path).
				Build()
		}
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "failed to read configuration").
			WithContext("path", path).
			Build()
	}

	cfg, err := Parse([]byte(os.ExpandEnv(string(data))))
	if err != nil {
		return nil, err
	}
	cfg.Path = path
	return cfg, nil
}

// Parse decodes, defaults and validates a configuration document. Unknown
// keys are rejected.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "failed to parse configuration").
			Fatal().
			Build()
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadEnvFiles(dir string) error {
	for _, name := range []string{".env", ".env.local"} {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return ferrors.WrapError(err, ferrors.CategoryConfig, "failed to load env file").
				WithContext("path", p).
				Build()
		}
	}
	return nil
}

// Location returns the configured time zone, UTC when unset.
func (c *Config) Location() (*time.Location, error) {
	if c.Site.TimeZone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(c.Site.TimeZone)
}
