package config

import "time"

// Defaults.
const (
	DefaultContentDir    = "Content"
	DefaultResourcesDir  = "Resources"
	DefaultRSSPath       = "feed.rss"
	DefaultRSSMaxItems   = 100
	DefaultPodcastPath   = "podcast.rss"
	DefaultHistoryFile   = "history.db"
	DefaultHistoryRuns   = 100
	DefaultMetricsAddr   = ":9464"
	DefaultWatchDebounce = 500 * time.Millisecond
	DefaultGitBranch     = "main"
	DefaultGitMessage    = "Publish {{.Site}} ({{.Time}})"
)

// ApplyDefaults fills unset fields with their defaults.
func ApplyDefaults(cfg *Config) {
	if cfg.Site.Language == "" {
		cfg.Site.Language = "en"
	}
	if cfg.Content.Dir == "" {
		cfg.Content.Dir = DefaultContentDir
	}
	if cfg.Content.ResourcesDir == "" {
		cfg.Content.ResourcesDir = DefaultResourcesDir
	}
	if len(cfg.Content.Resources) == 0 {
		cfg.Content.Resources = []string{"**/*"}
	}
	if cfg.Content.SortItems == "" {
		cfg.Content.SortItems = "date"
	}
	cfg.Content.SortItems = sortOrders.Lookup(cfg.Content.SortItems, cfg.Content.SortItems)

	if cfg.Feeds.RSS.Path == "" {
		cfg.Feeds.RSS.Path = DefaultRSSPath
	}
	if cfg.Feeds.RSS.MaxItems <= 0 {
		cfg.Feeds.RSS.MaxItems = DefaultRSSMaxItems
	}
	if cfg.Feeds.Podcast.Path == "" {
		cfg.Feeds.Podcast.Path = DefaultPodcastPath
	}

	if g := cfg.Deploy.Git; g != nil {
		if g.Branch == "" {
			g.Branch = DefaultGitBranch
		}
		if g.Message == "" {
			g.Message = DefaultGitMessage
		}
		if g.AuthorName == "" {
			g.AuthorName = "sitepublish"
		}
	}

	if cfg.History.File == "" {
		cfg.History.File = DefaultHistoryFile
	}
	if cfg.History.MaxRuns <= 0 {
		cfg.History.MaxRuns = DefaultHistoryRuns
	}
	if cfg.Metrics.Addr == "" {
		cfg.Metrics.Addr = DefaultMetricsAddr
	}
	if cfg.Watch.Debounce <= 0 {
		cfg.Watch.Debounce = DefaultWatchDebounce
	}
}
