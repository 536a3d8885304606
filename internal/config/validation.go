package config

import (
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-co-op/gocron/v2"

	ferrors "git.home.luguber.info/inful/sitepublish/internal/foundation/errors"
)

// Validate checks a defaulted configuration.
func Validate(cfg *Config) error {
	checks := []func(*Config) error{
		validateSite,
		validateContent,
		validateFeeds,
		validateDeploy,
		validateNotify,
		validateWatch,
	}
	for _, check := range checks {
		if err := check(cfg); err != nil {
			return err
		}
	}
	return nil
}

func invalid(field, message string) error {
	return ferrors.ValidationError(message).WithContext("field", field).Build()
}

func validateSite(cfg *Config) error {
	if strings.TrimSpace(cfg.Site.Name) == "" {
		return invalid("site.name", "site name is required")
	}
	if cfg.Site.URL != "" {
		u, err := url.Parse(cfg.Site.URL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return invalid("site.url", "site url must be absolute")
		}
	}
	if cfg.Site.TimeZone != "" {
		if _, err := time.LoadLocation(cfg.Site.TimeZone); err != nil {
			return invalid("site.time_zone", "unknown time zone")
		}
	}
	return nil
}

func validateContent(cfg *Config) error {
	for field, dir := range map[string]string{"content.dir": cfg.Content.Dir, "content.resources_dir": cfg.Content.ResourcesDir} {
		if filepath.IsAbs(dir) || strings.HasPrefix(filepath.Clean(dir), "..") {
			return invalid(field, "directory must be relative to the site root")
		}
	}
	if !sortOrders.Valid(cfg.Content.SortItems) {
		return invalid("content.sort_items", "sort_items must be one of "+strings.Join(sortOrders.Keys(), ", "))
	}
	return nil
}

func validateFeeds(cfg *Config) error {
	needURL := cfg.Feeds.RSS.Enabled || cfg.Feeds.Podcast.Enabled || cfg.Sitemap.Enabled
	if needURL && cfg.Site.URL == "" {
		return invalid("site.url", "site url is required to generate feeds and sitemaps")
	}
	if p := cfg.Feeds.Podcast; p.Enabled {
		if p.Section == "" {
			return invalid("feeds.podcast.section", "podcast feed needs a section")
		}
		if p.Author == "" || p.OwnerEmail == "" {
			return invalid("feeds.podcast", "podcast feed needs an author and owner email")
		}
	}
	return nil
}

func validateDeploy(cfg *Config) error {
	g := cfg.Deploy.Git
	if g == nil {
		return nil
	}
	if g.Remote == "" {
		return invalid("deploy.git.remote", "git deployment needs a remote")
	}
	return validateRetry("deploy.git.retry", g.Retry)
}

func validateNotify(cfg *Config) error {
	n := cfg.Notify.NATS
	if n == nil {
		return nil
	}
	if !strings.HasPrefix(n.URL, "nats://") && !strings.HasPrefix(n.URL, "tls://") {
		return invalid("notify.nats.url", "nats url must use nats:// or tls://")
	}
	return validateRetry("notify.nats.retry", n.Retry)
}

func validateRetry(field string, r RetryConfig) error {
	if r.Mode != "" && !retryModes.Valid(r.Mode) {
		return invalid(field+".mode", "retry mode must be one of "+strings.Join(retryModes.Keys(), ", "))
	}
	if r.MaxRetries < 0 {
		return invalid(field+".max_retries", "max_retries cannot be negative")
	}
	return nil
}

func validateWatch(cfg *Config) error {
	if cfg.Watch.Schedule == "" {
		return nil
	}
	// gocron validates the expression when a job is created.
	s, err := gocron.NewScheduler()
	if err != nil {
		return ferrors.InternalError("failed to create scheduler").WithCause(err).Build()
	}
	defer func() { _ = s.Shutdown() }()
	if _, err := s.NewJob(gocron.CronJob(cfg.Watch.Schedule, false), gocron.NewTask(func() {})); err != nil {
		return ferrors.ValidationError("invalid watch schedule").
			WithCause(err).
			WithContext("field", "watch.schedule").
			Build()
	}
	return nil
}
