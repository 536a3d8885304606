package steps

import (
	"os"
	"path/filepath"

	"git.home.luguber.info/inful/sitepublish/internal/config"
	ferrors "git.home.luguber.info/inful/sitepublish/internal/foundation/errors"
	"git.home.luguber.info/inful/sitepublish/internal/markdown"
	"git.home.luguber.info/inful/sitepublish/internal/site"
	"git.home.luguber.info/inful/sitepublish/internal/step"
	"git.home.luguber.info/inful/sitepublish/internal/theme"
)

// SiteFromConfig returns the site described by cfg.
func SiteFromConfig(cfg *config.Config) site.Site {
	return site.Site{
		Name:        cfg.Site.Name,
		Description: cfg.Site.Description,
		URL:         cfg.Site.URL,
		Language:    cfg.Site.Language,
		ImagePath:   cfg.Site.Image,
	}
}

// Default assembles the standard step tree for cfg:
//
//	add markdown, drop drafts, sort, copy resources, HTML, feeds, sitemap,
//	then deployment when a target is configured.
func Default(cfg *config.Config) ([]step.Step, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	th, err := loadTheme(cfg)
	if err != nil {
		return nil, err
	}
	parser := markdown.NewParser(markdown.Options{
		Unsafe:        cfg.Content.UnsafeHTML,
		Location:      loc,
		ExcerptLength: cfg.Content.ExcerptLength,
	})

	order := ByDateDescending
	if cfg.Content.SortItems == "title" {
		order = ByTitle
	}

	rss := cfg.Feeds.RSS
	podcast := cfg.Feeds.Podcast
	generation := step.Group(
		AddMarkdownFiles(parser, cfg.Content.Dir),
		RemoveAllItems(Draft),
		step.If(cfg.Content.SortItems != "none", SortItems("", order)),
		CopyResources(cfg.Content.ResourcesDir, cfg.Content.Resources...),
		GenerateHTML(th),
		step.If(rss.Enabled, GenerateRSSFeed(RSSOptions{
			Path:     rss.Path,
			Sections: rss.Sections,
			MaxItems: rss.MaxItems,
			TTL:      rss.TTL,
		})),
		step.If(podcast.Enabled, GeneratePodcastFeed(PodcastOptions{
			Section:    podcast.Section,
			Path:       podcast.Path,
			Author:     podcast.Author,
			OwnerName:  podcast.OwnerName,
			OwnerEmail: podcast.OwnerEmail,
			Category:   podcast.Category,
			Explicit:   podcast.Explicit,
			Image:      podcast.Image,
		})),
		step.If(cfg.Sitemap.Enabled, GenerateSiteMap(SitemapOptions{Exclude: cfg.Sitemap.Exclude})),
	)

	tree := []step.Step{generation}
	if g := cfg.Deploy.Git; g != nil {
		tree = append(tree, DeployToGit(GitDeployOptions{
			Remote:      g.Remote,
			Branch:      g.Branch,
			AuthorName:  g.AuthorName,
			AuthorEmail: g.AuthorEmail,
			Message:     g.Message,
			Token:       g.Token,
			Retry:       g.Retry.Policy(),
		}))
	}
	return tree, nil
}

// loadTheme returns the configured theme directory, resolved against the
// configuration file, or the built-in theme.
func loadTheme(cfg *config.Config) (*theme.Theme, error) {
	if cfg.Content.Theme == "" {
		return theme.Default(), nil
	}
	dir := cfg.Content.Theme
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(filepath.Dir(cfg.Path), dir)
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return nil, ferrors.NotFoundError("theme folder not found").
			WithContext("path", dir).
			Build()
	}
	th, err := theme.Load(filepath.Base(dir), os.DirFS(dir))
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "failed to load theme").
			WithContext("path", dir).
			Build()
	}
	return th, nil
}
