package steps

import (
	"context"
	"encoding/xml"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	ferrors "git.home.luguber.info/inful/sitepublish/internal/foundation/errors"
	"git.home.luguber.info/inful/sitepublish/internal/site"
	"git.home.luguber.info/inful/sitepublish/internal/step"
)

// SitemapFile is the output path of the sitemap.
const SitemapFile = "sitemap.xml"

// SitemapOptions configures GenerateSiteMap.
type SitemapOptions struct {
	// Exclude lists site path globs left out of the sitemap.
	Exclude []string
}

type urlSet struct {
	XMLName xml.Name     `xml:"urlset"`
	NS      string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

type sitemapURL struct {
	Loc     string `xml:"loc"`
	LastMod string `xml:"lastmod,omitempty"`
}

type sitemapEntry struct {
	path string
	mod  time.Time
}

// GenerateSiteMap writes sitemap.xml listing the index, sections, items and
// pages of the site.
func GenerateSiteMap(opts SitemapOptions) step.Step {
	for _, pattern := range opts.Exclude {
		if !doublestar.ValidatePattern(pattern) {
			return step.Generation("Generate site map", func(context.Context, *site.Context) error {
				return ferrors.ValidationError("invalid sitemap exclude pattern").
					WithContext("pattern", pattern).
					Build()
			})
		}
	}
	return step.Generation("Generate site map", func(ctx context.Context, gc *site.Context) error {
		set := urlSet{NS: "http://www.sitemaps.org/schemas/sitemap/0.9"}
		for _, e := range sitemapEntries(gc) {
			if err := ctx.Err(); err != nil {
				return err
			}
			if excluded(e.path, opts.Exclude) {
				continue
			}
			loc, err := absoluteURL(gc.Site, e.path, true)
			if err != nil {
				return err
			}
			u := sitemapURL{Loc: loc}
			if !e.mod.IsZero() {
				u.LastMod = e.mod.UTC().Format("2006-01-02")
			}
			set.URLs = append(set.URLs, u)
		}
		data, err := encodeXML(set)
		if err != nil {
			return err
		}
		return gc.WriteOutputFile(SitemapFile, data)
	})
}

func sitemapEntries(gc *site.Context) []sitemapEntry {
	entries := []sitemapEntry{{path: "", mod: modified(gc.Index.Content)}}
	for _, s := range gc.Sections() {
		entries = append(entries, sitemapEntry{path: s.ID, mod: modified(s.Content)})
		for _, it := range s.Items {
			entries = append(entries, sitemapEntry{path: it.Path, mod: modified(it.Content)})
		}
	}
	for _, p := range gc.Pages() {
		entries = append(entries, sitemapEntry{path: p.Path, mod: modified(p.Content)})
	}
	return entries
}

func modified(c site.Content) time.Time {
	if !c.LastModified.IsZero() {
		return c.LastModified
	}
	return c.Date
}

func excluded(p string, patterns []string) bool {
	for _, pattern := range patterns {
		if ok, _ := doublestar.Match(pattern, p); ok {
			return true
		}
	}
	return false
}
