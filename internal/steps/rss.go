package steps

import (
	"context"
	"encoding/xml"
	"slices"
	"time"

	"git.home.luguber.info/inful/sitepublish/internal/scope"
	"git.home.luguber.info/inful/sitepublish/internal/site"
	"git.home.luguber.info/inful/sitepublish/internal/step"
)

// RSSOptions configures GenerateRSSFeed.
type RSSOptions struct {
	Path     string   // output path, "feed.rss"
	Sections []string // sections to include, all when empty
	MaxItems int      // 0 means no limit
	TTL      time.Duration
}

type rssFeed struct {
	XMLName xml.Name   `xml:"rss"`
	Version string     `xml:"version,attr"`
	Atom    string     `xml:"xmlns:atom,attr"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title         string    `xml:"title"`
	Link          string    `xml:"link"`
	Description   string    `xml:"description"`
	Language      string    `xml:"language,omitempty"`
	LastBuildDate string    `xml:"lastBuildDate,omitempty"`
	TTL           int       `xml:"ttl,omitempty"`
	AtomLink      atomLink  `xml:"atom:link"`
	Items         []rssItem `xml:"item"`
}

type rssItem struct {
	Title       string   `xml:"title"`
	Link        string   `xml:"link"`
	GUID        guid     `xml:"guid"`
	PubDate     string   `xml:"pubDate,omitempty"`
	Description cdata    `xml:"description"`
	Categories  []string `xml:"category,omitempty"`
}

// GenerateRSSFeed writes an RSS 2.0 feed of the newest items.
func GenerateRSSFeed(opts RSSOptions) step.Step {
	if opts.Path == "" {
		opts.Path = "feed.rss"
	}
	return step.Generation("Generate RSS feed", func(ctx context.Context, gc *site.Context) error {
		return scope.InDomain(ctx, scope.DomainFeed, func(ctx context.Context) error {
			data, err := buildRSS(ctx, gc, opts)
			if err != nil {
				return err
			}
			return gc.WriteOutputFile(opts.Path, data)
		})
	})
}

func buildRSS(ctx context.Context, gc *site.Context, opts RSSOptions) ([]byte, error) {
	home, err := absoluteURL(gc.Site, "", true)
	if err != nil {
		return nil, err
	}
	self, err := absoluteURL(gc.Site, opts.Path, false)
	if err != nil {
		return nil, err
	}

	items := feedItems(gc, opts.Sections)
	if opts.MaxItems > 0 && len(items) > opts.MaxItems {
		items = items[:opts.MaxItems]
	}

	ch := rssChannel{
		Title:       gc.Site.Name,
		Link:        home,
		Description: gc.Site.Description,
		Language:    gc.Site.Language,
		TTL:         int(opts.TTL / time.Minute),
		AtomLink:    atomLink{Href: self, Rel: "self", Type: "application/rss+xml"},
	}
	var latest time.Time
	for _, it := range items {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		link, err := absoluteURL(gc.Site, it.Path, true)
		if err != nil {
			return nil, err
		}
		d := itemDate(it)
		if d.After(latest) {
			latest = d
		}
		ch.Items = append(ch.Items, rssItem{
			Title:       it.Content.Title,
			Link:        link,
			GUID:        guid{IsPermaLink: true, Value: link},
			PubDate:     rfc1123(d),
			Description: cdata{Text: it.Content.Body},
			Categories:  it.Tags,
		})
	}
	ch.LastBuildDate = rfc1123(latest)

	return encodeXML(rssFeed{Version: "2.0", Atom: atomNS, Channel: ch})
}

// feedItems returns the items of sections, or of all sections, newest first.
func feedItems(gc *site.Context, sections []string) []site.Item {
	var items []site.Item
	if len(sections) == 0 {
		items = gc.AllItems()
	} else {
		for _, id := range sections {
			if s, ok := gc.Section(id); ok {
				items = append(items, s.Items...)
			}
		}
	}
	slices.SortStableFunc(items, func(a, b site.Item) int {
		if c := itemDate(b).Compare(itemDate(a)); c != 0 {
			return c
		}
		return ByDateDescending(a, b)
	})
	return items
}
