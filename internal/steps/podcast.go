package steps

import (
	"context"
	"encoding/xml"
	"fmt"
	"strconv"
	"time"

	ferrors "git.home.luguber.info/inful/sitepublish/internal/foundation/errors"
	"git.home.luguber.info/inful/sitepublish/internal/pipeline"
	"git.home.luguber.info/inful/sitepublish/internal/scope"
	"git.home.luguber.info/inful/sitepublish/internal/site"
	"git.home.luguber.info/inful/sitepublish/internal/step"
)

const itunesNS = "http://www.itunes.com/dtds/podcast-1.0.dtd"

// PodcastOptions configures GeneratePodcastFeed.
type PodcastOptions struct {
	Section    string // section holding the episodes
	Path       string // output path, "podcast.rss"
	Author     string
	OwnerName  string
	OwnerEmail string
	Category   string
	Explicit   bool
	Image      string // site relative, defaults to the site image
}

// MissingAudioError reports an episode without audio metadata.
type MissingAudioError struct {
	Path string
}

func (e *MissingAudioError) Error() string {
	return fmt.Sprintf("podcast item %q has no audio", e.Path)
}

// PublishingError attributes the missing audio to the item path.
func (e *MissingAudioError) PublishingError(step string) *pipeline.Error {
	return &pipeline.Error{
		Kind:    pipeline.KindStepFailure,
		Step:    step,
		Path:    e.Path,
		Message: "podcast item has no audio metadata",
		Err:     e,
	}
}

type podcastFeed struct {
	XMLName xml.Name       `xml:"rss"`
	Version string         `xml:"version,attr"`
	Itunes  string         `xml:"xmlns:itunes,attr"`
	Atom    string         `xml:"xmlns:atom,attr"`
	Channel podcastChannel `xml:"channel"`
}

type itunesImage struct {
	Href string `xml:"href,attr"`
}

type itunesOwner struct {
	Name  string `xml:"itunes:name"`
	Email string `xml:"itunes:email"`
}

type itunesCategory struct {
	Text string `xml:"text,attr"`
}

type podcastChannel struct {
	Title       string          `xml:"title"`
	Link        string          `xml:"link"`
	Description string          `xml:"description"`
	Language    string          `xml:"language,omitempty"`
	AtomLink    atomLink        `xml:"atom:link"`
	Author      string          `xml:"itunes:author,omitempty"`
	Summary     string          `xml:"itunes:summary,omitempty"`
	Owner       *itunesOwner    `xml:"itunes:owner,omitempty"`
	Image       *itunesImage    `xml:"itunes:image,omitempty"`
	Category    *itunesCategory `xml:"itunes:category,omitempty"`
	Explicit    string          `xml:"itunes:explicit"`
	Items       []podcastItem   `xml:"item"`
}

type enclosure struct {
	URL    string `xml:"url,attr"`
	Length int64  `xml:"length,attr"`
	Type   string `xml:"type,attr"`
}

type podcastItem struct {
	Title       string       `xml:"title"`
	Link        string       `xml:"link"`
	GUID        guid         `xml:"guid"`
	PubDate     string       `xml:"pubDate,omitempty"`
	Description cdata        `xml:"description"`
	Enclosure   enclosure    `xml:"enclosure"`
	Duration    string       `xml:"itunes:duration,omitempty"`
	Image       *itunesImage `xml:"itunes:image,omitempty"`
}

// GeneratePodcastFeed writes an iTunes compatible feed of the items of one
// section. Every item must carry audio metadata.
func GeneratePodcastFeed(opts PodcastOptions) step.Step {
	if opts.Path == "" {
		opts.Path = "podcast.rss"
	}
	return step.Generation("Generate podcast feed", func(ctx context.Context, gc *site.Context) error {
		return scope.InDomain(ctx, scope.DomainPodcast, func(ctx context.Context) error {
			data, err := buildPodcast(ctx, gc, opts)
			if err != nil {
				return err
			}
			return gc.WriteOutputFile(opts.Path, data)
		})
	})
}

func buildPodcast(ctx context.Context, gc *site.Context, opts PodcastOptions) ([]byte, error) {
	section, ok := gc.Section(opts.Section)
	if !ok {
		return nil, ferrors.NotFoundError("podcast section not found").
			WithContext("section", opts.Section).
			Build()
	}
	link, err := absoluteURL(gc.Site, section.ID, true)
	if err != nil {
		return nil, err
	}
	self, err := absoluteURL(gc.Site, opts.Path, false)
	if err != nil {
		return nil, err
	}

	title := section.Content.Title
	if title == "" {
		title = gc.Site.Name
	}
	description := section.Content.Description
	if description == "" {
		description = gc.Site.Description
	}
	ch := podcastChannel{
		Title:       title,
		Link:        link,
		Description: description,
		Language:    gc.Site.Language,
		AtomLink:    atomLink{Href: self, Rel: "self", Type: "application/rss+xml"},
		Author:      opts.Author,
		Summary:     description,
		Explicit:    strconv.FormatBool(opts.Explicit),
	}
	if opts.OwnerName != "" || opts.OwnerEmail != "" {
		ch.Owner = &itunesOwner{Name: opts.OwnerName, Email: opts.OwnerEmail}
	}
	if opts.Category != "" {
		ch.Category = &itunesCategory{Text: opts.Category}
	}
	image := opts.Image
	if image == "" {
		image = gc.Site.ImagePath
	}
	if image != "" {
		href, err := absoluteURL(gc.Site, image, false)
		if err != nil {
			return nil, err
		}
		ch.Image = &itunesImage{Href: href}
	}

	for _, it := range feedItems(gc, []string{section.ID}) {
		err := scope.Run(ctx, scope.Item{Path: it.Path, Section: it.SectionID}, func(ctx context.Context) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			item, err := podcastEntry(gc.Site, it)
			if err != nil {
				return err
			}
			ch.Items = append(ch.Items, item)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	return encodeXML(podcastFeed{Version: "2.0", Itunes: itunesNS, Atom: atomNS, Channel: ch})
}

func podcastEntry(s site.Site, it site.Item) (podcastItem, error) {
	if it.Audio == nil || it.Audio.URL == "" {
		return podcastItem{}, &MissingAudioError{Path: it.Path}
	}
	link, err := absoluteURL(s, it.Path, true)
	if err != nil {
		return podcastItem{}, err
	}
	audioURL, err := absoluteURL(s, it.Audio.URL, false)
	if err != nil {
		return podcastItem{}, err
	}

	entry := podcastItem{
		Title:       it.Content.Title,
		Link:        link,
		GUID:        guid{IsPermaLink: true, Value: link},
		PubDate:     rfc1123(itemDate(it)),
		Description: cdata{Text: it.Content.Body},
		Enclosure:   enclosure{URL: audioURL, Length: it.Audio.ByteSize, Type: it.Audio.Type},
		Duration:    clock(it.Audio.Duration),
	}
	if it.Content.ImagePath != "" {
		href, err := absoluteURL(s, it.Content.ImagePath, false)
		if err != nil {
			return podcastItem{}, err
		}
		entry.Image = &itunesImage{Href: href}
	}
	return entry, nil
}

// clock formats d as HH:MM:SS.
func clock(d time.Duration) string {
	if d <= 0 {
		return ""
	}
	s := int64(d / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", s/3600, s/60%60, s%60)
}
