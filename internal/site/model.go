package site

import (
	"maps"
	"slices"
	"time"
)

// Site describes the website being published.
type Site struct {
	Name        string
	Description string
	URL         string
	Language    string
	ImagePath   string
}

// Metadata holds free-form frontmatter fields of a content item.
type Metadata map[string]any

// Content is the shared shape of everything that renders to a page.
type Content struct {
	Title        string
	Description  string
	Body         string // rendered HTML
	Date         time.Time
	LastModified time.Time
	ImagePath    string
}

// Audio describes the media file attached to a podcast episode.
type Audio struct {
	URL      string
	ByteSize int64
	Type     string
	Duration time.Duration
}

// Item is a piece of content belonging to a section, like a post or episode.
type Item struct {
	Path        string // site relative, "posts/first-post"
	SectionID   string
	Tags        []string
	Content     Content
	Metadata    Metadata
	Audio       *Audio
	Fingerprint string
}

func (i Item) clone() Item {
	i.Tags = slices.Clone(i.Tags)
	i.Metadata = maps.Clone(i.Metadata)
	if i.Audio != nil {
		a := *i.Audio
		i.Audio = &a
	}
	return i
}

// Section groups items under a common path, e.g. "posts".
type Section struct {
	ID      string
	Content Content
	Items   []Item
}

// Path returns the site relative path of the section.
func (s Section) Path() string { return s.ID }

func (s Section) clone() Section {
	items := make([]Item, len(s.Items))
	for i, it := range s.Items {
		items[i] = it.clone()
	}
	s.Items = items
	return s
}

// Page is standalone content that belongs to no section, like "about".
type Page struct {
	Path    string
	Content Content
}

// Index is the content of the site's front page.
type Index struct {
	Content Content
}

// Published is the summary a successful run returns.
type Published struct {
	Index    Index
	Sections map[string]Section
	Pages    map[string]Page
}
