package steps

import (
	"context"
	"encoding/xml"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/sitepublish/internal/pipeline"
	"git.home.luguber.info/inful/sitepublish/internal/site"
)

func TestAbsoluteURL(t *testing.T) {
	s := site.Site{URL: "https://example.com/blog"}
	tests := []struct {
		rel  string
		dir  bool
		want string
	}{
		{"", true, "https://example.com/blog/"},
		{"posts/first", true, "https://example.com/blog/posts/first/"},
		{"/feed.rss", false, "https://example.com/blog/feed.rss"},
		{"https://cdn.example.com/a.mp3", false, "https://cdn.example.com/a.mp3"},
	}
	for _, tt := range tests {
		got, err := absoluteURL(s, tt.rel, tt.dir)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	_, err := absoluteURL(site.Site{URL: "example.com"}, "x", false)
	assert.Error(t, err)
}

func TestGenerateRSSFeed(t *testing.T) {
	gc := newContext(t)
	require.NoError(t, gc.AddItem(site.Item{Path: "posts/old", SectionID: "posts", Content: site.Content{Title: "Old", Date: day(1), Body: "<p>old</p>"}}))
	require.NoError(t, gc.AddItem(site.Item{Path: "posts/new", SectionID: "posts", Content: site.Content{Title: "New", Date: day(9)}}))
	require.NoError(t, gc.AddItem(site.Item{Path: "notes/mid", SectionID: "notes", Content: site.Content{Title: "Mid", Date: day(5)}}))

	require.NoError(t, run(context.Background(), GenerateRSSFeed(RSSOptions{MaxItems: 2, TTL: time.Hour}), gc))

	var feed rssFeed
	require.NoError(t, xml.Unmarshal([]byte(readOutput(t, gc, "feed.rss")), &feed))
	assert.Equal(t, "2.0", feed.Version)
	assert.Equal(t, "Example", feed.Channel.Title)
	assert.Equal(t, "https://example.com/", feed.Channel.Link)
	assert.Equal(t, 60, feed.Channel.TTL)
	require.Len(t, feed.Channel.Items, 2)
	assert.Equal(t, "New", feed.Channel.Items[0].Title)
	assert.Equal(t, "https://example.com/posts/new/", feed.Channel.Items[0].Link)
	assert.Equal(t, "Mid", feed.Channel.Items[1].Title)
	assert.Equal(t, day(9).Format(time.RFC1123Z), feed.Channel.LastBuildDate)
}

func TestGenerateRSSFeedSections(t *testing.T) {
	gc := newContext(t)
	require.NoError(t, gc.AddItem(site.Item{Path: "posts/a", SectionID: "posts", Content: site.Content{Title: "A", Body: "<p>a & b</p>"}}))
	require.NoError(t, gc.AddItem(site.Item{Path: "notes/b", SectionID: "notes", Content: site.Content{Title: "B"}}))

	require.NoError(t, run(context.Background(), GenerateRSSFeed(RSSOptions{Path: "posts.rss", Sections: []string{"posts"}}), gc))

	raw := readOutput(t, gc, "posts.rss")
	assert.Contains(t, raw, "<![CDATA[<p>a & b</p>]]>")
	var feed rssFeed
	require.NoError(t, xml.Unmarshal([]byte(raw), &feed))
	require.Len(t, feed.Channel.Items, 1)
	assert.Equal(t, "A", feed.Channel.Items[0].Title)
}

func TestGeneratePodcastFeed(t *testing.T) {
	gc := newContext(t)
	require.NoError(t, gc.AddSection("podcast", site.Content{Title: "The Show", Description: "Talk"}))
	require.NoError(t, gc.AddItem(site.Item{
		Path:      "podcast/ep1",
		SectionID: "podcast",
		Content:   site.Content{Title: "Episode 1", Date: day(3)},
		Audio:     &site.Audio{URL: "audio/ep1.mp3", ByteSize: 99, Type: "audio/mpeg", Duration: 42*time.Minute + 10*time.Second},
	}))

	opts := PodcastOptions{Section: "podcast", Author: "Host", OwnerEmail: "host@example.com", Category: "Technology"}
	require.NoError(t, run(context.Background(), GeneratePodcastFeed(opts), gc))

	raw := readOutput(t, gc, "podcast.rss")
	assert.Contains(t, raw, `xmlns:itunes="`+itunesNS+`"`)
	assert.Contains(t, raw, `<enclosure url="https://example.com/audio/ep1.mp3" length="99" type="audio/mpeg">`)
	assert.Contains(t, raw, "<itunes:duration>00:42:10</itunes:duration>")
	assert.Contains(t, raw, `<itunes:category text="Technology">`)
	assert.Contains(t, raw, "<itunes:explicit>false</itunes:explicit>")
	assert.Contains(t, raw, "<title>The Show</title>")
}

func TestGeneratePodcastFeedMissingAudio(t *testing.T) {
	gc := newContext(t)
	require.NoError(t, gc.AddItem(site.Item{Path: "podcast/ep1", SectionID: "podcast"}))

	err := run(context.Background(), GeneratePodcastFeed(PodcastOptions{Section: "podcast"}), gc)
	require.Error(t, err)

	var missing *MissingAudioError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "podcast/ep1", missing.Path)

	var convertible pipeline.Convertible
	require.True(t, errors.As(err, &convertible))
	perr := convertible.PublishingError("Generate podcast feed")
	assert.Equal(t, pipeline.KindStepFailure, perr.Kind)
	assert.Equal(t, "podcast/ep1", perr.Path)
	assert.Equal(t, "Generate podcast feed", perr.Step)
}

func TestGeneratePodcastFeedUnknownSection(t *testing.T) {
	gc := newContext(t)
	assert.Error(t, run(context.Background(), GeneratePodcastFeed(PodcastOptions{Section: "nope"}), gc))
}

func TestGenerateSiteMap(t *testing.T) {
	gc := newContext(t)
	require.NoError(t, gc.AddSection("posts", site.Content{Title: "Posts", LastModified: day(4)}))
	require.NoError(t, gc.AddItem(site.Item{Path: "posts/a", SectionID: "posts", Content: site.Content{Date: day(2)}}))
	require.NoError(t, gc.AddItem(site.Item{Path: "drafts/b", SectionID: "drafts"}))
	require.NoError(t, gc.AddPage(site.Page{Path: "about"}))

	require.NoError(t, run(context.Background(), GenerateSiteMap(SitemapOptions{Exclude: []string{"drafts", "drafts/**"}}), gc))

	var set urlSet
	require.NoError(t, xml.Unmarshal([]byte(readOutput(t, gc, SitemapFile)), &set))
	var locs []string
	for _, u := range set.URLs {
		locs = append(locs, u.Loc)
	}
	assert.Equal(t, []string{
		"https://example.com/",
		"https://example.com/posts/",
		"https://example.com/posts/a/",
		"https://example.com/about/",
	}, locs)
	assert.Equal(t, "2024-01-04", set.URLs[1].LastMod)
	assert.Equal(t, "2024-01-02", set.URLs[2].LastMod)
}

func TestGenerateSiteMapInvalidPattern(t *testing.T) {
	gc := newContext(t)
	assert.Error(t, run(context.Background(), GenerateSiteMap(SitemapOptions{Exclude: []string{"[unclosed"}}), gc))
}

func TestClock(t *testing.T) {
	assert.Equal(t, "", clock(0))
	assert.Equal(t, "00:00:59", clock(59*time.Second))
	assert.Equal(t, "01:01:01", clock(time.Hour+time.Minute+time.Second))
}
