package theme

import (
	"io/fs"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/sitepublish/internal/site"
)

var testSite = site.Site{Name: "Example", Description: "An example site", URL: "https://example.com"}

func TestDefaultThemeRendersEveryKind(t *testing.T) {
	th := Default()
	item := site.Item{
		Path:      "posts/hello",
		SectionID: "posts",
		Tags:      []string{"go"},
		Content:   site.Content{Title: "Hello", Date: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)},
		Audio:     &site.Audio{URL: "https://cdn.example.com/1.mp3"},
	}
	section := site.Section{ID: "posts", Items: []site.Item{item}}

	pages := []Page{
		{Kind: KindIndex, Content: site.Content{Title: "Welcome"}, Items: section.Items, Sections: []site.Section{section}},
		{Kind: KindSection, Path: "posts", Section: &section, Items: section.Items},
		{Kind: KindItem, Path: item.Path, Content: item.Content, Item: &item, Body: "<p>body</p>"},
		{Kind: KindPage, Path: "about", Content: site.Content{Title: "About"}, Body: "<p>about</p>"},
	}
	for _, p := range pages {
		t.Run(p.Kind, func(t *testing.T) {
			p.Site = testSite
			p.Generated = time.Now()
			out, err := th.Render(p)
			require.NoError(t, err)
			assert.Contains(t, string(out), "<title>")
			assert.Contains(t, string(out), "Example")
		})
	}

	out, err := th.Render(Page{Site: testSite, Kind: KindItem, Path: item.Path, Content: item.Content, Item: &item, Body: "<p>body</p>"})
	require.NoError(t, err)
	html := string(out)
	assert.Contains(t, html, "<p>body</p>")
	assert.Contains(t, html, `href="../../styles.css"`)
	assert.Contains(t, html, "January 2, 2024")
	assert.Contains(t, html, `<audio controls src="https://cdn.example.com/1.mp3">`)

	require.NotNil(t, th.Resources())
	_, err = fs.Stat(th.Resources(), "styles.css")
	require.NoError(t, err)
}

func TestLoadCustomTheme(t *testing.T) {
	fsys := fstest.MapFS{
		"index.html":          {Data: []byte(`{{.Site.Name | upper}}`)},
		"pages/section.html":  {Data: []byte(`S {{.Path}}`)},
		"pages/item.html":     {Data: []byte(`I {{.Content.Title}}`)},
		"pages/page.html":     {Data: []byte(`P`)},
		"resources/site.css":  {Data: []byte(`body{}`)},
		"resources/skip.html": {Data: []byte(`{{`)},
	}
	th, err := Load("custom", fsys)
	require.NoError(t, err)

	out, err := th.Render(Page{Site: testSite, Kind: KindIndex})
	require.NoError(t, err)
	assert.Equal(t, "EXAMPLE", string(out))

	_, err = fs.Stat(th.Resources(), "site.css")
	require.NoError(t, err)
}

func TestLoadRejectsIncompleteTheme(t *testing.T) {
	_, err := Load("broken", fstest.MapFS{"index.html": {Data: []byte(`x`)}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "section.html")

	_, err = Load("bad", fstest.MapFS{"index.html": {Data: []byte(`{{`)}})
	require.Error(t, err)
}

func TestRel(t *testing.T) {
	assert.Equal(t, "./styles.css", Rel("", "styles.css"))
	assert.Equal(t, "../styles.css", Rel("about", "/styles.css"))
	assert.Equal(t, "../../posts", Rel("posts/a", "posts"))
	assert.Equal(t, "./", Rel("", ""))
}

func TestOutputPath(t *testing.T) {
	assert.Equal(t, "index.html", OutputPath(""))
	assert.Equal(t, "posts/a/index.html", OutputPath("/posts/a/"))
}
