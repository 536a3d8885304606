package steps

import (
	"context"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/sitepublish/internal/foundation/errors"
	"git.home.luguber.info/inful/sitepublish/internal/markdown"
	"git.home.luguber.info/inful/sitepublish/internal/site"
	"git.home.luguber.info/inful/sitepublish/internal/step"
	"git.home.luguber.info/inful/sitepublish/internal/theme"
)

func TestGenerateHTML(t *testing.T) {
	gc := newContext(t)
	writeContent(t, gc.Folders.Root)

	tree := step.Group(
		AddMarkdownFiles(markdown.NewParser(markdown.Options{}), "Content"),
		GenerateHTML(theme.Default()),
	)
	require.NoError(t, run(context.Background(), tree, gc))

	index := readOutput(t, gc, "index.html")
	assert.Contains(t, index, "Welcome")
	assert.Contains(t, index, "First post")

	assert.Contains(t, readOutput(t, gc, "posts/index.html"), "Posts")
	first := readOutput(t, gc, "posts/first/index.html")
	assert.Contains(t, first, "First post")
	assert.Contains(t, first, "<p>Hello.</p>")
	assert.Contains(t, readOutput(t, gc, "about-us/index.html"), "Who we are.")
	assert.NotEmpty(t, readOutput(t, gc, "styles.css"))
}

func TestGenerateHTMLRenderErrorNamesPage(t *testing.T) {
	fsys := fstest.MapFS{
		"index.html":   {Data: []byte(`ok`)},
		"section.html": {Data: []byte(`ok`)},
		"item.html":    {Data: []byte(`{{fail "broken item"}}`)},
		"page.html":    {Data: []byte(`ok`)},
	}
	th, err := theme.Load("broken", fsys)
	require.NoError(t, err)

	gc := newContext(t)
	require.NoError(t, gc.AddItem(site.Item{Path: "posts/a", SectionID: "posts"}))

	err = run(context.Background(), GenerateHTML(th), gc)
	require.Error(t, err)
	classified, ok := ferrors.AsClassified(err)
	require.True(t, ok)
	assert.Equal(t, ferrors.CategoryRender, classified.Category())
	path, _ := classified.Context().GetString("path")
	assert.Equal(t, "posts/a", path)
}
