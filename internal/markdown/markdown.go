// Package markdown turns markdown source files into rendered content.
package markdown

import (
	"bytes"
	"fmt"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"

	"git.home.luguber.info/inful/sitepublish/internal/frontmatter"
)

// Options controls how markdown is rendered.
type Options struct {
	// Unsafe allows raw HTML in the source to pass through.
	Unsafe bool
	// Location is used for frontmatter dates that carry no zone.
	Location *time.Location
	// ExcerptLength caps the description derived from the first paragraph.
	ExcerptLength int
}

const defaultExcerptLength = 200

// Document is a rendered markdown source file.
type Document struct {
	Fields      map[string]any
	Title       string
	Description string
	HTML        string
	Date        time.Time
	Tags        []string
	Image       string
	Fingerprint string
}

// Parser renders markdown with a fixed set of extensions. It is safe for
// concurrent use.
type Parser struct {
	md   goldmark.Markdown
	opts Options
}

// NewParser returns a Parser for opts.
func NewParser(opts Options) *Parser {
	if opts.ExcerptLength <= 0 {
		opts.ExcerptLength = defaultExcerptLength
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	rendererOpts := []goldmark.Option{
		goldmark.WithExtensions(extension.GFM, extension.Footnote, extension.Typographer),
		goldmark.WithParserOptions(parser.WithAutoHeadingID()),
	}
	if opts.Unsafe {
		rendererOpts = append(rendererOpts, goldmark.WithRendererOptions(html.WithUnsafe()))
	}
	return &Parser{md: goldmark.New(rendererOpts...), opts: opts}
}

// Parse renders source. Title, description and image come from frontmatter
// when present, otherwise from the first heading, paragraph and image of the
// rendered body.
func (p *Parser) Parse(source []byte) (Document, error) {
	fm, err := frontmatter.Parse(source)
	if err != nil {
		return Document{}, err
	}

	var buf bytes.Buffer
	if err := p.md.Convert(fm.Body, &buf); err != nil {
		return Document{}, fmt.Errorf("render markdown: %w", err)
	}

	doc := Document{Fields: fm.Fields, HTML: buf.String()}
	summary, err := summarize(buf.Bytes(), p.opts.ExcerptLength)
	if err != nil {
		return Document{}, err
	}

	doc.Title = summary.Heading
	if s, ok := frontmatter.String(fm.Fields, "title"); ok && s != "" {
		doc.Title = s
	}
	doc.Description = summary.Excerpt
	if s, ok := frontmatter.String(fm.Fields, "description"); ok && s != "" {
		doc.Description = s
	}
	doc.Image = summary.Image
	if s, ok := frontmatter.String(fm.Fields, "image"); ok && s != "" {
		doc.Image = s
	}
	doc.Tags = frontmatter.Strings(fm.Fields, "tags")

	date, ok, err := frontmatter.Time(fm.Fields, "date", p.opts.Location)
	if err != nil {
		return Document{}, err
	}
	if ok {
		doc.Date = date
	}

	doc.Fingerprint, err = frontmatter.Fingerprint(fm.Fields, fm.Body)
	if err != nil {
		return Document{}, fmt.Errorf("fingerprint: %w", err)
	}
	return doc, nil
}
