// Package theme renders site content into HTML documents.
package theme

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"path"
	"strings"
	"time"

	"github.com/Masterminds/sprig/v3"
	"github.com/bmatcuk/doublestar/v4"

	"git.home.luguber.info/inful/sitepublish/internal/site"
)

//go:embed default
var defaultFS embed.FS

// Page kinds, each rendered by the template of the same name plus ".html".
const (
	KindIndex   = "index"
	KindSection = "section"
	KindItem    = "item"
	KindPage    = "page"
)

var requiredTemplates = []string{KindIndex, KindSection, KindItem, KindPage}

// ResourcesDir is the theme directory whose files are copied verbatim into
// the output folder.
const ResourcesDir = "resources"

// Page is the data every template receives.
type Page struct {
	Site      site.Site
	Kind      string
	Path      string // site relative, "" for the index
	Content   site.Content
	Body      template.HTML
	Section   *site.Section
	Item      *site.Item
	Sections  []site.Section
	Items     []site.Item
	Generated time.Time
}

// Theme is a parsed set of page templates plus static resources.
type Theme struct {
	Name      string
	templates *template.Template
	resources fs.FS
}

// Default returns the built-in theme.
func Default() *Theme {
	fsys, err := fs.Sub(defaultFS, "default")
	if err != nil {
		panic(err)
	}
	t, err := Load("default", fsys)
	if err != nil {
		panic(err)
	}
	return t
}

// Load parses every .html file of fsys, at any depth, into one template set.
// Files under ResourcesDir are resources, not templates.
func Load(name string, fsys fs.FS) (*Theme, error) {
	matches, err := doublestar.Glob(fsys, "**/*.html")
	if err != nil {
		return nil, fmt.Errorf("glob theme %s: %w", name, err)
	}

	root := template.New(name).Funcs(funcMap())
	for _, m := range matches {
		if strings.HasPrefix(m, ResourcesDir+"/") {
			continue
		}
		src, err := fs.ReadFile(fsys, m)
		if err != nil {
			return nil, fmt.Errorf("read template %s: %w", m, err)
		}
		if _, err := root.New(path.Base(m)).Parse(string(src)); err != nil {
			return nil, fmt.Errorf("parse template %s: %w", m, err)
		}
	}
	for _, required := range requiredTemplates {
		if root.Lookup(required+".html") == nil {
			return nil, fmt.Errorf("theme %s is missing template %s.html", name, required)
		}
	}

	t := &Theme{Name: name, templates: root}
	if sub, err := fs.Sub(fsys, ResourcesDir); err == nil {
		if _, statErr := fs.Stat(fsys, ResourcesDir); statErr == nil {
			t.resources = sub
		}
	}
	return t, nil
}

// Resources returns the theme's static files, or nil when it has none.
func (t *Theme) Resources() fs.FS { return t.resources }

// Render executes the template for p.Kind.
func (t *Theme) Render(p Page) ([]byte, error) {
	tmpl := t.templates.Lookup(p.Kind + ".html")
	if tmpl == nil {
		return nil, fmt.Errorf("theme %s has no template for %q", t.Name, p.Kind)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, p); err != nil {
		return nil, fmt.Errorf("render %s %q: %w", p.Kind, p.Path, err)
	}
	return buf.Bytes(), nil
}

func funcMap() template.FuncMap {
	funcs := sprig.FuncMap()
	funcs["rel"] = Rel
	return funcs
}

// Rel returns the relative link from the page at from to the site path to.
// Pages are written as <path>/index.html, so a page at "posts/a" is two
// levels below the output root.
func Rel(from, to string) string {
	depth := 0
	if from = strings.Trim(from, "/"); from != "" {
		depth = strings.Count(from, "/") + 1
	}
	prefix := strings.Repeat("../", depth)
	if prefix == "" {
		prefix = "./"
	}
	return prefix + strings.TrimPrefix(to, "/")
}

// OutputPath returns where a page at sitePath is written, relative to the
// output folder.
func OutputPath(sitePath string) string {
	sitePath = strings.Trim(sitePath, "/")
	if sitePath == "" {
		return "index.html"
	}
	return sitePath + "/index.html"
}
