package steps

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/sync/errgroup"

	ferrors "git.home.luguber.info/inful/sitepublish/internal/foundation/errors"
	"git.home.luguber.info/inful/sitepublish/internal/frontmatter"
	"git.home.luguber.info/inful/sitepublish/internal/markdown"
	"git.home.luguber.info/inful/sitepublish/internal/scope"
	"git.home.luguber.info/inful/sitepublish/internal/site"
	"git.home.luguber.info/inful/sitepublish/internal/step"
)

type fileRole int

const (
	roleIndex fileRole = iota
	roleSection
	roleItem
	rolePage
)

// parsed is the result of one markdown branch.
type parsed struct {
	role    fileRole
	path    string // site path
	section string
	doc     markdown.Document
	modTime time.Time
}

// AddMarkdownFiles reads every .md file below dir (relative to the root):
//
//	index.md                 the index
//	<section>/index.md       the section's own content
//	<section>/**/<name>.md   items of the section
//	<name>.md                standalone pages
func AddMarkdownFiles(p *markdown.Parser, dir string) step.Step {
	return step.Generation("Add Markdown files from '"+dir+"' folder", func(ctx context.Context, gc *site.Context) error {
		root := filepath.Join(gc.Folders.Root, dir)
		info, err := os.Stat(root)
		if err != nil || !info.IsDir() {
			return ferrors.NotFoundError("content folder not found").WithContext("path", dir).Build()
		}
		fsys := os.DirFS(root)

		files, err := doublestar.Glob(fsys, "**/*.md")
		if err != nil {
			return ferrors.WrapError(err, ferrors.CategoryFileSystem, "failed to list markdown files").
				WithContext("path", dir).
				Build()
		}

		results := make([]parsed, len(files))
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(runtime.GOMAXPROCS(0))
		err = scope.InDomain(gctx, scope.DomainWebsite, func(gctx context.Context) error {
			for i, file := range files {
				role, sitePath, section := classify(file)
				item := scope.Item{Path: path.Join(dir, file), Section: section}
				scope.Go(gctx, g, item, func(ctx context.Context) error {
					res, err := parseFile(ctx, p, fsys, file)
					if err != nil {
						return err
					}
					res.role, res.path, res.section = role, sitePath, section
					results[i] = res
					return nil
				})
			}
			return g.Wait()
		})
		if err != nil {
			return err
		}

		for _, r := range results {
			if err := apply(gc, r); err != nil {
				return err
			}
		}
		return nil
	})
}

// classify maps a file path relative to the content folder to its role.
func classify(file string) (role fileRole, sitePath, section string) {
	parts := strings.Split(file, "/")
	name := strings.TrimSuffix(parts[len(parts)-1], ".md")
	switch {
	case len(parts) == 1 && name == "index":
		return roleIndex, "", ""
	case len(parts) == 1:
		return rolePage, site.Slugify(name), ""
	case len(parts) == 2 && name == "index":
		id := site.Slugify(parts[0])
		return roleSection, id, id
	default:
		id := site.Slugify(parts[0])
		rest := append(slices.Clone(parts[1:len(parts)-1]), name)
		return roleItem, id + "/" + site.Slugify(strings.Join(rest, "/")), id
	}
}

func parseFile(ctx context.Context, p *markdown.Parser, fsys fs.FS, file string) (parsed, error) {
	if err := ctx.Err(); err != nil {
		return parsed{}, err
	}
	item, _ := scope.Current(ctx)

	src, err := fs.ReadFile(fsys, file)
	if err != nil {
		return parsed{}, ferrors.WrapError(err, ferrors.CategoryFileSystem, "failed to read markdown file").
			WithContext("path", item.Path).
			Build()
	}
	doc, err := p.Parse(src)
	if err != nil {
		return parsed{}, ferrors.WrapError(err, ferrors.CategoryContent, "failed to parse markdown file").
			WithContext("path", item.Path).
			Build()
	}

	res := parsed{doc: doc}
	if info, err := fs.Stat(fsys, file); err == nil {
		res.modTime = info.ModTime()
	}
	return res, nil
}

func apply(gc *site.Context, r parsed) error {
	content := site.Content{
		Title:        r.doc.Title,
		Description:  r.doc.Description,
		Body:         r.doc.HTML,
		Date:         r.doc.Date,
		LastModified: r.modTime,
		ImagePath:    r.doc.Image,
	}
	if content.Date.IsZero() {
		content.Date = r.modTime
	}

	switch r.role {
	case roleIndex:
		gc.SetIndex(content)
	case roleSection:
		return gc.AddSection(r.section, content)
	case rolePage:
		return gc.AddPage(site.Page{Path: r.path, Content: content})
	case roleItem:
		audio, err := audioFromFields(r.doc.Fields)
		if err != nil {
			return ferrors.WrapError(err, ferrors.CategoryContent, "invalid audio metadata").
				WithContext("path", r.path).
				Build()
		}
		return gc.AddItem(site.Item{
			Path:        r.path,
			SectionID:   r.section,
			Tags:        r.doc.Tags,
			Content:     content,
			Metadata:    r.doc.Fields,
			Audio:       audio,
			Fingerprint: r.doc.Fingerprint,
		})
	}
	return nil
}

// audioFromFields reads the optional "audio" mapping of an item:
//
//	audio:
//	  url: https://cdn.example.com/1.mp3
//	  size: 12345678
//	  type: audio/mpeg
//	  duration: "00:42:10"
func audioFromFields(fields map[string]any) (*site.Audio, error) {
	m, ok := frontmatter.Map(fields, "audio")
	if !ok {
		return nil, nil
	}
	url, _ := frontmatter.String(m, "url")
	if url == "" {
		return nil, errors.New("audio.url is required")
	}
	a := &site.Audio{URL: url, Type: "audio/mpeg"}
	if t, ok := frontmatter.String(m, "type"); ok && t != "" {
		a.Type = t
	}
	if size, ok := frontmatter.Int(m, "size"); ok {
		a.ByteSize = size
	}
	if secs, ok := frontmatter.Int(m, "duration"); ok {
		a.Duration = time.Duration(secs) * time.Second
	} else if s, ok := frontmatter.String(m, "duration"); ok && s != "" {
		d, err := parseClock(s)
		if err != nil {
			return nil, err
		}
		a.Duration = d
	}
	return a, nil
}

// parseClock parses "HH:MM:SS" or "MM:SS".
func parseClock(s string) (time.Duration, error) {
	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, errClock
	}
	var secs int
	for _, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 {
			return 0, errClock
		}
		secs = secs*60 + n
	}
	return time.Duration(secs) * time.Second, nil
}

var errClock = errors.New("audio.duration must be HH:MM:SS, MM:SS or seconds")
