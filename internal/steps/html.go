package steps

import (
	"context"
	"html/template"
	"io/fs"
	"runtime"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	ferrors "git.home.luguber.info/inful/sitepublish/internal/foundation/errors"
	"git.home.luguber.info/inful/sitepublish/internal/scope"
	"git.home.luguber.info/inful/sitepublish/internal/site"
	"git.home.luguber.info/inful/sitepublish/internal/step"
	"git.home.luguber.info/inful/sitepublish/internal/theme"
)

// IndexItemCount is how many recent items the index page lists.
const IndexItemCount = 10

type rendered struct {
	rel  string
	data []byte
}

// GenerateHTML renders the index, every section, item and page with th and
// copies th's resources into the output folder.
func GenerateHTML(th *theme.Theme) step.Step {
	return step.Generation("Generate HTML", func(ctx context.Context, gc *site.Context) error {
		pages := htmlPages(gc)
		out := make([]rendered, len(pages))

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(runtime.GOMAXPROCS(0))
		err := scope.InDomain(gctx, scope.DomainWebsite, func(gctx context.Context) error {
			for i, p := range pages {
				scope.Go(gctx, g, scope.Item{Path: p.Path, Section: sectionOf(p)}, func(ctx context.Context) error {
					if err := ctx.Err(); err != nil {
						return err
					}
					data, err := th.Render(p)
					if err != nil {
						item, _ := scope.Current(ctx)
						return ferrors.WrapError(err, ferrors.CategoryRender, "failed to render page").
							WithContext("path", item.Path).
							WithContext("theme", th.Name).
							Build()
					}
					out[i] = rendered{rel: theme.OutputPath(p.Path), data: data}
					return nil
				})
			}
			return g.Wait()
		})
		if err != nil {
			return err
		}

		for _, r := range out {
			if err := gc.WriteOutputFile(r.rel, r.data); err != nil {
				return err
			}
		}
		return copyThemeResources(gc, th)
	})
}

func sectionOf(p theme.Page) string {
	switch {
	case p.Section != nil:
		return p.Section.ID
	case p.Item != nil:
		return p.Item.SectionID
	}
	return ""
}

// htmlPages builds the template data for every document of the site.
func htmlPages(gc *site.Context) []theme.Page {
	now := time.Now()
	sections := gc.Sections()
	base := theme.Page{Site: gc.Site, Sections: sections, Generated: now}

	recent := gc.AllItems()
	slices.SortStableFunc(recent, ByDateDescending)
	if len(recent) > IndexItemCount {
		recent = recent[:IndexItemCount]
	}

	index := base
	index.Kind = theme.KindIndex
	index.Content = gc.Index.Content
	index.Body = trusted(gc.Index.Content.Body)
	index.Items = recent
	pages := []theme.Page{index}

	for i := range sections {
		s := &sections[i]
		p := base
		p.Kind = theme.KindSection
		p.Path = s.ID
		p.Content = s.Content
		p.Body = trusted(s.Content.Body)
		p.Section = s
		p.Items = s.Items
		pages = append(pages, p)

		for j := range s.Items {
			it := &s.Items[j]
			ip := base
			ip.Kind = theme.KindItem
			ip.Path = it.Path
			ip.Content = it.Content
			ip.Body = trusted(it.Content.Body)
			ip.Item = it
			pages = append(pages, ip)
		}
	}

	for _, pg := range gc.Pages() {
		p := base
		p.Kind = theme.KindPage
		p.Path = pg.Path
		p.Content = pg.Content
		p.Body = trusted(pg.Content.Body)
		pages = append(pages, p)
	}
	return pages
}

// trusted marks HTML produced by the markdown renderer as safe.
func trusted(s string) template.HTML {
	return template.HTML(s) //nolint:gosec // rendered by goldmark
}

func copyThemeResources(gc *site.Context, th *theme.Theme) error {
	res := th.Resources()
	if res == nil {
		return nil
	}
	return fs.WalkDir(res, ".", func(name string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		if err := copyFile(gc, res, name, name); err != nil {
			return ferrors.WrapError(err, ferrors.CategoryFileSystem, "failed to copy theme resource").
				WithContext("path", name).
				WithContext("theme", th.Name).
				Build()
		}
		return nil
	})
}
