package scope

import (
	"context"
	"log/slog"
	"maps"

	"golang.org/x/sync/errgroup"

	"git.home.luguber.info/inful/sitepublish/internal/logfields"
)

// Domain names the kind of artifact currently being generated.
type Domain string

const (
	DomainWebsite Domain = "website"
	DomainFeed    Domain = "feed"
	DomainPodcast Domain = "podcast"
)

// Item identifies the content item a branch of work is processing.
// Section and Metadata are optional.
type Item struct {
	Path     string
	Section  string
	Metadata map[string]any
}

// At returns an item for path with no section or metadata.
func At(path string) Item {
	return Item{Path: path}
}

// WithPath returns a copy pointing at path. The section is kept, metadata is
// dropped since it described the previous path.
func (i Item) WithPath(path string) Item {
	return Item{Path: path, Section: i.Section}
}

// WithMetadata returns a copy carrying md.
func (i Item) WithMetadata(md map[string]any) Item {
	return Item{Path: i.Path, Section: i.Section, Metadata: maps.Clone(md)}
}

func (i Item) clone() Item {
	i.Metadata = maps.Clone(i.Metadata)
	return i
}

type (
	itemKey   struct{}
	domainKey struct{}
	stepKey   struct{}
	loggerKey struct{}
)

// Current returns the innermost active item. The returned metadata map is a
// private copy.
func Current(ctx context.Context) (Item, bool) {
	item, ok := ctx.Value(itemKey{}).(Item)
	if !ok {
		return Item{}, false
	}
	return item.clone(), true
}

// Run calls fn with item active.
func Run(ctx context.Context, item Item, fn func(context.Context) error) error {
	return fn(context.WithValue(ctx, itemKey{}, item.clone()))
}

// WithMetadata runs fn with the active item's metadata replaced by md.
// When no item is active fn runs with ctx unchanged.
func WithMetadata(ctx context.Context, md map[string]any, fn func(context.Context) error) error {
	item, ok := Current(ctx)
	if !ok {
		return fn(ctx)
	}
	return Run(ctx, item.WithMetadata(md), fn)
}

// WithPath runs fn with the active item moved to path, keeping its section.
// When no item is active fn runs scoped to a fresh item at path.
func WithPath(ctx context.Context, path string, fn func(context.Context) error) error {
	item, ok := Current(ctx)
	if !ok {
		return Run(ctx, At(path), fn)
	}
	return Run(ctx, item.WithPath(path), fn)
}

// InDomain runs fn with d as the active generation domain.
func InDomain(ctx context.Context, d Domain, fn func(context.Context) error) error {
	return fn(context.WithValue(ctx, domainKey{}, d))
}

// CurrentDomain returns the innermost active generation domain.
func CurrentDomain(ctx context.Context) (Domain, bool) {
	d, ok := ctx.Value(domainKey{}).(Domain)
	return d, ok
}

// WithStep returns a context that names the pipeline step being executed.
func WithStep(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, stepKey{}, name)
}

// CurrentStep returns the name of the executing pipeline step.
func CurrentStep(ctx context.Context) (string, bool) {
	name, ok := ctx.Value(stepKey{}).(string)
	return name, ok
}

// Go starts fn on g as a new branch scoped to item. ctx should be the
// group's context so cancellation reaches the branch.
func Go(ctx context.Context, g *errgroup.Group, item Item, fn func(context.Context) error) {
	g.Go(func() error {
		return Run(ctx, item, fn)
	})
}

// LogAttrs returns structured log fields describing the active scope.
func LogAttrs(ctx context.Context) []slog.Attr {
	attrs := make([]slog.Attr, 0, 4)
	if name, ok := CurrentStep(ctx); ok {
		attrs = append(attrs, logfields.Step(name))
	}
	if d, ok := CurrentDomain(ctx); ok {
		attrs = append(attrs, logfields.Domain(string(d)))
	}
	if item, ok := Current(ctx); ok {
		attrs = append(attrs, logfields.Path(item.Path))
		if item.Section != "" {
			attrs = append(attrs, logfields.Section(item.Section))
		}
	}
	return attrs
}

// WithLogger returns a context carrying l for Logger.
func WithLogger(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, l)
}

// Logger returns the context's logger annotated with the active scope's
// fields. base is used when ctx carries no logger.
func Logger(ctx context.Context, base *slog.Logger) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok && l != nil {
		base = l
	}
	if base == nil {
		base = slog.Default()
	}
	attrs := LogAttrs(ctx)
	if len(attrs) == 0 {
		return base
	}
	args := make([]any, len(attrs))
	for i, a := range attrs {
		args[i] = a
	}
	return base.With(args...)
}
