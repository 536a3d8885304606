package commands

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"

	"git.home.luguber.info/inful/sitepublish/internal/config"
	"git.home.luguber.info/inful/sitepublish/internal/eventstore"
	"git.home.luguber.info/inful/sitepublish/internal/folders"
	"git.home.luguber.info/inful/sitepublish/internal/logfields"
	"git.home.luguber.info/inful/sitepublish/internal/metrics"
	"git.home.luguber.info/inful/sitepublish/internal/notify"
	"git.home.luguber.info/inful/sitepublish/internal/output"
	"git.home.luguber.info/inful/sitepublish/internal/pipeline"
	"git.home.luguber.info/inful/sitepublish/internal/site"
	"git.home.luguber.info/inful/sitepublish/internal/step"
	"git.home.luguber.info/inful/sitepublish/internal/steps"
)

// publisher runs the configured step tree with every configured observer
// attached.
type publisher struct {
	cfg      *config.Config
	root     string
	site     site.Site
	pipeline *pipeline.Pipeline
	logger   *slog.Logger
	closers  []func() error
}

// newPublisher builds the pipeline for cfg. History and notification
// failures are logged and leave the corresponding observer out.
func newPublisher(ctx context.Context, cfg *config.Config, root string, recorder metrics.Recorder, logger *slog.Logger) (*publisher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	tree, err := steps.Default(cfg)
	if err != nil {
		return nil, err
	}
	resolved, err := folders.ResolveRoot(root, cfg.Path)
	if err != nil {
		return nil, &pipeline.Error{
			Kind:    pipeline.KindFolderResolution,
			Path:    root,
			Message: "could not resolve the site root",
			Err:     err,
		}
	}

	p := &publisher{cfg: cfg, root: resolved, site: steps.SiteFromConfig(cfg), logger: logger}
	opts := []pipeline.Option{
		pipeline.WithOrigin(cfg.Path),
		pipeline.WithLogger(logger),
		pipeline.WithSink(output.New(logger)),
	}
	if recorder != nil {
		opts = append(opts, pipeline.WithObserver(pipeline.RecorderObserver{Recorder: recorder}))
	}

	if cfg.History.Enabled {
		history := eventstore.NewLazyObserver(func(ctx context.Context, caches string) (eventstore.Store, error) {
			store, err := eventstore.NewSQLiteStore(historyFile(cfg, caches))
			if err != nil {
				return nil, err
			}
			if n, err := store.Prune(ctx, cfg.History.MaxRuns); err != nil {
				logger.Warn("Failed to prune run history", logfields.Error(err))
			} else if n > 0 {
				logger.Debug("Pruned run history", "events", n)
			}
			return store, nil
		}, nil, logger)
		p.closers = append(p.closers, history.Close)
		opts = append(opts, pipeline.WithObserver(history))
	}

	if n := cfg.Notify.NATS; n != nil {
		pub, err := notify.Connect(ctx, notify.Config{
			URL:           n.URL,
			SubjectPrefix: n.SubjectPrefix,
			JetStream:     n.JetStream,
			Timeout:       n.Timeout,
			Retry:         n.Retry.Policy(),
		})
		if err != nil {
			logger.Warn("Notifications disabled", logfields.Error(err))
		} else {
			p.closers = append(p.closers, pub.Close)
			opts = append(opts, pipeline.WithObserver(notify.NewObserver(pub, n.SubjectPrefix, logger)))
		}
	}

	p.pipeline = pipeline.New(tree, opts...)
	return p, nil
}

func historyPath(cfg *config.Config, root string) string {
	return historyFile(cfg, filepath.Join(root, folders.InternalName, folders.CachesName))
}

func historyFile(cfg *config.Config, caches string) string {
	if filepath.IsAbs(cfg.History.File) {
		return cfg.History.File
	}
	return filepath.Join(caches, cfg.History.File)
}

func (p *publisher) run(ctx context.Context, kinds step.Kinds) (site.Published, error) {
	return p.pipeline.Execute(ctx, p.site, p.root, kinds)
}

func (p *publisher) Close() error {
	var errs []error
	for _, c := range p.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}

// runOnce loads the configuration and runs one pipeline for kinds.
func runOnce(ctx context.Context, g *Global, root *CLI, kinds step.Kinds) error {
	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}
	p, err := newPublisher(ctx, cfg, root.Root, nil, g.Logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := p.Close(); err != nil {
			p.logger.Warn("Failed to close publisher", logfields.Error(err))
		}
	}()
	_, err = p.run(ctx, kinds)
	return err
}

// GenerateCmd implements the 'generate' command.
type GenerateCmd struct{}

func (c *GenerateCmd) Run(ctx context.Context, g *Global, root *CLI) error {
	return runOnce(ctx, g, root, step.NewKinds(step.KindGeneration))
}

// DeployCmd implements the 'deploy' command.
type DeployCmd struct{}

func (c *DeployCmd) Run(ctx context.Context, g *Global, root *CLI) error {
	return runOnce(ctx, g, root, step.NewKinds(step.KindDeployment))
}

// PublishCmd implements the 'publish' command.
type PublishCmd struct{}

func (c *PublishCmd) Run(ctx context.Context, g *Global, root *CLI) error {
	return runOnce(ctx, g, root, step.NewKinds(step.KindGeneration, step.KindDeployment))
}
