package commands

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"git.home.luguber.info/inful/sitepublish/internal/logfields"
	"git.home.luguber.info/inful/sitepublish/internal/metrics"
	"git.home.luguber.info/inful/sitepublish/internal/step"
	"git.home.luguber.info/inful/sitepublish/internal/watch"
)

// WatchCmd implements the 'watch' command.
type WatchCmd struct {
	Deploy      bool          `help:"Also run deployment steps after each generation"`
	Schedule    string        `help:"Cron expression for periodic republishing (overrides watch.schedule)"`
	MetricsAddr string        `name:"metrics-addr" help:"Serve Prometheus metrics on this address (overrides metrics.addr)"`
	Debounce    time.Duration `help:"Quiet period before rebuilding (overrides watch.debounce)"`
}

func (w *WatchCmd) Run(ctx context.Context, g *Global, root *CLI) error {
	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}
	logger := g.Logger
	if logger == nil {
		logger = slog.Default()
	}

	schedule := cfg.Watch.Schedule
	if w.Schedule != "" {
		schedule = w.Schedule
	}
	debounce := cfg.Watch.Debounce
	if w.Debounce > 0 {
		debounce = w.Debounce
	}
	metricsAddr := ""
	if cfg.Metrics.Enabled {
		metricsAddr = cfg.Metrics.Addr
	}
	if w.MetricsAddr != "" {
		metricsAddr = w.MetricsAddr
	}

	var recorder metrics.Recorder
	if metricsAddr != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		recorder = metrics.NewPrometheusRecorder(reg)
		stop := serveMetrics(metricsAddr, reg, logger)
		defer stop()
	}

	p, err := newPublisher(ctx, cfg, root.Root, recorder, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := p.Close(); err != nil {
			logger.Warn("Failed to close publisher", logfields.Error(err))
		}
	}()

	kinds := step.NewKinds(step.KindGeneration)
	if w.Deploy {
		kinds = step.NewKinds(step.KindGeneration, step.KindDeployment)
	}
	rebuild := watch.Serial(func(ctx context.Context, reason string) {
		logger.Info("Republishing", slog.String("reason", reason))
		if _, err := p.run(ctx, kinds); err != nil {
			logger.Error("Publishing failed", logfields.Error(err))
		}
	})

	// Initial build; failures are reported and watching continues.
	rebuild(ctx, "start")

	watcher, err := watch.New(watch.Options{
		Root:     p.root,
		Ignore:   cfg.Watch.Ignore,
		Debounce: debounce,
		Logger:   logger,
	})
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	if schedule != "" {
		s, err := watch.NewScheduler(ctx, schedule, rebuild, logger)
		if err != nil {
			return err
		}
		s.Start()
		defer func() {
			if err := s.Stop(); err != nil {
				logger.Warn("Failed to stop scheduler", logfields.Error(err))
			}
		}()
	}

	return watcher.Run(ctx, rebuild)
}

// serveMetrics exposes reg on addr until the returned stop function is
// called.
func serveMetrics(addr string, reg *prometheus.Registry, logger *slog.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.HTTPHandler(reg))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		logger.Info("Serving metrics", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server failed", logfields.Error(err))
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
