package eventstore

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"git.home.luguber.info/inful/sitepublish/internal/logfields"
	"git.home.luguber.info/inful/sitepublish/internal/pipeline"
	"git.home.luguber.info/inful/sitepublish/internal/site"
)

// Observer records pipeline runs into a Store. Recording failures are
// logged and never fail the run.
type Observer struct {
	pipeline.NoopObserver
	open       Opener
	projection *HistoryProjection
	logger     *slog.Logger

	mu    sync.Mutex
	store Store
}

// Opener opens the store for a run whose cache folder is caches.
type Opener func(ctx context.Context, caches string) (Store, error)

// NewObserver returns an Observer appending to store. When projection is
// non-nil every recorded event is also applied to it.
func NewObserver(store Store, projection *HistoryProjection, logger *slog.Logger) *Observer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Observer{store: store, projection: projection, logger: logger}
}

// NewLazyObserver returns an Observer that calls open on the first run
// start, after the run's folders exist. Runs that never start leave no
// store behind.
func NewLazyObserver(open Opener, projection *HistoryProjection, logger *slog.Logger) *Observer {
	o := NewObserver(nil, projection, logger)
	o.open = open
	return o
}

// Close closes the store if one was opened.
func (o *Observer) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.store == nil {
		return nil
	}
	err := o.store.Close()
	o.store = nil
	return err
}

func (o *Observer) current(ctx context.Context, run *pipeline.Run) Store {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.store != nil || o.open == nil {
		return o.store
	}
	store, err := o.open(ctx, run.Folders.Caches)
	if err != nil {
		o.logger.Warn("Run history disabled", logfields.RunID(run.ID), logfields.Error(err))
		o.open = nil
		return nil
	}
	o.store = store
	return store
}

func (o *Observer) OnRunStart(ctx context.Context, run *pipeline.Run) {
	if o.current(ctx, run) == nil {
		return
	}
	kinds := make([]string, 0, 3)
	for _, k := range run.Kinds.Sorted() {
		kinds = append(kinds, string(k))
	}
	o.record(ctx, run.ID)(NewEvent(run.ID, run.Started, RunStartedPayload{
		Site:  run.Site,
		Root:  run.Folders.Root,
		Kinds: kinds,
		Steps: run.Steps,
	}))
}

func (o *Observer) OnStepComplete(ctx context.Context, run *pipeline.Run, index int, name string, d time.Duration, err error) {
	payload := StepCompletedPayload{Step: name, Index: index, DurationMS: d.Milliseconds()}
	if err != nil {
		payload.Error = err.Error()
	}
	o.record(ctx, run.ID)(NewEvent(run.ID, time.Now(), payload))
}

func (o *Observer) OnRunComplete(ctx context.Context, run *pipeline.Run, outcome pipeline.Outcome, published *site.Published, err error) {
	d := time.Since(run.Started).Milliseconds()
	if outcome == pipeline.OutcomeSuccess {
		payload := RunCompletedPayload{DurationMS: d}
		if published != nil {
			payload.Sections = len(published.Sections)
			payload.Pages = len(published.Pages)
			for _, s := range published.Sections {
				payload.Items += len(s.Items)
			}
		}
		o.record(ctx, run.ID)(NewEvent(run.ID, time.Now(), payload))
		return
	}

	payload := RunFailedPayload{Outcome: string(outcome), DurationMS: d}
	if err != nil {
		payload.Error = err.Error()
	}
	var perr *pipeline.Error
	if errors.As(err, &perr) {
		payload.Step = perr.Step
		payload.Kind = string(perr.Kind)
	}
	o.record(ctx, run.ID)(NewEvent(run.ID, time.Now(), payload))
}

// record returns a function appending the event NewEvent produced.
func (o *Observer) record(ctx context.Context, runID string) func(Event, error) {
	o.mu.Lock()
	store := o.store
	o.mu.Unlock()
	return func(e Event, err error) {
		if store == nil {
			return
		}
		if err == nil {
			err = store.Append(ctx, e)
		}
		if err != nil {
			o.logger.Warn("Failed to record run history", logfields.RunID(runID), logfields.Error(err))
			return
		}
		if o.projection != nil {
			o.projection.Apply(e)
		}
	}
}
