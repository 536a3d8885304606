package pipeline

import (
	"context"
	"time"

	"git.home.luguber.info/inful/sitepublish/internal/folders"
	"git.home.luguber.info/inful/sitepublish/internal/metrics"
	"git.home.luguber.info/inful/sitepublish/internal/site"
	"git.home.luguber.info/inful/sitepublish/internal/step"
)

// Outcome is the final result of a run.
type Outcome string

const (
	OutcomeSuccess  Outcome = "success"
	OutcomeFailed   Outcome = "failed"
	OutcomeCanceled Outcome = "canceled"
)

// Run describes a run once its folders are ready.
type Run struct {
	ID      string
	Site    string
	Kinds   step.Kinds
	Steps   []string
	Folders folders.Group
	Started time.Time
	State   State
}

// Observer receives callbacks around step execution and the run lifecycle.
// Callbacks are invoked from the executor's goroutine, in order.
type Observer interface {
	OnRunStart(ctx context.Context, run *Run)
	OnStepStart(ctx context.Context, run *Run, index int, name string)
	OnStepComplete(ctx context.Context, run *Run, index int, name string, d time.Duration, err error)
	OnRunComplete(ctx context.Context, run *Run, outcome Outcome, published *site.Published, err error)
}

// NoopObserver is a no-op implementation.
type NoopObserver struct{}

func (NoopObserver) OnRunStart(context.Context, *Run)                                       {}
func (NoopObserver) OnStepStart(context.Context, *Run, int, string)                         {}
func (NoopObserver) OnStepComplete(context.Context, *Run, int, string, time.Duration, error) {}
func (NoopObserver) OnRunComplete(context.Context, *Run, Outcome, *site.Published, error)   {}

// Observers fans callbacks out to each observer in order.
type Observers []Observer

func (o Observers) OnRunStart(ctx context.Context, run *Run) {
	for _, obs := range o {
		obs.OnRunStart(ctx, run)
	}
}

func (o Observers) OnStepStart(ctx context.Context, run *Run, index int, name string) {
	for _, obs := range o {
		obs.OnStepStart(ctx, run, index, name)
	}
}

func (o Observers) OnStepComplete(ctx context.Context, run *Run, index int, name string, d time.Duration, err error) {
	for _, obs := range o {
		obs.OnStepComplete(ctx, run, index, name, d, err)
	}
}

func (o Observers) OnRunComplete(ctx context.Context, run *Run, outcome Outcome, published *site.Published, err error) {
	for _, obs := range o {
		obs.OnRunComplete(ctx, run, outcome, published, err)
	}
}

// RecorderObserver adapts metrics.Recorder into an Observer.
type RecorderObserver struct{ Recorder metrics.Recorder }

func (r RecorderObserver) OnRunStart(context.Context, *Run)               {}
func (r RecorderObserver) OnStepStart(context.Context, *Run, int, string) {}

func (r RecorderObserver) OnStepComplete(_ context.Context, _ *Run, _ int, name string, d time.Duration, err error) {
	if r.Recorder == nil {
		return
	}
	r.Recorder.ObserveStepDuration(name, d)
	r.Recorder.IncStepResult(name, resultLabel(err))
}

func (r RecorderObserver) OnRunComplete(_ context.Context, run *Run, outcome Outcome, published *site.Published, _ error) {
	if r.Recorder == nil {
		return
	}
	r.Recorder.ObserveRunDuration(time.Since(run.Started))
	r.Recorder.IncRunOutcome(string(outcome))
	if published != nil {
		n := 0
		for _, s := range published.Sections {
			n += len(s.Items)
		}
		r.Recorder.SetPublishedItems(n)
	}
}

func resultLabel(err error) metrics.ResultLabel {
	switch {
	case err == nil:
		return metrics.ResultSuccess
	case isCanceled(err):
		return metrics.ResultCanceled
	default:
		return metrics.ResultFailed
	}
}
