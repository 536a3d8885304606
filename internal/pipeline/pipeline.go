// Package pipeline runs a flattened step tree against a generation context.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/sitepublish/internal/folders"
	ferrors "git.home.luguber.info/inful/sitepublish/internal/foundation/errors"
	"git.home.luguber.info/inful/sitepublish/internal/logfields"
	"git.home.luguber.info/inful/sitepublish/internal/output"
	"git.home.luguber.info/inful/sitepublish/internal/scope"
	"git.home.luguber.info/inful/sitepublish/internal/site"
	"git.home.luguber.info/inful/sitepublish/internal/step"
)

const unknownErrorMessage = "an unknown error occurred"

// Pipeline is a reusable, immutable list of steps. Execute may be called
// any number of times; each call creates its own folders and context.
type Pipeline struct {
	steps    []step.Step
	origin   string
	sink     output.Sink
	observer Observer
	logger   *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithOrigin sets the file root resolution walks up from.
func WithOrigin(path string) Option { return func(p *Pipeline) { p.origin = path } }

// WithSink sets where progress messages go.
func WithSink(s output.Sink) Option { return func(p *Pipeline) { p.sink = s } }

// WithObserver adds an observer. Repeated calls fan out in order.
func WithObserver(o Observer) Option {
	return func(p *Pipeline) {
		if o == nil {
			return
		}
		if existing, ok := p.observer.(Observers); ok {
			p.observer = append(existing, o)
			return
		}
		if _, ok := p.observer.(NoopObserver); ok {
			p.observer = o
			return
		}
		p.observer = Observers{p.observer, o}
	}
}

// WithLogger sets the logger used for debug output.
func WithLogger(l *slog.Logger) Option { return func(p *Pipeline) { p.logger = l } }

// New returns a pipeline running steps. Unless WithOrigin is given, root
// resolution starts at the file of New's caller.
func New(steps []step.Step, opts ...Option) *Pipeline {
	p := &Pipeline{
		steps:    append([]step.Step(nil), steps...),
		observer: NoopObserver{},
	}
	if _, file, _, ok := runtime.Caller(1); ok {
		p.origin = file
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	if p.sink == nil {
		p.sink = output.New(p.logger)
	}
	return p
}

// Steps returns the names of the operations that would run for kinds.
func (p *Pipeline) Steps(kinds step.Kinds) []string {
	flat := step.FlattenAll(p.steps, kinds)
	names := make([]string, len(flat))
	for i, r := range flat {
		names[i] = r.Name
	}
	return names
}

// Execute runs the operations selected by kinds for s. root may be empty to
// resolve it from the pipeline's origin.
func (p *Pipeline) Execute(ctx context.Context, s site.Site, root string, kinds step.Kinds) (site.Published, error) {
	flat := step.FlattenAll(p.steps, kinds)
	if len(flat) == 0 {
		return site.Published{}, &Error{
			Kind:    KindEmptyPipeline,
			Message: fmt.Sprintf("%s has no %s steps", s.Name, kinds),
		}
	}

	run := &Run{
		ID:    uuid.NewString(),
		Site:  s.Name,
		Kinds: kinds,
		Steps: make([]string, len(flat)),
		State: State{Phase: PhaseNotStarted},
	}
	for i, r := range flat {
		run.Steps[i] = r.Name
	}
	logger := p.logger.With(logfields.RunID(run.ID), logfields.Site(s.Name))

	// Output is left alone when the run is already over.
	if err := ctx.Err(); err != nil {
		return site.Published{}, &Error{Kind: KindCanceled, Message: "publishing was canceled", Err: err}
	}

	group, err := folders.Setup(folders.Options{
		Root:        root,
		Origin:      p.origin,
		EmptyOutput: kinds.Has(step.KindGeneration),
		Logger:      logger,
	})
	if err != nil {
		return site.Published{}, folderError(err)
	}
	run.Folders = group
	run.State = State{Phase: PhaseFoldersReady}
	run.Started = time.Now()

	gc := site.NewContext(s, group, flat[0].Name)
	gc.GenerationWillBegin()

	p.observer.OnRunStart(ctx, run)
	p.sink.Output(ctx, output.Info, fmt.Sprintf("Publishing %s (%d steps)", s.Name, len(flat)),
		logfields.RunID(run.ID), logfields.Kinds(kinds.String()))

	for i, r := range flat {
		if err := ctx.Err(); err != nil {
			perr := &Error{Kind: KindCanceled, Step: r.Name, Message: "publishing was canceled", Err: err}
			return p.fail(ctx, run, logger, perr)
		}

		run.State = State{Phase: PhaseRunning, Step: i}
		p.sink.Output(ctx, output.Info, fmt.Sprintf("[%d/%d] %s", i+1, len(flat), r.Name))
		gc.PrepareForStep(r.Name)
		p.observer.OnStepStart(ctx, run, i, r.Name)

		started := time.Now()
		stepErr := runStep(scope.WithStep(scope.WithLogger(ctx, logger), r.Name), r, gc)
		d := time.Since(started)
		p.observer.OnStepComplete(ctx, run, i, r.Name, d, stepErr)
		logger.Debug("Step finished",
			logfields.Step(r.Name),
			logfields.StepIndex(i+1),
			logfields.StepCount(len(flat)),
			logfields.DurationMS(float64(d.Milliseconds())),
			logfields.Error(stepErr))

		if stepErr != nil {
			return p.fail(ctx, run, logger, attribute(r.Name, stepErr))
		}
	}

	published := gc.Published()
	run.State = State{Phase: PhaseCompleted}
	p.sink.Output(ctx, output.Success, fmt.Sprintf("Successfully published %s", s.Name),
		logfields.DurationMS(float64(time.Since(run.Started).Milliseconds())))
	p.observer.OnRunComplete(ctx, run, OutcomeSuccess, &published, nil)
	return published, nil
}

func (p *Pipeline) fail(ctx context.Context, run *Run, logger *slog.Logger, perr *Error) (site.Published, error) {
	run.State = State{Phase: PhaseFailed, Step: run.State.Step}
	outcome := OutcomeFailed
	if perr.Kind == KindCanceled {
		outcome = OutcomeCanceled
	}
	logger.Debug("Run failed", logfields.Step(perr.Step), logfields.Outcome(string(outcome)), logfields.Error(perr))
	// Observers may do I/O; a canceled run still reports its outcome.
	p.observer.OnRunComplete(context.WithoutCancel(ctx), run, outcome, nil, perr)
	return site.Published{}, perr
}

// runStep invokes one operation, converting a panic into an error.
func runStep(ctx context.Context, r step.Runnable, gc *site.Context) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	return r.Run(ctx, gc)
}

// attribute converts err returned by step into a publishing error.
func attribute(step string, err error) *Error {
	var perr *Error
	if errors.As(err, &perr) {
		return perr.ForStep(step)
	}
	var conv Convertible
	if errors.As(err, &conv) {
		if e := conv.PublishingError(step); e != nil {
			return e.ForStep(step)
		}
	}
	if isCanceled(err) {
		return &Error{Kind: KindCanceled, Step: step, Message: "publishing was canceled", Err: err}
	}
	if classified, ok := ferrors.AsClassified(err); ok {
		return &Error{Kind: KindStepFailure, Step: step, Path: classified.Path(), Message: "step failed", Err: classified}
	}
	return &Error{
		Kind:    KindUnknown,
		Step:    step,
		Message: unknownErrorMessage,
		Err:     err,
	}
}

func folderError(err error) *Error {
	e := &Error{Kind: KindFolderStructure, Message: "failed to set up folders", Err: err}
	if errors.Is(err, folders.ErrResolveRoot) {
		e.Kind = KindFolderResolution
		e.Message = "could not resolve root folder"
	}
	var ferr *folders.Error
	if errors.As(err, &ferr) {
		e.Path = ferr.Path
	}
	return e
}

func isCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
