package eventstore

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/sitepublish/internal/pipeline"
	"git.home.luguber.info/inful/sitepublish/internal/output"
	"git.home.luguber.info/inful/sitepublish/internal/site"
	"git.home.luguber.info/inful/sitepublish/internal/step"
)

func TestObserverRecordsPipelineRuns(t *testing.T) {
	store := newMemoryStore(t)
	projection := NewHistoryProjection(store, 10)
	obs := NewObserver(store, projection, slog.New(slog.DiscardHandler))

	ok := pipeline.New([]step.Step{
		step.Generation("add", func(_ context.Context, gc *site.Context) error {
			return gc.AddItem(site.Item{Path: "posts/a", SectionID: "posts"})
		}),
	}, pipeline.WithObserver(obs), pipeline.WithSink(output.Discard{}))
	_, err := ok.Execute(t.Context(), site.Site{Name: "Example"}, t.TempDir(), step.NewKinds(step.KindGeneration))
	require.NoError(t, err)

	failing := pipeline.New([]step.Step{
		step.Generation("explode", func(context.Context, *site.Context) error { return errors.New("boom") }),
	}, pipeline.WithObserver(obs), pipeline.WithSink(output.Discard{}))
	_, err = failing.Execute(t.Context(), site.Site{Name: "Example"}, t.TempDir(), step.NewKinds(step.KindGeneration))
	require.Error(t, err)

	history := projection.History()
	require.Len(t, history, 2)

	rebuilt := NewHistoryProjection(store, 10)
	require.NoError(t, rebuilt.Rebuild(t.Context()))
	require.Len(t, rebuilt.History(), 2)

	var success, failed RunSummary
	for _, r := range rebuilt.History() {
		switch r.Status {
		case StatusSuccess:
			success = r
		case StatusFailed:
			failed = r
		}
	}
	assert.Equal(t, 1, success.Items)
	assert.Equal(t, []string{"generation"}, success.Kinds)
	assert.Equal(t, "explode", failed.FailedStep)
	assert.Contains(t, failed.ErrorMessage, "boom")
}

func TestLazyObserverOpensAfterFolderSetup(t *testing.T) {
	var opened []string
	store := newMemoryStore(t)
	obs := NewLazyObserver(func(_ context.Context, caches string) (Store, error) {
		opened = append(opened, caches)
		assert.DirExists(t, caches)
		return store, nil
	}, nil, slog.New(slog.DiscardHandler))

	root := t.TempDir()
	empty := pipeline.New(nil, pipeline.WithObserver(obs), pipeline.WithSink(output.Discard{}))
	_, err := empty.Execute(t.Context(), site.Site{Name: "Example"}, root, step.NewKinds(step.KindDeployment))
	require.Error(t, err)
	assert.Empty(t, opened)

	ok := pipeline.New([]step.Step{
		step.Generation("noop", func(context.Context, *site.Context) error { return nil }),
	}, pipeline.WithObserver(obs), pipeline.WithSink(output.Discard{}))
	for range 2 {
		_, err = ok.Execute(t.Context(), site.Site{Name: "Example"}, root, step.NewKinds(step.KindGeneration))
		require.NoError(t, err)
	}
	require.Len(t, opened, 1)

	projection := NewHistoryProjection(store, 10)
	require.NoError(t, projection.Rebuild(t.Context()))
	assert.Len(t, projection.History(), 2)
}

func TestLazyObserverOpenFailureSkipsRecording(t *testing.T) {
	calls := 0
	obs := NewLazyObserver(func(context.Context, string) (Store, error) {
		calls++
		return nil, errors.New("disk full")
	}, nil, slog.New(slog.DiscardHandler))

	p := pipeline.New([]step.Step{
		step.Generation("noop", func(context.Context, *site.Context) error { return nil }),
	}, pipeline.WithObserver(obs), pipeline.WithSink(output.Discard{}))
	for range 2 {
		_, err := p.Execute(t.Context(), site.Site{Name: "Example"}, t.TempDir(), step.NewKinds(step.KindGeneration))
		require.NoError(t, err)
	}
	assert.Equal(t, 1, calls)
	assert.NoError(t, obs.Close())
}
