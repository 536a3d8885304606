package notify

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/sitepublish/internal/output"
	"git.home.luguber.info/inful/sitepublish/internal/pipeline"
	"git.home.luguber.info/inful/sitepublish/internal/site"
	"git.home.luguber.info/inful/sitepublish/internal/step"
)

type message struct {
	subject string
	body    Notification
}

type fakePublisher struct {
	mu       sync.Mutex
	messages []message
	err      error
}

func (f *fakePublisher) Publish(_ context.Context, subject string, data []byte) error {
	if f.err != nil {
		return f.err
	}
	var n Notification
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, message{subject: subject, body: n})
	return nil
}

func (f *fakePublisher) Close() error { return nil }

func run(t *testing.T, obs pipeline.Observer, fn step.Closure) error {
	t.Helper()
	p := pipeline.New([]step.Step{step.Generation("only", fn)},
		pipeline.WithObserver(obs),
		pipeline.WithSink(output.Discard{}),
		pipeline.WithLogger(slog.New(slog.DiscardHandler)))
	_, err := p.Execute(t.Context(), site.Site{Name: "Example"}, t.TempDir(), step.NewKinds(step.KindGeneration))
	return err
}

func TestObserverPublishesLifecycle(t *testing.T) {
	pub := &fakePublisher{}
	obs := NewObserver(pub, "", slog.New(slog.DiscardHandler))

	err := run(t, obs, func(_ context.Context, gc *site.Context) error {
		return gc.AddItem(site.Item{Path: "posts/a", SectionID: "posts"})
	})
	require.NoError(t, err)

	require.Len(t, pub.messages, 2)
	assert.Equal(t, "publish.WillStart", pub.messages[0].subject)
	assert.Equal(t, []string{"only"}, pub.messages[0].body.Steps)
	assert.Equal(t, []string{"generation"}, pub.messages[0].body.Kinds)

	done := pub.messages[1]
	assert.Equal(t, "publish.DidFinish", done.subject)
	assert.Equal(t, "success", done.body.Outcome)
	assert.Equal(t, 1, done.body.Items)
	assert.Equal(t, pub.messages[0].body.RunID, done.body.RunID)
}

func TestObserverPublishesFailure(t *testing.T) {
	pub := &fakePublisher{}
	obs := NewObserver(pub, "site.example", slog.New(slog.DiscardHandler))

	err := run(t, obs, func(context.Context, *site.Context) error { return errors.New("boom") })
	require.Error(t, err)

	require.Len(t, pub.messages, 2)
	failed := pub.messages[1]
	assert.Equal(t, "site.example.DidFail", failed.subject)
	assert.Equal(t, "failed", failed.body.Outcome)
	assert.Equal(t, "only", failed.body.FailedStep)
	assert.Contains(t, failed.body.Error, "boom")
}

func TestObserverDeliveryFailureDoesNotFailRun(t *testing.T) {
	pub := &fakePublisher{err: errors.New("no responders")}
	obs := NewObserver(pub, "", slog.New(slog.DiscardHandler))

	err := run(t, obs, func(context.Context, *site.Context) error { return nil })
	require.NoError(t, err)
}

func TestConnectRequiresURL(t *testing.T) {
	_, err := Connect(t.Context(), Config{})
	require.Error(t, err)
}
