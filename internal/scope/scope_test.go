package scope

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestCurrentWithoutScope(t *testing.T) {
	_, ok := Current(t.Context())
	assert.False(t, ok)

	_, ok = CurrentDomain(t.Context())
	assert.False(t, ok)
}

func TestRunRestoresPreviousValue(t *testing.T) {
	ctx := t.Context()

	err := Run(ctx, Item{Path: "posts/outer", Section: "posts"}, func(ctx context.Context) error {
		inner := Run(ctx, At("posts/inner"), func(ctx context.Context) error {
			item, ok := Current(ctx)
			require.True(t, ok)
			assert.Equal(t, "posts/inner", item.Path)
			assert.Empty(t, item.Section)
			return nil
		})
		require.NoError(t, inner)

		item, ok := Current(ctx)
		require.True(t, ok)
		assert.Equal(t, "posts/outer", item.Path)
		assert.Equal(t, "posts", item.Section)
		return nil
	})
	require.NoError(t, err)

	_, ok := Current(ctx)
	assert.False(t, ok, "scope must not outlive Run")
}

func TestRunRestoresOnError(t *testing.T) {
	boom := errors.New("boom")

	err := Run(t.Context(), At("outer"), func(ctx context.Context) error {
		innerErr := Run(ctx, At("inner"), func(context.Context) error { return boom })
		require.ErrorIs(t, innerErr, boom)

		item, _ := Current(ctx)
		assert.Equal(t, "outer", item.Path)
		return innerErr
	})
	require.ErrorIs(t, err, boom)
}

func TestRunRestoresOnPanic(t *testing.T) {
	ctx := t.Context()
	err := Run(ctx, At("outer"), func(ctx context.Context) error {
		func() {
			defer func() { _ = recover() }()
			_ = Run(ctx, At("inner"), func(context.Context) error { panic("bad item") })
		}()
		item, _ := Current(ctx)
		assert.Equal(t, "outer", item.Path)
		return nil
	})
	require.NoError(t, err)
}

func TestWithMetadata(t *testing.T) {
	t.Run("no active item runs body directly", func(t *testing.T) {
		called := false
		err := WithMetadata(t.Context(), map[string]any{"k": "v"}, func(ctx context.Context) error {
			called = true
			_, ok := Current(ctx)
			assert.False(t, ok)
			return nil
		})
		require.NoError(t, err)
		assert.True(t, called)
	})

	t.Run("keeps path and section", func(t *testing.T) {
		item := Item{Path: "episodes/one", Section: "episodes"}
		err := Run(t.Context(), item, func(ctx context.Context) error {
			return WithMetadata(ctx, map[string]any{"audio": "one.mp3"}, func(ctx context.Context) error {
				got, ok := Current(ctx)
				require.True(t, ok)
				assert.Equal(t, "episodes/one", got.Path)
				assert.Equal(t, "episodes", got.Section)
				assert.Equal(t, "one.mp3", got.Metadata["audio"])
				return nil
			})
		})
		require.NoError(t, err)
	})
}

func TestWithPath(t *testing.T) {
	item := Item{Path: "posts/a", Section: "posts", Metadata: map[string]any{"k": 1}}
	err := Run(t.Context(), item, func(ctx context.Context) error {
		return WithPath(ctx, "posts/b", func(ctx context.Context) error {
			got, _ := Current(ctx)
			assert.Equal(t, "posts/b", got.Path)
			assert.Equal(t, "posts", got.Section)
			assert.Nil(t, got.Metadata)
			return nil
		})
	})
	require.NoError(t, err)

	err = WithPath(t.Context(), "about", func(ctx context.Context) error {
		got, ok := Current(ctx)
		require.True(t, ok)
		assert.Equal(t, "about", got.Path)
		return nil
	})
	require.NoError(t, err)
}

func TestMetadataMutationDoesNotLeak(t *testing.T) {
	md := map[string]any{"count": 1}
	err := Run(t.Context(), Item{Path: "p", Metadata: md}, func(ctx context.Context) error {
		md["count"] = 99

		child, _ := Current(ctx)
		child.Metadata["count"] = 2

		again, _ := Current(ctx)
		assert.Equal(t, 1, again.Metadata["count"])
		return nil
	})
	require.NoError(t, err)
}

func TestConcurrentBranchesAreIsolated(t *testing.T) {
	parent := Item{Path: "parent", Section: "root"}

	err := Run(t.Context(), parent, func(ctx context.Context) error {
		g, gctx := errgroup.WithContext(ctx)
		for i := range 64 {
			path := fmt.Sprintf("posts/%d", i)
			Go(gctx, g, Item{Path: path, Section: "posts"}, func(ctx context.Context) error {
				for range 10 {
					runtime.Gosched()
					got, ok := Current(ctx)
					if !ok || got.Path != path {
						return fmt.Errorf("branch %s observed %q", path, got.Path)
					}
				}
				return WithMetadata(ctx, map[string]any{"branch": i}, func(ctx context.Context) error {
					runtime.Gosched()
					got, _ := Current(ctx)
					if got.Metadata["branch"] != i || got.Path != path {
						return fmt.Errorf("branch %d observed metadata %v at %s", i, got.Metadata, got.Path)
					}
					return nil
				})
			})
		}
		require.NoError(t, g.Wait())

		got, _ := Current(ctx)
		assert.Equal(t, parent.Path, got.Path)
		assert.Nil(t, got.Metadata)
		return nil
	})
	require.NoError(t, err)
}

func TestBranchInheritsValueAtSpawn(t *testing.T) {
	err := Run(t.Context(), At("spawner"), func(ctx context.Context) error {
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			got, ok := Current(gctx)
			if !ok || got.Path != "spawner" {
				return fmt.Errorf("expected inherited spawner, got %q", got.Path)
			}
			return nil
		})
		return g.Wait()
	})
	require.NoError(t, err)
}

func TestDomainAndStep(t *testing.T) {
	ctx := WithStep(t.Context(), "Generate RSS feed")
	err := InDomain(ctx, DomainFeed, func(ctx context.Context) error {
		d, ok := CurrentDomain(ctx)
		require.True(t, ok)
		assert.Equal(t, DomainFeed, d)

		return Run(ctx, Item{Path: "posts/a", Section: "posts"}, func(ctx context.Context) error {
			attrs := LogAttrs(ctx)
			keys := make([]string, 0, len(attrs))
			for _, a := range attrs {
				keys = append(keys, a.Key)
			}
			assert.Equal(t, []string{"step", "domain", "path", "section"}, keys)
			return nil
		})
	})
	require.NoError(t, err)

	name, ok := CurrentStep(ctx)
	require.True(t, ok)
	assert.Equal(t, "Generate RSS feed", name)
}

func TestLoggerPrefersContextLogger(t *testing.T) {
	var ctxBuf, baseBuf bytes.Buffer
	base := slog.New(slog.NewTextHandler(&baseBuf, nil))

	Logger(t.Context(), base).Info("plain")
	assert.Contains(t, baseBuf.String(), "plain")

	ctx := WithLogger(WithStep(t.Context(), "Deploy"), slog.New(slog.NewTextHandler(&ctxBuf, nil)))
	Logger(ctx, base).Info("scoped")
	assert.NotContains(t, baseBuf.String(), "scoped")
	assert.Contains(t, ctxBuf.String(), "scoped")
	assert.Contains(t, ctxBuf.String(), "step=Deploy")
}
