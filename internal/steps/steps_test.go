package steps

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/sitepublish/internal/folders"
	"git.home.luguber.info/inful/sitepublish/internal/site"
	"git.home.luguber.info/inful/sitepublish/internal/step"
)

var testSite = site.Site{
	Name:        "Example",
	Description: "An example site",
	URL:         "https://example.com",
	Language:    "en",
}

// newContext sets up folders below a fresh root and returns a context ready
// for generation.
func newContext(t *testing.T) *site.Context {
	t.Helper()
	root := t.TempDir()
	g, err := folders.Setup(folders.Options{Root: root, Logger: slog.New(slog.DiscardHandler)})
	require.NoError(t, err)
	gc := site.NewContext(testSite, g, "")
	gc.GenerationWillBegin()
	return gc
}

// run executes every operation of s regardless of its kind.
func run(ctx context.Context, s step.Step, gc *site.Context) error {
	for _, r := range s.Flatten(step.NewKinds(step.KindGeneration, step.KindDeployment)) {
		gc.PrepareForStep(r.Name)
		if err := r.Run(ctx, gc); err != nil {
			return err
		}
	}
	return nil
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func readOutput(t *testing.T, gc *site.Context, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(gc.Folders.Output, filepath.FromSlash(rel)))
	require.NoError(t, err)
	return string(data)
}
