package steps

import (
	"context"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"slices"

	"github.com/bmatcuk/doublestar/v4"

	ferrors "git.home.luguber.info/inful/sitepublish/internal/foundation/errors"
	"git.home.luguber.info/inful/sitepublish/internal/site"
	"git.home.luguber.info/inful/sitepublish/internal/step"
)

// CopyResources copies files below dir (relative to the root) that match any
// of patterns into the output folder, keeping their relative paths. A
// missing dir is not an error.
func CopyResources(dir string, patterns ...string) step.Step {
	if len(patterns) == 0 {
		patterns = []string{"**/*"}
	}
	return step.Generation("Copy '"+dir+"' files", func(ctx context.Context, gc *site.Context) error {
		src := filepath.Join(gc.Folders.Root, dir)
		if _, err := os.Stat(src); os.IsNotExist(err) {
			return nil
		}
		fsys := os.DirFS(src)
		files, err := globFiles(fsys, patterns)
		if err != nil {
			return ferrors.WrapError(err, ferrors.CategoryFileSystem, "failed to list resources").
				WithContext("path", dir).
				Build()
		}
		for _, f := range files {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := copyFile(gc, fsys, f, f); err != nil {
				return ferrors.WrapError(err, ferrors.CategoryFileSystem, "failed to copy resource").
					WithContext("path", path.Join(dir, f)).
					Build()
			}
		}
		return nil
	})
}

// globFiles returns the sorted, de-duplicated regular files matching any of
// patterns.
func globFiles(fsys fs.FS, patterns []string) ([]string, error) {
	var out []string
	for _, pattern := range patterns {
		matches, err := doublestar.Glob(fsys, pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, err
		}
		out = append(out, matches...)
	}
	slices.Sort(out)
	return slices.Compact(out), nil
}

// copyFile copies name from fsys to rel inside the output folder.
func copyFile(gc *site.Context, fsys fs.FS, name, rel string) error {
	dst, err := gc.OutputPath(rel)
	if err != nil {
		return err
	}
	in, err := fsys.Open(name)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
