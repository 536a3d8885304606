// Package folders prepares the on-disk layout a publishing run writes to.
//
//	<root>/Output/            generated artifacts, recreated for generation runs
//	<root>/.publish/          persistent internal state
//	<root>/.publish/Caches/   persistent caches
package folders

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"git.home.luguber.info/inful/sitepublish/internal/logfields"
)

// Folder names below the root.
const (
	OutputName   = "Output"
	InternalName = ".publish"
	CachesName   = "Caches"
)

// RootMarkers are the file names that identify a site root when no explicit
// root is given.
var RootMarkers = []string{"publish.yaml", "go.mod"}

var (
	// ErrResolveRoot indicates the root folder could not be found.
	ErrResolveRoot = errors.New("could not find the requested root folder")
	// ErrCreateStructure indicates the folder layout could not be created.
	ErrCreateStructure = errors.New("failed to set up root folder structure")
)

// Error reports a folder setup failure together with the path involved.
type Error struct {
	Kind error // ErrResolveRoot or ErrCreateStructure
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%v (path: %s)", e.Kind, e.Path)
	}
	return fmt.Sprintf("%v (path: %s): %v", e.Kind, e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the error's kind sentinel.
func (e *Error) Is(target error) bool { return target == e.Kind }

// Group holds the resolved folders for a run.
type Group struct {
	Root     string
	Output   string
	Internal string
	Caches   string
}

// Options controls Setup.
type Options struct {
	// Root is an explicit root folder. When empty the root is resolved from Origin.
	Root string
	// Origin is the file that defines the pipeline; resolution walks up from its directory.
	Origin string
	// EmptyOutput clears the output folder before it is (re)created.
	EmptyOutput bool
	Logger      *slog.Logger
}

// Setup resolves the root folder, optionally empties the output folder and
// creates the folder layout. Creation is idempotent.
func Setup(opts Options) (Group, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	root, err := ResolveRoot(opts.Root, opts.Origin)
	if err != nil {
		return Group{}, err
	}
	logger.Debug("Resolved root folder", logfields.Root(root))

	output := filepath.Join(root, OutputName)
	if opts.EmptyOutput {
		if err := emptyFolder(output); err != nil {
			return Group{}, &Error{Kind: ErrCreateStructure, Path: root, Err: err}
		}
		logger.Debug("Emptied output folder", logfields.Path(output))
	}

	g := Group{
		Root:     root,
		Output:   output,
		Internal: filepath.Join(root, InternalName),
	}
	g.Caches = filepath.Join(g.Internal, CachesName)

	for _, dir := range []string{g.Output, g.Internal, g.Caches} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return Group{}, &Error{Kind: ErrCreateStructure, Path: root, Err: err}
		}
	}
	logger.Debug("Created root folder structure", logfields.Root(root))
	return g, nil
}

// ResolveRoot returns the absolute root folder. An explicit path must exist
// and be a directory. Otherwise the nearest ancestor of origin's directory
// containing one of RootMarkers is used.
func ResolveRoot(explicit, origin string) (string, error) {
	if explicit != "" {
		abs, err := filepath.Abs(explicit)
		if err != nil {
			return "", &Error{Kind: ErrResolveRoot, Path: explicit, Err: err}
		}
		info, err := os.Stat(abs)
		if err != nil {
			return "", &Error{Kind: ErrResolveRoot, Path: abs, Err: err}
		}
		if !info.IsDir() {
			return "", &Error{Kind: ErrResolveRoot, Path: abs, Err: errors.New("not a directory")}
		}
		return abs, nil
	}

	if origin == "" {
		return "", &Error{Kind: ErrResolveRoot, Path: "", Err: errors.New("no root path or pipeline origin given")}
	}
	abs, err := filepath.Abs(origin)
	if err != nil {
		return "", &Error{Kind: ErrResolveRoot, Path: origin, Err: err}
	}

	start := abs
	if info, err := os.Stat(abs); err != nil || !info.IsDir() {
		start = filepath.Dir(abs)
	}
	for dir := start; ; dir = filepath.Dir(dir) {
		if hasMarker(dir) {
			return dir, nil
		}
		if filepath.Dir(dir) == dir {
			break
		}
	}
	return "", &Error{Kind: ErrResolveRoot, Path: start, Err: fmt.Errorf("no %v found in any parent folder", RootMarkers)}
}

func hasMarker(dir string) bool {
	for _, m := range RootMarkers {
		if info, err := os.Stat(filepath.Join(dir, m)); err == nil && !info.IsDir() {
			return true
		}
	}
	return false
}

// emptyFolder removes every entry of dir, hidden ones included. A missing
// folder is not an error.
func emptyFolder(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(dir, e.Name())); err != nil {
			return err
		}
	}
	return nil
}
