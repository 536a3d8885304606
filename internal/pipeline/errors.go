package pipeline

import (
	"fmt"
	"strings"

	ferrors "git.home.luguber.info/inful/sitepublish/internal/foundation/errors"
)

// ErrorKind classifies why a run failed.
type ErrorKind string

const (
	KindFolderResolution ErrorKind = "folder_resolution"
	KindFolderStructure  ErrorKind = "folder_structure"
	KindEmptyPipeline    ErrorKind = "empty_pipeline"
	KindStepFailure      ErrorKind = "step_failure"
	KindUnknown          ErrorKind = "unknown"
	KindCanceled         ErrorKind = "canceled"
)

// Error is the error returned by a failed run. Step names the step that
// failed, Path the file or folder involved when known.
type Error struct {
	Kind    ErrorKind
	Step    string
	Path    string
	Message string
	Err     error
}

// NewError returns an error a step can raise to report a failure at path.
// The executor fills in the step name.
func NewError(message, path string, cause error) *Error {
	return &Error{Kind: KindStepFailure, Path: path, Message: message, Err: cause}
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Step != "" {
		fmt.Fprintf(&b, "step %q: ", e.Step)
	}
	b.WriteString(e.Message)
	if e.Path != "" {
		fmt.Fprintf(&b, " (path: %s)", e.Path)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// ForStep returns a copy of e attributed to step.
func (e *Error) ForStep(step string) *Error {
	c := *e
	c.Step = step
	return &c
}

// PublishingError implements Convertible.
func (e *Error) PublishingError(step string) *Error { return e.ForStep(step) }

// ExitCode maps the error to a process exit code.
func (e *Error) ExitCode() int {
	switch e.Kind {
	case KindEmptyPipeline:
		return 2
	case KindFolderResolution:
		return 3
	case KindFolderStructure:
		return 4
	case KindCanceled:
		return 130
	case KindStepFailure:
		if classified, ok := ferrors.AsClassified(e.Err); ok {
			return ferrors.ExitCodeForCategory(classified.Category())
		}
		return 11
	default:
		return 1
	}
}

// Convertible is implemented by errors that know how to describe themselves
// as a publishing error for a given step.
type Convertible interface {
	error
	PublishingError(step string) *Error
}
