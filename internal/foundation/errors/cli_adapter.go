package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
)

// ExitCoder is implemented by errors that carry their own process exit code.
type ExitCoder interface {
	ExitCode() int
}

// CLIErrorAdapter handles error presentation and exit code determination for CLI applications.
type CLIErrorAdapter struct {
	verbose bool
	logger  *slog.Logger
	stderr  io.Writer
	exit    func(int)
}

// NewCLIErrorAdapter creates a new CLI error adapter.
func NewCLIErrorAdapter(verbose bool, logger *slog.Logger) *CLIErrorAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CLIErrorAdapter{
		verbose: verbose,
		logger:  logger,
		stderr:  os.Stderr,
		exit:    os.Exit,
	}
}

// ExitCodeFor determines the appropriate exit code for an error.
func (a *CLIErrorAdapter) ExitCodeFor(err error) int {
	if err == nil {
		return 0
	}

	var coder ExitCoder
	if stderrors.As(err, &coder) {
		return coder.ExitCode()
	}

	if classified, ok := AsClassified(err); ok {
		return ExitCodeForCategory(classified.Category())
	}

	return 1
}

// ExitCodeForCategory maps an error category to a process exit code.
func ExitCodeForCategory(category ErrorCategory) int {
	switch category {
	case CategoryValidation:
		return 2 // Invalid usage
	case CategoryNotFound:
		return 3
	case CategoryConfig:
		return 7
	case CategoryDeploy, CategoryNotify:
		return 8 // External system error
	case CategoryInternal:
		return 10
	case CategoryContent, CategoryRender, CategoryFeed, CategoryFileSystem:
		return 11 // Generation error
	case CategoryPipeline, CategoryHistory:
		return 12
	default:
		return 1
	}
}

// FormatError renders err for the terminal. Unless verbose, a classified
// error shows only its message and path.
func (a *CLIErrorAdapter) FormatError(err error) string {
	if err == nil {
		return ""
	}
	classified, ok := AsClassified(err)
	if !ok || a.verbose || err != error(classified) {
		return fmt.Sprintf("Error: %v", err)
	}
	if p := classified.Path(); p != "" {
		return fmt.Sprintf("Error: %s (%s)", classified.Message(), p)
	}
	return "Error: " + classified.Message()
}

// HandleError logs err, prints it to stderr and exits with the mapped code.
func (a *CLIErrorAdapter) HandleError(err error) {
	if err == nil {
		return
	}
	code := a.ExitCodeFor(err)
	a.logError(err)
	_, _ = fmt.Fprintln(a.stderr, a.FormatError(err))
	a.exit(code)
}

func (a *CLIErrorAdapter) logError(err error) {
	level := slog.LevelError
	var value any = err
	if classified, ok := AsClassified(err); ok {
		value = classified
		switch classified.Severity() {
		case SeverityInfo:
			level = slog.LevelInfo
		case SeverityWarning:
			level = slog.LevelWarn
		}
	}
	a.logger.Log(context.Background(), level, "Publishing failed", slog.Any("error", value))
}
