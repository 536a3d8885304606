// Package errors provides the classified error primitives used across sitepublish.
//
// Leaf operations in the step library, the configuration loader, the history
// store and the notifier all report failures as ClassifiedError values so the
// pipeline executor can keep their structure when attributing a failure to a
// step, and the CLI can map them to exit codes.
//
// Key features:
//   - ErrorCategory: Broad error classification (config, content, render, deploy, ...)
//   - ErrorSeverity: Impact level (fatal, error, warning, info)
//   - RetryStrategy: Retry behavior (never, immediate, backoff, ...)
//   - ClassifiedError: Structured error with category, severity, and context
//   - ErrorBuilder: Fluent API for creating classified errors
//   - CLIErrorAdapter: exit codes and user-facing formatting
//
// Example usage:
//
//	err := errors.ContentError("failed to parse markdown file").
//		WithContext("path", item.Path).
//		WithCause(parseErr).
//		Build()
package errors
