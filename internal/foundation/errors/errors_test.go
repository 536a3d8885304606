package errors

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifiedErrorString(t *testing.T) {
	cause := errors.New("unexpected EOF")

	tests := []struct {
		name string
		err  *ClassifiedError
		want string
	}{
		{"message", ConfigError("no site name").Build(), "[config:fatal] no site name"},
		{"path", ContentError("bad frontmatter").WithContext("path", "posts/a.md").Build(), "[content:error] bad frontmatter (path: posts/a.md)"},
		{"cause", WrapError(cause, CategoryFeed, "encode rss").Build(), "[feed:error] encode rss: unexpected EOF"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestClassifiedErrorChain(t *testing.T) {
	cause := errors.New("permission denied")
	err := fmt.Errorf("copy resources: %w",
		FileSystemError("write output").WithCause(cause).WithContext("path", "img/a.png").Build())

	classified, ok := AsClassified(err)
	require.True(t, ok)
	assert.Equal(t, "img/a.png", classified.Path())
	assert.Equal(t, "write output", classified.Message())
	assert.True(t, classified.CanRetry())
	assert.True(t, HasCategory(err, CategoryFileSystem))
	assert.False(t, HasCategory(err, CategoryDeploy))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, RetryBackoff, GetRetryStrategy(err))
	assert.Equal(t, RetryNever, GetRetryStrategy(cause))

	_, ok = AsClassified(cause)
	assert.False(t, ok)
}

func TestWithContextLeavesSentinelUntouched(t *testing.T) {
	sentinel := HistoryError("append failed").Build()
	derived := sentinel.WithContext("run_id", "abc")

	_, ok := sentinel.Context().Get("run_id")
	assert.False(t, ok)
	id, _ := derived.Context().GetString("run_id")
	assert.Equal(t, "abc", id)
	assert.ErrorIs(t, derived, sentinel)
}

func TestBuilderCopiesContext(t *testing.T) {
	b := RenderError("template failed").WithContext("theme", "plain")
	first := b.Build()
	second := b.WithContext("path", "posts/a").Build()

	assert.Empty(t, first.Path())
	assert.Equal(t, "posts/a", second.Path())
}

func TestConstructors(t *testing.T) {
	tests := []struct {
		name     string
		builder  *ErrorBuilder
		category ErrorCategory
		severity ErrorSeverity
		retry    RetryStrategy
	}{
		{"config", ConfigError("x"), CategoryConfig, SeverityFatal, RetryUserAction},
		{"validation", ValidationError("x"), CategoryValidation, SeverityFatal, RetryUserAction},
		{"not found", NotFoundError("x"), CategoryNotFound, SeverityError, RetryUserAction},
		{"filesystem", FileSystemError("x"), CategoryFileSystem, SeverityError, RetryBackoff},
		{"content", ContentError("x"), CategoryContent, SeverityError, RetryNever},
		{"render", RenderError("x"), CategoryRender, SeverityError, RetryNever},
		{"feed", FeedError("x"), CategoryFeed, SeverityError, RetryNever},
		{"deploy", DeployError("x"), CategoryDeploy, SeverityError, RetryBackoff},
		{"notify", NotifyError("x"), CategoryNotify, SeverityWarning, RetryBackoff},
		{"history", HistoryError("x"), CategoryHistory, SeverityError, RetryNever},
		{"pipeline", PipelineError("x"), CategoryPipeline, SeverityFatal, RetryNever},
		{"internal", InternalError("x"), CategoryInternal, SeverityFatal, RetryNever},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.builder.Build()
			assert.Equal(t, tt.category, err.Category())
			assert.Equal(t, tt.severity, err.Severity())
			assert.Equal(t, tt.retry, err.RetryStrategy())
		})
	}
}

func TestLogValueGroupsFields(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	err := DeployError("push rejected").WithContext("branch", "main").WithCause(errors.New("non-fast-forward")).Build()

	logger.Error("deploy", "error", err)

	var line struct {
		Error map[string]any `json:"error"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "deploy", line.Error["category"])
	assert.Equal(t, "main", line.Error["branch"])
	assert.Equal(t, "non-fast-forward", line.Error["cause"])
	assert.Equal(t, true, line.Error["retryable"])
}

func TestErrorContextMerge(t *testing.T) {
	a := ErrorContext{}.Set("key1", "value1").Set("shared", "original")
	b := ErrorContext{}.Set("key2", "value2").Set("shared", "overridden")

	merged := a.Merge(b)
	assert.Equal(t, ErrorContext{"key1": "value1", "key2": "value2", "shared": "overridden"}, merged)
	assert.Equal(t, "value1", a["key1"])
	assert.Equal(t, "original", a["shared"])
}

type codedError struct{ code int }

func (e codedError) Error() string { return "coded" }
func (e codedError) ExitCode() int { return e.code }

func TestCLIErrorAdapterExitCodeFor(t *testing.T) {
	adapter := NewCLIErrorAdapter(false, slog.Default())

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, 0},
		{"validation", ValidationError("bad flag").Build(), 2},
		{"not found", NotFoundError("no config").Build(), 3},
		{"config", ConfigError("bad config").Build(), 7},
		{"content", ContentError("broken markdown").Build(), 11},
		{"deploy wrapped", fmt.Errorf("step: %w", DeployError("push").Build()), 8},
		{"exit coder wins", fmt.Errorf("outer: %w", codedError{code: 42}), 42},
		{"unclassified", errors.New("boom"), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, adapter.ExitCodeFor(tt.err))
		})
	}
}

func TestCLIErrorAdapterHandleError(t *testing.T) {
	var stderr, logs bytes.Buffer
	exitCode := -1
	adapter := NewCLIErrorAdapter(false, slog.New(slog.NewTextHandler(&logs, nil)))
	adapter.stderr = &stderr
	adapter.exit = func(code int) { exitCode = code }

	adapter.HandleError(ContentError("broken markdown").WithContext("path", "posts/a.md").Build())

	assert.Equal(t, 11, exitCode)
	assert.Equal(t, "Error: broken markdown (posts/a.md)\n", stderr.String())
	assert.Contains(t, logs.String(), "error.category=content")
	assert.Contains(t, logs.String(), "error.path=posts/a.md")
}
