// Package output delivers human-facing progress messages from a publishing
// run to an injected slog logger.
package output

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/lmittmann/tint"
)

// Kind classifies a progress message.
type Kind int

const (
	Info Kind = iota
	Warning
	Error
	Success
)

func (k Kind) String() string {
	switch k {
	case Warning:
		return "warning"
	case Error:
		return "error"
	case Success:
		return "success"
	default:
		return "info"
	}
}

// Level returns the slog level a message of kind k is logged at.
func (k Kind) Level() slog.Level {
	switch k {
	case Warning:
		return slog.LevelWarn
	case Error:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (k Kind) marker() string {
	switch k {
	case Warning:
		return "⚠️ "
	case Error:
		return "❌ "
	case Success:
		return "✅ "
	default:
		return ""
	}
}

// Sink receives progress messages.
type Sink interface {
	Output(ctx context.Context, kind Kind, msg string, attrs ...slog.Attr)
}

// Logger is a Sink writing to a slog logger.
type Logger struct {
	logger *slog.Logger
}

// New returns a Sink writing to logger, or to slog.Default() when nil.
func New(logger *slog.Logger) *Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Logger{logger: logger}
}

// Output logs msg prefixed with the marker for kind.
func (l *Logger) Output(ctx context.Context, kind Kind, msg string, attrs ...slog.Attr) {
	l.logger.LogAttrs(ctx, kind.Level(), kind.marker()+msg, attrs...)
}

// Discard is a Sink that drops every message.
type Discard struct{}

func (Discard) Output(context.Context, Kind, string, ...slog.Attr) {}

// Log formats.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatTint = "tint"
)

// NewHandler returns a slog handler writing format to w at level.
func NewHandler(w io.Writer, format, level string) (slog.Handler, error) {
	var lvl slog.Level
	if level == "" {
		level = "info"
	}
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("could not parse log level: %w", err)
	}

	opts := &slog.HandlerOptions{Level: lvl}
	switch strings.ToLower(format) {
	case FormatText:
		return slog.NewTextHandler(w, opts), nil
	case FormatJSON:
		return slog.NewJSONHandler(w, opts), nil
	case FormatTint, "":
		return tint.NewHandler(w, &tint.Options{Level: lvl, TimeFormat: "15:04:05"}), nil
	default:
		return nil, fmt.Errorf("unknown log format: %s", format)
	}
}
