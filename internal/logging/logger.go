// Package logging builds the process logger and carries run correlation ids.
package logging

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/clinvar-query/internal/domain"
)

type contextKey string

const runIDKey contextKey = "run_id"

// New creates a logrus logger from the logging configuration.
// Unknown levels fall back to info.
func New(cfg domain.LoggingConfig) (*logrus.Logger, error) {
	logger := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if strings.EqualFold(cfg.Format, "text") {
		logger.SetFormatter(&logrus.TextFormatter{
			TimestampFormat: time.RFC3339,
			FullTimestamp:   true,
		})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
		})
	}

	out, err := openOutput(cfg)
	if err != nil {
		return nil, err
	}
	logger.SetOutput(out)

	return logger, nil
}

// stdout is reserved for command output and the MCP stdio transport, so stderr is the default
func openOutput(cfg domain.LoggingConfig) (io.Writer, error) {
	switch strings.ToLower(cfg.Output) {
	case "stdout":
		return os.Stdout, nil
	case "", "stderr":
		return os.Stderr, nil
	case "file":
		if cfg.Filename == "" {
			return nil, domain.NewValidationError("logging.filename", "is required when output is file", "")
		}
		f, err := os.OpenFile(cfg.Filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		return f, nil
	default:
		return nil, domain.NewValidationError("logging.output", "must be stdout, stderr or file", cfg.Output)
	}
}

// WithRunID returns a context carrying a fresh run id, or the existing one
func WithRunID(ctx context.Context) (context.Context, string) {
	if id := RunID(ctx); id != "" {
		return ctx, id
	}
	id := uuid.New().String()
	return context.WithValue(ctx, runIDKey, id), id
}

// ContextWithRunID stores an explicit run id, e.g. an HTTP request id
func ContextWithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey, id)
}

// RunID extracts the run id from the context
func RunID(ctx context.Context) string {
	if id, ok := ctx.Value(runIDKey).(string); ok {
		return id
	}
	return ""
}

// FromContext returns an entry tagged with the context's run id
func FromContext(ctx context.Context, logger *logrus.Logger) *logrus.Entry {
	entry := logrus.NewEntry(logger)
	if id := RunID(ctx); id != "" {
		entry = entry.WithField("run_id", id)
	}
	return entry
}
