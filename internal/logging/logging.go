// Package logging provides structured logging using slog.
package logging

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"os"
	"strings"
)

// Config holds logging configuration.
type Config struct {
	Format string `yaml:"format"` // "json" | "text"
	Level  string `yaml:"level"`  // "debug" | "info" | "warn" | "error"
}

// Setup initializes the global slog logger based on configuration.
func Setup(cfg Config) {
	level := parseLevel(cfg.Level)

	var handler slog.Handler
	opts := &slog.HandlerOptions{
		Level: level,
	}

	switch strings.ToLower(cfg.Format) {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, opts)
	default:
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}

// parseLevel converts a string level to slog.Level.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// runIDKey is the context key for ingest run IDs.
type runIDKey struct{}

// WithRunID adds a run ID to the context.
func WithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey{}, id)
}

// RunID retrieves the run ID from context.
func RunID(ctx context.Context) string {
	if id, ok := ctx.Value(runIDKey{}).(string); ok {
		return id
	}
	return ""
}

// GenerateRequestID creates a short unique ID for HTTP request logging.
func GenerateRequestID() string {
	b := make([]byte, 8)
	rand.Read(b)
	return hex.EncodeToString(b)
}

// RunLogger creates a logger with ingest run context fields.
func RunLogger(runID, dataset, version string) *slog.Logger {
	return slog.With(
		"run_id", runID,
		"dataset", dataset,
		"version", version,
	)
}

// Component returns a logger with a component name.
func Component(name string) *slog.Logger {
	return slog.With("component", name)
}
