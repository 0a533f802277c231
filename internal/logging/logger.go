// Package logging configures log/slog for the import server and CLI.
//
// Loggers obtained through FromContext carry the chi request id and, once
// ContextWithImport has been applied, the import session id, so every line
// written while a batch runs can be traced back to its session.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
)

type importKey struct{}

// Setup installs the default logger on stdout.
//
// Level values: "debug", "info", "warn", "error" (default: "info")
// Format values: "text", "json" (default: "text")
func Setup(level, format string) {
	slog.SetDefault(New(os.Stdout, level, format))
}

// New builds a logger writing to w.
func New(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}

	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// ParseLevel converts a level name to slog.Level. Unknown names map to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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

// ContextWithImport tags ctx with an import session id.
func ContextWithImport(ctx context.Context, importID string) context.Context {
	if importID == "" {
		return ctx
	}
	return context.WithValue(ctx, importKey{}, importID)
}

// ImportID returns the import session id stored by ContextWithImport.
func ImportID(ctx context.Context) string {
	id, _ := ctx.Value(importKey{}).(string)
	return id
}

// FromContext returns the default logger enriched with request_id and
// import_id when ctx carries them.
//
//	func (s *Server) handleGetImport(w http.ResponseWriter, r *http.Request) {
//	    logging.FromContext(r.Context()).Info("loading import")
//	}
func FromContext(ctx context.Context) *slog.Logger {
	logger := slog.Default()

	if reqID := middleware.GetReqID(ctx); reqID != "" {
		logger = logger.With("request_id", reqID)
	}
	if id := ImportID(ctx); id != "" {
		logger = logger.With("import_id", id)
	}

	return logger
}

// WithFields returns FromContext(ctx) with additional fields.
//
//	logger := logging.WithFields(ctx, "batch", idx, "row_start", w.RowStart)
//	logger.Info("batch imported", "created", res.Counters.Created)
func WithFields(ctx context.Context, args ...any) *slog.Logger {
	return FromContext(ctx).With(args...)
}
