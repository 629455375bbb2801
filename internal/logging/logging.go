// Package logging configures the process-wide slog logger and hands out
// module-scoped children of it.
//
//	log := logging.For("alerts")
//	log.Info("alert created", "alert_id", alert.ID)
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
	"time"

	gormlogger "gorm.io/gorm/logger"
)

var root atomic.Pointer[slog.Logger]

func init() {
	root.Store(slog.New(slog.NewTextHandler(os.Stderr, nil)))
}

// Init replaces the root logger. format is "json" or "text".
func Init(level, format string) *slog.Logger {
	return InitWriter(os.Stdout, level, format)
}

// InitWriter is Init with an explicit destination.
func InitWriter(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}

	var handler slog.Handler
	if strings.EqualFold(format, "text") {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	l := slog.New(handler)
	root.Store(l)
	slog.SetDefault(l)

	return l
}

// ParseLevel maps a level name to a slog level, defaulting to info.
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

// For returns a logger tagged with the given module name.
func For(module string) *slog.Logger {
	return root.Load().With("module", module)
}

type gormWriter struct {
	l *slog.Logger
}

func (w gormWriter) Printf(format string, args ...any) {
	w.l.Warn(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

// Gorm returns a gorm logger that writes slow queries and errors through slog.
func Gorm() gormlogger.Interface {
	return gormlogger.New(gormWriter{l: For("gorm")}, gormlogger.Config{
		SlowThreshold:             500 * time.Millisecond,
		LogLevel:                  gormlogger.Warn,
		IgnoreRecordNotFoundError: true,
	})
}
