package logging

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
)

type Options struct {
	Level string
	JSON  bool
}

var def atomic.Value

func init() {
	def.Store(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})))
}

func Configure(opts Options) {
	cfg := &slog.HandlerOptions{Level: parseLevel(opts.Level)}
	var h slog.Handler
	if opts.JSON {
		h = slog.NewJSONHandler(os.Stderr, cfg)
	} else {
		h = slog.NewTextHandler(os.Stderr, cfg)
	}
	def.Store(slog.New(h))
}

// InitFromEnv reads SIPHON_LOG_LEVEL and SIPHON_LOG_JSON.
func InitFromEnv() {
	json := false
	if b, err := strconv.ParseBool(strings.TrimSpace(os.Getenv("SIPHON_LOG_JSON"))); err == nil {
		json = b
	}
	Configure(Options{Level: os.Getenv("SIPHON_LOG_LEVEL"), JSON: json})
}

func L() *slog.Logger {
	l, _ := def.Load().(*slog.Logger)
	return l
}

// ForTable returns the default logger scoped to one storage table.
// Engine components carry this instead of the bare default so every
// line can be attributed to its table.
func ForTable(table string) *slog.Logger {
	return L().With("table", table)
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
