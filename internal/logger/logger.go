// Package logger provides structured logging for ccfallback.
// All packages should use this package for consistent logging.
package logger

import (
	"log/slog"
	"os"
	"sync"
)

var (
	instance *slog.Logger
	once     sync.Once
)

// Config holds logger configuration.
type Config struct {
	Level     string // debug, info, warn, error
	Format    string // json, text
	AddSource bool
}

// DefaultConfig returns sensible defaults, honoring DEBUG the way the
// routing engine honors it for breaker bypass.
func DefaultConfig() Config {
	level := getEnv("LOG_LEVEL", "info")
	if isDebugEnv() {
		level = "debug"
	}
	return Config{
		Level:     level,
		Format:    getEnv("LOG_FORMAT", "json"),
		AddSource: getEnv("LOG_SOURCE", "false") == "true",
	}
}

// Init initializes the global logger. Safe to call multiple times; only
// the first call takes effect.
func Init(cfg Config) {
	once.Do(func() {
		var level slog.Level
		switch cfg.Level {
		case "debug":
			level = slog.LevelDebug
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		default:
			level = slog.LevelInfo
		}

		opts := &slog.HandlerOptions{
			Level:     level,
			AddSource: cfg.AddSource,
		}

		var handler slog.Handler
		if cfg.Format == "json" {
			handler = slog.NewJSONHandler(os.Stdout, opts)
		} else {
			handler = slog.NewTextHandler(os.Stdout, opts)
		}

		instance = slog.New(handler)
		slog.SetDefault(instance)
	})
}

// Get returns the global logger instance, initializing it with defaults
// on first use.
func Get() *slog.Logger {
	if instance == nil {
		Init(DefaultConfig())
	}
	return instance
}

// WithComponent returns a logger tagged with a component attribute.
func WithComponent(component string) *slog.Logger {
	return Get().With("component", component)
}

// WithRequestID returns a logger tagged with a request id attribute.
func WithRequestID(requestID string) *slog.Logger {
	return Get().With("request_id", requestID)
}

// IsDebug reports whether the proxy's global debug mode is enabled,
// per spec.md section 6's DEBUG environment variable (any value or
// the literal string "true").
func IsDebug() bool {
	return isDebugEnv()
}

func isDebugEnv() bool {
	v := os.Getenv("DEBUG")
	return v != ""
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
