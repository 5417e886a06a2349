// Package logging provides structured logging configuration using zerolog.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	// LevelDebug logs debug messages and above.
	LevelDebug LogLevel = "debug"

	// LevelInfo logs info messages and above.
	LevelInfo LogLevel = "info"

	// LevelWarn logs warning messages and above.
	LevelWarn LogLevel = "warn"

	// LevelError logs error messages only.
	LevelError LogLevel = "error"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel

	// Pretty enables human-readable console output (default: false for JSON).
	Pretty bool

	// Output is the writer to output logs to (default: os.Stderr).
	Output io.Writer

	// Dir, when set, additionally writes JSON logs to a dated file in
	// this directory.
	Dir string
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Pretty: false,
		Output: os.Stderr,
	}
}

// Setup configures the global zerolog logger.
func Setup(cfg Config) (zerolog.Logger, error) {
	level := parseLevel(cfg.Level)
	zerolog.SetGlobalLevel(level)

	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}

	var output io.Writer = cfg.Output
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: cfg.Output}
	}

	if cfg.Dir != "" {
		if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
			return zerolog.Logger{}, fmt.Errorf("create log dir: %w", err)
		}
		name := fmt.Sprintf("wb-price-export_%s.log", time.Now().Format("2006-01-02"))
		file, err := os.OpenFile(filepath.Join(cfg.Dir, name),
			os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return zerolog.Logger{}, fmt.Errorf("open log file: %w", err)
		}
		output = zerolog.MultiLevelWriter(output, file)
	}

	logger := zerolog.New(output).With().Timestamp().Logger()
	log.Logger = logger

	return logger, nil
}

// parseLevel converts LogLevel to zerolog.Level.
func parseLevel(level LogLevel) zerolog.Level {
	switch strings.ToLower(string(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// NewLogger creates a new logger with the given component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Log Level Guidelines:
//
// Debug: Detailed information for debugging
//   - Individual request completion
//   - Rate window state restores
//   - Per-batch item counts
//
// Info: Normal operation events
//   - Run start/end banner
//   - Cabinet and batch progress
//   - Export summary
//
// Warn: Warning conditions that don't prevent operation
//   - Skipped cabinets (missing credential or id)
//   - Rate window waits and 429 backoffs
//   - Batches that yielded no data
//
// Error: Error conditions requiring attention
//   - Transport/DNS failures
//   - Cabinet processing failures
//   - Configuration and export errors
//
// Context Fields:
//   - endpoint: API endpoint path
//   - status: HTTP status code
//   - cabinet / cabinet_id: seller account identity
//   - batch / total_batches: batch progress
//   - error_class: failure classification (client, server, rate_limit, network, dns)
