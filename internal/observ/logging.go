package observ

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

var (
	mu     sync.RWMutex
	logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
)

// Setup configures the process-wide logger. Level is one of
// trace|debug|info|warn|error; pretty switches to console output
// for local runs.
func Setup(level string, pretty bool) error {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}

	out := zerolog.New(os.Stdout)
	if pretty {
		out = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	mu.Lock()
	logger = out.Level(lvl).With().Timestamp().Logger()
	mu.Unlock()
	return nil
}

// Log emits a structured event with the given key/value fields.
func Log(event string, kv map[string]any) {
	mu.RLock()
	l := logger
	mu.RUnlock()
	l.Info().Fields(kv).Str("event", event).Msg(event)
}

// Warn emits a warning-level event.
func Warn(event string, kv map[string]any) {
	mu.RLock()
	l := logger
	mu.RUnlock()
	l.Warn().Fields(kv).Str("event", event).Msg(event)
}

// Error emits an error-level event carrying err.
func Error(event string, err error, kv map[string]any) {
	mu.RLock()
	l := logger
	mu.RUnlock()
	l.Error().Err(err).Fields(kv).Str("event", event).Msg(event)
}
