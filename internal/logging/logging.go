package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

var (
	mu   sync.RWMutex
	root = zerolog.New(os.Stderr).With().Timestamp().Logger().Level(zerolog.WarnLevel)
)

// Init configures the process root logger. Level is a zerolog level name
// ("debug", "info", "warn", "error"). Format is "console" or "json". If w is
// nil, os.Stderr is used.
func Init(level, format string, w ...io.Writer) error {
	var writer io.Writer = os.Stderr
	if len(w) > 0 && w[0] != nil {
		writer = w[0]
	}

	lvl, err := ParseLevel(level)
	if err != nil {
		return err
	}

	switch format {
	case "json":
	case "console", "":
		writer = zerolog.ConsoleWriter{Out: writer, TimeFormat: "15:04:05"}
	default:
		return fmt.Errorf("invalid log format %q (must be console or json)", format)
	}

	l := zerolog.New(writer).With().Timestamp().Logger().Level(lvl)
	mu.Lock()
	root = l
	mu.Unlock()
	return nil
}

// ParseLevel maps a level name to a zerolog level. Empty means warn.
func ParseLevel(level string) (zerolog.Level, error) {
	if strings.TrimSpace(level) == "" {
		return zerolog.WarnLevel, nil
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return lvl, nil
}

// New returns a logger with a "component" field for module-scoped logging.
func New(component string) zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return root.With().Str("component", component).Logger()
}
