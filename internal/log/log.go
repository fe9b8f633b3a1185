// Package log provides the shared logging setup for hackathon-agent.
//
// Components receive a *slog.Logger through their constructors and add
// context with logger.With("component", ...). Nothing in this repository
// logs through a package-level global except slog.Default fallbacks for
// nil loggers.
package log

import (
	"io"
	"log/slog"
	"os"
)

// Config controls handler construction.
type Config struct {
	// Level is the minimum level emitted. Zero value is slog.LevelInfo.
	Level slog.Level

	// JSON selects the JSON handler instead of the text handler.
	JSON bool

	// AddSource annotates records with file:line.
	AddSource bool
}

// New returns a logger writing to stderr with the given configuration.
func New(cfg Config) *slog.Logger {
	return NewWithWriter(os.Stderr, cfg)
}

// NewWithWriter returns a logger writing to w. Tests use this with a
// bytes.Buffer to inspect output.
func NewWithWriter(w io.Writer, cfg Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:     cfg.Level,
		AddSource: cfg.AddSource,
	}

	var handler slog.Handler
	if cfg.JSON {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}

// NewNop returns a logger that discards everything. Test-only; production
// code should always construct a real logger.
func NewNop() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
