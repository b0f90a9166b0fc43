// Package logging builds the process logger from flags and configuration.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/joeycumines/reactree/internal/config"
)

// Options describes a resolved logging setup.
type Options struct {
	Level  slog.Level
	Format string // "text" or "json"
	// File, when set, receives logs in append mode instead of Output.
	File string
	// Output is used when File is empty. The default is os.Stderr.
	Output io.Writer
}

// ParseLevel maps debug, info, warn and error (case-insensitive) to a level.
// The empty string is info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log level: %s", s)
	}
}

// Resolve merges flag values with configuration. Flag values take
// precedence; config values (including their REACTREE_* environment
// overrides) are used when a flag is empty. cfg may be nil.
func Resolve(flagLevel, flagFile, flagFormat string, cfg *config.Config) (Options, error) {
	schema := config.DefaultSchema()
	resolve := func(flagValue, key string) string {
		if flagValue != "" {
			return flagValue
		}
		return schema.Resolve(cfg, key)
	}

	var opts Options
	level, err := ParseLevel(resolve(flagLevel, "log.level"))
	if err != nil {
		return opts, err
	}
	opts.Level = level

	opts.Format = strings.ToLower(resolve(flagFormat, "log.format"))
	switch opts.Format {
	case "", "text":
		opts.Format = "text"
	case "json":
	default:
		return opts, fmt.Errorf("invalid log format: %s", opts.Format)
	}

	opts.File = resolve(flagFile, "log.file")
	return opts, nil
}

// New builds a logger from opts. The returned closer releases the log file,
// if any; it is never nil.
func New(opts Options) (*slog.Logger, io.Closer, error) {
	var (
		w                = opts.Output
		closer io.Closer = nopCloser{}
	)
	if opts.File != "" {
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file %s: %w", opts.File, err)
		}
		w, closer = f, f
	}
	if w == nil {
		w = os.Stderr
	}

	handlerOpts := &slog.HandlerOptions{Level: opts.Level}
	var handler slog.Handler
	if opts.Format == "json" {
		handler = slog.NewJSONHandler(w, handlerOpts)
	} else {
		handler = slog.NewTextHandler(w, handlerOpts)
	}
	return slog.New(handler), closer, nil
}

// Nop returns a logger that discards everything.
func Nop() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
