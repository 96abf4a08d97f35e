// Package logging builds the process logger: a text handler on stderr, an
// optional append-only log file, and an optional forwarder to the OS service
// logger, all behind a secret-redacting handler.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/kardianos/service"
	"github.com/spf13/afero"
)

// Options configures Setup.
type Options struct {
	// Level may be a *slog.LevelVar so the level can change at runtime.
	Level slog.Leveler

	// Stderr receives console output. Defaults to os.Stderr.
	Stderr io.Writer

	// FilePath is the log file, opened in append mode. Empty disables it.
	FilePath string

	// System, if set, receives warnings and errors.
	System service.Logger

	// Secrets are literal values never written to any sink.
	Secrets []string

	// Fs defaults to the OS filesystem.
	Fs afero.Fs
}

// Setup builds the logger. The returned close function releases the log
// file and is never nil.
func Setup(opts Options) (*slog.Logger, func() error, error) {
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}

	handlerOpts := &slog.HandlerOptions{Level: opts.Level}
	handlers := []slog.Handler{slog.NewTextHandler(opts.Stderr, handlerOpts)}
	closeFn := func() error { return nil }

	if opts.FilePath != "" {
		if err := opts.Fs.MkdirAll(filepath.Dir(opts.FilePath), 0o755); err != nil {
			return nil, closeFn, fmt.Errorf("logging: creating log directory: %w", err)
		}
		f, err := opts.Fs.OpenFile(opts.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, closeFn, fmt.Errorf("logging: opening %s: %w", opts.FilePath, err)
		}
		handlers = append(handlers, slog.NewTextHandler(f, handlerOpts))
		closeFn = f.Close
	}

	if opts.System != nil {
		handlers = append(handlers, NewSystemHandler(opts.System, slog.LevelWarn))
	}

	var h slog.Handler = NewFanoutHandler(handlers...)
	h = NewRedactingHandler(h, NewRedactor(opts.Secrets...))
	return slog.New(h), closeFn, nil
}

// ParseLevel maps "debug", "info", "warn"/"warning" and "error" to a level.
// An empty string is info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("logging: unknown level %q", s)
	}
}
