package logging

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kardianos/service"
)

// SystemHandler forwards records to the OS service logger (Windows Event
// Log, syslog or the launchd log). Only records at or above Level are
// forwarded.
type SystemHandler struct {
	sys    service.Logger
	level  slog.Leveler
	prefix string
	attrs  []slog.Attr
}

// Compile-time check.
var _ slog.Handler = (*SystemHandler)(nil)

// NewSystemHandler creates a handler for sys. A nil level defaults to
// slog.LevelWarn.
func NewSystemHandler(sys service.Logger, level slog.Leveler) *SystemHandler {
	if level == nil {
		level = slog.LevelWarn
	}
	return &SystemHandler{sys: sys, level: level}
}

// Enabled implements slog.Handler.
func (h *SystemHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

// Handle implements slog.Handler.
func (h *SystemHandler) Handle(_ context.Context, record slog.Record) error {
	var b strings.Builder
	b.WriteString(record.Message)
	for _, a := range h.attrs {
		writeAttr(&b, "", a)
	}
	record.Attrs(func(a slog.Attr) bool {
		writeAttr(&b, h.prefix, a)
		return true
	})

	msg := b.String()
	switch {
	case record.Level >= slog.LevelError:
		return h.sys.Error(msg)
	case record.Level >= slog.LevelWarn:
		return h.sys.Warning(msg)
	default:
		return h.sys.Info(msg)
	}
}

// WithAttrs implements slog.Handler.
func (h *SystemHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := *h
	out.attrs = make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	out.attrs = append(out.attrs, h.attrs...)
	for _, a := range attrs {
		a.Key = h.prefix + a.Key
		out.attrs = append(out.attrs, a)
	}
	return &out
}

// WithGroup implements slog.Handler.
func (h *SystemHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	out := *h
	out.prefix = h.prefix + name + "."
	return &out
}

func writeAttr(b *strings.Builder, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	if a.Value.Kind() == slog.KindGroup {
		for _, ga := range a.Value.Group() {
			writeAttr(b, prefix+a.Key+".", ga)
		}
		return
	}
	fmt.Fprintf(b, " %s%s=%v", prefix, a.Key, a.Value.Any())
}
