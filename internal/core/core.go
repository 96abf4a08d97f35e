// Package core manages the lifecycle of the runtime components: ordered
// start, reverse-order stop, and configuration reload.
package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/flemzord/hostsync/internal/config"
)

// ShutdownTimeout bounds Stop.
const ShutdownTimeout = 30 * time.Second

// App owns a set of named components.
type App struct {
	components []component
	logger     *slog.Logger
}

type component struct {
	name    string
	impl    any
	started bool
}

// NewApp creates an empty App.
func NewApp(logger *slog.Logger) *App {
	if logger == nil {
		logger = slog.Default()
	}
	return &App{logger: logger.With("component", "core")}
}

// Add registers a component. impl may implement any of Starter, Stopper
// and Reloader; it must be added before Start.
func (a *App) Add(name string, impl any) {
	a.components = append(a.components, component{name: name, impl: impl})
}

// Names returns the registered component names in start order.
func (a *App) Names() []string {
	names := make([]string, len(a.components))
	for i, c := range a.components {
		names[i] = c.name
	}
	return names
}

// Start starts every component in order. If one fails, those already
// started are stopped in reverse order.
func (a *App) Start() error {
	for i := range a.components {
		c := &a.components[i]
		if s, ok := c.impl.(Starter); ok {
			a.logger.Info("starting component", "name", c.name)
			if err := s.Start(); err != nil {
				a.logger.Error("component start failed", "name", c.name, "error", err)
				a.stopFrom(i - 1)
				return fmt.Errorf("starting %s: %w", c.name, err)
			}
		}
		c.started = true
	}
	a.logger.Info("all components started")
	return nil
}

// Stop stops every started component in reverse order, bounded by
// ShutdownTimeout.
func (a *App) Stop() {
	a.stopFrom(len(a.components) - 1)
}

func (a *App) stopFrom(index int) {
	ctx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()

	for i := index; i >= 0; i-- {
		c := &a.components[i]
		if !c.started {
			continue
		}
		if s, ok := c.impl.(Stopper); ok {
			a.logger.Info("stopping component", "name", c.name)
			if err := s.Stop(ctx); err != nil {
				a.logger.Error("component stop error", "name", c.name, "error", err)
			}
		}
		c.started = false
	}
}

// Reload passes cfg to every started component implementing Reloader.
// Failures are joined; the remaining components are still reloaded.
func (a *App) Reload(ctx context.Context, cfg *config.Config) error {
	var errs []error
	for i := range a.components {
		c := &a.components[i]
		r, ok := c.impl.(Reloader)
		if !ok || !c.started {
			continue
		}
		a.logger.Info("reloading component", "name", c.name)
		if err := r.Reload(ctx, cfg); err != nil {
			a.logger.Error("component reload failed", "name", c.name, "error", err)
			errs = append(errs, fmt.Errorf("reloading %s: %w", c.name, err))
		}
	}
	return errors.Join(errs...)
}
