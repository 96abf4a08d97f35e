package app

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/flemzord/hostsync/internal/reload"
)

// reloader turns config file changes and SIGHUP into reloads.
type reloader struct {
	path    string
	handler *reload.Handler
	watcher *reload.Watcher
	logger  *slog.Logger

	// signals, if nil, is fed by signal.Notify on Start.
	signals chan os.Signal

	cancel context.CancelFunc
	done   chan struct{}
}

func newReloader(path string, handler *reload.Handler, watcher *reload.Watcher, logger *slog.Logger) *reloader {
	return &reloader{path: path, handler: handler, watcher: watcher, logger: logger}
}

// Start implements core.Starter.
func (r *reloader) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.done = make(chan struct{})

	sigs := r.signals
	if sigs == nil {
		sigs = make(chan os.Signal, 1)
		signal.Notify(sigs, syscall.SIGHUP)
	}

	r.watcher.Start(ctx)
	go r.loop(ctx, sigs)
	return nil
}

// Stop implements core.Stopper.
func (r *reloader) Stop(ctx context.Context) error {
	if r.cancel == nil {
		return nil
	}
	r.cancel()
	r.watcher.Stop()
	select {
	case <-r.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

func (r *reloader) loop(ctx context.Context, sigs chan os.Signal) {
	defer close(r.done)
	if r.signals == nil {
		defer signal.Stop(sigs)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-sigs:
			r.logger.Info("SIGHUP received, reloading configuration")
			r.reload(ctx)
		case evt := <-r.watcher.Events():
			r.logger.Info("config file changed, reloading", "path", evt.ConfigPath)
			r.reload(ctx)
		}
	}
}

func (r *reloader) reload(ctx context.Context) {
	if err := r.handler.HandleReload(ctx, r.path); err != nil {
		r.logger.Error("reload failed", "error", err)
	}
}
