// Package app provides the entry points of the hostsync binary: the
// long-running updater, a single update cycle, history queries and OS
// service control.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/kardianos/service"
	"github.com/spf13/afero"

	"github.com/flemzord/hostsync/internal/config"
	"github.com/flemzord/hostsync/internal/core"
	"github.com/flemzord/hostsync/internal/history"
	"github.com/flemzord/hostsync/internal/lockfile"
	"github.com/flemzord/hostsync/internal/logging"
	"github.com/flemzord/hostsync/internal/metrics"
	"github.com/flemzord/hostsync/internal/reload"
	hostsvc "github.com/flemzord/hostsync/internal/service"
	"github.com/flemzord/hostsync/internal/status"
	"github.com/flemzord/hostsync/internal/update"
)

// ConfigFileName is looked up next to the executable, then in the working
// directory, when no path is given.
const ConfigFileName = "config.json"

// RunParams configures every entry point.
type RunParams struct {
	// ConfigPath is an explicit configuration file. If empty,
	// ResolveConfigPath searches the default locations.
	ConfigPath string

	// BaseDir resolves a relative work_dir. Defaults to the directory of
	// the executable.
	BaseDir string

	// LogLevel overrides the configured log_level when non-empty.
	LogLevel string

	// Stderr receives console logs. Defaults to os.Stderr.
	Stderr io.Writer

	// Fs is used for the hosts file, backups and the log file. Defaults
	// to the OS filesystem.
	Fs afero.Fs

	// Version, Commit, and Date are injected at build time via ldflags.
	Version string
	Commit  string
	Date    string

	// observers receive cycle reports in addition to history and metrics.
	observers []update.Observer
}

// ResolveConfigPath returns explicit if set, otherwise the first existing
// config.json next to the executable or in the working directory.
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}

	var candidates []string
	if dir, err := ExecutableDir(); err == nil {
		candidates = append(candidates, filepath.Join(dir, ConfigFileName))
	}
	candidates = append(candidates, ConfigFileName)

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("no configuration file found (searched: %v)", candidates)
}

// ExecutableDir returns the directory holding the running binary, with
// symlinks resolved.
func ExecutableDir() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("locating executable: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Dir(exe), nil
}

// LoadConfig resolves, loads, resolves paths of and validates the
// configuration. It returns the absolute path of the file it read.
func LoadConfig(params RunParams) (*config.Config, string, error) {
	path, err := ResolveConfigPath(params.ConfigPath)
	if err != nil {
		return nil, "", err
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}

	baseDir, err := baseDir(params)
	if err != nil {
		return nil, "", err
	}
	if err := config.Resolve(cfg, baseDir); err != nil {
		return nil, "", err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func baseDir(params RunParams) (string, error) {
	if params.BaseDir != "" {
		return params.BaseDir, nil
	}
	return ExecutableDir()
}

// Run loads the configuration and runs the updater until stopped, under
// the OS service manager when launched by it, in the foreground otherwise.
// Config file changes and SIGHUP trigger a live reload. Errors raised
// before the logger exists also go to the system log when launched by the
// service manager.
func Run(params RunParams) error {
	cfg, cfgPath, err := LoadConfig(params)
	if err != nil {
		reportStartupError(fallbackSystemLogger(params), err)
		return err
	}

	prog := hostsvc.NewProgram(nil, nil)
	svc, svcErr := hostsvc.New(prog, hostsvc.NewConfig(cfg.Service.Name, serviceArgs(cfgPath)))

	var sys service.Logger
	if svcErr == nil && !service.Interactive() {
		sys, _ = svc.SystemLogger(nil)
	}

	rt, err := build(params, cfg, cfgPath, sys)
	if err != nil {
		reportStartupError(sys, err)
		return err
	}
	defer rt.close()

	rt.logger.Info("hostsync starting",
		"version", params.Version,
		"commit", params.Commit,
		"config", cfgPath,
		"work_dir", cfg.WorkDir,
		"hosts_path", cfg.HostsPath,
		"cron_expression", cfg.CronExpression,
	)

	if svcErr != nil {
		rt.logger.Warn("service manager unavailable, running in foreground", "error", svcErr)
		return runForeground(rt)
	}

	prog.Runner = rt.app
	prog.Logger = rt.logger
	if err := svc.Run(); err != nil {
		return fmt.Errorf("running service: %w", err)
	}
	rt.logger.Info("shutdown complete")
	return nil
}

// fallbackSystemLogger returns the system logger of the service registered
// under the default name, or nil when running interactively.
func fallbackSystemLogger(params RunParams) service.Logger {
	if service.Interactive() {
		return nil
	}
	svc, err := hostsvc.New(hostsvc.NewProgram(nil, nil),
		hostsvc.NewConfig(config.DefaultServiceName, serviceArgs(params.ConfigPath)))
	if err != nil {
		return nil
	}
	sys, err := svc.SystemLogger(nil)
	if err != nil {
		return nil
	}
	return sys
}

// reportStartupError writes err to sys. The console copy is printed by
// the command itself.
func reportStartupError(sys service.Logger, err error) {
	if sys == nil {
		return
	}
	_ = sys.Errorf("hostsync failed to start: %v", err)
}

// runForeground starts the app and blocks until SIGINT or SIGTERM.
func runForeground(rt *runtime) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	if err := rt.app.Start(); err != nil {
		return err
	}

	sig := <-sigCh
	rt.logger.Info("shutdown signal received", "signal", sig.String())
	rt.app.Stop()
	rt.logger.Info("shutdown complete")
	return nil
}

// RunOnce performs a single update cycle and returns its report. History
// and the log file are written as for a scheduled cycle.
func RunOnce(ctx context.Context, params RunParams) (update.Report, error) {
	cfg, cfgPath, err := LoadConfig(params)
	if err != nil {
		return update.Report{}, err
	}

	var last update.Report
	params.observers = append(params.observers, update.ObserverFunc(func(_ context.Context, r update.Report) {
		last = r
	}))

	rt, err := build(params, cfg, cfgPath, nil)
	if err != nil {
		return update.Report{}, err
	}
	defer rt.close()

	err = rt.updater.RunOnce(ctx)
	return last, err
}

// Recent returns the newest history records.
func Recent(ctx context.Context, params RunParams, limit int) ([]history.Record, error) {
	cfg, _, err := LoadConfig(params)
	if err != nil {
		return nil, err
	}
	if !cfg.History.IsEnabled() {
		return nil, errors.New("history is disabled in the configuration")
	}

	store, err := history.Open(ctx, cfg.HistoryPath(), slog.New(slog.DiscardHandler))
	if err != nil {
		return nil, err
	}
	defer store.Close()

	return store.Recent(ctx, limit)
}

// Control runs a service control action (install, uninstall, start, stop,
// restart) for the configured service name.
func Control(params RunParams, action string) error {
	svc, err := controlService(params)
	if err != nil {
		return err
	}
	return hostsvc.Control(svc, action)
}

// ServiceStatus reports whether the service is installed and running.
func ServiceStatus(params RunParams) (string, error) {
	svc, err := controlService(params)
	if err != nil {
		return "", err
	}
	return hostsvc.Status(svc)
}

func controlService(params RunParams) (service.Service, error) {
	cfg, cfgPath, err := LoadConfig(params)
	if err != nil {
		return nil, err
	}
	return hostsvc.New(hostsvc.NewProgram(nil, nil), hostsvc.NewConfig(cfg.Service.Name, serviceArgs(cfgPath)))
}

// serviceArgs are the arguments the service manager starts the binary with.
func serviceArgs(cfgPath string) []string {
	return []string{"run", "--config", cfgPath}
}

// runtime is a fully wired updater.
type runtime struct {
	cfg     *config.Config
	logger  *slog.Logger
	app     *core.App
	updater *updater
	history *history.Store
	metrics *metrics.Metrics
	closers []func() error
}

func (rt *runtime) close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		_ = rt.closers[i]()
	}
}

// build wires every component for cfg. Nothing is started.
func build(params RunParams, cfg *config.Config, cfgPath string, sys service.Logger) (*runtime, error) {
	fs := params.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}

	levelVar := new(slog.LevelVar)
	if err := applyLevel(levelVar, params.LogLevel, cfg.LogLevel); err != nil {
		return nil, err
	}

	var secrets []string
	if cfg.Status.BearerToken != "" {
		secrets = append(secrets, cfg.Status.BearerToken)
	}
	logger, closeLog, err := logging.Setup(logging.Options{
		Level:    levelVar,
		Stderr:   params.Stderr,
		FilePath: cfg.LogPath(),
		System:   sys,
		Secrets:  secrets,
		Fs:       fs,
	})
	if err != nil {
		return nil, err
	}

	rt := &runtime{cfg: cfg, logger: logger, closers: []func() error{closeLog}}
	rt.app = core.NewApp(logger)

	var observers []update.Observer
	if cfg.History.IsEnabled() {
		store, err := history.Open(context.Background(), cfg.HistoryPath(), logger)
		if err != nil {
			logger.Warn("history disabled", "error", err)
		} else {
			rt.history = store
			rt.closers = append(rt.closers, store.Close)
			observers = append(observers, store)
		}
	}

	rt.metrics = metrics.New(func() time.Time {
		if rt.updater == nil {
			return time.Time{}
		}
		return rt.updater.Next()
	})
	observers = append(observers, rt.metrics)
	observers = append(observers, params.observers...)

	rt.updater, err = newUpdater(cfg, updaterOptions{
		Fs:        fs,
		Logger:    logger,
		Observers: observers,
		OnCycle:   rt.metrics.ObserveCycle,
		Lock:      lockfile.New(cfg.LockPath()),
	})
	if err != nil {
		rt.close()
		return nil, err
	}
	rt.app.Add("updater", rt.updater)

	if cfg.Status.Bind != "" {
		deps := status.Deps{
			Scheduler: rt.updater,
			Metrics:   rt.metrics.Handler(),
			Logger:    logger,
		}
		if rt.history != nil {
			deps.History = rt.history
		}
		rt.app.Add("status", status.New(status.Config{
			Bind:        cfg.Status.Bind,
			BearerToken: cfg.Status.BearerToken,
		}, deps))
	}

	rt.app.Add("log_level", reloadFunc(func(_ context.Context, next *config.Config) error {
		return applyLevel(levelVar, params.LogLevel, next.LogLevel)
	}))

	if cfgPath != "" {
		baseDir, err := baseDir(params)
		if err != nil {
			rt.close()
			return nil, err
		}
		handler := reload.NewHandler(rt.app, logger, baseDir)
		watcher := reload.NewWatcher(reload.WatcherConfig{ConfigPath: cfgPath})
		rt.app.Add("reload", newReloader(cfgPath, handler, watcher, logger))
	}

	return rt, nil
}

// applyLevel sets v from override, or from configured when override is
// empty.
func applyLevel(v *slog.LevelVar, override, configured string) error {
	name := configured
	if override != "" {
		name = override
	}
	level, err := logging.ParseLevel(name)
	if err != nil {
		return err
	}
	v.Set(level)
	return nil
}

// reloadFunc adapts a function to core.Reloader.
type reloadFunc func(ctx context.Context, cfg *config.Config) error

func (f reloadFunc) Reload(ctx context.Context, cfg *config.Config) error { return f(ctx, cfg) }

// Compile-time interface checks.
var (
	_ core.Starter     = (*updater)(nil)
	_ core.Stopper     = (*updater)(nil)
	_ core.Reloader    = (*updater)(nil)
	_ core.Reloader    = reloadFunc(nil)
	_ status.Scheduler = (*updater)(nil)
	_ hostsvc.Runner   = (*core.App)(nil)
)
