package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/spf13/afero"

	"github.com/flemzord/hostsync/internal/backup"
	"github.com/flemzord/hostsync/internal/config"
	"github.com/flemzord/hostsync/internal/cron"
	"github.com/flemzord/hostsync/internal/fetch"
	"github.com/flemzord/hostsync/internal/hosts"
	"github.com/flemzord/hostsync/internal/update"
)

// updater owns the update job and its scheduler. A reload builds a new
// scheduler from the new configuration and swaps it in.
type updater struct {
	fs        afero.Fs
	clock     cron.Clock
	logger    *slog.Logger
	observers []update.Observer
	onCycle   func(cron.Cycle)
	lock      update.Locker

	// lifeMu serializes Start, Stop and Reload. mu only guards the fields
	// below and is never held while waiting on a scheduler.
	lifeMu sync.Mutex

	mu    sync.Mutex
	cfg   *config.Config
	sched *cron.Scheduler
}

type updaterOptions struct {
	Fs        afero.Fs
	Clock     cron.Clock
	Logger    *slog.Logger
	Observers []update.Observer
	OnCycle   func(cron.Cycle)

	// Lock excludes overlapping cycles, including those of other
	// processes sharing the work directory. Nil disables it.
	Lock update.Locker
}

func newUpdater(cfg *config.Config, opts updaterOptions) (*updater, error) {
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	if opts.Clock == nil {
		opts.Clock = cron.RealClock{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	u := &updater{
		fs:        opts.Fs,
		clock:     opts.Clock,
		logger:    opts.Logger,
		observers: opts.Observers,
		onCycle:   opts.OnCycle,
		lock:      opts.Lock,
	}
	sched, err := u.build(cfg)
	if err != nil {
		return nil, err
	}
	u.cfg = cfg
	u.sched = sched
	return u, nil
}

// build wires a fresh job and scheduler for cfg.
func (u *updater) build(cfg *config.Config) (*cron.Scheduler, error) {
	encodings, err := config.Encodings(cfg)
	if err != nil {
		return nil, err
	}

	clock := u.clock
	job := update.New(update.Config{
		Schedule: cfg.CronExpression,
		Fetcher: fetch.New(fetch.Config{
			URL:     cfg.SourceURL,
			Timeout: cfg.FetchTimeout,
		}, nil),
		Backups: backup.NewManager(cfg.BackupPath(),
			backup.WithFs(u.fs),
			backup.WithClock(clock.Now),
		),
		Target:    hosts.NewFile(u.fs, cfg.HostsPath),
		Merger:    hosts.NewMerger(encodings...),
		Logger:    u.logger,
		Observers: u.observers,
		Lock:      u.lock,
		Now:       clock.Now,
	})

	return cron.NewScheduler(job, cron.Options{
		PollInterval: cfg.PollInterval,
		Cooldown:     cfg.Cooldown,
		Clock:        clock,
		Logger:       u.logger,
		OnCycle:      u.onCycle,
	}), nil
}

func (u *updater) current() *cron.Scheduler {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.sched
}

// Start implements core.Starter.
func (u *updater) Start() error {
	u.lifeMu.Lock()
	defer u.lifeMu.Unlock()
	return u.current().Start()
}

// Stop implements core.Stopper.
func (u *updater) Stop(ctx context.Context) error {
	u.lifeMu.Lock()
	defer u.lifeMu.Unlock()
	return u.current().Stop(ctx)
}

// State reports the scheduler state.
func (u *updater) State() cron.State { return u.current().State() }

// Next reports the next scheduled cycle.
func (u *updater) Next() time.Time { return u.current().Next() }

// RunOnce runs a single cycle outside the schedule.
func (u *updater) RunOnce(ctx context.Context) error {
	return u.current().RunOnce(ctx)
}

// Reload implements core.Reloader. The running scheduler is stopped, which
// lets an in-flight cycle finish, and replaced by one built from cfg. When
// ctx expires before that cycle ends, the new scheduler is started anyway
// and the old loop exits on its own once the cycle returns; the cycle lock
// keeps the two from overlapping. If the new scheduler cannot start, the
// previous one is restarted.
func (u *updater) Reload(ctx context.Context, cfg *config.Config) error {
	next, err := u.build(cfg)
	if err != nil {
		return fmt.Errorf("updater: building scheduler: %w", err)
	}

	u.lifeMu.Lock()
	defer u.lifeMu.Unlock()

	u.mu.Lock()
	u.warnRestartOnly(cfg)
	prev := u.sched
	u.mu.Unlock()

	wasRunning := prev.State() == cron.StateRunning
	if err := prev.Stop(ctx); err != nil {
		u.logger.Warn("updater: previous cycle still running, replacing scheduler anyway", "error", err)
	}

	if wasRunning {
		if err := next.Start(); err != nil {
			if rerr := prev.Start(); rerr != nil {
				u.logger.Error("updater: restarting previous scheduler failed", "error", rerr)
			}
			return fmt.Errorf("updater: starting scheduler: %w", err)
		}
	}

	u.mu.Lock()
	u.sched = next
	u.cfg = cfg
	u.mu.Unlock()

	u.logger.Info("updater: configuration applied",
		"cron_expression", cfg.CronExpression,
		"source_url", cfg.SourceURL,
		"hosts_path", cfg.HostsPath,
	)
	return nil
}

// warnRestartOnly logs settings that only take effect after a restart.
// Must be called with u.mu held.
func (u *updater) warnRestartOnly(cfg *config.Config) {
	old := u.cfg
	changed := func(key string, a, b any) {
		if a != b {
			u.logger.Warn("updater: setting changed, restart required", "key", key)
		}
	}
	changed("work_dir", old.WorkDir, cfg.WorkDir)
	changed("log_file", old.LogFile, cfg.LogFile)
	changed("history", old.HistoryPath(), cfg.HistoryPath())
	changed("history.enabled", old.History.IsEnabled(), cfg.History.IsEnabled())
	changed("status.bind", old.Status.Bind, cfg.Status.Bind)
	changed("status.bearer_token", old.Status.BearerToken, cfg.Status.BearerToken)
	changed("service.name", old.Service.Name, cfg.Service.Name)
}
