// Package update implements the hosts update cycle: fetch the remote list,
// back up the target file, merge, and write the result.
package update

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/flemzord/hostsync/internal/backup"
	"github.com/flemzord/hostsync/internal/cron"
	"github.com/flemzord/hostsync/internal/hosts"
	"github.com/flemzord/hostsync/internal/lockfile"
)

// JobName identifies the update job in logs and metrics.
const JobName = "hosts_update"

// Outcome summarizes a finished cycle.
type Outcome string

// Cycle outcomes.
const (
	OutcomeUpdated   Outcome = "updated"
	OutcomeUnchanged Outcome = "unchanged"
	OutcomeFailed    Outcome = "failed"
)

// Fetcher retrieves the remote document.
type Fetcher interface {
	Fetch(ctx context.Context) (string, error)
}

// Backups snapshots the target file.
type Backups interface {
	Backup(targetPath string) (backup.Record, error)
}

// Target is the file being managed.
type Target interface {
	Path() string
	Read() ([]byte, error)
	Write(data []byte) error
}

// Merger computes the new target content.
type Merger interface {
	Merge(old []byte, remote string) (hosts.Result, error)
}

// Locker excludes concurrent cycles across processes.
type Locker interface {
	Acquire() (release func() error, err error)
}

// Report describes one cycle. Stage and Err are set only on failure.
type Report struct {
	ID           string
	StartedAt    time.Time
	FinishedAt   time.Time
	Outcome      Outcome
	Stage        Stage
	Err          error
	BackupPath   string
	Encoding     string
	BytesWritten int
}

// Observer is notified after every cycle.
type Observer interface {
	ObserveRun(ctx context.Context, r Report)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, r Report)

// ObserveRun implements Observer.
func (f ObserverFunc) ObserveRun(ctx context.Context, r Report) { f(ctx, r) }

// Config wires a Job.
type Config struct {
	Schedule  string
	Fetcher   Fetcher
	Backups   Backups
	Target    Target
	Merger    Merger
	Logger    *slog.Logger
	Observers []Observer

	// Lock is held for the whole cycle when set.
	Lock Locker

	// Now defaults to time.Now.
	Now func() time.Time
}

// Job is the hosts update cycle as a cron.Job.
type Job struct {
	cfg Config
}

// Compile-time interface check.
var _ cron.Job = (*Job)(nil)

// New creates a Job.
func New(cfg Config) *Job {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Merger == nil {
		cfg.Merger = hosts.NewMerger()
	}
	return &Job{cfg: cfg}
}

// Name implements cron.Job.
func (j *Job) Name() string { return JobName }

// Schedule implements cron.Job.
func (j *Job) Schedule() string { return j.cfg.Schedule }

// Run implements cron.Job. Once the backup has been taken the cycle no
// longer observes ctx cancellation, so a stop request never interrupts the
// write. A held cycle lock fails Run with cron.ErrCycleInProgress before
// anything is fetched or reported.
func (j *Job) Run(ctx context.Context) error {
	if j.cfg.Lock != nil {
		release, err := j.cfg.Lock.Acquire()
		if errors.Is(err, lockfile.ErrLocked) {
			return fmt.Errorf("update: %w: %w", cron.ErrCycleInProgress, err)
		}
		if err != nil {
			return fmt.Errorf("update: acquiring cycle lock: %w", err)
		}
		defer func() {
			if err := release(); err != nil {
				j.cfg.Logger.Warn("update: releasing cycle lock", "error", err)
			}
		}()
	}

	rep := Report{ID: uuid.NewString(), StartedAt: j.cfg.Now()}
	log := j.cfg.Logger.With("run_id", rep.ID)

	err := j.run(ctx, log, &rep)

	rep.FinishedAt = j.cfg.Now()
	if err != nil {
		rep.Outcome = OutcomeFailed
		rep.Err = err
		var se *StageError
		if errors.As(err, &se) {
			rep.Stage = se.Stage
		}
	}
	for _, o := range j.cfg.Observers {
		o.ObserveRun(context.WithoutCancel(ctx), rep)
	}
	return err
}

func (j *Job) run(ctx context.Context, log *slog.Logger, rep *Report) error {
	log.Info("update: fetching remote hosts")
	remote, err := j.cfg.Fetcher.Fetch(ctx)
	if err != nil {
		return &StageError{Stage: StageFetch, Err: err}
	}

	if err := ctx.Err(); err != nil {
		return &StageError{Stage: StageBackup, Err: fmt.Errorf("cancelled before backup: %w", err)}
	}

	path := j.cfg.Target.Path()
	rec, err := j.cfg.Backups.Backup(path)
	if err != nil {
		return &StageError{Stage: StageBackup, Err: err}
	}
	rep.BackupPath = rec.Path
	log.Info("update: backup created", "path", rec.Path, "size", rec.Size)

	old, err := j.cfg.Target.Read()
	if err != nil {
		return &StageError{Stage: StageMerge, Err: err}
	}

	res, err := j.cfg.Merger.Merge(old, remote)
	if err != nil {
		return &StageError{Stage: StageMerge, Err: err}
	}
	rep.Encoding = res.Encoding

	if bytes.Equal(res.Content, old) {
		rep.Outcome = OutcomeUnchanged
		log.Info("update: hosts file already up to date", "path", path, "encoding", res.Encoding)
		return nil
	}

	if err := j.cfg.Target.Write(res.Content); err != nil {
		return &StageError{Stage: StageWrite, Err: err}
	}
	rep.Outcome = OutcomeUpdated
	rep.BytesWritten = len(res.Content)
	log.Info("update: hosts file updated", "path", path, "encoding", res.Encoding, "bytes", len(res.Content))
	return nil
}
