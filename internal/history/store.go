// Package history keeps a SQLite log of update cycles.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/flemzord/hostsync/internal/update"
)

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Record is one persisted update cycle.
type Record struct {
	ID           string    `json:"id"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
	Outcome      string    `json:"outcome"`
	Stage        string    `json:"stage,omitempty"`
	Error        string    `json:"error,omitempty"`
	BackupPath   string    `json:"backup_path,omitempty"`
	Encoding     string    `json:"encoding,omitempty"`
	BytesWritten int       `json:"bytes_written"`
}

// FromReport converts an update report.
func FromReport(r update.Report) Record {
	rec := Record{
		ID:           r.ID,
		StartedAt:    r.StartedAt,
		FinishedAt:   r.FinishedAt,
		Outcome:      string(r.Outcome),
		Stage:        string(r.Stage),
		BackupPath:   r.BackupPath,
		Encoding:     r.Encoding,
		BytesWritten: r.BytesWritten,
	}
	if r.Err != nil {
		rec.Error = r.Err.Error()
	}
	return rec
}

// Store persists records.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Compile-time interface check.
var _ update.Observer = (*Store)(nil)

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Insert stores a record. Records with an existing ID are replaced.
func (s *Store) Insert(ctx context.Context, rec Record) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO runs
			(id, started_at, finished_at, outcome, stage, error, backup_path, encoding, bytes_written)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID,
		rec.StartedAt.UTC().Format(timeLayout),
		rec.FinishedAt.UTC().Format(timeLayout),
		rec.Outcome, rec.Stage, rec.Error, rec.BackupPath, rec.Encoding, rec.BytesWritten,
	)
	if err != nil {
		return fmt.Errorf("history: insert run %s: %w", rec.ID, err)
	}
	return nil
}

// ObserveRun implements update.Observer. Failures are logged, never
// propagated: history must not fail a cycle.
func (s *Store) ObserveRun(ctx context.Context, r update.Report) {
	if err := s.Insert(ctx, FromReport(r)); err != nil {
		s.logger.Error("history: recording run failed", "run_id", r.ID, "error", err)
	}
}

// Recent returns up to limit records, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, started_at, finished_at, outcome, stage, error, backup_path, encoding, bytes_written
		FROM runs
		ORDER BY started_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("history: query runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []Record
	for rows.Next() {
		var (
			rec               Record
			started, finished string
		)
		if err := rows.Scan(&rec.ID, &started, &finished, &rec.Outcome, &rec.Stage,
			&rec.Error, &rec.BackupPath, &rec.Encoding, &rec.BytesWritten); err != nil {
			return nil, fmt.Errorf("history: scan run: %w", err)
		}
		if rec.StartedAt, err = time.Parse(timeLayout, started); err != nil {
			return nil, fmt.Errorf("history: parse started_at %q: %w", started, err)
		}
		if rec.FinishedAt, err = time.Parse(timeLayout, finished); err != nil {
			return nil, fmt.Errorf("history: parse finished_at %q: %w", finished, err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: iterate runs: %w", err)
	}
	return records, nil
}

// LastSuccess returns the most recent record whose outcome is not failed.
// ok is false when there is none.
func (s *Store) LastSuccess(ctx context.Context) (rec Record, ok bool, err error) {
	var started, finished string
	err = s.db.QueryRowContext(ctx, `
		SELECT id, started_at, finished_at, outcome, backup_path, encoding, bytes_written
		FROM runs
		WHERE outcome != ?
		ORDER BY started_at DESC
		LIMIT 1`, string(update.OutcomeFailed)).
		Scan(&rec.ID, &started, &finished, &rec.Outcome, &rec.BackupPath, &rec.Encoding, &rec.BytesWritten)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("history: query last success: %w", err)
	}
	if rec.StartedAt, err = time.Parse(timeLayout, started); err != nil {
		return Record{}, false, fmt.Errorf("history: parse started_at %q: %w", started, err)
	}
	if rec.FinishedAt, err = time.Parse(timeLayout, finished); err != nil {
		return Record{}, false, fmt.Errorf("history: parse finished_at %q: %w", finished, err)
	}
	return rec, true, nil
}
