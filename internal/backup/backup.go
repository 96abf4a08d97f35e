// Package backup snapshots the hosts file before every mutation.
package backup

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"
)

// ErrBackup is wrapped by every error returned from Backup. A cycle that
// receives it must not touch the target file.
var ErrBackup = errors.New("backup failed")

// TimestampLayout formats the suffix of backup file names (YYYYMMDD_HHMMSS).
const TimestampLayout = "20060102_150405"

// FilePrefix is prepended to the timestamp of every backup file name.
const FilePrefix = "hosts.backup."

// Record describes a backup written to disk.
type Record struct {
	Path      string
	Size      int64
	CreatedAt time.Time
}

// Manager writes timestamped copies of the target file into Dir.
// Backups are never pruned.
type Manager struct {
	fs  afero.Fs
	dir string
	now func() time.Time
}

// Option customizes a Manager.
type Option func(*Manager)

// WithFs sets the filesystem used for reads and writes.
func WithFs(fs afero.Fs) Option {
	return func(m *Manager) { m.fs = fs }
}

// WithClock sets the time source used to name backups.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager returns a Manager writing into dir. The directory is created
// on the first backup, not here.
func NewManager(dir string, opts ...Option) *Manager {
	m := &Manager{
		fs:  afero.NewOsFs(),
		dir: dir,
		now: time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Dir returns the backup directory.
func (m *Manager) Dir() string { return m.dir }

// Backup copies the bytes of targetPath verbatim to
// {dir}/hosts.backup.{YYYYMMDD_HHMMSS}, with a .1, .2, ... suffix when that
// name is already taken.
func (m *Manager) Backup(targetPath string) (Record, error) {
	data, err := afero.ReadFile(m.fs, targetPath)
	if err != nil {
		return Record{}, fmt.Errorf("%w: reading %s: %w", ErrBackup, targetPath, err)
	}

	if err := m.fs.MkdirAll(m.dir, 0o755); err != nil {
		return Record{}, fmt.Errorf("%w: creating %s: %w", ErrBackup, m.dir, err)
	}

	mode := os.FileMode(0o644)
	if info, err := m.fs.Stat(targetPath); err == nil {
		mode = info.Mode().Perm()
	}

	created := m.now()
	path, err := m.write(filepath.Join(m.dir, FilePrefix+created.Format(TimestampLayout)), data, mode)
	if err != nil {
		return Record{}, err
	}

	return Record{Path: path, Size: int64(len(data)), CreatedAt: created}, nil
}

// maxSuffix bounds the collision suffixes tried for one timestamp.
const maxSuffix = 1000

// write creates base exclusively, or base.1, base.2, ... when a backup taken
// in the same second already exists. Existing backups are never replaced.
func (m *Manager) write(base string, data []byte, mode os.FileMode) (string, error) {
	for i := 0; i < maxSuffix; i++ {
		path := base
		if i > 0 {
			path = fmt.Sprintf("%s.%d", base, i)
		}

		f, err := m.fs.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, mode)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("%w: creating %s: %w", ErrBackup, path, err)
		}

		_, werr := f.Write(data)
		cerr := f.Close()
		if err := errors.Join(werr, cerr); err != nil {
			return "", fmt.Errorf("%w: writing %s: %w", ErrBackup, path, err)
		}
		return path, nil
	}
	return "", fmt.Errorf("%w: %s: too many backups in the same second", ErrBackup, base)
}

// List returns the backup file names in dir, oldest first. A missing
// directory yields an empty list.
func (m *Manager) List() ([]string, error) {
	entries, err := afero.ReadDir(m.fs, m.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("backup: listing %s: %w", m.dir, err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), FilePrefix) {
			continue
		}
		names = append(names, entry.Name())
	}
	return names, nil
}
