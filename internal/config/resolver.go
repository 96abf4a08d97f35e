package config

import (
	"fmt"
	"path/filepath"

	"github.com/flemzord/hostsync/internal/hosts"
)

// Resolve makes WorkDir absolute, interpreting a relative value against
// baseDir, and fills HostsPath with the OS default when unset.
func Resolve(cfg *Config, baseDir string) error {
	dir := cfg.WorkDir
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(baseDir, dir)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("config: resolving work_dir %q: %w", cfg.WorkDir, err)
	}
	cfg.WorkDir = abs

	if cfg.HostsPath == "" {
		cfg.HostsPath = hosts.DefaultPath()
	}
	return nil
}

// LogPath returns the log file path, or "" when the file sink is disabled.
func (c *Config) LogPath() string {
	if c.LogFile == DisabledLogFile {
		return ""
	}
	return c.inWorkDir(c.LogFile)
}

// BackupPath returns the backup directory.
func (c *Config) BackupPath() string { return c.inWorkDir(c.BackupDir) }

// HistoryPath returns the history database path.
func (c *Config) HistoryPath() string { return c.inWorkDir(c.History.Path) }

// LockPath returns the cycle lock file, always directly under WorkDir.
func (c *Config) LockPath() string { return filepath.Join(c.WorkDir, LockFileName) }

func (c *Config) inWorkDir(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.WorkDir, p)
}
