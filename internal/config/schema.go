// Package config handles configuration loading, environment variable
// expansion, defaults and validation for hostsync.
package config

import "time"

// Defaults applied by Load.
const (
	DefaultWorkDir        = "."
	DefaultLogFile        = "hostsync.log"
	DefaultBackupDir      = "backups"
	DefaultCronExpression = "0 */6 * * *"
	DefaultFetchTimeout   = 30 * time.Second
	DefaultPollInterval   = 60 * time.Second
	DefaultCooldown       = 5 * time.Minute
	DefaultHistoryFile    = "history.db"
	DefaultServiceName    = "AutoHostsUpdater"
)

// DisabledLogFile as log_file turns the log file sink off.
const DisabledLogFile = "-"

// LockFileName is the cycle lock file created in WorkDir.
const LockFileName = "hostsync.lock"

// Config is the top-level configuration structure. The file is JSON; YAML
// is accepted as well.
type Config struct {
	// WorkDir holds the log file, backups and history. A relative value
	// is resolved against the directory of the executable.
	WorkDir string `yaml:"work_dir"`

	LogFile        string `yaml:"log_file"`
	BackupDir      string `yaml:"backup_dir"`
	CronExpression string `yaml:"cron_expression"`

	SourceURL    string        `yaml:"source_url"`
	HostsPath    string        `yaml:"hosts_path"`
	FetchTimeout time.Duration `yaml:"fetch_timeout"`

	PollInterval time.Duration `yaml:"poll_interval"`
	Cooldown     time.Duration `yaml:"cooldown"`

	// Encodings is the decode preference order for the hosts file.
	Encodings []string `yaml:"encodings"`

	LogLevel string `yaml:"log_level"`

	History HistoryConfig `yaml:"history"`
	Status  StatusConfig  `yaml:"status"`
	Service ServiceConfig `yaml:"service"`
}

// HistoryConfig controls the run history database.
type HistoryConfig struct {
	// Enabled defaults to true.
	Enabled *bool  `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// IsEnabled reports whether history is on.
func (h HistoryConfig) IsEnabled() bool {
	return h.Enabled == nil || *h.Enabled
}

// StatusConfig controls the status HTTP server. An empty Bind disables it.
type StatusConfig struct {
	Bind        string `yaml:"bind"`
	BearerToken string `yaml:"bearer_token"`
}

// ServiceConfig controls OS service registration.
type ServiceConfig struct {
	Name string `yaml:"name"`
}

func (c *Config) defaults() {
	if c.WorkDir == "" {
		c.WorkDir = DefaultWorkDir
	}
	if c.LogFile == "" {
		c.LogFile = DefaultLogFile
	}
	if c.BackupDir == "" {
		c.BackupDir = DefaultBackupDir
	}
	if c.CronExpression == "" {
		c.CronExpression = DefaultCronExpression
	}
	if c.FetchTimeout == 0 {
		c.FetchTimeout = DefaultFetchTimeout
	}
	if c.PollInterval == 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.Cooldown == 0 {
		c.Cooldown = DefaultCooldown
	}
	if c.History.Path == "" {
		c.History.Path = DefaultHistoryFile
	}
	if c.Service.Name == "" {
		c.Service.Name = DefaultServiceName
	}
}
