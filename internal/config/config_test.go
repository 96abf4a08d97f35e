package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/flemzord/hostsync/internal/cron"
	"github.com/flemzord/hostsync/internal/hosts"
)

func TestParse_JSONWithTabs(t *testing.T) {
	t.Parallel()

	raw := "{\n\t\"work_dir\": \"data\",\n\t\"log_file\": \"update.log\",\n\t\"backup_dir\": \"bak\",\n\t\"cron_expression\": \"*/30 * * * *\",\n\t\"fetch_timeout\": \"10s\",\n\t\"history\": {\"enabled\": false}\n}\n"
	cfg, err := Parse([]byte(raw), "config.json")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if cfg.WorkDir != "data" || cfg.LogFile != "update.log" || cfg.BackupDir != "bak" {
		t.Errorf("paths = %q %q %q", cfg.WorkDir, cfg.LogFile, cfg.BackupDir)
	}
	if cfg.CronExpression != "*/30 * * * *" {
		t.Errorf("cron = %q", cfg.CronExpression)
	}
	if cfg.FetchTimeout != 10*time.Second {
		t.Errorf("fetch_timeout = %v", cfg.FetchTimeout)
	}
	if cfg.History.IsEnabled() {
		t.Error("history should be disabled")
	}
}

func TestParse_Defaults(t *testing.T) {
	t.Parallel()

	cfg, err := Parse([]byte("{}"), "config.json")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if cfg.WorkDir != DefaultWorkDir || cfg.LogFile != DefaultLogFile || cfg.BackupDir != DefaultBackupDir {
		t.Errorf("path defaults = %+v", cfg)
	}
	if cfg.CronExpression != "0 */6 * * *" {
		t.Errorf("cron default = %q", cfg.CronExpression)
	}
	if cfg.PollInterval != time.Minute || cfg.Cooldown != 5*time.Minute || cfg.FetchTimeout != 30*time.Second {
		t.Errorf("timing defaults = %v %v %v", cfg.PollInterval, cfg.Cooldown, cfg.FetchTimeout)
	}
	if !cfg.History.IsEnabled() || cfg.History.Path != DefaultHistoryFile {
		t.Errorf("history defaults = %+v", cfg.History)
	}
	if cfg.Service.Name != "AutoHostsUpdater" {
		t.Errorf("service name = %q", cfg.Service.Name)
	}
	if err := Validate(cfg); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestParse_YAMLAndBOM(t *testing.T) {
	t.Parallel()

	raw := "\ufeffwork_dir: /srv/hostsync\nencodings: [utf-8, ansi]\nstatus:\n  bind: 127.0.0.1:9100\n"
	cfg, err := Parse([]byte(raw), "config.yaml")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.WorkDir != "/srv/hostsync" || cfg.Status.Bind != "127.0.0.1:9100" {
		t.Errorf("cfg = %+v", cfg)
	}
	if len(cfg.Encodings) != 2 {
		t.Errorf("encodings = %v", cfg.Encodings)
	}
}

func TestParse_Invalid(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{`{"work_dir": }`, "work_dir: [unterminated"} {
		if _, err := Parse([]byte(raw), "bad"); err == nil {
			t.Errorf("Parse(%q) should fail", raw)
		}
	}
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("HOSTSYNC_TEST_URL", "https://mirror.example.com/hosts")

	path := filepath.Join(t.TempDir(), "config.json")
	raw := `{"source_url": "${HOSTSYNC_TEST_URL}", "log_level": "${HOSTSYNC_TEST_LEVEL:-debug}"}`
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.SourceURL != "https://mirror.example.com/hosts" {
		t.Errorf("source_url = %q", cfg.SourceURL)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("log_level = %q", cfg.LogLevel)
	}
}

func TestLoad_UnresolvedVariable(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"source_url": "${HOSTSYNC_SURELY_UNSET_VAR}"}`), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "HOSTSYNC_SURELY_UNSET_VAR") {
		t.Fatalf("err = %v, want unresolved variable error", err)
	}
}

func TestLoad_Missing(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("err = %v, want os.ErrNotExist", err)
	}
}

func TestValidate_NeverFiringCron(t *testing.T) {
	t.Parallel()

	cfg, err := Parse([]byte(`{"cron_expression": "0 0 30 2 *"}`), "config.json")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if err := Validate(cfg); !errors.Is(err, cron.ErrInvalidSchedule) {
		t.Fatalf("err = %v, want ErrInvalidSchedule", err)
	}
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	t.Parallel()

	cfg, err := Parse([]byte(`{
		"cron_expression": "not-a-cron",
		"source_url": "ftp://example.com/hosts",
		"cooldown": "-1s",
		"encodings": ["utf-8", "klingon"],
		"log_level": "loud",
		"status": {"bind": "not an address"}
	}`), "config.json")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	err = Validate(cfg)
	if !errors.Is(err, cron.ErrInvalidSchedule) {
		t.Errorf("err should wrap ErrInvalidSchedule: %v", err)
	}
	if !errors.Is(err, hosts.ErrUnsupportedEncoding) {
		t.Errorf("err should wrap ErrUnsupportedEncoding: %v", err)
	}
	for _, want := range []string{"source_url", "cooldown", "encodings[1]", "log_level", "status.bind"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error does not mention %s: %v", want, err)
		}
	}
}

func TestResolve(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	cfg, err := Parse([]byte(`{"work_dir": "data", "history": {"path": "/var/lib/hostsync/h.db"}}`), "config.json")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if err := Resolve(cfg, base); err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	if cfg.WorkDir != filepath.Join(base, "data") {
		t.Errorf("work_dir = %q", cfg.WorkDir)
	}
	if cfg.LogPath() != filepath.Join(base, "data", DefaultLogFile) {
		t.Errorf("log path = %q", cfg.LogPath())
	}
	if cfg.BackupPath() != filepath.Join(base, "data", DefaultBackupDir) {
		t.Errorf("backup path = %q", cfg.BackupPath())
	}
	if cfg.LockPath() != filepath.Join(base, "data", LockFileName) {
		t.Errorf("lock path = %q", cfg.LockPath())
	}
	if cfg.HistoryPath() != "/var/lib/hostsync/h.db" {
		t.Errorf("history path = %q", cfg.HistoryPath())
	}
	if cfg.HostsPath != hosts.DefaultPath() {
		t.Errorf("hosts path = %q", cfg.HostsPath)
	}

	cfg.LogFile = DisabledLogFile
	if cfg.LogPath() != "" {
		t.Errorf("disabled log path = %q", cfg.LogPath())
	}
}

func TestEncodings(t *testing.T) {
	t.Parallel()

	encs, err := Encodings(&Config{Encodings: []string{"gbk", "ansi"}})
	if err != nil {
		t.Fatalf("Encodings: %v", err)
	}
	if len(encs) != 2 || encs[0].Name != "gbk" || encs[1].Name != "windows-1252" {
		t.Errorf("encodings = %+v", encs)
	}

	encs, err = Encodings(&Config{})
	if err != nil || len(encs) != len(hosts.DefaultEncodings()) {
		t.Errorf("default encodings = %+v, %v", encs, err)
	}
}
