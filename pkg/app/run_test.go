package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/spf13/afero"

	"github.com/flemzord/hostsync/internal/config"
	"github.com/flemzord/hostsync/internal/cron"
	"github.com/flemzord/hostsync/internal/hosts"
	"github.com/flemzord/hostsync/internal/lockfile"
	"github.com/flemzord/hostsync/internal/update"
)

func writeConfig(t *testing.T, dir string, values map[string]any) string {
	t.Helper()
	raw, err := json.MarshalIndent(values, "", "\t")
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	path := filepath.Join(dir, ConfigFileName)
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestResolveConfigPath_Explicit(t *testing.T) {
	t.Parallel()

	got, err := ResolveConfigPath("/opt/hostsync/custom.json")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "/opt/hostsync/custom.json" {
		t.Errorf("got %q", got)
	}
}

func TestResolveConfigPath_WorkingDirectory(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, map[string]any{})
	t.Chdir(dir)

	got, err := ResolveConfigPath("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != ConfigFileName {
		t.Errorf("got %q, want %q", got, ConfigFileName)
	}
}

func TestResolveConfigPath_NotFound(t *testing.T) {
	t.Chdir(t.TempDir())

	if _, err := ResolveConfigPath(""); err == nil {
		t.Error("expected error when no config file found")
	}
}

func TestLoadConfig_ResolvesWorkDir(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeConfig(t, dir, map[string]any{
		"work_dir":   "data",
		"hosts_path": "/etc/hosts",
	})

	cfg, got, err := LoadConfig(RunParams{ConfigPath: path, BaseDir: dir})
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if got != path {
		t.Errorf("path = %q, want %q", got, path)
	}
	if want := filepath.Join(dir, "data"); cfg.WorkDir != want {
		t.Errorf("WorkDir = %q, want %q", cfg.WorkDir, want)
	}
	if want := filepath.Join(dir, "data", "backups"); cfg.BackupPath() != want {
		t.Errorf("BackupPath = %q, want %q", cfg.BackupPath(), want)
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeConfig(t, dir, map[string]any{"cron_expression": "every day"})

	if _, _, err := LoadConfig(RunParams{ConfigPath: path, BaseDir: dir}); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestLoadConfig_Missing(t *testing.T) {
	t.Parallel()

	_, _, err := LoadConfig(RunParams{ConfigPath: "/nonexistent/config.json", BaseDir: t.TempDir()})
	if err == nil {
		t.Fatal("expected error for missing config")
	}
}

func TestRunOnce(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "# remote\n140.82.113.3 github.com\n")
	}))
	defer srv.Close()

	dir := t.TempDir()
	path := writeConfig(t, dir, map[string]any{
		"work_dir":   dir,
		"log_file":   "-",
		"source_url": srv.URL,
		"hosts_path": "/etc/hosts",
	})

	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "/etc/hosts", []byte("127.0.0.1 localhost\n"), 0o644); err != nil {
		t.Fatalf("seed hosts: %v", err)
	}

	params := RunParams{ConfigPath: path, BaseDir: dir, Fs: fs, Stderr: io.Discard}
	rep, err := RunOnce(t.Context(), params)
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if rep.Outcome != update.OutcomeUpdated {
		t.Errorf("outcome = %q, want %q", rep.Outcome, update.OutcomeUpdated)
	}

	data, err := afero.ReadFile(fs, "/etc/hosts")
	if err != nil {
		t.Fatalf("read hosts: %v", err)
	}
	want := "127.0.0.1 localhost\n\n" + hosts.StartMarker + "\n# remote\n140.82.113.3 github.com\n" + hosts.EndMarker
	if string(data) != want {
		t.Errorf("hosts = %q, want %q", data, want)
	}

	backups, err := afero.ReadDir(fs, filepath.Join(dir, "backups"))
	if err != nil {
		t.Fatalf("read backups: %v", err)
	}
	if len(backups) != 1 || !strings.HasPrefix(backups[0].Name(), "hosts.backup.") {
		t.Errorf("backups = %v", backups)
	}

	records, err := Recent(t.Context(), params, 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("records = %d, want 1", len(records))
	}
	if records[0].ID != rep.ID || records[0].Outcome != "updated" {
		t.Errorf("record = %+v", records[0])
	}
}

func TestRunOnce_FetchFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}))
	defer srv.Close()

	dir := t.TempDir()
	path := writeConfig(t, dir, map[string]any{
		"work_dir":   dir,
		"log_file":   "-",
		"source_url": srv.URL,
		"hosts_path": "/etc/hosts",
		"history":    map[string]any{"enabled": false},
	})

	fs := afero.NewMemMapFs()
	original := []byte("127.0.0.1 localhost\n")
	if err := afero.WriteFile(fs, "/etc/hosts", original, 0o644); err != nil {
		t.Fatalf("seed hosts: %v", err)
	}

	params := RunParams{ConfigPath: path, BaseDir: dir, Fs: fs, Stderr: io.Discard}
	rep, err := RunOnce(t.Context(), params)
	if err == nil {
		t.Fatal("expected error")
	}
	if rep.Outcome != update.OutcomeFailed || rep.Stage != update.StageFetch {
		t.Errorf("report = %+v", rep)
	}

	data, _ := afero.ReadFile(fs, "/etc/hosts")
	if string(data) != string(original) {
		t.Errorf("hosts modified: %q", data)
	}

	if _, err := Recent(t.Context(), params, 10); err == nil {
		t.Error("expected error from Recent with history disabled")
	}
}

func TestRunOnce_LogFile(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "1.1.1.1 a\n")
	}))
	defer srv.Close()

	dir := t.TempDir()
	path := writeConfig(t, dir, map[string]any{
		"work_dir":   dir,
		"source_url": srv.URL,
		"hosts_path": "/etc/hosts",
		"history":    map[string]any{"enabled": false},
	})

	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "/etc/hosts", nil, 0o644); err != nil {
		t.Fatalf("seed hosts: %v", err)
	}

	params := RunParams{ConfigPath: path, BaseDir: dir, Fs: fs, Stderr: io.Discard}
	if _, err := RunOnce(t.Context(), params); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	logData, err := afero.ReadFile(fs, filepath.Join(dir, "hostsync.log"))
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(logData), "run_id=") {
		t.Errorf("log file lacks cycle records:\n%s", logData)
	}
}

func TestRunOnce_LockHeld(t *testing.T) {
	t.Parallel()

	var fetched atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fetched.Store(true)
		_, _ = io.WriteString(w, "1.1.1.1 a\n")
	}))
	defer srv.Close()

	dir := t.TempDir()
	path := writeConfig(t, dir, map[string]any{
		"work_dir":   dir,
		"log_file":   "-",
		"source_url": srv.URL,
		"hosts_path": "/etc/hosts",
		"history":    map[string]any{"enabled": false},
	})

	fs := afero.NewMemMapFs()
	original := []byte("127.0.0.1 localhost\n")
	if err := afero.WriteFile(fs, "/etc/hosts", original, 0o644); err != nil {
		t.Fatalf("seed hosts: %v", err)
	}

	// Another instance sharing the work directory holds the lock.
	release, err := lockfile.New(filepath.Join(dir, config.LockFileName)).Acquire()
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	defer func() { _ = release() }()

	params := RunParams{ConfigPath: path, BaseDir: dir, Fs: fs, Stderr: io.Discard}
	if _, err := RunOnce(t.Context(), params); !errors.Is(err, cron.ErrCycleInProgress) {
		t.Fatalf("RunOnce err = %v, want ErrCycleInProgress", err)
	}
	if fetched.Load() {
		t.Error("source fetched while another cycle held the lock")
	}
	data, _ := afero.ReadFile(fs, "/etc/hosts")
	if string(data) != string(original) {
		t.Errorf("hosts modified: %q", data)
	}

	if err := release(); err != nil {
		t.Fatalf("release: %v", err)
	}
	if _, err := RunOnce(t.Context(), params); err != nil {
		t.Fatalf("RunOnce after release: %v", err)
	}
}

type fakeSystemLogger struct {
	errors []string
}

func (l *fakeSystemLogger) Error(v ...any) error {
	l.errors = append(l.errors, fmt.Sprint(v...))
	return nil
}
func (l *fakeSystemLogger) Warning(...any) error          { return nil }
func (l *fakeSystemLogger) Info(...any) error             { return nil }
func (l *fakeSystemLogger) Warningf(string, ...any) error { return nil }
func (l *fakeSystemLogger) Infof(string, ...any) error    { return nil }

func (l *fakeSystemLogger) Errorf(format string, a ...any) error {
	l.errors = append(l.errors, fmt.Sprintf(format, a...))
	return nil
}

func TestReportStartupError(t *testing.T) {
	t.Parallel()

	_, _, err := LoadConfig(RunParams{ConfigPath: "/nonexistent/config.json", BaseDir: t.TempDir()})
	if err == nil {
		t.Fatal("expected error for missing config")
	}

	sys := &fakeSystemLogger{}
	reportStartupError(sys, err)
	if len(sys.errors) != 1 || !strings.Contains(sys.errors[0], "/nonexistent/config.json") {
		t.Errorf("system log = %q", sys.errors)
	}

	// Interactive runs have no system logger.
	reportStartupError(nil, err)
}

func TestRun_InvalidConfigReturnsError(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeConfig(t, dir, map[string]any{
		"work_dir":        dir,
		"cron_expression": "0 0 30 2 *",
	})
	err := Run(RunParams{ConfigPath: path, BaseDir: dir, Stderr: io.Discard})
	if !errors.Is(err, cron.ErrInvalidSchedule) {
		t.Fatalf("Run err = %v, want ErrInvalidSchedule", err)
	}
}
