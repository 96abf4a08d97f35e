package app

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/flemzord/hostsync/internal/config"
	"github.com/flemzord/hostsync/internal/cron"
	"github.com/flemzord/hostsync/internal/cron/crontest"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 30, 0, time.UTC)

func testConfig(expr string) *config.Config {
	return &config.Config{
		WorkDir:        "/work",
		BackupDir:      "backups",
		CronExpression: expr,
		SourceURL:      "http://127.0.0.1:1/hosts",
		HostsPath:      "/etc/hosts",
	}
}

func newTestUpdater(t *testing.T, cfg *config.Config, clock cron.Clock) *updater {
	t.Helper()
	u, err := newUpdater(cfg, updaterOptions{
		Fs:     afero.NewMemMapFs(),
		Clock:  clock,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("newUpdater: %v", err)
	}
	return u
}

func TestUpdater_Reload(t *testing.T) {
	t.Parallel()

	clock := crontest.NewFakeClock(epoch)
	u := newTestUpdater(t, testConfig("0 */6 * * *"), clock)

	if err := u.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = u.Stop(context.Background()) })

	clock.BlockUntil(1)
	if want := time.Date(2026, 1, 1, 6, 0, 0, 0, time.UTC); !u.Next().Equal(want) {
		t.Fatalf("Next = %v, want %v", u.Next(), want)
	}

	if err := u.Reload(t.Context(), testConfig("*/5 * * * *")); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if u.State() != cron.StateRunning {
		t.Fatalf("State = %v, want running", u.State())
	}

	// The stopped loop leaves its waiter behind.
	clock.BlockUntil(2)
	if want := time.Date(2026, 1, 1, 0, 5, 0, 0, time.UTC); !u.Next().Equal(want) {
		t.Errorf("Next = %v, want %v", u.Next(), want)
	}
}

func TestUpdater_ReloadInvalidKeepsScheduler(t *testing.T) {
	t.Parallel()

	clock := crontest.NewFakeClock(epoch)
	u := newTestUpdater(t, testConfig("0 */6 * * *"), clock)

	if err := u.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = u.Stop(context.Background()) })
	clock.BlockUntil(1)

	bad := testConfig("*/5 * * * *")
	bad.Encodings = []string{"ebcdic"}
	if err := u.Reload(t.Context(), bad); err == nil {
		t.Fatal("expected error")
	}
	if u.State() != cron.StateRunning {
		t.Errorf("State = %v, want running", u.State())
	}
	if want := time.Date(2026, 1, 1, 6, 0, 0, 0, time.UTC); !u.Next().Equal(want) {
		t.Errorf("Next = %v, want %v", u.Next(), want)
	}
}

func TestUpdater_ReloadWhileStopped(t *testing.T) {
	t.Parallel()

	u := newTestUpdater(t, testConfig("0 */6 * * *"), crontest.NewFakeClock(epoch))

	if err := u.Reload(t.Context(), testConfig("*/5 * * * *")); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if u.State() != cron.StateStopped {
		t.Errorf("State = %v, want stopped", u.State())
	}
	if !u.Next().IsZero() {
		t.Errorf("Next = %v, want zero", u.Next())
	}
}

func TestUpdater_InvalidEncodings(t *testing.T) {
	t.Parallel()

	cfg := testConfig("0 */6 * * *")
	cfg.Encodings = []string{"ebcdic"}
	if _, err := newUpdater(cfg, updaterOptions{Fs: afero.NewMemMapFs()}); err == nil {
		t.Fatal("expected error")
	}
}

// gatedFs blocks the first truncating open of path until released.
type gatedFs struct {
	afero.Fs
	path    string
	entered chan struct{}
	release chan struct{}

	enterOnce   sync.Once
	releaseOnce sync.Once
}

func newGatedFs(t *testing.T, path, content string) *gatedFs {
	t.Helper()
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, path, []byte(content), 0o644); err != nil {
		t.Fatalf("seed: %v", err)
	}
	g := &gatedFs{Fs: fs, path: path, entered: make(chan struct{}), release: make(chan struct{})}
	t.Cleanup(g.open)
	return g
}

func (g *gatedFs) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	if name == g.path && flag&os.O_TRUNC != 0 {
		g.enterOnce.Do(func() { close(g.entered) })
		<-g.release
	}
	return g.Fs.OpenFile(name, flag, perm)
}

func (g *gatedFs) open() { g.releaseOnce.Do(func() { close(g.release) }) }

// startBlockedCycle starts an updater whose first cycle stops inside the
// hosts file write.
func startBlockedCycle(t *testing.T) (*updater, *gatedFs, *crontest.FakeClock) {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "1.1.1.1 a\n")
	}))
	t.Cleanup(srv.Close)

	cfg := testConfig("*/5 * * * *")
	cfg.SourceURL = srv.URL
	fs := newGatedFs(t, cfg.HostsPath, "127.0.0.1 localhost\n")
	clock := crontest.NewFakeClock(epoch)

	u, err := newUpdater(cfg, updaterOptions{
		Fs:     fs,
		Clock:  clock,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("newUpdater: %v", err)
	}
	if err := u.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = u.Stop(context.Background()) })

	clock.BlockUntil(1)
	clock.Advance(4*time.Minute + 30*time.Second)
	select {
	case <-fs.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("cycle never reached the hosts write")
	}
	return u, fs, clock
}

func TestUpdater_ReloadDoesNotBlockReaders(t *testing.T) {
	t.Parallel()

	u, fs, _ := startBlockedCycle(t)

	done := make(chan error, 1)
	go func() { done <- u.Reload(context.Background(), testConfig("0 */6 * * *")) }()

	// State must stay readable while Reload waits for the cycle.
	deadline := time.Now().Add(5 * time.Second)
	for u.State() != cron.StateStopPending {
		if time.Now().After(deadline) {
			t.Fatalf("State = %v, want stop pending during reload", u.State())
		}
		time.Sleep(time.Millisecond)
	}
	_ = u.Next()

	fs.open()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Reload: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Reload did not return after the cycle finished")
	}
	if u.State() != cron.StateRunning {
		t.Errorf("State = %v, want running", u.State())
	}

	data, err := afero.ReadFile(fs, "/etc/hosts")
	if err != nil {
		t.Fatalf("read hosts: %v", err)
	}
	if !strings.Contains(string(data), "1.1.1.1 a") {
		t.Errorf("in-flight cycle did not write the hosts file: %q", data)
	}
}

func TestUpdater_ReloadStopTimeoutStillSwaps(t *testing.T) {
	t.Parallel()

	u, fs, _ := startBlockedCycle(t)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := u.Reload(ctx, testConfig("0 */6 * * *")); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if u.State() != cron.StateRunning {
		t.Fatalf("State = %v, want running", u.State())
	}
	if want := time.Date(2026, 1, 1, 6, 0, 0, 0, time.UTC); !u.Next().Equal(want) {
		t.Errorf("Next = %v, want %v", u.Next(), want)
	}

	fs.open()
	deadline := time.Now().Add(5 * time.Second)
	for {
		data, err := afero.ReadFile(fs, "/etc/hosts")
		if err != nil {
			t.Fatalf("read hosts: %v", err)
		}
		if strings.Contains(string(data), "1.1.1.1 a") {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("previous cycle never completed its write")
		}
		time.Sleep(time.Millisecond)
	}
}
