// Package fetch retrieves the remote hosts document.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

// DefaultURL is the document fetched when no source is configured.
const DefaultURL = "https://gitlab.com/ineo6/hosts/-/raw/master/next-hosts"

const (
	defaultTimeout   = 30 * time.Second
	defaultMaxBytes  = 10 << 20
	defaultUserAgent = "hostsync"
)

// Config holds fetcher settings. Zero values fall back to defaults.
type Config struct {
	URL       string
	Timeout   time.Duration
	UserAgent string
	MaxBytes  int64
}

func (c *Config) defaults() {
	if c.URL == "" {
		c.URL = DefaultURL
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.UserAgent == "" {
		c.UserAgent = defaultUserAgent
	}
	if c.MaxBytes <= 0 {
		c.MaxBytes = defaultMaxBytes
	}
}

// Fetcher performs a single GET against a fixed URL. It never retries;
// retry policy belongs to the scheduler.
type Fetcher struct {
	cfg    Config
	client *http.Client
}

// New creates a Fetcher. A nil client gets a fresh http.Client with the
// configured timeout.
func New(cfg Config, client *http.Client) *Fetcher {
	cfg.defaults()
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &Fetcher{cfg: cfg, client: client}
}

// URL returns the fetched location.
func (f *Fetcher) URL() string { return f.cfg.URL }

// Fetch downloads the document and returns it as text.
func (f *Fetcher) Fetch(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.cfg.URL, nil)
	if err != nil {
		return "", fmt.Errorf("fetch: building request for %s: %w", f.cfg.URL, err)
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)
	req.Header.Set("Accept", "text/plain, */*")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", &Error{URL: f.cfg.URL, Kind: classify(err), Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return "", &Error{URL: f.cfg.URL, StatusCode: resp.StatusCode, Kind: ErrStatus}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.cfg.MaxBytes+1))
	if err != nil {
		return "", &Error{URL: f.cfg.URL, Kind: classify(err), Err: err}
	}
	if int64(len(body)) > f.cfg.MaxBytes {
		return "", &Error{
			URL:  f.cfg.URL,
			Kind: ErrStatus,
			Err:  fmt.Errorf("body exceeds %d bytes", f.cfg.MaxBytes),
		}
	}

	return string(body), nil
}

func classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeout
	}
	return ErrNetwork
}
