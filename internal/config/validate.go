package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"

	"github.com/flemzord/hostsync/internal/cron"
	"github.com/flemzord/hostsync/internal/hosts"
	"github.com/flemzord/hostsync/internal/logging"
)

// Validate checks a loaded Config. Every problem is reported, joined.
func Validate(cfg *Config) error {
	var errs []error

	if _, err := cron.ParseSchedule(cfg.CronExpression); err != nil {
		errs = append(errs, fmt.Errorf("config: cron_expression: %w", err))
	}

	if cfg.SourceURL != "" {
		u, err := url.Parse(cfg.SourceURL)
		switch {
		case err != nil:
			errs = append(errs, fmt.Errorf("config: source_url: %w", err))
		case u.Scheme != "http" && u.Scheme != "https":
			errs = append(errs, fmt.Errorf("config: source_url: unsupported scheme %q", u.Scheme))
		case u.Host == "":
			errs = append(errs, errors.New("config: source_url: missing host"))
		}
	}

	if cfg.FetchTimeout < 0 {
		errs = append(errs, fmt.Errorf("config: fetch_timeout must be positive, got %s", cfg.FetchTimeout))
	}
	if cfg.PollInterval < 0 {
		errs = append(errs, fmt.Errorf("config: poll_interval must be positive, got %s", cfg.PollInterval))
	}
	if cfg.Cooldown < 0 {
		errs = append(errs, fmt.Errorf("config: cooldown must be positive, got %s", cfg.Cooldown))
	}

	if _, err := Encodings(cfg); err != nil {
		errs = append(errs, err)
	}

	if _, err := logging.ParseLevel(cfg.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("config: log_level: %w", err))
	}

	if cfg.Status.Bind != "" {
		if _, err := net.ResolveTCPAddr("tcp", cfg.Status.Bind); err != nil {
			errs = append(errs, fmt.Errorf("config: status.bind: invalid address %q", cfg.Status.Bind))
		}
	}

	return errors.Join(errs...)
}

// Encodings resolves the configured decode order. An empty list yields
// the default order.
func Encodings(cfg *Config) ([]hosts.Encoding, error) {
	if len(cfg.Encodings) == 0 {
		return hosts.DefaultEncodings(), nil
	}

	var errs []error
	out := make([]hosts.Encoding, 0, len(cfg.Encodings))
	for i, name := range cfg.Encodings {
		enc, err := hosts.LookupEncoding(name)
		if err != nil {
			errs = append(errs, fmt.Errorf("config: encodings[%d]: %w", i, err))
			continue
		}
		out = append(out, enc)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return out, nil
}
