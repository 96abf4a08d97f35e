// Package service hosts the updater under the OS service manager (Windows
// SCM, systemd, launchd) through kardianos/service, and exposes the control
// actions used by the CLI.
package service

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/kardianos/service"
)

// Fixed service metadata. Only the service name is configurable.
const (
	DisplayName = "Auto Hosts Updater Service"
	Description = "Automatically update hosts file periodically"
)

// ErrUnknownAction is returned by Control for an action kardianos does not
// support.
var ErrUnknownAction = errors.New("service: unknown action")

// Runner is the application hosted by the service. Start must not block.
// *core.App satisfies it.
type Runner interface {
	Start() error
	Stop()
}

// Program implements service.Interface around a Runner.
//
// The lifecycle follows the service manager model:
//
//	Stopped -> Start -> Running -> Stop -> Stopped
//
// A second Start or a Stop without Start is a no-op. Runner may be set
// after the Program has been handed to New, but before the service runs.
type Program struct {
	Runner Runner
	Logger *slog.Logger

	mu      sync.Mutex
	running bool
}

// Compile-time interface check.
var _ service.Interface = (*Program)(nil)

// ErrNoRunner is returned by Start when the Program has no Runner.
var ErrNoRunner = errors.New("service: no runner")

// NewProgram creates a program for runner. A nil logger uses slog.Default().
func NewProgram(runner Runner, logger *slog.Logger) *Program {
	return &Program{Runner: runner, Logger: logger}
}

func (p *Program) logger() *slog.Logger {
	if p.Logger == nil {
		return slog.Default()
	}
	return p.Logger
}

// Start implements service.Interface.
func (p *Program) Start(s service.Service) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return nil
	}
	if p.Runner == nil {
		return ErrNoRunner
	}
	p.logger().Info("service: starting", "platform", platform(s), "interactive", service.Interactive())
	if err := p.Runner.Start(); err != nil {
		return fmt.Errorf("service: starting: %w", err)
	}
	p.running = true
	p.logger().Info("service: running")
	return nil
}

// Stop implements service.Interface. It returns once the runner has
// stopped.
func (p *Program) Stop(_ service.Service) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return nil
	}
	p.logger().Info("service: stopping")
	p.Runner.Stop()
	p.running = false
	p.logger().Info("service: stopped")
	return nil
}

// Running reports whether the runner has been started.
func (p *Program) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// NewConfig returns the service definition for name. args are passed to the
// executable when the service manager launches it.
func NewConfig(name string, args []string) *service.Config {
	return &service.Config{
		Name:        name,
		DisplayName: DisplayName,
		Description: Description,
		Arguments:   args,
	}
}

// New binds program to the service manager under cfg.
func New(program service.Interface, cfg *service.Config) (service.Service, error) {
	svc, err := service.New(program, cfg)
	if err != nil {
		return nil, fmt.Errorf("service: creating %q: %w", cfg.Name, err)
	}
	return svc, nil
}

// Control runs one of service.ControlAction (start, stop, restart,
// install, uninstall) against svc.
func Control(svc service.Service, action string) error {
	if !slices.Contains(service.ControlAction[:], action) {
		return fmt.Errorf("%w %q (want one of %v)", ErrUnknownAction, action, service.ControlAction)
	}
	if err := service.Control(svc, action); err != nil {
		return fmt.Errorf("service: %s: %w", action, err)
	}
	return nil
}

// Status returns a human-readable status. An uninstalled service reports
// "not installed" rather than an error.
func Status(svc service.Service) (string, error) {
	st, err := svc.Status()
	if err != nil {
		if errors.Is(err, service.ErrNotInstalled) {
			return "not installed", nil
		}
		return "", fmt.Errorf("service: querying status: %w", err)
	}
	return StatusString(st), nil
}

// StatusString names a service.Status.
func StatusString(st service.Status) string {
	switch st {
	case service.StatusRunning:
		return "running"
	case service.StatusStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

func platform(s service.Service) string {
	if s == nil {
		return service.Platform()
	}
	return s.Platform()
}
