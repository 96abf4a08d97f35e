package reload

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/flemzord/hostsync/internal/config"
)

// Target applies a validated configuration. *core.App satisfies it.
type Target interface {
	Reload(ctx context.Context, cfg *config.Config) error
}

// Handler reloads configuration from disk and hands it to the target.
type Handler struct {
	target  Target
	logger  *slog.Logger
	baseDir string
}

// NewHandler creates a reload handler. baseDir resolves a relative
// work_dir, as at startup.
func NewHandler(target Target, logger *slog.Logger, baseDir string) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{target: target, logger: logger, baseDir: baseDir}
}

// HandleReload loads, resolves and validates configPath, then reloads the
// target. An invalid file leaves the running configuration in place.
func (h *Handler) HandleReload(ctx context.Context, configPath string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled before reload: %w", err)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := config.Resolve(cfg, h.baseDir); err != nil {
		return fmt.Errorf("resolving config: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	if err := h.target.Reload(ctx, cfg); err != nil {
		return fmt.Errorf("reloading components: %w", err)
	}

	h.logger.Info("configuration reloaded", "path", configPath)
	return nil
}
