package core

import (
	"context"

	"github.com/flemzord/hostsync/internal/config"
)

// Starter is implemented by components that start background work
// (goroutines, listeners). Called in registration order.
type Starter interface {
	Start() error
}

// Stopper is implemented by components that release resources. Called in
// reverse order of Start.
type Stopper interface {
	Stop(ctx context.Context) error
}

// Reloader is implemented by components that can apply a new, already
// validated configuration while running.
type Reloader interface {
	Reload(ctx context.Context, cfg *config.Config) error
}
