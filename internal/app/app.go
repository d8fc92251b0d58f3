package app

import (
	"context"

	"siphon/internal/catalog"
	"siphon/internal/engine"
	"siphon/internal/scheduler"
	"siphon/internal/transport"
)

type App struct {
	cfg       Config
	cat       *catalog.Memory
	pool      *scheduler.Pool
	engines   []*engine.Engine
	transport *transport.Server
}

// Run starts every engine and serves the control endpoint until ctx is done.
func (a *App) Run(ctx context.Context) error {
	for _, e := range a.engines {
		e.Startup()
	}

	go func() {
		<-ctx.Done()
		for _, e := range a.engines {
			e.Shutdown()
		}
		a.pool.Close()
		a.transport.Stop()
	}()

	return a.transport.Serve()
}

func (a *App) closePartial() {
	for _, e := range a.engines {
		e.Shutdown()
	}
	if a.pool != nil {
		a.pool.Close()
	}
	if a.transport != nil {
		a.transport.Stop()
	}
}
