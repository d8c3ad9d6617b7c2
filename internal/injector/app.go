package injector

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"github.com/zeusync/proxyfield/internal/compositor"
	"github.com/zeusync/proxyfield/internal/config"
	"github.com/zeusync/proxyfield/internal/core/events/bus"
	"github.com/zeusync/proxyfield/internal/core/observability/log"
	"github.com/zeusync/proxyfield/internal/engine"
	"github.com/zeusync/proxyfield/internal/particle"
	"github.com/zeusync/proxyfield/internal/physics"
	"github.com/zeusync/proxyfield/internal/render"
	"github.com/zeusync/proxyfield/internal/sensor"
)

// App is the assembled pipeline. Synthetic and Terminal are nil when
// disabled in the config.
type App struct {
	Config     *config.Config
	Logger     log.Log
	Bus        bus.EventBus
	World      *physics.World
	Particles  *particle.Manager
	Compositor *compositor.Compositor
	Frames     *sensor.Latest
	Synthetic  *sensor.Synthetic
	Hub        *render.Hub
	Terminal   *render.Terminal
	Loop       *engine.Loop
}

// Run starts the frame producer, the scene stream and the render loop, and
// blocks until ctx is done, the user quits the terminal, or the loop stops.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	if a.Synthetic != nil {
		g.Go(func() error {
			err := a.Synthetic.Run(gctx, a.Frames)
			if errors.Is(err, sensor.ErrSourceClosed) {
				return nil
			}
			return err
		})
	}
	if addr := a.Config.Render.WebSocketAddr; addr != "" {
		g.Go(func() error {
			return a.Hub.ListenAndServe(gctx, addr)
		})
	}
	if a.Terminal != nil {
		go a.Terminal.WatchKeys(cancel)
	}
	g.Go(func() error {
		defer cancel()
		return a.Loop.Run(gctx)
	})

	err := g.Wait()
	if a.Terminal != nil {
		a.Terminal.Close()
	}
	return err
}
