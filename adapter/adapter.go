// Package adapter connects the game client bridge to the lobby reconciler and runs the
// supporting services next to them.
package adapter

import (
	"context"
	"fmt"
	"io"
	"lobby-autohost/applog"
	"lobby-autohost/bridge"
	"lobby-autohost/config"
	"lobby-autohost/hostproto"
	"lobby-autohost/lobby"
	"lobby-autohost/mapcatalog"
	"lobby-autohost/rating"
	"lobby-autohost/status"
	"lobby-autohost/util"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	fromGameBufferSize = 64
	catalogTimeout     = 30 * time.Second

	// The bridge outlives the reconciler so its final LeaveLobby still reaches the client.
	bridgeDrainTimeout = 2 * time.Second
)

type Adapter struct {
	ctx    context.Context
	cancel context.CancelFunc
	info   *config.Info

	fromGame   chan hostproto.Inbound
	bridge     *bridge.Server
	provider   rating.Provider
	catalog    *mapcatalog.Refresher
	fetcher    *mapcatalog.Fetcher
	reconciler *lobby.Reconciler
	status     *status.Server
}

func New(ctx context.Context, cancel context.CancelFunc, info *config.Info) (*Adapter, error) {
	a := &Adapter{
		ctx:      ctx,
		cancel:   cancel,
		info:     info,
		fromGame: make(chan hostproto.Inbound, fromGameBufferSize),
		bridge:   bridge.NewServer(info.BridgePort),
		provider: rating.New(ctx, info),
	}

	var maps lobby.MapResolver
	if info.MapCatalogUrl != "" || info.MapCatalogPath != "" {
		if err := a.setupCatalog(); err != nil {
			a.closeProvider()
			return nil, err
		}
		maps = a.catalog
	}

	a.reconciler = lobby.NewReconciler(lobby.OptionsFromConfig(info), a.bridge, a.provider, maps, nil)

	if info.StatusAddr != "" {
		a.status = status.NewServer(a.reconciler, a.reconciler.Events())
	}
	return a, nil
}

func (a *Adapter) setupCatalog() error {
	path := a.info.MapCatalogPath
	if path == "" {
		defaultPath, err := mapcatalog.DefaultPath()
		if err != nil {
			return fmt.Errorf("failed to resolve map catalog cache path: %w", err)
		}
		path = defaultPath
	}

	store := mapcatalog.NewStore(path)
	if a.info.MapCatalogUrl == "" {
		// Cache only, nothing to refresh from.
		a.catalog = mapcatalog.NewRefresher(store, nil, a.info.MapCatalogRefresh)
		if err := a.catalog.LoadCached(); err != nil {
			return fmt.Errorf("failed to load map catalog: %w", err)
		}
		return nil
	}

	a.fetcher = mapcatalog.NewFetcher(a.info.MapCatalogUrl, catalogTimeout)
	a.catalog = mapcatalog.NewRefresher(store, a.fetcher, a.info.MapCatalogRefresh)

	applog.Info("Map catalog configured",
		zap.String("mapCatalogUrl", a.info.MapCatalogUrl),
		zap.String("cachePath", store.Path()),
		zap.Duration("refreshInterval", a.info.MapCatalogRefresh),
	)
	return nil
}

func (a *Adapter) Reconciler() *lobby.Reconciler {
	return a.reconciler
}

func (a *Adapter) Bridge() *bridge.Server {
	return a.bridge
}

// Start runs every service until the adapter context is cancelled or one of them fails.
func (a *Adapter) Start() error {
	defer a.cancel()
	defer a.closeProvider()
	defer a.closeFetcher()

	group, ctx := errgroup.WithContext(a.ctx)
	bridgeJob := util.DelayedCancelContextWithJob(ctx, bridgeDrainTimeout)

	group.Go(func() error {
		defer bridgeJob.Done()
		return a.reconciler.Run(ctx)
	})

	group.Go(func() error {
		if err := a.bridge.Listen(bridgeJob.GetContext(), a.fromGame); err != nil {
			return fmt.Errorf("bridge: %w", err)
		}
		return nil
	})

	group.Go(func() error {
		a.reconciler.Consume(ctx, a.fromGame)
		return nil
	})

	if a.status != nil {
		group.Go(func() error {
			if err := a.status.ListenAndServe(ctx, a.info.StatusAddr); err != nil {
				return fmt.Errorf("status api: %w", err)
			}
			return nil
		})
	}

	if a.fetcher != nil {
		group.Go(func() error {
			a.catalog.Run(ctx)
			return nil
		})
	}

	err := group.Wait()
	if err != nil {
		applog.Error("Autohost stopped with error", zap.Error(err))
	}
	return err
}

func (a *Adapter) closeProvider() {
	closer, ok := a.provider.(io.Closer)
	if !ok {
		return
	}
	if err := closer.Close(); err != nil {
		applog.Warn("Failed to close rating provider", zap.Error(err))
	}
}

func (a *Adapter) closeFetcher() {
	if a.fetcher == nil {
		return
	}
	_ = a.fetcher.Close()
}
