package mapcatalog

import (
	"context"
	"errors"
	"io/fs"
	"lobby-autohost/applog"
	"sync"
	"time"

	"go.uber.org/zap"
)

const retryDelay = 5 * time.Minute

type source interface {
	Fetch(ctx context.Context) (Catalog, error)
}

// Refresher serves lookups from the cached catalog and keeps it current.
type Refresher struct {
	store    *Store
	source   source
	interval time.Duration
	now      func() time.Time

	mu        sync.RWMutex
	catalog   Catalog
	updatedAt time.Time
}

func NewRefresher(store *Store, source source, interval time.Duration) *Refresher {
	return &Refresher{
		store:    store,
		source:   source,
		interval: interval,
		now:      time.Now,
		catalog:  Catalog{},
	}
}

// Resolve returns the rating key of a map. A map missing from the catalog has no ratings.
func (r *Refresher) Resolve(mapName string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.catalog.Lookup(mapName)
}

func (r *Refresher) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.catalog)
}

// LoadCached reads the on-disk copy, a missing file is not an error.
func (r *Refresher) LoadCached() error {
	catalog, updatedAt, err := r.store.Load()
	if errors.Is(err, ErrNoCache) {
		return nil
	}
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.catalog = catalog
	r.updatedAt = updatedAt
	r.mu.Unlock()

	applog.Info("Loaded cached map catalog",
		zap.Int("maps", len(catalog)),
		zap.Time("updatedAt", updatedAt),
	)
	return nil
}

// Refresh downloads the catalog and rewrites the cache only when the content differs.
func (r *Refresher) Refresh(ctx context.Context) (bool, error) {
	fetched, err := r.source.Fetch(ctx)
	if err != nil {
		return false, err
	}

	now := r.now()

	r.mu.Lock()
	changed := !r.catalog.Equal(fetched)
	if changed {
		r.catalog = fetched
	}
	r.updatedAt = now
	r.mu.Unlock()

	if !changed {
		applog.Debug("Map catalog unchanged", zap.Int("maps", len(fetched)))
		err = r.store.Touch(now)
		if !errors.Is(err, fs.ErrNotExist) {
			return false, err
		}
		// Nothing cached yet, write the catalog so the check survives a restart.
	}

	if err = r.store.Save(fetched, now); err != nil {
		return changed, err
	}

	if changed {
		applog.Info("Map catalog updated", zap.Int("maps", len(fetched)))
	}
	return changed, nil
}

func (r *Refresher) due() time.Duration {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.updatedAt.IsZero() {
		return 0
	}
	wait := r.updatedAt.Add(r.interval).Sub(r.now())
	if wait < 0 {
		return 0
	}
	return wait
}

// Run refreshes whenever the cached copy is older than the interval, until ctx is done.
func (r *Refresher) Run(ctx context.Context) {
	if err := r.LoadCached(); err != nil {
		applog.Warn("Failed to load cached map catalog", zap.Error(err))
	}

	timer := time.NewTimer(r.due())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			next := r.interval
			if _, err := r.Refresh(ctx); err != nil && ctx.Err() == nil {
				applog.Warn("Failed to refresh map catalog", zap.Error(err))
				next = min(retryDelay, r.interval)
			}
			timer.Reset(next)
		}
	}
}
