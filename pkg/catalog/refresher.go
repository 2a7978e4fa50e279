package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Refresher keeps the catalog warm by refreshing it on a fixed schedule so
// the first client request after a TTL expiry does not pay the upstream
// round trip. The request path still enforces the TTL on its own.
type Refresher struct {
	cache    *Cache
	interval time.Duration
	cron     *cron.Cron
	logger   zerolog.Logger
}

// NewRefresher creates a refresher that refreshes every interval.
func NewRefresher(cache *Cache, interval time.Duration, logger zerolog.Logger) *Refresher {
	if interval <= 0 {
		interval = cache.ttl
	}
	return &Refresher{
		cache:    cache,
		interval: interval,
		cron:     cron.New(),
		logger:   logger.With().Str("component", "catalog_refresher").Logger(),
	}
}

// Start schedules the periodic refresh and runs one refresh immediately in
// the background.
func (r *Refresher) Start() error {
	spec := fmt.Sprintf("@every %s", r.interval)
	if _, err := r.cron.AddFunc(spec, r.refresh); err != nil {
		return fmt.Errorf("schedule catalog refresh: %w", err)
	}
	r.cron.Start()
	go r.refresh()

	r.logger.Info().Dur("interval", r.interval).Msg("Catalog refresher started")
	return nil
}

// Stop halts the schedule and waits for a running refresh to finish.
func (r *Refresher) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
	r.logger.Info().Msg("Catalog refresher stopped")
}

func (r *Refresher) refresh() {
	ctx, cancel := context.WithTimeout(context.Background(), r.interval)
	defer cancel()

	if err := r.cache.Refresh(ctx); err != nil {
		r.logger.Warn().Err(err).Msg("Background catalog refresh failed")
	}
}
