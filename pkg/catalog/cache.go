// Package catalog maintains the time-boxed cache of free-tier models exposed
// to clients.
package catalog

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/madlen/chat-backend/internal/observability"
	"github.com/madlen/chat-backend/pkg/openrouter"
)

// DefaultTTL bounds how long a cached catalog is served.
const DefaultTTL = 5 * time.Minute

// Lister is the slice of the gateway the catalog needs.
type Lister interface {
	ListModels(ctx context.Context) ([]openrouter.Model, error)
}

// ModelSummary is the projection of a model record served to clients.
type ModelSummary struct {
	ID            string             `json:"id"`
	Name          string             `json:"name,omitempty"`
	Description   string             `json:"description,omitempty"`
	ContextLength int                `json:"context_length,omitempty"`
	Pricing       openrouter.Pricing `json:"pricing"`
}

// Cache is a process-wide, single-slot TTL cache of the free-tier model
// list. A stale or empty slot triggers a refresh through the gateway.
type Cache struct {
	lister Lister
	ttl    time.Duration
	now    func() time.Time
	logger zerolog.Logger

	mu        sync.Mutex
	items     []ModelSummary
	expiresAt time.Time
}

// New creates a catalog cache with the given TTL.
func New(lister Lister, ttl time.Duration, logger zerolog.Logger) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		lister: lister,
		ttl:    ttl,
		now:    time.Now,
		logger: logger.With().Str("component", "catalog").Logger(),
	}
}

// Models returns the free-tier model list, refreshing it when the cached
// slot is stale or empty. The second return value reports a cache hit.
func (c *Cache) Models(ctx context.Context) ([]ModelSummary, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.now().Before(c.expiresAt) && len(c.items) > 0 {
		return append([]ModelSummary(nil), c.items...), true, nil
	}

	items, err := c.refreshLocked(ctx)
	if err != nil {
		return nil, false, err
	}
	return append([]ModelSummary(nil), items...), false, nil
}

// Refresh forces a catalog refresh regardless of the slot's age.
func (c *Cache) Refresh(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, err := c.refreshLocked(ctx)
	return err
}

func (c *Cache) refreshLocked(ctx context.Context) ([]ModelSummary, error) {
	models, err := c.lister.ListModels(ctx)
	if err != nil {
		observability.IncCatalogRefresh("error")
		return nil, err
	}

	free := make([]ModelSummary, 0, len(models))
	for _, m := range models {
		if !m.Pricing.IsFree() {
			continue
		}
		free = append(free, ModelSummary{
			ID:            m.ID,
			Name:          m.Name,
			Description:   m.Description,
			ContextLength: m.ContextLength,
			Pricing:       m.Pricing,
		})
	}

	c.items = free
	c.expiresAt = c.now().Add(c.ttl)

	observability.IncCatalogRefresh("ok")
	c.logger.Debug().
		Int("total", len(models)).
		Int("free", len(free)).
		Time("expires_at", c.expiresAt).
		Msg("Model catalog refreshed")
	return free, nil
}
