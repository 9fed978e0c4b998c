package telemetry

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/rs/zerolog/log"

	"github.com/deskwise/deskwise/internal/common/apperrors"
	"github.com/deskwise/deskwise/internal/desksrv/deskcommon"
)

const fetchAttempts = 3

type cacheEntry struct {
	state     deskcommon.DeskState
	fetchedAt time.Time
}

// Cache wraps a Source and serves recently read desk states without
// hitting the controller on every request. Entries expire after ttl; a
// background refresher can keep hot desks current between requests.
type Cache struct {
	source Source
	ttl    time.Duration

	mu      sync.RWMutex
	entries map[string]cacheEntry
}

// NewCache wraps a source with a read-through cache. A zero ttl disables
// caching and every read goes to the source.
func NewCache(source Source, ttl time.Duration) *Cache {
	return &Cache{
		source:  source,
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
	}
}

// GetState returns the cached state if fresh, otherwise reads through to
// the source. Transient controller failures are retried before being
// reported; unknown desks are not.
func (c *Cache) GetState(ctx context.Context, deskID string) (deskcommon.DeskState, apperrors.Error) {
	if c.ttl > 0 {
		c.mu.RLock()
		entry, ok := c.entries[deskID]
		c.mu.RUnlock()
		if ok && time.Since(entry.fetchedAt) < c.ttl {
			return entry.state, nil
		}
	}
	return c.fetch(ctx, deskID)
}

// Invalidate drops the cached entry for a desk.
func (c *Cache) Invalidate(deskID string) {
	c.mu.Lock()
	delete(c.entries, deskID)
	c.mu.Unlock()
}

// StartRefresher runs a background loop that re-reads every cached desk
// each interval, keeping entries warm between requests. Returns once ctx
// is canceled.
func (c *Cache) StartRefresher(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, deskID := range c.cachedDesks() {
				if _, err := c.fetch(ctx, deskID); err != nil {
					log.Ctx(ctx).Warn().Err(err).Str("desk_id", deskID).Msg("telemetry refresh failed")
				}
			}
		}
	}
}

func (c *Cache) cachedDesks() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	desks := make([]string, 0, len(c.entries))
	for deskID := range c.entries {
		desks = append(desks, deskID)
	}
	return desks
}

func (c *Cache) fetch(ctx context.Context, deskID string) (deskcommon.DeskState, apperrors.Error) {
	state, err := retry.DoWithData(
		func() (deskcommon.DeskState, error) {
			state, err := c.source.GetState(ctx, deskID)
			if err != nil {
				return state, err
			}
			return state, nil
		},
		retry.Context(ctx),
		retry.Attempts(fetchAttempts),
		retry.Delay(100*time.Millisecond),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			// Unknown desks stay unknown; only transient failures retry.
			return !errors.Is(err, ErrDeskNotFound)
		}),
	)
	if err != nil {
		if appErr, ok := err.(apperrors.Error); ok {
			return state, appErr
		}
		return state, ErrUnavailable.Err(err)
	}

	c.mu.Lock()
	c.entries[deskID] = cacheEntry{state: state, fetchedAt: time.Now()}
	c.mu.Unlock()
	return state, nil
}
