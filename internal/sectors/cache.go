package sectors

import (
	"context"
	"sync"
	"time"

	"sectorindex/internal/contracts"
	"sectorindex/pkg/logger"
)

// Cache holds an atomically swapped view of sector definitions and
// membership. Refresh replaces the table wholesale; readers never observe
// a half-updated mapping. A calculation cycle may run against a table up
// to one refresh interval stale, which is an accepted trade-off.
type Cache struct {
	repo   contracts.SectorRepository
	logger *logger.Logger

	mu        sync.RWMutex
	table     *contracts.SectorTable
	refreshed time.Time
}

// NewCache creates an empty cache; call Refresh before first use.
func NewCache(repo contracts.SectorRepository, log *logger.Logger) *Cache {
	return &Cache{repo: repo, logger: log}
}

// Refresh fetches the full sector table and swaps it in. On failure the
// previously published table stays in place.
func (c *Cache) Refresh(ctx context.Context) error {
	table, err := c.repo.FetchAll(ctx)
	if err != nil {
		c.logger.WithError(err).Error("Sector cache refresh failed, keeping previous table")
		return err
	}

	c.mu.Lock()
	c.table = table
	c.refreshed = time.Now()
	c.mu.Unlock()

	members := 0
	for _, companies := range table.Members {
		members += len(companies)
	}
	c.logger.WithFields(map[string]interface{}{
		"sectors": len(table.Sectors),
		"members": members,
	}).Info("Sector cache refreshed")

	return nil
}

// Get returns the current table. Safe to call concurrently with Refresh.
func (c *Cache) Get() (*contracts.SectorTable, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.table == nil {
		return nil, contracts.ErrSectorCacheEmpty
	}
	return c.table, nil
}

// Age returns how long ago the table was last refreshed.
func (c *Cache) Age() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.refreshed.IsZero() {
		return 0
	}
	return time.Since(c.refreshed)
}
