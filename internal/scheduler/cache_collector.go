package scheduler

import (
	"context"
	"time"

	"github.com/MrSnakeDoc/openbinder/internal/logger"
)

const (
	// DefaultCacheTTL is how long a runtime-cached response is kept.
	DefaultCacheTTL = 7 * 24 * time.Hour
)

// CacheJanitor is the part of the offline worker the collector drives.
type CacheJanitor interface {
	Prune(ctx context.Context) (int, error)
	Evict(ctx context.Context, cutoff time.Time) (int, error)
}

// CacheCollector removes caches of retired versions and stale runtime entries.
type CacheCollector struct {
	worker    CacheJanitor
	logger    logger.Logger
	interval  time.Duration
	threshold time.Duration
	now       func() time.Time
	stopCh    chan struct{}
}

// NewCacheCollector creates a new cache collector
func NewCacheCollector(
	worker CacheJanitor,
	log logger.Logger,
	interval time.Duration,
	threshold time.Duration,
) *CacheCollector {
	if threshold == 0 {
		threshold = DefaultCacheTTL
	}

	return &CacheCollector{
		worker:    worker,
		logger:    log,
		interval:  interval,
		threshold: threshold,
		now:       time.Now,
		stopCh:    make(chan struct{}),
	}
}

// Start begins the periodic collection process
func (cc *CacheCollector) Start(ctx context.Context) error {
	if err := cc.Collect(ctx); err != nil {
		cc.logger.Warn("initial cache collection failed",
			logger.Error(err))
	}

	ticker := time.NewTicker(cc.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := cc.Collect(ctx); err != nil {
					cc.logger.Error("cache collection failed",
						logger.Error(err))
				}
			case <-cc.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop stops the collector
func (cc *CacheCollector) Stop() {
	close(cc.stopCh)
}

// Collect deletes caches left by earlier versions and evicts runtime entries
// older than the threshold.
func (cc *CacheCollector) Collect(ctx context.Context) error {
	cachesDeleted, err := cc.worker.Prune(ctx)
	if err != nil {
		return err
	}

	entriesEvicted, err := cc.worker.Evict(ctx, cc.now().Add(-cc.threshold))
	if err != nil {
		return err
	}

	if cachesDeleted+entriesEvicted > 0 {
		cc.logger.Info("cache collection completed",
			logger.Int("caches_deleted", cachesDeleted),
			logger.Int("entries_evicted", entriesEvicted))
	} else {
		cc.logger.Debug("no caches to collect")
	}
	return nil
}
