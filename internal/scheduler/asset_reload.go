package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/MrSnakeDoc/openbinder/internal/logger"
	"github.com/MrSnakeDoc/openbinder/internal/sources/manifest"
)

// Installer installs a manifest version into the offline cache.
type Installer interface {
	Install(ctx context.Context, m *manifest.Manifest) error
}

// AssetReloader periodically re-reads the asset manifest and installs new
// versions.
type AssetReloader struct {
	loader        *manifest.Loader
	worker        Installer
	logger        logger.Logger
	interval      time.Duration
	stopCh        chan struct{}
	manualTrigger chan struct{}
}

// NewAssetReloader creates a new asset reloader
func NewAssetReloader(
	manifestFile string,
	worker Installer,
	log logger.Logger,
	interval time.Duration,
	manualTrigger chan struct{},
) *AssetReloader {
	return &AssetReloader{
		loader:        manifest.NewLoader(manifestFile),
		worker:        worker,
		logger:        log,
		interval:      interval,
		stopCh:        make(chan struct{}),
		manualTrigger: manualTrigger,
	}
}

// Start installs the current manifest and begins the periodic reload process.
// A failed first install is logged; the shell is then proxied uncached until a
// later reload succeeds.
func (ar *AssetReloader) Start(ctx context.Context) error {
	if err := ar.Reload(ctx); err != nil {
		ar.logger.Warn("initial asset install failed", logger.Error(err))
	}

	ticker := time.NewTicker(ar.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := ar.Reload(ctx); err != nil {
					ar.logger.Error("failed to reload assets",
						logger.Error(err))
				}
			case <-ar.manualTrigger:
				ar.logger.Info("manual asset reload triggered")
				if err := ar.Reload(ctx); err != nil {
					ar.logger.Error("failed to reload assets",
						logger.Error(err))
				}
			case <-ar.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop stops the reloader
func (ar *AssetReloader) Stop() {
	close(ar.stopCh)
}

// Reload loads the manifest and installs its version. Installing the version
// that is already serving is a no-op.
func (ar *AssetReloader) Reload(ctx context.Context) error {
	m, err := ar.loader.Load()
	if err != nil {
		return fmt.Errorf("failed to load asset manifest: %w", err)
	}

	ar.logger.Debug("loaded asset manifest",
		logger.String("version", m.Version),
		logger.Int("assets", len(m.Assets)))

	if err := ar.worker.Install(ctx, m); err != nil {
		return fmt.Errorf("failed to install assets: %w", err)
	}
	return nil
}
