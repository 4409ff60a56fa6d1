package app

import (
	"context"
	"fmt"

	"github.com/steadiczech/games-devkit/internal/catalog"
	"github.com/steadiczech/games-devkit/internal/config"
	"github.com/steadiczech/games-devkit/internal/logger"
	"github.com/steadiczech/games-devkit/internal/storage"
	"github.com/steadiczech/games-devkit/pkg/publishers"
)

// runtime holds the resources every command shares: the games file, its snapshot
// history and the publisher fanout.
type runtime struct {
	cfg     *config.Config
	log     logger.Logger
	history storage.Store
	catalog *catalog.Store
	fanout  *publishers.Fanout
}

func newRuntime(ctx context.Context, cfg *config.Config, log logger.Logger, withPublishers bool) (*runtime, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	log = logger.Ensure(log)
	if ctx == nil {
		ctx = context.Background()
	}

	history, err := openHistory(cfg, log)
	if err != nil {
		return nil, err
	}

	rt := &runtime{
		cfg:     cfg,
		log:     log,
		history: history,
		catalog: catalog.NewStore(cfg.GamesPath(), history),
	}

	if withPublishers {
		fanout, err := buildFanout(ctx, cfg, log)
		if err != nil {
			rt.close()
			return nil, err
		}
		rt.fanout = fanout
	}
	return rt, nil
}

func openHistory(cfg *config.Config, log logger.Logger) (storage.Store, error) {
	storeOpts := storage.Options{
		SnapshotTTL:     cfg.StorageTTL,
		CleanupInterval: cfg.StorageCleanupInterval,
	}
	store, err := storage.NewStore(cfg.StorageType, cfg.BBoltPath, storeOpts)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}
	log.DebugObj("storage initialized", "storage_config", map[string]any{
		"type":                     cfg.StorageType,
		"path":                     cfg.BBoltPath,
		"snapshot_ttl_seconds":     int(cfg.StorageTTL.Seconds()),
		"cleanup_interval_seconds": int(cfg.StorageCleanupInterval.Seconds()),
	})
	return store, nil
}

func buildFanout(ctx context.Context, cfg *config.Config, log logger.Logger) (*publishers.Fanout, error) {
	publisherReg, err := publishers.LoadRegistry(cfg.PublishersFile)
	if err != nil {
		return nil, fmt.Errorf("load publishers registry: %w", err)
	}

	enabledPublishers := publisherReg.Enabled()
	pubClients, err := publishers.DefaultBuilders().BuildAll(ctx, enabledPublishers, log)
	if err != nil {
		return nil, fmt.Errorf("build publishers: %w", err)
	}

	publisherSummaries := make([]map[string]string, 0, len(enabledPublishers))
	for _, pubCfg := range enabledPublishers {
		publisherSummaries = append(publisherSummaries, map[string]string{
			"id":   pubCfg.ID,
			"type": pubCfg.Type,
		})
	}
	log.InfoObj("publishers registry loaded", "publishers_meta", map[string]any{
		"file":       cfg.PublishersFile,
		"count":      len(publisherSummaries),
		"publishers": publisherSummaries,
	})
	return publishers.NewFanout(pubClients), nil
}

// close releases the history store and publisher connections, logging failures.
func (rt *runtime) close() {
	if rt == nil {
		return
	}
	if rt.fanout != nil {
		if err := rt.fanout.Close(); err != nil {
			rt.log.ErrorObj("publishers close failed", "error", err.Error())
		}
	}
	if rt.history != nil {
		if err := rt.history.Close(); err != nil {
			rt.log.ErrorObj("storage close failed", "error", err.Error())
		}
	}
}
