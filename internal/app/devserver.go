package app

import (
	"context"
	"fmt"

	"github.com/steadiczech/games-devkit/internal/catalog"
	"github.com/steadiczech/games-devkit/internal/config"
	"github.com/steadiczech/games-devkit/internal/enrich"
	"github.com/steadiczech/games-devkit/internal/logger"
	"github.com/steadiczech/games-devkit/internal/server"
)

// DevServer is the local dev server runtime.
type DevServer struct {
	rt     *runtime
	server *server.Server
}

// NewDevServer wires the games file, history, publishers and HTTP routes from cfg.
func NewDevServer(ctx context.Context, cfg *config.Config, log logger.Logger) (*DevServer, error) {
	rt, err := newRuntime(ctx, cfg, log, true)
	if err != nil {
		return nil, err
	}

	var describer server.Describer
	if cfg.EnrichDescriptions {
		describer = enrich.New(cfg.RootDir)
	}

	srv := server.New(rt.catalog, server.Options{
		RootDir:             cfg.RootDir,
		ListPath:            cfg.ListPath(),
		AppendPath:          cfg.AppendPath,
		Links:               catalog.NewLinks(cfg.BaseURL),
		APIEnabled:          cfg.APIEnabled,
		CoverFallback:       cfg.CoverFallback,
		MetricsEnabled:      cfg.MetricsEnabled,
		MetricsPath:         cfg.MetricsPath,
		AppendRatePerSecond: cfg.AppendRatePerSecond,
		AppendBurst:         cfg.AppendBurst,
		Source:              cfg.AppName + "/devserver",
	}, rt.fanout, describer, rt.log)

	return &DevServer{rt: rt, server: srv}, nil
}

// Run serves until ctx is cancelled.
func (d *DevServer) Run(ctx context.Context) error {
	if d == nil || d.server == nil {
		return fmt.Errorf("dev server is not initialized")
	}
	defer d.rt.close()

	d.rt.log.InfoObj("dev server starting", "devserver_state", map[string]any{
		"root":                d.rt.cfg.RootDir,
		"games_file":          d.rt.catalog.Path(),
		"publishers_count":    d.rt.fanout.Size(),
		"storage_type":        d.rt.cfg.StorageType,
		"cover_fallback":      d.rt.cfg.CoverFallback,
		"enrich_descriptions": d.rt.cfg.EnrichDescriptions,
	})
	return d.server.Run(ctx, d.rt.cfg.ListenAddr, d.rt.cfg.ShutdownTimeout)
}
