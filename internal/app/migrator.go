package app

import (
	"context"
	"fmt"

	"github.com/steadiczech/games-devkit/internal/catalog"
	"github.com/steadiczech/games-devkit/internal/config"
	"github.com/steadiczech/games-devkit/internal/logger"
	"github.com/steadiczech/games-devkit/internal/migrate"
)

// Migrator runs the URL rewriter once against the configured games file.
type Migrator struct {
	rt       *runtime
	rewriter *migrate.Rewriter
}

// NewMigrator loads the marker rules and wires the rewriter. Publishers are only
// built for real runs.
func NewMigrator(ctx context.Context, cfg *config.Config, dryRun bool, log logger.Logger) (*Migrator, error) {
	rules, err := migrate.LoadRules(cfg.MigrateRulesFile)
	if err != nil {
		return nil, fmt.Errorf("load migrate rules: %w", err)
	}

	rt, err := newRuntime(ctx, cfg, log, !dryRun)
	if err != nil {
		return nil, err
	}

	var notifier migrate.Notifier
	if rt.fanout != nil {
		notifier = rt.fanout
	}

	rw := migrate.New(rt.catalog, migrate.Options{
		Links:  catalog.NewLinks(cfg.BaseURL),
		Rules:  rules,
		DryRun: dryRun,
		Source: cfg.AppName + "/gamesctl",
	}, notifier, rt.log)

	return &Migrator{rt: rt, rewriter: rw}, nil
}

// Run performs the migration and releases resources.
func (m *Migrator) Run(ctx context.Context) (migrate.Result, error) {
	if m == nil || m.rewriter == nil {
		return migrate.Result{}, fmt.Errorf("migrator is not initialized")
	}
	defer m.rt.close()
	return m.rewriter.Run(ctx)
}
