package migrate

import (
	"context"
	"fmt"

	"github.com/steadiczech/games-devkit/internal/catalog"
	"github.com/steadiczech/games-devkit/internal/domain"
	"github.com/steadiczech/games-devkit/internal/logger"
	"github.com/steadiczech/games-devkit/pkg/publishers"
)

// Notifier receives the migration event after a successful write.
type Notifier interface {
	Publish(ctx context.Context, evt publishers.Event) (int, error)
}

// Options tune a Rewriter run.
type Options struct {
	Links  catalog.Links
	Rules  Rules
	DryRun bool
	// Source names the emitter in published events.
	Source string
}

// Result summarizes a run.
type Result struct {
	Exists  bool            `json:"exists"`
	Records int             `json:"records"`
	Written bool            `json:"written"`
	DryRun  bool            `json:"dry_run"`
	Changes []domain.Change `json:"changes"`
}

// Rewriter replaces legacy image and url values in the games file with links
// derived from the record title.
type Rewriter struct {
	store    *catalog.Store
	opts     Options
	notifier Notifier
	log      logger.Logger
}

// New builds a Rewriter. notifier may be nil.
func New(store *catalog.Store, opts Options, notifier Notifier, log logger.Logger) *Rewriter {
	if len(opts.Rules.Markers) == 0 {
		opts.Rules = DefaultRules()
	}
	if opts.Source == "" {
		opts.Source = "gamesctl"
	}
	return &Rewriter{
		store:    store,
		opts:     opts,
		notifier: notifier,
		log:      logger.Ensure(log),
	}
}

// Run rewrites the games file once. Nothing is written when no field changes or in
// dry-run mode. Read and parse failures abort before any write.
func (r *Rewriter) Run(ctx context.Context) (Result, error) {
	res := Result{DryRun: r.opts.DryRun}

	written, err := r.store.Update(func(records []domain.Record, exists bool) ([]domain.Record, bool, error) {
		res.Exists = exists
		res.Records = len(records)
		out, changes := Rewrite(records, r.opts.Links, r.opts.Rules)
		res.Changes = changes
		return out, len(changes) > 0 && !r.opts.DryRun, nil
	})
	if err != nil {
		return res, fmt.Errorf("migrate %s: %w", r.store.Name(), err)
	}
	res.Written = written

	if !res.Exists {
		r.log.InfoObj("games file not found, nothing to migrate", "migrate", map[string]any{
			"games_file": r.store.Path(),
		})
		r.logSummary(res)
		return res, nil
	}

	for _, c := range res.Changes {
		r.log.InfoObj("record link updated", "change", c)
	}

	if res.Written && r.notifier != nil {
		evt := publishers.NewMigrationEvent(r.opts.Source, res.Changes)
		if _, err := r.notifier.Publish(ctx, evt); err != nil {
			r.log.WarnObj("publish migration event failed", "publish_error", map[string]any{
				"event_id": evt.ID,
				"error":    err.Error(),
			})
		}
	}

	r.logSummary(res)
	return res, nil
}

func (r *Rewriter) logSummary(res Result) {
	r.log.InfoObj("migration finished", "summary", map[string]any{
		"server_url":      r.opts.Links.BaseURL,
		"default_image":   r.opts.Links.DefaultImageURL(),
		"games_directory": r.opts.Links.GamesDirectoryURL(),
		"games_file":      r.store.Path(),
		"records":         res.Records,
		"changes":         len(res.Changes),
		"written":         res.Written,
		"dry_run":         res.DryRun,
	})
}

// Rewrite returns a copy of records with every legacy image/url value replaced by
// its derived link, plus the list of fields that actually changed. Values that are
// absent or not strings never match.
func Rewrite(records []domain.Record, links catalog.Links, rules Rules) ([]domain.Record, []domain.Change) {
	out := make([]domain.Record, len(records))
	var changes []domain.Change
	for i, orig := range records {
		rec := orig.Clone()
		title := rec.Title()
		targets := []struct {
			key  string
			link string
		}{
			{domain.KeyImage, links.GameImageURL(title)},
			{domain.KeyURL, links.GameURL(title)},
		}
		for _, t := range targets {
			old, ok := rec.Get(t.key)
			if !ok || !rules.Matches(old) || old == t.link {
				continue
			}
			rec.Set(t.key, t.link)
			changes = append(changes, domain.Change{
				Index: i,
				Title: title,
				Field: t.key,
				Old:   old,
				New:   t.link,
			})
		}
		out[i] = rec
	}
	return out, changes
}
