package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/steadiczech/games-devkit/internal/config"
	"github.com/steadiczech/games-devkit/internal/logger"
	"github.com/steadiczech/games-devkit/internal/storage"
)

// ErrNoSnapshot is returned by Restore when the history holds nothing for the games file.
var ErrNoSnapshot = errors.New("no snapshot available")

// History exposes the snapshot history of the games file.
type History struct {
	rt *runtime
}

// OpenHistory opens the configured snapshot store. Callers must Close it.
func OpenHistory(cfg *config.Config, log logger.Logger) (*History, error) {
	rt, err := newRuntime(context.Background(), cfg, log, false)
	if err != nil {
		return nil, err
	}
	return &History{rt: rt}, nil
}

// List returns the unexpired snapshots of the games file, oldest first.
func (h *History) List() ([]storage.Snapshot, error) {
	snaps, err := h.rt.history.ListSnapshots(h.rt.catalog.Name())
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	return snaps, nil
}

// Restore writes the newest snapshot back over the games file. The replaced
// contents become the newest snapshot in turn.
func (h *History) Restore() (storage.Snapshot, error) {
	snap, ok, err := h.rt.history.LatestSnapshot(h.rt.catalog.Name())
	if err != nil {
		return storage.Snapshot{}, fmt.Errorf("load snapshot: %w", err)
	}
	if !ok {
		return storage.Snapshot{}, ErrNoSnapshot
	}
	if err := h.rt.catalog.Replace(snap.Data); err != nil {
		return storage.Snapshot{}, fmt.Errorf("restore snapshot: %w", err)
	}
	h.rt.log.InfoObj("games file restored", "snapshot", map[string]any{
		"file":     h.rt.catalog.Path(),
		"taken_at": snap.TakenAt,
		"bytes":    snap.Size(),
	})
	return snap, nil
}

// Close releases the history store.
func (h *History) Close() {
	h.rt.close()
}
