package storage

import (
	"fmt"
	"strings"
	"time"
)

// Package storage keeps a rolling history of games file contents.

// Snapshot is one saved copy of a file taken before it was overwritten.
type Snapshot struct {
	Name    string    `json:"name"`
	TakenAt time.Time `json:"taken_at"`
	Data    []byte    `json:"-"`
}

// Size returns the snapshot length in bytes.
func (s Snapshot) Size() int { return len(s.Data) }

// Store persists snapshots keyed by file name.
type Store interface {
	Close() error
	SaveSnapshot(name string, data []byte) error
	LatestSnapshot(name string) (Snapshot, bool, error)
	ListSnapshots(name string) ([]Snapshot, error)
}

// Options controls retention characteristics for concrete store implementations.
type Options struct {
	SnapshotTTL     time.Duration
	CleanupInterval time.Duration
}

const (
	defaultSnapshotTTL     = 30 * 24 * time.Hour
	defaultCleanupInterval = 12 * time.Hour
)

// NewStore creates the configured storage backend.
func NewStore(typ, path string, opts Options) (Store, error) {
	typ = strings.TrimSpace(strings.ToLower(typ))
	opts = normalizeOptions(opts)

	switch typ {
	case "", "none", "disabled":
		return noopStore{}, nil
	case "bbolt":
		if strings.TrimSpace(path) == "" {
			return nil, fmt.Errorf("bbolt storage requires a path")
		}
		return openBolt(path, opts)
	default:
		return nil, fmt.Errorf("unsupported storage type %q", typ)
	}
}

func normalizeOptions(opts Options) Options {
	if opts.SnapshotTTL <= 0 {
		opts.SnapshotTTL = defaultSnapshotTTL
	}
	if opts.CleanupInterval <= 0 {
		opts.CleanupInterval = defaultCleanupInterval
	}
	return opts
}

type noopStore struct{}

func (noopStore) Close() error                                  { return nil }
func (noopStore) SaveSnapshot(string, []byte) error             { return nil }
func (noopStore) LatestSnapshot(string) (Snapshot, bool, error) { return Snapshot{}, false, nil }
func (noopStore) ListSnapshots(string) ([]Snapshot, error)      { return nil, nil }
