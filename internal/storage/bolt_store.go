package storage

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	bolt "go.etcd.io/bbolt"
)

const (
	snapshotBucket   = "snapshots"
	expiryValueBytes = 8
	stampKeyBytes    = 8
)

// boltStore implements a Store backed by BoltDB.
//
// Keys are name + 0x00 + big-endian unix nanos, so a prefix scan yields a file's
// snapshots oldest first. Values are an 8-byte expiry followed by the file bytes.
//
// The database file is opened for each call and closed again, so the dev server
// and gamesctl can share one history file; bbolt holds an exclusive lock while open.
type boltStore struct {
	path            string
	cleanupMu       sync.Mutex
	lastCleanup     atomic.Int64
	snapshotTTL     time.Duration
	cleanupInterval time.Duration
	lockTimeout     time.Duration
	now             func() time.Time
}

const defaultLockTimeout = 5 * time.Second

// openBolt prepares a BoltDB-backed Store and creates its bucket.
func openBolt(path string, opts Options) (Store, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage directory: %w", err)
		}
	}

	store := &boltStore{
		path:            path,
		snapshotTTL:     opts.SnapshotTTL,
		cleanupInterval: opts.CleanupInterval,
		lockTimeout:     defaultLockTimeout,
		now:             time.Now,
	}
	if err := store.update(func(*bolt.Bucket) error { return nil }); err != nil {
		return nil, err
	}
	store.lastCleanup.Store(store.now().Unix())
	return store, nil
}

// Close is a no-op; the database is only open for the duration of a call.
func (b *boltStore) Close() error {
	return nil
}

func (b *boltStore) open() (*bolt.DB, error) {
	db, err := bolt.Open(b.path, 0o600, &bolt.Options{Timeout: b.lockTimeout})
	if err != nil {
		return nil, fmt.Errorf("open bbolt db: %w", err)
	}
	return db, nil
}

// update runs fn in a write transaction on the snapshot bucket.
func (b *boltStore) update(fn func(*bolt.Bucket) error) error {
	db, err := b.open()
	if err != nil {
		return err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists([]byte(snapshotBucket))
		if err != nil {
			return fmt.Errorf("init bucket: %w", err)
		}
		return fn(bucket)
	})
	if cerr := db.Close(); err == nil {
		err = cerr
	}
	return err
}

// view runs fn in a read transaction. bucket is nil when nothing was ever stored.
func (b *boltStore) view(fn func(*bolt.Bucket) error) error {
	db, err := b.open()
	if err != nil {
		return err
	}
	err = db.View(func(tx *bolt.Tx) error {
		return fn(tx.Bucket([]byte(snapshotBucket)))
	})
	if cerr := db.Close(); err == nil {
		err = cerr
	}
	return err
}

// SaveSnapshot stores data as the newest snapshot of name. Data identical to the
// current newest snapshot is not stored twice.
func (b *boltStore) SaveSnapshot(name string, data []byte) error {
	if b == nil {
		return nil
	}

	now := b.now()
	if err := b.maybeCleanupExpired(now); err != nil {
		return err
	}

	return b.update(func(bucket *bolt.Bucket) error {
		if _, v := lastWithPrefix(bucket.Cursor(), namePrefix(name)); v != nil {
			if expiry, ok := decodeExpiry(v); ok && expiry.After(now) && bytes.Equal(v[expiryValueBytes:], data) {
				return nil
			}
		}

		value := make([]byte, expiryValueBytes+len(data))
		binary.BigEndian.PutUint64(value, uint64(now.Add(b.snapshotTTL).Unix()))
		copy(value[expiryValueBytes:], data)
		return bucket.Put(snapshotKey(name, now), value)
	})
}

// LatestSnapshot returns the newest unexpired snapshot of name.
func (b *boltStore) LatestSnapshot(name string) (Snapshot, bool, error) {
	snaps, err := b.ListSnapshots(name)
	if err != nil || len(snaps) == 0 {
		return Snapshot{}, false, err
	}
	return snaps[len(snaps)-1], true, nil
}

// ListSnapshots returns the unexpired snapshots of name, oldest first.
func (b *boltStore) ListSnapshots(name string) ([]Snapshot, error) {
	if b == nil {
		return nil, nil
	}

	now := b.now()
	prefix := namePrefix(name)
	var out []Snapshot
	err := b.view(func(bucket *bolt.Bucket) error {
		if bucket == nil {
			return nil
		}

		cursor := bucket.Cursor()
		for k, v := cursor.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = cursor.Next() {
			expiry, ok := decodeExpiry(v)
			if !ok || !expiry.After(now) {
				continue
			}
			stamp, ok := decodeStamp(k[len(prefix):])
			if !ok {
				continue
			}
			out = append(out, Snapshot{
				Name:    name,
				TakenAt: stamp,
				Data:    append([]byte(nil), v[expiryValueBytes:]...),
			})
		}
		return nil
	})
	return out, err
}

// maybeCleanupExpired removes expired snapshots on a fixed cadence to avoid unbounded growth.
func (b *boltStore) maybeCleanupExpired(now time.Time) error {
	if b == nil {
		return nil
	}

	last := time.Unix(b.lastCleanup.Load(), 0)
	if now.Sub(last) < b.cleanupInterval {
		return nil
	}

	b.cleanupMu.Lock()
	defer b.cleanupMu.Unlock()

	last = time.Unix(b.lastCleanup.Load(), 0)
	if now.Sub(last) < b.cleanupInterval {
		return nil
	}

	err := b.update(func(bucket *bolt.Bucket) error {
		var expired [][]byte
		cursor := bucket.Cursor()
		for k, v := cursor.First(); k != nil; k, v = cursor.Next() {
			expiry, ok := decodeExpiry(v)
			if !ok || !expiry.After(now) {
				expired = append(expired, append([]byte(nil), k...))
			}
		}
		for _, k := range expired {
			if err := bucket.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
	if err == nil {
		b.lastCleanup.Store(now.Unix())
	}
	return err
}

func namePrefix(name string) []byte {
	return append([]byte(name), 0)
}

func snapshotKey(name string, at time.Time) []byte {
	key := namePrefix(name)
	stamp := make([]byte, stampKeyBytes)
	binary.BigEndian.PutUint64(stamp, uint64(at.UnixNano()))
	return append(key, stamp...)
}

func lastWithPrefix(cursor *bolt.Cursor, prefix []byte) ([]byte, []byte) {
	var lastK, lastV []byte
	for k, v := cursor.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = cursor.Next() {
		lastK, lastV = k, v
	}
	return lastK, lastV
}

// decodeExpiry decodes the expiry time from the stored byte slice.
func decodeExpiry(value []byte) (time.Time, bool) {
	if len(value) < expiryValueBytes {
		return time.Time{}, false
	}
	unix := int64(binary.BigEndian.Uint64(value[:expiryValueBytes]))
	if unix <= 0 {
		return time.Time{}, false
	}
	return time.Unix(unix, 0), true
}

func decodeStamp(raw []byte) (time.Time, bool) {
	if len(raw) != stampKeyBytes {
		return time.Time{}, false
	}
	return time.Unix(0, int64(binary.BigEndian.Uint64(raw))), true
}
