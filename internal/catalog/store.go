package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/tidwall/gjson"

	"github.com/steadiczech/games-devkit/internal/domain"
)

// ErrMalformed is returned when the games file is present but is not a JSON array of objects.
var ErrMalformed = errors.New("malformed games file")

// emptyList is served and stored when no games file exists yet.
var emptyList = []byte("[]")

// Snapshotter receives the previous file contents before every overwrite.
type Snapshotter interface {
	SaveSnapshot(name string, data []byte) error
}

// UpdateFunc transforms the loaded records. exists is false when the file is absent.
// Returning changed=false leaves the file untouched.
type UpdateFunc func(records []domain.Record, exists bool) (out []domain.Record, changed bool, err error)

// Store is the games file: one JSON array of records on disk. All mutations go
// through a single mutex so read-modify-write cycles never interleave in-process.
type Store struct {
	path    string
	mu      sync.Mutex
	history Snapshotter
}

// NewStore returns a store for the games file at path. history may be nil.
func NewStore(path string, history Snapshotter) *Store {
	return &Store{path: path, history: history}
}

// Path returns the games file location.
func (s *Store) Path() string { return s.path }

// Name returns the base name of the games file.
func (s *Store) Name() string { return filepath.Base(s.path) }

// ReadRaw returns the file bytes verbatim, or "[]" when the file does not exist.
func (s *Store) ReadRaw() ([]byte, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return append([]byte(nil), emptyList...), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read games file: %w", err)
	}
	return data, nil
}

// Load decodes the games file. A missing file yields no records and exists=false.
func (s *Store) Load() ([]domain.Record, bool, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, true, fmt.Errorf("read games file: %w", err)
	}
	records, err := Decode(data)
	if err != nil {
		return nil, true, err
	}
	return records, true, nil
}

// Append adds rec to the end of the sequence and persists the whole file.
func (s *Store) Append(rec domain.Record) error {
	_, err := s.Update(func(records []domain.Record, _ bool) ([]domain.Record, bool, error) {
		return append(records, rec), true, nil
	})
	return err
}

// Update runs fn over the current records under the store lock and writes the
// result if fn reports a change. It returns whether a write happened.
func (s *Store) Update(fn UpdateFunc) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	previous, err := os.ReadFile(s.path)
	exists := true
	switch {
	case errors.Is(err, os.ErrNotExist):
		exists = false
	case err != nil:
		return false, fmt.Errorf("read games file: %w", err)
	}

	var records []domain.Record
	if exists {
		if records, err = Decode(previous); err != nil {
			return false, err
		}
	}

	out, changed, err := fn(records, exists)
	if err != nil || !changed {
		return false, err
	}

	if exists && s.history != nil {
		if err := s.history.SaveSnapshot(s.Name(), previous); err != nil {
			return false, fmt.Errorf("snapshot games file: %w", err)
		}
	}
	if err := s.writeLocked(out); err != nil {
		return false, err
	}
	return true, nil
}

// Replace overwrites the games file with data verbatim. data must decode as a games list.
func (s *Store) Replace(data []byte) error {
	if _, err := Decode(data); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	previous, err := os.ReadFile(s.path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return fmt.Errorf("read games file: %w", err)
	case bytes.Equal(previous, data):
		return nil
	case s.history != nil:
		if err := s.history.SaveSnapshot(s.Name(), previous); err != nil {
			return fmt.Errorf("snapshot games file: %w", err)
		}
	}

	if err := writeFileAtomic(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write games file: %w", err)
	}
	return nil
}

func (s *Store) writeLocked(records []domain.Record) error {
	data, err := Encode(records)
	if err != nil {
		return err
	}
	if err := writeFileAtomic(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write games file: %w", err)
	}
	return nil
}

// Decode parses a games list. Each element must be a JSON object.
func Decode(data []byte) ([]domain.Record, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: invalid json", ErrMalformed)
	}
	root := gjson.ParseBytes(data)
	if !root.IsArray() {
		return nil, fmt.Errorf("%w: top-level value is not an array", ErrMalformed)
	}

	var (
		records []domain.Record
		decErr  error
	)
	root.ForEach(func(_, value gjson.Result) bool {
		var rec domain.Record
		if err := rec.UnmarshalJSON([]byte(value.Raw)); err != nil {
			decErr = fmt.Errorf("%w: record %d: %v", ErrMalformed, len(records), err)
			return false
		}
		records = append(records, rec)
		return true
	})
	if decErr != nil {
		return nil, decErr
	}
	return records, nil
}

// Encode renders records as a two-space indented JSON array with a trailing newline.
func Encode(records []domain.Record) ([]byte, error) {
	if records == nil {
		records = []domain.Record{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return nil, fmt.Errorf("encode games: %w", err)
	}
	return buf.Bytes(), nil
}

// writeFileAtomic writes data to a temp file in the target directory and renames it over path.
func writeFileAtomic(path string, data []byte, mode os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, mode); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
