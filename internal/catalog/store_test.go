package catalog

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/steadiczech/games-devkit/internal/domain"
)

type recordingHistory struct {
	names []string
	data  [][]byte
	err   error
}

func (r *recordingHistory) SaveSnapshot(name string, data []byte) error {
	if r.err != nil {
		return r.err
	}
	r.names = append(r.names, name)
	r.data = append(r.data, append([]byte(nil), data...))
	return nil
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}

func TestReadRawMissingFileIsEmptyList(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "games.json"), nil)

	raw, err := store.ReadRaw()
	if err != nil {
		t.Fatalf("ReadRaw: %v", err)
	}
	if string(raw) != "[]" {
		t.Fatalf("ReadRaw = %q, want []", raw)
	}

	records, exists, err := store.Load()
	if err != nil || exists || len(records) != 0 {
		t.Fatalf("Load on missing file: records=%d exists=%v err=%v", len(records), exists, err)
	}
}

func TestReadRawReturnsBytesVerbatim(t *testing.T) {
	path := filepath.Join(t.TempDir(), "games.json")
	content := "[ {\"title\" : \"Odd   spacing\"} ]"
	writeFile(t, path, content)

	raw, err := NewStore(path, nil).ReadRaw()
	if err != nil {
		t.Fatalf("ReadRaw: %v", err)
	}
	if string(raw) != content {
		t.Fatalf("ReadRaw = %q", raw)
	}
}

func TestAppendCreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "games.json")
	store := NewStore(path, nil)

	if err := store.Append(domain.NewRecord("Foo Bar", "", "d")); err != nil {
		t.Fatalf("Append: %v", err)
	}

	want := "[\n  {\n    \"title\": \"Foo Bar\",\n    \"image\": \"\",\n    \"description\": \"d\"\n  }\n]\n"
	if got := readFile(t, path); got != want {
		t.Fatalf("file = %q\nwant %q", got, want)
	}
}

func TestAppendKeepsExistingRecordsAndSnapshots(t *testing.T) {
	path := filepath.Join(t.TempDir(), "games.json")
	original := `[{"url":"https://example.com","title":"Old","extra":{"n":1}}]`
	writeFile(t, path, original)

	history := &recordingHistory{}
	store := NewStore(path, history)
	if err := store.Append(domain.NewRecord("New", "/games/new/cover.png", "")); err != nil {
		t.Fatalf("Append: %v", err)
	}

	records, exists, err := store.Load()
	if err != nil || !exists {
		t.Fatalf("Load: exists=%v err=%v", exists, err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	fields := records[0].Fields()
	if fields[0].Key != "url" || fields[2].Key != "extra" || string(fields[2].Value) != `{"n":1}` {
		t.Fatalf("existing record not preserved: %#v", fields)
	}
	if records[1].Title() != "New" {
		t.Fatalf("appended title = %q", records[1].Title())
	}

	if len(history.names) != 1 || history.names[0] != "games.json" || string(history.data[0]) != original {
		t.Fatalf("expected snapshot of previous contents, got %#v", history.names)
	}
}

func TestAppendMalformedFileLeavesItUnchanged(t *testing.T) {
	path := filepath.Join(t.TempDir(), "games.json")
	writeFile(t, path, `{"not":"a list"}`)

	err := NewStore(path, nil).Append(domain.NewRecord("X", "", ""))
	if !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
	if got := readFile(t, path); got != `{"not":"a list"}` {
		t.Fatalf("file changed to %q", got)
	}
}

func TestDecodeRejectsNonObjectElements(t *testing.T) {
	if _, err := Decode([]byte(`[{"title":"a"}, 3]`)); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
	if _, err := Decode([]byte(``)); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed for empty input, got %v", err)
	}
}

func TestUpdateWithoutChangeDoesNotWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "games.json")
	content := "[{\"title\":\"Keep\"}]"
	writeFile(t, path, content)

	history := &recordingHistory{}
	written, err := NewStore(path, history).Update(func(records []domain.Record, exists bool) ([]domain.Record, bool, error) {
		if !exists || len(records) != 1 {
			t.Fatalf("unexpected input exists=%v len=%d", exists, len(records))
		}
		return records, false, nil
	})
	if err != nil || written {
		t.Fatalf("Update written=%v err=%v", written, err)
	}
	if got := readFile(t, path); got != content {
		t.Fatalf("file rewritten: %q", got)
	}
	if len(history.names) != 0 {
		t.Fatalf("no snapshot expected when nothing is written")
	}
}

func TestUpdateSnapshotFailureAbortsWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "games.json")
	writeFile(t, path, `[]`)

	store := NewStore(path, &recordingHistory{err: errors.New("disk full")})
	if err := store.Append(domain.NewRecord("X", "", "")); err == nil {
		t.Fatalf("expected snapshot error")
	}
	if got := readFile(t, path); got != `[]` {
		t.Fatalf("file changed to %q", got)
	}
}

func TestWriteLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(filepath.Join(dir, "games.json"), nil)
	for i := 0; i < 3; i++ {
		if err := store.Append(domain.NewRecord("T", "", "")); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Fatalf("temp file left behind: %s", e.Name())
		}
	}
	if len(entries) != 1 {
		t.Fatalf("expected only games.json, got %d entries", len(entries))
	}
}

func TestReplaceValidatesInput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "games.json")
	store := NewStore(path, nil)

	if err := store.Replace([]byte(`nope`)); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
	if err := store.Replace([]byte(`[{"title":"R"}]`)); err != nil {
		t.Fatalf("Replace: %v", err)
	}
	if got := readFile(t, path); got != `[{"title":"R"}]` {
		t.Fatalf("Replace must write bytes verbatim, got %q", got)
	}
	records, _, err := store.Load()
	if err != nil || len(records) != 1 || records[0].Title() != "R" {
		t.Fatalf("unexpected records after replace: %v %v", records, err)
	}
}

func TestLinks(t *testing.T) {
	links := NewLinks("http://localhost:3000/")
	if got := links.GameImageURL("Foo Bar"); got != "http://localhost:3000/games/foo-bar/cover.png" {
		t.Fatalf("GameImageURL = %q", got)
	}
	if got := links.GameURL("Foo Bar"); got != "http://localhost:3000/games/foo-bar/index.html" {
		t.Fatalf("GameURL = %q", got)
	}
	if got := links.DefaultImageURL(); got != "http://localhost:3000/images/default-game-cover.png" {
		t.Fatalf("DefaultImageURL = %q", got)
	}
	if got := links.GameImageURL(""); got != "http://localhost:3000/games//cover.png" {
		t.Fatalf("GameImageURL(empty) = %q", got)
	}
}
