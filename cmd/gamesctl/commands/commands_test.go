package commands

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("STORAGE_TYPE", "none")
	t.Setenv("LOG_LEVEL", "error")

	var out bytes.Buffer
	root := NewRootCommand()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestMigrateDryRunAndWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "games.json")
	original := `[{"title":"Foo Bar","image":"http://172.251.232.135/foo.png"}]`
	if err := os.WriteFile(path, []byte(original), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	out, err := execute(t, "migrate", "--file", path, "--dry-run", "--base-url", "https://games.example.org")
	if err != nil {
		t.Fatalf("dry run: %v", err)
	}
	if !strings.Contains(out, "https://games.example.org/games/foo-bar/cover.png") || !strings.Contains(out, "dry run") {
		t.Fatalf("dry run output = %q", out)
	}
	if data, _ := os.ReadFile(path); string(data) != original {
		t.Fatalf("dry run wrote the file")
	}

	if _, err := execute(t, "migrate", "--file", path, "--base-url", "https://games.example.org"); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), `"image": "https://games.example.org/games/foo-bar/cover.png"`) {
		t.Fatalf("migrated file = %s", data)
	}
}

func TestMigrateMissingFile(t *testing.T) {
	out, err := execute(t, "migrate", "--file", filepath.Join(t.TempDir(), "games.json"))
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if !strings.Contains(out, "nothing to migrate") {
		t.Fatalf("output = %q", out)
	}
}

func TestMigrateInvalidBaseURL(t *testing.T) {
	if _, err := execute(t, "migrate", "--file", filepath.Join(t.TempDir(), "g.json"), "--base-url", "not a url"); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestAddDefaultsImageToSlugCover(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode: %v", err)
		}
		_, _ = w.Write([]byte(`{"message":"Game saved successfully"}`))
	}))
	defer srv.Close()

	out, err := execute(t, "add", "--title", "Space Game", "--server", srv.URL)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if got["image"] != "/games/space-game/cover.png" || got["title"] != "Space Game" {
		t.Fatalf("server received %#v", got)
	}
	if !strings.Contains(out, `saved "Space Game"`) {
		t.Fatalf("output = %q", out)
	}
}

func TestAddRequiresTitle(t *testing.T) {
	if _, err := execute(t, "add", "--server", "http://127.0.0.1:1"); err == nil {
		t.Fatalf("expected error without --title")
	}
}

func TestListPrintsRecords(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[{"title":"Alpha","image":"/a.png"}]`))
	}))
	defer srv.Close()

	out, err := execute(t, "list", "--server", srv.URL)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(out, "Alpha") || !strings.Contains(out, "/a.png") {
		t.Fatalf("output = %q", out)
	}
}

func TestRestoreWithoutSnapshotsFails(t *testing.T) {
	if _, err := execute(t, "restore", "--file", filepath.Join(t.TempDir(), "games.json")); err == nil {
		t.Fatalf("expected error when no snapshot exists")
	}
}
