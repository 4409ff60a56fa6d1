package migrate

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/steadiczech/games-devkit/internal/catalog"
	"github.com/steadiczech/games-devkit/internal/domain"
	"github.com/steadiczech/games-devkit/pkg/publishers"
)

const base = "http://localhost:3000"

type recordingNotifier struct {
	events []publishers.Event
}

func (n *recordingNotifier) Publish(_ context.Context, evt publishers.Event) (int, error) {
	n.events = append(n.events, evt)
	return 1, nil
}

type recordingHistory struct {
	data [][]byte
}

func (h *recordingHistory) SaveSnapshot(_ string, data []byte) error {
	h.data = append(h.data, append([]byte(nil), data...))
	return nil
}

func newRewriter(t *testing.T, content string, opts Options) (*Rewriter, string, *recordingNotifier, *recordingHistory) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "games.json")
	if content != "" {
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("write games file: %v", err)
		}
	}
	if opts.Links.BaseURL == "" {
		opts.Links = catalog.NewLinks(base)
	}
	notifier := &recordingNotifier{}
	history := &recordingHistory{}
	return New(catalog.NewStore(path, history), opts, notifier, nil), path, notifier, history
}

func mustRead(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	return string(data)
}

func TestRunRewritesMatchingFields(t *testing.T) {
	content := `[{"title":"Foo Bar","image":"https://steadiczech.com/img/foo.png","url":"http://172.251.232.135/foo/"}]`
	rw, path, notifier, history := newRewriter(t, content, Options{})

	res, err := rw.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.Written || len(res.Changes) != 2 {
		t.Fatalf("unexpected result: %+v", res)
	}

	records, _, err := catalog.NewStore(path, nil).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if img, _ := records[0].Get(domain.KeyImage); img != base+"/games/foo-bar/cover.png" {
		t.Fatalf("image = %q", img)
	}
	if u, _ := records[0].Get(domain.KeyURL); u != base+"/games/foo-bar/index.html" {
		t.Fatalf("url = %q", u)
	}

	if len(history.data) != 1 || string(history.data[0]) != content {
		t.Fatalf("expected snapshot of original contents")
	}
	if len(notifier.events) != 1 || notifier.events[0].Type != publishers.EventGamesMigrated || len(notifier.events[0].Changes) != 2 {
		t.Fatalf("expected one migration event, got %#v", notifier.events)
	}
}

func TestRunRewritesLastValueOfDuplicateKey(t *testing.T) {
	content := `[{"title":"Foo","image":"` + base + `/games/foo/cover.png","image":"https://steadiczech.com/x.png"}]`
	rw, path, _, _ := newRewriter(t, content, Options{})

	res, err := rw.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.Written || len(res.Changes) != 1 {
		t.Fatalf("duplicate legacy image should be migrated: %+v", res)
	}

	var decoded []map[string]any
	if err := json.Unmarshal([]byte(mustRead(t, path)), &decoded); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if decoded[0]["image"] != base+"/games/foo/cover.png" {
		t.Fatalf("image = %v", decoded[0]["image"])
	}
	if strings.Contains(mustRead(t, path), "steadiczech.com") {
		t.Fatalf("legacy value left in file")
	}
}

func TestRunIsIdempotent(t *testing.T) {
	content := `[{"title":"A","image":"https://steadiczech.com/a.png"}]`
	rw, path, notifier, _ := newRewriter(t, content, Options{})

	if _, err := rw.Run(context.Background()); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	first := mustRead(t, path)

	res, err := rw.Run(context.Background())
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if res.Written || len(res.Changes) != 0 {
		t.Fatalf("second run should not write: %+v", res)
	}
	if mustRead(t, path) != first {
		t.Fatalf("second run changed the file")
	}
	if len(notifier.events) != 1 {
		t.Fatalf("expected a single event, got %d", len(notifier.events))
	}
}

func TestRunIsStableWhenBaseContainsMarker(t *testing.T) {
	content := `[{"title":"A","image":"https://steadiczech.com/games/a/cover.png"}]`
	rw, path, _, _ := newRewriter(t, content, Options{Links: catalog.NewLinks("https://steadiczech.com")})

	res, err := rw.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Written || len(res.Changes) != 0 {
		t.Fatalf("value already equal to derived link must not count: %+v", res)
	}
	if mustRead(t, path) != content {
		t.Fatalf("file rewritten")
	}
}

func TestRunWithoutMatchLeavesBytesUntouched(t *testing.T) {
	content := "[ {\"title\": \"Clean\", \"image\": \"/games/clean/cover.png\"} ]"
	rw, path, notifier, history := newRewriter(t, content, Options{})

	res, err := rw.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Written {
		t.Fatalf("unexpected write")
	}
	if mustRead(t, path) != content {
		t.Fatalf("file bytes changed")
	}
	if len(notifier.events) != 0 || len(history.data) != 0 {
		t.Fatalf("no event or snapshot expected")
	}
}

func TestRunMissingFileIsNothingToMigrate(t *testing.T) {
	rw, path, _, _ := newRewriter(t, "", Options{})

	res, err := rw.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Exists || res.Written {
		t.Fatalf("unexpected result: %+v", res)
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("games file must not be created, stat err=%v", err)
	}
}

func TestRunMalformedFileFails(t *testing.T) {
	content := `{"title":"not a list"}`
	rw, path, _, _ := newRewriter(t, content, Options{})

	if _, err := rw.Run(context.Background()); !errors.Is(err, catalog.ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
	if mustRead(t, path) != content {
		t.Fatalf("malformed file must be left unchanged")
	}
}

func TestRunDryRunDoesNotWrite(t *testing.T) {
	content := `[{"title":"A","url":"https://steadiczech.com/a"}]`
	rw, path, notifier, _ := newRewriter(t, content, Options{DryRun: true})

	res, err := rw.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Written || !res.DryRun || len(res.Changes) != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.Changes[0].New != base+"/games/a/index.html" {
		t.Fatalf("change = %+v", res.Changes[0])
	}
	if mustRead(t, path) != content || len(notifier.events) != 0 {
		t.Fatalf("dry run must not write or publish")
	}
}

func TestRewriteEdgeCases(t *testing.T) {
	var noTitle, numeric, noImage domain.Record
	if err := noTitle.UnmarshalJSON([]byte(`{"image":"https://steadiczech.com/x.png"}`)); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if err := numeric.UnmarshalJSON([]byte(`{"title":"N","image":42,"url":null}`)); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if err := noImage.UnmarshalJSON([]byte(`{"title":"Only Url","url":"https://steadiczech.com/u"}`)); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	input := []domain.Record{noTitle, numeric, noImage}
	out, changes := Rewrite(input, catalog.NewLinks(base), DefaultRules())

	if img, _ := out[0].Get(domain.KeyImage); img != base+"/games//cover.png" {
		t.Fatalf("missing title image = %q", img)
	}
	if raw, _ := out[1].Raw(domain.KeyImage); string(raw) != "42" {
		t.Fatalf("non-string image changed: %s", raw)
	}
	if out[2].Has(domain.KeyImage) {
		t.Fatalf("absent image must stay absent")
	}
	if len(changes) != 2 {
		t.Fatalf("expected 2 changes, got %#v", changes)
	}
	if img, _ := input[0].Get(domain.KeyImage); img != "https://steadiczech.com/x.png" {
		t.Fatalf("input records were modified")
	}
}

func TestLoadRules(t *testing.T) {
	dir := t.TempDir()

	rules, err := LoadRules("")
	if err != nil || len(rules.Markers) != 2 {
		t.Fatalf("default rules: %v %v", rules, err)
	}

	yamlPath := filepath.Join(dir, "rules.yaml")
	if err := os.WriteFile(yamlPath, []byte("markers:\n  - old.example.org\n  - ' old.example.org '\n  - ''\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	rules, err = LoadRules(yamlPath)
	if err != nil {
		t.Fatalf("LoadRules yaml: %v", err)
	}
	if len(rules.Markers) != 1 || !rules.Matches("https://old.example.org/a.png") || rules.Matches("https://steadiczech.com") {
		t.Fatalf("unexpected yaml rules: %#v", rules)
	}

	jsonPath := filepath.Join(dir, "rules.json")
	if err := os.WriteFile(jsonPath, []byte(`{"markers":[]}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadRules(jsonPath); err == nil {
		t.Fatalf("expected error for empty markers")
	}

	if _, err := LoadRules(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing rules file")
	}
}
