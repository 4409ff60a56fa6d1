package domain

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestSlug(t *testing.T) {
	cases := map[string]string{
		"Foo Bar":         "foo-bar",
		"Save the Chikky": "save-the-chikky",
		"":                "",
		"Two  Spaces":     "two--spaces",
	}
	for in, want := range cases {
		if got := Slug(in); got != want {
			t.Fatalf("Slug(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRecordPreservesKeyOrderAndUnknownFields(t *testing.T) {
	in := `{"url":"https://steadiczech.com/x","title":"Foo","rating":4.5,"tags":["a","b"]}`

	var rec Record
	if err := json.Unmarshal([]byte(in), &rec); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	rec.Set(KeyURL, "http://localhost:3000/games/foo/index.html")

	out, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	want := `{"url":"http://localhost:3000/games/foo/index.html","title":"Foo","rating":4.5,"tags":["a","b"]}`
	if string(out) != want {
		t.Fatalf("got %s\nwant %s", out, want)
	}
}

func TestRecordGetRejectsNonString(t *testing.T) {
	var rec Record
	if err := json.Unmarshal([]byte(`{"image":42,"title":"Quest"}`), &rec); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if _, ok := rec.Get(KeyImage); ok {
		t.Fatalf("expected non-string image to be reported as missing")
	}
	if !rec.Has(KeyImage) {
		t.Fatalf("Has(image) should be true for a numeric value")
	}
	if rec.Title() != "Quest" {
		t.Fatalf("Title = %q", rec.Title())
	}
}

func TestRecordUnmarshalRejectsNonObject(t *testing.T) {
	var rec Record
	err := json.Unmarshal([]byte(`["not","an","object"]`), &rec)
	if !errors.Is(err, ErrNotObject) {
		t.Fatalf("expected ErrNotObject, got %v", err)
	}
}

func TestNewRecordShape(t *testing.T) {
	out, err := json.Marshal(NewRecord("Foo Bar", "", "d"))
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(out) != `{"title":"Foo Bar","image":"","description":"d"}` {
		t.Fatalf("unexpected record %s", out)
	}
}

func TestRecordMissingTitleAndUnescapedHTML(t *testing.T) {
	var rec Record
	rec.Set(KeyImage, "img")
	if rec.Has(KeyTitle) || rec.Title() != "" {
		t.Fatalf("title should be absent")
	}
	rec.Set(KeyTitle, "A & B <x>")
	raw, _ := rec.Raw(KeyTitle)
	if string(raw) != `"A & B <x>"` {
		t.Fatalf("expected unescaped HTML characters, got %s", raw)
	}
	if rec.Len() != 2 {
		t.Fatalf("Len = %d", rec.Len())
	}
}

func TestRecordDuplicateKeysCollapseToLastValue(t *testing.T) {
	var rec Record
	if err := rec.UnmarshalJSON([]byte(`{"title":"Foo","image":"new","url":"u","image":"https://steadiczech.com/x.png"}`)); err != nil {
		t.Fatalf("UnmarshalJSON: %v", err)
	}
	if rec.Len() != 3 {
		t.Fatalf("duplicate key should collapse, Len = %d", rec.Len())
	}
	if img, _ := rec.Get(KeyImage); img != "https://steadiczech.com/x.png" {
		t.Fatalf("image = %q, want last value", img)
	}
	out, err := rec.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON: %v", err)
	}
	if string(out) != `{"title":"Foo","image":"https://steadiczech.com/x.png","url":"u"}` {
		t.Fatalf("key should keep its first position, got %s", out)
	}
}
