package enrich

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/steadiczech/games-devkit/internal/catalog"
)

const maxPageBytes = 1 << 20 // 1MB

// PageMeta is the metadata read from a game's index page.
type PageMeta struct {
	Title       string
	Description string
}

// Enricher reads game pages from a served root directory.
type Enricher struct {
	root string
}

// New returns an Enricher rooted at dir.
func New(root string) *Enricher {
	return &Enricher{root: root}
}

// Describe returns a description for title taken from games/<slug>/index.html:
// og:description, then meta description, then the page title. A missing page
// yields "" and no error.
func (e *Enricher) Describe(title string) (string, error) {
	meta, err := e.Page(title)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return firstNonEmpty(meta.Description, meta.Title), nil
}

// Page reads and parses the index page of the game named title.
func (e *Enricher) Page(title string) (PageMeta, error) {
	path := filepath.Join(e.root, filepath.FromSlash(catalog.GamePagePath(title)))
	f, err := os.Open(path)
	if err != nil {
		return PageMeta{}, err
	}
	defer f.Close()

	body, err := io.ReadAll(io.LimitReader(f, maxPageBytes))
	if err != nil {
		return PageMeta{}, fmt.Errorf("read game page: %w", err)
	}
	return ParseMeta(body)
}

// ParseMeta extracts the title and description of an HTML document.
func ParseMeta(body []byte) (PageMeta, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return PageMeta{}, fmt.Errorf("parse html: %w", err)
	}

	extract := func(sel string) string {
		if node := doc.Find(sel).First(); node.Length() > 0 {
			if val, ok := node.Attr("content"); ok {
				return strings.TrimSpace(val)
			}
		}
		return ""
	}

	return PageMeta{
		Title: firstNonEmpty(
			extract(`meta[property="og:title"]`),
			doc.Find("title").First().Text(),
		),
		Description: firstNonEmpty(
			extract(`meta[property="og:description"]`),
			extract(`meta[name="description"]`),
		),
	}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
