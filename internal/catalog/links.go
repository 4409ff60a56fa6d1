package catalog

import (
	"strings"

	"github.com/steadiczech/games-devkit/internal/domain"
)

const (
	GamesDirectory    = "games"
	ImagesDirectory   = "images"
	coverFile         = "cover.png"
	indexFile         = "index.html"
	defaultCoverImage = "default-game-cover.png"
)

// Links derives public URLs for games from a base address.
type Links struct {
	BaseURL string
}

// NewLinks trims any trailing slash from base.
func NewLinks(base string) Links {
	return Links{BaseURL: strings.TrimRight(strings.TrimSpace(base), "/")}
}

// GameImageURL is the cover image URL for a game title.
func (l Links) GameImageURL(title string) string {
	return l.BaseURL + GameImagePath(title)
}

// GameURL is the playable page URL for a game title.
func (l Links) GameURL(title string) string {
	return l.BaseURL + "/" + GamesDirectory + "/" + domain.Slug(title) + "/" + indexFile
}

// DefaultImageURL is the fallback cover used when a game has none.
func (l Links) DefaultImageURL() string {
	return l.BaseURL + "/" + ImagesDirectory + "/" + defaultCoverImage
}

// GamesDirectoryURL is the public base of all game folders.
func (l Links) GamesDirectoryURL() string {
	return l.BaseURL + "/" + GamesDirectory + "/"
}

// GameImagePath is the server-relative cover path for a game title.
func GameImagePath(title string) string {
	return "/" + GamesDirectory + "/" + domain.Slug(title) + "/" + coverFile
}

// GamePagePath is the slash-separated index.html path of a game relative to the served root.
func GamePagePath(title string) string {
	return GamesDirectory + "/" + domain.Slug(title) + "/" + indexFile
}
