package gamesclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/steadiczech/games-devkit/internal/catalog"
	"github.com/steadiczech/games-devkit/internal/domain"
	"github.com/steadiczech/games-devkit/pkg/httpclient"
)

const defaultTimeout = 10 * time.Second

// Game is the append payload accepted by the dev server.
type Game struct {
	Title       string `json:"title"`
	Image       string `json:"image"`
	Description string `json:"description"`
}

// Client talks to a running dev server.
type Client struct {
	baseURL    string
	listPath   string
	appendPath string
	http       httpclient.Client
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient swaps the transport.
func WithHTTPClient(hc httpclient.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithPaths overrides the list and append paths.
func WithPaths(listPath, appendPath string) Option {
	return func(c *Client) {
		if listPath != "" {
			c.listPath = listPath
		}
		if appendPath != "" {
			c.appendPath = appendPath
		}
	}
}

// New returns a client for the server at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		listPath:   "/games.json",
		appendPath: "/save-game.php",
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = httpclient.NewRestyClient(defaultTimeout)
	}
	return c
}

// List fetches and decodes the games list.
func (c *Client) List(ctx context.Context) ([]domain.Record, error) {
	resp, err := c.http.Get(ctx, c.baseURL+c.listPath, map[string]string{"Accept": "application/json"})
	if err != nil {
		return nil, fmt.Errorf("fetch games list: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("games list returned status %d: %s", resp.StatusCode(), snippet(resp.Body()))
	}
	records, err := catalog.Decode(resp.Body())
	if err != nil {
		return nil, fmt.Errorf("decode games list: %w", err)
	}
	return records, nil
}

// Save appends game through the append endpoint.
func (c *Client) Save(ctx context.Context, game Game) error {
	resp, err := c.http.Post(ctx, c.baseURL+c.appendPath, nil, game)
	if err != nil {
		return fmt.Errorf("save game: %w", err)
	}

	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	_ = json.Unmarshal(resp.Body(), &body)

	if resp.StatusCode() != http.StatusOK {
		if body.Error != "" {
			return fmt.Errorf("save game: status %d: %s", resp.StatusCode(), body.Error)
		}
		return fmt.Errorf("save game: status %d: %s", resp.StatusCode(), snippet(resp.Body()))
	}
	return nil
}

func snippet(body []byte) string {
	const maxLen = 512
	s := strings.TrimSpace(string(body))
	if len(s) > maxLen {
		return s[:maxLen] + "..."
	}
	if s == "" {
		return "<empty>"
	}
	return s
}
