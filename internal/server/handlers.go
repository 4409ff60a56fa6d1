package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/labstack/echo/v4"

	"github.com/steadiczech/games-devkit/internal/catalog"
	"github.com/steadiczech/games-devkit/internal/domain"
	"github.com/steadiczech/games-devkit/pkg/publishers"
)

const publishTimeout = 10 * time.Second

var (
	errGameExists   = errors.New("game with this title already exists")
	errGameNotFound = errors.New("game not found")
)

// handleList serves the games file bytes verbatim, or [] when it is absent.
func (s *Server) handleList(c echo.Context) error {
	data, err := s.store.ReadRaw()
	if err != nil {
		s.log.ErrorObj("read games file failed", "error", err.Error())
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to read games: " + err.Error()})
	}

	etag := fmt.Sprintf("\"%016x\"", xxhash.Sum64(data))
	c.Response().Header().Set("Cache-Control", "no-cache")
	c.Response().Header().Set("ETag", etag)
	if match := c.Request().Header.Get("If-None-Match"); match != "" && match == etag {
		return c.NoContent(http.StatusNotModified)
	}
	return c.Blob(http.StatusOK, echo.MIMEApplicationJSON, data)
}

// handleAppend appends {title, image, description} from the posted JSON object.
func (s *Server) handleAppend(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return s.saveFailed(c, reasonRequest, fmt.Errorf("read request body: %w", err))
	}

	var in domain.Record
	if err := in.UnmarshalJSON(body); err != nil {
		return s.saveFailed(c, reasonRequest, fmt.Errorf("decode request body: %w", err))
	}

	var rec domain.Record
	for _, key := range []string{domain.KeyTitle, domain.KeyImage, domain.KeyDescription} {
		if raw, ok := in.Raw(key); ok {
			rec.SetRaw(key, raw)
			continue
		}
		rec.Set(key, "")
	}
	s.applyCoverFallback(&rec)
	s.applyDescription(&rec)

	if err := s.store.Append(rec); err != nil {
		reason := reasonIO
		if errors.Is(err, catalog.ErrMalformed) {
			reason = reasonParse
		}
		return s.saveFailed(c, reason, err)
	}

	s.metrics.saved.Inc()
	s.log.InfoObj("game saved", "game", map[string]any{
		"title": rec.Title(),
		"file":  s.store.Name(),
	})
	return s.respondAndPublish(c, http.StatusOK, map[string]string{"message": "Game saved successfully"},
		publishers.NewGameEvent(publishers.EventGameSaved, s.opts.Source, rec))
}

func (s *Server) saveFailed(c echo.Context, reason string, err error) error {
	s.metrics.failures.WithLabelValues(reason).Inc()
	s.log.ErrorObj("save game failed", "save_error", map[string]any{
		"reason": reason,
		"error":  err.Error(),
	})
	return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to save game: " + err.Error()})
}

// applyCoverFallback swaps a missing local cover for the default image.
func (s *Server) applyCoverFallback(rec *domain.Record) {
	if !s.opts.CoverFallback {
		return
	}
	image, ok := rec.Get(domain.KeyImage)
	if !ok {
		return
	}
	if image != "" {
		if !strings.HasPrefix(image, "/") {
			return
		}
		local := filepath.Join(s.opts.RootDir, filepath.FromSlash(strings.TrimPrefix(image, "/")))
		if _, err := os.Stat(local); err == nil {
			return
		}
	}
	rec.Set(domain.KeyImage, s.opts.Links.DefaultImageURL())
}

// applyDescription fills an empty description from the game's index page.
func (s *Server) applyDescription(rec *domain.Record) {
	if s.describer == nil {
		return
	}
	if desc, ok := rec.Get(domain.KeyDescription); !ok || desc != "" {
		return
	}
	desc, err := s.describer.Describe(rec.Title())
	if err != nil {
		s.log.WarnObj("describe game failed", "enrich_error", map[string]any{
			"title": rec.Title(),
			"error": err.Error(),
		})
		return
	}
	if desc != "" {
		rec.Set(domain.KeyDescription, desc)
	}
}

// respondAndPublish writes and flushes the JSON response, then delivers evt.
// Delivery is detached from the request so a client disconnect does not cancel
// it, and is bounded by publishTimeout.
func (s *Server) respondAndPublish(c echo.Context, status int, body any, evt publishers.Event) error {
	if err := c.JSON(status, body); err != nil {
		return err
	}
	if s.notifier == nil {
		return nil
	}
	c.Response().Flush()

	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request().Context()), publishTimeout)
	defer cancel()
	if _, err := s.notifier.Publish(ctx, evt); err != nil {
		s.log.WarnObj("publish event failed", "publish_error", map[string]any{
			"event_id":   evt.ID,
			"event_type": evt.Type,
			"error":      err.Error(),
		})
	}
	return nil
}

type createGameRequest struct {
	Title       string  `json:"title" validate:"required"`
	Image       string  `json:"image" validate:"required"`
	Description string  `json:"description" validate:"required"`
	URL         *string `json:"url"`
}

type updateGameRequest struct {
	Image       string  `json:"image"`
	Description string  `json:"description"`
	URL         *string `json:"url"`
}

func (s *Server) handleAPIList(c echo.Context) error {
	records, _, err := s.store.Load()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to read games: " + err.Error()})
	}
	if records == nil {
		records = []domain.Record{}
	}
	return c.JSON(http.StatusOK, records)
}

func (s *Server) handleAPICreate(c echo.Context) error {
	var req createGameRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Title, image, and description are required"})
	}

	rec := domain.NewRecord(req.Title, req.Image, req.Description)
	if req.URL != nil && *req.URL != "" {
		rec.Set(domain.KeyURL, *req.URL)
	}

	_, err := s.store.Update(func(records []domain.Record, _ bool) ([]domain.Record, bool, error) {
		if findByTitle(records, req.Title) >= 0 {
			return nil, false, errGameExists
		}
		return append(records, rec), true, nil
	})
	switch {
	case errors.Is(err, errGameExists):
		return c.JSON(http.StatusConflict, map[string]string{"error": "Game with this title already exists"})
	case err != nil:
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to add game: " + err.Error()})
	}

	s.metrics.saved.Inc()
	return s.respondAndPublish(c, http.StatusCreated, map[string]any{"message": "Game added successfully", "game": rec},
		publishers.NewGameEvent(publishers.EventGameSaved, s.opts.Source, rec))
}

func (s *Server) handleAPIUpdate(c echo.Context) error {
	title := titleParam(c)

	var req updateGameRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}

	var updated domain.Record
	_, err := s.store.Update(func(records []domain.Record, _ bool) ([]domain.Record, bool, error) {
		i := findByTitle(records, title)
		if i < 0 {
			return nil, false, errGameNotFound
		}
		rec := records[i].Clone()
		if req.Image != "" {
			rec.Set(domain.KeyImage, req.Image)
		}
		if req.Description != "" {
			rec.Set(domain.KeyDescription, req.Description)
		}
		if req.URL != nil {
			rec.Set(domain.KeyURL, *req.URL)
		}
		records[i] = rec
		updated = rec
		return records, true, nil
	})
	switch {
	case errors.Is(err, errGameNotFound):
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Game not found"})
	case err != nil:
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to update game: " + err.Error()})
	}

	return s.respondAndPublish(c, http.StatusOK, map[string]any{"message": "Game updated successfully", "game": updated},
		publishers.NewGameEvent(publishers.EventGameUpdated, s.opts.Source, updated))
}

func (s *Server) handleAPIDelete(c echo.Context) error {
	title := titleParam(c)

	var removed domain.Record
	_, err := s.store.Update(func(records []domain.Record, _ bool) ([]domain.Record, bool, error) {
		i := findByTitle(records, title)
		if i < 0 {
			return nil, false, errGameNotFound
		}
		removed = records[i]
		return append(records[:i], records[i+1:]...), true, nil
	})
	switch {
	case errors.Is(err, errGameNotFound):
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Game not found"})
	case err != nil:
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to delete game: " + err.Error()})
	}

	return s.respondAndPublish(c, http.StatusOK, map[string]string{"message": "Game deleted successfully"},
		publishers.NewGameEvent(publishers.EventGameDeleted, s.opts.Source, removed))
}

func titleParam(c echo.Context) string {
	raw := c.Param("title")
	if title, err := url.PathUnescape(raw); err == nil {
		return title
	}
	return raw
}

func findByTitle(records []domain.Record, title string) int {
	for i, rec := range records {
		if t, ok := rec.Get(domain.KeyTitle); ok && t == title {
			return i
		}
	}
	return -1
}
