package publishers

import (
	"time"

	"github.com/google/uuid"

	"github.com/steadiczech/games-devkit/internal/domain"
)

// Event types published downstream.
const (
	EventGameSaved     = "game.saved"
	EventGameUpdated   = "game.updated"
	EventGameDeleted   = "game.deleted"
	EventGamesMigrated = "games.migrated"
)

// Event represents the payload published downstream.
type Event struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	Source     string          `json:"source"`
	Game       *domain.Record  `json:"game,omitempty"`
	Changes    []domain.Change `json:"changes,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// NewGameEvent constructs an Event about a single game record.
func NewGameEvent(typ, source string, game domain.Record) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       typ,
		Source:     source,
		Game:       &game,
		OccurredAt: time.Now().UTC(),
	}
}

// NewMigrationEvent constructs an Event listing the fields a migration rewrote.
func NewMigrationEvent(source string, changes []domain.Change) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       EventGamesMigrated,
		Source:     source,
		Changes:    changes,
		OccurredAt: time.Now().UTC(),
	}
}
