package models

import (
	"time"

	"github.com/google/uuid"
)

// DefaultConnectionWeight - вес связи по умолчанию.
const DefaultConnectionWeight = 5

// NarrativeConnection - ребро графа отношений. Создается только если
// оба конца разрешились в существующие сущности.
type NarrativeConnection struct {
	ID                      uuid.UUID  `json:"id" db:"id"`
	StoryID                 uuid.UUID  `json:"story_id" db:"story_id"`
	FromID                  uuid.UUID  `json:"from_id" db:"from_id"`
	ToID                    uuid.UUID  `json:"to_id" db:"to_id"`
	ConnectionType          string     `json:"connection_type" db:"connection_type"`
	Description             *string    `json:"description,omitempty" db:"description"`
	Weight                  int        `json:"weight" db:"weight"`
	EmotionalCharge         int        `json:"emotional_charge" db:"emotional_charge"`
	CreatedFromNarration    *uuid.UUID `json:"created_from_narration,omitempty" db:"created_from_narration"`
	OriginatingSuggestionID *uuid.UUID `json:"originating_suggestion_id,omitempty" db:"originating_suggestion_id"`
	CreatedAt               time.Time  `json:"created_at" db:"created_at"`
}
