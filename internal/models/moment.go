package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultNarrativeWeight - вес события, если LLM не указал важность.
	DefaultNarrativeWeight = 5
	// MaxTimelinePosition - верхняя граница позиции на таймлайне, всегда < 1.
	MaxTimelinePosition = 0.99
)

// TimelinePositionForSequence приближает хронологию по номеру наррации.
func TimelinePositionForSequence(seq int) float64 {
	if seq < 0 {
		seq = 0
	}
	pos := float64(seq) / 100
	if pos > MaxTimelinePosition {
		return MaxTimelinePosition
	}
	return pos
}

// StoryMoment - событие на таймлайне истории.
type StoryMoment struct {
	ID                      uuid.UUID          `json:"id" db:"id"`
	StoryID                 uuid.UUID          `json:"story_id" db:"story_id"`
	Title                   string             `json:"title" db:"title"`
	Description             *string            `json:"description,omitempty" db:"description"`
	TimelinePosition        float64            `json:"timeline_position" db:"timeline_position"`
	CreatedFromNarration    *uuid.UUID         `json:"created_from_narration,omitempty" db:"created_from_narration"`
	CharactersInvolved      []uuid.UUID        `json:"characters_involved" db:"characters_involved"`
	EmotionalSignature      map[string]float64 `json:"emotional_signature" db:"emotional_signature"`
	NarrativeWeight         int                `json:"narrative_weight" db:"narrative_weight"`
	OriginatingSuggestionID *uuid.UUID         `json:"originating_suggestion_id,omitempty" db:"originating_suggestion_id"`
	CreatedAt               time.Time          `json:"created_at" db:"created_at"`
}

// MomentPatch - ручная правка события.
type MomentPatch struct {
	Title            *string  `json:"title" binding:"omitempty,min=1,max=300"`
	Description      *string  `json:"description" binding:"omitempty,max=4000"`
	TimelinePosition *float64 `json:"timeline_position" binding:"omitempty,gte=0,lt=1"`
	NarrativeWeight  *int     `json:"narrative_weight" binding:"omitempty,min=1,max=10"`
}

// IsEmpty сообщает, что обновлять нечего.
func (p MomentPatch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.TimelinePosition == nil && p.NarrativeWeight == nil
}
