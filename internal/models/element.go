package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// ElementType - тип канонической сущности мира.
type ElementType string

const (
	ElementTypeCharacter    ElementType = "character"
	ElementTypeLocation     ElementType = "location"
	ElementTypeOrganization ElementType = "organization"
)

// IsValid проверяет, что тип входит в допустимое множество.
func (t ElementType) IsValid() bool {
	switch t {
	case ElementTypeCharacter, ElementTypeLocation, ElementTypeOrganization:
		return true
	}
	return false
}

// DefaultConfidence подставляется, если LLM не вернул уверенность.
const DefaultConfidence = 1.0

// ElementAttributes - атрибуты сущности. Набор полей зависит от ElementType:
// traits, current_emotion и sentiment_score есть только у персонажей,
// type - только у локаций и организаций.
type ElementAttributes struct {
	Description    string   `json:"description,omitempty" validate:"max=2000"`
	Traits         []string `json:"traits,omitempty" validate:"max=20,dive,max=100"`
	CurrentEmotion string   `json:"current_emotion,omitempty" validate:"max=100"`
	SentimentScore *float64 `json:"sentiment_score,omitempty" validate:"omitempty,gte=-10,lte=10"`
	Type           string   `json:"type,omitempty" validate:"max=100"`
}

// ForType оставляет только поля, допустимые для данного типа сущности.
func (a ElementAttributes) ForType(t ElementType) ElementAttributes {
	out := ElementAttributes{Description: strings.TrimSpace(a.Description)}
	switch t {
	case ElementTypeCharacter:
		out.Traits = a.Traits
		out.CurrentEmotion = strings.TrimSpace(a.CurrentEmotion)
		out.SentimentScore = a.SentimentScore
	case ElementTypeLocation, ElementTypeOrganization:
		out.Type = strings.TrimSpace(a.Type)
	}
	return out
}

// NarrativeElement - каноническая сущность (персонаж, локация, организация).
// Имя уникально в рамках (story_id, lower(name), element_type).
type NarrativeElement struct {
	ID                        uuid.UUID         `json:"id" db:"id"`
	StoryID                   uuid.UUID         `json:"story_id" db:"story_id"`
	ElementType               ElementType       `json:"element_type" db:"element_type"`
	Name                      string            `json:"name" db:"name"`
	Attributes                ElementAttributes `json:"attributes" db:"attributes"`
	FirstMentionedInNarration *uuid.UUID        `json:"first_mentioned_in_narration,omitempty" db:"first_mentioned_in_narration"`
	LastMentionedInNarration  *uuid.UUID        `json:"last_mentioned_in_narration,omitempty" db:"last_mentioned_in_narration"`
	ConfidenceScore           float64           `json:"confidence_score" db:"confidence_score"`
	OriginatingSuggestionID   *uuid.UUID        `json:"originating_suggestion_id,omitempty" db:"originating_suggestion_id"`
	CreatedAt                 time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt                 time.Time         `json:"updated_at" db:"updated_at"`
}

// ElementPatch - ручная правка сущности из досье.
type ElementPatch struct {
	Name            *string            `json:"name" binding:"omitempty,min=1,max=200"`
	Attributes      *ElementAttributes `json:"attributes"`
	ConfidenceScore *float64           `json:"confidence_score" binding:"omitempty,gte=0,lte=1"`
}

// IsEmpty сообщает, что обновлять нечего.
func (p ElementPatch) IsEmpty() bool {
	return p.Name == nil && p.Attributes == nil && p.ConfidenceScore == nil
}

// EmotionalState - эмоциональное состояние сущности в момент упоминания.
type EmotionalState struct {
	CurrentEmotion string   `json:"current_emotion,omitempty"`
	SentimentScore *float64 `json:"sentiment_score,omitempty"`
}

// EntityMention - запись журнала упоминаний. Только добавление.
type EntityMention struct {
	ID                      uuid.UUID      `json:"id" db:"id"`
	StoryID                 uuid.UUID      `json:"story_id" db:"story_id"`
	ElementID               uuid.UUID      `json:"element_id" db:"element_id"`
	NarrationID             uuid.UUID      `json:"narration_id" db:"narration_id"`
	MentionContext          *string        `json:"mention_context,omitempty" db:"mention_context"`
	EmotionalState          EmotionalState `json:"emotional_state" db:"emotional_state"`
	ImportanceInNarration   int            `json:"importance_in_narration" db:"importance_in_narration"`
	OriginatingSuggestionID *uuid.UUID     `json:"originating_suggestion_id,omitempty" db:"originating_suggestion_id"`
	CreatedAt               time.Time      `json:"created_at" db:"created_at"`
}

// ElementRef - минимальные данные сущности для разрешения имен.
type ElementRef struct {
	ID          uuid.UUID   `json:"id" db:"id"`
	Name        string      `json:"name" db:"name"`
	ElementType ElementType `json:"element_type" db:"element_type"`
}
