package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// DefaultListenerResponse - реплика слушателя, когда LLM не ответил.
const DefaultListenerResponse = "I hear you. Tell me more."

// NarrationStatus показывает, удалось ли извлечь структуру из наррации.
type NarrationStatus string

const (
	NarrationStatusSuggestionsPending NarrationStatus = "suggestions_pending"
	NarrationStatusRaw                NarrationStatus = "raw"
)

// RawNarration - один фрагмент истории, рассказанный пользователем.
// Не изменяется после создания.
type RawNarration struct {
	ID               uuid.UUID       `json:"id" db:"id"`
	StoryID          uuid.UUID       `json:"story_id" db:"story_id"`
	Content          string          `json:"content" db:"content"`
	SequenceNumber   int             `json:"sequence_number" db:"sequence_number"`
	ListenerResponse string          `json:"listener_response" db:"listener_response"`
	Extracted        json.RawMessage `json:"extracted" db:"extracted"`
	CreatedAt        time.Time       `json:"created_at" db:"created_at"`
}

// NarrationResult - ответ конвейера приема наррации.
type NarrationResult struct {
	Narration        *RawNarration     `json:"narration"`
	Extracted        *ExtractionResult `json:"extracted"`
	ListenerResponse string            `json:"listener_response"`
	Status           NarrationStatus   `json:"status"`
	Staged           int               `json:"staged"`
}
