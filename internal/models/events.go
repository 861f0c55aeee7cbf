package models

import (
	"time"

	"github.com/google/uuid"
)

// StoryUpdateType - вид изменения истории, о котором уведомляются клиенты.
type StoryUpdateType string

const (
	UpdateNarrationCreated    StoryUpdateType = "narration.created"
	UpdateSuggestionConfirmed StoryUpdateType = "suggestion.confirmed"
	UpdateSuggestionRejected  StoryUpdateType = "suggestion.rejected"
	UpdateElementReverted     StoryUpdateType = "element.reverted"
	UpdateMomentReverted      StoryUpdateType = "moment.reverted"
)

// StoryUpdate - сообщение об изменении истории для websocket и RabbitMQ.
type StoryUpdate struct {
	Type       StoryUpdateType `json:"type"`
	UserID     uuid.UUID       `json:"user_id"`
	StoryID    uuid.UUID       `json:"story_id"`
	EntityID   *uuid.UUID      `json:"entity_id,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// NewStoryUpdate создает событие с текущим временем.
func NewStoryUpdate(t StoryUpdateType, userID, storyID uuid.UUID, entityID *uuid.UUID) StoryUpdate {
	return StoryUpdate{
		Type:       t,
		UserID:     userID,
		StoryID:    storyID,
		EntityID:   entityID,
		OccurredAt: time.Now().UTC(),
	}
}
