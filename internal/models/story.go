package models

import (
	"time"

	"github.com/google/uuid"
)

// DefaultStoryTitle используется, если пользователь не передал название.
const DefaultStoryTitle = "Untitled Story"

// Story - корневая сущность. Все остальные записи принадлежат ровно одной истории.
type Story struct {
	ID          uuid.UUID `json:"id" db:"id"`
	UserID      uuid.UUID `json:"user_id" db:"user_id"`
	Title       string    `json:"title" db:"title"`
	Description *string   `json:"description,omitempty" db:"description"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// StoryPatch - частичное обновление истории. nil означает "не менять".
type StoryPatch struct {
	Title       *string `json:"title" binding:"omitempty,min=1,max=200"`
	Description *string `json:"description" binding:"omitempty,max=2000"`
}

// IsEmpty сообщает, что обновлять нечего.
func (p StoryPatch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil
}
