package models

import (
	"context"

	"github.com/google/uuid"
)

// contextKey - приватный тип для ключей контекста, чтобы избежать коллизий.
type contextKey string

const (
	// UserContextKey хранит uuid.UUID пользователя (claim "sub").
	UserContextKey contextKey = "userID"
)

// WithUserID кладет идентификатор пользователя в контекст.
func WithUserID(ctx context.Context, userID uuid.UUID) context.Context {
	return context.WithValue(ctx, UserContextKey, userID)
}

// GetUserIDFromContext извлекает UserID из контекста.
// Возвращает uuid.Nil и false, если ключа нет или тип не совпадает.
func GetUserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	userID, ok := ctx.Value(UserContextKey).(uuid.UUID)
	return userID, ok
}
