package service

import (
	"context"
	"errors"
	"fmt"

	"narrative-server/internal/messaging"
	"narrative-server/internal/models"
	"narrative-server/internal/repository"
	"narrative-server/pkg/database"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// recentEventsLimit - сколько последних событий уходит в контекст промтов.
const recentEventsLimit = 5

// requireStory проверяет, что история существует и принадлежит пользователю.
// Чужая история неотличима от отсутствующей.
func requireStory(ctx context.Context, q database.DBTX, stories repository.StoryRepository, userID, storyID uuid.UUID) (*models.Story, error) {
	story, err := stories.GetByIDForUser(ctx, q, storyID, userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("ошибка проверки истории %s: %w", storyID, err)
	}
	return story, nil
}

// publishUpdate отправляет событие истории. Ошибка только логируется.
func publishUpdate(ctx context.Context, publisher messaging.StoryUpdatePublisher, logger *zap.Logger, update models.StoryUpdate) {
	if publisher == nil {
		return
	}
	if err := publisher.PublishStoryUpdate(ctx, update); err != nil {
		logger.Warn("Failed to publish story update",
			zap.String("type", string(update.Type)),
			zap.String("storyID", update.StoryID.String()),
			zap.Error(err),
		)
	}
}

// awardXP начисляет опыт. Ошибка только логируется.
func awardXP(ctx context.Context, progress ProgressService, logger *zap.Logger, userID uuid.UUID, amount int, reason string) *models.XPAward {
	if progress == nil {
		return nil
	}
	award, err := progress.AwardXP(ctx, userID, amount, reason)
	if err != nil {
		logger.Warn("Failed to award XP",
			zap.String("userID", userID.String()),
			zap.String("reason", reason),
			zap.Error(err),
		)
		return nil
	}
	return award
}

// ptrIfNotEmpty возвращает nil для пустой строки.
func ptrIfNotEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
