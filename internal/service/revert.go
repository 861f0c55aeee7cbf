package service

import (
	"context"

	"narrative-server/internal/models"
	"narrative-server/pkg/database"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RevertElement удаляет подтвержденную сущность вместе с упоминаниями и
// связями и возвращает все породившие их подсказки в pending.
func (s *suggestionServiceImpl) RevertElement(ctx context.Context, userID, elementID uuid.UUID) (*models.RevertResult, error) {
	log := s.logger.With(zap.String("userID", userID.String()), zap.String("elementID", elementID.String()))

	var (
		storyID uuid.UUID
		reset   []uuid.UUID
	)
	err := s.tx.WithTransaction(ctx, func(ctx context.Context, tx database.DBTX) error {
		element, err := s.elements.GetByID(ctx, tx, elementID)
		if err != nil {
			return err
		}
		if _, err := requireStory(ctx, tx, s.stories, userID, element.StoryID); err != nil {
			return err
		}
		if element.OriginatingSuggestionID == nil {
			return models.ErrNotRevertible
		}
		storyID = element.StoryID

		mentionOrigins, err := s.mentions.DeleteByElement(ctx, tx, elementID)
		if err != nil {
			return err
		}
		connectionOrigins, err := s.connections.DeleteByElement(ctx, tx, elementID)
		if err != nil {
			return err
		}
		if err := s.moments.RemoveCharacter(ctx, tx, element.StoryID, elementID); err != nil {
			return err
		}
		if err := s.elements.Delete(ctx, tx, element.StoryID, elementID); err != nil {
			return err
		}

		ids := uniqueIDs(append(append([]uuid.UUID{*element.OriginatingSuggestionID}, mentionOrigins...), connectionOrigins...))
		reset, err = s.suggestions.ResetToPending(ctx, tx, ids)
		return err
	})
	if err != nil {
		return nil, err
	}

	log.Info("Element reverted", zap.String("storyID", storyID.String()), zap.Int("suggestions", len(reset)))
	id := elementID
	publishUpdate(ctx, s.publisher, log, models.NewStoryUpdate(models.UpdateElementReverted, userID, storyID, &id))
	return &models.RevertResult{Success: true, SuggestionIDs: reset}, nil
}

// RevertMoment удаляет подтвержденное событие и возвращает его подсказку в pending.
func (s *suggestionServiceImpl) RevertMoment(ctx context.Context, userID, momentID uuid.UUID) (*models.RevertResult, error) {
	log := s.logger.With(zap.String("userID", userID.String()), zap.String("momentID", momentID.String()))

	var (
		storyID uuid.UUID
		reset   []uuid.UUID
	)
	err := s.tx.WithTransaction(ctx, func(ctx context.Context, tx database.DBTX) error {
		moment, err := s.moments.GetByID(ctx, tx, momentID)
		if err != nil {
			return err
		}
		if _, err := requireStory(ctx, tx, s.stories, userID, moment.StoryID); err != nil {
			return err
		}
		if moment.OriginatingSuggestionID == nil {
			return models.ErrNotRevertible
		}
		storyID = moment.StoryID

		if err := s.moments.Delete(ctx, tx, moment.StoryID, momentID); err != nil {
			return err
		}
		reset, err = s.suggestions.ResetToPending(ctx, tx, []uuid.UUID{*moment.OriginatingSuggestionID})
		return err
	})
	if err != nil {
		return nil, err
	}

	log.Info("Moment reverted", zap.String("storyID", storyID.String()), zap.Int("suggestions", len(reset)))
	id := momentID
	publishUpdate(ctx, s.publisher, log, models.NewStoryUpdate(models.UpdateMomentReverted, userID, storyID, &id))
	return &models.RevertResult{Success: true, SuggestionIDs: reset}, nil
}

func uniqueIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
