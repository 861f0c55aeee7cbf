package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"narrative-server/internal/models"
	"narrative-server/pkg/database"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

const (
	storyColumns = `id, user_id, title, description, created_at, updated_at`

	createStoryQuery = `
        INSERT INTO stories (id, user_id, title, description, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6)
    `
	getStoryForUserQuery = `SELECT ` + storyColumns + ` FROM stories WHERE id = $1 AND user_id = $2`
	listStoriesQuery     = `SELECT ` + storyColumns + ` FROM stories WHERE user_id = $1 ORDER BY created_at DESC`
	updateStoryQuery     = `
        UPDATE stories
        SET title = COALESCE($3, title),
            description = COALESCE($4, description),
            updated_at = NOW()
        WHERE id = $1 AND user_id = $2
        RETURNING ` + storyColumns
	deleteStoryQuery = `DELETE FROM stories WHERE id = $1 AND user_id = $2`
)

type pgStoryRepository struct {
	logger *zap.Logger
}

var _ StoryRepository = (*pgStoryRepository)(nil)

// NewPgStoryRepository создает репозиторий историй.
func NewPgStoryRepository(logger *zap.Logger) StoryRepository {
	return &pgStoryRepository{logger: logger.Named("PgStoryRepo")}
}

func (r *pgStoryRepository) Create(ctx context.Context, querier database.DBTX, story *models.Story) error {
	if story.ID == uuid.Nil {
		story.ID = uuid.New()
	}
	now := time.Now().UTC()
	story.CreatedAt = now
	story.UpdatedAt = now

	logFields := []zap.Field{
		zap.String("storyID", story.ID.String()),
		zap.String("userID", story.UserID.String()),
	}
	r.logger.Debug("Creating story", logFields...)

	if _, err := querier.Exec(ctx, createStoryQuery,
		story.ID, story.UserID, story.Title, story.Description, story.CreatedAt, story.UpdatedAt,
	); err != nil {
		r.logger.Error("Failed to create story", append(logFields, zap.Error(err))...)
		return fmt.Errorf("ошибка создания истории: %w", err)
	}
	r.logger.Info("Story created", logFields...)
	return nil
}

func (r *pgStoryRepository) GetByIDForUser(ctx context.Context, querier database.DBTX, id, userID uuid.UUID) (*models.Story, error) {
	var story models.Story
	if err := pgxscan.Get(ctx, querier, &story, getStoryForUserQuery, id, userID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		r.logger.Error("Failed to get story", zap.String("storyID", id.String()), zap.Error(err))
		return nil, fmt.Errorf("ошибка получения истории %s: %w", id, err)
	}
	return &story, nil
}

func (r *pgStoryRepository) ListByUser(ctx context.Context, querier database.DBTX, userID uuid.UUID) ([]models.Story, error) {
	stories := make([]models.Story, 0)
	if err := pgxscan.Select(ctx, querier, &stories, listStoriesQuery, userID); err != nil {
		r.logger.Error("Failed to list stories", zap.String("userID", userID.String()), zap.Error(err))
		return nil, fmt.Errorf("ошибка получения списка историй: %w", err)
	}
	return stories, nil
}

func (r *pgStoryRepository) Update(ctx context.Context, querier database.DBTX, id, userID uuid.UUID, patch models.StoryPatch) (*models.Story, error) {
	var story models.Story
	if err := pgxscan.Get(ctx, querier, &story, updateStoryQuery, id, userID, patch.Title, patch.Description); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		r.logger.Error("Failed to update story", zap.String("storyID", id.String()), zap.Error(err))
		return nil, fmt.Errorf("ошибка обновления истории %s: %w", id, err)
	}
	return &story, nil
}

func (r *pgStoryRepository) Delete(ctx context.Context, querier database.DBTX, id, userID uuid.UUID) error {
	tag, err := querier.Exec(ctx, deleteStoryQuery, id, userID)
	if err != nil {
		r.logger.Error("Failed to delete story", zap.String("storyID", id.String()), zap.Error(err))
		return fmt.Errorf("ошибка удаления истории %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	r.logger.Info("Story deleted", zap.String("storyID", id.String()))
	return nil
}
