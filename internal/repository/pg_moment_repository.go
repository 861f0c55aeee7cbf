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
	momentColumns = `id, story_id, title, description, timeline_position, created_from_narration,
        characters_involved, emotional_signature, narrative_weight, originating_suggestion_id, created_at`

	createMomentQuery = `
        INSERT INTO story_moments (id, story_id, title, description, timeline_position, created_from_narration,
            characters_involved, emotional_signature, narrative_weight, originating_suggestion_id, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
    `
	getMomentQuery         = `SELECT ` + momentColumns + ` FROM story_moments WHERE id = $1`
	listMomentsQuery       = `SELECT ` + momentColumns + ` FROM story_moments WHERE story_id = $1 ORDER BY timeline_position ASC, created_at ASC`
	listRecentMomentsQuery = `
        SELECT title, description FROM story_moments
        WHERE story_id = $1
        ORDER BY timeline_position DESC, created_at DESC
        LIMIT $2
    `
	updateMomentQuery = `
        UPDATE story_moments
        SET title = COALESCE($3, title),
            description = COALESCE($4, description),
            timeline_position = COALESCE($5, timeline_position),
            narrative_weight = COALESCE($6, narrative_weight)
        WHERE story_id = $1 AND id = $2
        RETURNING ` + momentColumns
	deleteMomentQuery          = `DELETE FROM story_moments WHERE story_id = $1 AND id = $2`
	removeMomentCharacterQuery = `
        UPDATE story_moments
        SET characters_involved = array_remove(characters_involved, $2)
        WHERE story_id = $1 AND $2 = ANY(characters_involved)
    `
)

type pgMomentRepository struct {
	logger *zap.Logger
}

var _ MomentRepository = (*pgMomentRepository)(nil)

// NewPgMomentRepository создает репозиторий событий таймлайна.
func NewPgMomentRepository(logger *zap.Logger) MomentRepository {
	return &pgMomentRepository{logger: logger.Named("PgMomentRepo")}
}

func (r *pgMomentRepository) Create(ctx context.Context, querier database.DBTX, moment *models.StoryMoment) error {
	if moment.ID == uuid.Nil {
		moment.ID = uuid.New()
	}
	moment.CreatedAt = time.Now().UTC()
	if moment.CharactersInvolved == nil {
		moment.CharactersInvolved = []uuid.UUID{}
	}
	if moment.EmotionalSignature == nil {
		moment.EmotionalSignature = map[string]float64{}
	}

	logFields := []zap.Field{
		zap.String("momentID", moment.ID.String()),
		zap.String("storyID", moment.StoryID.String()),
		zap.Float64("position", moment.TimelinePosition),
	}
	if _, err := querier.Exec(ctx, createMomentQuery,
		moment.ID, moment.StoryID, moment.Title, moment.Description, moment.TimelinePosition,
		moment.CreatedFromNarration, moment.CharactersInvolved, moment.EmotionalSignature,
		moment.NarrativeWeight, moment.OriginatingSuggestionID, moment.CreatedAt,
	); err != nil {
		r.logger.Error("Failed to create moment", append(logFields, zap.Error(err))...)
		return fmt.Errorf("ошибка создания события: %w", err)
	}
	r.logger.Info("Moment created", logFields...)
	return nil
}

func (r *pgMomentRepository) GetByID(ctx context.Context, querier database.DBTX, id uuid.UUID) (*models.StoryMoment, error) {
	var moment models.StoryMoment
	if err := pgxscan.Get(ctx, querier, &moment, getMomentQuery, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения события %s: %w", id, err)
	}
	return &moment, nil
}

func (r *pgMomentRepository) ListByStory(ctx context.Context, querier database.DBTX, storyID uuid.UUID) ([]models.StoryMoment, error) {
	moments := make([]models.StoryMoment, 0)
	if err := pgxscan.Select(ctx, querier, &moments, listMomentsQuery, storyID); err != nil {
		r.logger.Error("Failed to list moments", zap.String("storyID", storyID.String()), zap.Error(err))
		return nil, fmt.Errorf("ошибка получения таймлайна: %w", err)
	}
	return moments, nil
}

func (r *pgMomentRepository) ListRecent(ctx context.Context, querier database.DBTX, storyID uuid.UUID, limit int) ([]models.EventSummary, error) {
	events := make([]models.EventSummary, 0, limit)
	if err := pgxscan.Select(ctx, querier, &events, listRecentMomentsQuery, storyID, limit); err != nil {
		return nil, fmt.Errorf("ошибка получения последних событий: %w", err)
	}
	return events, nil
}

func (r *pgMomentRepository) Update(ctx context.Context, querier database.DBTX, storyID, id uuid.UUID, patch models.MomentPatch) (*models.StoryMoment, error) {
	var moment models.StoryMoment
	err := pgxscan.Get(ctx, querier, &moment, updateMomentQuery,
		storyID, id, patch.Title, patch.Description, patch.TimelinePosition, patch.NarrativeWeight)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		r.logger.Error("Failed to update moment", zap.String("momentID", id.String()), zap.Error(err))
		return nil, fmt.Errorf("ошибка обновления события %s: %w", id, err)
	}
	return &moment, nil
}

func (r *pgMomentRepository) Delete(ctx context.Context, querier database.DBTX, storyID, id uuid.UUID) error {
	tag, err := querier.Exec(ctx, deleteMomentQuery, storyID, id)
	if err != nil {
		r.logger.Error("Failed to delete moment", zap.String("momentID", id.String()), zap.Error(err))
		return fmt.Errorf("ошибка удаления события %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	r.logger.Info("Moment deleted", zap.String("momentID", id.String()))
	return nil
}

func (r *pgMomentRepository) RemoveCharacter(ctx context.Context, querier database.DBTX, storyID, elementID uuid.UUID) error {
	tag, err := querier.Exec(ctx, removeMomentCharacterQuery, storyID, elementID)
	if err != nil {
		return fmt.Errorf("ошибка удаления персонажа %s из событий: %w", elementID, err)
	}
	r.logger.Debug("Character removed from moments",
		zap.String("elementID", elementID.String()),
		zap.Int64("moments", tag.RowsAffected()),
	)
	return nil
}
