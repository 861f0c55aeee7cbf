package repository

import (
	"context"
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
	mentionColumns = `id, story_id, element_id, narration_id, mention_context, emotional_state,
        importance_in_narration, originating_suggestion_id, created_at`

	createMentionQuery = `
        INSERT INTO entity_mentions (id, story_id, element_id, narration_id, mention_context,
            emotional_state, importance_in_narration, originating_suggestion_id, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
    `
	listMentionsByStoryQuery     = `SELECT ` + mentionColumns + ` FROM entity_mentions WHERE story_id = $1 ORDER BY created_at ASC`
	listMentionsByElementQuery   = `SELECT ` + mentionColumns + ` FROM entity_mentions WHERE element_id = $1 ORDER BY created_at ASC`
	deleteMentionsByElementQuery = `
        DELETE FROM entity_mentions WHERE element_id = $1
        RETURNING originating_suggestion_id
    `
)

type pgMentionRepository struct {
	logger *zap.Logger
}

var _ MentionRepository = (*pgMentionRepository)(nil)

// NewPgMentionRepository создает репозиторий журнала упоминаний.
func NewPgMentionRepository(logger *zap.Logger) MentionRepository {
	return &pgMentionRepository{logger: logger.Named("PgMentionRepo")}
}

func (r *pgMentionRepository) Create(ctx context.Context, querier database.DBTX, mention *models.EntityMention) error {
	if mention.ID == uuid.Nil {
		mention.ID = uuid.New()
	}
	mention.CreatedAt = time.Now().UTC()

	if _, err := querier.Exec(ctx, createMentionQuery,
		mention.ID, mention.StoryID, mention.ElementID, mention.NarrationID, mention.MentionContext,
		mention.EmotionalState, mention.ImportanceInNarration, mention.OriginatingSuggestionID, mention.CreatedAt,
	); err != nil {
		r.logger.Error("Failed to create mention",
			zap.String("elementID", mention.ElementID.String()),
			zap.String("narrationID", mention.NarrationID.String()),
			zap.Error(err),
		)
		return fmt.Errorf("ошибка записи упоминания: %w", err)
	}
	return nil
}

func (r *pgMentionRepository) ListByStory(ctx context.Context, querier database.DBTX, storyID uuid.UUID) ([]models.EntityMention, error) {
	mentions := make([]models.EntityMention, 0)
	if err := pgxscan.Select(ctx, querier, &mentions, listMentionsByStoryQuery, storyID); err != nil {
		return nil, fmt.Errorf("ошибка получения упоминаний истории: %w", err)
	}
	return mentions, nil
}

func (r *pgMentionRepository) ListByElement(ctx context.Context, querier database.DBTX, elementID uuid.UUID) ([]models.EntityMention, error) {
	mentions := make([]models.EntityMention, 0)
	if err := pgxscan.Select(ctx, querier, &mentions, listMentionsByElementQuery, elementID); err != nil {
		return nil, fmt.Errorf("ошибка получения упоминаний сущности: %w", err)
	}
	return mentions, nil
}

func (r *pgMentionRepository) DeleteByElement(ctx context.Context, querier database.DBTX, elementID uuid.UUID) ([]uuid.UUID, error) {
	origins, err := collectOrigins(ctx, querier, deleteMentionsByElementQuery, elementID)
	if err != nil {
		r.logger.Error("Failed to delete mentions", zap.String("elementID", elementID.String()), zap.Error(err))
		return nil, fmt.Errorf("ошибка удаления упоминаний: %w", err)
	}
	return compactIDs(origins), nil
}

// collectOrigins выполняет DELETE ... RETURNING originating_suggestion_id.
func collectOrigins(ctx context.Context, querier database.DBTX, query string, args ...any) ([]*uuid.UUID, error) {
	rows, err := querier.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[*uuid.UUID])
}

// compactIDs отбрасывает NULL и дубликаты, сохраняя порядок.
func compactIDs(ids []*uuid.UUID) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(ids))
	seen := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		if id == nil {
			continue
		}
		if _, ok := seen[*id]; ok {
			continue
		}
		seen[*id] = struct{}{}
		out = append(out, *id)
	}
	return out
}
