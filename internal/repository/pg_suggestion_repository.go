package repository

import (
	"context"
	"encoding/json"
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
	suggestionColumns = `id, story_id, narration_id, suggestion_type, suggested_data, status, created_at, updated_at`

	createSuggestionQuery = `
        INSERT INTO ai_suggestions (id, story_id, narration_id, suggestion_type, suggested_data, status, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
    `
	getSuggestionQuery          = `SELECT ` + suggestionColumns + ` FROM ai_suggestions WHERE id = $1`
	getSuggestionForUpdateQuery = `SELECT ` + suggestionColumns + ` FROM ai_suggestions WHERE id = $1 FOR UPDATE`
	listPendingSuggestionsQuery = `
        SELECT s.id, s.story_id, s.narration_id, s.suggestion_type, s.suggested_data, s.status,
               s.created_at, s.updated_at,
               n.content AS "narration.content",
               n.sequence_number AS "narration.sequence_number"
        FROM ai_suggestions s
        JOIN raw_narrations n ON n.id = s.narration_id
        WHERE s.story_id = $1 AND s.status = 'pending'
        ORDER BY s.created_at ASC, n.sequence_number ASC
    `
	updateSuggestionDataQuery = `
        UPDATE ai_suggestions
        SET suggested_data = $2, updated_at = NOW()
        WHERE id = $1 AND status = 'pending'
        RETURNING ` + suggestionColumns
	updateSuggestionStatusQuery = `UPDATE ai_suggestions SET status = $2, updated_at = NOW() WHERE id = $1`
	resetSuggestionsQuery       = `
        UPDATE ai_suggestions
        SET status = 'pending', updated_at = NOW()
        WHERE status = 'accepted' AND id = ANY($1)
        RETURNING id
    `
)

type pgSuggestionRepository struct {
	logger *zap.Logger
}

var _ SuggestionRepository = (*pgSuggestionRepository)(nil)

// NewPgSuggestionRepository создает репозиторий подсказок.
func NewPgSuggestionRepository(logger *zap.Logger) SuggestionRepository {
	return &pgSuggestionRepository{logger: logger.Named("PgSuggestionRepo")}
}

// CreateBatch вставляет подсказки одним батчем. Порядок вставки совпадает с порядком среза.
func (r *pgSuggestionRepository) CreateBatch(ctx context.Context, querier database.DBTX, suggestions []models.AiSuggestion) error {
	if len(suggestions) == 0 {
		return nil
	}

	now := time.Now().UTC()
	batch := &pgx.Batch{}
	for i := range suggestions {
		s := &suggestions[i]
		if s.ID == uuid.Nil {
			s.ID = uuid.New()
		}
		if s.Status == "" {
			s.Status = models.SuggestionStatusPending
		}
		// Сохраняем относительный порядок внутри одной наррации.
		s.CreatedAt = now.Add(time.Duration(i) * time.Microsecond)
		s.UpdatedAt = s.CreatedAt
		batch.Queue(createSuggestionQuery, s.ID, s.StoryID, s.NarrationID, s.SuggestionType, s.SuggestedData, s.Status, s.CreatedAt)
	}

	br := querier.SendBatch(ctx, batch)
	defer br.Close()

	for i := range suggestions {
		if _, err := br.Exec(); err != nil {
			r.logger.Error("Failed to create suggestion in batch",
				zap.String("narrationID", suggestions[i].NarrationID.String()),
				zap.String("type", string(suggestions[i].SuggestionType)),
				zap.Error(err),
			)
			return fmt.Errorf("ошибка сохранения подсказки %d из %d: %w", i+1, len(suggestions), err)
		}
	}

	r.logger.Info("Suggestions staged",
		zap.Int("count", len(suggestions)),
		zap.String("narrationID", suggestions[0].NarrationID.String()),
	)
	return nil
}

func (r *pgSuggestionRepository) GetByID(ctx context.Context, querier database.DBTX, id uuid.UUID) (*models.AiSuggestion, error) {
	return r.get(ctx, querier, getSuggestionQuery, id)
}

func (r *pgSuggestionRepository) GetForUpdate(ctx context.Context, querier database.DBTX, id uuid.UUID) (*models.AiSuggestion, error) {
	return r.get(ctx, querier, getSuggestionForUpdateQuery, id)
}

func (r *pgSuggestionRepository) get(ctx context.Context, querier database.DBTX, query string, id uuid.UUID) (*models.AiSuggestion, error) {
	var s models.AiSuggestion
	if err := pgxscan.Get(ctx, querier, &s, query, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		r.logger.Error("Failed to get suggestion", zap.String("suggestionID", id.String()), zap.Error(err))
		return nil, fmt.Errorf("ошибка получения подсказки %s: %w", id, err)
	}
	return &s, nil
}

func (r *pgSuggestionRepository) ListPendingByStory(ctx context.Context, querier database.DBTX, storyID uuid.UUID) ([]models.PendingSuggestion, error) {
	pending := make([]models.PendingSuggestion, 0)
	if err := pgxscan.Select(ctx, querier, &pending, listPendingSuggestionsQuery, storyID); err != nil {
		r.logger.Error("Failed to list pending suggestions", zap.String("storyID", storyID.String()), zap.Error(err))
		return nil, fmt.Errorf("ошибка получения ожидающих подсказок: %w", err)
	}
	return pending, nil
}

// UpdateData меняет suggested_data только у pending подсказки.
// Для остальных статусов возвращает models.ErrSuggestionNotPending.
func (r *pgSuggestionRepository) UpdateData(ctx context.Context, querier database.DBTX, id uuid.UUID, data json.RawMessage) (*models.AiSuggestion, error) {
	var s models.AiSuggestion
	err := pgxscan.Get(ctx, querier, &s, updateSuggestionDataQuery, id, data)
	if err == nil {
		return &s, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		r.logger.Error("Failed to update suggestion data", zap.String("suggestionID", id.String()), zap.Error(err))
		return nil, fmt.Errorf("ошибка обновления подсказки %s: %w", id, err)
	}
	// Отличаем отсутствующую подсказку от уже обработанной.
	if _, getErr := r.GetByID(ctx, querier, id); getErr != nil {
		return nil, getErr
	}
	return nil, models.ErrSuggestionNotPending
}

func (r *pgSuggestionRepository) UpdateStatus(ctx context.Context, querier database.DBTX, id uuid.UUID, status models.SuggestionStatus) error {
	tag, err := querier.Exec(ctx, updateSuggestionStatusQuery, id, status)
	if err != nil {
		r.logger.Error("Failed to update suggestion status",
			zap.String("suggestionID", id.String()),
			zap.String("status", string(status)),
			zap.Error(err),
		)
		return fmt.Errorf("ошибка смены статуса подсказки %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (r *pgSuggestionRepository) ResetToPending(ctx context.Context, querier database.DBTX, ids []uuid.UUID) ([]uuid.UUID, error) {
	if len(ids) == 0 {
		return []uuid.UUID{}, nil
	}
	rows, err := querier.Query(ctx, resetSuggestionsQuery, ids)
	if err != nil {
		return nil, fmt.Errorf("ошибка возврата подсказок в pending: %w", err)
	}
	reset, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, fmt.Errorf("ошибка возврата подсказок в pending: %w", err)
	}
	r.logger.Info("Suggestions reset to pending", zap.Int("requested", len(ids)), zap.Int("reset", len(reset)))
	return reset, nil
}
