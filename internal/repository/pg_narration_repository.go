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
	narrationColumns = `id, story_id, content, sequence_number, listener_response, extracted, created_at`

	lockStoryQuery       = `SELECT pg_advisory_xact_lock(hashtextextended($1::text, 0))`
	nextSequenceQuery    = `SELECT COALESCE(MAX(sequence_number) + 1, 0) FROM raw_narrations WHERE story_id = $1`
	createNarrationQuery = `
        INSERT INTO raw_narrations (id, story_id, content, sequence_number, listener_response, extracted, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
    `
	getNarrationQuery   = `SELECT ` + narrationColumns + ` FROM raw_narrations WHERE id = $1`
	listNarrationsQuery = `SELECT ` + narrationColumns + ` FROM raw_narrations WHERE story_id = $1 ORDER BY sequence_number ASC`
)

type pgNarrationRepository struct {
	logger *zap.Logger
}

var _ NarrationRepository = (*pgNarrationRepository)(nil)

// NewPgNarrationRepository создает репозиторий нарраций.
func NewPgNarrationRepository(logger *zap.Logger) NarrationRepository {
	return &pgNarrationRepository{logger: logger.Named("PgNarrationRepo")}
}

func (r *pgNarrationRepository) LockStory(ctx context.Context, querier database.DBTX, storyID uuid.UUID) error {
	if _, err := querier.Exec(ctx, lockStoryQuery, storyID.String()); err != nil {
		return fmt.Errorf("ошибка блокировки истории %s: %w", storyID, err)
	}
	return nil
}

func (r *pgNarrationRepository) NextSequenceNumber(ctx context.Context, querier database.DBTX, storyID uuid.UUID) (int, error) {
	var next int
	if err := querier.QueryRow(ctx, nextSequenceQuery, storyID).Scan(&next); err != nil {
		return 0, fmt.Errorf("ошибка вычисления sequence_number: %w", err)
	}
	return next, nil
}

func (r *pgNarrationRepository) Create(ctx context.Context, querier database.DBTX, narration *models.RawNarration) error {
	if narration.ID == uuid.Nil {
		narration.ID = uuid.New()
	}
	narration.CreatedAt = time.Now().UTC()
	if len(narration.Extracted) == 0 {
		narration.Extracted = []byte("{}")
	}

	logFields := []zap.Field{
		zap.String("narrationID", narration.ID.String()),
		zap.String("storyID", narration.StoryID.String()),
		zap.Int("sequence", narration.SequenceNumber),
	}

	if _, err := querier.Exec(ctx, createNarrationQuery,
		narration.ID, narration.StoryID, narration.Content, narration.SequenceNumber,
		narration.ListenerResponse, narration.Extracted, narration.CreatedAt,
	); err != nil {
		r.logger.Error("Failed to create narration", append(logFields, zap.Error(err))...)
		return fmt.Errorf("ошибка создания наррации: %w", err)
	}
	r.logger.Info("Narration created", logFields...)
	return nil
}

func (r *pgNarrationRepository) GetByID(ctx context.Context, querier database.DBTX, id uuid.UUID) (*models.RawNarration, error) {
	var narration models.RawNarration
	if err := pgxscan.Get(ctx, querier, &narration, getNarrationQuery, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения наррации %s: %w", id, err)
	}
	return &narration, nil
}

func (r *pgNarrationRepository) ListByStory(ctx context.Context, querier database.DBTX, storyID uuid.UUID) ([]models.RawNarration, error) {
	narrations := make([]models.RawNarration, 0)
	if err := pgxscan.Select(ctx, querier, &narrations, listNarrationsQuery, storyID); err != nil {
		r.logger.Error("Failed to list narrations", zap.String("storyID", storyID.String()), zap.Error(err))
		return nil, fmt.Errorf("ошибка получения нарраций: %w", err)
	}
	return narrations, nil
}
