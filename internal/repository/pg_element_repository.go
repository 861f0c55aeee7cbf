package repository

import (
	"context"
	"errors"
	"fmt"

	"narrative-server/internal/models"
	"narrative-server/pkg/database"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

const (
	elementColumns = `id, story_id, element_type, name, attributes, first_mentioned_in_narration,
        last_mentioned_in_narration, confidence_score, originating_suggestion_id, created_at, updated_at`

	listElementRefsQuery = `SELECT id, name, element_type FROM narrative_elements WHERE story_id = $1 ORDER BY created_at ASC`
	listElementsQuery    = `SELECT ` + elementColumns + ` FROM narrative_elements WHERE story_id = $1 ORDER BY element_type, name`
	getElementQuery      = `SELECT ` + elementColumns + ` FROM narrative_elements WHERE id = $1`

	// xmax = 0 только у строки, вставленной этой командой.
	upsertElementQuery = `
        INSERT INTO narrative_elements (id, story_id, element_type, name, attributes,
            first_mentioned_in_narration, last_mentioned_in_narration, confidence_score,
            originating_suggestion_id, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $6, $7, $8, NOW(), NOW())
        ON CONFLICT (story_id, lower(name), element_type) DO UPDATE
        SET last_mentioned_in_narration = EXCLUDED.last_mentioned_in_narration,
            updated_at = NOW()
        RETURNING id, (xmax = 0) AS inserted
    `
	touchElementQuery = `
        UPDATE narrative_elements
        SET last_mentioned_in_narration = $2, updated_at = NOW()
        WHERE id = $1
    `
	updateElementQuery = `
        UPDATE narrative_elements
        SET name = COALESCE($3, name),
            attributes = COALESCE($4, attributes),
            confidence_score = COALESCE($5, confidence_score),
            updated_at = NOW()
        WHERE story_id = $1 AND id = $2
        RETURNING ` + elementColumns
	deleteElementQuery = `DELETE FROM narrative_elements WHERE story_id = $1 AND id = $2`
)

type pgElementRepository struct {
	logger *zap.Logger
}

var _ ElementRepository = (*pgElementRepository)(nil)

// NewPgElementRepository создает репозиторий канонических сущностей.
func NewPgElementRepository(logger *zap.Logger) ElementRepository {
	return &pgElementRepository{logger: logger.Named("PgElementRepo")}
}

func (r *pgElementRepository) ListRefs(ctx context.Context, querier database.DBTX, storyID uuid.UUID) ([]models.ElementRef, error) {
	refs := make([]models.ElementRef, 0)
	if err := pgxscan.Select(ctx, querier, &refs, listElementRefsQuery, storyID); err != nil {
		r.logger.Error("Failed to list element refs", zap.String("storyID", storyID.String()), zap.Error(err))
		return nil, fmt.Errorf("ошибка получения имен сущностей: %w", err)
	}
	return refs, nil
}

func (r *pgElementRepository) ListByStory(ctx context.Context, querier database.DBTX, storyID uuid.UUID) ([]models.NarrativeElement, error) {
	elements := make([]models.NarrativeElement, 0)
	if err := pgxscan.Select(ctx, querier, &elements, listElementsQuery, storyID); err != nil {
		r.logger.Error("Failed to list elements", zap.String("storyID", storyID.String()), zap.Error(err))
		return nil, fmt.Errorf("ошибка получения сущностей: %w", err)
	}
	return elements, nil
}

func (r *pgElementRepository) GetByID(ctx context.Context, querier database.DBTX, id uuid.UUID) (*models.NarrativeElement, error) {
	var element models.NarrativeElement
	if err := pgxscan.Get(ctx, querier, &element, getElementQuery, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения сущности %s: %w", id, err)
	}
	return &element, nil
}

func (r *pgElementRepository) Upsert(ctx context.Context, querier database.DBTX, element *models.NarrativeElement) (bool, error) {
	if element.ID == uuid.Nil {
		element.ID = uuid.New()
	}
	log := r.logger.With(
		zap.String("storyID", element.StoryID.String()),
		zap.String("name", element.Name),
		zap.String("elementType", string(element.ElementType)),
	)

	var (
		id       uuid.UUID
		inserted bool
	)
	err := querier.QueryRow(ctx, upsertElementQuery,
		element.ID, element.StoryID, element.ElementType, element.Name, element.Attributes,
		element.LastMentionedInNarration, element.ConfidenceScore, element.OriginatingSuggestionID,
	).Scan(&id, &inserted)
	if err != nil {
		log.Error("Failed to upsert element", zap.Error(err))
		return false, fmt.Errorf("ошибка upsert сущности: %w", err)
	}

	element.ID = id
	if inserted {
		log.Info("Element created", zap.String("elementID", id.String()))
	} else {
		log.Debug("Element already exists, last mention advanced", zap.String("elementID", id.String()))
	}
	return inserted, nil
}

func (r *pgElementRepository) TouchLastMentioned(ctx context.Context, querier database.DBTX, id, narrationID uuid.UUID) error {
	tag, err := querier.Exec(ctx, touchElementQuery, id, narrationID)
	if err != nil {
		return fmt.Errorf("ошибка обновления last_mentioned у сущности %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (r *pgElementRepository) Update(ctx context.Context, querier database.DBTX, storyID, id uuid.UUID, patch models.ElementPatch) (*models.NarrativeElement, error) {
	var element models.NarrativeElement
	err := pgxscan.Get(ctx, querier, &element, updateElementQuery, storyID, id, patch.Name, patch.Attributes, patch.ConfidenceScore)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" { // unique_violation
			return nil, fmt.Errorf("%w: сущность с таким именем уже существует", models.ErrInvalidInput)
		}
		r.logger.Error("Failed to update element", zap.String("elementID", id.String()), zap.Error(err))
		return nil, fmt.Errorf("ошибка обновления сущности %s: %w", id, err)
	}
	return &element, nil
}

func (r *pgElementRepository) Delete(ctx context.Context, querier database.DBTX, storyID, id uuid.UUID) error {
	tag, err := querier.Exec(ctx, deleteElementQuery, storyID, id)
	if err != nil {
		r.logger.Error("Failed to delete element", zap.String("elementID", id.String()), zap.Error(err))
		return fmt.Errorf("ошибка удаления сущности %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	r.logger.Info("Element deleted", zap.String("elementID", id.String()))
	return nil
}
