package repository

import (
	"context"
	"fmt"
	"time"

	"narrative-server/internal/models"
	"narrative-server/pkg/database"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	connectionColumns = `id, story_id, from_id, to_id, connection_type, description, weight,
        emotional_charge, created_from_narration, originating_suggestion_id, created_at`

	createConnectionQuery = `
        INSERT INTO narrative_connections (id, story_id, from_id, to_id, connection_type, description,
            weight, emotional_charge, created_from_narration, originating_suggestion_id, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
    `
	listConnectionsByStoryQuery   = `SELECT ` + connectionColumns + ` FROM narrative_connections WHERE story_id = $1 ORDER BY created_at ASC`
	listConnectionsByElementQuery = `
        SELECT ` + connectionColumns + ` FROM narrative_connections
        WHERE from_id = $1 OR to_id = $1
        ORDER BY created_at ASC
    `
	deleteConnectionsByElementQuery = `
        DELETE FROM narrative_connections WHERE from_id = $1 OR to_id = $1
        RETURNING originating_suggestion_id
    `
)

type pgConnectionRepository struct {
	logger *zap.Logger
}

var _ ConnectionRepository = (*pgConnectionRepository)(nil)

// NewPgConnectionRepository создает репозиторий связей.
func NewPgConnectionRepository(logger *zap.Logger) ConnectionRepository {
	return &pgConnectionRepository{logger: logger.Named("PgConnectionRepo")}
}

func (r *pgConnectionRepository) Create(ctx context.Context, querier database.DBTX, c *models.NarrativeConnection) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	c.CreatedAt = time.Now().UTC()

	logFields := []zap.Field{
		zap.String("connectionID", c.ID.String()),
		zap.String("fromID", c.FromID.String()),
		zap.String("toID", c.ToID.String()),
		zap.String("type", c.ConnectionType),
	}
	if _, err := querier.Exec(ctx, createConnectionQuery,
		c.ID, c.StoryID, c.FromID, c.ToID, c.ConnectionType, c.Description,
		c.Weight, c.EmotionalCharge, c.CreatedFromNarration, c.OriginatingSuggestionID, c.CreatedAt,
	); err != nil {
		r.logger.Error("Failed to create connection", append(logFields, zap.Error(err))...)
		return fmt.Errorf("ошибка создания связи: %w", err)
	}
	r.logger.Info("Connection created", logFields...)
	return nil
}

func (r *pgConnectionRepository) ListByStory(ctx context.Context, querier database.DBTX, storyID uuid.UUID) ([]models.NarrativeConnection, error) {
	connections := make([]models.NarrativeConnection, 0)
	if err := pgxscan.Select(ctx, querier, &connections, listConnectionsByStoryQuery, storyID); err != nil {
		return nil, fmt.Errorf("ошибка получения связей истории: %w", err)
	}
	return connections, nil
}

func (r *pgConnectionRepository) ListByElement(ctx context.Context, querier database.DBTX, elementID uuid.UUID) ([]models.NarrativeConnection, error) {
	connections := make([]models.NarrativeConnection, 0)
	if err := pgxscan.Select(ctx, querier, &connections, listConnectionsByElementQuery, elementID); err != nil {
		return nil, fmt.Errorf("ошибка получения связей сущности: %w", err)
	}
	return connections, nil
}

func (r *pgConnectionRepository) DeleteByElement(ctx context.Context, querier database.DBTX, elementID uuid.UUID) ([]uuid.UUID, error) {
	origins, err := collectOrigins(ctx, querier, deleteConnectionsByElementQuery, elementID)
	if err != nil {
		r.logger.Error("Failed to delete connections", zap.String("elementID", elementID.String()), zap.Error(err))
		return nil, fmt.Errorf("ошибка удаления связей: %w", err)
	}
	return compactIDs(origins), nil
}
