package repository

import (
	"context"
	"encoding/json"

	"narrative-server/internal/models"
	"narrative-server/pkg/database"

	"github.com/google/uuid"
)

// Все методы принимают querier, чтобы работать и с пулом, и с транзакцией.

// StoryRepository - хранилище историй.
type StoryRepository interface {
	Create(ctx context.Context, querier database.DBTX, story *models.Story) error
	// GetByIDForUser возвращает models.ErrNotFound и для отсутствующей,
	// и для чужой истории.
	GetByIDForUser(ctx context.Context, querier database.DBTX, id, userID uuid.UUID) (*models.Story, error)
	ListByUser(ctx context.Context, querier database.DBTX, userID uuid.UUID) ([]models.Story, error)
	Update(ctx context.Context, querier database.DBTX, id, userID uuid.UUID, patch models.StoryPatch) (*models.Story, error)
	Delete(ctx context.Context, querier database.DBTX, id, userID uuid.UUID) error
}

// NarrationRepository - хранилище нарраций.
type NarrationRepository interface {
	// LockStory берет транзакционный advisory lock на историю.
	LockStory(ctx context.Context, querier database.DBTX, storyID uuid.UUID) error
	// NextSequenceNumber возвращает max(sequence_number)+1 или 0.
	NextSequenceNumber(ctx context.Context, querier database.DBTX, storyID uuid.UUID) (int, error)
	Create(ctx context.Context, querier database.DBTX, narration *models.RawNarration) error
	GetByID(ctx context.Context, querier database.DBTX, id uuid.UUID) (*models.RawNarration, error)
	ListByStory(ctx context.Context, querier database.DBTX, storyID uuid.UUID) ([]models.RawNarration, error)
}

// ElementRepository - хранилище канонических сущностей.
type ElementRepository interface {
	ListRefs(ctx context.Context, querier database.DBTX, storyID uuid.UUID) ([]models.ElementRef, error)
	ListByStory(ctx context.Context, querier database.DBTX, storyID uuid.UUID) ([]models.NarrativeElement, error)
	GetByID(ctx context.Context, querier database.DBTX, id uuid.UUID) (*models.NarrativeElement, error)
	// Upsert атомарно создает сущность или, если (story_id, lower(name), element_type)
	// уже занят, только продвигает last_mentioned_in_narration. Записывает итоговый ID в element.
	Upsert(ctx context.Context, querier database.DBTX, element *models.NarrativeElement) (created bool, err error)
	TouchLastMentioned(ctx context.Context, querier database.DBTX, id, narrationID uuid.UUID) error
	Update(ctx context.Context, querier database.DBTX, storyID, id uuid.UUID, patch models.ElementPatch) (*models.NarrativeElement, error)
	Delete(ctx context.Context, querier database.DBTX, storyID, id uuid.UUID) error
}

// MentionRepository - журнал упоминаний.
type MentionRepository interface {
	Create(ctx context.Context, querier database.DBTX, mention *models.EntityMention) error
	ListByStory(ctx context.Context, querier database.DBTX, storyID uuid.UUID) ([]models.EntityMention, error)
	ListByElement(ctx context.Context, querier database.DBTX, elementID uuid.UUID) ([]models.EntityMention, error)
	// DeleteByElement удаляет упоминания и возвращает их исходные подсказки.
	DeleteByElement(ctx context.Context, querier database.DBTX, elementID uuid.UUID) ([]uuid.UUID, error)
}

// MomentRepository - хранилище событий таймлайна.
type MomentRepository interface {
	Create(ctx context.Context, querier database.DBTX, moment *models.StoryMoment) error
	GetByID(ctx context.Context, querier database.DBTX, id uuid.UUID) (*models.StoryMoment, error)
	ListByStory(ctx context.Context, querier database.DBTX, storyID uuid.UUID) ([]models.StoryMoment, error)
	// ListRecent возвращает последние события по позиции на таймлайне (по убыванию).
	ListRecent(ctx context.Context, querier database.DBTX, storyID uuid.UUID, limit int) ([]models.EventSummary, error)
	Update(ctx context.Context, querier database.DBTX, storyID, id uuid.UUID, patch models.MomentPatch) (*models.StoryMoment, error)
	Delete(ctx context.Context, querier database.DBTX, storyID, id uuid.UUID) error
	// RemoveCharacter убирает сущность из characters_involved всех событий истории.
	RemoveCharacter(ctx context.Context, querier database.DBTX, storyID, elementID uuid.UUID) error
}

// ConnectionRepository - хранилище ребер графа отношений.
type ConnectionRepository interface {
	Create(ctx context.Context, querier database.DBTX, connection *models.NarrativeConnection) error
	ListByStory(ctx context.Context, querier database.DBTX, storyID uuid.UUID) ([]models.NarrativeConnection, error)
	ListByElement(ctx context.Context, querier database.DBTX, elementID uuid.UUID) ([]models.NarrativeConnection, error)
	// DeleteByElement удаляет ребра с этим концом и возвращает их исходные подсказки.
	DeleteByElement(ctx context.Context, querier database.DBTX, elementID uuid.UUID) ([]uuid.UUID, error)
}

// SuggestionRepository - хранилище подсказок.
type SuggestionRepository interface {
	CreateBatch(ctx context.Context, querier database.DBTX, suggestions []models.AiSuggestion) error
	GetByID(ctx context.Context, querier database.DBTX, id uuid.UUID) (*models.AiSuggestion, error)
	// GetForUpdate блокирует строку до конца транзакции.
	GetForUpdate(ctx context.Context, querier database.DBTX, id uuid.UUID) (*models.AiSuggestion, error)
	ListPendingByStory(ctx context.Context, querier database.DBTX, storyID uuid.UUID) ([]models.PendingSuggestion, error)
	UpdateData(ctx context.Context, querier database.DBTX, id uuid.UUID, data json.RawMessage) (*models.AiSuggestion, error)
	UpdateStatus(ctx context.Context, querier database.DBTX, id uuid.UUID, status models.SuggestionStatus) error
	// ResetToPending возвращает принятые подсказки в pending. Возвращает ID реально сброшенных.
	ResetToPending(ctx context.Context, querier database.DBTX, ids []uuid.UUID) ([]uuid.UUID, error)
}

// ProgressRepository - опыт и уровни пользователей.
type ProgressRepository interface {
	// GetForUpdate создает профиль при отсутствии и блокирует его строку.
	GetForUpdate(ctx context.Context, querier database.DBTX, userID uuid.UUID) (*models.UserProgress, error)
	Get(ctx context.Context, querier database.DBTX, userID uuid.UUID) (*models.UserProgress, error)
	Save(ctx context.Context, querier database.DBTX, progress *models.UserProgress) error
	AppendLedger(ctx context.Context, querier database.DBTX, userID uuid.UUID, amount int, reason string) error
}
