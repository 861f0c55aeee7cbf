package service

import (
	"context"
	"fmt"
	"strings"

	"narrative-server/internal/models"
	"narrative-server/internal/repository"
	"narrative-server/pkg/database"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// StoryService - CRUD историй пользователя.
type StoryService interface {
	CreateStory(ctx context.Context, userID uuid.UUID, title, description *string) (*models.Story, error)
	ListStories(ctx context.Context, userID uuid.UUID) ([]models.Story, error)
	GetStory(ctx context.Context, userID, storyID uuid.UUID) (*models.Story, error)
	UpdateStory(ctx context.Context, userID, storyID uuid.UUID, patch models.StoryPatch) (*models.Story, error)
	DeleteStory(ctx context.Context, userID, storyID uuid.UUID) error
}

type storyServiceImpl struct {
	db      database.DBTX
	stories repository.StoryRepository
	logger  *zap.Logger
}

// NewStoryService создает сервис историй.
func NewStoryService(db database.DBTX, stories repository.StoryRepository, logger *zap.Logger) StoryService {
	return &storyServiceImpl{
		db:      db,
		stories: stories,
		logger:  logger.Named("StoryService"),
	}
}

func (s *storyServiceImpl) CreateStory(ctx context.Context, userID uuid.UUID, title, description *string) (*models.Story, error) {
	story := &models.Story{
		UserID: userID,
		Title:  models.DefaultStoryTitle,
	}
	if title != nil && strings.TrimSpace(*title) != "" {
		story.Title = strings.TrimSpace(*title)
	}
	if description != nil {
		story.Description = ptrIfNotEmpty(strings.TrimSpace(*description))
	}

	if err := s.stories.Create(ctx, s.db, story); err != nil {
		s.logger.Error("Failed to create story", zap.String("userID", userID.String()), zap.Error(err))
		return nil, fmt.Errorf("ошибка создания истории: %w", err)
	}
	s.logger.Info("Story created", zap.String("userID", userID.String()), zap.String("storyID", story.ID.String()))
	return story, nil
}

func (s *storyServiceImpl) ListStories(ctx context.Context, userID uuid.UUID) ([]models.Story, error) {
	stories, err := s.stories.ListByUser(ctx, s.db, userID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения историй: %w", err)
	}
	return stories, nil
}

func (s *storyServiceImpl) GetStory(ctx context.Context, userID, storyID uuid.UUID) (*models.Story, error) {
	return requireStory(ctx, s.db, s.stories, userID, storyID)
}

func (s *storyServiceImpl) UpdateStory(ctx context.Context, userID, storyID uuid.UUID, patch models.StoryPatch) (*models.Story, error) {
	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if title == "" {
			return nil, fmt.Errorf("%w: title must not be empty", models.ErrInvalidInput)
		}
		patch.Title = &title
	}
	if patch.IsEmpty() {
		return s.GetStory(ctx, userID, storyID)
	}

	story, err := s.stories.Update(ctx, s.db, storyID, userID, patch)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Story updated", zap.String("userID", userID.String()), zap.String("storyID", storyID.String()))
	return story, nil
}

// DeleteStory удаляет историю. Дочерние записи удаляются каскадом в БД.
func (s *storyServiceImpl) DeleteStory(ctx context.Context, userID, storyID uuid.UUID) error {
	if err := s.stories.Delete(ctx, s.db, storyID, userID); err != nil {
		return err
	}
	s.logger.Info("Story deleted", zap.String("userID", userID.String()), zap.String("storyID", storyID.String()))
	return nil
}
