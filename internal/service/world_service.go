package service

import (
	"context"
	"fmt"
	"strings"

	"narrative-server/internal/extraction"
	"narrative-server/internal/models"
	"narrative-server/internal/repository"
	"narrative-server/pkg/database"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// WorldService - чтение и ручная правка канона истории, AI-помощники.
type WorldService interface {
	Elements(ctx context.Context, userID, storyID uuid.UUID) ([]models.NarrativeElement, error)
	Timeline(ctx context.Context, userID, storyID uuid.UUID) ([]models.StoryMoment, error)
	Connections(ctx context.Context, userID, storyID uuid.UUID) ([]models.NarrativeConnection, error)
	Mentions(ctx context.Context, userID, storyID uuid.UUID) ([]models.EntityMention, error)
	Snapshot(ctx context.Context, userID, storyID uuid.UUID) (*models.WorldBible, error)
	Dossier(ctx context.Context, userID, storyID, elementID uuid.UUID) (*models.Dossier, error)

	UpdateElement(ctx context.Context, userID, storyID, elementID uuid.UUID, patch models.ElementPatch) (*models.NarrativeElement, error)
	DeleteElement(ctx context.Context, userID, storyID, elementID uuid.UUID) error
	UpdateMoment(ctx context.Context, userID, storyID, momentID uuid.UUID, patch models.MomentPatch) (*models.StoryMoment, error)
	DeleteMoment(ctx context.Context, userID, storyID, momentID uuid.UUID) error

	Brainstorm(ctx context.Context, userID, storyID uuid.UUID) ([]models.ThemeOption, error)
	InterviewCharacter(ctx context.Context, userID, storyID, elementID uuid.UUID, prompt string) (*models.InterviewResult, error)
}

type worldServiceImpl struct {
	db          database.DBTX
	tx          database.TxManager
	stories     repository.StoryRepository
	elements    repository.ElementRepository
	mentions    repository.MentionRepository
	moments     repository.MomentRepository
	connections repository.ConnectionRepository
	extractor   extraction.Extractor
	logger      *zap.Logger
}

// WorldDeps - зависимости WorldService.
type WorldDeps struct {
	DB          database.DBTX
	Tx          database.TxManager
	Stories     repository.StoryRepository
	Elements    repository.ElementRepository
	Mentions    repository.MentionRepository
	Moments     repository.MomentRepository
	Connections repository.ConnectionRepository
	Extractor   extraction.Extractor
}

// NewWorldService создает сервис канона.
func NewWorldService(deps WorldDeps, logger *zap.Logger) WorldService {
	return &worldServiceImpl{
		db:          deps.DB,
		tx:          deps.Tx,
		stories:     deps.Stories,
		elements:    deps.Elements,
		mentions:    deps.Mentions,
		moments:     deps.Moments,
		connections: deps.Connections,
		extractor:   deps.Extractor,
		logger:      logger.Named("WorldService"),
	}
}

func (s *worldServiceImpl) Elements(ctx context.Context, userID, storyID uuid.UUID) ([]models.NarrativeElement, error) {
	if _, err := requireStory(ctx, s.db, s.stories, userID, storyID); err != nil {
		return nil, err
	}
	return s.elements.ListByStory(ctx, s.db, storyID)
}

func (s *worldServiceImpl) Timeline(ctx context.Context, userID, storyID uuid.UUID) ([]models.StoryMoment, error) {
	if _, err := requireStory(ctx, s.db, s.stories, userID, storyID); err != nil {
		return nil, err
	}
	return s.moments.ListByStory(ctx, s.db, storyID)
}

func (s *worldServiceImpl) Connections(ctx context.Context, userID, storyID uuid.UUID) ([]models.NarrativeConnection, error) {
	if _, err := requireStory(ctx, s.db, s.stories, userID, storyID); err != nil {
		return nil, err
	}
	return s.connections.ListByStory(ctx, s.db, storyID)
}

func (s *worldServiceImpl) Mentions(ctx context.Context, userID, storyID uuid.UUID) ([]models.EntityMention, error) {
	if _, err := requireStory(ctx, s.db, s.stories, userID, storyID); err != nil {
		return nil, err
	}
	return s.mentions.ListByStory(ctx, s.db, storyID)
}

// Snapshot собирает весь канон истории параллельными запросами к пулу.
func (s *worldServiceImpl) Snapshot(ctx context.Context, userID, storyID uuid.UUID) (*models.WorldBible, error) {
	story, err := requireStory(ctx, s.db, s.stories, userID, storyID)
	if err != nil {
		return nil, err
	}

	bible := &models.WorldBible{Story: story}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		bible.Elements, err = s.elements.ListByStory(gctx, s.db, storyID)
		return err
	})
	g.Go(func() (err error) {
		bible.Timeline, err = s.moments.ListByStory(gctx, s.db, storyID)
		return err
	})
	g.Go(func() (err error) {
		bible.Connections, err = s.connections.ListByStory(gctx, s.db, storyID)
		return err
	})
	g.Go(func() (err error) {
		bible.Mentions, err = s.mentions.ListByStory(gctx, s.db, storyID)
		return err
	})
	if err := g.Wait(); err != nil {
		s.logger.Error("Failed to build world snapshot", zap.String("storyID", storyID.String()), zap.Error(err))
		return nil, fmt.Errorf("ошибка получения канона истории: %w", err)
	}
	return bible, nil
}

// storyElement загружает сущность и проверяет, что она принадлежит истории.
func (s *worldServiceImpl) storyElement(ctx context.Context, q database.DBTX, storyID, elementID uuid.UUID) (*models.NarrativeElement, error) {
	element, err := s.elements.GetByID(ctx, q, elementID)
	if err != nil {
		return nil, err
	}
	if element.StoryID != storyID {
		return nil, models.ErrNotFound
	}
	return element, nil
}

func (s *worldServiceImpl) Dossier(ctx context.Context, userID, storyID, elementID uuid.UUID) (*models.Dossier, error) {
	if _, err := requireStory(ctx, s.db, s.stories, userID, storyID); err != nil {
		return nil, err
	}
	element, err := s.storyElement(ctx, s.db, storyID, elementID)
	if err != nil {
		return nil, err
	}

	dossier := &models.Dossier{Element: element}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		dossier.Mentions, err = s.mentions.ListByElement(gctx, s.db, elementID)
		return err
	})
	g.Go(func() (err error) {
		dossier.Connections, err = s.connections.ListByElement(gctx, s.db, elementID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("ошибка получения досье: %w", err)
	}
	return dossier, nil
}

func (s *worldServiceImpl) UpdateElement(ctx context.Context, userID, storyID, elementID uuid.UUID, patch models.ElementPatch) (*models.NarrativeElement, error) {
	if patch.IsEmpty() {
		return nil, fmt.Errorf("%w: nothing to update", models.ErrInvalidInput)
	}
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: name must not be empty", models.ErrInvalidInput)
		}
		patch.Name = &name
	}
	if _, err := requireStory(ctx, s.db, s.stories, userID, storyID); err != nil {
		return nil, err
	}
	element, err := s.storyElement(ctx, s.db, storyID, elementID)
	if err != nil {
		return nil, err
	}
	if patch.Attributes != nil {
		attrs := patch.Attributes.ForType(element.ElementType)
		if err := models.Validate(attrs); err != nil {
			return nil, err
		}
		patch.Attributes = &attrs
	}

	updated, err := s.elements.Update(ctx, s.db, storyID, elementID, patch)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Element edited", zap.String("storyID", storyID.String()), zap.String("elementID", elementID.String()))
	return updated, nil
}

// DeleteElement удаляет сущность. Упоминания и связи удаляются каскадом,
// ссылки из событий снимаются явно.
func (s *worldServiceImpl) DeleteElement(ctx context.Context, userID, storyID, elementID uuid.UUID) error {
	err := s.tx.WithTransaction(ctx, func(ctx context.Context, tx database.DBTX) error {
		if _, err := requireStory(ctx, tx, s.stories, userID, storyID); err != nil {
			return err
		}
		if err := s.moments.RemoveCharacter(ctx, tx, storyID, elementID); err != nil {
			return err
		}
		return s.elements.Delete(ctx, tx, storyID, elementID)
	})
	if err != nil {
		return err
	}
	s.logger.Info("Element deleted", zap.String("storyID", storyID.String()), zap.String("elementID", elementID.String()))
	return nil
}

func (s *worldServiceImpl) UpdateMoment(ctx context.Context, userID, storyID, momentID uuid.UUID, patch models.MomentPatch) (*models.StoryMoment, error) {
	if patch.IsEmpty() {
		return nil, fmt.Errorf("%w: nothing to update", models.ErrInvalidInput)
	}
	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if title == "" {
			return nil, fmt.Errorf("%w: title must not be empty", models.ErrInvalidInput)
		}
		patch.Title = &title
	}
	if _, err := requireStory(ctx, s.db, s.stories, userID, storyID); err != nil {
		return nil, err
	}
	updated, err := s.moments.Update(ctx, s.db, storyID, momentID, patch)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Moment edited", zap.String("storyID", storyID.String()), zap.String("momentID", momentID.String()))
	return updated, nil
}

func (s *worldServiceImpl) DeleteMoment(ctx context.Context, userID, storyID, momentID uuid.UUID) error {
	if _, err := requireStory(ctx, s.db, s.stories, userID, storyID); err != nil {
		return err
	}
	if err := s.moments.Delete(ctx, s.db, storyID, momentID); err != nil {
		return err
	}
	s.logger.Info("Moment deleted", zap.String("storyID", storyID.String()), zap.String("momentID", momentID.String()))
	return nil
}

// Brainstorm предлагает варианты вайба по сущностям и последним событиям.
func (s *worldServiceImpl) Brainstorm(ctx context.Context, userID, storyID uuid.UUID) ([]models.ThemeOption, error) {
	if _, err := requireStory(ctx, s.db, s.stories, userID, storyID); err != nil {
		return nil, err
	}

	var (
		refs   []models.ElementRef
		recent []models.EventSummary
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		refs, err = s.elements.ListRefs(gctx, s.db, storyID)
		return err
	})
	g.Go(func() (err error) {
		recent, err = s.moments.ListRecent(gctx, s.db, storyID, recentEventsLimit)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("ошибка подготовки контекста брейншторма: %w", err)
	}

	names := make([]string, 0, len(refs))
	for _, r := range refs {
		names = append(names, r.Name)
	}
	return s.extractor.Brainstorm(ctx, names, recent), nil
}

// InterviewCharacter отвечает на вопрос от лица сущности с учетом последних событий.
func (s *worldServiceImpl) InterviewCharacter(ctx context.Context, userID, storyID, elementID uuid.UUID, prompt string) (*models.InterviewResult, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, fmt.Errorf("%w: prompt must not be empty", models.ErrInvalidInput)
	}
	if _, err := requireStory(ctx, s.db, s.stories, userID, storyID); err != nil {
		return nil, err
	}
	element, err := s.storyElement(ctx, s.db, storyID, elementID)
	if err != nil {
		return nil, err
	}
	recent, err := s.moments.ListRecent(ctx, s.db, storyID, recentEventsLimit)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения последних событий: %w", err)
	}

	response := s.extractor.Dialogue(ctx, element.Name, element.Attributes, prompt, recent)
	return &models.InterviewResult{CharacterID: elementID.String(), Response: response}, nil
}
