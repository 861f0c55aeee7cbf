package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"narrative-server/internal/extraction"
	"narrative-server/internal/messaging"
	"narrative-server/internal/models"
	"narrative-server/internal/repository"
	"narrative-server/internal/resolver"
	"narrative-server/pkg/database"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// NarrationService - прием нарраций.
type NarrationService interface {
	AddNarration(ctx context.Context, userID, storyID uuid.UUID, content string) (*models.NarrationResult, error)
	ListNarrations(ctx context.Context, userID, storyID uuid.UUID) ([]models.RawNarration, error)
}

type narrationServiceImpl struct {
	db         database.DBTX
	tx         database.TxManager
	stories    repository.StoryRepository
	narrations repository.NarrationRepository
	moments    repository.MomentRepository
	resolver   *resolver.Service
	extractor  extraction.Extractor
	stager     *Stager
	progress   ProgressService
	publisher  messaging.StoryUpdatePublisher
	logger     *zap.Logger
}

// NarrationDeps - зависимости NarrationService.
type NarrationDeps struct {
	DB         database.DBTX
	Tx         database.TxManager
	Stories    repository.StoryRepository
	Narrations repository.NarrationRepository
	Moments    repository.MomentRepository
	Resolver   *resolver.Service
	Extractor  extraction.Extractor
	Stager     *Stager
	Progress   ProgressService
	Publisher  messaging.StoryUpdatePublisher
}

// NewNarrationService создает сервис приема нарраций.
func NewNarrationService(deps NarrationDeps, logger *zap.Logger) NarrationService {
	return &narrationServiceImpl{
		db:         deps.DB,
		tx:         deps.Tx,
		stories:    deps.Stories,
		narrations: deps.Narrations,
		moments:    deps.Moments,
		resolver:   deps.Resolver,
		extractor:  deps.Extractor,
		stager:     deps.Stager,
		progress:   deps.Progress,
		publisher:  deps.Publisher,
		logger:     logger.Named("NarrationService"),
	}
}

// AddNarration сохраняет наррацию и готовит подсказки.
// Сбой извлечения не прерывает прием: наррация сохраняется со статусом raw.
func (s *narrationServiceImpl) AddNarration(ctx context.Context, userID, storyID uuid.UUID, content string) (*models.NarrationResult, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("%w: content must not be empty", models.ErrInvalidInput)
	}
	log := s.logger.With(zap.String("userID", userID.String()), zap.String("storyID", storyID.String()))

	if _, err := requireStory(ctx, s.db, s.stories, userID, storyID); err != nil {
		return nil, err
	}

	// 1. Свежий индекс имен и недавние события для контекста
	index, err := s.resolver.ForStory(ctx, s.db, storyID)
	if err != nil {
		return nil, err
	}
	recent, err := s.moments.ListRecent(ctx, s.db, storyID, recentEventsLimit)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения последних событий: %w", err)
	}

	// 2. Извлечение и реплика слушателя параллельно, у каждого свой таймаут
	var (
		extracted  *models.ExtractionResult
		raw        json.RawMessage
		extractErr error
		listener   string
	)
	// Ошибка группы - только невосстановимая ошибка извлечения; она отменяет реплику слушателя.
	// ErrExtractionFailed остается в extractErr и ведет на путь raw.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		extracted, raw, extractErr = s.extractor.Extract(gctx, content, extraction.Context{
			Entities:     index.Names(),
			RecentEvents: recent,
		})
		if extractErr != nil && !errors.Is(extractErr, models.ErrExtractionFailed) {
			return extractErr
		}
		return nil
	})
	g.Go(func() error {
		listener = s.extractor.ListenerResponse(gctx, content, recent)
		return nil
	})
	if err := g.Wait(); err != nil {
		log.Error("Extraction failed unexpectedly", zap.Error(err))
		return nil, fmt.Errorf("ошибка извлечения сущностей: %w", err)
	}

	status := models.NarrationStatusSuggestionsPending
	if extractErr != nil {
		log.Warn("Extraction failed, storing raw narration", zap.Error(extractErr))
		extracted, raw = nil, nil
		listener = models.DefaultListenerResponse
		status = models.NarrationStatusRaw
	}

	// 3. Наррация и подсказки в одной транзакции под advisory lock истории
	narration := &models.RawNarration{
		StoryID:          storyID,
		Content:          content,
		ListenerResponse: listener,
		Extracted:        raw,
	}
	staged := 0
	err = s.tx.WithTransaction(ctx, func(ctx context.Context, tx database.DBTX) error {
		staged = 0
		if err := s.narrations.LockStory(ctx, tx, storyID); err != nil {
			return err
		}
		seq, err := s.narrations.NextSequenceNumber(ctx, tx, storyID)
		if err != nil {
			return err
		}
		narration.SequenceNumber = seq
		if err := s.narrations.Create(ctx, tx, narration); err != nil {
			return err
		}
		if extracted == nil {
			return nil
		}
		n, stageErr := s.stager.Stage(ctx, tx, storyID, narration.ID, extracted, index)
		if stageErr != nil {
			// Наррация остается, подсказки потеряны.
			log.Error("Narration kept without suggestions", zap.String("narrationID", narration.ID.String()), zap.Error(stageErr))
			return nil
		}
		staged = n
		return nil
	})
	if err != nil {
		log.Error("Failed to store narration", zap.Error(err))
		return nil, fmt.Errorf("ошибка сохранения наррации: %w", err)
	}

	log.Info("Narration added",
		zap.String("narrationID", narration.ID.String()),
		zap.Int("sequence", narration.SequenceNumber),
		zap.String("status", string(status)),
		zap.Int("staged", staged),
	)

	// 4. Побочные эффекты после коммита
	awardXP(ctx, s.progress, log, userID, models.XPForNarration, models.ReasonNarration)
	narrationID := narration.ID
	publishUpdate(ctx, s.publisher, log, models.NewStoryUpdate(models.UpdateNarrationCreated, userID, storyID, &narrationID))

	return &models.NarrationResult{
		Narration:        narration,
		Extracted:        extracted,
		ListenerResponse: listener,
		Status:           status,
		Staged:           staged,
	}, nil
}

func (s *narrationServiceImpl) ListNarrations(ctx context.Context, userID, storyID uuid.UUID) ([]models.RawNarration, error) {
	if _, err := requireStory(ctx, s.db, s.stories, userID, storyID); err != nil {
		return nil, err
	}
	narrations, err := s.narrations.ListByStory(ctx, s.db, storyID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения нарраций: %w", err)
	}
	return narrations, nil
}
