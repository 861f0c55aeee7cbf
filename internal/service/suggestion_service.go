package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"narrative-server/internal/messaging"
	"narrative-server/internal/models"
	"narrative-server/internal/repository"
	"narrative-server/internal/resolver"
	"narrative-server/pkg/database"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SuggestionService - ревью подсказок и перенос их в канон.
type SuggestionService interface {
	ListPending(ctx context.Context, userID, storyID uuid.UUID) ([]models.PendingSuggestion, error)
	UpdateSuggestion(ctx context.Context, userID, suggestionID uuid.UUID, payload json.RawMessage) (*models.AiSuggestion, error)
	Confirm(ctx context.Context, userID, suggestionID uuid.UUID) (*models.ConfirmResult, error)
	Reject(ctx context.Context, userID, suggestionID uuid.UUID) error
	RevertElement(ctx context.Context, userID, elementID uuid.UUID) (*models.RevertResult, error)
	RevertMoment(ctx context.Context, userID, momentID uuid.UUID) (*models.RevertResult, error)
}

type suggestionServiceImpl struct {
	db          database.DBTX
	tx          database.TxManager
	stories     repository.StoryRepository
	narrations  repository.NarrationRepository
	suggestions repository.SuggestionRepository
	elements    repository.ElementRepository
	mentions    repository.MentionRepository
	moments     repository.MomentRepository
	connections repository.ConnectionRepository
	resolver    *resolver.Service
	progress    ProgressService
	publisher   messaging.StoryUpdatePublisher
	logger      *zap.Logger
}

// SuggestionDeps - зависимости SuggestionService.
type SuggestionDeps struct {
	DB          database.DBTX
	Tx          database.TxManager
	Stories     repository.StoryRepository
	Narrations  repository.NarrationRepository
	Suggestions repository.SuggestionRepository
	Elements    repository.ElementRepository
	Mentions    repository.MentionRepository
	Moments     repository.MomentRepository
	Connections repository.ConnectionRepository
	Resolver    *resolver.Service
	Progress    ProgressService
	Publisher   messaging.StoryUpdatePublisher
}

// NewSuggestionService создает сервис подсказок.
func NewSuggestionService(deps SuggestionDeps, logger *zap.Logger) SuggestionService {
	return &suggestionServiceImpl{
		db:          deps.DB,
		tx:          deps.Tx,
		stories:     deps.Stories,
		narrations:  deps.Narrations,
		suggestions: deps.Suggestions,
		elements:    deps.Elements,
		mentions:    deps.Mentions,
		moments:     deps.Moments,
		connections: deps.Connections,
		resolver:    deps.Resolver,
		progress:    deps.Progress,
		publisher:   deps.Publisher,
		logger:      logger.Named("SuggestionService"),
	}
}

func (s *suggestionServiceImpl) ListPending(ctx context.Context, userID, storyID uuid.UUID) ([]models.PendingSuggestion, error) {
	if _, err := requireStory(ctx, s.db, s.stories, userID, storyID); err != nil {
		return nil, err
	}
	pending, err := s.suggestions.ListPendingByStory(ctx, s.db, storyID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения подсказок: %w", err)
	}
	return pending, nil
}

// ownedSuggestion загружает подсказку и проверяет владельца через историю.
func (s *suggestionServiceImpl) ownedSuggestion(ctx context.Context, q database.DBTX, userID, suggestionID uuid.UUID, forUpdate bool) (*models.AiSuggestion, error) {
	get := s.suggestions.GetByID
	if forUpdate {
		get = s.suggestions.GetForUpdate
	}
	sugg, err := get(ctx, q, suggestionID)
	if err != nil {
		return nil, err
	}
	if _, err := requireStory(ctx, q, s.stories, userID, sugg.StoryID); err != nil {
		return nil, err
	}
	return sugg, nil
}

// UpdateSuggestion заменяет suggested_data после проверки по схеме варианта.
func (s *suggestionServiceImpl) UpdateSuggestion(ctx context.Context, userID, suggestionID uuid.UUID, payload json.RawMessage) (*models.AiSuggestion, error) {
	sugg, err := s.ownedSuggestion(ctx, s.db, userID, suggestionID, false)
	if err != nil {
		return nil, err
	}
	if sugg.Status != models.SuggestionStatusPending {
		return nil, models.ErrSuggestionNotPending
	}

	p, err := models.DecodeSuggestionPayload(sugg.SuggestionType, payload)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("ошибка сериализации подсказки: %w", err)
	}

	updated, err := s.suggestions.UpdateData(ctx, s.db, suggestionID, data)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Suggestion edited",
		zap.String("userID", userID.String()),
		zap.String("suggestionID", suggestionID.String()),
		zap.String("type", string(sugg.SuggestionType)),
	)
	return updated, nil
}

// Confirm переносит подсказку в канон в одной транзакции.
func (s *suggestionServiceImpl) Confirm(ctx context.Context, userID, suggestionID uuid.UUID) (*models.ConfirmResult, error) {
	log := s.logger.With(zap.String("userID", userID.String()), zap.String("suggestionID", suggestionID.String()))

	var (
		result  models.ConfirmResult
		storyID uuid.UUID
	)
	err := s.tx.WithTransaction(ctx, func(ctx context.Context, tx database.DBTX) error {
		sugg, err := s.ownedSuggestion(ctx, tx, userID, suggestionID, true)
		if err != nil {
			return err
		}
		if sugg.Status != models.SuggestionStatusPending {
			return models.ErrSuggestionNotPending
		}
		storyID = sugg.StoryID

		payload, err := models.DecodeSuggestionPayload(sugg.SuggestionType, sugg.SuggestedData)
		if err != nil {
			return err
		}
		index, err := s.resolver.ForStory(ctx, tx, sugg.StoryID)
		if err != nil {
			return err
		}

		result = models.ConfirmResult{ID: sugg.ID, SuggestionType: sugg.SuggestionType}
		var canonicalID *uuid.UUID
		switch p := payload.(type) {
		case models.ElementSuggestion:
			canonicalID, err = s.confirmElement(ctx, tx, sugg, p, index)
		case models.MomentSuggestion:
			canonicalID, err = s.confirmMoment(ctx, tx, sugg, p, index)
		case models.ConnectionSuggestion:
			canonicalID, err = s.confirmConnection(ctx, tx, sugg, p, index)
		default:
			err = fmt.Errorf("%w: %q", models.ErrUnknownSuggestion, sugg.SuggestionType)
		}
		if err != nil {
			return err
		}
		result.CanonicalID = canonicalID
		result.Materialized = canonicalID != nil

		return s.suggestions.UpdateStatus(ctx, tx, sugg.ID, models.SuggestionStatusAccepted)
	})
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) && !errors.Is(err, models.ErrSuggestionNotPending) && !errors.Is(err, models.ErrInvalidInput) {
			log.Error("Failed to confirm suggestion", zap.Error(err))
		}
		return nil, err
	}
	result.Success = true

	log.Info("Suggestion confirmed",
		zap.String("storyID", storyID.String()),
		zap.String("type", string(result.SuggestionType)),
		zap.Bool("materialized", result.Materialized),
	)

	awardXP(ctx, s.progress, log, userID, models.XPForConfirmed, models.ReasonConfirmed)
	publishUpdate(ctx, s.publisher, log, models.NewStoryUpdate(models.UpdateSuggestionConfirmed, userID, storyID, result.CanonicalID))
	return &result, nil
}

// confirmElement находит сущность по имени или создает ее, затем добавляет упоминание.
// Совпадение имени с сущностью другого типа считается той же сущностью.
func (s *suggestionServiceImpl) confirmElement(ctx context.Context, tx database.DBTX, sugg *models.AiSuggestion, p models.ElementSuggestion, index *resolver.Index) (*uuid.UUID, error) {
	confidence := p.ConfidenceOrDefault()

	elementID, known := index.Resolve(p.Name)
	if known {
		if err := s.elements.TouchLastMentioned(ctx, tx, elementID, sugg.NarrationID); err != nil {
			return nil, err
		}
	} else {
		narrationID := sugg.NarrationID
		suggestionID := sugg.ID
		element := &models.NarrativeElement{
			StoryID:                   sugg.StoryID,
			ElementType:               p.ElementType,
			Name:                      p.Name,
			Attributes:                p.Attributes,
			FirstMentionedInNarration: &narrationID,
			LastMentionedInNarration:  &narrationID,
			ConfidenceScore:           confidence,
			OriginatingSuggestionID:   &suggestionID,
		}
		created, err := s.elements.Upsert(ctx, tx, element)
		if err != nil {
			return nil, err
		}
		elementID = element.ID
		index.Add(p.Name, elementID)
		s.logger.Debug("Element resolved", zap.String("elementID", elementID.String()), zap.Bool("created", created))
	}

	suggestionID := sugg.ID
	mention := &models.EntityMention{
		StoryID:        sugg.StoryID,
		ElementID:      elementID,
		NarrationID:    sugg.NarrationID,
		MentionContext: ptrIfNotEmpty(p.MentionPhrase),
		EmotionalState: models.EmotionalState{
			CurrentEmotion: p.Attributes.CurrentEmotion,
			SentimentScore: p.Attributes.SentimentScore,
		},
		ImportanceInNarration:   int(math.Round(confidence * 10)),
		OriginatingSuggestionID: &suggestionID,
	}
	if err := s.mentions.Create(ctx, tx, mention); err != nil {
		return nil, err
	}
	return &elementID, nil
}

func (s *suggestionServiceImpl) confirmMoment(ctx context.Context, tx database.DBTX, sugg *models.AiSuggestion, p models.MomentSuggestion, index *resolver.Index) (*uuid.UUID, error) {
	narration, err := s.narrations.GetByID(ctx, tx, sugg.NarrationID)
	if err != nil {
		return nil, err
	}

	involved, unresolved := index.ResolveAll(p.Involved)
	if len(unresolved) > 0 {
		s.logger.Info("Dropping unresolved characters from moment",
			zap.String("suggestionID", sugg.ID.String()),
			zap.Strings("names", unresolved),
		)
	}

	weight := models.DefaultNarrativeWeight
	if p.Importance != nil {
		weight = *p.Importance
	}
	signature := map[string]float64{}
	if p.EmotionalTone != "" {
		signature[p.EmotionalTone] = float64(weight)
	}

	narrationID := sugg.NarrationID
	suggestionID := sugg.ID
	moment := &models.StoryMoment{
		StoryID:                 sugg.StoryID,
		Title:                   p.Title,
		Description:             ptrIfNotEmpty(p.Description),
		TimelinePosition:        models.TimelinePositionForSequence(narration.SequenceNumber),
		CreatedFromNarration:    &narrationID,
		CharactersInvolved:      involved,
		EmotionalSignature:      signature,
		NarrativeWeight:         weight,
		OriginatingSuggestionID: &suggestionID,
	}
	if err := s.moments.Create(ctx, tx, moment); err != nil {
		return nil, err
	}
	return &moment.ID, nil
}

// confirmConnection создает ребро, только если оба конца известны.
// Иначе возвращает nil без ошибки, подсказка все равно принимается.
func (s *suggestionServiceImpl) confirmConnection(ctx context.Context, tx database.DBTX, sugg *models.AiSuggestion, p models.ConnectionSuggestion, index *resolver.Index) (*uuid.UUID, error) {
	fromID, fromOK := resolveEndpoint(index, p.FromID, p.From)
	toID, toOK := resolveEndpoint(index, p.ToID, p.To)
	if !fromOK || !toOK {
		s.logger.Info("Connection endpoint unresolved, accepting without edge",
			zap.String("suggestionID", sugg.ID.String()),
			zap.String("from", p.From),
			zap.String("to", p.To),
			zap.Bool("fromResolved", fromOK),
			zap.Bool("toResolved", toOK),
		)
		return nil, nil
	}

	weight := models.DefaultConnectionWeight
	if p.Weight != nil {
		weight = *p.Weight
	}
	charge := 0
	if p.EmotionalCharge != nil {
		charge = *p.EmotionalCharge
	}

	narrationID := sugg.NarrationID
	suggestionID := sugg.ID
	conn := &models.NarrativeConnection{
		StoryID:                 sugg.StoryID,
		FromID:                  fromID,
		ToID:                    toID,
		ConnectionType:          p.Type,
		Description:             ptrIfNotEmpty(p.Description),
		Weight:                  weight,
		EmotionalCharge:         charge,
		CreatedFromNarration:    &narrationID,
		OriginatingSuggestionID: &suggestionID,
	}
	if err := s.connections.Create(ctx, tx, conn); err != nil {
		return nil, err
	}
	return &conn.ID, nil
}

// resolveEndpoint предпочитает id, сохраненный при подготовке, если сущность еще существует.
func resolveEndpoint(index *resolver.Index, id *uuid.UUID, name string) (uuid.UUID, bool) {
	if id != nil && index.Contains(*id) {
		return *id, true
	}
	return index.Resolve(name)
}

// Reject отклоняет подсказку. Повторное отклонение не является ошибкой.
func (s *suggestionServiceImpl) Reject(ctx context.Context, userID, suggestionID uuid.UUID) error {
	log := s.logger.With(zap.String("userID", userID.String()), zap.String("suggestionID", suggestionID.String()))

	var (
		storyID  uuid.UUID
		rejected bool
	)
	err := s.tx.WithTransaction(ctx, func(ctx context.Context, tx database.DBTX) error {
		sugg, err := s.ownedSuggestion(ctx, tx, userID, suggestionID, true)
		if err != nil {
			return err
		}
		storyID = sugg.StoryID
		switch sugg.Status {
		case models.SuggestionStatusRejected:
			return nil
		case models.SuggestionStatusAccepted:
			return models.ErrSuggestionNotPending
		}
		rejected = true
		return s.suggestions.UpdateStatus(ctx, tx, sugg.ID, models.SuggestionStatusRejected)
	})
	if err != nil {
		return err
	}
	if !rejected {
		log.Debug("Suggestion already rejected")
		return nil
	}

	log.Info("Suggestion rejected", zap.String("storyID", storyID.String()))
	id := suggestionID
	publishUpdate(ctx, s.publisher, log, models.NewStoryUpdate(models.UpdateSuggestionRejected, userID, storyID, &id))
	return nil
}
