package service

import (
	"context"
	"encoding/json"
	"fmt"

	"narrative-server/internal/models"
	"narrative-server/internal/repository"
	"narrative-server/internal/resolver"
	"narrative-server/pkg/database"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// BuildSuggestions превращает результат извлечения в pending подсказки.
// Порядок: сущности (персонажи, локации, организации), события, связи.
// Невалидные элементы не попадают в результат, причины возвращаются вторым значением.
func BuildSuggestions(storyID, narrationID uuid.UUID, result *models.ExtractionResult, index *resolver.Index) ([]models.AiSuggestion, []error) {
	if result.IsEmpty() {
		return nil, nil
	}

	var (
		out     []models.AiSuggestion
		dropped []error
	)
	add := func(p models.SuggestionPayload) {
		if err := models.ValidatePayload(p); err != nil {
			dropped = append(dropped, fmt.Errorf("%s: %w", p.SuggestionType(), err))
			return
		}
		data, err := json.Marshal(p)
		if err != nil {
			dropped = append(dropped, fmt.Errorf("%s: %w", p.SuggestionType(), err))
			return
		}
		out = append(out, models.AiSuggestion{
			ID:             uuid.New(),
			StoryID:        storyID,
			NarrationID:    narrationID,
			SuggestionType: p.SuggestionType(),
			SuggestedData:  data,
			Status:         models.SuggestionStatusPending,
		})
	}

	groups := []struct {
		elementType models.ElementType
		entities    []models.ExtractedEntity
	}{
		{models.ElementTypeCharacter, result.Characters},
		{models.ElementTypeLocation, result.Locations},
		{models.ElementTypeOrganization, result.Organizations},
	}
	for _, g := range groups {
		for _, e := range g.entities {
			add(models.ElementSuggestion{
				Name:          e.Name,
				ElementType:   g.elementType,
				Attributes:    e.Attributes.ForType(g.elementType),
				Confidence:    e.Confidence,
				MentionPhrase: e.MentionPhrase,
			})
		}
	}

	for _, ev := range result.Events {
		involved := ev.CharactersInvolved
		if involved == nil {
			involved = []string{}
		}
		add(models.MomentSuggestion{
			Title:          ev.Title,
			Description:    ev.Description,
			Importance:     ev.Importance,
			Involved:       involved,
			Location:       ev.Location,
			EmotionalTone:  ev.EmotionalTone,
			IsTurningPoint: ev.IsTurningPoint,
		})
	}

	for _, c := range result.Connections {
		s := models.ConnectionSuggestion{
			From:            c.From,
			To:              c.To,
			Type:            c.Type,
			Description:     c.Description,
			Weight:          c.Weight,
			EmotionalCharge: c.EmotionalCharge,
		}
		if index != nil {
			if id, ok := index.Resolve(c.From); ok {
				s.FromID = &id
			}
			if id, ok := index.Resolve(c.To); ok {
				s.ToID = &id
			}
		}
		add(s)
	}

	return out, dropped
}

// Stager сохраняет подсказки одной наррации.
type Stager struct {
	tx          database.TxManager
	suggestions repository.SuggestionRepository
	logger      *zap.Logger
}

// NewStager создает Stager.
func NewStager(tx database.TxManager, suggestions repository.SuggestionRepository, logger *zap.Logger) *Stager {
	return &Stager{
		tx:          tx,
		suggestions: suggestions,
		logger:      logger.Named("Stager"),
	}
}

// Stage строит подсказки и вставляет их одним батчем под SAVEPOINT внутри tx.
// Вставка атомарна: при ошибке откатывается только savepoint, вызывающий
// может закоммитить остальную транзакцию. Повторов нет.
func (s *Stager) Stage(ctx context.Context, tx database.DBTX, storyID, narrationID uuid.UUID, result *models.ExtractionResult, index *resolver.Index) (int, error) {
	log := s.logger.With(zap.String("storyID", storyID.String()), zap.String("narrationID", narrationID.String()))

	suggestions, dropped := BuildSuggestions(storyID, narrationID, result, index)
	for _, err := range dropped {
		log.Warn("Dropped invalid extracted item", zap.Error(err))
	}
	if len(suggestions) == 0 {
		return 0, nil
	}

	err := s.tx.WithSavepoint(ctx, tx, func(ctx context.Context, sp database.DBTX) error {
		return s.suggestions.CreateBatch(ctx, sp, suggestions)
	})
	if err != nil {
		log.Error("Failed to stage suggestions, savepoint rolled back", zap.Int("count", len(suggestions)), zap.Error(err))
		return 0, fmt.Errorf("ошибка сохранения подсказок: %w", err)
	}
	return len(suggestions), nil
}
