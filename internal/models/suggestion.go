package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// SuggestionType - вид подсказки, определяет схему suggested_data.
type SuggestionType string

const (
	SuggestionTypeElement    SuggestionType = "element"
	SuggestionTypeMoment     SuggestionType = "moment"
	SuggestionTypeConnection SuggestionType = "connection"
)

// SuggestionStatus - состояние подсказки: pending -> accepted | rejected.
type SuggestionStatus string

const (
	SuggestionStatusPending  SuggestionStatus = "pending"
	SuggestionStatusAccepted SuggestionStatus = "accepted"
	SuggestionStatusRejected SuggestionStatus = "rejected"
)

// AiSuggestion - подготовленный, но не подтвержденный факт.
type AiSuggestion struct {
	ID             uuid.UUID        `json:"id" db:"id"`
	StoryID        uuid.UUID        `json:"story_id" db:"story_id"`
	NarrationID    uuid.UUID        `json:"narration_id" db:"narration_id"`
	SuggestionType SuggestionType   `json:"suggestion_type" db:"suggestion_type"`
	SuggestedData  json.RawMessage  `json:"suggested_data" db:"suggested_data"`
	Status         SuggestionStatus `json:"status" db:"status"`
	CreatedAt      time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at" db:"updated_at"`
}

// NarrationRef - краткие данные наррации, из которой пришла подсказка.
type NarrationRef struct {
	Content        string `json:"content" db:"content"`
	SequenceNumber int    `json:"sequence_number" db:"sequence_number"`
}

// PendingSuggestion - подсказка вместе с текстом исходной наррации.
type PendingSuggestion struct {
	AiSuggestion
	Narration NarrationRef `json:"narration" db:"narration"`
}

// SuggestionPayload - типизированное содержимое suggested_data.
type SuggestionPayload interface {
	SuggestionType() SuggestionType
}

// ElementSuggestion - кандидат в NarrativeElement.
type ElementSuggestion struct {
	Name          string            `json:"name" validate:"required,max=200"`
	ElementType   ElementType       `json:"element_type" validate:"required,oneof=character location organization"`
	Attributes    ElementAttributes `json:"attributes"`
	Confidence    *float64          `json:"confidence,omitempty" validate:"omitempty,gte=0,lte=1"`
	MentionPhrase string            `json:"mention_phrase,omitempty" validate:"max=2000"`
}

func (ElementSuggestion) SuggestionType() SuggestionType { return SuggestionTypeElement }

// ConfidenceOrDefault возвращает уверенность или 1.0.
func (s ElementSuggestion) ConfidenceOrDefault() float64 {
	if s.Confidence == nil {
		return DefaultConfidence
	}
	return *s.Confidence
}

// MomentSuggestion - кандидат в StoryMoment. Involved хранит имена,
// они разрешаются в идентификаторы только при подтверждении.
type MomentSuggestion struct {
	Title          string   `json:"title" validate:"required,max=300"`
	Description    string   `json:"description,omitempty" validate:"max=4000"`
	Importance     *int     `json:"importance,omitempty" validate:"omitempty,min=1,max=10"`
	Involved       []string `json:"involved" validate:"max=50,dive,required,max=200"`
	Location       string   `json:"location,omitempty" validate:"max=200"`
	EmotionalTone  string   `json:"emotional_tone,omitempty" validate:"max=100"`
	IsTurningPoint bool     `json:"is_turning_point,omitempty"`
}

func (MomentSuggestion) SuggestionType() SuggestionType { return SuggestionTypeMoment }

// ConnectionSuggestion - кандидат в NarrativeConnection.
// FromID/ToID заполняются, если имена уже разрешались на этапе подготовки.
type ConnectionSuggestion struct {
	From            string     `json:"from" validate:"required,max=200"`
	To              string     `json:"to" validate:"required,max=200"`
	Type            string     `json:"type" validate:"required,max=100"`
	Description     string     `json:"description,omitempty" validate:"max=2000"`
	Weight          *int       `json:"weight,omitempty" validate:"omitempty,min=1,max=10"`
	EmotionalCharge *int       `json:"emotional_charge,omitempty" validate:"omitempty,min=-10,max=10"`
	FromID          *uuid.UUID `json:"from_id,omitempty"`
	ToID            *uuid.UUID `json:"to_id,omitempty"`
}

func (ConnectionSuggestion) SuggestionType() SuggestionType { return SuggestionTypeConnection }

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate проверяет структуру по тегам validate.
func Validate(v any) error {
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return nil
}

// ValidatePayload проверяет подсказку по схеме ее варианта.
func ValidatePayload(p SuggestionPayload) error {
	return Validate(p)
}

// DecodeSuggestionPayload разбирает suggested_data в вариант, соответствующий типу,
// и валидирует его.
func DecodeSuggestionPayload(t SuggestionType, raw json.RawMessage) (SuggestionPayload, error) {
	var p SuggestionPayload
	switch t {
	case SuggestionTypeElement:
		var s ElementSuggestion
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("%w: element payload: %v", ErrInvalidInput, err)
		}
		s.Name = strings.TrimSpace(s.Name)
		s.Attributes = s.Attributes.ForType(s.ElementType)
		p = s
	case SuggestionTypeMoment:
		var s MomentSuggestion
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("%w: moment payload: %v", ErrInvalidInput, err)
		}
		s.Title = strings.TrimSpace(s.Title)
		p = s
	case SuggestionTypeConnection:
		var s ConnectionSuggestion
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("%w: connection payload: %v", ErrInvalidInput, err)
		}
		s.From = strings.TrimSpace(s.From)
		s.To = strings.TrimSpace(s.To)
		p = s
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownSuggestion, t)
	}
	if err := ValidatePayload(p); err != nil {
		return nil, err
	}
	return p, nil
}

// ConfirmResult - результат подтверждения подсказки.
// Materialized=false означает, что каноническая запись не создана
// (связь с неразрешенным концом), но подсказка все равно принята.
type ConfirmResult struct {
	Success        bool           `json:"success"`
	ID             uuid.UUID      `json:"id"`
	SuggestionType SuggestionType `json:"suggestion_type"`
	CanonicalID    *uuid.UUID     `json:"canonical_id,omitempty"`
	Materialized   bool           `json:"materialized"`
}

// RevertResult - результат отката канонической записи в подсказки.
type RevertResult struct {
	Success       bool        `json:"success"`
	SuggestionIDs []uuid.UUID `json:"suggestion_ids"`
}
