package mocks

import (
	"context"
	"encoding/json"

	"narrative-server/internal/extraction"
	"narrative-server/internal/models"

	"github.com/stretchr/testify/mock"
)

var _ extraction.Extractor = (*Extractor)(nil)

// Mock Extractor
type Extractor struct {
	mock.Mock
}

func (m *Extractor) Extract(ctx context.Context, narration string, c extraction.Context) (*models.ExtractionResult, json.RawMessage, error) {
	args := m.Called(ctx, narration, c)
	result, _ := args.Get(0).(*models.ExtractionResult)
	raw, _ := args.Get(1).(json.RawMessage)
	return result, raw, args.Error(2)
}
func (m *Extractor) ListenerResponse(ctx context.Context, narration string, recent []models.EventSummary) string {
	args := m.Called(ctx, narration, recent)
	return args.String(0)
}
func (m *Extractor) Brainstorm(ctx context.Context, entities []string, moments []models.EventSummary) []models.ThemeOption {
	args := m.Called(ctx, entities, moments)
	options, _ := args.Get(0).([]models.ThemeOption)
	return options
}
func (m *Extractor) Dialogue(ctx context.Context, characterName string, attributes models.ElementAttributes, prompt string, moments []models.EventSummary) string {
	args := m.Called(ctx, characterName, attributes, prompt, moments)
	return args.String(0)
}
