package mocks

import (
	"context"
	"encoding/json"

	"narrative-server/internal/models"
	"narrative-server/internal/service"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

var (
	_ service.StoryService      = (*StoryService)(nil)
	_ service.NarrationService  = (*NarrationService)(nil)
	_ service.SuggestionService = (*SuggestionService)(nil)
	_ service.WorldService      = (*WorldService)(nil)
	_ service.ProgressService   = (*ProgressService)(nil)
)

// Mock StoryService
type StoryService struct {
	mock.Mock
}

func (m *StoryService) CreateStory(ctx context.Context, userID uuid.UUID, title, description *string) (*models.Story, error) {
	args := m.Called(ctx, userID, title, description)
	story, _ := args.Get(0).(*models.Story)
	return story, args.Error(1)
}
func (m *StoryService) ListStories(ctx context.Context, userID uuid.UUID) ([]models.Story, error) {
	args := m.Called(ctx, userID)
	stories, _ := args.Get(0).([]models.Story)
	return stories, args.Error(1)
}
func (m *StoryService) GetStory(ctx context.Context, userID, storyID uuid.UUID) (*models.Story, error) {
	args := m.Called(ctx, userID, storyID)
	story, _ := args.Get(0).(*models.Story)
	return story, args.Error(1)
}
func (m *StoryService) UpdateStory(ctx context.Context, userID, storyID uuid.UUID, patch models.StoryPatch) (*models.Story, error) {
	args := m.Called(ctx, userID, storyID, patch)
	story, _ := args.Get(0).(*models.Story)
	return story, args.Error(1)
}
func (m *StoryService) DeleteStory(ctx context.Context, userID, storyID uuid.UUID) error {
	return m.Called(ctx, userID, storyID).Error(0)
}

// Mock NarrationService
type NarrationService struct {
	mock.Mock
}

func (m *NarrationService) AddNarration(ctx context.Context, userID, storyID uuid.UUID, content string) (*models.NarrationResult, error) {
	args := m.Called(ctx, userID, storyID, content)
	result, _ := args.Get(0).(*models.NarrationResult)
	return result, args.Error(1)
}
func (m *NarrationService) ListNarrations(ctx context.Context, userID, storyID uuid.UUID) ([]models.RawNarration, error) {
	args := m.Called(ctx, userID, storyID)
	narrations, _ := args.Get(0).([]models.RawNarration)
	return narrations, args.Error(1)
}

// Mock SuggestionService
type SuggestionService struct {
	mock.Mock
}

func (m *SuggestionService) ListPending(ctx context.Context, userID, storyID uuid.UUID) ([]models.PendingSuggestion, error) {
	args := m.Called(ctx, userID, storyID)
	pending, _ := args.Get(0).([]models.PendingSuggestion)
	return pending, args.Error(1)
}
func (m *SuggestionService) UpdateSuggestion(ctx context.Context, userID, suggestionID uuid.UUID, payload json.RawMessage) (*models.AiSuggestion, error) {
	args := m.Called(ctx, userID, suggestionID, payload)
	suggestion, _ := args.Get(0).(*models.AiSuggestion)
	return suggestion, args.Error(1)
}
func (m *SuggestionService) Confirm(ctx context.Context, userID, suggestionID uuid.UUID) (*models.ConfirmResult, error) {
	args := m.Called(ctx, userID, suggestionID)
	result, _ := args.Get(0).(*models.ConfirmResult)
	return result, args.Error(1)
}
func (m *SuggestionService) Reject(ctx context.Context, userID, suggestionID uuid.UUID) error {
	return m.Called(ctx, userID, suggestionID).Error(0)
}
func (m *SuggestionService) RevertElement(ctx context.Context, userID, elementID uuid.UUID) (*models.RevertResult, error) {
	args := m.Called(ctx, userID, elementID)
	result, _ := args.Get(0).(*models.RevertResult)
	return result, args.Error(1)
}
func (m *SuggestionService) RevertMoment(ctx context.Context, userID, momentID uuid.UUID) (*models.RevertResult, error) {
	args := m.Called(ctx, userID, momentID)
	result, _ := args.Get(0).(*models.RevertResult)
	return result, args.Error(1)
}

// Mock WorldService
type WorldService struct {
	mock.Mock
}

func (m *WorldService) Elements(ctx context.Context, userID, storyID uuid.UUID) ([]models.NarrativeElement, error) {
	args := m.Called(ctx, userID, storyID)
	elements, _ := args.Get(0).([]models.NarrativeElement)
	return elements, args.Error(1)
}
func (m *WorldService) Timeline(ctx context.Context, userID, storyID uuid.UUID) ([]models.StoryMoment, error) {
	args := m.Called(ctx, userID, storyID)
	moments, _ := args.Get(0).([]models.StoryMoment)
	return moments, args.Error(1)
}
func (m *WorldService) Connections(ctx context.Context, userID, storyID uuid.UUID) ([]models.NarrativeConnection, error) {
	args := m.Called(ctx, userID, storyID)
	connections, _ := args.Get(0).([]models.NarrativeConnection)
	return connections, args.Error(1)
}
func (m *WorldService) Mentions(ctx context.Context, userID, storyID uuid.UUID) ([]models.EntityMention, error) {
	args := m.Called(ctx, userID, storyID)
	mentions, _ := args.Get(0).([]models.EntityMention)
	return mentions, args.Error(1)
}
func (m *WorldService) Snapshot(ctx context.Context, userID, storyID uuid.UUID) (*models.WorldBible, error) {
	args := m.Called(ctx, userID, storyID)
	bible, _ := args.Get(0).(*models.WorldBible)
	return bible, args.Error(1)
}
func (m *WorldService) Dossier(ctx context.Context, userID, storyID, elementID uuid.UUID) (*models.Dossier, error) {
	args := m.Called(ctx, userID, storyID, elementID)
	dossier, _ := args.Get(0).(*models.Dossier)
	return dossier, args.Error(1)
}
func (m *WorldService) UpdateElement(ctx context.Context, userID, storyID, elementID uuid.UUID, patch models.ElementPatch) (*models.NarrativeElement, error) {
	args := m.Called(ctx, userID, storyID, elementID, patch)
	element, _ := args.Get(0).(*models.NarrativeElement)
	return element, args.Error(1)
}
func (m *WorldService) DeleteElement(ctx context.Context, userID, storyID, elementID uuid.UUID) error {
	return m.Called(ctx, userID, storyID, elementID).Error(0)
}
func (m *WorldService) UpdateMoment(ctx context.Context, userID, storyID, momentID uuid.UUID, patch models.MomentPatch) (*models.StoryMoment, error) {
	args := m.Called(ctx, userID, storyID, momentID, patch)
	moment, _ := args.Get(0).(*models.StoryMoment)
	return moment, args.Error(1)
}
func (m *WorldService) DeleteMoment(ctx context.Context, userID, storyID, momentID uuid.UUID) error {
	return m.Called(ctx, userID, storyID, momentID).Error(0)
}
func (m *WorldService) Brainstorm(ctx context.Context, userID, storyID uuid.UUID) ([]models.ThemeOption, error) {
	args := m.Called(ctx, userID, storyID)
	options, _ := args.Get(0).([]models.ThemeOption)
	return options, args.Error(1)
}
func (m *WorldService) InterviewCharacter(ctx context.Context, userID, storyID, elementID uuid.UUID, prompt string) (*models.InterviewResult, error) {
	args := m.Called(ctx, userID, storyID, elementID, prompt)
	result, _ := args.Get(0).(*models.InterviewResult)
	return result, args.Error(1)
}

// Mock ProgressService
type ProgressService struct {
	mock.Mock
}

func (m *ProgressService) AwardXP(ctx context.Context, userID uuid.UUID, amount int, reason string) (*models.XPAward, error) {
	args := m.Called(ctx, userID, amount, reason)
	award, _ := args.Get(0).(*models.XPAward)
	return award, args.Error(1)
}
func (m *ProgressService) GetProgress(ctx context.Context, userID uuid.UUID) (*models.UserProgress, error) {
	args := m.Called(ctx, userID)
	progress, _ := args.Get(0).(*models.UserProgress)
	return progress, args.Error(1)
}
