package mocks

import (
	"context"
	"encoding/json"

	"narrative-server/internal/models"
	"narrative-server/internal/repository"
	"narrative-server/pkg/database"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

var (
	_ repository.StoryRepository      = (*StoryRepository)(nil)
	_ repository.NarrationRepository  = (*NarrationRepository)(nil)
	_ repository.ElementRepository    = (*ElementRepository)(nil)
	_ repository.MentionRepository    = (*MentionRepository)(nil)
	_ repository.MomentRepository     = (*MomentRepository)(nil)
	_ repository.ConnectionRepository = (*ConnectionRepository)(nil)
	_ repository.SuggestionRepository = (*SuggestionRepository)(nil)
	_ repository.ProgressRepository   = (*ProgressRepository)(nil)
)

// Mock StoryRepository
type StoryRepository struct {
	mock.Mock
}

func (m *StoryRepository) Create(ctx context.Context, q database.DBTX, story *models.Story) error {
	args := m.Called(ctx, q, story)
	return args.Error(0)
}
func (m *StoryRepository) GetByIDForUser(ctx context.Context, q database.DBTX, id, userID uuid.UUID) (*models.Story, error) {
	args := m.Called(ctx, q, id, userID)
	story, _ := args.Get(0).(*models.Story)
	return story, args.Error(1)
}
func (m *StoryRepository) ListByUser(ctx context.Context, q database.DBTX, userID uuid.UUID) ([]models.Story, error) {
	args := m.Called(ctx, q, userID)
	stories, _ := args.Get(0).([]models.Story)
	return stories, args.Error(1)
}
func (m *StoryRepository) Update(ctx context.Context, q database.DBTX, id, userID uuid.UUID, patch models.StoryPatch) (*models.Story, error) {
	args := m.Called(ctx, q, id, userID, patch)
	story, _ := args.Get(0).(*models.Story)
	return story, args.Error(1)
}
func (m *StoryRepository) Delete(ctx context.Context, q database.DBTX, id, userID uuid.UUID) error {
	args := m.Called(ctx, q, id, userID)
	return args.Error(0)
}

// Mock NarrationRepository
type NarrationRepository struct {
	mock.Mock
}

func (m *NarrationRepository) LockStory(ctx context.Context, q database.DBTX, storyID uuid.UUID) error {
	args := m.Called(ctx, q, storyID)
	return args.Error(0)
}
func (m *NarrationRepository) NextSequenceNumber(ctx context.Context, q database.DBTX, storyID uuid.UUID) (int, error) {
	args := m.Called(ctx, q, storyID)
	return args.Int(0), args.Error(1)
}
func (m *NarrationRepository) Create(ctx context.Context, q database.DBTX, narration *models.RawNarration) error {
	args := m.Called(ctx, q, narration)
	return args.Error(0)
}
func (m *NarrationRepository) GetByID(ctx context.Context, q database.DBTX, id uuid.UUID) (*models.RawNarration, error) {
	args := m.Called(ctx, q, id)
	n, _ := args.Get(0).(*models.RawNarration)
	return n, args.Error(1)
}
func (m *NarrationRepository) ListByStory(ctx context.Context, q database.DBTX, storyID uuid.UUID) ([]models.RawNarration, error) {
	args := m.Called(ctx, q, storyID)
	list, _ := args.Get(0).([]models.RawNarration)
	return list, args.Error(1)
}

// Mock ElementRepository
type ElementRepository struct {
	mock.Mock
}

func (m *ElementRepository) ListRefs(ctx context.Context, q database.DBTX, storyID uuid.UUID) ([]models.ElementRef, error) {
	args := m.Called(ctx, q, storyID)
	refs, _ := args.Get(0).([]models.ElementRef)
	return refs, args.Error(1)
}
func (m *ElementRepository) ListByStory(ctx context.Context, q database.DBTX, storyID uuid.UUID) ([]models.NarrativeElement, error) {
	args := m.Called(ctx, q, storyID)
	list, _ := args.Get(0).([]models.NarrativeElement)
	return list, args.Error(1)
}
func (m *ElementRepository) GetByID(ctx context.Context, q database.DBTX, id uuid.UUID) (*models.NarrativeElement, error) {
	args := m.Called(ctx, q, id)
	el, _ := args.Get(0).(*models.NarrativeElement)
	return el, args.Error(1)
}
func (m *ElementRepository) Upsert(ctx context.Context, q database.DBTX, element *models.NarrativeElement) (bool, error) {
	args := m.Called(ctx, q, element)
	return args.Bool(0), args.Error(1)
}
func (m *ElementRepository) TouchLastMentioned(ctx context.Context, q database.DBTX, id, narrationID uuid.UUID) error {
	args := m.Called(ctx, q, id, narrationID)
	return args.Error(0)
}
func (m *ElementRepository) Update(ctx context.Context, q database.DBTX, storyID, id uuid.UUID, patch models.ElementPatch) (*models.NarrativeElement, error) {
	args := m.Called(ctx, q, storyID, id, patch)
	el, _ := args.Get(0).(*models.NarrativeElement)
	return el, args.Error(1)
}
func (m *ElementRepository) Delete(ctx context.Context, q database.DBTX, storyID, id uuid.UUID) error {
	args := m.Called(ctx, q, storyID, id)
	return args.Error(0)
}

// Mock MentionRepository
type MentionRepository struct {
	mock.Mock
}

func (m *MentionRepository) Create(ctx context.Context, q database.DBTX, mention *models.EntityMention) error {
	args := m.Called(ctx, q, mention)
	return args.Error(0)
}
func (m *MentionRepository) ListByStory(ctx context.Context, q database.DBTX, storyID uuid.UUID) ([]models.EntityMention, error) {
	args := m.Called(ctx, q, storyID)
	list, _ := args.Get(0).([]models.EntityMention)
	return list, args.Error(1)
}
func (m *MentionRepository) ListByElement(ctx context.Context, q database.DBTX, elementID uuid.UUID) ([]models.EntityMention, error) {
	args := m.Called(ctx, q, elementID)
	list, _ := args.Get(0).([]models.EntityMention)
	return list, args.Error(1)
}
func (m *MentionRepository) DeleteByElement(ctx context.Context, q database.DBTX, elementID uuid.UUID) ([]uuid.UUID, error) {
	args := m.Called(ctx, q, elementID)
	ids, _ := args.Get(0).([]uuid.UUID)
	return ids, args.Error(1)
}

// Mock MomentRepository
type MomentRepository struct {
	mock.Mock
}

func (m *MomentRepository) Create(ctx context.Context, q database.DBTX, moment *models.StoryMoment) error {
	args := m.Called(ctx, q, moment)
	return args.Error(0)
}
func (m *MomentRepository) GetByID(ctx context.Context, q database.DBTX, id uuid.UUID) (*models.StoryMoment, error) {
	args := m.Called(ctx, q, id)
	moment, _ := args.Get(0).(*models.StoryMoment)
	return moment, args.Error(1)
}
func (m *MomentRepository) ListByStory(ctx context.Context, q database.DBTX, storyID uuid.UUID) ([]models.StoryMoment, error) {
	args := m.Called(ctx, q, storyID)
	list, _ := args.Get(0).([]models.StoryMoment)
	return list, args.Error(1)
}
func (m *MomentRepository) ListRecent(ctx context.Context, q database.DBTX, storyID uuid.UUID, limit int) ([]models.EventSummary, error) {
	args := m.Called(ctx, q, storyID, limit)
	list, _ := args.Get(0).([]models.EventSummary)
	return list, args.Error(1)
}
func (m *MomentRepository) Update(ctx context.Context, q database.DBTX, storyID, id uuid.UUID, patch models.MomentPatch) (*models.StoryMoment, error) {
	args := m.Called(ctx, q, storyID, id, patch)
	moment, _ := args.Get(0).(*models.StoryMoment)
	return moment, args.Error(1)
}
func (m *MomentRepository) Delete(ctx context.Context, q database.DBTX, storyID, id uuid.UUID) error {
	args := m.Called(ctx, q, storyID, id)
	return args.Error(0)
}
func (m *MomentRepository) RemoveCharacter(ctx context.Context, q database.DBTX, storyID, elementID uuid.UUID) error {
	args := m.Called(ctx, q, storyID, elementID)
	return args.Error(0)
}

// Mock ConnectionRepository
type ConnectionRepository struct {
	mock.Mock
}

func (m *ConnectionRepository) Create(ctx context.Context, q database.DBTX, c *models.NarrativeConnection) error {
	args := m.Called(ctx, q, c)
	return args.Error(0)
}
func (m *ConnectionRepository) ListByStory(ctx context.Context, q database.DBTX, storyID uuid.UUID) ([]models.NarrativeConnection, error) {
	args := m.Called(ctx, q, storyID)
	list, _ := args.Get(0).([]models.NarrativeConnection)
	return list, args.Error(1)
}
func (m *ConnectionRepository) ListByElement(ctx context.Context, q database.DBTX, elementID uuid.UUID) ([]models.NarrativeConnection, error) {
	args := m.Called(ctx, q, elementID)
	list, _ := args.Get(0).([]models.NarrativeConnection)
	return list, args.Error(1)
}
func (m *ConnectionRepository) DeleteByElement(ctx context.Context, q database.DBTX, elementID uuid.UUID) ([]uuid.UUID, error) {
	args := m.Called(ctx, q, elementID)
	ids, _ := args.Get(0).([]uuid.UUID)
	return ids, args.Error(1)
}

// Mock SuggestionRepository
type SuggestionRepository struct {
	mock.Mock
}

func (m *SuggestionRepository) CreateBatch(ctx context.Context, q database.DBTX, suggestions []models.AiSuggestion) error {
	args := m.Called(ctx, q, suggestions)
	return args.Error(0)
}
func (m *SuggestionRepository) GetByID(ctx context.Context, q database.DBTX, id uuid.UUID) (*models.AiSuggestion, error) {
	args := m.Called(ctx, q, id)
	s, _ := args.Get(0).(*models.AiSuggestion)
	return s, args.Error(1)
}
func (m *SuggestionRepository) GetForUpdate(ctx context.Context, q database.DBTX, id uuid.UUID) (*models.AiSuggestion, error) {
	args := m.Called(ctx, q, id)
	s, _ := args.Get(0).(*models.AiSuggestion)
	return s, args.Error(1)
}
func (m *SuggestionRepository) ListPendingByStory(ctx context.Context, q database.DBTX, storyID uuid.UUID) ([]models.PendingSuggestion, error) {
	args := m.Called(ctx, q, storyID)
	list, _ := args.Get(0).([]models.PendingSuggestion)
	return list, args.Error(1)
}
func (m *SuggestionRepository) UpdateData(ctx context.Context, q database.DBTX, id uuid.UUID, data json.RawMessage) (*models.AiSuggestion, error) {
	args := m.Called(ctx, q, id, data)
	s, _ := args.Get(0).(*models.AiSuggestion)
	return s, args.Error(1)
}
func (m *SuggestionRepository) UpdateStatus(ctx context.Context, q database.DBTX, id uuid.UUID, status models.SuggestionStatus) error {
	args := m.Called(ctx, q, id, status)
	return args.Error(0)
}
func (m *SuggestionRepository) ResetToPending(ctx context.Context, q database.DBTX, ids []uuid.UUID) ([]uuid.UUID, error) {
	args := m.Called(ctx, q, ids)
	reset, _ := args.Get(0).([]uuid.UUID)
	return reset, args.Error(1)
}

// Mock ProgressRepository
type ProgressRepository struct {
	mock.Mock
}

func (m *ProgressRepository) GetForUpdate(ctx context.Context, q database.DBTX, userID uuid.UUID) (*models.UserProgress, error) {
	args := m.Called(ctx, q, userID)
	p, _ := args.Get(0).(*models.UserProgress)
	return p, args.Error(1)
}
func (m *ProgressRepository) Get(ctx context.Context, q database.DBTX, userID uuid.UUID) (*models.UserProgress, error) {
	args := m.Called(ctx, q, userID)
	p, _ := args.Get(0).(*models.UserProgress)
	return p, args.Error(1)
}
func (m *ProgressRepository) Save(ctx context.Context, q database.DBTX, progress *models.UserProgress) error {
	args := m.Called(ctx, q, progress)
	return args.Error(0)
}
func (m *ProgressRepository) AppendLedger(ctx context.Context, q database.DBTX, userID uuid.UUID, amount int, reason string) error {
	args := m.Called(ctx, q, userID, amount, reason)
	return args.Error(0)
}
