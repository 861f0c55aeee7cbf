package service

import (
	"context"
	"encoding/json"
	"testing"

	extractionMocks "narrative-server/internal/extraction/mocks"
	messagingMocks "narrative-server/internal/messaging/mocks"
	"narrative-server/internal/models"
	"narrative-server/internal/repository/mocks"
	"narrative-server/internal/resolver"
	"narrative-server/pkg/database"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeTx выполняет функции сразу, без БД. tx внутри функций равен nil.
type fakeTx struct {
	transactions int
	savepoints   int
}

var _ database.TxManager = (*fakeTx)(nil)

func (f *fakeTx) WithTransaction(ctx context.Context, fn database.TxFunc) error {
	f.transactions++
	return fn(ctx, nil)
}

func (f *fakeTx) WithSavepoint(ctx context.Context, tx database.DBTX, fn database.TxFunc) error {
	f.savepoints++
	return fn(ctx, tx)
}

// Mock ProgressService
type mockProgress struct {
	mock.Mock
}

func (m *mockProgress) AwardXP(ctx context.Context, userID uuid.UUID, amount int, reason string) (*models.XPAward, error) {
	args := m.Called(ctx, userID, amount, reason)
	award, _ := args.Get(0).(*models.XPAward)
	return award, args.Error(1)
}

func (m *mockProgress) GetProgress(ctx context.Context, userID uuid.UUID) (*models.UserProgress, error) {
	args := m.Called(ctx, userID)
	p, _ := args.Get(0).(*models.UserProgress)
	return p, args.Error(1)
}

type testEnv struct {
	userID  uuid.UUID
	storyID uuid.UUID

	tx          *fakeTx
	stories     *mocks.StoryRepository
	narrations  *mocks.NarrationRepository
	elements    *mocks.ElementRepository
	mentions    *mocks.MentionRepository
	moments     *mocks.MomentRepository
	connections *mocks.ConnectionRepository
	suggestions *mocks.SuggestionRepository
	progressRep *mocks.ProgressRepository
	extractor   *extractionMocks.Extractor
	publisher   *messagingMocks.StoryUpdatePublisher
	progress    *mockProgress
}

func newTestEnv() *testEnv {
	return &testEnv{
		userID:      uuid.New(),
		storyID:     uuid.New(),
		tx:          &fakeTx{},
		stories:     new(mocks.StoryRepository),
		narrations:  new(mocks.NarrationRepository),
		elements:    new(mocks.ElementRepository),
		mentions:    new(mocks.MentionRepository),
		moments:     new(mocks.MomentRepository),
		connections: new(mocks.ConnectionRepository),
		suggestions: new(mocks.SuggestionRepository),
		progressRep: new(mocks.ProgressRepository),
		extractor:   new(extractionMocks.Extractor),
		publisher:   new(messagingMocks.StoryUpdatePublisher),
		progress:    new(mockProgress),
	}
}

func (e *testEnv) resolver() *resolver.Service {
	return resolver.NewService(e.elements, zap.NewNop())
}

func (e *testEnv) narrationService() NarrationService {
	return NewNarrationService(NarrationDeps{
		Tx:         e.tx,
		Stories:    e.stories,
		Narrations: e.narrations,
		Moments:    e.moments,
		Resolver:   e.resolver(),
		Extractor:  e.extractor,
		Stager:     NewStager(e.tx, e.suggestions, zap.NewNop()),
		Progress:   e.progress,
		Publisher:  e.publisher,
	}, zap.NewNop())
}

func (e *testEnv) suggestionService() SuggestionService {
	return NewSuggestionService(SuggestionDeps{
		Tx:          e.tx,
		Stories:     e.stories,
		Narrations:  e.narrations,
		Suggestions: e.suggestions,
		Elements:    e.elements,
		Mentions:    e.mentions,
		Moments:     e.moments,
		Connections: e.connections,
		Resolver:    e.resolver(),
		Progress:    e.progress,
		Publisher:   e.publisher,
	}, zap.NewNop())
}

func (e *testEnv) worldService() WorldService {
	return NewWorldService(WorldDeps{
		Tx:          e.tx,
		Stories:     e.stories,
		Elements:    e.elements,
		Mentions:    e.mentions,
		Moments:     e.moments,
		Connections: e.connections,
		Extractor:   e.extractor,
	}, zap.NewNop())
}

func (e *testEnv) expectOwnedStory() {
	e.stories.On("GetByIDForUser", mock.Anything, mock.Anything, e.storyID, e.userID).
		Return(&models.Story{ID: e.storyID, UserID: e.userID, Title: "Mill"}, nil)
}

func (e *testEnv) expectForeignStory() {
	e.stories.On("GetByIDForUser", mock.Anything, mock.Anything, e.storyID, e.userID).
		Return(nil, models.ErrNotFound)
}

func (e *testEnv) expectRefs(refs ...models.ElementRef) {
	if refs == nil {
		refs = []models.ElementRef{}
	}
	e.elements.On("ListRefs", mock.Anything, mock.Anything, e.storyID).Return(refs, nil)
}

func (e *testEnv) expectPublish(t models.StoryUpdateType) {
	e.publisher.On("PublishStoryUpdate", mock.Anything, mock.MatchedBy(func(u models.StoryUpdate) bool {
		return u.Type == t && u.StoryID == e.storyID && u.UserID == e.userID
	})).Return(nil).Once()
}

func (e *testEnv) assertExpectations(t *testing.T) {
	t.Helper()
	mock.AssertExpectationsForObjects(t,
		e.stories, e.narrations, e.elements, e.mentions, e.moments,
		e.connections, e.suggestions, e.progressRep, e.extractor, e.publisher, e.progress,
	)
}

// pendingSuggestion собирает pending подсказку с данными payload.
func (e *testEnv) pendingSuggestion(t *testing.T, payload models.SuggestionPayload) *models.AiSuggestion {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return &models.AiSuggestion{
		ID:             uuid.New(),
		StoryID:        e.storyID,
		NarrationID:    uuid.New(),
		SuggestionType: payload.SuggestionType(),
		SuggestedData:  data,
		Status:         models.SuggestionStatusPending,
	}
}

func floatPtr(v float64) *float64 { return &v }
func intPtr(v int) *int           { return &v }
