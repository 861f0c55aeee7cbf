package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"narrative-server/internal/extraction"
	"narrative-server/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const millNarration = "Mira meets Jon at the old mill"

func millExtraction() *models.ExtractionResult {
	return &models.ExtractionResult{
		Characters: []models.ExtractedEntity{
			{Name: "Mira", MentionPhrase: "Mira meets Jon"},
			{Name: "Jon", Confidence: floatPtr(0.9)},
		},
		Locations: []models.ExtractedEntity{
			{Name: "old mill", Attributes: models.ElementAttributes{Type: "building"}},
		},
		Connections: []models.ExtractedConnection{
			{From: "Mira", To: "Jon", Type: "meets"},
		},
	}
}

func (e *testEnv) expectNarrationContext(refs ...models.ElementRef) {
	e.expectOwnedStory()
	e.expectRefs(refs...)
	e.moments.On("ListRecent", mock.Anything, mock.Anything, e.storyID, recentEventsLimit).
		Return([]models.EventSummary{}, nil)
}

func (e *testEnv) expectNarrationInsert(seq int, narrationID uuid.UUID, check func(n *models.RawNarration)) {
	e.narrations.On("LockStory", mock.Anything, mock.Anything, e.storyID).Return(nil).Once()
	e.narrations.On("NextSequenceNumber", mock.Anything, mock.Anything, e.storyID).Return(seq, nil).Once()
	e.narrations.On("Create", mock.Anything, mock.Anything, mock.AnythingOfType("*models.RawNarration")).
		Run(func(args mock.Arguments) {
			n := args.Get(2).(*models.RawNarration)
			n.ID = narrationID
			if check != nil {
				check(n)
			}
		}).
		Return(nil).Once()
}

func TestAddNarration_StagesSuggestions(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	narrationID := uuid.New()
	raw := json.RawMessage(`{"characters":[{"name":"Mira"},{"name":"Jon"}]}`)

	env.expectNarrationContext()
	env.extractor.On("Extract", mock.Anything, millNarration, extraction.Context{
		Entities:     []string{},
		RecentEvents: []models.EventSummary{},
	}).Return(millExtraction(), raw, nil).Once()
	env.extractor.On("ListenerResponse", mock.Anything, millNarration, []models.EventSummary{}).
		Return("Two paths cross at the mill.").Once()

	env.expectNarrationInsert(0, narrationID, func(n *models.RawNarration) {
		assert.Equal(t, 0, n.SequenceNumber)
		assert.JSONEq(t, string(raw), string(n.Extracted))
		assert.Equal(t, "Two paths cross at the mill.", n.ListenerResponse)
	})
	env.suggestions.On("CreateBatch", mock.Anything, mock.Anything, mock.MatchedBy(func(s []models.AiSuggestion) bool {
		if len(s) != 4 {
			return false
		}
		want := []models.SuggestionType{
			models.SuggestionTypeElement, models.SuggestionTypeElement,
			models.SuggestionTypeElement, models.SuggestionTypeConnection,
		}
		for i := range s {
			if s[i].SuggestionType != want[i] || s[i].NarrationID != narrationID || s[i].Status != models.SuggestionStatusPending {
				return false
			}
		}
		return true
	})).Return(nil).Once()
	env.progress.On("AwardXP", mock.Anything, env.userID, models.XPForNarration, models.ReasonNarration).
		Return(&models.XPAward{NewXP: 10, NewLevel: 1}, nil).Once()
	env.expectPublish(models.UpdateNarrationCreated)

	result, err := env.narrationService().AddNarration(ctx, env.userID, env.storyID, "  "+millNarration+"  ")
	require.NoError(t, err)
	assert.Equal(t, models.NarrationStatusSuggestionsPending, result.Status)
	assert.Equal(t, 4, result.Staged)
	assert.Equal(t, narrationID, result.Narration.ID)
	assert.Equal(t, "Two paths cross at the mill.", result.ListenerResponse)
	require.NotNil(t, result.Extracted)
	assert.Len(t, result.Extracted.Characters, 2)
	assert.Equal(t, 1, env.tx.transactions)
	assert.Equal(t, 1, env.tx.savepoints)
	env.assertExpectations(t)
}

func TestAddNarration_ExtractionFailureStoresRaw(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()

	env.expectNarrationContext()
	env.extractor.On("Extract", mock.Anything, "text", mock.Anything).
		Return(nil, nil, fmt.Errorf("%w: timeout", models.ErrExtractionFailed)).Once()
	env.extractor.On("ListenerResponse", mock.Anything, "text", mock.Anything).Return("Nice.").Once()
	env.expectNarrationInsert(3, uuid.New(), func(n *models.RawNarration) {
		assert.Empty(t, n.Extracted)
		assert.Equal(t, 3, n.SequenceNumber)
	})
	env.progress.On("AwardXP", mock.Anything, env.userID, models.XPForNarration, models.ReasonNarration).
		Return(nil, errors.New("db down")).Once()
	env.expectPublish(models.UpdateNarrationCreated)

	result, err := env.narrationService().AddNarration(ctx, env.userID, env.storyID, "text")
	require.NoError(t, err, "XP failure must not fail the request")
	assert.Equal(t, models.NarrationStatusRaw, result.Status)
	assert.Nil(t, result.Extracted)
	assert.Equal(t, models.DefaultListenerResponse, result.ListenerResponse)
	assert.Zero(t, result.Staged)
	env.suggestions.AssertNotCalled(t, "CreateBatch", mock.Anything, mock.Anything, mock.Anything)
	assert.Zero(t, env.tx.savepoints)
	env.assertExpectations(t)
}

func TestAddNarration_UnexpectedExtractorErrorAborts(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	boom := errors.New("prompt template missing")

	env.expectNarrationContext()
	env.extractor.On("Extract", mock.Anything, "text", mock.Anything).Return(nil, nil, boom).Once()
	env.extractor.On("ListenerResponse", mock.Anything, "text", mock.Anything).Return("Nice.").Maybe()

	result, err := env.narrationService().AddNarration(ctx, env.userID, env.storyID, "text")
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, models.ErrExtractionFailed)
	assert.Nil(t, result)
	assert.Zero(t, env.tx.transactions)
	env.narrations.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
	env.progress.AssertNotCalled(t, "AwardXP", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	env.publisher.AssertNotCalled(t, "PublishStoryUpdate", mock.Anything, mock.Anything)
}

func TestAddNarration_StagingFailureKeepsNarration(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()

	env.expectNarrationContext()
	env.extractor.On("Extract", mock.Anything, millNarration, mock.Anything).
		Return(millExtraction(), json.RawMessage(`{}`), nil).Once()
	env.extractor.On("ListenerResponse", mock.Anything, millNarration, mock.Anything).Return("ok").Once()
	env.expectNarrationInsert(1, uuid.New(), nil)
	env.suggestions.On("CreateBatch", mock.Anything, mock.Anything, mock.Anything).
		Return(errors.New("check constraint violated")).Once()
	env.progress.On("AwardXP", mock.Anything, env.userID, mock.Anything, mock.Anything).Return(&models.XPAward{}, nil).Once()
	env.publisher.On("PublishStoryUpdate", mock.Anything, mock.Anything).Return(errors.New("broker down")).Once()

	result, err := env.narrationService().AddNarration(ctx, env.userID, env.storyID, millNarration)
	require.NoError(t, err)
	assert.Equal(t, models.NarrationStatusSuggestionsPending, result.Status)
	assert.Zero(t, result.Staged)
	env.assertExpectations(t)
}

func TestAddNarration_UsesExistingNamesAsContext(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	miraID := uuid.New()

	env.expectNarrationContext(models.ElementRef{ID: miraID, Name: "Mira", ElementType: models.ElementTypeCharacter})
	env.extractor.On("Extract", mock.Anything, "Mira returns", mock.MatchedBy(func(c extraction.Context) bool {
		return len(c.Entities) == 1 && c.Entities[0] == "Mira"
	})).Return(&models.ExtractionResult{
		Connections: []models.ExtractedConnection{{From: "mira", To: "Stranger", Type: "fears"}},
	}, json.RawMessage(`{}`), nil).Once()
	env.extractor.On("ListenerResponse", mock.Anything, "Mira returns", mock.Anything).Return("ok").Once()
	env.expectNarrationInsert(2, uuid.New(), nil)
	env.suggestions.On("CreateBatch", mock.Anything, mock.Anything, mock.MatchedBy(func(s []models.AiSuggestion) bool {
		if len(s) != 1 {
			return false
		}
		var c models.ConnectionSuggestion
		if err := json.Unmarshal(s[0].SuggestedData, &c); err != nil {
			return false
		}
		return c.FromID != nil && *c.FromID == miraID && c.ToID == nil
	})).Return(nil).Once()
	env.progress.On("AwardXP", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(&models.XPAward{}, nil)
	env.expectPublish(models.UpdateNarrationCreated)

	result, err := env.narrationService().AddNarration(ctx, env.userID, env.storyID, "Mira returns")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Staged)
	env.assertExpectations(t)
}

func TestAddNarration_Validation(t *testing.T) {
	ctx := context.Background()

	t.Run("empty content", func(t *testing.T) {
		env := newTestEnv()
		_, err := env.narrationService().AddNarration(ctx, env.userID, env.storyID, "   ")
		assert.ErrorIs(t, err, models.ErrInvalidInput)
		env.stories.AssertNotCalled(t, "GetByIDForUser", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("foreign story", func(t *testing.T) {
		env := newTestEnv()
		env.expectForeignStory()
		_, err := env.narrationService().AddNarration(ctx, env.userID, env.storyID, "text")
		assert.ErrorIs(t, err, models.ErrNotFound)
		env.extractor.AssertNotCalled(t, "Extract", mock.Anything, mock.Anything, mock.Anything)
		env.narrations.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestListNarrations(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	env.expectOwnedStory()
	env.narrations.On("ListByStory", mock.Anything, mock.Anything, env.storyID).Return([]models.RawNarration{
		{SequenceNumber: 0}, {SequenceNumber: 1},
	}, nil).Once()

	list, err := env.narrationService().ListNarrations(ctx, env.userID, env.storyID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Less(t, list[0].SequenceNumber, list[1].SequenceNumber)
}
