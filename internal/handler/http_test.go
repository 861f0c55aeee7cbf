package handler_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"narrative-server/internal/handler"
	"narrative-server/internal/models"
	"narrative-server/internal/service/mocks"
	"narrative-server/pkg/middleware"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
)

type HandlerTestSuite struct {
	suite.Suite
	router      *gin.Engine
	stories     *mocks.StoryService
	narrations  *mocks.NarrationService
	suggestions *mocks.SuggestionService
	world       *mocks.WorldService
	progress    *mocks.ProgressService
	userID      uuid.UUID
}

func (s *HandlerTestSuite) SetupTest() {
	gin.SetMode(gin.TestMode)
	s.stories = new(mocks.StoryService)
	s.narrations = new(mocks.NarrationService)
	s.suggestions = new(mocks.SuggestionService)
	s.world = new(mocks.WorldService)
	s.progress = new(mocks.ProgressService)
	s.userID = uuid.New()

	// Аутентификация подменена: пользователь задается без JWT
	fakeAuth := func(c *gin.Context) {
		if c.GetHeader("Authorization") == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Unauthorized: Missing token"})
			return
		}
		middleware.SetUserID(c, s.userID)
		c.Next()
	}

	h := handler.NewNarrativeHandler(handler.Services{
		Stories:     s.stories,
		Narrations:  s.narrations,
		Suggestions: s.suggestions,
		World:       s.world,
		Progress:    s.progress,
	}, zap.NewNop())

	s.router = gin.New()
	h.RegisterRoutes(s.router, fakeAuth, nil)
}

func (s *HandlerTestSuite) TearDownTest() {
	s.stories.AssertExpectations(s.T())
	s.narrations.AssertExpectations(s.T())
	s.suggestions.AssertExpectations(s.T())
	s.world.AssertExpectations(s.T())
	s.progress.AssertExpectations(s.T())
}

func (s *HandlerTestSuite) do(method, path string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		require.NoError(s.T(), err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Authorization", "Bearer test")
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *HandlerTestSuite) TestCreateStoryWithoutBody() {
	s.stories.On("CreateStory", mock.Anything, s.userID, (*string)(nil), (*string)(nil)).
		Return(&models.Story{ID: uuid.New(), Title: models.DefaultStoryTitle}, nil).Once()

	w := s.do(http.MethodPost, "/stories", nil)
	s.Equal(http.StatusCreated, w.Code)
	s.Contains(w.Body.String(), models.DefaultStoryTitle)
}

func (s *HandlerTestSuite) TestGetStoryInvalidID() {
	w := s.do(http.MethodGet, "/stories/not-a-uuid", nil)
	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *HandlerTestSuite) TestForeignStoryIsNotFound() {
	storyID := uuid.New()
	s.stories.On("GetStory", mock.Anything, s.userID, storyID).Return(nil, fmt.Errorf("wrap: %w", models.ErrNotFound)).Once()

	w := s.do(http.MethodGet, "/stories/"+storyID.String(), nil)
	s.Equal(http.StatusNotFound, w.Code)

	var apiErr handler.APIError
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &apiErr))
	s.NotEmpty(apiErr.Message)
}

func (s *HandlerTestSuite) TestMissingTokenRejected() {
	req := httptest.NewRequest(http.MethodGet, "/stories", nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	s.Equal(http.StatusUnauthorized, w.Code)
}

func (s *HandlerTestSuite) TestAddNarration() {
	storyID := uuid.New()
	s.narrations.On("AddNarration", mock.Anything, s.userID, storyID, "Mira met Jon").
		Return(&models.NarrationResult{Status: models.NarrationStatusSuggestionsPending, Staged: 3, ListenerResponse: "Go on."}, nil).Once()

	w := s.do(http.MethodPost, "/stories/"+storyID.String()+"/narrations", map[string]string{"content": "Mira met Jon"})
	s.Equal(http.StatusCreated, w.Code)

	var result models.NarrationResult
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &result))
	s.Equal(3, result.Staged)
	s.Equal(models.NarrationStatusSuggestionsPending, result.Status)
}

func (s *HandlerTestSuite) TestAddNarrationRequiresContent() {
	w := s.do(http.MethodPost, "/stories/"+uuid.NewString()+"/narrations", map[string]string{})
	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *HandlerTestSuite) TestConfirmConflict() {
	id := uuid.New()
	s.suggestions.On("Confirm", mock.Anything, s.userID, id).Return(nil, models.ErrSuggestionNotPending).Once()

	w := s.do(http.MethodPost, "/suggestions/"+id.String()+"/confirm", nil)
	s.Equal(http.StatusConflict, w.Code)
}

func (s *HandlerTestSuite) TestRejectSuggestion() {
	id := uuid.New()
	s.suggestions.On("Reject", mock.Anything, s.userID, id).Return(nil).Once()

	w := s.do(http.MethodDelete, "/suggestions/"+id.String(), nil)
	s.Equal(http.StatusOK, w.Code)
	s.JSONEq(`{"success":true}`, w.Body.String())
}

func (s *HandlerTestSuite) TestUpdateSuggestionPassesRawBody() {
	id := uuid.New()
	body := `{"name":"Mira","element_type":"character"}`
	s.suggestions.On("UpdateSuggestion", mock.Anything, s.userID, id, mock.MatchedBy(func(raw json.RawMessage) bool {
		return string(raw) == body
	})).Return(&models.AiSuggestion{ID: id}, nil).Once()

	w := s.do(http.MethodPatch, "/suggestions/"+id.String(), body)
	s.Equal(http.StatusOK, w.Code)
}

func (s *HandlerTestSuite) TestUpdateSuggestionRejectsGarbage() {
	w := s.do(http.MethodPatch, "/suggestions/"+uuid.NewString(), "{not json")
	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *HandlerTestSuite) TestRevertManualElement() {
	id := uuid.New()
	s.suggestions.On("RevertElement", mock.Anything, s.userID, id).Return(nil, models.ErrNotRevertible).Once()

	w := s.do(http.MethodPost, "/suggestions/revert/element/"+id.String(), nil)
	s.Equal(http.StatusConflict, w.Code)
}

func (s *HandlerTestSuite) TestUpdateMomentValidatesWeight() {
	w := s.do(http.MethodPatch, fmt.Sprintf("/stories/%s/timeline/%s", uuid.New(), uuid.New()), map[string]int{"narrative_weight": 11})
	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *HandlerTestSuite) TestInterview() {
	storyID, characterID := uuid.New(), uuid.New()
	s.world.On("InterviewCharacter", mock.Anything, s.userID, storyID, characterID, "Why?").
		Return(&models.InterviewResult{CharacterID: characterID.String(), Response: "Because."}, nil).Once()

	w := s.do(http.MethodPost, fmt.Sprintf("/stories/%s/interview/%s", storyID, characterID), map[string]string{"prompt": "Why?"})
	s.Equal(http.StatusOK, w.Code)
	s.Contains(w.Body.String(), "Because.")
}

func (s *HandlerTestSuite) TestWorldSnapshotFailure() {
	storyID := uuid.New()
	s.world.On("Snapshot", mock.Anything, s.userID, storyID).Return(nil, errors.New("db down")).Once()

	w := s.do(http.MethodGet, "/stories/"+storyID.String()+"/world", nil)
	s.Equal(http.StatusInternalServerError, w.Code)
	s.JSONEq(`{"message":"Internal server error"}`, w.Body.String())
}

func (s *HandlerTestSuite) TestProgress() {
	s.progress.On("GetProgress", mock.Anything, s.userID).
		Return(&models.UserProgress{UserID: s.userID, XP: 150, Level: 1}, nil).Once()

	w := s.do(http.MethodGet, "/me/progress", nil)
	s.Equal(http.StatusOK, w.Code)

	var body map[string]any
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &body))
	s.EqualValues(150, body["xp"])
	s.EqualValues(400, body["next_level_xp"])
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerTestSuite))
}

func TestNarrationRateLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	narrations := new(mocks.NarrationService)
	userID, storyID := uuid.New(), uuid.New()
	narrations.On("AddNarration", mock.Anything, userID, storyID, "once").
		Return(&models.NarrationResult{Status: models.NarrationStatusRaw}, nil).Once()

	h := handler.NewNarrativeHandler(handler.Services{Narrations: narrations}, zap.NewNop())
	auth := func(c *gin.Context) {
		middleware.SetUserID(c, userID)
		c.Next()
	}
	limiter := middleware.RateLimiter(middleware.NewRateLimitStore(middleware.RateLimitConfig{Limit: 1, Rate: time.Minute}), zap.NewNop())

	r := gin.New()
	h.RegisterRoutes(r, auth, limiter)

	send := func() int {
		req := httptest.NewRequest(http.MethodPost, "/stories/"+storyID.String()+"/narrations", bytes.NewBufferString(`{"content":"once"}`))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusCreated, send())
	assert.Equal(t, http.StatusTooManyRequests, send())
	narrations.AssertExpectations(t)
}
