package handler

import (
	"errors"
	"fmt"
	"net/http"

	"narrative-server/internal/models"
	"narrative-server/internal/service"
	"narrative-server/pkg/middleware"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// APIError - тело ответа с ошибкой.
type APIError struct {
	Message string `json:"message"`
}

// NarrativeHandler обслуживает HTTP API историй, мира и подсказок.
type NarrativeHandler struct {
	stories     service.StoryService
	narrations  service.NarrationService
	suggestions service.SuggestionService
	world       service.WorldService
	progress    service.ProgressService
	logger      *zap.Logger
}

// Services - зависимости обработчика.
type Services struct {
	Stories     service.StoryService
	Narrations  service.NarrationService
	Suggestions service.SuggestionService
	World       service.WorldService
	Progress    service.ProgressService
}

func NewNarrativeHandler(s Services, logger *zap.Logger) *NarrativeHandler {
	return &NarrativeHandler{
		stories:     s.Stories,
		narrations:  s.Narrations,
		suggestions: s.Suggestions,
		world:       s.World,
		progress:    s.Progress,
		logger:      logger.Named("NarrativeHandler"),
	}
}

// RegisterRoutes регистрирует маршруты API. authMiddleware обязателен,
// narrationLimiter применяется только к отправке наррации (nil = без лимита).
func (h *NarrativeHandler) RegisterRoutes(router gin.IRouter, authMiddleware, narrationLimiter gin.HandlerFunc) {
	narrationChain := []gin.HandlerFunc{}
	if narrationLimiter != nil {
		narrationChain = append(narrationChain, narrationLimiter)
	}
	narrationChain = append(narrationChain, h.addNarration)

	stories := router.Group("/stories", authMiddleware)
	{
		stories.POST("", h.createStory)
		stories.GET("", h.listStories)
		stories.GET("/:id", h.getStory)
		stories.PATCH("/:id", h.updateStory)
		stories.DELETE("/:id", h.deleteStory)

		stories.GET("/:id/elements", h.listElements)
		stories.PATCH("/:id/elements/:elementId", h.updateElement)
		stories.DELETE("/:id/elements/:elementId", h.deleteElement)
		stories.GET("/:id/elements/:elementId/dossier", h.getDossier)

		stories.GET("/:id/timeline", h.getTimeline)
		stories.PATCH("/:id/timeline/:momentId", h.updateMoment)
		stories.DELETE("/:id/timeline/:momentId", h.deleteMoment)

		stories.GET("/:id/connections", h.listConnections)
		stories.GET("/:id/mentions", h.listMentions)
		stories.GET("/:id/world", h.getWorld)

		stories.GET("/:id/brainstorm", h.brainstorm)
		stories.POST("/:id/interview/:characterId", h.interviewCharacter)

		stories.POST("/:id/narrations", narrationChain...)
		stories.GET("/:id/narrations", h.listNarrations)
	}

	suggestions := router.Group("/suggestions", authMiddleware)
	{
		suggestions.GET("/story/:storyId", h.listPendingSuggestions)
		suggestions.PATCH("/:id", h.updateSuggestion)
		suggestions.DELETE("/:id", h.rejectSuggestion)
		suggestions.POST("/:id/confirm", h.confirmSuggestion)
		suggestions.POST("/revert/element/:elementId", h.revertElement)
		suggestions.POST("/revert/moment/:momentId", h.revertMoment)
	}

	me := router.Group("/me", authMiddleware)
	{
		me.GET("/progress", h.getProgress)
	}
}

// handleServiceError переводит ошибки сервисов в HTTP ответ.
func (h *NarrativeHandler) handleServiceError(c *gin.Context, err error) {
	var statusCode int
	var apiErr APIError
	var validationErrs validator.ValidationErrors

	switch {
	case errors.Is(err, models.ErrNotFound):
		statusCode = http.StatusNotFound
		apiErr = APIError{Message: "Resource not found or access denied"}
	case errors.Is(err, models.ErrInvalidInput), errors.Is(err, models.ErrUnknownSuggestion), errors.As(err, &validationErrs):
		statusCode = http.StatusBadRequest
		apiErr = APIError{Message: err.Error()}
	case errors.Is(err, models.ErrSuggestionNotPending), errors.Is(err, models.ErrNotRevertible):
		statusCode = http.StatusConflict
		apiErr = APIError{Message: err.Error()}
	case errors.Is(err, models.ErrUnauthorized):
		statusCode = http.StatusUnauthorized
		apiErr = APIError{Message: "Unauthorized"}
	default:
		h.logger.Error("Unhandled internal error", zap.String("path", c.FullPath()), zap.Error(err))
		_ = c.Error(err)
		statusCode = http.StatusInternalServerError
		apiErr = APIError{Message: "Internal server error"}
	}

	c.AbortWithStatusJSON(statusCode, apiErr)
}

// userID возвращает пользователя из AuthMiddleware. false означает, что ответ уже отправлен.
func (h *NarrativeHandler) userID(c *gin.Context) (uuid.UUID, bool) {
	userID, ok := middleware.UserIDFromGin(c)
	if !ok {
		h.handleServiceError(c, models.ErrUnauthorized)
		return uuid.Nil, false
	}
	return userID, true
}

// uuidParam разбирает UUID из параметра пути.
func (h *NarrativeHandler) uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		h.handleServiceError(c, fmt.Errorf("%w: параметр %s должен быть UUID", models.ErrInvalidInput, name))
		return uuid.Nil, false
	}
	return id, true
}

// bindJSON разбирает тело запроса с проверкой binding-тегов.
func (h *NarrativeHandler) bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		h.handleServiceError(c, fmt.Errorf("%w: %v", models.ErrInvalidInput, err))
		return false
	}
	return true
}
