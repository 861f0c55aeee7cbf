package handler

import (
	"errors"
	"io"
	"net/http"

	"narrative-server/internal/models"

	"github.com/gin-gonic/gin"
)

func (h *NarrativeHandler) createStory(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}

	// Пустое тело допустимо: история получит название по умолчанию
	var req createStoryRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		h.handleServiceError(c, errors.Join(models.ErrInvalidInput, err))
		return
	}

	story, err := h.stories.CreateStory(c.Request.Context(), userID, req.Title, req.Description)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, story)
}

func (h *NarrativeHandler) listStories(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	stories, err := h.stories.ListStories(c.Request.Context(), userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, stories)
}

func (h *NarrativeHandler) getStory(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	storyID, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	story, err := h.stories.GetStory(c.Request.Context(), userID, storyID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, story)
}

func (h *NarrativeHandler) updateStory(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	storyID, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	var patch models.StoryPatch
	if !h.bindJSON(c, &patch) {
		return
	}
	story, err := h.stories.UpdateStory(c.Request.Context(), userID, storyID, patch)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, story)
}

func (h *NarrativeHandler) deleteStory(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	storyID, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	if err := h.stories.DeleteStory(c.Request.Context(), userID, storyID); err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *NarrativeHandler) addNarration(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	storyID, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	var req addNarrationRequest
	if !h.bindJSON(c, &req) {
		return
	}

	result, err := h.narrations.AddNarration(c.Request.Context(), userID, storyID, req.Content)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h *NarrativeHandler) listNarrations(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	storyID, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	narrations, err := h.narrations.ListNarrations(c.Request.Context(), userID, storyID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, narrations)
}

func (h *NarrativeHandler) getProgress(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	progress, err := h.progress.GetProgress(c.Request.Context(), userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, progressResponse{
		UserProgress: progress,
		NextLevelXP:  models.NextLevelThreshold(progress.Level),
	})
}
