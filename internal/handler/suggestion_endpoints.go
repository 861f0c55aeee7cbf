package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"narrative-server/internal/models"

	"github.com/gin-gonic/gin"
)

func (h *NarrativeHandler) listPendingSuggestions(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	storyID, ok := h.uuidParam(c, "storyId")
	if !ok {
		return
	}
	pending, err := h.suggestions.ListPending(c.Request.Context(), userID, storyID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, pending)
}

// updateSuggestion принимает новое содержимое подсказки телом запроса целиком.
func (h *NarrativeHandler) updateSuggestion(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	suggestionID, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	body, err := c.GetRawData()
	if err != nil || !json.Valid(body) {
		h.handleServiceError(c, fmt.Errorf("%w: тело запроса должно быть JSON объектом", models.ErrInvalidInput))
		return
	}

	suggestion, err := h.suggestions.UpdateSuggestion(c.Request.Context(), userID, suggestionID, json.RawMessage(body))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, suggestion)
}

func (h *NarrativeHandler) rejectSuggestion(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	suggestionID, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	if err := h.suggestions.Reject(c.Request.Context(), userID, suggestionID); err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse{Success: true})
}

func (h *NarrativeHandler) confirmSuggestion(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	suggestionID, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	result, err := h.suggestions.Confirm(c.Request.Context(), userID, suggestionID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *NarrativeHandler) revertElement(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	elementID, ok := h.uuidParam(c, "elementId")
	if !ok {
		return
	}
	result, err := h.suggestions.RevertElement(c.Request.Context(), userID, elementID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *NarrativeHandler) revertMoment(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	momentID, ok := h.uuidParam(c, "momentId")
	if !ok {
		return
	}
	result, err := h.suggestions.RevertMoment(c.Request.Context(), userID, momentID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
